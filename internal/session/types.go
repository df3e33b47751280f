package session

import (
	"context"

	"agentdk/internal/config"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolChannel is the open bidirectional stream to one tool server. The
// production implementation wraps an MCP stdio client whose subprocess is
// owned exclusively by the enclosing ManagedConnection.
type ToolChannel interface {
	// CallTool executes a tool on the server and returns its result.
	CallTool(ctx context.Context, tool string, args map[string]interface{}) (*mcp.CallToolResult, error)

	// ListTools returns all tools the server currently exposes.
	ListTools(ctx context.Context) ([]mcp.Tool, error)

	// Close releases the channel and terminates the subprocess.
	Close() error
}

// Dialer establishes the underlying channel for one tool server. It is a
// function type so tests can substitute fakes for the stdio launcher.
type Dialer func(ctx context.Context, spec config.ServerSpec) (ToolChannel, error)

// ManagedSession is the capability set the Coordinator requires of anything
// it shuts down. Manager implements it; tests provide fakes.
type ManagedSession interface {
	// OwnerID identifies the session for registry entries and log lines.
	OwnerID() string

	// Shutdown tears down every connection the session owns. It must be
	// idempotent, safe for concurrent callers, and must not return an error
	// or panic past its boundary.
	Shutdown(ctx context.Context)
}
