package session

import (
	"context"
	"fmt"

	"agentdk/internal/config"
	"agentdk/pkg/logging"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

const mcpProtocolVersion = "2024-11-05"

// DialStdio is the production Dialer. It launches the tool server described
// by spec as a subprocess speaking MCP over stdio and performs the protocol
// handshake. The returned channel owns the subprocess: closing it terminates
// the server.
func DialStdio(ctx context.Context, spec config.ServerSpec) (ToolChannel, error) {
	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	stdioClient, err := client.NewStdioMCPClient(spec.Command, env, spec.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to launch %s: %w", spec.Command, err)
	}

	initReq := mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: mcpProtocolVersion,
			ClientInfo: mcp.Implementation{
				Name:    "agentdk",
				Version: "1.0.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	}

	if _, err := stdioClient.Initialize(ctx, initReq); err != nil {
		if closeErr := stdioClient.Close(); closeErr != nil {
			logging.Warn("Connection", "Error closing %s after failed handshake: %v", spec.Name, closeErr)
		}
		return nil, fmt.Errorf("initialize handshake with %s failed: %w", spec.Name, err)
	}

	return &stdioChannel{client: stdioClient}, nil
}

// stdioChannel adapts an MCP stdio client to the ToolChannel interface.
type stdioChannel struct {
	client client.MCPClient
}

func (s *stdioChannel) CallTool(ctx context.Context, tool string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{
		Params: struct {
			Name      string    `json:"name"`
			Arguments any       `json:"arguments,omitempty"`
			Meta      *mcp.Meta `json:"_meta,omitempty"`
		}{
			Name:      tool,
			Arguments: args,
		},
	}
	return s.client.CallTool(ctx, req)
}

func (s *stdioChannel) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	result, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	return result.Tools, nil
}

func (s *stdioChannel) Close() error {
	return s.client.Close()
}
