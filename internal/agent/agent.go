package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agentdk/internal/config"
	"agentdk/internal/session"
	"agentdk/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
)

// retryBackoffStep is the linear backoff unit between tool call attempts.
// A variable so tests can shorten it.
var retryBackoffStep = 500 * time.Millisecond

// Agent is the facade callers interact with. It owns one session.Manager and
// adds the business-level policy the session layer deliberately leaves out:
// bounded retries for failing tool invocations.
type Agent struct {
	name     string
	sessions *session.Manager
	logger   *Logger
	retries  int
}

// New creates an agent over the given session manager. retries is the number
// of attempts per tool invocation; zero selects the default.
func New(name string, sessions *session.Manager, logger *Logger, retries int) *Agent {
	if retries <= 0 {
		retries = config.DefaultToolRetries
	}
	if logger == nil {
		logger = NewLogger(false, false)
	}
	return &Agent{
		name:     name,
		sessions: sessions,
		logger:   logger,
		retries:  retries,
	}
}

// Name returns the agent's display name.
func (a *Agent) Name() string { return a.name }

// Sessions exposes the underlying session manager for status display.
func (a *Agent) Sessions() *session.Manager { return a.sessions }

// EnsureReady lazily opens all configured tool server connections. A
// failure here is a hard error for the caller: the agent cannot work
// without its tools.
func (a *Agent) EnsureReady(ctx context.Context) error {
	return a.sessions.EnsureReady(ctx)
}

// ExecuteTool invokes a tool, retrying transient failures with a linear
// backoff. Readiness errors are surfaced immediately; retrying a missing
// EnsureReady call would only mask a programming mistake.
func (a *Agent) ExecuteTool(ctx context.Context, server, tool string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	a.logger.Request(fmt.Sprintf("tools/call (%s.%s)", server, tool), args)

	var lastErr error
	for attempt := 1; attempt <= a.retries; attempt++ {
		result, err := a.sessions.InvokeTool(ctx, server, tool, args)
		if err == nil {
			a.logger.Response(fmt.Sprintf("tools/call (%s.%s)", server, tool), result)
			return result, nil
		}

		var notReady *session.NotReadyError
		if errors.As(err, &notReady) {
			return nil, err
		}

		lastErr = err
		logging.Warn("Agent", "Tool call attempt %d/%d for %s.%s failed: %v", attempt, a.retries, server, tool, err)

		if attempt < a.retries {
			backoff := time.Duration(attempt) * retryBackoffStep
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("tool %q on server %q failed after %d attempts: %w", tool, server, a.retries, lastErr)
}

// ListTools returns the tools exposed by one named server.
func (a *Agent) ListTools(ctx context.Context, server string) ([]mcp.Tool, error) {
	return a.sessions.ListTools(ctx, server)
}

// Close is the explicit administrative shutdown of this one agent. Normal
// process teardown goes through the Coordinator instead.
func (a *Agent) Close(ctx context.Context) {
	a.sessions.Shutdown(ctx)
}
