package agent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"agentdk/internal/config"
	"agentdk/internal/session"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyChannel fails the first failures CallTool invocations, then succeeds.
type flakyChannel struct {
	failures int32
	calls    atomic.Int32
	closes   atomic.Int32
}

func (f *flakyChannel) CallTool(ctx context.Context, tool string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return nil, errors.New("transient failure")
	}
	return &mcp.CallToolResult{}, nil
}

func (f *flakyChannel) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return []mcp.Tool{{Name: "query"}}, nil
}

func (f *flakyChannel) Close() error {
	f.closes.Add(1)
	return nil
}

func newTestAgent(t *testing.T, channel *flakyChannel, retries int) *Agent {
	t.Helper()
	dial := func(ctx context.Context, spec config.ServerSpec) (session.ToolChannel, error) {
		return channel, nil
	}
	registry := session.NewConnectionRegistry()
	coordinator := session.NewCoordinator(registry, time.Second)
	specs := []config.ServerSpec{{Name: "mysql", Command: "mcp-mysql"}}
	manager := session.NewManager(specs, dial, registry, coordinator, time.Second)
	return New("test-agent", manager, NewLogger(false, false), retries)
}

func shortBackoff(t *testing.T) {
	t.Helper()
	original := retryBackoffStep
	retryBackoffStep = time.Millisecond
	t.Cleanup(func() { retryBackoffStep = original })
}

func TestExecuteToolRetriesTransientFailure(t *testing.T) {
	shortBackoff(t)
	channel := &flakyChannel{failures: 1}
	a := newTestAgent(t, channel, 2)
	require.NoError(t, a.EnsureReady(context.Background()))

	result, err := a.ExecuteTool(context.Background(), "mysql", "query", map[string]interface{}{"sql": "select 1"})
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, int32(2), channel.calls.Load())
}

func TestExecuteToolExhaustsRetries(t *testing.T) {
	shortBackoff(t)
	channel := &flakyChannel{failures: 10}
	a := newTestAgent(t, channel, 3)
	require.NoError(t, a.EnsureReady(context.Background()))

	_, err := a.ExecuteTool(context.Background(), "mysql", "query", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, int32(3), channel.calls.Load())
}

func TestExecuteToolDoesNotRetryReadinessErrors(t *testing.T) {
	shortBackoff(t)
	channel := &flakyChannel{}
	a := newTestAgent(t, channel, 3)
	// EnsureReady deliberately skipped.

	_, err := a.ExecuteTool(context.Background(), "mysql", "query", nil)
	require.Error(t, err)
	var notReady *session.NotReadyError
	assert.True(t, errors.As(err, &notReady))
	assert.Equal(t, int32(0), channel.calls.Load(), "readiness errors must not be retried")
}

func TestAgentListToolsAndClose(t *testing.T) {
	channel := &flakyChannel{}
	a := newTestAgent(t, channel, 2)
	require.NoError(t, a.EnsureReady(context.Background()))

	tools, err := a.ListTools(context.Background(), "mysql")
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "query", tools[0].Name)

	a.Close(context.Background())
	assert.Equal(t, int32(1), channel.closes.Load())
	assert.False(t, a.Sessions().Ready())

	// Close is idempotent through the facade as well.
	a.Close(context.Background())
	assert.Equal(t, int32(1), channel.closes.Load())
}
