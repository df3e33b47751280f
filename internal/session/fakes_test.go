package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"agentdk/internal/config"

	"github.com/mark3labs/mcp-go/mcp"
)

// fakeChannel is a ToolChannel backed by nothing. Close can be made to
// block or fail, and every operation is counted.
type fakeChannel struct {
	name string

	calls  atomic.Int32
	closes atomic.Int32

	callErr    error
	closeErr   error
	callBlock  chan struct{} // when non-nil, CallTool blocks until closed or ctx done
	closeBlock chan struct{} // when non-nil, Close blocks until it is closed
	onClose    func()        // runs just before Close returns
}

func (f *fakeChannel) CallTool(ctx context.Context, tool string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	f.calls.Add(1)
	if f.callErr != nil {
		return nil, f.callErr
	}
	if f.callBlock != nil {
		select {
		case <-f.callBlock:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return &mcp.CallToolResult{}, nil
}

func (f *fakeChannel) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return []mcp.Tool{{Name: "ping"}}, nil
}

func (f *fakeChannel) Close() error {
	if f.closeBlock != nil {
		<-f.closeBlock
	}
	f.closes.Add(1)
	if f.onClose != nil {
		f.onClose()
	}
	return f.closeErr
}

// fakeDialer fabricates fakeChannels and records how often each server was
// dialed. Individual servers can be configured to fail or to dial slowly.
type fakeDialer struct {
	mu       sync.Mutex
	dials    map[string]int
	channels map[string]*fakeChannel
	failFor  map[string]error
	blockFor map[string]time.Duration
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		dials:    make(map[string]int),
		channels: make(map[string]*fakeChannel),
		failFor:  make(map[string]error),
		blockFor: make(map[string]time.Duration),
	}
}

func (d *fakeDialer) dial(ctx context.Context, spec config.ServerSpec) (ToolChannel, error) {
	d.mu.Lock()
	d.dials[spec.Name]++
	delay := d.blockFor[spec.Name]
	err := d.failFor[spec.Name]
	d.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	ch := &fakeChannel{name: spec.Name}
	d.mu.Lock()
	if _, exists := d.channels[spec.Name]; exists {
		// Keep the first channel addressable; later dials get suffixed keys
		// so tests can still reach them.
		d.channels[fmt.Sprintf("%s#%d", spec.Name, d.dials[spec.Name])] = ch
	} else {
		d.channels[spec.Name] = ch
	}
	d.mu.Unlock()
	return ch, nil
}

func (d *fakeDialer) dialCount(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[name]
}

func (d *fakeDialer) channel(name string) *fakeChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.channels[name]
}

func specs(names ...string) []config.ServerSpec {
	out := make([]config.ServerSpec, 0, len(names))
	for _, name := range names {
		out = append(out, config.ServerSpec{Name: name, Command: "fake-server"})
	}
	return out
}

// fakeSession is a ManagedSession whose Shutdown can be made to hang.
type fakeSession struct {
	id        string
	shutdowns atomic.Int32
	block     chan struct{} // when non-nil, Shutdown blocks until closed or ctx done
}

func (s *fakeSession) OwnerID() string { return s.id }

func (s *fakeSession) Shutdown(ctx context.Context) {
	s.shutdowns.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
		}
	}
}
