package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagedConnectionOpenIsIdempotent(t *testing.T) {
	dialer := newFakeDialer()
	conn := NewManagedConnection(specs("alpha")[0], dialer.dial, time.Second)

	first, err := conn.Open(context.Background())
	require.NoError(t, err)
	require.NotNil(t, first)

	for i := 0; i < 5; i++ {
		again, err := conn.Open(context.Background())
		require.NoError(t, err)
		assert.Same(t, first, again)
	}

	assert.Equal(t, 1, dialer.dialCount("alpha"))
	assert.Equal(t, StateOpen, conn.State())
	assert.NotEmpty(t, conn.OwningContext())
	assert.Empty(t, conn.TeardownContext())
}

func TestManagedConnectionOpenFailure(t *testing.T) {
	dialer := newFakeDialer()
	dialer.failFor["broken"] = errors.New("spawn failed")
	conn := NewManagedConnection(specs("broken")[0], dialer.dial, time.Second)

	_, err := conn.Open(context.Background())
	require.Error(t, err)
	var openErr *ConnectionOpenError
	assert.True(t, errors.As(err, &openErr))
	assert.Equal(t, "broken", openErr.Name)
	assert.Equal(t, StateFailed, conn.State())

	// A failed connection is never redialed.
	_, err = conn.Open(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, dialer.dialCount("broken"))

	// Closing a failed connection is a harmless no-op.
	conn.Close(context.Background())
	assert.Equal(t, StateFailed, conn.State())
}

func TestManagedConnectionConcurrentCloseReleasesOnce(t *testing.T) {
	dialer := newFakeDialer()
	conn := NewManagedConnection(specs("alpha")[0], dialer.dial, time.Second)
	_, err := conn.Open(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn.Close(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, StateClosed, conn.State())
	assert.Equal(t, int32(1), dialer.channel("alpha").closes.Load())
}

func TestManagedConnectionCloseUnopened(t *testing.T) {
	dialer := newFakeDialer()
	conn := NewManagedConnection(specs("alpha")[0], dialer.dial, time.Second)

	conn.Close(context.Background())
	conn.Close(context.Background())

	assert.Equal(t, StateClosed, conn.State())
	assert.Equal(t, 0, dialer.dialCount("alpha"))

	// Terminal even without a teardown: a connection closed before its first
	// open can never launch a subprocess afterwards.
	_, err := conn.Open(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, dialer.dialCount("alpha"))
}

func TestManagedConnectionTeardownRunsInOwningContext(t *testing.T) {
	dialer := newFakeDialer()
	conn := NewManagedConnection(specs("alpha")[0], dialer.dial, time.Second)
	_, err := conn.Open(context.Background())
	require.NoError(t, err)

	owner := conn.OwningContext()
	require.NotEmpty(t, owner)

	conn.Close(context.Background())

	assert.Equal(t, StateClosed, conn.State())
	assert.Equal(t, owner, conn.TeardownContext())
}

func TestManagedConnectionCloseTimeout(t *testing.T) {
	dialer := newFakeDialer()
	conn := NewManagedConnection(specs("alpha")[0], dialer.dial, 50*time.Millisecond)
	_, err := conn.Open(context.Background())
	require.NoError(t, err)

	block := make(chan struct{})
	dialer.channel("alpha").closeBlock = block
	defer close(block)

	start := time.Now()
	conn.Close(context.Background())
	elapsed := time.Since(start)

	assert.Equal(t, StateFailed, conn.State())
	assert.Less(t, elapsed, time.Second, "close must return once the budget is spent")
}

func TestManagedConnectionChannelAccess(t *testing.T) {
	dialer := newFakeDialer()
	conn := NewManagedConnection(specs("alpha")[0], dialer.dial, time.Second)

	_, err := conn.Channel()
	require.Error(t, err)

	_, err = conn.Open(context.Background())
	require.NoError(t, err)

	ch, err := conn.Channel()
	require.NoError(t, err)
	assert.NotNil(t, ch)

	conn.Close(context.Background())
	_, err = conn.Channel()
	require.Error(t, err)
}
