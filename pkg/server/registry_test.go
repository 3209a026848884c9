package server

import (
	"fmt"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicolasHaas/chatroom/pkg/protocol"
)

func newTestConn() *protocol.LineConn {
	return protocol.NewLineConn(&nopConn{})
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	conn := newTestConn()

	require.NoError(t, r.Register("alice", conn))
	got, ok := r.Get("alice")
	require.True(t, ok)
	assert.Same(t, conn, got)
	assert.Equal(t, 1, r.Count())
}

func TestRegistryRejectsDuplicateUsername(t *testing.T) {
	r := NewRegistry()
	first := newTestConn()
	second := newTestConn()

	require.NoError(t, r.Register("alice", first))
	err := r.Register("alice", second)
	require.ErrorIs(t, err, ErrAlreadyRegistered)

	// The first holder keeps its routing.
	got, ok := r.Get("alice")
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestRegistryUnregisterGuardsOwnership(t *testing.T) {
	r := NewRegistry()
	owner := newTestConn()
	intruder := newTestConn()

	require.NoError(t, r.Register("alice", owner))

	// A connection that does not hold the entry must not remove it.
	assert.False(t, r.Unregister("alice", intruder))
	assert.Equal(t, 1, r.Count())

	assert.True(t, r.Unregister("alice", owner))
	assert.Equal(t, 0, r.Count())

	// Second removal is a no-op.
	assert.False(t, r.Unregister("alice", owner))
}

func TestRegistrySnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("alice", newTestConn()))
	require.NoError(t, r.Register("bob", newTestConn()))

	snap := r.Snapshot()
	require.Len(t, snap, 2)

	delete(snap, "alice")
	_, ok := r.Get("alice")
	assert.True(t, ok, "mutating a snapshot must not touch the registry")
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("alice", newTestConn()))
	require.NoError(t, r.Register("bob", newTestConn()))

	conns := r.Clear()
	assert.Len(t, conns, 2)
	assert.Equal(t, 0, r.Count())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("user%d", i)
			conn := newTestConn()
			if err := r.Register(name, conn); err != nil {
				t.Errorf("Register(%s): %v", name, err)
				return
			}
			for j := 0; j < 50; j++ {
				r.Snapshot()
				r.Get(name)
				r.Count()
			}
			if !r.Unregister(name, conn) {
				t.Errorf("Unregister(%s): entry missing", name)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Count())
}

// nopConn is a no-op net.Conn for tests that never touch the wire.
type nopConn struct{ net.Conn }

func (c *nopConn) Read(_ []byte) (int, error)  { return 0, io.EOF }
func (c *nopConn) Write(p []byte) (int, error) { return len(p), nil }
func (c *nopConn) Close() error                { return nil }
func (c *nopConn) RemoteAddr() net.Addr        { return &net.IPAddr{} }
