package ws

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterReplacesStaleConnection(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	oldConn := NewConnection(nil, zerolog.Nop())
	hub.RegisterConnection("p1", oldConn)

	newConn := NewConnection(nil, zerolog.Nop())
	hub.RegisterConnection("p1", newConn)

	assert.ErrorIs(t, oldConn.Send(Message{Type: TypePing}), ErrConnectionClosed)
	assert.NoError(t, newConn.Send(Message{Type: TypePing}))
}

func TestUnregisterIgnoresReplacedConnection(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	oldConn := NewConnection(nil, zerolog.Nop())
	hub.RegisterConnection("p1", oldConn)

	// The player reconnects; the replacement takes over the registry slot
	// and closes the stale socket.
	newConn := NewConnection(nil, zerolog.Nop())
	hub.RegisterConnection("p1", newConn)

	// The old handler's deferred cleanup runs afterwards. It must leave the
	// replacement registered and open.
	hub.UnregisterConnection("p1", oldConn)

	hub.mu.RLock()
	current := hub.connections["p1"]
	hub.mu.RUnlock()
	require.Same(t, newConn, current, "replacement must stay registered")
	assert.NoError(t, newConn.Send(Message{Type: TypePing}))
}

func TestUnregisterRemovesOwnConnection(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	conn := NewConnection(nil, zerolog.Nop())
	hub.RegisterConnection("p1", conn)
	hub.UnregisterConnection("p1", conn)

	hub.mu.RLock()
	_, exists := hub.connections["p1"]
	hub.mu.RUnlock()
	assert.False(t, exists)
	assert.ErrorIs(t, conn.Send(Message{Type: TypePing}), ErrConnectionClosed)
}

func TestSendAfterCloseFails(t *testing.T) {
	conn := NewConnection(nil, zerolog.Nop())
	require.NoError(t, conn.Send(Message{Type: TypePing}))

	conn.Close()
	conn.Close() // idempotent
	assert.ErrorIs(t, conn.Send(Message{Type: TypePing}), ErrConnectionClosed)
}
