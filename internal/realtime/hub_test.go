package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHub_PushToRegisteredSession(t *testing.T) {
	hub := NewHub(zap.NewNop())

	s := hub.Register("user1")
	defer hub.Deregister(s)

	delivered := hub.PushToUser("user1", "payload")
	assert.True(t, delivered)

	select {
	case got := <-s.Events():
		assert.Equal(t, "payload", got)
	default:
		t.Fatal("no event in session channel")
	}
}

func TestHub_PushWithoutSession(t *testing.T) {
	hub := NewHub(zap.NewNop())

	assert.False(t, hub.PushToUser("nobody", "payload"))
}

func TestHub_PushToAllUserSessions(t *testing.T) {
	hub := NewHub(zap.NewNop())

	s1 := hub.Register("user1")
	s2 := hub.Register("user1")
	other := hub.Register("user2")
	defer hub.Deregister(s1)
	defer hub.Deregister(s2)
	defer hub.Deregister(other)

	require.True(t, hub.PushToUser("user1", "payload"))

	assert.Len(t, s1.Events(), 1)
	assert.Len(t, s2.Events(), 1)
	assert.Len(t, other.Events(), 0)
}

func TestHub_DeregisterClosesChannel(t *testing.T) {
	hub := NewHub(zap.NewNop())

	s := hub.Register("user1")
	hub.Deregister(s)

	_, open := <-s.Events()
	assert.False(t, open)

	// the session is gone from the registry
	assert.False(t, hub.PushToUser("user1", "payload"))

	// double deregister is harmless
	hub.Deregister(s)
}

func TestHub_DropsWhenSessionIsFull(t *testing.T) {
	hub := NewHub(zap.NewNop())

	s := hub.Register("user1")
	defer hub.Deregister(s)

	for i := 0; i < sessionBufferSize; i++ {
		require.True(t, hub.PushToUser("user1", i))
	}

	// the slow session does not block the caller
	assert.False(t, hub.PushToUser("user1", "overflow"))
	assert.Len(t, s.Events(), sessionBufferSize)
}
