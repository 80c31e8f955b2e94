package realtime

import (
	"sync"

	"go.uber.org/zap"
)

// buffered events per session, pushes to a full session are dropped
const sessionBufferSize = 16

// Session is one live client connection of a user
type Session struct {
	userID string
	events chan any
}

// Events returns channel of payloads pushed to the session
func (s *Session) Events() <-chan any {
	return s.events
}

// Hub is process-local registry of live user sessions with explicit
// lifecycle: register on connect, deregister on disconnect. Delivery
// through the hub is best effort and never blocks the caller.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*Session]struct{}
	logger   *zap.Logger
}

// NewHub creates new Hub instance
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]map[*Session]struct{}),
		logger:   logger,
	}
}

// Register creates session for user and adds it to the registry
func (h *Hub) Register(userID string) *Session {
	s := &Session{
		userID: userID,
		events: make(chan any, sessionBufferSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[userID] == nil {
		h.sessions[userID] = make(map[*Session]struct{})
	}
	h.sessions[userID][s] = struct{}{}

	return s
}

// Deregister removes session from the registry and closes its channel
func (h *Hub) Deregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userSessions, ok := h.sessions[s.userID]
	if !ok {
		return
	}
	if _, ok := userSessions[s]; !ok {
		return
	}

	delete(userSessions, s)
	if len(userSessions) == 0 {
		delete(h.sessions, s.userID)
	}
	close(s.events)
}

// PushToUser delivers payload to all live sessions of user.
// It silently no-ops when the user has no live connection and drops
// the payload for sessions that cannot keep up. Returns whether the
// payload reached at least one session.
func (h *Hub) PushToUser(userID string, payload any) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := false
	for s := range h.sessions[userID] {
		select {
		case s.events <- payload:
			delivered = true
		default:
			h.logger.Debug("dropping push to slow session", zap.String("user_id", userID))
		}
	}

	return delivered
}
