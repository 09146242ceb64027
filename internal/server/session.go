package server

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/guiyumin/vbrief/internal/core/conversation"
)

const (
	DefaultMaxSessions = 256
	maxSessionIDLen    = 64
)

// SessionRegistry holds one conversation per session id. The least recently
// used session is evicted when the registry is full; conversations are never
// persisted.
type SessionRegistry struct {
	mu         sync.Mutex
	sessions   *lru.Cache[string, *conversation.Manager]
	newSession func(logger *slog.Logger) *conversation.Manager
	logger     *slog.Logger
}

// NewSessionRegistry creates a registry whose sessions are built by newSession.
func NewSessionRegistry(size int, newSession func(*slog.Logger) *conversation.Manager, logger *slog.Logger) *SessionRegistry {
	if size <= 0 {
		size = DefaultMaxSessions
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &SessionRegistry{newSession: newSession, logger: logger}
	r.sessions, _ = lru.NewWithEvict[string, *conversation.Manager](size, func(id string, _ *conversation.Manager) {
		r.logger.Debug("session evicted", "session", id)
	})
	return r
}

// Acquire returns the session for id, creating it when absent. An empty id
// allocates a fresh one.
func (r *SessionRegistry) Acquire(id string) (string, *conversation.Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" || len(id) > maxSessionIDLen {
		id = uuid.NewString()
	}
	if m, ok := r.sessions.Get(id); ok {
		return id, m
	}
	m := r.newSession(r.logger.With("session", id))
	r.sessions.Add(id, m)
	return id, m
}

// Get returns an existing session.
func (r *SessionRegistry) Get(id string) (*conversation.Manager, bool) {
	if id == "" {
		return nil, false
	}
	return r.sessions.Get(id)
}

// Remove resets and forgets a session.
func (r *SessionRegistry) Remove(id string) bool {
	m, ok := r.sessions.Peek(id)
	if !ok {
		return false
	}
	m.Reset()
	r.sessions.Remove(id)
	return true
}

func (r *SessionRegistry) Len() int {
	return r.sessions.Len()
}
