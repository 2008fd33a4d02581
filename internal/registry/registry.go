package registry

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quenty/webchannel-server-go/internal/model"
)

// Registry is the authoritative table of currently-connected sessions, one
// per live duplex connection. It owns the sessions exclusively; everything
// else refers to them by ID.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
}

func New() *Registry {
	return &Registry{
		sessions: make(map[string]*model.Session),
	}
}

// Register inserts or replaces the session keyed by its ID.
func (r *Registry) Register(s *model.Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	count := len(r.sessions)
	r.mu.Unlock()

	log.Info().
		Str("sessionId", s.ID).
		Str("userId", s.UserID).
		Int("sessionCount", count).
		Msg("session registered")
}

// Touch updates the session's last-heartbeat to now. Returns false when the
// session is no longer registered.
func (r *Registry) Touch(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	s.LastHeartbeat = time.Now()
	return true
}

func (r *Registry) Get(sessionID string) *model.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[sessionID]
}

func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	_, existed := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	count := len(r.sessions)
	r.mu.Unlock()

	if existed {
		log.Info().
			Str("sessionId", sessionID).
			Int("sessionCount", count).
			Msg("session removed")
	}
}

// ListAll returns a snapshot of the registered sessions, never a live view.
func (r *Registry) ListAll() []*model.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// ListInfo returns the redacted admin view: no connection handles, no
// metadata.
func (r *Registry) ListInfo() []model.SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Info())
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
