package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionActive      SessionStatus = "active"
	SessionPaused      SessionStatus = "paused"
	SessionCompleted   SessionStatus = "completed"
	SessionFailed      SessionStatus = "failed"
	SessionInterrupted SessionStatus = "interrupted"
)

// Session tracks one conversation with an agent.
// Status changes are plain assignments; any transition is allowed.
type Session struct {
	ID        string         `json:"id"`
	AgentID   string         `json:"agentId"`
	Status    SessionStatus  `json:"status"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	LastError string         `json:"lastError,omitempty"`
	Turns     int            `json:"turns"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
}

// NewSession creates an active session for agentID. A positive ttl sets ExpiresAt.
func NewSession(agentID string, ttl time.Duration) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Status:    SessionActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		s.ExpiresAt = &exp
	}
	return s
}

func (s *Session) Pause()     { s.set(SessionPaused) }
func (s *Session) Resume()    { s.set(SessionActive) }
func (s *Session) Complete()  { s.set(SessionCompleted) }
func (s *Session) Interrupt() { s.set(SessionInterrupted) }

// Fail marks the session failed and records reason.
func (s *Session) Fail(reason string) {
	s.LastError = reason
	s.set(SessionFailed)
}

// IsExpired reports whether the session has an expiry that is not after now.
func (s *Session) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Metadata = cloneMap(s.Metadata)
	if s.ExpiresAt != nil {
		exp := *s.ExpiresAt
		cp.ExpiresAt = &exp
	}
	return &cp
}

func (s *Session) set(status SessionStatus) {
	s.Status = status
	s.UpdatedAt = time.Now().UTC()
}
