package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/smallnest/agentscaffold/domain"
	apperrors "github.com/smallnest/agentscaffold/errors"
)

// SessionRepository is an in-memory domain.SessionRepository.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

var _ domain.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]*domain.Session)}
}

func (r *SessionRepository) Create(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session.Clone()
	return nil
}

func (r *SessionRepository) FindByID(_ context.Context, id string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, apperrors.SessionNotFound(id)
	}
	return s.Clone(), nil
}

func (r *SessionRepository) FindAll(_ context.Context, page domain.Page) (domain.PageResult[*domain.Session], error) {
	return domain.Paginate(r.filter(func(*domain.Session) bool { return true }), page), nil
}

func (r *SessionRepository) FindByAgent(_ context.Context, agentID string, page domain.Page) (domain.PageResult[*domain.Session], error) {
	return domain.Paginate(r.filter(func(s *domain.Session) bool { return s.AgentID == agentID }), page), nil
}

func (r *SessionRepository) Update(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; !ok {
		return apperrors.SessionNotFound(session.ID)
	}
	r.sessions[session.ID] = session.Clone()
	return nil
}

func (r *SessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// DeleteByAgent removes every session of agentID and returns how many were removed.
func (r *SessionRepository) DeleteByAgent(_ context.Context, agentID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.AgentID == agentID {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

func (r *SessionRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), nil
}

func (r *SessionRepository) filter(keep func(*domain.Session) bool) []*domain.Session {
	r.mu.RLock()
	out := make([]*domain.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if keep(s) {
			out = append(out, s.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
