package service

import (
	"context"
	"time"

	"github.com/smallnest/agentscaffold/domain"
	apperrors "github.com/smallnest/agentscaffold/errors"
	"github.com/smallnest/agentscaffold/log"
	"github.com/smallnest/agentscaffold/workflow"
)

// SessionService manages sessions and human review of interrupted runs.
type SessionService struct {
	opts   Options
	conv   *conversations
	logger log.Logger
}

// NewSessionService creates a SessionService.
func NewSessionService(opts Options) *SessionService {
	return &SessionService{
		opts:   opts,
		conv:   opts.conversations(),
		logger: log.OrDefault(opts.Logger),
	}
}

// Create starts a session for an existing agent. ttl <= 0 uses the
// configured default.
func (s *SessionService) Create(ctx context.Context, agentID string, ttl time.Duration, metadata map[string]any) (*domain.Session, error) {
	if _, err := s.opts.Agents.FindByID(ctx, agentID); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = s.opts.SessionTTL
	}
	session := domain.NewSession(agentID, ttl)
	session.Metadata = metadata
	if err := s.opts.Sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get returns a session by ID.
func (s *SessionService) Get(ctx context.Context, id string) (*domain.Session, error) {
	return s.opts.Sessions.FindByID(ctx, id)
}

// List returns a page of sessions, optionally only those of agentID.
func (s *SessionService) List(ctx context.Context, page domain.Page, agentID string) (domain.PageResult[*domain.Session], error) {
	if agentID != "" {
		return s.opts.Sessions.FindByAgent(ctx, agentID, page)
	}
	return s.opts.Sessions.FindAll(ctx, page)
}

func (s *SessionService) Pause(ctx context.Context, id string) (*domain.Session, error) {
	return s.transition(ctx, id, (*domain.Session).Pause)
}

func (s *SessionService) Resume(ctx context.Context, id string) (*domain.Session, error) {
	return s.transition(ctx, id, (*domain.Session).Resume)
}

func (s *SessionService) Complete(ctx context.Context, id string) (*domain.Session, error) {
	return s.transition(ctx, id, (*domain.Session).Complete)
}

func (s *SessionService) transition(ctx context.Context, id string, apply func(*domain.Session)) (*domain.Session, error) {
	session, err := s.opts.Sessions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(session)
	if err := s.opts.Sessions.Update(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Delete removes a session and its checkpoints.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if _, err := s.opts.Sessions.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.opts.Checkpoints.Clear(ctx, id); err != nil {
		return err
	}
	return s.opts.Sessions.Delete(ctx, id)
}

// History returns the conversation of a session as of its latest checkpoint.
func (s *SessionService) History(ctx context.Context, id string) ([]workflow.Message, error) {
	if _, err := s.opts.Sessions.FindByID(ctx, id); err != nil {
		return nil, err
	}
	state, ok, err := s.conv.latest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []workflow.Message{}, nil
	}
	return workflow.ToMessages(state.Messages), nil
}

// Review records a decision on the pending tool calls of an interrupted
// session and resumes its run.
func (s *SessionService) Review(ctx context.Context, id string, decision workflow.Decision, comment string) (*InvokeOutput, error) {
	session, err := s.opts.Sessions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.SessionInterrupted {
		return nil, apperrors.InvalidRequest("session has no pending review", nil).WithDetails("sessionId", id)
	}
	if session.IsExpired(s.opts.now()) {
		return nil, apperrors.SessionExpired(id)
	}

	agent, err := s.opts.Agents.FindByID(ctx, session.AgentID)
	if err != nil {
		return nil, err
	}
	state, ok, err := s.conv.latest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.InvalidRequest("session has no saved state to resume", nil).WithDetails("sessionId", id)
	}

	started := time.Now()
	res, err := s.opts.Runner.Resume(ctx, agent, state, decision, comment)
	if apperrors.HasCode(err, apperrors.CodeInvalidRequest) {
		return nil, err
	}
	return s.conv.finish(ctx, agent, session, res, err, started)
}

// PurgeExpired deletes every session expired at now and returns how many
// were removed.
func (s *SessionService) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	var expired []string
	for page := (domain.Page{Take: domain.MaxPageSize}); ; page.Skip += page.Take {
		res, err := s.opts.Sessions.FindAll(ctx, page)
		if err != nil {
			return 0, err
		}
		for _, sess := range res.Items {
			if sess.IsExpired(now) {
				expired = append(expired, sess.ID)
			}
		}
		if page.Skip+page.Take >= res.Total {
			break
		}
	}

	for _, id := range expired {
		if err := s.opts.Checkpoints.Clear(ctx, id); err != nil {
			return 0, err
		}
		if err := s.opts.Sessions.Delete(ctx, id); err != nil {
			return 0, err
		}
	}
	if len(expired) > 0 {
		s.logger.Info("purged %d expired sessions", len(expired))
	}
	return len(expired), nil
}
