package domain

import "context"

// AgentRepository stores agents. Find* methods return AGENT_NOT_FOUND for absent
// IDs; Delete of an absent ID is a no-op.
type AgentRepository interface {
	Create(ctx context.Context, agent *Agent) error
	FindByID(ctx context.Context, id string) (*Agent, error)
	FindByName(ctx context.Context, name string) (*Agent, error)
	FindAll(ctx context.Context, page Page) (PageResult[*Agent], error)
	Update(ctx context.Context, agent *Agent) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// SessionRepository stores sessions with the same conventions as AgentRepository.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	FindByID(ctx context.Context, id string) (*Session, error)
	FindAll(ctx context.Context, page Page) (PageResult[*Session], error)
	FindByAgent(ctx context.Context, agentID string, page Page) (PageResult[*Session], error)
	Update(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error
	DeleteByAgent(ctx context.Context, agentID string) (int, error)
	Count(ctx context.Context) (int, error)
}
