package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/smallnest/agentscaffold/domain"
	apperrors "github.com/smallnest/agentscaffold/errors"
)

// AgentRepository is an in-memory domain.AgentRepository.
type AgentRepository struct {
	mu     sync.RWMutex
	agents map[string]*domain.Agent
}

var _ domain.AgentRepository = (*AgentRepository)(nil)

func NewAgentRepository() *AgentRepository {
	return &AgentRepository{agents: make(map[string]*domain.Agent)}
}

// Create stores a new agent. A name already used by another agent yields
// AGENT_ALREADY_EXISTS.
func (r *AgentRepository) Create(_ context.Context, agent *domain.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkNameLocked(agent); err != nil {
		return err
	}
	r.agents[agent.ID] = agent.Clone()
	return nil
}

func (r *AgentRepository) FindByID(_ context.Context, id string) (*domain.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return nil, apperrors.AgentNotFound(id)
	}
	return a.Clone(), nil
}

// FindByName returns the agent with the exact name, AGENT_NOT_FOUND otherwise.
func (r *AgentRepository) FindByName(_ context.Context, name string) (*domain.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.agents {
		if a.Name == name {
			return a.Clone(), nil
		}
	}
	return nil, apperrors.AgentNotFound(name).WithDetails("name", name)
}

func (r *AgentRepository) FindAll(_ context.Context, page domain.Page) (domain.PageResult[*domain.Agent], error) {
	r.mu.RLock()
	all := make([]*domain.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		all = append(all, a.Clone())
	}
	r.mu.RUnlock()

	sortAgents(all)
	return domain.Paginate(all, page), nil
}

// Update replaces a stored agent. Unknown IDs yield AGENT_NOT_FOUND and a
// name taken by another agent AGENT_ALREADY_EXISTS.
func (r *AgentRepository) Update(_ context.Context, agent *domain.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[agent.ID]; !ok {
		return apperrors.AgentNotFound(agent.ID)
	}
	if err := r.checkNameLocked(agent); err != nil {
		return err
	}
	r.agents[agent.ID] = agent.Clone()
	return nil
}

func (r *AgentRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, id)
	return nil
}

func (r *AgentRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents), nil
}

func (r *AgentRepository) checkNameLocked(agent *domain.Agent) error {
	for id, a := range r.agents {
		if id != agent.ID && a.Name == agent.Name {
			return apperrors.AgentAlreadyExists(agent.Name)
		}
	}
	return nil
}

func sortAgents(agents []*domain.Agent) {
	sort.Slice(agents, func(i, j int) bool {
		if !agents[i].CreatedAt.Equal(agents[j].CreatedAt) {
			return agents[i].CreatedAt.Before(agents[j].CreatedAt)
		}
		return agents[i].ID < agents[j].ID
	})
}
