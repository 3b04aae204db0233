package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallnest/agentscaffold/domain"
	apperrors "github.com/smallnest/agentscaffold/errors"
	"github.com/smallnest/agentscaffold/log"
	"github.com/smallnest/agentscaffold/store"
	"github.com/smallnest/agentscaffold/workflow"
)

// ToolLookup reports whether a tool is registered; *tool.Registry satisfies it.
type ToolLookup interface {
	Has(name string) bool
}

// Options wires the services.
type Options struct {
	Agents      domain.AgentRepository
	Sessions    domain.SessionRepository
	Checkpoints store.CheckpointStore
	Tools       ToolLookup
	Runner      *workflow.Runner

	// Persistence carries conversation state across turns of a session.
	Persistence bool
	// Streaming allows InvokeInput.OnChunk.
	Streaming bool
	// SessionTTL is applied to sessions created without their own TTL.
	SessionTTL time.Duration

	Observer InvokeObserver
	Logger   log.Logger
	Now      func() time.Time
}

func (o *Options) conversations() *conversations {
	return &conversations{
		sessions:    o.Sessions,
		checkpoints: o.Checkpoints,
		observer:    o.Observer,
		logger:      log.OrDefault(o.Logger),
	}
}

func (o *Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// InvokeInput is one user turn.
type InvokeInput struct {
	// SessionID continues an existing session; empty starts a new one.
	SessionID string
	Message   string
	// OnChunk receives the answer as it is generated when streaming is enabled.
	OnChunk func(chunk string) error
}

// AgentService manages agents and runs their conversations.
type AgentService struct {
	opts   Options
	conv   *conversations
	logger log.Logger
}

// NewAgentService creates an AgentService.
func NewAgentService(opts Options) *AgentService {
	return &AgentService{
		opts:   opts,
		conv:   opts.conversations(),
		logger: log.OrDefault(opts.Logger),
	}
}

// Create validates and stores a new agent.
func (s *AgentService) Create(ctx context.Context, agent *domain.Agent) (*domain.Agent, error) {
	if err := agent.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkName(ctx, agent); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, agent); err != nil {
		return nil, err
	}
	if err := s.opts.Agents.Create(ctx, agent); err != nil {
		return nil, err
	}
	s.logger.Info("created agent %s (%s)", agent.ID, agent.Name)
	return agent, nil
}

// Get returns an agent by ID.
func (s *AgentService) Get(ctx context.Context, id string) (*domain.Agent, error) {
	return s.opts.Agents.FindByID(ctx, id)
}

// List returns a page of agents.
func (s *AgentService) List(ctx context.Context, page domain.Page) (domain.PageResult[*domain.Agent], error) {
	return s.opts.Agents.FindAll(ctx, page)
}

// Update applies patch to an agent and re-validates it.
func (s *AgentService) Update(ctx context.Context, id string, patch domain.AgentPatch) (*domain.Agent, error) {
	agent, err := s.opts.Agents.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldName := agent.Name

	agent.Apply(patch)
	if err := agent.Validate(); err != nil {
		return nil, err
	}
	if agent.Name != oldName {
		if err := s.checkName(ctx, agent); err != nil {
			return nil, err
		}
	}
	if err := s.checkReferences(ctx, agent); err != nil {
		return nil, err
	}
	if err := s.opts.Agents.Update(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// Delete removes an agent together with its sessions and their checkpoints.
func (s *AgentService) Delete(ctx context.Context, id string) error {
	if _, err := s.opts.Agents.FindByID(ctx, id); err != nil {
		return err
	}

	for page := (domain.Page{Take: domain.MaxPageSize}); ; page.Skip += page.Take {
		res, err := s.opts.Sessions.FindByAgent(ctx, id, page)
		if err != nil {
			return err
		}
		for _, sess := range res.Items {
			if err := s.opts.Checkpoints.Clear(ctx, sess.ID); err != nil {
				return err
			}
		}
		if page.Skip+page.Take >= res.Total {
			break
		}
	}

	n, err := s.opts.Sessions.DeleteByAgent(ctx, id)
	if err != nil {
		return err
	}
	if err := s.opts.Agents.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deleted agent %s and %d sessions", id, n)
	return nil
}

// Invoke runs one conversation turn against an agent.
func (s *AgentService) Invoke(ctx context.Context, agentID string, in InvokeInput) (*InvokeOutput, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, apperrors.Validation(map[string]string{"message": "message is required"})
	}

	agent, err := s.opts.Agents.FindByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !agent.Active {
		return nil, apperrors.AgentInactive(agent.ID)
	}

	session, err := s.session(ctx, agent, in.SessionID)
	if err != nil {
		return nil, err
	}

	state := workflow.NewState(in.Message)
	if s.opts.Persistence {
		prev, ok, err := s.conv.latest(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			state = prev.AddUserMessage(in.Message)
		}
	}

	if in.OnChunk != nil && s.opts.Streaming {
		onChunk := in.OnChunk
		ctx = workflow.WithStreamingFunc(ctx, func(_ context.Context, chunk []byte) error {
			return onChunk(string(chunk))
		})
	}

	started := time.Now()
	res, err := s.opts.Runner.Run(ctx, agent, state)
	return s.conv.finish(ctx, agent, session, res, err, started)
}

func (s *AgentService) session(ctx context.Context, agent *domain.Agent, id string) (*domain.Session, error) {
	if id == "" {
		session := domain.NewSession(agent.ID, s.opts.SessionTTL)
		if err := s.opts.Sessions.Create(ctx, session); err != nil {
			return nil, err
		}
		return session, nil
	}

	session, err := s.opts.Sessions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.AgentID != agent.ID {
		return nil, apperrors.InvalidRequest(fmt.Sprintf("session %s belongs to another agent", id), nil)
	}
	if session.IsExpired(s.opts.now()) {
		return nil, apperrors.SessionExpired(id)
	}
	switch session.Status {
	case domain.SessionPaused:
		return nil, apperrors.InvalidRequest(fmt.Sprintf("session %s is paused", id), nil)
	case domain.SessionInterrupted:
		return nil, apperrors.InvalidRequest(fmt.Sprintf("session %s is waiting for a review", id), nil)
	}
	return session, nil
}

func (s *AgentService) checkName(ctx context.Context, agent *domain.Agent) error {
	existing, err := s.opts.Agents.FindByName(ctx, agent.Name)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeAgentNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != agent.ID {
		return apperrors.AgentAlreadyExists(agent.Name)
	}
	return nil
}

func (s *AgentService) checkReferences(ctx context.Context, agent *domain.Agent) error {
	for _, name := range agent.Tools {
		if s.opts.Tools == nil || !s.opts.Tools.Has(name) {
			return apperrors.ToolNotFound(name)
		}
	}

	if agent.GraphOrDefault() != domain.GraphSupervisor {
		return nil
	}
	fields := make(map[string]string)
	for _, id := range agent.Members {
		if id == "" {
			fields["members"] = "member id must not be empty"
			continue
		}
		if id == agent.ID {
			fields["members"] = "an agent cannot supervise itself"
			continue
		}
		if _, err := s.opts.Agents.FindByID(ctx, id); err != nil {
			if !apperrors.HasCode(err, apperrors.CodeAgentNotFound) {
				return err
			}
			fields["members"] = fmt.Sprintf("agent %s not found", id)
		}
	}
	if len(fields) > 0 {
		return apperrors.InvalidAgentConfig("invalid supervisor members", fields)
	}
	return nil
}
