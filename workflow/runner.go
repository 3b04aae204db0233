package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/smallnest/langgraphgo/graph"
	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/agentscaffold/domain"
	apperrors "github.com/smallnest/agentscaffold/errors"
	"github.com/smallnest/agentscaffold/log"
	"github.com/smallnest/agentscaffold/tool"
)

// ModelProvider returns the model for an LLM configuration; *llm.Service
// satisfies it.
type ModelProvider interface {
	Model(cfg domain.LLMConfig) (llms.Model, error)
}

// AgentFinder looks up supervisor members.
type AgentFinder interface {
	FindByID(ctx context.Context, id string) (*domain.Agent, error)
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Models    ModelProvider
	Tools     *tool.Registry
	Knowledge Retriever
	Agents    AgentFinder
	// MaxIterations applies to agents that leave theirs at zero.
	MaxIterations int
	// Timeout bounds a whole run; zero disables it.
	Timeout time.Duration
	Logger  log.Logger
}

// Result is the outcome of a run.
type Result struct {
	State       State
	Interrupted bool
	// Node is where an interrupted run stopped.
	Node string
}

// Runner builds and executes the graph of an agent.
type Runner struct {
	opts   RunnerOptions
	logger log.Logger
}

// NewRunner creates a Runner.
func NewRunner(opts RunnerOptions) *Runner {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	return &Runner{opts: opts, logger: log.OrDefault(opts.Logger)}
}

// Build compiles the graph for agent. Supervisor members are resolved
// recursively; a member chain that leads back to an agent is rejected.
func (r *Runner) Build(ctx context.Context, agent *domain.Agent) (*graph.StateRunnable[State], error) {
	return r.build(ctx, agent, nil)
}

func (r *Runner) build(ctx context.Context, agent *domain.Agent, path []string) (*graph.StateRunnable[State], error) {
	if slices.Contains(path, agent.ID) {
		return nil, apperrors.InvalidAgentConfig("supervisor members form a cycle", map[string]string{
			"members": fmt.Sprintf("agent %s is reachable from itself", agent.ID),
		})
	}
	path = append(slices.Clone(path), agent.ID)

	model, err := r.opts.Models.Model(agent.LLM)
	if err != nil {
		return nil, err
	}

	maxIter := agent.MaxIterations
	if maxIter <= 0 {
		maxIter = r.opts.MaxIterations
	}
	opts := Options{
		Model:         model,
		SystemPrompt:  agent.SystemPrompt,
		Registry:      r.opts.Tools,
		Tools:         agent.Tools,
		MaxIterations: maxIter,
		Logger:        r.logger,
	}

	var runnable *graph.StateRunnable[State]
	switch agent.GraphOrDefault() {
	case domain.GraphRAG:
		if r.opts.Knowledge == nil {
			return nil, apperrors.InvalidAgentConfig("rag graph requires a knowledge base", map[string]string{
				"graph": "no knowledge base configured",
			})
		}
		opts.Knowledge = r.opts.Knowledge
		runnable, err = NewRAGGraph(opts)
	case domain.GraphSupervisor:
		if opts.Members, err = r.members(ctx, agent, path); err != nil {
			return nil, err
		}
		runnable, err = NewSupervisorGraph(opts)
	case domain.GraphHITL:
		runnable, err = NewHITLGraph(opts)
	default:
		runnable, err = NewReActGraph(opts)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build %s graph for agent %s: %w", agent.GraphOrDefault(), agent.ID, err)
	}
	return runnable, nil
}

func (r *Runner) members(ctx context.Context, agent *domain.Agent, path []string) ([]Member, error) {
	if r.opts.Agents == nil {
		return nil, fmt.Errorf("no agent lookup configured for supervisor %s", agent.ID)
	}
	members := make([]Member, 0, len(agent.Members))
	for _, id := range agent.Members {
		m, err := r.opts.Agents.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if m.GraphOrDefault() == domain.GraphHITL {
			return nil, apperrors.InvalidAgentConfig("hitl agents cannot be supervisor members", map[string]string{
				"members": fmt.Sprintf("agent %s uses the hitl graph", id),
			})
		}
		runnable, err := r.build(ctx, m, path)
		if err != nil {
			return nil, err
		}
		members = append(members, Member{Name: m.Name, Runnable: runnable})
	}
	return members, nil
}

// Run executes one turn. hitl runs stop before human_review and come back
// with Interrupted set.
func (r *Runner) Run(ctx context.Context, agent *domain.Agent, state State) (*Result, error) {
	var cfg *graph.Config
	if agent.GraphOrDefault() == domain.GraphHITL {
		cfg = InterruptConfig()
	}
	return r.invoke(ctx, agent, state, cfg)
}

// Resume applies a decision to a pending review and continues the run.
func (r *Runner) Resume(ctx context.Context, agent *domain.Agent, state State, decision Decision, comment string) (*Result, error) {
	if agent.GraphOrDefault() != domain.GraphHITL {
		return nil, apperrors.InvalidRequest(fmt.Sprintf("agent %s does not use the hitl graph", agent.ID), nil)
	}
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, apperrors.InvalidRequest(fmt.Sprintf("unknown decision %q", decision), nil)
	}
	if !state.Review.Pending() {
		return nil, apperrors.InvalidRequest("no pending review", nil)
	}

	review := *state.Review
	review.Decision = decision
	review.Comment = comment
	state.Review = &review
	return r.invoke(ctx, agent, state, ResumeConfig())
}

func (r *Runner) invoke(ctx context.Context, agent *domain.Agent, state State, cfg *graph.Config) (*Result, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	runnable, err := r.Build(ctx, agent)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := runnable.InvokeWithConfig(ctx, state, cfg)

	var interrupt *graph.GraphInterrupt
	if errors.As(err, &interrupt) {
		r.logger.Info("agent %s interrupted at %s", agent.ID, interrupt.Node)
		return &Result{State: out, Interrupted: true, Node: interrupt.Node}, nil
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", r.opts.Timeout, err)
		}
		r.logger.Error("agent %s failed: %v", agent.ID, err)
		return nil, apperrors.AgentExecution(agent.ID, err)
	}

	r.logger.Debug("agent %s finished in %s", agent.ID, time.Since(start))
	return &Result{State: out}, nil
}
