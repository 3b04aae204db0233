// Package service holds the application layer: agent and session use cases
// over the repositories, the tool registry and the graph runner.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallnest/agentscaffold/domain"
	"github.com/smallnest/agentscaffold/log"
	"github.com/smallnest/agentscaffold/store"
	"github.com/smallnest/agentscaffold/workflow"
)

// Invocation outcomes reported to an InvokeObserver.
const (
	OutcomeSuccess     = "success"
	OutcomeInterrupted = "interrupted"
	OutcomeError       = "error"
)

// InvokeObserver is told about every finished run.
type InvokeObserver func(agent *domain.Agent, outcome string, elapsed time.Duration)

// InvokeOutput is the result of one conversation turn.
type InvokeOutput struct {
	SessionID   string               `json:"sessionId"`
	Answer      string               `json:"answer"`
	Status      domain.SessionStatus `json:"status"`
	Interrupted bool                 `json:"interrupted"`
	Node        string               `json:"node,omitempty"`
	Pending     *workflow.Review     `json:"pending,omitempty"`
	Iterations  int                  `json:"iterations"`
	Messages    []workflow.Message   `json:"messages"`
}

// conversations persists run state as checkpoints keyed by session ID.
type conversations struct {
	sessions    domain.SessionRepository
	checkpoints store.CheckpointStore
	observer    InvokeObserver
	logger      log.Logger
}

// latest returns the saved state of a session, or false when there is none.
func (c *conversations) latest(ctx context.Context, sessionID string) (workflow.State, bool, error) {
	var state workflow.State
	cp, err := c.checkpoints.Latest(ctx, sessionID)
	if errors.Is(err, store.ErrCheckpointNotFound) {
		return state, false, nil
	}
	if err != nil {
		return state, false, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := cp.Decode(&state); err != nil {
		return state, false, fmt.Errorf("failed to decode checkpoint %s: %w", cp.ID, err)
	}
	return state, true, nil
}

func (c *conversations) save(ctx context.Context, agent *domain.Agent, sessionID string, res *workflow.Result) error {
	version, err := store.NextVersion(ctx, c.checkpoints, sessionID)
	if err != nil {
		return err
	}
	node := res.Node
	if node == "" {
		node = "END"
	}
	cp, err := store.NewCheckpoint(sessionID, node, res.State, version)
	if err != nil {
		return err
	}
	cp.Metadata["agent_id"] = agent.ID
	cp.Metadata["graph"] = string(agent.GraphOrDefault())
	cp.Metadata["interrupted"] = res.Interrupted
	if err := c.checkpoints.Save(ctx, cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// finish records the outcome of a run on the session and its checkpoints.
func (c *conversations) finish(ctx context.Context, agent *domain.Agent, session *domain.Session, res *workflow.Result, runErr error, started time.Time) (*InvokeOutput, error) {
	elapsed := time.Since(started)

	if runErr != nil {
		session.Fail(runErr.Error())
		if err := c.sessions.Update(ctx, session); err != nil {
			c.logger.Error("failed to update session %s: %v", session.ID, err)
		}
		c.observe(agent, OutcomeError, elapsed)
		return nil, runErr
	}

	if err := c.save(ctx, agent, session.ID, res); err != nil {
		return nil, err
	}

	session.Turns++
	session.LastError = ""
	outcome := OutcomeSuccess
	if res.Interrupted {
		session.Interrupt()
		outcome = OutcomeInterrupted
	} else {
		session.Resume()
	}
	if err := c.sessions.Update(ctx, session); err != nil {
		return nil, err
	}
	c.observe(agent, outcome, elapsed)

	out := &InvokeOutput{
		SessionID:   session.ID,
		Answer:      res.State.Answer,
		Status:      session.Status,
		Interrupted: res.Interrupted,
		Node:        res.Node,
		Iterations:  res.State.Iteration,
		Messages:    workflow.ToMessages(res.State.Messages),
	}
	if res.Interrupted {
		out.Pending = res.State.Review
	}
	return out, nil
}

func (c *conversations) observe(agent *domain.Agent, outcome string, elapsed time.Duration) {
	c.logger.Info("agent %s turn finished: %s in %s", agent.ID, outcome, elapsed)
	if c.observer != nil {
		c.observer(agent, outcome, elapsed)
	}
}
