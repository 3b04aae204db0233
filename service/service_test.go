package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/agentscaffold/domain"
	apperrors "github.com/smallnest/agentscaffold/errors"
	"github.com/smallnest/agentscaffold/llm"
	"github.com/smallnest/agentscaffold/log"
	"github.com/smallnest/agentscaffold/store/memory"
	"github.com/smallnest/agentscaffold/tool"
	"github.com/smallnest/agentscaffold/workflow"
)

type fixture struct {
	agents   *AgentService
	sessions *SessionService
	opts     Options
	outcomes []string
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	logger := &log.NoOpLogger{}

	registry := tool.NewRegistry(logger)
	require.NoError(t, registry.Register(tool.NewCalculator()))

	agentRepo := memory.NewAgentRepository()
	f := &fixture{}
	opts := Options{
		Agents:      agentRepo,
		Sessions:    memory.NewSessionRepository(),
		Checkpoints: memory.NewCheckpointStore(),
		Tools:       registry,
		Runner: workflow.NewRunner(workflow.RunnerOptions{
			Models: llm.NewService(llm.Options{Logger: logger}),
			Tools:  registry,
			Agents: agentRepo,
			Logger: logger,
		}),
		Streaming: true,
		Observer: func(_ *domain.Agent, outcome string, _ time.Duration) {
			f.outcomes = append(f.outcomes, outcome)
		},
		Logger: logger,
	}
	if mutate != nil {
		mutate(&opts)
	}
	f.opts = opts
	f.agents = NewAgentService(opts)
	f.sessions = NewSessionService(opts)
	return f
}

func newAgent(name string) *domain.Agent {
	return domain.NewAgent(name, domain.AgentTypeGeneral, domain.LLMConfig{Provider: "mock", Model: "mock-1", Temperature: 0.2})
}

func (f *fixture) create(t *testing.T, a *domain.Agent) *domain.Agent {
	t.Helper()
	created, err := f.agents.Create(context.Background(), a)
	require.NoError(t, err)
	return created
}

func TestAgentService_CreateAndGet(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created := f.create(t, newAgent("helper"))

	got, err := f.agents.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = f.agents.Get(ctx, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAgentNotFound))
}

func TestAgentService_CreateRejects(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, newAgent("helper"))

	tests := []struct {
		name  string
		agent func() *domain.Agent
		code  string
	}{
		{"duplicate name", func() *domain.Agent { return newAgent("helper") }, apperrors.CodeAgentAlreadyExists},
		{"missing name", func() *domain.Agent { return newAgent("") }, apperrors.CodeInvalidAgentConfig},
		{"missing model", func() *domain.Agent {
			a := newAgent("no-model")
			a.LLM.Model = ""
			return a
		}, apperrors.CodeInvalidAgentConfig},
		{"unknown tool", func() *domain.Agent {
			a := newAgent("tooled")
			a.Tools = []string{"teleport"}
			return a
		}, apperrors.CodeToolNotFound},
		{"unknown member", func() *domain.Agent {
			a := newAgent("boss")
			a.Graph = domain.GraphSupervisor
			a.Members = []string{"ghost"}
			return a
		}, apperrors.CodeInvalidAgentConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.agents.Create(ctx, tt.agent())
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
		})
	}

	count, err := f.opts.Agents.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAgentService_List(t *testing.T) {
	f := newFixture(t, nil)
	for _, n := range []string{"a", "b", "c"} {
		f.create(t, newAgent(n))
	}

	page, err := f.agents.List(context.Background(), domain.Page{Skip: 1, Take: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "b", page.Items[0].Name)
}

func TestAgentService_Update(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.create(t, newAgent("alpha"))
	f.create(t, newAgent("beta"))

	prompt := "be brief"
	updated, err := f.agents.Update(ctx, a.ID, domain.AgentPatch{SystemPrompt: &prompt, Tools: []string{"calculator"}})
	require.NoError(t, err)
	assert.Equal(t, "be brief", updated.SystemPrompt)
	assert.Equal(t, []string{"calculator"}, updated.Tools)

	taken := "beta"
	_, err = f.agents.Update(ctx, a.ID, domain.AgentPatch{Name: &taken})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAgentAlreadyExists))

	bad := 5.0
	_, err = f.agents.Update(ctx, a.ID, domain.AgentPatch{LLM: &domain.LLMConfig{Model: "m", Temperature: bad}})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidAgentConfig))

	stored, err := f.agents.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha", stored.Name)
	assert.Equal(t, 0.2, stored.LLM.Temperature)

	supervisor := domain.GraphSupervisor
	_, err = f.agents.Update(ctx, a.ID, domain.AgentPatch{Graph: &supervisor, Members: []string{a.ID}})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidAgentConfig))
}

func TestAgentService_UpdateCaseOnlyRename(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, newAgent("helper"))
	upper := f.create(t, newAgent("Helper"))

	lower := "helper"
	_, err := f.agents.Update(ctx, upper.ID, domain.AgentPatch{Name: &lower})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAgentAlreadyExists))

	res, err := f.agents.List(ctx, domain.Page{})
	require.NoError(t, err)
	names := make([]string, 0, len(res.Items))
	for _, a := range res.Items {
		names = append(names, a.Name)
	}
	assert.ElementsMatch(t, []string{"helper", "Helper"}, names)

	renamed := "HELPER"
	updated, err := f.agents.Update(ctx, upper.ID, domain.AgentPatch{Name: &renamed})
	require.NoError(t, err)
	assert.Equal(t, "HELPER", updated.Name)
}

func TestAgentService_InvokeCreatesSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := newAgent("calc")
	a.Tools = []string{"calculator"}
	f.create(t, a)

	out, err := f.agents.Invoke(ctx, a.ID, InvokeInput{Message: "calculator: 6 * 7"})
	require.NoError(t, err)
	assert.Equal(t, "The calculator tool returned: 42", out.Answer)
	assert.Equal(t, domain.SessionActive, out.Status)
	assert.NotEmpty(t, out.SessionID)
	assert.Equal(t, []string{OutcomeSuccess}, f.outcomes)

	session, err := f.sessions.Get(ctx, out.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, session.Turns)

	history, err := f.sessions.History(ctx, out.SessionID)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestAgentService_InvokeErrors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.create(t, newAgent("helper"))
	other := f.create(t, newAgent("other"))

	_, err := f.agents.Invoke(ctx, a.ID, InvokeInput{Message: "  "})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.agents.Invoke(ctx, "missing", InvokeInput{Message: "hi"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAgentNotFound))

	_, err = f.agents.Invoke(ctx, a.ID, InvokeInput{Message: "hi", SessionID: "missing"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSessionNotFound))

	foreign, err := f.sessions.Create(ctx, other.ID, 0, nil)
	require.NoError(t, err)
	_, err = f.agents.Invoke(ctx, a.ID, InvokeInput{Message: "hi", SessionID: foreign.ID})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidRequest))

	inactive := false
	_, err = f.agents.Update(ctx, a.ID, domain.AgentPatch{Active: &inactive})
	require.NoError(t, err)
	_, err = f.agents.Invoke(ctx, a.ID, InvokeInput{Message: "hi"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAgentInactive))
}

func TestAgentService_InvokeExpiredSession(t *testing.T) {
	now := time.Now()
	f := newFixture(t, func(o *Options) {
		o.Now = func() time.Time { return now.Add(2 * time.Hour) }
	})
	ctx := context.Background()
	a := f.create(t, newAgent("helper"))

	session, err := f.sessions.Create(ctx, a.ID, time.Hour, nil)
	require.NoError(t, err)

	_, err = f.agents.Invoke(ctx, a.ID, InvokeInput{Message: "hi", SessionID: session.ID})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSessionExpired))
}

func TestAgentService_InvokeFailureMarksSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := newAgent("broken")
	a.LLM.Provider = "nowhere"
	f.create(t, a)

	session, err := f.sessions.Create(ctx, a.ID, 0, nil)
	require.NoError(t, err)

	_, err = f.agents.Invoke(ctx, a.ID, InvokeInput{Message: "hi", SessionID: session.ID})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeLLMProvider))

	got, err := f.sessions.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionFailed, got.Status)
	assert.Contains(t, got.LastError, "nowhere")
	assert.Equal(t, []string{OutcomeError}, f.outcomes)
}

func TestAgentService_Persistence(t *testing.T) {
	for _, persist := range []bool{false, true} {
		f := newFixture(t, func(o *Options) { o.Persistence = persist })
		ctx := context.Background()
		a := f.create(t, newAgent("memo"))

		first, err := f.agents.Invoke(ctx, a.ID, InvokeInput{Message: "first"})
		require.NoError(t, err)
		second, err := f.agents.Invoke(ctx, a.ID, InvokeInput{Message: "second", SessionID: first.SessionID})
		require.NoError(t, err)

		if persist {
			assert.Len(t, second.Messages, 4)
		} else {
			assert.Len(t, second.Messages, 2)
		}

		session, err := f.sessions.Get(ctx, first.SessionID)
		require.NoError(t, err)
		assert.Equal(t, 2, session.Turns)
	}
}

func TestAgentService_InvokeStreams(t *testing.T) {
	f := newFixture(t, nil)
	a := f.create(t, newAgent("streamer"))

	var sb strings.Builder
	out, err := f.agents.Invoke(context.Background(), a.ID, InvokeInput{
		Message: "tell me something",
		OnChunk: func(chunk string) error {
			sb.WriteString(chunk)
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, out.Answer, sb.String())

	f = newFixture(t, func(o *Options) { o.Streaming = false })
	a = f.create(t, newAgent("quiet"))
	called := false
	_, err = f.agents.Invoke(context.Background(), a.ID, InvokeInput{
		Message: "hi",
		OnChunk: func(string) error { called = true; return nil },
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestAgentService_DeleteCascades(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.create(t, newAgent("doomed"))
	keep := f.create(t, newAgent("keeper"))

	out, err := f.agents.Invoke(ctx, a.ID, InvokeInput{Message: "hi"})
	require.NoError(t, err)
	_, err = f.sessions.Create(ctx, keep.ID, 0, nil)
	require.NoError(t, err)

	require.NoError(t, f.agents.Delete(ctx, a.ID))

	_, err = f.agents.Get(ctx, a.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAgentNotFound))
	_, err = f.sessions.Get(ctx, out.SessionID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSessionNotFound))

	cps, err := f.opts.Checkpoints.List(ctx, out.SessionID)
	require.NoError(t, err)
	assert.Empty(t, cps)

	count, err := f.opts.Sessions.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	err = f.agents.Delete(ctx, a.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAgentNotFound))
}

func TestSessionService_Lifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.create(t, newAgent("helper"))

	_, err := f.sessions.Create(ctx, "missing", 0, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAgentNotFound))

	s, err := f.sessions.Create(ctx, a.ID, time.Minute, map[string]any{"channel": "web"})
	require.NoError(t, err)
	require.NotNil(t, s.ExpiresAt)
	assert.Equal(t, "web", s.Metadata["channel"])

	s, err = f.sessions.Pause(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPaused, s.Status)

	_, err = f.agents.Invoke(ctx, a.ID, InvokeInput{Message: "hi", SessionID: s.ID})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidRequest))

	s, err = f.sessions.Resume(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, s.Status)

	s, err = f.sessions.Complete(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCompleted, s.Status)

	list, err := f.sessions.List(ctx, domain.Page{}, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)

	list, err = f.sessions.List(ctx, domain.Page{}, "someone-else")
	require.NoError(t, err)
	assert.Equal(t, 0, list.Total)

	require.NoError(t, f.sessions.Delete(ctx, s.ID))
	err = f.sessions.Delete(ctx, s.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSessionNotFound))

	_, err = f.sessions.Pause(ctx, s.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSessionNotFound))
}

func TestSessionService_ReviewFlow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := newAgent("careful")
	a.Graph = domain.GraphHITL
	a.Tools = []string{"calculator"}
	f.create(t, a)

	out, err := f.agents.Invoke(ctx, a.ID, InvokeInput{Message: "calculator: 2 ^ 8"})
	require.NoError(t, err)
	require.True(t, out.Interrupted)
	assert.Equal(t, domain.SessionInterrupted, out.Status)
	require.NotNil(t, out.Pending)
	assert.Equal(t, "calculator", out.Pending.ToolCalls[0].FunctionCall.Name)

	_, err = f.agents.Invoke(ctx, a.ID, InvokeInput{Message: "more", SessionID: out.SessionID})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidRequest))

	_, err = f.sessions.Review(ctx, out.SessionID, "perhaps", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidRequest))

	reviewed, err := f.sessions.Review(ctx, out.SessionID, workflow.DecisionApprove, "")
	require.NoError(t, err)
	assert.False(t, reviewed.Interrupted)
	assert.Equal(t, "The calculator tool returned: 256", reviewed.Answer)
	assert.Equal(t, domain.SessionActive, reviewed.Status)

	history, err := f.sessions.History(ctx, out.SessionID)
	require.NoError(t, err)
	var calls []workflow.ToolCall
	for _, m := range history {
		calls = append(calls, m.ToolCalls...)
	}
	require.Len(t, calls, 1)
	assert.Equal(t, "calculator", calls[0].Name)
	assert.JSONEq(t, `{"expression":"2 ^ 8"}`, calls[0].Arguments)

	_, err = f.sessions.Review(ctx, out.SessionID, workflow.DecisionApprove, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidRequest))

	assert.Equal(t, []string{OutcomeInterrupted, OutcomeSuccess}, f.outcomes)
}

func TestSessionService_PurgeExpired(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.create(t, newAgent("helper"))

	short, err := f.sessions.Create(ctx, a.ID, time.Minute, nil)
	require.NoError(t, err)
	forever, err := f.sessions.Create(ctx, a.ID, 0, nil)
	require.NoError(t, err)

	n, err := f.sessions.PurgeExpired(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.sessions.Get(ctx, short.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSessionNotFound))
	_, err = f.sessions.Get(ctx, forever.ID)
	assert.NoError(t, err)
}
