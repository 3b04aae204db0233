// Package workflow builds the agent state graphs (react, rag, supervisor and
// hitl) on langgraphgo and runs them for an agent configuration.
//
// Every graph shares one State type. Node functions return the full state;
// the graphs have no schema, so the last node result is the new state.
package workflow

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/agentscaffold/rag"
)

// Decision is a reviewer's verdict on pending tool calls.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Review holds tool calls waiting for a human decision.
type Review struct {
	ToolCalls []llms.ToolCall `json:"toolCalls"`
	Decision  Decision        `json:"decision,omitempty"`
	Comment   string          `json:"comment,omitempty"`
}

type reviewJSON struct {
	ToolCalls []ToolCall `json:"toolCalls"`
	Decision  Decision   `json:"decision,omitempty"`
	Comment   string     `json:"comment,omitempty"`
}

func (r Review) MarshalJSON() ([]byte, error) {
	calls := toToolCalls(r.ToolCalls)
	if calls == nil {
		calls = []ToolCall{}
	}
	return json.Marshal(reviewJSON{ToolCalls: calls, Decision: r.Decision, Comment: r.Comment})
}

func (r *Review) UnmarshalJSON(data []byte) error {
	var raw reviewJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Review{ToolCalls: fromToolCalls(raw.ToolCalls), Decision: raw.Decision, Comment: raw.Comment}
	return nil
}

// Pending reports whether the review still waits for a decision.
func (r *Review) Pending() bool {
	return r != nil && r.Decision == ""
}

// State flows through every graph.
type State struct {
	Messages  []llms.MessageContent
	Iteration int
	Next      string
	Rounds    int
	Documents []rag.ScoredDocument
	Review    *Review
	Answer    string
}

// NewState starts a conversation with a user message.
func NewState(input string) State {
	return State{Messages: []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, input)}}
}

// AddUserMessage appends a human message and resets the per-turn counters.
func (s State) AddUserMessage(input string) State {
	s.Messages = append(cloneMessages(s.Messages), llms.TextParts(llms.ChatMessageTypeHuman, input))
	s.Iteration = 0
	s.Rounds = 0
	s.Next = ""
	s.Documents = nil
	s.Answer = ""
	return s
}

// LastAIText returns the text of the most recent AI message.
func (s State) LastAIText() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == llms.ChatMessageTypeAI {
			if t := textOf(s.Messages[i]); t != "" {
				return t
			}
		}
	}
	return ""
}

type stateJSON struct {
	Messages  []Message            `json:"messages"`
	Iteration int                  `json:"iteration"`
	Next      string               `json:"next,omitempty"`
	Rounds    int                  `json:"rounds,omitempty"`
	Documents []rag.ScoredDocument `json:"documents,omitempty"`
	Review    *Review              `json:"review,omitempty"`
	Answer    string               `json:"answer,omitempty"`
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{
		Messages:  ToMessages(s.Messages),
		Iteration: s.Iteration,
		Next:      s.Next,
		Rounds:    s.Rounds,
		Documents: s.Documents,
		Review:    s.Review,
		Answer:    s.Answer,
	})
}

func (s *State) UnmarshalJSON(data []byte) error {
	var raw stateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = State{
		Messages:  FromMessages(raw.Messages),
		Iteration: raw.Iteration,
		Next:      raw.Next,
		Rounds:    raw.Rounds,
		Documents: raw.Documents,
		Review:    raw.Review,
		Answer:    raw.Answer,
	}
	return nil
}

func textOf(m llms.MessageContent) string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if t, ok := p.(llms.TextContent); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

func toolCallsOf(m llms.MessageContent) []llms.ToolCall {
	var calls []llms.ToolCall
	for _, p := range m.Parts {
		if tc, ok := p.(llms.ToolCall); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

func lastHumanText(messages []llms.MessageContent) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llms.ChatMessageTypeHuman {
			return textOf(messages[i])
		}
	}
	return ""
}

func cloneMessages(in []llms.MessageContent) []llms.MessageContent {
	out := make([]llms.MessageContent, len(in))
	copy(out, in)
	return out
}

type streamKey struct{}

// WithStreamingFunc attaches a chunk callback used for the answer-producing
// model calls of a run.
func WithStreamingFunc(ctx context.Context, fn func(ctx context.Context, chunk []byte) error) context.Context {
	return context.WithValue(ctx, streamKey{}, fn)
}

func streamingOptions(ctx context.Context) []llms.CallOption {
	fn, _ := ctx.Value(streamKey{}).(func(ctx context.Context, chunk []byte) error)
	if fn == nil {
		return nil
	}
	return []llms.CallOption{llms.WithStreamingFunc(fn)}
}
