package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// MockModel is a deterministic offline model. It is what the mock provider
// serves so the whole stack runs without credentials.
//
//   - With a "route" tool offered it picks a worker, or FINISH once a worker
//     has answered.
//   - With other tools offered and a user message naming one of them, it
//     requests that tool. Text after the first ':' becomes the argument.
//   - After tool results it summarizes them.
//   - Otherwise it echoes the last user message.
type MockModel struct{}

var _ llms.Model = (*MockModel)(nil)

// NewMockModel creates a MockModel.
func NewMockModel() *MockModel {
	return &MockModel{}
}

func (m *MockModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *MockModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}

	choice := m.respond(messages, opts.Tools)
	if choice.Content != "" && opts.StreamingFunc != nil {
		for _, chunk := range splitChunks(choice.Content) {
			if err := opts.StreamingFunc(ctx, []byte(chunk)); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
}

func (m *MockModel) respond(messages []llms.MessageContent, tools []llms.Tool) *llms.ContentChoice {
	var last llms.MessageContent
	if len(messages) > 0 {
		last = messages[len(messages)-1]
	}
	question := lastText(messages, llms.ChatMessageTypeHuman)

	for _, t := range tools {
		if t.Function != nil && t.Function.Name == "route" {
			next := "FINISH"
			if last.Role != llms.ChatMessageTypeAI {
				next = pickMember(enumValues(t.Function.Parameters, "next"), question)
			}
			return toolCallChoice(len(messages), "route", map[string]any{"next": next})
		}
	}

	if results := trailingToolResults(messages); len(results) > 0 {
		parts := make([]string, len(results))
		for i, r := range results {
			parts[i] = fmt.Sprintf("The %s tool returned: %s", r.Name, r.Content)
		}
		return &llms.ContentChoice{Content: strings.Join(parts, "\n"), StopReason: "stop"}
	}

	if last.Role == llms.ChatMessageTypeHuman {
		for _, t := range tools {
			if t.Function == nil || !mentions(question, t.Function.Name) {
				continue
			}
			return toolCallChoice(len(messages), t.Function.Name, mockArgs(t.Function.Parameters, question))
		}
	}

	return &llms.ContentChoice{Content: "Mock response to: " + question, StopReason: "stop"}
}

func toolCallChoice(n int, name string, args map[string]any) *llms.ContentChoice {
	raw, _ := json.Marshal(args)
	return &llms.ContentChoice{
		StopReason: "tool_calls",
		ToolCalls: []llms.ToolCall{{
			ID:   fmt.Sprintf("call_%d", n),
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      name,
				Arguments: string(raw),
			},
		}},
	}
}

func lastText(messages []llms.MessageContent, role llms.ChatMessageType) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != role {
			continue
		}
		var sb strings.Builder
		for _, p := range messages[i].Parts {
			if tc, ok := p.(llms.TextContent); ok {
				sb.WriteString(tc.Text)
			}
		}
		return sb.String()
	}
	return ""
}

func trailingToolResults(messages []llms.MessageContent) []llms.ToolCallResponse {
	var out []llms.ToolCallResponse
	for i := len(messages) - 1; i >= 0 && messages[i].Role == llms.ChatMessageTypeTool; i-- {
		for _, p := range messages[i].Parts {
			if r, ok := p.(llms.ToolCallResponse); ok {
				out = append([]llms.ToolCallResponse{r}, out...)
			}
		}
	}
	return out
}

func mentions(text, toolName string) bool {
	text = strings.ToLower(text)
	name := strings.ToLower(toolName)
	return strings.Contains(text, name) || strings.Contains(text, strings.ReplaceAll(name, "_", " "))
}

// schemaView is the subset of a JSON schema the mock reads.
type schemaView struct {
	Properties map[string]struct {
		Enum []string `json:"enum"`
	} `json:"properties"`
	Required []string `json:"required"`
}

func decodeSchema(params any) schemaView {
	var s schemaView
	raw, err := json.Marshal(params)
	if err == nil {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

func enumValues(params any, prop string) []string {
	return decodeSchema(params).Properties[prop].Enum
}

func pickMember(options []string, question string) string {
	var members []string
	for _, o := range options {
		if o != "FINISH" {
			members = append(members, o)
		}
	}
	if len(members) == 0 {
		return "FINISH"
	}
	lower := strings.ToLower(question)
	for _, name := range members {
		if strings.Contains(lower, strings.ToLower(name)) {
			return name
		}
	}
	return members[0]
}

func mockArgs(params any, question string) map[string]any {
	payload := question
	if _, after, ok := strings.Cut(question, ":"); ok {
		payload = strings.TrimSpace(after)
	}
	required := decodeSchema(params).Required
	if len(required) == 0 {
		return map[string]any{}
	}
	args := make(map[string]any, len(required))
	for _, r := range required {
		args[r] = payload
	}
	return args
}

func splitChunks(s string) []string {
	words := strings.SplitAfter(s, " ")
	out := words[:0]
	for _, w := range words {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
