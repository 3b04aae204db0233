package workflow

import (
	"github.com/tmc/langchaingo/llms"
)

// Message is the flat, serializable form of an llms.MessageContent used for
// checkpoints and conversation history.
type Message struct {
	Role       string          `json:"role"`
	Content    string          `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is the serialized form of an llms.ToolCall. llms.ToolCall does not
// survive a JSON round trip, so checkpoints store this flat shape instead.
type ToolCall struct {
	ID        string `json:"id"`
	Type      string `json:"type,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

func toToolCalls(in []llms.ToolCall) []ToolCall {
	if len(in) == 0 {
		return nil
	}
	out := make([]ToolCall, len(in))
	for i, tc := range in {
		out[i] = ToolCall{ID: tc.ID, Type: tc.Type}
		if tc.FunctionCall != nil {
			out[i].Name = tc.FunctionCall.Name
			out[i].Arguments = tc.FunctionCall.Arguments
		}
	}
	return out
}

func fromToolCalls(in []ToolCall) []llms.ToolCall {
	if len(in) == 0 {
		return nil
	}
	out := make([]llms.ToolCall, len(in))
	for i, tc := range in {
		out[i] = llms.ToolCall{
			ID:           tc.ID,
			Type:         tc.Type,
			FunctionCall: &llms.FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
		}
	}
	return out
}

// ToMessages flattens model messages. A tool message with several responses
// yields one Message per response.
func ToMessages(in []llms.MessageContent) []Message {
	out := make([]Message, 0, len(in))
	for _, mc := range in {
		if mc.Role == llms.ChatMessageTypeTool {
			for _, p := range mc.Parts {
				if r, ok := p.(llms.ToolCallResponse); ok {
					out = append(out, Message{
						Role:       string(mc.Role),
						Content:    r.Content,
						ToolCallID: r.ToolCallID,
						Name:       r.Name,
					})
				}
			}
			continue
		}
		out = append(out, Message{
			Role:      string(mc.Role),
			Content:   textOf(mc),
			ToolCalls: toToolCalls(toolCallsOf(mc)),
		})
	}
	return out
}

// FromMessages rebuilds model messages.
func FromMessages(in []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(in))
	for _, m := range in {
		role := llms.ChatMessageType(m.Role)
		if role == llms.ChatMessageTypeTool {
			out = append(out, llms.MessageContent{
				Role: role,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: m.ToolCallID,
					Name:       m.Name,
					Content:    m.Content,
				}},
			})
			continue
		}
		mc := llms.MessageContent{Role: role}
		if m.Content != "" {
			mc.Parts = append(mc.Parts, llms.TextPart(m.Content))
		}
		for _, tc := range fromToolCalls(m.ToolCalls) {
			mc.Parts = append(mc.Parts, tc)
		}
		out = append(out, mc)
	}
	return out
}
