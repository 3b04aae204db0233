package workflow

import (
	"context"
	"fmt"
	"slices"

	"github.com/smallnest/langgraphgo/graph"
	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/agentscaffold/log"
	"github.com/smallnest/agentscaffold/rag"
	"github.com/smallnest/agentscaffold/tool"
)

// Node names.
const (
	NodeAgent       = "agent"
	NodeTools       = "tools"
	NodeRetrieve    = "retrieve"
	NodeGenerate    = "generate"
	NodeNoContext   = "no_context"
	NodeSupervisor  = "supervisor"
	NodeHumanReview = "human_review"
)

// MaxIterationsMessage is appended when the ReAct loop hits its cap.
const MaxIterationsMessage = "Maximum iterations reached. Please try a simpler query."

// DefaultMaxIterations applies when Options.MaxIterations is zero.
const DefaultMaxIterations = 10

// Retriever finds documents for a query; *rag.KnowledgeBase satisfies it.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]rag.ScoredDocument, error)
}

// Options configures a graph.
type Options struct {
	Model         llms.Model
	SystemPrompt  string
	Registry      *tool.Registry
	Tools         []string
	MaxIterations int

	// rag
	Knowledge Retriever
	TopK      int

	// supervisor
	Members   []Member
	MaxRounds int

	Logger log.Logger
}

func (o *Options) normalize() error {
	if o.Model == nil {
		return fmt.Errorf("model is required")
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if len(o.Tools) > 0 && o.Registry == nil {
		return fmt.Errorf("tool registry is required when tools are configured")
	}
	o.Logger = log.OrDefault(o.Logger)
	return nil
}

func (o *Options) llmTools() ([]llms.Tool, error) {
	if len(o.Tools) == 0 {
		return nil, nil
	}
	return o.Registry.LLMTools(o.Tools)
}

func withSystem(prompt string, messages []llms.MessageContent) []llms.MessageContent {
	if prompt == "" {
		return messages
	}
	out := make([]llms.MessageContent, 0, len(messages)+1)
	out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, prompt))
	return append(out, messages...)
}

// NewReActGraph builds the agent ⇄ tools loop.
func NewReActGraph(opts Options) (*graph.StateRunnable[State], error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	toolDefs, err := opts.llmTools()
	if err != nil {
		return nil, err
	}

	workflow := graph.NewStateGraph[State]()
	workflow.AddNode(NodeAgent, "ReAct agent decision maker", agentNode(&opts, toolDefs))
	workflow.AddNode(NodeTools, "Tool execution node", toolsNode(&opts))

	workflow.SetEntryPoint(NodeAgent)
	workflow.AddConditionalEdge(NodeAgent, func(ctx context.Context, state State) string {
		if hasToolCalls(state) {
			return NodeTools
		}
		return graph.END
	})
	workflow.AddEdge(NodeTools, NodeAgent)

	return workflow.Compile()
}

// agentNode calls the model once per iteration. At the cap it appends
// MaxIterationsMessage instead.
func agentNode(opts *Options, toolDefs []llms.Tool) func(ctx context.Context, state State) (State, error) {
	return func(ctx context.Context, state State) (State, error) {
		if len(state.Messages) == 0 {
			return state, fmt.Errorf("no messages in state")
		}

		if state.Iteration >= opts.MaxIterations {
			opts.Logger.Warn("agent reached %d iterations", opts.MaxIterations)
			state.Messages = append(cloneMessages(state.Messages), llms.TextParts(llms.ChatMessageTypeAI, MaxIterationsMessage))
			state.Answer = MaxIterationsMessage
			return state, nil
		}
		state.Iteration++

		callOpts := streamingOptions(ctx)
		if len(toolDefs) > 0 {
			callOpts = append(callOpts, llms.WithTools(toolDefs))
		}

		resp, err := opts.Model.GenerateContent(ctx, withSystem(opts.SystemPrompt, state.Messages), callOpts...)
		if err != nil {
			return state, err
		}
		if len(resp.Choices) == 0 {
			return state, fmt.Errorf("empty response from model")
		}
		choice := resp.Choices[0]
		if choice.Content == "" && len(choice.ToolCalls) == 0 {
			return state, fmt.Errorf("empty response from model")
		}

		aiMsg := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		if choice.Content != "" {
			aiMsg.Parts = append(aiMsg.Parts, llms.TextPart(choice.Content))
		}
		for _, tc := range choice.ToolCalls {
			aiMsg.Parts = append(aiMsg.Parts, tc)
		}
		state.Messages = append(cloneMessages(state.Messages), aiMsg)
		if len(choice.ToolCalls) == 0 {
			state.Answer = choice.Content
		}
		return state, nil
	}
}

// toolsNode executes the tool calls of the last AI message. Failures become
// "Error: ..." tool results so the model can react to them.
func toolsNode(opts *Options) func(ctx context.Context, state State) (State, error) {
	return func(ctx context.Context, state State) (State, error) {
		if len(state.Messages) == 0 {
			return state, fmt.Errorf("no messages in state")
		}
		last := state.Messages[len(state.Messages)-1]
		if last.Role != llms.ChatMessageTypeAI {
			return state, fmt.Errorf("last message is not an AI message")
		}
		state.Messages = append(cloneMessages(state.Messages), executeToolCalls(ctx, opts, toolCallsOf(last))...)
		return state, nil
	}
}

func executeToolCalls(ctx context.Context, opts *Options, calls []llms.ToolCall) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(calls))
	for _, tc := range calls {
		name, rawArgs := "", ""
		if tc.FunctionCall != nil {
			name, rawArgs = tc.FunctionCall.Name, tc.FunctionCall.Arguments
		}

		var content string
		if !slices.Contains(opts.Tools, name) {
			content = fmt.Sprintf("Error: tool %s is not available to this agent", name)
		} else if res, err := opts.Registry.Execute(ctx, name, tool.ParseArgs(rawArgs)); err != nil {
			content = fmt.Sprintf("Error: %v", err)
		} else {
			content = tool.FormatResult(res)
		}

		out = append(out, llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{llms.ToolCallResponse{
				ToolCallID: tc.ID,
				Name:       name,
				Content:    content,
			}},
		})
	}
	return out
}

func hasToolCalls(state State) bool {
	if len(state.Messages) == 0 {
		return false
	}
	last := state.Messages[len(state.Messages)-1]
	return last.Role == llms.ChatMessageTypeAI && len(toolCallsOf(last)) > 0
}
