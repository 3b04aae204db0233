package workflow

import (
	"context"
	"fmt"

	"github.com/smallnest/langgraphgo/graph"
	"github.com/tmc/langchaingo/llms"
)

// NewHITLGraph builds agent → human_review → tools → agent. Tool calls wait
// for a reviewer's decision before they run.
//
// Runs should interrupt before human_review (see InterruptConfig). A resumed
// run starts at human_review with the decision set; any later tool request
// reaching human_review undecided raises a *graph.NodeInterrupt.
func NewHITLGraph(opts Options) (*graph.StateRunnable[State], error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	toolDefs, err := opts.llmTools()
	if err != nil {
		return nil, err
	}

	workflow := graph.NewStateGraph[State]()

	callModel := agentNode(&opts, toolDefs)
	workflow.AddNode(NodeAgent, "Agent proposing actions", func(ctx context.Context, state State) (State, error) {
		state, err := callModel(ctx, state)
		if err != nil {
			return state, err
		}
		state.Review = nil
		if hasToolCalls(state) {
			state.Review = &Review{ToolCalls: toolCallsOf(state.Messages[len(state.Messages)-1])}
		}
		return state, nil
	})

	workflow.AddNode(NodeHumanReview, "Human approval of tool calls", func(ctx context.Context, state State) (State, error) {
		if state.Review == nil {
			return state, nil
		}
		if state.Review.Pending() {
			return state, &graph.NodeInterrupt{Node: NodeHumanReview, Value: state.Review}
		}
		if state.Review.Decision == DecisionReject {
			reason := "Tool call rejected by reviewer"
			if state.Review.Comment != "" {
				reason += ": " + state.Review.Comment
			}
			msgs := cloneMessages(state.Messages)
			for _, tc := range state.Review.ToolCalls {
				name := ""
				if tc.FunctionCall != nil {
					name = tc.FunctionCall.Name
				}
				msgs = append(msgs, llms.MessageContent{
					Role: llms.ChatMessageTypeTool,
					Parts: []llms.ContentPart{llms.ToolCallResponse{
						ToolCallID: tc.ID,
						Name:       name,
						Content:    reason,
					}},
				})
			}
			state.Messages = msgs
			state.Review = nil
		}
		return state, nil
	})

	workflow.AddNode(NodeTools, "Execute approved tool calls", func(ctx context.Context, state State) (State, error) {
		if state.Review == nil {
			return state, fmt.Errorf("no approved tool calls")
		}
		state.Messages = append(cloneMessages(state.Messages), executeToolCalls(ctx, &opts, state.Review.ToolCalls)...)
		state.Review = nil
		return state, nil
	})

	workflow.SetEntryPoint(NodeAgent)
	workflow.AddConditionalEdge(NodeAgent, func(ctx context.Context, state State) string {
		if state.Review != nil {
			return NodeHumanReview
		}
		return graph.END
	})
	workflow.AddConditionalEdge(NodeHumanReview, func(ctx context.Context, state State) string {
		if state.Review != nil && state.Review.Decision == DecisionApprove {
			return NodeTools
		}
		return NodeAgent
	})
	workflow.AddEdge(NodeTools, NodeAgent)

	return workflow.Compile()
}

// InterruptConfig is the run configuration for a fresh hitl run.
func InterruptConfig() *graph.Config {
	return &graph.Config{InterruptBefore: []string{NodeHumanReview}}
}

// ResumeConfig is the run configuration for continuing after a decision.
func ResumeConfig() *graph.Config {
	return &graph.Config{ResumeFrom: []string{NodeHumanReview}}
}
