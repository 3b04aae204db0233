package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/smallnest/langgraphgo/graph"
	"github.com/tmc/langchaingo/llms"
)

// Finish ends a supervisor run.
const Finish = "FINISH"

// Member is a worker graph under a supervisor.
type Member struct {
	Name     string
	Runnable *graph.StateRunnable[State]
}

// NewSupervisorGraph builds a supervisor that routes between member graphs
// with a "route" tool until it answers FINISH or MaxRounds members have run.
func NewSupervisorGraph(opts Options) (*graph.StateRunnable[State], error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	if len(opts.Members) == 0 {
		return nil, fmt.Errorf("supervisor requires at least one member")
	}
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = opts.MaxIterations
	}

	memberNames := make([]string, 0, len(opts.Members))
	for _, m := range opts.Members {
		if m.Name == "" || m.Name == NodeSupervisor || m.Name == graph.END || m.Name == Finish {
			return nil, fmt.Errorf("invalid member name %q", m.Name)
		}
		if slices.Contains(memberNames, m.Name) {
			return nil, fmt.Errorf("duplicate member name %q", m.Name)
		}
		memberNames = append(memberNames, m.Name)
	}

	routeTool := llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "route",
			Description: "Select the next role.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"next": map[string]any{
						"type": "string",
						"enum": append(slices.Clone(memberNames), Finish),
					},
				},
				"required": []string{"next"},
			},
		},
	}

	systemPrompt := fmt.Sprintf(
		"You are a supervisor tasked with managing a conversation between the following workers: %s. Given the following user request, respond with the worker to act next. Each worker will perform a task and respond with their results and status. When finished, respond with FINISH. You MUST use the 'route' tool to select the next worker or to finish. Do not provide any other text response.",
		strings.Join(memberNames, ", "),
	)
	if opts.SystemPrompt != "" {
		systemPrompt = opts.SystemPrompt + "\n\n" + systemPrompt
	}

	workflow := graph.NewStateGraph[State]()

	workflow.AddNode(NodeSupervisor, "Supervisor orchestration node", func(ctx context.Context, state State) (State, error) {
		if state.Rounds >= opts.MaxRounds {
			opts.Logger.Warn("supervisor reached %d rounds", opts.MaxRounds)
			state.Next = Finish
			return state, nil
		}

		resp, err := opts.Model.GenerateContent(ctx, withSystem(systemPrompt, state.Messages),
			llms.WithTools([]llms.Tool{routeTool}),
			llms.WithToolChoice("auto"),
		)
		if err != nil {
			return state, err
		}
		if len(resp.Choices) == 0 || len(resp.Choices[0].ToolCalls) == 0 {
			return state, fmt.Errorf("supervisor did not select a next step")
		}

		tc := resp.Choices[0].ToolCalls[0]
		var args struct {
			Next string `json:"next"`
		}
		if tc.FunctionCall == nil {
			return state, fmt.Errorf("supervisor did not select a next step")
		}
		if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), &args); err != nil {
			return state, fmt.Errorf("failed to parse route arguments: %w", err)
		}
		state.Next = args.Next
		return state, nil
	})

	for _, m := range opts.Members {
		workflow.AddNode(m.Name, fmt.Sprintf("Agent: %s", m.Name), func(ctx context.Context, state State) (State, error) {
			// members start their own loop budget on the shared conversation
			in := State{Messages: cloneMessages(state.Messages)}
			out, err := m.Runnable.Invoke(ctx, in)
			if err != nil {
				return state, fmt.Errorf("agent %s failed: %w", m.Name, err)
			}
			state.Messages = out.Messages
			state.Answer = out.Answer
			state.Rounds++
			return state, nil
		})
		workflow.AddEdge(m.Name, NodeSupervisor)
	}

	workflow.SetEntryPoint(NodeSupervisor)
	workflow.AddConditionalEdge(NodeSupervisor, func(ctx context.Context, state State) string {
		if state.Next == Finish || !slices.Contains(memberNames, state.Next) {
			return graph.END
		}
		return state.Next
	})

	return workflow.Compile()
}
