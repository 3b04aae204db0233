package workflow

import (
	"context"
	"fmt"

	"github.com/smallnest/langgraphgo/graph"
	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/agentscaffold/rag"
)

// NoContextMessage answers questions the knowledge base knows nothing about.
const NoContextMessage = "I could not find any relevant information in the knowledge base to answer that question."

const ragPrompt = `Answer the question using only the context below. If the context does not contain the answer, say so.

Context:
%s`

// NewRAGGraph builds retrieve → generate | no_context.
func NewRAGGraph(opts Options) (*graph.StateRunnable[State], error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	if opts.Knowledge == nil {
		return nil, fmt.Errorf("knowledge base is required for rag graphs")
	}

	workflow := graph.NewStateGraph[State]()

	workflow.AddNode(NodeRetrieve, "Retrieve relevant documents", func(ctx context.Context, state State) (State, error) {
		query := lastHumanText(state.Messages)
		if query == "" {
			state.Documents = nil
			return state, nil
		}
		docs, err := opts.Knowledge.Search(ctx, query, opts.TopK)
		if err != nil {
			return state, fmt.Errorf("failed to retrieve documents: %w", err)
		}
		opts.Logger.Debug("retrieved %d documents", len(docs))
		state.Documents = docs
		return state, nil
	})

	workflow.AddNode(NodeGenerate, "Generate an answer from the documents", func(ctx context.Context, state State) (State, error) {
		prompt := fmt.Sprintf(ragPrompt, rag.FormatContext(state.Documents))
		if opts.SystemPrompt != "" {
			prompt = opts.SystemPrompt + "\n\n" + prompt
		}

		resp, err := opts.Model.GenerateContent(ctx, withSystem(prompt, state.Messages), streamingOptions(ctx)...)
		if err != nil {
			return state, err
		}
		if len(resp.Choices) == 0 {
			return state, fmt.Errorf("empty response from model")
		}

		answer := resp.Choices[0].Content
		state.Messages = append(cloneMessages(state.Messages), llms.TextParts(llms.ChatMessageTypeAI, answer))
		state.Answer = answer
		return state, nil
	})

	workflow.AddNode(NodeNoContext, "Answer without context", func(ctx context.Context, state State) (State, error) {
		state.Messages = append(cloneMessages(state.Messages), llms.TextParts(llms.ChatMessageTypeAI, NoContextMessage))
		state.Answer = NoContextMessage
		return state, nil
	})

	workflow.SetEntryPoint(NodeRetrieve)
	workflow.AddConditionalEdge(NodeRetrieve, func(ctx context.Context, state State) string {
		if len(state.Documents) > 0 {
			return NodeGenerate
		}
		return NodeNoContext
	})
	workflow.AddEdge(NodeGenerate, graph.END)
	workflow.AddEdge(NodeNoContext, graph.END)

	return workflow.Compile()
}
