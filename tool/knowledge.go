package tool

import (
	"context"
	"fmt"

	"github.com/smallnest/agentscaffold/rag"
)

// KnowledgeSearcher is the part of the knowledge base the tool needs.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, k int) ([]rag.ScoredDocument, error)
}

// NewKnowledgeSearch returns the knowledge_search tool.
func NewKnowledgeSearch(kb KnowledgeSearcher) *Definition {
	return &Definition{
		Name:        "knowledge_search",
		Description: "Searches the ingested knowledge base and returns the most relevant passages.",
		Parameters: ObjectSchema(map[string]string{
			"query": "What to look up",
		}, "query"),
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			query, err := StringArg(args, "query")
			if err != nil {
				if query, err = StringArg(args, "input"); err != nil {
					return nil, fmt.Errorf("missing argument %q", "query")
				}
			}
			hits, err := kb.Search(ctx, query, 0)
			if err != nil {
				return nil, err
			}
			if len(hits) == 0 {
				return "No relevant documents found", nil
			}
			return rag.FormatContext(hits), nil
		},
	}
}
