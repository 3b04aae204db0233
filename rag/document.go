// Package rag is the knowledge base behind the rag graph and the
// knowledge_search tool: ingestion, chunking, embeddings and vector search.
package rag

import (
	"fmt"
	"strings"
)

// Format is the markup of an ingested document.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat maps a format name to a Format; empty means text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unsupported document format %q", s)
	}
}

// Document is a unit of knowledge. After ingestion each chunk is a Document
// whose metadata records its source ID and chunk index.
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ScoredDocument is a search hit.
type ScoredDocument struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// FormatContext renders hits as a numbered context block for a prompt.
func FormatContext(docs []ScoredDocument) string {
	var sb strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, strings.TrimSpace(d.Document.Content))
	}
	return strings.TrimSpace(sb.String())
}
