package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/agentscaffold/log"
)

func newKB() *KnowledgeBase {
	return NewKnowledgeBase(NewHashEmbedder(128), Options{ChunkSize: 200, ChunkOverlap: 20, TopK: 2, Logger: &log.NoOpLogger{}})
}

func TestKnowledgeBase_IngestAndSearch(t *testing.T) {
	kb := newKB()
	ctx := context.Background()

	n, err := kb.Ingest(ctx, []Document{
		{ID: "go", Content: "Go channels let goroutines communicate safely."},
		{ID: "tea", Content: "Green tea is brewed at lower temperatures than black tea."},
	}, FormatText)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, kb.Count())

	hits, err := kb.Search(ctx, "how do goroutines communicate", 0)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "go", hits[0].Document.Metadata["source_id"])
	assert.Greater(t, hits[0].Score, 0.0)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestKnowledgeBase_SkipsNonPositiveScores(t *testing.T) {
	kb := newKB()
	ctx := context.Background()

	_, err := kb.Ingest(ctx, []Document{{Content: "apples and oranges"}}, FormatText)
	require.NoError(t, err)

	hits, err := kb.Search(ctx, "quantum chromodynamics", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = kb.Search(ctx, "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestKnowledgeBase_ChunksLongDocuments(t *testing.T) {
	kb := newKB()

	long := strings.Repeat("Agents call tools to answer questions. ", 30)
	n, err := kb.Ingest(context.Background(), []Document{{ID: "long", Content: long}}, FormatText)
	require.NoError(t, err)
	assert.Greater(t, n, 1)

	hits, err := kb.Search(context.Background(), "tools", 10)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(hits), 10)
	for _, h := range hits {
		assert.LessOrEqual(t, len(h.Document.Content), 200)
		assert.Equal(t, "long", h.Document.Metadata["source_id"])
	}
}

func TestKnowledgeBase_MarkdownAndHTML(t *testing.T) {
	kb := newKB()
	ctx := context.Background()

	_, err := kb.Ingest(ctx, []Document{{ID: "md", Content: "# Deployment\n\nUse **blue green** releases."}}, FormatMarkdown)
	require.NoError(t, err)
	_, err = kb.Ingest(ctx, []Document{{ID: "html", Content: "<html><script>var x;</script><p>Rollback &amp; recovery plan</p></html>"}}, FormatHTML)
	require.NoError(t, err)

	hits, err := kb.Search(ctx, "blue green releases", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.NotContains(t, hits[0].Document.Content, "**")
	assert.NotContains(t, hits[0].Document.Content, "<")

	hits, err = kb.Search(ctx, "rollback recovery", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Document.Content, "Rollback & recovery plan")
	assert.NotContains(t, hits[0].Document.Content, "var x")
}

func TestKnowledgeBase_Reset(t *testing.T) {
	kb := newKB()
	_, _ = kb.Ingest(context.Background(), []Document{{Content: "something useful"}}, FormatText)
	kb.Reset()
	assert.Equal(t, 0, kb.Count())
}
