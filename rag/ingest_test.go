package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainText(t *testing.T) {
	md := PlainText("# Title\n\nSome *emphasis* and a [link](https://example.com).", FormatMarkdown)
	assert.Contains(t, md, "Title")
	assert.Contains(t, md, "Some emphasis and a link.")
	assert.NotContains(t, md, "<")

	html := PlainText("<div><h1>Hello</h1><p>a &lt; b</p><style>p{}</style></div>", FormatHTML)
	assert.Contains(t, html, "Hello")
	assert.Contains(t, html, "a < b")
	assert.NotContains(t, html, "p{}")

	assert.Equal(t, "  raw  ", PlainText("  raw  ", FormatText))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "TEXT": FormatText, "md": FormatMarkdown, "markdown": FormatMarkdown, "html": FormatHTML} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(0)
	assert.Equal(t, 256, e.GetDimension())

	a, _ := e.EmbedDocument(context.Background(), "vector search")
	b, _ := e.EmbedDocument(context.Background(), "search vectors for search")
	c, _ := e.EmbedDocument(context.Background(), "")

	assert.Greater(t, cosineSimilarity(a, b), 0.0)
	assert.Equal(t, 0.0, cosineSimilarity(a, c))
	assert.InDelta(t, 1.0, cosineSimilarity(a, a), 1e-6)
}

func TestFormatContext(t *testing.T) {
	out := FormatContext([]ScoredDocument{
		{Document: Document{Content: " first "}},
		{Document: Document{Content: "second"}},
	})
	assert.Equal(t, "[1] first\n[2] second", out)
}
