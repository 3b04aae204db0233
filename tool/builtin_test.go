package tool

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/agentscaffold/log"
	"github.com/smallnest/agentscaffold/rag"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"1 + 2", 3},
		{"10-4", 6},
		{"-3 * 2", -6},
		{"3 - -2", 5},
		{"9 / 2", 4.5},
		{"10 % 3", 1},
		{"2 ^ 10", 1024},
		{"1.5e2 - 50", 100},
		{"2E+1 * 3", 60},
		{"4 * 2.5e-1", 1},
		{"-2.5e-1 + 1", 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := Evaluate("1e-3 + 2")
	require.NoError(t, err)
	assert.InDelta(t, 2.001, got, 1e-12)

	for _, bad := range []string{"", "42", "a + 1", "1 +", "5 / 0", "5 % 0", "1e-3"} {
		_, err := Evaluate(bad)
		assert.Error(t, err, bad)
	}
}

func TestCurrentTime(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	def := NewCurrentTime(func() time.Time { return fixed })

	out, err := def.Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T12:00:00Z", out)

	out, err = def.Execute(context.Background(), map[string]any{"timezone": "Asia/Tokyo"})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T21:00:00+09:00", out)

	_, err = def.Execute(context.Background(), map[string]any{"timezone": "Mars/Olympus"})
	assert.Error(t, err)
}

func TestWebSearch_Stub(t *testing.T) {
	def := NewWebSearch(nil)

	out, err := def.Execute(context.Background(), map[string]any{"query": "golang generics"})
	require.NoError(t, err)
	assert.Contains(t, out, "1. Title: Overview of golang generics")
	assert.Contains(t, out, "BRAVE_API_KEY")

	_, err = def.Execute(context.Background(), map[string]any{"query": "  "})
	assert.Error(t, err)
	_, err = def.Execute(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestWebSearch_Brave(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Subscription-Token"))
		assert.Equal(t, "langgraph", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("count"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"web":{"results":[{"title":"LangGraph","url":"https://example.com/lg","description":"graphs"}]}}`)
	}))
	defer server.Close()

	brave, err := NewBraveSearch("test-key", WithBraveBaseURL(server.URL), WithBraveCount(3))
	require.NoError(t, err)

	out, err := NewWebSearch(brave).Execute(context.Background(), map[string]any{"query": "langgraph"})
	require.NoError(t, err)
	assert.Equal(t, "1. Title: LangGraph\nURL: https://example.com/lg\nDescription: graphs", out)
}

func TestBraveSearch_Errors(t *testing.T) {
	_, err := NewBraveSearch("")
	assert.Error(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	brave, _ := NewBraveSearch("k", WithBraveBaseURL(server.URL))
	_, err = brave.Search(context.Background(), "x")
	assert.ErrorContains(t, err, "429")

	b, _ := NewBraveSearch("k", WithBraveCount(100))
	assert.Equal(t, 20, b.Count)
}

func TestWebFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Release notes</title><style>body{}</style></head>
<body><nav>menu</nav><h1>Version 2</h1><p>Adds   streaming.</p><script>track()</script></body></html>`)
	}))
	defer server.Close()

	def := NewWebFetch(server.Client())

	out, err := def.Execute(context.Background(), map[string]any{"url": server.URL + "/notes"})
	require.NoError(t, err)
	assert.Equal(t, "Title: Release notes\n\nVersion 2Adds streaming.", out)

	_, err = def.Execute(context.Background(), map[string]any{"url": server.URL + "/missing"})
	assert.ErrorContains(t, err, "404")

	_, err = def.Execute(context.Background(), map[string]any{"url": "ftp://example.com"})
	assert.ErrorContains(t, err, "invalid url")
}

func TestKnowledgeSearch(t *testing.T) {
	kb := rag.NewKnowledgeBase(rag.NewHashEmbedder(64), rag.Options{Logger: &log.NoOpLogger{}})
	_, err := kb.Ingest(context.Background(), []rag.Document{{Content: "Refunds are processed within five days."}}, rag.FormatText)
	require.NoError(t, err)

	def := NewKnowledgeSearch(kb)

	out, err := def.Execute(context.Background(), map[string]any{"query": "how long do refunds take"})
	require.NoError(t, err)
	assert.Contains(t, out, "Refunds are processed")

	out, err = def.Execute(context.Background(), map[string]any{"query": "zebra"})
	require.NoError(t, err)
	assert.Equal(t, "No relevant documents found", out)
}

func TestRegisterBuiltins(t *testing.T) {
	r := NewRegistry(&log.NoOpLogger{})
	require.NoError(t, RegisterBuiltins(r, BuiltinOptions{}))

	for _, name := range []string{"calculator", "current_time", "web_search", "web_fetch"} {
		assert.True(t, r.Has(name), name)
	}
	assert.False(t, r.Has("knowledge_search"))

	kb := rag.NewKnowledgeBase(rag.NewHashEmbedder(0), rag.Options{Logger: &log.NoOpLogger{}})
	require.NoError(t, RegisterBuiltins(r, BuiltinOptions{Knowledge: kb, BraveAPIKey: "key"}))
	assert.True(t, r.Has("knowledge_search"))
}
