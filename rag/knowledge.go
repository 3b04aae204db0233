package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/smallnest/agentscaffold/log"
)

// Options configures a KnowledgeBase.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int
	Logger       log.Logger
}

type entry struct {
	doc    Document
	vector []float32
}

// KnowledgeBase is an in-memory vector index over chunked documents.
type KnowledgeBase struct {
	mu       sync.RWMutex
	embedder Embedder
	splitter textsplitter.TextSplitter
	entries  []entry
	topK     int
	logger   log.Logger
}

// NewKnowledgeBase creates an empty knowledge base. Zero options fall back to
// chunks of 500 characters with 50 overlap and a top-K of 4.
func NewKnowledgeBase(embedder Embedder, opts Options) *KnowledgeBase {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 500
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = min(50, opts.ChunkSize/2)
	}
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	return &KnowledgeBase{
		embedder: embedder,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(opts.ChunkSize),
			textsplitter.WithChunkOverlap(opts.ChunkOverlap),
		),
		topK:   opts.TopK,
		logger: log.OrDefault(opts.Logger),
	}
}

// TopK is the default number of hits for searches that pass k <= 0.
func (kb *KnowledgeBase) TopK() int {
	return kb.topK
}

// Ingest normalizes, chunks and embeds docs, returning the number of chunks added.
func (kb *KnowledgeBase) Ingest(ctx context.Context, docs []Document, format Format) (int, error) {
	var chunks []Document
	for _, d := range docs {
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		text := strings.TrimSpace(PlainText(d.Content, format))
		if text == "" {
			continue
		}
		parts, err := kb.splitter.SplitText(text)
		if err != nil {
			return 0, fmt.Errorf("failed to split document %s: %w", d.ID, err)
		}
		for i, p := range parts {
			meta := make(map[string]any, len(d.Metadata)+3)
			for k, v := range d.Metadata {
				meta[k] = v
			}
			meta["source_id"] = d.ID
			meta["chunk"] = i
			meta["format"] = string(format)
			chunks = append(chunks, Document{
				ID:       fmt.Sprintf("%s#%d", d.ID, i),
				Content:  p,
				Metadata: meta,
			})
		}
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := kb.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}

	kb.mu.Lock()
	for i, c := range chunks {
		kb.entries = append(kb.entries, entry{doc: c, vector: vectors[i]})
	}
	kb.mu.Unlock()

	kb.logger.Info("ingested %d documents as %d chunks", len(docs), len(chunks))
	return len(chunks), nil
}

// Search returns up to k chunks ranked by cosine similarity. Chunks with a
// non-positive score are skipped.
func (kb *KnowledgeBase) Search(ctx context.Context, query string, k int) ([]ScoredDocument, error) {
	if k <= 0 {
		k = kb.topK
	}
	if strings.TrimSpace(query) == "" {
		return []ScoredDocument{}, nil
	}

	qv, err := kb.embedder.EmbedDocument(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	kb.mu.RLock()
	hits := make([]ScoredDocument, 0, len(kb.entries))
	for _, e := range kb.entries {
		score := cosineSimilarity(qv, e.vector)
		if score <= 0 {
			continue
		}
		hits = append(hits, ScoredDocument{Document: e.doc, Score: score})
	}
	kb.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of indexed chunks.
func (kb *KnowledgeBase) Count() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.entries)
}

// Reset drops every chunk.
func (kb *KnowledgeBase) Reset() {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.entries = nil
}
