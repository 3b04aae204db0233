package tool

import (
	"net/http"
	"time"
)

// BuiltinOptions configures RegisterBuiltins.
type BuiltinOptions struct {
	// BraveAPIKey enables live web search; empty keeps the canned stub.
	BraveAPIKey string
	BraveOpts   []BraveOption
	HTTPClient  *http.Client
	// Knowledge enables knowledge_search when non-nil.
	Knowledge KnowledgeSearcher
	Now       func() time.Time
}

// Builtins returns the builtin tool definitions for opts.
func Builtins(opts BuiltinOptions) ([]*Definition, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	var brave *BraveSearch
	if opts.BraveAPIKey != "" {
		b, err := NewBraveSearch(opts.BraveAPIKey, append([]BraveOption{WithBraveHTTPClient(client)}, opts.BraveOpts...)...)
		if err != nil {
			return nil, err
		}
		brave = b
	}

	defs := []*Definition{
		NewCalculator(),
		NewCurrentTime(opts.Now),
		NewWebSearch(brave),
		NewWebFetch(client),
	}
	if opts.Knowledge != nil {
		defs = append(defs, NewKnowledgeSearch(opts.Knowledge))
	}
	return defs, nil
}

// RegisterBuiltins registers every builtin tool into r.
func RegisterBuiltins(r *Registry, opts BuiltinOptions) error {
	defs, err := Builtins(opts)
	if err != nil {
		return err
	}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}
