package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// BraveSearch queries the Brave Search API.
type BraveSearch struct {
	APIKey  string
	BaseURL string
	Count   int
	Country string
	Lang    string
	Client  *http.Client
}

type BraveOption func(*BraveSearch)

// WithBraveBaseURL sets the base URL for the Brave Search API.
func WithBraveBaseURL(baseURL string) BraveOption {
	return func(b *BraveSearch) {
		b.BaseURL = baseURL
	}
}

// WithBraveCount sets the number of results to return (1-20).
func WithBraveCount(count int) BraveOption {
	return func(b *BraveSearch) {
		b.Count = max(1, min(count, 20))
	}
}

// WithBraveHTTPClient sets the HTTP client used for requests.
func WithBraveHTTPClient(c *http.Client) BraveOption {
	return func(b *BraveSearch) {
		b.Client = c
	}
}

// NewBraveSearch creates a Brave client. apiKey must not be empty.
func NewBraveSearch(apiKey string, opts ...BraveOption) (*BraveSearch, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("BRAVE_API_KEY not set")
	}

	b := &BraveSearch{
		APIKey:  apiKey,
		BaseURL: "https://api.search.brave.com/res/v1/web/search",
		Count:   5,
		Country: "US",
		Lang:    "en",
		Client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// SearchResult is one web search hit.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type braveResponse struct {
	Web struct {
		Results []SearchResult `json:"results"`
	} `json:"web"`
}

// Search runs query against the API.
func (b *BraveSearch) Search(ctx context.Context, query string) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", fmt.Sprintf("%d", b.Count))
	if b.Country != "" {
		params.Set("country", b.Country)
	}
	if b.Lang != "" {
		params.Set("search_lang", b.Lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.APIKey)

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave api returned status: %d", resp.StatusCode)
	}

	var out braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Web.Results, nil
}

// NewWebSearch returns the web_search tool. With a nil client it answers with
// canned results so agents work offline.
func NewWebSearch(brave *BraveSearch) *Definition {
	return &Definition{
		Name:        "web_search",
		Description: "Searches the web and returns the top results with title, URL and description.",
		Parameters: ObjectSchema(map[string]string{
			"query": "Search query",
		}, "query"),
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			query, err := StringArg(args, "query")
			if err != nil {
				if query, err = StringArg(args, "input"); err != nil {
					return nil, fmt.Errorf("missing argument %q", "query")
				}
			}
			if strings.TrimSpace(query) == "" {
				return nil, fmt.Errorf("query must not be empty")
			}

			var results []SearchResult
			if brave == nil {
				results = stubResults(query)
			} else if results, err = brave.Search(ctx, query); err != nil {
				return nil, err
			}
			return formatResults(results), nil
		},
	}
}

func stubResults(query string) []SearchResult {
	slug := url.QueryEscape(strings.ToLower(query))
	return []SearchResult{
		{
			Title:       fmt.Sprintf("Overview of %s", query),
			URL:         "https://example.com/search?q=" + slug,
			Description: fmt.Sprintf("Placeholder result for %q. Configure BRAVE_API_KEY for live search.", query),
		},
		{
			Title:       fmt.Sprintf("%s - reference", query),
			URL:         "https://example.org/wiki/" + slug,
			Description: "Placeholder reference entry.",
		},
	}
}

func formatResults(results []SearchResult) string {
	if len(results) == 0 {
		return "No results found"
	}
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. Title: %s\nURL: %s\nDescription: %s\n\n", i+1, r.Title, r.URL, r.Description)
	}
	return strings.TrimSpace(sb.String())
}
