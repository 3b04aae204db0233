package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxFetchedText = 8000

// NewWebFetch returns the web_fetch tool, which downloads a page and extracts
// its title and readable text.
func NewWebFetch(client *http.Client) *Definition {
	if client == nil {
		client = http.DefaultClient
	}
	return &Definition{
		Name:        "web_fetch",
		Description: "Fetches a web page over HTTP(S) and returns its title and readable text.",
		Parameters: ObjectSchema(map[string]string{
			"url": "Absolute http or https URL",
		}, "url"),
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			raw, err := StringArg(args, "url")
			if err != nil {
				if raw, err = StringArg(args, "input"); err != nil {
					return nil, fmt.Errorf("missing argument %q", "url")
				}
			}
			return fetchText(ctx, client, raw)
		},
	}
}

func fetchText(ctx context.Context, client *http.Client, raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid url %q", raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "agentscaffold/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s returned status %d", u, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	doc.Find("script, style, noscript, nav, footer, header").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if len(text) > maxFetchedText {
		text = text[:maxFetchedText] + "..."
	}

	if title == "" {
		return text, nil
	}
	return fmt.Sprintf("Title: %s\n\n%s", title, text), nil
}
