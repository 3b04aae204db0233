package rag

import (
	stdhtml "html"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

var stripPolicy = bluemonday.StrictPolicy()

// block closers that should survive tag stripping as line breaks
var blockBreaks = strings.NewReplacer(
	"</p>", "</p>\n\n",
	"<br>", "\n",
	"<br/>", "\n",
	"<br />", "\n",
	"</li>", "</li>\n",
	"</h1>", "</h1>\n\n",
	"</h2>", "</h2>\n\n",
	"</h3>", "</h3>\n\n",
	"</div>", "</div>\n",
)

// PlainText converts content in the given format to plain text.
func PlainText(content string, format Format) string {
	switch format {
	case FormatMarkdown:
		return stripHTML(string(renderMarkdown(content)))
	case FormatHTML:
		return stripHTML(content)
	default:
		return content
	}
}

func renderMarkdown(md string) []byte {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(md))

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.Render(doc, renderer)
}

func stripHTML(s string) string {
	text := stdhtml.UnescapeString(stripPolicy.Sanitize(blockBreaks.Replace(s)))

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
