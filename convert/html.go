// CLAUDE:SUMMARY HTML to Markdown converter — bluemonday sanitization, html-to-markdown rendering, title from <title>.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLConverter converts HTML files to Markdown. Input is sanitized first so
// scripts, styles, and event handlers never reach the Markdown output.
type HTMLConverter struct {
	policy *bluemonday.Policy
	conv   *md.Converter
}

func NewHTMLConverter() *HTMLConverter {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowElements(
		"h1", "h2", "h3", "h4", "h5", "h6",
		"p", "br", "hr", "div", "span", "blockquote", "pre", "code",
		"ul", "ol", "li", "dl", "dt", "dd",
		"table", "thead", "tbody", "tfoot", "tr", "th", "td", "caption",
		"em", "strong", "b", "i", "u", "s", "del", "sub", "sup",
	)
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("src", "alt", "title").OnElements("img")

	return &HTMLConverter{
		policy: p,
		conv: md.NewConverter(
			md.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

func (c *HTMLConverter) Name() string { return "HtmlConverter" }

func (c *HTMLConverter) Accepts(path string, h Hints) bool {
	if h.Extension == ".html" || h.Extension == ".htm" {
		return true
	}
	return strings.HasPrefix(h.MIMEType, "text/html")
}

func (c *HTMLConverter) Convert(ctx context.Context, path string, h Hints) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Title comes from the raw document; sanitization strips <head>.
	title := htmlTitle(data)

	sanitized := c.policy.SanitizeBytes(data)
	markdown, err := c.conv.ConvertString(string(sanitized))
	if err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	markdown = strings.TrimSpace(markdown)
	if markdown != "" {
		markdown += "\n"
	}

	q := NewQuality(c.Name())
	q.Confidence = 0.9
	q.SetMetric("source_bytes", len(data))
	q.AddFormattingLoss(LossCustomStyle)
	if bytes.Contains(data, []byte("<script")) {
		q.AddWarning("scripts removed during sanitization", SeverityInfo, "", 0)
	}

	return &Result{
		Markdown: markdown,
		Title:    title,
		Quality:  q,
	}, nil
}

// htmlTitle extracts the <title> text from an HTML document.
func htmlTitle(data []byte) string {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	var find func(*html.Node) string
	find = func(n *html.Node) string {
		if n.Type == html.ElementNode && n.DataAtom == atom.Title {
			if n.FirstChild != nil {
				return strings.TrimSpace(n.FirstChild.Data)
			}
			return ""
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if t := find(child); t != "" {
				return t
			}
		}
		return ""
	}
	return clipTitle(find(doc))
}
