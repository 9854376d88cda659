// CLAUDE:SUMMARY Plain text and Markdown passthrough converter with heading-based title detection.
package convert

import (
	"context"
	"os"
	"strings"
)

var textExtensions = map[string]bool{
	".txt":      true,
	".text":     true,
	".md":       true,
	".markdown": true,
}

// TextConverter passes plain text and Markdown files through unchanged,
// apart from line-ending normalization. It is the generic fallback.
type TextConverter struct{}

func NewTextConverter() *TextConverter { return &TextConverter{} }

func (c *TextConverter) Name() string { return "TextConverter" }

func (c *TextConverter) Accepts(path string, h Hints) bool {
	if textExtensions[h.Extension] {
		return true
	}
	return strings.HasPrefix(h.MIMEType, "text/plain")
}

func (c *TextConverter) Convert(ctx context.Context, path string, h Hints) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	markdown := strings.ReplaceAll(string(data), "\r\n", "\n")
	markdown = strings.TrimRight(markdown, "\n")
	if markdown != "" {
		markdown += "\n"
	}

	title := textTitle(markdown)

	q := NewQuality(c.Name())
	q.SetMetric("source_bytes", len(data))

	return &Result{
		Markdown: markdown,
		Title:    title,
		Quality:  q,
	}, nil
}

// textTitle returns the first ATX heading, or the first non-empty line.
func textTitle(text string) string {
	var fallback string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			heading := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			heading = strings.TrimSpace(strings.TrimRight(heading, "#"))
			if heading != "" {
				return clipTitle(heading)
			}
			continue
		}
		if fallback == "" {
			fallback = trimmed
		}
	}
	return clipTitle(fallback)
}

func clipTitle(s string) string {
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
