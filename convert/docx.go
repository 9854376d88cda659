// CLAUDE:SUMMARY DOCX to Markdown converter — paragraph walk over word/document.xml inside the ZIP archive.
package convert

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"strings"
)

// DOCXConverter converts Word documents by reading word/document.xml from the
// ZIP archive. Heading styles become Markdown headings; everything else
// becomes paragraphs. Images, tables structure, and character styling are
// dropped, which the quality record reports.
type DOCXConverter struct{}

func NewDOCXConverter() *DOCXConverter { return &DOCXConverter{} }

func (c *DOCXConverter) Name() string { return "DocxConverter" }

func (c *DOCXConverter) Accepts(path string, h Hints) bool {
	return h.Extension == ".docx"
}

func (c *DOCXConverter) Convert(ctx context.Context, path string, h Hints) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("word/document.xml not found in archive")
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var blocks []string
	var title string
	var currentText strings.Builder
	var inParagraph bool
	var paragraphStyle string
	headings, paragraphs := 0, 0

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "p":
				inParagraph = true
				currentText.Reset()
				paragraphStyle = ""
			case t.Name.Local == "pStyle" && inParagraph:
				for _, attr := range t.Attr {
					if attr.Name.Local == "val" {
						paragraphStyle = attr.Value
					}
				}
			}

		case xml.CharData:
			if inParagraph {
				currentText.Write(t)
			}

		case xml.EndElement:
			if t.Name.Local == "p" && inParagraph {
				inParagraph = false
				text := strings.TrimSpace(currentText.String())
				if text == "" {
					continue
				}

				if level := docxHeadingLevel(paragraphStyle); level > 0 {
					if title == "" {
						title = clipTitle(text)
					}
					blocks = append(blocks, strings.Repeat("#", level)+" "+text)
					headings++
				} else {
					blocks = append(blocks, text)
					paragraphs++
				}
			}
		}
	}

	markdown := strings.Join(blocks, "\n\n")
	if markdown != "" {
		markdown += "\n"
	}

	q := NewQuality(c.Name())
	q.Confidence = 0.9
	q.SetMetric("heading_count", headings)
	q.SetMetric("paragraph_count", paragraphs)
	q.AddFormattingLoss(LossFontStyle)
	q.AddFormattingLoss(LossImage)
	q.AddFormattingLoss(LossTableFormatting)
	if markdown == "" {
		q.AddWarning("document body holds no text", SeverityHigh, "", 0)
		q.IsPartial = true
		q.Confidence = 0.2
	}

	return &Result{
		Markdown: markdown,
		Title:    title,
		Quality:  q,
	}, nil
}

// docxHeadingLevel extracts the heading level from a paragraph style name.
// e.g. "Heading1" → 1, "Heading2" → 2, "Title" → 1, etc.
func docxHeadingLevel(style string) int {
	lower := strings.ToLower(style)

	if lower == "title" {
		return 1
	}
	if lower == "subtitle" {
		return 2
	}

	// "Heading1", "heading1", "Titre1", etc.
	for _, prefix := range []string{"heading", "titre", "überschrift"} {
		if strings.HasPrefix(lower, prefix) {
			rest := lower[len(prefix):]
			if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
				return int(rest[0] - '0')
			}
		}
	}
	return 0
}
