package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRegistryDispatch(t *testing.T) {
	dir := t.TempDir()
	reg := DefaultRegistry(nil)

	tests := []struct {
		name      string
		content   string
		converter string
	}{
		{"notes.txt", "hello", "TextConverter"},
		{"readme.md", "# Readme\n", "TextConverter"},
		{"data.csv", "a,b\n1,2\n", "CsvConverter"},
		{"page.html", "<html><body><p>x</p></body></html>", "HtmlConverter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.name, tt.content)
			res, err := reg.Convert(context.Background(), path)
			if err != nil {
				t.Fatalf("convert: %v", err)
			}
			if res.Quality == nil || res.Quality.ConverterUsed != tt.converter {
				t.Errorf("converter = %v, want %s", res.Quality, tt.converter)
			}
		})
	}
}

func TestRegistryUnsupported(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "archive.zip", "PK")

	reg := DefaultRegistry(nil)
	_, err := reg.Convert(context.Background(), path)
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("error %v does not wrap ErrUnsupported", err)
	}
	var ufe *UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("error %T is not UnsupportedFormatError", err)
	}
	if ufe.Extension != ".zip" {
		t.Errorf("extension = %q", ufe.Extension)
	}
}

func TestRegistryMissingFile(t *testing.T) {
	reg := DefaultRegistry(nil)
	_, err := reg.Convert(context.Background(), filepath.Join(t.TempDir(), "gone.txt"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if errors.Is(err, ErrUnsupported) {
		t.Error("missing file must not be classified as unsupported")
	}
}

func TestRegistryPriorityOrder(t *testing.T) {
	reg := DefaultRegistry(nil)
	names := reg.Converters()
	if len(names) == 0 {
		t.Fatal("no converters registered")
	}
	// The generic text fallback probes last.
	if names[len(names)-1] != "TextConverter" {
		t.Errorf("probe order = %v, want TextConverter last", names)
	}
}

func TestTextConverter(t *testing.T) {
	dir := t.TempDir()
	reg := DefaultRegistry(nil)

	t.Run("normalizes line endings", func(t *testing.T) {
		path := writeFile(t, dir, "crlf.txt", "one\r\ntwo\r\n")
		res, err := reg.Convert(context.Background(), path)
		if err != nil {
			t.Fatal(err)
		}
		if res.Markdown != "one\ntwo\n" {
			t.Errorf("markdown = %q", res.Markdown)
		}
	})

	t.Run("title from heading", func(t *testing.T) {
		path := writeFile(t, dir, "doc.md", "preamble\n\n# The Title #\n\nbody\n")
		res, err := reg.Convert(context.Background(), path)
		if err != nil {
			t.Fatal(err)
		}
		if res.Title != "The Title" {
			t.Errorf("title = %q", res.Title)
		}
	})

	t.Run("title falls back to first line", func(t *testing.T) {
		path := writeFile(t, dir, "plain.txt", "\nFirst line here\nsecond\n")
		res, err := reg.Convert(context.Background(), path)
		if err != nil {
			t.Fatal(err)
		}
		if res.Title != "First line here" {
			t.Errorf("title = %q", res.Title)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeFile(t, dir, "empty.txt", "")
		res, err := reg.Convert(context.Background(), path)
		if err != nil {
			t.Fatal(err)
		}
		if res.Markdown != "" || res.Title != "" {
			t.Errorf("markdown = %q, title = %q", res.Markdown, res.Title)
		}
	})
}

func TestCSVConverter(t *testing.T) {
	dir := t.TempDir()
	conv := NewCSVConverter()

	t.Run("renders pipe table", func(t *testing.T) {
		path := writeFile(t, dir, "t.csv", "name,age\nalice,30\nbob,41\n")
		res, err := conv.Convert(context.Background(), path, HintsFor(path))
		if err != nil {
			t.Fatal(err)
		}
		lines := strings.Split(strings.TrimRight(res.Markdown, "\n"), "\n")
		if len(lines) != 4 {
			t.Fatalf("lines = %d: %q", len(lines), res.Markdown)
		}
		if lines[0] != "| name | age |" {
			t.Errorf("header = %q", lines[0])
		}
		if lines[1] != "| --- | --- |" {
			t.Errorf("separator = %q", lines[1])
		}
		if res.Quality.Confidence != 1.0 {
			t.Errorf("confidence = %g", res.Quality.Confidence)
		}
	})

	t.Run("pads ragged rows", func(t *testing.T) {
		path := writeFile(t, dir, "ragged.csv", "a,b,c\n1,2\n")
		res, err := conv.Convert(context.Background(), path, HintsFor(path))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(res.Markdown, "| 1 | 2 |  |") {
			t.Errorf("short row not padded: %q", res.Markdown)
		}
		if res.Quality.Confidence != 0.9 {
			t.Errorf("confidence = %g, want 0.9 after padding", res.Quality.Confidence)
		}
		if !res.Quality.HasWarnings() {
			t.Error("padding should record a warning")
		}
	})

	t.Run("escapes pipes in cells", func(t *testing.T) {
		path := writeFile(t, dir, "pipes.csv", "col\na|b\n")
		res, err := conv.Convert(context.Background(), path, HintsFor(path))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(res.Markdown, `a\|b`) {
			t.Errorf("pipe not escaped: %q", res.Markdown)
		}
	})
}

func TestHTMLConverter(t *testing.T) {
	dir := t.TempDir()
	conv := NewHTMLConverter()

	doc := `<html><head><title>Page Title</title><script>alert("x")</script></head>
<body><h1>Heading</h1><p>Some <strong>bold</strong> text.</p></body></html>`
	path := writeFile(t, dir, "page.html", doc)

	res, err := conv.Convert(context.Background(), path, HintsFor(path))
	if err != nil {
		t.Fatal(err)
	}
	if res.Title != "Page Title" {
		t.Errorf("title = %q", res.Title)
	}
	if !strings.Contains(res.Markdown, "# Heading") {
		t.Errorf("heading not converted: %q", res.Markdown)
	}
	if !strings.Contains(res.Markdown, "**bold**") {
		t.Errorf("bold not converted: %q", res.Markdown)
	}
	if strings.Contains(res.Markdown, "alert") {
		t.Errorf("script leaked into markdown: %q", res.Markdown)
	}
	if res.Quality.Confidence != 0.9 {
		t.Errorf("confidence = %g", res.Quality.Confidence)
	}
}

func TestImageConverter(t *testing.T) {
	dir := t.TempDir()
	conv := NewImageConverter()

	path := writeFile(t, dir, "diagram.png", "not a real png")
	res, err := conv.Convert(context.Background(), path, HintsFor(path))
	if err != nil {
		t.Fatal(err)
	}
	if res.Markdown != "![diagram](diagram.png)\n" {
		t.Errorf("markdown = %q", res.Markdown)
	}
	if res.Title != "diagram" {
		t.Errorf("title = %q", res.Title)
	}
	if res.Quality.Confidence != 0.8 {
		t.Errorf("confidence = %g", res.Quality.Confidence)
	}
	lossSeen := false
	for _, tag := range res.Quality.FormattingLoss {
		if tag == LossImageDescription {
			lossSeen = true
		}
	}
	if !lossSeen {
		t.Error("missing image_description loss tag")
	}
	if res.Metadata["file_size_bytes"] == nil {
		t.Error("missing file size metadata")
	}
}

func TestQualityHelpers(t *testing.T) {
	q := NewQuality("TestConverter")
	if q.Confidence != 1.0 || q.ConverterUsed != "TestConverter" {
		t.Fatalf("new quality = %+v", q)
	}

	q.AddWarning("something dropped", SeverityLow, LossTable, 2)
	q.AddFormattingLoss(LossTable) // duplicate, must not repeat
	if len(q.FormattingLoss) != 1 {
		t.Errorf("formatting loss = %v", q.FormattingLoss)
	}

	q.SetMetric("k", 1)
	clone := q.Clone()
	clone.SetMetric("k", 2)
	clone.AddFormattingLoss(LossChart)
	if q.Metrics["k"] != 1 {
		t.Error("clone mutation leaked into original metrics")
	}
	if len(q.FormattingLoss) != 1 {
		t.Error("clone mutation leaked into original loss tags")
	}
}
