// CLAUDE:SUMMARY Converter contract and priority-ordered registry dispatching files to format converters.
// Package convert turns single files into Markdown through per-format converters.
//
// Each converter exposes a side-effect-free capability probe (Accepts) and a
// conversion operation returning Markdown plus a quality record. The Registry
// evaluates converters in priority order against the probe; the first one that
// accepts handles the file.
//
// Usage:
//
//	reg := convert.DefaultRegistry(nil)
//	res, err := reg.Convert(ctx, "/path/to/report.html")
//	fmt.Println(res.Title, res.Quality.Confidence)
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupported marks inputs no registered converter accepts. It is a
// distinct condition, not a defect: batch callers count these separately
// from failures.
var ErrUnsupported = errors.New("unsupported format")

// UnsupportedFormatError wraps ErrUnsupported with the offending path.
type UnsupportedFormatError struct {
	Path      string
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q: %s", e.Extension, e.Path)
}

func (e *UnsupportedFormatError) Unwrap() error { return ErrUnsupported }

// Hints carries metadata known about an input before its content is read.
type Hints struct {
	Extension string // lowercase, with dot (".html")
	MIMEType  string
}

// Result is the output of one conversion.
type Result struct {
	Markdown string
	Title    string
	Quality  *Quality
	Metadata map[string]any
}

// Converter converts one file format to Markdown.
type Converter interface {
	// Name identifies the converter in quality records and manifests.
	Name() string
	// Accepts reports whether this converter can handle the input.
	// It must be side-effect-free and must not consume the input.
	Accepts(path string, h Hints) bool
	// Convert reads the file and produces Markdown plus a quality record.
	Convert(ctx context.Context, path string, h Hints) (*Result, error)
}

type registered struct {
	conv     Converter
	priority float64
	order    int
}

// Registry dispatches files to converters by priority. Lower priority values
// are probed first; registration order breaks ties.
type Registry struct {
	entries []registered
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Priority bands, mirroring how specific converters outrank generic ones.
const (
	PrioritySpecific = 0.0
	PriorityGeneric  = 10.0
)

// Register adds a converter at the given priority.
func (r *Registry) Register(c Converter, priority float64) {
	r.entries = append(r.entries, registered{conv: c, priority: priority, order: len(r.entries)})
	sort.SliceStable(r.entries, func(i, j int) bool {
		if r.entries[i].priority != r.entries[j].priority {
			return r.entries[i].priority < r.entries[j].priority
		}
		return r.entries[i].order < r.entries[j].order
	})
}

// Converters returns the registered converter names in probe order.
func (r *Registry) Converters() []string {
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.conv.Name())
	}
	return names
}

// HintsFor derives probe hints from a path.
func HintsFor(path string) Hints {
	ext := strings.ToLower(filepath.Ext(path))
	return Hints{
		Extension: ext,
		MIMEType:  mime.TypeByExtension(ext),
	}
}

// Convert dispatches path to the first converter whose probe accepts it.
// Returns an error wrapping ErrUnsupported when no converter accepts.
func (r *Registry) Convert(ctx context.Context, path string) (*Result, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	h := HintsFor(path)
	for _, e := range r.entries {
		if !e.conv.Accepts(path, h) {
			continue
		}
		r.logger.Debug("convert: dispatching", "path", path, "converter", e.conv.Name())
		res, err := e.conv.Convert(ctx, path, h)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.conv.Name(), err)
		}
		if res.Quality == nil {
			res.Quality = NewQuality(e.conv.Name())
		}
		return res, nil
	}

	return nil, &UnsupportedFormatError{Path: path, Extension: h.Extension}
}

// DefaultRegistry returns a registry with all built-in converters.
func DefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(NewHTMLConverter(), PrioritySpecific)
	r.Register(NewCSVConverter(), PrioritySpecific)
	r.Register(NewDOCXConverter(), PrioritySpecific)
	r.Register(NewPDFConverter(), PrioritySpecific)
	r.Register(NewImageConverter(), PrioritySpecific)
	r.Register(NewTextConverter(), PriorityGeneric)
	return r
}
