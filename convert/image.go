// CLAUDE:SUMMARY Standalone image converter — Markdown reference plus dimensions, no generated caption.
package convert

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// ImageConverter emits a Markdown image reference for standalone image files.
// No caption is generated, so the description loss is always recorded.
type ImageConverter struct{}

func NewImageConverter() *ImageConverter { return &ImageConverter{} }

func (c *ImageConverter) Name() string { return "ImageConverter" }

func (c *ImageConverter) Accepts(path string, h Hints) bool {
	return imageExtensions[h.Extension]
}

func (c *ImageConverter) Convert(ctx context.Context, path string, h Hints) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	base := filepath.Base(path)
	alt := strings.TrimSuffix(base, filepath.Ext(base))

	meta := map[string]any{
		"file_size_bytes": info.Size(),
	}
	if f, err := os.Open(path); err == nil {
		if cfg, _, derr := image.DecodeConfig(f); derr == nil {
			meta["width"] = cfg.Width
			meta["height"] = cfg.Height
		}
		f.Close()
	}

	q := NewQuality(c.Name())
	q.Confidence = 0.8
	q.AddWarning("no image description generated", SeverityLow, LossImageDescription, 1)

	return &Result{
		Markdown: fmt.Sprintf("![%s](%s)\n", alt, base),
		Title:    alt,
		Quality:  q,
		Metadata: meta,
	}, nil
}
