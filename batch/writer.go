// CLAUDE:SUMMARY Output writer — persists converted Markdown with collision-safe naming and optional tree mirroring.
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/mdbatch/resume"
)

// WriteOptions configures output writing.
type WriteOptions struct {
	// PreserveStructure mirrors the source tree under the output directory.
	// Must match the option the batch ran with, or resume will not find
	// these outputs on the next run.
	PreserveStructure bool
	// Overwrite replaces existing files instead of appending a numeric
	// suffix to pick a fresh name.
	Overwrite bool
}

// WriteOutputs writes one Markdown file per writable item (fresh and cached
// successes) and returns source path -> written output path. Filtered items
// are never written; resumed items already exist. The first write error
// aborts, returning the mapping of files written so far.
func WriteOutputs(result *Result, outputDir string, opts WriteOptions) (map[string]string, error) {
	written := make(map[string]string)
	if outputDir == "" {
		return written, fmt.Errorf("batch: output directory is required")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return written, fmt.Errorf("batch: create output dir: %w", err)
	}

	for _, it := range result.WritableItems() {
		out := resume.OutputPath(it.SourcePath, outputDir, result.SourceDir, opts.PreserveStructure)
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return written, fmt.Errorf("batch: create dir for %s: %w", out, err)
		}
		if !opts.Overwrite {
			out = uncollide(out, written)
		}
		if err := os.WriteFile(out, []byte(it.Result.Markdown), 0o644); err != nil {
			return written, fmt.Errorf("batch: write %s: %w", out, err)
		}
		written[it.SourcePath] = out
	}
	return written, nil
}

// uncollide picks base.md, base_1.md, base_2.md ... the first name that is
// neither on disk nor claimed earlier in this write pass.
func uncollide(path string, written map[string]string) string {
	claimed := func(p string) bool {
		if _, err := os.Stat(p); err == nil {
			return true
		}
		for _, w := range written {
			if w == p {
				return true
			}
		}
		return false
	}
	if !claimed(path) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if !claimed(candidate) {
			return candidate
		}
	}
}
