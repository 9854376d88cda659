// CLAUDE:SUMMARY Resume resolver — maps source paths to already-written Markdown outputs by pure existence checks.
// Package resume decides which sources can skip conversion because their
// output file already exists.
//
// The check is existence-only, no content hashing: cheaper than the cache,
// at the cost of not detecting a source that changed after its output was
// written. That trade is right for continuing an interrupted run; use the
// cache to skip unchanged files.
package resume

import (
	"os"
	"path/filepath"
	"strings"
)

// MarkdownExt is the extension substituted onto output paths.
const MarkdownExt = ".md"

// OutputPath derives the output file for a source. This rule must mirror the
// output writer's own derivation: when structure is preserved and the source
// lies under sourceDir, the relative path is kept beneath outputDir;
// otherwise the bare stem is used.
func OutputPath(source, outputDir, sourceDir string, preserveStructure bool) string {
	if preserveStructure && sourceDir != "" {
		if rel, err := filepath.Rel(sourceDir, source); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.Join(outputDir, withMarkdownExt(rel))
		}
	}
	return filepath.Join(outputDir, withMarkdownExt(filepath.Base(source)))
}

// FindExisting returns the subset of sources whose derived output file
// already exists, mapped to that output path. I/O failures degrade to
// "not resumable"; nothing is ever raised to the caller.
func FindExisting(sources []string, outputDir, sourceDir string, preserveStructure bool) map[string]string {
	existing := make(map[string]string)
	if outputDir == "" {
		return existing
	}
	for _, source := range sources {
		out := OutputPath(source, outputDir, sourceDir, preserveStructure)
		if info, err := os.Stat(out); err == nil && !info.IsDir() {
			existing[source] = out
		}
	}
	return existing
}

func withMarkdownExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + MarkdownExt
}
