// CLAUDE:SUMMARY Per-item status set and outcome record for batch conversions.
package batch

import "github.com/hazyhaar/mdbatch/convert"

// Status of a single source in a batch run.
type Status string

const (
	StatusPending     Status = "pending"
	StatusSuccess     Status = "success"
	StatusFailed      Status = "failed"
	StatusSkipped     Status = "skipped"
	StatusUnsupported Status = "unsupported"
	StatusCached      Status = "cached"  // reused from the content-addressed cache
	StatusResumed     Status = "resumed" // output file already existed

	// StatusFilteredLowQuality reclassifies a converted item whose
	// confidence fell below the configured threshold. The item keeps its
	// result for reporting but is excluded from output writing.
	StatusFilteredLowQuality Status = "filtered_low_quality"
)

// Successful reports whether the status counts toward completion:
// a fresh conversion, a cache hit, or a resumed output.
func (s Status) Successful() bool {
	return s == StatusSuccess || s == StatusCached || s == StatusResumed
}

// Item is the outcome for one source path. Exactly one Item exists per
// requested source per run; its terminal status is produced by exactly one
// of resume lookup, cache lookup, conversion attempt, or the quality filter.
type Item struct {
	SourcePath string
	Status     Status
	// Result is owned exclusively by this item. Nil for resumed, skipped,
	// unsupported, and failed items.
	Result    *convert.Result
	Error     string
	ErrorKind string
}

// Markdown returns the converted Markdown, or "" when no result is held.
func (it *Item) Markdown() string {
	if it.Result == nil {
		return ""
	}
	return it.Result.Markdown
}

// Quality returns the item's quality record, or nil.
func (it *Item) Quality() *convert.Quality {
	if it.Result == nil {
		return nil
	}
	return it.Result.Quality
}
