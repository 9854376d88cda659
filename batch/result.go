// CLAUDE:SUMMARY Batch result aggregation — counts, overall quality roll-up, JSON manifest round-trip.
package batch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hazyhaar/mdbatch/convert"
)

// Result is the aggregate outcome of one batch run.
type Result struct {
	Items     []Item
	SourceDir string
}

// TotalCount is the number of items in the batch.
func (r *Result) TotalCount() int { return len(r.Items) }

func (r *Result) countStatus(s Status) int {
	n := 0
	for _, it := range r.Items {
		if it.Status == s {
			n++
		}
	}
	return n
}

// SuccessCount counts items that completed: fresh conversions, cache hits,
// and resumed outputs. Filtered items are not counted; the filter demotes
// them out of success.
func (r *Result) SuccessCount() int {
	n := 0
	for _, it := range r.Items {
		if it.Status.Successful() {
			n++
		}
	}
	return n
}

func (r *Result) CachedCount() int      { return r.countStatus(StatusCached) }
func (r *Result) ResumedCount() int     { return r.countStatus(StatusResumed) }
func (r *Result) FailedCount() int      { return r.countStatus(StatusFailed) }
func (r *Result) SkippedCount() int     { return r.countStatus(StatusSkipped) }
func (r *Result) UnsupportedCount() int { return r.countStatus(StatusUnsupported) }
func (r *Result) FilteredCount() int    { return r.countStatus(StatusFilteredLowQuality) }

// CompletionPercentage is successful items over total, 0–100. An empty
// batch is 100% complete.
func (r *Result) CompletionPercentage() float64 {
	if len(r.Items) == 0 {
		return 100.0
	}
	return float64(r.SuccessCount()) / float64(len(r.Items)) * 100.0
}

// AverageConfidence is the mean confidence across successful items carrying
// a quality record. Filtered items keep their quality in the manifest but do
// not drag the batch mean down. Zero when no successful item has a record.
func (r *Result) AverageConfidence() float64 {
	sum, n := 0.0, 0
	for _, it := range r.Items {
		if !it.Status.Successful() {
			continue
		}
		if q := it.Quality(); q != nil {
			sum += q.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// WritableItems returns the items whose Markdown should be written: fresh
// and cached successes. Resumed items already exist on disk and filtered
// items are held back.
func (r *Result) WritableItems() []Item {
	var out []Item
	for _, it := range r.Items {
		if (it.Status == StatusSuccess || it.Status == StatusCached) && it.Result != nil {
			out = append(out, it)
		}
	}
	return out
}

// OverallQuality rolls per-item quality into one record: mean confidence,
// the union of formatting-loss tags, and a converter usage histogram.
func (r *Result) OverallQuality() *convert.Quality {
	q := convert.NewQuality("BatchConverter")
	q.Confidence = r.AverageConfidence()

	converters := make(map[string]int)
	for _, it := range r.Items {
		iq := it.Quality()
		if iq == nil {
			continue
		}
		for _, tag := range iq.FormattingLoss {
			q.AddFormattingLoss(tag)
		}
		if iq.ConverterUsed != "" {
			converters[iq.ConverterUsed]++
		}
	}

	q.SetMetric("total_files", r.TotalCount())
	q.SetMetric("successful_files", r.SuccessCount())
	q.SetMetric("cached_files", r.CachedCount())
	q.SetMetric("resumed_files", r.ResumedCount())
	if len(converters) > 0 {
		q.SetMetric("converters_used", converters)
	}

	if failed := r.FailedCount(); failed > 0 {
		q.AddWarning(fmt.Sprintf("%d file(s) failed to convert", failed), SeverityHighFor(failed, r.TotalCount()), "", failed)
	}
	if unsupported := r.UnsupportedCount(); unsupported > 0 {
		q.AddWarning(fmt.Sprintf("%d file(s) had unsupported formats", unsupported), convert.SeverityLow, "", unsupported)
	}

	if pct := r.CompletionPercentage(); pct < 100.0 {
		q.IsPartial = true
		q.CompletionPercentage = pct
	}
	return q
}

// SeverityHighFor grades failure severity by share of the batch.
func SeverityHighFor(failed, total int) string {
	if total > 0 && float64(failed)/float64(total) >= 0.5 {
		return convert.SeverityHigh
	}
	return convert.SeverityMedium
}

// ManifestSummary is the count block of a serialized manifest.
type ManifestSummary struct {
	TotalCount           int     `json:"total_count"`
	SuccessCount         int     `json:"success_count"`
	CachedCount          int     `json:"cached_count"`
	ResumedCount         int     `json:"resumed_count"`
	FailedCount          int     `json:"failed_count"`
	SkippedCount         int     `json:"skipped_count"`
	UnsupportedCount     int     `json:"unsupported_count"`
	FilteredCount        int     `json:"filtered_count"`
	CompletionPercentage float64 `json:"completion_percentage"`
	AverageConfidence    float64 `json:"average_confidence"`
}

// ManifestItem is one file's entry in a serialized manifest. Markdown bodies
// live in the output files, not here.
type ManifestItem struct {
	SourcePath string           `json:"source_path"`
	Status     Status           `json:"status"`
	Title      string           `json:"title,omitempty"`
	Quality    *convert.Quality `json:"quality"`
	Metadata   map[string]any   `json:"metadata"`
	Error      string           `json:"error,omitempty"`
	ErrorKind  string           `json:"error_kind,omitempty"`
}

// Manifest is the JSON report of a batch run.
type Manifest struct {
	SourceDirectory string           `json:"source_directory,omitempty"`
	Summary         ManifestSummary  `json:"summary"`
	Files           []ManifestItem   `json:"files"`
	OverallQuality  *convert.Quality `json:"overall_quality,omitempty"`
}

// Manifest serializes the result. Per-item quality records are carried
// whole, including for filtered items.
func (r *Result) Manifest() *Manifest {
	m := &Manifest{
		SourceDirectory: r.SourceDir,
		Summary: ManifestSummary{
			TotalCount:           r.TotalCount(),
			SuccessCount:         r.SuccessCount(),
			CachedCount:          r.CachedCount(),
			ResumedCount:         r.ResumedCount(),
			FailedCount:          r.FailedCount(),
			SkippedCount:         r.SkippedCount(),
			UnsupportedCount:     r.UnsupportedCount(),
			FilteredCount:        r.FilteredCount(),
			CompletionPercentage: r.CompletionPercentage(),
			AverageConfidence:    r.AverageConfidence(),
		},
		Files:          make([]ManifestItem, 0, len(r.Items)),
		OverallQuality: r.OverallQuality(),
	}
	for _, it := range r.Items {
		mi := ManifestItem{
			SourcePath: it.SourcePath,
			Status:     it.Status,
			Error:      it.Error,
			ErrorKind:  it.ErrorKind,
		}
		if it.Result != nil {
			mi.Title = it.Result.Title
			mi.Quality = it.Result.Quality
			mi.Metadata = it.Result.Metadata
		}
		m.Files = append(m.Files, mi)
	}
	return m
}

// MarshalJSON of the result is its manifest.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Manifest())
}

// FromManifest rebuilds a Result from a serialized manifest. Markdown bodies
// are not stored in manifests, so rebuilt items carry empty Markdown; counts,
// statuses, and quality records round-trip exactly.
func FromManifest(m *Manifest) *Result {
	r := &Result{SourceDir: m.SourceDirectory}
	for _, mi := range m.Files {
		it := Item{
			SourcePath: mi.SourcePath,
			Status:     mi.Status,
			Error:      mi.Error,
			ErrorKind:  mi.ErrorKind,
		}
		if mi.Quality != nil || mi.Title != "" || mi.Metadata != nil {
			it.Result = &convert.Result{
				Title:    mi.Title,
				Quality:  mi.Quality,
				Metadata: mi.Metadata,
			}
		}
		r.Items = append(r.Items, it)
	}
	return r
}

// String renders a short human-readable run summary.
func (r *Result) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "batch: %d/%d successful (%.1f%%)",
		r.SuccessCount(), r.TotalCount(), r.CompletionPercentage())
	if n := r.CachedCount(); n > 0 {
		fmt.Fprintf(&sb, ", %d cached", n)
	}
	if n := r.ResumedCount(); n > 0 {
		fmt.Fprintf(&sb, ", %d resumed", n)
	}
	if n := r.FailedCount(); n > 0 {
		fmt.Fprintf(&sb, ", %d failed", n)
	}
	if n := r.UnsupportedCount(); n > 0 {
		fmt.Fprintf(&sb, ", %d unsupported", n)
	}
	if n := r.FilteredCount(); n > 0 {
		fmt.Fprintf(&sb, ", %d filtered", n)
	}
	if n := r.SkippedCount(); n > 0 {
		fmt.Fprintf(&sb, ", %d skipped", n)
	}
	return sb.String()
}
