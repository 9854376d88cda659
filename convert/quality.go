// CLAUDE:SUMMARY Conversion quality record — confidence, warnings, formatting-loss tags, per-converter metrics.
package convert

// Severity levels for conversion warnings.
const (
	SeverityInfo   = "info"
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Formatting-loss tags. A tag records that a class of document feature is
// known to be dropped or degraded by the converter that produced the result.
const (
	LossTable            = "table"
	LossTableFormatting  = "table_formatting"
	LossImage            = "image"
	LossImageDescription = "image_description"
	LossEmbeddedObject   = "embedded_object"
	LossFontStyle        = "font_style"
	LossHeaderFooter     = "header_footer"
	LossFootnote         = "footnote"
	LossMathEquation     = "math_equation"
	LossChart            = "chart"
	LossHyperlink        = "hyperlink"
	LossCustomStyle      = "custom_style"
)

// Warning describes a potential issue observed during one conversion.
type Warning struct {
	Message        string `json:"message"`
	Severity       string `json:"severity"`
	FormattingType string `json:"formatting_type,omitempty"`
	ElementCount   int    `json:"element_count,omitempty"`
}

// Quality describes how faithful a conversion is expected to be.
//
// Confidence runs 0.0–1.0 (1.0 = perfect conversion expected). The batch
// orchestrator treats the whole record as opaque apart from Confidence and
// ConverterUsed; everything else is carried through to caches and manifests
// unchanged.
type Quality struct {
	Confidence           float64        `json:"confidence"`
	Warnings             []Warning      `json:"warnings,omitempty"`
	FormattingLoss       []string       `json:"formatting_loss,omitempty"`
	Metrics              map[string]any `json:"metrics,omitempty"`
	ConverterUsed        string         `json:"converter_used,omitempty"`
	IsPartial            bool           `json:"is_partial,omitempty"`
	CompletionPercentage float64        `json:"completion_percentage,omitempty"`
}

// NewQuality creates a Quality for the named converter with full confidence.
func NewQuality(converter string) *Quality {
	return &Quality{
		Confidence:    1.0,
		ConverterUsed: converter,
	}
}

// AddWarning appends a warning and tracks its formatting type.
func (q *Quality) AddWarning(message, severity, formattingType string, elementCount int) {
	q.Warnings = append(q.Warnings, Warning{
		Message:        message,
		Severity:       severity,
		FormattingType: formattingType,
		ElementCount:   elementCount,
	})
	if formattingType != "" {
		q.AddFormattingLoss(formattingType)
	}
}

// AddFormattingLoss records a loss tag once.
func (q *Quality) AddFormattingLoss(tag string) {
	for _, t := range q.FormattingLoss {
		if t == tag {
			return
		}
	}
	q.FormattingLoss = append(q.FormattingLoss, tag)
}

// SetMetric stores a converter-specific metric.
func (q *Quality) SetMetric(key string, value any) {
	if q.Metrics == nil {
		q.Metrics = make(map[string]any)
	}
	q.Metrics[key] = value
}

// HasWarnings reports whether any warnings were recorded.
func (q *Quality) HasWarnings() bool {
	return len(q.Warnings) > 0
}

// Clone returns a deep copy. Shared quality records must never be mutated by
// two batch items at once.
func (q *Quality) Clone() *Quality {
	if q == nil {
		return nil
	}
	c := *q
	c.Warnings = append([]Warning(nil), q.Warnings...)
	c.FormattingLoss = append([]string(nil), q.FormattingLoss...)
	if q.Metrics != nil {
		c.Metrics = make(map[string]any, len(q.Metrics))
		for k, v := range q.Metrics {
			c.Metrics[k] = v
		}
	}
	return &c
}
