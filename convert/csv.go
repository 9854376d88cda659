// CLAUDE:SUMMARY CSV to Markdown table converter with ragged-row padding.
package convert

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// CSVConverter renders CSV files as Markdown pipe tables. The first record
// becomes the header row.
type CSVConverter struct{}

func NewCSVConverter() *CSVConverter { return &CSVConverter{} }

func (c *CSVConverter) Name() string { return "CsvConverter" }

func (c *CSVConverter) Accepts(path string, h Hints) bool {
	return h.Extension == ".csv"
}

func (c *CSVConverter) Convert(ctx context.Context, path string, h Hints) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate ragged rows, pad below
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	q := NewQuality(c.Name())
	q.SetMetric("row_count", len(rows))

	if len(rows) == 0 {
		return &Result{Markdown: "", Quality: q}, nil
	}

	width := 0
	ragged := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	for _, row := range rows {
		if len(row) != width {
			ragged++
		}
	}
	if ragged > 0 {
		q.AddWarning("rows with inconsistent column counts were padded",
			SeverityLow, LossTableFormatting, ragged)
		q.Confidence = 0.9
	}

	var sb strings.Builder
	for i, row := range rows {
		sb.WriteString("|")
		for col := 0; col < width; col++ {
			cell := ""
			if col < len(row) {
				cell = escapeTableCell(row[col])
			}
			sb.WriteString(" " + cell + " |")
		}
		sb.WriteByte('\n')

		if i == 0 {
			sb.WriteString("|")
			for col := 0; col < width; col++ {
				sb.WriteString(" --- |")
			}
			sb.WriteByte('\n')
		}
	}

	return &Result{
		Markdown: sb.String(),
		Quality:  q,
	}, nil
}

func escapeTableCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
