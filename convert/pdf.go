// CLAUDE:SUMMARY PDF to Markdown converter using pdfcpu — content-stream text decoding with confidence scoring.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PDFConverter extracts text from PDF files via pdfcpu content streams.
// Confidence reflects how text-like the extraction looks: scanned or
// image-only PDFs score low instead of failing.
type PDFConverter struct{}

func NewPDFConverter() *PDFConverter { return &PDFConverter{} }

func (c *PDFConverter) Name() string { return "PdfConverter" }

func (c *PDFConverter) Accepts(path string, h Hints) bool {
	return h.Extension == ".pdf"
}

func (c *PDFConverter) Convert(ctx context.Context, path string, h Hints) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	var body strings.Builder
	var title string
	totalChars := 0

	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pageText := pdfPageText(pdfCtx, pageNr)
		if pageText == "" {
			continue
		}
		totalChars += len([]rune(pageText))

		if title == "" {
			title = clipTitle(firstNonEmptyLine(pageText))
		}

		if body.Len() > 0 {
			body.WriteString("\n\n")
		}
		body.WriteString(pageText)
	}

	markdown := body.String()
	if markdown != "" {
		markdown += "\n"
	}

	hasImages := pdfHasImageStreams(pdfCtx)

	q := NewQuality(c.Name())
	q.SetMetric("page_count", pdfCtx.PageCount)
	if pdfCtx.PageCount > 0 {
		q.SetMetric("chars_per_page", float64(totalChars)/float64(pdfCtx.PageCount))
	}
	q.Confidence = pdfConfidence(markdown, pdfCtx.PageCount, totalChars, hasImages)
	if hasImages {
		q.AddWarning("embedded images are not rendered", SeverityMedium, LossImage, 0)
	}
	q.AddFormattingLoss(LossFontStyle)
	if markdown == "" {
		q.AddWarning("no extractable text found; PDF may be scanned",
			SeverityHigh, "", 0)
		q.IsPartial = true
	}

	return &Result{
		Markdown: markdown,
		Title:    title,
		Quality:  q,
	}, nil
}

// pdfConfidence scores extraction fidelity from printable and word-like
// ratios. The thresholds match what reliably separates digital-native PDFs
// from scans with stray vector text.
func pdfConfidence(text string, pageCount, totalChars int, hasImages bool) float64 {
	if text == "" {
		return 0.0
	}
	score := printableRatio(text) * 0.5
	score += wordlikeRatio(text) * 0.4

	charsPerPage := float64(totalChars)
	if pageCount > 0 {
		charsPerPage = float64(totalChars) / float64(pageCount)
	}
	if charsPerPage >= 50 {
		score += 0.1
	} else if hasImages {
		// Almost no text but images present: likely needs OCR.
		score *= 0.5
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// printableRatio is the share of printable runes, excluding the Private Use
// Area, U+FFFD, and control characters other than \n \r \t.
func printableRatio(text string) float64 {
	if text == "" {
		return 1.0
	}
	total, printable := 0, 0
	for _, r := range text {
		total++
		if r >= 0xE000 && r <= 0xF8FF || r == 0xFFFD {
			continue
		}
		if r < 0x0020 && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	return float64(printable) / float64(total)
}

// wordlikeRatio is the share of whitespace-delimited tokens of plausible word
// length (2–15 runes).
func wordlikeRatio(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	wordlike := 0
	for _, f := range fields {
		if n := len([]rune(f)); n >= 2 && n <= 15 {
			wordlike++
		}
	}
	return float64(wordlike) / float64(len(fields))
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// pdfPageText extracts text from one page's content stream.
func pdfPageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return decodeContentStream(data)
}

// pdfHasImageStreams checks for image XObjects.
func pdfHasImageStreams(ctx *model.Context) bool {
	if ctx.Optimize != nil {
		for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
			if len(pdfcpu.ImageObjNrs(ctx, pageNr)) > 0 {
				return true
			}
		}
	}
	for _, entry := range ctx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if subtype, found := sd.Find("Subtype"); found {
			if name, isName := subtype.(types.Name); isName && name == "Image" {
				return true
			}
		}
	}
	return false
}

// pdfLiteralRe matches PDF string literals: (text here)
var pdfLiteralRe = regexp.MustCompile(`\(([^)]*)\)`)

// decodeContentStream walks content-stream operators and collects shown text.
// Handles Tj, TJ, the ' operator, and positioning operators Td/TD/T*.
func decodeContentStream(data []byte) string {
	var sb strings.Builder

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfLiteralRe.FindAllSubmatch(line, -1) {
				sb.WriteString(unescapePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			for _, m := range pdfLiteralRe.FindAllSubmatch(line, -1) {
				sb.WriteByte('\n')
				sb.WriteString(unescapePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}

	return squashSpaces(sb.String())
}

// unescapePDFString resolves PDF string escapes, including octal sequences.
func unescapePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}

// squashSpaces collapses whitespace runs and drops non-printable runes.
func squashSpaces(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		} else if unicode.IsPrint(r) {
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
