// CLAUDE:SUMMARY Static LLM token-cost estimator for batch conversions — no conversion performed.
// Package tokens estimates the LLM token budget a batch conversion would
// spend, without converting anything.
//
// Only image description generates token cost: standalone images and images
// embedded in slide decks. Estimates are deliberately biased toward
// overestimation for budgeting and must never be treated as a billing source
// of truth. Cached and resumed files cost zero because no new conversion
// work happens for them.
package tokens

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/mdbatch/cache"
)

// Category tags how a file contributes to token cost.
type Category string

const (
	CategoryImage     Category = "image"      // standalone image files
	CategorySlideDeck Category = "slide_deck" // decks with embedded images
	CategoryNoLLM     Category = "no_llm"     // no token-consuming features
	CategoryCached    Category = "cached"     // cache hit, no new work
	CategoryResumed   Category = "resumed"    // output exists, no new work
)

// Vision-model pricing constants: images are scaled to fit maxImageDimension,
// cut into tileSize×tileSize tiles, each tile priced at tokensPerTile, plus a
// flat base charge. Prompt and output charges cover the caption request.
const (
	promptTokens      = 10
	captionTokens     = 150
	tokensPerTile     = 170
	baseImageTokens   = 85
	maxImageDimension = 2048
	tileSize          = 512
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

var slideDeckExtensions = map[string]bool{
	".pptx": true,
}

// FileEstimate is the token estimate for one source path.
type FileEstimate struct {
	SourcePath    string   `json:"source_path"`
	Category      Category `json:"category"`
	InputTokens   int      `json:"input_tokens"`
	OutputTokens  int      `json:"output_tokens"`
	ImageCount    int      `json:"image_count"`
	FileSizeBytes int64    `json:"file_size_bytes"`
	SkipReason    string   `json:"skip_reason,omitempty"`
}

// TotalTokens is input plus output.
func (f FileEstimate) TotalTokens() int { return f.InputTokens + f.OutputTokens }

// Options configures estimation.
type Options struct {
	// Cache, when set, classifies content-hash hits as CategoryCached.
	Cache *cache.Cache
	// Resumed maps source paths to existing outputs; members classify as
	// CategoryResumed. Resume outranks the cache check.
	Resumed map[string]string
}

// EstimateFile estimates tokens for one file without converting it.
func EstimateFile(path string, opts Options) FileEstimate {
	var size int64
	info, statErr := os.Stat(path)
	if statErr == nil {
		size = info.Size()
	}

	if _, ok := opts.Resumed[path]; ok {
		return FileEstimate{
			SourcePath:    path,
			Category:      CategoryResumed,
			FileSizeBytes: size,
			SkipReason:    "output file already exists",
		}
	}

	if opts.Cache != nil && opts.Cache.Has(path) {
		return FileEstimate{
			SourcePath:    path,
			Category:      CategoryCached,
			FileSizeBytes: size,
			SkipReason:    "conversion result is cached",
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExtensions[ext]:
		imgTokens := imageTokens(size)
		if statErr != nil {
			// Unreadable image: charge four tiles so the estimate stays an
			// overestimate instead of collapsing to the minimum.
			imgTokens = baseImageTokens + tokensPerTile*4
		}
		return FileEstimate{
			SourcePath:    path,
			Category:      CategoryImage,
			InputTokens:   imgTokens + promptTokens,
			OutputTokens:  captionTokens,
			ImageCount:    1,
			FileSizeBytes: size,
		}

	case slideDeckExtensions[ext]:
		images := slideDeckImageCount(size)
		if images == 0 {
			return FileEstimate{
				SourcePath:    path,
				Category:      CategoryNoLLM,
				FileSizeBytes: size,
				SkipReason:    "deck has no estimated images",
			}
		}
		// Embedded images tend to be smaller than standalone ones;
		// price them at two tiles each.
		perImage := baseImageTokens + tokensPerTile*2
		return FileEstimate{
			SourcePath:    path,
			Category:      CategorySlideDeck,
			InputTokens:   (perImage + promptTokens) * images,
			OutputTokens:  captionTokens * images,
			ImageCount:    images,
			FileSizeBytes: size,
		}

	default:
		return FileEstimate{
			SourcePath:    path,
			Category:      CategoryNoLLM,
			FileSizeBytes: size,
			SkipReason:    "file type does not use token-consuming features",
		}
	}
}

// imageTokens prices a standalone image from its byte size. The square root
// of the size approximates the linear pixel dimension (about one byte per
// pixel across common compression), capped at the model's maximum.
func imageTokens(size int64) int {
	if size < 0 {
		size = 0
	}
	dimension := int(math.Sqrt(float64(size)))
	if dimension > maxImageDimension {
		dimension = maxImageDimension
	}
	tilesPerSide := int(math.Ceil(float64(dimension) / tileSize))
	if tilesPerSide < 1 {
		tilesPerSide = 1
	}
	return baseImageTokens + tokensPerTile*tilesPerSide*tilesPerSide
}

// slideDeckImageCount estimates embedded images from deck size. Growth is
// sub-linear: large decks are usually dominated by video, charts, and master
// backgrounds rather than proportionally more photos.
func slideDeckImageCount(size int64) int {
	sizeMB := float64(size) / (1024 * 1024)

	switch {
	case sizeMB < 0.5:
		return 0
	case sizeMB < 1:
		return 1
	case sizeMB < 2:
		return maxInt(1, int(sizeMB*1.5))
	case sizeMB < 10:
		return maxInt(2, int(2+math.Sqrt(sizeMB)*2))
	case sizeMB < 50:
		return maxInt(8, int(5+math.Log2(sizeMB)*3))
	default:
		return maxInt(15, minInt(25, int(10+math.Log2(sizeMB)*2.5)))
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// BatchEstimate aggregates per-file estimates.
type BatchEstimate struct {
	Files []FileEstimate `json:"files"`
}

// EstimateBatch estimates every file in order. Never converts.
func EstimateBatch(files []string, opts Options) *BatchEstimate {
	b := &BatchEstimate{Files: make([]FileEstimate, 0, len(files))}
	for _, f := range files {
		b.Files = append(b.Files, EstimateFile(f, opts))
	}
	return b
}

func (b *BatchEstimate) TotalInputTokens() int {
	total := 0
	for _, f := range b.Files {
		total += f.InputTokens
	}
	return total
}

func (b *BatchEstimate) TotalOutputTokens() int {
	total := 0
	for _, f := range b.Files {
		total += f.OutputTokens
	}
	return total
}

func (b *BatchEstimate) TotalTokens() int {
	return b.TotalInputTokens() + b.TotalOutputTokens()
}

func (b *BatchEstimate) TotalImageCount() int {
	total := 0
	for _, f := range b.Files {
		total += f.ImageCount
	}
	return total
}

func (b *BatchEstimate) countCategory(c Category) int {
	n := 0
	for _, f := range b.Files {
		if f.Category == c {
			n++
		}
	}
	return n
}

// Summary is the serializable roll-up of a batch estimate.
type Summary struct {
	TotalFiles        int `json:"total_files"`
	FilesUsingLLM     int `json:"files_using_llm"`
	FilesSkipped      int `json:"files_skipped"`
	CachedFiles       int `json:"cached_files"`
	ResumedFiles      int `json:"resumed_files"`
	TotalImageCount   int `json:"total_image_count"`
	TotalInputTokens  int `json:"total_input_tokens"`
	TotalOutputTokens int `json:"total_output_tokens"`
	TotalTokens       int `json:"total_tokens"`
}

// Summarize computes the roll-up.
func (b *BatchEstimate) Summarize() Summary {
	usingLLM := 0
	for _, f := range b.Files {
		if f.TotalTokens() > 0 {
			usingLLM++
		}
	}
	return Summary{
		TotalFiles:        len(b.Files),
		FilesUsingLLM:     usingLLM,
		FilesSkipped:      len(b.Files) - usingLLM,
		CachedFiles:       b.countCategory(CategoryCached),
		ResumedFiles:      b.countCategory(CategoryResumed),
		TotalImageCount:   b.TotalImageCount(),
		TotalInputTokens:  b.TotalInputTokens(),
		TotalOutputTokens: b.TotalOutputTokens(),
		TotalTokens:       b.TotalTokens(),
	}
}

// String renders a short human-readable summary.
func (b *BatchEstimate) String() string {
	s := b.Summarize()
	var sb strings.Builder
	fmt.Fprintf(&sb, "token estimate: %d files, %d using LLM (%d cached, %d resumed)\n",
		s.TotalFiles, s.FilesUsingLLM, s.CachedFiles, s.ResumedFiles)
	fmt.Fprintf(&sb, "  images: %d\n", s.TotalImageCount)
	fmt.Fprintf(&sb, "  input tokens:  %d\n", s.TotalInputTokens)
	fmt.Fprintf(&sb, "  output tokens: %d\n", s.TotalOutputTokens)
	fmt.Fprintf(&sb, "  total tokens:  %d", s.TotalTokens)
	return sb.String()
}
