package tokens

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/mdbatch/cache"
)

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResumedFileCostsZero(t *testing.T) {
	dir := t.TempDir()
	img := writeFile(t, dir, "big.png", 4*1024*1024)

	est := EstimateFile(img, Options{Resumed: map[string]string{img: "/out/big.md"}})
	if est.Category != CategoryResumed {
		t.Errorf("category = %s, want resumed", est.Category)
	}
	if est.TotalTokens() != 0 {
		t.Errorf("resumed file estimated %d tokens, want 0", est.TotalTokens())
	}
}

func TestCachedFileCostsZero(t *testing.T) {
	dir := t.TempDir()
	img := writeFile(t, dir, "big.jpg", 1024*1024)

	c, err := cache.New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	c.Put(img, cache.Entry{Markdown: "![big](big.jpg)\n"})

	est := EstimateFile(img, Options{Cache: c})
	if est.Category != CategoryCached {
		t.Errorf("category = %s, want cached", est.Category)
	}
	if est.TotalTokens() != 0 {
		t.Errorf("cached file estimated %d tokens, want 0", est.TotalTokens())
	}
}

func TestResumeOutranksCache(t *testing.T) {
	dir := t.TempDir()
	img := writeFile(t, dir, "both.png", 2048)

	c, err := cache.New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	c.Put(img, cache.Entry{Markdown: "x"})

	est := EstimateFile(img, Options{
		Cache:   c,
		Resumed: map[string]string{img: "/out/both.md"},
	})
	if est.Category != CategoryResumed {
		t.Errorf("category = %s, want resumed to win over cached", est.Category)
	}
}

func TestEmptyImageStillCharged(t *testing.T) {
	dir := t.TempDir()
	img := writeFile(t, dir, "empty.png", 0)

	est := EstimateFile(img, Options{})
	if est.Category != CategoryImage {
		t.Fatalf("category = %s, want image", est.Category)
	}
	if est.InputTokens < baseImageTokens {
		t.Errorf("input tokens = %d, want >= base charge %d", est.InputTokens, baseImageTokens)
	}
	if est.ImageCount != 1 {
		t.Errorf("image count = %d, want 1", est.ImageCount)
	}
}

func TestUnreadableImageOverestimates(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone.png")

	est := EstimateFile(missing, Options{})
	if est.Category != CategoryImage {
		t.Fatalf("category = %s, want image", est.Category)
	}
	// Four tiles, not the minimum one-tile charge.
	want := baseImageTokens + tokensPerTile*4 + promptTokens
	if est.InputTokens != want {
		t.Errorf("input tokens = %d, want %d", est.InputTokens, want)
	}
	if est.OutputTokens != captionTokens {
		t.Errorf("output tokens = %d, want %d", est.OutputTokens, captionTokens)
	}
}

func TestImageTokensGrowWithSize(t *testing.T) {
	dir := t.TempDir()
	small := writeFile(t, dir, "small.jpg", 10*1024)
	large := writeFile(t, dir, "large.jpg", 8*1024*1024)

	smallEst := EstimateFile(small, Options{})
	largeEst := EstimateFile(large, Options{})
	if largeEst.InputTokens <= smallEst.InputTokens {
		t.Errorf("large image (%d tokens) should cost more than small (%d tokens)",
			largeEst.InputTokens, smallEst.InputTokens)
	}
}

func TestImageTokensCapped(t *testing.T) {
	// Past the dimension cap, cost stops growing.
	huge := imageTokens(64 * 1024 * 1024)
	larger := imageTokens(256 * 1024 * 1024)
	if huge != larger {
		t.Errorf("capped estimates differ: %d vs %d", huge, larger)
	}
}

func TestSlideDeckCategories(t *testing.T) {
	dir := t.TempDir()

	tiny := writeFile(t, dir, "tiny.pptx", 100*1024) // < 0.5MB: no images
	est := EstimateFile(tiny, Options{})
	if est.Category != CategoryNoLLM {
		t.Errorf("tiny deck category = %s, want no_llm", est.Category)
	}
	if est.TotalTokens() != 0 {
		t.Errorf("tiny deck tokens = %d, want 0", est.TotalTokens())
	}

	medium := writeFile(t, dir, "deck.pptx", 3*1024*1024)
	est = EstimateFile(medium, Options{})
	if est.Category != CategorySlideDeck {
		t.Errorf("deck category = %s, want slide_deck", est.Category)
	}
	if est.ImageCount < 1 {
		t.Errorf("deck image count = %d, want >= 1", est.ImageCount)
	}
	if est.TotalTokens() <= 0 {
		t.Errorf("deck tokens = %d, want > 0", est.TotalTokens())
	}
}

func TestSlideDeckCountSubLinear(t *testing.T) {
	// 10x the bytes must yield far less than 10x the images.
	at5 := slideDeckImageCount(5 * 1024 * 1024)
	at50 := slideDeckImageCount(50 * 1024 * 1024)
	if at50 >= at5*10 {
		t.Errorf("image count grew linearly: %d at 5MB, %d at 50MB", at5, at50)
	}
	if at50 > 25 {
		t.Errorf("image count %d exceeds cap", at50)
	}
}

func TestOtherTypesAreFree(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"doc.pdf", "sheet.xlsx", "page.html", "notes.txt"} {
		path := writeFile(t, dir, name, 5*1024*1024)
		est := EstimateFile(path, Options{})
		if est.Category != CategoryNoLLM {
			t.Errorf("%s: category = %s, want no_llm", name, est.Category)
		}
		if est.TotalTokens() != 0 {
			t.Errorf("%s: tokens = %d, want 0", name, est.TotalTokens())
		}
	}
}

func TestBatchSummary(t *testing.T) {
	dir := t.TempDir()
	img := writeFile(t, dir, "a.png", 512*1024)
	txt := writeFile(t, dir, "b.txt", 1024)
	done := writeFile(t, dir, "c.jpg", 1024*1024)

	b := EstimateBatch([]string{img, txt, done}, Options{
		Resumed: map[string]string{done: "/out/c.md"},
	})
	s := b.Summarize()

	if s.TotalFiles != 3 {
		t.Errorf("total files = %d, want 3", s.TotalFiles)
	}
	if s.FilesUsingLLM != 1 {
		t.Errorf("files using LLM = %d, want 1", s.FilesUsingLLM)
	}
	if s.FilesSkipped != 2 {
		t.Errorf("files skipped = %d, want 2", s.FilesSkipped)
	}
	if s.ResumedFiles != 1 {
		t.Errorf("resumed = %d, want 1", s.ResumedFiles)
	}
	if s.TotalTokens != b.Files[0].TotalTokens() {
		t.Errorf("total tokens = %d, want %d", s.TotalTokens, b.Files[0].TotalTokens())
	}
	if s.TotalImageCount != 1 {
		t.Errorf("image count = %d, want 1", s.TotalImageCount)
	}
}
