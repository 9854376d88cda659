package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestPutGetRoundTrip(t *testing.T) {
	c := newCache(t)
	src := writeSource(t, "doc.txt", "hello cache")

	quality := json.RawMessage(`{"confidence":0.9,"converter_used":"TextConverter"}`)
	c.Put(src, Entry{Markdown: "# Hello\n", Title: "Hello", Quality: quality})

	entry := c.Get(src)
	if entry == nil {
		t.Fatal("expected cache hit after put")
	}
	if entry.Markdown != "# Hello\n" {
		t.Errorf("markdown = %q, want %q", entry.Markdown, "# Hello\n")
	}
	if entry.Title != "Hello" {
		t.Errorf("title = %q, want Hello", entry.Title)
	}
	if string(entry.Quality) != string(quality) {
		t.Errorf("quality = %s, want %s", entry.Quality, quality)
	}
	if len(entry.FileHash) != 64 {
		t.Errorf("file hash length = %d, want 64", len(entry.FileHash))
	}
}

func TestContentChangeIsMiss(t *testing.T) {
	c := newCache(t)
	src := writeSource(t, "doc.txt", "version one")

	c.Put(src, Entry{Markdown: "v1"})
	if c.Get(src) == nil {
		t.Fatal("expected hit for unmodified content")
	}

	if err := os.WriteFile(src, []byte("version two"), 0o644); err != nil {
		t.Fatal(err)
	}
	if c.Get(src) != nil {
		t.Fatal("expected miss after content change")
	}
}

func TestHas(t *testing.T) {
	c := newCache(t)
	src := writeSource(t, "doc.txt", "content")

	if c.Has(src) {
		t.Fatal("Has before put should be false")
	}
	c.Put(src, Entry{Markdown: "md"})
	if !c.Has(src) {
		t.Fatal("Has after put should be true")
	}
}

func TestEntryIsReadOnly(t *testing.T) {
	c := newCache(t)
	src := writeSource(t, "doc.txt", "content")
	c.Put(src, Entry{Markdown: "md"})

	hash, err := ComputeFileHash(src)
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(c.entryPath(hash))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o200 != 0 {
		t.Errorf("entry should be read-only, got mode %v", info.Mode())
	}
}

func TestPutReplacesExistingEntry(t *testing.T) {
	c := newCache(t)
	src := writeSource(t, "doc.txt", "same content")

	c.Put(src, Entry{Markdown: "first"})
	c.Put(src, Entry{Markdown: "second"})

	entry := c.Get(src)
	if entry == nil {
		t.Fatal("expected hit")
	}
	if entry.Markdown != "second" {
		t.Errorf("markdown = %q, want second", entry.Markdown)
	}
}

func TestConcurrentIdenticalWriters(t *testing.T) {
	c := newCache(t)
	src := writeSource(t, "doc.txt", "raced content")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Put(src, Entry{Markdown: "identical"})
		}()
	}
	wg.Wait()

	entry := c.Get(src)
	if entry == nil {
		t.Fatal("expected a valid entry after concurrent identical writes")
	}
	if entry.Markdown != "identical" {
		t.Errorf("markdown = %q, want identical", entry.Markdown)
	}
	if got := c.Stats().EntryCount; got != 1 {
		t.Errorf("entry count = %d, want 1", got)
	}
}

func TestClear(t *testing.T) {
	c := newCache(t)
	for _, content := range []string{"one", "two", "three"} {
		src := writeSource(t, "doc.txt", content)
		c.Put(src, Entry{Markdown: content})
	}

	if got := c.Clear(); got != 3 {
		t.Errorf("Clear() = %d, want 3", got)
	}
	if got := c.Stats().EntryCount; got != 0 {
		t.Errorf("entry count after clear = %d, want 0", got)
	}

	// Shard directories are gone too.
	entries, err := os.ReadDir(c.Dir())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.IsDir() {
			t.Errorf("shard directory %s left behind", e.Name())
		}
	}
}

func TestCorruptEntryIsMiss(t *testing.T) {
	c := newCache(t)
	src := writeSource(t, "doc.txt", "content")
	c.Put(src, Entry{Markdown: "md"})

	hash, err := ComputeFileHash(src)
	if err != nil {
		t.Fatal(err)
	}
	entryPath := c.entryPath(hash)
	os.Chmod(entryPath, 0o600)
	if err := os.WriteFile(entryPath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if c.Get(src) != nil {
		t.Fatal("corrupt entry should be a miss")
	}
}

func TestMissingSourceFileIsMiss(t *testing.T) {
	c := newCache(t)
	if c.Get(filepath.Join(t.TempDir(), "absent.txt")) != nil {
		t.Fatal("missing source should be a miss, not an error")
	}
}

func TestComputeFileHashStable(t *testing.T) {
	src := writeSource(t, "doc.txt", strings.Repeat("large content block ", 4096))

	h1, err := ComputeFileHash(src)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := ComputeFileHash(src)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("hash not stable: %s vs %s", h1, h2)
	}
}

func TestNewRequiresDir(t *testing.T) {
	if _, err := New("", nil); err == nil {
		t.Fatal("expected error for empty cache dir")
	}
}
