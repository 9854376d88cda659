// CLAUDE:SUMMARY Content-addressed conversion cache — SHA-256 keyed, two-level shards, read-only entries.
// Package cache stores conversion results keyed by the SHA-256 digest of the
// source file's content.
//
// Content hashing (not path, not mtime) means a hit implies byte-identical
// content: it survives moves, renames, and copies, and any content change is
// observed. SHA-256 keeps collisions out of the picture, is hardware
// accelerated, and its 64-hex-character digest is small enough to use as a
// filename.
//
// Layout under the root directory:
//
//	<root>/<first 2 hex chars>/<full 64-hex digest>.json
//
// The two-level sharding bounds the number of entries per directory. Entries
// are marked read-only after write; updates go through delete-then-rewrite,
// never in-place mutation.
//
// Every operation is best-effort: a cache failure degrades to a miss and is
// never surfaced to callers.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Entries are read-only for everyone once written. Updating requires making
// the file writable, deleting it, and writing a fresh one.
const (
	entryPerm    = os.FileMode(0o444)
	writablePerm = os.FileMode(0o600)
)

// hashChunkSize bounds memory while hashing large files.
const hashChunkSize = 8192

// Entry is one cached conversion result. Quality and Metadata are opaque
// serialized records: the cache persists and re-hydrates them but never
// interprets them.
type Entry struct {
	FileHash string          `json:"file_hash"`
	Markdown string          `json:"markdown"`
	Title    string          `json:"title,omitempty"`
	Quality  json.RawMessage `json:"quality_dict,omitempty"`
	Metadata json.RawMessage `json:"metadata_dict,omitempty"`
}

// Stats summarizes the on-disk cache.
type Stats struct {
	EntryCount     int    `json:"entry_count"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
	Dir            string `json:"cache_dir"`
}

// Cache is a file-based conversion result store. Safe for concurrent use:
// same-content writers race benignly because identical content always
// produces the identical entry.
type Cache struct {
	dir    string
	logger *slog.Logger
}

// New creates a cache rooted at dir. The directory is created if missing.
// An explicit directory is required; there is no process-wide default.
func New(dir string, logger *slog.Logger) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache: directory is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: mkdir %s: %w", dir, err)
	}
	return &Cache{dir: dir, logger: logger}, nil
}

// Dir returns the cache root directory.
func (c *Cache) Dir() string { return c.dir }

// ComputeFileHash returns the hex SHA-256 digest of the file's content,
// streamed in fixed-size chunks so large files never load fully into memory.
func ComputeFileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// entryPath derives the sharded location for a digest.
func (c *Cache) entryPath(fileHash string) string {
	return filepath.Join(c.dir, fileHash[:2], fileHash+".json")
}

// Get returns the cached entry for the file's current content, or nil on
// miss. Any I/O or decode failure is a miss, never an error.
func (c *Cache) Get(path string) *Entry {
	currentHash, err := ComputeFileHash(path)
	if err != nil {
		return nil
	}

	data, err := os.ReadFile(c.entryPath(currentHash))
	if err != nil {
		return nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Debug("cache: corrupt entry", "hash", currentHash, "error", err)
		return nil
	}

	// Double-check the stored digest against the freshly computed one to
	// guard against corruption or misplaced entries.
	if entry.FileHash != currentHash {
		c.logger.Warn("cache: digest mismatch, ignoring entry", "hash", currentHash)
		return nil
	}

	return &entry
}

// Has reports whether a valid entry exists for the file's current content.
func (c *Cache) Has(path string) bool {
	return c.Get(path) != nil
}

// Put stores a conversion result for the file's current content. The entry's
// FileHash is computed here; any value in e is overwritten. Failures are
// swallowed: caching is an optimization, never a correctness requirement.
func (c *Cache) Put(path string, e Entry) {
	fileHash, err := ComputeFileHash(path)
	if err != nil {
		c.logger.Debug("cache: hash failed", "path", path, "error", err)
		return
	}
	e.FileHash = fileHash

	entryPath := c.entryPath(fileHash)
	if err := os.MkdirAll(filepath.Dir(entryPath), 0o755); err != nil {
		c.logger.Debug("cache: mkdir shard", "error", err)
		return
	}

	// An existing entry is read-only: make it writable and remove it.
	// Replacement is always whole-entry, never a patch.
	if _, err := os.Stat(entryPath); err == nil {
		os.Chmod(entryPath, writablePerm)
		os.Remove(entryPath)
	}

	data, err := json.Marshal(e)
	if err != nil {
		c.logger.Debug("cache: marshal entry", "error", err)
		return
	}
	if err := os.WriteFile(entryPath, data, 0o644); err != nil {
		c.logger.Debug("cache: write entry", "path", entryPath, "error", err)
		return
	}

	// Read-only marking is best effort; some filesystems refuse chmod.
	if err := os.Chmod(entryPath, entryPerm); err != nil {
		c.logger.Debug("cache: chmod entry", "path", entryPath, "error", err)
	}
}

// Clear removes every entry and empty shard directory, returning the number
// of entries removed.
func (c *Cache) Clear() int {
	count := 0
	shards, err := os.ReadDir(c.dir)
	if err != nil {
		return 0
	}
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		shardDir := filepath.Join(c.dir, shard.Name())
		files, err := os.ReadDir(shardDir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			entryPath := filepath.Join(shardDir, f.Name())
			os.Chmod(entryPath, writablePerm)
			if err := os.Remove(entryPath); err == nil {
				count++
			}
		}
		os.Remove(shardDir) // only succeeds when empty
	}
	return count
}

// Stats walks the store and reports entry count and total size.
func (c *Cache) Stats() Stats {
	s := Stats{Dir: c.dir}
	shards, err := os.ReadDir(c.dir)
	if err != nil {
		return s
	}
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(c.dir, shard.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			s.EntryCount++
			if info, err := f.Info(); err == nil {
				s.TotalSizeBytes += info.Size()
			}
		}
	}
	return s
}
