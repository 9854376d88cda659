// CLAUDE:SUMMARY Batch orchestrator — bounded worker pool driving resume/cache/convert/filter per source file.
// Package batch converts many files to Markdown concurrently, with per-item
// fault isolation, result caching, resume of interrupted runs, and a
// quality-confidence filter.
//
// One source file in, one Item out, always: a failed conversion becomes a
// failed Item, never a lost one. Every run produces full accounting even
// under fail-fast abort.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hazyhaar/mdbatch/cache"
	"github.com/hazyhaar/mdbatch/convert"
	"github.com/hazyhaar/mdbatch/resume"
)

// Converter is what the orchestrator needs from the conversion layer.
// *convert.Registry satisfies it.
type Converter interface {
	Convert(ctx context.Context, path string) (*convert.Result, error)
}

// Progress is delivered to OnProgress once per finished item.
type Progress struct {
	Done  int
	Total int
	Item  Item
}

// Options configures a Runner.
type Options struct {
	// MaxWorkers bounds concurrent conversions. Zero picks a default from
	// available parallelism. One runs sequentially in input order.
	MaxWorkers int

	// FailFast aborts the batch on the first failed conversion. In-flight
	// items drain to completion; undispatched items end as skipped.
	FailFast bool

	// MinConfidence filters converted items below this confidence to
	// StatusFilteredLowQuality. Zero disables filtering.
	MinConfidence float64

	// Cache, when set, is consulted before converting and populated after
	// each fresh success.
	Cache *cache.Cache

	// Resume skips sources whose output file already exists under
	// OutputDir. Mutually exclusive with Restart.
	Resume bool

	// Restart clears the cache before the run and converts everything.
	Restart bool

	// OutputDir is where outputs are (or were) written. Required when
	// Resume is set; used by output path derivation otherwise.
	OutputDir string

	// SourceDir anchors relative output paths when PreserveStructure is set.
	SourceDir string

	// PreserveStructure mirrors the source tree under OutputDir instead of
	// flattening to file stems.
	PreserveStructure bool

	// OnProgress, when set, is invoked exactly once per item, after the
	// item reaches a terminal status. Calls are serialized.
	OnProgress func(Progress)

	Logger *slog.Logger
}

func (o *Options) validate() error {
	if o.MaxWorkers < 0 {
		return fmt.Errorf("batch: max workers must be >= 0, got %d", o.MaxWorkers)
	}
	if o.MinConfidence < 0 || o.MinConfidence > 1 {
		return fmt.Errorf("batch: min confidence must be in [0,1], got %g", o.MinConfidence)
	}
	if o.Resume && o.Restart {
		return errors.New("batch: resume and restart are mutually exclusive")
	}
	if o.Resume && o.OutputDir == "" {
		return errors.New("batch: resume requires an output directory")
	}
	return nil
}

func (o *Options) workers() int {
	if o.MaxWorkers > 0 {
		return o.MaxWorkers
	}
	n := runtime.NumCPU() + 4
	if n > 32 {
		n = 32
	}
	return n
}

// Runner executes batches against a fixed converter and option set.
type Runner struct {
	conv   Converter
	opts   Options
	logger *slog.Logger
}

// New validates opts and builds a Runner.
func New(conv Converter, opts Options) (*Runner, error) {
	if conv == nil {
		return nil, errors.New("batch: converter is required")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{conv: conv, opts: opts, logger: logger}, nil
}

// Run converts sources and returns the aggregate result. The result always
// holds one terminal Item per source, even when fail-fast aborts the run; in
// that case the returned error reports the aborting failure.
func (r *Runner) Run(ctx context.Context, sources []string) (*Result, error) {
	result := &Result{SourceDir: r.opts.SourceDir}
	if len(sources) == 0 {
		return result, nil
	}

	if r.opts.Restart && r.opts.Cache != nil {
		removed := r.opts.Cache.Clear()
		r.logger.Info("batch: restart cleared cache", "entries", removed)
	}

	var resumed map[string]string
	if r.opts.Resume {
		resumed = resume.FindExisting(sources, r.opts.OutputDir, r.opts.SourceDir, r.opts.PreserveStructure)
		if len(resumed) > 0 {
			r.logger.Info("batch: resuming", "existing_outputs", len(resumed), "total", len(sources))
		}
	}

	total := len(sources)
	var (
		mu        sync.Mutex
		done      int
		abortErr  error
		aborted   atomic.Bool
		wg        sync.WaitGroup
		width     = r.opts.workers()
		sem       = make(chan struct{}, width)
	)

	// The single critical section: item append, counter, and the progress
	// callback move together so observers never see them out of step.
	record := func(it Item) {
		mu.Lock()
		result.Items = append(result.Items, it)
		done++
		if r.opts.OnProgress != nil {
			r.opts.OnProgress(Progress{Done: done, Total: total, Item: it})
		}
		if it.Status == StatusFailed && r.opts.FailFast && abortErr == nil {
			abortErr = fmt.Errorf("batch: aborted on failure of %s: %s", it.SourcePath, it.Error)
			aborted.Store(true)
		}
		mu.Unlock()
	}

	if width == 1 {
		// Sequential mode preserves input order in the result.
		for _, src := range sources {
			if aborted.Load() || ctx.Err() != nil {
				record(skippedItem(src, "batch aborted before dispatch"))
				continue
			}
			record(r.processOne(ctx, src, resumed))
		}
		if abortErr == nil && ctx.Err() != nil {
			abortErr = ctx.Err()
		}
		return result, abortErr
	}

	for _, src := range sources {
		sem <- struct{}{}
		if aborted.Load() || ctx.Err() != nil {
			<-sem
			record(skippedItem(src, "batch aborted before dispatch"))
			continue
		}
		wg.Add(1)
		go func(src string) {
			defer wg.Done()
			defer func() { <-sem }()
			record(r.processOne(ctx, src, resumed))
		}(src)
	}
	wg.Wait()

	if abortErr == nil && ctx.Err() != nil {
		abortErr = ctx.Err()
	}
	return result, abortErr
}

func skippedItem(src, reason string) Item {
	return Item{SourcePath: src, Status: StatusSkipped, Error: reason, ErrorKind: "skipped"}
}

// processOne takes a single source to its terminal status. Resume outranks
// the cache: an existing output needs no cache read at all.
func (r *Runner) processOne(ctx context.Context, src string, resumed map[string]string) Item {
	if out, ok := resumed[src]; ok {
		r.logger.Debug("batch: resumed", "source", src, "output", out)
		return Item{SourcePath: src, Status: StatusResumed}
	}

	if r.opts.Cache != nil {
		if entry := r.opts.Cache.Get(src); entry != nil {
			it := Item{SourcePath: src, Status: StatusCached, Result: resultFromCache(entry)}
			return r.applyFilter(it)
		}
	}

	res, err := r.conv.Convert(ctx, src)
	if err != nil {
		if errors.Is(err, convert.ErrUnsupported) {
			return Item{
				SourcePath: src,
				Status:     StatusUnsupported,
				Error:      err.Error(),
				ErrorKind:  "unsupported_format",
			}
		}
		r.logger.Warn("batch: conversion failed", "source", src, "error", err)
		return Item{
			SourcePath: src,
			Status:     StatusFailed,
			Error:      err.Error(),
			ErrorKind:  errorKind(err),
		}
	}

	if r.opts.Cache != nil {
		r.opts.Cache.Put(src, entryFromResult(res))
	}
	return r.applyFilter(Item{SourcePath: src, Status: StatusSuccess, Result: res})
}

// applyFilter demotes successful conversions below the confidence threshold.
// The result payload is kept so manifests can report what was filtered.
func (r *Runner) applyFilter(it Item) Item {
	if r.opts.MinConfidence <= 0 || it.Result == nil || it.Result.Quality == nil {
		return it
	}
	if it.Result.Quality.Confidence < r.opts.MinConfidence {
		r.logger.Info("batch: filtered low quality",
			"source", it.SourcePath,
			"confidence", it.Result.Quality.Confidence,
			"threshold", r.opts.MinConfidence)
		it.Status = StatusFilteredLowQuality
	}
	return it
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission):
		return "io_error"
	default:
		return "conversion_error"
	}
}

// resultFromCache rebuilds a conversion result from a cache entry. The
// rebuilt quality record is tagged so reports can tell hits from fresh work.
func resultFromCache(e *cache.Entry) *convert.Result {
	res := &convert.Result{Markdown: e.Markdown, Title: e.Title}
	if len(e.Quality) > 0 {
		var q convert.Quality
		if err := json.Unmarshal(e.Quality, &q); err == nil {
			res.Quality = &q
		}
	}
	if res.Quality == nil {
		res.Quality = convert.NewQuality("cache")
	}
	res.Quality.SetMetric("from_cache", true)
	if len(e.Metadata) > 0 {
		var m map[string]any
		if err := json.Unmarshal(e.Metadata, &m); err == nil {
			res.Metadata = m
		}
	}
	return res
}

func entryFromResult(res *convert.Result) cache.Entry {
	e := cache.Entry{Markdown: res.Markdown, Title: res.Title}
	if res.Quality != nil {
		if raw, err := json.Marshal(res.Quality); err == nil {
			e.Quality = raw
		}
	}
	if len(res.Metadata) > 0 {
		if raw, err := json.Marshal(res.Metadata); err == nil {
			e.Metadata = raw
		}
	}
	return e
}

// DirOptions selects files for RunDirectory.
type DirOptions struct {
	Recursive bool
	// Include, when non-empty, keeps only base names matching one of the
	// patterns (filepath.Match syntax). Non-matching files end as skipped.
	Include []string
	// Exclude drops base names matching any pattern; they end as skipped.
	Exclude []string
}

// RunDirectory collects files under dir and runs them as a batch. Files
// excluded by pattern still appear in the result as skipped items, so the
// accounting covers everything the directory held.
func (r *Runner) RunDirectory(ctx context.Context, dir string, opts DirOptions) (*Result, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("batch: %s is not a directory", dir)
	}

	var sources, excluded []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !opts.Recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if matchAny(opts.Exclude, name) {
			excluded = append(excluded, path)
			return nil
		}
		if len(opts.Include) > 0 && !matchAny(opts.Include, name) {
			excluded = append(excluded, path)
			return nil
		}
		sources = append(sources, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("batch: walk %s: %w", dir, err)
	}
	sort.Strings(sources)
	sort.Strings(excluded)

	runner := *r
	if runner.opts.SourceDir == "" {
		runner.opts.SourceDir = dir
	}
	result, runErr := runner.Run(ctx, sources)
	result.SourceDir = runner.opts.SourceDir
	for _, path := range excluded {
		result.Items = append(result.Items, skippedItem(path, "excluded by file pattern"))
	}
	return result, runErr
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := filepath.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
