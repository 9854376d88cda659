// CLAUDE:SUMMARY CLI entry point for mdbatch — batch file-to-Markdown conversion, token estimation, and MCP serving.
// Command mdbatch converts batches of files to Markdown.
//
// Usage:
//
//	mdbatch -output ./md ./docs                  # convert a directory
//	mdbatch -output ./md a.html b.csv            # convert specific files
//	mdbatch -estimate ./docs                     # token estimate, no conversion
//	mdbatch -mcp -cache-dir ~/.cache/mdbatch     # serve tools over MCP stdio
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/mdbatch/batch"
	"github.com/hazyhaar/mdbatch/cache"
	"github.com/hazyhaar/mdbatch/config"
	"github.com/hazyhaar/mdbatch/convert"
	"github.com/hazyhaar/mdbatch/resume"
	"github.com/hazyhaar/mdbatch/runlog"
	"github.com/hazyhaar/mdbatch/tokens"
)

func main() {
	configPath := flag.String("config", "", "path to mdbatch.yaml config file")
	outputDir := flag.String("output", "", "directory for converted Markdown")
	cacheDir := flag.String("cache-dir", "", "directory for the conversion cache (empty disables caching)")
	workers := flag.Int("workers", 0, "max concurrent conversions (0 = auto)")
	minConfidence := flag.Float64("min-confidence", 0, "filter results below this confidence (0 disables)")
	failFast := flag.Bool("fail-fast", false, "abort on first failed conversion")
	resumeRun := flag.Bool("resume", false, "skip sources whose output already exists")
	restart := flag.Bool("restart", false, "clear the cache and convert everything")
	preserve := flag.Bool("preserve-structure", false, "mirror the source tree under the output directory")
	recursive := flag.Bool("recursive", true, "descend into subdirectories")
	estimate := flag.Bool("estimate", false, "print a token estimate instead of converting")
	serveMCP := flag.Bool("mcp", false, "serve batch tools over MCP stdio")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mdbatch:", err)
		os.Exit(1)
	}

	// Flags override the config file.
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *cacheDir != "" {
		cfg.Cache.Dir = *cacheDir
	}
	if *workers != 0 {
		cfg.Batch.MaxWorkers = *workers
	}
	if *minConfidence != 0 {
		cfg.Batch.MinConfidence = *minConfidence
	}
	if *failFast {
		cfg.Batch.FailFast = true
	}
	if *resumeRun {
		cfg.Batch.Resume = true
	}
	if *restart {
		cfg.Batch.Restart = true
	}
	if *preserve {
		cfg.Output.PreserveStructure = true
	}
	if flagWasSet("recursive") {
		cfg.Batch.Recursive = *recursive
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, *estimate, *serveMCP, flag.Args()); err != nil {
		logger.Error("mdbatch: fatal", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("MDBATCH_CONFIG")
	}
	if path == "" {
		cfg := config.Default()
		cfg.Cache.Dir = env("MDBATCH_CACHE_DIR", cfg.Cache.Dir)
		cfg.Output.Dir = env("MDBATCH_OUTPUT_DIR", cfg.Output.Dir)
		cfg.RunLog.Path = env("MDBATCH_RUNLOG", cfg.RunLog.Path)
		return cfg, nil
	}
	return config.LoadFile(path)
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func newLogger(lc config.LogConfig) *slog.Logger {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config, estimate, serveMCP bool, args []string) error {
	var c *cache.Cache
	if cfg.Cache.Dir != "" {
		var err error
		c, err = cache.New(cfg.Cache.Dir, logger)
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
	}

	registry := convert.DefaultRegistry(logger)

	if serveMCP {
		return runMCP(ctx, logger, registry, c)
	}

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: mdbatch [flags] <file-or-directory ...>")
		os.Exit(1)
	}

	sources, sourceDir, err := collectSources(args, cfg.Batch)
	if err != nil {
		return err
	}

	if estimate {
		return runEstimate(cfg, c, sources, sourceDir)
	}
	return runConvert(ctx, logger, cfg, registry, c, sources, sourceDir)
}

func runMCP(ctx context.Context, logger *slog.Logger, registry *convert.Registry, c *cache.Cache) error {
	svc := batch.NewMCPService(registry, c, logger)
	srv := mcp.NewServer(&mcp.Implementation{Name: "mdbatch", Version: "1.0.0"}, nil)
	svc.RegisterMCP(srv)

	logger.Info("mdbatch: serving MCP over stdio")
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}

// collectSources expands directory arguments into file lists. When exactly
// one directory is given it becomes the source root for structure-preserving
// output paths.
func collectSources(args []string, bc config.BatchConfig) ([]string, string, error) {
	var sources []string
	sourceDir := ""

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, "", fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			sources = append(sources, arg)
			continue
		}
		if len(args) == 1 {
			sourceDir = arg
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if !bc.Recursive && path != arg {
					return filepath.SkipDir
				}
				return nil
			}
			name := d.Name()
			if matchAny(bc.Exclude, name) {
				return nil
			}
			if len(bc.Include) > 0 && !matchAny(bc.Include, name) {
				return nil
			}
			sources = append(sources, path)
			return nil
		})
		if err != nil {
			return nil, "", fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	return sources, sourceDir, nil
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := filepath.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

func runEstimate(cfg *config.Config, c *cache.Cache, sources []string, sourceDir string) error {
	opts := tokens.Options{Cache: c}
	if cfg.Batch.Resume && cfg.Output.Dir != "" {
		opts.Resumed = resume.FindExisting(sources, cfg.Output.Dir, sourceDir, cfg.Output.PreserveStructure)
	}
	est := tokens.EstimateBatch(sources, opts)
	fmt.Println(est.String())
	return nil
}

func runConvert(ctx context.Context, logger *slog.Logger, cfg *config.Config, registry *convert.Registry, c *cache.Cache, sources []string, sourceDir string) error {
	runner, err := batch.New(registry, batch.Options{
		MaxWorkers:        cfg.Batch.MaxWorkers,
		FailFast:          cfg.Batch.FailFast,
		MinConfidence:     cfg.Batch.MinConfidence,
		Cache:             c,
		Resume:            cfg.Batch.Resume,
		Restart:           cfg.Batch.Restart,
		OutputDir:         cfg.Output.Dir,
		SourceDir:         sourceDir,
		PreserveStructure: cfg.Output.PreserveStructure,
		Logger:            logger,
		OnProgress: func(p batch.Progress) {
			logger.Info("mdbatch: progress",
				"done", p.Done, "total", p.Total,
				"source", p.Item.SourcePath, "status", string(p.Item.Status))
		},
	})
	if err != nil {
		return err
	}

	started := time.Now()
	result, runErr := runner.Run(ctx, sources)
	finished := time.Now()

	if cfg.Output.Dir != "" {
		written, werr := batch.WriteOutputs(result, cfg.Output.Dir, batch.WriteOptions{
			PreserveStructure: cfg.Output.PreserveStructure,
			Overwrite:         cfg.Output.Overwrite,
		})
		if werr != nil {
			return werr
		}
		logger.Info("mdbatch: outputs written", "files", len(written), "dir", cfg.Output.Dir)
	}

	if cfg.Output.ManifestPath != "" {
		if err := writeManifest(result, cfg.Output.ManifestPath); err != nil {
			return err
		}
	}

	if cfg.RunLog.Path != "" {
		if err := recordRun(ctx, logger, cfg.RunLog.Path, result, started, finished); err != nil {
			logger.Warn("mdbatch: run not recorded", "error", err)
		}
	}

	fmt.Println(result.String())

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func writeManifest(result *batch.Result, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("manifest dir: %w", err)
	}
	data, err := result.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if !strings.HasSuffix(string(data), "\n") {
		data = append(data, '\n')
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func recordRun(ctx context.Context, logger *slog.Logger, path string, result *batch.Result, started, finished time.Time) error {
	l, err := runlog.Open(path)
	if err != nil {
		return err
	}
	defer l.Close()

	id, err := l.Record(ctx, runlog.FromResult(result, started, finished))
	if err != nil {
		return err
	}
	logger.Debug("mdbatch: run recorded", "id", id, "path", path)
	return nil
}
