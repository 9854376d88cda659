// CLAUDE:SUMMARY MCP tool surface — batch convert, token estimate, and cache maintenance over the MCP protocol.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/mdbatch/cache"
	"github.com/hazyhaar/mdbatch/resume"
	"github.com/hazyhaar/mdbatch/tokens"
)

// MCPService exposes batch operations as MCP tools.
type MCPService struct {
	conv   Converter
	cache  *cache.Cache
	logger *slog.Logger
}

// NewMCPService builds the tool surface. cache may be nil; the cache tools
// then report an error to the caller instead of panicking.
func NewMCPService(conv Converter, c *cache.Cache, logger *slog.Logger) *MCPService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MCPService{conv: conv, cache: c, logger: logger}
}

// RegisterMCP registers all batch tools on an MCP server.
func (s *MCPService) RegisterMCP(srv *mcp.Server) {
	s.registerConvertTool(srv)
	s.registerEstimateTool(srv)
	s.registerCacheStatsTool(srv)
	s.registerCacheClearTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func registerTool(srv *mcp.Server, tool *mcp.Tool, endpoint func(context.Context, *mcp.CallToolRequest) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := endpoint(ctx, req)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// --- convert ---

type convertReq struct {
	Paths             []string `json:"paths"`
	MaxWorkers        int      `json:"max_workers,omitempty"`
	FailFast          bool     `json:"fail_fast,omitempty"`
	MinConfidence     float64  `json:"min_confidence,omitempty"`
	Resume            bool     `json:"resume,omitempty"`
	OutputDir         string   `json:"output_dir,omitempty"`
	SourceDir         string   `json:"source_dir,omitempty"`
	PreserveStructure bool     `json:"preserve_structure,omitempty"`
}

func (s *MCPService) registerConvertTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "batch_convert",
		Description: "Convert a list of files to Markdown and return the run manifest. Outputs are written when output_dir is set.",
		InputSchema: inputSchema(map[string]any{
			"paths":              map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Source file paths"},
			"max_workers":        map[string]any{"type": "integer", "description": "Concurrent conversion bound (0 = auto)"},
			"fail_fast":          map[string]any{"type": "boolean", "description": "Abort on first failed conversion"},
			"min_confidence":     map[string]any{"type": "number", "description": "Filter results below this confidence (0 disables)"},
			"resume":             map[string]any{"type": "boolean", "description": "Skip sources whose output already exists"},
			"output_dir":         map[string]any{"type": "string", "description": "Directory to write Markdown outputs"},
			"source_dir":         map[string]any{"type": "string", "description": "Root anchoring relative output paths"},
			"preserve_structure": map[string]any{"type": "boolean", "description": "Mirror the source tree under output_dir"},
		}, []string{"paths"}),
	}

	registerTool(srv, tool, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		var r convertReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		runner, err := New(s.conv, Options{
			MaxWorkers:        r.MaxWorkers,
			FailFast:          r.FailFast,
			MinConfidence:     r.MinConfidence,
			Cache:             s.cache,
			Resume:            r.Resume,
			OutputDir:         r.OutputDir,
			SourceDir:         r.SourceDir,
			PreserveStructure: r.PreserveStructure,
			Logger:            s.logger,
		})
		if err != nil {
			return nil, err
		}
		result, runErr := runner.Run(ctx, r.Paths)
		if r.OutputDir != "" {
			if _, err := WriteOutputs(result, r.OutputDir, WriteOptions{PreserveStructure: r.PreserveStructure}); err != nil {
				return nil, err
			}
		}
		if runErr != nil {
			// Fail-fast abort still returns the manifest; the error rides
			// along so the caller sees why the batch stopped early.
			return map[string]any{
				"aborted":  runErr.Error(),
				"manifest": result.Manifest(),
			}, nil
		}
		return result.Manifest(), nil
	})
}

// --- estimate ---

type estimateReq struct {
	Paths             []string `json:"paths"`
	Resume            bool     `json:"resume,omitempty"`
	OutputDir         string   `json:"output_dir,omitempty"`
	SourceDir         string   `json:"source_dir,omitempty"`
	PreserveStructure bool     `json:"preserve_structure,omitempty"`
}

func (s *MCPService) registerEstimateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "batch_estimate",
		Description: "Estimate LLM token cost for a batch without converting anything.",
		InputSchema: inputSchema(map[string]any{
			"paths":              map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Source file paths"},
			"resume":             map[string]any{"type": "boolean", "description": "Treat sources with existing outputs as free"},
			"output_dir":         map[string]any{"type": "string", "description": "Output directory used for the resume check"},
			"source_dir":         map[string]any{"type": "string", "description": "Root anchoring relative output paths"},
			"preserve_structure": map[string]any{"type": "boolean", "description": "Resume check mirrors the source tree under output_dir"},
		}, []string{"paths"}),
	}

	registerTool(srv, tool, func(_ context.Context, req *mcp.CallToolRequest) (any, error) {
		var r estimateReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		opts := tokens.Options{Cache: s.cache}
		if r.Resume && r.OutputDir != "" {
			opts.Resumed = resume.FindExisting(r.Paths, r.OutputDir, r.SourceDir, r.PreserveStructure)
		}
		est := tokens.EstimateBatch(r.Paths, opts)
		return map[string]any{
			"summary": est.Summarize(),
			"files":   est.Files,
		}, nil
	})
}

// --- cache ---

func (s *MCPService) registerCacheStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "cache_stats",
		Description: "Report conversion cache entry count and disk usage.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	registerTool(srv, tool, func(_ context.Context, _ *mcp.CallToolRequest) (any, error) {
		if s.cache == nil {
			return nil, errors.New("no cache configured")
		}
		return s.cache.Stats(), nil
	})
}

func (s *MCPService) registerCacheClearTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "cache_clear",
		Description: "Delete every conversion cache entry.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	registerTool(srv, tool, func(_ context.Context, _ *mcp.CallToolRequest) (any, error) {
		if s.cache == nil {
			return nil, errors.New("no cache configured")
		}
		removed := s.cache.Clear()
		s.logger.Info("batch: cache cleared via mcp", "entries", removed)
		return map[string]any{"removed": removed}, nil
	})
}
