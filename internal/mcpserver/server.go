// Package mcpserver exposes internal/tool's operations as MCP tools over
// stdio (or, via NewHTTPHandler, the library's streamable-HTTP transport),
// using the same validate-then-orchestrate-then-shape-response handler
// pattern as the store's original single-vault MCP server.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/go-ports/echovault/internal/buildinfo"
	"github.com/go-ports/echovault/internal/model"
	"github.com/go-ports/echovault/internal/tool"
	"github.com/go-ports/echovault/internal/tool/toolerr"
)

const rememberDescription = `Save a memory for later recall. Content is required; kind defaults to episodic, importance to 0.5, privacy to private. Always succeeds once the memory is stored, even if background indexing fails.`

const recallDescription = `Search memories by free-text query, ranked by a blend of lexical and semantic relevance. Returns an empty list rather than an error when nothing matches.`

const forgetDescription = `Delete a memory. Soft delete (default) clears it from recall but keeps the row for review; hard delete removes it permanently and fails if the memory is still pinned.`

const pinDescription = `Exempt a memory from the forgetting policy so it is never auto-deleted.`

const unpinDescription = `Remove a memory's pinned exemption.`

const cleanupDescription = `Run the forgetting policy: score every memory by age, disuse, and importance, and soft/hard-delete or flag for review those past threshold. dry_run previews the plan without deleting anything.`

// NewServer creates and registers every memory tool on a new MCP server.
// It is intentionally separate from Serve so tests and other callers can
// obtain a fully configured server without committing to stdio.
func NewServer(svc *tool.Service) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("echovault", buildinfo.Version)
	registerTools(s, svc)
	return s
}

// Serve runs the MCP server over stdio, blocking until stdin closes.
func Serve(_ context.Context, svc *tool.Service) error {
	return mcpserver.ServeStdio(NewServer(svc))
}

func registerTools(s *mcpserver.MCPServer, svc *tool.Service) {
	s.AddTool(mcp.NewTool("remember",
		mcp.WithDescription(rememberDescription),
		mcp.WithString("content", mcp.Description("The memory text."), mcp.Required()),
		mcp.WithString("kind", mcp.Description("working | episodic | semantic | procedural."),
			mcp.Enum("working", "episodic", "semantic", "procedural")),
		mcp.WithArray("tags", mcp.Description("Relevant tags."), mcp.WithStringItems()),
		mcp.WithNumber("importance", mcp.Description("0.0-1.0, default 0.5.")),
		mcp.WithString("source", mcp.Description("Free-text provenance note.")),
		mcp.WithString("privacy", mcp.Description("private | team | public."),
			mcp.Enum("private", "team", "public")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleRemember(ctx, svc, req)
	})

	s.AddTool(mcp.NewTool("recall",
		mcp.WithDescription(recallDescription),
		mcp.WithString("query", mcp.Description("Search text."), mcp.Required()),
		mcp.WithString("kind", mcp.Description("Restrict to one memory kind."),
			mcp.Enum("working", "episodic", "semantic", "procedural")),
		mcp.WithString("tag", mcp.Description("Restrict to memories carrying this tag.")),
		mcp.WithNumber("limit", mcp.Description("Max results, default 10.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleRecall(ctx, svc, req)
	})

	s.AddTool(mcp.NewTool("forget",
		mcp.WithDescription(forgetDescription),
		mcp.WithString("memory_id", mcp.Description("Id returned by remember."), mcp.Required()),
		mcp.WithBoolean("hard", mcp.Description("Permanently delete instead of soft delete.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleForget(ctx, svc, req)
	})

	s.AddTool(mcp.NewTool("pin",
		mcp.WithDescription(pinDescription),
		mcp.WithString("memory_id", mcp.Description("Id returned by remember."), mcp.Required()),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handlePinUnpin(ctx, svc, req, true)
	})

	s.AddTool(mcp.NewTool("unpin",
		mcp.WithDescription(unpinDescription),
		mcp.WithString("memory_id", mcp.Description("Id returned by remember."), mcp.Required()),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handlePinUnpin(ctx, svc, req, false)
	})

	s.AddTool(mcp.NewTool("cleanup_memory",
		mcp.WithDescription(cleanupDescription),
		mcp.WithString("kind", mcp.Description("Restrict the pass to one kind; all kinds if omitted."),
			mcp.Enum("working", "episodic", "semantic", "procedural")),
		mcp.WithBoolean("dry_run", mcp.Description("Preview the plan without deleting anything.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleCleanup(ctx, svc, req)
	})

	s.AddTool(mcp.NewTool("forgetting_stats",
		mcp.WithDescription("Report forgetting-policy partition sizes across all kinds without deleting anything."),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleForgettingStats(ctx, svc)
	})

	s.AddTool(mcp.NewTool("performance_stats",
		mcp.WithDescription("Report storage, search, and task-queue counters."),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handlePerformanceStats(ctx, svc)
	})

	s.AddTool(mcp.NewTool("database_optimize",
		mcp.WithDescription("Checkpoint the write-ahead log into the main database file."),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleDatabaseOptimize(ctx, svc)
	})
}

// ---------------------------------------------------------------------------
// Tool handlers
// ---------------------------------------------------------------------------

func handleRemember(ctx context.Context, svc *tool.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := tool.RememberInput{
		Content:    req.GetString("content", ""),
		Kind:       model.Kind(req.GetString("kind", "")),
		Importance: req.GetFloat("importance", 0),
		Source:     req.GetString("source", ""),
		Privacy:    model.Privacy(req.GetString("privacy", "")),
		Tags:       req.GetStringSlice("tags", make([]string, 0)),
	}

	result, tErr := svc.Remember(ctx, in)
	if tErr != nil {
		return errorResult(tErr)
	}
	return jsonResult(map[string]any{
		"memory_id":         result.MemoryID,
		"embedding_created": result.EmbeddingCreated,
	})
}

func handleRecall(ctx context.Context, svc *tool.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := tool.RecallInput{
		Query: req.GetString("query", ""),
		Kind:  model.Kind(req.GetString("kind", "")),
		Tag:   req.GetString("tag", ""),
		Limit: req.GetInt("limit", 10),
	}

	hits, tErr := svc.Recall(ctx, in)
	if tErr != nil {
		return errorResult(tErr)
	}

	clean := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		clean = append(clean, map[string]any{
			"memory_id":   h.MemoryID,
			"content":     h.Content,
			"kind":        h.Kind,
			"importance":  h.Importance,
			"final_score": h.Score,
			"reason":      h.Reason,
			"tags":        h.Tags,
			"source":      h.Source,
			"pinned":      h.Pinned,
		})
	}
	return jsonResult(map[string]any{"results": clean})
}

func handleForget(ctx context.Context, svc *tool.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := tool.ForgetInput{
		MemoryID: req.GetString("memory_id", ""),
		Hard:     req.GetBool("hard", false),
	}
	if tErr := svc.Forget(ctx, in); tErr != nil {
		return errorResult(tErr)
	}
	return jsonResult(map[string]any{"ok": true})
}

func handlePinUnpin(ctx context.Context, svc *tool.Service, req mcp.CallToolRequest, pin bool) (*mcp.CallToolResult, error) {
	id := req.GetString("memory_id", "")
	var tErr *toolerr.Error
	if pin {
		tErr = svc.Pin(ctx, id)
	} else {
		tErr = svc.Unpin(ctx, id)
	}
	if tErr != nil {
		return errorResult(tErr)
	}
	return jsonResult(map[string]any{"ok": true, "pinned": pin})
}

func handleCleanup(ctx context.Context, svc *tool.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := tool.CleanupInput{
		Kind:   model.Kind(req.GetString("kind", "")),
		DryRun: req.GetBool("dry_run", false),
	}
	result, tErr := svc.CleanupMemory(ctx, in)
	if tErr != nil {
		return errorResult(tErr)
	}
	soft, hard, review := result.Plan.Counts()
	return jsonResult(map[string]any{
		"dry_run":      result.DryRun,
		"soft_deleted": result.SoftDeleted,
		"hard_deleted": result.HardDeleted,
		"reviewed":     result.Reviewed,
		"plan_sizes":   map[string]int{"soft": soft, "hard": hard, "review": review},
	})
}

func handleForgettingStats(ctx context.Context, svc *tool.Service) (*mcp.CallToolResult, error) {
	result, tErr := svc.ForgettingStats(ctx)
	if tErr != nil {
		return errorResult(tErr)
	}
	return jsonResult(map[string]any{
		"soft": result.Soft, "hard": result.Hard, "review": result.Review,
		"total": result.Total, "mean_score": result.MeanScore, "by_kind": result.ByKind,
	})
}

func handlePerformanceStats(ctx context.Context, svc *tool.Service) (*mcp.CallToolResult, error) {
	result, tErr := svc.PerformanceStats(ctx)
	if tErr != nil {
		return errorResult(tErr)
	}
	return jsonResult(map[string]any{
		"count_by_kind": result.CountByKind,
		"search_stats": map[string]any{
			"searches":    result.HybridStats.Searches,
			"text_hits":   result.HybridStats.TextHits,
			"vector_hits": result.HybridStats.VectorHits,
		},
		"queue_depth": result.QueueDepth,
	})
}

func handleDatabaseOptimize(ctx context.Context, svc *tool.Service) (*mcp.CallToolResult, error) {
	if tErr := svc.DatabaseOptimize(ctx); tErr != nil {
		return errorResult(tErr)
	}
	return jsonResult(map[string]any{"ok": true})
}

// ---------------------------------------------------------------------------
// Envelope helpers
// ---------------------------------------------------------------------------

// errorResult shapes a toolerr.Error into the uniform {ok:false, error}
// envelope the MCP transport expects.
func errorResult(tErr *toolerr.Error) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(map[string]any{"code": tErr.Code, "message": tErr.Error()})
	if err != nil {
		return mcp.NewToolResultError(tErr.Error()), nil
	}
	return mcp.NewToolResultError(string(b)), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
