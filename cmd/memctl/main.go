// Command memctl is a thin client for memoryd: each subcommand dials the
// server's JSON-RPC HTTP transport (the store's --listen endpoint) and
// calls the matching MCP tool.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-ports/echovault/internal/markdown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// clientContext carries the --server flag shared by every subcommand.
type clientContext struct {
	serverAddr string
}

func newRootCmd() *cobra.Command {
	cc := &clientContext{}

	root := &cobra.Command{
		Use:           "memctl",
		Short:         "EchoVault memory store client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cc.serverAddr, "server", "http://localhost:8765",
		"memoryd JSON-RPC HTTP endpoint (the server's --listen address)")

	root.AddCommand(
		newRememberCmd(cc),
		newRecallCmd(cc),
		newPinCmd(cc),
		newUnpinCmd(cc),
		newForgetCmd(cc),
		newCleanupCmd(cc),
		newStatsCmd(cc),
	)
	return root
}

func newRememberCmd(cc *clientContext) *cobra.Command {
	var content, kind, source, privacy string
	var importance float64
	var tags []string

	cmd := &cobra.Command{
		Use:   "remember",
		Short: "Save a memory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			args := map[string]any{"content": content}
			if kind != "" {
				args["kind"] = kind
			}
			if source != "" {
				args["source"] = source
			}
			if privacy != "" {
				args["privacy"] = privacy
			}
			if importance != 0 {
				args["importance"] = importance
			}
			if len(tags) > 0 {
				args["tags"] = tags
			}
			return callAndPrint(cmd.Context(), cc, "remember", args)
		},
	}
	f := cmd.Flags()
	f.StringVar(&content, "content", "", "Memory text (required)")
	f.StringVar(&kind, "kind", "", "working | episodic | semantic | procedural")
	f.StringVar(&source, "source", "", "Provenance note")
	f.StringVar(&privacy, "privacy", "", "private | team | public")
	f.Float64Var(&importance, "importance", 0, "0.0-1.0, default 0.5")
	f.StringSliceVar(&tags, "tags", nil, "Comma-separated tags")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func newRecallCmd(cc *clientContext) *cobra.Command {
	var query, kind, tag string
	var limit int
	var asMarkdown bool

	cmd := &cobra.Command{
		Use:   "recall",
		Short: "Search memories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			args := map[string]any{"query": query}
			if kind != "" {
				args["kind"] = kind
			}
			if tag != "" {
				args["tag"] = tag
			}
			if limit != 0 {
				args["limit"] = limit
			}
			if asMarkdown {
				return recallAsMarkdown(cmd.Context(), cc, args)
			}
			return callAndPrint(cmd.Context(), cc, "recall", args)
		},
	}
	f := cmd.Flags()
	f.StringVar(&query, "query", "", "Search text (required)")
	f.StringVar(&kind, "kind", "", "Restrict to one kind")
	f.StringVar(&tag, "tag", "", "Restrict to memories carrying this tag")
	f.IntVar(&limit, "limit", 0, "Max results, default 10")
	f.BoolVar(&asMarkdown, "markdown", false, "Render results as Markdown instead of raw JSON")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func newPinCmd(cc *clientContext) *cobra.Command {
	return idOnlyCmd(cc, "pin", "Pin a memory against the forgetting policy", "pin")
}

func newUnpinCmd(cc *clientContext) *cobra.Command {
	return idOnlyCmd(cc, "unpin", "Clear a memory's pinned exemption", "unpin")
}

func idOnlyCmd(cc *clientContext, use, short, toolName string) *cobra.Command {
	var memoryID string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return callAndPrint(cmd.Context(), cc, toolName, map[string]any{"memory_id": memoryID})
		},
	}
	cmd.Flags().StringVar(&memoryID, "memory-id", "", "Id returned by remember (required)")
	_ = cmd.MarkFlagRequired("memory-id")
	return cmd
}

func newForgetCmd(cc *clientContext) *cobra.Command {
	var memoryID string
	var hard bool
	cmd := &cobra.Command{
		Use:   "forget",
		Short: "Delete a memory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return callAndPrint(cmd.Context(), cc, "forget", map[string]any{"memory_id": memoryID, "hard": hard})
		},
	}
	f := cmd.Flags()
	f.StringVar(&memoryID, "memory-id", "", "Id returned by remember (required)")
	f.BoolVar(&hard, "hard", false, "Permanently delete instead of soft delete")
	_ = cmd.MarkFlagRequired("memory-id")
	return cmd
}

func newCleanupCmd(cc *clientContext) *cobra.Command {
	var kind string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Run the forgetting policy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			args := map[string]any{"dry_run": dryRun}
			if kind != "" {
				args["kind"] = kind
			}
			return callAndPrint(cmd.Context(), cc, "cleanup_memory", args)
		},
	}
	f := cmd.Flags()
	f.StringVar(&kind, "kind", "", "Restrict the pass to one kind")
	f.BoolVar(&dryRun, "dry-run", false, "Preview the plan without deleting anything")
	return cmd
}

func newStatsCmd(cc *clientContext) *cobra.Command {
	var forgetting bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Report performance or forgetting-policy stats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			toolName := "performance_stats"
			if forgetting {
				toolName = "forgetting_stats"
			}
			return callAndPrint(cmd.Context(), cc, toolName, map[string]any{})
		},
	}
	cmd.Flags().BoolVar(&forgetting, "forgetting", false, "Report forgetting_stats instead of performance_stats")
	return cmd
}

func callAndPrint(ctx context.Context, cc *clientContext, toolName string, args map[string]any) error {
	text, err := callTool(ctx, cc.serverAddr, toolName, args)
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}

// recallAsMarkdown calls recall and pretty-prints the hits through
// internal/markdown instead of dumping the raw JSON envelope.
func recallAsMarkdown(ctx context.Context, cc *clientContext, args map[string]any) error {
	text, err := callTool(ctx, cc.serverAddr, "recall", args)
	if err != nil {
		return err
	}
	mems, err := decodeRecallResults(text)
	if err != nil {
		return err
	}
	if len(mems) == 0 {
		fmt.Println("(no matching memories)")
		return nil
	}
	fmt.Println(markdown.RenderResults(mems))
	return nil
}
