package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"codescope/internal/embedder"
	"codescope/internal/explain"
	"codescope/internal/graph"
	"codescope/internal/semantic"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing code context tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	proj, err := openProject(cmd.Context(), flagProject, semantic.BuildOptions{})
	if err != nil {
		return err
	}

	resolver := graph.NewResolver(proj.builder, nil)
	retriever := semantic.NewRetriever(proj.client)
	engine := explain.NewEngine(resolver, retriever, nil)

	s := mcpserver.NewMCPServer("codescope", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(explainLineTool(), makeExplainLineHandler(engine, proj))
	s.AddTool(searchCodeTool(), makeSearchCodeHandler(proj))
	s.AddTool(resolveSymbolTool(), makeResolveSymbolHandler(resolver, proj))
	s.AddTool(graphStatsTool(), makeGraphStatsHandler(proj))

	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func explainLineTool() mcp.Tool {
	return mcp.NewTool("explain_line",
		mcp.WithDescription("Get the cross-file context for a specific line of code: exact symbol resolutions first, then semantically similar code units. Returns labeled context blocks with file paths, line ranges, and confidence."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("Path to the source file, relative to the project root or absolute"),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("1-based line number to explain"),
		),
	)
}

func searchCodeTool() mcp.Tool {
	return mcp.NewTool("search_code",
		mcp.WithDescription("Semantically search the project's code units by embedding similarity. Returns matching units with file paths, line ranges, and similarity scores."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language or keyword query"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of units to return (default 10)"),
		),
		mcp.WithString("language",
			mcp.Description("Optional language filter (e.g. 'typescript', 'python', 'go')"),
		),
	)
}

func resolveSymbolTool() mcp.Tool {
	return mcp.NewTool("resolve_symbol",
		mcp.WithDescription("Resolve an identifier to its definition as seen from a given file, following local definitions and import statements. Returns the definition location, kind, confidence, and a source excerpt."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Identifier to resolve"),
		),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File the identifier appears in, relative to the project root or absolute"),
		),
	)
}

func graphStatsTool() mcp.Tool {
	return mcp.NewTool("graph_stats",
		mcp.WithDescription("Get summary statistics for the project's dependency graph and semantic index."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

// --- Handler factories ---

func makeExplainLineHandler(engine *explain.Engine, proj *project) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		file := proj.absPath(req.GetString("file", ""))
		if file == "" {
			return mcp.NewToolResultError("file is required"), nil
		}
		lineNo := req.GetInt("line", 0)
		if lineNo < 1 {
			return mcp.NewToolResultError("line must be a positive integer"), nil
		}

		content, err := os.ReadFile(file)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("read file failed: %v", err)), nil
		}
		lines := strings.Split(string(content), "\n")
		if lineNo > len(lines) {
			return mcp.NewToolResultError(fmt.Sprintf("line %d out of range (%d lines)", lineNo, len(lines))), nil
		}
		target := lines[lineNo-1]

		bundle := engine.ContextFor(ctx, target, lineNo, file, proj.graph, proj.index)
		return mcp.NewToolResultText(formatContextBundle(file, lineNo, target, bundle)), nil
	}
}

func makeSearchCodeHandler(proj *project) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		k := req.GetInt("k", 10)
		if k <= 0 {
			k = 10
		}

		vec, err := embedder.EmbedSingle(ctx, proj.client, query)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("embed query failed: %v", err)), nil
		}

		hits := proj.index.Store.Search(vec, semantic.SearchOptions{
			TopK:    k,
			Filters: semantic.SearchFilters{Language: strings.ToLower(req.GetString("language", ""))},
		})
		return mcp.NewToolResultText(formatSearchHits(query, hits, proj.index)), nil
	}
}

func makeResolveSymbolHandler(resolver *graph.Resolver, proj *project) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := req.GetString("name", "")
		if name == "" {
			return mcp.NewToolResultError("name is required"), nil
		}
		file := proj.absPath(req.GetString("file", ""))
		if file == "" {
			return mcp.NewToolResultError("file is required"), nil
		}

		ref := resolver.ResolveSymbol(name, file, proj.graph)

		var sb strings.Builder
		fmt.Fprintf(&sb, "## %s\n\n**Kind:** %s  \n**Confidence:** %.1f\n", ref.Name, ref.Kind, ref.Confidence)
		if ref.DefinitionFile != "" {
			fmt.Fprintf(&sb, "**Defined in:** %s\n", ref.DefinitionFile)
		}
		if ref.Definition != nil {
			fmt.Fprintf(&sb, "\n```\n%s\n```\n", ref.Definition.Code)
		}
		if ref.Kind == graph.RefUnknown {
			sb.WriteString("\nNo definition found in the project index.\n")
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func makeGraphStatsHandler(proj *project) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		gs := proj.graph.Stats
		is := proj.index.Stats

		var sb strings.Builder
		fmt.Fprintf(&sb, "## Project: %s\n\n", proj.root)
		fmt.Fprintf(&sb, "**Files:** %d (%d with parse errors)  \n", gs.TotalFiles, gs.FilesWithErrors)
		fmt.Fprintf(&sb, "**Symbols:** %d  \n**Imports:** %d\n\n", gs.TotalSymbols, gs.TotalImports)
		fmt.Fprintf(&sb, "**Code units:** %d total, %d embedded\n\n", is.TotalUnits, is.EmbeddedUnits)
		for language, n := range gs.FilesByLanguage {
			fmt.Fprintf(&sb, "- %s: %d files\n", language, n)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- Formatting helpers ---

// absPath resolves a possibly-relative tool argument against the project
// root. Empty stays empty so handlers can report the missing argument.
func (p *project) absPath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.root, path)
}

func formatContextBundle(file string, lineNo int, target string, bundle []semantic.RankedResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Context for %s:%d\n\n```\n%s\n```\n\n", file, lineNo, target)

	if len(bundle) == 0 {
		sb.WriteString("No cross-file context found for this line.\n")
		return sb.String()
	}

	for i, res := range bundle {
		label := "semantic"
		if len(res.MatchReasons) > 0 && strings.HasPrefix(res.MatchReasons[0], "resolved") {
			label = "resolved"
		}
		fmt.Fprintf(&sb, "### Block %d [%s]: `%s`\n\n", i+1, label, res.Unit.File)
		fmt.Fprintf(&sb, "**Symbol:** %s  \n**Lines:** %d-%d  \n**Score:** %.2f (%s)\n\n",
			res.Unit.Symbol, res.Unit.LineRange.Start, res.Unit.LineRange.End, res.Score, res.ConfidenceBand)
		fmt.Fprintf(&sb, "```\n%s\n```\n\n", res.Unit.Code)
	}
	return sb.String()
}

func formatSearchHits(query string, hits []semantic.SearchResult, idx *semantic.Index) string {
	if len(hits) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d units)\n\n", query, len(hits))

	for i, hit := range hits {
		unit, ok := idx.Units[hit.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "### Result %d: `%s`\n\n", i+1, unit.File)
		fmt.Fprintf(&sb, "**Kind:** %s  \n**Symbol:** %s  \n**Lines:** %d-%d  \n**Similarity:** %.3f\n\n",
			unit.Kind, unit.Symbol, unit.LineRange.Start, unit.LineRange.End, hit.Similarity)
		fmt.Fprintf(&sb, "```%s\n%s\n```\n\n", strings.ToLower(unit.Language), unit.Code)
	}
	return sb.String()
}
