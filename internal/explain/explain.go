package explain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"codescope/internal/graph"
	"codescope/internal/lang"
	"codescope/internal/llm"
	"codescope/internal/semantic"
)

const systemPrompt = `You are a code intelligence assistant. You explain what a specific line of code means and how it relates to the rest of the project, using the retrieved source code context provided below.

Context blocks labeled "resolved" were found by exact symbol resolution and are certain; blocks labeled "semantic" are similarity-based suggestions. Prefer resolved context when they disagree. Reference specific file paths and line numbers.

Do not generate new code unless explicitly asked. Keep answers concise and grounded in the provided context. If the context doesn't contain enough information to answer, say so.`

// Engine wires the resolver and retriever behind one line-explanation call.
type Engine struct {
	resolver  *graph.Resolver
	retriever *semantic.Retriever
	chat      llm.Chat
}

// NewEngine creates an explanation engine.
func NewEngine(resolver *graph.Resolver, retriever *semantic.Retriever, chat llm.Chat) *Engine {
	return &Engine{resolver: resolver, retriever: retriever, chat: chat}
}

// Result is an explanation plus the context bundle it was grounded on.
type Result struct {
	Answer  string
	Line    string
	Context []semantic.RankedResult
}

// Line produces the context bundle for one line and asks the model to
// explain it. question may be empty, in which case a default prompt is used.
func (e *Engine) Line(ctx context.Context, file string, lineNo int, question string, g *graph.DependencyGraph, idx *semantic.Index) (*Result, error) {
	if _, ok := g.Files[file]; !ok {
		return nil, fmt.Errorf("%w: %s", graph.ErrNotInIndex, file)
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	lines := strings.Split(string(content), "\n")
	if lineNo < 1 || lineNo > len(lines) {
		return nil, fmt.Errorf("line %d out of range for %s (%d lines)", lineNo, file, len(lines))
	}
	target := lines[lineNo-1]

	bundle := e.ContextFor(ctx, target, lineNo, file, g, idx)

	msgs := BuildMessages(bundle, target, file, lineNo, question)
	answer, err := e.chat.Generate(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("generate explanation: %w", err)
	}

	return &Result{Answer: answer, Line: target, Context: bundle}, nil
}

// ContextFor builds the ordered, labeled context bundle for a line: exact
// symbol resolution first, semantic similarity after, merged with
// precedence to the resolver.
func (e *Engine) ContextFor(ctx context.Context, target string, lineNo int, file string, g *graph.DependencyGraph, idx *semantic.Index) []semantic.RankedResult {
	resolved := e.resolver.BuildLineContext(target, lineNo, file, g, graph.DefaultLineContextOptions())

	var language string
	if rec, ok := g.Files[file]; ok {
		language = rec.Language
	}
	query := semantic.Query{
		TargetLine:       target,
		Symbols:          lang.ExtractIdentifiers(target),
		SurroundingLines: surrounding(g, file, lineNo),
		Language:         language,
		CurrentFile:      file,
	}

	results, err := e.retriever.Retrieve(ctx, query, idx, semantic.DefaultRetrieveOptions())
	if err != nil {
		// Semantic retrieval failing degrades to resolver-only context.
		slog.Warn("semantic retrieval unavailable", "error", err)
		results = nil
	}

	return semantic.CombineWithSymbolResolution(resolved, results)
}

// surrounding returns up to two lines on each side of the target line.
func surrounding(g *graph.DependencyGraph, file string, lineNo int) []string {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil
	}
	lines := strings.Split(string(content), "\n")
	var out []string
	for i := lineNo - 3; i <= lineNo+1; i++ {
		if i < 0 || i >= len(lines) || i == lineNo-1 {
			continue
		}
		out = append(out, lines[i])
	}
	return out
}

// BuildMessages formats the context bundle and question into the chat
// message list. Prompt assembly lives here, outside the core: the engine's
// contract ends at the labeled bundle.
func BuildMessages(bundle []semantic.RankedResult, target, file string, lineNo int, question string) []llm.Message {
	msgs := []llm.Message{{Role: "system", Content: systemPrompt}}

	if len(bundle) > 0 {
		var ctx strings.Builder
		ctx.WriteString("Here is the relevant source code context:\n\n")
		for i, res := range bundle {
			label := "semantic"
			if len(res.MatchReasons) > 0 && strings.HasPrefix(res.MatchReasons[0], "resolved") {
				label = "resolved"
			}
			fmt.Fprintf(&ctx, "--- Block %d [%s]: %s %s (lines %d-%d, score %.2f) ---\n",
				i+1, label, res.Unit.File, res.Unit.Symbol,
				res.Unit.LineRange.Start, res.Unit.LineRange.End, res.Score)
			ctx.WriteString(res.Unit.Code)
			ctx.WriteString("\n\n")
		}
		msgs = append(msgs, llm.Message{Role: "user", Content: ctx.String()})
		msgs = append(msgs, llm.Message{Role: "assistant", Content: "I've reviewed the code context. What would you like to know?"})
	}

	if question == "" {
		question = "Explain what this line does and why it matters in this project."
	}
	msgs = append(msgs, llm.Message{
		Role: "user",
		Content: fmt.Sprintf("%s\n\nLine %d of %s:\n\n```\n%s\n```",
			question, lineNo, file, target),
	})
	return msgs
}
