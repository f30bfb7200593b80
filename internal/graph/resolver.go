package graph

import (
	"log/slog"
	"os"
	"strings"

	"codescope/internal/lang"
)

// ReferenceKind classifies where a resolved symbol lives.
type ReferenceKind string

const (
	RefLocal    ReferenceKind = "local"
	RefProject  ReferenceKind = "project"
	RefExternal ReferenceKind = "external"
	RefUnknown  ReferenceKind = "unknown"
)

// maxExcerptLines bounds code excerpts regardless of how large the actual
// definition is.
const maxExcerptLines = 50

// CodeBlock is a bounded excerpt of a definition's source.
type CodeBlock struct {
	File      string
	StartLine int
	EndLine   int
	Code      string
}

// SymbolReference is the result of resolving one identifier.
type SymbolReference struct {
	Name           string
	Kind           ReferenceKind
	DefinitionFile string
	Definition     *CodeBlock
	Confidence     float64
}

// ContextBlock is one cross-file context entry produced for a line.
type ContextBlock struct {
	Symbol     string
	File       string
	StartLine  int
	EndLine    int
	Code       string
	Confidence float64
}

// LineContextOptions bounds context collection for one line.
type LineContextOptions struct {
	MaxContextSymbols int
	MaxLinesPerSymbol int
	TokenBudget       int
}

// DefaultLineContextOptions returns the bounds used when none are given.
func DefaultLineContextOptions() LineContextOptions {
	return LineContextOptions{
		MaxContextSymbols: 5,
		MaxLinesPerSymbol: 30,
		TokenBudget:       2000,
	}
}

// ReadFileFunc supplies file content. Injected so a test harness can
// substitute an in-memory source.
type ReadFileFunc func(path string) ([]byte, error)

// Resolver answers "which definition does this identifier refer to" using
// the dependency graph.
type Resolver struct {
	builder  *Builder
	readFile ReadFileFunc
}

// NewResolver creates a resolver. readFile may be nil, in which case the
// filesystem is used.
func NewResolver(builder *Builder, readFile ReadFileFunc) *Resolver {
	if readFile == nil {
		readFile = os.ReadFile
	}
	return &Resolver{builder: builder, readFile: readFile}
}

// ResolveSymbol resolves name as seen from currentFile. Resolution order,
// first match wins:
//
//  1. defined in currentFile itself (local, 1.0)
//  2. imported by currentFile: external source (external, 1.0, no body) or
//     relative source whose target exports the name (project, 1.0, excerpt)
//  3. exported from anywhere in the project index (project, 0.7; the link
//     is inferred, not verified by an import)
//  4. unknown, 0.0
func (r *Resolver) ResolveSymbol(name, currentFile string, g *DependencyGraph) SymbolReference {
	ref := SymbolReference{Name: name, Kind: RefUnknown}

	current, ok := g.Files[currentFile]
	if ok {
		for i := range current.Definitions {
			if current.Definitions[i].Name == name {
				ref.Kind = RefLocal
				ref.DefinitionFile = currentFile
				ref.Definition = r.excerpt(currentFile, &current.Definitions[i])
				ref.Confidence = 1.0
				return ref
			}
		}
		for _, imp := range current.Imports {
			if !importsSymbol(imp, name) {
				continue
			}
			if imp.IsExternal {
				ref.Kind = RefExternal
				ref.DefinitionFile = imp.Source
				ref.Confidence = 1.0
				return ref
			}
			target := r.builder.ResolveImportPath(g, imp.Source, currentFile, current.Language)
			targetRec, ok := g.Files[target]
			if !ok {
				continue
			}
			for i := range targetRec.Exports {
				if targetRec.Exports[i].Name == name {
					ref.Kind = RefProject
					ref.DefinitionFile = target
					ref.Definition = r.excerpt(target, &targetRec.Exports[i])
					ref.Confidence = 1.0
					return ref
				}
			}
		}
	}

	// Not imported here; look for any exported definition project-wide.
	for _, loc := range g.Symbols[name] {
		if !loc.Definition.IsExported {
			continue
		}
		ref.Kind = RefProject
		ref.DefinitionFile = loc.File
		ref.Definition = r.excerpt(loc.File, &loc.Definition)
		ref.Confidence = 0.7
		return ref
	}

	return ref
}

func importsSymbol(imp lang.ImportStatement, name string) bool {
	if imp.Alias == name {
		return true
	}
	for _, s := range imp.Symbols {
		if s == name {
			return true
		}
	}
	return false
}

// excerpt slices the definition's source, capped at maxExcerptLines from
// the definition's start.
func (r *Resolver) excerpt(path string, def *lang.SymbolDefinition) *CodeBlock {
	content, err := r.readFile(path)
	if err != nil {
		return nil
	}
	lines := strings.Split(string(content), "\n")
	start := def.StartLine
	end := def.EndLine
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if end-start+1 > maxExcerptLines {
		end = start + maxExcerptLines - 1
	}
	if start > end {
		return nil
	}
	return &CodeBlock{
		File:      path,
		StartLine: start,
		EndLine:   end,
		Code:      strings.Join(lines[start-1:end], "\n"),
	}
}

// BuildLineContext detects identifiers referenced on a line, resolves up to
// MaxContextSymbols of them, and collects the cross-file project-kind
// resolutions into a token-budgeted context list. Local and external
// resolutions carry no useful cross-file context and are skipped.
func (r *Resolver) BuildLineContext(line string, lineNumber int, currentFile string, g *DependencyGraph, opts LineContextOptions) []ContextBlock {
	if opts.MaxContextSymbols <= 0 {
		opts = DefaultLineContextOptions()
	}

	names := lang.ExtractIdentifiers(line)
	if len(names) > opts.MaxContextSymbols {
		names = names[:opts.MaxContextSymbols]
	}

	budget := opts.TokenBudget
	var blocks []ContextBlock
	for _, name := range names {
		ref := r.ResolveSymbol(name, currentFile, g)
		if ref.Kind != RefProject || ref.DefinitionFile == currentFile || ref.Definition == nil {
			continue
		}
		code := ref.Definition.Code
		endLine := ref.Definition.EndLine
		if n := opts.MaxLinesPerSymbol; n > 0 && endLine-ref.Definition.StartLine+1 > n {
			codeLines := strings.Split(code, "\n")
			code = strings.Join(codeLines[:n], "\n")
			endLine = ref.Definition.StartLine + n - 1
		}
		cost := estimateTokens(code)
		if cost > budget {
			slog.Debug("line context budget exhausted",
				"line", lineNumber, "symbol", name, "budget", budget)
			break
		}
		budget -= cost
		blocks = append(blocks, ContextBlock{
			Symbol:     name,
			File:       ref.DefinitionFile,
			StartLine:  ref.Definition.StartLine,
			EndLine:    endLine,
			Code:       code,
			Confidence: ref.Confidence,
		})
	}
	return blocks
}

// estimateTokens approximates token count as one per four characters.
func estimateTokens(s string) int {
	return len(s) / 4
}
