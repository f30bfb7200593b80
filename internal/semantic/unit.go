package semantic

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	"codescope/internal/graph"
	"codescope/internal/lang"
)

const (
	// TokenCeiling is the per-unit token limit (≈ 2000 chars).
	TokenCeiling = 500
	// TruncationMarker terminates a unit that was cut at the ceiling.
	TruncationMarker = "\n// ... [truncated]"
	// charsPerToken is the estimation ratio used throughout.
	charsPerToken = 4
	// estTokensPerLine is the pre-enrichment size estimate used to skip
	// oversized definitions before any file read happens.
	estTokensPerLine = 10
)

// UnitKind classifies an indexable code unit.
type UnitKind string

const (
	UnitFunction  UnitKind = "function"
	UnitClass     UnitKind = "class"
	UnitInterface UnitKind = "interface"
	UnitType      UnitKind = "type"
	UnitBlock     UnitKind = "block"
)

// LineRange is an inclusive 1-based line span.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// UnitMetadata carries the derived fields of a code unit.
type UnitMetadata struct {
	Tokens      int    `json:"tokens"`
	Complexity  int    `json:"complexity,omitempty"`
	ContentHash string `json:"contentHash"`
}

// CodeUnit is one indexable, embeddable chunk of source code, derived from
// a symbol definition plus its source text.
type CodeUnit struct {
	ID            string       `json:"id"` // file::symbolName
	File          string       `json:"file"`
	Symbol        string       `json:"symbol,omitempty"`
	Language      string       `json:"language"`
	Kind          UnitKind     `json:"kind"`
	LineRange     LineRange    `json:"lineRange"`
	Code          string       `json:"code"`
	Signature     string       `json:"signature,omitempty"`
	Documentation string       `json:"documentation,omitempty"`
	Imports       []string     `json:"imports,omitempty"`
	IsExported    bool         `json:"isExported,omitempty"`
	Metadata      UnitMetadata `json:"metadata"`
}

// ReadFileFunc supplies file content for enrichment; injected so tests can
// use an in-memory source.
type ReadFileFunc func(path string) ([]byte, error)

func unitKind(k lang.SymbolKind) UnitKind {
	switch k {
	case lang.KindFunction, lang.KindMethod:
		return UnitFunction
	case lang.KindClass:
		return UnitClass
	case lang.KindInterface:
		return UnitInterface
	case lang.KindType:
		return UnitType
	default:
		return UnitBlock
	}
}

// ExtractCodeUnits converts every symbol definition in the graph into a
// code unit. Definitions whose estimated size exceeds twice the token
// ceiling are logged and skipped rather than corrupted by truncation at
// extraction time.
func ExtractCodeUnits(g *graph.DependencyGraph) []CodeUnit {
	var units []CodeUnit
	for path, rec := range g.Files {
		var importSources []string
		for _, imp := range rec.Imports {
			importSources = append(importSources, imp.Source)
		}
		for _, def := range rec.Definitions {
			lineCount := def.EndLine - def.StartLine + 1
			if lineCount*estTokensPerLine > 2*TokenCeiling {
				slog.Debug("definition too large to index",
					"file", path, "symbol", def.Name, "lines", lineCount)
				continue
			}
			units = append(units, CodeUnit{
				ID:            path + "::" + def.Name,
				File:          path,
				Symbol:        def.Name,
				Language:      rec.Language,
				Kind:          unitKind(def.Kind),
				LineRange:     LineRange{Start: def.StartLine, End: def.EndLine},
				Signature:     def.Signature,
				Documentation: def.Documentation,
				Imports:       importSources,
				IsExported:    def.IsExported,
			})
		}
	}
	return units
}

// EnrichUnits fills each unit with its actual source text: files are read
// once and shared by all their units; each unit gets the exact line slice,
// a content hash, and a recomputed token estimate, truncated at a line
// boundary if it still exceeds the ceiling.
func EnrichUnits(units []CodeUnit, readFile ReadFileFunc) []CodeUnit {
	byFile := make(map[string][]int)
	for i := range units {
		byFile[units[i].File] = append(byFile[units[i].File], i)
	}

	var enriched []CodeUnit
	for path, idxs := range byFile {
		content, err := readFile(path)
		if err != nil {
			slog.Warn("enrichment skipped unreadable file", "path", path, "error", err)
			continue
		}
		lines := strings.Split(string(content), "\n")
		for _, i := range idxs {
			u := units[i]
			start, end := u.LineRange.Start, u.LineRange.End
			if start < 1 {
				start = 1
			}
			if end > len(lines) {
				end = len(lines)
			}
			if start > end {
				continue
			}
			u.Code = strings.Join(lines[start-1:end], "\n")
			u.Metadata.ContentHash = hashText(u.Code)
			u.Metadata.Tokens = estimateTokens(u.Code)
			if u.Metadata.Tokens > TokenCeiling {
				u.Code = truncateAtLine(u.Code, TokenCeiling)
				u.Metadata.Tokens = TokenCeiling
			}
			enriched = append(enriched, u)
		}
	}
	return enriched
}

// truncateAtLine cuts code to roughly ceiling tokens, preserving a line
// boundary and appending the truncation marker.
func truncateAtLine(code string, ceiling int) string {
	maxChars := ceiling*charsPerToken - len(TruncationMarker)
	if len(code) <= maxChars {
		return code
	}
	cut := code[:maxChars]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	return cut + TruncationMarker
}

func estimateTokens(s string) int {
	return len(s) / charsPerToken
}

func hashText(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
