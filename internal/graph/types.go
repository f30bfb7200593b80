package graph

import (
	"errors"
	"time"

	"codescope/internal/lang"
)

// Version tags the graph cache format. Bump on incompatible changes; stale
// cache entries are discarded and rebuilt rather than partially trusted.
const Version = "2"

var (
	// ErrUnsupportedFile marks a file no registered parser handles.
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrNotInIndex marks a file the graph has never seen.
	ErrNotInIndex = errors.New("file not in index")
)

// SymbolLocation points at one definition site of a named symbol.
type SymbolLocation struct {
	File       string                `json:"file"`
	Definition lang.SymbolDefinition `json:"definition"`
}

// Stats summarizes a built graph.
type Stats struct {
	TotalFiles      int            `json:"totalFiles"`
	TotalSymbols    int            `json:"totalSymbols"`
	TotalImports    int            `json:"totalImports"`
	FilesByLanguage map[string]int `json:"filesByLanguage"`
	FilesWithErrors int            `json:"filesWithErrors"`
}

// DependencyGraph is the project-wide structure of files and their symbols.
//
// Invariant: Symbols is a derived, rebuildable index over Files. It is never
// mutated independently; any file change triggers a full index rebuild
// (cheap at project scale).
type DependencyGraph struct {
	Files       map[string]*lang.FileRecord `json:"-"`
	Symbols     map[string][]SymbolLocation `json:"-"`
	LastUpdated time.Time                   `json:"lastUpdated"`
	ProjectRoot string                      `json:"projectRoot"`
	Version     string                      `json:"version"`
	Stats       Stats                       `json:"stats"`
}

// BuildResult reports the outcome of a graph build. A failed build is
// reported here rather than as a returned error where possible.
type BuildResult struct {
	Graph      *DependencyGraph
	DurationMS int64
	Errors     []string
	Success    bool
}

// ProgressFunc reports build progress as (phase, done, total).
type ProgressFunc func(phase string, done, total int)

// Options controls a graph build.
type Options struct {
	Include     []string // glob patterns; empty means everything
	Exclude     []string
	MaxFileSize int64
	SkipErrors  bool
	OnProgress  ProgressFunc
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		MaxFileSize: 1 << 20,
		SkipErrors:  true,
	}
}
