package graph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codescope/internal/lang"
)

// skipDirs is the fixed deny-list of directories pruned during the walk:
// version control, build output, and dependency caches.
var skipDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
	"target":       true,
	".codescope":   true,
}

// Builder constructs dependency graphs using an injected parser registry.
type Builder struct {
	registry *lang.Registry
}

// NewBuilder creates a Builder backed by the given registry.
func NewBuilder(registry *lang.Registry) *Builder {
	return &Builder{registry: registry}
}

// BuildGraph walks the project tree, parses every recognized file, and
// assembles the project-wide graph. Parse failures are recorded per file and
// never abort the scan unless SkipErrors is false.
func (b *Builder) BuildGraph(ctx context.Context, root string, opts Options) *BuildResult {
	start := time.Now()
	result := &BuildResult{Success: true}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return &BuildResult{Errors: []string{fmt.Sprintf("resolve root: %v", err)}}
	}

	g := &DependencyGraph{
		Files:       make(map[string]*lang.FileRecord),
		Symbols:     make(map[string][]SymbolLocation),
		ProjectRoot: absRoot,
		Version:     Version,
	}

	paths, err := b.enumerate(absRoot, opts)
	if err != nil {
		return &BuildResult{Errors: []string{fmt.Sprintf("scan %s: %v", absRoot, err)}}
	}

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, err.Error())
			result.Success = false
			break
		}
		rec, err := b.parseOne(path)
		if err != nil {
			if !opts.SkipErrors {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
				result.Success = false
				break
			}
			slog.Warn("skipping unreadable file", "path", path, "error", err)
			continue
		}
		if len(rec.ParseErrors) > 0 {
			slog.Debug("parsed with errors", "path", path, "errors", len(rec.ParseErrors))
			if !opts.SkipErrors {
				result.Errors = append(result.Errors, rec.ParseErrors...)
				result.Success = false
				break
			}
		}
		g.Files[path] = rec
		if opts.OnProgress != nil {
			opts.OnProgress("parsing", i+1, len(paths))
		}
	}

	rebuildSymbolIndex(g)
	b.resolveUsage(g)
	g.LastUpdated = time.Now()
	g.Stats = computeStats(g)

	result.Graph = g
	result.DurationMS = time.Since(start).Milliseconds()
	slog.Info("graph built",
		"root", absRoot,
		"files", g.Stats.TotalFiles,
		"symbols", g.Stats.TotalSymbols,
		"duration_ms", result.DurationMS,
	)
	return result
}

// UpdateGraph replaces the records for changedFiles only, then rebuilds the
// derived symbol index in full. Files that no longer exist are purged.
func (b *Builder) UpdateGraph(g *DependencyGraph, changedFiles []string) *DependencyGraph {
	for _, path := range changedFiles {
		rec, err := b.parseOne(path)
		if err != nil {
			delete(g.Files, path)
			slog.Debug("purged file from graph", "path", path, "error", err)
			continue
		}
		g.Files[path] = rec
	}
	rebuildSymbolIndex(g)
	b.resolveUsage(g)
	g.LastUpdated = time.Now()
	g.Stats = computeStats(g)
	return g
}

func (b *Builder) parseOne(path string) (*lang.FileRecord, error) {
	parser := b.registry.Lookup(path)
	if parser == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	rec := parser.ParseFile(path, content)
	rec.LastModified = info.ModTime()
	rec.ContentHash = hashContent(content)
	return rec, nil
}

// enumerate lists parseable files under root, pruning the deny-list and
// dotfiles, honoring include/exclude globs and the size ceiling.
func (b *Builder) enumerate(absRoot string, opts Options) ([]string, error) {
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultOptions().MaxFileSize
	}
	exts := b.registry.Extensions()

	var paths []string
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		name := d.Name()
		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			if skipDirs[name] || strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		ext := strings.TrimPrefix(filepath.Ext(path), ".")
		if !exts[ext] {
			return nil
		}
		rel, _ := filepath.Rel(absRoot, path)
		rel = filepath.ToSlash(rel)
		if !matchGlobs(opts.Include, rel, true) || matchGlobs(opts.Exclude, rel, false) {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxSize || info.Size() == 0 {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	return paths, err
}

// matchGlobs reports whether rel matches any pattern. An empty include list
// matches everything; an empty exclude list matches nothing.
func matchGlobs(patterns []string, rel string, emptyMeans bool) bool {
	if len(patterns) == 0 {
		return emptyMeans
	}
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(p, filepath.Base(rel)); ok {
			return true
		}
		if strings.HasPrefix(rel, strings.TrimSuffix(p, "/")) {
			return true
		}
	}
	return false
}

// rebuildSymbolIndex regenerates the name → definition-sites index from
// scratch. Multiple definition sites for one name across files is expected,
// not an error.
func rebuildSymbolIndex(g *DependencyGraph) {
	g.Symbols = make(map[string][]SymbolLocation)
	for path, rec := range g.Files {
		for _, def := range rec.Definitions {
			g.Symbols[def.Name] = append(g.Symbols[def.Name], SymbolLocation{
				File:       path,
				Definition: def,
			})
		}
	}
}

// resolveUsage marks, for every relative import of a named symbol, that the
// symbol is used in the importing file. Namespace imports mark every export
// of the target. Unresolved targets are silently left unresolved.
func (b *Builder) resolveUsage(g *DependencyGraph) {
	for path, rec := range g.Files {
		for _, imp := range rec.Imports {
			if imp.IsExternal || !lang.IsRelativeImport(imp.Source) {
				continue
			}
			target := b.ResolveImportPath(g, imp.Source, path, rec.Language)
			targetRec, ok := g.Files[target]
			if !ok {
				continue
			}
			switch imp.Kind {
			case lang.ImportNamespace:
				for i := range targetRec.Exports {
					markUsedIn(targetRec, targetRec.Exports[i].Name, path)
				}
			default:
				for _, sym := range imp.Symbols {
					markUsedIn(targetRec, sym, path)
				}
			}
		}
	}
}

func markUsedIn(rec *lang.FileRecord, symbol, usedBy string) {
	for i := range rec.Definitions {
		if rec.Definitions[i].Name != symbol {
			continue
		}
		for _, u := range rec.Definitions[i].UsedIn {
			if u == usedBy {
				return
			}
		}
		rec.Definitions[i].UsedIn = append(rec.Definitions[i].UsedIn, usedBy)
		return
	}
}

// ResolveImportPath maps a relative import source to a project file path.
// Every candidate extension (and index.* barrel file) is tried against
// actual graph membership; when none is a member the first candidate is
// returned so downstream lookups fail softly.
func (b *Builder) ResolveImportPath(g *DependencyGraph, source, fromFile, language string) string {
	base := filepath.Clean(filepath.Join(filepath.Dir(fromFile), source))

	// The import may already carry an extension.
	if g.Files[base] != nil {
		return base
	}

	candidates := b.registry.CandidateExtensions(language)
	var first string
	for _, ext := range candidates {
		cand := base + "." + ext
		if first == "" {
			first = cand
		}
		if g.Files[cand] != nil {
			return cand
		}
	}
	for _, ext := range candidates {
		cand := filepath.Join(base, "index."+ext)
		if g.Files[cand] != nil {
			return cand
		}
	}
	return first
}

func computeStats(g *DependencyGraph) Stats {
	s := Stats{FilesByLanguage: make(map[string]int)}
	s.TotalFiles = len(g.Files)
	for _, rec := range g.Files {
		s.FilesByLanguage[rec.Language]++
		s.TotalSymbols += len(rec.Definitions)
		s.TotalImports += len(rec.Imports)
		if len(rec.ParseErrors) > 0 {
			s.FilesWithErrors++
		}
	}
	return s
}

func hashContent(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}
