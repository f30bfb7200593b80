package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"codescope/internal/lang"
)

// Cache persists dependency graphs to disk, one file per project root,
// keyed by an irreversible hash of the absolute root path.
type Cache struct {
	dir string
}

// NewCache creates a cache rooted at dir (created on first save).
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// cacheFile is the on-disk shape: the two maps flattened to ordered-pair
// lists so key uniqueness survives the round trip regardless of iteration
// order.
type cacheFile struct {
	Files       []filePair   `json:"files"`
	Symbols     []symbolPair `json:"symbols"`
	LastUpdated time.Time    `json:"lastUpdated"`
	ProjectRoot string       `json:"projectRoot"`
	Version     string       `json:"version"`
	Stats       Stats        `json:"stats"`
}

type filePair struct {
	Path   string
	Record *lang.FileRecord
}

func (p filePair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Path, p.Record})
}

func (p *filePair) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &p.Path); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Record)
}

type symbolPair struct {
	Name      string
	Locations []SymbolLocation
}

func (p symbolPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Name, p.Locations})
}

func (p *symbolPair) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &p.Name); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Locations)
}

func (c *Cache) pathFor(projectRoot string) string {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		abs = projectRoot
	}
	return filepath.Join(c.dir, hashContent([]byte(abs))+".graph.json")
}

// Save writes the graph snapshot. Last writer wins; the cache is a derived
// artifact that can always be rebuilt from source.
func (c *Cache) Save(g *DependencyGraph) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	cf := cacheFile{
		LastUpdated: g.LastUpdated,
		ProjectRoot: g.ProjectRoot,
		Version:     g.Version,
		Stats:       g.Stats,
	}
	for path, rec := range g.Files {
		cf.Files = append(cf.Files, filePair{Path: path, Record: rec})
	}
	for name, locs := range g.Symbols {
		cf.Symbols = append(cf.Symbols, symbolPair{Name: name, Locations: locs})
	}
	data, err := json.Marshal(cf)
	if err != nil {
		return fmt.Errorf("marshal graph: %w", err)
	}
	if err := os.WriteFile(c.pathFor(g.ProjectRoot), data, 0o644); err != nil {
		return fmt.Errorf("write graph cache: %w", err)
	}
	return nil
}

// Load returns the cached graph for projectRoot, or nil when there is no
// usable cache. Corruption and version mismatches are never fatal; both
// mean "no cache".
func (c *Cache) Load(projectRoot string) *DependencyGraph {
	data, err := os.ReadFile(c.pathFor(projectRoot))
	if err != nil {
		return nil
	}
	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		slog.Warn("discarding corrupt graph cache", "root", projectRoot, "error", err)
		return nil
	}
	if cf.Version != Version {
		slog.Info("discarding graph cache with stale version",
			"root", projectRoot, "have", cf.Version, "want", Version)
		return nil
	}
	g := &DependencyGraph{
		Files:       make(map[string]*lang.FileRecord, len(cf.Files)),
		Symbols:     make(map[string][]SymbolLocation, len(cf.Symbols)),
		LastUpdated: cf.LastUpdated,
		ProjectRoot: cf.ProjectRoot,
		Version:     cf.Version,
		Stats:       cf.Stats,
	}
	for _, p := range cf.Files {
		g.Files[p.Path] = p.Record
	}
	for _, p := range cf.Symbols {
		g.Symbols[p.Name] = p.Locations
	}
	return g
}

// DetectChangedFiles compares every known file against the filesystem. A
// file is changed when its modification time moved and its content hash no
// longer matches, or when it can no longer be read (so the caller purges it).
func (c *Cache) DetectChangedFiles(g *DependencyGraph) []string {
	var changed []string
	for path, rec := range g.Files {
		info, err := os.Stat(path)
		if err != nil {
			changed = append(changed, path)
			continue
		}
		if info.ModTime().Equal(rec.LastModified) {
			continue
		}
		// Timestamp moved or is ambiguous: fall back to content comparison.
		content, err := os.ReadFile(path)
		if err != nil {
			changed = append(changed, path)
			continue
		}
		if hashContent(content) != rec.ContentHash {
			changed = append(changed, path)
		}
	}
	return changed
}

// LoadOrBuild returns the cached graph when fresh, incrementally updates it
// when some files changed, and falls back to a full build on cache miss.
func (c *Cache) LoadOrBuild(ctx context.Context, b *Builder, root string, opts Options) (*DependencyGraph, error) {
	if g := c.Load(root); g != nil {
		changed := c.DetectChangedFiles(g)
		if len(changed) == 0 {
			slog.Debug("graph cache hit", "root", root)
			return g, nil
		}
		slog.Info("incremental graph update", "root", root, "changed", len(changed))
		g = b.UpdateGraph(g, changed)
		if err := c.Save(g); err != nil {
			slog.Warn("graph cache save failed", "error", err)
		}
		return g, nil
	}

	result := b.BuildGraph(ctx, root, opts)
	if !result.Success {
		return result.Graph, fmt.Errorf("graph build failed: %v", result.Errors)
	}
	if err := c.Save(result.Graph); err != nil {
		slog.Warn("graph cache save failed", "error", err)
	}
	return result.Graph, nil
}
