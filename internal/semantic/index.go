package semantic

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"codescope/internal/embedder"
	"codescope/internal/graph"
)

// IndexVersion tags the semantic index cache format. Entries from an
// incompatible version are discarded and rebuilt rather than partially
// trusted.
const IndexVersion = "2"

// IndexStats summarizes a built index.
type IndexStats struct {
	TotalUnits      int            `json:"totalUnits"`
	EmbeddedUnits   int            `json:"embeddedUnits"`
	UnitsByLanguage map[string]int `json:"unitsByLanguage"`
}

// Index holds the semantic side of a project: its code units, their
// embeddings, and the vector store over them.
//
// Invariant: the embeddings map and the vector store stay in lock-step;
// every embedded id has exactly one vector-store entry.
type Index struct {
	Units       map[string]CodeUnit           `json:"-"`
	Embeddings  map[string]embedder.Embedding `json:"-"`
	Store       *VectorStore                  `json:"-"`
	LastUpdated time.Time                     `json:"lastUpdated"`
	ProjectRoot string                        `json:"projectRoot"`
	Version     string                        `json:"version"`
	Stats       IndexStats                    `json:"stats"`
}

// BuildOptions controls an index build.
type BuildOptions struct {
	MaxUnits       int
	SkipEmbeddings bool
	OnProgress     graph.ProgressFunc
}

// Manager orchestrates unit extraction, embedding, and vector store
// population, with disk caching keyed by project root.
type Manager struct {
	client   embedder.Client
	readFile ReadFileFunc
	cacheDir string
}

// NewManager creates a manager. readFile may be nil, in which case the
// filesystem is used.
func NewManager(client embedder.Client, readFile ReadFileFunc, cacheDir string) *Manager {
	if readFile == nil {
		readFile = os.ReadFile
	}
	return &Manager{client: client, readFile: readFile, cacheDir: cacheDir}
}

// Build extracts and enriches units from the graph, embeds them (unless
// skipped), and populates the vector store.
func (m *Manager) Build(ctx context.Context, g *graph.DependencyGraph, opts BuildOptions) (*Index, error) {
	units := ExtractCodeUnits(g)
	units = EnrichUnits(units, m.readFile)

	// Empty-bodied units carry no signal worth embedding.
	kept := units[:0]
	for _, u := range units {
		if len(u.Code) > 0 {
			kept = append(kept, u)
		}
	}
	units = kept
	if opts.MaxUnits > 0 && len(units) > opts.MaxUnits {
		units = units[:opts.MaxUnits]
	}

	idx := &Index{
		Units:       make(map[string]CodeUnit, len(units)),
		Embeddings:  make(map[string]embedder.Embedding),
		Store:       NewVectorStore(),
		ProjectRoot: g.ProjectRoot,
		Version:     IndexVersion,
	}
	for _, u := range units {
		idx.Units[u.ID] = u
	}

	if !opts.SkipEmbeddings {
		inputs := embedInputs(units)
		if opts.OnProgress != nil {
			opts.OnProgress("embedding", 0, len(inputs))
		}
		idx.Embeddings = embedder.BatchGenerate(ctx, m.client, inputs, 0)
		if opts.OnProgress != nil {
			opts.OnProgress("embedding", len(idx.Embeddings), len(inputs))
		}
	}

	if err := m.populateStore(idx); err != nil {
		return nil, err
	}
	idx.LastUpdated = time.Now()
	idx.Stats = computeIndexStats(idx)
	slog.Info("semantic index built",
		"root", g.ProjectRoot,
		"units", idx.Stats.TotalUnits,
		"embedded", idx.Stats.EmbeddedUnits,
	)
	return idx, nil
}

// Update removes every unit belonging to changedFiles from the units map,
// embeddings map, and vector store, then re-extracts and re-embeds only
// units from those files.
func (m *Manager) Update(ctx context.Context, idx *Index, changedFiles []string, g *graph.DependencyGraph) error {
	changed := make(map[string]bool, len(changedFiles))
	for _, f := range changedFiles {
		changed[f] = true
	}
	for id, u := range idx.Units {
		if changed[u.File] {
			delete(idx.Units, id)
			delete(idx.Embeddings, id)
			idx.Store.Delete(id)
		}
	}

	all := ExtractCodeUnits(g)
	var fresh []CodeUnit
	for _, u := range all {
		if changed[u.File] {
			fresh = append(fresh, u)
		}
	}
	fresh = EnrichUnits(fresh, m.readFile)

	for _, u := range fresh {
		if len(u.Code) == 0 {
			continue
		}
		idx.Units[u.ID] = u
	}

	inputs := embedInputs(fresh)
	for id, e := range embedder.IncrementalGenerate(ctx, m.client, inputs, idx.Embeddings, 0) {
		idx.Embeddings[id] = e
	}
	for id, e := range idx.Embeddings {
		u, ok := idx.Units[id]
		if !ok {
			continue
		}
		if err := idx.Store.Insert(id, e.Vector, metadataFor(u)); err != nil {
			return fmt.Errorf("reinsert %s: %w", id, err)
		}
	}

	idx.LastUpdated = time.Now()
	idx.Stats = computeIndexStats(idx)
	return nil
}

func embedInputs(units []CodeUnit) []embedder.Input {
	inputs := make([]embedder.Input, 0, len(units))
	for _, u := range units {
		if len(u.Code) == 0 {
			continue
		}
		inputs = append(inputs, embedder.Input{
			ID:          u.ID,
			Text:        u.Code,
			ContentHash: u.Metadata.ContentHash,
		})
	}
	return inputs
}

func metadataFor(u CodeUnit) Metadata {
	return Metadata{
		UnitID:     u.ID,
		File:       u.File,
		Language:   u.Language,
		Kind:       string(u.Kind),
		SymbolName: u.Symbol,
		IsExported: u.IsExported,
	}
}

func (m *Manager) populateStore(idx *Index) error {
	for id, e := range idx.Embeddings {
		u, ok := idx.Units[id]
		if !ok {
			continue
		}
		if err := idx.Store.Insert(id, e.Vector, metadataFor(u)); err != nil {
			return fmt.Errorf("insert %s: %w", id, err)
		}
	}
	return nil
}

func computeIndexStats(idx *Index) IndexStats {
	s := IndexStats{UnitsByLanguage: make(map[string]int)}
	s.TotalUnits = len(idx.Units)
	s.EmbeddedUnits = len(idx.Embeddings)
	for _, u := range idx.Units {
		s.UnitsByLanguage[u.Language]++
	}
	return s
}

// --- disk cache ---

// indexCacheFile mirrors the graph cache shape: maps flattened to
// ordered-pair lists. The vector store itself is not serialized; it is
// reconstructed by re-inserting every cached embedding on load.
type indexCacheFile struct {
	Units           []unitPair      `json:"units"`
	Embeddings      []embeddingPair `json:"embeddings"`
	LastUpdated     time.Time       `json:"lastUpdated"`
	ProjectRoot     string          `json:"projectRoot"`
	Version         string          `json:"version"`
	Stats           IndexStats      `json:"stats"`
	VectorStoreData any             `json:"vectorStoreData"`
}

type unitPair struct {
	ID   string
	Unit CodeUnit
}

func (p unitPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.ID, p.Unit})
}

func (p *unitPair) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &p.ID); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Unit)
}

type embeddingPair struct {
	ID        string
	Embedding embedder.Embedding
}

func (p embeddingPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.ID, p.Embedding})
}

func (p *embeddingPair) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &p.ID); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Embedding)
}

func (m *Manager) cachePath(projectRoot string) string {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		abs = projectRoot
	}
	h := sha256.Sum256([]byte(abs))
	return filepath.Join(m.cacheDir, hex.EncodeToString(h[:])+".semantic.json")
}

// SaveCache persists the index.
func (m *Manager) SaveCache(idx *Index) error {
	if err := os.MkdirAll(m.cacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	cf := indexCacheFile{
		LastUpdated: idx.LastUpdated,
		ProjectRoot: idx.ProjectRoot,
		Version:     idx.Version,
		Stats:       idx.Stats,
	}
	for id, u := range idx.Units {
		cf.Units = append(cf.Units, unitPair{ID: id, Unit: u})
	}
	for id, e := range idx.Embeddings {
		cf.Embeddings = append(cf.Embeddings, embeddingPair{ID: id, Embedding: e})
	}
	data, err := json.Marshal(cf)
	if err != nil {
		return fmt.Errorf("marshal semantic index: %w", err)
	}
	return os.WriteFile(m.cachePath(idx.ProjectRoot), data, 0o644)
}

// LoadCache returns the cached index for projectRoot, or nil when there is
// no usable cache. The vector store is rebuilt from cached embeddings.
func (m *Manager) LoadCache(projectRoot string) *Index {
	data, err := os.ReadFile(m.cachePath(projectRoot))
	if err != nil {
		return nil
	}
	var cf indexCacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		slog.Warn("discarding corrupt semantic index cache", "root", projectRoot, "error", err)
		return nil
	}
	if cf.Version != IndexVersion {
		slog.Info("discarding semantic index cache with stale version",
			"root", projectRoot, "have", cf.Version, "want", IndexVersion)
		return nil
	}
	idx := &Index{
		Units:       make(map[string]CodeUnit, len(cf.Units)),
		Embeddings:  make(map[string]embedder.Embedding, len(cf.Embeddings)),
		Store:       NewVectorStore(),
		LastUpdated: cf.LastUpdated,
		ProjectRoot: cf.ProjectRoot,
		Version:     cf.Version,
		Stats:       cf.Stats,
	}
	for _, p := range cf.Units {
		idx.Units[p.ID] = p.Unit
	}
	for _, p := range cf.Embeddings {
		idx.Embeddings[p.ID] = p.Embedding
	}
	if err := m.populateStore(idx); err != nil {
		slog.Warn("discarding semantic index cache with inconsistent vectors", "error", err)
		return nil
	}
	return idx
}

// modelStale reports whether any cached embedding was generated by a model
// other than the client's current one. Stale vectors must never be scored
// against queries embedded with the new model.
func (m *Manager) modelStale(idx *Index) bool {
	model := m.client.Model()
	for _, e := range idx.Embeddings {
		if e.Model != model {
			return true
		}
	}
	return false
}

// Reembed regenerates every embedding that is stale for the current model
// and rebuilds the vector store. Vectors already produced by the current
// model are reused untouched.
func (m *Manager) Reembed(ctx context.Context, idx *Index) error {
	units := make([]CodeUnit, 0, len(idx.Units))
	for _, u := range idx.Units {
		units = append(units, u)
	}
	idx.Embeddings = embedder.IncrementalGenerate(ctx, m.client, embedInputs(units), idx.Embeddings, 0)
	idx.Store.Clear()
	if err := m.populateStore(idx); err != nil {
		return err
	}
	idx.LastUpdated = time.Now()
	idx.Stats = computeIndexStats(idx)
	return nil
}

// LoadOrBuild is the disk-cache analog of the graph cache: a fresh cache is
// returned as-is, a stale one is incrementally patched, a miss triggers a
// full build. A cache embedded under a different model is re-embedded even
// when no file changed.
func (m *Manager) LoadOrBuild(ctx context.Context, g *graph.DependencyGraph, changedFiles []string, opts BuildOptions) (*Index, error) {
	if idx := m.LoadCache(g.ProjectRoot); idx != nil {
		if !opts.SkipEmbeddings && m.modelStale(idx) {
			slog.Info("embedding model changed, regenerating cached vectors",
				"root", g.ProjectRoot, "model", m.client.Model())
			if err := m.Reembed(ctx, idx); err != nil {
				return nil, err
			}
			if err := m.SaveCache(idx); err != nil {
				slog.Warn("semantic index cache save failed", "error", err)
			}
		}
		if len(changedFiles) == 0 {
			slog.Debug("semantic index cache hit", "root", g.ProjectRoot)
			return idx, nil
		}
		slog.Info("incremental semantic index update",
			"root", g.ProjectRoot, "changed", len(changedFiles))
		if err := m.Update(ctx, idx, changedFiles, g); err != nil {
			return nil, err
		}
		if err := m.SaveCache(idx); err != nil {
			slog.Warn("semantic index cache save failed", "error", err)
		}
		return idx, nil
	}

	idx, err := m.Build(ctx, g, opts)
	if err != nil {
		return nil, err
	}
	if err := m.SaveCache(idx); err != nil {
		slog.Warn("semantic index cache save failed", "error", err)
	}
	return idx, nil
}
