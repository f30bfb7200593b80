package semantic

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
)

// ErrDimensionMismatch is returned when an inserted vector's length differs
// from the store's established dimensionality.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Metadata is the fixed, explicit record attached to each vector-store
// entry. Filterable fields are precomputed here rather than carried as an
// untyped bag.
type Metadata struct {
	UnitID     string `json:"unitId"`
	File       string `json:"file"`
	Language   string `json:"language"`
	Kind       string `json:"kind"`
	SymbolName string `json:"symbolName"`
	IsExported bool   `json:"isExported"`
}

// SearchFilters narrows a search by metadata predicates before any
// similarity is computed.
type SearchFilters struct {
	File         string
	Language     string
	Kinds        []string
	ExcludeFiles []string
}

// SearchOptions bounds one search.
type SearchOptions struct {
	TopK          int
	Filters       SearchFilters
	MinSimilarity float64
}

// SearchResult is one hit with its similarity and metadata.
type SearchResult struct {
	ID         string
	Similarity float64
	Metadata   Metadata
}

type entry struct {
	Vector   []float32 `json:"vector"`
	Metadata Metadata  `json:"metadata"`
}

// VectorStore is an in-memory exact nearest-neighbor index over unit
// embeddings. Search is a linear scan: filter first, compute cosine
// similarity for survivors, drop below-floor scores, sort, truncate.
// Acceptable because the corpus is one project's code units; for very large
// projects this scan is the first scaling bottleneck.
type VectorStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	dims    int
}

// NewVectorStore creates an empty store.
func NewVectorStore() *VectorStore {
	return &VectorStore{entries: make(map[string]entry)}
}

// Insert adds or replaces a vector by id. The first insert fixes the
// store's dimensionality.
func (s *VectorStore) Insert(id string, vector []float32, meta Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dims == 0 {
		s.dims = len(vector)
	} else if len(vector) != s.dims {
		return fmt.Errorf("%w: got %d, store has %d", ErrDimensionMismatch, len(vector), s.dims)
	}
	s.entries[id] = entry{Vector: vector, Metadata: meta}
	return nil
}

// Delete removes an entry; deleting a missing id is a no-op.
func (s *VectorStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Clear empties the store.
func (s *VectorStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
	s.dims = 0
}

// Len reports the number of stored vectors.
func (s *VectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Search runs the filtered linear scan.
func (s *VectorStore) Search(query []float32, opts SearchOptions) []SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult
	for id, e := range s.entries {
		if !matchesFilters(e.Metadata, opts.Filters) {
			continue
		}
		sim := CosineSimilarity(query, e.Vector)
		if sim < opts.MinSimilarity {
			continue
		}
		results = append(results, SearchResult{ID: id, Similarity: sim, Metadata: e.Metadata})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})

	if opts.TopK > 0 && len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results
}

func matchesFilters(m Metadata, f SearchFilters) bool {
	if f.File != "" && m.File != f.File {
		return false
	}
	if f.Language != "" && m.Language != f.Language {
		return false
	}
	if len(f.Kinds) > 0 {
		ok := false
		for _, k := range f.Kinds {
			if m.Kind == k {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, ex := range f.ExcludeFiles {
		if m.File == ex {
			return false
		}
	}
	return true
}

// CosineSimilarity is the dot product over the product of Euclidean norms,
// defined as 0 when either vector has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

type storeSnapshot struct {
	Dims    int              `json:"dims"`
	Entries map[string]entry `json:"entries"`
}

// Save writes a flat snapshot of the store.
func (s *VectorStore) Save(path string) error {
	s.mu.RLock()
	snap := storeSnapshot{Dims: s.dims, Entries: s.entries}
	data, err := json.Marshal(snap)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal vector store: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load replaces the store contents from a snapshot.
func (s *VectorStore) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var snap storeSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("unmarshal vector store: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dims = snap.Dims
	s.entries = snap.Entries
	if s.entries == nil {
		s.entries = make(map[string]entry)
	}
	return nil
}
