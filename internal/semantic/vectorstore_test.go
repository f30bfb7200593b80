package semantic

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.InDelta(t, math.Sqrt2/2, CosineSimilarity([]float32{1, 0}, []float32{1, 1}), 1e-6)

	// Zero-magnitude vectors yield 0, not NaN.
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, []float32{1, 0}))
}

func TestVectorStoreInsertAndDims(t *testing.T) {
	s := NewVectorStore()
	require.NoError(t, s.Insert("a", []float32{1, 0, 0}, Metadata{UnitID: "a"}))
	assert.Equal(t, 1, s.Len())

	err := s.Insert("b", []float32{1, 0}, Metadata{UnitID: "b"})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 1, s.Len())

	// Re-inserting the same id replaces, not duplicates.
	require.NoError(t, s.Insert("a", []float32{0, 1, 0}, Metadata{UnitID: "a"}))
	assert.Equal(t, 1, s.Len())

	s.Delete("a")
	assert.Equal(t, 0, s.Len())
}

func TestVectorStoreSearchOrdering(t *testing.T) {
	s := NewVectorStore()
	require.NoError(t, s.Insert("far", []float32{0, 1}, Metadata{UnitID: "far"}))
	require.NoError(t, s.Insert("near", []float32{1, 0.1}, Metadata{UnitID: "near"}))
	require.NoError(t, s.Insert("exact", []float32{1, 0}, Metadata{UnitID: "exact"}))

	hits := s.Search([]float32{1, 0}, SearchOptions{TopK: 2})
	require.Len(t, hits, 2)
	assert.Equal(t, "exact", hits[0].ID)
	assert.Equal(t, "near", hits[1].ID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
}

func TestVectorStoreSearchFilters(t *testing.T) {
	s := NewVectorStore()
	require.NoError(t, s.Insert("ts", []float32{1, 0}, Metadata{UnitID: "ts", Language: "typescript", File: "/p/a.ts", Kind: "function"}))
	require.NoError(t, s.Insert("py", []float32{1, 0}, Metadata{UnitID: "py", Language: "python", File: "/p/b.py", Kind: "class"}))

	hits := s.Search([]float32{1, 0}, SearchOptions{TopK: 10, Filters: SearchFilters{Language: "python"}})
	require.Len(t, hits, 1)
	assert.Equal(t, "py", hits[0].ID)

	hits = s.Search([]float32{1, 0}, SearchOptions{TopK: 10, Filters: SearchFilters{Kinds: []string{"function"}}})
	require.Len(t, hits, 1)
	assert.Equal(t, "ts", hits[0].ID)

	hits = s.Search([]float32{1, 0}, SearchOptions{TopK: 10, Filters: SearchFilters{ExcludeFiles: []string{"/p/a.ts"}}})
	require.Len(t, hits, 1)
	assert.Equal(t, "py", hits[0].ID)
}

func TestVectorStoreMinSimilarity(t *testing.T) {
	s := NewVectorStore()
	require.NoError(t, s.Insert("orthogonal", []float32{0, 1}, Metadata{UnitID: "orthogonal"}))
	require.NoError(t, s.Insert("aligned", []float32{1, 0}, Metadata{UnitID: "aligned"}))

	hits := s.Search([]float32{1, 0}, SearchOptions{TopK: 10, MinSimilarity: 0.5})
	require.Len(t, hits, 1)
	assert.Equal(t, "aligned", hits[0].ID)
}

func TestVectorStoreSaveLoad(t *testing.T) {
	s := NewVectorStore()
	require.NoError(t, s.Insert("a", []float32{1, 0}, Metadata{UnitID: "a", File: "/p/a.ts"}))
	require.NoError(t, s.Insert("b", []float32{0, 1}, Metadata{UnitID: "b", File: "/p/b.ts"}))

	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, s.Save(path))

	loaded := NewVectorStore()
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, 2, loaded.Len())

	hits := loaded.Search([]float32{1, 0}, SearchOptions{TopK: 1})
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "/p/a.ts", hits[0].Metadata.File)

	// Dims survive the round trip: a mismatched insert still fails.
	err := loaded.Insert("c", []float32{1, 2, 3}, Metadata{UnitID: "c"})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
