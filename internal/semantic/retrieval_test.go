package semantic

import (
	"context"
	"math"
	"testing"

	"codescope/internal/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns the same fixed vector for every input.
type fakeEmbedder struct {
	vec   []float32
	model string
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string {
	if f.model != "" {
		return f.model
	}
	return "fake-model"
}

// simVec builds a unit vector whose cosine similarity to (1, 0) is sim.
func simVec(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

type testUnit struct {
	id       string
	file     string
	symbol   string
	exported bool
	sim      float64
}

func indexWith(t *testing.T, units []testUnit) *Index {
	t.Helper()
	idx := &Index{
		Units: make(map[string]CodeUnit),
		Store: NewVectorStore(),
	}
	for _, u := range units {
		idx.Units[u.id] = CodeUnit{
			ID:         u.id,
			File:       u.file,
			Symbol:     u.symbol,
			Kind:       UnitFunction,
			IsExported: u.exported,
			Code:       "function " + u.symbol + "() {}",
		}
		require.NoError(t, idx.Store.Insert(u.id, simVec(u.sim), Metadata{
			UnitID:     u.id,
			File:       u.file,
			SymbolName: u.symbol,
			Kind:       string(UnitFunction),
			IsExported: u.exported,
		}))
	}
	return idx
}

func retrieve(t *testing.T, idx *Index, q Query, opts RetrieveOptions) []RankedResult {
	t.Helper()
	r := NewRetriever(&fakeEmbedder{vec: []float32{1, 0}})
	results, err := r.Retrieve(context.Background(), q, idx, opts)
	require.NoError(t, err)
	return results
}

func TestBandBoundaries(t *testing.T) {
	assert.Equal(t, BandHigh, bandFor(0.7), "exactly 0.7 is high")
	assert.Equal(t, BandHigh, bandFor(0.95))
	assert.Equal(t, BandMedium, bandFor(0.6), "exactly 0.6 is medium")
	assert.Equal(t, BandMedium, bandFor(0.699))
	assert.Equal(t, BandLow, bandFor(0.599999))
	assert.Equal(t, BandLow, bandFor(0))
}

func TestRetrieveHighConfidenceAutoIncluded(t *testing.T) {
	idx := indexWith(t, []testUnit{
		{id: "u1", file: "/p/a.ts", symbol: "alpha", sim: 0.85},
	})
	results := retrieve(t, idx, Query{TargetLine: "x"}, DefaultRetrieveOptions())

	require.Len(t, results, 1)
	assert.Equal(t, BandHigh, results[0].ConfidenceBand)
	assert.True(t, results[0].AutoInclude)
}

func TestRetrieveMediumNeedsCorroboration(t *testing.T) {
	idx := indexWith(t, []testUnit{
		// Scores stay in the medium band: no symbol match, one exported.
		{id: "plain", file: "/p/a.ts", symbol: "alpha", sim: 0.62},
		{id: "corroborated", file: "/p/b.ts", symbol: "beta", exported: true, sim: 0.62},
	})
	results := retrieve(t, idx, Query{TargetLine: "x"}, DefaultRetrieveOptions())

	require.Len(t, results, 1, "uncorroborated medium results are dropped")
	assert.Equal(t, "corroborated", results[0].Unit.ID)
	assert.False(t, results[0].AutoInclude)
	assert.Equal(t, BandMedium, results[0].ConfidenceBand)
}

func TestRetrieveMediumExcludedWithoutConditional(t *testing.T) {
	idx := indexWith(t, []testUnit{
		{id: "m", file: "/p/a.ts", symbol: "beta", exported: true, sim: 0.62},
	})
	opts := DefaultRetrieveOptions()
	opts.IncludeConditional = false
	results := retrieve(t, idx, Query{TargetLine: "x"}, opts)
	assert.Empty(t, results)
}

func TestRescoreSignals(t *testing.T) {
	idx := indexWith(t, []testUnit{
		{id: "exact", file: "/p/a.ts", symbol: "formatDate", sim: 0.65},
		{id: "partial", file: "/p/b.ts", symbol: "formatDateTime", sim: 0.65},
	})
	q := Query{TargetLine: "formatDate(x)", Symbols: []string{"formatDate"}}
	results := retrieve(t, idx, q, DefaultRetrieveOptions())

	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].Unit.ID)
	assert.InDelta(t, 0.85, results[0].Score, 1e-6)
	assert.Contains(t, results[0].MatchReasons, "exact symbol name match")

	assert.Equal(t, "partial", results[1].Unit.ID)
	assert.InDelta(t, 0.75, results[1].Score, 1e-6)
	assert.Contains(t, results[1].MatchReasons, "partial symbol name match: formatDate")
}

func TestRescoreClampAndSameFilePenalty(t *testing.T) {
	idx := indexWith(t, []testUnit{
		{id: "hot", file: "/p/a.ts", symbol: "run", exported: true, sim: 0.9},
		{id: "self", file: "/p/me.ts", symbol: "other", sim: 0.65},
	})
	q := Query{TargetLine: "run()", Symbols: []string{"run"}, CurrentFile: "/p/me.ts"}
	opts := DefaultRetrieveOptions()
	opts.ExcludeCurrentFile = false
	results := retrieve(t, idx, q, opts)

	require.NotEmpty(t, results)
	assert.Equal(t, "hot", results[0].Unit.ID)
	assert.Equal(t, 1.0, results[0].Score, "scores clamp at 1.0")

	// The same-file unit dropped from 0.65 to 0.55: below the medium floor.
	for _, res := range results {
		assert.NotEqual(t, "self", res.Unit.ID)
	}
}

func TestRetrieveExcludesCurrentFile(t *testing.T) {
	idx := indexWith(t, []testUnit{
		{id: "mine", file: "/p/me.ts", symbol: "alpha", sim: 0.9},
		{id: "theirs", file: "/p/other.ts", symbol: "beta", sim: 0.8},
	})
	q := Query{TargetLine: "x", CurrentFile: "/p/me.ts"}
	results := retrieve(t, idx, q, DefaultRetrieveOptions())

	require.Len(t, results, 1)
	assert.Equal(t, "theirs", results[0].Unit.ID)
}

func TestResultCapFanOut(t *testing.T) {
	// Six high-confidence units all named the same: single-topic query,
	// default cap of three applies.
	var same []testUnit
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		same = append(same, testUnit{id: id, file: "/p/" + id + ".ts", symbol: "sameFn", sim: 0.9})
	}
	results := retrieve(t, indexWith(t, same), Query{TargetLine: "x"}, DefaultRetrieveOptions())
	assert.Len(t, results, 3)

	// Distinct symbols among the top candidates raise the cap to five.
	var distinct []testUnit
	for _, sym := range []string{"aFn", "bFn", "cFn", "dFn", "eFn", "fFn"} {
		distinct = append(distinct, testUnit{id: sym, file: "/p/" + sym + ".ts", symbol: sym, sim: 0.9})
	}
	results = retrieve(t, indexWith(t, distinct), Query{TargetLine: "x"}, DefaultRetrieveOptions())
	assert.Len(t, results, 5)

	// An explicit MaxResults always wins over the heuristic.
	opts := DefaultRetrieveOptions()
	opts.MaxResults = 2
	results = retrieve(t, indexWith(t, distinct), Query{TargetLine: "x"}, opts)
	assert.Len(t, results, 2)
}

func TestCombineWithSymbolResolution(t *testing.T) {
	resolved := []graph.ContextBlock{
		{Symbol: "formatDate", File: "/p/utils.ts", StartLine: 1, EndLine: 3, Code: "function formatDate() {}", Confidence: 1.0},
	}
	semanticResults := []RankedResult{
		{
			Unit:           CodeUnit{ID: "/p/utils.ts::parseDate", File: "/p/utils.ts", Symbol: "parseDate"},
			Score:          0.9,
			ConfidenceBand: BandHigh,
			MatchReasons:   []string{"similarity 0.900"},
		},
		{
			Unit:           CodeUnit{ID: "/p/other.ts::helper", File: "/p/other.ts", Symbol: "helper"},
			Score:          0.8,
			ConfidenceBand: BandHigh,
			MatchReasons:   []string{"similarity 0.800"},
		},
	}

	combined := CombineWithSymbolResolution(resolved, semanticResults)
	require.Len(t, combined, 2, "semantic hits from resolved files are deduplicated")

	first := combined[0]
	assert.Equal(t, "/p/utils.ts", first.Unit.File)
	assert.Equal(t, 1.0, first.Score)
	assert.Equal(t, BandHigh, first.ConfidenceBand)
	assert.True(t, first.AutoInclude)
	assert.Equal(t, []string{"resolved: direct symbol resolution"}, first.MatchReasons)

	second := combined[1]
	assert.Equal(t, "/p/other.ts", second.Unit.File)
	assert.Equal(t, "semantic: similarity match", second.MatchReasons[0])
	assert.Equal(t, "similarity 0.800", second.MatchReasons[1])
}

func TestCombineWithNoResolved(t *testing.T) {
	semanticResults := []RankedResult{
		{Unit: CodeUnit{ID: "u", File: "/p/a.ts"}, Score: 0.8},
	}
	combined := CombineWithSymbolResolution(nil, semanticResults)
	require.Len(t, combined, 1)
	assert.Equal(t, "semantic: similarity match", combined[0].MatchReasons[0])
}
