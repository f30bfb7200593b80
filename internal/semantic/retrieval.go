package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"codescope/internal/embedder"
	"codescope/internal/graph"
)

// Confidence bands and their score boundaries. A score of exactly 0.7 is
// high; exactly 0.6 is medium; anything below 0.6 is low and excluded.
const (
	highConfidence   = 0.7
	mediumConfidence = 0.6
)

const (
	// candidateTopK over-fetches so re-ranking has headroom.
	candidateTopK = 20
	// defaultMaxResults caps the final context set.
	defaultMaxResults = 3
	// fanOutMaxResults applies when the top candidates span multiple
	// distinct symbols.
	fanOutMaxResults = 5
	// fanOutWindow is how many top candidates are inspected for fan-out.
	fanOutWindow = 5
	// maxSurroundingLines bounds the query context blob.
	maxSurroundingLines = 5
)

// ConfidenceBand is the coarse bucket derived from a ranking score.
type ConfidenceBand string

const (
	BandHigh   ConfidenceBand = "high"
	BandMedium ConfidenceBand = "medium"
	BandLow    ConfidenceBand = "low"
)

// Query describes the line being explained.
type Query struct {
	TargetLine       string
	Symbols          []string
	SurroundingLines []string
	Language         string
	CurrentFile      string
}

// RetrieveOptions tunes one retrieval.
type RetrieveOptions struct {
	// MaxResults, when set, always overrides the fan-out heuristic.
	MaxResults int
	// MinConfidence is the candidate similarity floor; zero means the
	// medium-confidence threshold.
	MinConfidence float64
	// IncludeConditional admits corroborated medium-band results.
	IncludeConditional bool
	ExcludeCurrentFile bool
}

// DefaultRetrieveOptions returns the options used when none are given.
func DefaultRetrieveOptions() RetrieveOptions {
	return RetrieveOptions{
		IncludeConditional: true,
		ExcludeCurrentFile: true,
	}
}

// RankedResult is one scored candidate. Ephemeral: produced fresh per
// query, never persisted.
type RankedResult struct {
	Unit           CodeUnit
	Score          float64
	ConfidenceBand ConfidenceBand
	MatchReasons   []string
	AutoInclude    bool
}

// Retriever runs semantic retrieval against an index.
type Retriever struct {
	client embedder.Client
}

// NewRetriever creates a retriever using the given embedding client.
func NewRetriever(client embedder.Client) *Retriever {
	return &Retriever{client: client}
}

// Retrieve runs the ranking pipeline: embed the query, over-fetch
// candidates, re-score with multiple signals, band by confidence, apply
// the medium-band corroboration rule, and cap the result count.
func (r *Retriever) Retrieve(ctx context.Context, q Query, idx *Index, opts RetrieveOptions) ([]RankedResult, error) {
	queryVec, err := embedder.EmbedSingle(ctx, r.client, buildQueryText(q))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return r.rank(q, idx, queryVec, opts), nil
}

// buildQueryText concatenates the target line, detected symbols, and up to
// maxSurroundingLines of context into one blob.
func buildQueryText(q Query) string {
	var b strings.Builder
	b.WriteString(q.TargetLine)
	if len(q.Symbols) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(q.Symbols, " "))
	}
	surrounding := q.SurroundingLines
	if len(surrounding) > maxSurroundingLines {
		surrounding = surrounding[:maxSurroundingLines]
	}
	for _, line := range surrounding {
		b.WriteString("\n")
		b.WriteString(line)
	}
	return b.String()
}

func (r *Retriever) rank(q Query, idx *Index, queryVec []float32, opts RetrieveOptions) []RankedResult {
	minSim := opts.MinConfidence
	if minSim == 0 {
		minSim = mediumConfidence
	}
	filters := SearchFilters{Language: q.Language}
	if opts.ExcludeCurrentFile {
		filters.ExcludeFiles = []string{q.CurrentFile}
	}

	hits := idx.Store.Search(queryVec, SearchOptions{
		TopK:          candidateTopK,
		Filters:       filters,
		MinSimilarity: minSim,
	})

	scored := make([]RankedResult, 0, len(hits))
	for _, hit := range hits {
		unit, ok := idx.Units[hit.ID]
		if !ok {
			continue
		}
		scored = append(scored, rescore(hit, unit, q))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	limit := resultCap(scored, opts)

	var final []RankedResult
	for _, res := range scored {
		switch res.ConfidenceBand {
		case BandHigh:
			res.AutoInclude = true
		case BandMedium:
			if !opts.IncludeConditional {
				continue
			}
			// Medium-confidence results are noisy: include only with a
			// second corroborating signal.
			if !mediumCorroborated(res, q) {
				slog.Debug("medium candidate lacked corroboration",
					"unit", res.Unit.ID, "score", res.Score)
				continue
			}
		default:
			// Low band is never included; keep it visible in logs for
			// diagnostics.
			slog.Debug("low-confidence candidate dropped",
				"unit", res.Unit.ID, "score", res.Score)
			continue
		}
		final = append(final, res)
		if len(final) >= limit {
			break
		}
	}
	return final
}

// rescore applies the additive signal adjustments on top of cosine
// similarity. Each adjustment is independently justified by a reason
// string. The final score is clamped to 1.0 above but not below: a
// same-file-penalized low score simply sorts last.
func rescore(hit SearchResult, unit CodeUnit, q Query) RankedResult {
	score := hit.Similarity
	reasons := []string{fmt.Sprintf("similarity %.3f", hit.Similarity)}

	exact := false
	for _, sym := range q.Symbols {
		if unit.Symbol == sym {
			exact = true
			break
		}
	}
	if exact {
		score += 0.2
		reasons = append(reasons, "exact symbol name match")
	} else {
		// Substring match either direction, first match only.
		unitLower := strings.ToLower(unit.Symbol)
		for _, sym := range q.Symbols {
			symLower := strings.ToLower(sym)
			if unitLower == "" || symLower == "" {
				continue
			}
			if strings.Contains(unitLower, symLower) || strings.Contains(symLower, unitLower) {
				score += 0.1
				reasons = append(reasons, "partial symbol name match: "+sym)
				break
			}
		}
	}

	if unit.IsExported {
		score += 0.05
		reasons = append(reasons, "exported definition")
	}

	if unit.File == q.CurrentFile {
		score -= 0.1
		reasons = append(reasons, "same file as query")
	}

	if score > 1.0 {
		score = 1.0
	}

	return RankedResult{
		Unit:           unit,
		Score:          score,
		ConfidenceBand: bandFor(score),
		MatchReasons:   reasons,
	}
}

func bandFor(score float64) ConfidenceBand {
	switch {
	case score >= highConfidence:
		return BandHigh
	case score >= mediumConfidence:
		return BandMedium
	default:
		return BandLow
	}
}

// mediumCorroborated reports whether a medium-band candidate carries a
// second signal: its symbol matches a query symbol, or it is itself an
// exported definition.
func mediumCorroborated(res RankedResult, q Query) bool {
	for _, sym := range q.Symbols {
		if res.Unit.Symbol == sym {
			return true
		}
	}
	return res.Unit.IsExported
}

// resultCap applies the fan-out heuristic: when more than one distinct
// symbol name appears among the top candidates, the query plausibly
// touches multiple related definitions and the cap is raised. An explicit
// MaxResults always wins.
func resultCap(scored []RankedResult, opts RetrieveOptions) int {
	if opts.MaxResults > 0 {
		return opts.MaxResults
	}
	window := scored
	if len(window) > fanOutWindow {
		window = window[:fanOutWindow]
	}
	distinct := make(map[string]bool)
	for _, res := range window {
		if res.Unit.Symbol != "" {
			distinct[res.Unit.Symbol] = true
		}
	}
	if len(distinct) > 1 {
		return fanOutMaxResults
	}
	return defaultMaxResults
}

// CombineWithSymbolResolution merges exact symbol-resolution context with
// semantic results. Precedence is a hard invariant: structural evidence is
// never outranked or hidden by a similarity match. Resolved hits come
// first at score 1.0; semantic results from a resolved file are dropped so
// the same file's content is not duplicated under two justifications; the
// remainder is appended labeled as semantic rather than resolved.
func CombineWithSymbolResolution(resolved []graph.ContextBlock, semantic []RankedResult) []RankedResult {
	resolvedFiles := make(map[string]bool, len(resolved))
	combined := make([]RankedResult, 0, len(resolved)+len(semantic))

	for _, block := range resolved {
		resolvedFiles[block.File] = true
		combined = append(combined, RankedResult{
			Unit: CodeUnit{
				ID:     block.File + "::" + block.Symbol,
				File:   block.File,
				Symbol: block.Symbol,
				Kind:   UnitBlock,
				LineRange: LineRange{
					Start: block.StartLine,
					End:   block.EndLine,
				},
				Code: block.Code,
			},
			Score:          1.0,
			ConfidenceBand: BandHigh,
			MatchReasons:   []string{"resolved: direct symbol resolution"},
			AutoInclude:    true,
		})
	}

	for _, res := range semantic {
		if resolvedFiles[res.Unit.File] {
			continue
		}
		res.MatchReasons = append([]string{"semantic: similarity match"}, res.MatchReasons...)
		combined = append(combined, res)
	}
	return combined
}
