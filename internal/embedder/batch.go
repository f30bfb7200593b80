package embedder

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// defaultBatchSize bounds in-flight requests within one batch.
	defaultBatchSize = 10
	// interBatchDelay is cooperative pacing between batches, not true
	// backpressure from the service.
	interBatchDelay = 200 * time.Millisecond
)

// Input is one text to embed, identified by unit ID and content hash.
type Input struct {
	ID          string
	Text        string
	ContentHash string
}

// Embedding is a stored vector with its staleness-tracking fields.
// Regeneration is triggered when ContentHash differs from the unit's
// current hash or when the model identifier changes.
type Embedding struct {
	UnitID      string    `json:"unitId"`
	Vector      []float32 `json:"vector"`
	Model       string    `json:"model"`
	GeneratedAt time.Time `json:"generatedAt"`
	ContentHash string    `json:"contentHash"`
}

// BatchGenerate embeds inputs in fixed-size batches. Requests within a
// batch are issued concurrently and awaited together; batches are
// sequential with a fixed delay between them. A failure on one input is
// logged and that input is simply absent from the result; partial success
// is the norm, not an exception.
//
// Cancellation is checked between batches only, never mid-batch, so an
// abandoned caller cannot leave a half-finished batch.
func BatchGenerate(ctx context.Context, c Client, inputs []Input, batchSize int) map[string]Embedding {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	out := make(map[string]Embedding, len(inputs))
	var mu sync.Mutex

	for start := 0; start < len(inputs); start += batchSize {
		if start > 0 {
			select {
			case <-ctx.Done():
				slog.Warn("embedding generation cancelled",
					"done", len(out), "total", len(inputs))
				return out
			case <-time.After(interBatchDelay):
			}
		}

		end := start + batchSize
		if end > len(inputs) {
			end = len(inputs)
		}

		var wg sync.WaitGroup
		for _, in := range inputs[start:end] {
			wg.Add(1)
			go func(in Input) {
				defer wg.Done()
				vec, err := EmbedSingle(ctx, c, in.Text)
				if err != nil {
					slog.Warn("embedding failed, unit skipped",
						"unit", in.ID, "error", err)
					return
				}
				mu.Lock()
				out[in.ID] = Embedding{
					UnitID:      in.ID,
					Vector:      vec,
					Model:       c.Model(),
					GeneratedAt: time.Now(),
					ContentHash: in.ContentHash,
				}
				mu.Unlock()
			}(in)
		}
		wg.Wait()
	}

	return out
}

// NeedsRegeneration reports whether an input's embedding is missing or
// stale relative to the current model.
func NeedsRegeneration(in Input, existing map[string]Embedding, model string) bool {
	prev, ok := existing[in.ID]
	if !ok {
		return true
	}
	return prev.ContentHash != in.ContentHash || prev.Model != model
}

// IncrementalGenerate re-embeds only the stale subset of inputs and merges
// the fresh results into the prior map. This is what makes re-indexing
// cheap after small edits.
func IncrementalGenerate(ctx context.Context, c Client, inputs []Input, existing map[string]Embedding, batchSize int) map[string]Embedding {
	var stale []Input
	for _, in := range inputs {
		if NeedsRegeneration(in, existing, c.Model()) {
			stale = append(stale, in)
		}
	}
	slog.Debug("incremental embedding pass",
		"total", len(inputs), "stale", len(stale))

	merged := make(map[string]Embedding, len(inputs))
	for _, in := range inputs {
		if prev, ok := existing[in.ID]; ok {
			merged[in.ID] = prev
		}
	}
	for id, e := range BatchGenerate(ctx, c, stale, batchSize) {
		merged[id] = e
	}
	return merged
}
