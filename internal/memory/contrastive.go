package memory

import (
	"context"
	"fmt"

	"github.com/majlabs/memory-judge/internal/graph"
)

// DefaultOverfetch is the kNN over-fetch multiplier for contrastive
// retrieval. Partitioning by outcome can leave either side short, so the
// retriever asks the index for multiplier*k neighbors before splitting.
const DefaultOverfetch = 4

// ScoredAttempt is one prior attempt returned by contrastive retrieval.
type ScoredAttempt struct {
	ID          string
	Description string
	Successful  bool
	Score       float32
}

// ContrastiveResult holds up to k successful and k failed prior attempts,
// each in descending similarity order. Both slices are non-nil even when
// empty.
type ContrastiveResult struct {
	Successful []ScoredAttempt
	Failed     []ScoredAttempt
}

// Retriever performs contrastive retrieval: nearest prior attempts split
// into successes and failures so a judge can see both sides of similar work.
type Retriever struct {
	store     graph.Store
	overfetch int
}

// NewRetriever creates a Retriever over the given store.
func NewRetriever(store graph.Store) *Retriever {
	return &Retriever{store: store, overfetch: DefaultOverfetch}
}

// Contrastive returns up to k successful and k failed attempts nearest to
// the query vector. Attempts with no recorded outcome are skipped. Each
// partition preserves the index's similarity order.
func (r *Retriever) Contrastive(ctx context.Context, vector []float32, k int) (*ContrastiveResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	matches, err := r.store.SearchSimilar(ctx, graph.KindAttempt, vector, k*r.overfetch)
	if err != nil {
		return nil, fmt.Errorf("attempt search failed: %w", err)
	}

	result := &ContrastiveResult{
		Successful: []ScoredAttempt{},
		Failed:     []ScoredAttempt{},
	}
	for _, m := range matches {
		if m.Successful == nil {
			continue
		}
		attempt := ScoredAttempt{
			ID:          m.ID,
			Description: m.Description,
			Successful:  *m.Successful,
			Score:       m.Score,
		}
		if attempt.Successful {
			if len(result.Successful) < k {
				result.Successful = append(result.Successful, attempt)
			}
		} else {
			if len(result.Failed) < k {
				result.Failed = append(result.Failed, attempt)
			}
		}
		if len(result.Successful) == k && len(result.Failed) == k {
			break
		}
	}

	return result, nil
}
