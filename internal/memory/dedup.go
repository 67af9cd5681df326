// Package memory implements the retrieval engine over the experience graph:
// similarity-based dedup of Policy and Semantic nodes, contrastive retrieval
// of prior attempts, semantic pattern aggregation, and issue classification.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/majlabs/memory-judge/internal/graph"
)

// Default dedup thresholds. Policies represent task identity and should merge
// only on near-exact paraphrase; semantic categories merge more loosely so
// near-duplicate root-cause labels don't proliferate.
const (
	DefaultPolicyThreshold   float32 = 0.9
	DefaultSemanticThreshold float32 = 0.85
)

// UpsertResult reports the reuse-or-create outcome of GetOrCreate.
type UpsertResult struct {
	ID      string
	Created bool
}

// Upserter decides reuse-vs-create for deduplicated entity kinds by nearest-
// neighbor lookup against the candidate's own kind.
//
// GetOrCreate is check-then-act; without a guard two concurrent calls could
// both miss the existing match and both insert. The upserter serializes calls
// per entity kind with an in-process mutex, which makes dedup strict for a
// single process. Multiple processes sharing one store get eventual dedup
// only.
type Upserter struct {
	store             graph.Store
	policyThreshold   float32
	semanticThreshold float32
	locks             map[graph.Kind]*sync.Mutex
}

// UpserterOption configures an Upserter.
type UpserterOption func(*Upserter)

// WithPolicyThreshold overrides the policy dedup threshold.
func WithPolicyThreshold(t float32) UpserterOption {
	return func(u *Upserter) { u.policyThreshold = t }
}

// WithSemanticThreshold overrides the semantic dedup threshold.
func WithSemanticThreshold(t float32) UpserterOption {
	return func(u *Upserter) { u.semanticThreshold = t }
}

// NewUpserter creates an Upserter over the given store.
func NewUpserter(store graph.Store, opts ...UpserterOption) *Upserter {
	u := &Upserter{
		store:             store,
		policyThreshold:   DefaultPolicyThreshold,
		semanticThreshold: DefaultSemanticThreshold,
		locks:             make(map[graph.Kind]*sync.Mutex, len(graph.Kinds())),
	}
	for _, kind := range graph.Kinds() {
		u.locks[kind] = &sync.Mutex{}
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// PolicyThreshold reports the configured policy dedup threshold.
func (u *Upserter) PolicyThreshold() float32 {
	return u.policyThreshold
}

// GetOrCreatePolicy applies GetOrCreate with the policy threshold.
func (u *Upserter) GetOrCreatePolicy(ctx context.Context, policy *graph.Entity) (UpsertResult, error) {
	return u.GetOrCreate(ctx, policy, u.policyThreshold)
}

// GetOrCreateSemantic applies GetOrCreate with the semantic threshold.
func (u *Upserter) GetOrCreateSemantic(ctx context.Context, semantic *graph.Entity) (UpsertResult, error) {
	return u.GetOrCreate(ctx, semantic, u.semanticThreshold)
}

// GetOrCreate returns the id of an existing entity of the candidate's kind
// whose similarity to the candidate is at least threshold, discarding the
// candidate; otherwise it persists the candidate and returns its id with
// Created=true. A candidate with no embedding is created unconditionally —
// there is nothing to compare against.
func (u *Upserter) GetOrCreate(ctx context.Context, candidate *graph.Entity, threshold float32) (UpsertResult, error) {
	if !candidate.Kind.Valid() {
		return UpsertResult{}, fmt.Errorf("invalid entity kind %q", candidate.Kind)
	}

	if !candidate.Embedding.Valid {
		if err := u.store.CreateEntity(ctx, candidate); err != nil {
			return UpsertResult{}, fmt.Errorf("failed to create %s: %w", candidate.Kind, err)
		}
		return UpsertResult{ID: candidate.ID, Created: true}, nil
	}

	mu := u.locks[candidate.Kind]
	mu.Lock()
	defer mu.Unlock()

	matches, err := u.store.SearchSimilar(ctx, candidate.Kind, candidate.Embedding.Values, 1)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("similarity check for %s failed: %w", candidate.Kind, err)
	}

	if len(matches) > 0 && matches[0].Score >= threshold {
		return UpsertResult{ID: matches[0].ID, Created: false}, nil
	}

	if err := u.store.CreateEntity(ctx, candidate); err != nil {
		return UpsertResult{}, fmt.Errorf("failed to create %s: %w", candidate.Kind, err)
	}

	return UpsertResult{ID: candidate.ID, Created: true}, nil
}
