package memory

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/majlabs/memory-judge/internal/graph"
)

const testDim = 4

func newStore(t *testing.T) *graph.SQLiteStore {
	t.Helper()
	ctx := context.Background()

	store, err := graph.NewSQLiteStore(ctx, ":memory:", testDim)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.InitSchema(ctx); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}
	return store
}

// unitVec returns a unit vector whose cosine similarity with unitVec(1) is
// exactly c.
func unitVec(c float64) []float32 {
	return []float32{float32(c), float32(math.Sqrt(1 - c*c)), 0, 0}
}

func TestUpserter_ReusesAboveThreshold(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	upserter := NewUpserter(store)

	existing := graph.NewPolicy("validate email addresses")
	existing.Embedding = graph.NewEmbedding(unitVec(1))
	if res, err := upserter.GetOrCreatePolicy(ctx, existing); err != nil || !res.Created {
		t.Fatalf("first upsert should create: res=%+v err=%v", res, err)
	}

	near := graph.NewPolicy("validate e-mail addresses")
	near.Embedding = graph.NewEmbedding(unitVec(0.95))
	res, err := upserter.GetOrCreatePolicy(ctx, near)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if res.Created {
		t.Error("near-duplicate policy should be reused, not created")
	}
	if res.ID != existing.ID {
		t.Errorf("expected existing id %s, got %s", existing.ID, res.ID)
	}

	policies, err := store.ListByKind(ctx, graph.KindPolicy)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(policies) != 1 {
		t.Errorf("expected 1 stored policy, got %d", len(policies))
	}
}

func TestUpserter_CreatesBelowThreshold(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	upserter := NewUpserter(store)

	existing := graph.NewPolicy("validate email addresses")
	existing.Embedding = graph.NewEmbedding(unitVec(1))
	if _, err := upserter.GetOrCreatePolicy(ctx, existing); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	distinct := graph.NewPolicy("parse CSV files")
	distinct.Embedding = graph.NewEmbedding(unitVec(0.5))
	res, err := upserter.GetOrCreatePolicy(ctx, distinct)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if !res.Created {
		t.Error("dissimilar policy should be created")
	}
	if res.ID != distinct.ID {
		t.Errorf("expected candidate id %s, got %s", distinct.ID, res.ID)
	}
}

func TestUpserter_SemanticThresholdIsLooser(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	upserter := NewUpserter(store)

	existing := graph.NewSemantic("SQL Injection", "unsanitized query input")
	existing.Embedding = graph.NewEmbedding(unitVec(1))
	if _, err := upserter.GetOrCreateSemantic(ctx, existing); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	// 0.87 is below the policy threshold (0.9) but above the semantic one
	// (0.85).
	near := graph.NewSemantic("SQL Injection Risk", "query built from user input")
	near.Embedding = graph.NewEmbedding(unitVec(0.87))
	res, err := upserter.GetOrCreateSemantic(ctx, near)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if res.Created {
		t.Error("semantic at 0.87 similarity should be reused")
	}
	if res.ID != existing.ID {
		t.Errorf("expected existing id %s, got %s", existing.ID, res.ID)
	}
}

func TestUpserter_NoEmbeddingAlwaysCreates(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	upserter := NewUpserter(store)

	for range 2 {
		policy := graph.NewPolicy("identical description")
		res, err := upserter.GetOrCreatePolicy(ctx, policy)
		if err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
		if !res.Created {
			t.Error("unembedded candidate should always be created")
		}
	}

	policies, err := store.ListByKind(ctx, graph.KindPolicy)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(policies) != 2 {
		t.Errorf("expected 2 stored policies, got %d", len(policies))
	}
}

func TestUpserter_InvalidKind(t *testing.T) {
	ctx := context.Background()
	upserter := NewUpserter(newStore(t))

	bad := &graph.Entity{ID: "x", Kind: "Banana", Description: "nope"}
	if _, err := upserter.GetOrCreate(ctx, bad, 0.9); err == nil {
		t.Error("expected error for invalid kind")
	}
}

func TestUpserter_ConcurrentDedup(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	upserter := NewUpserter(store)

	const workers = 8
	results := make([]UpsertResult, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			policy := graph.NewPolicy("the same task, submitted concurrently")
			policy.Embedding = graph.NewEmbedding(unitVec(1))
			results[i], errs[i] = upserter.GetOrCreatePolicy(ctx, policy)
		}()
	}
	wg.Wait()

	created := 0
	firstID := ""
	for i := range workers {
		if errs[i] != nil {
			t.Fatalf("worker %d failed: %v", i, errs[i])
		}
		if results[i].Created {
			created++
		}
		if firstID == "" {
			firstID = results[i].ID
		} else if results[i].ID != firstID {
			t.Errorf("worker %d got id %s, expected %s", i, results[i].ID, firstID)
		}
	}
	if created != 1 {
		t.Errorf("expected exactly 1 creation across %d workers, got %d", workers, created)
	}
}
