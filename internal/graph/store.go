package graph

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an operation references an entity id that does
// not exist in the store, most notably relationship creation against a
// missing endpoint. A relationship is never written dangling.
var ErrNotFound = errors.New("graph: entity not found")

// ErrDimensionMismatch is returned when a vector does not match the store's
// configured embedding dimension.
var ErrDimensionMismatch = errors.New("graph: embedding dimension mismatch")

// Store is the experience graph boundary. Implementations persist typed
// entities and directed relationships, answer per-kind nearest-neighbor
// queries, and run the fixed traversals the retrieval engine needs.
//
// Every method is a single blocking round trip; callers may issue independent
// operations concurrently. Entities returned by read operations do not carry
// their stored embedding — vectors are written once at creation and consulted
// only inside SearchSimilar.
type Store interface {
	// CreateEntity persists a new entity under its kind. The embedding, when
	// present, must match the store's configured dimension.
	CreateEntity(ctx context.Context, e *Entity) error

	// GetEntity returns the entity with the given id, or ErrNotFound.
	GetEntity(ctx context.Context, id string) (*Entity, error)

	// ListByKind returns all entities of one kind in creation order.
	ListByKind(ctx context.Context, kind Kind) ([]Entity, error)

	// CreateRelationship persists a directed edge. Both endpoints must already
	// exist or ErrNotFound is returned. Re-creating an existing edge is a
	// no-op.
	CreateRelationship(ctx context.Context, r Relationship) error

	// SearchSimilar returns up to k entities of the given kind ordered by
	// descending cosine similarity to the query vector. An empty result is
	// valid and not an error.
	SearchSimilar(ctx context.Context, kind Kind, vector []float32, k int) ([]Match, error)

	// IssuesForAttempts traverses CAUSES edges from the given attempts,
	// in edge creation order, stable per invocation.
	IssuesForAttempts(ctx context.Context, attemptIDs []string) ([]AttemptIssue, error)

	// SemanticLinksForIssues traverses ABSTRACTS_TO edges from the given
	// issues, in edge creation order, stable per invocation.
	SemanticLinksForIssues(ctx context.Context, issueIDs []string) ([]SemanticLink, error)

	// AttemptsForPolicy returns every attempt with a SATISFIES edge to the
	// policy, in creation order.
	AttemptsForPolicy(ctx context.Context, policyID string) ([]Entity, error)

	// FixesForIssue returns every fix with a RESOLVES edge to the issue.
	FixesForIssue(ctx context.Context, issueID string) ([]Entity, error)

	// Wipe deletes all nodes and edges. Wiping an empty store succeeds.
	Wipe(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
