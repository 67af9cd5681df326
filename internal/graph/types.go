// Package graph defines the experience graph boundary: typed entities,
// directed relationships, per-kind vector similarity search, and the
// traversals the retrieval engine is built on.
package graph

import (
	"time"

	"github.com/google/uuid"
)

// DefaultEmbeddingDim is the embedding dimension used unless configured
// otherwise. It matches text-embedding-3-small and text-embedding-004
// scale output; all kinds share one dimension.
const DefaultEmbeddingDim = 1536

// Kind identifies the node label an entity is stored under. Similarity
// queries never cross kinds.
type Kind string

const (
	KindPolicy   Kind = "Policy"
	KindAttempt  Kind = "Attempt"
	KindIssue    Kind = "Issue"
	KindFix      Kind = "Fix"
	KindSemantic Kind = "Semantic"
)

// Kinds lists every entity kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindPolicy, KindAttempt, KindIssue, KindFix, KindSemantic}
}

// Valid reports whether k is one of the five known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindPolicy, KindAttempt, KindIssue, KindFix, KindSemantic:
		return true
	}
	return false
}

// RelType identifies a directed relationship type.
type RelType string

const (
	RelSatisfies   RelType = "SATISFIES"    // Attempt -> Policy
	RelCauses      RelType = "CAUSES"       // Attempt -> Issue
	RelResolves    RelType = "RESOLVES"     // Fix -> Issue
	RelAbstractsTo RelType = "ABSTRACTS_TO" // Issue -> Semantic
)

// Embedding is a tagged optional vector. Valid is false when the embedding
// step was skipped upstream; consumers must branch on it explicitly instead
// of treating a nil slice as "no embedding".
type Embedding struct {
	Values []float32
	Valid  bool
}

// NewEmbedding wraps a vector as a present embedding.
func NewEmbedding(values []float32) Embedding {
	return Embedding{Values: values, Valid: true}
}

// Dim returns the vector dimension, or 0 when absent.
func (e Embedding) Dim() int {
	if !e.Valid {
		return 0
	}
	return len(e.Values)
}

// Entity is a node in the experience graph. The field set is sparse across
// kinds: Name is used by Semantic nodes, Successful and Reasoning by Attempt
// nodes. ID and Embedding are immutable once stored.
type Entity struct {
	ID          string
	Kind        Kind
	Name        string
	Description string
	Successful  *bool
	Reasoning   string
	Embedding   Embedding
	CreatedAt   time.Time
}

// NewPolicy builds a Policy entity for a task description.
func NewPolicy(description string) *Entity {
	return &Entity{ID: uuid.NewString(), Kind: KindPolicy, Description: description}
}

// NewAttempt builds an Attempt entity carrying the judged outcome.
func NewAttempt(description string, successful bool, reasoning string) *Entity {
	return &Entity{
		ID:          uuid.NewString(),
		Kind:        KindAttempt,
		Description: description,
		Successful:  &successful,
		Reasoning:   reasoning,
	}
}

// NewIssue builds an Issue entity.
func NewIssue(description string) *Entity {
	return &Entity{ID: uuid.NewString(), Kind: KindIssue, Description: description}
}

// NewFix builds a Fix entity.
func NewFix(description string) *Entity {
	return &Entity{ID: uuid.NewString(), Kind: KindFix, Description: description}
}

// NewSemantic builds a Semantic category entity.
func NewSemantic(name, description string) *Entity {
	return &Entity{ID: uuid.NewString(), Kind: KindSemantic, Name: name, Description: description}
}

// Relationship is a directed, typed edge between two stored entities. It
// carries no payload beyond its type.
type Relationship struct {
	Type   RelType
	FromID string
	ToID   string
}

// Match is one similarity-search result: the entity's selected fields plus
// the cosine similarity score in [-1, 1].
type Match struct {
	ID          string
	Kind        Kind
	Name        string
	Description string
	Successful  *bool
	Score       float32
	CreatedAt   time.Time
}

// AttemptIssue is one CAUSES traversal row: an issue reached from an attempt.
type AttemptIssue struct {
	AttemptID   string
	IssueID     string
	Description string
}

// SemanticLink is one ABSTRACTS_TO traversal row: the semantic category an
// issue was abstracted to.
type SemanticLink struct {
	IssueID     string
	SemanticID  string
	Name        string
	Description string
}
