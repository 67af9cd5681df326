// Package llm provides the collaborator contracts the judge depends on —
// text embedding, attempt evaluation, and issue classification — plus the
// Gemini and OpenAI implementations.
package llm

import "context"

// Embedder provides text embedding capability. Embedding is a network call
// and is not cached here; callers embed once per entity at creation time.
type Embedder interface {
	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// JudgeRequest carries everything an evaluation call needs. MemoryContext is
// empty for stateless judging.
type JudgeRequest struct {
	Task          string
	AgentOutput   string
	Goal          string
	MemoryContext string
}

// IssueFix is one issue found in an attempt together with its proposed fix.
type IssueFix struct {
	Issue string `json:"issue"`
	Fix   string `json:"fix"`
}

// Verdict is the structured judgment returned by the evaluator.
type Verdict struct {
	Attempt       string     `json:"attempt"`
	IsSuccessful  bool       `json:"is_successful"`
	Reasoning     string     `json:"reasoning"`
	IssueFixPairs []IssueFix `json:"issue_fix_pairs"`
}

// Evaluator judges an agent's output against a task.
type Evaluator interface {
	Judge(ctx context.Context, req JudgeRequest) (*Verdict, error)
}

// Category is an existing semantic category presented to the classifier.
type Category struct {
	Name        string
	Description string
}

// ClassifyRequest asks for an issue to be assigned to a root-cause category.
type ClassifyRequest struct {
	Issue    string
	Existing []Category
}

// CategoryDecision is the classifier's verdict: either the name of an
// existing category or a newly proposed one.
type CategoryDecision struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsNew       bool   `json:"is_new"`
}

// IssueClassifier assigns issues to semantic root-cause categories.
type IssueClassifier interface {
	ClassifyIssue(ctx context.Context, req ClassifyRequest) (*CategoryDecision, error)
}

// Client bundles the three collaborator capabilities a judge needs.
type Client interface {
	Embedder
	Evaluator
	IssueClassifier
}
