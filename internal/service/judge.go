// Package service wires the LLM collaborators, the experience graph, and the
// retrieval engine into the judge workflows: evaluate, record, and query.
package service

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/majlabs/memory-judge/internal/graph"
	"github.com/majlabs/memory-judge/internal/llm"
	"github.com/majlabs/memory-judge/internal/memory"
)

// DefaultRetrievalK is how many examples per outcome partition and how many
// patterns an evaluation retrieves unless the caller asks for more.
const DefaultRetrievalK = 3

// MemoryStats summarizes what retrieved experience actually made it into a
// judge prompt after confidence filtering.
type MemoryStats struct {
	SuccessfulExamples int
	FailedExamples     int
	Patterns           int
}

// Evaluation is a verdict plus the memory that informed it. Memory is nil
// for stateless judging.
type Evaluation struct {
	Verdict *llm.Verdict
	Memory  *MemoryStats
}

// Judgment reports everything Record persisted for one verdict.
type Judgment struct {
	Policy       *graph.Entity
	PolicyReused bool
	Attempt      *graph.Entity
	Issues       []*graph.Entity
	Fixes        []*graph.Entity
	// Categories holds the semantic category name each issue was filed
	// under, index-aligned with Issues.
	Categories []string
}

// History is a policy's full track record: its attempts in creation order
// and the semantic categories recurring across them.
type History struct {
	Policy   *graph.Entity
	Attempts []graph.Entity
	Patterns []memory.HistoryPattern
}

// Judge runs evaluations and maintains the experience graph behind them.
type Judge struct {
	llm        llm.Client
	store      graph.Store
	upserter   *memory.Upserter
	retriever  *memory.Retriever
	aggregator *memory.Aggregator
	classifier *memory.Classifier
}

// NewJudge creates a Judge over the given collaborators. Upserter options
// configure the dedup thresholds.
func NewJudge(client llm.Client, store graph.Store, opts ...memory.UpserterOption) *Judge {
	return &Judge{
		llm:        client,
		store:      store,
		upserter:   memory.NewUpserter(store, opts...),
		retriever:  memory.NewRetriever(store),
		aggregator: memory.NewAggregator(store),
		classifier: memory.NewClassifier(client),
	}
}

// Store exposes the underlying graph store.
func (j *Judge) Store() graph.Store {
	return j.store
}

// Embed generates an embedding for the given text.
func (j *Judge) Embed(ctx context.Context, text string) ([]float32, error) {
	return j.llm.Embed(ctx, text)
}

// Evaluate judges an agent's output with no memory context.
func (j *Judge) Evaluate(ctx context.Context, task, agentOutput, goal string) (*Evaluation, error) {
	verdict, err := j.llm.Judge(ctx, llm.JudgeRequest{
		Task:        task,
		AgentOutput: agentOutput,
		Goal:        goal,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}
	return &Evaluation{Verdict: verdict}, nil
}

// EvaluateWithMemory judges an agent's output with retrieved experience in
// the prompt. Contrastive examples and semantic patterns are fetched
// concurrently, filtered by the confidence floors, and rendered into the
// memory-context block. When nothing survives the floors the judgment is
// effectively stateless.
func (j *Judge) EvaluateWithMemory(ctx context.Context, task, agentOutput, goal string, k int) (*Evaluation, error) {
	if k <= 0 {
		k = DefaultRetrievalK
	}

	vector, err := j.llm.Embed(ctx, agentOutput)
	if err != nil {
		return nil, fmt.Errorf("failed to embed agent output: %w", err)
	}

	var (
		contrastive *memory.ContrastiveResult
		patterns    []memory.Pattern
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		contrastive, err = j.retriever.Contrastive(gctx, vector, k)
		return err
	})
	g.Go(func() error {
		var err error
		patterns, err = j.aggregator.PatternsByQuery(gctx, vector, k)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("memory retrieval failed: %w", err)
	}

	mc := memory.BuildMemoryContext(contrastive, patterns)
	stats := &MemoryStats{
		SuccessfulExamples: len(mc.Successful),
		FailedExamples:     len(mc.Failed),
		Patterns:           len(mc.Patterns),
	}

	verdict, err := j.llm.Judge(ctx, llm.JudgeRequest{
		Task:          task,
		AgentOutput:   agentOutput,
		Goal:          goal,
		MemoryContext: mc.Format(),
	})
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	return &Evaluation{Verdict: verdict, Memory: stats}, nil
}

// Record persists a verdict into the experience graph: the policy
// (deduplicated by task similarity), the attempt with its SATISFIES edge,
// and for each issue-fix pair the issue, its fix, and the semantic category
// the issue abstracts to.
func (j *Judge) Record(ctx context.Context, task string, verdict *llm.Verdict) (*Judgment, error) {
	policy := graph.NewPolicy(task)
	taskVec, err := j.llm.Embed(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to embed task: %w", err)
	}
	policy.Embedding = graph.NewEmbedding(taskVec)

	res, err := j.upserter.GetOrCreatePolicy(ctx, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert policy: %w", err)
	}
	policyID := res.ID
	judgment := &Judgment{PolicyReused: !res.Created}
	if res.Created {
		judgment.Policy = policy
	} else {
		existing, err := j.store.GetEntity(ctx, policyID)
		if err != nil {
			return nil, fmt.Errorf("failed to load policy: %w", err)
		}
		judgment.Policy = existing
	}

	attempt := graph.NewAttempt(verdict.Attempt, verdict.IsSuccessful, verdict.Reasoning)
	attemptVec, err := j.llm.Embed(ctx, verdict.Attempt)
	if err != nil {
		return nil, fmt.Errorf("failed to embed attempt: %w", err)
	}
	attempt.Embedding = graph.NewEmbedding(attemptVec)
	if err := j.store.CreateEntity(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}
	if err := j.store.CreateRelationship(ctx, graph.Relationship{
		Type: graph.RelSatisfies, FromID: attempt.ID, ToID: policyID,
	}); err != nil {
		return nil, fmt.Errorf("failed to link attempt to policy: %w", err)
	}
	judgment.Attempt = attempt

	for _, pair := range verdict.IssueFixPairs {
		issue, fix, category, err := j.recordIssue(ctx, attempt.ID, pair)
		if err != nil {
			return nil, err
		}
		judgment.Issues = append(judgment.Issues, issue)
		judgment.Fixes = append(judgment.Fixes, fix)
		judgment.Categories = append(judgment.Categories, category)
	}

	return judgment, nil
}

// recordIssue persists one issue-fix pair and files the issue under a
// semantic category.
func (j *Judge) recordIssue(ctx context.Context, attemptID string, pair llm.IssueFix) (*graph.Entity, *graph.Entity, string, error) {
	issue := graph.NewIssue(pair.Issue)
	issueVec, err := j.llm.Embed(ctx, pair.Issue)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to embed issue: %w", err)
	}
	issue.Embedding = graph.NewEmbedding(issueVec)
	if err := j.store.CreateEntity(ctx, issue); err != nil {
		return nil, nil, "", fmt.Errorf("failed to create issue: %w", err)
	}
	if err := j.store.CreateRelationship(ctx, graph.Relationship{
		Type: graph.RelCauses, FromID: attemptID, ToID: issue.ID,
	}); err != nil {
		return nil, nil, "", fmt.Errorf("failed to link issue to attempt: %w", err)
	}

	fix := graph.NewFix(pair.Fix)
	if err := j.store.CreateEntity(ctx, fix); err != nil {
		return nil, nil, "", fmt.Errorf("failed to create fix: %w", err)
	}
	if err := j.store.CreateRelationship(ctx, graph.Relationship{
		Type: graph.RelResolves, FromID: fix.ID, ToID: issue.ID,
	}); err != nil {
		return nil, nil, "", fmt.Errorf("failed to link fix to issue: %w", err)
	}

	semanticID, name, err := j.categorize(ctx, pair.Issue)
	if err != nil {
		return nil, nil, "", err
	}
	if err := j.store.CreateRelationship(ctx, graph.Relationship{
		Type: graph.RelAbstractsTo, FromID: issue.ID, ToID: semanticID,
	}); err != nil {
		return nil, nil, "", fmt.Errorf("failed to link issue to category: %w", err)
	}

	return issue, fix, name, nil
}

// categorize files an issue under a semantic category, creating one when the
// classifier proposes a genuinely new label. New categories still run through
// the semantic upserter so two near-identical proposals collapse into one
// node.
func (j *Judge) categorize(ctx context.Context, issue string) (string, string, error) {
	existing, err := j.store.ListByKind(ctx, graph.KindSemantic)
	if err != nil {
		return "", "", fmt.Errorf("failed to list categories: %w", err)
	}
	candidates := make([]*graph.Entity, len(existing))
	for i := range existing {
		candidates[i] = &existing[i]
	}

	semantic, isNew, err := j.classifier.Classify(ctx, issue, candidates)
	if err != nil {
		return "", "", err
	}
	if !isNew {
		return semantic.ID, semantic.Name, nil
	}

	vec, err := j.llm.Embed(ctx, semantic.Name+": "+semantic.Description)
	if err != nil {
		return "", "", fmt.Errorf("failed to embed category: %w", err)
	}
	semantic.Embedding = graph.NewEmbedding(vec)

	res, err := j.upserter.GetOrCreateSemantic(ctx, semantic)
	if err != nil {
		return "", "", fmt.Errorf("failed to upsert category: %w", err)
	}
	if !res.Created {
		log.Printf("New category %q merged into an existing semantic node", semantic.Name)
	}
	return res.ID, semantic.Name, nil
}

// SearchPrecedent retrieves contrastive prior attempts for a free-text query.
func (j *Judge) SearchPrecedent(ctx context.Context, query string, k int) (*memory.ContrastiveResult, error) {
	if k <= 0 {
		k = DefaultRetrievalK
	}
	vector, err := j.llm.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return j.retriever.Contrastive(ctx, vector, k)
}

// IssuePatterns retrieves recurring semantic categories for a free-text
// query.
func (j *Judge) IssuePatterns(ctx context.Context, query string, k int) ([]memory.Pattern, error) {
	if k <= 0 {
		k = DefaultRetrievalK
	}
	vector, err := j.llm.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return j.aggregator.PatternsByQuery(ctx, vector, k)
}

// PolicyHistory resolves a task to its policy node by similarity and returns
// the policy's attempts with their aggregated issue categories. A task that
// matches no known policy yields a History with a nil Policy.
func (j *Judge) PolicyHistory(ctx context.Context, task string) (*History, error) {
	vector, err := j.llm.Embed(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to embed task: %w", err)
	}

	matches, err := j.store.SearchSimilar(ctx, graph.KindPolicy, vector, 1)
	if err != nil {
		return nil, fmt.Errorf("policy lookup failed: %w", err)
	}
	if len(matches) == 0 || matches[0].Score < j.upserter.PolicyThreshold() {
		return &History{}, nil
	}

	policy, err := j.store.GetEntity(ctx, matches[0].ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	attempts, err := j.store.AttemptsForPolicy(ctx, policy.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempts: %w", err)
	}

	attemptIDs := make([]string, len(attempts))
	for i, a := range attempts {
		attemptIDs[i] = a.ID
	}
	patterns, err := j.aggregator.PatternsByAttempts(ctx, attemptIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate patterns: %w", err)
	}

	return &History{Policy: policy, Attempts: attempts, Patterns: patterns}, nil
}

// Reset wipes the experience graph.
func (j *Judge) Reset(ctx context.Context) error {
	if err := j.store.Wipe(ctx); err != nil {
		return fmt.Errorf("failed to wipe graph: %w", err)
	}
	log.Printf("Experience graph wiped")
	return nil
}
