package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/majlabs/memory-judge/internal/graph"
	"github.com/majlabs/memory-judge/internal/llm"
	"github.com/majlabs/memory-judge/internal/memory"
)

const testDim = 4

func unitVec(c float64) []float32 {
	return []float32{float32(c), float32(math.Sqrt(1 - c*c)), 0, 0}
}

// fakeLLM scripts every collaborator call. Embeddings come from a text map;
// unknown texts embed to an orthogonal fallback vector so they never look
// similar to anything scripted.
type fakeLLM struct {
	embeddings map[string][]float32
	verdict    llm.Verdict
	judgeErr   error
	decision   llm.CategoryDecision

	lastJudgeReq llm.JudgeRequest
}

func (f *fakeLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := f.embeddings[text]; ok {
		return vec, nil
	}
	return []float32{0, 0, 1, 0}, nil
}

func (f *fakeLLM) Judge(ctx context.Context, req llm.JudgeRequest) (*llm.Verdict, error) {
	f.lastJudgeReq = req
	if f.judgeErr != nil {
		return nil, f.judgeErr
	}
	v := f.verdict
	return &v, nil
}

func (f *fakeLLM) ClassifyIssue(ctx context.Context, req llm.ClassifyRequest) (*llm.CategoryDecision, error) {
	d := f.decision
	return &d, nil
}

func newTestJudge(t *testing.T, client llm.Client, opts ...memory.UpserterOption) *Judge {
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

	return NewJudge(client, store, opts...)
}

func TestJudge_Evaluate(t *testing.T) {
	ctx := context.Background()
	fake := &fakeLLM{verdict: llm.Verdict{
		Attempt: "used strings.Contains", IsSuccessful: true, Reasoning: "meets the goal",
	}}
	judge := newTestJudge(t, fake)

	eval, err := judge.Evaluate(ctx, "check substring", "strings.Contains(s, sub)", "")
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if !eval.Verdict.IsSuccessful {
		t.Error("expected successful verdict")
	}
	if eval.Memory != nil {
		t.Error("stateless evaluation must not report memory stats")
	}
	if fake.lastJudgeReq.MemoryContext != "" {
		t.Error("stateless evaluation must not carry memory context")
	}
}

func TestJudge_RecordBuildsFullGraph(t *testing.T) {
	ctx := context.Background()
	fake := &fakeLLM{
		embeddings: map[string][]float32{
			"write an email validator": unitVec(1),
		},
		verdict: llm.Verdict{
			Attempt:      "regex-based validation",
			IsSuccessful: false,
			Reasoning:    "rejects valid plus-addressing",
			IssueFixPairs: []llm.IssueFix{
				{Issue: "regex too strict", Fix: "use net/mail parsing"},
			},
		},
		decision: llm.CategoryDecision{
			Name: "Overly Strict Validation", Description: "valid inputs rejected", IsNew: true,
		},
	}
	judge := newTestJudge(t, fake)

	judgment, err := judge.Record(ctx, "write an email validator", &fake.verdict)
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}

	if judgment.PolicyReused {
		t.Error("first record should create the policy")
	}
	if judgment.Attempt == nil || judgment.Attempt.Description != "regex-based validation" {
		t.Errorf("unexpected attempt: %+v", judgment.Attempt)
	}
	if len(judgment.Issues) != 1 || len(judgment.Fixes) != 1 {
		t.Fatalf("expected 1 issue and 1 fix, got %d and %d", len(judgment.Issues), len(judgment.Fixes))
	}
	if len(judgment.Categories) != 1 || judgment.Categories[0] != "Overly Strict Validation" {
		t.Errorf("unexpected categories: %v", judgment.Categories)
	}

	store := judge.Store()
	attempts, err := store.AttemptsForPolicy(ctx, judgment.Policy.ID)
	if err != nil {
		t.Fatalf("failed to query attempts: %v", err)
	}
	if len(attempts) != 1 || attempts[0].ID != judgment.Attempt.ID {
		t.Errorf("expected SATISFIES edge to the attempt, got %d rows", len(attempts))
	}

	issues, err := store.IssuesForAttempts(ctx, []string{judgment.Attempt.ID})
	if err != nil {
		t.Fatalf("failed to traverse issues: %v", err)
	}
	if len(issues) != 1 || issues[0].Description != "regex too strict" {
		t.Errorf("unexpected issues: %+v", issues)
	}

	links, err := store.SemanticLinksForIssues(ctx, []string{issues[0].IssueID})
	if err != nil {
		t.Fatalf("failed to traverse semantics: %v", err)
	}
	if len(links) != 1 || links[0].Name != "Overly Strict Validation" {
		t.Errorf("unexpected semantic links: %+v", links)
	}

	fixes, err := store.FixesForIssue(ctx, issues[0].IssueID)
	if err != nil {
		t.Fatalf("failed to traverse fixes: %v", err)
	}
	if len(fixes) != 1 || fixes[0].Description != "use net/mail parsing" {
		t.Errorf("unexpected fixes: %+v", fixes)
	}
}

func TestJudge_RecordReusesSimilarPolicy(t *testing.T) {
	ctx := context.Background()
	fake := &fakeLLM{
		embeddings: map[string][]float32{
			"write an email validator": unitVec(1),
			"build an email validator": unitVec(0.95),
		},
		verdict: llm.Verdict{Attempt: "some approach", IsSuccessful: true, Reasoning: "ok"},
	}
	judge := newTestJudge(t, fake)

	first, err := judge.Record(ctx, "write an email validator", &fake.verdict)
	if err != nil {
		t.Fatalf("first record failed: %v", err)
	}
	second, err := judge.Record(ctx, "build an email validator", &fake.verdict)
	if err != nil {
		t.Fatalf("second record failed: %v", err)
	}

	if !second.PolicyReused {
		t.Error("near-identical task should reuse the policy")
	}
	if second.Policy.ID != first.Policy.ID {
		t.Errorf("expected policy %s, got %s", first.Policy.ID, second.Policy.ID)
	}

	attempts, err := judge.Store().AttemptsForPolicy(ctx, first.Policy.ID)
	if err != nil {
		t.Fatalf("failed to query attempts: %v", err)
	}
	if len(attempts) != 2 {
		t.Errorf("expected 2 attempts under the policy, got %d", len(attempts))
	}
}

func TestJudge_EvaluateWithMemoryInjectsContext(t *testing.T) {
	ctx := context.Background()
	fake := &fakeLLM{
		embeddings: map[string][]float32{
			"the new solution": unitVec(1),
		},
		verdict: llm.Verdict{Attempt: "new approach", IsSuccessful: true, Reasoning: "fine"},
	}
	judge := newTestJudge(t, fake)

	// A highly similar failed attempt that clears the negative floor.
	failed := graph.NewAttempt("regex approach that failed", false, "")
	failed.Embedding = graph.NewEmbedding(unitVec(0.95))
	if err := judge.Store().CreateEntity(ctx, failed); err != nil {
		t.Fatalf("failed to seed attempt: %v", err)
	}

	eval, err := judge.EvaluateWithMemory(ctx, "some task", "the new solution", "", 3)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}

	if eval.Memory == nil {
		t.Fatal("expected memory stats")
	}
	if eval.Memory.FailedExamples != 1 || eval.Memory.SuccessfulExamples != 0 {
		t.Errorf("unexpected stats: %+v", eval.Memory)
	}
	if !strings.Contains(fake.lastJudgeReq.MemoryContext, "regex approach that failed") {
		t.Errorf("judge prompt missing retrieved example:\n%s", fake.lastJudgeReq.MemoryContext)
	}
}

func TestJudge_EvaluateWithMemoryFiltersLowConfidence(t *testing.T) {
	ctx := context.Background()
	fake := &fakeLLM{
		embeddings: map[string][]float32{
			"the new solution": unitVec(1),
		},
		verdict: llm.Verdict{Attempt: "new approach", IsSuccessful: true, Reasoning: "fine"},
	}
	judge := newTestJudge(t, fake)

	// Similar enough to retrieve, but below the 0.90 negative-example floor.
	failed := graph.NewAttempt("vaguely related failure", false, "")
	failed.Embedding = graph.NewEmbedding(unitVec(0.85))
	if err := judge.Store().CreateEntity(ctx, failed); err != nil {
		t.Fatalf("failed to seed attempt: %v", err)
	}

	eval, err := judge.EvaluateWithMemory(ctx, "some task", "the new solution", "", 3)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if eval.Memory.FailedExamples != 0 {
		t.Errorf("low-confidence failure should be filtered, got %+v", eval.Memory)
	}
	if fake.lastJudgeReq.MemoryContext != "" {
		t.Errorf("expected empty memory context, got:\n%s", fake.lastJudgeReq.MemoryContext)
	}
}

func TestJudge_EvaluateErrorPropagates(t *testing.T) {
	ctx := context.Background()
	fake := &fakeLLM{judgeErr: errors.New("model down")}
	judge := newTestJudge(t, fake)

	if _, err := judge.Evaluate(ctx, "task", "output", ""); err == nil {
		t.Error("expected judge error to propagate")
	}
}

func TestJudge_PolicyHistory(t *testing.T) {
	ctx := context.Background()
	fake := &fakeLLM{
		embeddings: map[string][]float32{
			"write an email validator": unitVec(1),
		},
		verdict: llm.Verdict{
			Attempt:      "regex approach",
			IsSuccessful: false,
			Reasoning:    "too strict",
			IssueFixPairs: []llm.IssueFix{
				{Issue: "regex too strict", Fix: "use net/mail"},
			},
		},
		decision: llm.CategoryDecision{
			Name: "Overly Strict Validation", Description: "valid inputs rejected", IsNew: true,
		},
	}
	judge := newTestJudge(t, fake)

	if _, err := judge.Record(ctx, "write an email validator", &fake.verdict); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	history, err := judge.PolicyHistory(ctx, "write an email validator")
	if err != nil {
		t.Fatalf("history lookup failed: %v", err)
	}
	if history.Policy == nil {
		t.Fatal("expected the recorded policy to be found")
	}
	if len(history.Attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(history.Attempts))
	}
	if len(history.Patterns) != 1 || history.Patterns[0].Name != "Overly Strict Validation" {
		t.Errorf("unexpected patterns: %+v", history.Patterns)
	}
	if history.Patterns[0].IssueCount != 1 {
		t.Errorf("expected issue count 1, got %d", history.Patterns[0].IssueCount)
	}
}

func TestJudge_PolicyHistoryUsesConfiguredThreshold(t *testing.T) {
	ctx := context.Background()
	fake := &fakeLLM{
		embeddings: map[string][]float32{
			"write an email validator": unitVec(1),
			"build an email validator": unitVec(0.85),
		},
		verdict: llm.Verdict{Attempt: "regex approach", IsSuccessful: true, Reasoning: "fine"},
	}
	// Loosened threshold: 0.85 is enough to merge the two tasks.
	judge := newTestJudge(t, fake, memory.WithPolicyThreshold(0.8))

	first, err := judge.Record(ctx, "write an email validator", &fake.verdict)
	if err != nil {
		t.Fatalf("first record failed: %v", err)
	}
	second, err := judge.Record(ctx, "build an email validator", &fake.verdict)
	if err != nil {
		t.Fatalf("second record failed: %v", err)
	}
	if !second.PolicyReused {
		t.Fatal("expected the second task to reuse the policy at the loosened threshold")
	}

	// History lookup must resolve the same way Record did.
	history, err := judge.PolicyHistory(ctx, "build an email validator")
	if err != nil {
		t.Fatalf("history lookup failed: %v", err)
	}
	if history.Policy == nil {
		t.Fatal("expected the policy the attempt was filed under to be found")
	}
	if history.Policy.ID != first.Policy.ID {
		t.Errorf("expected policy %s, got %s", first.Policy.ID, history.Policy.ID)
	}
	if len(history.Attempts) != 2 {
		t.Errorf("expected 2 attempts, got %d", len(history.Attempts))
	}
}

func TestJudge_PolicyHistoryUnknownTask(t *testing.T) {
	ctx := context.Background()
	fake := &fakeLLM{verdict: llm.Verdict{}}
	judge := newTestJudge(t, fake)

	history, err := judge.PolicyHistory(ctx, "never seen before")
	if err != nil {
		t.Fatalf("history lookup failed: %v", err)
	}
	if history.Policy != nil {
		t.Errorf("expected no policy match, got %+v", history.Policy)
	}
}

func TestJudge_Reset(t *testing.T) {
	ctx := context.Background()
	fake := &fakeLLM{
		embeddings: map[string][]float32{"some task": unitVec(1)},
		verdict:    llm.Verdict{Attempt: "approach", IsSuccessful: true, Reasoning: "ok"},
	}
	judge := newTestJudge(t, fake)

	if _, err := judge.Record(ctx, "some task", &fake.verdict); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := judge.Reset(ctx); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	attempts, err := judge.Store().ListByKind(ctx, graph.KindAttempt)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(attempts) != 0 {
		t.Errorf("expected empty graph after reset, got %d attempts", len(attempts))
	}
}
