package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/majlabs/memory-judge/internal/graph"
)

// Pattern aggregation defaults. The query-driven mode over-fetches the
// issue index and applies a hard similarity floor before traversal, so
// unrelated issues never contribute to a pattern count.
const (
	DefaultPatternOverfetch         = 3
	DefaultPatternFloor     float32 = 0.85
)

// Pattern is an aggregated semantic category reached from issues similar to
// a query. Frequency counts the distinct contributing issues; AvgSimilarity
// averages their similarity scores.
type Pattern struct {
	SemanticID    string
	Name          string
	Description   string
	Frequency     int
	AvgSimilarity float32
}

// HistoryPattern is an aggregated semantic category reached from an explicit
// attempt set, with up to three sample issue descriptions.
type HistoryPattern struct {
	SemanticID   string
	Name         string
	Description  string
	IssueCount   int
	SampleIssues []string
}

// Aggregator rolls issue links up to their semantic categories, either from
// a query vector or from a known set of attempt ids.
type Aggregator struct {
	store     graph.Store
	overfetch int
	floor     float32
}

// NewAggregator creates an Aggregator over the given store.
func NewAggregator(store graph.Store) *Aggregator {
	return &Aggregator{
		store:     store,
		overfetch: DefaultPatternOverfetch,
		floor:     DefaultPatternFloor,
	}
}

// PatternsByQuery finds semantic categories recurring among issues similar
// to the query vector. Issues below the similarity floor are dropped before
// any traversal. Results are sorted by frequency descending, then average
// similarity descending, then name ascending, and capped at k.
func (a *Aggregator) PatternsByQuery(ctx context.Context, vector []float32, k int) ([]Pattern, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	matches, err := a.store.SearchSimilar(ctx, graph.KindIssue, vector, k*a.overfetch)
	if err != nil {
		return nil, fmt.Errorf("issue search failed: %w", err)
	}

	scores := make(map[string]float32)
	var issueIDs []string
	for _, m := range matches {
		if m.Score < a.floor {
			continue
		}
		scores[m.ID] = m.Score
		issueIDs = append(issueIDs, m.ID)
	}
	if len(issueIDs) == 0 {
		return []Pattern{}, nil
	}

	semantics, err := a.store.SemanticLinksForIssues(ctx, issueIDs)
	if err != nil {
		return nil, fmt.Errorf("semantic traversal failed: %w", err)
	}

	agg := make(map[string]*Pattern)
	scoreSums := make(map[string]float32)
	counted := make(map[string]map[string]bool)
	for _, link := range semantics {
		p, ok := agg[link.SemanticID]
		if !ok {
			p = &Pattern{
				SemanticID:  link.SemanticID,
				Name:        link.Name,
				Description: link.Description,
			}
			agg[link.SemanticID] = p
			counted[link.SemanticID] = make(map[string]bool)
		}
		// Frequency counts distinct issues per category.
		if counted[link.SemanticID][link.IssueID] {
			continue
		}
		counted[link.SemanticID][link.IssueID] = true
		p.Frequency++
		scoreSums[link.SemanticID] += scores[link.IssueID]
	}

	patterns := make([]Pattern, 0, len(agg))
	for id, p := range agg {
		p.AvgSimilarity = scoreSums[id] / float32(p.Frequency)
		patterns = append(patterns, *p)
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Frequency != patterns[j].Frequency {
			return patterns[i].Frequency > patterns[j].Frequency
		}
		if patterns[i].AvgSimilarity != patterns[j].AvgSimilarity {
			return patterns[i].AvgSimilarity > patterns[j].AvgSimilarity
		}
		return patterns[i].Name < patterns[j].Name
	})
	if len(patterns) > k {
		patterns = patterns[:k]
	}

	return patterns, nil
}

// PatternsByAttempts aggregates semantic categories across a known set of
// attempts. An empty attempt set short-circuits to an empty result. Results
// are sorted by issue count descending, then name ascending.
func (a *Aggregator) PatternsByAttempts(ctx context.Context, attemptIDs []string) ([]HistoryPattern, error) {
	if len(attemptIDs) == 0 {
		return []HistoryPattern{}, nil
	}

	issues, err := a.store.IssuesForAttempts(ctx, attemptIDs)
	if err != nil {
		return nil, fmt.Errorf("issue traversal failed: %w", err)
	}
	if len(issues) == 0 {
		return []HistoryPattern{}, nil
	}

	issueDesc := make(map[string]string, len(issues))
	issueIDs := make([]string, 0, len(issues))
	for _, link := range issues {
		issueDesc[link.IssueID] = link.Description
		issueIDs = append(issueIDs, link.IssueID)
	}

	semantics, err := a.store.SemanticLinksForIssues(ctx, issueIDs)
	if err != nil {
		return nil, fmt.Errorf("semantic traversal failed: %w", err)
	}

	agg := make(map[string]*HistoryPattern)
	for _, link := range semantics {
		p, ok := agg[link.SemanticID]
		if !ok {
			p = &HistoryPattern{
				SemanticID:  link.SemanticID,
				Name:        link.Name,
				Description: link.Description,
			}
			agg[link.SemanticID] = p
		}
		p.IssueCount++
		desc := issueDesc[link.IssueID]
		if len(p.SampleIssues) < 3 && !contains(p.SampleIssues, desc) {
			p.SampleIssues = append(p.SampleIssues, desc)
		}
	}

	patterns := make([]HistoryPattern, 0, len(agg))
	for _, p := range agg {
		patterns = append(patterns, *p)
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].IssueCount != patterns[j].IssueCount {
			return patterns[i].IssueCount > patterns[j].IssueCount
		}
		return patterns[i].Name < patterns[j].Name
	})

	return patterns, nil
}

func contains(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}
