package memory

import (
	"context"
	"fmt"
	"log"

	"github.com/majlabs/memory-judge/internal/graph"
	"github.com/majlabs/memory-judge/internal/llm"
)

// Classifier assigns issues to semantic root-cause categories, reconciling
// the model's answer against the known category set by exact name.
type Classifier struct {
	llm llm.IssueClassifier
}

// NewClassifier creates a Classifier backed by the given model.
func NewClassifier(c llm.IssueClassifier) *Classifier {
	return &Classifier{llm: c}
}

// Classify maps an issue description onto one of the existing semantic
// categories or proposes a new one. The returned entity is an existing
// semantic node when isNew is false, and an unpersisted candidate (without
// embedding) when isNew is true.
//
// The model can claim an existing category but misquote the name; when the
// claimed name matches nothing the decision is treated as a new category
// rather than dropped.
func (c *Classifier) Classify(ctx context.Context, issue string, existing []*graph.Entity) (*graph.Entity, bool, error) {
	req := llm.ClassifyRequest{Issue: issue}
	for _, sem := range existing {
		req.Existing = append(req.Existing, llm.Category{
			Name:        sem.Name,
			Description: sem.Description,
		})
	}

	decision, err := c.llm.ClassifyIssue(ctx, req)
	if err != nil {
		return nil, false, fmt.Errorf("issue classification failed: %w", err)
	}
	if decision.Name == "" {
		return nil, false, fmt.Errorf("classifier returned empty category name")
	}

	if !decision.IsNew {
		for _, sem := range existing {
			if sem.Name == decision.Name {
				return sem, false, nil
			}
		}
		log.Printf("Classifier claimed existing category %q but none matches; treating as new", decision.Name)
	}

	return graph.NewSemantic(decision.Name, decision.Description), true, nil
}
