package memory

import (
	"fmt"
	"strings"
)

// Confidence floors for what makes it into a judge's memory context.
// Negative examples carry the most bias risk, so they need the highest
// similarity to be shown at all.
const (
	PositiveExampleFloor   float32 = 0.80
	NegativeExampleFloor   float32 = 0.90
	PatternConfidenceFloor float32 = 0.85
)

// MemoryContext is the filtered view of retrieved experience that gets
// rendered into a judge prompt.
type MemoryContext struct {
	Successful []ScoredAttempt
	Failed     []ScoredAttempt
	Patterns   []Pattern
}

// BuildMemoryContext applies the confidence floors to raw retrieval results.
// Anything below its floor is dropped rather than shown with a caveat.
func BuildMemoryContext(res *ContrastiveResult, patterns []Pattern) *MemoryContext {
	mc := &MemoryContext{}
	if res != nil {
		for _, a := range res.Successful {
			if a.Score >= PositiveExampleFloor {
				mc.Successful = append(mc.Successful, a)
			}
		}
		for _, a := range res.Failed {
			if a.Score >= NegativeExampleFloor {
				mc.Failed = append(mc.Failed, a)
			}
		}
	}
	for _, p := range patterns {
		if p.AvgSimilarity >= PatternConfidenceFloor {
			mc.Patterns = append(mc.Patterns, p)
		}
	}
	return mc
}

// Empty reports whether nothing survived the floors.
func (mc *MemoryContext) Empty() bool {
	return len(mc.Successful) == 0 && len(mc.Failed) == 0 && len(mc.Patterns) == 0
}

// Format renders the context as the plain-text block embedded in a judge
// prompt. An empty context renders as an empty string.
func (mc *MemoryContext) Format() string {
	if mc.Empty() {
		return ""
	}

	var sb strings.Builder
	if len(mc.Successful) > 0 {
		sb.WriteString("Similar PASSED attempts:\n")
		for _, a := range mc.Successful {
			fmt.Fprintf(&sb, "- (%.2f) %s\n", a.Score, a.Description)
		}
	}
	if len(mc.Failed) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Similar FAILED attempts:\n")
		for _, a := range mc.Failed {
			fmt.Fprintf(&sb, "- (%.2f) %s\n", a.Score, a.Description)
		}
	}
	if len(mc.Patterns) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Recurring issue patterns in similar code:\n")
		for _, p := range mc.Patterns {
			fmt.Fprintf(&sb, "- %s (seen %dx): %s\n", p.Name, p.Frequency, p.Description)
		}
	}
	return sb.String()
}
