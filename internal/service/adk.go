package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	adkmemory "google.golang.org/adk/memory"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/majlabs/memory-judge/internal/memory"
)

// MemoryService adapts the judge's experience graph to adk's memory.Service,
// so an ADK agent can recall prior verdicts mid-session and have its
// completed sessions judged and recorded on close.
type MemoryService struct {
	judge *Judge
}

// NewMemoryService wraps a Judge as an adk memory.Service.
func NewMemoryService(judge *Judge) *MemoryService {
	return &MemoryService{judge: judge}
}

// Search implements memory.Service. The query is embedded and run through
// contrastive retrieval; each prior attempt becomes one memory entry tagged
// with its outcome.
func (s *MemoryService) Search(ctx context.Context, req *adkmemory.SearchRequest) (*adkmemory.SearchResponse, error) {
	res, err := s.judge.SearchPrecedent(ctx, req.Query, DefaultRetrievalK)
	if err != nil {
		return nil, fmt.Errorf("failed to search precedents: %w", err)
	}

	memories := make([]adkmemory.Entry, 0, len(res.Successful)+len(res.Failed))
	appendEntries := func(attempts []memory.ScoredAttempt, outcome string) {
		for _, a := range attempts {
			contentParts := genai.Text(fmt.Sprintf("[%s] %s", outcome, a.Description))
			if len(contentParts) == 0 {
				continue
			}
			memories = append(memories, adkmemory.Entry{
				Content:   contentParts[0],
				Author:    "system",
				Timestamp: time.Now(),
			})
		}
	}
	appendEntries(res.Successful, "PASSED")
	appendEntries(res.Failed, "FAILED")

	return &adkmemory.SearchResponse{Memories: memories}, nil
}

// AddSession implements memory.Service. The session's last user message is
// treated as the task and the last model response as the agent's output; the
// pair is judged with memory context and the verdict is recorded into the
// graph. Sessions without a substantive exchange are skipped.
func (s *MemoryService) AddSession(ctx context.Context, sess session.Session) error {
	var task, output string
	for event := range sess.Events().All() {
		if event.Author == "user" && event.Content != nil {
			if texts := contentText(event.Content); len(texts) > 0 {
				task = strings.Join(texts, " ")
			}
			continue
		}
		if event.LLMResponse.Content != nil {
			if texts := contentText(event.LLMResponse.Content); len(texts) > 0 {
				output = strings.Join(texts, " ")
			}
		}
	}

	if task == "" || len(output) <= 20 {
		return nil
	}

	eval, err := s.judge.EvaluateWithMemory(ctx, task, output, "", DefaultRetrievalK)
	if err != nil {
		return fmt.Errorf("failed to judge session: %w", err)
	}
	if _, err := s.judge.Record(ctx, task, eval.Verdict); err != nil {
		return fmt.Errorf("failed to record session verdict: %w", err)
	}
	return nil
}

// contentText collects the text parts of a content block.
func contentText(c *genai.Content) []string {
	var texts []string
	for _, part := range c.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return texts
}

var _ adkmemory.Service = (*MemoryService)(nil)
