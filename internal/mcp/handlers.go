package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/majlabs/memory-judge/internal/llm"
	"github.com/majlabs/memory-judge/internal/memory"
	"github.com/majlabs/memory-judge/internal/service"
)

// Handlers contains the handler functions for all MCP tools.
type Handlers struct {
	judge *service.Judge
}

type evaluateResponse struct {
	Verdict  *llm.Verdict         `json:"verdict"`
	Memory   *service.MemoryStats `json:"memory,omitempty"`
	Recorded *recordedSummary     `json:"recorded,omitempty"`
}

type recordedSummary struct {
	PolicyID     string   `json:"policy_id"`
	PolicyReused bool     `json:"policy_reused"`
	AttemptID    string   `json:"attempt_id"`
	Categories   []string `json:"categories,omitempty"`
}

// EvaluateAttempt handles the evaluate_attempt tool.
func (h *Handlers) EvaluateAttempt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task, err := request.RequireString("task")
	if err != nil {
		return mcp.NewToolResultError("task argument is required and must be a string"), nil
	}
	agentOutput, err := request.RequireString("agent_output")
	if err != nil {
		return mcp.NewToolResultError("agent_output argument is required and must be a string"), nil
	}
	goal := request.GetString("goal", "")
	useMemory := request.GetBool("use_memory", true)
	record := request.GetBool("record", true)

	var eval *service.Evaluation
	if useMemory {
		eval, err = h.judge.EvaluateWithMemory(ctx, task, agentOutput, goal, service.DefaultRetrievalK)
	} else {
		eval, err = h.judge.Evaluate(ctx, task, agentOutput, goal)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("evaluation failed: %v", err)), nil
	}

	resp := evaluateResponse{Verdict: eval.Verdict, Memory: eval.Memory}
	if record {
		judgment, err := h.judge.Record(ctx, task, eval.Verdict)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("recording failed: %v", err)), nil
		}
		resp.Recorded = &recordedSummary{
			PolicyID:     judgment.Policy.ID,
			PolicyReused: judgment.PolicyReused,
			AttemptID:    judgment.Attempt.ID,
			Categories:   judgment.Categories,
		}
	}

	return jsonResult(resp)
}

// SearchPrecedent handles the search_precedent tool.
func (h *Handlers) SearchPrecedent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}
	k := request.GetInt("max_results", service.DefaultRetrievalK)

	res, err := h.judge.SearchPrecedent(ctx, query, k)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"successful": scoredAttempts(res.Successful),
		"failed":     scoredAttempts(res.Failed),
	})
}

// IssuePatterns handles the issue_patterns tool.
func (h *Handlers) IssuePatterns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}
	k := request.GetInt("max_results", service.DefaultRetrievalK)

	patterns, err := h.judge.IssuePatterns(ctx, query, k)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("pattern search failed: %v", err)), nil
	}

	out := make([]map[string]interface{}, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, map[string]interface{}{
			"name":           p.Name,
			"description":    p.Description,
			"frequency":      p.Frequency,
			"avg_similarity": p.AvgSimilarity,
		})
	}
	return jsonResult(map[string]interface{}{"patterns": out})
}

// PolicyHistory handles the policy_history tool.
func (h *Handlers) PolicyHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task, err := request.RequireString("task")
	if err != nil {
		return mcp.NewToolResultError("task argument is required and must be a string"), nil
	}

	history, err := h.judge.PolicyHistory(ctx, task)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("history lookup failed: %v", err)), nil
	}
	if history.Policy == nil {
		return jsonResult(map[string]interface{}{"found": false})
	}

	attempts := make([]map[string]interface{}, 0, len(history.Attempts))
	for _, a := range history.Attempts {
		entry := map[string]interface{}{
			"id":          a.ID,
			"description": a.Description,
			"reasoning":   a.Reasoning,
		}
		if a.Successful != nil {
			entry["successful"] = *a.Successful
		}
		attempts = append(attempts, entry)
	}

	patterns := make([]map[string]interface{}, 0, len(history.Patterns))
	for _, p := range history.Patterns {
		patterns = append(patterns, map[string]interface{}{
			"name":          p.Name,
			"description":   p.Description,
			"issue_count":   p.IssueCount,
			"sample_issues": p.SampleIssues,
		})
	}

	return jsonResult(map[string]interface{}{
		"found":     true,
		"policy_id": history.Policy.ID,
		"task":      history.Policy.Description,
		"attempts":  attempts,
		"patterns":  patterns,
	})
}

// ResetMemory handles the reset_memory tool.
func (h *Handlers) ResetMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	confirm, err := request.RequireBool("confirm")
	if err != nil || !confirm {
		return mcp.NewToolResultError("confirm must be set to true to wipe the experience graph"), nil
	}

	if err := h.judge.Reset(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reset failed: %v", err)), nil
	}
	return mcp.NewToolResultText(`{"status": "wiped"}`), nil
}

func scoredAttempts(attempts []memory.ScoredAttempt) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, map[string]interface{}{
			"id":          a.ID,
			"description": a.Description,
			"successful":  a.Successful,
			"score":       a.Score,
		})
	}
	return out
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
