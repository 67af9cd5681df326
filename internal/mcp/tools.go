// Package mcp exposes the judge over the Model Context Protocol so LLM
// agents can evaluate attempts and query accumulated experience via stdio.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/majlabs/memory-judge/internal/service"
)

// RegisterTools registers all MCP tools with the server.
func RegisterTools(server *mcpserver.MCPServer, judge *service.Judge) *Handlers {
	handlers := &Handlers{judge: judge}

	server.AddTool(mcp.Tool{
		Name:        "evaluate_attempt",
		Description: "Judge an agent's output against a task. By default the judgment uses memory context from similar past attempts and the verdict is recorded into the experience graph.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"task": map[string]interface{}{
					"type":        "string",
					"description": "The task the agent was asked to solve",
				},
				"agent_output": map[string]interface{}{
					"type":        "string",
					"description": "The agent's output to judge",
				},
				"goal": map[string]interface{}{
					"type":        "string",
					"description": "Optional evaluation goal overriding the default",
				},
				"use_memory": map[string]interface{}{
					"type":        "boolean",
					"description": "Include memory context from similar past attempts (default: true)",
					"default":     true,
				},
				"record": map[string]interface{}{
					"type":        "boolean",
					"description": "Record the verdict into the experience graph (default: true)",
					"default":     true,
				},
			},
			Required: []string{"task", "agent_output"},
		},
	}, handlers.EvaluateAttempt)

	server.AddTool(mcp.Tool{
		Name:        "search_precedent",
		Description: "Find past attempts similar to a query, split into successes and failures.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Free-text description of the code or approach to look up",
				},
				"max_results": map[string]interface{}{
					"type":        "number",
					"description": "Maximum results per outcome partition (default: 3)",
					"default":     3,
				},
			},
			Required: []string{"query"},
		},
	}, handlers.SearchPrecedent)

	server.AddTool(mcp.Tool{
		Name:        "issue_patterns",
		Description: "Find issue categories recurring among past issues similar to a query.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Free-text description of the code or approach to look up",
				},
				"max_results": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of patterns to return (default: 3)",
					"default":     3,
				},
			},
			Required: []string{"query"},
		},
	}, handlers.IssuePatterns)

	server.AddTool(mcp.Tool{
		Name:        "policy_history",
		Description: "Get the full track record for a task: its past attempts and the issue categories recurring across them.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"task": map[string]interface{}{
					"type":        "string",
					"description": "The task description to look up",
				},
			},
			Required: []string{"task"},
		},
	}, handlers.PolicyHistory)

	server.AddTool(mcp.Tool{
		Name:        "reset_memory",
		Description: "Wipe the entire experience graph. Irreversible.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"confirm": map[string]interface{}{
					"type":        "boolean",
					"description": "Must be true to actually wipe",
				},
			},
			Required: []string{"confirm"},
		},
	}, handlers.ResetMemory)

	return handlers
}
