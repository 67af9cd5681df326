package llm

import (
	"fmt"
	"strings"
)

// Prompt structure:
//   - role: who the judge is (fixed)
//   - goal: what to evaluate for (per request, defaulted)
//   - instruction: the task and the agent output
//   - memory context: past experience block (memory mode only)
//   - output schema: what to return (fixed)

const judgeRole = `You are an expert AI Judge who evaluates code solutions.
You have deep knowledge of software engineering best practices, security vulnerabilities, and code quality.`

// DefaultGoal is used when a request carries no evaluation goal.
const DefaultGoal = `Evaluate if the code correctly solves the CORE requirement of the task.
Focus on functionality, not production-readiness (error handling, logging, etc.).`

const judgeOutputSchema = `Return your evaluation as JSON:
1. attempt: summary of the approach taken
2. is_successful: true if the output achieves the GOAL, false otherwise
3. reasoning: explanation of why the attempt succeeded or failed
4. issue_fix_pairs: list of {"issue", "fix"} pairs (empty if successful)`

const memoryContextHeader = `MEMORY CONTEXT (similar code patterns from past evaluations):
%s

How to use this context:
- These are SIMILAR patterns, not identical situations
- Use them as reference points, but judge THIS on its own merits
- A pattern being similar to a failed attempt does NOT mean this fails
- A pattern being similar to a successful attempt does NOT mean this succeeds
- Look for the SPECIFIC issue or fix that applies, not just similarity`

// BuildJudgePrompt assembles the evaluation prompt. The memory-context block
// is included only when the request carries one.
func BuildJudgePrompt(req JudgeRequest) string {
	goal := req.Goal
	if goal == "" {
		goal = DefaultGoal
	}

	var sb strings.Builder
	sb.WriteString(judgeRole)
	sb.WriteString("\n\nGOAL: ")
	sb.WriteString(goal)
	sb.WriteString("\n\nTASK: ")
	sb.WriteString(req.Task)
	sb.WriteString("\n\nAGENT OUTPUT:\n")
	sb.WriteString(req.AgentOutput)
	if req.MemoryContext != "" {
		sb.WriteString("\n\n")
		fmt.Fprintf(&sb, memoryContextHeader, req.MemoryContext)
	}
	sb.WriteString("\n\n")
	sb.WriteString(judgeOutputSchema)

	return sb.String()
}

// BuildClassifyPrompt assembles the issue-classification prompt, listing the
// existing categories so the model can reuse one instead of proposing a
// near-duplicate.
func BuildClassifyPrompt(req ClassifyRequest) string {
	var sb strings.Builder
	sb.WriteString(`You classify code issues into abstract root-cause categories.

ISSUE: `)
	sb.WriteString(req.Issue)
	sb.WriteString("\n\nEXISTING CATEGORIES:\n")
	if len(req.Existing) == 0 {
		sb.WriteString("(none yet)\n")
	}
	for _, c := range req.Existing {
		fmt.Fprintf(&sb, "- %s: %s\n", c.Name, c.Description)
	}
	sb.WriteString(`
If the issue fits an existing category, return that category's EXACT name with is_new=false.
Otherwise propose a new short category name (e.g. "SQL Injection Vulnerability") with is_new=true.

Return JSON: {"name", "description", "is_new"}`)

	return sb.String()
}
