package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/majlabs/memory-judge/internal/service"
)

var (
	judgeGoal     string
	judgeNoMemory bool
	judgeNoRecord bool
	judgeK        int
)

// NewJudgeCmd creates the judge command.
func NewJudgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "judge <task> <agent-output>",
		Short: "Judge an agent's output against a task",
		Long: `Judge an agent's output against a task.

By default the judgment includes memory context retrieved from similar
past attempts, and the verdict is recorded into the experience graph.
Pass "-" as the agent output to read it from stdin.

Examples:
  maj judge "Write an email validator" "func Validate(s string) bool {...}"
  cat solution.go | maj judge "Write an email validator" -
  maj judge --no-memory --no-record "task" "output"`,
		Args: cobra.ExactArgs(2),
		RunE: runJudge,
	}

	cmd.Flags().StringVar(&judgeGoal, "goal", "", "Evaluation goal overriding the default")
	cmd.Flags().BoolVar(&judgeNoMemory, "no-memory", false, "Judge without memory context")
	cmd.Flags().BoolVar(&judgeNoRecord, "no-record", false, "Do not record the verdict")
	cmd.Flags().IntVar(&judgeK, "k", 3, "Examples per outcome partition to retrieve")

	return cmd
}

func runJudge(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(judgeK, "k"); err != nil {
		return err
	}

	task := args[0]
	agentOutput := args[1]
	if agentOutput == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading agent output from stdin: %w", err)
		}
		agentOutput = string(data)
	}
	if agentOutput == "" {
		return fmt.Errorf("agent output is empty")
	}

	ctx := cmd.Context()
	judge, cleanup, err := loadJudge(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	eval, err := evaluate(ctx, judge, task, agentOutput)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		out := map[string]interface{}{"verdict": eval.Verdict}
		if eval.Memory != nil {
			out["memory"] = eval.Memory
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
	} else {
		printVerdict(cmd, eval)
	}

	if judgeNoRecord {
		return nil
	}

	return record(cmd, judge, task, eval)
}

func evaluate(ctx context.Context, judge *service.Judge, task, agentOutput string) (*service.Evaluation, error) {
	if judgeNoMemory {
		eval, err := judge.Evaluate(ctx, task, agentOutput, judgeGoal)
		if err != nil {
			return nil, fmt.Errorf("judging: %w", err)
		}
		return eval, nil
	}
	eval, err := judge.EvaluateWithMemory(ctx, task, agentOutput, judgeGoal, judgeK)
	if err != nil {
		return nil, fmt.Errorf("judging: %w", err)
	}
	return eval, nil
}

func printVerdict(cmd *cobra.Command, eval *service.Evaluation) {
	out := cmd.OutOrStdout()
	verdict := eval.Verdict

	status := "FAILED"
	if verdict.IsSuccessful {
		status = "PASSED"
	}
	fmt.Fprintf(out, "%s: %s\n", status, verdict.Attempt)
	fmt.Fprintf(out, "Reasoning: %s\n", verdict.Reasoning)
	for i, pair := range verdict.IssueFixPairs {
		fmt.Fprintf(out, "Issue %d: %s\n", i+1, pair.Issue)
		fmt.Fprintf(out, "  Fix: %s\n", pair.Fix)
	}
	if eval.Memory != nil && !quiet {
		fmt.Fprintf(out, "Memory used: %d passed, %d failed, %d patterns\n",
			eval.Memory.SuccessfulExamples, eval.Memory.FailedExamples, eval.Memory.Patterns)
	}
}

func record(cmd *cobra.Command, judge *service.Judge, task string, eval *service.Evaluation) error {
	judgment, err := judge.Record(cmd.Context(), task, eval.Verdict)
	if err != nil {
		return fmt.Errorf("recording verdict: %w", err)
	}
	if !quiet && outputFormat != "json" {
		if judgment.PolicyReused {
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded under existing policy %s\n", judgment.Policy.ID)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded under new policy %s\n", judgment.Policy.ID)
		}
		for i, cat := range judgment.Categories {
			fmt.Fprintf(cmd.OutOrStdout(), "  issue %d filed under: %s\n", i+1, cat)
		}
	}
	return nil
}
