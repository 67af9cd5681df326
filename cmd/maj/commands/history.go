package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <task>",
		Short: "Show a task's full track record",
		Long: `Show a task's full track record: the policy it resolved to, its past
attempts in order, and the issue categories recurring across them.

Examples:
  maj history "Write an email validator"`,
		Args: cobra.ExactArgs(1),
		RunE: runHistory,
	}
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	judge, cleanup, err := loadJudge(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	history, err := judge.PolicyHistory(ctx, args[0])
	if err != nil {
		return fmt.Errorf("looking up history: %w", err)
	}

	if outputFormat == "json" {
		data, err := json.MarshalIndent(history, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
		return nil
	}

	out := cmd.OutOrStdout()
	if history.Policy == nil {
		fmt.Fprintf(out, "No known policy matches: %s\n", args[0])
		return nil
	}

	fmt.Fprintf(out, "Policy %s: %s\n", history.Policy.ID, truncate(history.Policy.Description, 100))
	fmt.Fprintf(out, "Attempts (%d):\n", len(history.Attempts))
	for i, a := range history.Attempts {
		status := "?"
		if a.Successful != nil {
			if *a.Successful {
				status = "PASSED"
			} else {
				status = "FAILED"
			}
		}
		fmt.Fprintf(out, "  %d. [%s] %s\n", i+1, status, truncate(a.Description, 100))
	}
	if len(history.Patterns) > 0 {
		fmt.Fprintf(out, "Recurring issue categories:\n")
		for _, p := range history.Patterns {
			fmt.Fprintf(out, "  %s (%d issues)\n", p.Name, p.IssueCount)
			if len(p.SampleIssues) > 0 && !quiet {
				fmt.Fprintf(out, "    e.g. %s\n", truncate(strings.Join(p.SampleIssues, "; "), 140))
			}
		}
	}

	return nil
}
