package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var patternsLimit int

// NewPatternsCmd creates the patterns command.
func NewPatternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns <query>",
		Short: "Find recurring issue categories",
		Long: `Find issue categories recurring among past issues similar to a
query.

Examples:
  maj patterns "string concatenation in SQL"
  maj patterns --limit 5 "goroutine cleanup"`,
		Args: cobra.ExactArgs(1),
		RunE: runPatterns,
	}

	cmd.Flags().IntVar(&patternsLimit, "limit", 3, "Maximum number of patterns to return")

	return cmd
}

func runPatterns(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(patternsLimit, "limit"); err != nil {
		return err
	}

	ctx := cmd.Context()
	judge, cleanup, err := loadJudge(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	patterns, err := judge.IssuePatterns(ctx, args[0], patternsLimit)
	if err != nil {
		return fmt.Errorf("searching patterns: %w", err)
	}

	if outputFormat == "json" {
		data, err := json.MarshalIndent(patterns, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
		return nil
	}

	out := cmd.OutOrStdout()
	if len(patterns) == 0 {
		fmt.Fprintf(out, "No recurring patterns found for: %s\n", args[0])
		return nil
	}
	for _, p := range patterns {
		fmt.Fprintf(out, "%s (seen %dx, avg similarity %.2f)\n", p.Name, p.Frequency, p.AvgSimilarity)
		fmt.Fprintf(out, "  %s\n", truncate(p.Description, 120))
	}

	return nil
}
