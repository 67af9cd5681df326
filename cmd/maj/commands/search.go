package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/majlabs/memory-judge/internal/memory"
)

var searchLimit int

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find similar past attempts",
		Long: `Find past attempts similar to a query, split into successes and
failures.

Examples:
  maj search "regex email validation"
  maj search --limit 5 --format json "retry with backoff"`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().IntVar(&searchLimit, "limit", 3, "Maximum results per outcome partition")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(searchLimit, "limit"); err != nil {
		return err
	}

	ctx := cmd.Context()
	judge, cleanup, err := loadJudge(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := judge.SearchPrecedent(ctx, args[0], searchLimit)
	if err != nil {
		return fmt.Errorf("searching precedents: %w", err)
	}

	if outputFormat == "json" {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
		return nil
	}

	out := cmd.OutOrStdout()
	if len(res.Successful) == 0 && len(res.Failed) == 0 {
		fmt.Fprintf(out, "No similar attempts found for: %s\n", args[0])
		return nil
	}

	printPartition := func(label string, attempts []memory.ScoredAttempt) {
		if len(attempts) == 0 {
			return
		}
		fmt.Fprintf(out, "%s:\n", label)
		for _, a := range attempts {
			fmt.Fprintf(out, "  (%.2f) %s\n", a.Score, truncate(a.Description, 100))
		}
	}
	printPartition("Successful", res.Successful)
	printPartition("Failed", res.Failed)

	return nil
}
