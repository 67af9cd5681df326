package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetYes bool

// NewResetCmd creates the reset command.
func NewResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe the experience graph",
		Long: `Wipe the entire experience graph: all policies, attempts, issues,
fixes, and semantic categories. Irreversible.

Examples:
  maj reset --yes`,
		RunE: runReset,
	}

	cmd.Flags().BoolVar(&resetYes, "yes", false, "Confirm the wipe")

	return cmd
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetYes {
		return fmt.Errorf("refusing to wipe without --yes")
	}

	ctx := cmd.Context()
	judge, cleanup, err := loadJudge(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := judge.Reset(ctx); err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintln(cmd.OutOrStdout(), "Experience graph wiped")
	}
	return nil
}
