// Package commands implements the maj CLI: judging agent output, querying
// the experience graph, and serving the judge over MCP.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	quiet        bool
	outputFormat string
)

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maj",
		Short: "Memory-assisted judge for agent output",
		Long: `maj evaluates agent output against tasks and accumulates an experience
graph of policies, attempts, issues, fixes, and semantic categories.
Later judgments retrieve similar past attempts and recurring issue
patterns as context.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "Output format: text or json")

	cmd.AddCommand(NewJudgeCmd())
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewPatternsCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewResetCmd())
	cmd.AddCommand(NewMCPCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
