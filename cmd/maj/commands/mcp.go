package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/majlabs/memory-judge/internal/mcp"
)

// NewMCPCmd creates the MCP command.
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents.

Runs the judge as an MCP (Model Context Protocol) server over stdio,
exposing evaluation and experience-graph queries as tools.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically launched by the agent host)
  maj mcp

  # Configure in the host's MCP config:
  # {
  #   "mcpServers": {
  #     "maj": {
  #       "command": "maj",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}
}

// runMCP starts the MCP server.
func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	judge, cleanup, err := loadJudge(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	server := mcpserver.NewMCPServer(
		"Memory-Assisted Judge",
		versionInfo.Version,
	)
	mcp.RegisterTools(server, judge)

	if !quiet {
		log.Println("maj MCP server starting on stdio...")
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		if !quiet {
			log.Println("Shutdown signal received, shutting down...")
		}
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	return nil
}
