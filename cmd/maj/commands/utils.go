package commands

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/majlabs/memory-judge/internal/config"
	"github.com/majlabs/memory-judge/internal/graph"
	"github.com/majlabs/memory-judge/internal/llm"
	"github.com/majlabs/memory-judge/internal/memory"
	"github.com/majlabs/memory-judge/internal/service"
)

// loadJudge builds a fully wired Judge from environment configuration. The
// returned cleanup function closes the store.
func loadJudge(ctx context.Context) (*service.Judge, func(), error) {
	if err := godotenv.Load(); err != nil && !quiet {
		log.Printf("No .env file found (this is okay for production): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	client, err := newLLMClient(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	judge := service.NewJudge(client, store,
		memory.WithPolicyThreshold(cfg.PolicyThreshold),
		memory.WithSemanticThreshold(cfg.SemanticThreshold),
	)
	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Printf("Warning: error closing store: %v", err)
		}
	}
	return judge, cleanup, nil
}

func openStore(ctx context.Context, cfg config.Config) (graph.Store, error) {
	switch cfg.DBType {
	case "sqlite":
		store, err := graph.NewSQLiteStore(ctx, cfg.DatabaseURL, cfg.EmbeddingDim)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		if err := store.InitSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		return store, nil
	default:
		store, err := graph.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.EmbeddingDim)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		if err := store.InitSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		return store, nil
	}
}

func newLLMClient(ctx context.Context, cfg config.Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "openai":
		return llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.EmbeddingDim)
	default:
		return llm.NewGeminiClient(ctx, cfg.GoogleAPIKey, cfg.EmbeddingDim)
	}
}

// validatePositiveInt returns an error if n is not positive.
func validatePositiveInt(n int, name string) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return nil
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
