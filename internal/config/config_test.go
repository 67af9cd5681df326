package config

import (
	"testing"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("DATABASE_URL", ":memory:")
	t.Setenv("LLM_PROVIDER", "google")
	t.Setenv("GOOGLE_API_KEY", "test-key")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("EMBEDDING_DIM", "")
	t.Setenv("POLICY_SIMILARITY_THRESHOLD", "")
	t.Setenv("SEMANTIC_SIMILARITY_THRESHOLD", "")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	// text-embedding-004 returns 768-dim vectors; the store must match.
	if cfg.EmbeddingDim != 768 {
		t.Errorf("expected default dimension 768 for google, got %d", cfg.EmbeddingDim)
	}
	if cfg.PolicyThreshold != 0.9 {
		t.Errorf("expected default policy threshold 0.9, got %f", cfg.PolicyThreshold)
	}
	if cfg.SemanticThreshold != 0.85 {
		t.Errorf("expected default semantic threshold 0.85, got %f", cfg.SemanticThreshold)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("EMBEDDING_DIM", "3072")
	t.Setenv("POLICY_SIMILARITY_THRESHOLD", "0.95")
	t.Setenv("SEMANTIC_SIMILARITY_THRESHOLD", "0.8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.EmbeddingDim != 3072 {
		t.Errorf("expected dimension 3072, got %d", cfg.EmbeddingDim)
	}
	if cfg.PolicyThreshold != 0.95 {
		t.Errorf("expected policy threshold 0.95, got %f", cfg.PolicyThreshold)
	}
	if cfg.SemanticThreshold != 0.8 {
		t.Errorf("expected semantic threshold 0.8, got %f", cfg.SemanticThreshold)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database url", map[string]string{"DATABASE_URL": ""}},
		{"bad db type", map[string]string{"DB_TYPE": "mysql"}},
		{"bad provider", map[string]string{"LLM_PROVIDER": "anthropic"}},
		{"missing google key", map[string]string{"GOOGLE_API_KEY": ""}},
		{"openai without key", map[string]string{"LLM_PROVIDER": "openai"}},
		{"bad dimension", map[string]string{"EMBEDDING_DIM": "-1"}},
		{"threshold out of range", map[string]string{"POLICY_SIMILARITY_THRESHOLD": "1.5"}},
		{"threshold not a number", map[string]string{"SEMANTIC_SIMILARITY_THRESHOLD": "high"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_OpenAIProvider(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GOOGLE_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.LLMProvider != "openai" || cfg.OpenAIAPIKey != "sk-test" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.EmbeddingDim != 1536 {
		t.Errorf("expected default dimension 1536 for openai, got %d", cfg.EmbeddingDim)
	}
}
