package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

const (
	defaultGeminiChatModel      = "gemini-2.0-flash"
	defaultGeminiEmbeddingModel = "text-embedding-004"
)

// GeminiClient implements Client using the Google GenAI API with structured
// JSON output for judgments and classifications.
type GeminiClient struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
	embeddingDim   int32
}

// NewGeminiClient creates a Gemini-backed LLM client with the given API key.
// dim is the embedding dimension requested from the embedding model; pass 0
// to accept the model's native dimension (768 for text-embedding-004).
func NewGeminiClient(ctx context.Context, apiKey string, dim int) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{
		client:         client,
		chatModel:      defaultGeminiChatModel,
		embeddingModel: defaultGeminiEmbeddingModel,
		embeddingDim:   int32(dim),
	}, nil
}

// Embed generates an embedding vector for the given text. The configured
// dimension is forwarded to the model so the result matches the store's
// vector column.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var cfg *genai.EmbedContentConfig
	if c.embeddingDim > 0 {
		dim := c.embeddingDim
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	resp, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	return resp.Embeddings[0].Values, nil
}

var verdictSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"attempt":       {Type: genai.TypeString},
		"is_successful": {Type: genai.TypeBoolean},
		"reasoning":     {Type: genai.TypeString},
		"issue_fix_pairs": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"issue": {Type: genai.TypeString},
					"fix":   {Type: genai.TypeString},
				},
				Required: []string{"issue", "fix"},
			},
		},
	},
	Required: []string{"attempt", "is_successful", "reasoning", "issue_fix_pairs"},
}

var categorySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"name":        {Type: genai.TypeString},
		"description": {Type: genai.TypeString},
		"is_new":      {Type: genai.TypeBoolean},
	},
	Required: []string{"name", "description", "is_new"},
}

// Judge evaluates an agent's output and returns the structured verdict.
func (c *GeminiClient) Judge(ctx context.Context, req JudgeRequest) (*Verdict, error) {
	prompt := BuildJudgePrompt(req)

	resp, err := c.client.Models.GenerateContent(ctx, c.chatModel, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   verdictSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("judge call failed: %w", err)
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(resp.Text()), &verdict); err != nil {
		return nil, fmt.Errorf("failed to parse verdict: %w", err)
	}

	return &verdict, nil
}

// ClassifyIssue assigns an issue to a semantic category.
func (c *GeminiClient) ClassifyIssue(ctx context.Context, req ClassifyRequest) (*CategoryDecision, error) {
	prompt := BuildClassifyPrompt(req)

	resp, err := c.client.Models.GenerateContent(ctx, c.chatModel, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   categorySchema,
	})
	if err != nil {
		return nil, fmt.Errorf("classify call failed: %w", err)
	}

	var decision CategoryDecision
	if err := json.Unmarshal([]byte(resp.Text()), &decision); err != nil {
		return nil, fmt.Errorf("failed to parse category decision: %w", err)
	}

	return &decision, nil
}

// Ensure GeminiClient implements Client
var _ Client = (*GeminiClient)(nil)
