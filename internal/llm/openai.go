package llm

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIChatModel = "gpt-4o-mini"

// OpenAIClient implements Client using the OpenAI API. Embeddings use
// text-embedding-3-small; judgments and classifications use JSON-mode chat
// completions.
type OpenAIClient struct {
	client         *openai.Client
	chatModel      string
	embeddingModel openai.EmbeddingModel
	embeddingDim   int
}

// NewOpenAIClient creates an OpenAI-backed LLM client with the given API key.
// dim is the embedding dimension requested from the embedding model; pass 0
// to accept the model's native dimension (1536 for text-embedding-3-small).
func NewOpenAIClient(apiKey string, dim int) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	return &OpenAIClient{
		client:         openai.NewClient(apiKey),
		chatModel:      defaultOpenAIChatModel,
		embeddingModel: openai.SmallEmbedding3,
		embeddingDim:   dim,
	}, nil
}

// Embed generates an embedding vector for the given text. The configured
// dimension is forwarded to the model so the result matches the store's
// vector column.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input:      []string{text},
		Model:      c.embeddingModel,
		Dimensions: c.embeddingDim,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	return resp.Data[0].Embedding, nil
}

// Judge evaluates an agent's output and returns the structured verdict.
func (c *OpenAIClient) Judge(ctx context.Context, req JudgeRequest) (*Verdict, error) {
	content, err := c.jsonCompletion(ctx, "You are an expert AI Judge.", BuildJudgePrompt(req))
	if err != nil {
		return nil, fmt.Errorf("judge call failed: %w", err)
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(content), &verdict); err != nil {
		return nil, fmt.Errorf("failed to parse verdict: %w", err)
	}

	return &verdict, nil
}

// ClassifyIssue assigns an issue to a semantic category.
func (c *OpenAIClient) ClassifyIssue(ctx context.Context, req ClassifyRequest) (*CategoryDecision, error) {
	content, err := c.jsonCompletion(ctx, "You classify code issues into root-cause categories.", BuildClassifyPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("classify call failed: %w", err)
	}

	var decision CategoryDecision
	if err := json.Unmarshal([]byte(content), &decision); err != nil {
		return nil, fmt.Errorf("failed to parse category decision: %w", err)
	}

	return &decision, nil
}

// jsonCompletion runs a JSON-mode chat completion and returns the raw
// message content.
func (c *OpenAIClient) jsonCompletion(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// Ensure OpenAIClient implements Client
var _ Client = (*OpenAIClient)(nil)
