package embedding

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const semanticSimilarity = "SEMANTIC_SIMILARITY"

// GenAI embeds text with the Gemini embedding API.
type GenAI struct {
	client *genai.Client
	model  string
}

// NewGenAI creates a Gemini embedder.
func NewGenAI(ctx context.Context, apiKey, model string) (*GenAI, error) {
	if apiKey == "" {
		return nil, errors.New("genai: API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai: create client: %w", err)
	}
	return &GenAI{client: client, model: model}, nil
}

// Embed requests a SEMANTIC_SIMILARITY embedding for text.
func (g *GenAI) Embed(ctx context.Context, text string) ([]float64, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	result, err := g.client.Models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{
		TaskType: semanticSimilarity,
	})
	if err != nil {
		return nil, fmt.Errorf("genai embed: %w", err)
	}
	if len(result.Embeddings) == 0 || result.Embeddings[0] == nil {
		return nil, nil
	}
	return toFloat64(result.Embeddings[0].Values), nil
}

// Name identifies the engine in logs.
func (g *GenAI) Name() string {
	return "genai:" + g.model
}
