package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini embeds text with the Gemini embedding models.
type Gemini struct {
	client    *genai.Client
	model     string
	dimension int
}

func NewGemini(client *genai.Client, model string, dimension int) *Gemini {
	return &Gemini{client: client, model: model, dimension: dimension}
}

func (g *Gemini) Dimension() int { return g.dimension }

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	dim := int32(g.dimension)
	resp, err := g.client.Models.EmbedContent(ctx, g.model, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed call failed: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("gemini returned no embedding for model %s", g.model)
	}
	return resp.Embeddings[0].Values, nil
}
