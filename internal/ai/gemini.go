package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/janmitra/backend/internal/models"
)

type GeminiAdapter struct {
	client *genai.Client
	model  string
}

// NewGeminiAdapter talks to the Gemini API. An empty baseURL uses the public endpoint.
func NewGeminiAdapter(ctx context.Context, apiKey, model, baseURL string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiAdapter{client: client, model: model}, nil
}

func (g *GeminiAdapter) Converse(ctx context.Context, history []models.ChatMessage) (Reply, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, h := range history {
		role := genai.Role(genai.RoleUser)
		if h.Role == "assistant" || h.Role == "model" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(h.Content, role))
	}
	if len(contents) == 0 {
		contents = append(contents, genai.NewContentFromText("Hello", genai.RoleUser))
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return Reply{}, fmt.Errorf("gemini generate failed: %w", err)
	}
	return parseReply(resp.Text())
}
