package oracle

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"pilot/internal/config"
)

// GeminiClient talks to the Gemini API through the official genai SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(cfg config.LLMConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key not configured")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: cfg.Model}, nil
}

// Complete sends a prompt and returns the completion text.
func (g *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system instruction.
func (g *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return g.generate(ctx, systemPrompt, userPrompt)
}

func (g *GeminiClient) generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.1),
	}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(userPrompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned empty response")
	}
	return text, nil
}
