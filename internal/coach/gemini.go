package coach

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// ModelInfo is the part of a listed model the selector looks at
type ModelInfo struct {
	Name             string
	SupportedActions []string
}

// Backend is the slice of the Gemini API the coach needs
type Backend interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
	GenerateText(ctx context.Context, model, systemPrompt, prompt string) (string, error)
}

// GeminiConfig configures the Gemini backend
type GeminiConfig struct {
	APIKey     string
	BaseURL    string // empty uses the public endpoint
	HTTPClient *http.Client
}

// Gemini implements Backend with the official genai SDK
type Gemini struct {
	client *genai.Client
}

// NewGemini creates a Gemini API client
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Gemini{client: client}, nil
}

// ListModels returns every base model visible to the key
func (g *Gemini) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var models []ModelInfo
	for m, err := range g.client.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("failed to list models: %w", err)
		}
		models = append(models, ModelInfo{
			Name:             m.Name,
			SupportedActions: m.SupportedActions,
		})
	}
	return models, nil
}

// GenerateText sends a single-turn prompt and returns the response text
func (g *Gemini) GenerateText(ctx context.Context, model, systemPrompt, prompt string) (string, error) {
	var config *genai.GenerateContentConfig
	if systemPrompt != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), config)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("empty response from model")
	}
	return resp.Text(), nil
}
