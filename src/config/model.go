package config

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Protocol-Lattice/booking-agents/src/models"
)

// Default model ids per provider, used when BOOKING_MODEL_ID is unset.
const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultGeminiModel    = "gemini-1.5-flash-latest"
	defaultAnthropicModel = "claude-sonnet-4-20250514"
	defaultOllamaModel    = "llama3.2"
)

// NewModel builds the language model selected by the profile.
func (p *Profile) NewModel(ctx context.Context) (models.Agent, error) {
	switch p.ModelProvider {
	case "dummy":
		return models.NewDummyLLM(""), nil
	case "openai":
		return models.NewOpenAILLM(p.modelID(defaultOpenAIModel), ""), nil
	case "gemini":
		return models.NewGeminiLLM(ctx, p.ModelAPIKey, p.modelID(defaultGeminiModel), "")
	case "anthropic":
		return models.NewAnthropicLLM(p.modelID(defaultAnthropicModel), ""), nil
	case "ollama":
		return models.NewOllamaLLM(p.modelID(defaultOllamaModel), "")
	default:
		return nil, errors.Errorf("unknown model provider %q", p.ModelProvider)
	}
}

func (p *Profile) modelID(fallback string) string {
	if p.ModelID != "" {
		return p.ModelID
	}
	return fallback
}
