// Package llm provides centralized LLM configuration and client abstractions.
// Generation and embedding backends sit behind single-method capability interfaces
// so callers can be tested against deterministic stubs.
package llm

import (
	"fmt"
	"strings"
)

// ModelTier selects a model by cost and quality rather than by name.
type ModelTier string

const (
	// TierLite is for cheap, fast drafts
	TierLite ModelTier = "lite"
	// TierStandard is the default tier for cover letter generation
	TierStandard ModelTier = "standard"
	// TierAdvanced is for the highest quality output
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// ProviderGemini is the Google Gemini provider; it is the only one wired today.
const ProviderGemini Provider = "gemini"

const (
	// DefaultMaxOutputTokens bounds generated output length.
	DefaultMaxOutputTokens = 600
	// DefaultTemperature is the sampling temperature used for cover letters.
	DefaultTemperature = 0.7
	// DefaultEmbeddingModel is the Gemini embedding model.
	DefaultEmbeddingModel = "text-embedding-004"
)

var geminiTierModels = map[ModelTier]string{
	TierLite:     "gemini-2.5-flash-lite",
	TierStandard: "gemini-2.5-flash",
	TierAdvanced: "gemini-2.5-pro",
}

// ParseModelTier accepts a tier name case-insensitively. Empty selects TierStandard.
func ParseModelTier(s string) (ModelTier, error) {
	switch tier := ModelTier(strings.ToLower(strings.TrimSpace(s))); tier {
	case "":
		return TierStandard, nil
	case TierLite, TierStandard, TierAdvanced:
		return tier, nil
	default:
		return "", fmt.Errorf("unknown model tier %q (want lite, standard or advanced)", s)
	}
}

// Config selects the generation model and its sampling parameters.
type Config struct {
	Provider Provider
	Tier     ModelTier
	// Model, when set, is used regardless of Tier.
	Model       string
	Temperature float32
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return &Config{
		Provider:    ProviderGemini,
		Tier:        TierStandard,
		Temperature: DefaultTemperature,
	}
}

// GenerationModel resolves the model name used for cover letters.
// An unknown tier resolves to the standard model.
func (c *Config) GenerationModel() string {
	if c.Model != "" {
		return c.Model
	}
	if model, ok := geminiTierModels[c.Tier]; ok {
		return model
	}
	return geminiTierModels[TierStandard]
}

// Validate checks the sampling parameters.
func (c *Config) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", c.Temperature)
	}
	return nil
}
