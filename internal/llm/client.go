package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Generator produces text for a prompt, bounded by maxTokens.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Client is a Generator that holds provider resources.
type Client interface {
	Generator
	// Model returns the model name used for generation
	Model() string
	// Close releases any resources held by the client
	Close() error
}

// NewClient validates config and opens a client for its provider. A nil config selects DefaultConfig.
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid LLM config: %w", err)
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, apiKey)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", config.Provider)
	}
}

// GeminiClient generates cover letters with a Gemini model.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiClient opens a Gemini client. The model is resolved once from config.
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{
		client:      client,
		model:       config.GenerationModel(),
		temperature: config.Temperature,
	}, nil
}

// Generate sends prompt as a single user turn. Failures are classified with Classify,
// and output that stopped at the token limit yields ErrTruncated.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	// GenerativeModel carries mutable settings, so each call gets its own.
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(c.temperature)
	model.SetCandidateCount(1)
	if maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", Classify(err))
	}
	return letterText(resp)
}

// Model returns the generation model name
func (c *GeminiClient) Model() string {
	return c.model
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// letterText joins the text parts of the first candidate.
func letterText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates in response", ErrEmptyResponse)
	}

	candidate := resp.Candidates[0]
	switch candidate.FinishReason {
	case genai.FinishReasonMaxTokens:
		return "", fmt.Errorf("%w: stopped at max output tokens", ErrTruncated)
	case genai.FinishReasonSafety, genai.FinishReasonRecitation:
		return "", fmt.Errorf("%w: candidate stopped (%s)", ErrEmptyResponse, candidate.FinishReason)
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: no content in response", ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: no text parts in response", ErrEmptyResponse)
	}
	return text, nil
}
