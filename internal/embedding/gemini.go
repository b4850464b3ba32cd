package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jonathan/cover-letter-rag/internal/llm"
)

// maxGeminiBatch is the largest request BatchEmbedContents accepts.
const maxGeminiBatch = 100

// GeminiEmbedder embeds text with a Gemini embedding model.
type GeminiEmbedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
	name   string
}

// NewGeminiEmbedder creates an embedder for the named model.
func NewGeminiEmbedder(ctx context.Context, model, apiKey string) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		model = llm.DefaultEmbeddingModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiEmbedder{
		client: client,
		model:  client.EmbeddingModel(model),
		name:   model,
	}, nil
}

// Name returns the embedding model name.
func (e *GeminiEmbedder) Name() string { return e.name }

// Embed returns the embedding for one text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", llm.Classify(err))
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return res.Embedding.Values, nil
}

// EmbedBatch embeds texts in groups of at most 100 per request.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxGeminiBatch {
		end := min(start+maxGeminiBatch, len(texts))

		batch := e.model.NewBatch()
		for _, text := range texts[start:end] {
			batch.AddContent(genai.Text(text))
		}
		res, err := e.model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch: %w", llm.Classify(err))
		}
		if res == nil || len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("batch embedding returned %d vectors for %d texts", embeddingCount(res), end-start)
		}
		for i, emb := range res.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return nil, fmt.Errorf("empty embedding returned for batch item %d", start+i)
			}
			out = append(out, emb.Values)
		}
	}
	return out, nil
}

// Close releases the underlying client.
func (e *GeminiEmbedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

func embeddingCount(res *genai.BatchEmbedContentsResponse) int {
	if res == nil {
		return 0
	}
	return len(res.Embeddings)
}
