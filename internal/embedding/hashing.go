package embedding

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
)

// DefaultHashingDimension is the vector size used when none is configured.
const DefaultHashingDimension = 384

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// HashingEmbedder is a local, deterministic embedder based on signed feature hashing
// of unigrams and bigrams. It needs no corpus preparation and no network, so an index
// built with it can be reproduced exactly.
type HashingEmbedder struct {
	dimension int
	stopwords map[string]struct{}
}

// NewHashingEmbedder creates a HashingEmbedder. A non-positive dimension selects
// DefaultHashingDimension.
func NewHashingEmbedder(dimension int) *HashingEmbedder {
	if dimension <= 0 {
		dimension = DefaultHashingDimension
	}
	return &HashingEmbedder{dimension: dimension, stopwords: defaultStopwords()}
}

// Name returns the identifier of this embedder implementation.
func (e *HashingEmbedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced vectors.
func (e *HashingEmbedder) Dimension() int { return e.dimension }

// Embed returns the unit-length hashed feature vector for text.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, e.dimension)
	tokens := e.tokenize(text)
	for i, tok := range tokens {
		e.add(vec, tok, 1)
		if i > 0 {
			e.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}
	return Normalize(vec), nil
}

// EmbedBatch embeds each text in order.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *HashingEmbedder) add(vec []float32, feature string, weight float32) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum32()
	idx := int(sum % uint32(e.dimension))
	if sum&(1<<31) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func (e *HashingEmbedder) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "so", "such", "into", "about", "through", "during", "before", "after", "than", "very", "can", "will", "just", "should", "i", "my", "me", "we", "our",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
