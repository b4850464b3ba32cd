package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	got := Normalize(v)

	assert.InDelta(t, 0.6, got[0], 1e-6)
	assert.InDelta(t, 0.8, got[1], 1e-6)
	assert.Equal(t, []float32{3, 4}, v, "input must not be modified")

	assert.Equal(t, []float32{0, 0}, Normalize([]float32{0, 0}))
}

func TestSquaredL2(t *testing.T) {
	assert.InDelta(t, 25.0, SquaredL2([]float32{0, 0}, []float32{3, 4}), 1e-9)
	assert.Zero(t, SquaredL2([]float32{1, 2}, []float32{1, 2}))
}

func TestHashingEmbedder_DeterministicAndNormalized(t *testing.T) {
	e := NewHashingEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Senior Go engineer with Kubernetes experience")
	require.NoError(t, err)
	b, err := NewHashingEmbedder(64).Embed(ctx, "Senior Go engineer with Kubernetes experience")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, norm(a), 1e-5)
}

func TestHashingEmbedder_SimilarTextsAreCloser(t *testing.T) {
	e := NewHashingEmbedder(256)
	ctx := context.Background()

	query, _ := e.Embed(ctx, "data scientist python machine learning")
	near, _ := e.Embed(ctx, "Data Scientist skilled in Python and machine learning models")
	far, _ := e.Embed(ctx, "Warehouse forklift operator night shift")

	assert.Less(t, SquaredL2(query, near), SquaredL2(query, far))
}

func TestHashingEmbedder_StopwordsOnly(t *testing.T) {
	v, err := NewHashingEmbedder(16).Embed(context.Background(), "the and of")
	require.NoError(t, err)
	assert.Zero(t, norm(v))
}

func TestHashingEmbedder_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHashingEmbedder(0).Embed(ctx, "anything")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHashingEmbedder_Batch(t *testing.T) {
	e := NewHashingEmbedder(32)
	ctx := context.Background()

	batch, err := e.EmbedBatch(ctx, []string{"first text", "second text"})
	require.NoError(t, err)
	require.Len(t, batch, 2)

	single, _ := e.Embed(ctx, "second text")
	assert.Equal(t, single, batch[1])
}

func TestModelName(t *testing.T) {
	assert.Equal(t, "hashing", ModelName(NewHashingEmbedder(8)))
	assert.Equal(t, DefaultHashingDimension, NewHashingEmbedder(0).Dimension())
}
