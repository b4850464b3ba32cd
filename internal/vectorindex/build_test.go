package vectorindex

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cover-letter-rag/internal/embedding"
	"github.com/jonathan/cover-letter-rag/internal/types"
)

// stubEmbedder maps a text to a fixed vector. failures[text] is the number of calls
// for that text that fail before one succeeds; a negative value fails forever.
type stubEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	failures map[string]int
	calls    map[string]int
}

func newStubEmbedder(vectors map[string][]float32) *stubEmbedder {
	return &stubEmbedder{vectors: vectors, failures: map[string]int{}, calls: map[string]int{}}
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[text]++
	if n := s.failures[text]; n < 0 || s.calls[text] <= n {
		return nil, errors.New("embedding backend hiccup")
	}
	v, ok := s.vectors[text]
	if !ok {
		return nil, errors.New("unknown text")
	}
	return append([]float32(nil), v...), nil
}

func (s *stubEmbedder) Name() string { return "stub" }

type stubBatchEmbedder struct {
	*stubEmbedder
	batchErr   error
	batchCalls int
}

func (s *stubBatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	s.batchCalls++
	s.mu.Unlock()
	if s.batchErr != nil {
		return nil, s.batchErr
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = s.vectors[text]
	}
	return out, nil
}

func quietBuilder(e embedding.Embedder) *Builder {
	b := NewBuilder(e, slog.New(slog.NewTextHandler(io.Discard, nil)))
	b.BatchSize = 2
	b.Workers = 3
	return b
}

func chunksFor(texts ...string) []types.Chunk {
	out := make([]types.Chunk, len(texts))
	for i, text := range texts {
		out[i] = chunk(text, "Data Scientist")
	}
	return out
}

func TestBuild_PreservesOrderAndNormalizes(t *testing.T) {
	e := newStubEmbedder(map[string][]float32{
		"one": {3, 4}, "two": {0, 2}, "three": {5, 0}, "four": {1, 1}, "five": {0, 7},
	})

	idx, stats, err := quietBuilder(e).Build(context.Background(), chunksFor("one", "two", "three", "four", "five"))
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Indexed)
	assert.Zero(t, stats.Dropped)
	assert.Equal(t, "stub", idx.EmbedderName())
	for id, want := range []string{"one", "two", "three", "four", "five"} {
		c, ok := idx.Chunk(id)
		require.True(t, ok)
		assert.Equal(t, want, c.Text)

		v := idx.vectors[id]
		assert.InDelta(t, 1.0, math.Hypot(float64(v[0]), float64(v[1])), 1e-6)
	}
	assert.InDelta(t, 0.6, idx.vectors[0][0], 1e-6)
}

func TestBuild_RetriesOnceThenDrops(t *testing.T) {
	e := newStubEmbedder(map[string][]float32{"ok": {1, 0}, "flaky": {0, 1}, "broken": {1, 1}, "last": {2, 1}})
	e.failures["flaky"] = 1
	e.failures["broken"] = -1

	idx, stats, err := quietBuilder(e).Build(context.Background(), chunksFor("ok", "flaky", "broken", "last"))
	require.NoError(t, err)

	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, 1, stats.Dropped)
	assert.Equal(t, 2, stats.Retried)
	assert.Equal(t, 2, e.calls["flaky"])
	assert.Equal(t, 2, e.calls["broken"])

	// ids stay dense and aligned after the drop
	texts := []string{}
	for id := 0; id < idx.Len(); id++ {
		c, _ := idx.Chunk(id)
		texts = append(texts, c.Text)
	}
	assert.Equal(t, []string{"ok", "flaky", "last"}, texts)
}

func TestBuild_DropsWrongDimension(t *testing.T) {
	e := newStubEmbedder(map[string][]float32{"a": {1, 0}, "b": {1, 0, 0}, "c": {0, 1}})

	idx, stats, err := quietBuilder(e).Build(context.Background(), chunksFor("a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, 1, stats.Dropped)
}

func TestBuild_BatchFallback(t *testing.T) {
	e := &stubBatchEmbedder{
		stubEmbedder: newStubEmbedder(map[string][]float32{"a": {1, 0}, "b": {0, 1}, "c": {1, 1}}),
		batchErr:     errors.New("batch rejected"),
	}

	idx, _, err := quietBuilder(e).Build(context.Background(), chunksFor("a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, 2, e.batchCalls)
	assert.Equal(t, 1, e.calls["a"])
}

func TestBuild_BatchPath(t *testing.T) {
	e := &stubBatchEmbedder{stubEmbedder: newStubEmbedder(map[string][]float32{"a": {1, 0}, "b": {0, 1}, "c": {1, 1}})}

	idx, _, err := quietBuilder(e).Build(context.Background(), chunksFor("a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
	assert.Zero(t, e.calls["a"])
}

func TestBuild_AllFailed(t *testing.T) {
	e := newStubEmbedder(map[string][]float32{})

	_, stats, err := quietBuilder(e).Build(context.Background(), chunksFor("x", "y"))
	require.Error(t, err)
	assert.True(t, types.IsCategory(err, types.CategoryEmbeddingFailure))
	assert.Equal(t, 2, stats.Dropped)
}

func TestBuild_Empty(t *testing.T) {
	_, _, err := quietBuilder(newStubEmbedder(nil)).Build(context.Background(), nil)
	assert.True(t, types.IsCategory(err, types.CategoryEmbeddingFailure))
}

func TestBuild_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := quietBuilder(newStubEmbedder(map[string][]float32{"a": {1}})).Build(ctx, chunksFor("a"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_HashingEmbedder(t *testing.T) {
	b := quietBuilder(embedding.NewHashingEmbedder(32))

	idx, _, err := b.Build(context.Background(), chunksFor("python pandas", "golang grpc", "python numpy"))
	require.NoError(t, err)

	q, _ := embedding.NewHashingEmbedder(32).Embed(context.Background(), "golang grpc")
	matches, err := idx.Search(q, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, matches[0].ID)
}
