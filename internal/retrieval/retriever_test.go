package retrieval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cover-letter-rag/internal/embedding"
	"github.com/jonathan/cover-letter-rag/internal/types"
	"github.com/jonathan/cover-letter-rag/internal/vectorindex"
)

type fixedEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func meta(role string) types.ChunkMetadata {
	return types.ChunkMetadata{Source: types.SourceResume, Role: role, ExperienceType: types.ExperienceExperienced}
}

// testHolder builds an index whose entries sit at increasing distance from (1, 0).
func testHolder(t *testing.T) *vectorindex.Holder {
	t.Helper()
	roles := []string{"Backend Engineer", "Data Scientist", "data scientist", "Backend Engineer", "Data Scientist", "Designer"}
	vectors := make([][]float32, len(roles))
	chunks := make([]types.Chunk, len(roles))
	for i, role := range roles {
		angle := float64(i) * 0.2
		vectors[i] = embedding.Normalize([]float32{float32(1 - angle), float32(angle)})
		chunks[i] = types.Chunk{Text: role + " chunk", Metadata: meta(role)}
	}
	idx, err := vectorindex.New(vectors, chunks, "fixed", time.Now())
	require.NoError(t, err)
	return vectorindex.NewHolder(idx)
}

func newTestRetriever(t *testing.T, e embedding.Embedder) *Retriever {
	return NewRetriever(testHolder(t), e, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBuildQuery(t *testing.T) {
	q := BuildQuery("  Data   Scientist ", "Acme\tCorp", types.ExperienceFresher)
	assert.Equal(t, "Data Scientist Acme Corp fresher", q.Base)
	assert.Nil(t, q.RoleFilter)

	rq := RoleQuery(" Data Scientist ", types.ExperienceExperienced)
	require.NotNil(t, rq.RoleFilter)
	assert.Equal(t, "Data Scientist", *rq.RoleFilter)
	assert.Equal(t, "Data Scientist experienced", rq.Base)

	filtered := q.WithRoleFilter("QA")
	assert.Equal(t, "QA", *filtered.RoleFilter)
	assert.Nil(t, q.RoleFilter)
}

func TestRetrieve_TopKOrdered(t *testing.T) {
	r := newTestRetriever(t, &fixedEmbedder{vec: []float32{2, 0}})

	got, err := r.Retrieve(context.Background(), BuildQuery("Backend Engineer", "Acme", types.ExperienceExperienced), 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, []int{0, 1, 2}, []int{got[0].ID, got[1].ID, got[2].ID})
	for i, rc := range got {
		assert.Equal(t, i+1, rc.Rank)
		assert.InDelta(t, 1/(1+rc.Distance), rc.SimilarityScore, 1e-12)
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].SimilarityScore, rc.SimilarityScore)
		}
	}
}

func TestRetrieve_Idempotent(t *testing.T) {
	r := newTestRetriever(t, &fixedEmbedder{vec: []float32{0.3, 0.7}})
	q := BuildQuery("Designer", "Acme", types.ExperienceFresher)

	first, err := r.Retrieve(context.Background(), q, 4)
	require.NoError(t, err)
	second, err := r.Retrieve(context.Background(), q, 4)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRetrieve_RoleFilterRanksWholeIndex(t *testing.T) {
	r := newTestRetriever(t, &fixedEmbedder{vec: []float32{1, 0}})

	got, err := r.Retrieve(context.Background(), RoleQuery("DATA SCIENTIST", types.ExperienceExperienced), 3)
	require.NoError(t, err)

	// the three data scientist chunks sit at ids 1, 2 and 4, behind closer backend chunks
	require.Len(t, got, 3)
	assert.Equal(t, []int{1, 2, 4}, []int{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, []int{1, 2, 3}, []int{got[0].Rank, got[1].Rank, got[2].Rank})
}

func TestRetrieve_RoleFilterFewerThanK(t *testing.T) {
	r := newTestRetriever(t, &fixedEmbedder{vec: []float32{1, 0}})

	got, err := r.Retrieve(context.Background(), RoleQuery("Designer", types.ExperienceFresher), 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].ID)

	none, err := r.Retrieve(context.Background(), RoleQuery("Astronaut", types.ExperienceFresher), 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRetrieve_IndexNotReady(t *testing.T) {
	e := &fixedEmbedder{vec: []float32{1, 0}}
	r := NewRetriever(vectorindex.NewHolder(nil), e, nil)

	_, err := r.Retrieve(context.Background(), BuildQuery("a", "b", types.ExperienceFresher), 5)
	assert.True(t, types.IsCategory(err, types.CategoryIndexNotReady))
	assert.Zero(t, e.calls)

	_, err = r.Roles()
	assert.True(t, types.IsCategory(err, types.CategoryIndexNotReady))
}

func TestRetrieve_DimensionMismatch(t *testing.T) {
	r := newTestRetriever(t, &fixedEmbedder{vec: []float32{1, 0, 0}})

	_, err := r.Retrieve(context.Background(), BuildQuery("a", "b", types.ExperienceFresher), 5)
	assert.True(t, types.IsCategory(err, types.CategoryConfigurationError))
	assert.ErrorIs(t, err, vectorindex.ErrDimensionMismatch)
}

func TestRetrieve_EmbeddingFailure(t *testing.T) {
	r := newTestRetriever(t, &fixedEmbedder{err: errors.New("quota exceeded")})

	_, err := r.Retrieve(context.Background(), BuildQuery("a", "b", types.ExperienceFresher), 5)
	assert.True(t, types.IsCategory(err, types.CategoryEmbeddingFailure))
}

func TestRetrieve_ContextCanceled(t *testing.T) {
	r := newTestRetriever(t, &fixedEmbedder{err: context.Canceled})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Retrieve(ctx, BuildQuery("a", "b", types.ExperienceFresher), 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, types.IsCategory(err, types.CategoryEmbeddingFailure))
}

func TestRetrieve_InvalidK(t *testing.T) {
	e := &fixedEmbedder{vec: []float32{1, 0}}
	r := newTestRetriever(t, e)

	_, err := r.Retrieve(context.Background(), BuildQuery("a", "b", types.ExperienceFresher), 0)
	assert.True(t, types.IsCategory(err, types.CategoryInvalidRequest))
	assert.Zero(t, e.calls)
}

func TestRoles(t *testing.T) {
	r := newTestRetriever(t, &fixedEmbedder{vec: []float32{1, 0}})

	roles, err := r.Roles()
	require.NoError(t, err)
	assert.Equal(t, []string{"Backend Engineer", "Data Scientist", "data scientist", "Designer"}, roles)
}
