package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cover-letter-rag/internal/chunking"
	"github.com/jonathan/cover-letter-rag/internal/embedding"
	"github.com/jonathan/cover-letter-rag/internal/retrieval"
	"github.com/jonathan/cover-letter-rag/internal/types"
	"github.com/jonathan/cover-letter-rag/internal/vectorindex"
)

func newTestIndexer(t *testing.T, source RecordSource) *Indexer {
	t.Helper()
	return &Indexer{
		Source:  source,
		Chunker: chunking.NewBuilder(0, quietLogger()),
		Builder: vectorindex.NewBuilder(embedding.NewHashingEmbedder(64), quietLogger()),
		Holder:  vectorindex.NewHolder(nil),
		Path:    filepath.Join(t.TempDir(), "index.db"),
		Logger:  quietLogger(),
	}
}

func staticSource(records types.RecordSet) RecordSource {
	return func(context.Context) (types.RecordSet, error) { return records, nil }
}

func TestIndexer_RebuildPublishesAndPersists(t *testing.T) {
	ix := newTestIndexer(t, staticSource(corpus()))
	var swapped *vectorindex.Index
	ix.OnSwap = func(idx *vectorindex.Index) { swapped = idx }

	summary, err := ix.Rebuild(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 8, summary.Records)
	assert.Equal(t, 8, summary.Chunks)
	assert.Equal(t, 8, summary.Indexed)
	assert.Zero(t, summary.Dropped)
	assert.Equal(t, 64, summary.Dimension)
	assert.Equal(t, "hashing", summary.Embedder)
	assert.Equal(t, 2, summary.Roles)
	assert.True(t, ix.Holder.Ready())
	assert.Same(t, ix.Holder.Current(), swapped)

	loaded, err := vectorindex.Load(context.Background(), ix.Path)
	require.NoError(t, err)
	assert.Equal(t, 8, loaded.Len())
}

func TestIndexer_SkipsInvalidRecords(t *testing.T) {
	records := corpus()
	records.Resumes = append(records.Resumes, types.ResumeRecord{Role: "Backend Engineer", ExperienceType: "senior", Text: "Bad band."})
	ix := newTestIndexer(t, staticSource(records))

	summary, err := ix.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, summary.Records)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 8, summary.Indexed)
}

func TestIndexer_SourceErrorKeepsActiveIndex(t *testing.T) {
	ix := newTestIndexer(t, staticSource(corpus()))
	_, err := ix.Rebuild(context.Background())
	require.NoError(t, err)
	before := ix.Holder.Current()

	ix.Source = func(context.Context) (types.RecordSet, error) { return types.RecordSet{}, errors.New("csv missing") }
	_, err = ix.Rebuild(context.Background())

	assert.True(t, types.IsCategory(err, types.CategoryConfigurationError))
	assert.Same(t, before, ix.Holder.Current())
}

func TestIndexer_EmptyCorpusFails(t *testing.T) {
	ix := newTestIndexer(t, staticSource(types.RecordSet{}))

	_, err := ix.Rebuild(context.Background())

	assert.True(t, types.IsCategory(err, types.CategoryEmbeddingFailure))
	assert.False(t, ix.Holder.Ready())
}

func TestIndexer_MemoryOnly(t *testing.T) {
	ix := newTestIndexer(t, staticSource(corpus()))
	ix.Path = ""

	summary, err := ix.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Path)
	assert.True(t, ix.Holder.Ready())
}

func TestIndexer_Load(t *testing.T) {
	built := newTestIndexer(t, staticSource(corpus()))
	_, err := built.Rebuild(context.Background())
	require.NoError(t, err)

	fresh := &Indexer{Holder: vectorindex.NewHolder(nil), Path: built.Path}
	idx, err := fresh.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, idx.Len())
	assert.Same(t, idx, fresh.Holder.Current())
}

func TestIndexer_LoadMissingFile(t *testing.T) {
	ix := &Indexer{Holder: vectorindex.NewHolder(nil), Path: filepath.Join(t.TempDir(), "absent.db")}

	_, err := ix.Load(context.Background())

	assert.True(t, types.IsCategory(err, types.CategoryIndexNotReady))
	assert.False(t, ix.Holder.Ready())
}

// corpusGeneration returns a resume-only corpus of n records whose texts all carry marker.
func corpusGeneration(marker string, n int) types.RecordSet {
	resumes := make([]types.ResumeRecord, n)
	for i := range resumes {
		resumes[i] = types.ResumeRecord{
			Role:           "Backend Engineer",
			ExperienceType: "experienced",
			Text:           fmt.Sprintf("%s release %d shipped payment services in Go.", marker, i),
		}
	}
	return types.RecordSet{Resumes: resumes}
}

func TestIndexer_RetrieveDuringRebuild(t *testing.T) {
	generations := []types.RecordSet{corpusGeneration("alpha", 4), corpusGeneration("bravo", 7)}

	// id -> text for each generation, from a standalone build of the same corpus
	expected := make([]map[int]string, len(generations))
	for g, records := range generations {
		ix := newTestIndexer(t, staticSource(records))
		ix.Path = ""
		_, err := ix.Rebuild(context.Background())
		require.NoError(t, err)
		idx := ix.Holder.Current()
		expected[g] = make(map[int]string, idx.Len())
		for id := 0; id < idx.Len(); id++ {
			c, ok := idx.Chunk(id)
			require.True(t, ok)
			expected[g][id] = c.Text
		}
	}

	var calls atomic.Int64
	ix := newTestIndexer(t, func(context.Context) (types.RecordSet, error) {
		return generations[calls.Add(1)%2], nil
	})
	ix.Path = ""
	_, err := ix.Rebuild(context.Background())
	require.NoError(t, err)

	retriever := retrieval.NewRetriever(ix.Holder, embedding.NewHashingEmbedder(64), quietLogger())
	role := "backend engineer"
	queries := []retrieval.Query{
		{Base: "payment services in Go"},
		{Base: "release shipped", RoleFilter: &role},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		for i := 0; i < 20; i++ {
			_, err := ix.Rebuild(context.Background())
			assert.NoError(t, err)
		}
	}()

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(q retrieval.Query) {
			defer wg.Done()
			for ctx.Err() == nil {
				results, err := retriever.Retrieve(context.Background(), q, 3)
				if !assert.NoError(t, err) {
					return
				}
				if !assert.Len(t, results, 3) {
					return
				}
				gen := -1
				for g := range expected {
					if text, ok := expected[g][results[0].ID]; ok && text == results[0].Text {
						gen = g
					}
				}
				if !assert.NotEqual(t, -1, gen, "result %d does not belong to any index", results[0].ID) {
					return
				}
				for _, r := range results {
					assert.Equal(t, expected[gen][r.ID], r.Text, "ids and chunks from different indexes")
				}
			}
		}(queries[w%len(queries)])
	}

	wg.Wait()
	assert.Equal(t, int64(21), calls.Load())
}
