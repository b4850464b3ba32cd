package vectorindex

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/cover-letter-rag/internal/embedding"
	"github.com/jonathan/cover-letter-rag/internal/types"
)

const (
	// DefaultBatchSize is the number of chunks embedded per batch.
	DefaultBatchSize = 32
	// DefaultWorkers bounds concurrently embedded batches.
	DefaultWorkers = 4
)

// BuildStats summarizes an index build.
type BuildStats struct {
	Chunks   int
	Indexed  int
	Dropped  int
	Retried  int
	Duration time.Duration
}

// Builder embeds chunks and assembles an Index.
type Builder struct {
	Embedder  embedding.Embedder
	BatchSize int
	Workers   int
	Logger    *slog.Logger
	// Now is used to stamp the index; defaults to time.Now.
	Now func() time.Time
}

// NewBuilder creates a Builder with default batching.
func NewBuilder(embedder embedding.Embedder, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		Embedder:  embedder,
		BatchSize: DefaultBatchSize,
		Workers:   DefaultWorkers,
		Logger:    logger,
		Now:       time.Now,
	}
}

// Build embeds every chunk and returns a new Index. Chunks whose embedding fails twice,
// or whose vector has a different dimension from the first successful one, are dropped
// with a warning. Surviving entries keep their relative order and receive dense ids.
// Build fails with EmbeddingFailure when chunks is empty or nothing could be embedded.
func (b *Builder) Build(ctx context.Context, chunks []types.Chunk) (*Index, BuildStats, error) {
	start := time.Now()
	stats := BuildStats{Chunks: len(chunks)}
	if len(chunks) == 0 {
		return nil, stats, types.NewError(types.CategoryEmbeddingFailure, "no chunks to index", nil)
	}

	batchSize := b.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	workers := b.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	vectors := make([][]float32, len(chunks))
	var retried atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < len(chunks); lo += batchSize {
		hi := min(lo+batchSize, len(chunks))
		g.Go(func() error {
			return b.embedBatch(gCtx, lo, chunks[lo:hi], vectors[lo:hi], &retried)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, fmt.Errorf("index build interrupted: %w", err)
	}
	stats.Retried = int(retried.Load())

	dim := 0
	keptVectors := make([][]float32, 0, len(chunks))
	keptChunks := make([]types.Chunk, 0, len(chunks))
	for i, v := range vectors {
		if v == nil {
			stats.Dropped++
			continue
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			stats.Dropped++
			b.Logger.Warn("dropping chunk with unexpected dimension", "position", i, "dimension", len(v), "expected", dim)
			continue
		}
		keptVectors = append(keptVectors, embedding.Normalize(v))
		keptChunks = append(keptChunks, chunks[i])
	}
	stats.Indexed = len(keptVectors)
	stats.Duration = time.Since(start)

	if stats.Indexed == 0 {
		return nil, stats, types.NewError(types.CategoryEmbeddingFailure,
			fmt.Sprintf("all %d chunks failed to embed", len(chunks)), nil)
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	idx, err := New(keptVectors, keptChunks, embedding.ModelName(b.Embedder), now())
	if err != nil {
		return nil, stats, types.NewError(types.CategoryInternal, "assembling index", err)
	}

	b.Logger.Info("index built",
		"chunks", stats.Chunks,
		"indexed", stats.Indexed,
		"dropped", stats.Dropped,
		"retried", stats.Retried,
		"dimension", idx.Dimension(),
		"duration", stats.Duration)
	return idx, stats, nil
}

// embedBatch fills out with vectors for batch. Entries left nil were dropped.
// Only context cancellation is returned as an error.
func (b *Builder) embedBatch(ctx context.Context, offset int, batch []types.Chunk, out [][]float32, retried *atomic.Int64) error {
	if be, ok := b.Embedder.(embedding.BatchEmbedder); ok {
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vecs, err := be.EmbedBatch(ctx, texts)
		if err == nil && len(vecs) == len(batch) {
			for i, v := range vecs {
				if len(v) > 0 {
					out[i] = v
				}
			}
		} else if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		} else {
			b.Logger.Warn("batch embedding failed, falling back to single embeds",
				"offset", offset, "size", len(batch), "error", errString(err, len(vecs), len(batch)))
		}
	}

	for i, c := range batch {
		if out[i] != nil {
			continue
		}
		v, err := b.embedOne(ctx, c.Text, retried)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			b.Logger.Warn("dropping chunk after failed embedding",
				"position", offset+i, "source", c.Metadata.Source, "role", c.Metadata.Role, "error", err)
			continue
		}
		out[i] = v
	}
	return nil
}

// embedOne embeds text, retrying once on failure.
func (b *Builder) embedOne(ctx context.Context, text string, retried *atomic.Int64) ([]float32, error) {
	v, err := b.Embedder.Embed(ctx, text)
	if err == nil && len(v) > 0 {
		return v, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	retried.Add(1)
	v, err = b.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("empty embedding")
	}
	return v, nil
}

func errString(err error, got, want int) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("returned %d vectors for %d texts", got, want)
}
