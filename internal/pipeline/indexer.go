package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonathan/cover-letter-rag/internal/chunking"
	"github.com/jonathan/cover-letter-rag/internal/types"
	"github.com/jonathan/cover-letter-rag/internal/vectorindex"
)

// RecordSource loads the corpus records to index.
type RecordSource func(ctx context.Context) (types.RecordSet, error)

// IndexSummary describes a completed rebuild.
type IndexSummary struct {
	Records   int           `json:"records"`
	Skipped   int           `json:"skipped_records"`
	Chunks    int           `json:"chunks"`
	Indexed   int           `json:"indexed"`
	Dropped   int           `json:"dropped"`
	Dimension int           `json:"dimension"`
	Embedder  string        `json:"embedder"`
	Roles     int           `json:"roles"`
	Path      string        `json:"path,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Indexer performs full index rebuilds: load records, chunk, embed, persist, and swap.
// Rebuilds are serialized; searches keep using the previous index until the swap.
type Indexer struct {
	Source  RecordSource
	Chunker *chunking.Builder
	Builder *vectorindex.Builder
	Holder  *vectorindex.Holder
	// Path is where the index is persisted; empty keeps it in memory only.
	Path string
	// OnSwap runs after a new index is published.
	OnSwap func(*vectorindex.Index)
	Logger *slog.Logger

	mu sync.Mutex
}

// Rebuild builds a fresh index and publishes it. On any failure the active index is untouched.
func (ix *Indexer) Rebuild(ctx context.Context) (IndexSummary, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	logger := ix.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	records, err := ix.Source(ctx)
	if err != nil {
		return IndexSummary{}, types.NewError(types.CategoryConfigurationError, "failed to load corpus records", err)
	}

	chunks, chunkStats := ix.Chunker.BuildWithStats(records)
	summary := IndexSummary{
		Records: chunkStats.Records,
		Skipped: chunkStats.Skipped,
		Chunks:  chunkStats.Chunks,
		Path:    ix.Path,
	}
	logger.Info("chunked corpus", "records", chunkStats.Records, "chunks", chunkStats.Chunks,
		"skipped", chunkStats.Skipped, "split", chunkStats.Split)

	idx, buildStats, err := ix.Builder.Build(ctx, chunks)
	summary.Indexed = buildStats.Indexed
	summary.Dropped = buildStats.Dropped
	if err != nil {
		return summary, err
	}
	summary.Dimension = idx.Dimension()
	summary.Embedder = idx.EmbedderName()
	summary.Roles = len(idx.Roles())

	if ix.Path != "" {
		if err := vectorindex.Save(ctx, idx, ix.Path); err != nil {
			return summary, types.NewError(types.CategoryInternal, fmt.Sprintf("failed to save index to %s", ix.Path), err)
		}
	}

	ix.publish(idx)
	summary.Duration = time.Since(start)
	logger.Info("index published", "entries", idx.Len(), "dimension", idx.Dimension(), "duration", summary.Duration)
	return summary, nil
}

// Load reads the persisted index at Path and publishes it.
func (ix *Indexer) Load(ctx context.Context) (*vectorindex.Index, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	idx, err := vectorindex.Load(ctx, ix.Path)
	if err != nil {
		return nil, err
	}
	ix.publish(idx)
	return idx, nil
}

func (ix *Indexer) publish(idx *vectorindex.Index) {
	ix.Holder.Swap(idx)
	if ix.OnSwap != nil {
		ix.OnSwap(idx)
	}
}
