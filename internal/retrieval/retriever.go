package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonathan/cover-letter-rag/internal/embedding"
	"github.com/jonathan/cover-letter-rag/internal/types"
	"github.com/jonathan/cover-letter-rag/internal/vectorindex"
)

// Retriever answers queries against whichever index the Holder currently publishes.
type Retriever struct {
	holder   *vectorindex.Holder
	embedder embedding.Embedder
	logger   *slog.Logger
}

// NewRetriever creates a Retriever.
func NewRetriever(holder *vectorindex.Holder, embedder embedding.Embedder, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{holder: holder, embedder: embedder, logger: logger}
}

// Retrieve returns up to k chunks nearest to q, best first.
//
// Without a role filter this is the top k of the index. With one, the whole index is
// ranked, non-matching roles are removed, and the first k survivors are returned, so
// the result has exactly k items whenever at least k chunks carry the role.
func (r *Retriever) Retrieve(ctx context.Context, q Query, k int) ([]types.RetrievedContext, error) {
	if k < 1 {
		return nil, types.NewError(types.CategoryInvalidRequest, fmt.Sprintf("top_k must be at least 1, got %d", k), nil)
	}
	if q.Base == "" {
		return nil, types.NewError(types.CategoryInvalidRequest, "query is empty", nil)
	}

	// Snapshot once so a concurrent swap cannot mix two indexes in one answer.
	idx := r.holder.Current()
	if idx == nil {
		return nil, types.NewError(types.CategoryIndexNotReady, "no index loaded", nil)
	}

	raw, err := r.embedder.Embed(ctx, q.Base)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("embedding query: %w", ctx.Err())
		}
		return nil, types.NewError(types.CategoryEmbeddingFailure, "failed to embed query", err)
	}
	vec := embedding.Normalize(raw)

	limit := k
	if q.RoleFilter != nil {
		limit = idx.Len()
	}
	matches, err := idx.Search(vec, limit)
	if err != nil {
		if errors.Is(err, vectorindex.ErrDimensionMismatch) {
			return nil, types.NewError(types.CategoryConfigurationError,
				fmt.Sprintf("query embedder produces %d dimensions but the index was built with %d (%s)",
					len(vec), idx.Dimension(), idx.EmbedderName()), err)
		}
		return nil, types.NewError(types.CategoryInternal, "index search failed", err)
	}

	results := make([]types.RetrievedContext, 0, k)
	for _, m := range matches {
		c, ok := idx.Chunk(m.ID)
		if !ok || !roleMatches(q.RoleFilter, c.Metadata.Role) {
			continue
		}
		results = append(results, types.RetrievedContext{
			ID:              m.ID,
			Rank:            len(results) + 1,
			Text:            c.Text,
			Metadata:        c.Metadata,
			Distance:        m.Distance,
			SimilarityScore: m.Similarity(),
		})
		if len(results) == k {
			break
		}
	}

	r.logger.Debug("retrieved context", "query", q.Base, "role_filter", q.RoleFilter != nil, "k", k, "returned", len(results))
	return results, nil
}

// Roles returns the distinct roles of the active index.
func (r *Retriever) Roles() ([]string, error) {
	idx := r.holder.Current()
	if idx == nil {
		return nil, types.NewError(types.CategoryIndexNotReady, "no index loaded", nil)
	}
	return idx.Roles(), nil
}
