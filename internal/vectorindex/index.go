// Package vectorindex stores chunk embeddings and answers exact nearest-neighbour queries.
//
// An Index pairs each vector with its chunk at the same dense id. Indexes are immutable
// once built; a rebuild produces a new Index which is published through a Holder.
package vectorindex

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/cover-letter-rag/internal/embedding"
	"github.com/jonathan/cover-letter-rag/internal/types"
)

var (
	// ErrDimensionMismatch is returned when a query vector's length differs from the index dimension.
	ErrDimensionMismatch = errors.New("query dimension does not match index")
	// ErrInvalidK is returned when a search asks for fewer than one result.
	ErrInvalidK = errors.New("k must be at least 1")
)

// Match is one search hit.
type Match struct {
	ID       int
	Distance float64
}

// Similarity converts the match distance to a score in (0, 1].
func (m Match) Similarity() float64 {
	return 1 / (1 + m.Distance)
}

// Index is a brute-force L2 index over unit-length vectors.
type Index struct {
	vectors  [][]float32
	chunks   []types.Chunk
	dim      int
	embedder string
	builtAt  time.Time
}

// New creates an Index from aligned vectors and chunks. Vector i belongs to chunk i.
func New(vectors [][]float32, chunks []types.Chunk, embedderName string, builtAt time.Time) (*Index, error) {
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("vectors and chunks length mismatch: %d != %d", len(vectors), len(chunks))
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("index must contain at least one entry")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("vector 0 is empty")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}
	return &Index{
		vectors:  vectors,
		chunks:   chunks,
		dim:      dim,
		embedder: embedderName,
		builtAt:  builtAt.UTC(),
	}, nil
}

// Len returns the number of entries.
func (x *Index) Len() int { return len(x.vectors) }

// Dimension returns the vector dimension.
func (x *Index) Dimension() int { return x.dim }

// EmbedderName returns the name of the model that produced the vectors.
func (x *Index) EmbedderName() string { return x.embedder }

// BuiltAt returns when the index was built.
func (x *Index) BuiltAt() time.Time { return x.builtAt }

// Chunk returns the chunk stored under id.
func (x *Index) Chunk(id int) (types.Chunk, bool) {
	if id < 0 || id >= len(x.chunks) {
		return types.Chunk{}, false
	}
	return x.chunks[id], true
}

// Search returns up to k entries nearest to query, ordered by ascending squared L2
// distance with ties broken by ascending id.
func (x *Index) Search(query []float32, k int) ([]Match, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(query), x.dim)
	}

	matches := make([]Match, len(x.vectors))
	for id, v := range x.vectors {
		matches[id] = Match{ID: id, Distance: embedding.SquaredL2(query, v)}
	}
	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Distance != matches[b].Distance {
			return matches[a].Distance < matches[b].Distance
		}
		return matches[a].ID < matches[b].ID
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// Roles returns the distinct roles present in the index, sorted case-insensitively.
// Roles differing only in case or spacing are reported once, using the first spelling seen.
func (x *Index) Roles() []string {
	seen := make(map[string]struct{})
	var roles []string
	for _, c := range x.chunks {
		key := roleKey(c.Metadata.Role)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		roles = append(roles, c.Metadata.Role)
	}
	sort.Slice(roles, func(a, b int) bool {
		return roleKey(roles[a]) < roleKey(roles[b])
	})
	return roles
}

func roleKey(role string) string {
	return strings.ToLower(strings.Join(strings.Fields(role), " "))
}
