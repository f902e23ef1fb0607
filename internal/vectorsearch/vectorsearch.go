// Package vectorsearch is the dense-vector half of hybrid retrieval:
// approximate nearest-neighbour lookup over memory embeddings via
// sqlite-vec, reporting clamped cosine similarity in [0,1].
package vectorsearch

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-ports/echovault/internal/model"
	"github.com/go-ports/echovault/internal/storage"
)

// ErrDimensionMismatch is returned by SearchStrict when query's dimension
// does not match the index's stored dimension; Search instead reports a
// zero-result set rather than erroring.
var ErrDimensionMismatch = errors.New("vectorsearch: query dimension does not match index")

// DefaultThreshold is the similarity floor applied when a caller does not
// specify one. Hybrid search uses 0.5; standalone vector-only recall uses
// StandaloneThreshold (0.7).
const (
	DefaultThreshold    = 0.5
	StandaloneThreshold = 0.7
)

// Hit is one vector-search result with its cosine similarity in [0,1].
type Hit struct {
	Memory     *model.Memory
	Similarity float64
}

// Engine runs ANN queries against the storage layer's vec0 table.
type Engine struct {
	store *storage.Store
}

// New returns a vector search engine over store.
func New(store *storage.Store) *Engine {
	return &Engine{store: store}
}

// Search returns up to limit hits with similarity ≥ threshold, sorted by
// descending similarity. It returns an empty slice (no error) when the
// vector index does not exist yet or the query is empty — callers degrade
// to text-only search in that case.
func (e *Engine) Search(ctx context.Context, query []float32, threshold float64, limit int) ([]Hit, error) {
	if len(query) == 0 {
		return nil, nil
	}
	neighbors, err := e.store.VectorNeighbors(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("vectorsearch: %w", err)
	}
	if len(neighbors) == 0 {
		return nil, nil
	}

	rowids := make([]int64, len(neighbors))
	for i, n := range neighbors {
		rowids[i] = n.RowID
	}
	mems, err := e.store.MemoriesByRowIDs(ctx, rowids)
	if err != nil {
		return nil, fmt.Errorf("vectorsearch: %w", err)
	}

	hits := make([]Hit, 0, len(neighbors))
	for _, n := range neighbors {
		mem, ok := mems[n.RowID]
		if !ok {
			continue // soft-deleted between the ANN query and the lookup
		}
		sim := distanceToSimilarity(n.Distance)
		if sim < threshold {
			continue
		}
		hits = append(hits, Hit{Memory: mem, Similarity: sim})
	}
	return hits, nil
}

// distanceToSimilarity converts sqlite-vec's L2 distance on normalized
// vectors into a cosine-similarity-shaped score clamped to [0,1].
// sqlite-vec's vec0 MATCH reports squared L2 distance; for unit vectors
// that equals 2(1-cosine), so cosine = 1 - distance/2.
func distanceToSimilarity(distance float64) float64 {
	sim := 1 - distance/2
	return math.Max(0, math.Min(1, sim))
}

// SearchStrict behaves like Search but returns ErrDimensionMismatch instead
// of an empty result when query's length does not match the dimension the
// store's vector index was created with. Used by the recall tool's
// explicit "vector only" mode, where a silent empty result would be
// mistaken for "no matches" rather than "your embedding provider changed".
func (e *Engine) SearchStrict(ctx context.Context, query []float32, threshold float64, limit int) ([]Hit, error) {
	dim, ok, err := e.store.EmbeddingDim()
	if err != nil {
		return nil, fmt.Errorf("vectorsearch: %w", err)
	}
	if ok && len(query) != dim {
		return nil, fmt.Errorf("%w: index dim %d, query dim %d", ErrDimensionMismatch, dim, len(query))
	}
	return e.Search(ctx, query, threshold, limit)
}

// Cosine computes cosine similarity between a and b directly, clamped to
// [0,1] (negative similarity is reported as 0 — recall only cares how
// semantically close two vectors are, not whether they point opposite
// ways). Returns 0 if either vector has zero norm or the dimensions
// differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(0, math.Min(1, sim))
}
