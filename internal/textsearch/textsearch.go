// Package textsearch is the lexical half of hybrid retrieval: BM25
// full-text search over memory content and tags, normalized to a [0,1]
// score per query so it can be weighted against vector similarity.
package textsearch

import (
	"context"
	"fmt"

	"github.com/go-ports/echovault/internal/model"
	"github.com/go-ports/echovault/internal/storage"
)

// Hit is one text-search result with its normalized score.
type Hit struct {
	Memory *model.Memory
	Score  float64
}

// Filter narrows the candidate set before scoring: kind, a required tag,
// and pinned-only.
type Filter struct {
	Kind       model.Kind
	Tag        string
	PinnedOnly bool
}

// Engine runs BM25 queries against the storage layer.
type Engine struct {
	store *storage.Store
}

// New returns a text search engine over store.
func New(store *storage.Store) *Engine {
	return &Engine{store: store}
}

// Search runs a BM25 query for up to limit hits, normalizing scores to
// [0,1] by dividing by the top hit's raw score, so the best match in any
// given query is always 1.0.
func (e *Engine) Search(ctx context.Context, query string, f Filter, limit int) ([]Hit, error) {
	rows, err := e.store.FTSQuery(ctx, query, f.Kind, limit)
	if err != nil {
		return nil, fmt.Errorf("textsearch: %w", err)
	}

	hits := make([]Hit, 0, len(rows))
	var maxScore float64
	for _, r := range rows {
		if f.Tag != "" && !hasTag(r.Memory.Tags, f.Tag) {
			continue
		}
		if f.PinnedOnly && !r.Memory.Pinned {
			continue
		}
		if r.Score > maxScore {
			maxScore = r.Score
		}
		hits = append(hits, Hit{Memory: r.Memory, Score: r.Score})
	}
	if maxScore <= 0 {
		maxScore = 1
	}
	for i := range hits {
		hits[i].Score /= maxScore
	}
	return hits, nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
