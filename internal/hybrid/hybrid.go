// Package hybrid merges internal/textsearch and internal/vectorsearch
// results under adaptive, query-dependent weights, producing the final
// ranked recall set.
package hybrid

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/go-ports/echovault/internal/embedding"
	"github.com/go-ports/echovault/internal/model"
	"github.com/go-ports/echovault/internal/textsearch"
	"github.com/go-ports/echovault/internal/vectorsearch"
)

// Weights is a (vector, text) weight pair that sums to 1.
type Weights struct {
	Vector float64
	Text   float64
}

// DefaultWeights are the engine's starting point before adaptive
// adjustment: a 60/40 lean toward vector similarity over lexical match.
var DefaultWeights = Weights{Vector: 0.6, Text: 0.4}

// technicalTokens is the curated set of single-token technical queries
// that bias toward vector search — a representative sample of
// API/protocol/format terms an engineer is likely to search for by exact
// token.
var technicalTokens = map[string]bool{
	"api": true, "sql": true, "json": true, "http": true, "https": true,
	"tcp": true, "udp": true, "grpc": true, "regex": true, "oauth": true,
	"jwt": true, "cli": true, "yaml": true, "toml": true, "graphql": true,
	"websocket": true, "cron": true, "sha256": true, "uuid": true,
}

// Reason explains which signal(s) produced a hit's final score.
type Reason string

const (
	ReasonBoth   Reason = "both"
	ReasonText   Reason = "text"
	ReasonVector Reason = "vector"
)

// Hit is one final ranked recall result.
type Hit struct {
	Memory *model.Memory
	Score  float64
	Reason Reason
}

// Stats records per-engine hit counts for the last search, exposed via
// performance_stats.
type Stats struct {
	Searches   int64
	TextHits   int64
	VectorHits int64
}

// Engine merges text and vector search under adaptive weights, memoizing
// the adjusted weights per normalized query for stable repeat ranking.
type Engine struct {
	text     *textsearch.Engine
	vector   *vectorsearch.Engine
	provider embedding.Provider

	mu           sync.RWMutex
	weightsCache map[string]Weights
	stats        Stats
}

// New returns a hybrid engine over the given text/vector engines and
// embedding provider. provider may be nil, in which case Search degrades
// to text-only (reported via Reason == ReasonText for every hit).
func New(text *textsearch.Engine, vector *vectorsearch.Engine, provider embedding.Provider) *Engine {
	return &Engine{
		text:         text,
		vector:       vector,
		provider:     provider,
		weightsCache: make(map[string]Weights),
	}
}

// Search runs text and vector search for query, merges them under the
// adaptively-adjusted weights, and returns up to limit hits sorted by
// descending final score with ties broken by higher importance, then
// newer created_at, then id.
func (e *Engine) Search(ctx context.Context, query string, tf textsearch.Filter, limit int) ([]Hit, error) {
	weights := e.adaptiveWeights(query)

	textHits, err := e.text.Search(ctx, query, tf, limit*2)
	if err != nil {
		return nil, err
	}

	var vecHits []vectorsearch.Hit
	if e.provider != nil {
		vec, embedErr := e.provider.Embed(ctx, query)
		if embedErr == nil {
			vecHits, err = e.vector.Search(ctx, vec, vectorsearch.DefaultThreshold, limit*2)
			if err != nil {
				vecHits = nil
			}
		}
	}

	e.mu.Lock()
	e.stats.Searches++
	e.stats.TextHits += int64(len(textHits))
	e.stats.VectorHits += int64(len(vecHits))
	e.mu.Unlock()

	merged := merge(textHits, vecHits, weights)
	sort.Slice(merged, func(i, j int) bool {
		return less(merged[i], merged[j])
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// Stats returns a copy of the engine's cumulative search statistics.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

func merge(textHits []textsearch.Hit, vecHits []vectorsearch.Hit, w Weights) []Hit {
	combined := make(map[string]*Hit, len(textHits)+len(vecHits))
	for _, h := range textHits {
		combined[h.Memory.ID] = &Hit{Memory: h.Memory, Score: w.Text * h.Score, Reason: ReasonText}
	}
	for _, h := range vecHits {
		if existing, ok := combined[h.Memory.ID]; ok {
			existing.Score += w.Vector * h.Similarity
			existing.Reason = ReasonBoth
		} else {
			combined[h.Memory.ID] = &Hit{Memory: h.Memory, Score: w.Vector * h.Similarity, Reason: ReasonVector}
		}
	}
	out := make([]Hit, 0, len(combined))
	for _, h := range combined {
		out = append(out, *h)
	}
	return out
}

func less(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Memory.Importance != b.Memory.Importance {
		return a.Memory.Importance > b.Memory.Importance
	}
	if !a.Memory.CreatedAt.Equal(b.Memory.CreatedAt) {
		return a.Memory.CreatedAt.After(b.Memory.CreatedAt)
	}
	return a.Memory.ID < b.Memory.ID
}

// adaptiveWeights returns the (possibly adjusted) weights for query,
// memoizing the result per normalized query string.
func (e *Engine) adaptiveWeights(query string) Weights {
	norm := normalizeQuery(query)

	e.mu.RLock()
	if w, ok := e.weightsCache[norm]; ok {
		e.mu.RUnlock()
		return w
	}
	e.mu.RUnlock()

	w := adjustWeights(DefaultWeights, norm)

	e.mu.Lock()
	e.weightsCache[norm] = w
	e.mu.Unlock()
	return w
}

func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// adjustWeights applies the three query-property rules in order (a query
// satisfying more than one is adjusted by each in sequence) and
// renormalizes so the pair sums to 1.
func adjustWeights(w Weights, normalizedQuery string) Weights {
	tokens := strings.Fields(normalizedQuery)

	if len(tokens) == 1 && technicalTokens[tokens[0]] {
		w.Vector = minF(0.8, w.Vector+0.2)
		w.Text = maxF(0.2, w.Text-0.2)
	}
	isPhrase := strings.Contains(normalizedQuery, " ") && len(tokens) >= 3
	if isPhrase {
		w.Text = minF(0.8, w.Text+0.2)
		w.Vector = maxF(0.2, w.Vector-0.2)
	}
	if len(normalizedQuery) <= 10 && !isPhrase {
		w.Vector = minF(0.7, w.Vector+0.1)
		w.Text = maxF(0.3, w.Text-0.1)
	}

	sum := w.Vector + w.Text
	if sum > 0 {
		w.Vector /= sum
		w.Text /= sum
	}
	return w
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
