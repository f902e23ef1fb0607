// Package forgetting implements the forgetting policy engine: it scores
// memories by age, disuse, and importance, partitions them into
// soft-delete/hard-delete/review actions, and executes the plan against
// the storage layer.
package forgetting

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ports/echovault/internal/model"
	"github.com/go-ports/echovault/internal/storage"
)

// pinnedExemption is the sentinel forget score assigned to pinned
// memories, forcing them out of every partition regardless of weights.
const pinnedExemption = -1

// Weights are the forget-score coefficients. They need not sum to 1;
// Score divides by their sum so relative weight is what matters.
type Weights struct {
	Age        float64
	Usage      float64
	Importance float64
	Pinned     float64
}

// DefaultWeights are the engine's default coefficients: age and disuse
// matter roughly equally, importance offsets both, pinned status is an
// exemption rather than a weighted term.
var DefaultWeights = Weights{Age: 0.4, Usage: 0.3, Importance: 0.3, Pinned: 0.0}

// Thresholds are the forget-score cut points a cleanup pass applies.
// A memory scoring at or above Hard is hard-deleted, at or above Soft
// is soft-deleted, at or above Review is flagged for manual review, and
// below Review is left untouched.
type Thresholds struct {
	Hard   float64
	Soft   float64
	Review float64
}

// DefaultThresholds are conservative: only very stale, unused, unimportant
// memories are hard-deleted outright; a wide band is merely flagged.
var DefaultThresholds = Thresholds{Hard: 0.8, Soft: 0.6, Review: 0.4}

// usageSaturation is the feedback-event count at which usage_factor
// reaches 1 (fully "used"); chosen as a round number in the absence of a
// specified saturation point.
const usageSaturation = 10

// Engine computes forget scores and cleanup plans over a store.
type Engine struct {
	store      *storage.Store
	weights    Weights
	thresholds Thresholds
	ttls       model.KindTTL
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithWeights overrides the default forget-score weights.
func WithWeights(w Weights) Option { return func(e *Engine) { e.weights = w } }

// WithThresholds overrides the default partition thresholds.
func WithThresholds(t Thresholds) Option { return func(e *Engine) { e.thresholds = t } }

// WithTTLs overrides the default per-kind TTLs.
func WithTTLs(t model.KindTTL) Option { return func(e *Engine) { e.ttls = t } }

// WithClock overrides the engine's notion of "now"; used by tests.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// New returns a forgetting engine over store with the given options
// applied over the defaults.
func New(store *storage.Store, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		weights:    DefaultWeights,
		thresholds: DefaultThresholds,
		ttls:       model.DefaultTTLs(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score is one memory's forget score and the signals that produced it.
type Score struct {
	MemoryID    string
	Value       float64
	AgeFactor   float64
	UsageFactor float64
	Importance  float64
	Pinned      bool
}

// ScoreMemory computes mem's forget score given its feedback count.
func (e *Engine) ScoreMemory(mem *model.Memory, feedbackCount int) Score {
	if mem.Pinned {
		return Score{MemoryID: mem.ID, Value: pinnedExemption, Pinned: true, Importance: mem.Importance}
	}

	ageFactor := e.ageFactor(mem)
	usageFactor := usageFactorFromCount(feedbackCount)

	sum := e.weights.Age + e.weights.Usage + e.weights.Importance + e.weights.Pinned
	if sum <= 0 {
		sum = 1
	}
	value := (e.weights.Age*ageFactor +
		e.weights.Usage*(1-usageFactor) +
		e.weights.Importance*(1-mem.Importance)) / sum

	return Score{
		MemoryID:    mem.ID,
		Value:       value,
		AgeFactor:   ageFactor,
		UsageFactor: usageFactor,
		Importance:  mem.Importance,
	}
}

// ageFactor is the memory's age as a fraction of its kind's TTL, clamped
// to [0,1]. Kinds with an infinite TTL (0 duration) always score 0.
func (e *Engine) ageFactor(mem *model.Memory) float64 {
	ttl := e.ttls.TTL(mem.Kind)
	if ttl <= 0 {
		return 0
	}
	age := e.now().Sub(mem.CreatedAt)
	factor := float64(age) / float64(ttl)
	if factor < 0 {
		return 0
	}
	if factor > 1 {
		return 1
	}
	return factor
}

// usageFactorFromCount maps a feedback-event count to [0,1], saturating
// at usageSaturation events.
func usageFactorFromCount(count int) float64 {
	factor := float64(count) / usageSaturation
	if factor > 1 {
		return 1
	}
	return factor
}

// Plan scores every memory of the given kind (or all kinds if empty) and
// partitions them into the cleanup plan's soft/hard/review buckets.
// Pinned memories are always excluded. Already soft-deleted memories are
// included in scoring (IncludeDeleted) so continued neglect still carries
// them toward the hard-delete threshold on a later pass; since they are
// already a forget candidate, a soft-deleted memory only ever re-enters
// the plan via HardDelete, never SoftDelete or Review again.
func (e *Engine) Plan(ctx context.Context, kind model.Kind) (*model.CleanupPlan, error) {
	filter := storage.Filter{Kind: kind, IncludeDeleted: true}
	mems, err := e.store.ListMemories(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("forgetting: list memories: %w", err)
	}

	plan := &model.CleanupPlan{
		Scores: make(map[string]float64, len(mems)),
		ByKind: make(map[model.Kind]int),
	}
	for _, mem := range mems {
		count, err := e.store.CountFeedback(ctx, mem.ID)
		if err != nil {
			return nil, fmt.Errorf("forgetting: count feedback for %s: %w", mem.ID, err)
		}
		score := e.ScoreMemory(mem, count)
		if score.Pinned {
			continue
		}
		plan.Scores[mem.ID] = score.Value
		plan.ByKind[mem.Kind]++
		plan.Total++

		if mem.Deleted {
			if score.Value >= e.thresholds.Hard {
				plan.HardDelete = append(plan.HardDelete, mem.ID)
			}
			continue
		}

		switch {
		case score.Value >= e.thresholds.Hard:
			plan.HardDelete = append(plan.HardDelete, mem.ID)
		case score.Value >= e.thresholds.Soft:
			plan.SoftDelete = append(plan.SoftDelete, mem.ID)
		case score.Value >= e.thresholds.Review:
			plan.Review = append(plan.Review, mem.ID)
		}
	}
	return plan, nil
}

// Result summarizes the outcome of Execute.
type Result struct {
	SoftDeleted int
	HardDeleted int
	Reviewed    int
	Errors      []error
}

// Execute runs the actions named by plan against the store. Review-listed
// ids are left untouched (the action is reporting only). DryRun mode
// computes the same Result without mutating the store.
func (e *Engine) Execute(ctx context.Context, plan *model.CleanupPlan, dryRun bool) Result {
	result := Result{Reviewed: len(plan.Review)}

	for _, id := range plan.SoftDelete {
		if dryRun {
			result.SoftDeleted++
			continue
		}
		if err := e.store.SoftDeleteMemory(ctx, id, e.now()); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("soft delete %s: %w", id, err))
			continue
		}
		result.SoftDeleted++
	}

	for _, id := range plan.HardDelete {
		if dryRun {
			result.HardDeleted++
			continue
		}
		if err := e.store.HardDeleteMemory(ctx, id); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("hard delete %s: %w", id, err))
			continue
		}
		result.HardDeleted++
	}

	return result
}
