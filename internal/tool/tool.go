// Package tool implements the store's canonical operations — remember,
// recall, forget, pin, unpin, cleanup_memory, forgetting_stats,
// performance_stats, database_optimize — each validating its input,
// orchestrating the lower subsystems, and shaping a uniform
// {ok, payload|error} envelope at the boundary via toolerr.
package tool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"regexp"

	"github.com/go-ports/echovault/internal/embedding"
	"github.com/go-ports/echovault/internal/forgetting"
	"github.com/go-ports/echovault/internal/hybrid"
	"github.com/go-ports/echovault/internal/model"
	"github.com/go-ports/echovault/internal/observability"
	"github.com/go-ports/echovault/internal/redaction"
	"github.com/go-ports/echovault/internal/storage"
	"github.com/go-ports/echovault/internal/taskqueue"
	"github.com/go-ports/echovault/internal/textsearch"
	"github.com/go-ports/echovault/internal/tool/toolerr"
	"github.com/go-ports/echovault/internal/vectorsearch"
)

const embedTaskType = "embed_and_index"

// errorTable maps the internal sentinels this package can surface to the
// tool-boundary codes they translate to.
var errorTable = toolerr.Table{
	storage.ErrNotFound:          toolerr.CodeNotFound,
	storage.ErrInvalidInput:      toolerr.CodeInvalidInput,
	storage.ErrBusy:              toolerr.CodeBusy,
	storage.ErrDimensionMismatch: toolerr.CodeInvalidInput,
	storage.ErrPinnedMustUnpin:   toolerr.CodeInvalidInput,
	model.ErrEmptyContent:        toolerr.CodeInvalidInput,
	model.ErrImportanceRange:     toolerr.CodeInvalidInput,
	model.ErrAccessBeforeCreate:  toolerr.CodeInvalidInput,
	model.ErrInvalidKind:         toolerr.CodeInvalidInput,
	model.ErrInvalidPrivacy:      toolerr.CodeInvalidInput,
}

// Service orchestrates every tool operation over the lower subsystems:
// storage, hybrid search, the forgetting policy, and the async task
// queue.
type Service struct {
	store    *storage.Store
	embedder embedding.Provider
	text     *textsearch.Engine
	vector   *vectorsearch.Engine
	hybrid   *hybrid.Engine
	forget   *forgetting.Engine
	queue    *taskqueue.Queue
	metrics  *observability.Metrics
	errorLog *observability.ErrorLog

	redactPatterns []*regexp.Regexp
}

// New wires a tool Service over an already-open store and embedding
// provider. queue, metrics and errorLog may be nil; nil disables the
// corresponding instrumentation/async path.
func New(store *storage.Store, embedder embedding.Provider, queue *taskqueue.Queue, metrics *observability.Metrics, errorLog *observability.ErrorLog) *Service {
	text := textsearch.New(store)
	vector := vectorsearch.New(store)
	return &Service{
		store:    store,
		embedder: embedder,
		text:     text,
		vector:   vector,
		hybrid:   hybrid.New(text, vector, embedder),
		forget:   forgetting.New(store),
		queue:    queue,
		metrics:  metrics,
		errorLog: errorLog,
	}
}

// SetQueue attaches a task queue after construction, for the case where
// the queue's handler map must be built from this same Service (see
// Handlers) before the queue itself can exist. Remember enqueues
// embed_and_index tasks through whatever queue is attached at call time;
// nil disables the async path without otherwise affecting Remember.
func (s *Service) SetQueue(queue *taskqueue.Queue) {
	s.queue = queue
}

// SetRedactionPatterns attaches the caller-supplied patterns (typically
// loaded from a .memoryignore file) that Remember applies on top of the
// built-in secret patterns before storing content. nil clears them,
// leaving only the built-in patterns in effect.
func (s *Service) SetRedactionPatterns(patterns []*regexp.Regexp) {
	s.redactPatterns = patterns
}

func (s *Service) recordErr(op string, category observability.Category, err error) {
	if err == nil || s.errorLog == nil {
		return
	}
	s.errorLog.Record(observability.SeverityError, category, op, err)
}

// ---------------------------------------------------------------------------
// remember
// ---------------------------------------------------------------------------

// RememberInput is remember's validated request.
type RememberInput struct {
	Kind       model.Kind
	Content    string
	Importance float64
	Privacy    model.Privacy
	Tags       []string
	Source     string
}

// RememberResult is remember's response payload.
type RememberResult struct {
	MemoryID         string
	EmbeddingCreated bool
}

// Remember validates input, inserts the memory synchronously, then runs
// the embedding-and-index step through the same handler the async task
// queue would dispatch, reporting whether it succeeded. Embedding
// failure never fails the call — the row is already committed.
func (s *Service) Remember(ctx context.Context, in RememberInput) (*RememberResult, *toolerr.Error) {
	if in.Kind == "" {
		in.Kind = model.KindEpisodic
	}
	if in.Privacy == "" {
		in.Privacy = model.PrivacyPrivate
	}
	if in.Importance == 0 {
		in.Importance = 0.5
	}

	now := time.Now().UTC()
	red := redaction.RedactMemory(in.Content, in.Tags, in.Source, s.redactPatterns)
	mem := &model.Memory{
		ID: model.NewID(), Kind: in.Kind, Content: red.Content,
		Importance: in.Importance, Privacy: in.Privacy, Tags: red.Tags, Source: red.Source,
		CreatedAt: now, LastAccessedAt: now,
	}
	if red.Redacted {
		slog.Warn("tool: redacted sensitive content in remember", "memory_id", mem.ID)
	}
	if !mem.Kind.Valid() {
		return nil, toolerr.Translate(model.ErrInvalidKind, errorTable)
	}
	if !mem.Privacy.Valid() {
		return nil, toolerr.Translate(model.ErrInvalidPrivacy, errorTable)
	}
	if err := mem.Validate(); err != nil {
		return nil, toolerr.Translate(err, errorTable)
	}

	rowid, err := s.store.InsertMemory(ctx, mem)
	if err != nil {
		s.recordErr("Remember", observability.CategoryStorage, err)
		return nil, toolerr.Translate(err, errorTable)
	}

	embedded := s.embedAndIndex(ctx, mem.ID, rowid, mem.Content)

	if s.queue != nil {
		s.queue.Enqueue(&taskqueue.Task{
			ID: mem.ID + "-embed", Type: embedTaskType, Payload: mem.ID,
			Priority: taskqueue.PriorityNormal, MaxRetries: 1,
		})
	}

	if s.metrics != nil {
		s.metrics.ToolCalls.WithLabelValues("remember", "ok").Inc()
	}
	return &RememberResult{MemoryID: mem.ID, EmbeddingCreated: embedded}, nil
}

// embedAndIndex is the embedding-and-index step shared by Remember's
// inline attempt and the queue's embed_and_index handler (see Handlers).
func (s *Service) embedAndIndex(ctx context.Context, memoryID string, rowid int64, content string) bool {
	if s.embedder == nil {
		return false
	}
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		s.recordErr("embedAndIndex", observability.CategoryEmbedding, err)
		if s.metrics != nil {
			s.metrics.EmbeddingErrors.Inc()
		}
		return false
	}
	if err := s.store.UpsertEmbedding(ctx, rowid, vec); err != nil {
		s.recordErr("embedAndIndex", observability.CategoryStorage, err)
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// recall
// ---------------------------------------------------------------------------

// RecallInput is recall's validated request.
type RecallInput struct {
	Query string
	Kind  model.Kind
	Tag   string
	Limit int
}

// RecallResult is one ranked recall hit shaped for the tool envelope.
type RecallResult struct {
	MemoryID   string
	Content    string
	Kind       model.Kind
	Importance float64
	Score      float64
	Reason     hybrid.Reason
	Tags       []string
	Source     string
	Pinned     bool
}

// Recall runs the hybrid search and touches LastAccessedAt on every hit
// returned. It never errors on an empty result — an empty slice is a
// normal, successful recall.
func (s *Service) Recall(ctx context.Context, in RecallInput) ([]RecallResult, *toolerr.Error) {
	if in.Query == "" {
		return nil, toolerr.Invalid("query must not be empty")
	}
	if in.Limit <= 0 {
		in.Limit = 10
	}

	hits, err := s.hybrid.Search(ctx, in.Query, textsearch.Filter{Kind: in.Kind, Tag: in.Tag}, in.Limit)
	if err != nil {
		s.recordErr("Recall", observability.CategorySearch, err)
		return nil, toolerr.Translate(err, errorTable)
	}

	now := time.Now().UTC()
	out := make([]RecallResult, 0, len(hits))
	for _, h := range hits {
		_ = s.store.TouchAccessed(ctx, h.Memory.ID, now)
		out = append(out, RecallResult{
			MemoryID: h.Memory.ID, Content: h.Memory.Content, Kind: h.Memory.Kind,
			Importance: h.Memory.Importance, Score: h.Score, Reason: h.Reason,
			Tags: h.Memory.Tags, Source: h.Memory.Source, Pinned: h.Memory.Pinned,
		})
	}
	if s.metrics != nil {
		s.metrics.ToolCalls.WithLabelValues("recall", "ok").Inc()
		s.metrics.SearchHits.WithLabelValues("hybrid").Observe(float64(len(out)))
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// pin / unpin
// ---------------------------------------------------------------------------

// Pin marks a memory as exempt from the forgetting policy.
func (s *Service) Pin(ctx context.Context, memoryID string) *toolerr.Error {
	return s.setPinned(ctx, memoryID, true, "pin")
}

// Unpin clears a memory's pinned exemption.
func (s *Service) Unpin(ctx context.Context, memoryID string) *toolerr.Error {
	return s.setPinned(ctx, memoryID, false, "unpin")
}

func (s *Service) setPinned(ctx context.Context, memoryID string, pinned bool, op string) *toolerr.Error {
	if memoryID == "" {
		return toolerr.Invalid("memory_id must not be empty")
	}
	if err := s.store.SetPinned(ctx, memoryID, pinned); err != nil {
		s.recordErr(op, observability.CategoryStorage, err)
		return toolerr.Translate(err, errorTable)
	}
	if s.metrics != nil {
		s.metrics.ToolCalls.WithLabelValues(op, "ok").Inc()
	}
	return nil
}

// ---------------------------------------------------------------------------
// forget
// ---------------------------------------------------------------------------

// ForgetInput is forget's validated request.
type ForgetInput struct {
	MemoryID string
	Hard     bool
}

// Forget soft- or hard-deletes a memory. Hard-deleting a pinned memory
// fails with InvalidInput — the caller must unpin it first.
func (s *Service) Forget(ctx context.Context, in ForgetInput) *toolerr.Error {
	if in.MemoryID == "" {
		return toolerr.Invalid("memory_id must not be empty")
	}

	var err error
	if in.Hard {
		err = s.store.HardDeleteMemory(ctx, in.MemoryID)
	} else {
		err = s.store.SoftDeleteMemory(ctx, in.MemoryID, time.Now().UTC())
	}
	if err != nil {
		s.recordErr("Forget", observability.CategoryStorage, err)
		return toolerr.Translate(err, errorTable)
	}
	if s.metrics != nil {
		s.metrics.ToolCalls.WithLabelValues("forget", "ok").Inc()
	}
	return nil
}

// ---------------------------------------------------------------------------
// cleanup_memory / forgetting_stats
// ---------------------------------------------------------------------------

// CleanupInput is cleanup_memory's validated request.
type CleanupInput struct {
	Kind   model.Kind
	DryRun bool
}

// CleanupResult reports the outcome of a cleanup pass.
type CleanupResult struct {
	Plan        *model.CleanupPlan
	SoftDeleted int
	HardDeleted int
	Reviewed    int
	DryRun      bool
}

// CleanupMemory computes a forgetting-policy plan and, unless dry_run is
// set, executes it. dry_run=true followed by dry_run=false on unchanged
// data yields plans with identical id sets — Plan is pure given the same
// store contents.
func (s *Service) CleanupMemory(ctx context.Context, in CleanupInput) (*CleanupResult, *toolerr.Error) {
	plan, err := s.forget.Plan(ctx, in.Kind)
	if err != nil {
		s.recordErr("CleanupMemory", observability.CategoryForgetting, err)
		return nil, toolerr.Translate(err, errorTable)
	}

	result := s.forget.Execute(ctx, plan, in.DryRun)
	if s.metrics != nil {
		s.metrics.ToolCalls.WithLabelValues("cleanup_memory", "ok").Inc()
		s.metrics.CleanupActions.WithLabelValues("soft").Add(float64(result.SoftDeleted))
		s.metrics.CleanupActions.WithLabelValues("hard").Add(float64(result.HardDeleted))
	}
	for _, execErr := range result.Errors {
		s.recordErr("CleanupMemory", observability.CategoryForgetting, execErr)
	}
	return &CleanupResult{
		Plan: plan, SoftDeleted: result.SoftDeleted, HardDeleted: result.HardDeleted,
		Reviewed: result.Reviewed, DryRun: in.DryRun,
	}, nil
}

// ForgettingStatsResult summarizes the current forgetting-policy plan
// across all kinds without executing it.
type ForgettingStatsResult struct {
	Soft      int
	Hard      int
	Review    int
	Total     int
	MeanScore float64
	ByKind    map[model.Kind]int
	Scores    map[string]float64
}

// ForgettingStats computes a plan across every kind and reports partition
// sizes, the candidate population, its mean forget score, and its
// distribution by kind, without deleting anything.
func (s *Service) ForgettingStats(ctx context.Context) (*ForgettingStatsResult, *toolerr.Error) {
	plan, err := s.forget.Plan(ctx, "")
	if err != nil {
		s.recordErr("ForgettingStats", observability.CategoryForgetting, err)
		return nil, toolerr.Translate(err, errorTable)
	}
	soft, hard, review := plan.Counts()
	return &ForgettingStatsResult{
		Soft: soft, Hard: hard, Review: review,
		Total: plan.Total, MeanScore: plan.MeanScore(), ByKind: plan.ByKind,
		Scores: plan.Scores,
	}, nil
}

// ---------------------------------------------------------------------------
// performance_stats / database_optimize
// ---------------------------------------------------------------------------

// PerformanceStatsResult reports counters gathered from the lower
// subsystems for administrative visibility.
type PerformanceStatsResult struct {
	CountByKind  map[model.Kind]int
	HybridStats  hybrid.Stats
	QueueDepth   int
	TaskCounters taskqueue.Counters
	RecentErrors []observability.Entry
}

// PerformanceStats gathers counters from storage, the hybrid engine, the
// task queue, and the error log for administrative visibility.
func (s *Service) PerformanceStats(ctx context.Context) (*PerformanceStatsResult, *toolerr.Error) {
	counts, err := s.store.CountByKind(ctx)
	if err != nil {
		s.recordErr("PerformanceStats", observability.CategoryStorage, err)
		return nil, toolerr.Translate(err, errorTable)
	}

	result := &PerformanceStatsResult{CountByKind: counts, HybridStats: s.hybrid.Stats()}
	if s.queue != nil {
		counters := s.queue.Counters()
		result.TaskCounters = counters
		result.QueueDepth = counters.Pending + counters.Processing
	}
	if s.errorLog != nil {
		result.RecentErrors = s.errorLog.Recent()
	}
	if s.metrics != nil {
		s.metrics.TaskQueueDepth.Set(float64(result.QueueDepth))
	}
	return result, nil
}

// DatabaseOptimize runs a WAL checkpoint against the store, reclaiming
// space and flushing the write-ahead log into the main database file.
func (s *Service) DatabaseOptimize(ctx context.Context) *toolerr.Error {
	if err := s.store.Checkpoint(ctx); err != nil {
		s.recordErr("DatabaseOptimize", observability.CategoryStorage, err)
		return toolerr.Translate(err, errorTable)
	}
	if s.metrics != nil {
		s.metrics.ToolCalls.WithLabelValues("database_optimize", "ok").Inc()
	}
	return nil
}

// Handlers returns the taskqueue.Handler map this service's queue should
// be constructed with, so embed_and_index tasks enqueued by Remember (or
// retried via Queue.Retry) resolve to the same embedding step.
func (s *Service) Handlers() map[string]taskqueue.Handler {
	return map[string]taskqueue.Handler{
		embedTaskType: func(ctx context.Context, task *taskqueue.Task) error {
			memoryID, ok := task.Payload.(string)
			if !ok {
				return fmt.Errorf("tool: embed_and_index: invalid payload type")
			}
			rowid, err := s.store.RowID(ctx, memoryID)
			if err != nil {
				return err
			}
			mem, err := s.store.GetMemory(ctx, memoryID)
			if err != nil {
				return err
			}
			if !s.embedAndIndex(ctx, memoryID, rowid, mem.Content) {
				return fmt.Errorf("tool: embed_and_index: embedding failed for %s", memoryID)
			}
			return nil
		},
	}
}
