package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ports/echovault/internal/model"
)

// AppendFeedback records a feedback event. The feedback log is append-only;
// there is no update or delete path, so the forgetting policy engine always
// sees the full usage history of a memory.
func (s *Store) AppendFeedback(ctx context.Context, ev model.FeedbackEvent) error {
	return withRetry(ctx, readRetryPolicy, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO feedback_events (memory_id, kind, score, ts) VALUES (?, ?, ?, ?)`,
			ev.MemoryID, string(ev.Kind), ev.Score, ev.Timestamp.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
}

// ListFeedback returns every feedback event recorded for memoryID, oldest
// first.
func (s *Store) ListFeedback(ctx context.Context, memoryID string) ([]model.FeedbackEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT memory_id, kind, score, ts FROM feedback_events
		WHERE memory_id = ? ORDER BY ts ASC`, memoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListFeedback: %w", err)
	}
	defer rows.Close()

	var out []model.FeedbackEvent
	for rows.Next() {
		var ev model.FeedbackEvent
		var kind, ts string
		if err := rows.Scan(&ev.MemoryID, &kind, &ev.Score, &ts); err != nil {
			return nil, err
		}
		ev.Kind = model.FeedbackEventKind(kind)
		ev.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("ListFeedback: parse ts: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CountFeedback returns the number of feedback events for memoryID, used by
// the forgetting engine's usage_factor term without materializing the
// whole history.
func (s *Store) CountFeedback(ctx context.Context, memoryID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feedback_events WHERE memory_id = ?`, memoryID,
	).Scan(&n)
	return n, err
}
