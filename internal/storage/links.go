package storage

import (
	"context"
	"fmt"

	"github.com/go-ports/echovault/internal/model"
)

// AddLink records a directed relationship between two memories. It is
// idempotent: re-adding the same (from, to, kind) triple is a no-op.
func (s *Store) AddLink(ctx context.Context, link model.Link) error {
	return withRetry(ctx, readRetryPolicy, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO memory_links (from_memory_id, to_memory_id, kind) VALUES (?, ?, ?)`,
			link.FromMemoryID, link.ToMemoryID, string(link.Kind),
		)
		return err
	})
}

// RemoveLink deletes a specific link triple, if present.
func (s *Store) RemoveLink(ctx context.Context, link model.Link) error {
	return withRetry(ctx, readRetryPolicy, func() error {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM memory_links WHERE from_memory_id = ? AND to_memory_id = ? AND kind = ?`,
			link.FromMemoryID, link.ToMemoryID, string(link.Kind),
		)
		return err
	})
}

// ListLinks returns every link where memoryID appears as either endpoint.
func (s *Store) ListLinks(ctx context.Context, memoryID string) ([]model.Link, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_memory_id, to_memory_id, kind FROM memory_links
		WHERE from_memory_id = ? OR to_memory_id = ?`,
		memoryID, memoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListLinks: %w", err)
	}
	defer rows.Close()

	var out []model.Link
	for rows.Next() {
		var l model.Link
		var kind string
		if err := rows.Scan(&l.FromMemoryID, &l.ToMemoryID, &kind); err != nil {
			return nil, err
		}
		l.Kind = model.LinkKind(kind)
		out = append(out, l)
	}
	return out, rows.Err()
}
