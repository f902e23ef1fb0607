package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-ports/echovault/internal/model"
)

// Filter narrows ListMemories and the search layer's candidate set. Zero
// values mean "no constraint" except Limit, which the caller must set.
type Filter struct {
	Kind           model.Kind
	Tag            string
	Privacy        model.Privacy
	IncludeDeleted bool
	Limit          int
}

// InsertMemory inserts mem and returns the SQLite rowid backing it (needed
// to key the memories_vec table, which is indexed by rowid rather than id).
func (s *Store) InsertMemory(ctx context.Context, mem *model.Memory) (int64, error) {
	tagsJSON, err := json.Marshal(mem.Tags)
	if err != nil {
		return 0, fmt.Errorf("InsertMemory: marshal tags: %w", err)
	}

	var rowid int64
	err = withRetry(ctx, txRetryPolicy, func() error {
		res, execErr := s.db.ExecContext(ctx, `
			INSERT INTO memories (
				id, kind, content, importance, privacy, pinned, tags, source,
				created_at, last_accessed_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			mem.ID, string(mem.Kind), mem.Content, mem.Importance, string(mem.Privacy),
			boolToInt(mem.Pinned), string(tagsJSON), mem.Source,
			mem.CreatedAt.UTC().Format(time.RFC3339Nano), mem.LastAccessedAt.UTC().Format(time.RFC3339Nano),
		)
		if execErr != nil {
			return execErr
		}
		rowid, execErr = res.LastInsertId()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("InsertMemory: %w", err)
	}
	return rowid, nil
}

// GetMemory fetches a single memory by exact id. It returns ErrNotFound if
// no row matches, including soft-deleted rows.
func (s *Store) GetMemory(ctx context.Context, id string) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, content, importance, privacy, pinned, tags, source,
		       created_at, last_accessed_at, deleted_at
		FROM memories WHERE id = ? AND deleted_at IS NULL`, id)
	mem, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetMemory: %w", err)
	}
	return mem, nil
}

// RowID returns the SQLite rowid for a memory id, used to key the vector
// table. Returns ErrNotFound if the memory does not exist.
func (s *Store) RowID(ctx context.Context, id string) (int64, error) {
	var rowid int64
	err := s.db.QueryRowContext(ctx, `SELECT rowid FROM memories WHERE id = ?`, id).Scan(&rowid)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return rowid, err
}

// TouchAccessed updates last_accessed_at to now for the given memory id.
func (s *Store) TouchAccessed(ctx context.Context, id string, now time.Time) error {
	return withRetry(ctx, readRetryPolicy, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE memories SET last_accessed_at = ? WHERE id = ? AND deleted_at IS NULL`,
			now.UTC().Format(time.RFC3339Nano), id,
		)
		if err != nil {
			return err
		}
		return rowsAffectedOrNotFound(res)
	})
}

// SetPinned sets the pinned flag for the given memory id.
func (s *Store) SetPinned(ctx context.Context, id string, pinned bool) error {
	return withRetry(ctx, readRetryPolicy, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE memories SET pinned = ? WHERE id = ? AND deleted_at IS NULL`,
			boolToInt(pinned), id,
		)
		if err != nil {
			return err
		}
		return rowsAffectedOrNotFound(res)
	})
}

// SoftDeleteMemory marks a memory as deleted without removing its row,
// keeping it out of recall and listing results while leaving it scorable:
// it clears the pinned flag, appends a neglected feedback event, and
// remains visible to the forgetting engine (via Filter.IncludeDeleted) so a
// subsequent cleanup pass can still hard-delete it once its forget score
// crosses the hard threshold. Link history is left intact for audit.
func (s *Store) SoftDeleteMemory(ctx context.Context, id string, now time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`UPDATE memories SET deleted_at = ?, pinned = 0 WHERE id = ? AND deleted_at IS NULL`,
			now.UTC().Format(time.RFC3339Nano), id,
		)
		if err != nil {
			return err
		}
		if err := rowsAffectedOrNotFound(res); err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO feedback_events (memory_id, kind, score, ts) VALUES (?, ?, ?, ?)`,
			id, string(model.FeedbackNeglected), 0, now.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
}

// HardDeleteMemory permanently removes a memory row along with its FTS and
// vector index entries, its links and its feedback history. Pinned memories
// must be unpinned first; ErrPinnedMustUnpin is returned otherwise.
func (s *Store) HardDeleteMemory(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var pinned int
		var rowid int64
		err := tx.QueryRow(`SELECT pinned, rowid FROM memories WHERE id = ?`, id).Scan(&pinned, &rowid)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if pinned != 0 {
			return ErrPinnedMustUnpin
		}

		if _, err := tx.Exec(`DELETE FROM memory_links WHERE from_memory_id = ? OR to_memory_id = ?`, id, id); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM feedback_events WHERE memory_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM memories_vec WHERE rowid = ?`, rowid); err != nil {
			// memories_vec may not exist yet; non-fatal.
			_ = err
		}
		if _, err := tx.Exec(`DELETE FROM memories WHERE id = ?`, id); err != nil {
			return err
		}
		return nil
	})
}

// ListMemories returns memories matching f, most recently created first.
func (s *Store) ListMemories(ctx context.Context, f Filter) ([]*model.Memory, error) {
	where := "WHERE 1=1"
	var args []any
	if !f.IncludeDeleted {
		where += " AND deleted_at IS NULL"
	}
	if f.Kind != "" {
		where += " AND kind = ?"
		args = append(args, string(f.Kind))
	}
	if f.Privacy != "" {
		where += " AND privacy = ?"
		args = append(args, string(f.Privacy))
	}
	if f.Tag != "" {
		where += " AND EXISTS (SELECT 1 FROM json_each(tags) je WHERE je.value = ?)"
		args = append(args, f.Tag)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	q := `
		SELECT id, kind, content, importance, privacy, pinned, tags, source,
		       created_at, last_accessed_at, deleted_at
		FROM memories ` + where + ` ORDER BY created_at DESC LIMIT ?` // #nosec G202 -- WHERE clause uses hardcoded column names only; values flow through ? bound parameters

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ListMemories: %w", err)
	}
	defer rows.Close()

	var out []*model.Memory
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("ListMemories: scan: %w", err)
		}
		out = append(out, mem)
	}
	return out, rows.Err()
}

// CountByKind returns the number of non-deleted memories per kind, used by
// performance_stats and forgetting_stats.
func (s *Store) CountByKind(ctx context.Context) (map[model.Kind]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM memories WHERE deleted_at IS NULL GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("CountByKind: %w", err)
	}
	defer rows.Close()

	out := make(map[model.Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[model.Kind(kind)] = n
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// scanning helpers
// ---------------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*model.Memory, error) {
	var (
		mem            model.Memory
		kind, privacy  string
		pinned         int
		tagsJSON       string
		createdAt      string
		lastAccessedAt string
		deletedAt      sql.NullString
	)
	if err := row.Scan(&mem.ID, &kind, &mem.Content, &mem.Importance, &privacy,
		&pinned, &tagsJSON, &mem.Source, &createdAt, &lastAccessedAt, &deletedAt); err != nil {
		return nil, err
	}
	mem.Kind = model.Kind(kind)
	mem.Privacy = model.Privacy(privacy)
	mem.Pinned = pinned != 0
	mem.Deleted = deletedAt.Valid
	if err := unmarshalTags(tagsJSON, &mem.Tags); err != nil {
		return nil, err
	}
	var err error
	mem.CreatedAt, mem.LastAccessedAt, err = parseMemoryTimes(createdAt, lastAccessedAt)
	return &mem, err
}

func unmarshalTags(tagsJSON string, tags *[]string) error {
	if err := json.Unmarshal([]byte(tagsJSON), tags); err != nil {
		return fmt.Errorf("unmarshal tags: %w", err)
	}
	return nil
}

func parseMemoryTimes(createdAt, lastAccessedAt string) (time.Time, time.Time, error) {
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse created_at: %w", err)
	}
	accessed, err := time.Parse(time.RFC3339Nano, lastAccessedAt)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse last_accessed_at: %w", err)
	}
	return created, accessed, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func rowsAffectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
