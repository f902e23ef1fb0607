package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ports/echovault/internal/model"
)

// FTSHit is one row returned by FTSQuery: a memory plus its BM25-derived
// rank score (higher is better, after negation of SQLite's native rank).
type FTSHit struct {
	Memory *model.Memory
	Score  float64
}

// FTSQuery runs a BM25 full-text search over content and tags for query,
// returning up to limit hits ordered by descending score. It returns an
// empty slice for an empty query rather than matching everything.
func (s *Store) FTSQuery(ctx context.Context, query string, kind model.Kind, limit int) ([]FTSHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	terms := strings.Fields(query)
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"*`
	}
	ftsQuery := strings.Join(parts, " OR ")

	where := ""
	args := []any{ftsQuery}
	if kind != "" {
		where = " AND m.kind = ?"
		args = append(args, string(kind))
	}
	args = append(args, limit)

	q := `
		SELECT m.id, m.kind, m.content, m.importance, m.privacy, m.pinned, m.tags,
		       m.source, m.created_at, m.last_accessed_at, -fts.rank AS score
		FROM memories_fts fts
		JOIN memories m ON m.rowid = fts.rowid
		WHERE fts.memories_fts MATCH ? AND m.deleted_at IS NULL` + where + `
		ORDER BY fts.rank LIMIT ?` // #nosec G202 -- WHERE clause uses hardcoded column names only; values flow through ? bound parameters

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("FTSQuery: %w", err)
	}
	defer rows.Close()

	var hits []FTSHit
	for rows.Next() {
		mem, score, err := scanMemoryWithScore(rows)
		if err != nil {
			return nil, fmt.Errorf("FTSQuery: scan: %w", err)
		}
		hits = append(hits, FTSHit{Memory: mem, Score: score})
	}
	return hits, rows.Err()
}

// MemoriesByRowIDs fetches memories for a set of rowids, preserving the
// hit's distance/score by returning a parallel id->Memory map rather than
// an ordered slice; callers re-order using their own ranked list.
func (s *Store) MemoriesByRowIDs(ctx context.Context, rowids []int64) (map[int64]*model.Memory, error) {
	if len(rowids) == 0 {
		return map[int64]*model.Memory{}, nil
	}
	placeholders := make([]string, len(rowids))
	args := make([]any, len(rowids))
	for i, r := range rowids {
		placeholders[i] = "?"
		args[i] = r
	}
	q := fmt.Sprintf(`
		SELECT rowid, id, kind, content, importance, privacy, pinned, tags,
		       source, created_at, last_accessed_at
		FROM memories WHERE rowid IN (%s) AND deleted_at IS NULL`,
		strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("MemoriesByRowIDs: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]*model.Memory, len(rowids))
	for rows.Next() {
		var rowid int64
		mem, err := scanMemoryWithRowID(rows, &rowid)
		if err != nil {
			return nil, fmt.Errorf("MemoriesByRowIDs: scan: %w", err)
		}
		out[rowid] = mem
	}
	return out, rows.Err()
}

func scanMemoryWithScore(row rowScanner) (*model.Memory, float64, error) {
	var score float64
	mem, err := scanMemoryScanFunc(row, &score, nil)
	return mem, score, err
}

func scanMemoryWithRowID(row rowScanner, rowid *int64) (*model.Memory, error) {
	mem, _, err := scanMemoryScanFunc(row, nil, rowid)
	return mem, err
}

// scanMemoryScanFunc scans a row shaped either as (rowid?, memory columns...,
// score?) depending on which of rowid/score is non-nil, to avoid duplicating
// the column list across FTSQuery and MemoriesByRowIDs.
func scanMemoryScanFunc(row rowScanner, score *float64, rowid *int64) (*model.Memory, error) {
	var (
		mem            model.Memory
		kind, privacy  string
		pinned         int
		tagsJSON       string
		createdAt      string
		lastAccessedAt string
	)

	dest := make([]any, 0, 12)
	if rowid != nil {
		dest = append(dest, rowid)
	}
	dest = append(dest, &mem.ID, &kind, &mem.Content, &mem.Importance, &privacy,
		&pinned, &tagsJSON, &mem.Source, &createdAt, &lastAccessedAt)
	if score != nil {
		dest = append(dest, score)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	mem.Kind = model.Kind(kind)
	mem.Privacy = model.Privacy(privacy)
	mem.Pinned = pinned != 0
	if err := unmarshalTags(tagsJSON, &mem.Tags); err != nil {
		return nil, err
	}
	var err error
	mem.CreatedAt, mem.LastAccessedAt, err = parseMemoryTimes(createdAt, lastAccessedAt)
	return &mem, err
}
