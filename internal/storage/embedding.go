package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
)

// UpsertEmbedding stores or replaces the embedding vector for the memory
// with the given rowid. It creates the memories_vec table lazily on first
// use, sized to len(vector), and returns ErrDimensionMismatch if a
// previously stored dimension differs.
func (s *Store) UpsertEmbedding(ctx context.Context, rowid int64, vector []float32) error {
	if err := s.EnsureVecTable(len(vector)); err != nil {
		return err
	}
	return withRetry(ctx, readRetryPolicy, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO memories_vec (rowid, embedding) VALUES (?, ?)`,
			rowid, float32sToBytes(vector),
		)
		return err
	})
}

// VectorNeighbors returns the rowids and cosine distances of the k nearest
// neighbors to query, ordered by ascending distance. It returns an empty
// slice, not an error, if the vector table has not been created yet (no
// embeddings have ever been written).
func (s *Store) VectorNeighbors(ctx context.Context, query []float32, k int) ([]VectorHit, error) {
	ok, err := s.HasVecTable()
	if err != nil {
		return nil, fmt.Errorf("VectorNeighbors: %w", err)
	}
	if !ok {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT rowid, distance FROM memories_vec
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance`,
		float32sToBytes(query), k,
	)
	if err != nil {
		return nil, fmt.Errorf("VectorNeighbors: %w", err)
	}
	defer rows.Close()

	var hits []VectorHit
	for rows.Next() {
		var h VectorHit
		if err := rows.Scan(&h.RowID, &h.Distance); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// VectorHit is one result of a VectorNeighbors query.
type VectorHit struct {
	RowID    int64
	Distance float64
}

// DeleteEmbedding removes the vector row for rowid, if the table exists.
func (s *Store) DeleteEmbedding(ctx context.Context, rowid int64) error {
	ok, err := s.HasVecTable()
	if err != nil || !ok {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM memories_vec WHERE rowid = ?`, rowid)
	if err == sql.ErrNoRows {
		return nil
	}
	return err
}

// float32sToBytes encodes a []float32 as little-endian bytes, the wire
// format sqlite-vec expects for a MATCH query or vec0 column value.
func float32sToBytes(floats []float32) []byte {
	b := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}
