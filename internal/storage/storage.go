// Package storage is the embedded relational store for memories,
// embeddings, links and feedback events. It wraps a single SQLite
// database file with FTS5 (full-text) and sqlite-vec (vector ANN)
// virtual tables kept in sync with the memories table via triggers.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver with database/sql
)

func init() { //nolint:gochecknoinits // registers sqlite-vec extension with go-sqlite3 before any connection opens
	vec.Auto()
}

// Store wraps a *sql.DB opened against a single SQLite file, with the
// schema and retry policy described in this package's doc comment.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the SQLite database at path and ensures the
// schema exists. The connection is opened with WAL journaling and foreign
// keys on.
func Open(path string) (*Store, error) {
	sqldb, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=2000")
	if err != nil {
		return nil, fmt.Errorf("storage.Open: %w", err)
	}
	s := &Store{db: sqldb, path: path}
	if err := s.createSchema(); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("storage.Open createSchema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Checkpoint runs a PRAGMA wal_checkpoint(TRUNCATE), used by the scheduler's
// built-in maintenance job to bound WAL file growth under write contention.
func (s *Store) Checkpoint(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

const schemaVersion = 1

func (s *Store) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			rowid            INTEGER PRIMARY KEY AUTOINCREMENT,
			id               TEXT UNIQUE NOT NULL,
			kind             TEXT NOT NULL,
			content          TEXT NOT NULL,
			importance       REAL NOT NULL DEFAULT 0.5,
			privacy          TEXT NOT NULL DEFAULT 'private',
			pinned           INTEGER NOT NULL DEFAULT 0,
			tags             TEXT NOT NULL DEFAULT '[]',
			source           TEXT NOT NULL DEFAULT '',
			created_at       TEXT NOT NULL,
			last_accessed_at TEXT NOT NULL,
			deleted_at       TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS memory_links (
			from_memory_id TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
			to_memory_id   TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
			kind           TEXT NOT NULL,
			PRIMARY KEY (from_memory_id, to_memory_id, kind)
		)`,
		`CREATE TABLE IF NOT EXISTS feedback_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			memory_id  TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
			kind       TEXT NOT NULL,
			score      REAL NOT NULL,
			ts         TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
			content, tags,
			content='memories', content_rowid='rowid',
			tokenize='porter unicode61'
		)`,
		`CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
			INSERT INTO memories_fts(rowid, content, tags)
			VALUES (new.rowid, new.content, new.tags);
		END`,
		`CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE ON memories BEGIN
			INSERT INTO memories_fts(memories_fts, rowid, content, tags)
			VALUES ('delete', old.rowid, old.content, old.tags);
			INSERT INTO memories_fts(rowid, content, tags)
			VALUES (new.rowid, new.content, new.tags);
		END`,
		`CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
			INSERT INTO memories_fts(memories_fts, rowid, content, tags)
			VALUES ('delete', old.rowid, old.content, old.tags);
		END`,
		`CREATE INDEX IF NOT EXISTS idx_memories_kind ON memories(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_pinned ON memories(pinned)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_last_accessed ON memories(last_accessed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_memory ON feedback_events(memory_id)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("createSchema exec: %w\nSQL: %s", err, stmt)
		}
	}

	if err := s.ensureSchemaVersion(); err != nil {
		return err
	}

	if dim, ok, err := s.EmbeddingDim(); err == nil && ok {
		if err := s.createVecTable(dim); err != nil {
			return fmt.Errorf("createSchema createVecTable: %w", err)
		}
	}
	return nil
}

func (s *Store) ensureSchemaVersion() error {
	val, ok, err := s.GetMeta("schema_version")
	if err != nil {
		return err
	}
	if !ok {
		return s.SetMeta("schema_version", strconv.Itoa(schemaVersion))
	}
	stored, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("ensureSchemaVersion: %w", err)
	}
	if stored > schemaVersion {
		return ErrSchemaTooNew
	}
	return nil
}

// ---------------------------------------------------------------------------
// Vector table
// ---------------------------------------------------------------------------

// EnsureVecTable creates the memories_vec table for the given embedding
// dimension if it does not yet exist, or returns ErrDimensionMismatch if a
// previously stored dimension differs.
func (s *Store) EnsureVecTable(dim int) error {
	stored, ok, err := s.EmbeddingDim()
	if err != nil {
		return err
	}
	if !ok {
		if err := s.SetEmbeddingDim(dim); err != nil {
			return err
		}
		return s.createVecTable(dim)
	}
	if stored != dim {
		return fmt.Errorf("%w: database has %d, provider returned %d", ErrDimensionMismatch, stored, dim)
	}
	return nil
}

func (s *Store) createVecTable(dim int) error {
	_, err := s.db.Exec(fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS memories_vec USING vec0(
			rowid INTEGER PRIMARY KEY,
			embedding float[%d]
		)`, dim,
	))
	return err
}

// HasVecTable reports whether the memories_vec virtual table exists yet
// (it is created lazily on the first embedding write).
func (s *Store) HasVecTable() (bool, error) {
	var name string
	err := s.db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type='table' AND name='memories_vec'`,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// EmbeddingDim reads the embedding dimension persisted in meta, if any.
func (s *Store) EmbeddingDim() (int, bool, error) {
	val, ok, err := s.GetMeta("embedding_dim")
	if !ok || err != nil {
		return 0, false, err
	}
	dim, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, err
	}
	return dim, true, nil
}

// SetEmbeddingDim persists the embedding dimension in meta.
func (s *Store) SetEmbeddingDim(dim int) error {
	return s.SetMeta("embedding_dim", strconv.Itoa(dim))
}

// ---------------------------------------------------------------------------
// Meta
// ---------------------------------------------------------------------------

// GetMeta returns the value for key, or ("", false, nil) if not set.
func (s *Store) GetMeta(key string) (string, bool, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetMeta upserts a key-value pair in the meta table.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	return err
}

// ---------------------------------------------------------------------------
// Transactions
// ---------------------------------------------------------------------------

// withTx runs fn inside a transaction retried under txRetryPolicy, committing
// on success and rolling back on any error (including one returned by fn).
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return withRetry(ctx, txRetryPolicy, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}
