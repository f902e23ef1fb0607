package storage

import "errors"

// Errors surfaced by the storage layer. Constraint violations become
// ErrInvalidInput, missing rows ErrNotFound, retry-exhausted contention
// ErrBusy. Callers (internal/tool) translate these into the client-facing
// error taxonomy.
var (
	ErrNotFound          = errors.New("storage: row not found")
	ErrInvalidInput      = errors.New("storage: invalid input")
	ErrBusy              = errors.New("storage: database busy after retries")
	ErrDimensionMismatch = errors.New("storage: embedding dimension mismatch")
	ErrSchemaTooNew      = errors.New("storage: database schema is newer than this build understands")
	ErrPinnedMustUnpin   = errors.New("storage: pinned memory must be unpinned before hard delete")
)
