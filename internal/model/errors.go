package model

import "errors"

// Validation errors surfaced by Memory.Validate and related constructors.
// The tool layer (internal/tool/toolerr) translates these into the
// client-facing error taxonomy; internal packages pass them through
// unchanged via errors.Is.
var (
	ErrEmptyContent       = errors.New("model: content must not be empty")
	ErrImportanceRange    = errors.New("model: importance must be in [0,1]")
	ErrAccessBeforeCreate = errors.New("model: last_accessed_at precedes created_at")
	ErrInvalidKind        = errors.New("model: unrecognised memory kind")
	ErrInvalidPrivacy     = errors.New("model: unrecognised privacy scope")
)
