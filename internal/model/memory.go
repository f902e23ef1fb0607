// Package model defines the core data types shared by every component of
// the memory store: the Memory record itself, its embedding, links between
// memories, feedback events, and the transient cleanup plan produced by the
// forgetting policy engine.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the taxonomic class of a memory. It governs the default TTL and
// forget-score weights applied by the forgetting policy engine.
type Kind string

// The four recognised memory kinds.
const (
	KindWorking    Kind = "working"
	KindEpisodic   Kind = "episodic"
	KindSemantic   Kind = "semantic"
	KindProcedural Kind = "procedural"
)

// Valid reports whether k is one of the four recognised kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindWorking, KindEpisodic, KindSemantic, KindProcedural:
		return true
	}
	return false
}

// Privacy is the coarse privacy-scope tag carried by a memory.
type Privacy string

// Recognised privacy scopes.
const (
	PrivacyPrivate Privacy = "private"
	PrivacyTeam    Privacy = "team"
	PrivacyPublic  Privacy = "public"
)

// Valid reports whether p is one of the three recognised scopes.
func (p Privacy) Valid() bool {
	switch p {
	case PrivacyPrivate, PrivacyTeam, PrivacyPublic:
		return true
	}
	return false
}

// Memory is the central entity of the store: a single piece of free text
// with typed metadata, the unit of both storage and retrieval.
type Memory struct {
	ID             string
	Kind           Kind
	Content        string
	Importance     float64
	Privacy        Privacy
	Pinned         bool
	CreatedAt      time.Time
	LastAccessedAt time.Time
	Tags           []string
	Source         string
	Deleted        bool
}

// NewID generates a fresh opaque memory identifier.
func NewID() string {
	return uuid.NewString()
}

// Validate checks the invariants a Memory must satisfy: importance in
// [0,1], created_at no later than last_accessed_at when the latter is
// set, and non-empty content.
func (m *Memory) Validate() error {
	if m.Content == "" {
		return ErrEmptyContent
	}
	if m.Importance < 0 || m.Importance > 1 {
		return ErrImportanceRange
	}
	if !m.LastAccessedAt.IsZero() && m.CreatedAt.After(m.LastAccessedAt) {
		return ErrAccessBeforeCreate
	}
	return nil
}

// TouchAccessed returns a copy of the memory with LastAccessedAt bumped to
// now, never moving it earlier than CreatedAt.
func (m Memory) TouchAccessed(now time.Time) Memory {
	if now.Before(m.CreatedAt) {
		now = m.CreatedAt
	}
	m.LastAccessedAt = now
	return m
}
