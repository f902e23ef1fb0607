package model

import "time"

// Embedding is one-to-one with a Memory when the embedding provider
// successfully produced a vector for it. A Memory may exist without one
// (provider unavailable); retrieval then degrades to text-only.
type Embedding struct {
	MemoryID   string
	Vector     []float32
	Dim        int
	ModelLabel string
	CreatedAt  time.Time
}

// Dimension returns len(Vector), recorded separately on the struct so callers
// can distinguish "no embedding" (Dim == 0, Vector == nil) from a stored row.
func (e Embedding) Dimension() int {
	return len(e.Vector)
}
