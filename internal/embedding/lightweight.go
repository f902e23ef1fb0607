package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Lightweight is a deterministic, dependency-free embedding provider used
// as the end of the fallback chain: it never fails and never calls out to
// a network. It hashes each token of the input into one of Dim() buckets
// (the hashing trick) and L2-normalizes the resulting term-frequency
// vector, giving texts that share vocabulary a nonzero cosine similarity
// without needing a trained model.
type Lightweight struct {
	dim int
}

const defaultLightweightDim = 512

// NewLightweight returns a Lightweight provider with the given dimension,
// defaulting to 512 if dim is 0.
func NewLightweight(dim int) *Lightweight {
	if dim <= 0 {
		dim = defaultLightweightDim
	}
	return &Lightweight{dim: dim}
}

// Dim implements Provider.
func (l *Lightweight) Dim() int { return l.dim }

// ModelLabel implements Provider.
func (l *Lightweight) ModelLabel() string { return "lightweight" }

// Embed implements Provider. It never returns an error.
func (l *Lightweight) Embed(_ context.Context, text string) ([]float32, error) {
	return l.embed(text), nil
}

// EmbedBatch implements Provider.
func (l *Lightweight) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = l.embed(t)
	}
	return out, nil
}

func (l *Lightweight) embed(text string) []float32 {
	vec := make([]float32, l.dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		bucket := int(h.Sum32() % uint32(l.dim))
		vec[bucket]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}
