package embedding_test

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/echovault/internal/embedding"
)

type countingProvider struct {
	calls int
	dim   int
}

func (p *countingProvider) Embed(_ context.Context, text string) ([]float32, error) {
	p.calls++
	return []float32{float32(len(text))}, nil
}

func (p *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *countingProvider) Dim() int          { return p.dim }
func (p *countingProvider) ModelLabel() string { return "counting" }

func TestCache_HitAvoidsSecondCall(t *testing.T) {
	c := qt.New(t)
	inner := &countingProvider{dim: 1}
	cache := embedding.NewCache(inner, 10)
	ctx := context.Background()

	_, err := cache.Embed(ctx, "hello")
	c.Assert(err, qt.IsNil)
	_, err = cache.Embed(ctx, "hello")
	c.Assert(err, qt.IsNil)

	c.Assert(inner.calls, qt.Equals, 1)
}

func TestCache_EmbedBatchOnlyCallsForMisses(t *testing.T) {
	c := qt.New(t)
	inner := &countingProvider{dim: 1}
	cache := embedding.NewCache(inner, 10)
	ctx := context.Background()

	_, err := cache.Embed(ctx, "a")
	c.Assert(err, qt.IsNil)

	out, err := cache.EmbedBatch(ctx, []string{"a", "b", "a"})
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.HasLen, 3)
	c.Assert(inner.calls, qt.Equals, 2) // 1 for "a" above, 1 for "b"
}
