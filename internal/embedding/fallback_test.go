package embedding_test

import (
	"context"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/echovault/internal/embedding"
)

type failingProvider struct{ dim int }

func (p *failingProvider) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("boom")
}

func (p *failingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("boom")
}

func (p *failingProvider) Dim() int          { return p.dim }
func (p *failingProvider) ModelLabel() string { return "failing" }

func TestFallbackChain_FallsBackOnPrimaryError(t *testing.T) {
	c := qt.New(t)
	chain := embedding.NewFallbackChain(&failingProvider{dim: 4}, embedding.NewLightweight(4))

	vec, err := chain.Embed(context.Background(), "hello")
	c.Assert(err, qt.IsNil)
	c.Assert(vec, qt.HasLen, 4)
}

func TestFallbackChain_TripsBreakerAfterRepeatedFailures(t *testing.T) {
	c := qt.New(t)
	chain := embedding.NewFallbackChain(&failingProvider{dim: 4}, embedding.NewLightweight(4))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := chain.Embed(ctx, "hello")
		c.Assert(err, qt.IsNil) // fallback always absorbs the error
	}
}
