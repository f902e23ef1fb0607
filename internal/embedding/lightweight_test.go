package embedding_test

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/echovault/internal/embedding"
)

func TestLightweight_Deterministic(t *testing.T) {
	c := qt.New(t)
	p := embedding.NewLightweight(64)

	v1, err := p.Embed(context.Background(), "hello world")
	c.Assert(err, qt.IsNil)
	v2, err := p.Embed(context.Background(), "hello world")
	c.Assert(err, qt.IsNil)
	c.Assert(v1, qt.DeepEquals, v2)
	c.Assert(v1, qt.HasLen, 64)
}

func TestLightweight_SharedVocabularyIsSimilar(t *testing.T) {
	c := qt.New(t)
	p := embedding.NewLightweight(64)
	ctx := context.Background()

	a, err := p.Embed(ctx, "deploy the service to production")
	c.Assert(err, qt.IsNil)
	b, err := p.Embed(ctx, "deploy the service to staging")
	c.Assert(err, qt.IsNil)
	unrelated, err := p.Embed(ctx, "bake a chocolate cake")
	c.Assert(err, qt.IsNil)

	c.Assert(dot(a, b) > dot(a, unrelated), qt.IsTrue)
}

func TestLightweight_EmptyTextIsZeroVector(t *testing.T) {
	c := qt.New(t)
	p := embedding.NewLightweight(8)
	v, err := p.Embed(context.Background(), "")
	c.Assert(err, qt.IsNil)
	for _, f := range v {
		c.Assert(f, qt.Equals, float32(0))
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
