package embedding

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Circuit breaker defaults for the primary embedding provider. After
// maxFailures consecutive failures the breaker opens and every call falls
// straight through to the fallback provider without reaching the network,
// until timeout elapses and a single probe request is allowed through.
const (
	maxFailures     uint32        = 5
	breakerTimeout  time.Duration = 30 * time.Second
	breakerInterval time.Duration = 60 * time.Second
)

// FallbackChain wraps a primary Provider with a circuit breaker and falls
// back to a secondary provider (expected to be Lightweight, which never
// fails) whenever the breaker is open or the primary call itself errors.
type FallbackChain struct {
	primary  Provider
	fallback Provider
	breaker  *gobreaker.CircuitBreaker[[]float32]
}

// NewFallbackChain wraps primary with a circuit breaker, falling back to
// fallback on trip or per-call failure.
func NewFallbackChain(primary, fallback Provider) *FallbackChain {
	cb := gobreaker.NewCircuitBreaker[[]float32](gobreaker.Settings{
		Name:        "embedding:" + primary.ModelLabel(),
		MaxRequests: 1,
		Interval:    breakerInterval,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("embedding circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &FallbackChain{primary: primary, fallback: fallback, breaker: cb}
}

// Dim implements Provider, reporting the fallback's dimension: the
// fallback always succeeds, so it is what callers actually receive once
// the breaker trips.
func (f *FallbackChain) Dim() int { return f.fallback.Dim() }

// ModelLabel implements Provider.
func (f *FallbackChain) ModelLabel() string { return f.primary.ModelLabel() + "+fallback" }

// Embed tries primary through the circuit breaker, falling back to the
// secondary provider on any error (open breaker, timeout, network error).
func (f *FallbackChain) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := f.breaker.Execute(func() ([]float32, error) {
		return f.primary.Embed(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			slog.Debug("embedding breaker open, using fallback provider")
		} else {
			slog.Warn("primary embedding provider failed, using fallback", "err", err)
		}
		return f.fallback.Embed(ctx, text)
	}
	return vec, nil
}

// EmbedBatch embeds each text through Embed, so a partial primary failure
// mid-batch degrades those texts to the fallback rather than failing the
// whole batch.
func (f *FallbackChain) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
