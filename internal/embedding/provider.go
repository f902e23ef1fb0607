// Package embedding provides the Provider abstraction used to turn memory
// content into vectors for the store's ANN index, plus the caching,
// fallback and circuit-breaker machinery wrapped around a configured
// primary provider.
package embedding

import (
	"context"
	"fmt"

	"github.com/go-ports/echovault/internal/config"
)

// Provider embeds text. Dim reports the fixed dimensionality of vectors it
// returns, queried once at startup to size the vector index; ModelLabel
// identifies the provider/model pair for the stats surface.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dim() int
	ModelLabel() string
}

// New constructs the configured primary provider, wrapped in an LRU cache
// and a circuit-breaker-guarded fallback chain ending at the deterministic
// lightweight provider (which never fails). The lightweight provider alone
// is returned when cfg selects no remote provider.
func New(cfg config.EmbeddingConfig) (Provider, error) {
	primary, err := newRemoteProvider(cfg)
	if err != nil {
		return nil, err
	}
	fallback := NewLightweight(cfg.Dimension)
	if primary == nil {
		return fallback, nil
	}

	cached := NewCache(primary, cacheSize(cfg))
	return NewFallbackChain(cached, fallback), nil
}

func cacheSize(cfg config.EmbeddingConfig) int {
	if cfg.CacheSize > 0 {
		return cfg.CacheSize
	}
	return 1024
}

func newRemoteProvider(cfg config.EmbeddingConfig) (Provider, error) {
	switch cfg.Provider {
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return NewOllama(cfg.Model, baseURL, cfg.Dimension), nil

	case "openai":
		return NewOpenAI(cfg.Model, cfg.APIKey, cfg.BaseURL, cfg.Dimension), nil

	case "openrouter":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://openrouter.ai/api/v1"
		}
		return NewOpenAI(cfg.Model, cfg.APIKey, baseURL, cfg.Dimension), nil

	case "", "none":
		return nil, nil

	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", cfg.Provider)
	}
}
