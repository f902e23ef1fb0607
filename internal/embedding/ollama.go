package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Ollama calls a local Ollama server's /api/embeddings endpoint.
type Ollama struct {
	Model   string
	BaseURL string
	dim     int
	client  *http.Client
}

// NewOllama returns an Ollama provider. dim is the dimension the caller
// expects back (0 if unknown; the first Embed call's result is trusted).
func NewOllama(model, baseURL string, dim int) *Ollama {
	return &Ollama{
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		dim:     dim,
		client:  &http.Client{Timeout: 30 * time.Second, Transport: pooledTransport()},
	}
}

// Dim implements Provider.
func (o *Ollama) Dim() int { return o.dim }

// ModelLabel implements Provider.
func (o *Ollama) ModelLabel() string { return "ollama:" + o.Model }

// Embed calls POST /api/embeddings and returns the embedding vector.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]any{
		"model":  o.Model,
		"prompt": text,
	}
	var resp struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := doJSON(ctx, o.client, http.MethodPost, o.BaseURL+"/api/embeddings", nil, reqBody, &resp); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embed: empty embedding returned")
	}
	if o.dim == 0 {
		o.dim = len(resp.Embedding)
	}
	return resp.Embedding, nil
}

// EmbedBatch embeds each text sequentially; Ollama has no batch endpoint.
func (o *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := o.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		results[i] = v
	}
	return results, nil
}

// IsModelLoaded reports whether model is currently loaded in the Ollama
// server at baseURL, using a short timeout. Returns false on any error,
// used by the scheduler's healthcheck job to surface a warm-up alert
// rather than fail requests outright.
func IsModelLoaded(model, baseURL string) bool {
	client := &http.Client{Timeout: 500 * time.Millisecond}
	var resp struct {
		Models []struct {
			Name  string `json:"name"`
			Model string `json:"model"`
		} `json:"models"`
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := doJSON(ctx, client, http.MethodGet,
		strings.TrimRight(baseURL, "/")+"/api/ps",
		nil, nil, &resp,
	); err != nil {
		return false
	}

	target := normalizeModelName(model)
	for _, m := range resp.Models {
		n := m.Name
		if n == "" {
			n = m.Model
		}
		if normalizeModelName(n) == target {
			return true
		}
	}
	return false
}

// normalizeModelName strips the :tag suffix (e.g. "nomic-embed-text:latest").
func normalizeModelName(name string) string {
	if idx := strings.IndexByte(name, ':'); idx >= 0 {
		return name[:idx]
	}
	return name
}
