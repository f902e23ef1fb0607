// Package e2e_test — shared mock HTTP server helpers for embedding provider
// tests. These helpers let e2e tests exercise the full remember→embed→
// vector-index pipeline without calling real external APIs.
package e2e_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-ports/echovault/internal/config"
)

// fixedEmbeddingVec is the deterministic vector returned by every mock
// embedding server. Four dimensions keeps tests fast; production models use
// 384-3072.
var fixedEmbeddingVec = []float32{0.1, 0.2, 0.3, 0.4}

// embeddingCase describes one provider variant for table-driven embedding
// tests.
type embeddingCase struct {
	provider string
	startSrv func(tb testing.TB) *httptest.Server
}

// embeddingCases is the canonical table of provider variants shared across
// all e2e embedding tests.
var embeddingCases = []embeddingCase{
	{
		provider: "ollama",
		startSrv: func(tb testing.TB) *httptest.Server { return newOllamaMockServer(tb, "test-model") },
	},
	{
		provider: "openai",
		startSrv: func(tb testing.TB) *httptest.Server { return newOpenAIMockServer(tb) },
	},
	{
		provider: "openrouter",
		startSrv: func(tb testing.TB) *httptest.Server { return newOpenAIMockServer(tb) },
	},
}

// newOllamaMockServer starts a test HTTP server that mimics the Ollama
// embedding API. It responds to POST /api/embeddings with fixedEmbeddingVec
// for every request. Cleanup is registered on tb automatically.
func newOllamaMockServer(tb testing.TB, model string) *httptest.Server {
	tb.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/ps", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{{"name": model, "model": model}},
		})
	})
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": fixedEmbeddingVec})
	})

	srv := httptest.NewServer(mux)
	tb.Cleanup(srv.Close)
	return srv
}

// newOpenAIMockServer starts a test HTTP server that mimics the OpenAI
// embeddings API (POST /embeddings). It builds a correctly-indexed data entry
// for every input text in the request body, returning fixedEmbeddingVec for
// each. The same server covers openrouter, which uses the identical wire
// format.
func newOpenAIMockServer(tb testing.TB) *httptest.Server {
	tb.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}

		data := make([]map[string]any, len(reqBody.Input))
		for i := range reqBody.Input {
			data[i] = map[string]any{"index": i, "embedding": fixedEmbeddingVec}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	tb.Cleanup(srv.Close)
	return srv
}

// embeddingConfig builds the EmbeddingConfig for provider pointed at baseURL,
// with a dimension matching fixedEmbeddingVec.
func embeddingConfig(provider, baseURL string) config.EmbeddingConfig {
	return config.EmbeddingConfig{
		Provider:  provider,
		Model:     "test-model",
		BaseURL:   baseURL,
		Dimension: len(fixedEmbeddingVec),
	}
}
