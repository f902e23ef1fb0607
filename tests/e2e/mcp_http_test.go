// Package e2e_test — end-to-end tests over the real streamable-HTTP MCP
// transport. Each test spins up a store-backed tool.Service, wraps it in
// internal/mcpserver's HTTP handler behind an httptest.Server, and dials it
// with mark3labs/mcp-go's client transport, exactly as memoryd and memctl do
// in production. No binary needs to be compiled; the full stack (tool →
// storage/hybrid/forgetting → mcpserver → mcp-go HTTP server → streamable
// HTTP client) is exercised within a single test process.
package e2e_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/go-ports/echovault/internal/embedding"
	"github.com/go-ports/echovault/internal/mcpserver"
	"github.com/go-ports/echovault/internal/storage"
	"github.com/go-ports/echovault/internal/tool"
)

// newHTTPServer wires a fresh store and tool.Service, rooted at a temp-dir
// SQLite database, behind the real streamable-HTTP MCP transport. provider
// may be nil, in which case remember still succeeds but never indexes a
// vector embedding.
func newHTTPServer(c *qt.C, provider embedding.Provider) *httptest.Server {
	c.TB.Helper()

	store, err := storage.Open(filepath.Join(c.TB.TempDir(), "test.db"))
	c.Assert(err, qt.IsNil)
	c.TB.Cleanup(func() { _ = store.Close() })

	svc := tool.New(store, provider, nil, nil, nil)
	handler := mcpserver.NewHTTPHandler(mcpserver.NewServer(svc))

	srv := httptest.NewServer(handler)
	c.TB.Cleanup(srv.Close)
	return srv
}

// dialHTTP connects a streamable-HTTP MCP client to addr and completes the
// initialize handshake, mirroring memctl's dial.
func dialHTTP(c *qt.C, addr string) *mcpclient.Client {
	c.TB.Helper()

	t, err := transport.NewStreamableHTTP(addr)
	c.Assert(err, qt.IsNil)

	cl := mcpclient.NewClient(t)
	c.TB.Cleanup(cl.Close)
	c.Assert(cl.Start(context.Background()), qt.IsNil)

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "e2e-test", Version: "0.0.1"}
	_, err = cl.Initialize(context.Background(), initReq)
	c.Assert(err, qt.IsNil)

	return cl
}

// callTool invokes the named MCP tool over cl and returns the text of the
// first content item. Errors are surfaced as immediate assertion failures.
func callTool(c *qt.C, cl *mcpclient.Client, name string, args map[string]any) string {
	c.TB.Helper()

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := cl.CallTool(context.Background(), req)
	c.Assert(err, qt.IsNil)
	c.Assert(result.IsError, qt.IsFalse, qt.Commentf("tool error: %v", result.Content))

	var text string
	for _, content := range result.Content {
		if tc, ok := mcp.AsTextContent(content); ok {
			text += tc.Text
		}
	}
	return text
}

func TestRememberRecall_OverRealHTTPTransport(t *testing.T) {
	c := qt.New(t)
	srv := newHTTPServer(c, nil)
	cl := dialHTTP(c, srv.URL)

	rememberOut := callTool(c, cl, "remember", map[string]any{
		"content": "the deploy pipeline runs on Fridays now",
		"kind":    "episodic",
	})
	var remembered struct {
		MemoryID string `json:"memory_id"`
	}
	c.Assert(json.Unmarshal([]byte(rememberOut), &remembered), qt.IsNil)
	c.Assert(remembered.MemoryID, qt.Not(qt.Equals), "")

	recallOut := callTool(c, cl, "recall", map[string]any{"query": "deploy pipeline"})
	var recalled struct {
		Results []struct {
			MemoryID string `json:"memory_id"`
		} `json:"results"`
	}
	c.Assert(json.Unmarshal([]byte(recallOut), &recalled), qt.IsNil)
	c.Assert(recalled.Results, qt.Not(qt.HasLen), 0)
	c.Assert(recalled.Results[0].MemoryID, qt.Equals, remembered.MemoryID)
}

func TestPinForget_OverRealHTTPTransport(t *testing.T) {
	c := qt.New(t)
	srv := newHTTPServer(c, nil)
	cl := dialHTTP(c, srv.URL)

	rememberOut := callTool(c, cl, "remember", map[string]any{
		"content": "never auto-forget this", "kind": "semantic",
	})
	var remembered struct {
		MemoryID string `json:"memory_id"`
	}
	c.Assert(json.Unmarshal([]byte(rememberOut), &remembered), qt.IsNil)

	callTool(c, cl, "pin", map[string]any{"memory_id": remembered.MemoryID})

	req := mcp.CallToolRequest{}
	req.Params.Name = "forget"
	req.Params.Arguments = map[string]any{"memory_id": remembered.MemoryID, "hard": true}
	result, err := cl.CallTool(context.Background(), req)
	c.Assert(err, qt.IsNil)
	c.Assert(result.IsError, qt.IsTrue)

	callTool(c, cl, "unpin", map[string]any{"memory_id": remembered.MemoryID})
	callTool(c, cl, "forget", map[string]any{"memory_id": remembered.MemoryID, "hard": true})
}

// TestRememberWithEmbedding_HappyPath exercises the full
// remember→embed→vector-index path against each configured embedding
// provider, backed by a mock HTTP server standing in for the real API.
func TestRememberWithEmbedding_HappyPath(t *testing.T) {
	c := qt.New(t)

	for _, tc := range embeddingCases {
		c.Run(tc.provider, func(c *qt.C) {
			mockSrv := tc.startSrv(c.TB)
			provider, err := embedding.New(embeddingConfig(tc.provider, mockSrv.URL))
			c.Assert(err, qt.IsNil)

			srv := newHTTPServer(c, provider)
			cl := dialHTTP(c, srv.URL)

			rememberOut := callTool(c, cl, "remember", map[string]any{
				"content": "embedding pipeline integration test for " + tc.provider,
				"kind":    "episodic",
			})
			var remembered struct {
				MemoryID         string `json:"memory_id"`
				EmbeddingCreated bool   `json:"embedding_created"`
			}
			c.Assert(json.Unmarshal([]byte(rememberOut), &remembered), qt.IsNil)
			c.Assert(remembered.EmbeddingCreated, qt.IsTrue)
		})
	}
}
