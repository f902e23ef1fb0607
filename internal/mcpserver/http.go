package mcpserver

import (
	mcpserverpkg "github.com/mark3labs/mcp-go/server"
)

// NewHTTPHandler wraps srv in the library's own streamable-HTTP transport,
// for the store's optional --listen endpoint alongside (or instead of)
// stdio. The returned server is an http.Handler; memctl dials it with the
// matching client-side transport (mark3labs/mcp-go/client/transport).
func NewHTTPHandler(srv *mcpserverpkg.MCPServer) *mcpserverpkg.StreamableHTTPServer {
	return mcpserverpkg.NewStreamableHTTPServer(srv)
}
