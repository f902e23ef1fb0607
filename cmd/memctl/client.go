package main

import (
	"context"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// dial opens a streamable-HTTP MCP connection to addr and completes the
// protocol handshake. Mirrors the connectServer/Initialize pattern other
// MCP-bridging clients in the ecosystem use for the "http" transport case.
func dial(ctx context.Context, addr string) (*mcpclient.Client, error) {
	t, err := transport.NewStreamableHTTP(addr)
	if err != nil {
		return nil, fmt.Errorf("memctl: create http transport: %w", err)
	}
	cl := mcpclient.NewClient(t)
	if err := cl.Start(ctx); err != nil {
		return nil, fmt.Errorf("memctl: start client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "memctl", Version: "1.0.0"}
	if _, err := cl.Initialize(ctx, initReq); err != nil {
		cl.Close()
		return nil, fmt.Errorf("memctl: initialize: %w", err)
	}
	return cl, nil
}

// callTool dials addr, invokes the named tool with args, and returns the
// concatenated text content of the result. A tool-level error (the
// {"code", "message"} body produced by internal/mcpserver.errorResult)
// surfaces as a returned error rather than a printed result.
func callTool(ctx context.Context, addr, name string, args map[string]any) (string, error) {
	cl, err := dial(ctx, addr)
	if err != nil {
		return "", err
	}
	defer cl.Close()

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := cl.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("memctl: call %s: %w", name, err)
	}

	var text string
	for _, c := range result.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			text += tc.Text
		}
	}
	if result.IsError {
		return "", fmt.Errorf("memctl: %s: %s", name, text)
	}
	return text, nil
}
