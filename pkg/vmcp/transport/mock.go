// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"sync"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MockBackend is an in-process MCP server used by tests and by local
// demos/sandboxes that declare TransportMock in ServerConfig: an
// explicit, named choice, never an implicit fallback when a real
// transport can't be reached. It serves canned tool and resource lists
// through a real server.MCPServer, so the SDK client connected to it
// exercises the same handshake, listing, and call paths as a live
// backend.
type MockBackend struct {
	mu        sync.Mutex
	tools     []mcp.Tool
	resources []MockResource
	respond   func(name string, args map[string]any) (*mcp.CallToolResult, error)
	srv       *server.MCPServer
}

// MockResource is one canned resource the mock backend serves.
type MockResource struct {
	URI      string
	Name     string
	MIMEType string
	Text     string
}

// NewMockBackend returns a backend with no canned tools or resources;
// populate it with SetTools/SetResources/SetRespond before Client.
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

// SetTools replaces the canned tool list. Only clients created after the
// call observe the new set; use AddTool to mutate a live server.
func (b *MockBackend) SetTools(tools []mcp.Tool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tools = tools
}

// SetResources replaces the canned resource list.
func (b *MockBackend) SetResources(resources []MockResource) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resources = resources
}

// SetRespond overrides the default tools/call behavior (echoing the
// arguments back as text).
func (b *MockBackend) SetRespond(fn func(name string, args map[string]any) (*mcp.CallToolResult, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.respond = fn
}

// AddTool registers one more tool on both the canned list and the live
// server, if one is connected. The server broadcasts
// notifications/tools/list_changed to connected clients.
func (b *MockBackend) AddTool(tool mcp.Tool) {
	b.mu.Lock()
	b.tools = append(b.tools, tool)
	srv := b.srv
	b.mu.Unlock()
	if srv != nil {
		srv.AddTool(tool, b.toolHandler(tool.Name))
		srv.SendNotificationToAllClients("notifications/tools/list_changed", nil)
	}
}

// Client builds a fresh in-process MCP server from the current canned
// state and returns an SDK client connected to it. Each call models one
// (re)connection to the backend.
func (b *MockBackend) Client() (*mcpclient.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	srv := server.NewMCPServer("mock-backend", "0.0.1",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
	)
	for _, tool := range b.tools {
		srv.AddTool(tool, b.toolHandler(tool.Name))
	}
	for _, res := range b.resources {
		res := res
		srv.AddResource(
			mcp.NewResource(res.URI, res.Name, mcp.WithMIMEType(res.MIMEType)),
			func(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
				return []mcp.ResourceContents{
					mcp.TextResourceContents{URI: res.URI, MIMEType: res.MIMEType, Text: res.Text},
				}, nil
			},
		)
	}
	b.srv = srv
	return mcpclient.NewInProcessClient(srv)
}

func (b *MockBackend) toolHandler(name string) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		b.mu.Lock()
		respond := b.respond
		b.mu.Unlock()
		if respond != nil {
			return respond(name, req.GetArguments())
		}
		echoed, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(echoed)), nil
	}
}
