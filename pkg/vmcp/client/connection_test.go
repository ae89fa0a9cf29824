// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"testing"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/mcp-gateway/pkg/errors"
	"github.com/stacklok/mcp-gateway/pkg/vmcp"
	"github.com/stacklok/mcp-gateway/pkg/vmcp/transport"
)

func mockFactory(backend *transport.MockBackend) ClientFactory {
	return func(*vmcp.ServerConfig) (*mcpclient.Client, error) {
		return backend.Client()
	}
}

func searchToolBackend() *transport.MockBackend {
	backend := transport.NewMockBackend()
	backend.SetTools([]mcp.Tool{
		{Name: "search", Description: "searches", InputSchema: mcp.ToolInputSchema{Type: "object"}},
	})
	return backend
}

func TestConnection_OpenReachesReady(t *testing.T) {
	t.Parallel()

	cfg := &vmcp.ServerConfig{Tenant: "acme", Name: "srv1", Transport: vmcp.TransportMock}
	conn := NewConnection(cfg, mockFactory(transport.NewMockBackend()))

	require.NoError(t, conn.Open(context.Background()))
	assert.Equal(t, vmcp.StateReady, conn.State())
	assert.Equal(t, uint64(1), conn.Epoch())
	assert.False(t, conn.LastPing().IsZero())
}

func TestConnection_CallBeforeOpenFails(t *testing.T) {
	t.Parallel()

	cfg := &vmcp.ServerConfig{Tenant: "acme", Name: "srv1", Transport: vmcp.TransportMock}
	conn := NewConnection(cfg, mockFactory(transport.NewMockBackend()))

	_, err := conn.ListTools(context.Background())
	require.Error(t, err)
	var gerr *errors.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, errors.ErrNotConnected, gerr.Type)
}

func TestConnection_ListToolsAfterOpen(t *testing.T) {
	t.Parallel()

	cfg := &vmcp.ServerConfig{Tenant: "acme", Name: "srv1", Transport: vmcp.TransportMock}
	conn := NewConnection(cfg, mockFactory(searchToolBackend()))
	require.NoError(t, conn.Open(context.Background()))

	tools, err := conn.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "search", tools[0].Name)
	assert.Equal(t, "srv1", tools[0].ServerName)
}

func TestConnection_CallToolRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := &vmcp.ServerConfig{Tenant: "acme", Name: "srv1", Transport: vmcp.TransportMock}
	conn := NewConnection(cfg, mockFactory(searchToolBackend()))
	require.NoError(t, conn.Open(context.Background()))

	result, err := conn.CallTool(context.Background(), "search", map[string]any{"q": "hello"})
	require.NoError(t, err)
	assert.Contains(t, string(result), "hello")
}

func TestConnection_EpochBumpsOnReopen(t *testing.T) {
	t.Parallel()

	cfg := &vmcp.ServerConfig{Tenant: "acme", Name: "srv1", Transport: vmcp.TransportMock}
	conn := NewConnection(cfg, mockFactory(transport.NewMockBackend()))

	require.NoError(t, conn.Open(context.Background()))
	first := conn.Epoch()

	require.NoError(t, conn.Open(context.Background()))
	second := conn.Epoch()

	assert.Greater(t, second, first)
}

func TestConnection_DegradeFailsCalls(t *testing.T) {
	t.Parallel()

	cfg := &vmcp.ServerConfig{Tenant: "acme", Name: "srv1", Transport: vmcp.TransportMock}
	conn := NewConnection(cfg, mockFactory(transport.NewMockBackend()))
	require.NoError(t, conn.Open(context.Background()))

	conn.Degrade(nil)
	assert.Equal(t, vmcp.StateDegraded, conn.State())

	err := conn.Ping(context.Background())
	require.Error(t, err)
	var gerr *errors.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, errors.ErrNotConnected, gerr.Type)
}

func TestConnection_CloseTearsDown(t *testing.T) {
	t.Parallel()

	cfg := &vmcp.ServerConfig{Tenant: "acme", Name: "srv1", Transport: vmcp.TransportMock}
	conn := NewConnection(cfg, mockFactory(transport.NewMockBackend()))
	require.NoError(t, conn.Open(context.Background()))

	require.NoError(t, conn.Close())
	assert.Equal(t, vmcp.StateClosed, conn.State())
}

// TestConnection_CancelledContextMapsToCancelled pins the error-kind
// mapping: a caller-cancelled call must surface as Cancelled, never as a
// bare transport failure, so the facade can audit the right reason.
func TestConnection_CancelledContextMapsToCancelled(t *testing.T) {
	t.Parallel()

	cfg := &vmcp.ServerConfig{Tenant: "acme", Name: "srv1", Transport: vmcp.TransportMock}
	conn := NewConnection(cfg, mockFactory(searchToolBackend()))
	require.NoError(t, conn.Open(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := conn.CallTool(ctx, "search", nil)
	require.Error(t, err)
	var gerr *errors.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, errors.ErrCancelled, gerr.Type)
}
