// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/mcp-gateway/pkg/vmcp"
	"github.com/stacklok/mcp-gateway/pkg/vmcp/transport"
)

func TestSupervisor_RunReachesReady(t *testing.T) {
	t.Parallel()

	cfg := &vmcp.ServerConfig{Tenant: "acme", Name: "srv1", Transport: vmcp.TransportMock}
	conn := NewConnection(cfg, mockFactory(transport.NewMockBackend()))
	sup := NewSupervisor(conn, cfg)

	require.NoError(t, sup.Run(context.Background()))
	assert.Equal(t, vmcp.StateReady, conn.State())

	sup.Stop()
	assert.Equal(t, vmcp.StateClosed, conn.State())
}

func TestSupervisor_RetriesUntilFactorySucceeds(t *testing.T) {
	t.Parallel()

	backend := transport.NewMockBackend()
	var attempts int32
	factory := func(*vmcp.ServerConfig) (*mcpclient.Client, error) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return nil, errBoom
		}
		return backend.Client()
	}

	cfg := &vmcp.ServerConfig{Tenant: "acme", Name: "srv1", Transport: vmcp.TransportMock}
	conn := NewConnection(cfg, factory)
	sup := NewSupervisor(conn, cfg)

	require.NoError(t, sup.Run(context.Background()))
	require.Eventually(t, func() bool {
		return conn.State() == vmcp.StateReady
	}, 5*time.Second, 10*time.Millisecond)

	sup.Stop()
}

// TestSupervisor_GivesUpAfterMaxRetries covers the ServerConfig.MaxRetries
// contract: once the cap is exhausted the supervisor stops retrying and
// leaves the connection in Closing rather than retrying forever.
func TestSupervisor_GivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	var attempts int32
	factory := func(*vmcp.ServerConfig) (*mcpclient.Client, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, errBoom
	}

	cfg := &vmcp.ServerConfig{Tenant: "acme", Name: "srv1", Transport: vmcp.TransportMock, MaxRetries: 2}
	conn := NewConnection(cfg, factory)
	sup := NewSupervisor(conn, cfg)

	require.NoError(t, sup.Run(context.Background()))
	require.Eventually(t, func() bool {
		return conn.State() == vmcp.StateClosing
	}, 5*time.Second, 10*time.Millisecond)

	n := atomic.LoadInt32(&attempts)
	assert.GreaterOrEqual(t, n, int32(2), "at least the initial attempt plus the retry cap should have run")
	assert.Less(t, n, int32(10), "reconnect attempts must stop once MaxRetries is exhausted, not retry forever")
	sup.Stop()
}

type boomErr struct{}

func (*boomErr) Error() string { return "boom" }

var errBoom = &boomErr{}
