// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package client runs one backend MCP connection end to end: a
// mark3labs/mcp-go SDK client wrapped in the gateway's connection state
// machine, plus a supervisor handling health probes and backoff-governed
// reconnects. The SDK owns JSON-RPC framing, request-id correlation, and
// the per-transport wire details; this package owns everything the
// gateway layers on top: epochs, state transitions, timeouts mapped into
// the gateway's error taxonomy, stderr draining, and notification
// fan-out.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stacklok/mcp-gateway/pkg/errors"
	"github.com/stacklok/mcp-gateway/pkg/logger"
	"github.com/stacklok/mcp-gateway/pkg/vmcp"
)

// protocolVersion is the MCP wire protocol version this gateway
// negotiates with every backend.
const protocolVersion = "2024-11-05"

// clientName and clientVersion identify the gateway in the initialize
// handshake's client info.
const (
	clientName    = "mcp-gateway"
	clientVersion = "0.1.0"
)

// ClientFactory builds a fresh, unconnected SDK client for a server
// config. Supplied by the caller so Connection/Supervisor stay agnostic
// of the stdio/SSE/WebSocket/mock split.
type ClientFactory func(cfg *vmcp.ServerConfig) (*mcpclient.Client, error)

// NotificationHandler consumes a server-initiated notification's method
// and params, so the layer above can route notifications to the audit
// trail and react to capability-change advertisements.
type NotificationHandler func(method string, params json.RawMessage)

// Connection is one backend MCP server connection and its state machine:
// Idle → Connecting → Handshaking → Ready → {Degraded, Closing} → Closed.
// Each successful Open replaces the SDK client wholesale and bumps the
// epoch, so handles minted against the previous connection generation
// are rejected rather than silently served by the new one.
type Connection struct {
	cfg     *vmcp.ServerConfig
	factory ClientFactory

	mu       sync.RWMutex
	state    vmcp.ConnectionState
	cli      *mcpclient.Client
	epoch    uint64
	lastPing time.Time
	notify   NotificationHandler
	stderr   func(line string)
}

// NewConnection constructs an idle connection. Call Open to drive it to
// Ready.
func NewConnection(cfg *vmcp.ServerConfig, factory ClientFactory) *Connection {
	return &Connection{cfg: cfg, factory: factory, state: vmcp.StateIdle}
}

// SetNotificationHandler installs fn as the consumer for server-initiated
// notifications on this connection, surviving reconnects.
func (c *Connection) SetNotificationHandler(fn NotificationHandler) {
	c.mu.Lock()
	c.notify = fn
	c.mu.Unlock()
}

// SetStderrSink installs fn as the consumer for lines a stdio-backed
// server writes to its stderr, surviving reconnects. Lines are logged
// when no sink is installed.
func (c *Connection) SetStderrSink(fn func(line string)) {
	c.mu.Lock()
	c.stderr = fn
	c.mu.Unlock()
}

// State returns the current connection state.
func (c *Connection) State() vmcp.ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Connection) setState(s vmcp.ConnectionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Epoch returns the current connection generation, bumped on every
// successful (re)connect. Handles minted against a stale epoch must be
// rejected by the caller.
func (c *Connection) Epoch() uint64 {
	return atomic.LoadUint64(&c.epoch)
}

// LastPing reports when the server last proved liveness: the most recent
// successful health probe, or the (re)connect handshake if no probe has
// fired yet.
func (c *Connection) LastPing() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPing
}

func (c *Connection) touchPing() {
	c.mu.Lock()
	c.lastPing = time.Now()
	c.mu.Unlock()
}

// Open drives Idle/Degraded → Connecting → Handshaking → Ready: build an
// SDK client, start its transport, run the initialize handshake, and
// swap it in under a fresh epoch. On failure it leaves the connection in
// Degraded so the Supervisor can retry.
func (c *Connection) Open(ctx context.Context) error {
	c.setState(vmcp.StateConnecting)

	cli, err := c.factory(c.cfg)
	if err != nil {
		c.setState(vmcp.StateDegraded)
		return errors.NewTransportError("failed to build MCP client", err)
	}

	cli.OnNotification(func(notification mcp.JSONRPCNotification) {
		c.mu.RLock()
		notify := c.notify
		c.mu.RUnlock()
		if notify == nil {
			logger.Debugf("dropping unsolicited notification: %s", notification.Method)
			return
		}
		params, err := json.Marshal(notification.Params)
		if err != nil {
			params = nil
		}
		notify(notification.Method, params)
	})

	// The SDK's stdio client starts its transport on construction; every
	// other transport needs an explicit Start before the handshake.
	if c.cfg.Transport != vmcp.TransportStdio {
		if err := cli.Start(ctx); err != nil {
			_ = cli.Close()
			c.setState(vmcp.StateDegraded)
			return errors.NewTransportError("failed to start MCP transport", err)
		}
	}

	c.setState(vmcp.StateHandshaking)
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = protocolVersion
	initReq.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}
	initReq.Params.Capabilities = mcp.ClientCapabilities{}
	if _, err := cli.Initialize(ctx, initReq); err != nil {
		_ = cli.Close()
		c.setState(vmcp.StateDegraded)
		return errors.NewHandshakeFailedError("initialize handshake failed", err)
	}

	if stderr, ok := mcpclient.GetStderr(cli); ok {
		go c.drainStderr(stderr)
	}

	c.mu.Lock()
	old := c.cli
	c.cli = cli
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	newEpoch := atomic.AddUint64(&c.epoch, 1)

	c.setState(vmcp.StateReady)
	c.touchPing()
	logger.Infof("connection to %s/%s ready (epoch %d)", c.cfg.Tenant, c.cfg.Name, newEpoch)
	return nil
}

// drainStderr forwards each stderr line from a stdio-backed child to the
// installed sink, or to the process log when none is installed. Exits
// when the child closes stderr.
func (c *Connection) drainStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		c.mu.RLock()
		sink := c.stderr
		c.mu.RUnlock()
		if sink != nil {
			sink(line)
		} else {
			logger.Warnf("transport_stderr[%s/%s]: %s", c.cfg.Tenant, c.cfg.Name, line)
		}
	}
}

// ready returns the live SDK client, or ErrNotConnected if the
// connection isn't Ready.
func (c *Connection) ready() (*mcpclient.Client, error) {
	c.mu.RLock()
	cli := c.cli
	state := c.state
	c.mu.RUnlock()
	if state != vmcp.StateReady || cli == nil {
		return nil, errors.NewNotConnectedError("connection is not ready", nil)
	}
	return cli, nil
}

// callContext bounds a request with the server's configured
// RequestTimeout unless the caller's ctx carries a shorter deadline
// already.
func (c *Connection) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.RequestTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.RequestTimeout)
	}
	return ctx, func() {}
}

// wrapCallErr maps an SDK call failure into the gateway's error
// taxonomy: deadline expiry becomes Timeout, caller cancellation becomes
// Cancelled, anything else a TransportError.
func wrapCallErr(ctx context.Context, method string, err error) error {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return errors.NewTimeoutError(method+" deadline exceeded", err)
	case context.Canceled:
		return errors.NewCancelledError(method+" cancelled by caller", err)
	}
	return errors.NewTransportError(method+" failed", err)
}

// ListTools fetches the server's current tool list.
func (c *Connection) ListTools(ctx context.Context) ([]vmcp.Tool, error) {
	cli, err := c.ready()
	if err != nil {
		return nil, err
	}
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	result, err := cli.ListTools(callCtx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, wrapCallErr(callCtx, "tools/list", err)
	}
	return ToolsFromSDK(result.Tools, c.cfg.Name), nil
}

// ListResources fetches the server's current resource list.
func (c *Connection) ListResources(ctx context.Context) ([]vmcp.Resource, error) {
	cli, err := c.ready()
	if err != nil {
		return nil, err
	}
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	result, err := cli.ListResources(callCtx, mcp.ListResourcesRequest{})
	if err != nil {
		return nil, wrapCallErr(callCtx, "resources/list", err)
	}
	return ResourcesFromSDK(result.Resources, c.cfg.Name), nil
}

// CallTool invokes one tool and returns the serialized call result.
func (c *Connection) CallTool(ctx context.Context, tool string, args map[string]any) (json.RawMessage, error) {
	cli, err := c.ready()
	if err != nil {
		return nil, err
	}
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	// A call whose ctx is already done is never dispatched; it reports
	// Cancelled or Timeout just like one that fails in flight.
	if err := callCtx.Err(); err != nil {
		return nil, wrapCallErr(callCtx, "tools/call", err)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args
	result, err := cli.CallTool(callCtx, req)
	if err != nil {
		return nil, wrapCallErr(callCtx, "tools/call", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, errors.NewInternalError("failed to serialize tool call result", err)
	}
	return data, nil
}

// ReadResource reads one resource and returns the serialized contents.
func (c *Connection) ReadResource(ctx context.Context, uri string) (json.RawMessage, error) {
	cli, err := c.ready()
	if err != nil {
		return nil, err
	}
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	result, err := cli.ReadResource(callCtx, req)
	if err != nil {
		return nil, wrapCallErr(callCtx, "resources/read", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, errors.NewInternalError("failed to serialize resource contents", err)
	}
	return data, nil
}

// Ping checks liveness with the MCP ping method (used by the Supervisor's
// health probe). A successful round trip stamps LastPing.
func (c *Connection) Ping(ctx context.Context) error {
	cli, err := c.ready()
	if err != nil {
		return err
	}
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if err := cli.Ping(callCtx); err != nil {
		return wrapCallErr(callCtx, "ping", err)
	}
	c.touchPing()
	return nil
}

// Degrade marks the connection unusable without closing the underlying
// client, so the Supervisor can schedule a reconnect. Calls issued while
// Degraded fail with NotConnected.
func (c *Connection) Degrade(cause error) {
	if cause != nil {
		logger.Warnf("connection to %s/%s degraded: %v", c.cfg.Tenant, c.cfg.Name, cause)
	}
	c.setState(vmcp.StateDegraded)
}

// giveUp transitions a connection whose reconnect attempts are exhausted
// into Closing, per ServerConfig.MaxRetries's documented contract. The
// Supervisor has already stopped retrying; this just makes the terminal
// state observable to ServerStatus callers instead of leaving the
// connection looking merely Degraded.
func (c *Connection) giveUp() {
	c.setState(vmcp.StateClosing)
}

// Close tears down the connection permanently.
func (c *Connection) Close() error {
	c.setState(vmcp.StateClosing)

	c.mu.Lock()
	cli := c.cli
	c.cli = nil
	c.mu.Unlock()

	var err error
	if cli != nil {
		err = cli.Close()
	}
	c.setState(vmcp.StateClosed)
	return err
}
