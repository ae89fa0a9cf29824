// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package transport supplies the backend transports the MCP SDK does not
// ship itself: a WebSocket implementation of the SDK's client transport
// contract, and an in-process mock backend selected only by explicit
// configuration. Everything the SDK already provides (stdio, SSE,
// streamable HTTP) is used directly from
// github.com/mark3labs/mcp-go/client.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tidwall/gjson"

	"github.com/stacklok/mcp-gateway/pkg/logger"
)

// pingInterval is how often the WebSocket transport pings the peer to
// detect a dead connection faster than TCP would.
const pingInterval = 20 * time.Second

const pongWait = pingInterval + 10*time.Second

// WebSocket carries MCP JSON-RPC over a single WebSocket connection, one
// JSON object per text message, implementing
// mark3labs/mcp-go/client/transport.Interface so a WebSocket backend
// plugs into the same SDK client as the stdio and SSE backends. The SDK
// has no WebSocket transport of its own, which is the only reason this
// implementation exists.
type WebSocket struct {
	url    string
	header http.Header

	mu     sync.Mutex // serializes writes and guards conn/closed
	conn   *websocket.Conn
	closed bool

	pendingMu sync.Mutex
	pending   map[string]chan *transport.JSONRPCResponse

	notifyMu sync.RWMutex
	notify   func(mcp.JSONRPCNotification)

	done chan struct{}
}

// NewWebSocket constructs an unstarted transport for a ws:// or wss://
// URL. The connection is dialed in Start.
func NewWebSocket(url string) *WebSocket {
	return &WebSocket{
		url:     url,
		pending: make(map[string]chan *transport.JSONRPCResponse),
	}
}

// Start dials the WebSocket and launches the read and keepalive loops.
func (t *WebSocket) Start(ctx context.Context) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		return fmt.Errorf("failed to dial websocket %s: %w", t.url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	t.mu.Lock()
	t.conn = conn
	t.done = make(chan struct{})
	t.mu.Unlock()

	go t.readLoop(conn)
	go t.pingLoop(conn)
	return nil
}

func (t *WebSocket) readLoop(conn *websocket.Conn) {
	defer close(t.done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warnf("websocket read failed: %v", err)
			}
			return
		}

		// A frame without an id cannot be correlated with an in-flight
		// request; it is a server-initiated notification. gjson sniffs
		// the key so routing doesn't pay a full unmarshal per frame.
		if !gjson.GetBytes(data, "id").Exists() {
			var notification mcp.JSONRPCNotification
			if err := json.Unmarshal(data, &notification); err != nil {
				logger.Warnf("malformed websocket notification: %v", err)
				continue
			}
			t.notifyMu.RLock()
			handler := t.notify
			t.notifyMu.RUnlock()
			if handler != nil {
				handler(notification)
			}
			continue
		}

		var response transport.JSONRPCResponse
		if err := json.Unmarshal(data, &response); err != nil {
			logger.Warnf("malformed websocket response frame: %v", err)
			continue
		}

		t.pendingMu.Lock()
		ch, ok := t.pending[response.ID.String()]
		if ok {
			delete(t.pending, response.ID.String())
		}
		t.pendingMu.Unlock()
		if !ok {
			// Late reply for a request whose caller already gave up.
			logger.Warnf("websocket response for unknown request id %s", response.ID.String())
			continue
		}
		ch <- &response
	}
}

func (t *WebSocket) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			t.mu.Unlock()
			if err != nil {
				return
			}
		case <-t.done:
			return
		}
	}
}

// SendRequest writes one request frame and blocks for its correlated
// response, the caller's ctx, or connection teardown, whichever first.
func (t *WebSocket) SendRequest(ctx context.Context, request transport.JSONRPCRequest) (*transport.JSONRPCResponse, error) {
	data, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	key := request.ID.String()
	ch := make(chan *transport.JSONRPCResponse, 1)
	t.pendingMu.Lock()
	t.pending[key] = ch
	t.pendingMu.Unlock()

	evict := func() {
		t.pendingMu.Lock()
		delete(t.pending, key)
		t.pendingMu.Unlock()
	}

	t.mu.Lock()
	if t.conn == nil || t.closed {
		t.mu.Unlock()
		evict()
		return nil, fmt.Errorf("websocket transport is not started")
	}
	err = t.conn.WriteMessage(websocket.TextMessage, data)
	t.mu.Unlock()
	if err != nil {
		evict()
		return nil, fmt.Errorf("failed to write websocket message: %w", err)
	}

	select {
	case response := <-ch:
		return response, nil
	case <-ctx.Done():
		evict()
		return nil, ctx.Err()
	case <-t.done:
		evict()
		return nil, fmt.Errorf("websocket connection closed while request was in flight")
	}
}

// SendNotification writes one notification frame; no response is awaited.
func (t *WebSocket) SendNotification(_ context.Context, notification mcp.JSONRPCNotification) error {
	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil || t.closed {
		return fmt.Errorf("websocket transport is not started")
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write websocket notification: %w", err)
	}
	return nil
}

// SetNotificationHandler installs the consumer for inbound frames that
// carry no id.
func (t *WebSocket) SetNotificationHandler(handler func(notification mcp.JSONRPCNotification)) {
	t.notifyMu.Lock()
	t.notify = handler
	t.notifyMu.Unlock()
}

// Close sends a close frame and releases the socket. Idempotent.
func (t *WebSocket) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.conn == nil {
		t.closed = true
		return nil
	}
	t.closed = true
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return t.conn.Close()
}

// GetSessionId reports no session: the connection itself is the session.
func (*WebSocket) GetSessionId() string { return "" }
