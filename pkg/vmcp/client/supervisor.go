// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/stacklok/mcp-gateway/pkg/logger"
	"github.com/stacklok/mcp-gateway/pkg/vmcp"
)

// healthProbeInterval is how often the Supervisor pings a Ready
// connection to catch a half-dead socket before a caller does.
const healthProbeInterval = 30 * time.Second

// Supervisor owns one Connection's lifecycle: initial connect, health
// probing, and backoff-governed reconnect on failure. It runs as a
// single goroutine per connection, using backoff/v5's generic Retry for
// the reconnect delay curve.
type Supervisor struct {
	conn *Connection
	cfg  *vmcp.ServerConfig

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSupervisor wraps a Connection for lifecycle management.
func NewSupervisor(conn *Connection, cfg *vmcp.ServerConfig) *Supervisor {
	return &Supervisor{conn: conn, cfg: cfg, done: make(chan struct{})}
}

// Run performs the initial connect and then supervises the connection in
// the background until ctx is cancelled or Stop is called. It blocks for
// the initial connect attempt only; reconnects happen asynchronously.
func (s *Supervisor) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if err := s.conn.Open(runCtx); err != nil {
		logger.Warnf("initial connect to %s/%s failed: %v", s.cfg.Tenant, s.cfg.Name, err)
	}
	go s.loop(runCtx)
	return nil
}

func (s *Supervisor) loop(ctx context.Context) {
	defer close(s.done)

	for {
		if ctx.Err() != nil {
			return
		}
		if s.conn.State() == vmcp.StateReady {
			if s.waitHealthy(ctx) {
				return
			}
			continue
		}
		if !s.reconnect(ctx) {
			logger.Warnf("giving up on %s/%s after %d reconnect attempts", s.cfg.Tenant, s.cfg.Name, s.cfg.MaxRetries)
			s.conn.giveUp()
			return
		}
	}
}

// waitHealthy probes liveness every healthProbeInterval while Ready,
// returning true if the supervisor should stop entirely (ctx done),
// false if the connection dropped out of Ready and needs reconnecting.
func (s *Supervisor) waitHealthy(ctx context.Context) (shouldStop bool) {
	ticker := time.NewTicker(healthProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return true
		case <-ticker.C:
			if err := s.conn.Ping(ctx); err != nil {
				logger.Warnf("health probe failed for %s/%s: %v", s.cfg.Tenant, s.cfg.Name, err)
				s.conn.Degrade(err)
				return false
			}
		}
	}
}

// reconnect retries Open with exponential backoff, capped at
// cfg.MaxRetries attempts, until it succeeds, the cap is exhausted, or
// ctx is cancelled. Returns false if the supervisor
// should stop entirely (retries exhausted or ctx cancelled before a
// successful reconnect).
func (s *Supervisor) reconnect(ctx context.Context) bool {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		err := s.conn.Open(ctx)
		if err != nil {
			logger.Warnf("reconnect attempt %d/%d for %s/%s failed: %v", attempt, s.cfg.MaxRetries, s.cfg.Tenant, s.cfg.Name, err)
		}
		return struct{}{}, err
	}

	opts := []backoff.RetryOption{backoff.WithBackOff(b), backoff.WithMaxElapsedTime(0)}
	if s.cfg.MaxRetries > 0 {
		opts = append(opts, backoff.WithMaxTries(uint(s.cfg.MaxRetries)))
	}

	_, err := backoff.Retry(ctx, operation, opts...)
	return err == nil
}

// Stop halts supervision and closes the underlying connection. A no-op
// beyond closing the connection if Run was never called.
func (s *Supervisor) Stop() {
	if s.cancel == nil {
		_ = s.conn.Close()
		return
	}
	s.cancel()
	<-s.done
	_ = s.conn.Close()
}
