// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// redactedKeywords are matched case-insensitively against argument map
// keys; any key containing one is logged as "[REDACTED]".
var redactedKeywords = []string{"password", "token", "key", "secret"}

// Sink is the Audit Sink (C8): it serializes every security-relevant
// event to an append-only writer, preserving per-(tenant, session) causal
// order, and redacts/hashes sensitive arguments before anything is
// written.
type Sink struct {
	config *Config
	logger *slog.Logger
	writer *trackingWriter

	// mu serializes writes per Sink so that two goroutines auditing the
	// same tenant/session can't interleave out of causal order; the
	// underlying io.Writer is not assumed to be safe for concurrent use.
	mu sync.Mutex
}

// trackingWriter remembers the last write error so Record can implement
// the fail-closed contract: a JSON handler's Handle() swallows the
// io.Writer's error, so we capture it at the writer itself.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	t.err = err
	return n, err
}

// NewSink creates a Sink writing newline-delimited JSON audit events to w.
// If config is nil, DefaultConfig is used.
func NewSink(w io.Writer, config *Config) *Sink {
	if config == nil {
		config = DefaultConfig()
	}
	tw := &trackingWriter{w: w}
	handler := slog.NewJSONHandler(tw, &slog.HandlerOptions{Level: LevelAudit})
	return &Sink{config: config, logger: slog.New(handler), writer: tw}
}

// Record writes an audit event. If the entry cannot be written and the
// Sink is configured FailClosed (the default), Record returns an error
// so the caller fails the operation rather than silently lose the audit
// trail.
func (s *Sink) Record(ctx context.Context, event *AuditEvent) error {
	if !s.config.ShouldAuditEvent(event.Type) {
		return nil
	}
	if event.Component == "" {
		event.Component = s.config.Component
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.writer.err = nil
	event.LogTo(ctx, s.logger, LevelAudit)
	if s.writer.err != nil && s.config.FailClosed {
		return fmt.Errorf("audit sink: %w", s.writer.err)
	}
	return nil
}

// RecordToolCall audits a tools/call outcome.
func (s *Sink) RecordToolCall(
	ctx context.Context, tenantID, sessionID, server, tool string, args map[string]any, outcome, reason string, d time.Duration,
) error {
	event := NewAuditEvent(EventTypeToolCall, localSource(), outcome,
		map[string]string{SubjectKeyTenant: tenantID, SubjectKeySession: sessionID}, s.config.Component)
	event.WithTarget(map[string]string{TargetKeyType: TargetTypeTool, TargetKeyName: tool, TargetKeyMethod: "tools/call"})
	s.attachArgs(event, server, args, reason, d)
	return s.Record(ctx, event)
}

// RecordResourceRead audits a resources/read outcome.
func (s *Sink) RecordResourceRead(
	ctx context.Context, tenantID, sessionID, server, uri string, outcome, reason string, d time.Duration,
) error {
	event := NewAuditEvent(EventTypeResourceRead, localSource(), outcome,
		map[string]string{SubjectKeyTenant: tenantID, SubjectKeySession: sessionID}, s.config.Component)
	event.WithTarget(map[string]string{TargetKeyType: TargetTypeResource, TargetKeyURI: uri, TargetKeyMethod: "resources/read"})
	s.attachArgs(event, server, nil, reason, d)
	return s.Record(ctx, event)
}

// RecordPolicyDecision audits a standalone allow/deny decision, including
// denials that short-circuit before any frame is sent. Keeping frames
// off the wire on a denial is the caller's job; this just records the
// decision.
func (s *Sink) RecordPolicyDecision(
	ctx context.Context, tenantID, sessionID, server, target, reason string, allowed bool,
) error {
	outcome := OutcomeSuccess
	if !allowed {
		outcome = OutcomeDenied
	}
	event := NewAuditEvent(EventTypePolicyDecision, localSource(), outcome,
		map[string]string{SubjectKeyTenant: tenantID, SubjectKeySession: sessionID}, s.config.Component)
	event.WithTarget(map[string]string{TargetKeyType: TargetTypeServer, TargetKeyName: server})
	if reason != "" {
		event.Metadata.Extra = map[string]any{MetadataExtraKeyReason: reason}
	}
	return s.Record(ctx, event)
}

// RecordTransportStderr audits one line a stdio-backed server wrote to
// its stderr.
func (s *Sink) RecordTransportStderr(ctx context.Context, tenantID, server, line string) error {
	event := NewAuditEvent(EventTypeTransportStderr, localSource(), OutcomeSuccess,
		map[string]string{SubjectKeyTenant: tenantID}, s.config.Component)
	event.WithTarget(map[string]string{TargetKeyType: TargetTypeServer, TargetKeyName: server})
	event.Metadata.Extra = map[string]any{MetadataExtraKeyLine: line}
	return s.Record(ctx, event)
}

func (s *Sink) attachArgs(event *AuditEvent, server string, args map[string]any, reason string, d time.Duration) {
	if event.Metadata.Extra == nil {
		event.Metadata.Extra = map[string]any{}
	}
	event.Metadata.Extra[MetadataExtraKeyDuration] = d.Milliseconds()
	if reason != "" {
		event.Metadata.Extra[MetadataExtraKeyReason] = reason
	}
	if event.Target == nil {
		event.Target = map[string]string{}
	}
	event.Target["server"] = server

	redacted := RedactArgs(args)
	event.Metadata.Extra[MetadataExtraKeyDataHash] = HashArgs(redacted)

	if s.config.IncludeArgs && len(redacted) > 0 {
		if data, err := json.Marshal(redacted); err == nil && len(data) <= s.config.MaxDataSize {
			event.WithData((*json.RawMessage)(&data))
		}
	}
}

// RedactArgs returns a copy of args with the value of any key matching
// (?i)(password|token|key|secret) replaced by the literal "[REDACTED]".
func RedactArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	redacted := make(map[string]any, len(args))
	for k, v := range args {
		lower := strings.ToLower(k)
		sensitive := false
		for _, kw := range redactedKeywords {
			if strings.Contains(lower, kw) {
				sensitive = true
				break
			}
		}
		if sensitive {
			redacted[k] = "[REDACTED]"
		} else {
			redacted[k] = v
		}
	}
	return redacted
}

// HashArgs returns the first 16 hex characters of the SHA-256 digest of
// the (already redacted) argument map, sorted-key JSON encoded, so
// correlation is possible without retaining the content itself.
func HashArgs(redacted map[string]any) string {
	data, err := json.Marshal(sortedMap(redacted))
	if err != nil {
		return "hash_error"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// sortedMap returns m unchanged: Go's JSON marshaling of map[string]any
// already emits object keys in sorted order, so this simply documents
// that guarantee at the call site.
func sortedMap(m map[string]any) map[string]any {
	return m
}

func localSource() EventSource {
	return EventSource{Type: SourceTypeLocal, Value: ComponentGateway}
}
