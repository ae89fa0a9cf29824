// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Outcome values for AuditEvent.Outcome.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
	OutcomeDenied  = "denied"
)

// Source type values for EventSource.Type.
const (
	SourceTypeNetwork = "network"
	SourceTypeLocal   = "local"
)

// ComponentGateway is the default component name stamped on events that
// don't set one explicitly.
const ComponentGateway = "mcp-gateway"

// LevelAudit is the slog level audit events are logged at: above Info so
// they're never accidentally filtered out by a service's default level,
// but distinguishable from error-level operational logs.
const LevelAudit = slog.Level(2)

// EventSource describes where an operation originated.
type EventSource struct {
	Type  string         `json:"type"`
	Value string         `json:"value"`
	Extra map[string]any `json:"extra,omitempty"`
}

// EventMetadata carries the audit id, timestamp and free-form extras.
type EventMetadata struct {
	AuditID string         `json:"auditId"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// AuditEvent is one append-only entry in the audit trail.
type AuditEvent struct {
	Metadata  EventMetadata     `json:"metadata"`
	Type      string            `json:"type"`
	Source    EventSource       `json:"source"`
	Outcome   string            `json:"outcome"`
	Subjects  map[string]string `json:"subjects"`
	Component string            `json:"component"`
	Target    map[string]string `json:"target,omitempty"`
	Data      *json.RawMessage  `json:"data,omitempty"`
	LoggedAt  time.Time         `json:"loggedAt"`
}

// NewAuditEvent creates an event with a freshly generated audit id.
func NewAuditEvent(eventType string, source EventSource, outcome string, subjects map[string]string, component string) *AuditEvent {
	return NewAuditEventWithID(uuid.NewString(), eventType, source, outcome, subjects, component)
}

// NewAuditEventWithID creates an event with a caller-supplied audit id,
// useful when correlating with an upstream request id.
func NewAuditEventWithID(
	auditID, eventType string, source EventSource, outcome string, subjects map[string]string, component string,
) *AuditEvent {
	return &AuditEvent{
		Metadata:  EventMetadata{AuditID: auditID},
		Type:      eventType,
		Source:    source,
		Outcome:   outcome,
		Subjects:  subjects,
		Component: component,
		LoggedAt:  time.Now().UTC(),
	}
}

// WithTarget attaches target information and returns the same event for
// chaining.
func (e *AuditEvent) WithTarget(target map[string]string) *AuditEvent {
	e.Target = target
	return e
}

// WithData attaches a pre-marshaled JSON payload.
func (e *AuditEvent) WithData(data *json.RawMessage) *AuditEvent {
	e.Data = data
	return e
}

// WithDataFromString attaches a raw JSON string as the event's data.
func (e *AuditEvent) WithDataFromString(jsonString string) *AuditEvent {
	raw := json.RawMessage(jsonString)
	e.Data = &raw
	return e
}

// LogTo writes the event to the given slog logger at the given level (the
// Sink passes LevelAudit), as a single structured "audit" message
// carrying the event as an attribute.
func (e *AuditEvent) LogTo(ctx context.Context, l *slog.Logger, level slog.Level) {
	l.Log(ctx, level, "audit", slog.Any("event", e))
}
