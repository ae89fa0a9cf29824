// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestSink_RecordToolCall_RedactsAndHashes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := NewSink(&buf, DefaultConfig())

	err := sink.RecordToolCall(context.Background(), "acme", "sess-1", "srv1", "login",
		map[string]any{"username": "alice", "password": "p@ss"}, OutcomeSuccess, "", 5*time.Millisecond)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, "p@ss")
	assert.Contains(t, out, "data_hash")
}

func TestSink_FailClosed_ReturnsErrorOnWriteFailure(t *testing.T) {
	t.Parallel()

	sink := NewSink(failingWriter{}, DefaultConfig())
	err := sink.RecordToolCall(context.Background(), "acme", "sess-1", "srv1", "echo", nil, OutcomeSuccess, "", 0)
	require.Error(t, err)
}

func TestSink_NotFailClosed_SwallowsWriteFailure(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.FailClosed = false
	sink := NewSink(failingWriter{}, cfg)
	err := sink.RecordToolCall(context.Background(), "acme", "sess-1", "srv1", "echo", nil, OutcomeSuccess, "", 0)
	require.NoError(t, err)
}

func TestSink_Disabled_SkipsWrite(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := NewSink(&buf, &Config{Enabled: false})
	err := sink.RecordToolCall(context.Background(), "acme", "sess-1", "srv1", "echo", nil, OutcomeSuccess, "", 0)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestSink_RecordPolicyDecision_DeniedOutcome(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := NewSink(&buf, DefaultConfig())
	require.NoError(t, sink.RecordPolicyDecision(context.Background(), "acme", "sess-1", "srv1", "delete", "not in allow-list", false))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(findEventLine(t, buf.String()), &payload))
	event := payload["event"].(map[string]any)
	assert.Equal(t, OutcomeDenied, event["outcome"])
}

func TestRedactArgs(t *testing.T) {
	t.Parallel()

	args := map[string]any{
		"Password":   "secret1",
		"auth_token": "abc",
		"apiKey":     "xyz",
		"username":   "alice",
	}
	redacted := RedactArgs(args)
	assert.Equal(t, "[REDACTED]", redacted["Password"])
	assert.Equal(t, "[REDACTED]", redacted["auth_token"])
	assert.Equal(t, "[REDACTED]", redacted["apiKey"])
	assert.Equal(t, "alice", redacted["username"])
}

func TestHashArgs_Deterministic(t *testing.T) {
	t.Parallel()

	a := HashArgs(map[string]any{"x": 1, "y": "z"})
	b := HashArgs(map[string]any{"x": 1, "y": "z"})
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

func findEventLine(t *testing.T, out string) []byte {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	return []byte(lines[len(lines)-1])
}
