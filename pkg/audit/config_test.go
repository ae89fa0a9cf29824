// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.True(t, cfg.Enabled)
	assert.True(t, cfg.FailClosed)
	assert.Equal(t, ComponentGateway, cfg.Component)
}

func TestShouldAuditEvent(t *testing.T) {
	t.Parallel()

	disabled := &Config{Enabled: false}
	assert.False(t, disabled.ShouldAuditEvent(EventTypeToolCall))

	enabled := DefaultConfig()
	assert.True(t, enabled.ShouldAuditEvent(EventTypeToolCall))

	excluding := enabled.WithExcluded(EventTypeToolsList)
	assert.True(t, excluding.ShouldAuditEvent(EventTypeToolCall))
	assert.False(t, excluding.ShouldAuditEvent(EventTypeToolsList))
}

func TestShouldAuditEvent_NilConfig(t *testing.T) {
	t.Parallel()

	var cfg *Config
	assert.False(t, cfg.ShouldAuditEvent(EventTypeToolCall))
}
