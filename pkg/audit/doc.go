// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package audit provides the tamper-evident audit trail for the gateway:
// every policy decision, tool call, and resource read is serialized as a
// structured AuditEvent and written through a Sink that fails operations
// closed rather than drop events under backpressure.
package audit
