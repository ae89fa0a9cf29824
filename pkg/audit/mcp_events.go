// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package audit

// Event types for operations the Client Facade performs. Every facade
// operation is audited under one of these.
const (
	EventTypeServerConnect     = "server_connect"
	EventTypeServerDisconnect  = "server_disconnect"
	EventTypeToolsList         = "tools_list"
	EventTypeResourcesList     = "resources_list"
	EventTypeToolCall          = "tool_call"
	EventTypeResourceRead      = "resource_read"
	EventTypeServerStatus      = "server_status"
	EventTypeCapabilityRefresh = "capability_refresh"

	// EventTypePolicyDecision marks a standalone policy evaluation, e.g. a
	// denial that short-circuits before any frame would be sent.
	EventTypePolicyDecision = "policy_decision"

	// EventTypeTransportStderr tags a line a stdio-backed server wrote to
	// its stderr, drained into the audit trail.
	EventTypeTransportStderr = "transport_stderr"

	// EventTypeServerNotification tags a server-initiated JSON-RPC
	// notification, which is unroutable and discarded after auditing.
	EventTypeServerNotification = "server_notification"
)

// Target types for the Target map.
const (
	TargetTypeServer   = "server"
	TargetTypeTool     = "tool"
	TargetTypeResource = "resource"
)

// Target field keys.
const (
	TargetKeyType   = "type"
	TargetKeyName   = "name"
	TargetKeyURI    = "uri"
	TargetKeyMethod = "method"
)

// Subject field keys.
const (
	SubjectKeyTenant  = "tenant_id"
	SubjectKeySession = "session_id"
)

// Metadata extra keys.
const (
	MetadataExtraKeyDuration  = "duration_ms"
	MetadataExtraKeyReason    = "reason"
	MetadataExtraKeyDataHash  = "data_hash"
	MetadataExtraKeyTransport = "transport"
	MetadataExtraKeyLine      = "line"
)
