// Package vmcp defines the shared data model for the multi-tenant MCP
// gateway: server configuration, the capability types a backend
// advertises, per-tenant security policy, and the connection state
// machine. Subpackages (transport, client, cache, policy, ratelimit,
// approval, facade) build on these types; nothing here performs I/O.
package vmcp

import (
	"encoding/json"
	"time"
)

// TransportKind identifies which transport driver variant a ServerConfig
// uses.
type TransportKind string

// Supported transport kinds.
const (
	TransportStdio     TransportKind = "stdio"
	TransportSSE       TransportKind = "sse"
	TransportWebSocket TransportKind = "websocket"
	// TransportMock is an explicit test double, selected only by
	// configuration, never engaged implicitly.
	TransportMock TransportKind = "mock"
)

// ServerConfig is immutable once constructed: the locator and metadata
// for one backend MCP server, scoped to a single tenant.
type ServerConfig struct {
	// Name is the server's logical name, unique within its tenant.
	Name string
	// Tenant is the owning tenant id.
	Tenant string
	// Transport selects which Transport Driver variant to build.
	Transport TransportKind

	// Command and Args locate a stdio child process. Unused by SSE/WebSocket.
	Command string
	Args    []string
	// Env is injected into the child process environment (stdio only).
	Env map[string]string

	// URL locates an SSE or WebSocket endpoint. Unused by stdio.
	URL string

	// RequestTimeout bounds every JSON-RPC call issued on this
	// connection unless the caller supplies a shorter deadline.
	RequestTimeout time.Duration
	// MaxRetries caps the Connection Supervisor's reconnect attempts
	// before giving up and leaving the Connection in Closing.
	MaxRetries int
}

// ConnectionState is one position in the Connection state machine.
type ConnectionState string

// Connection states.
const (
	StateIdle        ConnectionState = "idle"
	StateConnecting  ConnectionState = "connecting"
	StateHandshaking ConnectionState = "handshaking"
	StateReady       ConnectionState = "ready"
	StateDegraded    ConnectionState = "degraded"
	StateClosing     ConnectionState = "closing"
	StateClosed      ConnectionState = "closed"
)

// Tool is one entry from a server's tools/list response. Valid only for
// the epoch of the Connection that produced it.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	ServerName  string
}

// Resource is one entry from a server's resources/list response.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
	ServerName  string
}

// Permission is one capability grant within a SecurityPolicy.
type Permission string

// Permission values.
const (
	PermissionRead    Permission = "read"
	PermissionWrite   Permission = "write"
	PermissionExecute Permission = "execute"
	PermissionAdmin   Permission = "admin"
)

// SecurityLevel gates additional validation for sensitive servers.
type SecurityLevel string

// SecurityLevel values, low to high.
const (
	SecurityPublic       SecurityLevel = "public"
	SecurityRestricted   SecurityLevel = "restricted"
	SecurityConfidential SecurityLevel = "confidential"
	SecuritySecret       SecurityLevel = "secret"
)

// SecurityPolicy is the per-(tenant, server) access-control document.
type SecurityPolicy struct {
	Tenant string
	Server string

	// AllowedTools, if non-empty, restricts tool calls to this set. An
	// empty set means "no allow-list filter applied" for tool access.
	AllowedTools map[string]bool
	DeniedTools  map[string]bool

	// AllowedResources holds glob patterns (`*`/`?`). Unlike
	// AllowedTools, an empty set still denies every resource: a read is
	// only permitted when some pattern matches the URI.
	AllowedResources []string
	DeniedResources  []string

	Permissions   map[Permission]bool
	SecurityLevel SecurityLevel

	RequestsPerMinute int
	RequireApproval   bool
	ApprovalTimeout   time.Duration
	AuditAll          bool
}

// HasPermission reports whether the policy grants p.
func (p *SecurityPolicy) HasPermission(perm Permission) bool {
	return p.Permissions != nil && p.Permissions[perm]
}

// AuditEntry is a typed view of one audit-trail record for callers that
// don't want to read through pkg/audit.AuditEvent directly.
type AuditEntry struct {
	Timestamp  time.Time
	Tenant     string
	Session    string
	Operation  string
	Server     string
	Identifier string // tool name or resource URI
	Outcome    string
	Reason     string
	DataHash   string
}
