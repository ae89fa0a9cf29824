// Package errors defines the gateway's error taxonomy. Every failure the
// Client Facade surfaces to a caller is one of these kinds, carrying a
// stable machine-readable Type and a human-readable Message.
package errors

import "fmt"

// Error kinds. These are the only "kind" strings the Client Facade ever
// returns; transport/multiplexer internals are translated into one of
// these at the facade boundary.
const (
	ErrForbidden       = "forbidden"
	ErrRateLimited     = "rate_limited"
	ErrApprovalDenied  = "approval_denied"
	ErrApprovalTimeout = "approval_timeout"
	ErrNotConnected    = "not_connected"
	ErrUnknownTool     = "unknown_tool"
	ErrUnknownResource = "unknown_resource"
	ErrTimeout         = "timeout"
	ErrCancelled       = "cancelled"
	ErrTransport       = "transport_error"
	ErrHandshakeFailed = "handshake_failed"
	ErrProtocol        = "protocol_error"
	ErrInternal        = "internal"
)

// Error is a structured, wrapped error carrying a stable kind.
type Error struct {
	Type    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError constructs an Error of the given kind.
func NewError(kind, message string, cause error) *Error {
	return &Error{Type: kind, Message: message, Cause: cause}
}

// NewForbiddenError reports a policy denial.
func NewForbiddenError(message string, cause error) *Error {
	return NewError(ErrForbidden, message, cause)
}

// NewRateLimitedError reports a rate-limiter denial (a Forbidden sub-reason).
func NewRateLimitedError(message string, cause error) *Error {
	return NewError(ErrRateLimited, message, cause)
}

// NewApprovalDeniedError reports an explicit approval-gate denial.
func NewApprovalDeniedError(message string, cause error) *Error {
	return NewError(ErrApprovalDenied, message, cause)
}

// NewApprovalTimeoutError reports an approval-gate deadline expiry.
func NewApprovalTimeoutError(message string, cause error) *Error {
	return NewError(ErrApprovalTimeout, message, cause)
}

// NewNotConnectedError reports no live Connection for the requested server.
func NewNotConnectedError(message string, cause error) *Error {
	return NewError(ErrNotConnected, message, cause)
}

// NewUnknownToolError reports a capability-cache miss for a tool name.
func NewUnknownToolError(message string, cause error) *Error {
	return NewError(ErrUnknownTool, message, cause)
}

// NewUnknownResourceError reports a capability-cache miss for a resource URI.
func NewUnknownResourceError(message string, cause error) *Error {
	return NewError(ErrUnknownResource, message, cause)
}

// NewTimeoutError reports a multiplexer deadline expiry.
func NewTimeoutError(message string, cause error) *Error {
	return NewError(ErrTimeout, message, cause)
}

// NewCancelledError reports caller-initiated cancellation.
func NewCancelledError(message string, cause error) *Error {
	return NewError(ErrCancelled, message, cause)
}

// NewTransportError reports a transport I/O failure.
func NewTransportError(message string, cause error) *Error {
	return NewError(ErrTransport, message, cause)
}

// NewHandshakeFailedError reports a rejected or timed-out initialize exchange.
func NewHandshakeFailedError(message string, cause error) *Error {
	return NewError(ErrHandshakeFailed, message, cause)
}

// NewProtocolError reports a malformed or unexpected JSON-RPC frame.
func NewProtocolError(message string, cause error) *Error {
	return NewError(ErrProtocol, message, cause)
}

// NewInternalError reports an unexpected invariant violation.
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternal, message, cause)
}
