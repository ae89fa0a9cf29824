package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "error with cause",
			err:  &Error{Type: ErrForbidden, Message: "denied", Cause: errors.New("underlying")},
			want: "forbidden: denied: underlying",
		},
		{
			name: "error without cause",
			err:  &Error{Type: ErrTimeout, Message: "deadline exceeded"},
			want: "timeout: deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("underlying")
	err := &Error{Type: ErrInternal, Message: "boom", Cause: cause}
	assert.Equal(t, cause, err.Unwrap())

	errNoCause := &Error{Type: ErrInternal, Message: "boom"}
	assert.Nil(t, errNoCause.Unwrap())
	assert.True(t, errors.Is(err, cause))
}

func TestNewError(t *testing.T) {
	t.Parallel()

	cause := errors.New("underlying")
	err := NewError(ErrForbidden, "denied", cause)
	assert.Equal(t, ErrForbidden, err.Type)
	assert.Equal(t, "denied", err.Message)
	assert.Equal(t, cause, err.Cause)
}

func TestConstructors(t *testing.T) {
	t.Parallel()

	cause := errors.New("cause")
	tests := []struct {
		name        string
		constructor func(string, error) *Error
		wantType    string
	}{
		{"NewForbiddenError", NewForbiddenError, ErrForbidden},
		{"NewRateLimitedError", NewRateLimitedError, ErrRateLimited},
		{"NewApprovalDeniedError", NewApprovalDeniedError, ErrApprovalDenied},
		{"NewApprovalTimeoutError", NewApprovalTimeoutError, ErrApprovalTimeout},
		{"NewNotConnectedError", NewNotConnectedError, ErrNotConnected},
		{"NewUnknownToolError", NewUnknownToolError, ErrUnknownTool},
		{"NewUnknownResourceError", NewUnknownResourceError, ErrUnknownResource},
		{"NewTimeoutError", NewTimeoutError, ErrTimeout},
		{"NewCancelledError", NewCancelledError, ErrCancelled},
		{"NewTransportError", NewTransportError, ErrTransport},
		{"NewHandshakeFailedError", NewHandshakeFailedError, ErrHandshakeFailed},
		{"NewProtocolError", NewProtocolError, ErrProtocol},
		{"NewInternalError", NewInternalError, ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.constructor("message", cause)
			assert.Equal(t, tt.wantType, err.Type)
			assert.Equal(t, "message", err.Message)
			assert.Equal(t, cause, err.Cause)
		})
	}
}
