package facade

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/stacklok/mcp-gateway/pkg/errors"
	"github.com/stacklok/mcp-gateway/pkg/vmcp/approval"
)

// CallTool performs the full tools/call data-flow: policy check, rate
// limit, approval gate, capability-cache lookup with argument-schema
// validation, connection dispatch, and audit, in that order, so a denial
// at any earlier stage never sends a frame to the backend server.
func (f *Facade) CallTool(
	ctx context.Context, tenant, session, server, tool string, args map[string]any,
) (json.RawMessage, error) {
	start := time.Now()
	e, err := f.lookup(tenant, server)
	if err != nil {
		return nil, err
	}

	pol, err := f.policyFor(tenant, server)
	if err != nil {
		auditErr := f.recordToolCall(ctx, tenant, session, server, tool, args, failureOutcome(err), err.Error(), start)
		return nil, failClosed(err, auditErr)
	}

	if err := f.engine.ValidateToolAccess(pol, tool, pol.SecurityLevel); err != nil {
		auditErr := f.recordToolCall(ctx, tenant, session, server, tool, args, failureOutcome(err), err.Error(), start)
		return nil, failClosed(err, auditErr)
	}

	rlKey := ratelimitKey(tenant, server)
	if !f.limiter.Allow(rlKey, pol.RequestsPerMinute) {
		rlErr := errors.NewRateLimitedError(fmt.Sprintf("rate limit exceeded for %s/%s", tenant, server), nil)
		auditErr := f.recordToolCall(ctx, tenant, session, server, tool, args, failureOutcome(rlErr), rlErr.Error(), start)
		return nil, failClosed(rlErr, auditErr)
	}

	if pol.RequireApproval {
		req := approval.Request{Tenant: tenant, Server: server, Tool: tool, Args: args}
		if err := f.gate.RequestApproval(ctx, req, pol.ApprovalTimeout); err != nil {
			auditErr := f.recordToolCall(ctx, tenant, session, server, tool, args, failureOutcome(err), err.Error(), start)
			return nil, failClosed(err, auditErr)
		}
	}

	cachedTool, err := e.currentTool(ctx, tool)
	if err != nil {
		auditErr := f.recordToolCall(ctx, tenant, session, server, tool, args, failureOutcome(err), err.Error(), start)
		return nil, failClosed(err, auditErr)
	}

	if err := validateArgsAgainstSchema(cachedTool.InputSchema, args); err != nil {
		protoErr := errors.NewProtocolError("tool arguments failed schema validation", err)
		auditErr := f.recordToolCall(ctx, tenant, session, server, tool, args, failureOutcome(protoErr), protoErr.Error(), start)
		return nil, failClosed(protoErr, auditErr)
	}

	result, err := e.conn.CallTool(ctx, tool, args)
	if err != nil {
		auditErr := f.recordToolCall(ctx, tenant, session, server, tool, args, failureOutcome(err), err.Error(), start)
		return nil, failClosed(err, auditErr)
	}

	if auditErr := f.recordToolCall(ctx, tenant, session, server, tool, args, "success", "", start); auditErr != nil {
		return nil, failClosed(nil, auditErr)
	}
	return result, nil
}

// ReadResource performs the resources/read data-flow, the read-side
// analogue of CallTool. There is no approval gate on reads; only tool
// calls are gated.
func (f *Facade) ReadResource(ctx context.Context, tenant, session, server, uri string) (json.RawMessage, error) {
	start := time.Now()
	e, err := f.lookup(tenant, server)
	if err != nil {
		return nil, err
	}

	pol, err := f.policyFor(tenant, server)
	if err != nil {
		auditErr := f.recordResourceRead(ctx, tenant, session, server, uri, failureOutcome(err), err.Error(), start)
		return nil, failClosed(err, auditErr)
	}

	if err := f.engine.ValidateResourceAccess(pol, uri, pol.SecurityLevel); err != nil {
		auditErr := f.recordResourceRead(ctx, tenant, session, server, uri, failureOutcome(err), err.Error(), start)
		return nil, failClosed(err, auditErr)
	}

	rlKey := ratelimitKey(tenant, server)
	if !f.limiter.Allow(rlKey, pol.RequestsPerMinute) {
		rlErr := errors.NewRateLimitedError(fmt.Sprintf("rate limit exceeded for %s/%s", tenant, server), nil)
		auditErr := f.recordResourceRead(ctx, tenant, session, server, uri, failureOutcome(rlErr), rlErr.Error(), start)
		return nil, failClosed(rlErr, auditErr)
	}

	if _, err := e.currentResource(ctx, uri); err != nil {
		auditErr := f.recordResourceRead(ctx, tenant, session, server, uri, failureOutcome(err), err.Error(), start)
		return nil, failClosed(err, auditErr)
	}

	result, err := e.conn.ReadResource(ctx, uri)
	if err != nil {
		auditErr := f.recordResourceRead(ctx, tenant, session, server, uri, failureOutcome(err), err.Error(), start)
		return nil, failClosed(err, auditErr)
	}

	if auditErr := f.recordResourceRead(ctx, tenant, session, server, uri, "success", "", start); auditErr != nil {
		return nil, failClosed(nil, auditErr)
	}
	return result, nil
}

func ratelimitKey(tenant, server string) string { return tenant + "/" + server }

func failureOutcome(err error) string {
	if ferr, ok := err.(*errors.Error); ok {
		switch ferr.Type {
		case errors.ErrForbidden, errors.ErrRateLimited, errors.ErrApprovalDenied, errors.ErrApprovalTimeout:
			return "denied"
		}
	}
	return "error"
}

func (f *Facade) recordToolCall(
	ctx context.Context, tenant, session, server, tool string, args map[string]any, outcome, reason string, start time.Time,
) error {
	return f.sink.RecordToolCall(ctx, tenant, session, server, tool, args, outcome, reason, time.Since(start))
}

func (f *Facade) recordResourceRead(
	ctx context.Context, tenant, session, server, uri, outcome, reason string, start time.Time,
) error {
	return f.sink.RecordResourceRead(ctx, tenant, session, server, uri, outcome, reason, time.Since(start))
}

// validateArgsAgainstSchema checks args against a tool's cached
// inputSchema so malformed calls are rejected before they reach the
// wire. A nil/empty schema accepts anything.
func validateArgsAgainstSchema(schema json.RawMessage, args map[string]any) error {
	if len(schema) == 0 {
		return nil
	}
	schemaLoader := gojsonschema.NewBytesLoader(schema)
	docLoader := gojsonschema.NewGoLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("invalid schema or arguments: %w", err)
	}
	if !result.Valid() {
		return fmt.Errorf("arguments do not match tool schema: %v", result.Errors())
	}
	return nil
}
