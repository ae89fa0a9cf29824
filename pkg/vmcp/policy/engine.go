// Package policy makes access-control decisions: pure functions over a
// (request, SecurityPolicy snapshot) pair, no I/O beyond the optional
// Cedar secret-tier check.
package policy

import (
	"github.com/stacklok/mcp-gateway/pkg/errors"
	"github.com/stacklok/mcp-gateway/pkg/vmcp"
)

// Engine evaluates a SecurityPolicy against requested operations. Deny
// always wins over allow; every decision is computed from a single
// policy snapshot.
type Engine struct {
	secrets *SecretGuard
}

// NewEngine constructs a policy engine. guard may be nil, in which case
// every Secret-tier request is denied (see SecretGuard.Allow).
func NewEngine(guard *SecretGuard) *Engine {
	return &Engine{secrets: guard}
}

// ValidateServerAccess checks whether the tenant may use the server at
// all, independent of any specific tool or resource. A nil policy
// denies access: an unconfigured server is not implicitly open.
// Secret-tier servers additionally pass through the SecretGuard.
func (e *Engine) ValidateServerAccess(policy *vmcp.SecurityPolicy) error {
	if policy == nil {
		return errors.NewForbiddenError("no security policy configured for server", nil)
	}
	if !e.secrets.Allow(policy.Tenant, policy.Server, policy.SecurityLevel) {
		return errors.NewForbiddenError("server requires secret-tier approval: "+policy.Server, nil)
	}
	return nil
}

// ValidateToolAccess checks whether tool may be called under policy.
// An empty AllowedTools set means "no allow-list filter", so only
// DeniedTools and an explicit non-empty AllowedTools miss can deny.
// Deliberately asymmetric with ValidateResourceAccess below.
func (e *Engine) ValidateToolAccess(policy *vmcp.SecurityPolicy, tool string, level vmcp.SecurityLevel) error {
	if err := e.ValidateServerAccess(policy); err != nil {
		return err
	}

	if policy.DeniedTools[tool] {
		return errors.NewForbiddenError("tool is explicitly denied: "+tool, nil)
	}
	if len(policy.AllowedTools) > 0 && !policy.AllowedTools[tool] {
		return errors.NewForbiddenError("tool is not in the allowed set: "+tool, nil)
	}
	if !e.secrets.Allow(policy.Tenant, tool, level) {
		return errors.NewForbiddenError("tool requires secret-tier approval: "+tool, nil)
	}
	return nil
}

// ValidateResourceAccess checks whether uri may be read under policy.
// Unlike tools, an empty AllowedResources set still denies everything:
// a resource is only readable when some allow pattern matches it,
// regardless of set cardinality.
func (e *Engine) ValidateResourceAccess(policy *vmcp.SecurityPolicy, uri string, level vmcp.SecurityLevel) error {
	if err := e.ValidateServerAccess(policy); err != nil {
		return err
	}

	if matchesAny(policy.DeniedResources, uri) {
		return errors.NewForbiddenError("resource is explicitly denied: "+uri, nil)
	}
	if !matchesAny(policy.AllowedResources, uri) {
		return errors.NewForbiddenError("resource does not match any allowed pattern: "+uri, nil)
	}
	if !e.secrets.Allow(policy.Tenant, uri, level) {
		return errors.NewForbiddenError("resource requires secret-tier approval: "+uri, nil)
	}
	return nil
}
