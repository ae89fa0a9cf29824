package policy

import (
	"fmt"

	cedar "github.com/cedar-policy/cedar-go"

	"github.com/stacklok/mcp-gateway/pkg/logger"
	"github.com/stacklok/mcp-gateway/pkg/vmcp"
)

// SecretGuard decides whether a tenant may invoke a Secret-tier tool or
// read a Secret-tier resource, backed by a Cedar policy evaluation so
// the highest tier always has a real decision procedure behind it.
type SecretGuard struct {
	policies *cedar.PolicySet
}

// NewSecretGuard parses a set of Cedar policy statements governing
// Secret-tier access. A typical statement:
//
//	permit(principal, action == Action::"invoke", resource)
//	when { context.tenant == "acme" && context.securityLevel != "secret" };
func NewSecretGuard(policyText string) (*SecretGuard, error) {
	ps, err := cedar.NewPolicySetFromBytes("secret-tier.cedar", []byte(policyText))
	if err != nil {
		return nil, fmt.Errorf("parsing secret-tier policy: %w", err)
	}
	return &SecretGuard{policies: ps}, nil
}

// Allow evaluates whether tenant may act on identifier (a tool name or
// resource URI) at the given security level. A nil guard denies every
// Secret-tier request and allows everything below it, so an unconfigured
// deployment fails closed at the highest tier.
func (g *SecretGuard) Allow(tenant, identifier string, level vmcp.SecurityLevel) bool {
	if level != vmcp.SecuritySecret {
		return true
	}
	if g == nil || g.policies == nil {
		logger.Warnf("no secret-tier policy configured; denying access to %s for tenant %s", identifier, tenant)
		return false
	}

	req := cedar.Request{
		Principal: cedar.NewEntityUID("Tenant", cedar.String(tenant)),
		Action:    cedar.NewEntityUID("Action", "invoke"),
		Resource:  cedar.NewEntityUID("Resource", cedar.String(identifier)),
		Context: cedar.NewRecord(cedar.RecordMap{
			"tenant":        cedar.String(tenant),
			"identifier":    cedar.String(identifier),
			"securityLevel": cedar.String(string(level)),
		}),
	}

	decision, _ := g.policies.IsAuthorized(cedar.EntityMap{}, req)
	return decision == cedar.Allow
}
