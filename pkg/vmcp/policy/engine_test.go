package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stacklok/mcp-gateway/pkg/vmcp"
)

func TestValidateServerAccess_NilPolicyDenies(t *testing.T) {
	t.Parallel()
	e := NewEngine(nil)
	assert.Error(t, e.ValidateServerAccess(nil))
}

func TestValidateServerAccess_SecretTierWithoutGuardDenies(t *testing.T) {
	t.Parallel()
	e := NewEngine(nil)
	policy := &vmcp.SecurityPolicy{Tenant: "acme", Server: "vault", SecurityLevel: vmcp.SecuritySecret}
	assert.Error(t, e.ValidateServerAccess(policy))
}

func TestValidateToolAccess_EmptyAllowSetPermitsByDefault(t *testing.T) {
	t.Parallel()
	e := NewEngine(nil)
	policy := &vmcp.SecurityPolicy{Tenant: "acme", Server: "srv1"}

	assert.NoError(t, e.ValidateToolAccess(policy, "anything", vmcp.SecurityPublic))
}

func TestValidateToolAccess_NonEmptyAllowSetMissDenies(t *testing.T) {
	t.Parallel()
	e := NewEngine(nil)
	policy := &vmcp.SecurityPolicy{
		AllowedTools: map[string]bool{"search": true},
	}

	assert.NoError(t, e.ValidateToolAccess(policy, "search", vmcp.SecurityPublic))
	assert.Error(t, e.ValidateToolAccess(policy, "delete", vmcp.SecurityPublic))
}

func TestValidateToolAccess_DeniedToolAlwaysDenies(t *testing.T) {
	t.Parallel()
	e := NewEngine(nil)
	policy := &vmcp.SecurityPolicy{
		AllowedTools: map[string]bool{"delete": true},
		DeniedTools:  map[string]bool{"delete": true},
	}

	assert.Error(t, e.ValidateToolAccess(policy, "delete", vmcp.SecurityPublic))
}

func TestValidateResourceAccess_EmptyAllowSetDeniesEverything(t *testing.T) {
	t.Parallel()
	e := NewEngine(nil)
	policy := &vmcp.SecurityPolicy{}

	assert.Error(t, e.ValidateResourceAccess(policy, "file:///etc/passwd", vmcp.SecurityPublic))
}

func TestValidateResourceAccess_GlobMatchPermits(t *testing.T) {
	t.Parallel()
	e := NewEngine(nil)
	policy := &vmcp.SecurityPolicy{
		AllowedResources: []string{"file:///data/*"},
	}

	assert.NoError(t, e.ValidateResourceAccess(policy, "file:///data/report.csv", vmcp.SecurityPublic))
	assert.Error(t, e.ValidateResourceAccess(policy, "file:///etc/passwd", vmcp.SecurityPublic))
}

func TestValidateResourceAccess_DeniedPatternOverridesAllow(t *testing.T) {
	t.Parallel()
	e := NewEngine(nil)
	policy := &vmcp.SecurityPolicy{
		AllowedResources: []string{"file:///data/*"},
		DeniedResources:  []string{"file:///data/secret*"},
	}

	assert.Error(t, e.ValidateResourceAccess(policy, "file:///data/secret.csv", vmcp.SecurityPublic))
}

func TestValidateToolAccess_SecretTierWithoutGuardDenies(t *testing.T) {
	t.Parallel()
	e := NewEngine(nil)
	policy := &vmcp.SecurityPolicy{}

	assert.Error(t, e.ValidateToolAccess(policy, "anything", vmcp.SecuritySecret))
}
