package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/mcp-gateway/pkg/vmcp"
)

func TestSecretGuard_NonSecretAlwaysAllowed(t *testing.T) {
	t.Parallel()
	var g *SecretGuard
	assert.True(t, g.Allow("acme", "search", vmcp.SecurityPublic))
}

func TestSecretGuard_NilGuardDeniesSecret(t *testing.T) {
	t.Parallel()
	var g *SecretGuard
	assert.False(t, g.Allow("acme", "search", vmcp.SecuritySecret))
}

func TestSecretGuard_PermitPolicyGrants(t *testing.T) {
	t.Parallel()
	g, err := NewSecretGuard(`
		permit(principal, action, resource)
		when { context.tenant == "acme" };
	`)
	require.NoError(t, err)

	assert.True(t, g.Allow("acme", "search", vmcp.SecuritySecret))
	assert.False(t, g.Allow("other-tenant", "search", vmcp.SecuritySecret))
}

func TestSecretGuard_ForbidPolicyDenies(t *testing.T) {
	t.Parallel()
	g, err := NewSecretGuard(`forbid(principal, action, resource);`)
	require.NoError(t, err)

	assert.False(t, g.Allow("acme", "search", vmcp.SecuritySecret))
}

func TestSecretGuard_InvalidPolicyErrors(t *testing.T) {
	t.Parallel()
	_, err := NewSecretGuard(`not a cedar policy`)
	assert.Error(t, err)
}
