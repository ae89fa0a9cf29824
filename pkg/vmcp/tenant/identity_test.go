package tenant

import (
	"encoding/json"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromClaims_UsesTenantClaim(t *testing.T) {
	t.Parallel()

	identity, err := FromClaims(jwt.MapClaims{"tenant": "acme", "session": "sess-1"}, "tok")
	require.NoError(t, err)
	assert.Equal(t, "acme", identity.Tenant)
	assert.Equal(t, "sess-1", identity.Session)
}

func TestFromClaims_FallsBackToSub(t *testing.T) {
	t.Parallel()

	identity, err := FromClaims(jwt.MapClaims{"sub": "acme-user"}, "tok")
	require.NoError(t, err)
	assert.Equal(t, "acme-user", identity.Tenant)
}

func TestFromClaims_MissingTenantAndSubErrors(t *testing.T) {
	t.Parallel()

	_, err := FromClaims(jwt.MapClaims{"name": "no tenant here"}, "tok")
	assert.Error(t, err)
}

func TestIdentity_StringRedactsToken(t *testing.T) {
	t.Parallel()

	identity := &Identity{Tenant: "acme", Token: "super-secret"}
	assert.NotContains(t, identity.String(), "super-secret")
}

func TestIdentity_MarshalJSONRedactsToken(t *testing.T) {
	t.Parallel()

	identity := &Identity{Tenant: "acme", Token: "super-secret"}
	data, err := json.Marshal(identity)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "super-secret")
	assert.Contains(t, string(data), "REDACTED")
}

func TestIdentity_MarshalJSONNilIsNull(t *testing.T) {
	t.Parallel()

	var identity *Identity
	data, err := json.Marshal(identity)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}
