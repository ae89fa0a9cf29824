// Package tenant resolves and propagates the calling tenant's identity:
// which principal is making a request, so the Facade can look up the
// right SecurityPolicy and the Audit Sink can attribute the right
// subject.
package tenant

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated caller of a gateway request: a tenant id
// plus an optional session id distinguishing concurrent agent sessions
// under the same tenant.
type Identity struct {
	// Tenant is the unique tenant identifier (from the 'tenant' or 'sub'
	// claim, required).
	Tenant string

	// Session distinguishes concurrent callers within a tenant. Empty
	// when the caller didn't present one.
	Session string

	// Claims preserves the full JWT claim set for consumers that need
	// more than tenant/session. The approval gate's CEL resolver does not
	// see it; its expressions get only tool, server and args.
	Claims map[string]any

	// Token is the raw bearer token, redacted by String/MarshalJSON.
	Token string
}

// String redacts the token to keep it out of logs.
func (i *Identity) String() string {
	if i == nil {
		return "<nil>"
	}
	return fmt.Sprintf("Identity{Tenant:%q, Session:%q}", i.Tenant, i.Session)
}

// MarshalJSON redacts the token for the same reason String does.
func (i *Identity) MarshalJSON() ([]byte, error) {
	if i == nil {
		return []byte("null"), nil
	}
	type safeIdentity struct {
		Tenant  string         `json:"tenant"`
		Session string         `json:"session,omitempty"`
		Claims  map[string]any `json:"claims,omitempty"`
		Token   string         `json:"token,omitempty"`
	}

	token := i.Token
	if token != "" {
		token = "REDACTED"
	}
	return json.Marshal(&safeIdentity{
		Tenant:  i.Tenant,
		Session: i.Session,
		Claims:  i.Claims,
		Token:   token,
	})
}

// FromClaims builds an Identity from decoded JWT claims. It requires a
// 'tenant' claim, falling back to 'sub' when 'tenant' is absent so a
// plain OIDC-style token still maps onto a tenant id.
func FromClaims(claims jwt.MapClaims, token string) (*Identity, error) {
	tenantID, ok := claims["tenant"].(string)
	if !ok || tenantID == "" {
		tenantID, ok = claims["sub"].(string)
	}
	if !ok || tenantID == "" {
		return nil, errors.New("missing or invalid 'tenant' (or 'sub') claim")
	}

	identity := &Identity{
		Tenant: tenantID,
		Claims: claims,
		Token:  token,
	}
	if session, ok := claims["session"].(string); ok {
		identity.Session = session
	}
	return identity, nil
}
