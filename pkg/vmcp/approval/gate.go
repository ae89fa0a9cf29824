// Package approval gates operations a SecurityPolicy marks as requiring
// explicit approval: a pluggable resolver, always raced against a
// per-policy timeout.
package approval

import (
	"context"
	"time"

	"github.com/stacklok/mcp-gateway/pkg/errors"
)

// Request describes one operation awaiting an approval decision.
type Request struct {
	Tenant string
	Server string
	Tool   string
	Args   map[string]any
}

// Resolver decides whether a Request is approved. Implementations must
// be safe to call concurrently; Gate does not serialize calls.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (approved bool, reason string, err error)
}

// AlwaysGrant is the default resolver: a demo/local-dev policy that
// approves everything instantly. It is an explicit, clearly-named
// choice, never an implicit fallback; production deployments should
// wire a real resolver.
type AlwaysGrant struct{}

// Resolve always approves.
func (AlwaysGrant) Resolve(context.Context, Request) (bool, string, error) {
	return true, "default demo policy: approval always granted", nil
}

// Gate enforces a required timeout around whatever Resolver a policy
// configures; a blocked caller always remains cancellable.
type Gate struct {
	resolver Resolver
}

// NewGate wraps a resolver. A nil resolver defaults to AlwaysGrant.
func NewGate(resolver Resolver) *Gate {
	if resolver == nil {
		resolver = AlwaysGrant{}
	}
	return &Gate{resolver: resolver}
}

// RequestApproval resolves req, racing the resolver against timeout.
// A non-positive timeout is treated as "no deadline beyond ctx".
func (g *Gate) RequestApproval(ctx context.Context, req Request, timeout time.Duration) error {
	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		approved bool
		reason   string
		err      error
	}
	resultCh := make(chan outcome, 1)
	go func() {
		approved, reason, err := g.resolver.Resolve(callCtx, req)
		resultCh <- outcome{approved, reason, err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return errors.NewInternalError("approval resolver failed", res.err)
		}
		if !res.approved {
			return errors.NewApprovalDeniedError(res.reason, nil)
		}
		return nil
	case <-callCtx.Done():
		return errors.NewApprovalTimeoutError("approval not resolved before deadline", callCtx.Err())
	}
}
