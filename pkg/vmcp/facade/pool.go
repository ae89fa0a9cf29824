package facade

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/mcp-gateway/pkg/vmcp"
	"github.com/stacklok/mcp-gateway/pkg/vmcp/cache"
	"github.com/stacklok/mcp-gateway/pkg/vmcp/client"
)

// entry bundles everything the Facade tracks for one (tenant, server)
// pair: its connection, supervisor, and capability cache.
type entry struct {
	cfg        *vmcp.ServerConfig
	conn       *client.Connection
	supervisor *client.Supervisor
	cache      *cache.Cache
}

// currentTool and currentResource enforce the epoch invariant: a Tool or
// Resource handle is only valid for the Connection epoch that produced
// it. A reconnect bumps the epoch, so a snapshot
// fetched under a prior epoch is stale even though it's still the most
// recent one the cache has; invalidating it forces the miss-then-refresh
// path in pkg/vmcp/cache to pull a fresh list from the new connection
// instead of silently answering from pre-drop data.
func (e *entry) currentTool(ctx context.Context, name string) (*vmcp.Tool, error) {
	if snap := e.cache.Snapshot(); snap != nil && snap.Epoch != e.conn.Epoch() {
		e.cache.Invalidate()
	}
	return e.cache.Tool(ctx, name)
}

func (e *entry) currentResource(ctx context.Context, uri string) (*vmcp.Resource, error) {
	if snap := e.cache.Snapshot(); snap != nil && snap.Epoch != e.conn.Epoch() {
		e.cache.Invalidate()
	}
	return e.cache.Resource(ctx, uri)
}

// startAll brings up every server's Connection concurrently via
// errgroup, so a tenant with N backend servers doesn't pay N sequential
// handshake round trips at startup (golang.org/x/sync/errgroup, wired
// here rather than in pkg/vmcp/client since this is the one place the
// gateway genuinely needs a join-all barrier over heterogeneous
// servers).
func startAll(ctx context.Context, entries []*entry) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		e := e
		g.Go(func() error {
			return e.supervisor.Run(gctx)
		})
	}
	return g.Wait()
}
