// Package cache holds per-server capability snapshots: a lock-free-read
// view of a server's tools and resources, refreshed wholesale and
// deduplicated under concurrent misses.
package cache

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/stacklok/mcp-gateway/pkg/errors"
	"github.com/stacklok/mcp-gateway/pkg/vmcp"
)

// Snapshot is one immutable view of a server's capabilities, swapped in
// atomically on refresh so readers never block on a write.
type Snapshot struct {
	Tools       []vmcp.Tool
	Resources   []vmcp.Resource
	RefreshedAt time.Time
	Epoch       uint64
}

// Fetcher retrieves a fresh snapshot from the live connection, e.g. by
// issuing tools/list and resources/list round trips.
type Fetcher func(ctx context.Context) (*Snapshot, error)

// Cache holds the current snapshot for one server and collapses
// concurrent refreshes into a single in-flight call via
// golang.org/x/sync/singleflight. The snapshot is always replaced
// wholesale, never patched in place.
type Cache struct {
	key     string
	fetch   Fetcher
	group   singleflight.Group
	current atomic.Pointer[Snapshot]
}

// New constructs an empty cache for one server. fetch is invoked on
// every Refresh call (directly, or once per burst of concurrent
// Refresh calls).
func New(key string, fetch Fetcher) *Cache {
	return &Cache{key: key, fetch: fetch}
}

// Snapshot returns the current snapshot, or nil if never populated.
func (c *Cache) Snapshot() *Snapshot {
	return c.current.Load()
}

// Refresh fetches a new snapshot and swaps it in atomically. Concurrent
// callers during an in-flight refresh share its result instead of
// issuing redundant tools/list and resources/list calls.
func (c *Cache) Refresh(ctx context.Context) (*Snapshot, error) {
	result, err, _ := c.group.Do(c.key, func() (any, error) {
		snap, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.current.Store(snap)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Snapshot), nil
}

// Invalidate drops the current snapshot, forcing the next lookup to
// refresh. Used when a Connection reconnects and bumps its epoch: a
// cache entry from a prior epoch must not silently serve a stale
// capability list.
func (c *Cache) Invalidate() {
	c.current.Store(nil)
}

// Tool looks up a tool by name in the current snapshot, refreshing once
// on a miss before giving up.
func (c *Cache) Tool(ctx context.Context, name string) (*vmcp.Tool, error) {
	if snap := c.Snapshot(); snap != nil {
		if t := findTool(snap.Tools, name); t != nil {
			return t, nil
		}
	}
	snap, err := c.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	if t := findTool(snap.Tools, name); t != nil {
		return t, nil
	}
	return nil, errors.NewUnknownToolError("tool not found: "+name, nil)
}

// Resource looks up a resource by URI, with the same miss-then-refresh
// contract as Tool.
func (c *Cache) Resource(ctx context.Context, uri string) (*vmcp.Resource, error) {
	if snap := c.Snapshot(); snap != nil {
		if r := findResource(snap.Resources, uri); r != nil {
			return r, nil
		}
	}
	snap, err := c.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	if r := findResource(snap.Resources, uri); r != nil {
		return r, nil
	}
	return nil, errors.NewUnknownResourceError("resource not found: "+uri, nil)
}

func findTool(tools []vmcp.Tool, name string) *vmcp.Tool {
	for i := range tools {
		if tools[i].Name == name {
			return &tools[i]
		}
	}
	return nil
}

func findResource(resources []vmcp.Resource, uri string) *vmcp.Resource {
	for i := range resources {
		if resources[i].URI == uri {
			return &resources[i]
		}
	}
	return nil
}
