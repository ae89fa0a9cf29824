// Package catalog names the discovery/installation collaborator that
// lives outside this gateway: a registry of installable MCP server
// packages, distinct from the TenantDirectory of servers a tenant has
// already configured. Only the interfaces a future implementation would
// satisfy are declared here, so the Facade's extension points are
// visible without pulling in a marketplace client this build doesn't
// ship.
package catalog

import "context"

// ServerSpec describes one installable MCP server package in an external
// catalog (name, category, required env vars, etc.), deliberately left
// opaque here since no implementation of Parser exists in this build.
type ServerSpec struct {
	Name        string
	Category    string
	Description string
}

// Parser discovers installable server specs from a catalog source (a
// registry file, a remote index). No implementation ships in this
// build.
type Parser interface {
	Parse(ctx context.Context, source string) ([]ServerSpec, error)
}

// Installer materializes a ServerSpec into a running, tenant-scoped
// ServerConfig. No implementation ships in this build.
type Installer interface {
	Install(ctx context.Context, spec ServerSpec, tenant string) error
}
