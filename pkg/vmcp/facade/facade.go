// Package facade is the gateway's public API: the single entry point the
// rest of the system (and ultimately the AI agent) calls, wiring the
// policy engine, rate limiter, approval gate, capability cache,
// connection supervisor, and the MCP SDK client behind each connection
// together, and auditing every operation.
package facade

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stacklok/mcp-gateway/pkg/audit"
	"github.com/stacklok/mcp-gateway/pkg/errors"
	"github.com/stacklok/mcp-gateway/pkg/logger"
	"github.com/stacklok/mcp-gateway/pkg/vmcp"
	"github.com/stacklok/mcp-gateway/pkg/vmcp/approval"
	vcache "github.com/stacklok/mcp-gateway/pkg/vmcp/cache"
	"github.com/stacklok/mcp-gateway/pkg/vmcp/client"
	"github.com/stacklok/mcp-gateway/pkg/vmcp/policy"
	"github.com/stacklok/mcp-gateway/pkg/vmcp/ratelimit"
)

// Facade is the gateway's public API surface.
type Facade struct {
	dir           *vmcp.TenantDirectory
	clientFactory client.ClientFactory
	sink          *audit.Sink
	engine        *policy.Engine
	limiter       *ratelimit.Limiter
	gate          *approval.Gate

	mu      sync.RWMutex
	entries map[string]*entry
}

// New constructs a Facade. guard may be nil (every Secret-tier request
// is then denied); resolver may be nil (defaults to approval.AlwaysGrant).
func New(
	dir *vmcp.TenantDirectory,
	factory client.ClientFactory,
	sink *audit.Sink,
	guard *policy.SecretGuard,
	resolver approval.Resolver,
) *Facade {
	return &Facade{
		dir:           dir,
		clientFactory: factory,
		sink:          sink,
		engine:        policy.NewEngine(guard),
		limiter:       ratelimit.NewLimiter(),
		gate:          approval.NewGate(resolver),
		entries:       make(map[string]*entry),
	}
}

func key(tenant, server string) string { return tenant + "/" + server }

// ConnectServer brings up a Connection for (tenant, server) if one isn't
// already tracked, and blocks for the initial handshake attempt. The
// server-access policy check runs before any transport is built, so a
// tenant without a policy for the server fails fast with Forbidden and
// no child process or socket is ever created.
func (f *Facade) ConnectServer(ctx context.Context, tenant, server string) error {
	cfg, err := f.dir.Server(tenant, server)
	if err != nil {
		return errors.NewNotConnectedError("no server configuration registered", err)
	}
	if err := f.checkServerAccess(ctx, tenant, server); err != nil {
		return err
	}

	k := key(tenant, server)
	f.mu.Lock()
	if _, exists := f.entries[k]; exists {
		f.mu.Unlock()
		return nil
	}
	e := &entry{cfg: cfg, conn: client.NewConnection(cfg, f.clientFactory)}
	e.supervisor = client.NewSupervisor(e.conn, cfg)
	e.cache = vcache.New(k, f.fetcherFor(e))
	e.conn.SetNotificationHandler(f.notificationHandler(e))
	e.conn.SetStderrSink(stderrAuditSink(f.sink, tenant, server))
	f.entries[k] = e
	f.mu.Unlock()

	if err := e.supervisor.Run(ctx); err != nil {
		return err
	}
	if e.conn.State() != vmcp.StateReady {
		opErr := errors.NewNotConnectedError(fmt.Sprintf("server %s/%s did not become ready", tenant, server), nil)
		auditErr := f.auditServerEvent(ctx, audit.EventTypeServerConnect, tenant, server, audit.OutcomeFailure)
		return failClosed(opErr, auditErr)
	}
	f.warmCache(ctx, e)
	return failClosed(nil, f.auditServerEvent(ctx, audit.EventTypeServerConnect, tenant, server, audit.OutcomeSuccess))
}

// checkServerAccess runs the policy engine's server-access decision for
// (tenant, server) before a connection is established, auditing the
// denial.
func (f *Facade) checkServerAccess(ctx context.Context, tenant, server string) error {
	pol, _ := f.dir.Policy(tenant, server)
	if err := f.engine.ValidateServerAccess(pol); err != nil {
		auditErr := f.auditServerEvent(ctx, audit.EventTypeServerConnect, tenant, server, audit.OutcomeDenied)
		return failClosed(err, auditErr)
	}
	return nil
}

// notificationHandler routes a server-initiated notification to the
// audit trail and discards it. A capability-change advertisement
// additionally invalidates the capability cache so the next read
// refetches. Audit-write failures are logged rather than propagated:
// there is no caller on a notification path to fail closed against.
func (f *Facade) notificationHandler(e *entry) client.NotificationHandler {
	return func(method string, _ json.RawMessage) {
		if strings.Contains(method, "list_changed") || strings.Contains(method, "capabilities_changed") {
			e.cache.Invalidate()
		}
		event := audit.NewAuditEvent(audit.EventTypeServerNotification,
			audit.EventSource{Type: audit.SourceTypeLocal, Value: audit.ComponentGateway},
			audit.OutcomeSuccess, map[string]string{audit.SubjectKeyTenant: e.cfg.Tenant}, "")
		event.WithTarget(map[string]string{
			audit.TargetKeyType: audit.TargetTypeServer,
			audit.TargetKeyName: e.cfg.Name,
		})
		event.WithDataFromString(fmt.Sprintf(`{"method":%q}`, method))
		if err := f.sink.Record(context.Background(), event); err != nil {
			logger.Warnf("failed to audit notification %q from %s/%s: %v", method, e.cfg.Tenant, e.cfg.Name, err)
		}
	}
}

// warmCache pulls the first capability snapshot right after the
// handshake so the first ListTools call answers from cache.
// Best effort: the connection is already Ready, so a failed warm-up just
// leaves the cold-cache refresh path to the first reader.
func (f *Facade) warmCache(ctx context.Context, e *entry) {
	if _, err := e.cache.Refresh(ctx); err != nil {
		logger.Warnf("initial capability refresh for %s/%s failed: %v", e.cfg.Tenant, e.cfg.Name, err)
	}
}

// ConnectTenant brings up every server configured for tenant
// concurrently (pool.go's startAll), rather than paying N sequential
// handshake round trips one ConnectServer call at a time.
func (f *Facade) ConnectTenant(ctx context.Context, tenant string) error {
	names := f.dir.ServersForTenant(tenant)

	for _, name := range names {
		if err := f.checkServerAccess(ctx, tenant, name); err != nil {
			return err
		}
	}

	newEntries := make([]*entry, 0, len(names))
	f.mu.Lock()
	for _, name := range names {
		k := key(tenant, name)
		if _, exists := f.entries[k]; exists {
			continue
		}
		cfg, err := f.dir.Server(tenant, name)
		if err != nil {
			continue
		}
		e := &entry{cfg: cfg, conn: client.NewConnection(cfg, f.clientFactory)}
		e.supervisor = client.NewSupervisor(e.conn, cfg)
		e.cache = vcache.New(k, f.fetcherFor(e))
		e.conn.SetNotificationHandler(f.notificationHandler(e))
		e.conn.SetStderrSink(stderrAuditSink(f.sink, tenant, name))
		f.entries[k] = e
		newEntries = append(newEntries, e)
	}
	f.mu.Unlock()

	if err := startAll(ctx, newEntries); err != nil {
		return err
	}
	for _, e := range newEntries {
		outcome := audit.OutcomeSuccess
		if e.conn.State() != vmcp.StateReady {
			outcome = audit.OutcomeFailure
		} else {
			f.warmCache(ctx, e)
		}
		if err := f.auditServerEvent(ctx, audit.EventTypeServerConnect, tenant, e.cfg.Name, outcome); err != nil {
			return failClosed(nil, err)
		}
	}
	return nil
}

func (f *Facade) fetcherFor(e *entry) vcache.Fetcher {
	return func(ctx context.Context) (*vcache.Snapshot, error) {
		tools, err := e.conn.ListTools(ctx)
		if err != nil {
			return nil, err
		}
		resources, err := e.conn.ListResources(ctx)
		if err != nil {
			return nil, err
		}

		return &vcache.Snapshot{
			Tools:       tools,
			Resources:   resources,
			RefreshedAt: time.Now(),
			Epoch:       e.conn.Epoch(),
		}, nil
	}
}

// DisconnectServer tears down and forgets (tenant, server)'s connection.
func (f *Facade) DisconnectServer(_ context.Context, tenant, server string) error {
	k := key(tenant, server)
	f.mu.Lock()
	e, ok := f.entries[k]
	delete(f.entries, k)
	f.mu.Unlock()
	if !ok {
		return nil
	}
	e.supervisor.Stop()
	return failClosed(nil, f.auditServerEvent(context.Background(), audit.EventTypeServerDisconnect, tenant, server, audit.OutcomeSuccess))
}

func (f *Facade) lookup(tenant, server string) (*entry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.entries[key(tenant, server)]
	if !ok {
		return nil, errors.NewNotConnectedError(fmt.Sprintf("no connection for %s/%s", tenant, server), nil)
	}
	return e, nil
}

// ListTools returns the cached tool list for (tenant, server), refreshing
// on a cold cache. An empty server name fans out across every connected
// server for the tenant.
func (f *Facade) ListTools(ctx context.Context, tenant, server string) ([]vmcp.Tool, error) {
	if server == "" {
		names, err := f.connectedServers(tenant)
		if err != nil {
			return nil, err
		}
		var all []vmcp.Tool
		for _, name := range names {
			tools, err := f.ListTools(ctx, tenant, name)
			if err != nil {
				return nil, err
			}
			all = append(all, tools...)
		}
		return all, nil
	}

	e, err := f.lookup(tenant, server)
	if err != nil {
		return nil, err
	}
	snap := e.cache.Snapshot()
	if snap == nil {
		snap, err = e.cache.Refresh(ctx)
		if err != nil {
			return nil, err
		}
	}
	if err := f.auditServerEvent(ctx, audit.EventTypeToolsList, tenant, server, audit.OutcomeSuccess); err != nil {
		return nil, failClosed(nil, err)
	}
	return snap.Tools, nil
}

// ListResources returns the cached resource list for (tenant, server).
// An empty server name fans out like ListTools.
func (f *Facade) ListResources(ctx context.Context, tenant, server string) ([]vmcp.Resource, error) {
	if server == "" {
		names, err := f.connectedServers(tenant)
		if err != nil {
			return nil, err
		}
		var all []vmcp.Resource
		for _, name := range names {
			resources, err := f.ListResources(ctx, tenant, name)
			if err != nil {
				return nil, err
			}
			all = append(all, resources...)
		}
		return all, nil
	}

	e, err := f.lookup(tenant, server)
	if err != nil {
		return nil, err
	}
	snap := e.cache.Snapshot()
	if snap == nil {
		snap, err = e.cache.Refresh(ctx)
		if err != nil {
			return nil, err
		}
	}
	if err := f.auditServerEvent(ctx, audit.EventTypeResourcesList, tenant, server, audit.OutcomeSuccess); err != nil {
		return nil, failClosed(nil, err)
	}
	return snap.Resources, nil
}

// auditServerEvent records a server-scoped audit event and, under a
// fail-closed sink configuration, returns the write error rather than
// swallowing it: auditability outranks availability, so a caller must
// treat a failed audit write as an operation failure.
func (f *Facade) auditServerEvent(ctx context.Context, eventType, tenant, server, outcome string) error {
	event := audit.NewAuditEvent(eventType, audit.EventSource{Type: audit.SourceTypeLocal, Value: audit.ComponentGateway},
		outcome, map[string]string{audit.SubjectKeyTenant: tenant}, "")
	event.WithTarget(map[string]string{audit.TargetKeyType: audit.TargetTypeServer, audit.TargetKeyName: server})
	return f.sink.Record(ctx, event)
}

// RefreshCapabilities forces a fresh tools/list + resources/list round
// trip, bypassing the cache. An empty server name refreshes every
// connected server for the tenant.
func (f *Facade) RefreshCapabilities(ctx context.Context, tenant, server string) error {
	if server == "" {
		names, err := f.connectedServers(tenant)
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := f.RefreshCapabilities(ctx, tenant, name); err != nil {
				return err
			}
		}
		return nil
	}

	e, err := f.lookup(tenant, server)
	if err != nil {
		return err
	}
	_, refreshErr := e.cache.Refresh(ctx)
	outcome := audit.OutcomeSuccess
	if refreshErr != nil {
		outcome = audit.OutcomeFailure
	}
	auditErr := f.auditServerEvent(ctx, audit.EventTypeCapabilityRefresh, tenant, server, outcome)
	return failClosed(refreshErr, auditErr)
}

// ServerStatus is the per-server status report: connection state, last
// successful liveness proof, and the cached capability counts.
type ServerStatus struct {
	State         vmcp.ConnectionState
	LastPing      time.Time
	ToolCount     int
	ResourceCount int
}

// ServerStatus reports the current status of (tenant, server)'s
// connection. Capability counts come from the current cache snapshot and
// are zero while the cache is cold.
func (f *Facade) ServerStatus(_ context.Context, tenant, server string) (ServerStatus, error) {
	e, err := f.lookup(tenant, server)
	if err != nil {
		return ServerStatus{}, err
	}
	status := ServerStatus{State: e.conn.State(), LastPing: e.conn.LastPing()}
	if snap := e.cache.Snapshot(); snap != nil {
		status.ToolCount = len(snap.Tools)
		status.ResourceCount = len(snap.Resources)
	}
	return status, nil
}

// connectedServers lists the tenant's currently tracked server names in
// a stable order, for the optional-name fan-out paths.
func (f *Facade) connectedServers(tenant string) ([]string, error) {
	f.mu.RLock()
	var names []string
	for _, e := range f.entries {
		if e.cfg.Tenant == tenant {
			names = append(names, e.cfg.Name)
		}
	}
	f.mu.RUnlock()
	if len(names) == 0 {
		return nil, errors.NewNotConnectedError("no connected servers for tenant "+tenant, nil)
	}
	sort.Strings(names)
	return names, nil
}

// TenantSummary reports every server a tenant has configured and its
// live connection state, an introspection view one level up from the
// per-server ServerStatus.
type TenantSummary struct {
	Tenant  string
	Servers []ServerSummary
}

// ServerSummary is one server's entry within a TenantSummary.
type ServerSummary struct {
	Name  string
	State vmcp.ConnectionState
}

// TenantSummary builds a snapshot of every server configured for tenant.
func (f *Facade) TenantSummary(_ context.Context, tenant string) TenantSummary {
	names := f.dir.ServersForTenant(tenant)
	summary := TenantSummary{Tenant: tenant, Servers: make([]ServerSummary, 0, len(names))}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, name := range names {
		state := vmcp.StateIdle
		if e, ok := f.entries[key(tenant, name)]; ok {
			state = e.conn.State()
		}
		summary.Servers = append(summary.Servers, ServerSummary{Name: name, State: state})
	}
	return summary
}

func (f *Facade) policyFor(tenant, server string) (*vmcp.SecurityPolicy, error) {
	p, ok := f.dir.Policy(tenant, server)
	if !ok {
		return nil, errors.NewForbiddenError(fmt.Sprintf("no security policy for %s/%s", tenant, server), nil)
	}
	return p, nil
}

// failClosed combines an operation's own outcome with an audit-write
// outcome. Auditability outranks availability: a failed audit write must
// fail the operation even when the operation itself otherwise succeeded,
// so auditErr always wins when non-nil.
func failClosed(opErr, auditErr error) error {
	if auditErr == nil {
		return opErr
	}
	logger.Errorf("audit sink failed, failing operation closed: %v", auditErr)
	if opErr != nil {
		return errors.NewInternalError(fmt.Sprintf("audit sink failed to record event (operation outcome: %v)", opErr), auditErr)
	}
	return errors.NewInternalError("audit sink failed to record event; operation aborted", auditErr)
}
