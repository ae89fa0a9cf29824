// Package config loads and validates the YAML documents that configure
// the gateway: per-tenant server locators and security policies. Field
// names are stable wire contracts; unmarshaling uses gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/mcp-gateway/pkg/vmcp"
)

// ServerDocument is the on-disk shape of one backend server entry.
type ServerDocument struct {
	Name           string            `yaml:"name"`
	Tenant         string            `yaml:"tenant"`
	Transport      string            `yaml:"transport"`
	Command        string            `yaml:"command,omitempty"`
	Args           []string          `yaml:"args,omitempty"`
	Env            map[string]string `yaml:"env,omitempty"`
	URL            string            `yaml:"url,omitempty"`
	RequestTimeout string            `yaml:"requestTimeout,omitempty"`
	MaxRetries     int               `yaml:"maxRetries,omitempty"`
}

// PolicyDocument is the on-disk shape of one security policy entry.
type PolicyDocument struct {
	Tenant            string   `yaml:"tenant"`
	Server            string   `yaml:"server"`
	AllowedTools      []string `yaml:"allowedTools,omitempty"`
	DeniedTools       []string `yaml:"deniedTools,omitempty"`
	AllowedResources  []string `yaml:"allowedResources,omitempty"`
	DeniedResources   []string `yaml:"deniedResources,omitempty"`
	Permissions       []string `yaml:"permissions,omitempty"`
	SecurityLevel     string   `yaml:"securityLevel,omitempty"`
	RequestsPerMinute int      `yaml:"requestsPerMinute,omitempty"`
	RequireApproval   bool     `yaml:"requireApproval,omitempty"`
	ApprovalTimeout   string   `yaml:"approvalTimeout,omitempty"`
	AuditAll          bool     `yaml:"auditAll,omitempty"`
}

// ServersFile is the top-level document loaded from a servers.yaml.
type ServersFile struct {
	Servers []ServerDocument `yaml:"servers"`
}

// PoliciesFile is the top-level document loaded from a policies.yaml.
type PoliciesFile struct {
	Policies []PolicyDocument `yaml:"policies"`
}

// LoadServers reads and validates a servers YAML file.
func LoadServers(path string) ([]*vmcp.ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading servers file: %w", err)
	}

	var doc ServersFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing servers file: %w", err)
	}

	configs := make([]*vmcp.ServerConfig, 0, len(doc.Servers))
	for _, entry := range doc.Servers {
		cfg, err := entry.toServerConfig()
		if err != nil {
			return nil, fmt.Errorf("server %q: %w", entry.Name, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// LoadPolicies reads and validates a policies YAML file.
func LoadPolicies(path string) ([]*vmcp.SecurityPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policies file: %w", err)
	}

	var doc PoliciesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing policies file: %w", err)
	}

	policies := make([]*vmcp.SecurityPolicy, 0, len(doc.Policies))
	for _, entry := range doc.Policies {
		policy, err := entry.toSecurityPolicy()
		if err != nil {
			return nil, fmt.Errorf("policy for %s/%s: %w", entry.Tenant, entry.Server, err)
		}
		policies = append(policies, policy)
	}
	return policies, nil
}

func (d ServerDocument) toServerConfig() (*vmcp.ServerConfig, error) {
	if d.Name == "" || d.Tenant == "" {
		return nil, fmt.Errorf("name and tenant are required")
	}

	transport := vmcp.TransportKind(d.Transport)
	switch transport {
	case vmcp.TransportStdio, vmcp.TransportSSE, vmcp.TransportWebSocket, vmcp.TransportMock:
	default:
		return nil, fmt.Errorf("unknown transport kind %q", d.Transport)
	}

	timeout := 30 * time.Second
	if d.RequestTimeout != "" {
		parsed, err := time.ParseDuration(d.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid requestTimeout: %w", err)
		}
		timeout = parsed
	}

	maxRetries := d.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return &vmcp.ServerConfig{
		Name:           d.Name,
		Tenant:         d.Tenant,
		Transport:      transport,
		Command:        d.Command,
		Args:           d.Args,
		Env:            d.Env,
		URL:            d.URL,
		RequestTimeout: timeout,
		MaxRetries:     maxRetries,
	}, nil
}

// defaultMaxRetries caps the Connection Supervisor's reconnect attempts
// when a servers.yaml entry doesn't set maxRetries explicitly.
const defaultMaxRetries = 5

func (d PolicyDocument) toSecurityPolicy() (*vmcp.SecurityPolicy, error) {
	if d.Tenant == "" || d.Server == "" {
		return nil, fmt.Errorf("tenant and server are required")
	}

	level := vmcp.SecurityPublic
	if d.SecurityLevel != "" {
		level = vmcp.SecurityLevel(d.SecurityLevel)
	}

	approvalTimeout := 30 * time.Second
	if d.ApprovalTimeout != "" {
		parsed, err := time.ParseDuration(d.ApprovalTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid approvalTimeout: %w", err)
		}
		approvalTimeout = parsed
	}

	perms := make(map[vmcp.Permission]bool, len(d.Permissions))
	for _, p := range d.Permissions {
		perms[vmcp.Permission(p)] = true
	}

	return &vmcp.SecurityPolicy{
		Tenant:            d.Tenant,
		Server:            d.Server,
		AllowedTools:      toSet(d.AllowedTools),
		DeniedTools:       toSet(d.DeniedTools),
		AllowedResources:  d.AllowedResources,
		DeniedResources:   d.DeniedResources,
		Permissions:       perms,
		SecurityLevel:     level,
		RequestsPerMinute: d.RequestsPerMinute,
		RequireApproval:   d.RequireApproval,
		ApprovalTimeout:   approvalTimeout,
		AuditAll:          d.AuditAll,
	}, nil
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
