// Package app provides the entry point for the gateway command-line
// application: a cobra root command with serve/validate/status/version
// subcommands and viper flag binding, kept a thin wrapper over the
// Client Facade rather than a surface of its own.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/mcp-gateway/pkg/audit"
	"github.com/stacklok/mcp-gateway/pkg/logger"
	"github.com/stacklok/mcp-gateway/pkg/vmcp"
	"github.com/stacklok/mcp-gateway/pkg/vmcp/approval"
	"github.com/stacklok/mcp-gateway/pkg/vmcp/config"
	"github.com/stacklok/mcp-gateway/pkg/vmcp/facade"
	"github.com/stacklok/mcp-gateway/pkg/vmcp/policy"
)

var rootCmd = &cobra.Command{
	Use:               "mcp-gateway",
	DisableAutoGenTag: true,
	Short:             "Multi-tenant MCP gateway - broker JSON-RPC traffic between agents and MCP servers",
	Long: `mcp-gateway is a multi-tenant broker standing between AI agents and the
external MCP tool/resource servers they use. It enforces per-tenant
policy, rate limiting, approval gating, and tamper-evident audit logging
over stdio, SSE, and WebSocket transports.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Errorf("error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		debug := viper.GetBool("debug")
		logger.Initialize(debug)
	},
}

// NewRootCmd creates the root command for the gateway CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	bindFlag(rootCmd, "debug")

	rootCmd.PersistentFlags().StringP("servers", "s", "", "Path to the server configuration YAML file")
	bindFlag(rootCmd, "servers")

	rootCmd.PersistentFlags().StringP("policies", "p", "", "Path to the security policy YAML file")
	bindFlag(rootCmd, "policies")

	rootCmd.PersistentFlags().String("secret-policy", "", "Path to a Cedar policy file governing secret-tier access")
	bindFlag(rootCmd, "secret-policy")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.SilenceUsage = true
	return rootCmd
}

func bindFlag(cmd *cobra.Command, name string) {
	if err := viper.BindPFlag(name, cmd.PersistentFlags().Lookup(name)); err != nil {
		logger.Errorf("error binding %s flag: %v", name, err)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Bring up every configured server connection and hold the gateway open",
		Long: `Load the server and policy configuration, connect every configured
backend MCP server across every tenant, and block until a shutdown
signal is received, keeping connections supervised and capability
caches warm.`,
		RunE: runServe,
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate server and policy configuration files",
		RunE:  runValidate,
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Connect to every configured server and report tenant connection summaries",
		Long: `Loads the configuration, brings up every server connection one time, and
prints each tenant's server names and connection states.`,
		RunE: runStatus,
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			logger.Infof("mcp-gateway version: %s", getVersion())
		},
	}
}

func getVersion() string {
	return "dev"
}

func loadDirectory() (*vmcp.TenantDirectory, error) {
	serversPath := viper.GetString("servers")
	policiesPath := viper.GetString("policies")
	if serversPath == "" || policiesPath == "" {
		return nil, fmt.Errorf("both --servers and --policies must be specified")
	}

	servers, err := config.LoadServers(serversPath)
	if err != nil {
		return nil, fmt.Errorf("loading servers: %w", err)
	}
	policies, err := config.LoadPolicies(policiesPath)
	if err != nil {
		return nil, fmt.Errorf("loading policies: %w", err)
	}

	dir := vmcp.NewTenantDirectory()
	for _, s := range servers {
		dir.PutServer(s)
	}
	for _, p := range policies {
		dir.PutPolicy(p)
	}
	return dir, nil
}

func buildFacade(dir *vmcp.TenantDirectory) (*facade.Facade, error) {
	var guard *policy.SecretGuard
	if secretPolicyPath := viper.GetString("secret-policy"); secretPolicyPath != "" {
		data, err := os.ReadFile(secretPolicyPath)
		if err != nil {
			return nil, fmt.Errorf("reading secret policy: %w", err)
		}
		guard, err = policy.NewSecretGuard(string(data))
		if err != nil {
			return nil, fmt.Errorf("parsing secret policy: %w", err)
		}
	}

	sink := audit.NewSink(os.Stdout, audit.DefaultConfig())
	var resolver approval.Resolver
	return facade.New(dir, facade.NewClientFactory(), sink, guard, resolver), nil
}

func tenantsOf(servers []*vmcp.ServerConfig) []string {
	seen := make(map[string]bool)
	var tenants []string
	for _, s := range servers {
		if !seen[s.Tenant] {
			seen[s.Tenant] = true
			tenants = append(tenants, s.Tenant)
		}
	}
	return tenants
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	serversPath := viper.GetString("servers")
	if serversPath == "" {
		return fmt.Errorf("no server configuration specified, use --servers flag")
	}
	servers, err := config.LoadServers(serversPath)
	if err != nil {
		return fmt.Errorf("loading servers: %w", err)
	}

	dir, err := loadDirectory()
	if err != nil {
		return err
	}
	f, err := buildFacade(dir)
	if err != nil {
		return err
	}

	for _, tenant := range tenantsOf(servers) {
		logger.Infof("connecting servers for tenant %s", tenant)
		if err := f.ConnectTenant(ctx, tenant); err != nil {
			logger.Errorf("failed to connect tenant %s: %v", tenant, err)
		}
	}

	logger.Info("gateway is up, awaiting shutdown signal")
	<-ctx.Done()
	logger.Info("shutdown signal received, disconnecting servers")

	for _, tenant := range tenantsOf(servers) {
		for _, name := range dir.ServersForTenant(tenant) {
			if err := f.DisconnectServer(context.Background(), tenant, name); err != nil {
				logger.Warnf("error disconnecting %s/%s: %v", tenant, name, err)
			}
		}
	}
	return nil
}

func runValidate(_ *cobra.Command, _ []string) error {
	serversPath := viper.GetString("servers")
	policiesPath := viper.GetString("policies")
	if serversPath == "" || policiesPath == "" {
		return fmt.Errorf("both --servers and --policies must be specified")
	}

	servers, err := config.LoadServers(serversPath)
	if err != nil {
		return fmt.Errorf("validating servers: %w", err)
	}
	policies, err := config.LoadPolicies(policiesPath)
	if err != nil {
		return fmt.Errorf("validating policies: %w", err)
	}

	logger.Infof("✓ %d server configuration(s) valid", len(servers))
	logger.Infof("✓ %d security polic(ies) valid", len(policies))
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	dir, err := loadDirectory()
	if err != nil {
		return err
	}

	serversPath := viper.GetString("servers")
	servers, err := config.LoadServers(serversPath)
	if err != nil {
		return err
	}

	sink := audit.NewSink(io.Discard, audit.DefaultConfig())
	var guard *policy.SecretGuard
	f := facade.New(dir, facade.NewClientFactory(), sink, guard, nil)

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, tenant := range tenantsOf(servers) {
		if err := f.ConnectTenant(connectCtx, tenant); err != nil {
			logger.Warnf("tenant %s: %v", tenant, err)
		}
		summary := f.TenantSummary(ctx, tenant)
		logger.Infof("tenant %s:", summary.Tenant)
		for _, s := range summary.Servers {
			logger.Infof("  %s: %s", s.Name, s.State)
		}
	}
	return nil
}
