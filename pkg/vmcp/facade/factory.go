package facade

import (
	"context"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"

	"github.com/stacklok/mcp-gateway/pkg/audit"
	"github.com/stacklok/mcp-gateway/pkg/logger"
	"github.com/stacklok/mcp-gateway/pkg/vmcp"
	"github.com/stacklok/mcp-gateway/pkg/vmcp/client"
	"github.com/stacklok/mcp-gateway/pkg/vmcp/transport"
)

// NewClientFactory returns a client.ClientFactory that builds the MCP
// SDK client matching cfg.Transport: the SDK's own stdio and SSE clients
// where it has them, the gateway's WebSocket transport where it doesn't,
// and an in-process mock backend when one is requested explicitly. There
// is no implicit fallback for unrecognized kinds.
func NewClientFactory() client.ClientFactory {
	return func(cfg *vmcp.ServerConfig) (*mcpclient.Client, error) {
		switch cfg.Transport {
		case vmcp.TransportStdio:
			return mcpclient.NewStdioMCPClient(cfg.Command, envSlice(cfg.Env), cfg.Args...)
		case vmcp.TransportSSE:
			return mcpclient.NewSSEMCPClient(cfg.URL)
		case vmcp.TransportWebSocket:
			return mcpclient.NewClient(transport.NewWebSocket(cfg.URL)), nil
		case vmcp.TransportMock:
			return transport.NewMockBackend().Client()
		default:
			return nil, fmt.Errorf("unsupported transport kind: %s", cfg.Transport)
		}
	}
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	vars := make([]string, 0, len(env))
	for k, v := range env {
		vars = append(vars, fmt.Sprintf("%s=%s", k, v))
	}
	return vars
}

// stderrAuditSink builds a Connection stderr sink that records every
// line a stdio-backed child writes to stderr under the
// transport_stderr audit event type, falling back to a plain log line
// if recording itself fails or no sink was configured, so a broken
// audit writer can't take down the stderr drain goroutine.
func stderrAuditSink(sink *audit.Sink, tenant, server string) func(line string) {
	return func(line string) {
		if sink == nil {
			logger.Warnf("transport_stderr[%s/%s]: %s", tenant, server, line)
			return
		}
		if err := sink.RecordTransportStderr(context.Background(), tenant, server, line); err != nil {
			logger.Warnf("failed to audit transport_stderr[%s/%s]: %v (line: %s)", tenant, server, err, line)
		}
	}
}
