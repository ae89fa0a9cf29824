// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stacklok/mcp-gateway/pkg/vmcp"
)

// ToolsFromSDK converts the SDK's tool listing into the gateway's domain
// type, tagging each entry with the server it came from. The input
// schema is re-serialized through a JSON round trip so downstream schema
// validation sees the same document the server advertised.
func ToolsFromSDK(tools []mcp.Tool, serverName string) []vmcp.Tool {
	converted := make([]vmcp.Tool, 0, len(tools))
	for _, tool := range tools {
		converted = append(converted, vmcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: marshalInputSchema(tool.InputSchema),
			ServerName:  serverName,
		})
	}
	return converted
}

func marshalInputSchema(schema mcp.ToolInputSchema) json.RawMessage {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	return data
}

// ResourcesFromSDK converts the SDK's resource listing into the
// gateway's domain type.
func ResourcesFromSDK(resources []mcp.Resource, serverName string) []vmcp.Resource {
	converted := make([]vmcp.Resource, 0, len(resources))
	for _, resource := range resources {
		converted = append(converted, vmcp.Resource{
			URI:         resource.URI,
			Name:        resource.Name,
			Description: resource.Description,
			MimeType:    resource.MIMEType,
			ServerName:  serverName,
		})
	}
	return converted
}
