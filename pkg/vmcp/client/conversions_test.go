// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests pin the conversion between the MCP SDK's capability types
// and the gateway's domain types, in particular that a tool's input
// schema survives the round trip intact enough for downstream schema
// validation.

func TestToolsFromSDK(t *testing.T) {
	t.Parallel()

	t.Run("converts tool with schema", func(t *testing.T) {
		t.Parallel()

		sdkTools := []mcp.Tool{
			{
				Name:        "create_issue",
				Description: "Create an issue",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]any{
						"title": map[string]any{"type": "string"},
					},
					Required: []string{"title"},
				},
			},
		}

		tools := ToolsFromSDK(sdkTools, "github")
		require.Len(t, tools, 1)
		assert.Equal(t, "create_issue", tools[0].Name)
		assert.Equal(t, "github", tools[0].ServerName)

		var schema map[string]any
		require.NoError(t, json.Unmarshal(tools[0].InputSchema, &schema))
		assert.Equal(t, "object", schema["type"])
		assert.Contains(t, schema, "properties")
		assert.Equal(t, []any{"title"}, schema["required"])
	})

	t.Run("empty listing converts to empty slice", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, ToolsFromSDK(nil, "srv"))
	})
}

func TestResourcesFromSDK(t *testing.T) {
	t.Parallel()

	sdkResources := []mcp.Resource{
		{URI: "file:///tmp/a.txt", Name: "a.txt", Description: "a file", MIMEType: "text/plain"},
	}

	resources := ResourcesFromSDK(sdkResources, "filesystem")
	require.Len(t, resources, 1)
	assert.Equal(t, "file:///tmp/a.txt", resources[0].URI)
	assert.Equal(t, "text/plain", resources[0].MimeType)
	assert.Equal(t, "filesystem", resources[0].ServerName)
}
