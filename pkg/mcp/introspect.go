package mcp

import (
	"context"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/codeready-toolchain/bpmflow/pkg/agent"
)

// ToolIntrospector connects to an agent's own advertised MCP endpoint —
// separate from the tenant's configured MCP server registry used by the
// Compensation Planner's ToolIndex — and lists its tools over SSE before
// a work item is dispatched to it. Built on mark3labs/mcp-go rather than
// the modelcontextprotocol SDK client used elsewhere in this package,
// since it talks to an arbitrary external agent's endpoint instead of a
// server this tenant configured and owns.
type ToolIntrospector struct{}

// NewToolIntrospector returns a ToolIntrospector.
func NewToolIntrospector() *ToolIntrospector {
	return &ToolIntrospector{}
}

// ListTools connects to url, lists its tools, and disconnects. An empty
// url yields an empty, error-free result: tool introspection is optional
// per agent.
func (t *ToolIntrospector) ListTools(ctx context.Context, url string) ([]agent.ToolDefinition, error) {
	if url == "" {
		return nil, nil
	}

	c, err := mcpclient.NewSSEMCPClient(url)
	if err != nil {
		return nil, fmt.Errorf("mcp: introspect %s: create client: %w", url, err)
	}
	defer c.Close()

	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("mcp: introspect %s: start transport: %w", url, err)
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: "bpmflow", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := c.Initialize(ctx, initReq); err != nil {
		return nil, fmt.Errorf("mcp: introspect %s: initialize: %w", url, err)
	}

	resp, err := c.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcp: introspect %s: list tools: %w", url, err)
	}

	defs := make([]agent.ToolDefinition, 0, len(resp.Tools))
	for _, tl := range resp.Tools {
		defs = append(defs, agent.ToolDefinition{
			Name:        tl.Name,
			Description: tl.Description,
		})
	}
	return defs, nil
}
