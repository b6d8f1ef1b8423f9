package mcp

import (
	"context"
	"strings"

	"github.com/codeready-toolchain/bpmflow/pkg/compensation"
	"github.com/codeready-toolchain/bpmflow/pkg/config"
)

// ToolIndex builds the compensation planner's tool-to-server map by
// connecting to every configured server and listing its tools. If the
// client cannot be created, or listing fails or returns no tools, it
// falls back to a heuristic index with a single entry: send_email_tool,
// mapped to a server whose id contains "mail" (which covers "gmail"), or
// to another configured server when none does. No other tool is listed
// in that fallback. Server ids come from a map, so which server is
// picked among several candidates is not fixed.
type ToolIndex struct {
	factory  *ClientFactory
	registry *config.MCPServerRegistry
}

// NewToolIndex returns a compensation.ToolIndexer backed by the given
// registry.
func NewToolIndex(factory *ClientFactory, registry *config.MCPServerRegistry) *ToolIndex {
	return &ToolIndex{factory: factory, registry: registry}
}

var _ compensation.ToolIndexer = (*ToolIndex)(nil)

// Index implements compensation.ToolIndexer.
func (t *ToolIndex) Index(ctx context.Context, tenantID string) (compensation.ToolIndex, error) {
	servers := t.registry.GetAll()
	if len(servers) == 0 {
		return compensation.ToolIndex{}, nil
	}

	serverIDs := make([]string, 0, len(servers))
	for id := range servers {
		serverIDs = append(serverIDs, id)
	}

	client, err := t.factory.CreateClient(ctx, serverIDs)
	if err != nil {
		return t.heuristicIndex(serverIDs), nil
	}
	defer client.Close()

	byServer, err := client.ListAllTools(ctx)
	if err != nil || len(byServer) == 0 {
		return t.heuristicIndex(serverIDs), nil
	}

	index := make(compensation.ToolIndex)
	for serverID, tools := range byServer {
		for _, tool := range tools {
			index[tool.Name] = serverID
		}
	}
	return index, nil
}

// heuristicIndex is used when a tenant's servers cannot be introspected
// live (offline server, transport error): it maps send_email_tool to a
// server that looks like a mail server and lists no other tool.
func (t *ToolIndex) heuristicIndex(serverIDs []string) compensation.ToolIndex {
	if len(serverIDs) == 0 {
		return compensation.ToolIndex{}
	}
	fallback := serverIDs[0]
	mailServer := fallback
	for _, id := range serverIDs {
		lower := strings.ToLower(id)
		if strings.Contains(lower, "gmail") || strings.Contains(lower, "mail") {
			mailServer = id
			break
		}
	}
	return compensation.ToolIndex{
		"send_email_tool": mailServer,
	}
}
