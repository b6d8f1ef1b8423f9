// Package agent holds the small set of types that let the reasoning
// layer and the MCP tool layer agree on a tool call without either one
// importing the other: pkg/reasoning produces ToolCall values from a
// model's response, pkg/mcp's ToolExecutor runs them against real MCP
// servers and returns ToolResult values.
package agent

import "context"

// ToolExecutor abstracts tool/MCP execution for whatever is driving the
// reasoning loop for an activity. pkg/mcp.ToolExecutor is the only
// production implementation; tests may supply their own.
type ToolExecutor interface {
	// Execute runs a single tool call and returns the result. Errors
	// surfaced by the tool itself come back as a ToolResult with
	// IsError set, not as the Go error — the Go error return is
	// reserved for failures to even attempt the call.
	Execute(ctx context.Context, call ToolCall) (*ToolResult, error)

	// ListTools returns the tool definitions available for this
	// execution. Returns nil if no tools are configured.
	ListTools(ctx context.Context) ([]ToolDefinition, error)

	// Close releases any resources held for this execution (MCP
	// sessions, subprocesses).
	Close() error
}

// ToolDefinition describes a tool available to the model, in the
// "server.tool" namespaced form pkg/mcp produces.
type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema string // JSON Schema
}

// ToolCall represents a model's request to call a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON
}

// ToolResult represents the output of a tool execution.
type ToolResult struct {
	CallID  string // Matches the ToolCall.ID
	Name    string // Tool name (server.tool format)
	Content string // Tool output (text)
	IsError bool   // Whether the tool returned an error
}
