// Package agentdispatch implements the Agent Dispatcher: the
// bridge between a work item claimed for A2A orchestration and an
// external agent channel, handling request construction, the outbound
// call, and response normalization, each step retried independently.
package agentdispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/bpmflow/ent"
	"github.com/codeready-toolchain/bpmflow/ent/workitem"
	"github.com/codeready-toolchain/bpmflow/pkg/agent"
	"github.com/codeready-toolchain/bpmflow/pkg/store"
)

// maxAttempts is the retry ceiling for each of the three substeps
// (request build, channel send, response normalize): three tries each,
// matching the original polling service's per-step retry loop.
const maxAttempts = 3

// Agent is one target the work item's role resolved to.
type Agent struct {
	Name string
	URL  string

	// ToolsURL is the agent's own MCP introspection endpoint, if it
	// advertises one. Empty skips introspection entirely.
	ToolsURL string
}

// ToolDescriber lists the tools an agent advertises over its own MCP
// endpoint, ahead of building the request sent to it.
type ToolDescriber interface {
	ListTools(ctx context.Context, url string) ([]agent.ToolDefinition, error)
}

// AgentResult is the normalized shape every agent response is coerced
// into before it reaches chat history and the work item's output.
type AgentResult struct {
	HTML      string
	TableData []map[string]any
}

// AgentRequestBuilder turns the prior activities' outputs plus the
// current work item into the text sent to the external agent.
type AgentRequestBuilder interface {
	BuildRequest(ctx context.Context, previousOutput map[string]any, item *ent.WorkItem) (string, error)
}

// AgentChannel delivers a request to the external agent and returns
// its raw response.
type AgentChannel interface {
	Send(ctx context.Context, agentURL, procInstID, requestText string, item *ent.WorkItem) (any, error)
}

// AgentResponseNormalizer coerces a raw agent response into the
// {html, table_data} shape the rest of the engine expects.
type AgentResponseNormalizer interface {
	Normalize(ctx context.Context, raw any) (AgentResult, error)
}

// Dispatcher wires a work item's agent hand-off together.
type Dispatcher struct {
	Items    *store.WorkItemStore
	Chats    *store.ChatStore
	Requests AgentRequestBuilder
	Channel  AgentChannel
	Response AgentResponseNormalizer

	// Introspect lists an agent's advertised tools before a request is
	// built, if the agent declares a ToolsURL. Nil disables
	// introspection entirely, matching pre-introspection behavior.
	Introspect ToolDescriber
}

// Dispatch implements handle_workitem_with_agent: resolve the current
// work item for the activity, run the three substeps, each with its
// own retry budget and its own progress chat message, and land the
// final result as a SUBMITTED work item with its output set. Any
// substep exhausting its retries collapses the work item to DONE with
// an error log rather than leaving it claimed forever.
func (d *Dispatcher) Dispatch(ctx context.Context, procInstID, tenantID, activityID string, prevOutput map[string]any, agent Agent) (*AgentResult, error) {
	item, err := d.Items.CurrentForActivity(ctx, procInstID, activityID)
	if err != nil {
		return nil, fmt.Errorf("agentdispatch: load work item for %s/%s: %w", procInstID, activityID, err)
	}
	if item == nil {
		return nil, fmt.Errorf("agentdispatch: no work item found for %s/%s", procInstID, activityID)
	}

	d.chatSystem(ctx, procInstID, tenantID, fmt.Sprintf("'%s' is starting the work...", agent.Name))

	if d.Introspect != nil && agent.ToolsURL != "" {
		tools, err := d.Introspect.ListTools(ctx, agent.ToolsURL)
		if err != nil {
			d.chatSystem(ctx, procInstID, tenantID, fmt.Sprintf("could not list '%s''s tools: %v", agent.Name, err))
		} else if len(tools) > 0 {
			names := make([]string, 0, len(tools))
			for _, t := range tools {
				names = append(names, t.Name)
			}
			d.chatSystem(ctx, procInstID, tenantID, fmt.Sprintf("'%s' advertises tools: %s", agent.Name, strings.Join(names, ", ")))
		}
	}

	requestText, err := retryN(func() (string, error) {
		return d.Requests.BuildRequest(ctx, prevOutput, item)
	})
	if err != nil {
		d.fail(ctx, item, tenantID, fmt.Sprintf("agent request generation failed for activity %s: %v", activityID, err))
		return nil, err
	}

	d.chatSystem(ctx, procInstID, tenantID, fmt.Sprintf("sending a message to '%s'...", agent.Name))
	rawResponse, err := retryN(func() (any, error) {
		return d.Channel.Send(ctx, agent.URL, procInstID, requestText, item)
	})
	if err != nil {
		d.fail(ctx, item, tenantID, fmt.Sprintf("agent dispatch failed for activity %s: %v", activityID, err))
		return nil, err
	}

	d.chatSystem(ctx, procInstID, tenantID, fmt.Sprintf("processing the response from '%s'...", agent.Name))
	result, err := retryN(func() (AgentResult, error) {
		return d.Response.Normalize(ctx, rawResponse)
	})
	if err != nil {
		d.fail(ctx, item, tenantID, fmt.Sprintf("agent response processing failed for activity %s: %v", activityID, err))
		return nil, err
	}

	if err := d.Items.SetOutput(ctx, item.ID, map[string]any{
		"html":       result.HTML,
		"table_data": result.TableData,
	}); err != nil {
		return nil, fmt.Errorf("agentdispatch: set output for %s: %w", item.ID, err)
	}
	if _, err := d.Items.UpsertStatus(ctx, store.NewInput{
		ProcInstID: procInstID,
		ProcDefID:  item.ProcDefID,
		ActivityID: activityID,
		TenantID:   tenantID,
		Status:     workitem.StatusSUBMITTED,
	}); err != nil {
		return nil, fmt.Errorf("agentdispatch: submit %s: %w", item.ID, err)
	}
	if err := d.Items.Release(ctx, item.ID); err != nil {
		return nil, fmt.Errorf("agentdispatch: release consumer on %s: %w", item.ID, err)
	}

	d.chatSystem(ctx, procInstID, tenantID, fmt.Sprintf("Here are the results from '%s'.", agent.Name))
	d.chatAgentResult(ctx, procInstID, tenantID, agent.Name, result)

	return &result, nil
}

// retryN runs fn up to maxAttempts times, returning the last error if
// every attempt fails.
func retryN[T any](fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	return zero, lastErr
}

func (d *Dispatcher) fail(ctx context.Context, item *ent.WorkItem, tenantID, reason string) {
	_ = d.Items.RecordFailure(ctx, store.FailInput{
		ItemID:      item.ID,
		Retry:       item.Retry + maxAttempts,
		MarkDone:    true,
		ErrorDetail: reason,
	})
}

func (d *Dispatcher) chatSystem(ctx context.Context, procInstID, tenantID, content string) {
	_ = d.Chats.AppendSystemMessage(ctx, procInstID, tenantID, map[string]any{
		"role":    "system",
		"content": content,
	})
}

func (d *Dispatcher) chatAgentResult(ctx context.Context, procInstID, tenantID, agentName string, result AgentResult) {
	contentType := "text"
	if result.HTML != "" {
		contentType = "html"
	}
	_ = d.Chats.AppendSystemMessage(ctx, procInstID, tenantID, map[string]any{
		"role":        "agent",
		"name":        fmt.Sprintf("[A2A call] %s results", agentName),
		"content":     fmt.Sprintf("Results from %s.", agentName),
		"jsonContent": result.TableData,
		"htmlContent": result.HTML,
		"contentType": contentType,
	})
}
