package main

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/bpmflow/ent"
	"github.com/codeready-toolchain/bpmflow/pkg/agentdispatch"
	"github.com/codeready-toolchain/bpmflow/pkg/config"
	"github.com/codeready-toolchain/bpmflow/pkg/dispatcher"
	"github.com/codeready-toolchain/bpmflow/pkg/handler"
	"github.com/codeready-toolchain/bpmflow/pkg/resolver"
	"github.com/codeready-toolchain/bpmflow/pkg/store"
)

// routerHandler is the single dispatcher.Handler the polling loop
// drives every claimed row through: it looks at a work item's
// agent_mode to decide whether the row belongs to the LLM-driven
// next-step path or the A2A agent-dispatch path, mirroring the two
// claim selectors the dispatcher already polls under.
type routerHandler struct {
	items  *store.WorkItemStore
	agents *config.AgentRegistry

	llmAdvisor   handler.NextStepAdvisor
	llmResolver  *resolver.Resolver
	llmDefs      handler.DefinitionLookup
	llmPublisher logPublisher

	dispatch *agentdispatch.Dispatcher
}

// logPublisher mirrors pkg/handler's unexported logPublisher interface
// so this package can hold a reference without importing an unexported
// type.
type logPublisher interface {
	PublishLog(ctx context.Context, itemID, text string) error
}

var _ dispatcher.Handler = (*routerHandler)(nil)

func (r *routerHandler) Handle(ctx context.Context, item *ent.WorkItem) error {
	if item.AgentMode == "a2a" || item.AgentMode == "A2A" {
		return r.handleAgentDispatch(ctx, item)
	}
	return r.handleLLM(ctx, item)
}

func (r *routerHandler) handleAgentDispatch(ctx context.Context, item *ent.WorkItem) error {
	agent, err := r.resolveAgent(item)
	if err != nil {
		return err
	}
	prevOutput, err := r.previousOutput(ctx, item)
	if err != nil {
		return err
	}
	_, err = r.dispatch.Dispatch(ctx, item.ProcInstID, item.TenantID, item.ActivityID, prevOutput, agent)
	return err
}

func (r *routerHandler) handleLLM(ctx context.Context, item *ent.WorkItem) error {
	perTenant := *r.llmResolver
	perTenant.TenantID = item.TenantID

	h := &handler.LLMHandler{
		Defs:      r.llmDefs,
		Items:     r.items,
		Advisor:   r.llmAdvisor,
		Resolver:  &perTenant,
		Store:     r.items,
		Publisher: r.llmPublisher,
	}
	return h.Handle(ctx, item)
}

// resolveAgent picks the dispatch target from the work item's first
// assignee (schema: assignees is [{name, endpoint}]), falling back to
// the agent registry entry of the same name for its tools endpoint.
func (r *routerHandler) resolveAgent(item *ent.WorkItem) (agentdispatch.Agent, error) {
	if len(item.Assignees) == 0 {
		return agentdispatch.Agent{}, fmt.Errorf("router: work item %s has no assignees for agent dispatch", item.ID)
	}
	first := item.Assignees[0]
	name, _ := first["name"].(string)
	url, _ := first["endpoint"].(string)

	agent := agentdispatch.Agent{Name: name, URL: url}
	if cfg, err := r.agents.Get(name); err == nil {
		agent.ToolsURL = cfg.ToolsEndpoint
		if agent.URL == "" {
			agent.URL = cfg.URL
		}
	}
	return agent, nil
}

// previousOutput merges the outputs of this item's immediate
// predecessor activities (reference_ids), keyed by activity id, the
// same input shape handler.Assemble builds field mappings from.
func (r *routerHandler) previousOutput(ctx context.Context, item *ent.WorkItem) (map[string]any, error) {
	out := make(map[string]any, len(item.ReferenceIds))
	for _, refActivityID := range item.ReferenceIds {
		prev, err := r.items.CurrentForActivity(ctx, item.ProcInstID, refActivityID)
		if err != nil {
			return nil, fmt.Errorf("router: load predecessor %s: %w", refActivityID, err)
		}
		if prev == nil {
			continue
		}
		out[refActivityID] = prev.Output
	}
	return out, nil
}
