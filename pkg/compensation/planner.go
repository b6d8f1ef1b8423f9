// Package compensation implements the Compensation Planner: from
// the ordered event log of an instance up to a chosen activity,
// synthesize a reverse-action script and persist it keyed by
// (process definition, activity, tenant), reusing a cached artifact
// when one already exists for that key.
package compensation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codeready-toolchain/bpmflow/ent"
	"github.com/codeready-toolchain/bpmflow/ent/workitem"
	"github.com/codeready-toolchain/bpmflow/pkg/definition"
	"github.com/codeready-toolchain/bpmflow/pkg/observability"
	"github.com/codeready-toolchain/bpmflow/pkg/store"
)

// excludedTools are never included in the event log handed to the
// synthesizer: memory, human-in-the-loop, and rule-engine calls have no
// side effect worth undoing.
var excludedTools = map[string]bool{
	"mem0":       true,
	"memento":    true,
	"human_asked": true,
	"dmn_rule":   true,
}

// ToolEvent is one filtered, chronologically ordered event handed to
// the synthesizer.
type ToolEvent struct {
	Timestamp time.Time
	ToolName  string
	Args      map[string]any
}

// ToolIndex maps a tool name to the MCP server key that hosts it,
// derived from the tenant's MCP configuration. The planner only emits
// code using tools present in this map.
type ToolIndex map[string]string

// ToolIndexer builds the tool-to-server mapping for a tenant.
type ToolIndexer interface {
	Index(ctx context.Context, tenantID string) (ToolIndex, error)
}

// CompensationSynthesizer is the reasoning-layer collaborator that
// turns a filtered event log into a deterministic reverse script.
type CompensationSynthesizer interface {
	Synthesize(ctx context.Context, query string, events []ToolEvent, tools ToolIndex) (string, error)
}

// DefinitionLookup resolves a process definition by id.
type DefinitionLookup interface {
	Definition(ctx context.Context, procDefID string) (*definition.Definition, error)
}

// Planner wires the event log, the artifact cache, and the
// collaborators together.
type Planner struct {
	Defs        DefinitionLookup
	Events      *store.EventLogStore
	Artifacts   *store.CompensationStore
	Items       *store.WorkItemStore
	Synthesizer CompensationSynthesizer
	Tools       ToolIndexer
}

// Trigger takes the work item a rework or rollback targets, synthesizes
// (or reuses) its compensation artifact, and materializes a new
// IN_PROGRESS work item for the action runner.
func (p *Planner) Trigger(ctx context.Context, target *ent.WorkItem) (_ *ent.WorkItem, err error) {
	ctx, end := observability.StartSpan(ctx, "compensation.trigger")
	defer func() { end(err) }()

	artifact, err := p.Artifacts.Find(ctx, target.ProcDefID, target.ActivityID, target.TenantID)
	if err != nil {
		return nil, fmt.Errorf("compensation: find cached artifact: %w", err)
	}

	if artifact == nil {
		code, err := p.synthesize(ctx, target)
		if err != nil {
			return nil, err
		}
		if code != "" {
			if err := p.Artifacts.Upsert(ctx, target.ProcDefID, target.ActivityID, target.TenantID, code); err != nil {
				return nil, fmt.Errorf("compensation: persist artifact: %w", err)
			}
		}
	}

	userID, username := resolveAssignee(target)

	row, err := p.Items.Create(ctx, store.NewInput{
		ProcInstID: target.ProcInstID,
		ProcDefID:  target.ProcDefID,
		ActivityID: target.ActivityID,
		TenantID:   target.TenantID,
		Status:     workitem.StatusIN_PROGRESS,
		AgentOrch:  "crewai-action",
		UserID:     userID,
		Username:   username,
		Log:        "Compensation Handling...",
	})
	if err != nil {
		return nil, fmt.Errorf("compensation: create compensation work item: %w", err)
	}
	return row, nil
}

// synthesize fetches the event log up to target, filters it, and asks
// the reasoning layer for a reverse script. An empty event log (nothing
// to undo) returns "" without invoking the synthesizer.
func (p *Planner) synthesize(ctx context.Context, target *ent.WorkItem) (string, error) {
	def, err := p.Defs.Definition(ctx, target.ProcDefID)
	if err != nil {
		return "", fmt.Errorf("compensation: load definition: %w", err)
	}

	scope := map[string]bool{target.ActivityID: true}
	for _, a := range def.FindPrevActivities(target.ActivityID) {
		scope[a.ID] = true
	}

	rows, err := p.Items.TodoList(ctx, target.ProcInstID)
	if err != nil {
		return "", fmt.Errorf("compensation: list instance work items: %w", err)
	}
	var todoIDs []string
	for _, row := range rows {
		if scope[row.ActivityID] {
			todoIDs = append(todoIDs, row.ID)
		}
	}

	events, err := p.Events.ForTodoIDs(ctx, todoIDs)
	if err != nil {
		return "", fmt.Errorf("compensation: fetch event log: %w", err)
	}

	filtered := filterToolEvents(events)
	if len(filtered) == 0 {
		return "", nil
	}

	tools, err := p.Tools.Index(ctx, target.TenantID)
	if err != nil {
		return "", fmt.Errorf("compensation: build tool index: %w", err)
	}

	query := ""
	if target.Query != nil {
		query = *target.Query
	}
	code, err := p.Synthesizer.Synthesize(ctx, query, filtered, tools)
	if err != nil {
		return "", fmt.Errorf("compensation: synthesize reverse script: %w", err)
	}
	return code, nil
}

// filterToolEvents keeps only finished action-tool calls, dropping
// memory/human/dmn tools and read-only execute_sql calls.
func filterToolEvents(rows []*ent.EventLog) []ToolEvent {
	var out []ToolEvent
	for _, row := range rows {
		if row.EventType != "tool_usage_finished" {
			continue
		}
		if row.CrewType == nil || *row.CrewType != "action" {
			continue
		}

		toolName, _ := row.Data["tool_name"].(string)
		if toolName == "" || excludedTools[toolName] {
			continue
		}

		args, _ := row.Data["args"].(map[string]any)
		if toolName == "execute_sql" {
			if query, ok := args["query"].(string); ok && strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") {
				continue
			}
		}

		out = append(out, ToolEvent{
			Timestamp: row.Timestamp,
			ToolName:  toolName,
			Args:      args,
		})
	}
	return out
}

// resolveAssignee carries the original activity's assignee onto the
// compensation work item, falling back to the denormalized user_id/
// username when no structured assignee list is present.
func resolveAssignee(target *ent.WorkItem) (userID, username string) {
	if len(target.Assignees) > 0 {
		if endpoint, ok := target.Assignees[0]["endpoint"].(string); ok && endpoint != "" {
			return endpoint, endpoint
		}
	}
	userID2 := ""
	username2 := ""
	if target.UserID != nil {
		userID2 = *target.UserID
	}
	if target.Username != nil {
		username2 = *target.Username
	}
	return userID2, username2
}
