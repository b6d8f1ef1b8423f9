// Package resolver implements the Next-Step Resolver: a mostly-pure
// function over a decision payload and the in-memory instance/definition
// state, with side effects limited to a small, explicit set of
// persistence calls.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/bpmflow/pkg/blockfinder"
	"github.com/codeready-toolchain/bpmflow/pkg/definition"
	"github.com/codeready-toolchain/bpmflow/pkg/handler"
	"github.com/codeready-toolchain/bpmflow/pkg/observability"
	"github.com/codeready-toolchain/bpmflow/pkg/store"
)

// terminal activity ids that end a process.
var terminalIDs = map[string]bool{
	"endEvent":    true,
	"END_PROCESS": true,
	"end_event":   true,
}

// ScriptExecutor is the script-task collaborator: synchronous
// invocation of an external runner with the instance variables as
// environment. pkg/scriptexec, the implementation in this repository,
// runs the script as a plain subprocess without any sandbox.
type ScriptExecutor interface {
	Execute(ctx context.Context, code string, env map[string]string) (ScriptResult, error)
}

// ScriptResult is a single script-task invocation's outcome.
type ScriptResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Notifier is the external-customer email collaborator.
type Notifier interface {
	SendFormLink(ctx context.Context, to, subject, formURL string) error
}

// DefinitionLookup resolves a process definition by id.
type DefinitionLookup interface {
	Definition(ctx context.Context, procDefID string) (*definition.Definition, error)
}

// Resolver wires the pure frontier-computation logic to its
// persistence and collaborator dependencies.
type Resolver struct {
	Defs    DefinitionLookup
	Insts   *store.ProcInstStore
	Items   *store.WorkItemStore
	Chats   *store.ChatStore
	Scripts ScriptExecutor
	Notify  Notifier
	// TenantID is injected by the caller (the dispatcher's claimed
	// item), never inferred from the decision payload.
	TenantID string
	// BaseURL is the external-form link base, e.g.
	// "https://<tenant>.example.com/external-forms".
	BaseURL string
}

// Outcome summarizes what resolve did. Resolve returns only the error;
// the package's tests call the unexported resolve to assert on it.
type Outcome struct {
	InstanceID          string
	Frontier            []string
	MaterializedIDs     []string
	CannotProceedErrors []handler.ProceedError
}

// Resolve mints or loads the instance, merges field mappings, computes
// the next frontier, runs any script tasks, and persists the result.
func (r *Resolver) Resolve(ctx context.Context, d *handler.Decision) error {
	ctx, end := observability.StartSpan(ctx, "resolver.resolve")
	_, err := r.resolve(ctx, d)
	end(err)
	return err
}

func (r *Resolver) resolve(ctx context.Context, d *handler.Decision) (*Outcome, error) {
	def, err := r.Defs.Definition(ctx, d.ProcessDefinitionID)
	if err != nil {
		return nil, fmt.Errorf("resolver: load definition: %w", err)
	}

	// Step 1: create or load instance.
	inst, err := r.Insts.LoadOrCreate(ctx, store.MintOrLoadInput{
		InstanceID:   d.InstanceID,
		InstanceName: d.InstanceName,
		ProcDefID:    d.ProcessDefinitionID,
		TenantID:     r.TenantID,
		RoleBindings: roleBindingsMap(d.RoleBindings),
	})
	if err != nil {
		return nil, fmt.Errorf("resolver: load or create instance: %w", err)
	}

	// Step 2: merge field mappings into variables_data.
	if err := r.Insts.MergeVariables(ctx, inst, fieldMappingsMap(d.FieldMappings)); err != nil {
		return nil, fmt.Errorf("resolver: merge variables: %w", err)
	}

	// Step 3: compute the frontier.
	frontier := removeCompleted(inst.CurrentActivityIds, d.CompletedActivities)
	cannotProceed := []handler.ProceedError{}
	terminated := false

	for _, na := range d.NextActivities {
		if terminalIDs[na.NextActivityID] {
			frontier = nil
			terminated = true
			break
		}

		if gw := def.FindGatewayByID(na.NextActivityID); gw != nil {
			ok, proceedErr := r.evaluateJoin(ctx, def, inst.ID, gw)
			if !ok {
				cannotProceed = append(cannotProceed, proceedErr)
				continue
			}
			expanded := def.FindNextActivities(na.NextActivityID, false)
			for _, nr := range expanded {
				frontier = appendUnique(frontier, nr.ID)
			}
			continue
		}

		if na.Result == "IN_PROGRESS" {
			frontier = []string{na.NextActivityID}
		} else {
			frontier = appendUnique(frontier, na.NextActivityID)
		}
	}

	// Step 4: script tasks.
	if r.Scripts != nil {
		frontier, d = r.runScriptTasks(ctx, def, inst, frontier, d)
	}

	// Step 5: persist.
	materialized, err := r.persist(ctx, def, inst, frontier, d, cannotProceed)
	if err != nil {
		return nil, err
	}

	if !terminated {
		if err := r.Insts.SetFrontier(ctx, inst.ID, frontier); err != nil {
			return nil, fmt.Errorf("resolver: set frontier: %w", err)
		}
	} else {
		if err := r.Insts.SetFrontier(ctx, inst.ID, nil); err != nil {
			return nil, fmt.Errorf("resolver: clear frontier: %w", err)
		}
	}

	// Step 6 + 7 happen inside persist, per downstream activity.

	return &Outcome{
		InstanceID:          inst.ID,
		Frontier:            frontier,
		MaterializedIDs:     materialized,
		CannotProceedErrors: cannotProceed,
	}, nil
}

// evaluateJoin consults blockfinder's JoinPolicy before a payload entry
// downstream of a join is allowed to proceed: gather the statuses of
// the sibling block branches via blockfinder.FindBlock and check the
// policy table.
func (r *Resolver) evaluateJoin(ctx context.Context, def *definition.Definition, instanceID string, gw *definition.Gateway) (bool, handler.ProceedError) {
	if !strings.Contains(strings.ToLower(gw.Type), "gateway") {
		return true, handler.ProceedError{}
	}

	block, err := blockfinder.FindBlock(def, gw.ID)
	if err != nil || block == nil || len(block.BlockMembers) == 0 {
		// No discoverable join structure (e.g. a simple pass-through
		// gateway with a single incoming flow) — nothing to gate on.
		return true, handler.ProceedError{}
	}

	policy := blockfinder.JoinPolicy{GatewayType: gw.Type}
	var statuses []string
	for _, memberID := range block.BlockMembers {
		if def.FindGatewayByID(memberID) != nil {
			continue
		}
		row, err := r.Items.CurrentForActivity(ctx, instanceID, memberID)
		if err != nil || row == nil {
			continue
		}
		statuses = append(statuses, string(row.Status))
	}

	if policy.Proceed(statuses) {
		return true, handler.ProceedError{}
	}
	return false, handler.ProceedError{
		Type:   handler.ErrProceedConditionNotMet,
		Reason: fmt.Sprintf("join %s: sibling branches not in a proceed-eligible state %v", gw.ID, statuses),
	}
}

func removeCompleted(frontier []string, completed []handler.CompletedActivity) []string {
	if len(completed) == 0 {
		return append([]string(nil), frontier...)
	}
	done := make(map[string]bool, len(completed))
	for _, c := range completed {
		done[c.CompletedActivityID] = true
	}
	out := make([]string, 0, len(frontier))
	for _, id := range frontier {
		if !done[id] {
			out = append(out, id)
		}
	}
	return out
}

func appendUnique(list []string, id string) []string {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(list, id)
}

func fieldMappingsMap(mappings []handler.FieldMapping) map[string]any {
	out := make(map[string]any, len(mappings))
	for _, m := range mappings {
		out[m.Key] = m.Value
	}
	return out
}

func roleBindingsMap(bindings []handler.RoleBinding) map[string]any {
	out := make(map[string]any, len(bindings))
	for _, b := range bindings {
		out[b.Name] = map[string]any{
			"endpoint":       b.Endpoint,
			"resolutionRule": b.ResolutionRule,
		}
	}
	return out
}
