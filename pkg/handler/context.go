package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/bpmflow/ent"
	"github.com/codeready-toolchain/bpmflow/pkg/definition"
	"github.com/codeready-toolchain/bpmflow/pkg/store"
)

// workItemFinder is the store subset context assembly needs, kept
// narrow so tests can supply an in-memory fake instead of a real DB.
type workItemFinder interface {
	CurrentForActivity(ctx context.Context, procInstID, activityID string) (*ent.WorkItem, error)
}

var _ workItemFinder = (*store.WorkItemStore)(nil)

// Assemble builds the NextStepAdvisor context for item: resolves its
// activity's inputData references, the conditionData of every gateway
// directly downstream of it, the current output, and the assignee
// list.
func Assemble(ctx context.Context, def *definition.Definition, item *ent.WorkItem, items workItemFinder) (Context, error) {
	c := Context{
		InstanceID: item.ProcInstID,
		ActivityID: item.ActivityID,
	}

	activity := def.FindActivityByID(item.ActivityID)
	if activity == nil {
		return c, fmt.Errorf("handler: assemble context: unknown activity %q", item.ActivityID)
	}

	inputData, err := resolveFieldRefs(ctx, def, items, item.ProcInstID, item.TenantID, activity.InputData)
	if err != nil {
		return c, err
	}
	c.InputData = inputData

	c.ConditionData = make(map[string]map[string]map[string]any)
	for _, seq := range def.FindSequences(&item.ActivityID, nil) {
		gw := def.FindGatewayByID(seq.Target)
		if gw == nil || len(gw.ConditionData) == 0 {
			continue
		}
		data, err := resolveFieldRefs(ctx, def, items, item.ProcInstID, item.TenantID, gw.ConditionData)
		if err != nil {
			return c, err
		}
		c.ConditionData[gw.ID] = data
	}

	if item.Output != nil {
		c.CurrentOutput = item.Output
	}

	if item.UserID != nil && *item.UserID != "" {
		c.Assignees = ResolveAssignees(*item.UserID)
	}

	return c, nil
}

// resolveFieldRefs resolves a list of "formId.fieldKey" references by
// reading the nested value from the current work item for that form's
// activity in the same instance (CurrentForActivity: the latest row by
// updated_at, rework_count), grouping results back into
// {formId: {field: value}}. The row's status is not checked, so a later
// non-DONE row for the activity is read in place of an earlier DONE one.
func resolveFieldRefs(ctx context.Context, def *definition.Definition, items workItemFinder, procInstID, tenantID string, refs []string) (map[string]map[string]any, error) {
	_ = tenantID
	out := make(map[string]map[string]any)
	for _, ref := range refs {
		formID, fieldID, ok := splitFieldRef(ref)
		if !ok {
			continue
		}
		activityID := formActivityID(def, formID)

		row, err := items.CurrentForActivity(ctx, procInstID, activityID)
		if err != nil {
			return nil, fmt.Errorf("handler: resolve field ref %q: %w", ref, err)
		}
		if row == nil || row.Output == nil {
			continue
		}
		form, ok := row.Output[formID].(map[string]any)
		if !ok {
			continue
		}
		value, ok := form[fieldID]
		if !ok {
			continue
		}
		if out[formID] == nil {
			out[formID] = make(map[string]any)
		}
		out[formID][fieldID] = value
	}
	return out, nil
}

// splitFieldRef splits "formId.fieldKey" into its two parts.
func splitFieldRef(ref string) (formID, fieldID string, ok bool) {
	i := strings.IndexByte(ref, '.')
	if i < 0 {
		return "", "", false
	}
	return ref[:i], ref[i+1:], true
}

// formActivityID derives the owning activity id of a form id, mirroring
// the Python source's `form_id.replace("_form", "").replace(f"{defId}_",
// "")`. Degrades to the bare form id if the definition doesn't carry
// enough context to strip a prefix.
func formActivityID(def *definition.Definition, formID string) string {
	id := strings.TrimSuffix(formID, "_form")
	if def != nil && def.ID != "" {
		id = strings.TrimPrefix(id, def.ID+"_")
	}
	return id
}

// ResolveAssignees splits a comma-joined user id and classifies each
// part: user, agent, a2a, external_customer, unknown.
func ResolveAssignees(userID string) []Assignee {
	parts := strings.Split(userID, ",")
	out := make([]Assignee, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, classifyAssignee(p))
	}
	return out
}

func classifyAssignee(id string) Assignee {
	switch {
	case id == "external_customer":
		return Assignee{Name: id, Type: AssigneeExternalCustomer}
	case strings.HasPrefix(id, "a2a:"):
		return Assignee{Name: strings.TrimPrefix(id, "a2a:"), Type: AssigneeA2A}
	case strings.HasPrefix(id, "agent:"):
		return Assignee{Name: strings.TrimPrefix(id, "agent:"), Type: AssigneeAgent}
	case strings.Contains(id, "@"):
		return Assignee{Name: id, Email: id, Type: AssigneeUser}
	default:
		return Assignee{Name: id, Type: AssigneeUnknown}
	}
}
