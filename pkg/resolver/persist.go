package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codeready-toolchain/bpmflow/ent"
	"github.com/codeready-toolchain/bpmflow/ent/workitem"
	"github.com/codeready-toolchain/bpmflow/pkg/definition"
	"github.com/codeready-toolchain/bpmflow/pkg/handler"
	"github.com/codeready-toolchain/bpmflow/pkg/store"
)

// persist materializes TODO work items for every downstream activity
// not yet present, updates completed and next work items, writes the
// instance's chat message, promotes service tasks straight to
// SUBMITTED, and emails external customers.
func (r *Resolver) persist(ctx context.Context, def *definition.Definition, inst *ent.ProcInst, frontier []string, d *handler.Decision, cannotProceed []handler.ProceedError) ([]string, error) {
	var materialized []string

	for _, ca := range d.CompletedActivities {
		if _, err := r.Items.UpsertStatus(ctx, store.NewInput{
			ProcInstID:   inst.ID,
			ProcDefID:    inst.ProcDefID,
			ActivityID:   ca.CompletedActivityID,
			ActivityName: ca.CompletedActivityName,
			TenantID:     r.TenantID,
			Status:       workitem.StatusDONE,
		}); err != nil {
			return nil, fmt.Errorf("resolver: upsert completed activity %s: %w", ca.CompletedActivityID, err)
		}
	}

	for _, na := range d.NextActivities {
		if terminalIDs[na.NextActivityID] {
			continue
		}
		if def.FindGatewayByID(na.NextActivityID) != nil {
			continue
		}

		status := nextStatus(na.Result)
		activity := def.FindActivityByID(na.NextActivityID)
		if activity != nil && activity.Type == "serviceTask" {
			// Step 6: service tasks skip human/LLM review entirely.
			status = workitem.StatusSUBMITTED
		}

		row, err := r.Items.UpsertStatus(ctx, store.NewInput{
			ProcInstID:   inst.ID,
			ProcDefID:    inst.ProcDefID,
			ActivityID:   na.NextActivityID,
			ActivityName: na.NextActivityName,
			TenantID:     r.TenantID,
			Status:       status,
		})
		if err != nil {
			return nil, fmt.Errorf("resolver: upsert next activity %s: %w", na.NextActivityID, err)
		}
		materialized = append(materialized, row.ID)

		if activity != nil {
			r.notifyExternalCustomer(ctx, def, inst, activity)
		}
	}

	if err := r.writeChatMessage(ctx, inst, d, cannotProceed); err != nil {
		return nil, err
	}

	return materialized, nil
}

func nextStatus(result string) workitem.Status {
	switch strings.ToUpper(result) {
	case "IN_PROGRESS":
		return workitem.StatusIN_PROGRESS
	case "PENDING":
		return workitem.StatusPENDING
	case "DONE":
		return workitem.StatusDONE
	default:
		return workitem.StatusTODO
	}
}

// writeChatMessage implements the two message shapes the source system
// writes: a plain-text reason when the decision couldn't proceed, or a
// structured referenceInfo/completedActivities/nextActivities summary
// otherwise.
func (r *Resolver) writeChatMessage(ctx context.Context, inst *ent.ProcInst, d *handler.Decision, cannotProceed []handler.ProceedError) error {
	if r.Chats == nil {
		return nil
	}

	var message map[string]any
	if len(cannotProceed) > 0 {
		reasons := make([]string, len(cannotProceed))
		for i, e := range cannotProceed {
			reasons[i] = e.Reason
		}
		message = map[string]any{
			"role":    "system",
			"content": strings.Join(reasons, "\n"),
		}
	} else {
		message = map[string]any{
			"role":        "system",
			"contentType": "json",
			"jsonContent": map[string]any{
				"referenceInfo":       d.ReferenceInfo,
				"completedActivities": d.CompletedActivities,
				"nextActivities":      d.NextActivities,
			},
		}
	}

	if err := r.Chats.AppendSystemMessage(ctx, inst.ID, r.TenantID, message); err != nil {
		return fmt.Errorf("resolver: append chat message: %w", err)
	}
	return nil
}

// notifyExternalCustomer runs when a next activity's role resolves to
// external_customer: scan completed outputs for a customer_email field
// and email a link to the external form.
func (r *Resolver) notifyExternalCustomer(ctx context.Context, def *definition.Definition, inst *ent.ProcInst, activity *definition.Activity) {
	if r.Notify == nil || activity.Role == "" {
		return
	}

	var role *definition.Role
	for i := range def.Roles {
		if def.Roles[i].Name == activity.Role {
			role = &def.Roles[i]
			break
		}
	}
	if role == nil || fmt.Sprintf("%v", role.Endpoint) != handler.AssigneeExternalCustomer {
		return
	}

	email := findCustomerEmail(ctx, r.Items, inst.ID)
	if email == "" {
		return
	}

	formID := strings.TrimPrefix(activity.Tool, "formHandler:")
	formURL := fmt.Sprintf("%s/%s?process_definition_id=%s&activity_id=%s&process_instance_id=%s",
		r.BaseURL, formID, inst.ProcDefID, activity.ID, inst.ID)
	subject := fmt.Sprintf("Please complete '%s'", activity.Name)

	if err := r.Notify.SendFormLink(ctx, email, subject, formURL); err != nil {
		slog.Error("resolver: external customer email failed", "activity", activity.ID, "error", err)
	}
}

func findCustomerEmail(ctx context.Context, items *store.WorkItemStore, procInstID string) string {
	rows, err := items.TodoList(ctx, procInstID)
	if err != nil {
		return ""
	}
	for _, row := range rows {
		if row.Status != workitem.StatusDONE || row.Output == nil {
			continue
		}
		for _, formData := range row.Output {
			form, ok := formData.(map[string]any)
			if !ok {
				continue
			}
			if email, ok := form["customer_email"].(string); ok && email != "" {
				return email
			}
		}
	}
	return ""
}
