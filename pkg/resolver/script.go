package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/bpmflow/ent"
	"github.com/codeready-toolchain/bpmflow/pkg/definition"
	"github.com/codeready-toolchain/bpmflow/pkg/handler"
)

// runScriptTasks executes any next activity that is a scriptTask
// synchronously through the ScriptExecutor during the resolve call, rather than
// being materialized as a pending work item. A non-zero exit advances
// the frontier to the script activity's own successors (the task is
// treated as failed but non-blocking); a zero exit removes it from the
// frontier and records it as a completed activity instead.
func (r *Resolver) runScriptTasks(ctx context.Context, def *definition.Definition, inst *ent.ProcInst, frontier []string, d *handler.Decision) ([]string, *handler.Decision) {
	env := envFromVariables(inst.VariablesData)

	for _, na := range d.NextActivities {
		activity := def.FindActivityByID(na.NextActivityID)
		if activity == nil || activity.Type != "scriptTask" {
			continue
		}

		result, err := r.Scripts.Execute(ctx, activity.ScriptCode, env)
		if err != nil {
			slog.Error("resolver: script task execution failed", "activity", activity.ID, "error", err)
			continue
		}

		if result.ExitCode != 0 {
			frontier = removeID(frontier, activity.ID)
			for _, nr := range def.FindNextActivities(activity.ID, false) {
				frontier = appendUnique(frontier, nr.ID)
			}
			continue
		}

		frontier = removeID(frontier, activity.ID)
		d.NextActivities = removeNextActivity(d.NextActivities, activity.ID)
		d.CompletedActivities = append(d.CompletedActivities, handler.CompletedActivity{
			CompletedActivityID:   activity.ID,
			CompletedActivityName: activity.Name,
			CompletedUserEmail:    na.NextUserEmail,
			Result:                "DONE",
		})
	}

	return frontier, d
}

func envFromVariables(vars map[string]any) map[string]string {
	env := make(map[string]string, len(vars))
	for key, value := range vars {
		env[key] = fmt.Sprintf("%v", value)
	}
	return env
}

func removeID(list []string, id string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func removeNextActivity(list []handler.NextActivity, id string) []handler.NextActivity {
	out := make([]handler.NextActivity, 0, len(list))
	for _, na := range list {
		if na.NextActivityID != id {
			out = append(out, na)
		}
	}
	return out
}
