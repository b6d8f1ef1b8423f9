package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// WorkItem holds the schema definition for a single unit of execution work
// — the row the dispatcher claims.
//
// A work item is claimed iff Consumer is non-nil. For a given
// (ProcInstID, ActivityID) pair, the *current* row is the one with the
// highest (UpdatedAt, ReworkCount) — rework loops create new rows rather
// than mutating the old one in place.
type WorkItem struct {
	ent.Schema
}

// Fields of the WorkItem.
func (WorkItem) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable().
			Comment("uuid"),
		field.String("proc_inst_id"),
		field.String("proc_def_id"),
		field.String("activity_id"),
		field.String("activity_name").
			Optional(),
		field.Enum("status").
			Values("TODO", "IN_PROGRESS", "SUBMITTED", "DONE", "ERROR", "PENDING").
			Default("TODO"),
		field.JSON("assignees", []map[string]interface{}{}).
			Optional().
			Comment("[{name, endpoint}]"),
		field.String("user_id").
			Optional().
			Nillable().
			Comment("Denormalized single assignee id; 'external_customer' for external routes"),
		field.String("username").
			Optional().
			Nillable(),
		field.String("agent_mode").
			Default("none").
			Comment("A2A or none"),
		field.String("agent_orch").
			Optional().
			Nillable().
			Comment("none, crewai-action, or a free-form orchestration tag"),
		field.String("tool").
			Optional().
			Nillable().
			Comment("e.g. formHandler:<formId>"),
		field.Time("start_date").
			Optional().
			Nillable(),
		field.Time("end_date").
			Optional().
			Nillable(),
		field.Time("due_date").
			Optional().
			Nillable(),
		field.Int("duration").
			Optional().
			Comment("Days, copied from the activity definition"),
		field.JSON("output", map[string]interface{}{}).
			Optional().
			Comment("Typically {formId: {field: value}}"),
		field.JSON("draft", map[string]interface{}{}).
			Optional().
			Comment("Prior form snapshot"),
		field.Strings("feedback").
			Optional().
			Comment("Textual critiques accumulated across rework"),
		field.Int("retry").
			Default(0),
		field.String("consumer").
			Optional().
			Nillable().
			Comment("Owning replica id; null iff unclaimed"),
		field.Text("log").
			Optional().
			Nillable().
			Comment("Streaming textual progress, debounced writes"),
		field.Strings("reference_ids").
			Optional().
			Comment("Immediate predecessor activity ids"),
		field.Int("rework_count").
			Default(0),
		field.String("temp_feedback").
			Optional().
			Nillable(),
		field.String("execution_scope").
			Optional().
			Nillable(),
		field.String("project_id").
			Optional().
			Nillable(),
		field.String("root_proc_inst_id").
			Optional().
			Nillable(),
		field.Text("query").
			Optional().
			Nillable(),
		field.String("tenant_id"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the WorkItem.
func (WorkItem) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("proc_inst", ProcInst.Type).
			Ref("work_items").
			Unique().
			Required(),
	}
}

// Indexes of the WorkItem. The composite indexes mirror the two claim
// selectors the dispatcher polls with: SUBMITTED+consumer IS NULL, and
// IN_PROGRESS+A2A+consumer IS NULL.
func (WorkItem) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("proc_inst_id", "activity_id", "updated_at"),
		index.Fields("status", "consumer"),
		index.Fields("status", "agent_mode", "consumer"),
		index.Fields("tenant_id", "status"),
		index.Fields("status", "start_date"),
	}
}
