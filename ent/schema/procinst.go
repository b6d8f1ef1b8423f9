package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ProcInst holds the schema definition for a process instance — the
// mutable runtime counterpart of a ProcDef.
type ProcInst struct {
	ent.Schema
}

// Fields of the ProcInst.
func (ProcInst) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("proc_inst_id").
			Unique().
			Immutable().
			Comment("Shape <defId>.<uuid>"),
		field.String("name").
			Optional(),
		field.String("proc_def_id"),
		field.Int("proc_def_version").
			Optional(),
		field.Enum("status").
			Values("NEW", "RUNNING", "COMPLETED").
			Default("NEW"),
		field.Strings("current_activity_ids").
			Default([]string{}).
			Comment("Active frontier; always a subset of the definition's node ids"),
		field.Strings("current_user_ids").
			Optional(),
		field.Strings("participants").
			Optional(),
		field.JSON("role_bindings", map[string]interface{}{}).
			Optional().
			Comment("role name -> endpoint (user/agent id, or {type: external_customer})"),
		field.JSON("variables_data", map[string]interface{}{}).
			Default(map[string]interface{}{}),
		field.String("tenant_id"),
		field.Bool("is_clean_up").
			Default(false),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the ProcInst.
func (ProcInst) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("work_items", WorkItem.Type),
		edge.To("event_logs", EventLog.Type),
		edge.To("chat", Chat.Type).
			Unique(),
	}
}

// Indexes of the ProcInst.
func (ProcInst) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "status"),
		index.Fields("proc_def_id"),
		index.Fields("status", "updated_at"),
	}
}
