package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Chat holds the schema definition for the per-instance system chat
// stream. Every resolver decision writes a chat message capturing
// referenceInfo + completedActivities + nextActivities, and
// cannotProceedErrors reasons when a join can't yet proceed.
type Chat struct {
	ent.Schema
}

// Fields of the Chat.
func (Chat) Fields() []ent.Field {
	return []ent.Field{
		field.Int("id"),
		field.String("uuid").
			Unique(),
		field.JSON("messages", []map[string]interface{}{}).
			Default([]map[string]interface{}{}),
		field.String("tenant_id"),
	}
}

// Edges of the Chat.
func (Chat) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("proc_inst", ProcInst.Type).
			Ref("chat").
			Unique().
			Required(),
	}
}

// Indexes of the Chat.
func (Chat) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id"),
	}
}
