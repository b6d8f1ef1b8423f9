package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ProcDef holds the schema definition for a process definition.
//
// Holds a process definition: the raw JSON graph is stored verbatim
// alongside the optional BPMN XML source it was authored from.
// Rows are content-addressed by (definition_id, tenant, version) via the
// edge to ProcDefArchive; the row here always represents the latest
// version for its (id, tenant).
type ProcDef struct {
	ent.Schema
}

// Fields of the ProcDef.
func (ProcDef) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Immutable(),
		field.String("name"),
		field.JSON("definition", map[string]interface{}{}).
			Comment("Raw process definition graph (activities, gateways, sequences, roles, data)"),
		field.Text("bpmn").
			Optional().
			Nillable().
			Comment("Original BPMN XML, when authored from a BPMN tool"),
		field.String("tenant_id"),
		field.Bool("is_deleted").
			Default(false),
		field.String("uuid").
			Unique(),
	}
}

// Edges of the ProcDef.
func (ProcDef) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("archives", ProcDefArchive.Type),
		edge.To("form_defs", FormDef.Type),
	}
}

// Indexes of the ProcDef.
func (ProcDef) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "id").
			Unique(),
		index.Fields("tenant_id", "is_deleted"),
	}
}

// Annotations for PostgreSQL-specific features. The JSONB GIN index on
// `definition` is created by CreateGINIndexes in pkg/database/migrations.go;
// `bpmn` has no index.
func (ProcDef) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}

// ProcDefArchive holds the schema definition for an archived process
// definition version. Content-addressed by (proc_def_id, tenant, version).
type ProcDefArchive struct {
	ent.Schema
}

// Fields of the ProcDefArchive.
func (ProcDefArchive) Fields() []ent.Field {
	return []ent.Field{
		field.String("arcv_id").
			Unique().
			Immutable(),
		field.Int("version"),
		field.JSON("definition", map[string]interface{}{}),
		field.String("tenant_id"),
	}
}

// Edges of the ProcDefArchive.
func (ProcDefArchive) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("proc_def", ProcDef.Type).
			Ref("archives").
			Unique().
			Required(),
	}
}

// Indexes of the ProcDefArchive.
func (ProcDefArchive) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "version"),
	}
}

// FormDef holds the schema definition for a form bound to an activity.
// Out of scope for rendering (that is the web framework's job); the
// engine only needs fields_json to resolve inputData/conditionData
// references when gathering context for a handler decision.
type FormDef struct {
	ent.Schema
}

// Fields of the FormDef.
func (FormDef) Fields() []ent.Field {
	return []ent.Field{
		field.Int("id"),
		field.Text("html").
			Optional().
			Nillable(),
		field.String("activity_id"),
		field.JSON("fields_json", map[string]interface{}{}).
			Optional(),
		field.String("tenant_id"),
	}
}

// Edges of the FormDef.
func (FormDef) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("proc_def", ProcDef.Type).
			Ref("form_defs").
			Unique(),
	}
}

// Indexes of the FormDef.
func (FormDef) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "activity_id"),
	}
}
