package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// CompensationArtifact holds the schema definition for a synthesized
// reverse-action script, keyed by (proc_def_id, activity_id, tenant).
// The "compensation" column stores the generated code; the engine
// treats it as an opaque string handed to the action runner regardless
// of what language it's written in.
type CompensationArtifact struct {
	ent.Schema
}

// Fields of the CompensationArtifact.
func (CompensationArtifact) Fields() []ent.Field {
	return []ent.Field{
		field.String("proc_def_id"),
		field.String("activity_id"),
		field.String("tenant_id"),
		field.Text("compensation").
			Comment("Synthesized reverse-action script, generated once and reused"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the CompensationArtifact. The unique composite index is
// the cache key compensation lookups use to avoid re-synthesizing a
// script that already exists for an activity.
func (CompensationArtifact) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("proc_def_id", "activity_id", "tenant_id").
			Unique(),
	}
}
