package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// EventLog holds the schema definition for the append-only audit stream
// consumed by the Compensation Planner and external observers.
type EventLog struct {
	ent.Schema
}

// Fields of the EventLog.
func (EventLog) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("run_id").
			Optional(),
		field.String("job_id").
			Optional().
			Comment("task.id"),
		field.String("todo_id").
			Optional().
			Nillable(),
		field.String("proc_inst_id").
			Optional().
			Nillable(),
		field.String("event_type").
			Comment("task_started, task_completed, tool_usage_finished, crew_*, ..."),
		field.String("crew_type").
			Optional().
			Nillable().
			Comment("e.g. action, memory, human, dmn — used by the compensation filter"),
		field.JSON("data", map[string]interface{}{}).
			Optional(),
		field.Time("timestamp").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the EventLog.
func (EventLog) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("proc_inst_id", "timestamp"),
		index.Fields("event_type"),
		index.Fields("todo_id"),
	}
}
