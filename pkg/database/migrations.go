package database

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql"
)

// CreateGINIndexes creates GIN indexes PostgreSQL needs for efficient
// JSONB containment lookups and full-text search over free-form process
// data, none of which the ent schema DSL can express directly.
func CreateGINIndexes(ctx context.Context, driver *sql.Driver) error {
	db := driver.DB()

	// proc_defs.definition is queried by activity/role/data-declaration
	// containment when resolving a definition without loading the whole
	// document (e.g. "does any definition reference role X").
	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_proc_defs_definition_gin
		ON proc_defs USING gin(definition jsonb_path_ops)`)
	if err != nil {
		return fmt.Errorf("failed to create proc_defs.definition GIN index: %w", err)
	}

	// work_items.query holds the free-form LLM prompt/context text the
	// handler assembled; full-text search backs the operator console's
	// work-item lookup.
	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_work_items_query_gin
		ON work_items USING gin(to_tsvector('english', COALESCE(query, '')))`)
	if err != nil {
		return fmt.Errorf("failed to create work_items.query GIN index: %w", err)
	}

	// event_logs.data is queried by event-type-specific payload shape
	// (e.g. tool name, crew type) when the Compensation Planner filters
	// the audit stream.
	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_event_logs_data_gin
		ON event_logs USING gin(data jsonb_path_ops)`)
	if err != nil {
		return fmt.Errorf("failed to create event_logs.data GIN index: %w", err)
	}

	return nil
}
