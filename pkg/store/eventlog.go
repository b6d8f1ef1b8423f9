package store

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/bpmflow/ent"
	"github.com/codeready-toolchain/bpmflow/ent/eventlog"
	"github.com/google/uuid"
)

// EventLogStore appends and queries the append-only audit stream the
// Compensation Planner reads from.
type EventLogStore struct {
	db *ent.Client
}

// NewEventLogStore returns an EventLogStore backed by db.
func NewEventLogStore(db *ent.Client) *EventLogStore {
	return &EventLogStore{db: db}
}

// AppendInput is the payload for Append.
type AppendInput struct {
	ProcInstID string
	TodoID     string
	RunID      string
	JobID      string
	EventType  string
	CrewType   string
	Data       map[string]any
}

// Append records one audit entry.
func (s *EventLogStore) Append(ctx context.Context, in AppendInput) error {
	create := s.db.EventLog.Create().
		SetID(uuid.NewString()).
		SetEventType(in.EventType).
		SetRunID(in.RunID).
		SetJobID(in.JobID).
		SetData(in.Data)
	if in.ProcInstID != "" {
		create = create.SetProcInstID(in.ProcInstID)
	}
	if in.TodoID != "" {
		create = create.SetTodoID(in.TodoID)
	}
	if in.CrewType != "" {
		create = create.SetCrewType(in.CrewType)
	}
	if _, err := create.Save(ctx); err != nil {
		return fmt.Errorf("store: append event log: %w", err)
	}
	return nil
}

// ForTodoIDs returns every event whose todo_id is one of ids, ordered by
// timestamp — the chronological source the compensation synthesizer
// reads from.
func (s *EventLogStore) ForTodoIDs(ctx context.Context, ids []string) ([]*ent.EventLog, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.EventLog.Query().
		Where(eventlog.TodoIDIn(ids...)).
		Order(ent.Asc(eventlog.FieldTimestamp)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: list events for todo ids: %w", err)
	}
	return rows, nil
}
