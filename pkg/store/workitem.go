// Package store implements the Work-Item Store: durable CRUD plus the
// row-level-lock claim protocol every dispatcher replica uses to
// cooperate safely against a single shared table.
package store

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/codeready-toolchain/bpmflow/ent"
	"github.com/codeready-toolchain/bpmflow/ent/workitem"
	"github.com/google/uuid"
)

// Selector picks which of the two claim_due row sets a ClaimDue call
// targets.
type Selector int

const (
	// SelectorSubmitted claims SUBMITTED rows with no consumer — the
	// LLM-driven advancement path.
	SelectorSubmitted Selector = iota
	// SelectorAgentDispatch claims IN_PROGRESS rows with no consumer and
	// agent_mode = A2A — the agent dispatch path.
	SelectorAgentDispatch
)

// WorkItemStore wraps the generated ent client with the claim protocol
// and upsert rules the rest of the engine depends on.
type WorkItemStore struct {
	db *ent.Client
}

// New returns a WorkItemStore backed by db.
func New(db *ent.Client) *WorkItemStore {
	return &WorkItemStore{db: db}
}

// ClaimDue atomically marks up to limit eligible rows as owned by
// consumerID and returns them. The selection uses SELECT ... FOR UPDATE
// SKIP LOCKED semantics so concurrent claimers never block each other or
// double-claim a row: whichever transaction's row lock lands first wins
// that row, and every other claimer's selection simply skips it.
func (s *WorkItemStore) ClaimDue(ctx context.Context, limit int, consumerID string, selector Selector) ([]*ent.WorkItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	var claimed []*ent.WorkItem
	err := withTx(ctx, s.db, func(tx *ent.Tx) error {
		q := tx.WorkItem.Query().
			Where(workitem.ConsumerIsNil()).
			Limit(limit).
			Modify(func(sel *sql.Selector) {
				sel.ForUpdate(sql.WithLockAction(sql.SkipLocked))
			})

		switch selector {
		case SelectorSubmitted:
			q = q.Where(workitem.StatusEQ(workitem.StatusSUBMITTED))
		case SelectorAgentDispatch:
			q = q.Where(
				workitem.StatusEQ(workitem.StatusIN_PROGRESS),
				workitem.AgentModeEQ("A2A"),
			)
		default:
			return fmt.Errorf("store: unknown selector %d", selector)
		}

		rows, err := q.All(ctx)
		if err != nil {
			return fmt.Errorf("select eligible rows: %w", err)
		}

		for _, row := range rows {
			updated, err := tx.WorkItem.UpdateOne(row).
				SetConsumer(consumerID).
				Save(ctx)
			if err != nil {
				return fmt.Errorf("claim row %s: %w", row.ID, err)
			}
			claimed = append(claimed, updated)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// ReleaseStaleClaims clears consumer on every IN_PROGRESS row whose
// start_date is older than maxAge, returning the number of rows
// released. Intended to run periodically (every few minutes) on every
// replica so a crashed worker's claim doesn't hold a work item forever.
func (s *WorkItemStore) ReleaseStaleClaims(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	n, err := s.db.WorkItem.Update().
		Where(
			workitem.StatusEQ(workitem.StatusIN_PROGRESS),
			workitem.ConsumerNotNil(),
			workitem.StartDateLT(cutoff),
		).
		ClearConsumer().
		Save(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: release stale claims: %w", err)
	}
	return n, nil
}

// CurrentForActivity returns the current row for an (instance, activity)
// pair — the one with the highest (updated_at, rework_count) — or nil if
// none exists. Rework loops create new rows rather than mutating the
// previous one, so multiple rows for the same pair is the normal case
// once a loop has executed.
func (s *WorkItemStore) CurrentForActivity(ctx context.Context, procInstID, activityID string) (*ent.WorkItem, error) {
	row, err := s.db.WorkItem.Query().
		Where(
			workitem.ProcInstIDEQ(procInstID),
			workitem.ActivityIDEQ(activityID),
		).
		Order(ent.Desc(workitem.FieldUpdatedAt), ent.Desc(workitem.FieldReworkCount)).
		First(ctx)
	if ent.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: current work item for %s/%s: %w", procInstID, activityID, err)
	}
	return row, nil
}

// Get loads a single work item by id, used by the manual compensation
// trigger endpoint to resolve the row a caller names by id.
func (s *WorkItemStore) Get(ctx context.Context, id string) (*ent.WorkItem, error) {
	row, err := s.db.WorkItem.Get(ctx, id)
	if ent.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get work item %s: %w", id, err)
	}
	return row, nil
}

// TodoList returns every work item row for an instance, most recently
// updated first. Used by the resolver's external-customer email scan,
// which needs every completed activity's output, not just the latest
// row per activity.
func (s *WorkItemStore) TodoList(ctx context.Context, procInstID string) ([]*ent.WorkItem, error) {
	rows, err := s.db.WorkItem.Query().
		Where(workitem.ProcInstIDEQ(procInstID)).
		Order(ent.Desc(workitem.FieldUpdatedAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: list work items for instance %q: %w", procInstID, err)
	}
	return rows, nil
}

// Release clears consumer on a single row, used by the dispatcher
// wrapper's finally-style lease release.
func (s *WorkItemStore) Release(ctx context.Context, id string) error {
	err := s.db.WorkItem.UpdateOneID(id).ClearConsumer().Exec(ctx)
	if ent.IsNotFound(err) {
		return nil
	}
	return err
}

// WriteLog overwrites the log field on a single row. The dispatcher
// wrapper uses this for the one-shot "starting ..." line; the LLM
// handler's debounced streaming writer uses it for throttled
// incremental updates.
func (s *WorkItemStore) WriteLog(ctx context.Context, id, msg string) error {
	err := s.db.WorkItem.UpdateOneID(id).SetLog(msg).Exec(ctx)
	if ent.IsNotFound(err) {
		return nil
	}
	return err
}

// FailInput is the payload for RecordFailure.
type FailInput struct {
	ItemID      string
	Retry       int
	MarkDone    bool
	ErrorDetail string
}

// RecordFailure persists the incremented retry count, the truncated
// error detail, and — if the caller decided
// the retry ceiling was hit — the terminal DONE collapse, all while
// releasing the consumer lease in the same update.
func (s *WorkItemStore) RecordFailure(ctx context.Context, in FailInput) error {
	update := s.db.WorkItem.UpdateOneID(in.ItemID).
		ClearConsumer().
		SetRetry(in.Retry).
		SetLog(in.ErrorDetail)
	if in.MarkDone {
		update = update.SetStatus(workitem.StatusDONE)
	}
	err := update.Exec(ctx)
	if ent.IsNotFound(err) {
		return nil
	}
	return err
}

// UpsertStatus implements the "(instance, activity) upsert rule":
// update the current row for the pair if one exists, otherwise create a
// fresh TODO/whatever-status row. Applying the same decision twice
// therefore never duplicates a work-item row for the same activity.
func (s *WorkItemStore) UpsertStatus(ctx context.Context, in NewInput) (*ent.WorkItem, error) {
	current, err := s.CurrentForActivity(ctx, in.ProcInstID, in.ActivityID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return s.Create(ctx, in)
	}

	update := current.Update()
	if in.Status != "" {
		update = update.SetStatus(in.Status)
	}
	if in.ActivityName != "" {
		update = update.SetActivityName(in.ActivityName)
	}
	if in.AgentMode != "" {
		update = update.SetAgentMode(in.AgentMode)
	}
	row, err := update.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: upsert work item %s/%s: %w", in.ProcInstID, in.ActivityID, err)
	}
	return row, nil
}

// SetOutput records the output payload a submitter posted for a work
// item, e.g. a form's field values.
func (s *WorkItemStore) SetOutput(ctx context.Context, id string, output map[string]any) error {
	return s.db.WorkItem.UpdateOneID(id).SetOutput(output).Exec(ctx)
}

// NewInput is the upsert payload for creating a new work item. Tenant id
// is always injected by the caller of Create, never inferred; date
// fields are native time.Time here and serialized to ISO-8601 only at
// the JSON/API boundary.
type NewInput struct {
	ProcInstID   string
	ProcDefID    string
	ActivityID   string
	ActivityName string
	TenantID     string
	Status       workitem.Status
	AgentMode    string
	AgentOrch    string
	UserID       string
	Username     string
	Log          string
	ReferenceIDs []string
	ReworkCount  int
	DueDate      *time.Time
}

// Create materializes a new work item row. A fresh uuid is assigned
// unless the rework loop intentionally reuses context carried by the
// caller (the id itself is always new — rework creates new rows, it
// never mutates a terminal one in place).
func (s *WorkItemStore) Create(ctx context.Context, in NewInput) (*ent.WorkItem, error) {
	status := in.Status
	if status == "" {
		status = workitem.StatusTODO
	}
	create := s.db.WorkItem.Create().
		SetID(uuid.NewString()).
		SetProcInstID(in.ProcInstID).
		SetProcDefID(in.ProcDefID).
		SetActivityID(in.ActivityID).
		SetTenantID(in.TenantID).
		SetStatus(status).
		SetReworkCount(in.ReworkCount).
		SetReferenceIds(in.ReferenceIDs)

	if in.ActivityName != "" {
		create = create.SetActivityName(in.ActivityName)
	}
	if in.AgentMode != "" {
		create = create.SetAgentMode(in.AgentMode)
	}
	if in.AgentOrch != "" {
		create = create.SetAgentOrch(in.AgentOrch)
	}
	if in.UserID != "" {
		create = create.SetUserID(in.UserID)
	}
	if in.Username != "" {
		create = create.SetUsername(in.Username)
	}
	if in.Log != "" {
		create = create.SetLog(in.Log)
	}
	if in.DueDate != nil {
		create = create.SetDueDate(*in.DueDate)
	}

	row, err := create.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: create work item: %w", err)
	}
	return row, nil
}
