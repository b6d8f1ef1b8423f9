package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/bpmflow/ent"
	"github.com/codeready-toolchain/bpmflow/ent/procinst"
	"github.com/google/uuid"
)

// ProcInstStore wraps the generated ent client with the instance
// mint-or-load and frontier/variable-merge operations the resolver
// needs.
type ProcInstStore struct {
	db *ent.Client
}

// NewProcInstStore returns a ProcInstStore backed by db.
func NewProcInstStore(db *ent.Client) *ProcInstStore {
	return &ProcInstStore{db: db}
}

// MintOrLoadInput is LoadOrCreate's payload.
type MintOrLoadInput struct {
	InstanceID   string // "new", empty, or a dotless id mints a fresh instance id
	InstanceName string
	ProcDefID    string
	TenantID     string
	RoleBindings map[string]any
}

// LoadOrCreate mints a new instance if instanceId is "new" or lacks a
// dot: "<defId>.<uuid>", created as RUNNING and seeded with
// role_bindings from the decision payload; otherwise it loads the
// existing row.
func (s *ProcInstStore) LoadOrCreate(ctx context.Context, in MintOrLoadInput) (*ent.ProcInst, error) {
	id := in.InstanceID
	if id == "" || id == "new" || !strings.Contains(id, ".") {
		id = fmt.Sprintf("%s.%s", strings.ToLower(in.ProcDefID), uuid.NewString())
	} else {
		existing, err := s.db.ProcInst.Get(ctx, id)
		if err == nil {
			return existing, nil
		}
		if !ent.IsNotFound(err) {
			return nil, fmt.Errorf("store: load process instance %q: %w", id, err)
		}
	}

	create := s.db.ProcInst.Create().
		SetID(id).
		SetProcDefID(in.ProcDefID).
		SetTenantID(in.TenantID).
		SetStatus(procinst.StatusRUNNING).
		SetCurrentActivityIds([]string{})
	if in.InstanceName != "" {
		create = create.SetName(in.InstanceName)
	}
	if in.RoleBindings != nil {
		create = create.SetRoleBindings(in.RoleBindings)
	}

	row, err := create.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: create process instance %q: %w", id, err)
	}
	return row, nil
}

// SetFrontier replaces current_activity_ids. An empty frontier with
// status RUNNING is promoted to COMPLETED, so every COMPLETED instance
// always has an empty current_activity_ids.
func (s *ProcInstStore) SetFrontier(ctx context.Context, instanceID string, frontier []string) error {
	update := s.db.ProcInst.UpdateOneID(instanceID).SetCurrentActivityIds(frontier)
	if len(frontier) == 0 {
		update = update.SetStatus(procinst.StatusCOMPLETED)
	}
	return update.Exec(ctx)
}

// MergeVariables merges field mappings into variables_data, key-by-key
// for form-shaped variables.
func (s *ProcInstStore) MergeVariables(ctx context.Context, inst *ent.ProcInst, mappings map[string]any) error {
	if len(mappings) == 0 {
		return nil
	}
	vars := inst.VariablesData
	if vars == nil {
		vars = make(map[string]any)
	}
	for key, value := range mappings {
		if existing, ok := vars[key].(map[string]any); ok {
			if incoming, ok := value.(map[string]any); ok {
				for k, v := range incoming {
					existing[k] = v
				}
				continue
			}
		}
		vars[key] = value
	}
	return s.db.ProcInst.UpdateOneID(inst.ID).SetVariablesData(vars).Exec(ctx)
}
