package store

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/bpmflow/ent"
	"github.com/codeready-toolchain/bpmflow/ent/compensationartifact"
)

// CompensationStore reads and writes the cached reverse-action artifact
// keyed by (proc_def, activity, tenant).
type CompensationStore struct {
	db *ent.Client
}

// NewCompensationStore returns a CompensationStore backed by db.
func NewCompensationStore(db *ent.Client) *CompensationStore {
	return &CompensationStore{db: db}
}

// Find returns the cached artifact for the key, or nil if none exists.
func (s *CompensationStore) Find(ctx context.Context, procDefID, activityID, tenantID string) (*ent.CompensationArtifact, error) {
	row, err := s.db.CompensationArtifact.Query().
		Where(
			compensationartifact.ProcDefIDEQ(procDefID),
			compensationartifact.ActivityIDEQ(activityID),
			compensationartifact.TenantIDEQ(tenantID),
		).
		Only(ctx)
	if ent.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find compensation artifact %s/%s: %w", procDefID, activityID, err)
	}
	return row, nil
}

// Upsert stores code under the key, creating the row on first use and
// overwriting it on later regeneration (the caller is expected to check
// Find first so a cache hit never reaches here).
func (s *CompensationStore) Upsert(ctx context.Context, procDefID, activityID, tenantID, code string) error {
	existing, err := s.Find(ctx, procDefID, activityID, tenantID)
	if err != nil {
		return err
	}
	if existing != nil {
		return existing.Update().SetCompensation(code).Exec(ctx)
	}
	_, err = s.db.CompensationArtifact.Create().
		SetProcDefID(procDefID).
		SetActivityID(activityID).
		SetTenantID(tenantID).
		SetCompensation(code).
		Save(ctx)
	if err != nil {
		return fmt.Errorf("store: create compensation artifact %s/%s: %w", procDefID, activityID, err)
	}
	return nil
}
