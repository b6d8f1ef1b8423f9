package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/bpmflow/ent"
	"github.com/codeready-toolchain/bpmflow/ent/procdef"
	"github.com/codeready-toolchain/bpmflow/pkg/definition"
)

// ProcDefStore loads process definitions and adapts their stored JSON
// graph into the pkg/definition in-memory model the rest of the engine
// operates on.
type ProcDefStore struct {
	db *ent.Client
}

// NewProcDefStore returns a ProcDefStore backed by db.
func NewProcDefStore(db *ent.Client) *ProcDefStore {
	return &ProcDefStore{db: db}
}

// Definition loads and decodes the latest definition for id, satisfying
// pkg/handler.DefinitionLookup and pkg/resolver's equivalent.
func (s *ProcDefStore) Definition(ctx context.Context, id string) (*definition.Definition, error) {
	row, err := s.db.ProcDef.Query().
		Where(procdef.IDEQ(id), procdef.IsDeletedEQ(false)).
		First(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, fmt.Errorf("store: process definition %q not found", id)
		}
		return nil, fmt.Errorf("store: load process definition %q: %w", id, err)
	}

	raw, err := json.Marshal(row.Definition)
	if err != nil {
		return nil, fmt.Errorf("store: re-marshal stored definition %q: %w", id, err)
	}
	def, err := definition.Load(raw)
	if err != nil {
		return nil, fmt.Errorf("store: decode process definition %q: %w", id, err)
	}
	return def, nil
}
