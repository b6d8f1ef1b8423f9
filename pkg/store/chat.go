package store

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/bpmflow/ent"
)

// ChatStore appends system messages to an instance's chat stream.
type ChatStore struct {
	db *ent.Client
}

// NewChatStore returns a ChatStore backed by db.
func NewChatStore(db *ent.Client) *ChatStore {
	return &ChatStore{db: db}
}

// AppendSystemMessage writes a system chat message for a state change:
// load (or lazily create) the instance's one chat row and append one
// message.
func (s *ChatStore) AppendSystemMessage(ctx context.Context, instanceID, tenantID string, message map[string]any) error {
	inst, err := s.db.ProcInst.Get(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("store: load instance %q for chat append: %w", instanceID, err)
	}

	existing, err := inst.QueryChat().Only(ctx)
	if err != nil && !ent.IsNotFound(err) {
		return fmt.Errorf("store: load chat for instance %q: %w", instanceID, err)
	}

	if existing != nil {
		msgs := append(existing.Messages, message)
		return s.db.Chat.UpdateOne(existing).SetMessages(msgs).Exec(ctx)
	}

	_, err = s.db.Chat.Create().
		SetUUID(instanceID).
		SetTenantID(tenantID).
		SetMessages([]map[string]any{message}).
		SetProcInst(inst).
		Save(ctx)
	if err != nil {
		return fmt.Errorf("store: create chat for instance %q: %w", instanceID, err)
	}
	return nil
}
