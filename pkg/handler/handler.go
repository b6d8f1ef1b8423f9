package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/bpmflow/ent"
	"github.com/codeready-toolchain/bpmflow/pkg/definition"
)

// Resolver is the collaborator a parsed Decision is handed to.
// Kept as a narrow local interface (rather than importing pkg/resolver
// directly) so pkg/handler has no dependency on the resolver's own
// collaborators (script executor, notifier, store) — only on the one
// call it needs.
type Resolver interface {
	Resolve(ctx context.Context, decision *Decision) error
}

// DefinitionLookup resolves a work item's process definition. Kept
// as an interface so tests can supply an in-memory map instead of a
// real ProcDef store.
type DefinitionLookup interface {
	Definition(ctx context.Context, procDefID string) (*definition.Definition, error)
}

// LLMHandler is the per-item Handler (satisfies dispatcher.Handler):
// assemble context, ask the advisor, parse/validate/apply the
// decision, with up to MaxParseRetries attempts (3 when unset) before
// Handle returns an error to the dispatcher's retry envelope.
type LLMHandler struct {
	Defs            DefinitionLookup
	Items           workItemFinder
	Advisor         NextStepAdvisor
	Resolver        Resolver
	Store           logWriter
	Publisher       logPublisher
	MaxParseRetries int
	LogInterval     time.Duration
}

// Handle implements dispatcher.Handler.
func (h *LLMHandler) Handle(ctx context.Context, item *ent.WorkItem) error {
	def, err := h.Defs.Definition(ctx, item.ProcDefID)
	if err != nil {
		return fmt.Errorf("handler: load definition %q: %w", item.ProcDefID, err)
	}

	c, err := Assemble(ctx, def, item, h.Items)
	if err != nil {
		return err
	}

	maxRetries := h.MaxParseRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		decision, err := h.proposeAndParse(ctx, item, c)
		if err != nil {
			lastErr = err
			continue
		}
		if err := h.Resolver.Resolve(ctx, decision); err != nil {
			return fmt.Errorf("handler: resolve decision: %w", err)
		}
		return nil
	}
	return fmt.Errorf("handler: decision parse failed after %d attempts: %w", maxRetries, lastErr)
}

func (h *LLMHandler) proposeAndParse(ctx context.Context, item *ent.WorkItem, c Context) (*Decision, error) {
	raw, err := h.Advisor.Propose(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("advisor propose: %w", err)
	}

	if h.Store != nil {
		stream := NewLogStream(h.Store, item.ID, h.LogInterval)
		stream.Publisher = h.Publisher
		stream.Start(ctx)
		stream.Append(raw)
		stream.Close(ctx)
	}

	decision, err := ParseDecision(raw)
	if err != nil {
		return nil, err
	}
	return decision, nil
}
