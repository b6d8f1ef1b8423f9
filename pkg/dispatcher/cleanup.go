package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/bpmflow/pkg/observability"
	"github.com/codeready-toolchain/bpmflow/pkg/store"
)

// cleanupLoop is a separate long-running loop: it calls
// ReleaseStaleClaims at its own cadence, independent of the
// claim/process workers.
type cleanupLoop struct {
	store    *store.WorkItemStore
	maxAge   time.Duration
	interval time.Duration
}

func newCleanupLoop(st *store.WorkItemStore, maxAge, interval time.Duration) *cleanupLoop {
	return &cleanupLoop{store: st, maxAge: maxAge, interval: interval}
}

func (c *cleanupLoop) run(ctx context.Context, stopCh <-chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.store.ReleaseStaleClaims(ctx, c.maxAge)
			if err != nil {
				slog.Error("stale claim sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("released stale claims", "count", n)
				observability.RecordStaleReclaim(ctx, n)
			}
		}
	}
}
