package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/codeready-toolchain/bpmflow/pkg/store"
)

// Dispatcher owns a pool of workers that poll the work-item store and
// drive each claimed row through a Handler.
type Dispatcher struct {
	podID   string
	store   *store.WorkItemStore
	config  Config
	handler Handler

	workers []*worker
	cleanup *cleanupLoop
	wake    <-chan struct{}

	mu      sync.RWMutex
	active  map[string]context.CancelFunc
	started bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Dispatcher. podID identifies this replica in logs and
// as the claim consumer id.
func New(podID string, st *store.WorkItemStore, cfg Config, handler Handler) *Dispatcher {
	return &Dispatcher{
		podID:   podID,
		store:   st,
		config:  cfg,
		handler: handler,
		active:  make(map[string]context.CancelFunc),
		stopCh:  make(chan struct{}),
	}
}

// SetWakeChannel attaches a cross-replica wake signal (pkg/streaming's
// Broadcaster.SubscribeWake, typically) so an idle worker cuts its poll
// sleep short when another replica just submitted or unblocked work.
// Must be called before Start.
func (d *Dispatcher) SetWakeChannel(wake <-chan struct{}) {
	d.wake = wake
}

// Start spawns the configured number of worker goroutines plus the
// cleanup loop. Idempotent: a second call is a no-op.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	for i := 0; i < d.config.WorkerCount; i++ {
		w := newWorker(fmt.Sprintf("%s-w%d", d.podID, i), d.podID, d.store, d.config, d.handler, d, d.wake)
		d.workers = append(d.workers, w)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			w.run(ctx)
		}()
	}

	d.cleanup = newCleanupLoop(d.store, d.config.StaleClaimAge, d.config.CleanupInterval)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.cleanup.run(ctx, d.stopCh)
	}()

	slog.Info("dispatcher started", "pod_id", d.podID, "workers", d.config.WorkerCount)
}

// Stop signals every worker and the cleanup loop to finish their
// in-flight work and return, then waits for them: stops spawning new
// tasks, awaits in-flight tasks, cancels cleanup, exits. Safe to call
// more than once.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
		for _, w := range d.workers {
			w.stop()
		}
	})
	d.wg.Wait()
	slog.Info("dispatcher stopped", "pod_id", d.podID)
}

// RegisterActive records a cancel function for an in-flight item so it
// can be cancelled externally (e.g. an operator-initiated abort).
func (d *Dispatcher) RegisterActive(itemID string, cancel context.CancelFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active[itemID] = cancel
}

// UnregisterActive removes an item from the in-flight registry.
func (d *Dispatcher) UnregisterActive(itemID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.active, itemID)
}

// CancelActive cancels an in-flight item's context if it is currently
// being processed by this replica. Returns false if not found here.
func (d *Dispatcher) CancelActive(itemID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cancel, ok := d.active[itemID]
	if ok {
		cancel()
	}
	return ok
}

// ActiveCount returns the number of items currently in flight across
// all workers on this replica.
func (d *Dispatcher) ActiveCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.active)
}
