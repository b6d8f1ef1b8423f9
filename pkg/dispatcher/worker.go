package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/codeready-toolchain/bpmflow/ent"
	"github.com/codeready-toolchain/bpmflow/pkg/observability"
	"github.com/codeready-toolchain/bpmflow/pkg/store"
)

// activeRegistry is the subset of Dispatcher a worker needs for the
// in-flight cancellation registry.
type activeRegistry interface {
	RegisterActive(itemID string, cancel context.CancelFunc)
	UnregisterActive(itemID string)
}

type worker struct {
	id      string
	podID   string
	store   *store.WorkItemStore
	config  Config
	handler Handler
	reg     activeRegistry
	wake    <-chan struct{}

	stopCh chan struct{}
}

func newWorker(id, podID string, st *store.WorkItemStore, cfg Config, handler Handler, reg activeRegistry, wake <-chan struct{}) *worker {
	return &worker{
		id:      id,
		podID:   podID,
		store:   st,
		config:  cfg,
		handler: handler,
		reg:     reg,
		wake:    wake,
		stopCh:  make(chan struct{}),
	}
}

func (w *worker) stop() {
	close(w.stopCh)
}

// run is the claim -> spawn -> await -> sleep loop, collapsed into one
// goroutine per worker (a worker handles its claimed
// batch serially; WorkerCount is the concurrency knob instead of a
// per-item goroutine spawn, which keeps the in-flight tracker trivial).
func (w *worker) run(ctx context.Context) {
	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("dispatcher worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("dispatcher worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, dispatcher worker shutting down")
			return
		default:
			n, err := w.pollAndProcess(ctx)
			if err != nil {
				log.Error("poll cycle error", "error", err)
				w.sleep(time.Second)
				continue
			}
			if n == 0 {
				w.sleep(w.pollInterval())
			}
		}
	}
}

func (w *worker) sleep(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-w.stopCh:
	case <-timer.C:
	case <-w.wake:
	}
}

// pollAndProcess claims due items under both selectors and processes
// each to completion before the next poll cycle, returning how many
// were claimed.
func (w *worker) pollAndProcess(ctx context.Context) (int, error) {
	ctx, end := observability.StartSpan(ctx, "dispatcher.poll")
	var err error
	defer func() { end(err) }()

	submitted, err := w.store.ClaimDue(ctx, w.config.ClaimBatchSize, w.id, store.SelectorSubmitted)
	if err != nil {
		return 0, fmt.Errorf("claim submitted: %w", err)
	}
	dispatch, err := w.store.ClaimDue(ctx, w.config.ClaimBatchSize, w.id, store.SelectorAgentDispatch)
	if err != nil {
		return 0, fmt.Errorf("claim agent dispatch: %w", err)
	}

	items := append(submitted, dispatch...)
	observability.RecordClaims(ctx, w.podID, len(items))
	observability.QueueDepth.WithLabelValues(w.podID).Add(float64(len(items)))
	if len(submitted) > 0 {
		observability.ClaimsTotal.WithLabelValues(w.podID, "submitted").Add(float64(len(submitted)))
	}
	if len(dispatch) > 0 {
		observability.ClaimsTotal.WithLabelValues(w.podID, "agent_dispatch").Add(float64(len(dispatch)))
	}

	for _, item := range items {
		w.processItem(ctx, item)
	}
	return len(items), nil
}

// processItem is the per-item handler wrapper: log "starting", invoke
// the inner handler, apply the retry/terminal rule on failure, and in
// every outcome release the consumer lease.
func (w *worker) processItem(ctx context.Context, item *ent.WorkItem) {
	log := slog.With("item_id", item.ID, "worker_id", w.id, "activity_id", item.ActivityID)

	itemCtx, cancel := context.WithTimeout(ctx, w.config.ItemTimeout)
	w.reg.RegisterActive(item.ID, cancel)
	defer func() {
		cancel()
		w.reg.UnregisterActive(item.ID)
		observability.QueueDepth.WithLabelValues(w.podID).Sub(1)
	}()

	itemCtx, endSpan := observability.StartSpan(itemCtx, "dispatcher.process_item",
		attribute.String("activity_id", item.ActivityID))

	w.writeStartingLog(context.Background(), item)

	log.Info("work item claimed")
	err := w.handler.Handle(itemCtx, item)
	endSpan(err)

	// Every outcome releases the lease; failure additionally applies
	// the retry/terminal collapse before release.
	releaseCtx := context.Background()
	if err != nil {
		w.handleFailure(releaseCtx, item, err)
		log.Error("work item handler failed", "error", err)
		return
	}

	if releaseErr := w.releaseConsumer(releaseCtx, item.ID); releaseErr != nil {
		log.Error("failed to release consumer after success", "error", releaseErr)
	}
	log.Info("work item handled")
}

// handleFailure increments retry and nulls the consumer; if retry >=
// MaxRetries it collapses into terminal DONE with an
// error log instead of a separate ERROR state, since failed
// side-effectful steps become compensation candidates rather than a
// distinct terminal bucket.
func (w *worker) handleFailure(ctx context.Context, item *ent.WorkItem, cause error) {
	msg := cause.Error()
	if len(msg) > 1000 {
		msg = msg[:1000]
	}

	observability.RecordHandlerRetry(ctx, item.ActivityID)
	observability.RetryTotal.WithLabelValues(item.ActivityID).Inc()

	retry := item.Retry + 1
	err := w.store.RecordFailure(ctx, store.FailInput{
		ItemID:      item.ID,
		Retry:       retry,
		MarkDone:    retry >= w.config.MaxRetries,
		ErrorDetail: msg,
	})
	if err != nil {
		slog.Error("failed to record handler failure", "item_id", item.ID, "error", err)
	}
}

func (w *worker) releaseConsumer(ctx context.Context, itemID string) error {
	return w.store.Release(ctx, itemID)
}

func (w *worker) writeStartingLog(ctx context.Context, item *ent.WorkItem) {
	if err := w.store.WriteLog(ctx, item.ID, fmt.Sprintf("starting %s", item.ActivityID)); err != nil {
		slog.Warn("failed to write starting log", "item_id", item.ID, "error", err)
	}
}

// pollInterval returns the configured poll interval with symmetric
// jitter so replicas don't poll in lockstep.
func (w *worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}
