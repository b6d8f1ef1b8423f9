// Package dispatcher implements the Polling Dispatcher: a configurable
// pool of workers that claim due work items, run them through a
// pluggable per-item Handler, and enforce the retry/terminal-state and
// graceful-shutdown rules.
package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/codeready-toolchain/bpmflow/ent"
)

// ErrNoWorkAvailable names a claim attempt that found nothing eligible
// under either selector. The workers do not return it: an empty poll
// cycle is reported as a zero claim count.
var ErrNoWorkAvailable = errors.New("dispatcher: no work available")

// Handler is the inner per-item processor a worker invokes after
// claiming a row. Implementations own the entire handling of the item
// (LLM-driven resolution, agent dispatch, or script execution) and are
// expected to have already set the item's terminal status themselves on
// success. The dispatcher only owns the claim/retry/release envelope
// around this call.
type Handler interface {
	Handle(ctx context.Context, item *ent.WorkItem) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, item *ent.WorkItem) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, item *ent.WorkItem) error {
	return f(ctx, item)
}

// Config controls dispatcher concurrency, timing, and retry behavior.
type Config struct {
	// WorkerCount is the number of concurrent claim/process goroutines.
	WorkerCount int
	// ClaimBatchSize bounds how many rows a single claim call may take
	// per selector per poll cycle.
	ClaimBatchSize int
	// PollInterval is the base sleep between poll cycles when nothing
	// was claimed.
	PollInterval time.Duration
	// PollIntervalJitter randomizes PollInterval by +/- this amount so
	// replicas don't all poll in lockstep.
	PollIntervalJitter time.Duration
	// ItemTimeout bounds a single handler invocation.
	ItemTimeout time.Duration
	// MaxRetries is the retry ceiling before a failed item collapses
	// into terminal state.
	MaxRetries int
	// StaleClaimAge is the lease age release_stale_claims sweeps on.
	StaleClaimAge time.Duration
	// CleanupInterval is the cadence of the stale-claim sweep loop.
	CleanupInterval time.Duration
}

// DefaultConfig returns production-sensible defaults.
func DefaultConfig() Config {
	return Config{
		WorkerCount:        4,
		ClaimBatchSize:     5,
		PollInterval:       5 * time.Second,
		PollIntervalJitter: time.Second,
		ItemTimeout:        5 * time.Minute,
		MaxRetries:         3,
		StaleClaimAge:      30 * time.Minute,
		CleanupInterval:    5 * time.Minute,
	}
}
