package handler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// logWriter is the store subset the debounced writer needs.
type logWriter interface {
	WriteLog(ctx context.Context, id, msg string) error
}

// logPublisher fans a flushed chunk out to any replica watching this
// item's logs. pkg/streaming.Broadcaster is the production
// implementation; a nil Publisher field skips fan-out entirely.
type logPublisher interface {
	PublishLog(ctx context.Context, itemID, text string) error
}

// LogStream is a debounced single-goroutine-per-item streaming log
// writer: at most one DB write per second, collapsing any number of
// appended chunks between flushes into the latest accumulated text.
// One instance per item so concurrent items don't serialize through a
// shared channel.
type LogStream struct {
	store     logWriter
	Publisher logPublisher
	itemID    string
	interval  time.Duration

	mu      sync.Mutex
	buf     string
	dirty   bool
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewLogStream creates a LogStream for a single work item. Call Start
// before the first Append, and Close once the handler is done so the
// final chunk flushes and the goroutine exits.
func NewLogStream(store logWriter, itemID string, interval time.Duration) *LogStream {
	if interval <= 0 {
		interval = time.Second
	}
	return &LogStream{
		store:    store,
		itemID:   itemID,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the debounce goroutine. Idempotent.
func (l *LogStream) Start(ctx context.Context) {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	go l.run(ctx)
}

// Append accumulates text into the pending buffer; it does not block
// on a DB write.
func (l *LogStream) Append(chunk string) {
	l.mu.Lock()
	l.buf += chunk
	l.dirty = true
	l.mu.Unlock()
}

// Close stops the debounce goroutine after flushing any pending text.
func (l *LogStream) Close(ctx context.Context) {
	close(l.stopCh)
	<-l.doneCh
	l.flush(ctx)
}

func (l *LogStream) run(ctx context.Context) {
	defer close(l.doneCh)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.flush(ctx)
		}
	}
}

func (l *LogStream) flush(ctx context.Context) {
	l.mu.Lock()
	if !l.dirty {
		l.mu.Unlock()
		return
	}
	text := l.buf
	l.dirty = false
	l.mu.Unlock()

	if err := l.store.WriteLog(ctx, l.itemID, text); err != nil {
		slog.Warn("log stream flush failed", "item_id", l.itemID, "error", err)
	}
	if l.Publisher != nil {
		if err := l.Publisher.PublishLog(ctx, l.itemID, text); err != nil {
			slog.Warn("log stream publish failed", "item_id", l.itemID, "error", err)
		}
	}
}
