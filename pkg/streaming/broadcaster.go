// Package streaming fans out debounced log writes and claim-wake
// notifications across engine replicas over Redis pub/sub, so a reader
// attached to one replica sees log progress produced on another, and an
// idle poller on one replica can be woken by a work item submitted
// through another.
package streaming

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// logChannel is the Redis pub/sub channel a work item's log updates are
// published on.
func logChannel(itemID string) string {
	return fmt.Sprintf("bpmflow:logs:%s", itemID)
}

// wakeChannel is the single Redis pub/sub channel used to nudge idle
// pollers across every replica.
const wakeChannel = "bpmflow:dispatch:wake"

// LogMessage is one published log update.
type LogMessage struct {
	ItemID string `json:"item_id"`
	Text   string `json:"text"`
}

// Broadcaster publishes and subscribes to log and wake notifications
// over a shared Redis client. It has no required state of its own: a
// zero-value Broadcaster with a nil Client is inert, so callers that
// run without Redis configured can leave it unset rather than branching
// on a feature flag everywhere.
type Broadcaster struct {
	Client *redis.Client
}

// NewBroadcaster returns a Broadcaster backed by client. A nil client
// is valid and makes every method a no-op.
func NewBroadcaster(client *redis.Client) *Broadcaster {
	return &Broadcaster{Client: client}
}

// PublishLog publishes text as the latest accumulated log for itemID.
// A nil Client makes this a no-op so LogStream can call it
// unconditionally.
func (b *Broadcaster) PublishLog(ctx context.Context, itemID, text string) error {
	if b == nil || b.Client == nil {
		return nil
	}
	payload, err := json.Marshal(LogMessage{ItemID: itemID, Text: text})
	if err != nil {
		return fmt.Errorf("streaming: marshal log message: %w", err)
	}
	if err := b.Client.Publish(ctx, logChannel(itemID), payload).Err(); err != nil {
		return fmt.Errorf("streaming: publish log for %s: %w", itemID, err)
	}
	return nil
}

// SubscribeLog subscribes to itemID's log channel. The returned
// function must be called to release the subscription.
func (b *Broadcaster) SubscribeLog(ctx context.Context, itemID string) (<-chan LogMessage, func(), error) {
	if b == nil || b.Client == nil {
		return nil, func() {}, fmt.Errorf("streaming: no redis client configured")
	}
	sub := b.Client.Subscribe(ctx, logChannel(itemID))

	out := make(chan LogMessage)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var decoded LogMessage
			if err := json.Unmarshal([]byte(msg.Payload), &decoded); err != nil {
				continue
			}
			out <- decoded
		}
	}()

	return out, func() { _ = sub.Close() }, nil
}

// PublishWake nudges every replica's idle poller to run a cycle early,
// instead of waiting out its poll interval. A nil Client makes this a
// no-op.
func (b *Broadcaster) PublishWake(ctx context.Context) error {
	if b == nil || b.Client == nil {
		return nil
	}
	if err := b.Client.Publish(ctx, wakeChannel, "1").Err(); err != nil {
		return fmt.Errorf("streaming: publish wake: %w", err)
	}
	return nil
}

// SubscribeWake subscribes to the wake channel, returning a channel
// that receives a value each time any replica calls PublishWake. The
// returned function must be called to release the subscription.
func (b *Broadcaster) SubscribeWake(ctx context.Context) (<-chan struct{}, func(), error) {
	if b == nil || b.Client == nil {
		return nil, func() {}, fmt.Errorf("streaming: no redis client configured")
	}
	sub := b.Client.Subscribe(ctx, wakeChannel)

	out := make(chan struct{})
	go func() {
		defer close(out)
		for range sub.Channel() {
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()

	return out, func() { _ = sub.Close() }, nil
}
