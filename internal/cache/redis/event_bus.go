package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/oraclebet/oraclebet/internal/domain"
)

// eventsChannel is the Pub/Sub channel live consumers subscribe to; the
// stream of the same name keeps a bounded replay buffer for late joiners.
const (
	eventsChannel = "events"

	// Approximate maximum stream length, enforced via XADD MAXLEN ~.
	streamMaxLen int64 = 10000
)

// EventBus implements domain.EventBus using Redis Pub/Sub for live fan-out
// plus a capped Redis Stream as a short replay buffer. Delivery is
// best-effort; the Postgres event log is the durable record.
type EventBus struct {
	rdb *redis.Client
}

// NewEventBus creates an EventBus backed by the given Client.
func NewEventBus(c *Client) *EventBus {
	return &EventBus{rdb: c.Underlying()}
}

// Publish fans an event out to subscribers and appends it to the replay
// stream.
func (b *EventBus) Publish(ctx context.Context, e domain.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	if err := b.rdb.Publish(ctx, eventsChannel, data).Err(); err != nil {
		return fmt.Errorf("redis: publish event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: eventsChannel,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"payload": data,
		},
	}
	if err := b.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append event: %w", err)
	}
	return nil
}

// Subscribe creates a Pub/Sub subscription and returns a read-only channel of
// decoded events. The subscription closes when the context is cancelled;
// the returned channel is closed at that point as well. Payloads that fail to
// decode are dropped.
func (b *EventBus) Subscribe(ctx context.Context) (<-chan domain.Event, error) {
	pubsub := b.rdb.Subscribe(ctx, eventsChannel)

	// Verify the subscription is established by receiving the confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe events: %w", err)
	}

	out := make(chan domain.Event, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var e domain.Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Compile-time interface check.
var _ domain.EventBus = (*EventBus)(nil)
