package domain

import (
	"context"
	"time"
)

// ResultCache stores consensus/resolution answers keyed by
// hash(dataType, question) with per-data-type TTLs.
type ResultCache interface {
	Set(ctx context.Context, dt DataType, question string, res CachedResult) error
	Get(ctx context.Context, dt DataType, question string) (CachedResult, error)
	Invalidate(ctx context.Context, dt DataType, question string) error
}

// EventBus publishes observable events to live consumers. Delivery is
// best-effort; the EventStore is the durable record.
type EventBus interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// RateLimiter answers whether a keyed request is permitted under a sliding
// window limit. Allowed requests are counted against the window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
