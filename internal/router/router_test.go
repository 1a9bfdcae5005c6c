package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/oraclebet/oraclebet/internal/domain"
	"github.com/oraclebet/oraclebet/internal/oracle"
	"github.com/oraclebet/oraclebet/internal/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCache is an in-memory domain.ResultCache.
type fakeCache struct {
	entries map[string]domain.CachedResult
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]domain.CachedResult)}
}

func (c *fakeCache) key(dt domain.DataType, q string) string { return string(dt) + "|" + q }

func (c *fakeCache) Set(ctx context.Context, dt domain.DataType, q string, res domain.CachedResult) error {
	c.entries[c.key(dt, q)] = res
	return nil
}

func (c *fakeCache) Get(ctx context.Context, dt domain.DataType, q string) (domain.CachedResult, error) {
	res, ok := c.entries[c.key(dt, q)]
	if !ok {
		return domain.CachedResult{}, domain.ErrNotFound
	}
	return res, nil
}

func (c *fakeCache) Invalidate(ctx context.Context, dt domain.DataType, q string) error {
	delete(c.entries, c.key(dt, q))
	return nil
}

// addOracle registers an oracle with a static adapter quoting cost.
func addOracle(t *testing.T, reg *registry.Registry, id string, reliability, cost int64) *oracle.StaticAdapter {
	t.Helper()
	adapter := oracle.NewStaticAdapter("provider-"+id, []domain.DataType{domain.DataTypePrice}, cost)
	o := domain.Oracle{
		ID:               id,
		Provider:         "provider-" + id,
		DataTypes:        []domain.DataType{domain.DataTypePrice},
		ReliabilityScore: reliability,
		BaseCost:         cost,
	}
	if err := reg.Register(context.Background(), o, adapter); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	return adapter
}

func TestRouteQuestion_PrefersReliability(t *testing.T) {
	reg := registry.New(nil, nil, nil, testLogger())
	addOracle(t, reg, "weak", 3000, 1000)
	addOracle(t, reg, "strong", 9500, 1000)
	r := New(reg, nil, nil, nil, testLogger())

	d, err := r.RouteQuestion(context.Background(), domain.DataTypePrice, "BTC/USD", 0, false, nil)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if d.OracleID != "strong" {
		t.Errorf("routed to %s, want strong", d.OracleID)
	}
	if d.EstimatedCost != 1000 {
		t.Errorf("estimated cost = %d, want 1000", d.EstimatedCost)
	}
	if d.FromCache {
		t.Error("unexpected cache hit")
	}
}

func TestRouteQuestion_CostCeiling(t *testing.T) {
	reg := registry.New(nil, nil, nil, testLogger())
	addOracle(t, reg, "premium", 9500, 5000)
	addOracle(t, reg, "budget", 6000, 500)
	r := New(reg, nil, nil, nil, testLogger())
	ctx := context.Background()

	// The more reliable oracle is over budget and must be discarded.
	d, err := r.RouteQuestion(ctx, domain.DataTypePrice, "BTC/USD", 1000, false, nil)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if d.OracleID != "budget" {
		t.Errorf("routed to %s, want budget", d.OracleID)
	}

	// Nobody fits under the ceiling.
	if _, err := r.RouteQuestion(ctx, domain.DataTypePrice, "BTC/USD", 100, false, nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Zero ceiling means unlimited.
	d, err = r.RouteQuestion(ctx, domain.DataTypePrice, "BTC/USD", 0, false, nil)
	if err != nil {
		t.Fatalf("route unlimited: %v", err)
	}
	if d.OracleID != "premium" {
		t.Errorf("routed to %s, want premium", d.OracleID)
	}
}

func TestRouteQuestion_CacheShortCircuit(t *testing.T) {
	reg := registry.New(nil, nil, nil, testLogger())
	addOracle(t, reg, "a", 9000, 1000)

	cache := newFakeCache()
	cache.Set(context.Background(), domain.DataTypePrice, "BTC/USD", domain.CachedResult{
		Value:      42000,
		Confidence: 9000,
		OracleID:   "a",
		Timestamp:  time.Now(),
	})
	r := New(reg, cache, nil, nil, testLogger())
	ctx := context.Background()

	d, err := r.RouteQuestion(ctx, domain.DataTypePrice, "BTC/USD", 0, false, nil)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if !d.FromCache || d.CachedValue != 42000 {
		t.Errorf("decision = %+v, want cache hit with value 42000", d)
	}
	if d.EstimatedCost != 0 {
		t.Errorf("cache hit charged %d", d.EstimatedCost)
	}

	// Urgent bypasses the cache.
	d, err = r.RouteQuestion(ctx, domain.DataTypePrice, "BTC/USD", 0, true, nil)
	if err != nil {
		t.Fatalf("route urgent: %v", err)
	}
	if d.FromCache {
		t.Error("urgent route must not come from cache")
	}
}

func TestRouteQuestion_PreferenceOrder(t *testing.T) {
	reg := registry.New(nil, nil, nil, testLogger())
	addOracle(t, reg, "best", 9900, 1000)
	addOracle(t, reg, "preferred", 5000, 1000)
	r := New(reg, nil, nil, nil, testLogger())
	ctx := context.Background()

	if err := reg.SetPreference(ctx, domain.RoutePreference{
		DataType:  domain.DataTypePrice,
		Preferred: []string{"preferred"},
	}); err != nil {
		t.Fatalf("set preference: %v", err)
	}

	// The preferred list restricts the candidates even when a higher
	// scoring oracle exists outside it.
	d, err := r.RouteQuestion(ctx, domain.DataTypePrice, "BTC/USD", 0, false, nil)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if d.OracleID != "preferred" {
		t.Errorf("routed to %s, want preferred", d.OracleID)
	}

	// An unusable preferred list falls through to the fallback, then to
	// every active supporting oracle.
	if err := reg.Deactivate(ctx, "preferred"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	d, err = r.RouteQuestion(ctx, domain.DataTypePrice, "BTC/USD", 0, false, nil)
	if err != nil {
		t.Fatalf("route after deactivate: %v", err)
	}
	if d.OracleID != "best" {
		t.Errorf("routed to %s, want best", d.OracleID)
	}
}

func TestRouteQuestion_InvalidDataType(t *testing.T) {
	reg := registry.New(nil, nil, nil, testLogger())
	r := New(reg, nil, nil, nil, testLogger())

	_, err := r.RouteQuestion(context.Background(), "horoscope", "q", 0, false, nil)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRouteQuestion_NoOracle(t *testing.T) {
	reg := registry.New(nil, nil, nil, testLogger())
	r := New(reg, nil, nil, nil, testLogger())

	_, err := r.RouteQuestion(context.Background(), domain.DataTypePrice, "q", 0, false, nil)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompositeScore_UrgencyPrefersSpeed(t *testing.T) {
	now := time.Now()
	fast := domain.Oracle{ReliabilityScore: 6000, AvgResponseTime: 500 * time.Millisecond, LastUpdated: now}
	slow := domain.Oracle{ReliabilityScore: 7000, AvgResponseTime: 10 * time.Second, LastUpdated: now}

	// With a budget in play the slow oracle's reliability edge can win a
	// non-urgent call, but urgency must flip the comparison.
	fastUrgent := compositeScore(fast, 1000, 2000, true, now)
	slowUrgent := compositeScore(slow, 1000, 2000, true, now)
	if fastUrgent <= slowUrgent {
		t.Errorf("urgent: fast %.4f <= slow %.4f", fastUrgent, slowUrgent)
	}
}
