// Package registry keeps the authoritative record of every oracle the
// platform can route to: metadata, performance history, route preferences,
// and the live adapter that actually answers queries. Records are held in
// id-keyed maps and written through to the persistent store; oracles are
// never deleted, only deactivated.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oraclebet/oraclebet/internal/domain"
)

// defaultReliability is the starting score for an oracle with no history.
const defaultReliability int64 = 5000

// Registry is the in-memory oracle registry with write-through persistence.
type Registry struct {
	mu       sync.RWMutex
	oracles  map[string]domain.Oracle
	adapters map[string]domain.OracleAdapter
	prefs    map[domain.DataType]domain.RoutePreference

	store  domain.OracleStore // nil disables persistence
	events domain.EventStore  // nil disables the durable log
	bus    domain.EventBus    // nil disables live publishing
	logger *slog.Logger

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// New creates a Registry. store, events, and bus may each be nil.
func New(store domain.OracleStore, events domain.EventStore, bus domain.EventBus, logger *slog.Logger) *Registry {
	return &Registry{
		oracles:  make(map[string]domain.Oracle),
		adapters: make(map[string]domain.OracleAdapter),
		prefs:    make(map[domain.DataType]domain.RoutePreference),
		store:    store,
		events:   events,
		bus:      bus,
		logger:   logger.With(slog.String("component", "registry")),
		now:      time.Now,
	}
}

// Load restores oracle metadata and route preferences from the persistent
// store. Adapters are runtime constructs and must be re-attached afterwards
// via AttachAdapter.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}

	oracles, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("registry: load oracles: %w", err)
	}
	prefs, err := r.store.ListPreferences(ctx)
	if err != nil {
		return fmt.Errorf("registry: load preferences: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range oracles {
		r.oracles[o.ID] = o
	}
	for _, p := range prefs {
		r.prefs[p.DataType] = p
	}

	r.logger.InfoContext(ctx, "registry: loaded state",
		slog.Int("oracles", len(oracles)),
		slog.Int("preferences", len(prefs)),
	)
	return nil
}

// Register adds a new oracle together with its adapter. It fails with
// domain.ErrAlreadyExists when the id is taken and domain.ErrInvalidInput
// when the metadata is incomplete.
func (r *Registry) Register(ctx context.Context, o domain.Oracle, adapter domain.OracleAdapter) error {
	if o.ID == "" || o.Provider == "" || len(o.DataTypes) == 0 {
		return fmt.Errorf("registry: register: id, provider and data types are required: %w", domain.ErrInvalidInput)
	}
	for _, dt := range o.DataTypes {
		if !dt.Valid() {
			return fmt.Errorf("registry: register: unknown data type %q: %w", dt, domain.ErrInvalidInput)
		}
	}

	now := r.now()
	o.IsActive = true
	o.RegisteredAt = now
	o.LastUpdated = now
	if o.ReliabilityScore == 0 {
		o.ReliabilityScore = defaultReliability
	}

	r.mu.Lock()
	if _, ok := r.oracles[o.ID]; ok {
		r.mu.Unlock()
		return fmt.Errorf("registry: register %s: %w", o.ID, domain.ErrAlreadyExists)
	}
	r.oracles[o.ID] = o
	if adapter != nil {
		r.adapters[o.ID] = adapter
	}
	r.mu.Unlock()

	if err := r.persist(ctx, o); err != nil {
		return err
	}
	r.emit(ctx, domain.Event{
		Type:     domain.EventOracleAdded,
		OracleID: o.ID,
		Payload: map[string]any{
			"provider":   o.Provider,
			"data_types": o.DataTypes,
		},
	})
	return nil
}

// AttachAdapter binds a live adapter to an already-registered oracle, used
// after a restart when metadata was restored from the store.
func (r *Registry) AttachAdapter(id string, adapter domain.OracleAdapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.oracles[id]; !ok {
		return fmt.Errorf("registry: attach adapter %s: %w", id, domain.ErrNotFound)
	}
	r.adapters[id] = adapter
	return nil
}

// Deactivate marks an oracle inactive. It stays in the registry for history.
func (r *Registry) Deactivate(ctx context.Context, id string) error {
	r.mu.Lock()
	o, ok := r.oracles[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("registry: deactivate %s: %w", id, domain.ErrNotFound)
	}
	o.IsActive = false
	o.LastUpdated = r.now()
	r.oracles[id] = o
	r.mu.Unlock()

	if err := r.persist(ctx, o); err != nil {
		return err
	}
	r.emit(ctx, domain.Event{
		Type:     domain.EventOracleUpdated,
		OracleID: id,
		Payload:  map[string]any{"is_active": false},
	})
	return nil
}

// SetPreference replaces the route preference for one data type.
func (r *Registry) SetPreference(ctx context.Context, p domain.RoutePreference) error {
	if !p.DataType.Valid() {
		return fmt.Errorf("registry: set preference: unknown data type %q: %w", p.DataType, domain.ErrInvalidInput)
	}

	r.mu.Lock()
	r.prefs[p.DataType] = p
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.UpsertPreference(ctx, p); err != nil {
			return fmt.Errorf("registry: persist preference %s: %w", p.DataType, err)
		}
	}
	return nil
}

// Preference returns the route preference for a data type, if any.
func (r *Registry) Preference(dt domain.DataType) (domain.RoutePreference, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prefs[dt]
	return p, ok
}

// Get returns one oracle by id.
func (r *Registry) Get(id string) (domain.Oracle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.oracles[id]
	if !ok {
		return domain.Oracle{}, fmt.Errorf("registry: get %s: %w", id, domain.ErrNotFound)
	}
	return o, nil
}

// List returns every registered oracle, active or not, ordered by id.
func (r *Registry) List() []domain.Oracle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Oracle, 0, len(r.oracles))
	for _, o := range r.oracles {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveSupporting returns the active oracles that support dt, ordered by id
// so iteration order is deterministic.
func (r *Registry) ActiveSupporting(dt domain.DataType) []domain.Oracle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Oracle
	for _, o := range r.oracles {
		if o.IsActive && o.Supports(dt) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Adapter returns the live adapter for an oracle id.
func (r *Registry) Adapter(id string) (domain.OracleAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	if !ok {
		return nil, fmt.Errorf("registry: adapter %s: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

// UpdatePerformance records the outcome of one completed oracle query. The
// response time feeds an exponential moving average (0.9 old / 0.1 new) and
// the reliability score is recomputed as successful/total requests scaled to
// 0..10000. Pure bookkeeping: it never fails the triggering operation beyond
// a persistence error.
func (r *Registry) UpdatePerformance(ctx context.Context, id string, success bool, responseTime time.Duration, cost int64) error {
	r.mu.Lock()
	o, ok := r.oracles[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("registry: update performance %s: %w", id, domain.ErrNotFound)
	}

	o.TotalRequests++
	if success {
		o.SuccessfulRequests++
	}
	o.ReliabilityScore = o.SuccessfulRequests * domain.ReliabilityScale / o.TotalRequests
	if o.AvgResponseTime == 0 {
		o.AvgResponseTime = responseTime
	} else {
		o.AvgResponseTime = time.Duration(int64(o.AvgResponseTime)*9/10 + int64(responseTime)/10)
	}
	o.TotalCost += cost
	o.LastUpdated = r.now()
	r.oracles[id] = o
	r.mu.Unlock()

	if err := r.persist(ctx, o); err != nil {
		return err
	}
	r.emit(ctx, domain.Event{
		Type:     domain.EventOraclePerformance,
		OracleID: id,
		Payload: map[string]any{
			"success":           success,
			"response_time_ms":  responseTime.Milliseconds(),
			"cost":              cost,
			"reliability_score": o.ReliabilityScore,
		},
	})
	return nil
}

func (r *Registry) persist(ctx context.Context, o domain.Oracle) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.Upsert(ctx, o); err != nil {
		return fmt.Errorf("registry: persist oracle %s: %w", o.ID, err)
	}
	return nil
}

// emit records an event in the durable log and publishes it to the bus.
// Publish failures are logged, not returned; the log append is authoritative.
func (r *Registry) emit(ctx context.Context, e domain.Event) {
	e.ID = uuid.New().String()
	e.At = r.now()

	if r.events != nil {
		if err := r.events.Append(ctx, e); err != nil {
			r.logger.WarnContext(ctx, "registry: event append failed",
				slog.String("type", string(e.Type)),
				slog.String("error", err.Error()),
			)
		}
	}
	if r.bus != nil {
		if err := r.bus.Publish(ctx, e); err != nil {
			r.logger.WarnContext(ctx, "registry: event publish failed",
				slog.String("type", string(e.Type)),
				slog.String("error", err.Error()),
			)
		}
	}
}
