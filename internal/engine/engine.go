// Package engine owns the lifecycle of every prediction market: betting
// pools, resolution, disputes, and claims. All markets live in an id-keyed
// in-memory arena; every command executes as one serialized, atomic
// transaction under a single mutex, mirroring a ledger execution model.
// There is no background scheduler: market end times and dispute deadlines
// are wall-clock values evaluated lazily whenever a relevant command runs.
//
// Ordering rule for claims and refunds: all state mutation (position
// zeroing included) is fully applied before any value transfer is issued.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oraclebet/oraclebet/internal/domain"
	"github.com/oraclebet/oraclebet/internal/registry"
)

// marketState bundles one market with its positions, keyed by bettor.
type marketState struct {
	market    domain.Market
	positions map[string][]domain.Position
}

// Engine is the market arena. The persistent stores are a durable mirror of
// the in-memory state: they are written through after each command commits
// and re-read only at startup.
type Engine struct {
	mu      sync.Mutex
	markets map[string]*marketState

	registry  *registry.Registry
	treasury  domain.Treasury      // nil disables value movement
	store     domain.MarketStore   // nil disables persistence
	positions domain.PositionStore // nil disables persistence
	events    domain.EventStore    // nil disables the durable log
	bus       domain.EventBus      // nil disables live publishing
	logger    *slog.Logger

	now func() time.Time
}

// New creates an Engine. Every dependency except the registry and logger may
// be nil.
func New(reg *registry.Registry, treasury domain.Treasury, store domain.MarketStore, positions domain.PositionStore, events domain.EventStore, bus domain.EventBus, logger *slog.Logger) *Engine {
	return &Engine{
		markets:   make(map[string]*marketState),
		registry:  reg,
		treasury:  treasury,
		store:     store,
		positions: positions,
		events:    events,
		bus:       bus,
		logger:    logger.With(slog.String("component", "engine")),
		now:       time.Now,
	}
}

// Load restores markets and positions from the persistent mirror.
func (e *Engine) Load(ctx context.Context) error {
	if e.store == nil {
		return nil
	}

	markets, err := e.store.List(ctx, domain.ListOpts{})
	if err != nil {
		return fmt.Errorf("engine: load markets: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, m := range markets {
		ms := &marketState{market: m, positions: make(map[string][]domain.Position)}
		if e.positions != nil {
			ps, err := e.positions.ListByMarket(ctx, m.ID)
			if err != nil {
				return fmt.Errorf("engine: load positions for %s: %w", m.ID, err)
			}
			for _, p := range ps {
				ms.positions[p.Bettor] = append(ms.positions[p.Bettor], p)
			}
		}
		e.markets[m.ID] = ms
	}

	e.logger.InfoContext(ctx, "engine: loaded state", slog.Int("markets", len(markets)))
	return nil
}

// AddMarket registers a freshly created market in the arena. Called by the
// factory under its creation flow.
func (e *Engine) AddMarket(ctx context.Context, m domain.Market) error {
	e.mu.Lock()
	if _, ok := e.markets[m.ID]; ok {
		e.mu.Unlock()
		return fmt.Errorf("engine: add market %s: %w", m.ID, domain.ErrAlreadyExists)
	}
	e.markets[m.ID] = &marketState{market: m, positions: make(map[string][]domain.Position)}
	e.mu.Unlock()

	e.persistMarket(ctx, m)
	return nil
}

// AddMarkets registers a batch of markets all-or-nothing: every id is
// checked against the arena and against the rest of the batch before the
// first insert, so a collision leaves the arena untouched.
func (e *Engine) AddMarkets(ctx context.Context, ms []domain.Market) error {
	e.mu.Lock()
	seen := make(map[string]struct{}, len(ms))
	for _, m := range ms {
		if _, ok := e.markets[m.ID]; ok {
			e.mu.Unlock()
			return fmt.Errorf("engine: add market %s: %w", m.ID, domain.ErrAlreadyExists)
		}
		if _, ok := seen[m.ID]; ok {
			e.mu.Unlock()
			return fmt.Errorf("engine: add market %s twice in one batch: %w", m.ID, domain.ErrAlreadyExists)
		}
		seen[m.ID] = struct{}{}
	}
	for _, m := range ms {
		e.markets[m.ID] = &marketState{market: m, positions: make(map[string][]domain.Position)}
	}
	e.mu.Unlock()

	for _, m := range ms {
		e.persistMarket(ctx, m)
	}
	return nil
}

// Market returns a copy of one market. A market past its end time but not
// yet resolved is reported as ENDED without mutating stored state.
func (e *Engine) Market(id string) (domain.Market, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ms, ok := e.markets[id]
	if !ok {
		return domain.Market{}, fmt.Errorf("engine: market %s: %w", id, domain.ErrNotFound)
	}
	m := cloneMarket(ms.market)
	if m.Status == domain.MarketStatusActive && !e.now().Before(m.EndTime) {
		m.Status = domain.MarketStatusEnded
	}
	return m, nil
}

// ListMarkets returns every market, ordered by creation time descending.
// An empty status matches all.
func (e *Engine) ListMarkets(status domain.MarketStatus) []domain.Market {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	out := make([]domain.Market, 0, len(e.markets))
	for _, ms := range e.markets {
		m := cloneMarket(ms.market)
		if m.Status == domain.MarketStatusActive && !now.Before(m.EndTime) {
			m.Status = domain.MarketStatusEnded
		}
		if status != "" && m.Status != status {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Positions returns copies of one bettor's positions in a market.
func (e *Engine) Positions(marketID, bettor string) ([]domain.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ms, ok := e.markets[marketID]
	if !ok {
		return nil, fmt.Errorf("engine: market %s: %w", marketID, domain.ErrNotFound)
	}
	out := make([]domain.Position, len(ms.positions[bettor]))
	copy(out, ms.positions[bettor])
	return out, nil
}

// cloneMarket copies a market deeply enough that callers cannot reach the
// arena's slices.
func cloneMarket(m domain.Market) domain.Market {
	c := m
	c.Outcomes = append([]string(nil), m.Outcomes...)
	c.OutcomePools = append([]int64(nil), m.OutcomePools...)
	if m.OracleParams != nil {
		c.OracleParams = make(map[string]string, len(m.OracleParams))
		for k, v := range m.OracleParams {
			c.OracleParams[k] = v
		}
	}
	if m.ResolvedAt != nil {
		t := *m.ResolvedAt
		c.ResolvedAt = &t
	}
	if m.DisputeDeadline != nil {
		t := *m.DisputeDeadline
		c.DisputeDeadline = &t
	}
	return c
}

// mulDiv computes a*b/c without intermediate overflow.
func mulDiv(a, b, c int64) int64 {
	r := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	r.Quo(r, big.NewInt(c))
	return r.Int64()
}

// persistMarket mirrors a committed market to the store. The arena is
// authoritative during a run; mirror failures are logged, not propagated.
func (e *Engine) persistMarket(ctx context.Context, m domain.Market) {
	if e.store == nil {
		return
	}
	if err := e.store.Upsert(ctx, m); err != nil {
		e.logger.WarnContext(ctx, "engine: market mirror failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) persistPositions(ctx context.Context, ps []domain.Position) {
	if e.positions == nil || len(ps) == 0 {
		return
	}
	if err := e.positions.UpsertBatch(ctx, ps); err != nil {
		e.logger.WarnContext(ctx, "engine: position mirror failed",
			slog.String("market_id", ps[0].MarketID),
			slog.String("error", err.Error()),
		)
	}
}

// emit appends to the durable event log and publishes to the live bus.
func (e *Engine) emit(ctx context.Context, ev domain.Event) {
	ev.ID = uuid.New().String()
	ev.At = e.now()

	if e.events != nil {
		if err := e.events.Append(ctx, ev); err != nil {
			e.logger.WarnContext(ctx, "engine: event append failed",
				slog.String("type", string(ev.Type)),
				slog.String("error", err.Error()),
			)
		}
	}
	if e.bus != nil {
		if err := e.bus.Publish(ctx, ev); err != nil {
			e.logger.WarnContext(ctx, "engine: event publish failed",
				slog.String("type", string(ev.Type)),
				slog.String("error", err.Error()),
			)
		}
	}
}

// credit moves value to an account after the owning command has fully
// committed its state changes.
func (e *Engine) credit(ctx context.Context, account, asset string, amount int64) {
	if e.treasury == nil || amount == 0 {
		return
	}
	if err := e.treasury.Credit(ctx, account, asset, amount); err != nil {
		e.logger.ErrorContext(ctx, "engine: credit failed",
			slog.String("account", account),
			slog.Int64("amount", amount),
			slog.String("error", err.Error()),
		)
	}
}

// debit collects a payment before any state is mutated, so a failed payment
// aborts the whole command.
func (e *Engine) debit(ctx context.Context, account, asset string, amount int64) error {
	if e.treasury == nil || amount == 0 {
		return nil
	}
	if err := e.treasury.Debit(ctx, account, asset, amount); err != nil {
		return err
	}
	return nil
}
