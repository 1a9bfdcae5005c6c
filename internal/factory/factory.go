// Package factory creates markets and offers batch operations over them.
// Creation asks the router for an oracle first, derives a deterministic
// market address from the creation tuple, instantiates the market in the
// engine, and records it in the registry of created markets. Batch creation
// is atomic; batch resolution skips failing markets instead.
package factory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oraclebet/oraclebet/internal/domain"
	"github.com/oraclebet/oraclebet/internal/engine"
	"github.com/oraclebet/oraclebet/internal/marketaddr"
	"github.com/oraclebet/oraclebet/internal/router"
)

// Factory creates and batch-operates markets.
type Factory struct {
	router *router.Router
	engine *engine.Engine
	events domain.EventStore // nil disables the durable log
	bus    domain.EventBus   // nil disables live publishing
	logger *slog.Logger

	now func() time.Time
}

// New creates a Factory. events and bus may be nil.
func New(rt *router.Router, eng *engine.Engine, events domain.EventStore, bus domain.EventBus, logger *slog.Logger) *Factory {
	return &Factory{
		router: rt,
		engine: eng,
		events: events,
		bus:    bus,
		logger: logger.With(slog.String("component", "factory")),
		now:    time.Now,
	}
}

// validate checks the request's cardinalities and bounds without touching
// any state.
func validate(req domain.CreateMarketRequest) error {
	if strings.TrimSpace(req.Question) == "" {
		return fmt.Errorf("factory: question is required: %w", domain.ErrInvalidInput)
	}
	if req.Creator == "" {
		return fmt.Errorf("factory: creator is required: %w", domain.ErrInvalidInput)
	}
	if n := len(req.Outcomes); n < domain.MinOutcomes || n > domain.MaxOutcomes {
		return fmt.Errorf("factory: %d outcomes (%d..%d allowed): %w", n, domain.MinOutcomes, domain.MaxOutcomes, domain.ErrInvalidInput)
	}
	for _, o := range req.Outcomes {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("factory: empty outcome label: %w", domain.ErrInvalidInput)
		}
	}
	if req.Duration < domain.MinDuration || req.Duration > domain.MaxDuration {
		return fmt.Errorf("factory: duration %s (%s..%s allowed): %w", req.Duration, domain.MinDuration, domain.MaxDuration, domain.ErrInvalidInput)
	}
	if !req.DataType.Valid() {
		return fmt.Errorf("factory: unknown data type %q: %w", req.DataType, domain.ErrInvalidInput)
	}
	return nil
}

// prepare validates one request, routes it, and derives its deterministic
// address, returning the market ready for instantiation. No state is touched.
func (f *Factory) prepare(ctx context.Context, req domain.CreateMarketRequest) (domain.Market, error) {
	if err := validate(req); err != nil {
		return domain.Market{}, err
	}

	decision, err := f.router.RouteQuestion(ctx, req.DataType, req.Question, 0, true, req.OracleParams)
	if err != nil {
		return domain.Market{}, fmt.Errorf("factory: route %q: %w", req.Question, err)
	}

	now := f.now()
	endTime := now.Add(req.Duration)
	salt := req.Salt
	if salt == "" {
		salt = uuid.New().String()
	}
	id := marketaddr.Derive(req.Creator, req.Question, req.DataType, endTime.Unix(), salt)

	return domain.Market{
		ID:           id,
		Question:     req.Question,
		Outcomes:     append([]string(nil), req.Outcomes...),
		Creator:      req.Creator,
		CreatedAt:    now,
		EndTime:      endTime,
		PaymentAsset: req.PaymentAsset,
		OracleID:     decision.OracleID,
		DataType:     req.DataType,
		OracleParams: req.OracleParams,
		Status:       domain.MarketStatusActive,
		OutcomePools: make([]int64, len(req.Outcomes)),
		UpdatedAt:    now,
	}, nil
}

// announce emits the created event and logs for one instantiated market.
func (f *Factory) announce(ctx context.Context, m domain.Market) {
	f.emit(ctx, domain.Event{
		Type:     domain.EventMarketCreated,
		MarketID: m.ID,
		OracleID: m.OracleID,
		Actor:    m.Creator,
		Payload: map[string]any{
			"question":  m.Question,
			"outcomes":  m.Outcomes,
			"data_type": m.DataType,
			"end_time":  m.EndTime,
		},
	})

	f.logger.InfoContext(ctx, "factory: market created",
		slog.String("market_id", m.ID),
		slog.String("oracle_id", m.OracleID),
	)
}

// CreateMarket validates the request, routes it to an oracle with an
// unlimited cost ceiling, and instantiates the market under its
// deterministic address. Fails with domain.ErrNotFound when no oracle
// serves the data type.
func (f *Factory) CreateMarket(ctx context.Context, req domain.CreateMarketRequest) (domain.CreateMarketResult, error) {
	m, err := f.prepare(ctx, req)
	if err != nil {
		return domain.CreateMarketResult{}, err
	}

	if err := f.engine.AddMarket(ctx, m); err != nil {
		return domain.CreateMarketResult{}, fmt.Errorf("factory: create market: %w", err)
	}

	f.announce(ctx, m)
	return domain.CreateMarketResult{MarketID: m.ID, Address: m.ID}, nil
}

// BatchCreateMarkets creates up to ten markets as one atomic operation: the
// whole batch is validated, routed, and address-derived before the first
// market is instantiated, and the engine inserts the batch all-or-nothing,
// so a bad request, an unroutable data type, or an address collision — with
// existing markets or within the batch — fails with no market created.
func (f *Factory) BatchCreateMarkets(ctx context.Context, reqs []domain.CreateMarketRequest) ([]domain.CreateMarketResult, error) {
	if len(reqs) == 0 || len(reqs) > domain.MaxBatchSize {
		return nil, fmt.Errorf("factory: batch of %d requests (1..%d allowed): %w", len(reqs), domain.MaxBatchSize, domain.ErrInvalidInput)
	}

	markets := make([]domain.Market, 0, len(reqs))
	for i, req := range reqs {
		m, err := f.prepare(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("factory: batch item %d: %w", i, err)
		}
		markets = append(markets, m)
	}

	if err := f.engine.AddMarkets(ctx, markets); err != nil {
		return nil, fmt.Errorf("factory: batch create: %w", err)
	}

	out := make([]domain.CreateMarketResult, 0, len(markets))
	for _, m := range markets {
		f.announce(ctx, m)
		out = append(out, domain.CreateMarketResult{MarketID: m.ID, Address: m.ID})
	}
	return out, nil
}

// ResolveMarket delegates to the engine's resolution command.
func (f *Factory) ResolveMarket(ctx context.Context, marketID string) error {
	return f.engine.ResolveMarket(ctx, marketID)
}

// BatchResolveResult summarizes a batch resolution pass.
type BatchResolveResult struct {
	Resolved    []string `json:"resolved"`
	Skipped     []string `json:"skipped"`
	TotalVolume int64    `json:"total_volume"`
}

// BatchResolveMarkets resolves many markets, catching per-market oracle and
// state failures and skipping those markets rather than aborting the batch.
// The total traded volume of the successfully resolved markets is
// accumulated in the result.
func (f *Factory) BatchResolveMarkets(ctx context.Context, marketIDs []string) (BatchResolveResult, error) {
	if len(marketIDs) == 0 {
		return BatchResolveResult{}, fmt.Errorf("factory: empty batch: %w", domain.ErrInvalidInput)
	}

	var res BatchResolveResult
	for _, id := range marketIDs {
		if err := f.engine.ResolveMarket(ctx, id); err != nil {
			if errors.Is(err, domain.ErrOracleFailure) || errors.Is(err, domain.ErrStateConflict) || errors.Is(err, domain.ErrNotFound) {
				f.logger.WarnContext(ctx, "factory: batch resolve skipped market",
					slog.String("market_id", id),
					slog.String("error", err.Error()),
				)
				res.Skipped = append(res.Skipped, id)
				continue
			}
			return BatchResolveResult{}, fmt.Errorf("factory: batch resolve %s: %w", id, err)
		}

		res.Resolved = append(res.Resolved, id)
		if m, err := f.engine.Market(id); err == nil {
			res.TotalVolume += m.Volume
		}
	}
	return res, nil
}

// PredictMarketAddress mirrors the identifier derivation used at creation,
// letting callers compute a market's address before submitting the request.
func (f *Factory) PredictMarketAddress(creator, question string, dt domain.DataType, endTime time.Time, salt string) string {
	return marketaddr.Derive(creator, question, dt, endTime.Unix(), salt)
}

func (f *Factory) emit(ctx context.Context, e domain.Event) {
	e.ID = uuid.New().String()
	e.At = f.now()

	if f.events != nil {
		if err := f.events.Append(ctx, e); err != nil {
			f.logger.WarnContext(ctx, "factory: event append failed",
				slog.String("type", string(e.Type)),
				slog.String("error", err.Error()),
			)
		}
	}
	if f.bus != nil {
		if err := f.bus.Publish(ctx, e); err != nil {
			f.logger.WarnContext(ctx, "factory: event publish failed",
				slog.String("type", string(e.Type)),
				slog.String("error", err.Error()),
			)
		}
	}
}
