// Package router decides which oracle answers a given question and reduces
// multi-oracle readings to a single consensus value. Routing is a pure read
// over registry state: it never mutates oracle records. Consensus queries do
// write performance history, once per completed oracle call.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/oraclebet/oraclebet/internal/domain"
	"github.com/oraclebet/oraclebet/internal/registry"
)

// Composite score weights. The four weighted components sum to 1.0 before
// the per-oracle platform bonus is added.
const (
	weightReliability = 0.40
	weightCost        = 0.30
	weightSpeed       = 0.20
	weightFreshness   = 0.10

	// baselineResponseTime anchors the speed score: an oracle answering at
	// or under the baseline scores 1.0, slower oracles score inversely
	// proportionally less.
	baselineResponseTime = time.Second

	// freshnessWindow is how long after the last performance update the
	// freshness score takes to decay linearly to zero.
	freshnessWindow = time.Hour

	// Urgent calls prefer speed over price.
	urgentSpeedBoost = 1.5
	urgentCostDamp   = 0.8

	// scoreEpsilon treats near-equal scores as ties, which then break
	// toward the cheaper oracle.
	scoreEpsilon = 1e-9
)

// Router scores candidate oracles for questions and runs consensus queries.
type Router struct {
	registry *registry.Registry
	cache    domain.ResultCache // nil disables the short-circuit
	events   domain.EventStore  // nil disables the durable log
	bus      domain.EventBus    // nil disables live publishing
	logger   *slog.Logger

	now func() time.Time
}

// New creates a Router. cache, events, and bus may each be nil.
func New(reg *registry.Registry, cache domain.ResultCache, events domain.EventStore, bus domain.EventBus, logger *slog.Logger) *Router {
	return &Router{
		registry: reg,
		cache:    cache,
		events:   events,
		bus:      bus,
		logger:   logger.With(slog.String("component", "router")),
		now:      time.Now,
	}
}

// RouteQuestion picks the best oracle for a question.
//
// A non-expired cached result satisfies a non-urgent call at zero cost.
// Otherwise candidates come from the data type's route preference (preferred
// list first, then fallback), or from every active supporting oracle when no
// preferred candidate is usable. Candidates over maxCost are discarded
// (maxCost <= 0 means unlimited); the survivor with the highest composite
// score wins, ties breaking toward lower cost. Fails with domain.ErrNotFound
// when no candidate survives.
func (r *Router) RouteQuestion(ctx context.Context, dt domain.DataType, question string, maxCost int64, urgent bool, params map[string]string) (domain.RouteDecision, error) {
	if !dt.Valid() {
		return domain.RouteDecision{}, fmt.Errorf("router: route: unknown data type %q: %w", dt, domain.ErrInvalidInput)
	}

	if r.cache != nil && !urgent {
		if res, err := r.cache.Get(ctx, dt, question); err == nil {
			return domain.RouteDecision{
				OracleID:    res.OracleID,
				FromCache:   true,
				CachedValue: res.Value,
			}, nil
		}
	}

	now := r.now()
	best := domain.RouteDecision{}
	found := false

	for _, o := range r.candidates(dt) {
		cost := r.estimateCost(o, dt, params)
		if maxCost > 0 && cost > maxCost {
			continue
		}

		score := compositeScore(o, cost, maxCost, urgent, now)
		better := score > best.Score+scoreEpsilon ||
			(score > best.Score-scoreEpsilon && found && cost < best.EstimatedCost)
		if !found || better {
			best = domain.RouteDecision{
				OracleID:      o.ID,
				Provider:      o.Provider,
				EstimatedCost: cost,
				EstimatedTime: o.AvgResponseTime,
				Score:         score,
			}
			found = true
		}
	}

	if !found {
		return domain.RouteDecision{}, fmt.Errorf("router: no oracle available for %s: %w", dt, domain.ErrNotFound)
	}

	r.emit(ctx, domain.Event{
		Type:     domain.EventRouteExecuted,
		OracleID: best.OracleID,
		Payload: map[string]any{
			"data_type":      dt,
			"estimated_cost": best.EstimatedCost,
			"urgent":         urgent,
			"score":          best.Score,
		},
	})
	return best, nil
}

// candidates builds the ordered candidate list for a data type: preferred
// oracles first, then the fallback list, then every active supporting oracle
// when neither yields a usable candidate.
func (r *Router) candidates(dt domain.DataType) []domain.Oracle {
	pref, ok := r.registry.Preference(dt)
	if ok {
		if out := r.lookupActive(pref.Preferred, dt); len(out) > 0 {
			return out
		}
		if out := r.lookupActive(pref.Fallback, dt); len(out) > 0 {
			return out
		}
	}
	return r.registry.ActiveSupporting(dt)
}

func (r *Router) lookupActive(ids []string, dt domain.DataType) []domain.Oracle {
	var out []domain.Oracle
	for _, id := range ids {
		o, err := r.registry.Get(id)
		if err != nil || !o.IsActive || !o.Supports(dt) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// estimateCost asks the oracle's adapter for a quote, falling back to the
// registered base cost when no adapter is attached or the quote fails.
func (r *Router) estimateCost(o domain.Oracle, dt domain.DataType, params map[string]string) int64 {
	adapter, err := r.registry.Adapter(o.ID)
	if err != nil {
		return o.BaseCost
	}
	cost, err := adapter.EstimateCost(dt, params)
	if err != nil {
		return o.BaseCost
	}
	return cost
}

// compositeScore blends reliability, cost, speed, and freshness:
//
//	score = reliability*0.40 + costScore*0.30 + speedScore*0.20 +
//	        freshnessScore*0.10 + platformBonus
//
// costScore = (maxCost-cost)/maxCost, so cheaper is better; with an
// unlimited budget the cost component is indifferent and only the lower-cost
// tie-break distinguishes prices. speedScore is inversely proportional to
// the average response time, capped at 1. freshnessScore decays linearly to
// zero over the hour following the oracle's last performance update. Urgent
// calls multiply speedScore by 1.5 and costScore by 0.8.
func compositeScore(o domain.Oracle, cost, maxCost int64, urgent bool, now time.Time) float64 {
	reliability := float64(o.ReliabilityScore) / float64(domain.ReliabilityScale)

	costScore := 0.0
	if maxCost > 0 {
		costScore = float64(maxCost-cost) / float64(maxCost)
	}

	speedScore := 1.0
	if o.AvgResponseTime > baselineResponseTime {
		speedScore = float64(baselineResponseTime) / float64(o.AvgResponseTime)
	}

	freshnessScore := 0.0
	if age := now.Sub(o.LastUpdated); age < freshnessWindow {
		freshnessScore = 1 - float64(age)/float64(freshnessWindow)
	}

	if urgent {
		speedScore *= urgentSpeedBoost
		costScore *= urgentCostDamp
	}

	return reliability*weightReliability +
		costScore*weightCost +
		speedScore*weightSpeed +
		freshnessScore*weightFreshness +
		o.PlatformBonus
}

// CachedResult exposes the cache lookup used by the factory's read path.
func (r *Router) CachedResult(ctx context.Context, dt domain.DataType, question string) (domain.CachedResult, error) {
	if r.cache == nil {
		return domain.CachedResult{}, domain.ErrNotFound
	}
	res, err := r.cache.Get(ctx, dt, question)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.CachedResult{}, domain.ErrNotFound
		}
		return domain.CachedResult{}, fmt.Errorf("router: cached result: %w", err)
	}
	return res, nil
}

// emit mirrors registry event emission: durable append first, best-effort
// live publish second.
func (r *Router) emit(ctx context.Context, e domain.Event) {
	e.ID = uuid.New().String()
	e.At = r.now()

	if r.events != nil {
		if err := r.events.Append(ctx, e); err != nil {
			r.logger.WarnContext(ctx, "router: event append failed",
				slog.String("type", string(e.Type)),
				slog.String("error", err.Error()),
			)
		}
	}
	if r.bus != nil {
		if err := r.bus.Publish(ctx, e); err != nil {
			r.logger.WarnContext(ctx, "router: event publish failed",
				slog.String("type", string(e.Type)),
				slog.String("error", err.Error()),
			)
		}
	}
}
