package router

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oraclebet/oraclebet/internal/domain"
)

const (
	// maxReadingAge excludes responses older than this from consensus.
	maxReadingAge = time.Hour

	// minReadingConfidence excludes self-reported confidence below 70%.
	minReadingConfidence int64 = 7000

	// Participation bonus thresholds, applied to the agreement ratio.
	bonusResponsesLarge = 5 // +10%
	bonusResponsesSmall = 3 // +5%

	// singleResponseConfidence is the fixed confidence when exactly one
	// valid response remains: never higher, whatever that oracle's
	// reliability.
	singleResponseConfidence int64 = 5000
)

// response pairs one oracle's reading with the metadata needed to weight it.
type response struct {
	oracle  domain.Oracle
	reading domain.OracleReading
	latency time.Duration
	err     error
}

// GetConsensusData queries every active oracle supporting dt for dataID and
// reduces the answers to one value with a confidence score.
//
// Responses older than an hour or with self-reported confidence below 70%
// are discarded as stale. Fewer than minResponses valid answers fails with
// domain.ErrInsufficientResponses. The consensus value is the
// reliability-weighted median (lower value winning an exact half-weight
// tie); confidence is the share of valid responses within maxDeviationBps of
// the consensus, scaled to 0..10000, plus a participation bonus of +10% at
// five or more responses and +5% at three or more, capped at 100%. Each
// queried oracle's performance record is updated exactly once.
func (r *Router) GetConsensusData(ctx context.Context, dt domain.DataType, dataID string, minResponses int, maxDeviationBps int64) (domain.ConsensusResult, error) {
	if !dt.Valid() {
		return domain.ConsensusResult{}, fmt.Errorf("router: consensus: unknown data type %q: %w", dt, domain.ErrInvalidInput)
	}
	if minResponses < 1 {
		minResponses = 1
	}

	oracles := r.registry.ActiveSupporting(dt)
	if len(oracles) == 0 {
		return domain.ConsensusResult{}, fmt.Errorf("router: consensus: no active oracle for %s: %w", dt, domain.ErrInsufficientResponses)
	}

	responses := r.fanOut(ctx, oracles, dataID)

	// Performance bookkeeping happens before filtering: a failed or stale
	// answer is still a completed query.
	now := r.now()
	valid := responses[:0]
	for _, resp := range responses {
		ok := resp.err == nil
		cost := int64(0)
		if ok {
			cost = resp.oracle.BaseCost
		}
		if err := r.registry.UpdatePerformance(ctx, resp.oracle.ID, ok, resp.latency, cost); err != nil {
			r.logger.WarnContext(ctx, "router: performance update failed",
				slog.String("oracle_id", resp.oracle.ID),
				slog.String("error", err.Error()),
			)
		}

		if !ok {
			continue
		}
		if now.Sub(resp.reading.Timestamp) > maxReadingAge ||
			resp.reading.Confidence < minReadingConfidence {
			r.logger.DebugContext(ctx, "router: reading excluded",
				slog.String("oracle_id", resp.oracle.ID),
				slog.Time("reading_at", resp.reading.Timestamp),
				slog.Int64("confidence", resp.reading.Confidence),
			)
			continue
		}
		valid = append(valid, resp)
	}

	if len(valid) < minResponses {
		return domain.ConsensusResult{}, fmt.Errorf("router: consensus for %s/%s: %d of %d required responses: %w",
			dt, dataID, len(valid), minResponses, domain.ErrInsufficientResponses)
	}

	value, medianOracle := weightedMedian(valid)
	confidence := consensusConfidence(valid, value, maxDeviationBps)

	res := domain.ConsensusResult{
		Value:      value,
		Confidence: confidence,
		Responses:  len(valid),
	}

	if r.cache != nil {
		cached := domain.CachedResult{
			Value:      value,
			Confidence: confidence,
			OracleID:   medianOracle,
			Timestamp:  now,
		}
		if err := r.cache.Set(ctx, dt, dataID, cached); err != nil {
			r.logger.WarnContext(ctx, "router: cache result failed",
				slog.String("data_id", dataID),
				slog.String("error", err.Error()),
			)
		}
	}

	return res, nil
}

// fanOut queries every oracle concurrently and collects all outcomes,
// including failures. A single slow or broken oracle never blocks the rest
// beyond the caller's context deadline.
func (r *Router) fanOut(ctx context.Context, oracles []domain.Oracle, dataID string) []response {
	responses := make([]response, len(oracles))

	g, ctx := errgroup.WithContext(ctx)
	for i, o := range oracles {
		g.Go(func() error {
			adapter, err := r.registry.Adapter(o.ID)
			if err != nil {
				responses[i] = response{oracle: o, err: err}
				return nil
			}

			start := time.Now()
			reading, err := adapter.GetLatestData(ctx, dataID)
			responses[i] = response{
				oracle:  o,
				reading: reading,
				latency: time.Since(start),
				err:     err,
			}
			return nil
		})
	}
	// Collection errors are recorded per-response; the group never fails.
	_ = g.Wait()

	return responses
}

// weightedMedian sorts responses by value and walks up the cumulative
// reliability weight until it reaches half the total. Stopping at
// 2*cum >= total picks the lower value when the cumulative weight lands
// exactly on half. Returns the consensus value and the reporting oracle's id.
func weightedMedian(responses []response) (float64, string) {
	sorted := make([]response, len(responses))
	copy(sorted, responses)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].reading.Value < sorted[j].reading.Value
	})

	var total int64
	for _, resp := range sorted {
		total += weightOf(resp.oracle)
	}

	var cum int64
	for _, resp := range sorted {
		cum += weightOf(resp.oracle)
		if 2*cum >= total {
			return resp.reading.Value, resp.oracle.ID
		}
	}
	// Unreachable for non-empty input; keep the compiler and the last
	// element honest.
	last := sorted[len(sorted)-1]
	return last.reading.Value, last.oracle.ID
}

// weightOf never lets an oracle weigh zero, so a brand-new oracle still
// counts toward the median.
func weightOf(o domain.Oracle) int64 {
	if o.ReliabilityScore < 1 {
		return 1
	}
	return o.ReliabilityScore
}

// consensusConfidence scores agreement: the share of responses within
// maxDeviationBps of the consensus value, scaled to 0..10000, with the
// participation bonus applied and capped. Exactly one response is always
// 5000.
func consensusConfidence(responses []response, consensus float64, maxDeviationBps int64) int64 {
	if len(responses) == 1 {
		return singleResponseConfidence
	}

	tolerance := math.Abs(consensus) * float64(maxDeviationBps) / float64(domain.ReliabilityScale)
	within := 0
	for _, resp := range responses {
		if math.Abs(resp.reading.Value-consensus) <= tolerance {
			within++
		}
	}

	confidence := int64(within) * domain.ReliabilityScale / int64(len(responses))
	switch {
	case len(responses) >= bonusResponsesLarge:
		confidence = confidence * 110 / 100
	case len(responses) >= bonusResponsesSmall:
		confidence = confidence * 105 / 100
	}
	if confidence > domain.ReliabilityScale {
		confidence = domain.ReliabilityScale
	}
	return confidence
}
