package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/oraclebet/oraclebet/internal/domain"
)

// ResolveMarket asks the market's assigned oracle for the outcome and moves
// the market to RESOLVED with a fresh 24h dispute window. The oracle call is
// awaited synchronously inside the command; an unresolved answer or an
// out-of-range outcome fails the whole command with domain.ErrOracleFailure
// and leaves the market untouched. The assigned oracle's performance record
// is updated either way.
func (e *Engine) ResolveMarket(ctx context.Context, marketID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := e.markets[marketID]
	if !ok {
		return fmt.Errorf("engine: market %s: %w", marketID, domain.ErrNotFound)
	}
	m := &ms.market

	now := e.now()
	if m.Status != domain.MarketStatusActive && m.Status != domain.MarketStatusEnded {
		return fmt.Errorf("engine: resolve %s market: %w", m.Status, domain.ErrStateConflict)
	}
	if now.Before(m.EndTime) {
		return fmt.Errorf("engine: market open until %s: %w", m.EndTime.Format(time.RFC3339), domain.ErrStateConflict)
	}

	adapter, err := e.registry.Adapter(m.OracleID)
	if err != nil {
		return fmt.Errorf("engine: resolve %s: %w: no adapter for oracle %s", marketID, domain.ErrOracleFailure, m.OracleID)
	}

	start := time.Now()
	res, err := adapter.ResolvePrediction(ctx, m.ID, m.OracleParams)
	latency := time.Since(start)

	resolved := err == nil && res.Resolved && res.Outcome >= 0 && res.Outcome < len(m.Outcomes)
	if perfErr := e.registry.UpdatePerformance(ctx, m.OracleID, resolved, latency, m.OracleFees); perfErr != nil {
		e.logger.WarnContext(ctx, "engine: performance update failed",
			slog.String("oracle_id", m.OracleID),
			slog.String("error", perfErr.Error()),
		)
	}
	if err != nil {
		return fmt.Errorf("engine: resolve %s: %w: %v", marketID, domain.ErrOracleFailure, err)
	}
	if !res.Resolved {
		return fmt.Errorf("engine: resolve %s: oracle reports unresolved: %w", marketID, domain.ErrOracleFailure)
	}
	if res.Outcome < 0 || res.Outcome >= len(m.Outcomes) {
		return fmt.Errorf("engine: resolve %s: outcome %d out of range: %w", marketID, res.Outcome, domain.ErrOracleFailure)
	}

	deadline := now.Add(domain.DisputeWindow)
	m.WinningOutcome = res.Outcome
	m.ResolvedAt = &now
	m.DisputeDeadline = &deadline
	m.Status = domain.MarketStatusResolved
	m.UpdatedAt = now

	e.persistMarket(ctx, *m)
	e.emit(ctx, domain.Event{
		Type:     domain.EventMarketResolved,
		MarketID: m.ID,
		OracleID: m.OracleID,
		Payload: map[string]any{
			"winning_outcome":  res.Outcome,
			"outcome_label":    m.Outcomes[res.Outcome],
			"proof":            res.Proof,
			"dispute_deadline": deadline,
		},
	})

	e.logger.InfoContext(ctx, "engine: market resolved",
		slog.String("market_id", m.ID),
		slog.Int("winning_outcome", res.Outcome),
	)
	return nil
}

// DisputeResolution contests a resolved outcome within the dispute window.
// The caller must hold a position in the market and stake a dispute fee of
// 1% of the total pool. The market moves to DISPUTED and the window extends
// by another 24 hours.
func (e *Engine) DisputeResolution(ctx context.Context, marketID, bettor, reason string, payment int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := e.markets[marketID]
	if !ok {
		return fmt.Errorf("engine: market %s: %w", marketID, domain.ErrNotFound)
	}
	m := &ms.market

	now := e.now()
	if m.Status != domain.MarketStatusResolved {
		return fmt.Errorf("engine: dispute %s market: %w", m.Status, domain.ErrStateConflict)
	}
	if m.DisputeDeadline == nil || now.After(*m.DisputeDeadline) {
		return fmt.Errorf("engine: dispute window closed: %w", domain.ErrStateConflict)
	}
	if len(ms.positions[bettor]) == 0 {
		return fmt.Errorf("engine: %s holds no position in market: %w", bettor, domain.ErrUnauthorized)
	}

	fee := m.TotalPool * domain.DisputeFeeBps / domain.ReliabilityScale
	if payment < fee {
		return fmt.Errorf("engine: dispute fee %d underpaid with %d: %w", fee, payment, domain.ErrInsufficientFunds)
	}
	if err := e.debit(ctx, bettor, m.PaymentAsset, fee); err != nil {
		return fmt.Errorf("engine: collect dispute fee: %w: %v", domain.ErrInsufficientFunds, err)
	}

	deadline := m.DisputeDeadline.Add(domain.DisputeWindow)
	m.Status = domain.MarketStatusDisputed
	m.Disputed = true
	m.DisputeCount++
	m.DisputeDeadline = &deadline
	m.PlatformFees += fee
	m.UpdatedAt = now

	e.persistMarket(ctx, *m)
	e.emit(ctx, domain.Event{
		Type:     domain.EventDisputeRaised,
		MarketID: m.ID,
		Actor:    bettor,
		Payload: map[string]any{
			"dispute_id":       uuid.New().String(),
			"reason":           reason,
			"fee":              fee,
			"dispute_deadline": deadline,
		},
	})
	return nil
}

// ResolveDispute is the governance action closing an open dispute. When
// upheld, the winning outcome is replaced; either way the market returns to
// RESOLVED and the dispute flag clears. Claims stay blocked until the
// extended dispute deadline has elapsed.
func (e *Engine) ResolveDispute(ctx context.Context, marketID string, upheld bool, newOutcome int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := e.markets[marketID]
	if !ok {
		return fmt.Errorf("engine: market %s: %w", marketID, domain.ErrNotFound)
	}
	m := &ms.market

	if m.Status != domain.MarketStatusDisputed {
		return fmt.Errorf("engine: resolve dispute on %s market: %w", m.Status, domain.ErrStateConflict)
	}
	if upheld && (newOutcome < 0 || newOutcome >= len(m.Outcomes)) {
		return fmt.Errorf("engine: outcome %d out of range: %w", newOutcome, domain.ErrInvalidInput)
	}

	if upheld {
		m.WinningOutcome = newOutcome
	}
	m.Status = domain.MarketStatusResolved
	m.Disputed = false
	m.UpdatedAt = e.now()

	e.persistMarket(ctx, *m)
	e.emit(ctx, domain.Event{
		Type:     domain.EventDisputeResolved,
		MarketID: m.ID,
		Payload: map[string]any{
			"upheld":          upheld,
			"winning_outcome": m.WinningOutcome,
		},
	})
	return nil
}

// ClaimWinnings pays out every unclaimed position the caller holds on the
// winning outcome. Each claimed position is zeroed before the transfer is
// issued, which makes claiming idempotent. Fails with domain.ErrNoWinnings
// when the caller has nothing on the winning outcome.
func (e *Engine) ClaimWinnings(ctx context.Context, marketID, bettor string) (int64, error) {
	e.mu.Lock()

	total, asset, err := e.claimLocked(ctx, marketID, bettor)
	e.mu.Unlock()
	if err != nil {
		return 0, err
	}

	// State committed above; transfer strictly afterwards.
	e.credit(ctx, bettor, asset, total)
	return total, nil
}

// claimLocked applies one bettor's claim under the engine mutex and returns
// the amount to transfer.
func (e *Engine) claimLocked(ctx context.Context, marketID, bettor string) (int64, string, error) {
	ms, ok := e.markets[marketID]
	if !ok {
		return 0, "", fmt.Errorf("engine: market %s: %w", marketID, domain.ErrNotFound)
	}
	m := &ms.market

	now := e.now()
	if m.Status != domain.MarketStatusResolved {
		return 0, "", fmt.Errorf("engine: claim on %s market: %w", m.Status, domain.ErrStateConflict)
	}
	// A market that was never disputed pays out immediately after
	// resolution; one that was disputed waits for the extended window.
	if m.DisputeCount > 0 && m.DisputeDeadline != nil && !now.After(*m.DisputeDeadline) {
		return 0, "", fmt.Errorf("engine: dispute window open until %s: %w", m.DisputeDeadline.Format(time.RFC3339), domain.ErrStateConflict)
	}

	winningPool := m.OutcomePools[m.WinningOutcome]
	if winningPool == 0 {
		return 0, "", fmt.Errorf("engine: empty winning pool: %w", domain.ErrNoWinnings)
	}

	var total int64
	claimed := make([]domain.Position, 0, 2)
	list := ms.positions[bettor]
	for i := range list {
		p := &list[i]
		if p.Outcome != m.WinningOutcome || p.Amount == 0 {
			continue
		}

		base := mulDiv(p.Amount, m.TotalPool, winningPool)
		bonus := base * (p.Multiplier - domain.MinMultiplier) / 100
		total += base + bonus

		p.Amount = 0
		p.GrossAmount = 0
		claimed = append(claimed, *p)
	}

	if len(claimed) == 0 || total == 0 {
		return 0, "", fmt.Errorf("engine: %s has no claim on outcome %d: %w", bettor, m.WinningOutcome, domain.ErrNoWinnings)
	}
	m.UpdatedAt = now

	e.persistMarket(ctx, *m)
	e.persistPositions(ctx, claimed)
	e.emit(ctx, domain.Event{
		Type:     domain.EventWinningsClaimed,
		MarketID: m.ID,
		Actor:    bettor,
		Payload: map[string]any{
			"amount":    total,
			"positions": len(claimed),
		},
	})
	return total, m.PaymentAsset, nil
}

// BatchClaimWinnings claims on behalf of many bettors in one pass. Bettors
// with nothing to claim are skipped rather than failing the batch; any other
// error aborts it. Returns the amount paid per bettor.
func (e *Engine) BatchClaimWinnings(ctx context.Context, marketID string, bettors []string) (map[string]int64, error) {
	if len(bettors) == 0 || len(bettors) > domain.MaxBatchSize {
		return nil, fmt.Errorf("engine: batch of %d claims (1..%d allowed): %w", len(bettors), domain.MaxBatchSize, domain.ErrInvalidInput)
	}

	type payout struct {
		bettor string
		amount int64
		asset  string
	}

	e.mu.Lock()
	payouts := make([]payout, 0, len(bettors))
	for _, b := range bettors {
		amount, asset, err := e.claimLocked(ctx, marketID, b)
		if err != nil {
			if errors.Is(err, domain.ErrNoWinnings) {
				continue
			}
			e.mu.Unlock()
			return nil, err
		}
		payouts = append(payouts, payout{bettor: b, amount: amount, asset: asset})
	}
	e.mu.Unlock()

	out := make(map[string]int64, len(payouts))
	for _, p := range payouts {
		e.credit(ctx, p.bettor, p.asset, p.amount)
		out[p.bettor] = p.amount
	}
	return out, nil
}

// EmergencyDeactivate cancels a market from any non-terminal state. The
// administrative caller is checked at the API boundary.
func (e *Engine) EmergencyDeactivate(ctx context.Context, marketID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := e.markets[marketID]
	if !ok {
		return fmt.Errorf("engine: market %s: %w", marketID, domain.ErrNotFound)
	}
	m := &ms.market

	if m.Status.Terminal() {
		return fmt.Errorf("engine: cancel %s market: %w", m.Status, domain.ErrStateConflict)
	}

	m.Status = domain.MarketStatusCancelled
	m.Disputed = false
	m.UpdatedAt = e.now()

	e.persistMarket(ctx, *m)
	e.emit(ctx, domain.Event{
		Type:     domain.EventMarketCancelled,
		MarketID: m.ID,
	})
	return nil
}

// ClaimRefund returns the pre-fee stake of every unclaimed position the
// caller holds in a cancelled market, zeroing each as it goes. A repeat call
// finds nothing left and is a no-op returning zero.
func (e *Engine) ClaimRefund(ctx context.Context, marketID, bettor string) (int64, error) {
	e.mu.Lock()

	ms, ok := e.markets[marketID]
	if !ok {
		e.mu.Unlock()
		return 0, fmt.Errorf("engine: market %s: %w", marketID, domain.ErrNotFound)
	}
	m := &ms.market

	if m.Status != domain.MarketStatusCancelled {
		e.mu.Unlock()
		return 0, fmt.Errorf("engine: refund on %s market: %w", m.Status, domain.ErrStateConflict)
	}

	var total int64
	refunded := make([]domain.Position, 0, 2)
	list := ms.positions[bettor]
	for i := range list {
		p := &list[i]
		if p.GrossAmount == 0 {
			continue
		}
		total += p.GrossAmount
		p.Amount = 0
		p.GrossAmount = 0
		refunded = append(refunded, *p)
	}

	if len(refunded) > 0 {
		m.UpdatedAt = e.now()
		e.persistMarket(ctx, *m)
		e.persistPositions(ctx, refunded)
		e.emit(ctx, domain.Event{
			Type:     domain.EventRefundClaimed,
			MarketID: m.ID,
			Actor:    bettor,
			Payload: map[string]any{
				"amount":    total,
				"positions": len(refunded),
			},
		})
	}
	asset := m.PaymentAsset
	e.mu.Unlock()

	e.credit(ctx, bettor, asset, total)
	return total, nil
}
