package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/oraclebet/oraclebet/internal/domain"
)

// multiplierAt computes the linearly decaying early-bettor bonus, in
// percent: 300 at market creation, 100 at the end time, clamped outside the
// window.
func multiplierAt(createdAt, endTime, now time.Time) int64 {
	total := endTime.Sub(createdAt)
	remaining := endTime.Sub(now)
	if total <= 0 || remaining <= 0 {
		return domain.MinMultiplier
	}
	if remaining >= total {
		return domain.MaxMultiplier
	}
	span := domain.MaxMultiplier - domain.MinMultiplier
	return domain.MinMultiplier + span*remaining.Nanoseconds()/total.Nanoseconds()
}

// PlaceBet stakes amount on one outcome. The payment equals the amount.
func (e *Engine) PlaceBet(ctx context.Context, marketID, bettor string, outcome int, amount int64) (domain.Position, error) {
	ps, err := e.BatchPlaceBets(ctx, marketID, bettor, []domain.BetRequest{{Outcome: outcome, Amount: amount}}, amount)
	if err != nil {
		return domain.Position{}, err
	}
	return ps[0], nil
}

// BatchPlaceBets places up to ten bets as one atomic command. The caller's
// payment must equal the sum of the individual amounts; any invalid item
// aborts the whole batch with no state change.
//
// Each bet is charged the 2.5% platform fee plus the 0.5% oracle fee
// estimate; the net amount is credited to the chosen outcome's pool and the
// total pool, and a new position captures the time-decay multiplier at
// placement.
func (e *Engine) BatchPlaceBets(ctx context.Context, marketID, bettor string, bets []domain.BetRequest, payment int64) ([]domain.Position, error) {
	if len(bets) == 0 || len(bets) > domain.MaxBatchSize {
		return nil, fmt.Errorf("engine: batch of %d bets (1..%d allowed): %w", len(bets), domain.MaxBatchSize, domain.ErrInvalidInput)
	}
	if bettor == "" {
		return nil, fmt.Errorf("engine: bettor is required: %w", domain.ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := e.markets[marketID]
	if !ok {
		return nil, fmt.Errorf("engine: market %s: %w", marketID, domain.ErrNotFound)
	}
	m := &ms.market

	now := e.now()
	if m.Status != domain.MarketStatusActive {
		return nil, fmt.Errorf("engine: bet on %s market: %w", m.Status, domain.ErrStateConflict)
	}
	if !now.Before(m.EndTime) {
		return nil, fmt.Errorf("engine: betting window closed: %w", domain.ErrStateConflict)
	}

	var sum int64
	for _, b := range bets {
		if b.Outcome < 0 || b.Outcome >= len(m.Outcomes) {
			return nil, fmt.Errorf("engine: outcome %d out of range: %w", b.Outcome, domain.ErrInvalidInput)
		}
		if b.Amount < domain.MinBet {
			return nil, fmt.Errorf("engine: bet %d below minimum %d: %w", b.Amount, domain.MinBet, domain.ErrInvalidInput)
		}
		sum += b.Amount
	}
	if payment != sum {
		return nil, fmt.Errorf("engine: payment %d does not cover bets totalling %d: %w", payment, sum, domain.ErrInsufficientFunds)
	}

	if err := e.debit(ctx, bettor, m.PaymentAsset, payment); err != nil {
		return nil, fmt.Errorf("engine: collect payment: %w: %v", domain.ErrInsufficientFunds, err)
	}

	// Validation complete; everything below must succeed.
	mult := multiplierAt(m.CreatedAt, m.EndTime, now)
	placed := make([]domain.Position, 0, len(bets))
	for _, b := range bets {
		platformFee := b.Amount * domain.PlatformFeeBps / domain.ReliabilityScale
		oracleFee := b.Amount * domain.OracleFeeBps / domain.ReliabilityScale
		net := b.Amount - platformFee - oracleFee

		m.PlatformFees += platformFee
		m.OracleFees += oracleFee
		m.OutcomePools[b.Outcome] += net
		m.TotalPool += net
		m.Volume += b.Amount

		p := domain.Position{
			ID:          uuid.New().String(),
			MarketID:    m.ID,
			Bettor:      bettor,
			Outcome:     b.Outcome,
			Amount:      net,
			GrossAmount: b.Amount,
			Multiplier:  mult,
			PlacedAt:    now,
		}
		ms.positions[bettor] = append(ms.positions[bettor], p)
		placed = append(placed, p)
	}
	m.UpdatedAt = now

	e.persistMarket(ctx, *m)
	e.persistPositions(ctx, placed)
	for _, p := range placed {
		e.emit(ctx, domain.Event{
			Type:     domain.EventBetPlaced,
			MarketID: m.ID,
			Actor:    bettor,
			Payload: map[string]any{
				"position_id": p.ID,
				"outcome":     p.Outcome,
				"amount":      p.GrossAmount,
				"net_amount":  p.Amount,
				"multiplier":  p.Multiplier,
			},
		})
	}

	e.logger.InfoContext(ctx, "engine: bets placed",
		slog.String("market_id", m.ID),
		slog.String("bettor", bettor),
		slog.Int("count", len(placed)),
		slog.Int64("payment", payment),
	)
	return placed, nil
}
