package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/oraclebet/oraclebet/internal/domain"
)

// PositionStore implements domain.PositionStore against PostgreSQL.
type PositionStore struct {
	client *Client
}

var _ domain.PositionStore = (*PositionStore)(nil)

// NewPositionStore creates a PositionStore using the given client.
func NewPositionStore(client *Client) *PositionStore {
	return &PositionStore{client: client}
}

const upsertPositionSQL = `
	INSERT INTO positions (
		id, market_id, bettor, outcome, amount, gross_amount, multiplier, placed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		amount = EXCLUDED.amount,
		gross_amount = EXCLUDED.gross_amount`

func (s *PositionStore) Upsert(ctx context.Context, p domain.Position) error {
	_, err := s.client.Pool().Exec(ctx, upsertPositionSQL,
		p.ID, p.MarketID, p.Bettor, p.Outcome, p.Amount,
		p.GrossAmount, p.Multiplier, p.PlacedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s: %w", p.ID, err)
	}
	return nil
}

func (s *PositionStore) UpsertBatch(ctx context.Context, positions []domain.Position) error {
	if len(positions) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range positions {
		batch.Queue(upsertPositionSQL,
			p.ID, p.MarketID, p.Bettor, p.Outcome, p.Amount,
			p.GrossAmount, p.Multiplier, p.PlacedAt,
		)
	}

	results := s.client.Pool().SendBatch(ctx, batch)
	defer results.Close()

	for i := range positions {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert position %s: %w", positions[i].ID, err)
		}
	}
	return nil
}

func (s *PositionStore) ListByMarket(ctx context.Context, marketID string) ([]domain.Position, error) {
	const q = `
		SELECT id, market_id, bettor, outcome, amount, gross_amount, multiplier, placed_at
		FROM positions WHERE market_id = $1 ORDER BY placed_at`

	return s.queryPositions(ctx, q, marketID)
}

func (s *PositionStore) ListByBettor(ctx context.Context, marketID, bettor string) ([]domain.Position, error) {
	const q = `
		SELECT id, market_id, bettor, outcome, amount, gross_amount, multiplier, placed_at
		FROM positions WHERE market_id = $1 AND bettor = $2 ORDER BY placed_at`

	return s.queryPositions(ctx, q, marketID, bettor)
}

func (s *PositionStore) queryPositions(ctx context.Context, q string, args ...any) ([]domain.Position, error) {
	rows, err := s.client.Pool().Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(
			&p.ID, &p.MarketID, &p.Bettor, &p.Outcome,
			&p.Amount, &p.GrossAmount, &p.Multiplier, &p.PlacedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}
