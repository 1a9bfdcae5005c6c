package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/oraclebet/oraclebet/internal/domain"
)

// MarketStore implements domain.MarketStore against PostgreSQL.
type MarketStore struct {
	client *Client
}

var _ domain.MarketStore = (*MarketStore)(nil)

// NewMarketStore creates a MarketStore using the given client.
func NewMarketStore(client *Client) *MarketStore {
	return &MarketStore{client: client}
}

const marketColumns = `
	id, question, outcomes, creator, created_at, end_time, payment_asset,
	oracle_id, data_type, oracle_params, status, winning_outcome, resolved_at,
	dispute_deadline, disputed, dispute_count, outcome_pools, total_pool,
	platform_fees, oracle_fees, volume, updated_at`

func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	const q = `
		INSERT INTO markets (
			id, question, outcomes, creator, created_at, end_time,
			payment_asset, oracle_id, data_type, oracle_params, status,
			winning_outcome, resolved_at, dispute_deadline, disputed,
			dispute_count, outcome_pools, total_pool, platform_fees,
			oracle_fees, volume, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		          $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			winning_outcome = EXCLUDED.winning_outcome,
			resolved_at = EXCLUDED.resolved_at,
			dispute_deadline = EXCLUDED.dispute_deadline,
			disputed = EXCLUDED.disputed,
			dispute_count = EXCLUDED.dispute_count,
			outcome_pools = EXCLUDED.outcome_pools,
			total_pool = EXCLUDED.total_pool,
			platform_fees = EXCLUDED.platform_fees,
			oracle_fees = EXCLUDED.oracle_fees,
			volume = EXCLUDED.volume,
			updated_at = EXCLUDED.updated_at`

	params, err := json.Marshal(m.OracleParams)
	if err != nil {
		return fmt.Errorf("postgres: marshal oracle params: %w", err)
	}

	_, err = s.client.Pool().Exec(ctx, q,
		m.ID, m.Question, m.Outcomes, m.Creator, m.CreatedAt, m.EndTime,
		m.PaymentAsset, m.OracleID, string(m.DataType), params, string(m.Status),
		m.WinningOutcome, m.ResolvedAt, m.DisputeDeadline, m.Disputed,
		m.DisputeCount, m.OutcomePools, m.TotalPool, m.PlatformFees,
		m.OracleFees, m.Volume, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
	}
	return nil
}

func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	q := `SELECT ` + marketColumns + ` FROM markets WHERE id = $1`

	m, err := scanMarket(s.client.Pool().QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, fmt.Errorf("postgres: market %s: %w", id, domain.ErrNotFound)
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	q := `SELECT ` + marketColumns + ` FROM markets ORDER BY created_at DESC`
	q += limitOffset(opts)

	return s.queryMarkets(ctx, q)
}

func (s *MarketStore) ListByStatus(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	q := `SELECT ` + marketColumns + ` FROM markets WHERE status = $1 ORDER BY created_at DESC`
	q += limitOffset(opts)

	return s.queryMarkets(ctx, q, string(status))
}

func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.client.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return n, nil
}

func (s *MarketStore) queryMarkets(ctx context.Context, q string, args ...any) ([]domain.Market, error) {
	rows, err := s.client.Pool().Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var dt, status string
	var params []byte
	err := row.Scan(
		&m.ID, &m.Question, &m.Outcomes, &m.Creator, &m.CreatedAt, &m.EndTime,
		&m.PaymentAsset, &m.OracleID, &dt, &params, &status,
		&m.WinningOutcome, &m.ResolvedAt, &m.DisputeDeadline, &m.Disputed,
		&m.DisputeCount, &m.OutcomePools, &m.TotalPool, &m.PlatformFees,
		&m.OracleFees, &m.Volume, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.DataType = domain.DataType(dt)
	m.Status = domain.MarketStatus(status)
	if len(params) > 0 {
		if err := json.Unmarshal(params, &m.OracleParams); err != nil {
			return domain.Market{}, fmt.Errorf("unmarshal oracle params: %w", err)
		}
	}
	return m, nil
}

func limitOffset(opts domain.ListOpts) string {
	var s string
	if opts.Limit > 0 {
		s += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		s += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}
	return s
}
