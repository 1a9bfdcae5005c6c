package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oraclebet/oraclebet/internal/domain"
)

// OracleStore implements domain.OracleStore against PostgreSQL.
type OracleStore struct {
	client *Client
}

var _ domain.OracleStore = (*OracleStore)(nil)

// NewOracleStore creates an OracleStore using the given client.
func NewOracleStore(client *Client) *OracleStore {
	return &OracleStore{client: client}
}

func (s *OracleStore) Upsert(ctx context.Context, o domain.Oracle) error {
	const q = `
		INSERT INTO oracles (
			id, provider, data_types, reliability_score, avg_response_ms,
			total_requests, successful_requests, total_cost, platform_bonus,
			base_cost, is_active, registered_at, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			provider = EXCLUDED.provider,
			data_types = EXCLUDED.data_types,
			reliability_score = EXCLUDED.reliability_score,
			avg_response_ms = EXCLUDED.avg_response_ms,
			total_requests = EXCLUDED.total_requests,
			successful_requests = EXCLUDED.successful_requests,
			total_cost = EXCLUDED.total_cost,
			platform_bonus = EXCLUDED.platform_bonus,
			base_cost = EXCLUDED.base_cost,
			is_active = EXCLUDED.is_active,
			last_updated = EXCLUDED.last_updated`

	types := make([]string, len(o.DataTypes))
	for i, dt := range o.DataTypes {
		types[i] = string(dt)
	}

	_, err := s.client.Pool().Exec(ctx, q,
		o.ID, o.Provider, types, o.ReliabilityScore,
		o.AvgResponseTime.Milliseconds(), o.TotalRequests,
		o.SuccessfulRequests, o.TotalCost, o.PlatformBonus,
		o.BaseCost, o.IsActive, o.RegisteredAt, o.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert oracle %s: %w", o.ID, err)
	}
	return nil
}

func (s *OracleStore) GetByID(ctx context.Context, id string) (domain.Oracle, error) {
	const q = `
		SELECT id, provider, data_types, reliability_score, avg_response_ms,
		       total_requests, successful_requests, total_cost, platform_bonus,
		       base_cost, is_active, registered_at, last_updated
		FROM oracles WHERE id = $1`

	o, err := scanOracle(s.client.Pool().QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Oracle{}, fmt.Errorf("postgres: oracle %s: %w", id, domain.ErrNotFound)
		}
		return domain.Oracle{}, fmt.Errorf("postgres: get oracle %s: %w", id, err)
	}
	return o, nil
}

func (s *OracleStore) List(ctx context.Context) ([]domain.Oracle, error) {
	const q = `
		SELECT id, provider, data_types, reliability_score, avg_response_ms,
		       total_requests, successful_requests, total_cost, platform_bonus,
		       base_cost, is_active, registered_at, last_updated
		FROM oracles ORDER BY id`

	rows, err := s.client.Pool().Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: list oracles: %w", err)
	}
	defer rows.Close()

	var oracles []domain.Oracle
	for rows.Next() {
		o, err := scanOracle(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan oracle: %w", err)
		}
		oracles = append(oracles, o)
	}
	return oracles, rows.Err()
}

func (s *OracleStore) UpsertPreference(ctx context.Context, p domain.RoutePreference) error {
	const q = `
		INSERT INTO route_preferences (data_type, preferred, fallback)
		VALUES ($1, $2, $3)
		ON CONFLICT (data_type) DO UPDATE SET
			preferred = EXCLUDED.preferred,
			fallback = EXCLUDED.fallback`

	_, err := s.client.Pool().Exec(ctx, q, string(p.DataType), p.Preferred, p.Fallback)
	if err != nil {
		return fmt.Errorf("postgres: upsert preference %s: %w", p.DataType, err)
	}
	return nil
}

func (s *OracleStore) ListPreferences(ctx context.Context) ([]domain.RoutePreference, error) {
	const q = `SELECT data_type, preferred, fallback FROM route_preferences ORDER BY data_type`

	rows, err := s.client.Pool().Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: list preferences: %w", err)
	}
	defer rows.Close()

	var prefs []domain.RoutePreference
	for rows.Next() {
		var p domain.RoutePreference
		var dt string
		if err := rows.Scan(&dt, &p.Preferred, &p.Fallback); err != nil {
			return nil, fmt.Errorf("postgres: scan preference: %w", err)
		}
		p.DataType = domain.DataType(dt)
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

func scanOracle(row pgx.Row) (domain.Oracle, error) {
	var o domain.Oracle
	var types []string
	var avgMs int64
	err := row.Scan(
		&o.ID, &o.Provider, &types, &o.ReliabilityScore, &avgMs,
		&o.TotalRequests, &o.SuccessfulRequests, &o.TotalCost,
		&o.PlatformBonus, &o.BaseCost, &o.IsActive,
		&o.RegisteredAt, &o.LastUpdated,
	)
	if err != nil {
		return domain.Oracle{}, err
	}
	o.AvgResponseTime = time.Duration(avgMs) * time.Millisecond
	o.DataTypes = make([]domain.DataType, len(types))
	for i, t := range types {
		o.DataTypes[i] = domain.DataType(t)
	}
	return o, nil
}
