package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oraclebet/oraclebet/internal/domain"
)

// EventStore implements domain.EventStore against PostgreSQL. The events
// table is append-only; rows are removed only by the archiver after they have
// been written to blob storage.
type EventStore struct {
	client *Client
}

var _ domain.EventStore = (*EventStore)(nil)

// NewEventStore creates an EventStore using the given client.
func NewEventStore(client *Client) *EventStore {
	return &EventStore{client: client}
}

const appendEventSQL = `
	INSERT INTO events (id, type, market_id, oracle_id, actor, payload, at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO NOTHING`

func (s *EventStore) Append(ctx context.Context, e domain.Event) error {
	payload, err := marshalPayload(e.Payload)
	if err != nil {
		return err
	}
	_, err = s.client.Pool().Exec(ctx, appendEventSQL,
		e.ID, string(e.Type), e.MarketID, e.OracleID, e.Actor, payload, e.At,
	)
	if err != nil {
		return fmt.Errorf("postgres: append event %s: %w", e.ID, err)
	}
	return nil
}

func (s *EventStore) AppendBatch(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		payload, err := marshalPayload(e.Payload)
		if err != nil {
			return err
		}
		batch.Queue(appendEventSQL,
			e.ID, string(e.Type), e.MarketID, e.OracleID, e.Actor, payload, e.At,
		)
	}

	results := s.client.Pool().SendBatch(ctx, batch)
	defer results.Close()

	for i := range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: append event %s: %w", events[i].ID, err)
		}
	}
	return nil
}

func (s *EventStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Event, error) {
	q := `
		SELECT id, type, market_id, oracle_id, actor, payload, at
		FROM events WHERE market_id = $1 ORDER BY at`
	q += limitOffset(opts)

	return s.queryEvents(ctx, q, marketID)
}

func (s *EventStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Event, error) {
	const q = `
		SELECT id, type, market_id, oracle_id, actor, payload, at
		FROM events WHERE at < $1 ORDER BY at`

	return s.queryEvents(ctx, q, before)
}

func (s *EventStore) queryEvents(ctx context.Context, q string, args ...any) ([]domain.Event, error) {
	rows, err := s.client.Pool().Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var typ string
		var payload []byte
		if err := rows.Scan(&e.ID, &typ, &e.MarketID, &e.OracleID, &e.Actor, &payload, &e.At); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		e.Type = domain.EventType(typ)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal event payload: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func marshalPayload(payload map[string]any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal event payload: %w", err)
	}
	return data, nil
}
