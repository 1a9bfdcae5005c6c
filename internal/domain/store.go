package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OracleStore persists oracle metadata and route preferences.
type OracleStore interface {
	Upsert(ctx context.Context, o Oracle) error
	GetByID(ctx context.Context, id string) (Oracle, error)
	List(ctx context.Context) ([]Oracle, error)
	UpsertPreference(ctx context.Context, p RoutePreference) error
	ListPreferences(ctx context.Context) ([]RoutePreference, error)
}

// MarketStore persists market state.
type MarketStore interface {
	Upsert(ctx context.Context, m Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	ListByStatus(ctx context.Context, status MarketStatus, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// PositionStore persists bettor positions.
type PositionStore interface {
	Upsert(ctx context.Context, p Position) error
	UpsertBatch(ctx context.Context, positions []Position) error
	ListByMarket(ctx context.Context, marketID string) ([]Position, error)
	ListByBettor(ctx context.Context, marketID, bettor string) ([]Position, error)
}

// EventStore persists the append-only event log.
type EventStore interface {
	Append(ctx context.Context, e Event) error
	AppendBatch(ctx context.Context, events []Event) error
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Event, error)
	ListBefore(ctx context.Context, before time.Time) ([]Event, error)
}

// Treasury is the value-transfer primitive the execution environment
// provides. The engine debits bettors when bets are placed and credits them
// when winnings or refunds are claimed; it never performs a credit before the
// corresponding state mutation is fully applied.
type Treasury interface {
	Debit(ctx context.Context, account, asset string, amount int64) error
	Credit(ctx context.Context, account, asset string, amount int64) error
	Balance(ctx context.Context, account, asset string) (int64, error)
}
