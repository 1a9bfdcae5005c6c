package domain

import "time"

// MarketStatus is the lifecycle state of a market.
//
// ACTIVE -> ENDED -> RESOLVED -> (DISPUTED -> RESOLVED)* | CANCELLED
//
// RESOLVED (once the dispute window has elapsed) and CANCELLED are terminal
// for payout purposes. Deadlines are wall-clock and evaluated lazily on each
// call; there is no background timer moving markets between states.
type MarketStatus string

const (
	MarketStatusActive    MarketStatus = "active"
	MarketStatusEnded     MarketStatus = "ended"
	MarketStatusResolved  MarketStatus = "resolved"
	MarketStatusDisputed  MarketStatus = "disputed"
	MarketStatusCancelled MarketStatus = "cancelled"
)

// Terminal reports whether the status admits no further state transitions
// other than claims.
func (s MarketStatus) Terminal() bool {
	return s == MarketStatusResolved || s == MarketStatusCancelled
}

// Amounts are fixed-point integers in micro-units of the payment asset
// (1e6 micro-units == 1 unit). Percentages are basis points of 10000.
const (
	AmountScale int64 = 1_000_000

	MinBet int64 = 10_000 // 0.01 units

	PlatformFeeBps int64 = 250 // 2.5% of each bet
	OracleFeeBps   int64 = 50  // 0.5% estimate, charged at bet time
	DisputeFeeBps  int64 = 100 // 1% of total pool

	// Time-decay bonus multiplier, percent: 300% at creation, 100% at end.
	MinMultiplier int64 = 100
	MaxMultiplier int64 = 300

	MinOutcomes = 2
	MaxOutcomes = 10

	MinDuration = time.Hour
	MaxDuration = 365 * 24 * time.Hour

	DisputeWindow = 24 * time.Hour

	MaxBatchSize = 10
)

// Market is one prediction question with 2-10 mutually exclusive outcomes,
// an end time, and an assigned oracle for resolution. The identity fields are
// immutable after creation; status, pools, and fee accumulators are mutated
// by bets, resolution, disputes, and claims. Markets are never destroyed.
//
// Invariant: sum(OutcomePools) == TotalPool outside an in-flight command.
type Market struct {
	// Immutable.
	ID           string            `json:"id"` // deterministic 0x address
	Question     string            `json:"question"`
	Outcomes     []string          `json:"outcomes"`
	Creator      string            `json:"creator"`
	CreatedAt    time.Time         `json:"created_at"`
	EndTime      time.Time         `json:"end_time"`
	PaymentAsset string            `json:"payment_asset"`
	OracleID     string            `json:"oracle_id"`
	DataType     DataType          `json:"data_type"`
	OracleParams map[string]string `json:"oracle_params,omitempty"`

	// Mutable.
	Status          MarketStatus `json:"status"`
	WinningOutcome  int          `json:"winning_outcome"`
	ResolvedAt      *time.Time   `json:"resolved_at,omitempty"`
	DisputeDeadline *time.Time   `json:"dispute_deadline,omitempty"`
	Disputed        bool         `json:"disputed"`
	DisputeCount    int          `json:"dispute_count"`
	OutcomePools    []int64      `json:"outcome_pools"`
	TotalPool       int64        `json:"total_pool"`
	PlatformFees    int64        `json:"platform_fees"`
	OracleFees      int64        `json:"oracle_fees"`
	Volume          int64        `json:"volume"` // gross payments, pre-fee
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Position is one bettor's stake on one outcome of one market. Amount is net
// of fees; GrossAmount is the pre-fee payment and is what a refund returns.
// A claimed or refunded position has its amounts zeroed rather than being
// removed, which makes claiming idempotent.
type Position struct {
	ID          string    `json:"id"`
	MarketID    string    `json:"market_id"`
	Bettor      string    `json:"bettor"`
	Outcome     int       `json:"outcome"`
	Amount      int64     `json:"amount"`
	GrossAmount int64     `json:"gross_amount"`
	Multiplier  int64     `json:"multiplier"` // percent, captured at bet time
	PlacedAt    time.Time `json:"placed_at"`
}

// Claimed reports whether the position has already been paid out or refunded.
func (p Position) Claimed() bool {
	return p.Amount == 0 && p.GrossAmount == 0
}

// BetRequest is one leg of a (possibly batched) bet placement.
type BetRequest struct {
	Outcome int   `json:"outcome"`
	Amount  int64 `json:"amount"` // gross, micro-units
}

// CreateMarketRequest carries everything needed to instantiate a market.
type CreateMarketRequest struct {
	Question     string            `json:"question"`
	Outcomes     []string          `json:"outcomes"`
	Duration     time.Duration     `json:"duration"`
	PaymentAsset string            `json:"payment_asset"`
	DataType     DataType          `json:"oracle_data_type"`
	OracleParams map[string]string `json:"oracle_params,omitempty"`
	Salt         string            `json:"salt"`
	Creator      string            `json:"creator"`
}

// CreateMarketResult identifies a freshly created market.
type CreateMarketResult struct {
	MarketID string `json:"market_id"`
	Address  string `json:"market_address"`
}
