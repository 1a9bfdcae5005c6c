package domain

import "time"

// EventType names an entry in the append-only observable event log.
type EventType string

const (
	EventOracleAdded       EventType = "oracle_added"
	EventOracleUpdated     EventType = "oracle_updated"
	EventOraclePerformance EventType = "oracle_performance_updated"
	EventRouteExecuted     EventType = "route_executed"
	EventMarketCreated     EventType = "market_created"
	EventBetPlaced         EventType = "bet_placed"
	EventMarketResolved    EventType = "market_resolved"
	EventDisputeRaised     EventType = "dispute_raised"
	EventDisputeResolved   EventType = "dispute_resolved"
	EventWinningsClaimed   EventType = "winnings_claimed"
	EventRefundClaimed     EventType = "refund_claimed"
	EventMarketCancelled   EventType = "market_cancelled"
)

// Event is one record of the observable, append-only log consumed by
// off-chain SDKs and UIs. Payload keys are event-type specific.
type Event struct {
	ID       string         `json:"id"`
	Type     EventType      `json:"type"`
	MarketID string         `json:"market_id,omitempty"`
	OracleID string         `json:"oracle_id,omitempty"`
	Actor    string         `json:"actor,omitempty"`
	Payload  map[string]any `json:"payload,omitempty"`
	At       time.Time      `json:"at"`
}
