// Package domain holds the pure types, sentinel errors, and store/cache
// interfaces shared by every layer of the settlement service. It has no
// dependencies outside the standard library.
package domain

import (
	"context"
	"time"
)

// DataType classifies the kind of question an oracle can answer.
type DataType string

const (
	DataTypePrice    DataType = "price"
	DataTypeSports   DataType = "sports"
	DataTypeWeather  DataType = "weather"
	DataTypeCustom   DataType = "custom"
	DataTypeElection DataType = "election"
	DataTypeEvent    DataType = "event"
)

// ResultTTL returns how long a cached result for this data type stays fresh.
func (dt DataType) ResultTTL() time.Duration {
	switch dt {
	case DataTypePrice:
		return 5 * time.Minute
	case DataTypeSports:
		return 30 * time.Minute
	case DataTypeWeather:
		return 15 * time.Minute
	case DataTypeElection, DataTypeEvent:
		return 60 * time.Minute
	default:
		return 10 * time.Minute
	}
}

// Valid reports whether dt is one of the known data types.
func (dt DataType) Valid() bool {
	switch dt {
	case DataTypePrice, DataTypeSports, DataTypeWeather,
		DataTypeCustom, DataTypeElection, DataTypeEvent:
		return true
	}
	return false
}

// ReliabilityScale is the fixed-point scale for reliability and confidence
// values: 10000 == 100%.
const ReliabilityScale int64 = 10000

// Oracle is the registry's record of one external data provider. Oracles are
// created by an admin action, mutated by performance updates after each use,
// and deactivated rather than deleted.
type Oracle struct {
	ID                 string        `json:"id"`
	Provider           string        `json:"provider"`
	DataTypes          []DataType    `json:"data_types"`
	ReliabilityScore   int64         `json:"reliability_score"` // 0..10000
	AvgResponseTime    time.Duration `json:"avg_response_time"`
	TotalRequests      int64         `json:"total_requests"`
	SuccessfulRequests int64         `json:"successful_requests"`
	TotalCost          int64         `json:"total_cost"`     // micro-units spent across all queries
	PlatformBonus      float64       `json:"platform_bonus"` // small fixed score bonus
	BaseCost           int64         `json:"base_cost"`      // micro-units per query
	IsActive           bool          `json:"is_active"`
	RegisteredAt       time.Time     `json:"registered_at"`
	LastUpdated        time.Time     `json:"last_updated"`
}

// Supports reports whether the oracle advertises the given data type.
func (o Oracle) Supports(dt DataType) bool {
	for _, t := range o.DataTypes {
		if t == dt {
			return true
		}
	}
	return false
}

// RoutePreference is the admin-managed, per-data-type ordered list of
// preferred oracle IDs plus a fallback list. Read-only to the router.
type RoutePreference struct {
	DataType  DataType `json:"data_type"`
	Preferred []string `json:"preferred"`
	Fallback  []string `json:"fallback"`
}

// OracleReading is one oracle's answer to a data query.
type OracleReading struct {
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence int64     `json:"confidence"` // self-reported, 0..10000
}

// Resolution is an oracle's answer to a market resolution request.
type Resolution struct {
	Outcome  int    `json:"outcome"`
	Resolved bool   `json:"resolved"`
	Proof    string `json:"proof"`
}

// OracleAdapter is the five-method contract every external oracle provider
// implements. Adapters are registered alongside the oracle metadata and are
// the only place the service talks to the outside world.
type OracleAdapter interface {
	Provider() string
	SupportsDataType(dt DataType) bool
	GetLatestData(ctx context.Context, dataID string) (OracleReading, error)
	ResolvePrediction(ctx context.Context, questionID string, params map[string]string) (Resolution, error)
	EstimateCost(dt DataType, params map[string]string) (int64, error)
}

// RouteDecision is the router's answer to "which oracle should take this
// question". A cache hit carries the cached value and costs nothing.
type RouteDecision struct {
	OracleID      string        `json:"oracle_id"`
	Provider      string        `json:"provider"`
	EstimatedCost int64         `json:"estimated_cost"`
	EstimatedTime time.Duration `json:"estimated_time"`
	Score         float64       `json:"score"`
	FromCache     bool          `json:"from_cache"`
	CachedValue   float64       `json:"cached_value,omitempty"`
}

// CachedResult is a previously computed answer for hash(dataType, question),
// stored with a per-data-type TTL.
type CachedResult struct {
	Value      float64   `json:"value"`
	Confidence int64     `json:"confidence"`
	OracleID   string    `json:"oracle_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// ConsensusResult is a single value reduced from multiple oracle readings via
// reliability-weighted median, with an agreement-based confidence score.
type ConsensusResult struct {
	Value      float64 `json:"value"`
	Confidence int64   `json:"confidence"` // 0..10000
	Responses  int     `json:"responses"`  // valid responses considered
}
