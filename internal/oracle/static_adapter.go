package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oraclebet/oraclebet/internal/domain"
)

// StaticAdapter is a deterministic in-process oracle. Readings and
// resolutions are seeded by the operator (or a test) and served verbatim,
// which makes it useful for local simulation without any external provider.
type StaticAdapter struct {
	mu          sync.RWMutex
	provider    string
	dataTypes   []domain.DataType
	cost        int64
	readings    map[string]domain.OracleReading
	resolutions map[string]domain.Resolution
}

// NewStaticAdapter creates a StaticAdapter for the given data types.
func NewStaticAdapter(provider string, dataTypes []domain.DataType, cost int64) *StaticAdapter {
	return &StaticAdapter{
		provider:    provider,
		dataTypes:   dataTypes,
		cost:        cost,
		readings:    make(map[string]domain.OracleReading),
		resolutions: make(map[string]domain.Resolution),
	}
}

// SetReading seeds the answer for a data id.
func (a *StaticAdapter) SetReading(dataID string, value float64, confidence int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.readings[dataID] = domain.OracleReading{
		Value:      value,
		Timestamp:  time.Now(),
		Confidence: confidence,
	}
}

// SetResolution seeds the settlement answer for a question id.
func (a *StaticAdapter) SetResolution(questionID string, res domain.Resolution) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resolutions[questionID] = res
}

// Provider returns the provider name.
func (a *StaticAdapter) Provider() string { return a.provider }

// SupportsDataType reports whether dt was configured.
func (a *StaticAdapter) SupportsDataType(dt domain.DataType) bool {
	for _, t := range a.dataTypes {
		if t == dt {
			return true
		}
	}
	return false
}

// GetLatestData serves the seeded reading for dataID.
func (a *StaticAdapter) GetLatestData(ctx context.Context, dataID string) (domain.OracleReading, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.readings[dataID]
	if !ok {
		return domain.OracleReading{}, fmt.Errorf("oracle: %s: no reading for %s: %w", a.provider, dataID, domain.ErrNotFound)
	}
	return r, nil
}

// ResolvePrediction serves the seeded resolution, reporting unresolved when
// none was seeded.
func (a *StaticAdapter) ResolvePrediction(ctx context.Context, questionID string, params map[string]string) (domain.Resolution, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	res, ok := a.resolutions[questionID]
	if !ok {
		return domain.Resolution{Resolved: false}, nil
	}
	return res, nil
}

// EstimateCost returns the configured flat cost.
func (a *StaticAdapter) EstimateCost(dt domain.DataType, params map[string]string) (int64, error) {
	if !a.SupportsDataType(dt) {
		return 0, fmt.Errorf("oracle: %s does not serve %s: %w", a.provider, dt, domain.ErrNotFound)
	}
	return a.cost, nil
}

// Compile-time interface check.
var _ domain.OracleAdapter = (*StaticAdapter)(nil)
