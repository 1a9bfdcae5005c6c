package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oraclebet/oraclebet/internal/domain"
	"github.com/oraclebet/oraclebet/internal/registry"
)

// stubAdapter serves one fixed reading, or an error, with full control over
// the timestamp.
type stubAdapter struct {
	provider string
	reading  domain.OracleReading
	err      error
}

func (a *stubAdapter) Provider() string                         { return a.provider }
func (a *stubAdapter) SupportsDataType(dt domain.DataType) bool { return dt == domain.DataTypePrice }

func (a *stubAdapter) GetLatestData(ctx context.Context, dataID string) (domain.OracleReading, error) {
	if a.err != nil {
		return domain.OracleReading{}, a.err
	}
	return a.reading, nil
}

func (a *stubAdapter) ResolvePrediction(ctx context.Context, questionID string, params map[string]string) (domain.Resolution, error) {
	return domain.Resolution{}, nil
}

func (a *stubAdapter) EstimateCost(dt domain.DataType, params map[string]string) (int64, error) {
	return 1000, nil
}

// addStub registers an oracle answering with value at the given confidence.
func addStub(t *testing.T, reg *registry.Registry, id string, reliability int64, value float64, confidence int64) {
	t.Helper()
	adapter := &stubAdapter{
		provider: "provider-" + id,
		reading: domain.OracleReading{
			Value:      value,
			Timestamp:  time.Now(),
			Confidence: confidence,
		},
	}
	o := domain.Oracle{
		ID:               id,
		Provider:         adapter.provider,
		DataTypes:        []domain.DataType{domain.DataTypePrice},
		ReliabilityScore: reliability,
		BaseCost:         1000,
	}
	if err := reg.Register(context.Background(), o, adapter); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
}

func TestGetConsensusData_WeightedMedian(t *testing.T) {
	reg := registry.New(nil, nil, nil, testLogger())
	values := []float64{100, 101, 99, 102, 150}
	for i, v := range values {
		addStub(t, reg, string(rune('a'+i)), 8000, v, 9000)
	}
	r := New(reg, nil, nil, nil, testLogger())

	res, err := r.GetConsensusData(context.Background(), domain.DataTypePrice, "BTC/USD", 3, 200)
	if err != nil {
		t.Fatalf("consensus: %v", err)
	}
	if res.Responses != 5 {
		t.Errorf("responses = %d, want 5", res.Responses)
	}
	if res.Value != 101 {
		t.Errorf("value = %v, want 101", res.Value)
	}
	// 4 of 5 readings within 2% of 101, plus the five-response bonus:
	// 8000 * 110% = 8800.
	if res.Confidence != 8800 {
		t.Errorf("confidence = %d, want 8800", res.Confidence)
	}
}

func TestGetConsensusData_ReliabilityWeighting(t *testing.T) {
	reg := registry.New(nil, nil, nil, testLogger())
	addStub(t, reg, "heavy", 9000, 100, 9000)
	addStub(t, reg, "light1", 1000, 200, 9000)
	addStub(t, reg, "light2", 1000, 300, 9000)
	r := New(reg, nil, nil, nil, testLogger())

	res, err := r.GetConsensusData(context.Background(), domain.DataTypePrice, "BTC/USD", 3, 200)
	if err != nil {
		t.Fatalf("consensus: %v", err)
	}
	// The heavy oracle alone carries more than half the total weight.
	if res.Value != 100 {
		t.Errorf("value = %v, want 100", res.Value)
	}
}

func TestGetConsensusData_MedianTieLowerValue(t *testing.T) {
	reg := registry.New(nil, nil, nil, testLogger())
	addStub(t, reg, "a", 5000, 100, 9000)
	addStub(t, reg, "b", 5000, 200, 9000)
	r := New(reg, nil, nil, nil, testLogger())

	res, err := r.GetConsensusData(context.Background(), domain.DataTypePrice, "BTC/USD", 2, 200)
	if err != nil {
		t.Fatalf("consensus: %v", err)
	}
	// Equal weights land the cumulative exactly on half; the lower value
	// wins the tie.
	if res.Value != 100 {
		t.Errorf("value = %v, want 100", res.Value)
	}
}

func TestGetConsensusData_SingleResponseConfidence(t *testing.T) {
	reg := registry.New(nil, nil, nil, testLogger())
	addStub(t, reg, "only", 9999, 100, 9999)
	r := New(reg, nil, nil, nil, testLogger())

	res, err := r.GetConsensusData(context.Background(), domain.DataTypePrice, "BTC/USD", 1, 200)
	if err != nil {
		t.Fatalf("consensus: %v", err)
	}
	if res.Confidence != singleResponseConfidence {
		t.Errorf("confidence = %d, want %d regardless of reliability", res.Confidence, singleResponseConfidence)
	}
}

func TestGetConsensusData_InsufficientResponses(t *testing.T) {
	reg := registry.New(nil, nil, nil, testLogger())
	addStub(t, reg, "a", 8000, 100, 9000)
	addStub(t, reg, "b", 8000, 101, 9000)
	broken := &stubAdapter{provider: "provider-c", err: errors.New("provider down")}
	o := domain.Oracle{
		ID:        "c",
		Provider:  "provider-c",
		DataTypes: []domain.DataType{domain.DataTypePrice},
		BaseCost:  1000,
	}
	if err := reg.Register(context.Background(), o, broken); err != nil {
		t.Fatalf("register: %v", err)
	}
	r := New(reg, nil, nil, nil, testLogger())

	_, err := r.GetConsensusData(context.Background(), domain.DataTypePrice, "BTC/USD", 3, 200)
	if !errors.Is(err, domain.ErrInsufficientResponses) {
		t.Fatalf("expected ErrInsufficientResponses, got %v", err)
	}
}

func TestGetConsensusData_ExcludesStaleAndLowConfidence(t *testing.T) {
	reg := registry.New(nil, nil, nil, testLogger())
	addStub(t, reg, "fresh", 8000, 100, 9000)

	stale := &stubAdapter{
		provider: "provider-stale",
		reading: domain.OracleReading{
			Value:      500,
			Timestamp:  time.Now().Add(-2 * time.Hour),
			Confidence: 9000,
		},
	}
	if err := reg.Register(context.Background(), domain.Oracle{
		ID: "stale", Provider: stale.provider,
		DataTypes: []domain.DataType{domain.DataTypePrice}, BaseCost: 1000,
	}, stale); err != nil {
		t.Fatalf("register stale: %v", err)
	}
	addStub(t, reg, "unsure", 8000, 500, 5000)

	r := New(reg, nil, nil, nil, testLogger())
	res, err := r.GetConsensusData(context.Background(), domain.DataTypePrice, "BTC/USD", 1, 200)
	if err != nil {
		t.Fatalf("consensus: %v", err)
	}
	if res.Responses != 1 {
		t.Errorf("responses = %d, want 1 (stale and low-confidence excluded)", res.Responses)
	}
	if res.Value != 100 {
		t.Errorf("value = %v, want 100", res.Value)
	}
}

func TestGetConsensusData_UpdatesPerformanceOnce(t *testing.T) {
	reg := registry.New(nil, nil, nil, testLogger())
	addStub(t, reg, "good", 8000, 100, 9000)
	broken := &stubAdapter{provider: "provider-bad", err: errors.New("provider down")}
	if err := reg.Register(context.Background(), domain.Oracle{
		ID: "bad", Provider: broken.provider,
		DataTypes: []domain.DataType{domain.DataTypePrice}, BaseCost: 1000,
	}, broken); err != nil {
		t.Fatalf("register: %v", err)
	}
	r := New(reg, nil, nil, nil, testLogger())

	if _, err := r.GetConsensusData(context.Background(), domain.DataTypePrice, "BTC/USD", 1, 200); err != nil {
		t.Fatalf("consensus: %v", err)
	}

	good, _ := reg.Get("good")
	if good.TotalRequests != 1 || good.SuccessfulRequests != 1 {
		t.Errorf("good counters = %d/%d, want 1/1", good.SuccessfulRequests, good.TotalRequests)
	}
	bad, _ := reg.Get("bad")
	if bad.TotalRequests != 1 || bad.SuccessfulRequests != 0 {
		t.Errorf("bad counters = %d/%d, want 0/1", bad.SuccessfulRequests, bad.TotalRequests)
	}
}

func TestGetConsensusData_CachesResult(t *testing.T) {
	reg := registry.New(nil, nil, nil, testLogger())
	addStub(t, reg, "a", 8000, 100, 9000)
	cache := newFakeCache()
	r := New(reg, cache, nil, nil, testLogger())
	ctx := context.Background()

	if _, err := r.GetConsensusData(ctx, domain.DataTypePrice, "BTC/USD", 1, 200); err != nil {
		t.Fatalf("consensus: %v", err)
	}
	got, err := cache.Get(ctx, domain.DataTypePrice, "BTC/USD")
	if err != nil {
		t.Fatalf("cache after consensus: %v", err)
	}
	if got.Value != 100 {
		t.Errorf("cached value = %v, want 100", got.Value)
	}
}
