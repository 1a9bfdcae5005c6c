// Package oracle provides adapter implementations of the five-method oracle
// contract. The HTTP adapter talks to a provider's REST endpoint; the static
// adapter serves fixed answers for simulations and tests.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/oraclebet/oraclebet/internal/domain"
)

// HTTPAdapterConfig configures one HTTP oracle adapter.
type HTTPAdapterConfig struct {
	Provider  string
	BaseURL   string
	APIKey    string
	DataTypes []domain.DataType
	// CostPerQuery is the flat quote returned by EstimateCost, micro-units.
	CostPerQuery int64
	Timeout      time.Duration
}

// HTTPAdapter implements domain.OracleAdapter against a provider exposing
//
//	GET  {base}/v1/data/{dataID}          -> {value, timestamp, confidence}
//	POST {base}/v1/resolve                -> {outcome, resolved, proof}
type HTTPAdapter struct {
	cfg        HTTPAdapterConfig
	httpClient *http.Client
}

// NewHTTPAdapter creates an HTTPAdapter from cfg.
func NewHTTPAdapter(cfg HTTPAdapterConfig) *HTTPAdapter {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPAdapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Provider returns the provider name.
func (a *HTTPAdapter) Provider() string { return a.cfg.Provider }

// SupportsDataType reports whether the provider serves dt.
func (a *HTTPAdapter) SupportsDataType(dt domain.DataType) bool {
	for _, t := range a.cfg.DataTypes {
		if t == dt {
			return true
		}
	}
	return false
}

// GetLatestData fetches the provider's latest reading for dataID.
func (a *HTTPAdapter) GetLatestData(ctx context.Context, dataID string) (domain.OracleReading, error) {
	body, err := a.do(ctx, http.MethodGet, "/v1/data/"+url.PathEscape(dataID), nil)
	if err != nil {
		return domain.OracleReading{}, fmt.Errorf("oracle: %s: get data %s: %w", a.cfg.Provider, dataID, err)
	}

	var resp struct {
		Value      float64 `json:"value"`
		Timestamp  int64   `json:"timestamp"` // unix seconds
		Confidence int64   `json:"confidence"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OracleReading{}, fmt.Errorf("oracle: %s: decode data: %w", a.cfg.Provider, err)
	}
	return domain.OracleReading{
		Value:      resp.Value,
		Timestamp:  time.Unix(resp.Timestamp, 0),
		Confidence: resp.Confidence,
	}, nil
}

// ResolvePrediction asks the provider to settle a question.
func (a *HTTPAdapter) ResolvePrediction(ctx context.Context, questionID string, params map[string]string) (domain.Resolution, error) {
	payload, err := json.Marshal(map[string]any{
		"question_id": questionID,
		"params":      params,
	})
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("oracle: %s: encode resolve request: %w", a.cfg.Provider, err)
	}

	body, err := a.do(ctx, http.MethodPost, "/v1/resolve", payload)
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("oracle: %s: resolve %s: %w", a.cfg.Provider, questionID, err)
	}

	var resp domain.Resolution
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Resolution{}, fmt.Errorf("oracle: %s: decode resolution: %w", a.cfg.Provider, err)
	}
	return resp, nil
}

// EstimateCost returns the provider's flat per-query quote.
func (a *HTTPAdapter) EstimateCost(dt domain.DataType, params map[string]string) (int64, error) {
	if !a.SupportsDataType(dt) {
		return 0, fmt.Errorf("oracle: %s does not serve %s: %w", a.cfg.Provider, dt, domain.ErrNotFound)
	}
	return a.cfg.CostPerQuery, nil
}

func (a *HTTPAdapter) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", a.cfg.APIKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}
	return data, nil
}

// Compile-time interface check.
var _ domain.OracleAdapter = (*HTTPAdapter)(nil)
