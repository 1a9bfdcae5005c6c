package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/oraclebet/oraclebet/internal/domain"
)

// OracleRegistry is the oracle management surface the handler needs from the
// registry.
type OracleRegistry interface {
	Register(ctx context.Context, o domain.Oracle, adapter domain.OracleAdapter) error
	Deactivate(ctx context.Context, id string) error
	Get(id string) (domain.Oracle, error)
	List() []domain.Oracle
	SetPreference(ctx context.Context, p domain.RoutePreference) error
	Preference(dt domain.DataType) (domain.RoutePreference, bool)
}

// OracleRouter is the routing and consensus surface the handler needs from
// the router.
type OracleRouter interface {
	RouteQuestion(ctx context.Context, dt domain.DataType, question string, maxCost int64, urgent bool, params map[string]string) (domain.RouteDecision, error)
	GetConsensusData(ctx context.Context, dt domain.DataType, dataID string, minResponses int, maxDeviationBps int64) (domain.ConsensusResult, error)
}

// AdapterSpec describes the provider adapter to build for an oracle
// registered through the API.
type AdapterSpec struct {
	Kind         string
	Provider     string
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	CostPerQuery int64
	DataTypes    []domain.DataType
}

// AdapterBuilder turns an AdapterSpec into a live adapter. The app layer
// supplies it so the handler stays ignorant of concrete adapter types.
type AdapterBuilder func(spec AdapterSpec) (domain.OracleAdapter, error)

// OracleHandler serves oracle registry and routing endpoints.
type OracleHandler struct {
	registry OracleRegistry
	router   OracleRouter
	build    AdapterBuilder
	logger   *slog.Logger
}

// NewOracleHandler creates an OracleHandler.
func NewOracleHandler(reg OracleRegistry, rt OracleRouter, build AdapterBuilder, logger *slog.Logger) *OracleHandler {
	return &OracleHandler{
		registry: reg,
		router:   rt,
		build:    build,
		logger:   logger,
	}
}

// RegisterOracle adds a new oracle and its provider adapter. Admin only.
// POST /api/oracles
func (h *OracleHandler) RegisterOracle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID        string   `json:"id"`
		Provider  string   `json:"provider"`
		Kind      string   `json:"kind"`
		DataTypes []string `json:"data_types"`
		BaseCost  int64    `json:"base_cost"`
		BaseURL   string   `json:"base_url,omitempty"`
		APIKey    string   `json:"api_key,omitempty"`
		Timeout   string   `json:"timeout,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	types := make([]domain.DataType, len(req.DataTypes))
	for i, dt := range req.DataTypes {
		types[i] = domain.DataType(dt)
	}

	timeout := 10 * time.Second
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid timeout: "+err.Error())
			return
		}
		timeout = d
	}

	adapter, err := h.build(AdapterSpec{
		Kind:         req.Kind,
		Provider:     req.Provider,
		BaseURL:      req.BaseURL,
		APIKey:       req.APIKey,
		Timeout:      timeout,
		CostPerQuery: req.BaseCost,
		DataTypes:    types,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid adapter spec: "+err.Error())
		return
	}

	oracle := domain.Oracle{
		ID:        req.ID,
		Provider:  req.Provider,
		DataTypes: types,
		BaseCost:  req.BaseCost,
		IsActive:  true,
	}

	if err := h.registry.Register(r.Context(), oracle, adapter); err != nil {
		writeDomainError(w, err)
		return
	}

	registered, err := h.registry.Get(req.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, registered)
}

// ListOracles returns every registered oracle, active or not.
// GET /api/oracles
func (h *OracleHandler) ListOracles(w http.ResponseWriter, r *http.Request) {
	oracles := h.registry.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"oracles": oracles,
		"total":   len(oracles),
	})
}

// GetOracle returns a single oracle by ID.
// GET /api/oracles/{id}
func (h *OracleHandler) GetOracle(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	o, err := h.registry.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// DeactivateOracle retires an oracle from routing. Its history is kept.
// Admin only.
// DELETE /api/oracles/{id}
func (h *OracleHandler) DeactivateOracle(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := h.registry.Deactivate(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// GetPreference returns the routing preference for a data type.
// GET /api/oracles/preferences/{dataType}
func (h *OracleHandler) GetPreference(w http.ResponseWriter, r *http.Request) {
	dt := domain.DataType(pathParam(r, "dataType"))
	p, ok := h.registry.Preference(dt)
	if !ok {
		p = domain.RoutePreference{DataType: dt}
	}
	writeJSON(w, http.StatusOK, p)
}

// SetPreference replaces the routing preference for a data type. Admin only.
// PUT /api/oracles/preferences/{dataType}
func (h *OracleHandler) SetPreference(w http.ResponseWriter, r *http.Request) {
	dt := domain.DataType(pathParam(r, "dataType"))

	var req struct {
		Preferred []string `json:"preferred"`
		Fallback  []string `json:"fallback"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	p := domain.RoutePreference{
		DataType:  dt,
		Preferred: req.Preferred,
		Fallback:  req.Fallback,
	}
	if err := h.registry.SetPreference(r.Context(), p); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// RouteQuestion scores the eligible oracles for a question and returns the
// winning route, or the cached answer when one is fresh.
// POST /api/route
func (h *OracleHandler) RouteQuestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DataType string            `json:"data_type"`
		Question string            `json:"question"`
		MaxCost  int64             `json:"max_cost"`
		Urgent   bool              `json:"urgent"`
		Params   map[string]string `json:"params,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	decision, err := h.router.RouteQuestion(r.Context(), domain.DataType(req.DataType), req.Question, req.MaxCost, req.Urgent, req.Params)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// GetConsensus queries every eligible oracle for a data point and reduces
// the answers to a reliability-weighted median with a confidence score.
// POST /api/consensus
func (h *OracleHandler) GetConsensus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DataType        string `json:"data_type"`
		DataID          string `json:"data_id"`
		MinResponses    int    `json:"min_responses"`
		MaxDeviationBps int64  `json:"max_deviation_bps"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.router.GetConsensusData(r.Context(), domain.DataType(req.DataType), req.DataID, req.MinResponses, req.MaxDeviationBps)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
