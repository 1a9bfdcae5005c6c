package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/oraclebet/oraclebet/internal/domain"
	"github.com/oraclebet/oraclebet/internal/factory"
)

// MarketFactory is the market creation and resolution surface the handler
// needs from the factory.
type MarketFactory interface {
	CreateMarket(ctx context.Context, req domain.CreateMarketRequest) (domain.CreateMarketResult, error)
	BatchCreateMarkets(ctx context.Context, reqs []domain.CreateMarketRequest) ([]domain.CreateMarketResult, error)
	ResolveMarket(ctx context.Context, marketID string) error
	BatchResolveMarkets(ctx context.Context, marketIDs []string) (factory.BatchResolveResult, error)
	PredictMarketAddress(creator, question string, dt domain.DataType, endTime time.Time, salt string) string
}

// MarketEngine is the betting and settlement surface the handler needs from
// the engine.
type MarketEngine interface {
	Market(id string) (domain.Market, error)
	ListMarkets(status domain.MarketStatus) []domain.Market
	Positions(marketID, bettor string) ([]domain.Position, error)
	BatchPlaceBets(ctx context.Context, marketID, bettor string, bets []domain.BetRequest, payment int64) ([]domain.Position, error)
	DisputeResolution(ctx context.Context, marketID, bettor, reason string, payment int64) error
	ResolveDispute(ctx context.Context, marketID string, upheld bool, newOutcome int) error
	ClaimWinnings(ctx context.Context, marketID, bettor string) (int64, error)
	BatchClaimWinnings(ctx context.Context, marketID string, bettors []string) (map[string]int64, error)
	ClaimRefund(ctx context.Context, marketID, bettor string) (int64, error)
	EmergencyDeactivate(ctx context.Context, marketID string) error
}

// MarketEvents provides read access to the per-market event log.
type MarketEvents interface {
	ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Event, error)
}

// MarketHandler serves market lifecycle, betting, and settlement endpoints.
type MarketHandler struct {
	factory MarketFactory
	engine  MarketEngine
	events  MarketEvents
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(f MarketFactory, e MarketEngine, events MarketEvents, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		factory: f,
		engine:  e,
		events:  events,
		logger:  logger,
	}
}

// createMarketRequest is the JSON shape for market creation. Duration is a Go
// duration string ("72h"); amounts elsewhere in the API are integer
// micro-units of the payment asset.
type createMarketRequest struct {
	Question     string            `json:"question"`
	Outcomes     []string          `json:"outcomes"`
	Duration     string            `json:"duration"`
	PaymentAsset string            `json:"payment_asset"`
	DataType     string            `json:"oracle_data_type"`
	OracleParams map[string]string `json:"oracle_params,omitempty"`
	Salt         string            `json:"salt,omitempty"`
	Creator      string            `json:"creator"`
}

func (req createMarketRequest) toDomain() (domain.CreateMarketRequest, error) {
	d, err := time.ParseDuration(req.Duration)
	if err != nil {
		return domain.CreateMarketRequest{}, fmt.Errorf("invalid duration %q: %w", req.Duration, err)
	}
	return domain.CreateMarketRequest{
		Question:     req.Question,
		Outcomes:     req.Outcomes,
		Duration:     d,
		PaymentAsset: req.PaymentAsset,
		DataType:     domain.DataType(req.DataType),
		OracleParams: req.OracleParams,
		Salt:         req.Salt,
		Creator:      req.Creator,
	}, nil
}

// CreateMarket creates a single market.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	dreq, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.factory.CreateMarket(r.Context(), dreq)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: create market failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// BatchCreateMarkets creates up to 10 markets atomically: either all are
// created or none are.
// POST /api/markets/batch
func (h *MarketHandler) BatchCreateMarkets(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Markets []createMarketRequest `json:"markets"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	dreqs := make([]domain.CreateMarketRequest, 0, len(req.Markets))
	for i, m := range req.Markets {
		dreq, err := m.toDomain()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("markets[%d]: %v", i, err))
			return
		}
		dreqs = append(dreqs, dreq)
	}

	results, err := h.factory.BatchCreateMarkets(r.Context(), dreqs)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"markets": results})
}

// PredictMarketAddress computes the deterministic address a market would
// receive without creating it.
// POST /api/markets/predict-address
func (h *MarketHandler) PredictMarketAddress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Creator  string `json:"creator"`
		Question string `json:"question"`
		DataType string `json:"oracle_data_type"`
		EndTime  string `json:"end_time"`
		Salt     string `json:"salt"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_time: "+err.Error())
		return
	}

	addr := h.factory.PredictMarketAddress(req.Creator, req.Question, domain.DataType(req.DataType), endTime, req.Salt)
	writeJSON(w, http.StatusOK, map[string]string{"market_address": addr})
}

// ListMarkets returns markets, optionally filtered by status.
// GET /api/markets?status=active
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	status := domain.MarketStatus(r.URL.Query().Get("status"))
	markets := h.engine.ListMarkets(status)
	writeJSON(w, http.StatusOK, map[string]any{
		"markets": markets,
		"total":   len(markets),
	})
}

// GetMarket returns a single market by its deterministic address.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	m, err := h.engine.Market(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListPositions returns a bettor's positions on a market, or all positions
// when no bettor is given.
// GET /api/markets/{id}/positions?bettor=addr
func (h *MarketHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	bettor := r.URL.Query().Get("bettor")

	positions, err := h.engine.Positions(id, bettor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": positions})
}

// ListEvents returns the event log for a market.
// GET /api/markets/{id}/events
func (h *MarketHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	opts := parseListOpts(r)

	events, err := h.events.ListByMarket(r.Context(), id, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list events failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// PlaceBets places one or more bets on a market in a single payment. When a
// single bet is sent without an explicit payment, the bet amount is used.
// POST /api/markets/{id}/bets
func (h *MarketHandler) PlaceBets(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req struct {
		Bettor  string              `json:"bettor"`
		Bets    []domain.BetRequest `json:"bets"`
		Payment int64               `json:"payment"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Payment == 0 && len(req.Bets) == 1 {
		req.Payment = req.Bets[0].Amount
	}

	positions, err := h.engine.BatchPlaceBets(r.Context(), id, req.Bettor, req.Bets, req.Payment)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"positions": positions})
}

// ResolveMarket triggers oracle resolution for an ended market. Resolution is
// permissionless; any caller may settle a market past its end time.
// POST /api/markets/{id}/resolve
func (h *MarketHandler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := h.factory.ResolveMarket(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	m, err := h.engine.Market(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// BatchResolveMarkets resolves up to 10 markets, skipping those that cannot
// be resolved.
// POST /api/markets/resolve-batch
func (h *MarketHandler) BatchResolveMarkets(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MarketIDs []string `json:"market_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.factory.BatchResolveMarkets(r.Context(), req.MarketIDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// DisputeResolution opens a dispute on a resolved market. The caller must
// hold a position and pay the dispute fee.
// POST /api/markets/{id}/disputes
func (h *MarketHandler) DisputeResolution(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req struct {
		Bettor  string `json:"bettor"`
		Reason  string `json:"reason"`
		Payment int64  `json:"payment"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.engine.DisputeResolution(r.Context(), id, req.Bettor, req.Reason, req.Payment); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disputed"})
}

// ResolveDispute closes a dispute, optionally overriding the winning outcome.
// Admin only.
// POST /api/markets/{id}/disputes/resolve
func (h *MarketHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req struct {
		Upheld     bool `json:"upheld"`
		NewOutcome int  `json:"new_outcome"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.engine.ResolveDispute(r.Context(), id, req.Upheld, req.NewOutcome); err != nil {
		writeDomainError(w, err)
		return
	}
	m, err := h.engine.Market(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ClaimWinnings pays out a bettor's winning positions, or several bettors at
// once when a bettors list is sent.
// POST /api/markets/{id}/claims
func (h *MarketHandler) ClaimWinnings(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req struct {
		Bettor  string   `json:"bettor,omitempty"`
		Bettors []string `json:"bettors,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if len(req.Bettors) > 0 {
		payouts, err := h.engine.BatchClaimWinnings(r.Context(), id, req.Bettors)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"payouts": payouts})
		return
	}

	payout, err := h.engine.ClaimWinnings(r.Context(), id, req.Bettor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"payout": payout})
}

// ClaimRefund returns a bettor's gross stakes on a cancelled market.
// POST /api/markets/{id}/refunds
func (h *MarketHandler) ClaimRefund(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req struct {
		Bettor string `json:"bettor"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	refund, err := h.engine.ClaimRefund(r.Context(), id, req.Bettor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"refund": refund})
}

// CancelMarket cancels a non-terminal market, switching its positions to the
// refund path. Admin only.
// POST /api/markets/{id}/cancel
func (h *MarketHandler) CancelMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := h.engine.EmergencyDeactivate(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
