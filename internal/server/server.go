// Package server assembles the HTTP + WebSocket API: routes, middleware
// chain, and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/oraclebet/oraclebet/internal/domain"
	"github.com/oraclebet/oraclebet/internal/server/handler"
	"github.com/oraclebet/oraclebet/internal/server/middleware"
	"github.com/oraclebet/oraclebet/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port         int
	CORSOrigins  []string
	AdminKeyHash string // PBKDF2 hash of the admin API key; empty disables auth
	RateLimit    int    // requests per second per client IP; 0 disables
}

// Handlers aggregates all HTTP handlers the server registers.
type Handlers struct {
	Health  *handler.HealthHandler
	Markets *handler.MarketHandler
	Oracles *handler.OracleHandler
}

// Server is the HTTP + WebSocket API server for the settlement service.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered. Mutating admin
// routes (oracle management, dispute arbitration, cancellation) sit behind
// the admin key; market reads, bets, and claims are public.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	admin := middleware.AdminAuth(cfg.AdminKeyHash)

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market lifecycle.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/positions", handlers.Markets.ListPositions)
	mux.HandleFunc("GET /api/markets/{id}/events", handlers.Markets.ListEvents)
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("POST /api/markets/batch", handlers.Markets.BatchCreateMarkets)
	mux.HandleFunc("POST /api/markets/predict-address", handlers.Markets.PredictMarketAddress)
	mux.HandleFunc("POST /api/markets/resolve-batch", handlers.Markets.BatchResolveMarkets)
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Markets.ResolveMarket)

	// Betting and settlement.
	mux.HandleFunc("POST /api/markets/{id}/bets", handlers.Markets.PlaceBets)
	mux.HandleFunc("POST /api/markets/{id}/disputes", handlers.Markets.DisputeResolution)
	mux.HandleFunc("POST /api/markets/{id}/claims", handlers.Markets.ClaimWinnings)
	mux.HandleFunc("POST /api/markets/{id}/refunds", handlers.Markets.ClaimRefund)

	// Admin-only market operations.
	mux.Handle("POST /api/markets/{id}/disputes/resolve", admin(http.HandlerFunc(handlers.Markets.ResolveDispute)))
	mux.Handle("POST /api/markets/{id}/cancel", admin(http.HandlerFunc(handlers.Markets.CancelMarket)))

	// Oracle registry and routing.
	mux.HandleFunc("GET /api/oracles", handlers.Oracles.ListOracles)
	mux.HandleFunc("GET /api/oracles/{id}", handlers.Oracles.GetOracle)
	mux.HandleFunc("GET /api/oracles/preferences/{dataType}", handlers.Oracles.GetPreference)
	mux.HandleFunc("POST /api/route", handlers.Oracles.RouteQuestion)
	mux.HandleFunc("POST /api/consensus", handlers.Oracles.GetConsensus)
	mux.Handle("POST /api/oracles", admin(http.HandlerFunc(handlers.Oracles.RegisterOracle)))
	mux.Handle("DELETE /api/oracles/{id}", admin(http.HandlerFunc(handlers.Oracles.DeactivateOracle)))
	mux.Handle("PUT /api/oracles/preferences/{dataType}", admin(http.HandlerFunc(handlers.Oracles.SetPreference)))

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, time.Second)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
