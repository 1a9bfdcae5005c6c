package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oraclebet/oraclebet/internal/domain"
	"github.com/oraclebet/oraclebet/internal/server"
	"github.com/oraclebet/oraclebet/internal/server/handler"
	"github.com/oraclebet/oraclebet/internal/server/ws"
)

// ServerMode runs the HTTP + WebSocket API server together with the
// notification watcher. It blocks until the context is cancelled or a
// component fails.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.EventBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		return deps.Notifier.Watch(ctx, deps.EventBus)
	})

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.logger),
		Markets: handler.NewMarketHandler(deps.Factory, deps.Engine, deps.EventStore, a.logger),
		Oracles: handler.NewOracleHandler(deps.Registry, deps.Router, AdapterBuilder(), a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:         a.cfg.Server.Port,
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		AdminKeyHash: deps.AdminKeyHash,
		RateLimit:    a.cfg.Server.RateLimit,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		a.logger.InfoContext(ctx, "http server listening", slog.Int("port", a.cfg.Server.Port))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// WatchMode runs the background settlement loops: resolving ended markets on
// a fixed interval and, when blob storage is configured, archiving settled
// markets and old events.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Notifier.Watch(ctx, deps.EventBus)
	})

	g.Go(func() error {
		return a.resolveLoop(ctx, deps)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.archiveLoop(ctx, deps)
		})
	}

	return g.Wait()
}

// FullMode runs the API server and the settlement loops in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.ServerMode(ctx, deps)
	})

	g.Go(func() error {
		return a.resolveLoop(ctx, deps)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.archiveLoop(ctx, deps)
		})
	}

	return g.Wait()
}

// resolveLoop periodically resolves every market whose end time has passed.
// Failures on individual markets are logged and retried on the next tick.
func (a *App) resolveLoop(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Settlement.ResolveInterval.Duration
	a.logger.InfoContext(ctx, "starting resolve loop", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.resolveEnded(ctx, deps)
		}
	}
}

// resolveEnded collects ended markets and resolves them in batches.
func (a *App) resolveEnded(ctx context.Context, deps *Dependencies) {
	ended := deps.Engine.ListMarkets(domain.MarketStatusEnded)
	if len(ended) == 0 {
		return
	}

	ids := make([]string, len(ended))
	for i, m := range ended {
		ids[i] = m.ID
	}
	a.logger.InfoContext(ctx, "resolving ended markets", slog.Int("count", len(ids)))

	for start := 0; start < len(ids); start += domain.MaxBatchSize {
		end := start + domain.MaxBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		res, err := deps.Factory.BatchResolveMarkets(ctx, ids[start:end])
		if err != nil {
			a.logger.WarnContext(ctx, "batch resolve failed",
				slog.Int("batch_size", end-start),
				slog.String("error", err.Error()),
			)
			continue
		}
		a.logger.InfoContext(ctx, "batch resolve finished",
			slog.Int("resolved", len(res.Resolved)),
			slog.Int("skipped", len(res.Skipped)),
			slog.Int64("total_volume", res.TotalVolume),
		)
	}
}

// archiveLoop periodically moves settled markets and old events past the
// retention window into blob storage.
func (a *App) archiveLoop(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Settlement.ArchiveInterval.Duration
	retention := time.Duration(a.cfg.Settlement.ArchiveRetentionDays) * 24 * time.Hour
	a.logger.InfoContext(ctx, "starting archive loop",
		slog.Duration("interval", interval),
		slog.Duration("retention", retention),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().Add(-retention)

			markets, err := deps.Archiver.ArchiveSettledMarkets(ctx, cutoff)
			if err != nil {
				a.logger.WarnContext(ctx, "market archive failed", slog.String("error", err.Error()))
			} else if markets > 0 {
				a.logger.InfoContext(ctx, "archived settled markets", slog.Int64("count", markets))
			}

			events, err := deps.Archiver.ArchiveEvents(ctx, cutoff)
			if err != nil {
				a.logger.WarnContext(ctx, "event archive failed", slog.String("error", err.Error()))
			} else if events > 0 {
				a.logger.InfoContext(ctx, "archived events", slog.Int64("count", events))
			}
		}
	}
}
