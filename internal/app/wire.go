package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oraclebet/oraclebet/internal/bank"
	s3blob "github.com/oraclebet/oraclebet/internal/blob/s3"
	"github.com/oraclebet/oraclebet/internal/cache/redis"
	"github.com/oraclebet/oraclebet/internal/config"
	"github.com/oraclebet/oraclebet/internal/domain"
	"github.com/oraclebet/oraclebet/internal/engine"
	"github.com/oraclebet/oraclebet/internal/factory"
	"github.com/oraclebet/oraclebet/internal/notify"
	"github.com/oraclebet/oraclebet/internal/oracle"
	"github.com/oraclebet/oraclebet/internal/registry"
	"github.com/oraclebet/oraclebet/internal/router"
	"github.com/oraclebet/oraclebet/internal/server/handler"
	"github.com/oraclebet/oraclebet/internal/server/middleware"
	"github.com/oraclebet/oraclebet/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	OracleStore   domain.OracleStore
	MarketStore   domain.MarketStore
	PositionStore domain.PositionStore
	EventStore    domain.EventStore

	// Caches and messaging
	ResultCache domain.ResultCache
	EventBus    domain.EventBus
	RateLimiter domain.RateLimiter

	// Blob storage
	Archiver *s3blob.Archiver

	// Core settlement components
	Treasury domain.Treasury
	Registry *registry.Registry
	Router   *router.Router
	Engine   *engine.Engine
	Factory  *factory.Factory

	// Notifications and auth
	Notifier     *notify.Notifier
	AdminKeyHash string
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	deps.OracleStore = postgres.NewOracleStore(pgClient)
	deps.MarketStore = postgres.NewMarketStore(pgClient)
	deps.PositionStore = postgres.NewPositionStore(pgClient)
	deps.EventStore = postgres.NewEventStore(pgClient)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.ResultCache = redis.NewResultCache(redisClient)
	deps.EventBus = redis.NewEventBus(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)

	// --- S3 blob storage (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.MarketStore,
			deps.PositionStore,
			deps.EventStore,
		)
	}

	// --- Core settlement components ---
	deps.Treasury = bank.New()

	deps.Registry = registry.New(deps.OracleStore, deps.EventStore, deps.EventBus, logger)
	if err := deps.Registry.Load(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: load oracle registry: %w", err)
	}
	if err := bootstrapOracles(ctx, cfg, deps.Registry); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: bootstrap oracles: %w", err)
	}

	deps.Router = router.New(deps.Registry, deps.ResultCache, deps.EventStore, deps.EventBus, logger)

	deps.Engine = engine.New(deps.Registry, deps.Treasury, deps.MarketStore, deps.PositionStore, deps.EventStore, deps.EventBus, logger)
	if err := deps.Engine.Load(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: load market engine: %w", err)
	}

	deps.Factory = factory.New(deps.Router, deps.Engine, deps.EventStore, deps.EventBus, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Admin key ---
	deps.AdminKeyHash = cfg.Admin.APIKeyHash
	if deps.AdminKeyHash == "" && cfg.Admin.APIKey != "" {
		hash, err := middleware.HashAPIKey(cfg.Admin.APIKey)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: hash admin key: %w", err)
		}
		deps.AdminKeyHash = hash
	}

	return deps, cleanup, nil
}

// bootstrapOracles registers the configured oracles on first start and
// reattaches their adapters on every start. Already-known oracles keep their
// accumulated performance history.
func bootstrapOracles(ctx context.Context, cfg *config.Config, reg *registry.Registry) error {
	for _, oc := range cfg.Oracles {
		adapter, err := buildAdapter(adapterFromConfig(oc))
		if err != nil {
			return fmt.Errorf("oracle %s: %w", oc.ID, err)
		}

		if _, err := reg.Get(oc.ID); err == nil {
			if err := reg.AttachAdapter(oc.ID, adapter); err != nil {
				return fmt.Errorf("oracle %s: attach adapter: %w", oc.ID, err)
			}
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("oracle %s: %w", oc.ID, err)
		}

		types := make([]domain.DataType, len(oc.DataTypes))
		for i, dt := range oc.DataTypes {
			types[i] = domain.DataType(dt)
		}
		o := domain.Oracle{
			ID:        oc.ID,
			Provider:  oc.Provider,
			DataTypes: types,
			BaseCost:  oc.CostPerQuery,
			IsActive:  true,
		}
		if err := reg.Register(ctx, o, adapter); err != nil {
			return fmt.Errorf("oracle %s: register: %w", oc.ID, err)
		}
	}
	return nil
}

// adapterParams describes an adapter to construct, independent of whether it
// came from the config file or an API registration request.
type adapterParams struct {
	Kind         string
	Provider     string
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	CostPerQuery int64
	DataTypes    []domain.DataType
}

// buildAdapter constructs the provider adapter described by p.
func buildAdapter(p adapterParams) (domain.OracleAdapter, error) {
	switch p.Kind {
	case "http":
		return oracle.NewHTTPAdapter(oracle.HTTPAdapterConfig{
			Provider:     p.Provider,
			BaseURL:      p.BaseURL,
			APIKey:       p.APIKey,
			DataTypes:    p.DataTypes,
			CostPerQuery: p.CostPerQuery,
			Timeout:      p.Timeout,
		}), nil
	case "static":
		return oracle.NewStaticAdapter(p.Provider, p.DataTypes, p.CostPerQuery), nil
	default:
		return nil, fmt.Errorf("unknown adapter kind %q", p.Kind)
	}
}

// adapterFromConfig converts a config oracle entry into adapter parameters.
func adapterFromConfig(oc config.OracleConfig) adapterParams {
	types := make([]domain.DataType, len(oc.DataTypes))
	for i, dt := range oc.DataTypes {
		types[i] = domain.DataType(dt)
	}
	return adapterParams{
		Kind:         oc.Kind,
		Provider:     oc.Provider,
		BaseURL:      oc.BaseURL,
		APIKey:       oc.APIKey,
		Timeout:      oc.Timeout.Duration,
		CostPerQuery: oc.CostPerQuery,
		DataTypes:    types,
	}
}

// AdapterBuilder returns the builder the HTTP handler layer uses to construct
// adapters for oracles registered through the API.
func AdapterBuilder() handler.AdapterBuilder {
	return func(spec handler.AdapterSpec) (domain.OracleAdapter, error) {
		return buildAdapter(adapterParams{
			Kind:         spec.Kind,
			Provider:     spec.Provider,
			BaseURL:      spec.BaseURL,
			APIKey:       spec.APIKey,
			Timeout:      spec.Timeout,
			CostPerQuery: spec.CostPerQuery,
			DataTypes:    spec.DataTypes,
		})
	}
}
