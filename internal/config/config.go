// Package config defines the top-level configuration for the settlement
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/oraclebet/oraclebet/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ORACLEBET_* environment
// variables.
type Config struct {
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Admin      AdminConfig      `toml:"admin"`
	Settlement SettlementConfig `toml:"settlement"`
	Oracles    []OracleConfig   `toml:"oracles"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	RateLimit   int      `toml:"rate_limit"` // requests per second per client IP; 0 disables
}

// NotifyConfig holds notification channel credentials and the event types to
// forward.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// AdminConfig holds the credential for admin-only API operations. The key is
// verified against a stored PBKDF2 hash, never compared in the clear.
type AdminConfig struct {
	APIKeyHash string `toml:"api_key_hash"` // hex(salt) + ":" + hex(pbkdf2)
	APIKey     string `toml:"api_key"`      // plain key; hashed at startup when set
}

// SettlementConfig holds the background settlement loop parameters.
type SettlementConfig struct {
	ResolveInterval      duration `toml:"resolve_interval"`
	ArchiveInterval      duration `toml:"archive_interval"`
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
}

// OracleConfig declares one oracle to register at startup, together with the
// adapter that backs it. Kind selects the adapter implementation.
type OracleConfig struct {
	ID           string            `toml:"id"`
	Provider     string            `toml:"provider"`
	Kind         string            `toml:"kind"` // "http" or "static"
	DataTypes    []string          `toml:"data_types"`
	BaseURL      string            `toml:"base_url"`
	APIKey       string            `toml:"api_key"`
	Timeout      duration          `toml:"timeout"`
	CostPerQuery int64             `toml:"cost_per_query"` // micro-units
	Params       map[string]string `toml:"params"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "oraclebet",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "oraclebet-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   50,
		},
		Notify: NotifyConfig{
			Events: []string{"market_resolved", "dispute_raised", "market_cancelled"},
		},
		Settlement: SettlementConfig{
			ResolveInterval:      duration{time.Minute},
			ArchiveInterval:      duration{24 * time.Hour},
			ArchiveRetentionDays: 90,
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"watch":  true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validOracleKinds enumerates the accepted adapter kinds.
var validOracleKinds = map[string]bool{
	"http":   true,
	"static": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, watch, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must not be negative")
		}
		if c.Admin.APIKey == "" && c.Admin.APIKeyHash == "" {
			errs = append(errs, "admin: api_key or api_key_hash must be set when the server is enabled")
		}
	}

	// Oracles
	seen := map[string]bool{}
	for i, o := range c.Oracles {
		if o.ID == "" {
			errs = append(errs, fmt.Sprintf("oracles[%d]: id must not be empty", i))
			continue
		}
		if seen[o.ID] {
			errs = append(errs, fmt.Sprintf("oracles[%d]: duplicate id %q", i, o.ID))
		}
		seen[o.ID] = true
		if o.Provider == "" {
			errs = append(errs, fmt.Sprintf("oracles[%d]: provider must not be empty", i))
		}
		if !validOracleKinds[o.Kind] {
			errs = append(errs, fmt.Sprintf("oracles[%d]: unknown kind %q (valid: http, static)", i, o.Kind))
		}
		if o.Kind == "http" && o.BaseURL == "" {
			errs = append(errs, fmt.Sprintf("oracles[%d]: base_url is required for http adapters", i))
		}
		if len(o.DataTypes) == 0 {
			errs = append(errs, fmt.Sprintf("oracles[%d]: at least one data type is required", i))
		}
		for _, dt := range o.DataTypes {
			if !domain.DataType(dt).Valid() {
				errs = append(errs, fmt.Sprintf("oracles[%d]: unknown data type %q", i, dt))
			}
		}
		if o.CostPerQuery < 0 {
			errs = append(errs, fmt.Sprintf("oracles[%d]: cost_per_query must not be negative", i))
		}
	}

	// Settlement
	if c.Settlement.ResolveInterval.Duration <= 0 {
		errs = append(errs, "settlement: resolve_interval must be positive")
	}
	if c.Settlement.ArchiveRetentionDays < 1 {
		errs = append(errs, "settlement: archive_retention_days must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
