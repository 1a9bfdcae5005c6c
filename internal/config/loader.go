package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ORACLEBET_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ORACLEBET_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ORACLEBET_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ORACLEBET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ORACLEBET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ORACLEBET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ORACLEBET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ORACLEBET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ORACLEBET_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ORACLEBET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ORACLEBET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ORACLEBET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ORACLEBET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ORACLEBET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ORACLEBET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ORACLEBET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ORACLEBET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ORACLEBET_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ORACLEBET_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ORACLEBET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ORACLEBET_S3_REGION")
	setStr(&cfg.S3.Bucket, "ORACLEBET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ORACLEBET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ORACLEBET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ORACLEBET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ORACLEBET_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ORACLEBET_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ORACLEBET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ORACLEBET_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "ORACLEBET_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ORACLEBET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ORACLEBET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ORACLEBET_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ORACLEBET_NOTIFY_EVENTS")

	// ── Admin ──
	setStr(&cfg.Admin.APIKey, "ORACLEBET_ADMIN_API_KEY")
	setStr(&cfg.Admin.APIKeyHash, "ORACLEBET_ADMIN_API_KEY_HASH")

	// ── Settlement ──
	setDuration(&cfg.Settlement.ResolveInterval, "ORACLEBET_SETTLEMENT_RESOLVE_INTERVAL")
	setDuration(&cfg.Settlement.ArchiveInterval, "ORACLEBET_SETTLEMENT_ARCHIVE_INTERVAL")
	setInt(&cfg.Settlement.ArchiveRetentionDays, "ORACLEBET_SETTLEMENT_ARCHIVE_RETENTION_DAYS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ORACLEBET_MODE")
	setStr(&cfg.LogLevel, "ORACLEBET_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
