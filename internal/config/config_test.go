package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "watch"
log_level = "debug"

[postgres]
host = "db.internal"
password = "hunter2"

[settlement]
resolve_interval = "30s"

[[oracles]]
id = "chainlink-prices"
provider = "chainlink"
kind = "http"
base_url = "https://feeds.example.com"
data_types = ["price"]
timeout = "5s"
cost_per_query = 1000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Mode != "watch" || cfg.LogLevel != "debug" {
		t.Errorf("mode/log = %s/%s, want watch/debug", cfg.Mode, cfg.LogLevel)
	}
	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("postgres host = %s", cfg.Postgres.Host)
	}
	// Unset fields keep their defaults.
	if cfg.Postgres.Port != 5432 || cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("defaults lost: port=%d redis=%s", cfg.Postgres.Port, cfg.Redis.Addr)
	}
	if cfg.Settlement.ResolveInterval.Duration != 30*time.Second {
		t.Errorf("resolve interval = %s, want 30s", cfg.Settlement.ResolveInterval.Duration)
	}
	if len(cfg.Oracles) != 1 {
		t.Fatalf("oracles = %d, want 1", len(cfg.Oracles))
	}
	o := cfg.Oracles[0]
	if o.ID != "chainlink-prices" || o.Kind != "http" || o.Timeout.Duration != 5*time.Second {
		t.Errorf("oracle = %+v", o)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[postgres]
host = "db.internal"
`)

	t.Setenv("ORACLEBET_POSTGRES_HOST", "db.override")
	t.Setenv("ORACLEBET_POSTGRES_PASSWORD", "from-env")
	t.Setenv("ORACLEBET_SERVER_PORT", "9000")
	t.Setenv("ORACLEBET_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ORACLEBET_SETTLEMENT_RESOLVE_INTERVAL", "2m")
	t.Setenv("ORACLEBET_S3_ENABLED", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Postgres.Host != "db.override" || cfg.Postgres.Password != "from-env" {
		t.Errorf("postgres = %s/%s", cfg.Postgres.Host, cfg.Postgres.Password)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Settlement.ResolveInterval.Duration != 2*time.Minute {
		t.Errorf("resolve interval = %s", cfg.Settlement.ResolveInterval.Duration)
	}
	if !cfg.S3.Enabled {
		t.Error("s3 not enabled from env")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Defaults()
		cfg.Admin.APIKey = "admin-key"
		return cfg
	}

	cfg := valid()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		frag   string
	}{
		{"bad mode", func(c *Config) { c.Mode = "sideways" }, "unknown mode"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log_level"},
		{"missing pg host", func(c *Config) { c.Postgres.Host = "" }, "postgres: host"},
		{"bad pg port", func(c *Config) { c.Postgres.Port = 70000 }, "postgres: port"},
		{"pool inversion", func(c *Config) { c.Postgres.PoolMinConns = 20 }, "pool_min_conns"},
		{"missing redis addr", func(c *Config) { c.Redis.Addr = "" }, "redis: addr"},
		{"s3 without bucket", func(c *Config) { c.S3.Enabled = true; c.S3.Bucket = "" }, "s3: bucket"},
		{"bad server port", func(c *Config) { c.Server.Port = 0 }, "server: port"},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }, "rate_limit"},
		{"server without admin key", func(c *Config) { c.Admin.APIKey = "" }, "admin: api_key"},
		{"zero resolve interval", func(c *Config) { c.Settlement.ResolveInterval = duration{} }, "resolve_interval"},
		{"zero retention", func(c *Config) { c.Settlement.ArchiveRetentionDays = 0 }, "archive_retention_days"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.frag) {
				t.Fatalf("error %q does not mention %q", err, tc.frag)
			}
		})
	}
}

func TestValidate_Oracles(t *testing.T) {
	base := func() Config {
		cfg := Defaults()
		cfg.Admin.APIKey = "admin-key"
		cfg.Oracles = []OracleConfig{{
			ID:        "o1",
			Provider:  "p",
			Kind:      "static",
			DataTypes: []string{"price"},
		}}
		return cfg
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid oracle rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing id", func(c *Config) { c.Oracles[0].ID = "" }},
		{"missing provider", func(c *Config) { c.Oracles[0].Provider = "" }},
		{"bad kind", func(c *Config) { c.Oracles[0].Kind = "grpc" }},
		{"http without url", func(c *Config) { c.Oracles[0].Kind = "http" }},
		{"no data types", func(c *Config) { c.Oracles[0].DataTypes = nil }},
		{"bad data type", func(c *Config) { c.Oracles[0].DataTypes = []string{"horoscope"} }},
		{"negative cost", func(c *Config) { c.Oracles[0].CostPerQuery = -1 }},
		{"duplicate id", func(c *Config) { c.Oracles = append(c.Oracles, c.Oracles[0]) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Postgres.DSN = "postgres://u:hunter2@h/db"
	cfg.Redis.Password = "redispass"
	cfg.S3.SecretKey = "s3secret"
	cfg.Admin.APIKey = "adminkey"
	cfg.Notify.TelegramToken = "tgtoken"
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook"
	cfg.Oracles = []OracleConfig{{ID: "o1", APIKey: "oraclekey"}}

	red := RedactedConfig(&cfg)

	for name, got := range map[string]string{
		"postgres password": red.Postgres.Password,
		"postgres dsn":      red.Postgres.DSN,
		"redis password":    red.Redis.Password,
		"s3 secret":         red.S3.SecretKey,
		"admin key":         red.Admin.APIKey,
		"telegram token":    red.Notify.TelegramToken,
		"discord webhook":   red.Notify.DiscordWebhookURL,
		"oracle api key":    red.Oracles[0].APIKey,
	} {
		if got != "***" {
			t.Errorf("%s = %q, want redacted", name, got)
		}
	}

	// The original is untouched.
	if cfg.Postgres.Password != "hunter2" || cfg.Oracles[0].APIKey != "oraclekey" {
		t.Error("redaction mutated the source config")
	}
}
