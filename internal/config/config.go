// Package config defines the top-level runtime configuration for the market
// scanner and provides validation helpers. Strategy thresholds live in a
// separate filters file; this package only wires the process together.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by BETFLOW_* environment
// variables.
type Config struct {
	Betfair  BetfairConfig  `toml:"betfair"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Scan     ScanConfig     `toml:"scan"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// BetfairConfig holds exchange API endpoints and credentials.
type BetfairConfig struct {
	APIEndpoint       string   `toml:"api_endpoint"`
	LoginEndpoint     string   `toml:"login_endpoint"`
	KeepAliveEndpoint string   `toml:"keep_alive_endpoint"`
	AppKey            string   `toml:"app_key"`
	Username          string   `toml:"username"`
	Password          string   `toml:"password"`
	CertFile          string   `toml:"cert_file"`
	KeyFile           string   `toml:"key_file"`
	Timeout           duration `toml:"timeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for run archives.
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

// ScanConfig holds scan run parameters.
type ScanConfig struct {
	FiltersPath   string   `toml:"filters_path"`
	MaxMarkets    int      `toml:"max_markets"`
	Concurrency   int      `toml:"concurrency"`
	HorizonHours  int      `toml:"horizon_hours"`
	CacheTTL      duration `toml:"cache_ttl"`
	RateLimit     int      `toml:"rate_limit"`
	RateWindow    duration `toml:"rate_window"`
	WatchInterval duration `toml:"watch_interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration for TOML decoding of strings like "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Defaults returns the built-in configuration, pointing at the production
// Betfair endpoints with no credentials set.
func Defaults() Config {
	return Config{
		Betfair: BetfairConfig{
			APIEndpoint:       "https://api.betfair.com/exchange/betting/json-rpc/v1",
			LoginEndpoint:     "https://identitysso-cert.betfair.com/api/certlogin",
			KeepAliveEndpoint: "https://identitysso.betfair.com/api/keepAlive",
			Timeout:           duration{20 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "betflow",
			User:          "betflow",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "betflow-runs",
			ForcePathStyle: true,
		},
		Scan: ScanConfig{
			FiltersPath:   "config/filters.yaml",
			MaxMarkets:    10,
			Concurrency:   4,
			HorizonHours:  12,
			CacheTTL:      duration{2 * time.Minute},
			RateLimit:     5,
			RateWindow:    duration{time.Second},
			WatchInterval: duration{5 * time.Minute},
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"scan":  true,
	"watch": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, watch)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Betfair.AppKey == "" {
		errs = append(errs, "betfair: app_key must not be empty")
	}
	if c.Betfair.Username == "" || c.Betfair.Password == "" {
		errs = append(errs, "betfair: username and password must not be empty")
	}
	if c.Betfair.CertFile == "" || c.Betfair.KeyFile == "" {
		errs = append(errs, "betfair: cert_file and key_file must not be empty")
	}
	if c.Betfair.APIEndpoint == "" || c.Betfair.LoginEndpoint == "" {
		errs = append(errs, "betfair: api_endpoint and login_endpoint must not be empty")
	}

	if c.Scan.FiltersPath == "" {
		errs = append(errs, "scan: filters_path must not be empty")
	}
	if c.Scan.MaxMarkets < 1 {
		errs = append(errs, "scan: max_markets must be >= 1")
	}
	if c.Scan.Concurrency < 1 {
		errs = append(errs, "scan: concurrency must be >= 1")
	}
	if c.Scan.HorizonHours < 1 {
		errs = append(errs, "scan: horizon_hours must be >= 1")
	}
	if c.Scan.RateLimit > 0 && c.Scan.RateWindow.Duration <= 0 {
		errs = append(errs, "scan: rate_window must be positive when rate_limit is set")
	}
	if strings.ToLower(c.Mode) == "watch" && c.Scan.WatchInterval.Duration <= 0 {
		errs = append(errs, "scan: watch_interval must be positive in watch mode")
	}

	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		if c.Postgres.Host == "" || c.Postgres.Database == "" || c.Postgres.User == "" {
			errs = append(errs, "postgres: host, database, and user are required when enabled without a dsn")
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}
	if c.S3.Enabled {
		if c.S3.Bucket == "" || c.S3.Region == "" {
			errs = append(errs, "s3: bucket and region are required when enabled")
		}
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			errs = append(errs, "s3: access_key and secret_key are required when enabled")
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid config:\n  - %s", strings.Join(errs, "\n  - "))
}
