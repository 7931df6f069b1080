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
// built-in defaults, applies BETFLOW_* environment variable overrides, and
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

// applyEnvOverrides reads well-known BETFLOW_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Betfair.APIEndpoint, "BETFLOW_BETFAIR_API_ENDPOINT")
	setStr(&cfg.Betfair.LoginEndpoint, "BETFLOW_BETFAIR_LOGIN_ENDPOINT")
	setStr(&cfg.Betfair.KeepAliveEndpoint, "BETFLOW_BETFAIR_KEEP_ALIVE_ENDPOINT")
	setStr(&cfg.Betfair.AppKey, "BETFLOW_BETFAIR_APP_KEY")
	setStr(&cfg.Betfair.Username, "BETFLOW_BETFAIR_USERNAME")
	setStr(&cfg.Betfair.Password, "BETFLOW_BETFAIR_PASSWORD")
	setStr(&cfg.Betfair.CertFile, "BETFLOW_BETFAIR_CERT_FILE")
	setStr(&cfg.Betfair.KeyFile, "BETFLOW_BETFAIR_KEY_FILE")
	setDuration(&cfg.Betfair.Timeout, "BETFLOW_BETFAIR_TIMEOUT")

	setBool(&cfg.Postgres.Enabled, "BETFLOW_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "BETFLOW_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BETFLOW_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BETFLOW_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BETFLOW_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BETFLOW_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BETFLOW_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BETFLOW_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BETFLOW_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BETFLOW_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BETFLOW_POSTGRES_RUN_MIGRATIONS")

	setBool(&cfg.Redis.Enabled, "BETFLOW_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BETFLOW_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BETFLOW_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BETFLOW_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BETFLOW_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BETFLOW_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BETFLOW_REDIS_TLS_ENABLED")

	setBool(&cfg.S3.Enabled, "BETFLOW_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "BETFLOW_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BETFLOW_S3_REGION")
	setStr(&cfg.S3.Bucket, "BETFLOW_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BETFLOW_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BETFLOW_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BETFLOW_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BETFLOW_S3_FORCE_PATH_STYLE")

	setStr(&cfg.Scan.FiltersPath, "BETFLOW_SCAN_FILTERS_PATH")
	setInt(&cfg.Scan.MaxMarkets, "BETFLOW_SCAN_MAX_MARKETS")
	setInt(&cfg.Scan.Concurrency, "BETFLOW_SCAN_CONCURRENCY")
	setInt(&cfg.Scan.HorizonHours, "BETFLOW_SCAN_HORIZON_HOURS")
	setDuration(&cfg.Scan.CacheTTL, "BETFLOW_SCAN_CACHE_TTL")
	setInt(&cfg.Scan.RateLimit, "BETFLOW_SCAN_RATE_LIMIT")
	setDuration(&cfg.Scan.RateWindow, "BETFLOW_SCAN_RATE_WINDOW")
	setDuration(&cfg.Scan.WatchInterval, "BETFLOW_SCAN_WATCH_INTERVAL")

	setStr(&cfg.Notify.TelegramToken, "BETFLOW_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BETFLOW_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BETFLOW_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BETFLOW_NOTIFY_EVENTS")

	setStr(&cfg.Mode, "BETFLOW_MODE")
	setStr(&cfg.LogLevel, "BETFLOW_LOG_LEVEL")
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
