package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Betfair.AppKey = "key"
	cfg.Betfair.Username = "user"
	cfg.Betfair.Password = "pass"
	cfg.Betfair.CertFile = "client.crt"
	cfg.Betfair.KeyFile = "client.key"
	return cfg
}

func TestValidateAcceptsFilledDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "replay"
	cfg.Betfair.AppKey = ""
	cfg.Scan.MaxMarkets = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "app_key")
	assert.Contains(t, err.Error(), "max_markets")
}

func TestValidateEnabledBackends(t *testing.T) {
	cfg := validConfig()
	cfg.S3.Enabled = true
	cfg.S3.AccessKey = ""
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: access_key")
	assert.Contains(t, err.Error(), "redis: addr")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
mode = "watch"
log_level = "debug"

[betfair]
app_key = "file-key"
timeout = "5s"

[scan]
max_markets = 3
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "watch", cfg.Mode)
	assert.Equal(t, "file-key", cfg.Betfair.AppKey)
	assert.Equal(t, "5s", cfg.Betfair.Timeout.String())
	assert.Equal(t, 3, cfg.Scan.MaxMarkets)
	// Untouched fields keep their defaults.
	assert.Equal(t, 4, cfg.Scan.Concurrency)
	assert.Equal(t, "https://identitysso-cert.betfair.com/api/certlogin", cfg.Betfair.LoginEndpoint)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BETFLOW_BETFAIR_APP_KEY", "env-key")
	t.Setenv("BETFLOW_SCAN_MAX_MARKETS", "7")
	t.Setenv("BETFLOW_REDIS_ENABLED", "true")
	t.Setenv("BETFLOW_NOTIFY_EVENTS", "runner_selected, run_failed")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "env-key", cfg.Betfair.AppKey)
	assert.Equal(t, 7, cfg.Scan.MaxMarkets)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"runner_selected", "run_failed"}, cfg.Notify.Events)
}
