package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DT_ENV_URL", "https://abc123.live.dynatrace.com")
	t.Setenv("API_TOKEN", "dt0c01.secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "./dtgate.db", cfg.Database.Path)
	assert.True(t, cfg.Upstream.VerifySSL)
	assert.Equal(t, 50, cfg.Upstream.MaxConnections)
	assert.Equal(t, 15, cfg.Aggregation.ChunkSize)
	assert.Equal(t, 20, cfg.Aggregation.MaxMetricsEntities)
	assert.Equal(t, 5, cfg.Aggregation.HistoryEntityLimit)
	assert.Equal(t, 5*time.Minute, cfg.Aggregation.CacheTTL)
	assert.Equal(t, 80.0, cfg.Aggregation.CriticalCPUThreshold)
	assert.Equal(t, 2*time.Hour, cfg.Aggregation.TimezoneOffset)
	assert.Empty(t, cfg.Selection.DefaultZone)
	assert.Empty(t, cfg.Selection.VFGZones)
	assert.True(t, cfg.UpstreamCheck.Enabled)
	assert.Equal(t, time.Minute, cfg.UpstreamCheck.Interval)
	assert.Equal(t, 30, cfg.LogRetention.Days)
}

func TestLoadFromEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MZ_NAME", "Production")
	t.Setenv("VFG_MZ_LIST", "Core, Payments ,, Edge")
	t.Setenv("VERIFY_SSL", "false")
	t.Setenv("REQUEST_CHUNK_SIZE", "10")
	t.Setenv("MAX_METRICS_ENTITIES", "40")
	t.Setenv("PORT", "9090")
	t.Setenv("SERVER_MODE", "release")
	t.Setenv("CACHE_TTL", "120s")
	t.Setenv("TIMEZONE_OFFSET_HOURS", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Production", cfg.Selection.DefaultZone)
	assert.Equal(t, []string{"Core", "Payments", "Edge"}, cfg.Selection.VFGZones)
	assert.False(t, cfg.Upstream.VerifySSL)
	assert.Equal(t, 10, cfg.Aggregation.ChunkSize)
	assert.Equal(t, 40, cfg.Aggregation.MaxMetricsEntities)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, 2*time.Minute, cfg.Aggregation.CacheTTL)
	assert.Equal(t, time.Hour, cfg.Aggregation.TimezoneOffset)
}

func TestLoadTrimsTrailingSlash(t *testing.T) {
	t.Setenv("DT_ENV_URL", "https://abc123.live.dynatrace.com/")
	t.Setenv("API_TOKEN", "dt0c01.secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://abc123.live.dynatrace.com", cfg.Upstream.EnvURL)
}

func TestLoadRequiresUpstreamURL(t *testing.T) {
	t.Setenv("DT_ENV_URL", "")
	t.Setenv("API_TOKEN", "dt0c01.secret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DT_ENV_URL")
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("DT_ENV_URL", "https://abc123.live.dynatrace.com")
	t.Setenv("API_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_TOKEN")
}

func TestLoadRejectsInvalidTunables(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REQUEST_CHUNK_SIZE", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a"}, splitList("a"))
	assert.Equal(t, []string{"a", "b"}, splitList(" a , b "))
	assert.Nil(t, splitList(" , ,"))
}
