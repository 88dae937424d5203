// Package config handles environment-based configuration for the gateway.
package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete gateway configuration loaded from
// environment variables. It is immutable after Load.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Upstream      UpstreamConfig
	Aggregation   AggregationConfig
	Selection     SelectionConfig
	UpstreamCheck UpstreamCheckConfig
	LogRetention  LogRetentionConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string
	Port string
	Mode string // "debug" or "release"
}

// DatabaseConfig contains operational log database settings.
type DatabaseConfig struct {
	Path string
}

// UpstreamConfig contains settings for the observability upstream.
type UpstreamConfig struct {
	EnvURL         string
	APIToken       string
	VerifySSL      bool
	MaxConnections int
}

// AggregationConfig contains aggregation engine tunables.
type AggregationConfig struct {
	ChunkSize            int
	MaxMetricsEntities   int
	HistoryEntityLimit   int
	CacheTTL             time.Duration
	CriticalCPUThreshold float64
	TimezoneOffset       time.Duration
}

// SelectionConfig contains management zone selection settings.
type SelectionConfig struct {
	DefaultZone string
	VFGZones    []string
	FilePath    string
}

// UpstreamCheckConfig contains upstream connectivity probe settings.
type UpstreamCheckConfig struct {
	Enabled  bool
	Interval time.Duration
}

// LogRetentionConfig contains operational log retention settings.
type LogRetentionConfig struct {
	Days int
}

// Load reads configuration from environment variables with sensible defaults.
//
// Configuration variables:
//   - DT_ENV_URL (required) — base URL of the upstream environment
//   - API_TOKEN (required) — upstream API token
//   - MZ_NAME (default: "") — default management zone
//   - VFG_MZ_LIST (default: "") — comma-separated privileged MZ names
//   - VERIFY_SSL (default: "true")
//   - REQUEST_CHUNK_SIZE (default: "15")
//   - MAX_METRICS_ENTITIES (default: "20")
//   - PORT (default: "8080")
//   - SERVER_HOST (default: "0.0.0.0")
//   - SERVER_MODE (default: "debug")
//   - DB_PATH (default: "./dtgate.db")
//   - SELECTION_PATH (default: "./selected_zone.json")
//   - CACHE_TTL (default: "300s")
//   - CRITICAL_CPU_THRESHOLD (default: "80")
//   - TIMEZONE_OFFSET_HOURS (default: "2")
//   - HISTORY_ENTITY_LIMIT (default: "5")
//   - MAX_CONNECTIONS (default: "50")
//   - UPSTREAM_CHECK_ENABLED (default: "true")
//   - UPSTREAM_CHECK_INTERVAL (default: "60s")
//   - LOG_RETENTION_DAYS (default: "30")
//
// Returns an error if validation fails.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("mz_name", "")
	v.SetDefault("vfg_mz_list", "")
	v.SetDefault("verify_ssl", true)
	v.SetDefault("request_chunk_size", 15)
	v.SetDefault("max_metrics_entities", 20)
	v.SetDefault("port", "8080")
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_mode", "debug")
	v.SetDefault("db_path", "./dtgate.db")
	v.SetDefault("selection_path", "./selected_zone.json")
	v.SetDefault("cache_ttl", "300s")
	v.SetDefault("critical_cpu_threshold", 80.0)
	v.SetDefault("timezone_offset_hours", 2)
	v.SetDefault("history_entity_limit", 5)
	v.SetDefault("max_connections", 50)
	v.SetDefault("upstream_check_enabled", true)
	v.SetDefault("upstream_check_interval", "60s")
	v.SetDefault("log_retention_days", 30)

	// The environment contract predates this service; variable names are
	// bound explicitly instead of using a common prefix.
	for key, env := range map[string]string{
		"dt_env_url":              "DT_ENV_URL",
		"api_token":               "API_TOKEN",
		"mz_name":                 "MZ_NAME",
		"vfg_mz_list":             "VFG_MZ_LIST",
		"verify_ssl":              "VERIFY_SSL",
		"request_chunk_size":      "REQUEST_CHUNK_SIZE",
		"max_metrics_entities":    "MAX_METRICS_ENTITIES",
		"port":                    "PORT",
		"server_host":             "SERVER_HOST",
		"server_mode":             "SERVER_MODE",
		"db_path":                 "DB_PATH",
		"selection_path":          "SELECTION_PATH",
		"cache_ttl":               "CACHE_TTL",
		"critical_cpu_threshold":  "CRITICAL_CPU_THRESHOLD",
		"timezone_offset_hours":   "TIMEZONE_OFFSET_HOURS",
		"history_entity_limit":    "HISTORY_ENTITY_LIMIT",
		"max_connections":         "MAX_CONNECTIONS",
		"upstream_check_enabled":  "UPSTREAM_CHECK_ENABLED",
		"upstream_check_interval": "UPSTREAM_CHECK_INTERVAL",
		"log_retention_days":      "LOG_RETENTION_DAYS",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("server_host"),
			Port: v.GetString("port"),
			Mode: v.GetString("server_mode"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("db_path"),
		},
		Upstream: UpstreamConfig{
			EnvURL:         strings.TrimRight(v.GetString("dt_env_url"), "/"),
			APIToken:       v.GetString("api_token"),
			VerifySSL:      v.GetBool("verify_ssl"),
			MaxConnections: v.GetInt("max_connections"),
		},
		Aggregation: AggregationConfig{
			ChunkSize:            v.GetInt("request_chunk_size"),
			MaxMetricsEntities:   v.GetInt("max_metrics_entities"),
			HistoryEntityLimit:   v.GetInt("history_entity_limit"),
			CacheTTL:             v.GetDuration("cache_ttl"),
			CriticalCPUThreshold: v.GetFloat64("critical_cpu_threshold"),
			TimezoneOffset:       time.Duration(v.GetInt("timezone_offset_hours")) * time.Hour,
		},
		Selection: SelectionConfig{
			DefaultZone: v.GetString("mz_name"),
			VFGZones:    splitList(v.GetString("vfg_mz_list")),
			FilePath:    v.GetString("selection_path"),
		},
		UpstreamCheck: UpstreamCheckConfig{
			Enabled:  v.GetBool("upstream_check_enabled"),
			Interval: v.GetDuration("upstream_check_interval"),
		},
		LogRetention: LogRetentionConfig{
			Days: v.GetInt("log_retention_days"),
		},
	}

	if err := validate(cfg); err != nil {
		log.Printf("Configuration validation failed: %v", err)
		return nil, err
	}

	log.Printf("Configuration loaded:")
	log.Printf("  Server: %s:%s (mode: %s)", cfg.Server.Host, cfg.Server.Port, cfg.Server.Mode)
	log.Printf("  Upstream: %s (verify_ssl=%v, max_connections=%d)",
		cfg.Upstream.EnvURL, cfg.Upstream.VerifySSL, cfg.Upstream.MaxConnections)
	log.Printf("  Aggregation: chunk_size=%d, max_entities=%d, history_limit=%d, cache_ttl=%v",
		cfg.Aggregation.ChunkSize, cfg.Aggregation.MaxMetricsEntities,
		cfg.Aggregation.HistoryEntityLimit, cfg.Aggregation.CacheTTL)
	log.Printf("  Selection: default_zone=%q, vfg_zones=%d, file=%s",
		cfg.Selection.DefaultZone, len(cfg.Selection.VFGZones), cfg.Selection.FilePath)

	return cfg, nil
}

// validate checks if the configuration is valid.
func validate(cfg *Config) error {
	if cfg.Upstream.EnvURL == "" {
		return errors.New("DT_ENV_URL is required")
	}
	if cfg.Upstream.APIToken == "" {
		return errors.New("API_TOKEN is required")
	}
	if cfg.Aggregation.ChunkSize < 1 {
		return errors.New("request chunk size must be at least 1")
	}
	if cfg.Aggregation.MaxMetricsEntities < 1 {
		return errors.New("max metrics entities must be at least 1")
	}
	if cfg.Aggregation.CacheTTL < time.Second {
		return errors.New("cache TTL must be at least 1 second")
	}
	if cfg.Aggregation.CriticalCPUThreshold < 0 || cfg.Aggregation.CriticalCPUThreshold > 100 {
		return errors.New("critical CPU threshold must be between 0 and 100")
	}
	if cfg.LogRetention.Days < 1 {
		return errors.New("log retention days must be at least 1")
	}
	return nil
}

// splitList parses a comma-separated list, trimming blanks.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
