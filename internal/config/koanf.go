// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists config file locations in priority order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tributary/config.yaml",
	"/etc/tributary/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// GoogleTokenURL is the OAuth2 endpoint for service-account assertions.
const GoogleTokenURL = "https://oauth2.googleapis.com/token"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			Timeout:     10 * time.Minute, // daily runs hold the request open
			Environment: "production",
		},
		Database: DatabaseConfig{
			Path:      "/data/tributary.duckdb",
			MaxMemory: "1GB",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			RateLimitReqs:   30,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{},
		},
		Sync: SyncConfig{
			BatchSize:      1000,
			TrailingDays:   7,
			RunTimeout:     5 * time.Minute,
			RequestTimeout: 30 * time.Second,
			MaxConcurrent:  1,
			RetryAttempts:  3,
			RetryBaseDelay: 500 * time.Millisecond,
			RetryMaxDelay:  8 * time.Second,
			FullSyncStart:  "2024-01-01",
			DailySources:   []string{},
		},
		Scheduler: SchedulerConfig{
			Enabled:      false,
			Interval:     24 * time.Hour,
			InitialDelay: time.Minute,
		},
		Import: ImportConfig{
			BatchSize: 1000,
		},
		SearchAnalytics: SearchAnalyticsConfig{
			BaseURL:  "https://searchconsole.googleapis.com",
			TokenURL: GoogleTokenURL,
		},
		ShoppingFeed: ShoppingFeedConfig{
			BaseURL:  "https://shoppingcontent.googleapis.com",
			TokenURL: GoogleTokenURL,
		},
		WebAnalytics: WebAnalyticsConfig{
			BaseURL:  "https://analyticsdata.googleapis.com",
			TokenURL: GoogleTokenURL,
		},
		Commerce: CommerceConfig{
			APIVersion:        "2024-01",
			RequestsPerSecond: 2,
		},
		ProjectTracker: ProjectTrackerConfig{
			BaseURL: "https://app.asana.com",
		},
	}
}

// LoadWithKoanf loads configuration with precedence ENV > file > defaults,
// then validates it.
func LoadWithKoanf() (*Config, error) {
	cfg, err := loadLayers()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadForImport loads the same layers but only validates what the bulk
// loader uses, so the CLI runs without server settings such as CRON_SECRET.
func LoadForImport() (*Config, error) {
	cfg, err := loadLayers()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateForImport(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadLayers() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.applyCredentialFallbacks()
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"sync.daily_sources",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased env names onto koanf paths. The connector
// variables keep the names the dashboard deployment already uses.
var envMappings = map[string]string{
	// Server
	"http_port":    "server.port",
	"http_host":    "server.host",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",

	// Database
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Security
	"cron_secret":         "security.cron_secret",
	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	// Sync engine
	"sync_batch_size":       "sync.batch_size",
	"sync_trailing_days":    "sync.trailing_days",
	"sync_run_timeout":      "sync.run_timeout",
	"sync_request_timeout":  "sync.request_timeout",
	"sync_max_concurrent":   "sync.max_concurrent",
	"sync_retry_attempts":   "sync.retry_attempts",
	"sync_retry_base_delay": "sync.retry_base_delay",
	"sync_retry_max_delay":  "sync.retry_max_delay",
	"sync_full_sync_start":  "sync.full_sync_start",
	"sync_daily_sources":    "sync.daily_sources",

	// Scheduler
	"scheduler_enabled":       "scheduler.enabled",
	"scheduler_interval":      "scheduler.interval",
	"scheduler_initial_delay": "scheduler.initial_delay",

	// Bulk import
	"import_batch_size":    "import.batch_size",
	"import_progress_path": "import.progress_path",

	// Search Console
	"gsc_site_url":         "search_analytics.site_url",
	"gsc_credentials_json": "search_analytics.credentials_json",
	"gsc_base_url":         "search_analytics.base_url",

	// Merchant Center
	"gmc_merchant_id":                     "shopping_feed.merchant_id",
	"google_application_credentials_json": "shopping_feed.credentials_json",
	"gmc_base_url":                        "shopping_feed.base_url",

	// GA4
	"ga4_property_id":      "web_analytics.property_id",
	"ga4_credentials_json": "web_analytics.credentials_json",
	"ga4_base_url":         "web_analytics.base_url",

	// Shopify
	"shopify_shop_domain":  "commerce.shop_domain",
	"shopify_access_token": "commerce.access_token",
	"shopify_api_version":  "commerce.api_version",
	"shopify_base_url":     "commerce.base_url",

	// Asana
	"asana_access_token":  "project_tracker.access_token",
	"asana_workspace_gid": "project_tracker.workspace_gid",
	"asana_base_url":      "project_tracker.base_url",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped variables return "" and are ignored.
//
// Examples:
//   - GSC_SITE_URL -> search_analytics.site_url
//   - SHOPIFY_ACCESS_TOKEN -> commerce.access_token
//   - SYNC_BATCH_SIZE -> sync.batch_size
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
