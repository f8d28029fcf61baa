// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

// Package config loads Tributary configuration from defaults, an optional
// YAML file and the environment (in increasing precedence) using koanf.
//
// Connector credentials are optional. A connector whose credentials are
// absent is reported as "not configured" at sync time; it is never a
// configuration error.
package config

import (
	"strings"
	"time"

	"github.com/tomtom215/tributary/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Server          ServerConfig          `koanf:"server"`
	Database        DatabaseConfig        `koanf:"database"`
	Logging         LoggingConfig         `koanf:"logging"`
	Security        SecurityConfig        `koanf:"security"`
	Sync            SyncConfig            `koanf:"sync"`
	Scheduler       SchedulerConfig       `koanf:"scheduler"`
	Import          ImportConfig          `koanf:"import"`
	SearchAnalytics SearchAnalyticsConfig `koanf:"search_analytics"`
	ShoppingFeed    ShoppingFeedConfig    `koanf:"shopping_feed"`
	WebAnalytics    WebAnalyticsConfig    `koanf:"web_analytics"`
	Commerce        CommerceConfig        `koanf:"commerce"`
	ProjectTracker  ProjectTrackerConfig  `koanf:"project_tracker"`
}

type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development, staging, production
}

type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

type SecurityConfig struct {
	CronSecret        string        `koanf:"cron_secret"`
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// SyncConfig tunes every sync session.
type SyncConfig struct {
	BatchSize      int           `koanf:"batch_size"`
	TrailingDays   int           `koanf:"trailing_days"`
	RunTimeout     time.Duration `koanf:"run_timeout"`     // per-session wall-clock ceiling
	RequestTimeout time.Duration `koanf:"request_timeout"` // per vendor HTTP call
	MaxConcurrent  int           `koanf:"max_concurrent"`  // 1 = sequential coordinator
	RetryAttempts  int           `koanf:"retry_attempts"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`
	RetryMaxDelay  time.Duration `koanf:"retry_max_delay"`
	FullSyncStart  string        `koanf:"full_sync_start"` // YYYY-MM-DD
	DailySources   []string      `koanf:"daily_sources"`
}

// FullSyncStartDate returns the configured history start, falling back to
// 2024-01-01 when unparseable (Validate rejects that case at load time).
func (s SyncConfig) FullSyncStartDate() time.Time {
	t, err := time.Parse(models.DateLayout, s.FullSyncStart)
	if err != nil {
		return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// DailySourceKinds resolves DailySources; an empty list means every source.
func (s SyncConfig) DailySourceKinds() []models.SourceKind {
	if len(s.DailySources) == 0 {
		return models.AllSources()
	}
	kinds := make([]models.SourceKind, 0, len(s.DailySources))
	for _, name := range s.DailySources {
		if k, err := models.ParseSourceKind(name); err == nil {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

type SchedulerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Interval     time.Duration `koanf:"interval"`
	InitialDelay time.Duration `koanf:"initial_delay"`
}

type ImportConfig struct {
	BatchSize    int    `koanf:"batch_size"`
	ProgressPath string `koanf:"progress_path"` // Badger directory; empty keeps progress in memory
}

// SearchAnalyticsConfig holds Search Console credentials.
type SearchAnalyticsConfig struct {
	SiteURL         string `koanf:"site_url"`
	CredentialsJSON string `koanf:"credentials_json"`
	BaseURL         string `koanf:"base_url"`
	TokenURL        string `koanf:"token_url"`
}

func (c SearchAnalyticsConfig) Configured() bool {
	return c.SiteURL != "" && c.CredentialsJSON != ""
}

// ShoppingFeedConfig holds Merchant Center credentials.
type ShoppingFeedConfig struct {
	MerchantID      string `koanf:"merchant_id"`
	CredentialsJSON string `koanf:"credentials_json"`
	BaseURL         string `koanf:"base_url"`
	TokenURL        string `koanf:"token_url"`
}

func (c ShoppingFeedConfig) Configured() bool {
	return c.MerchantID != "" && c.CredentialsJSON != ""
}

// WebAnalyticsConfig holds GA4 Data API credentials.
type WebAnalyticsConfig struct {
	PropertyID      string `koanf:"property_id"`
	CredentialsJSON string `koanf:"credentials_json"`
	BaseURL         string `koanf:"base_url"`
	TokenURL        string `koanf:"token_url"`
}

func (c WebAnalyticsConfig) Configured() bool {
	return c.PropertyID != "" && c.CredentialsJSON != ""
}

// CommerceConfig holds Shopify Admin API credentials.
type CommerceConfig struct {
	ShopDomain        string  `koanf:"shop_domain"`
	AccessToken       string  `koanf:"access_token"`
	APIVersion        string  `koanf:"api_version"`
	BaseURL           string  `koanf:"base_url"` // overrides https://{shop_domain}
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

func (c CommerceConfig) Configured() bool {
	return c.ShopDomain != "" && c.AccessToken != ""
}

// ProjectTrackerConfig holds Asana credentials.
type ProjectTrackerConfig struct {
	AccessToken  string `koanf:"access_token"`
	WorkspaceGID string `koanf:"workspace_gid"` // empty syncs every workspace
	BaseURL      string `koanf:"base_url"`
}

func (c ProjectTrackerConfig) Configured() bool {
	return c.AccessToken != ""
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Server.Environment, "development")
}

// applyCredentialFallbacks mirrors the legacy behaviour where the GA4
// service-account JSON doubled as credentials for the other Google APIs.
func (c *Config) applyCredentialFallbacks() {
	if c.SearchAnalytics.CredentialsJSON == "" {
		c.SearchAnalytics.CredentialsJSON = c.WebAnalytics.CredentialsJSON
	}
	if c.ShoppingFeed.CredentialsJSON == "" {
		c.ShoppingFeed.CredentialsJSON = c.WebAnalytics.CredentialsJSON
	}
}

// Load reads configuration using the layered koanf loader.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
