// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/tributary/internal/models"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Sync.BatchSize != 1000 {
		t.Errorf("Sync.BatchSize = %d, want 1000", cfg.Sync.BatchSize)
	}
	if cfg.Sync.TrailingDays != 7 {
		t.Errorf("Sync.TrailingDays = %d, want 7", cfg.Sync.TrailingDays)
	}
	if cfg.Sync.RetryAttempts != 3 {
		t.Errorf("Sync.RetryAttempts = %d, want 3", cfg.Sync.RetryAttempts)
	}
	if cfg.Sync.RetryBaseDelay != 500*time.Millisecond {
		t.Errorf("Sync.RetryBaseDelay = %v, want 500ms", cfg.Sync.RetryBaseDelay)
	}
	if cfg.Sync.RetryMaxDelay != 8*time.Second {
		t.Errorf("Sync.RetryMaxDelay = %v, want 8s", cfg.Sync.RetryMaxDelay)
	}
	if cfg.Commerce.APIVersion != "2024-01" {
		t.Errorf("Commerce.APIVersion = %q, want 2024-01", cfg.Commerce.APIVersion)
	}
	if cfg.SearchAnalytics.Configured() {
		t.Error("SearchAnalytics should not be configured by default")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"GSC_SITE_URL", "search_analytics.site_url"},
		{"GMC_MERCHANT_ID", "shopping_feed.merchant_id"},
		{"GOOGLE_APPLICATION_CREDENTIALS_JSON", "shopping_feed.credentials_json"},
		{"GA4_PROPERTY_ID", "web_analytics.property_id"},
		{"SHOPIFY_ACCESS_TOKEN", "commerce.access_token"},
		{"SHOPIFY_SHOP_DOMAIN", "commerce.shop_domain"},
		{"COMMERCE_SHOP_DOMAIN", ""},
		{"ASANA_ACCESS_TOKEN", "project_tracker.access_token"},
		{"CRON_SECRET", "security.cron_secret"},
		{"SYNC_BATCH_SIZE", "sync.batch_size"},
		{"HTTP_PORT", "server.port"},
		{"PATH", ""},
		{"HOME", ""},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoadWithKoanf_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Chdir(t.TempDir())
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("SYNC_BATCH_SIZE", "500")
	t.Setenv("SYNC_RUN_TIMEOUT", "90s")
	t.Setenv("SYNC_DAILY_SOURCES", "gsc, shopify")
	t.Setenv("GA4_PROPERTY_ID", "123456")
	t.Setenv("GA4_CREDENTIALS_JSON", `{"client_email":"svc@example.iam.gserviceaccount.com"}`)
	t.Setenv("GSC_SITE_URL", "sc-domain:example.com")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Sync.BatchSize != 500 {
		t.Errorf("Sync.BatchSize = %d, want 500", cfg.Sync.BatchSize)
	}
	if cfg.Sync.RunTimeout != 90*time.Second {
		t.Errorf("Sync.RunTimeout = %v, want 90s", cfg.Sync.RunTimeout)
	}

	kinds := cfg.Sync.DailySourceKinds()
	if len(kinds) != 2 || kinds[0] != models.SourceSearchAnalytics || kinds[1] != models.SourceCommerce {
		t.Errorf("DailySourceKinds() = %v", kinds)
	}

	// GA4 credentials fall back to the other Google connectors.
	if !cfg.SearchAnalytics.Configured() {
		t.Error("SearchAnalytics should be configured via GA4 credential fallback")
	}
	if cfg.ShoppingFeed.CredentialsJSON == "" {
		t.Error("ShoppingFeed credentials should fall back to GA4 credentials")
	}
	if cfg.ShoppingFeed.Configured() {
		t.Error("ShoppingFeed needs a merchant id to be configured")
	}
}

// The variables shown in the server's usage text must configure commerce.
func TestLoadWithKoanf_ShopifyEnv(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Chdir(t.TempDir())
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("SHOPIFY_SHOP_DOMAIN", "example.myshopify.com")
	t.Setenv("SHOPIFY_ACCESS_TOKEN", "shpat_test")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if !cfg.Commerce.Configured() {
		t.Errorf("Commerce = %+v, want configured", cfg.Commerce)
	}
	if cfg.Commerce.ShopDomain != "example.myshopify.com" {
		t.Errorf("Commerce.ShopDomain = %q", cfg.Commerce.ShopDomain)
	}
}

func TestLoadWithKoanf_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
  environment: development
sync:
  trailing_days: 14
commerce:
  shop_domain: example.myshopify.com
  access_token: shpat_test
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("SYNC_TRAILING_DAYS", "10")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Sync.TrailingDays != 10 {
		t.Errorf("Sync.TrailingDays = %d, want 10 (env beats file)", cfg.Sync.TrailingDays)
	}
	if !cfg.Commerce.Configured() {
		t.Error("Commerce should be configured from file")
	}
}

func TestLoadWithKoanf_ProductionNeedsSecret(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Chdir(t.TempDir())
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("CRON_SECRET", "")

	if _, err := LoadWithKoanf(); err == nil {
		t.Fatal("expected validation error without CRON_SECRET in production")
	}
}

func TestLoadForImport_IgnoresServerSettings(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Chdir(t.TempDir())
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("CRON_SECRET", "")
	t.Setenv("IMPORT_BATCH_SIZE", "250")

	cfg, err := LoadForImport()
	if err != nil {
		t.Fatalf("LoadForImport: %v", err)
	}
	if cfg.Import.BatchSize != 250 {
		t.Errorf("Import.BatchSize = %d, want 250", cfg.Import.BatchSize)
	}

	t.Setenv("IMPORT_BATCH_SIZE", "0")
	if _, err := LoadForImport(); err == nil {
		t.Error("expected error for IMPORT_BATCH_SIZE=0")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("TRIBUTARY_TEST_DOTENV=loaded\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("TRIBUTARY_TEST_DOTENV", "")
	os.Unsetenv("TRIBUTARY_TEST_DOTENV")

	if err := LoadDotEnv(path, filepath.Join(dir, "absent.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("TRIBUTARY_TEST_DOTENV"); got != "loaded" {
		t.Errorf("TRIBUTARY_TEST_DOTENV = %q, want loaded", got)
	}
}
