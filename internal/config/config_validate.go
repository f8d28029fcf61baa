// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/tributary/internal/models"
)

// MaxBatchSize bounds batch sizes to keep single statements within DuckDB's
// comfortable parameter range.
const MaxBatchSize = 10000

// Validate checks that configuration values are usable. Missing connector
// credentials are deliberately not checked here.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateImport(); err != nil {
		return err
	}
	return c.validateLogging()
}

// ValidateForImport checks the database, import and logging settings only.
func (c *Config) ValidateForImport() error {
	if err := c.validateImport(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	switch strings.ToLower(c.Server.Environment) {
	case "development", "staging", "production":
		return nil
	default:
		return fmt.Errorf("ENVIRONMENT must be development, staging or production, got %q", c.Server.Environment)
	}
}

func (c *Config) validateSecurity() error {
	if c.Security.CronSecret == "" && !c.IsDevelopment() {
		return fmt.Errorf("CRON_SECRET is required unless ENVIRONMENT=development")
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
		}
	}
	return nil
}

func (c *Config) validateSync() error {
	s := c.Sync
	if s.BatchSize < 1 || s.BatchSize > MaxBatchSize {
		return fmt.Errorf("SYNC_BATCH_SIZE must be between 1 and %d, got %d", MaxBatchSize, s.BatchSize)
	}
	if s.TrailingDays < 1 {
		return fmt.Errorf("SYNC_TRAILING_DAYS must be at least 1, got %d", s.TrailingDays)
	}
	if s.RunTimeout <= 0 || s.RequestTimeout <= 0 {
		return fmt.Errorf("SYNC_RUN_TIMEOUT and SYNC_REQUEST_TIMEOUT must be positive")
	}
	if s.MaxConcurrent < 1 {
		return fmt.Errorf("SYNC_MAX_CONCURRENT must be at least 1, got %d", s.MaxConcurrent)
	}
	if s.RetryAttempts < 1 {
		return fmt.Errorf("SYNC_RETRY_ATTEMPTS must be at least 1, got %d", s.RetryAttempts)
	}
	if s.RetryBaseDelay <= 0 || s.RetryMaxDelay < s.RetryBaseDelay {
		return fmt.Errorf("SYNC_RETRY_BASE_DELAY must be positive and not exceed SYNC_RETRY_MAX_DELAY")
	}
	if _, err := time.Parse(models.DateLayout, s.FullSyncStart); err != nil {
		return fmt.Errorf("SYNC_FULL_SYNC_START must be YYYY-MM-DD: %w", err)
	}
	for _, name := range s.DailySources {
		if _, err := models.ParseSourceKind(name); err != nil {
			return fmt.Errorf("SYNC_DAILY_SOURCES: %w", err)
		}
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.Enabled && c.Scheduler.Interval < time.Minute {
		return fmt.Errorf("SCHEDULER_INTERVAL must be at least 1m when SCHEDULER_ENABLED=true")
	}
	if c.Scheduler.InitialDelay < 0 {
		return fmt.Errorf("SCHEDULER_INITIAL_DELAY must not be negative")
	}
	return nil
}

func (c *Config) validateImport() error {
	if c.Import.BatchSize < 1 || c.Import.BatchSize > MaxBatchSize {
		return fmt.Errorf("IMPORT_BATCH_SIZE must be between 1 and %d, got %d", MaxBatchSize, c.Import.BatchSize)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}
