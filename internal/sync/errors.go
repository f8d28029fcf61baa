// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package sync

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConfigured is returned when a connector's credentials are absent.
	// Callers report the source as skipped; it is never fatal.
	ErrNotConfigured = errors.New("not configured")

	// ErrSyncInProgress is returned when a source is already syncing.
	ErrSyncInProgress = errors.New("sync already in progress")
)

// APIError is a non-2xx vendor response that was not retried.
type APIError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s API returned status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s API returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// Temporary reports whether the status is worth retrying.
func (e *APIError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode == 502 || e.StatusCode == 503 || e.StatusCode == 504
}

// RateLimitError is returned when 429 responses outlast the retry budget.
type RateLimitError struct {
	Service    string
	Attempts   int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s API rate limit exceeded after %d attempts", e.Service, e.Attempts)
}

// OptionsError wraps an invalid trigger body.
type OptionsError struct {
	Err error
}

func (e *OptionsError) Error() string { return "invalid sync options: " + e.Err.Error() }
func (e *OptionsError) Unwrap() error { return e.Err }
