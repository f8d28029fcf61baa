// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package sync

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tomtom215/tributary/internal/models"
)

// parseMoney converts a vendor money string ("19.99", "1,299.00") to a
// float. Empty strings are zero.
func parseMoney(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}

// microsToUnits converts an amount in micros (1e-6 units) to units.
func microsToUnits(micros string) (float64, error) {
	micros = strings.TrimSpace(micros)
	if micros == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(micros, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid micros %q: %w", micros, err)
	}
	return decimal.New(n, -6).InexactFloat64(), nil
}

// roundTo rounds half away from zero to the given decimal places.
func roundTo(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// parseNumber parses a numeric string the way report APIs emit them.
func parseNumber(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// parseCompactDate parses GA4's YYYYMMDD.
func parseCompactDate(s string) (time.Time, error) {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid report date %q: %w", s, err)
	}
	return t, nil
}

// parseISODate parses YYYY-MM-DD.
func parseISODate(s string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// parseTimestamp parses RFC 3339 timestamps; empty input is the zero time.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func boolMetric(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func idString(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
