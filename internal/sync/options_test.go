// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package sync

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeOptions(t *testing.T) {
	t.Run("empty body yields defaults", func(t *testing.T) {
		opts, err := decodeOptions(nil, DefaultSearchAnalyticsOptions())
		if err != nil {
			t.Fatalf("decodeOptions() error = %v", err)
		}
		if opts != DefaultSearchAnalyticsOptions() {
			t.Errorf("opts = %+v", opts)
		}
	})

	t.Run("body overlays defaults", func(t *testing.T) {
		raw := []byte(`{"syncQueries":false,"dateRange":{"startDate":"2026-01-01","endDate":"2026-01-31"}}`)
		opts, err := decodeOptions(raw, DefaultSearchAnalyticsOptions())
		if err != nil {
			t.Fatalf("decodeOptions() error = %v", err)
		}
		if opts.SyncQueries || !opts.SyncPages {
			t.Errorf("switches = %+v", opts)
		}
		if opts.DateRange == nil || opts.DateRange.StartDate != "2026-01-01" {
			t.Errorf("DateRange = %+v", opts.DateRange)
		}
	})

	t.Run("full sync flag", func(t *testing.T) {
		opts, err := decodeOptions([]byte(`{"fullSync":true}`), DefaultCommerceOptions())
		if err != nil {
			t.Fatal(err)
		}
		if !opts.Common().FullSync || opts.Limit != 250 {
			t.Errorf("opts = %+v", opts)
		}
	})

	t.Run("misspelled switch is rejected", func(t *testing.T) {
		opts, err := decodeOptions([]byte(`{"syncQuerys":false}`), DefaultSearchAnalyticsOptions())
		var optErr *OptionsError
		if !errors.As(err, &optErr) {
			t.Fatalf("error = %v, want *OptionsError", err)
		}
		if !strings.Contains(err.Error(), "syncQuerys") {
			t.Errorf("error %q should name the field", err)
		}
		if opts != DefaultSearchAnalyticsOptions() {
			t.Errorf("opts = %+v, want defaults", opts)
		}
	})

	t.Run("whitespace body yields defaults", func(t *testing.T) {
		opts, err := decodeOptions([]byte("  \n"), DefaultProjectTrackerOptions())
		if err != nil {
			t.Fatal(err)
		}
		if opts != DefaultProjectTrackerOptions() {
			t.Errorf("opts = %+v", opts)
		}
	})

	invalid := []struct {
		name string
		raw  string
	}{
		{"malformed json", `{"fullSync":`},
		{"bad start date", `{"dateRange":{"startDate":"2026-13-01","endDate":"2026-01-31"}}`},
		{"missing end date", `{"dateRange":{"startDate":"2026-01-01"}}`},
		{"reversed range", `{"dateRange":{"startDate":"2026-02-01","endDate":"2026-01-01"}}`},
		{"limit too large", `{"limit":500}`},
		{"unknown switch", `{"syncOrder":false}`},
		{"unknown date range field", `{"dateRange":{"startDate":"2026-01-01","endDate":"2026-01-31","tz":"UTC"}}`},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeOptions([]byte(tt.raw), DefaultCommerceOptions())
			var optErr *OptionsError
			if !errors.As(err, &optErr) {
				t.Errorf("error = %v, want *OptionsError", err)
			}
		})
	}
}

func TestDateRange_Window(t *testing.T) {
	w, err := DateRange{StartDate: "2026-01-01", EndDate: "2026-01-31"}.Window()
	if err != nil {
		t.Fatal(err)
	}
	if w.Days() != 31 {
		t.Errorf("Days() = %d, want 31", w.Days())
	}
}
