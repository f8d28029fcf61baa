// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package models

import (
	"fmt"
	"strings"
	"time"
)

// SourceKind identifies an external platform the engine syncs from.
type SourceKind string

const (
	SourceSearchAnalytics SourceKind = "search-analytics"
	SourceShoppingFeed    SourceKind = "shopping-feed"
	SourceWebAnalytics    SourceKind = "web-analytics"
	SourceCommerce        SourceKind = "commerce"
	SourceProjectTracker  SourceKind = "project-tracker"
)

// sourceAliases maps vendor shorthand used by older cron jobs onto kinds.
var sourceAliases = map[string]SourceKind{
	"gsc":             SourceSearchAnalytics,
	"merchant-center": SourceShoppingFeed,
	"gmc":             SourceShoppingFeed,
	"ga4":             SourceWebAnalytics,
	"shopify":         SourceCommerce,
	"asana":           SourceProjectTracker,
}

var displayNames = map[SourceKind]string{
	SourceSearchAnalytics: "Search Console",
	SourceShoppingFeed:    "Merchant Center",
	SourceWebAnalytics:    "Google Analytics",
	SourceCommerce:        "Shopify",
	SourceProjectTracker:  "Asana",
}

// AllSources returns every source kind in coordinator order.
func AllSources() []SourceKind {
	return []SourceKind{
		SourceSearchAnalytics,
		SourceShoppingFeed,
		SourceWebAnalytics,
		SourceCommerce,
		SourceProjectTracker,
	}
}

// ParseSourceKind accepts a canonical kind or a vendor alias (case-insensitive).
func ParseSourceKind(s string) (SourceKind, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, k := range AllSources() {
		if string(k) == key {
			return k, nil
		}
	}
	if k, ok := sourceAliases[key]; ok {
		return k, nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// DisplayName returns the vendor-facing name used in result messages.
func (k SourceKind) DisplayName() string {
	if name, ok := displayNames[k]; ok {
		return name
	}
	return string(k)
}

// SourceRecord is a connector's normalized output. It is never stored as-is;
// the writer maps it onto the destination table's columns.
type SourceRecord struct {
	ExternalID string
	Source     SourceKind
	Date       time.Time // calendar day (UTC); zero for records that are not date-scoped
	Dimensions map[string]string
	Metrics    map[string]float64
}

// NewSourceRecord returns a record with initialized dimension and metric maps.
func NewSourceRecord(source SourceKind, externalID string, date time.Time) SourceRecord {
	if !date.IsZero() {
		date = Day(date)
	}
	return SourceRecord{
		ExternalID: externalID,
		Source:     source,
		Date:       date,
		Dimensions: make(map[string]string),
		Metrics:    make(map[string]float64),
	}
}

// Dimension returns the named dimension or "" when absent.
func (r SourceRecord) Dimension(name string) string {
	return r.Dimensions[name]
}

// Metric returns the named metric or 0 when absent.
func (r SourceRecord) Metric(name string) float64 {
	return r.Metrics[name]
}

// WithDimension sets a dimension and returns the record for chaining.
func (r SourceRecord) WithDimension(name, value string) SourceRecord {
	r.Dimensions[name] = value
	return r
}

// WithMetric sets a metric and returns the record for chaining.
func (r SourceRecord) WithMetric(name string, value float64) SourceRecord {
	r.Metrics[name] = value
	return r
}
