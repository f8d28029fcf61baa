// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package sync

import (
	"bytes"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tributary/internal/models"
	"github.com/tomtom215/tributary/internal/validation"
)

// DateRange is an explicit inclusive window in YYYY-MM-DD form.
type DateRange struct {
	StartDate string `json:"startDate" validate:"required,isodate"`
	EndDate   string `json:"endDate" validate:"required,isodate"`
}

// Window parses the range; the start may not follow the end.
func (d DateRange) Window() (models.SyncWindow, error) {
	return models.ParseSyncWindow(d.StartDate, d.EndDate)
}

// CommonOptions are understood by every session. When FullSync is set the
// DateRange is ignored.
type CommonOptions struct {
	FullSync  bool       `json:"fullSync"`
	DateRange *DateRange `json:"dateRange,omitempty" validate:"omitempty"`
}

// SessionOptions is satisfied by every per-connector options struct.
type SessionOptions interface {
	Common() CommonOptions
}

// SearchAnalyticsOptions selects Search Console report families.
type SearchAnalyticsOptions struct {
	CommonOptions
	SyncSitePerformance bool `json:"syncSitePerformance"`
	SyncQueries         bool `json:"syncQueries"`
	SyncPages           bool `json:"syncPages"`
	SyncDevices         bool `json:"syncDevices"`
	SyncCountries       bool `json:"syncCountries"`
}

func (o SearchAnalyticsOptions) Common() CommonOptions { return o.CommonOptions }

func DefaultSearchAnalyticsOptions() SearchAnalyticsOptions {
	return SearchAnalyticsOptions{
		SyncSitePerformance: true,
		SyncQueries:         true,
		SyncPages:           true,
		SyncDevices:         true,
		SyncCountries:       true,
	}
}

// ShoppingFeedOptions selects Merchant Center data sets.
type ShoppingFeedOptions struct {
	CommonOptions
	SyncProducts        bool `json:"syncProducts"`
	SyncProductStatuses bool `json:"syncProductStatuses"`
	SyncPerformance     bool `json:"syncPerformance"`
}

func (o ShoppingFeedOptions) Common() CommonOptions { return o.CommonOptions }

func DefaultShoppingFeedOptions() ShoppingFeedOptions {
	return ShoppingFeedOptions{SyncProducts: true, SyncProductStatuses: true, SyncPerformance: true}
}

// WebAnalyticsOptions selects GA4 reports.
type WebAnalyticsOptions struct {
	CommonOptions
	SyncTraffic     bool `json:"syncTraffic"`
	SyncSources     bool `json:"syncSources"`
	SyncPages       bool `json:"syncPages"`
	SyncEcommerce   bool `json:"syncEcommerce"`
	SyncConversions bool `json:"syncConversions"`
}

func (o WebAnalyticsOptions) Common() CommonOptions { return o.CommonOptions }

func DefaultWebAnalyticsOptions() WebAnalyticsOptions {
	return WebAnalyticsOptions{
		SyncTraffic:     true,
		SyncSources:     true,
		SyncPages:       true,
		SyncEcommerce:   true,
		SyncConversions: true,
	}
}

// CommerceOptions selects Shopify resources. Limit is the page size.
type CommerceOptions struct {
	CommonOptions
	SyncOrders    bool `json:"syncOrders"`
	SyncProducts  bool `json:"syncProducts"`
	SyncCustomers bool `json:"syncCustomers"`
	Limit         int  `json:"limit,omitempty" validate:"omitempty,min=1,max=250"`
}

func (o CommerceOptions) Common() CommonOptions { return o.CommonOptions }

func DefaultCommerceOptions() CommerceOptions {
	return CommerceOptions{SyncOrders: true, SyncProducts: true, SyncCustomers: true, Limit: 250}
}

// ProjectTrackerOptions selects Asana resources.
type ProjectTrackerOptions struct {
	CommonOptions
	SyncProjects bool `json:"syncProjects"`
	SyncTasks    bool `json:"syncTasks"`
	SyncUsers    bool `json:"syncUsers"`
}

func (o ProjectTrackerOptions) Common() CommonOptions { return o.CommonOptions }

func DefaultProjectTrackerOptions() ProjectTrackerOptions {
	return ProjectTrackerOptions{SyncProjects: true, SyncTasks: true, SyncUsers: true}
}

// decodeOptions overlays a JSON body on defaults and validates the result.
// An empty body yields the defaults; unknown fields are rejected so a
// misspelled switch cannot silently fall back to its default.
func decodeOptions[O SessionOptions](raw []byte, defaults O) (O, error) {
	opts := defaults
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&opts); err != nil {
			return defaults, &OptionsError{Err: err}
		}
	}
	if verr := validation.ValidateStruct(&opts); verr != nil {
		return defaults, &OptionsError{Err: verr}
	}
	if dr := opts.Common().DateRange; dr != nil {
		if _, err := dr.Window(); err != nil {
			return defaults, &OptionsError{Err: err}
		}
	}
	return opts, nil
}
