// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package sync

import (
	"context"
	"fmt"
	"net/url"

	"github.com/tomtom215/tributary/internal/config"
	"github.com/tomtom215/tributary/internal/database"
	"github.com/tomtom215/tributary/internal/models"
)

// Search Console caps rows per request; query and page reports are large.
const (
	gscLargeRowLimit = 25000
	gscSmallRowLimit = 1000
)

// gscReport is one Search Console report family.
type gscReport struct {
	table     string
	dimension string // second dimension after date; empty for site totals
	rowLimit  int
	enabled   func(SearchAnalyticsOptions) bool
}

var gscReports = []gscReport{
	{database.TableGSCSitePerformance, "", gscSmallRowLimit, func(o SearchAnalyticsOptions) bool { return o.SyncSitePerformance }},
	{database.TableGSCSearchQueries, "query", gscLargeRowLimit, func(o SearchAnalyticsOptions) bool { return o.SyncQueries }},
	{database.TableGSCPagePerformance, "page", gscLargeRowLimit, func(o SearchAnalyticsOptions) bool { return o.SyncPages }},
	{database.TableGSCDevicePerformance, "device", gscSmallRowLimit, func(o SearchAnalyticsOptions) bool { return o.SyncDevices }},
	{database.TableGSCCountryPerformance, "country", gscSmallRowLimit, func(o SearchAnalyticsOptions) bool { return o.SyncCountries }},
}

// SearchAnalyticsConnector reads Search Console search analytics.
type SearchAnalyticsConnector struct {
	client  *apiClient
	siteURL string
}

// NewSearchAnalyticsConnector returns ErrNotConfigured without a site URL
// and credentials.
func NewSearchAnalyticsConnector(cfg config.SearchAnalyticsConfig, s ClientSettings) (*SearchAnalyticsConnector, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	client, err := newGoogleClient(models.SourceSearchAnalytics, cfg.BaseURL, cfg.CredentialsJSON, cfg.TokenURL, scopeWebmastersReadonly, s)
	if err != nil {
		return nil, err
	}
	return &SearchAnalyticsConnector{client: client, siteURL: cfg.SiteURL}, nil
}

func (c *SearchAnalyticsConnector) Kind() models.SourceKind { return models.SourceSearchAnalytics }

func (c *SearchAnalyticsConnector) sitePath() string {
	return "/webmasters/v3/sites/" + url.PathEscape(c.siteURL)
}

// TestConnection fetches the site resource.
func (c *SearchAnalyticsConnector) TestConnection(ctx context.Context) error {
	return c.client.getJSON(ctx, c.sitePath(), nil, nil)
}

type gscQueryRequest struct {
	StartDate  string   `json:"startDate"`
	EndDate    string   `json:"endDate"`
	Dimensions []string `json:"dimensions"`
	RowLimit   int      `json:"rowLimit"`
	StartRow   int      `json:"startRow"`
	DataState  string   `json:"dataState"`
}

type gscQueryResponse struct {
	Rows []struct {
		Keys        []string `json:"keys"`
		Clicks      float64  `json:"clicks"`
		Impressions float64  `json:"impressions"`
		CTR         float64  `json:"ctr"`
		Position    float64  `json:"position"`
	} `json:"rows"`
}

// Fetch runs every enabled report over the window, paging by startRow.
func (c *SearchAnalyticsConnector) Fetch(ctx context.Context, req FetchRequest[SearchAnalyticsOptions], yield func(Page) error) error {
	for _, report := range gscReports {
		if !report.enabled(req.Options) {
			continue
		}
		if err := c.fetchReport(ctx, report, req.Window, yield); err != nil {
			return fmt.Errorf("%s: %w", report.table, err)
		}
	}
	return nil
}

func (c *SearchAnalyticsConnector) fetchReport(ctx context.Context, report gscReport, window models.SyncWindow, yield func(Page) error) error {
	dims := []string{"date"}
	if report.dimension != "" {
		dims = append(dims, report.dimension)
	}

	for startRow := 0; ; startRow += report.rowLimit {
		var resp gscQueryResponse
		err := c.client.postJSON(ctx, c.sitePath()+"/searchAnalytics/query", gscQueryRequest{
			StartDate:  window.StartString(),
			EndDate:    window.EndString(),
			Dimensions: dims,
			RowLimit:   report.rowLimit,
			StartRow:   startRow,
			DataState:  "final",
		}, &resp)
		if err != nil {
			return err
		}

		records := make([]models.SourceRecord, 0, len(resp.Rows))
		for _, row := range resp.Rows {
			if len(row.Keys) < len(dims) {
				return fmt.Errorf("row has %d keys, want %d", len(row.Keys), len(dims))
			}
			day, err := parseISODate(row.Keys[0])
			if err != nil {
				return err
			}
			r := models.NewSourceRecord(models.SourceSearchAnalytics, "", day).
				WithMetric("clicks", row.Clicks).
				WithMetric("impressions", row.Impressions).
				WithMetric("ctr", roundTo(row.CTR, 6)).
				WithMetric("position", roundTo(row.Position, 2))
			if report.dimension != "" {
				r = r.WithDimension(report.dimension, row.Keys[1])
			}
			records = append(records, r)
		}
		if err := emit(yield, report.table, records); err != nil {
			return err
		}
		if len(resp.Rows) < report.rowLimit {
			return nil
		}
	}
}
