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

const ga4PageSize = 10000

// conversionEvents are the GA4 events synced into ga4_conversions.
var conversionEvents = []string{"purchase", "add_to_cart", "begin_checkout", "generate_lead"}

// fieldMap maps a GA4 API field onto a destination column.
type fieldMap struct {
	api    string
	column string
}

type ga4Report struct {
	table      string
	dimensions []fieldMap // "date" is always first and maps to the record date
	metrics    []fieldMap
	idField    string // dimension used as the record's external id
	eventNames []string
	enabled    func(WebAnalyticsOptions) bool
}

var ga4Reports = []ga4Report{
	{
		table: database.TableGA4DailyTraffic,
		metrics: []fieldMap{
			{"sessions", "sessions"},
			{"totalUsers", "total_users"},
			{"newUsers", "new_users"},
			{"engagedSessions", "engaged_sessions"},
			{"engagementRate", "engagement_rate"},
			{"bounceRate", "bounce_rate"},
			{"averageSessionDuration", "avg_session_duration"},
			{"screenPageViews", "page_views"},
		},
		enabled: func(o WebAnalyticsOptions) bool { return o.SyncTraffic },
	},
	{
		table: database.TableGA4TrafficSources,
		dimensions: []fieldMap{
			{"sessionSource", "source"},
			{"sessionMedium", "medium"},
			{"sessionCampaignName", "campaign"},
		},
		metrics: []fieldMap{
			{"sessions", "sessions"},
			{"totalUsers", "total_users"},
			{"newUsers", "new_users"},
			{"engagedSessions", "engaged_sessions"},
			{"conversions", "conversions"},
			{"totalRevenue", "revenue"},
		},
		enabled: func(o WebAnalyticsOptions) bool { return o.SyncSources },
	},
	{
		table: database.TableGA4PagePerformance,
		dimensions: []fieldMap{
			{"pagePath", "page_path"},
			{"pageTitle", "page_title"},
		},
		metrics: []fieldMap{
			{"screenPageViews", "page_views"},
			{"totalUsers", "total_users"},
			{"averageSessionDuration", "avg_session_duration"},
			{"bounceRate", "bounce_rate"},
		},
		enabled: func(o WebAnalyticsOptions) bool { return o.SyncPages },
	},
	{
		table:      database.TableGA4EcommerceTransactions,
		dimensions: []fieldMap{{"transactionId", "transaction_id"}},
		metrics: []fieldMap{
			{"purchaseRevenue", "revenue"},
			{"taxAmount", "tax"},
			{"shippingAmount", "shipping"},
			{"itemsPurchased", "items_purchased"},
		},
		idField: "transactionId",
		enabled: func(o WebAnalyticsOptions) bool { return o.SyncEcommerce },
	},
	{
		table:      database.TableGA4Conversions,
		dimensions: []fieldMap{{"eventName", "event_name"}},
		metrics: []fieldMap{
			{"eventCount", "event_count"},
			{"totalUsers", "total_users"},
			{"eventValue", "event_value"},
		},
		eventNames: conversionEvents,
		enabled:    func(o WebAnalyticsOptions) bool { return o.SyncConversions },
	},
}

// WebAnalyticsConnector reads GA4 reports through the Data API.
type WebAnalyticsConnector struct {
	client     *apiClient
	propertyID string
}

// NewWebAnalyticsConnector returns ErrNotConfigured without a property ID and
// credentials.
func NewWebAnalyticsConnector(cfg config.WebAnalyticsConfig, s ClientSettings) (*WebAnalyticsConnector, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	client, err := newGoogleClient(models.SourceWebAnalytics, cfg.BaseURL, cfg.CredentialsJSON, cfg.TokenURL, scopeAnalyticsReadonly, s)
	if err != nil {
		return nil, err
	}
	return &WebAnalyticsConnector{client: client, propertyID: cfg.PropertyID}, nil
}

func (c *WebAnalyticsConnector) Kind() models.SourceKind { return models.SourceWebAnalytics }

func (c *WebAnalyticsConnector) propertyPath() string {
	return "/v1beta/properties/" + url.PathEscape(c.propertyID)
}

// TestConnection fetches the property's metadata.
func (c *WebAnalyticsConnector) TestConnection(ctx context.Context) error {
	return c.client.getJSON(ctx, c.propertyPath()+"/metadata", nil, nil)
}

type ga4Name struct {
	Name string `json:"name"`
}

type ga4DateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type ga4Filter struct {
	Filter struct {
		FieldName    string `json:"fieldName"`
		InListFilter struct {
			Values []string `json:"values"`
		} `json:"inListFilter"`
	} `json:"filter"`
}

type ga4ReportRequest struct {
	DateRanges      []ga4DateRange `json:"dateRanges"`
	Dimensions      []ga4Name      `json:"dimensions"`
	Metrics         []ga4Name      `json:"metrics"`
	DimensionFilter *ga4Filter     `json:"dimensionFilter,omitempty"`
	Limit           int            `json:"limit"`
	Offset          int            `json:"offset"`
}

type ga4Value struct {
	Value string `json:"value"`
}

type ga4ReportResponse struct {
	Rows []struct {
		DimensionValues []ga4Value `json:"dimensionValues"`
		MetricValues    []ga4Value `json:"metricValues"`
	} `json:"rows"`
	RowCount int `json:"rowCount"`
}

// Fetch runs every enabled report, paging by offset until rowCount.
func (c *WebAnalyticsConnector) Fetch(ctx context.Context, req FetchRequest[WebAnalyticsOptions], yield func(Page) error) error {
	for _, report := range ga4Reports {
		if !report.enabled(req.Options) {
			continue
		}
		if err := c.fetchReport(ctx, report, req.Window, yield); err != nil {
			return fmt.Errorf("%s: %w", report.table, err)
		}
	}
	return nil
}

func (r ga4Report) request(window models.SyncWindow, offset int) ga4ReportRequest {
	req := ga4ReportRequest{
		DateRanges: []ga4DateRange{{StartDate: window.StartString(), EndDate: window.EndString()}},
		Dimensions: []ga4Name{{Name: "date"}},
		Limit:      ga4PageSize,
		Offset:     offset,
	}
	for _, d := range r.dimensions {
		req.Dimensions = append(req.Dimensions, ga4Name{Name: d.api})
	}
	for _, m := range r.metrics {
		req.Metrics = append(req.Metrics, ga4Name{Name: m.api})
	}
	if len(r.eventNames) > 0 {
		f := &ga4Filter{}
		f.Filter.FieldName = "eventName"
		f.Filter.InListFilter.Values = r.eventNames
		req.DimensionFilter = f
	}
	return req
}

func (c *WebAnalyticsConnector) fetchReport(ctx context.Context, report ga4Report, window models.SyncWindow, yield func(Page) error) error {
	for offset := 0; ; {
		var resp ga4ReportResponse
		if err := c.client.postJSON(ctx, c.propertyPath()+":runReport", report.request(window, offset), &resp); err != nil {
			return err
		}

		records := make([]models.SourceRecord, 0, len(resp.Rows))
		for _, row := range resp.Rows {
			if len(row.DimensionValues) != len(report.dimensions)+1 || len(row.MetricValues) != len(report.metrics) {
				return fmt.Errorf("report row shape does not match request")
			}
			day, err := parseCompactDate(row.DimensionValues[0].Value)
			if err != nil {
				return err
			}

			r := models.NewSourceRecord(models.SourceWebAnalytics, "", day)
			skip := false
			for i, d := range report.dimensions {
				v := row.DimensionValues[i+1].Value
				if d.api == report.idField {
					if v == "" || v == database.NotSet {
						skip = true
						break
					}
					r.ExternalID = v
				}
				r = r.WithDimension(d.column, v)
			}
			if skip {
				continue
			}
			for i, m := range report.metrics {
				r = r.WithMetric(m.column, parseNumber(row.MetricValues[i].Value))
			}
			records = append(records, r)
		}
		if err := emit(yield, report.table, records); err != nil {
			return err
		}

		offset += len(resp.Rows)
		if len(resp.Rows) == 0 || offset >= resp.RowCount {
			return nil
		}
	}
}
