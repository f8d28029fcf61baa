// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package sync

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/tributary/internal/config"
	"github.com/tomtom215/tributary/internal/database"
	"github.com/tomtom215/tributary/internal/models"
)

const (
	gmcPageSize = 250

	// gmcAccountOfferID marks account-level performance rows.
	gmcAccountOfferID = "ALL_PRODUCTS"
)

// ShoppingFeedConnector reads Merchant Center products, product statuses and
// performance reports through the Content API v2.1.
type ShoppingFeedConnector struct {
	client     *apiClient
	merchantID string
}

// NewShoppingFeedConnector returns ErrNotConfigured without a merchant ID and
// credentials.
func NewShoppingFeedConnector(cfg config.ShoppingFeedConfig, s ClientSettings) (*ShoppingFeedConnector, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	client, err := newGoogleClient(models.SourceShoppingFeed, cfg.BaseURL, cfg.CredentialsJSON, cfg.TokenURL, scopeContent, s)
	if err != nil {
		return nil, err
	}
	return &ShoppingFeedConnector{client: client, merchantID: cfg.MerchantID}, nil
}

func (c *ShoppingFeedConnector) Kind() models.SourceKind { return models.SourceShoppingFeed }

func (c *ShoppingFeedConnector) path(resource string) string {
	return "/content/v2.1/" + url.PathEscape(c.merchantID) + "/" + resource
}

// TestConnection lists a single product.
func (c *ShoppingFeedConnector) TestConnection(ctx context.Context) error {
	return c.client.getJSON(ctx, c.path("products"), url.Values{"maxResults": {"1"}}, nil)
}

// Fetch syncs the enabled data sets. Products and statuses are snapshots;
// only performance honours the window.
func (c *ShoppingFeedConnector) Fetch(ctx context.Context, req FetchRequest[ShoppingFeedOptions], yield func(Page) error) error {
	if req.Options.SyncProducts {
		if err := c.fetchProducts(ctx, yield); err != nil {
			return fmt.Errorf("products: %w", err)
		}
	}
	if req.Options.SyncProductStatuses {
		if err := c.fetchStatuses(ctx, yield); err != nil {
			return fmt.Errorf("product statuses: %w", err)
		}
	}
	if req.Options.SyncPerformance {
		if err := c.fetchPerformance(ctx, req.Window, yield); err != nil {
			return fmt.Errorf("performance: %w", err)
		}
	}
	return nil
}

type gmcPrice struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type gmcProduct struct {
	ID                    string    `json:"id"`
	OfferID               string    `json:"offerId"`
	Title                 string    `json:"title"`
	Description           string    `json:"description"`
	Link                  string    `json:"link"`
	ImageLink             string    `json:"imageLink"`
	Price                 *gmcPrice `json:"price"`
	Availability          string    `json:"availability"`
	Condition             string    `json:"condition"`
	Brand                 string    `json:"brand"`
	GTIN                  string    `json:"gtin"`
	GoogleProductCategory string    `json:"googleProductCategory"`
	ProductTypes          []string  `json:"productTypes"`
	Channel               string    `json:"channel"`
	ContentLanguage       string    `json:"contentLanguage"`
	TargetCountry         string    `json:"targetCountry"`
}

type gmcProductsResponse struct {
	Resources     []gmcProduct `json:"resources"`
	NextPageToken string       `json:"nextPageToken"`
}

func (c *ShoppingFeedConnector) fetchProducts(ctx context.Context, yield func(Page) error) error {
	token := ""
	for {
		q := url.Values{"maxResults": {strconv.Itoa(gmcPageSize)}}
		if token != "" {
			q.Set("pageToken", token)
		}
		var resp gmcProductsResponse
		if err := c.client.getJSON(ctx, c.path("products"), q, &resp); err != nil {
			return err
		}

		records := make([]models.SourceRecord, 0, len(resp.Resources))
		for _, p := range resp.Resources {
			r := models.NewSourceRecord(models.SourceShoppingFeed, p.ID, time.Time{}).
				WithDimension("offer_id", p.OfferID).
				WithDimension("title", p.Title).
				WithDimension("description", p.Description).
				WithDimension("link", p.Link).
				WithDimension("image_link", p.ImageLink).
				WithDimension("availability", p.Availability).
				WithDimension("condition", p.Condition).
				WithDimension("brand", p.Brand).
				WithDimension("gtin", p.GTIN).
				WithDimension("google_product_category", p.GoogleProductCategory).
				WithDimension("product_type", strings.Join(p.ProductTypes, ", ")).
				WithDimension("channel", p.Channel).
				WithDimension("content_language", p.ContentLanguage).
				WithDimension("target_country", p.TargetCountry)
			if p.Price != nil {
				price, err := parseMoney(p.Price.Value)
				if err != nil {
					return fmt.Errorf("product %s: %w", p.ID, err)
				}
				r = r.WithMetric("price", price).WithDimension("currency", p.Price.Currency)
			}
			records = append(records, r)
		}
		if err := emit(yield, database.TableGMCProducts, records); err != nil {
			return err
		}

		if resp.NextPageToken == "" {
			return nil
		}
		token = resp.NextPageToken
	}
}

type gmcProductStatus struct {
	ProductID           string `json:"productId"`
	Title               string `json:"title"`
	Link                string `json:"link"`
	LastUpdateDate      string `json:"lastUpdateDate"`
	ExpirationDate      string `json:"googleExpirationDate"`
	DestinationStatuses []struct {
		Destination          string   `json:"destination"`
		Status               string   `json:"status"`
		ApprovedCountries    []string `json:"approvedCountries"`
		PendingCountries     []string `json:"pendingCountries"`
		DisapprovedCountries []string `json:"disapprovedCountries"`
	} `json:"destinationStatuses"`
	ItemLevelIssues []struct {
		Code        string `json:"code"`
		Servability string `json:"servability"`
	} `json:"itemLevelIssues"`
}

type gmcStatusesResponse struct {
	Resources     []gmcProductStatus `json:"resources"`
	NextPageToken string             `json:"nextPageToken"`
}

// approvalStatus summarises destination statuses: any disapproval wins,
// then pending, else approved.
func (s gmcProductStatus) approvalStatus() string {
	pending := false
	for _, d := range s.DestinationStatuses {
		if len(d.DisapprovedCountries) > 0 || d.Status == "disapproved" {
			return "disapproved"
		}
		if len(d.PendingCountries) > 0 || d.Status == "pending" {
			pending = true
		}
	}
	if pending {
		return "pending"
	}
	if len(s.DestinationStatuses) == 0 {
		return ""
	}
	return "approved"
}

func (c *ShoppingFeedConnector) fetchStatuses(ctx context.Context, yield func(Page) error) error {
	token := ""
	for {
		q := url.Values{"maxResults": {strconv.Itoa(gmcPageSize)}}
		if token != "" {
			q.Set("pageToken", token)
		}
		var resp gmcStatusesResponse
		if err := c.client.getJSON(ctx, c.path("productstatuses"), q, &resp); err != nil {
			return err
		}

		records := make([]models.SourceRecord, 0, len(resp.Resources))
		for _, s := range resp.Resources {
			destinations := make([]string, 0, len(s.DestinationStatuses))
			for _, d := range s.DestinationStatuses {
				destinations = append(destinations, d.Destination)
			}
			codes := make([]string, 0, len(s.ItemLevelIssues))
			for _, issue := range s.ItemLevelIssues {
				codes = append(codes, issue.Code)
			}
			sort.Strings(codes)

			records = append(records, models.NewSourceRecord(models.SourceShoppingFeed, s.ProductID, time.Time{}).
				WithDimension("title", s.Title).
				WithDimension("link", s.Link).
				WithDimension("approval_status", s.approvalStatus()).
				WithDimension("destinations", strings.Join(destinations, ",")).
				WithDimension("issues", strings.Join(codes, ",")).
				WithDimension("last_update_date", s.LastUpdateDate).
				WithDimension("expiration_date", s.ExpirationDate).
				WithMetric("issue_count", float64(len(s.ItemLevelIssues))))
		}
		if err := emit(yield, database.TableGMCProductStatuses, records); err != nil {
			return err
		}

		if resp.NextPageToken == "" {
			return nil
		}
		token = resp.NextPageToken
	}
}

type gmcReportRequest struct {
	Query     string `json:"query"`
	PageSize  int    `json:"pageSize,omitempty"`
	PageToken string `json:"pageToken,omitempty"`
}

type gmcReportResponse struct {
	Results []struct {
		Segments struct {
			Date struct {
				Year  int `json:"year"`
				Month int `json:"month"`
				Day   int `json:"day"`
			} `json:"date"`
			OfferID string `json:"offerId"`
		} `json:"segments"`
		Metrics struct {
			Clicks          string  `json:"clicks"`
			Impressions     string  `json:"impressions"`
			CTR             float64 `json:"ctr"`
			Conversions     float64 `json:"conversions"`
			ConversionValue struct {
				ValueMicros  string `json:"valueMicros"`
				CurrencyCode string `json:"currencyCode"`
			} `json:"conversionValue"`
		} `json:"metrics"`
	} `json:"results"`
	NextPageToken string `json:"nextPageToken"`
}

func performanceQuery(w models.SyncWindow) string {
	return "SELECT segments.date, metrics.clicks, metrics.impressions, metrics.ctr, " +
		"metrics.conversions, metrics.conversion_value FROM MerchantPerformanceView " +
		fmt.Sprintf("WHERE segments.date BETWEEN '%s' AND '%s'", w.StartString(), w.EndString())
}

func (c *ShoppingFeedConnector) fetchPerformance(ctx context.Context, window models.SyncWindow, yield func(Page) error) error {
	token := ""
	for {
		var resp gmcReportResponse
		err := c.client.postJSON(ctx, c.path("reports/search"), gmcReportRequest{
			Query:     performanceQuery(window),
			PageSize:  1000,
			PageToken: token,
		}, &resp)
		if err != nil {
			return err
		}

		records := make([]models.SourceRecord, 0, len(resp.Results))
		for _, row := range resp.Results {
			d := row.Segments.Date
			if d.Year == 0 {
				return fmt.Errorf("performance row without date")
			}
			day := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
			value, err := microsToUnits(row.Metrics.ConversionValue.ValueMicros)
			if err != nil {
				return err
			}
			offerID := row.Segments.OfferID
			if offerID == "" {
				offerID = gmcAccountOfferID
			}
			records = append(records, models.NewSourceRecord(models.SourceShoppingFeed, "", day).
				WithDimension("offer_id", offerID).
				WithMetric("clicks", parseNumber(row.Metrics.Clicks)).
				WithMetric("impressions", parseNumber(row.Metrics.Impressions)).
				WithMetric("ctr", roundTo(row.Metrics.CTR, 6)).
				WithMetric("conversions", row.Metrics.Conversions).
				WithMetric("conversion_value", value))
		}
		if err := emit(yield, database.TableGMCPerformance, records); err != nil {
			return err
		}

		if resp.NextPageToken == "" {
			return nil
		}
		token = resp.NextPageToken
	}
}
