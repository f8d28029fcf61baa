// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package sync

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/tomtom215/tributary/internal/config"
	"github.com/tomtom215/tributary/internal/database"
	"github.com/tomtom215/tributary/internal/models"
)

const shopifyMaxPageSize = 250

// CommerceConnector reads Shopify orders, products and customers from the
// Admin REST API. Requests are paced to stay under the leaky-bucket limit.
type CommerceConnector struct {
	client     *apiClient
	apiVersion string
}

// NewCommerceConnector returns ErrNotConfigured without a shop domain and
// access token.
func NewCommerceConnector(cfg config.CommerceConfig, s ClientSettings) (*CommerceConnector, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://" + cfg.ShopDomain
	}
	opts := s.clientOptions(models.SourceCommerce, baseURL, headerAuth("X-Shopify-Access-Token", cfg.AccessToken))
	opts.requestsPerSecond = cfg.RequestsPerSecond
	return &CommerceConnector{client: newAPIClient(opts), apiVersion: cfg.APIVersion}, nil
}

func (c *CommerceConnector) Kind() models.SourceKind { return models.SourceCommerce }

func (c *CommerceConnector) path(resource string) string {
	return "/admin/api/" + c.apiVersion + "/" + resource + ".json"
}

// TestConnection fetches the shop resource.
func (c *CommerceConnector) TestConnection(ctx context.Context) error {
	return c.client.getJSON(ctx, c.path("shop"), nil, nil)
}

// Fetch syncs the enabled resources. Orders are filtered by creation time,
// products and customers by update time; a full sync drops both filters.
func (c *CommerceConnector) Fetch(ctx context.Context, req FetchRequest[CommerceOptions], yield func(Page) error) error {
	limit := req.Options.Limit
	if limit <= 0 || limit > shopifyMaxPageSize {
		limit = shopifyMaxPageSize
	}

	if req.Options.SyncOrders {
		q := url.Values{"status": {"any"}}
		if !req.FullSync {
			q.Set("created_at_min", req.Window.Start.Format(time.RFC3339))
			q.Set("created_at_max", req.Window.EndOfDay().Format(time.RFC3339))
		}
		if err := c.fetchOrders(ctx, q, limit, yield); err != nil {
			return fmt.Errorf("orders: %w", err)
		}
	}
	if req.Options.SyncProducts {
		if err := c.fetchProducts(ctx, c.updatedSince(req), limit, yield); err != nil {
			return fmt.Errorf("products: %w", err)
		}
	}
	if req.Options.SyncCustomers {
		if err := c.fetchCustomers(ctx, c.updatedSince(req), limit, yield); err != nil {
			return fmt.Errorf("customers: %w", err)
		}
	}
	return nil
}

func (c *CommerceConnector) updatedSince(req FetchRequest[CommerceOptions]) url.Values {
	q := url.Values{}
	if !req.FullSync {
		q.Set("updated_at_min", req.Window.Start.Format(time.RFC3339))
	}
	return q
}

// paginate walks a resource with since_id until a short page.
func paginate[T any](ctx context.Context, c *CommerceConnector, resource string, base url.Values, limit int,
	decode func(body *T) ([]int64, error)) error {
	var sinceID int64
	for {
		q := url.Values{}
		for k, v := range base {
			q[k] = v
		}
		q.Set("limit", strconv.Itoa(limit))
		if sinceID > 0 {
			q.Set("since_id", strconv.FormatInt(sinceID, 10))
		}

		var body T
		if err := c.client.getJSON(ctx, c.path(resource), q, &body); err != nil {
			return err
		}
		ids, err := decode(&body)
		if err != nil {
			return err
		}
		if len(ids) < limit {
			return nil
		}
		for _, id := range ids {
			if id > sinceID {
				sinceID = id
			}
		}
	}
}

type shopifyOrder struct {
	ID                int64  `json:"id"`
	OrderNumber       int64  `json:"order_number"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
	CancelledAt       string `json:"cancelled_at"`
	Currency          string `json:"currency"`
	TotalPrice        string `json:"total_price"`
	SubtotalPrice     string `json:"subtotal_price"`
	TotalTax          string `json:"total_tax"`
	TotalDiscounts    string `json:"total_discounts"`
	FinancialStatus   string `json:"financial_status"`
	FulfillmentStatus string `json:"fulfillment_status"`
	SourceName        string `json:"source_name"`
	Tags              string `json:"tags"`
	Customer          *struct {
		ID int64 `json:"id"`
	} `json:"customer"`
	ShippingAddress *struct {
		City    string `json:"city"`
		Country string `json:"country"`
	} `json:"shipping_address"`
	ShippingLines []struct {
		Price string `json:"price"`
	} `json:"shipping_lines"`
	LineItems []shopifyLineItem `json:"line_items"`
}

type shopifyLineItem struct {
	ID            int64  `json:"id"`
	ProductID     int64  `json:"product_id"`
	VariantID     int64  `json:"variant_id"`
	Title         string `json:"title"`
	VariantTitle  string `json:"variant_title"`
	SKU           string `json:"sku"`
	Vendor        string `json:"vendor"`
	Quantity      int    `json:"quantity"`
	Price         string `json:"price"`
	TotalDiscount string `json:"total_discount"`
}

func (c *CommerceConnector) fetchOrders(ctx context.Context, q url.Values, limit int, yield func(Page) error) error {
	return paginate(ctx, c, "orders", q, limit, func(body *struct {
		Orders []shopifyOrder `json:"orders"`
	}) ([]int64, error) {
		ids := make([]int64, 0, len(body.Orders))
		orders := make([]models.SourceRecord, 0, len(body.Orders))
		var items []models.SourceRecord
		for _, o := range body.Orders {
			ids = append(ids, o.ID)
			order, lines, err := normalizeOrder(o)
			if err != nil {
				return nil, fmt.Errorf("order %d: %w", o.ID, err)
			}
			orders = append(orders, order)
			items = append(items, lines...)
		}
		if err := emit(yield, database.TableShopifyOrders, orders); err != nil {
			return nil, err
		}
		return ids, emit(yield, database.TableShopifyLineItems, items)
	})
}

func normalizeOrder(o shopifyOrder) (models.SourceRecord, []models.SourceRecord, error) {
	created, err := parseTimestamp(o.CreatedAt)
	if err != nil {
		return models.SourceRecord{}, nil, err
	}

	money := map[string]string{
		"total_price":     o.TotalPrice,
		"subtotal_price":  o.SubtotalPrice,
		"total_tax":       o.TotalTax,
		"total_discounts": o.TotalDiscounts,
	}
	r := models.NewSourceRecord(models.SourceCommerce, idString(o.ID), created)
	for col, s := range money {
		v, err := parseMoney(s)
		if err != nil {
			return models.SourceRecord{}, nil, err
		}
		r = r.WithMetric(col, v)
	}
	var shipping float64
	for _, line := range o.ShippingLines {
		v, err := parseMoney(line.Price)
		if err != nil {
			return models.SourceRecord{}, nil, err
		}
		shipping += v
	}
	r = r.WithMetric("total_shipping", roundTo(shipping, 2)).
		WithMetric("line_items_count", float64(len(o.LineItems))).
		WithDimension("order_number", strconv.FormatInt(o.OrderNumber, 10)).
		WithDimension("name", o.Name).
		WithDimension("email", o.Email).
		WithDimension("created_at", o.CreatedAt).
		WithDimension("updated_at", o.UpdatedAt).
		WithDimension("cancelled_at", o.CancelledAt).
		WithDimension("currency", o.Currency).
		WithDimension("financial_status", o.FinancialStatus).
		WithDimension("fulfillment_status", o.FulfillmentStatus).
		WithDimension("source_name", o.SourceName).
		WithDimension("tags", o.Tags)
	if o.Customer != nil {
		r = r.WithDimension("customer_id", idString(o.Customer.ID))
	}
	if o.ShippingAddress != nil {
		r = r.WithDimension("shipping_city", o.ShippingAddress.City).
			WithDimension("shipping_country", o.ShippingAddress.Country)
	}

	items := make([]models.SourceRecord, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		price, err := parseMoney(li.Price)
		if err != nil {
			return models.SourceRecord{}, nil, err
		}
		discount, err := parseMoney(li.TotalDiscount)
		if err != nil {
			return models.SourceRecord{}, nil, err
		}
		items = append(items, models.NewSourceRecord(models.SourceCommerce, idString(li.ID), created).
			WithDimension("order_id", idString(o.ID)).
			WithDimension("product_id", idString(li.ProductID)).
			WithDimension("variant_id", idString(li.VariantID)).
			WithDimension("title", li.Title).
			WithDimension("variant_title", li.VariantTitle).
			WithDimension("sku", li.SKU).
			WithDimension("vendor", li.Vendor).
			WithMetric("quantity", float64(li.Quantity)).
			WithMetric("price", price).
			WithMetric("total_discount", discount))
	}
	return r, items, nil
}

type shopifyProduct struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Vendor      string `json:"vendor"`
	ProductType string `json:"product_type"`
	Handle      string `json:"handle"`
	Status      string `json:"status"`
	Tags        string `json:"tags"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	Variants    []struct {
		InventoryQuantity int `json:"inventory_quantity"`
	} `json:"variants"`
}

func (c *CommerceConnector) fetchProducts(ctx context.Context, q url.Values, limit int, yield func(Page) error) error {
	return paginate(ctx, c, "products", q, limit, func(body *struct {
		Products []shopifyProduct `json:"products"`
	}) ([]int64, error) {
		ids := make([]int64, 0, len(body.Products))
		records := make([]models.SourceRecord, 0, len(body.Products))
		for _, p := range body.Products {
			ids = append(ids, p.ID)
			created, err := parseTimestamp(p.CreatedAt)
			if err != nil {
				return nil, fmt.Errorf("product %d: %w", p.ID, err)
			}
			inventory := 0
			for _, v := range p.Variants {
				inventory += v.InventoryQuantity
			}
			records = append(records, models.NewSourceRecord(models.SourceCommerce, idString(p.ID), created).
				WithDimension("title", p.Title).
				WithDimension("vendor", p.Vendor).
				WithDimension("product_type", p.ProductType).
				WithDimension("handle", p.Handle).
				WithDimension("status", p.Status).
				WithDimension("tags", p.Tags).
				WithDimension("updated_at", p.UpdatedAt).
				WithMetric("variants_count", float64(len(p.Variants))).
				WithMetric("total_inventory", float64(inventory)))
		}
		return ids, emit(yield, database.TableShopifyProducts, records)
	})
}

type shopifyCustomer struct {
	ID             int64  `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	State          string `json:"state"`
	Tags           string `json:"tags"`
	OrdersCount    int    `json:"orders_count"`
	TotalSpent     string `json:"total_spent"`
	CreatedAt      string `json:"created_at"`
	DefaultAddress *struct {
		City    string `json:"city"`
		Country string `json:"country"`
	} `json:"default_address"`
}

func (c *CommerceConnector) fetchCustomers(ctx context.Context, q url.Values, limit int, yield func(Page) error) error {
	return paginate(ctx, c, "customers", q, limit, func(body *struct {
		Customers []shopifyCustomer `json:"customers"`
	}) ([]int64, error) {
		ids := make([]int64, 0, len(body.Customers))
		records := make([]models.SourceRecord, 0, len(body.Customers))
		for _, cu := range body.Customers {
			ids = append(ids, cu.ID)
			created, err := parseTimestamp(cu.CreatedAt)
			if err != nil {
				return nil, fmt.Errorf("customer %d: %w", cu.ID, err)
			}
			spent, err := parseMoney(cu.TotalSpent)
			if err != nil {
				return nil, fmt.Errorf("customer %d: %w", cu.ID, err)
			}
			r := models.NewSourceRecord(models.SourceCommerce, idString(cu.ID), created).
				WithDimension("email", cu.Email).
				WithDimension("first_name", cu.FirstName).
				WithDimension("last_name", cu.LastName).
				WithDimension("state", cu.State).
				WithDimension("tags", cu.Tags).
				WithMetric("orders_count", float64(cu.OrdersCount)).
				WithMetric("total_spent", spent)
			if cu.DefaultAddress != nil {
				r = r.WithDimension("city", cu.DefaultAddress.City).
					WithDimension("country", cu.DefaultAddress.Country)
			}
			records = append(records, r)
		}
		return ids, emit(yield, database.TableShopifyCustomers, records)
	})
}
