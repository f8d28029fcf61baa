// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package database

// Destination tables written by the source connectors.
const (
	TableGSCSitePerformance    = "gsc_site_performance"
	TableGSCSearchQueries      = "gsc_search_queries"
	TableGSCPagePerformance    = "gsc_page_performance"
	TableGSCDevicePerformance  = "gsc_device_performance"
	TableGSCCountryPerformance = "gsc_country_performance"

	TableGMCProducts        = "gmc_products"
	TableGMCProductStatuses = "gmc_product_statuses"
	TableGMCPerformance     = "gmc_performance"

	TableGA4DailyTraffic          = "ga4_daily_traffic"
	TableGA4TrafficSources        = "ga4_traffic_sources"
	TableGA4PagePerformance       = "ga4_page_performance"
	TableGA4EcommerceTransactions = "ga4_ecommerce_transactions"
	TableGA4Conversions           = "ga4_conversions"

	TableShopifyOrders    = "shopify_orders"
	TableShopifyLineItems = "shopify_order_line_items"
	TableShopifyProducts  = "shopify_products"
	TableShopifyCustomers = "shopify_customers"
	TableAsanaProjects    = "asana_projects"
	TableAsanaTasks       = "asana_tasks"
	TableAsanaUsers       = "asana_users"
)

// NotSet fills GA4 key dimensions the API leaves blank.
const NotSet = "(not set)"

func searchMetrics() []Column {
	return []Column{
		MetricColumn("clicks"),
		MetricColumn("impressions"),
		MetricColumn("ctr"),
		MetricColumn("position"),
	}
}

func gscTable(name, dimension string) TableSpec {
	cols := []Column{DateColumn("date")}
	key := []string{"date"}
	if dimension != "" {
		cols = append(cols, DimensionWithDefault(dimension, "unknown"))
		key = append(key, dimension)
	}
	return TableSpec{Name: name, Key: key, Columns: append(cols, searchMetrics()...)}
}

// SourceTables lists every destination table the connectors write to.
func SourceTables() []TableSpec {
	return []TableSpec{
		gscTable(TableGSCSitePerformance, ""),
		gscTable(TableGSCSearchQueries, "query"),
		gscTable(TableGSCPagePerformance, "page"),
		gscTable(TableGSCDevicePerformance, "device"),
		gscTable(TableGSCCountryPerformance, "country"),

		{
			Name: TableGMCProducts,
			Key:  []string{"product_id"},
			Columns: []Column{
				ExternalIDColumn("product_id"),
				DimensionColumn("offer_id"),
				DimensionColumn("title"),
				DimensionColumn("description"),
				DimensionColumn("link"),
				DimensionColumn("image_link"),
				MetricColumn("price"),
				DimensionColumn("currency"),
				DimensionColumn("availability"),
				DimensionColumn("condition"),
				DimensionColumn("brand"),
				DimensionColumn("gtin"),
				DimensionColumn("google_product_category"),
				DimensionColumn("product_type"),
				DimensionColumn("channel"),
				DimensionColumn("content_language"),
				DimensionColumn("target_country"),
			},
		},
		{
			Name: TableGMCProductStatuses,
			Key:  []string{"product_id"},
			Columns: []Column{
				ExternalIDColumn("product_id"),
				DimensionColumn("title"),
				DimensionColumn("link"),
				DimensionColumn("approval_status"),
				DimensionColumn("destinations"),
				MetricColumn("issue_count"),
				DimensionColumn("issues"),
				DimensionColumn("last_update_date"),
				DimensionColumn("expiration_date"),
			},
		},
		{
			Name: TableGMCPerformance,
			Key:  []string{"date", "offer_id"},
			Columns: []Column{
				DateColumn("date"),
				DimensionWithDefault("offer_id", "ALL_PRODUCTS"),
				MetricColumn("clicks"),
				MetricColumn("impressions"),
				MetricColumn("ctr"),
				MetricColumn("conversions"),
				MetricColumn("conversion_value"),
			},
		},

		{
			Name: TableGA4DailyTraffic,
			Key:  []string{"date"},
			Columns: []Column{
				DateColumn("date"),
				MetricColumn("sessions"),
				MetricColumn("total_users"),
				MetricColumn("new_users"),
				MetricColumn("engaged_sessions"),
				MetricColumn("engagement_rate"),
				MetricColumn("bounce_rate"),
				MetricColumn("avg_session_duration"),
				MetricColumn("page_views"),
			},
		},
		{
			Name: TableGA4TrafficSources,
			Key:  []string{"date", "source", "medium", "campaign"},
			Columns: []Column{
				DateColumn("date"),
				DimensionWithDefault("source", NotSet),
				DimensionWithDefault("medium", NotSet),
				DimensionWithDefault("campaign", NotSet),
				MetricColumn("sessions"),
				MetricColumn("total_users"),
				MetricColumn("new_users"),
				MetricColumn("engaged_sessions"),
				MetricColumn("conversions"),
				MetricColumn("revenue"),
			},
		},
		{
			Name: TableGA4PagePerformance,
			Key:  []string{"date", "page_path", "page_title"},
			Columns: []Column{
				DateColumn("date"),
				DimensionWithDefault("page_path", NotSet),
				DimensionWithDefault("page_title", NotSet),
				MetricColumn("page_views"),
				MetricColumn("total_users"),
				MetricColumn("avg_session_duration"),
				MetricColumn("bounce_rate"),
			},
		},
		{
			Name: TableGA4EcommerceTransactions,
			Key:  []string{"transaction_id"},
			Columns: []Column{
				ExternalIDColumn("transaction_id"),
				DateColumn("date"),
				MetricColumn("revenue"),
				MetricColumn("tax"),
				MetricColumn("shipping"),
				MetricColumn("items_purchased"),
			},
		},
		{
			Name: TableGA4Conversions,
			Key:  []string{"date", "event_name"},
			Columns: []Column{
				DateColumn("date"),
				DimensionColumn("event_name"),
				MetricColumn("event_count"),
				MetricColumn("total_users"),
				MetricColumn("event_value"),
			},
		},

		{
			Name: TableShopifyOrders,
			Key:  []string{"order_id"},
			Columns: []Column{
				ExternalIDColumn("order_id"),
				DateColumn("order_date"),
				DimensionColumn("order_number"),
				DimensionColumn("name"),
				DimensionColumn("email"),
				DimensionColumn("created_at"),
				DimensionColumn("updated_at"),
				DimensionColumn("cancelled_at"),
				DimensionColumn("currency"),
				MetricColumn("total_price"),
				MetricColumn("subtotal_price"),
				MetricColumn("total_tax"),
				MetricColumn("total_discounts"),
				MetricColumn("total_shipping"),
				DimensionColumn("financial_status"),
				DimensionColumn("fulfillment_status"),
				DimensionColumn("customer_id"),
				DimensionColumn("shipping_city"),
				DimensionColumn("shipping_country"),
				DimensionColumn("source_name"),
				DimensionColumn("tags"),
				MetricColumn("line_items_count"),
			},
		},
		{
			Name: TableShopifyLineItems,
			Key:  []string{"line_item_id"},
			Columns: []Column{
				ExternalIDColumn("line_item_id"),
				DateColumn("order_date"),
				DimensionColumn("order_id"),
				DimensionColumn("product_id"),
				DimensionColumn("variant_id"),
				DimensionColumn("title"),
				DimensionColumn("variant_title"),
				DimensionColumn("sku"),
				DimensionColumn("vendor"),
				MetricColumn("quantity"),
				MetricColumn("price"),
				MetricColumn("total_discount"),
			},
		},
		{
			Name: TableShopifyProducts,
			Key:  []string{"product_id"},
			Columns: []Column{
				ExternalIDColumn("product_id"),
				DateColumn("created_date"),
				DimensionColumn("title"),
				DimensionColumn("vendor"),
				DimensionColumn("product_type"),
				DimensionColumn("handle"),
				DimensionColumn("status"),
				DimensionColumn("tags"),
				DimensionColumn("updated_at"),
				MetricColumn("variants_count"),
				MetricColumn("total_inventory"),
			},
		},
		{
			Name: TableShopifyCustomers,
			Key:  []string{"customer_id"},
			Columns: []Column{
				ExternalIDColumn("customer_id"),
				DateColumn("created_date"),
				DimensionColumn("email"),
				DimensionColumn("first_name"),
				DimensionColumn("last_name"),
				DimensionColumn("state"),
				DimensionColumn("tags"),
				DimensionColumn("city"),
				DimensionColumn("country"),
				MetricColumn("orders_count"),
				MetricColumn("total_spent"),
			},
		},

		{
			Name: TableAsanaProjects,
			Key:  []string{"gid"},
			Columns: []Column{
				ExternalIDColumn("gid"),
				DimensionColumn("name"),
				DimensionColumn("workspace_gid"),
				DimensionColumn("owner_gid"),
				DimensionColumn("owner_name"),
				DimensionColumn("color"),
				DimensionColumn("created_at"),
				DimensionColumn("modified_at"),
				DimensionColumn("due_on"),
				MetricColumn("archived"),
			},
		},
		{
			Name: TableAsanaTasks,
			Key:  []string{"gid"},
			Columns: []Column{
				ExternalIDColumn("gid"),
				DimensionColumn("name"),
				DimensionColumn("project_gid"),
				DimensionColumn("project_name"),
				DimensionColumn("assignee_gid"),
				DimensionColumn("assignee_name"),
				DimensionColumn("created_at"),
				DimensionColumn("modified_at"),
				DimensionColumn("completed_at"),
				DimensionColumn("due_on"),
				DimensionColumn("tags"),
				MetricColumn("completed"),
				MetricColumn("num_subtasks"),
				MetricColumn("num_likes"),
				MetricColumn("followers_count"),
			},
		},
		{
			Name: TableAsanaUsers,
			Key:  []string{"gid"},
			Columns: []Column{
				ExternalIDColumn("gid"),
				DimensionColumn("name"),
				DimensionColumn("email"),
				DimensionColumn("workspace_gid"),
			},
		},
	}
}

// LookupTable returns the registered spec for name.
func LookupTable(name string) (TableSpec, bool) {
	for _, t := range SourceTables() {
		if t.Name == name {
			return t, true
		}
	}
	return TableSpec{}, false
}
