// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/tributary/internal/middleware"
)

// RouterConfig wires the router.
type RouterConfig struct {
	Handler    *Handler
	Middleware *ChiMiddleware

	// CronSecret guards every sync route.
	CronSecret string

	// AllowAnonymous lets requests through when CronSecret is empty.
	// Only set in development.
	AllowAnonymous bool
}

// NewRouter builds the HTTP routes.
func NewRouter(cfg RouterConfig) http.Handler {
	h, mw := cfg.Handler, cfg.Middleware
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	auth := middleware.BearerSecret(cfg.CronSecret, cfg.AllowAnonymous)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.With(mw.RateLimitHealth(), middleware.PrometheusMetrics).Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/sync", func(r chi.Router) {
		r.Use(mw.RateLimitSync())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Use(auth)

		r.Post("/daily", h.SyncDaily)
		r.Get("/status", h.SyncStatus)
		r.Post("/{source}", h.SyncSource)
		r.Get("/{source}", h.SyncUsage)
	})

	r.Route("/api/cron", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Use(auth)

		r.Get("/daily-sync", h.SyncDaily)
	})

	return r
}
