// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/tributary/internal/models"
)

// HealthStatus is the /health body.
type HealthStatus struct {
	Status            string              `json:"status"`
	Version           string              `json:"version,omitempty"`
	DatabaseConnected bool                `json:"database_connected"`
	ConfiguredSources []models.SourceKind `json:"configured_sources"`
	Uptime            float64             `json:"uptime"`
	Timestamp         time.Time           `json:"timestamp"`
}

// Health handles GET /health. It answers 503 when the store is unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbConnected := h.store != nil && h.store.Ping(ctx) == nil

	configured := make([]models.SourceKind, 0, len(models.AllSources()))
	for _, k := range models.AllSources() {
		if h.coordinator.Configured(k) {
			configured = append(configured, k)
		}
	}

	health := HealthStatus{
		Status:            "healthy",
		Version:           h.version,
		DatabaseConnected: dbConnected,
		ConfiguredSources: configured,
		Uptime:            time.Since(h.startTime).Seconds(),
		Timestamp:         time.Now().UTC(),
	}
	status := http.StatusOK
	if !dbConnected {
		health.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	NewResponseWriter(w, r).JSON(status, health)
}
