// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package sync

import (
	"net/http"
	"time"

	"github.com/tomtom215/tributary/internal/config"
	"github.com/tomtom215/tributary/internal/models"
)

// ClientSettings are the transport knobs shared by every connector.
type ClientSettings struct {
	RequestTimeout time.Duration
	Retry          RetryPolicy
	HTTPClient     *http.Client // optional; tests inject httptest clients
}

// ClientSettingsFromConfig maps the sync section onto ClientSettings.
func ClientSettingsFromConfig(cfg config.SyncConfig) ClientSettings {
	return ClientSettings{
		RequestTimeout: cfg.RequestTimeout,
		Retry: RetryPolicy{
			Attempts:  cfg.RetryAttempts,
			BaseDelay: cfg.RetryBaseDelay,
			MaxDelay:  cfg.RetryMaxDelay,
		},
	}
}

func (s ClientSettings) clientOptions(kind models.SourceKind, baseURL string, auth authorizer) clientOptions {
	return clientOptions{
		name:       string(kind),
		baseURL:    baseURL,
		timeout:    s.RequestTimeout,
		retry:      s.Retry,
		auth:       auth,
		httpClient: s.HTTPClient,
	}
}

// newGoogleClient builds a client authorized by a service-account key.
func newGoogleClient(kind models.SourceKind, baseURL, credentialsJSON, tokenURL, scope string, s ClientSettings) (*apiClient, error) {
	sa, err := ParseServiceAccount(credentialsJSON)
	if err != nil {
		return nil, err
	}
	tokenHTTP := s.HTTPClient
	if tokenHTTP == nil && s.RequestTimeout > 0 {
		tokenHTTP = &http.Client{Timeout: s.RequestTimeout}
	}
	ts, err := newGoogleTokenSource(sa, scope, tokenURL, tokenHTTP)
	if err != nil {
		return nil, err
	}
	return newAPIClient(s.clientOptions(kind, baseURL, ts)), nil
}
