// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package sync

import (
	"context"
	"crypto/rsa"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	gosync "sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

// Google OAuth scopes used by the connectors.
const (
	scopeWebmastersReadonly = "https://www.googleapis.com/auth/webmasters.readonly"
	scopeContent            = "https://www.googleapis.com/auth/content"
	scopeAnalyticsReadonly  = "https://www.googleapis.com/auth/analytics.readonly"
)

const jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// tokenExpiryMargin refreshes tokens this long before Google expires them.
const tokenExpiryMargin = time.Minute

// ServiceAccount is the subset of a Google service-account key file the
// connectors need.
type ServiceAccount struct {
	ClientEmail  string `json:"client_email"`
	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
	TokenURI     string `json:"token_uri"`
}

// ParseServiceAccount decodes a key file. Escaped newlines in the private
// key, common when the JSON travels through an environment variable, are
// restored.
func ParseServiceAccount(raw string) (*ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal([]byte(raw), &sa); err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, fmt.Errorf("service account credentials missing client_email or private_key")
	}
	sa.PrivateKey = strings.ReplaceAll(sa.PrivateKey, `\n`, "\n")
	return &sa, nil
}

// googleTokenSource exchanges a signed RS256 assertion for an access token
// and caches it until shortly before expiry.
type googleTokenSource struct {
	email    string
	keyID    string
	key      *rsa.PrivateKey
	scope    string
	tokenURL string
	http     *http.Client
	now      func() time.Time

	mu     gosync.Mutex
	token  string
	expiry time.Time
}

func newGoogleTokenSource(sa *ServiceAccount, scope, tokenURL string, client *http.Client) (*googleTokenSource, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse service account private key: %w", err)
	}
	if tokenURL == "" {
		tokenURL = sa.TokenURI
	}
	if tokenURL == "" {
		return nil, fmt.Errorf("no token URL for service account %s", sa.ClientEmail)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &googleTokenSource{
		email:    sa.ClientEmail,
		keyID:    sa.PrivateKeyID,
		key:      key,
		scope:    scope,
		tokenURL: tokenURL,
		http:     client,
		now:      time.Now,
	}, nil
}

func (s *googleTokenSource) authorize(ctx context.Context, req *http.Request) error {
	tok, err := s.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

// Token returns a cached access token or fetches a new one.
func (s *googleTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Add(tokenExpiryMargin).Before(s.expiry) {
		return s.token, nil
	}

	assertion, err := s.assertion()
	if err != nil {
		return "", err
	}
	tok, ttl, err := s.exchange(ctx, assertion)
	if err != nil {
		return "", err
	}
	s.token = tok
	s.expiry = s.now().Add(ttl)
	return tok, nil
}

func (s *googleTokenSource) assertion() (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"iss":   s.email,
		"scope": s.scope,
		"aud":   s.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if s.keyID != "" {
		token.Header["kid"] = s.keyID
	}
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign service account assertion: %w", err)
	}
	return signed, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

func (s *googleTokenSource) exchange(ctx context.Context, assertion string) (string, time.Duration, error) {
	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, fmt.Errorf("read token response: %w", err)
	}
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, fmt.Errorf("decode token response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || tr.AccessToken == "" {
		msg := tr.Error
		if tr.Description != "" {
			msg += ": " + tr.Description
		}
		return "", 0, fmt.Errorf("token exchange returned status %d %s", resp.StatusCode, msg)
	}

	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	return tr.AccessToken, ttl, nil
}
