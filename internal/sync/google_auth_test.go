// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestParseServiceAccount(t *testing.T) {
	t.Run("escaped newlines in key", func(t *testing.T) {
		raw := `{"client_email":"a@b.iam.gserviceaccount.com","private_key":"-----BEGIN KEY-----\\nabc\\n-----END KEY-----\\n"}`
		sa, err := ParseServiceAccount(raw)
		if err != nil {
			t.Fatalf("ParseServiceAccount() error = %v", err)
		}
		if strings.Contains(sa.PrivateKey, `\n`) || !strings.Contains(sa.PrivateKey, "\nabc\n") {
			t.Errorf("PrivateKey = %q", sa.PrivateKey)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		if _, err := ParseServiceAccount(`{"client_email":"a@b"}`); err == nil {
			t.Error("expected error for missing private_key")
		}
	})

	t.Run("not json", func(t *testing.T) {
		if _, err := ParseServiceAccount("not-json"); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestGoogleTokenSource_ExchangesSignedAssertion(t *testing.T) {
	key := testSigningKey(t)
	var exchanges int32
	var tokenURL string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&exchanges, 1)
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != jwtBearerGrant {
			t.Errorf("grant_type = %q", got)
		}

		tok, err := jwt.Parse(r.PostForm.Get("assertion"), func(tok *jwt.Token) (interface{}, error) {
			return &key.PublicKey, nil
		}, jwt.WithValidMethods([]string{"RS256"}))
		if err != nil {
			t.Fatalf("assertion did not verify: %v", err)
		}
		claims := tok.Claims.(jwt.MapClaims)
		if claims["iss"] != "sync@test-project.iam.gserviceaccount.com" {
			t.Errorf("iss = %v", claims["iss"])
		}
		if claims["scope"] != scopeAnalyticsReadonly {
			t.Errorf("scope = %v", claims["scope"])
		}
		if claims["aud"] != tokenURL {
			t.Errorf("aud = %v, want %s", claims["aud"], tokenURL)
		}
		if tok.Header["kid"] != "kid-1" {
			t.Errorf("kid = %v", tok.Header["kid"])
		}
		writeJSON(w, map[string]interface{}{"access_token": "tok-1", "expires_in": 3600})
	}))
	defer server.Close()
	tokenURL = server.URL + "/token"

	sa, err := ParseServiceAccount(testServiceAccountJSON(t, tokenURL))
	if err != nil {
		t.Fatal(err)
	}
	ts, err := newGoogleTokenSource(sa, scopeAnalyticsReadonly, "", server.Client())
	if err != nil {
		t.Fatalf("newGoogleTokenSource() error = %v", err)
	}
	now := time.Now()
	ts.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		tok, err := ts.Token(context.Background())
		if err != nil {
			t.Fatalf("Token() error = %v", err)
		}
		if tok != "tok-1" {
			t.Errorf("Token() = %q", tok)
		}
	}
	if got := atomic.LoadInt32(&exchanges); got != 1 {
		t.Errorf("exchanges = %d, want cached token after the first", got)
	}

	// Inside the expiry margin the token is refreshed.
	now = now.Add(59*time.Minute + 30*time.Second)
	if _, err := ts.Token(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&exchanges); got != 2 {
		t.Errorf("exchanges = %d, want refresh near expiry", got)
	}
}

func TestGoogleTokenSource_ExchangeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]string{"error": "invalid_grant", "error_description": "Invalid JWT Signature."})
	}))
	defer server.Close()

	sa, err := ParseServiceAccount(testServiceAccountJSON(t, server.URL))
	if err != nil {
		t.Fatal(err)
	}
	ts, err := newGoogleTokenSource(sa, scopeContent, "", server.Client())
	if err != nil {
		t.Fatal(err)
	}
	_, err = ts.Token(context.Background())
	if err == nil || !strings.Contains(err.Error(), "invalid_grant: Invalid JWT Signature.") {
		t.Errorf("Token() error = %v", err)
	}
}

func TestNewGoogleTokenSource_BadKey(t *testing.T) {
	sa := &ServiceAccount{ClientEmail: "a@b", PrivateKey: "not a pem", TokenURI: "http://x"}
	if _, err := newGoogleTokenSource(sa, scopeContent, "", nil); err == nil {
		t.Error("expected key parse error")
	}
}
