// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/tributary/internal/logging"
	"github.com/tomtom215/tributary/internal/metrics"
)

// maxErrorBodySize limits how much of an error response is kept.
const maxErrorBodySize = 4 * 1024

// RetryPolicy bounds retries of rate-limited and transient failures.
// Attempts counts every try including the first.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy is 3 attempts, 500ms base, 8s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}
}

// backoff returns the wait before the retry following attempt (0-based).
// A server-supplied Retry-After wins but is still capped.
func (p RetryPolicy) backoff(attempt int, retryAfter time.Duration) time.Duration {
	d := p.BaseDelay * (1 << uint(attempt))
	if retryAfter > 0 {
		d = retryAfter
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// authorizer decorates outbound requests with credentials.
type authorizer interface {
	authorize(ctx context.Context, req *http.Request) error
}

type authorizerFunc func(ctx context.Context, req *http.Request) error

func (f authorizerFunc) authorize(ctx context.Context, req *http.Request) error { return f(ctx, req) }

// bearerAuth sets Authorization: Bearer token.
func bearerAuth(token string) authorizer {
	return authorizerFunc(func(_ context.Context, req *http.Request) error {
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	})
}

// headerAuth sets a fixed header, e.g. X-Shopify-Access-Token.
func headerAuth(name, value string) authorizer {
	return authorizerFunc(func(_ context.Context, req *http.Request) error {
		req.Header.Set(name, value)
		return nil
	})
}

// authError marks credential failures, which are never retried.
type authError struct{ err error }

func (e *authError) Error() string { return "authorization failed: " + e.err.Error() }
func (e *authError) Unwrap() error { return e.err }

type clientOptions struct {
	name              string // metrics and breaker label, e.g. "commerce"
	baseURL           string
	timeout           time.Duration
	requestsPerSecond float64 // 0 disables pacing
	retry             RetryPolicy
	auth              authorizer
	httpClient        *http.Client
}

// apiClient is the shared transport for every connector: pacing, bounded
// retry with backoff, and a circuit breaker around each logical call.
type apiClient struct {
	name    string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
	retry   RetryPolicy
	auth    authorizer
	wait    func(ctx context.Context, d time.Duration) error
}

func newAPIClient(opts clientOptions) *apiClient {
	httpClient := opts.httpClient
	if httpClient == nil {
		timeout := opts.timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	retry := opts.retry
	if retry.Attempts < 1 {
		retry = DefaultRetryPolicy()
	}

	c := &apiClient{
		name:    opts.name,
		baseURL: strings.TrimRight(opts.baseURL, "/"),
		http:    httpClient,
		retry:   retry,
		auth:    opts.auth,
		wait:    sleepContext,
	}
	if opts.requestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.requestsPerSecond), 1)
	}
	c.cb = newBreaker(opts.name + "-api")
	return c
}

// newBreaker trips after 60% failures over at least 10 calls, or 5 in a row,
// and probes again after 2 minutes.
func newBreaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 5 {
				return true
			}
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("Circuit breaker state transition")
			metrics.RecordCircuitBreakerTransition(name, stateToString(from), stateToString(to), stateToFloat(to))
		},
		// Caller mistakes (4xx other than 429) and calls abandoned by the
		// caller's own context say nothing about the vendor's health.
		IsSuccessful: func(err error) bool {
			var done *callerDoneError
			if err == nil || errors.Is(err, context.Canceled) || errors.As(err, &done) {
				return true
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
			}
			return false
		},
	})
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// callerDoneError marks a failure that happened after the caller's context
// was canceled or hit its deadline. It only travels through the breaker.
type callerDoneError struct{ err error }

func (e *callerDoneError) Error() string { return e.err.Error() }
func (e *callerDoneError) Unwrap() error { return e.err }

// apiRequest describes one logical vendor call.
type apiRequest struct {
	method string
	path   string // appended to baseURL unless absolute
	query  url.Values
	body   interface{}
}

// getJSON issues a GET and decodes the response into out.
func (c *apiClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, apiRequest{method: http.MethodGet, path: path, query: query}, out)
}

// postJSON issues a POST with a JSON body and decodes the response into out.
func (c *apiClient) postJSON(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, apiRequest{method: http.MethodPost, path: path, body: body}, out)
}

func (c *apiClient) do(ctx context.Context, req apiRequest, out interface{}) error {
	var payload []byte
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", c.name, err)
		}
		payload = b
	}

	body, err := c.cb.Execute(func() ([]byte, error) {
		b, err := c.doWithRetry(ctx, req, payload)
		if err != nil && ctx.Err() != nil {
			return nil, &callerDoneError{err: err}
		}
		return b, err
	})
	if err != nil {
		var done *callerDoneError
		if errors.As(err, &done) {
			return done.err
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%s circuit breaker rejected request: %w", c.cb.Name(), err)
		}
		return err
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.name, err)
	}
	return nil
}

func (c *apiClient) doWithRetry(ctx context.Context, req apiRequest, payload []byte) ([]byte, error) {
	var retryAfter time.Duration
	for attempt := 0; attempt < c.retry.Attempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		body, status, ra, err := c.once(ctx, req, payload)
		metrics.RecordAPIRequest(c.name, status)
		if err == nil {
			return body, nil
		}
		retryAfter = ra

		reason, retryable := retryReason(ctx, err)
		if !retryable {
			return nil, err
		}
		if attempt == c.retry.Attempts-1 {
			if status == http.StatusTooManyRequests {
				return nil, &RateLimitError{Service: c.name, Attempts: c.retry.Attempts, RetryAfter: retryAfter}
			}
			return nil, fmt.Errorf("%s request failed after %d attempts: %w", c.name, c.retry.Attempts, err)
		}

		delay := c.retry.backoff(attempt, retryAfter)
		metrics.RecordAPIRetry(c.name, reason)
		logging.Warn().
			Str("source", c.name).
			Str("reason", reason).
			Int("attempt", attempt+1).
			Int("max_attempts", c.retry.Attempts).
			Dur("retry_delay", delay).
			Msg("Vendor API call failed, retrying")

		if err := c.wait(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s request: no attempts configured", c.name)
}

func retryReason(ctx context.Context, err error) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	var ae *authError
	if errors.As(err, &ae) {
		return "", false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return "rate_limited", true
		}
		return "server_error", apiErr.Temporary()
	}
	return "network", true
}

func (c *apiClient) once(ctx context.Context, req apiRequest, payload []byte) ([]byte, int, time.Duration, error) {
	target := req.path
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.baseURL + target
	}
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("create %s request: %w", c.name, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.auth != nil {
		if err := c.auth.authorize(ctx, httpReq); err != nil {
			return nil, 0, 0, &authError{err: err}
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%s request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()), &APIError{
			Service:    c.name,
			StatusCode: resp.StatusCode,
			Body:       readBodyForError(resp.Body),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, 0, fmt.Errorf("read %s response: %w", c.name, err)
	}
	return data, resp.StatusCode, 0, nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return "(failed to read response body)"
	}
	return strings.TrimSpace(string(body))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
