// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/tributary/internal/config"
	"github.com/tomtom215/tributary/internal/logging"
	"github.com/tomtom215/tributary/internal/metrics"
	"github.com/tomtom215/tributary/internal/models"
)

// Runner is the type-erased face of a Session: it decodes raw JSON options
// and runs one sync.
type Runner interface {
	Source() models.SourceKind
	Run(ctx context.Context, rawOptions []byte) (models.SyncResult, error)
}

type sessionRunner[O SessionOptions] struct {
	session  *Session[O]
	defaults func() O
}

// NewRunner binds a Session to its option defaults.
func NewRunner[O SessionOptions](session *Session[O], defaults func() O) Runner {
	return &sessionRunner[O]{session: session, defaults: defaults}
}

func (r *sessionRunner[O]) Source() models.SourceKind { return r.session.Source() }

// Run returns an *OptionsError for malformed options; every other failure
// is reported inside the SyncResult.
func (r *sessionRunner[O]) Run(ctx context.Context, rawOptions []byte) (models.SyncResult, error) {
	opts, err := decodeOptions(rawOptions, r.defaults())
	if err != nil {
		return models.SyncResult{}, err
	}
	return r.session.Run(ctx, opts), nil
}

// Coordinator owns one Runner per configured source and guarantees at most
// one in-flight session per source.
type Coordinator struct {
	runners       map[models.SourceKind]Runner
	dailySources  []models.SourceKind
	maxConcurrent int
	now           func() time.Time

	mu       gosync.Mutex
	inFlight map[models.SourceKind]bool
}

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	DailySources  []models.SourceKind // empty means every source
	MaxConcurrent int                 // <= 1 runs sources sequentially
}

// NewCoordinator creates a coordinator over the given runners. Sources with
// no runner are reported as not configured.
func NewCoordinator(cfg CoordinatorConfig, runners ...Runner) *Coordinator {
	c := &Coordinator{
		runners:       make(map[models.SourceKind]Runner, len(runners)),
		dailySources:  cfg.DailySources,
		maxConcurrent: cfg.MaxConcurrent,
		now:           time.Now,
		inFlight:      make(map[models.SourceKind]bool),
	}
	if len(c.dailySources) == 0 {
		c.dailySources = models.AllSources()
	}
	if c.maxConcurrent < 1 {
		c.maxConcurrent = 1
	}
	for _, r := range runners {
		c.runners[r.Source()] = r
	}
	return c
}

// Configured reports whether a source has credentials and a runner.
func (c *Coordinator) Configured(source models.SourceKind) bool {
	_, ok := c.runners[source]
	return ok
}

// ConfiguredSources lists configured sources in canonical order.
func (c *Coordinator) ConfiguredSources() []models.SourceKind {
	var out []models.SourceKind
	for _, k := range models.AllSources() {
		if c.Configured(k) {
			out = append(out, k)
		}
	}
	return out
}

// InProgress reports whether a session for source is currently running.
func (c *Coordinator) InProgress(source models.SourceKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight[source]
}

func (c *Coordinator) acquire(source models.SourceKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[source] {
		return false
	}
	c.inFlight[source] = true
	return true
}

func (c *Coordinator) release(source models.SourceKind) {
	c.mu.Lock()
	delete(c.inFlight, source)
	c.mu.Unlock()
}

// RunSource runs a single source. It returns ErrNotConfigured,
// ErrSyncInProgress or an *OptionsError before any work starts; otherwise
// the result carries the session outcome.
func (c *Coordinator) RunSource(ctx context.Context, source models.SourceKind, rawOptions []byte) (models.SyncResult, error) {
	runner, ok := c.runners[source]
	if !ok {
		return models.SyncResult{}, fmt.Errorf("%s: %w", source, ErrNotConfigured)
	}
	if !c.acquire(source) {
		return models.SyncResult{}, fmt.Errorf("%s: %w", source, ErrSyncInProgress)
	}
	defer c.release(source)
	return runner.Run(ctx, rawOptions)
}

// RunDaily runs every daily source with default options. One source's
// failure never prevents the others from running.
func (c *Coordinator) RunDaily(ctx context.Context) *models.RunReport {
	start := c.now()
	runID := logging.RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logging.ContextWithRunID(ctx, runID)
	}
	report := models.NewRunReport(runID, start)
	logger := logging.Ctx(ctx)
	logger.Info().Int("sources", len(c.dailySources)).Msg("Daily sync started")

	outcomes := make([]models.SourceOutcome, len(c.dailySources))
	sem := make(chan struct{}, c.maxConcurrent)
	var wg gosync.WaitGroup
	for i, source := range c.dailySources {
		if !c.Configured(source) {
			metrics.RecordSkippedSource(string(source))
			outcomes[i] = models.Skipped(source)
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, source models.SourceKind) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = c.runDailySource(ctx, source)
		}(i, source)
	}
	wg.Wait()

	for _, o := range outcomes {
		report.Record(o)
	}
	report.Duration = c.now().Sub(start)
	metrics.RecordCoordinatorRun(report.OverallSuccess)

	event := logger.Info()
	if !report.OverallSuccess {
		event = logger.Warn().Strs("errors", report.Errors())
	}
	event.Bool("success", report.OverallSuccess).Dur("duration", report.Duration).Msg("Daily sync finished")
	return report
}

func (c *Coordinator) runDailySource(ctx context.Context, source models.SourceKind) models.SourceOutcome {
	result, err := c.RunSource(ctx, source, nil)
	if err == nil {
		return models.Completed(source, result)
	}
	if errors.Is(err, ErrSyncInProgress) {
		return models.SourceOutcome{Source: source, Status: models.StatusFailed, Error: ErrSyncInProgress.Error()}
	}
	return models.SourceOutcome{Source: source, Status: models.StatusFailed, Error: err.Error()}
}

// SessionDeps are the collaborators shared by every session.
type SessionDeps struct {
	Writer BatchWriter
	Log    SyncLog
}

// BuildRunners constructs a Runner for every source whose credentials are
// present. Unconfigured sources are logged and omitted.
func BuildRunners(cfg *config.Config, deps SessionDeps) ([]Runner, error) {
	settings := ClientSettingsFromConfig(cfg.Sync)
	sessionCfg := SessionConfig{
		BatchSize:     cfg.Sync.BatchSize,
		TrailingDays:  cfg.Sync.TrailingDays,
		Timeout:       cfg.Sync.RunTimeout,
		FullSyncStart: cfg.Sync.FullSyncStartDate(),
	}

	var runners []Runner
	add := func(kind models.SourceKind, build func() (Runner, error)) error {
		r, err := build()
		if errors.Is(err, ErrNotConfigured) {
			logging.Info().Str("source", string(kind)).Msg("Source not configured, skipping")
			return nil
		}
		if err != nil {
			return fmt.Errorf("build %s connector: %w", kind, err)
		}
		runners = append(runners, r)
		return nil
	}

	builders := []struct {
		kind  models.SourceKind
		build func() (Runner, error)
	}{
		{models.SourceSearchAnalytics, func() (Runner, error) {
			conn, err := NewSearchAnalyticsConnector(cfg.SearchAnalytics, settings)
			if err != nil {
				return nil, err
			}
			return NewRunner(NewSession[SearchAnalyticsOptions](conn, deps.Writer, deps.Log, sessionCfg), DefaultSearchAnalyticsOptions), nil
		}},
		{models.SourceShoppingFeed, func() (Runner, error) {
			conn, err := NewShoppingFeedConnector(cfg.ShoppingFeed, settings)
			if err != nil {
				return nil, err
			}
			return NewRunner(NewSession[ShoppingFeedOptions](conn, deps.Writer, deps.Log, sessionCfg), DefaultShoppingFeedOptions), nil
		}},
		{models.SourceWebAnalytics, func() (Runner, error) {
			conn, err := NewWebAnalyticsConnector(cfg.WebAnalytics, settings)
			if err != nil {
				return nil, err
			}
			return NewRunner(NewSession[WebAnalyticsOptions](conn, deps.Writer, deps.Log, sessionCfg), DefaultWebAnalyticsOptions), nil
		}},
		{models.SourceCommerce, func() (Runner, error) {
			conn, err := NewCommerceConnector(cfg.Commerce, settings)
			if err != nil {
				return nil, err
			}
			return NewRunner(NewSession[CommerceOptions](conn, deps.Writer, deps.Log, sessionCfg), DefaultCommerceOptions), nil
		}},
		{models.SourceProjectTracker, func() (Runner, error) {
			conn, err := NewProjectTrackerConnector(cfg.ProjectTracker, settings)
			if err != nil {
				return nil, err
			}
			return NewRunner(NewSession[ProjectTrackerOptions](conn, deps.Writer, deps.Log, sessionCfg), DefaultProjectTrackerOptions), nil
		}},
	}
	for _, b := range builders {
		if err := add(b.kind, b.build); err != nil {
			return nil, err
		}
	}
	return runners, nil
}
