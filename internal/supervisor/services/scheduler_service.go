// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package services

import (
	"context"
	"time"

	"github.com/tomtom215/tributary/internal/config"
	"github.com/tomtom215/tributary/internal/logging"
	"github.com/tomtom215/tributary/internal/models"
)

// DailySyncRunner runs every daily source once. *sync.Coordinator
// satisfies it.
type DailySyncRunner interface {
	RunDaily(ctx context.Context) *models.RunReport
}

// DailySchedulerService triggers a daily sync after InitialDelay and then
// every Interval. The next run is timed from the end of the previous one,
// so runs never overlap.
type DailySchedulerService struct {
	runner       DailySyncRunner
	interval     time.Duration
	initialDelay time.Duration

	// after is time.After outside tests.
	after func(time.Duration) <-chan time.Time
	// onReport observes each finished run.
	onReport func(*models.RunReport)
}

// NewDailySchedulerService builds a scheduler from cfg. A non-positive
// interval defaults to 24h.
func NewDailySchedulerService(runner DailySyncRunner, cfg config.SchedulerConfig) *DailySchedulerService {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	delay := cfg.InitialDelay
	if delay < 0 {
		delay = 0
	}
	return &DailySchedulerService{
		runner:       runner,
		interval:     interval,
		initialDelay: delay,
		after:        time.After,
	}
}

// Serve implements suture.Service. A failed run is logged and does not stop
// the schedule.
func (s *DailySchedulerService) Serve(ctx context.Context) error {
	logging.Info().
		Dur("initial_delay", s.initialDelay).
		Dur("interval", s.interval).
		Msg("Daily sync scheduler started")

	wait := s.initialDelay
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Daily sync scheduler stopped")
			return ctx.Err()
		case <-s.after(wait):
		}

		s.runOnce(ctx)
		wait = s.interval
	}
}

func (s *DailySchedulerService) runOnce(ctx context.Context) {
	runCtx := logging.ContextWithNewCorrelationID(ctx)
	report := s.runner.RunDaily(runCtx)
	if report == nil {
		return
	}

	event := logging.Info()
	if !report.OverallSuccess {
		event = logging.Warn().Strs("errors", report.Errors())
	}
	event.Str("run_id", report.RunID).
		Bool("success", report.OverallSuccess).
		Dur("next_in", s.interval).
		Msg("Scheduled daily sync finished")

	if s.onReport != nil {
		s.onReport(report)
	}
}

func (s *DailySchedulerService) String() string {
	return "daily-sync-scheduler"
}
