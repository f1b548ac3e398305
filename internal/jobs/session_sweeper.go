package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/interview-session-service/internal/services"
	"github.com/robfig/cron/v3"
)

const defaultBatchSize = 200

// SweeperConfig contains configuration for the reconciliation job
type SweeperConfig struct {
	Schedule  string // Cron spec, e.g. "@every 1m"
	BatchSize int    // Sessions handled per step and run
	Timeout   time.Duration
}

// SweepReport summarizes one reconciliation run
type SweepReport struct {
	Completed   int
	Invalidated int
	Finalized   int
}

// SessionSweeper closes expired sessions and retries finalizations that failed inline
type SessionSweeper struct {
	monitor services.MonitorService
	scoring services.ScoringService
	config  SweeperConfig
	logger  *slog.Logger
	cron    *cron.Cron

	// Runs never overlap; a tick that finds a run in progress is skipped
	running sync.Mutex
}

func NewSessionSweeper(monitor services.MonitorService, scoring services.ScoringService, config SweeperConfig, logger *slog.Logger) *SessionSweeper {
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &SessionSweeper{
		monitor: monitor,
		scoring: scoring,
		config:  config,
		logger:  logger.With("component", "session_sweeper"),
		cron:    cron.New(),
	}
}

// Start schedules the job
func (s *SessionSweeper) Start() error {
	_, err := s.cron.AddFunc(s.config.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
		defer cancel()

		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("Session sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule session sweeper: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Session sweeper started", "schedule", s.config.Schedule)
	return nil
}

// Stop stops scheduling and waits for a running sweep to finish
func (s *SessionSweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Session sweeper stopped")
}

// RunOnce performs a single reconciliation pass. The finalization retry runs even when the
// expiry sweep fails.
func (s *SessionSweeper) RunOnce(ctx context.Context) (*SweepReport, error) {
	if !s.running.TryLock() {
		s.logger.Debug("Previous sweep still running, skipping")
		return &SweepReport{}, nil
	}
	defer s.running.Unlock()

	report := &SweepReport{}
	var sweepErr error

	swept, err := s.monitor.SweepExpired(ctx, s.config.BatchSize)
	if swept != nil {
		report.Completed = swept.Completed
		report.Invalidated = swept.Invalidated
	}
	if err != nil {
		sweepErr = fmt.Errorf("expiry sweep: %w", err)
	}

	finalized, err := s.scoring.FinalizePending(ctx, s.config.BatchSize)
	report.Finalized = finalized
	if err != nil {
		if sweepErr != nil {
			return report, fmt.Errorf("%w; finalization retry: %v", sweepErr, err)
		}
		return report, fmt.Errorf("finalization retry: %w", err)
	}
	if sweepErr != nil {
		return report, sweepErr
	}

	if report.Completed+report.Invalidated+report.Finalized > 0 {
		s.logger.Info("Session sweep finished",
			"completed", report.Completed,
			"invalidated", report.Invalidated,
			"finalized", report.Finalized,
		)
	}
	return report, nil
}
