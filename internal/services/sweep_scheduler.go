package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/moodlog/backend/usecase/sweep"
)

// SweepScheduler runs the daily participation sweep on a cron schedule
// in the service's configured timezone.
type SweepScheduler struct {
	sweeper  *sweep.Sweeper
	logger   *zap.Logger
	cron     *cron.Cron
	timeout  time.Duration
	schedule string
}

func NewSweepScheduler(
	sweeper *sweep.Sweeper,
	location *time.Location,
	schedule string,
	timeout time.Duration,
	logger *zap.Logger,
) (*SweepScheduler, error) {
	if location == nil {
		location = time.Local
	}
	if schedule == "" {
		schedule = "0 0 0 * * *"
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &SweepScheduler{
		sweeper:  sweeper,
		logger:   logger,
		timeout:  timeout,
		schedule: schedule,
		cron:     cron.New(cron.WithSeconds(), cron.WithLocation(location)),
	}

	if _, err := s.cron.AddFunc(schedule, s.RunNow); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins scheduling sweep runs.
func (s *SweepScheduler) Start() {
	s.cron.Start()
	s.logger.Info("sweep scheduler started", zap.String("schedule", s.schedule))
}

// Stop halts the scheduler and waits for any in-flight run.
func (s *SweepScheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("sweep scheduler stopped")
}

// RunNow executes a single sweep immediately.
func (s *SweepScheduler) RunNow() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	report, err := s.sweeper.Run(ctx)
	if err != nil {
		s.logger.Error("sweep run failed", zap.Error(err))
		return
	}
	if report.AlreadyRan {
		s.logger.Info("sweep already ran today, skipping")
		return
	}
	s.logger.Info("sweep finished",
		zap.Int("total", report.Total),
		zap.Int("completed", report.Completed),
		zap.Int("expired", report.Expired),
		zap.Int("missed_day", report.MissedDay),
		zap.Int("conflicts", report.Conflicts),
		zap.Int("errors", len(report.Errors)))
}
