package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/moodlog/backend/domain"
	"github.com/moodlog/backend/internal/infrastructure/buffer"
	"github.com/moodlog/backend/internal/metrics"
	"github.com/moodlog/backend/usecase/progress"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how frequently the event buffer is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// EventProcessor replays buffered diary events against the progress tracker
// once the primary datastores are reachable again.
type EventProcessor struct {
	queue   *buffer.Queue
	monitor ConnectionHealth
	tracker *progress.Tracker
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     ProcessorConfig
}

func NewEventProcessor(
	queue *buffer.Queue,
	monitor ConnectionHealth,
	tracker *progress.Tracker,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *EventProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 48 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ep := &EventProcessor{
		queue:   queue,
		monitor: monitor,
		tracker: tracker,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = ep.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := ep.Drain(ctx); err != nil {
			ep.logger.Error("event buffer drain failed", zap.Error(err))
		}
	})

	return ep
}

// Start launches the cron scheduler.
func (ep *EventProcessor) Start() {
	if ep == nil || ep.cron == nil {
		return
	}
	ep.cron.Start()
	ep.logger.Info("event processor started")
}

// Stop gracefully stops the scheduler.
func (ep *EventProcessor) Stop(ctx context.Context) {
	if ep == nil || ep.cron == nil {
		return
	}
	stopCtx := ep.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	ep.logger.Info("event processor stopped")
}

// Enqueue parks a diary event for later replay.
func (ep *EventProcessor) Enqueue(ev domain.DiaryEvent) error {
	if ep == nil || ep.queue == nil {
		return domain.ErrInvalidPayload
	}
	if err := ep.queue.Enqueue(ev); err != nil {
		return err
	}
	ep.updateDepthGauge()
	return nil
}

// Drain replays buffered events synchronously.
func (ep *EventProcessor) Drain(ctx context.Context) error {
	if ep == nil || ep.queue == nil {
		return nil
	}
	if ep.monitor != nil && !ep.monitor.IsOnline() {
		ep.logger.Debug("skipping event drain (offline)")
		return nil
	}

	if err := ep.queue.Cleanup(time.Now().Add(-ep.cfg.Retention)); err != nil {
		ep.logger.Warn("event buffer cleanup failed", zap.Error(err))
	}

	entries, err := ep.queue.Batch(ep.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		err := ep.apply(ctx, entry.Event)
		switch {
		case err == nil,
			errors.Is(err, domain.ErrParticipationNotActive),
			errors.Is(err, domain.ErrParticipationNotFound):
			// applied, or no longer applicable; either way the event is done
			if remErr := ep.queue.Remove(entry); remErr != nil {
				ep.logger.Warn("failed to remove drained event", zap.Error(remErr))
			}
		case entry.Retries+1 >= ep.cfg.MaxRetries:
			ep.logger.Error("dropping diary event after max retries",
				zap.String("diary_id", entry.Event.DiaryID),
				zap.String("op", string(entry.Event.Op)),
				zap.Error(err))
			if remErr := ep.queue.Remove(entry); remErr != nil {
				ep.logger.Warn("failed to remove dropped event", zap.Error(remErr))
			}
		default:
			if reqErr := ep.queue.Requeue(entry); reqErr != nil {
				ep.logger.Warn("failed to requeue event", zap.Error(reqErr))
			}
		}
	}

	ep.updateDepthGauge()
	return nil
}

func (ep *EventProcessor) apply(ctx context.Context, ev domain.DiaryEvent) error {
	switch ev.Op {
	case domain.DiaryCreated:
		_, err := ep.tracker.Record(ctx, ev.ParticipationID, ev.Date, ev.Force)
		return err
	case domain.DiaryDeleted:
		return ep.tracker.Remove(ctx, ev.ParticipationID, ev.Date, ev.DiaryID)
	case domain.DiaryRelinked:
		var errs error
		if ev.OldParticipationID != "" {
			errs = errors.Join(errs, retryable(ep.tracker.Remove(ctx, ev.OldParticipationID, ev.Date, ev.DiaryID)))
		}
		if ev.NewParticipationID != "" {
			_, err := ep.tracker.RecordRelinked(ctx, ev.NewParticipationID, ev.Date, ev.DiaryID)
			errs = errors.Join(errs, retryable(err))
		}
		return errs
	default:
		ep.logger.Warn("unknown diary event op", zap.String("op", string(ev.Op)))
		return nil
	}
}

// retryable drops the terminal outcomes so a relink leg that is no longer
// applicable does not keep the whole event in the buffer.
func retryable(err error) error {
	if errors.Is(err, domain.ErrParticipationNotActive) || errors.Is(err, domain.ErrParticipationNotFound) {
		return nil
	}
	return err
}

func (ep *EventProcessor) updateDepthGauge() {
	if size, err := ep.queue.Size(); err == nil {
		metrics.BufferedEvents.Set(float64(size))
	}
}
