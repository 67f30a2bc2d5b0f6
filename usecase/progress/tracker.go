// Package progress applies diary lifecycle events to participation progress
// counters. All mutations go through an optimistic load-modify-save loop so
// concurrent diary writes and the daily sweep cannot lose updates.
package progress

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/moodlog/backend/domain"
	"github.com/moodlog/backend/internal/metrics"
	"github.com/moodlog/backend/repository"
)

// maxSaveAttempts bounds the optimistic-concurrency retry loop. Conflicts are
// rare (a diary write racing the midnight sweep), so a handful of retries is
// plenty before surfacing the conflict.
const maxSaveAttempts = 3

// Tracker is the single writer for participation progress fields.
type Tracker struct {
	participations repository.ParticipationRepository
	diaries        repository.DiaryCollaborator
	templates      repository.TemplateCatalog
	logger         *zap.Logger
	now            func() time.Time
}

// New builds a Tracker. A nil logger is replaced with a nop logger.
func New(
	participations repository.ParticipationRepository,
	diaries repository.DiaryCollaborator,
	templates repository.TemplateCatalog,
	logger *zap.Logger,
) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		participations: participations,
		diaries:        diaries,
		templates:      templates,
		logger:         logger,
		now:            time.Now,
	}
}

// WithClock overrides the wall clock. Test hook.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Record counts a qualifying day for the participation. A participation
// counts at most once per calendar date regardless of how many diaries land
// on that date, unless force is set. Travel logs ignore dates outside their
// departure-return window. When the recorded day satisfies the completion
// condition, the status transition and the progress update are persisted as
// one write and the returned signal carries the challenge title.
func (t *Tracker) Record(ctx context.Context, participationID string, date time.Time, force bool) (domain.CompletionSignal, error) {
	var none domain.CompletionSignal

	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		p, err := t.participations.GetByID(ctx, participationID)
		if err != nil {
			return none, err
		}
		if !p.IsActive() {
			t.logger.Warn("progress update on non-active participation",
				zap.String("participation_id", participationID),
				zap.String("status", string(p.Status)))
			return none, domain.ErrParticipationNotActive
		}

		tpl, err := t.templates.GetByID(ctx, p.ChallengeID)
		if err != nil {
			return none, err
		}

		if tpl.Type == domain.TypeTravel && !p.InRange(date) {
			t.logger.Debug("diary date outside travel window",
				zap.String("participation_id", participationID),
				zap.Time("date", date))
			return none, nil
		}

		if !force && p.CompletedOn(date) {
			t.logger.Debug("date already counted",
				zap.String("participation_id", participationID),
				zap.Time("date", date))
			return none, nil
		}

		p.RecordDay(date)

		duration := tpl.EffectiveDuration(p)
		if duration <= 0 {
			t.logger.Warn("challenge template has no usable duration",
				zap.String("participation_id", participationID),
				zap.String("challenge_id", p.ChallengeID),
				zap.String("type", string(tpl.Type)))
		}
		p.UpdateCompletionRate(duration)

		signal := Evaluate(p, tpl, date)
		if signal.Completed {
			if err := p.MarkCompleted(t.now()); err != nil {
				return none, err
			}
		}

		if err := t.participations.CompareAndSave(ctx, p); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				t.logger.Info("progress save conflicted, retrying",
					zap.String("participation_id", participationID),
					zap.Int("attempt", attempt))
				continue
			}
			return none, err
		}

		metrics.ProgressUpdates.WithLabelValues("record").Inc()
		if signal.Completed {
			metrics.Completions.Inc()
			t.logger.Info("challenge completed",
				zap.String("participation_id", participationID),
				zap.String("challenge", signal.Title),
				zap.Int("progress_days", signal.ProgressDays),
				zap.Int("required_days", signal.RequiredDays))
		} else {
			t.logger.Info("progress recorded",
				zap.String("participation_id", participationID),
				zap.Time("date", date),
				zap.Int("progress_days", p.ProgressDays))
		}
		return signal, nil
	}

	return none, domain.ErrVersionConflict
}

// RecordRelinked counts the day a diary brings along when it moves into this
// participation. A relink can be backdated, and LastCompleted only remembers
// the most recent counted date, so the same-date dedup in Record is not
// enough: the diary store is asked whether another diary (the moved one
// excluded) already covers the date before the day is recorded.
func (t *Tracker) RecordRelinked(ctx context.Context, participationID string, date time.Time, movedDiaryID string) (domain.CompletionSignal, error) {
	var none domain.CompletionSignal

	covered, err := t.diaries.ExistsOnDate(ctx, participationID, date, movedDiaryID)
	if err != nil {
		return none, err
	}
	if covered {
		t.logger.Debug("date already covered by another diary",
			zap.String("participation_id", participationID),
			zap.Time("date", date))
		return none, nil
	}
	return t.Record(ctx, participationID, date, false)
}

// Remove undoes a qualifying day after a diary deletion. When another diary
// still exists for the same participation and date (the removed diary
// excluded), the removal is a no-op so same-day duplicates never under-count.
// A failing most-recent-date lookup is logged and leaves LastCompleted stale
// rather than blocking the diary deletion.
func (t *Tracker) Remove(ctx context.Context, participationID string, date time.Time, excludeDiaryID string) error {
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		p, err := t.participations.GetByID(ctx, participationID)
		if err != nil {
			return err
		}
		if !p.IsActive() {
			t.logger.Warn("progress removal on non-active participation",
				zap.String("participation_id", participationID),
				zap.String("status", string(p.Status)))
			return domain.ErrParticipationNotActive
		}

		exists, err := t.diaries.ExistsOnDate(ctx, participationID, date, excludeDiaryID)
		if err != nil {
			t.logger.Warn("same-day diary lookup failed, skipping decrement",
				zap.String("participation_id", participationID),
				zap.Error(err))
			return nil
		}
		if exists {
			t.logger.Debug("another diary remains on this date, progress unchanged",
				zap.String("participation_id", participationID),
				zap.Time("date", date))
			return nil
		}

		var mostRecent *time.Time
		if p.ProgressDays > 1 {
			mostRecent, err = t.diaries.MostRecentDate(ctx, participationID)
			if err != nil {
				t.logger.Warn("most recent diary date unavailable, keeping stale last-completed date",
					zap.String("participation_id", participationID),
					zap.Error(err))
				mostRecent = nil
			}
		}
		p.RemoveDay(mostRecent)

		tpl, err := t.templates.GetByID(ctx, p.ChallengeID)
		if err != nil {
			return err
		}
		p.UpdateCompletionRate(tpl.EffectiveDuration(p))

		if err := t.participations.CompareAndSave(ctx, p); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				t.logger.Info("progress save conflicted, retrying",
					zap.String("participation_id", participationID),
					zap.Int("attempt", attempt))
				continue
			}
			return err
		}

		metrics.ProgressUpdates.WithLabelValues("remove").Inc()
		t.logger.Info("progress removed",
			zap.String("participation_id", participationID),
			zap.Time("date", date),
			zap.Int("progress_days", p.ProgressDays))
		return nil
	}

	return domain.ErrVersionConflict
}
