package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/moodlog/backend/domain"
	"github.com/moodlog/backend/internal/metrics"
	"github.com/moodlog/backend/pkg/dateutil"
	"github.com/moodlog/backend/repository"
)

// DailyLock guards a run so the sweep executes at most once per calendar day
// across worker replicas. A nil lock disables the guard. Release frees the
// day's claim after a run that did no work, so a retry the same day is not
// locked out.
type DailyLock interface {
	Acquire(ctx context.Context, day time.Time) (bool, error)
	Release(ctx context.Context, day time.Time) error
}

// Sweeper walks every ACTIVE participation and finalizes the ones whose time
// is up. Terminal rows are excluded by the ACTIVE query, so re-running after
// a crash simply resumes where the previous run stopped.
type Sweeper struct {
	participations repository.ParticipationRepository
	templates      repository.TemplateCatalog
	lock           DailyLock
	workers        int
	logger         *zap.Logger
	now            func() time.Time
}

// New builds a Sweeper. workers bounds the per-participation parallelism;
// values below 1 fall back to a small default.
func New(
	participations repository.ParticipationRepository,
	templates repository.TemplateCatalog,
	lock DailyLock,
	workers int,
	logger *zap.Logger,
) *Sweeper {
	if workers < 1 {
		workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		participations: participations,
		templates:      templates,
		lock:           lock,
		workers:        workers,
		logger:         logger,
		now:            time.Now,
	}
}

// WithClock overrides the wall clock. Test hook.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

type itemResult struct {
	outcome  Outcome
	conflict bool
	err      *ItemError
}

// Run executes one sweep pass. Per-participation failures are collected into
// the report instead of aborting the run; only listing the active set can
// fail the pass as a whole.
func (s *Sweeper) Run(ctx context.Context) (*Report, error) {
	now := s.now()
	today := dateutil.Day(now)
	yesterday := dateutil.Yesterday(now)
	report := &Report{RanAt: now}

	locked := false
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, today)
		if err != nil {
			// a dead lock backend must not stop the sweep: duplicate runs are
			// harmless because finalized rows drop out of the ACTIVE query
			s.logger.Warn("sweep lock unavailable, proceeding unguarded", zap.Error(err))
		} else if !acquired {
			s.logger.Info("sweep already ran today", zap.Time("day", today))
			report.AlreadyRan = true
			metrics.SweepRuns.WithLabelValues("already_ran").Inc()
			return report, nil
		} else {
			locked = true
		}
	}

	active, err := s.participations.ListActive(ctx)
	if err != nil {
		// nothing was processed; give the day's claim back so a retry
		// does not sit out until tomorrow
		if locked {
			if relErr := s.lock.Release(ctx, today); relErr != nil {
				s.logger.Warn("sweep lock release failed", zap.Error(relErr))
			}
		}
		metrics.SweepRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	report.Total = len(active)

	s.logger.Info("sweep started",
		zap.Time("today", today),
		zap.Int("active_participations", len(active)))

	results := make(chan itemResult, len(active))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for i := range active {
		p := active[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results <- s.process(ctx, &p, today, yesterday, now)
		}()
	}

	wg.Wait()
	close(results)

	for res := range results {
		switch {
		case res.err != nil:
			report.Errors = append(report.Errors, *res.err)
			metrics.SweepOutcomes.WithLabelValues("error").Inc()
		case res.conflict:
			report.Conflicts++
			metrics.SweepOutcomes.WithLabelValues("conflict").Inc()
		default:
			switch res.outcome {
			case OutcomeCompleted:
				report.Completed++
			case OutcomeExpired:
				report.Expired++
			case OutcomeMissedDay:
				report.MissedDay++
			default:
				report.Skipped++
			}
			metrics.SweepOutcomes.WithLabelValues(string(res.outcome)).Inc()
		}
	}

	metrics.SweepRuns.WithLabelValues("ran").Inc()
	s.logger.Info("sweep finished",
		zap.Int("total", report.Total),
		zap.Int("completed", report.Completed),
		zap.Int("expired", report.Expired),
		zap.Int("missed_day", report.MissedDay),
		zap.Int("skipped", report.Skipped),
		zap.Int("conflicts", report.Conflicts),
		zap.Int("errors", len(report.Errors)))

	return report, nil
}

func (s *Sweeper) process(ctx context.Context, p *domain.Participation, today, yesterday, now time.Time) (res itemResult) {
	defer func() {
		if r := recover(); r != nil {
			res = itemResult{err: &ItemError{
				ParticipationID: p.ID,
				Err:             fmt.Sprintf("panic: %v", r),
			}}
		}
	}()

	tpl, err := s.templates.GetByID(ctx, p.ChallengeID)
	if err != nil {
		s.logger.Error("sweep: template lookup failed",
			zap.String("participation_id", p.ID),
			zap.String("challenge_id", p.ChallengeID),
			zap.Error(err))
		return itemResult{err: &ItemError{ParticipationID: p.ID, Err: err.Error()}}
	}

	decision := Decide(p, tpl.EffectiveDuration(p), tpl.Daily, today, yesterday)

	switch decision.Outcome {
	case OutcomeNone:
		return itemResult{outcome: OutcomeNone}
	case OutcomeCompleted:
		if err := p.MarkCompleted(now); err != nil {
			return itemResult{err: &ItemError{ParticipationID: p.ID, Err: err.Error()}}
		}
	default:
		if err := p.MarkFailed(decision.Reason, decision.FailedDate, now); err != nil {
			return itemResult{err: &ItemError{ParticipationID: p.ID, Err: err.Error()}}
		}
	}

	if err := s.participations.CompareAndSave(ctx, p); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			// a diary write beat us to the row; the next run re-evaluates it
			s.logger.Info("sweep: row changed underneath, leaving for next run",
				zap.String("participation_id", p.ID))
			return itemResult{conflict: true}
		}
		s.logger.Error("sweep: finalize failed",
			zap.String("participation_id", p.ID),
			zap.Error(err))
		return itemResult{err: &ItemError{ParticipationID: p.ID, Err: err.Error()}}
	}

	s.logger.Info("sweep: participation finalized",
		zap.String("participation_id", p.ID),
		zap.String("outcome", string(decision.Outcome)),
		zap.Int("progress_days", p.ProgressDays))
	return itemResult{outcome: decision.Outcome}
}
