package domain

import (
	"time"

	"github.com/moodlog/backend/pkg/dateutil"
)

// Status is the closed set of participation lifecycle states.
// ACTIVE is the only state this service mutates; COMPLETED and FAILED are
// terminal. PENDING exists for an opt-in approval flow handled elsewhere and
// is treated like a terminal state by every operation here.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// FailureReason records why a participation transitioned to FAILED.
type FailureReason string

const (
	FailureMissedDay FailureReason = "MISSED_DAY"
	FailureExpired   FailureReason = "CHALLENGE_EXPIRED"
	FailureUserQuit  FailureReason = "USER_QUIT"
)

// Participation is a user's attempt at a challenge, carrying its own progress
// counters and lifecycle. Progress fields are mutated only through the methods
// below so the counters and the completion rate cannot drift apart.
type Participation struct {
	ID          string `json:"id"`
	ChallengeID string `json:"challenge_id"`
	UserID      string `json:"user_id"`

	Status          Status     `json:"status"`
	ProgressDays    int        `json:"progress_days"`
	ConsecutiveDays int        `json:"consecutive_days"`
	CompletionRate  float64    `json:"completion_rate"`
	LastCompleted   *time.Time `json:"last_completed_date,omitempty"`

	StartedAt time.Time  `json:"started_at"`
	EndedAt   time.Time  `json:"ended_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	FailureReason FailureReason `json:"failure_reason,omitempty"`
	FailedAt      *time.Time    `json:"failed_at,omitempty"`
	FailedDate    *time.Time    `json:"failed_date,omitempty"`

	// Travel-log fields. DurationDays overrides the template duration for
	// TRAVEL participations; it is nil for NORMAL ones.
	DurationDays *int   `json:"duration_days,omitempty"`
	LogName      string `json:"log_name,omitempty"`
	Destinations string `json:"destinations,omitempty"`
	Timezone     string `json:"timezone,omitempty"`

	// Version is the optimistic-concurrency token checked on every save.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive reports whether progress mutations are allowed.
func (p *Participation) IsActive() bool {
	return p != nil && p.Status == StatusActive
}

// MarkCompleted transitions ACTIVE -> COMPLETED. Any other starting state is
// an illegal transition.
func (p *Participation) MarkCompleted(now time.Time) error {
	if !p.IsActive() {
		return ErrInvalidTransition
	}
	p.Status = StatusCompleted
	p.CompletedAt = &now
	return nil
}

// MarkFailed transitions ACTIVE -> FAILED, recording the reason and the
// calendar date the failure is attributed to.
func (p *Participation) MarkFailed(reason FailureReason, failedDate, now time.Time) error {
	if !p.IsActive() {
		return ErrInvalidTransition
	}
	day := dateutil.Day(failedDate)
	p.Status = StatusFailed
	p.FailureReason = reason
	p.FailedAt = &now
	p.FailedDate = &day
	return nil
}

// RecordDay stamps a qualifying day: sets LastCompleted, increments
// ProgressDays and maintains the consecutive-day counter. The caller is
// responsible for range gating and same-date dedup.
func (p *Participation) RecordDay(date time.Time) {
	day := dateutil.Day(date)
	if p.LastCompleted != nil && dateutil.SameDay(*p.LastCompleted, dateutil.Yesterday(day)) {
		p.ConsecutiveDays++
	} else {
		p.ConsecutiveDays = 1
	}
	p.LastCompleted = &day
	p.ProgressDays++
}

// RemoveDay undoes one qualifying day, flooring the counter at zero. When no
// progress remains the last-completed date is cleared; otherwise the caller
// supplies the most recent remaining qualifying date (nil keeps it unchanged,
// the best-available-data fallback when the diary lookup is unavailable).
func (p *Participation) RemoveDay(mostRecent *time.Time) {
	if p.ProgressDays > 0 {
		p.ProgressDays--
	}
	if p.ProgressDays == 0 {
		p.LastCompleted = nil
		p.ConsecutiveDays = 0
		return
	}
	if mostRecent != nil {
		day := dateutil.Day(*mostRecent)
		p.LastCompleted = &day
	}
}

// UpdateCompletionRate recomputes the derived percentage. A non-positive
// duration leaves the rate untouched; the rate is undefined in that case.
func (p *Participation) UpdateCompletionRate(effectiveDuration int) {
	if effectiveDuration > 0 {
		p.CompletionRate = float64(p.ProgressDays) / float64(effectiveDuration) * 100.0
	}
}

// CompletedOn reports whether the given calendar date is already stamped.
func (p *Participation) CompletedOn(date time.Time) bool {
	return p.LastCompleted != nil && dateutil.SameDay(*p.LastCompleted, date)
}

// InRange reports whether a date falls inside the participation window.
// Travel logs only count diaries between departure and return, inclusive.
func (p *Participation) InRange(date time.Time) bool {
	if dateutil.Before(date, p.StartedAt) {
		return false
	}
	if !p.EndedAt.IsZero() && dateutil.After(date, p.EndedAt) {
		return false
	}
	return true
}

// ExpiredAt reports whether the window has closed at the given instant.
// The end date itself counts as expired: for NORMAL participations EndedAt is
// midnight of the day after the last qualifying day.
func (p *Participation) ExpiredAt(now time.Time) bool {
	if p.EndedAt.IsZero() {
		return false
	}
	return dateutil.OnOrAfter(now, p.EndedAt)
}

// SetEndDate computes EndedAt for NORMAL participations: local midnight of the
// day after the last qualifying day. Travel logs keep the user-supplied return
// date and are never recomputed.
func (p *Participation) SetEndDate(tpl *ChallengeTemplate) {
	if tpl == nil || tpl.Type == TypeTravel {
		return
	}
	if tpl.DurationDays == nil || p.StartedAt.IsZero() {
		return
	}
	p.EndedAt = dateutil.AddDays(p.StartedAt, *tpl.DurationDays)
}

// LastExpectedDay returns the final qualifying calendar date
// (start + duration - 1), or the zero time for a non-positive duration.
func (p *Participation) LastExpectedDay(effectiveDuration int) time.Time {
	if effectiveDuration <= 0 {
		return time.Time{}
	}
	return dateutil.AddDays(p.StartedAt, effectiveDuration-1)
}
