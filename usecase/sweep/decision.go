// Package sweep finalizes active participations once per calendar day:
// expired ones are completed or failed depending on their progress, and daily
// challenges that missed the previous day are failed immediately. The
// decision itself is a pure function so it can be tested without a clock,
// scheduler, or store.
package sweep

import (
	"time"

	"github.com/moodlog/backend/domain"
	"github.com/moodlog/backend/pkg/dateutil"
)

// Outcome is the sweep verdict for a single participation.
type Outcome string

const (
	// OutcomeNone leaves the participation untouched.
	OutcomeNone Outcome = "none"
	// OutcomeCompleted finalizes an expired participation that met its quota.
	OutcomeCompleted Outcome = "completed"
	// OutcomeExpired fails an expired participation short of its quota.
	OutcomeExpired Outcome = "expired"
	// OutcomeMissedDay fails a daily challenge with no qualifying day yesterday.
	OutcomeMissedDay Outcome = "missed_day"
)

// Decision is the full verdict, including the failure attribution the
// transition needs.
type Decision struct {
	Outcome    Outcome
	Reason     domain.FailureReason
	FailedDate time.Time
}

// Decide evaluates one active participation against today's and yesterday's
// calendar dates. The expiration check runs strictly before the daily-miss
// check: a participation finalized by expiration is never also judged for a
// missed day in the same pass.
//
// There is no grace window. A daily challenge whose last qualifying day is
// not yesterday fails immediately, even when the miss is a single day.
func Decide(p *domain.Participation, effectiveDuration int, daily bool, today, yesterday time.Time) Decision {
	if p.ExpiredAt(today) {
		if effectiveDuration > 0 && p.ProgressDays >= effectiveDuration {
			return Decision{Outcome: OutcomeCompleted}
		}
		return Decision{
			Outcome:    OutcomeExpired,
			Reason:     domain.FailureExpired,
			FailedDate: today,
		}
	}

	if daily && !(p.LastCompleted != nil && dateutil.SameDay(*p.LastCompleted, yesterday)) {
		return Decision{
			Outcome:    OutcomeMissedDay,
			Reason:     domain.FailureMissedDay,
			FailedDate: yesterday,
		}
	}

	return Decision{Outcome: OutcomeNone}
}
