package progress

import (
	"time"

	"github.com/moodlog/backend/domain"
	"github.com/moodlog/backend/pkg/dateutil"
)

// Evaluate decides whether a participation has just met its success
// condition. Either clause is sufficient:
//
//   - date is the last expected qualifying day (start + duration - 1) and a
//     qualifying day was just recorded for it, or
//   - progressDays reached the effective duration (templates that allow
//     non-consecutive days toward a cumulative target).
//
// A non-positive effective duration never completes; the caller logs that as
// a data-quality condition. Evaluate is pure: it inspects only its arguments.
func Evaluate(p *domain.Participation, tpl *domain.ChallengeTemplate, date time.Time) domain.CompletionSignal {
	duration := tpl.EffectiveDuration(p)
	if duration <= 0 {
		return domain.CompletionSignal{}
	}

	lastDay := p.LastExpectedDay(duration)
	if dateutil.SameDay(date, lastDay) || p.ProgressDays >= duration {
		return domain.CompletedSignal(tpl.Title, p.ProgressDays, duration)
	}
	return domain.CompletionSignal{}
}
