package sweep

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/moodlog/backend/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDecideCompletesExpiredAtQuota(t *testing.T) {
	p := &domain.Participation{
		Status:       domain.StatusActive,
		StartedAt:    day(2024, 1, 1),
		EndedAt:      day(2024, 1, 8),
		ProgressDays: 7,
	}

	d := Decide(p, 7, true, day(2024, 1, 8), day(2024, 1, 7))
	assert.Equal(t, OutcomeCompleted, d.Outcome)
}

func TestDecideFailsExpiredBelowQuota(t *testing.T) {
	p := &domain.Participation{
		Status:       domain.StatusActive,
		StartedAt:    day(2024, 1, 1),
		EndedAt:      day(2024, 1, 8),
		ProgressDays: 4,
	}

	d := Decide(p, 7, false, day(2024, 1, 8), day(2024, 1, 7))
	assert.Equal(t, OutcomeExpired, d.Outcome)
	assert.Equal(t, domain.FailureExpired, d.Reason)
	assert.Equal(t, day(2024, 1, 8), d.FailedDate)
}

func TestDecideExpiredZeroDurationNeverCompletes(t *testing.T) {
	p := &domain.Participation{
		Status:       domain.StatusActive,
		StartedAt:    day(2024, 1, 1),
		EndedAt:      day(2024, 1, 8),
		ProgressDays: 30,
	}

	d := Decide(p, 0, false, day(2024, 1, 8), day(2024, 1, 7))
	assert.Equal(t, OutcomeExpired, d.Outcome)
}

func TestDecideExpirationTrumpsMissedDay(t *testing.T) {
	// expired AND missed yesterday: the verdict is expiration, checked first
	p := &domain.Participation{
		Status:       domain.StatusActive,
		StartedAt:    day(2024, 1, 1),
		EndedAt:      day(2024, 1, 8),
		ProgressDays: 3,
	}

	d := Decide(p, 7, true, day(2024, 1, 9), day(2024, 1, 8))
	assert.Equal(t, OutcomeExpired, d.Outcome)
	assert.Equal(t, domain.FailureExpired, d.Reason)
}

func TestDecideDailyMissedYesterday(t *testing.T) {
	last := day(2024, 1, 3)
	p := &domain.Participation{
		Status:        domain.StatusActive,
		StartedAt:     day(2024, 1, 1),
		EndedAt:       day(2024, 1, 8),
		ProgressDays:  3,
		LastCompleted: &last,
	}

	d := Decide(p, 7, true, day(2024, 1, 5), day(2024, 1, 4))
	assert.Equal(t, OutcomeMissedDay, d.Outcome)
	assert.Equal(t, domain.FailureMissedDay, d.Reason)
	assert.Equal(t, day(2024, 1, 4), d.FailedDate)
}

func TestDecideDailyOnTrack(t *testing.T) {
	last := day(2024, 1, 4)
	p := &domain.Participation{
		Status:        domain.StatusActive,
		StartedAt:     day(2024, 1, 1),
		EndedAt:       day(2024, 1, 8),
		ProgressDays:  4,
		LastCompleted: &last,
	}

	d := Decide(p, 7, true, day(2024, 1, 5), day(2024, 1, 4))
	assert.Equal(t, OutcomeNone, d.Outcome)
}

func TestDecideDailyWithNoEntriesYetFails(t *testing.T) {
	p := &domain.Participation{
		Status:    domain.StatusActive,
		StartedAt: day(2024, 1, 4),
		EndedAt:   day(2024, 1, 11),
	}

	d := Decide(p, 7, true, day(2024, 1, 5), day(2024, 1, 4))
	assert.Equal(t, OutcomeMissedDay, d.Outcome)
}

func TestDecideNonDailySkipsMissCheck(t *testing.T) {
	p := &domain.Participation{
		Status:       domain.StatusActive,
		StartedAt:    day(2024, 1, 1),
		EndedAt:      day(2024, 2, 1),
		ProgressDays: 2,
	}

	d := Decide(p, 30, false, day(2024, 1, 10), day(2024, 1, 9))
	assert.Equal(t, OutcomeNone, d.Outcome)
}

func TestDecideOpenEndedTravelNeverExpires(t *testing.T) {
	p := &domain.Participation{
		Status:       domain.StatusActive,
		StartedAt:    day(2024, 1, 1),
		ProgressDays: 2,
	}

	d := Decide(p, 5, false, day(2030, 1, 1), day(2029, 12, 31))
	assert.Equal(t, OutcomeNone, d.Outcome)
}
