package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/moodlog/backend/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(n int) *int { return &n }

func TestEvaluateCompletesOnLastExpectedDay(t *testing.T) {
	tpl := &domain.ChallengeTemplate{Title: "7일 연속 일기", Type: domain.TypeNormal, DurationDays: intPtr(7)}
	p := &domain.Participation{
		Status:       domain.StatusActive,
		StartedAt:    day(2024, 1, 1),
		ProgressDays: 5, // missed days along the way
	}

	signal := Evaluate(p, tpl, day(2024, 1, 7))

	assert.True(t, signal.Completed)
	assert.Equal(t, "7일 연속 일기", signal.Title)
	assert.Equal(t, 5, signal.ProgressDays)
	assert.Equal(t, 7, signal.RequiredDays)
}

func TestEvaluateCompletesAtQuota(t *testing.T) {
	tpl := &domain.ChallengeTemplate{Title: "weekly", Type: domain.TypeNormal, DurationDays: intPtr(7)}
	p := &domain.Participation{
		Status:       domain.StatusActive,
		StartedAt:    day(2024, 1, 1),
		ProgressDays: 7,
	}

	// quota met even though today is not the last expected day
	signal := Evaluate(p, tpl, day(2024, 1, 9))
	assert.True(t, signal.Completed)
}

func TestEvaluateIncomplete(t *testing.T) {
	tpl := &domain.ChallengeTemplate{Type: domain.TypeNormal, DurationDays: intPtr(7)}
	p := &domain.Participation{
		Status:       domain.StatusActive,
		StartedAt:    day(2024, 1, 1),
		ProgressDays: 3,
	}

	signal := Evaluate(p, tpl, day(2024, 1, 4))
	assert.False(t, signal.Completed)
	assert.Equal(t, domain.CompletionSignal{}, signal)
}

func TestEvaluateTravelUsesParticipationDuration(t *testing.T) {
	tpl := &domain.ChallengeTemplate{Title: "여행", Type: domain.TypeTravel}
	p := &domain.Participation{
		Status:       domain.StatusActive,
		StartedAt:    day(2024, 1, 1),
		ProgressDays: 5,
		DurationDays: intPtr(5),
	}

	signal := Evaluate(p, tpl, day(2024, 1, 3))
	assert.True(t, signal.Completed)
	assert.Equal(t, 5, signal.RequiredDays)
}

func TestEvaluateZeroDurationNeverCompletes(t *testing.T) {
	tpl := &domain.ChallengeTemplate{Type: domain.TypeNormal}
	p := &domain.Participation{
		Status:       domain.StatusActive,
		StartedAt:    day(2024, 1, 1),
		ProgressDays: 100,
	}

	assert.False(t, Evaluate(p, tpl, day(2024, 1, 1)).Completed)
}
