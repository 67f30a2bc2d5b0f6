package enrollment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodlog/backend/domain"
	"github.com/moodlog/backend/repository"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(n int) *int { return &n }

type memStore struct {
	rows map[string]*domain.Participation
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]*domain.Participation)}
}

func (f *memStore) GetByID(_ context.Context, id string) (*domain.Participation, error) {
	p, ok := f.rows[id]
	if !ok {
		return nil, domain.ErrParticipationNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *memStore) Create(_ context.Context, p *domain.Participation) (*domain.Participation, error) {
	cp := *p
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.Version = 1
	cp.CreatedAt = time.Now()
	f.rows[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *memStore) CompareAndSave(_ context.Context, p *domain.Participation) error {
	stored, ok := f.rows[p.ID]
	if !ok || stored.Version != p.Version || stored.Status != domain.StatusActive {
		return domain.ErrVersionConflict
	}
	cp := *p
	cp.Version++
	f.rows[p.ID] = &cp
	return nil
}

func (f *memStore) ListActive(_ context.Context) ([]domain.Participation, error) { return nil, nil }

func (f *memStore) List(_ context.Context, filter repository.ParticipationFilter) ([]domain.Participation, error) {
	var out []domain.Participation
	for _, p := range f.rows {
		if filter.UserID != "" && p.UserID != filter.UserID {
			continue
		}
		match := len(filter.Statuses) == 0
		for _, s := range filter.Statuses {
			if s == p.Status {
				match = true
			}
		}
		if !match {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (f *memStore) FindActiveByUserAndChallenge(_ context.Context, userID, challengeID string) (*domain.Participation, error) {
	for _, p := range f.rows {
		if p.UserID == userID && p.ChallengeID == challengeID && p.Status == domain.StatusActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrParticipationNotFound
}

type memCatalog struct {
	byID map[string]*domain.ChallengeTemplate
}

func (f *memCatalog) GetByID(_ context.Context, id string) (*domain.ChallengeTemplate, error) {
	tpl, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrTemplateNotFound
	}
	return tpl, nil
}

func (f *memCatalog) FindActiveByType(_ context.Context, typ domain.ChallengeType) (*domain.ChallengeTemplate, error) {
	for _, tpl := range f.byID {
		if tpl.Type == typ && tpl.Active {
			return tpl, nil
		}
	}
	return nil, domain.ErrTemplateNotFound
}

func fixture() (*memStore, *Service) {
	store := newMemStore()
	catalog := &memCatalog{byID: map[string]*domain.ChallengeTemplate{
		"c1":     {ID: "c1", Title: "30일 일기", Type: domain.TypeNormal, DurationDays: intPtr(30), Daily: true, Active: true},
		"travel": {ID: "travel", Title: "여행 기록", Type: domain.TypeTravel, Active: true},
	}}
	svc := New(store, catalog, nil).
		WithClock(func() time.Time { return time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC) })
	return store, svc
}

func TestJoinCreatesActiveParticipation(t *testing.T) {
	_, svc := fixture()

	p, err := svc.Join(context.Background(), "u1", "c1")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusActive, p.Status)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "c1", p.ChallengeID)
	assert.Equal(t, 0, p.ProgressDays)
	// start Jan 1, 30 days: window closes at Jan 31 midnight
	assert.Equal(t, day(2024, 1, 31), p.EndedAt)
}

func TestJoinRejectsSecondActiveParticipation(t *testing.T) {
	_, svc := fixture()
	ctx := context.Background()

	_, err := svc.Join(ctx, "u1", "c1")
	require.NoError(t, err)

	_, err = svc.Join(ctx, "u1", "c1")
	assert.ErrorIs(t, err, domain.ErrAlreadyParticipating)

	// a different user is unaffected
	_, err = svc.Join(ctx, "u2", "c1")
	assert.NoError(t, err)
}

func TestJoinUnknownChallenge(t *testing.T) {
	_, svc := fixture()

	_, err := svc.Join(context.Background(), "u1", "nope")
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
}

func TestCreateTravelLog(t *testing.T) {
	_, svc := fixture()

	p, err := svc.CreateTravelLog(context.Background(), "u1", TravelLogRequest{
		Destinations:  `[{"name":"Tokyo"},{"name":"Kyoto"}]`,
		DepartureDate: day(2024, 3, 1),
		ReturnDate:    day(2024, 3, 5),
		Timezone:      "Asia/Tokyo",
	})
	require.NoError(t, err)

	assert.Equal(t, "travel", p.ChallengeID)
	assert.Equal(t, day(2024, 3, 1), p.StartedAt)
	assert.Equal(t, day(2024, 3, 5), p.EndedAt)
	require.NotNil(t, p.DurationDays)
	assert.Equal(t, 5, *p.DurationDays) // both travel days count
	assert.Equal(t, "Tokyo", p.LogName)
	assert.Equal(t, "Asia/Tokyo", p.Timezone)
}

func TestCreateTravelLogKeepsExplicitName(t *testing.T) {
	_, svc := fixture()

	p, err := svc.CreateTravelLog(context.Background(), "u1", TravelLogRequest{
		LogName:       "봄 여행",
		Destinations:  `[{"name":"Tokyo"}]`,
		DepartureDate: day(2024, 3, 1),
		ReturnDate:    day(2024, 3, 1),
	})
	require.NoError(t, err)

	assert.Equal(t, "봄 여행", p.LogName)
	require.NotNil(t, p.DurationDays)
	assert.Equal(t, 1, *p.DurationDays)
}

func TestCreateTravelLogValidation(t *testing.T) {
	_, svc := fixture()
	ctx := context.Background()

	_, err := svc.CreateTravelLog(ctx, "u1", TravelLogRequest{
		Destinations: `[{"name":"Tokyo"}]`,
	})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	_, err = svc.CreateTravelLog(ctx, "u1", TravelLogRequest{
		Destinations:  `[{"name":"Tokyo"}]`,
		DepartureDate: day(2024, 3, 5),
		ReturnDate:    day(2024, 3, 1),
	})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	_, err = svc.CreateTravelLog(ctx, "u1", TravelLogRequest{
		Destinations:  `[]`,
		DepartureDate: day(2024, 3, 1),
		ReturnDate:    day(2024, 3, 5),
	})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}

func TestHistoryListsUserParticipations(t *testing.T) {
	_, svc := fixture()
	ctx := context.Background()

	quit, err := svc.Join(ctx, "u1", "c1")
	require.NoError(t, err)
	require.NoError(t, svc.Quit(ctx, "u1", quit.ID))

	_, err = svc.CreateTravelLog(ctx, "u1", TravelLogRequest{
		Destinations:  `[{"name":"Tokyo"}]`,
		DepartureDate: day(2024, 3, 1),
		ReturnDate:    day(2024, 3, 5),
	})
	require.NoError(t, err)

	_, err = svc.Join(ctx, "u2", "c1")
	require.NoError(t, err)

	all, err := svc.History(ctx, "u1", nil, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	failed, err := svc.History(ctx, "u1", []domain.Status{domain.StatusFailed}, 10, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, domain.FailureUserQuit, failed[0].FailureReason)

	none, err := svc.History(ctx, "stranger", nil, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestQuitFailsParticipation(t *testing.T) {
	store, svc := fixture()
	ctx := context.Background()

	p, err := svc.Join(ctx, "u1", "c1")
	require.NoError(t, err)

	require.NoError(t, svc.Quit(ctx, "u1", p.ID))

	stored := store.rows[p.ID]
	assert.Equal(t, domain.StatusFailed, stored.Status)
	assert.Equal(t, domain.FailureUserQuit, stored.FailureReason)
	require.NotNil(t, stored.FailedDate)
}

func TestQuitRequiresOwnership(t *testing.T) {
	_, svc := fixture()
	ctx := context.Background()

	p, err := svc.Join(ctx, "u1", "c1")
	require.NoError(t, err)

	err = svc.Quit(ctx, "intruder", p.ID)
	assert.ErrorIs(t, err, domain.ErrParticipationNotFound)
}

func TestQuitFinalizedParticipation(t *testing.T) {
	store, svc := fixture()
	ctx := context.Background()

	p, err := svc.Join(ctx, "u1", "c1")
	require.NoError(t, err)
	require.NoError(t, svc.Quit(ctx, "u1", p.ID))

	err = svc.Quit(ctx, "u1", p.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.FailureUserQuit, store.rows[p.ID].FailureReason)
}
