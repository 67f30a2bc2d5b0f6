package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodlog/backend/domain"
	"github.com/moodlog/backend/internal/infrastructure/buffer"
	"github.com/moodlog/backend/repository"
	"github.com/moodlog/backend/usecase/progress"
)

type stubStore struct {
	rows   map[string]*domain.Participation
	getErr error
}

func (f *stubStore) GetByID(_ context.Context, id string) (*domain.Participation, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.rows[id]
	if !ok {
		return nil, domain.ErrParticipationNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *stubStore) Create(_ context.Context, p *domain.Participation) (*domain.Participation, error) {
	return p, nil
}

func (f *stubStore) CompareAndSave(_ context.Context, p *domain.Participation) error {
	stored, ok := f.rows[p.ID]
	if !ok || stored.Version != p.Version || stored.Status != domain.StatusActive {
		return domain.ErrVersionConflict
	}
	cp := *p
	cp.Version++
	f.rows[p.ID] = &cp
	return nil
}

func (f *stubStore) ListActive(_ context.Context) ([]domain.Participation, error) { return nil, nil }

func (f *stubStore) List(_ context.Context, _ repository.ParticipationFilter) ([]domain.Participation, error) {
	return nil, nil
}

func (f *stubStore) FindActiveByUserAndChallenge(_ context.Context, _, _ string) (*domain.Participation, error) {
	return nil, domain.ErrParticipationNotFound
}

type stubCatalog struct {
	tpl *domain.ChallengeTemplate
}

func (f *stubCatalog) GetByID(_ context.Context, _ string) (*domain.ChallengeTemplate, error) {
	return f.tpl, nil
}

func (f *stubCatalog) FindActiveByType(_ context.Context, _ domain.ChallengeType) (*domain.ChallengeTemplate, error) {
	return f.tpl, nil
}

type stubDiaries struct{}

func (stubDiaries) MostRecentDate(_ context.Context, _ string) (*time.Time, error) {
	return nil, nil
}

func (stubDiaries) ExistsOnDate(_ context.Context, _ string, _ time.Time, _ string) (bool, error) {
	return false, nil
}

type stubMonitor struct{ online bool }

func (m stubMonitor) IsOnline() bool { return m.online }

func processorFixture(t *testing.T, online bool) (*EventProcessor, *buffer.Queue, *stubStore) {
	t.Helper()

	queue, err := buffer.Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { queue.Close() })

	duration := 7
	store := &stubStore{rows: map[string]*domain.Participation{
		"p1": {
			ID: "p1", ChallengeID: "c1", UserID: "u1",
			Status:    domain.StatusActive,
			StartedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Version:   1,
		},
	}}
	catalog := &stubCatalog{tpl: &domain.ChallengeTemplate{
		ID: "c1", Title: "7-day diary", Type: domain.TypeNormal,
		DurationDays: &duration, Daily: true, Active: true,
	}}
	tracker := progress.New(store, stubDiaries{}, catalog, nil)

	ep := NewEventProcessor(queue, stubMonitor{online: online}, tracker, nil, ProcessorConfig{
		Interval:   time.Minute,
		BatchSize:  10,
		MaxRetries: 2,
		Retention:  time.Hour,
	})
	return ep, queue, store
}

func createdEvent(diaryID string) domain.DiaryEvent {
	return domain.DiaryEvent{
		Op:              domain.DiaryCreated,
		DiaryID:         diaryID,
		UserID:          "u1",
		Date:            time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		ParticipationID: "p1",
	}
}

func TestDrainAppliesBufferedEvents(t *testing.T) {
	ep, queue, store := processorFixture(t, true)
	require.NoError(t, ep.Enqueue(createdEvent("d1")))

	require.NoError(t, ep.Drain(context.Background()))

	size, err := queue.Size()
	require.NoError(t, err)
	assert.Equal(t, 0, size)
	assert.Equal(t, 1, store.rows["p1"].ProgressDays)
}

func TestDrainSkipsWhileOffline(t *testing.T) {
	ep, queue, store := processorFixture(t, false)
	require.NoError(t, ep.Enqueue(createdEvent("d1")))

	require.NoError(t, ep.Drain(context.Background()))

	size, err := queue.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
	assert.Equal(t, 0, store.rows["p1"].ProgressDays)
}

func TestDrainDropsEventsForMissingParticipations(t *testing.T) {
	ep, queue, _ := processorFixture(t, true)
	ev := createdEvent("d1")
	ev.ParticipationID = "gone"
	require.NoError(t, ep.Enqueue(ev))

	require.NoError(t, ep.Drain(context.Background()))

	size, err := queue.Size()
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestDrainRequeuesInfraFailuresUntilMaxRetries(t *testing.T) {
	ep, queue, store := processorFixture(t, true)
	store.getErr = errors.New("connection refused")
	require.NoError(t, ep.Enqueue(createdEvent("d1")))

	// first pass requeues with a bumped retry count
	require.NoError(t, ep.Drain(context.Background()))
	entries, err := queue.Batch(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Retries)

	// second pass exhausts MaxRetries and drops the event
	require.NoError(t, ep.Drain(context.Background()))
	size, err := queue.Size()
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestDrainAppliesRelinkLegsIndependently(t *testing.T) {
	ep, queue, store := processorFixture(t, true)
	require.NoError(t, ep.Enqueue(domain.DiaryEvent{
		Op:                 domain.DiaryRelinked,
		DiaryID:            "d1",
		UserID:             "u1",
		Date:               time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		OldParticipationID: "gone",
		NewParticipationID: "p1",
	}))

	require.NoError(t, ep.Drain(context.Background()))

	size, err := queue.Size()
	require.NoError(t, err)
	assert.Equal(t, 0, size)
	assert.Equal(t, 1, store.rows["p1"].ProgressDays)
}
