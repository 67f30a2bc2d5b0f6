package repository

import (
	"context"

	"github.com/moodlog/backend/domain"
)

// ParticipationFilter narrows participation listings.
type ParticipationFilter struct {
	UserID   string
	Statuses []domain.Status
	Limit    int
	Offset   int
}

// ParticipationRepository is the durable store for participation rows.
//
// CompareAndSave is the single write path for progress and lifecycle
// mutations: it persists the row only when the stored version matches
// p.Version and the row is still ACTIVE, so the event-driven path and the
// daily sweep cannot silently overwrite each other at the day boundary.
// A failed check surfaces domain.ErrVersionConflict.
type ParticipationRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Participation, error)
	Create(ctx context.Context, p *domain.Participation) (*domain.Participation, error)
	CompareAndSave(ctx context.Context, p *domain.Participation) error
	ListActive(ctx context.Context) ([]domain.Participation, error)
	List(ctx context.Context, filter ParticipationFilter) ([]domain.Participation, error)
	FindActiveByUserAndChallenge(ctx context.Context, userID, challengeID string) (*domain.Participation, error)
}
