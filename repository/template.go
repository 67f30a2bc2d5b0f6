package repository

import (
	"context"

	"github.com/moodlog/backend/domain"
)

// TemplateCatalog reads challenge templates. The catalog is maintained by an
// external admin surface; this service only consumes it, so the interface is
// read-only and implementations are free to cache aggressively.
type TemplateCatalog interface {
	GetByID(ctx context.Context, id string) (*domain.ChallengeTemplate, error)
	// FindActiveByType returns the single active template of the given type,
	// e.g. the shared TRAVEL template every travel log hangs off.
	FindActiveByType(ctx context.Context, typ domain.ChallengeType) (*domain.ChallengeTemplate, error)
}
