package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moodlog/backend/repository"
)

type diaryCollaborator struct {
	pool *pgxpool.Pool
}

// NewDiaryCollaborator returns the Postgres-backed view over the diary
// subsystem's tables. Only date facts are read here; diary content stays
// opaque to this service.
func NewDiaryCollaborator(pool *pgxpool.Pool) repository.DiaryCollaborator {
	return &diaryCollaborator{pool: pool}
}

func (r *diaryCollaborator) MostRecentDate(ctx context.Context, participationID string) (*time.Time, error) {
	const query = `
	SELECT MAX(entry_date)
	FROM diaries
	WHERE participation_id = $1
	  AND NOT is_deleted
	`
	var mostRecent *time.Time
	if err := r.pool.QueryRow(ctx, query, participationID).Scan(&mostRecent); err != nil {
		return nil, err
	}
	return mostRecent, nil
}

func (r *diaryCollaborator) ExistsOnDate(ctx context.Context, participationID string, date time.Time, excludeDiaryID string) (bool, error) {
	const query = `
	SELECT EXISTS (
		SELECT 1
		FROM diaries
		WHERE participation_id = $1
		  AND entry_date = $2::date
		  AND id <> $3
		  AND NOT is_deleted
	)
	`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, participationID, date, excludeDiaryID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
