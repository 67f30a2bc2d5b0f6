package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moodlog/backend/domain"
	"github.com/moodlog/backend/repository"
)

const participationColumns = `
	id, challenge_id, user_id, status, progress_days, consecutive_days,
	completion_rate, last_completed_date, started_at, ended_at, completed_at,
	failure_reason, failed_at, failed_date, duration_days, log_name,
	destinations, timezone, version, created_at, updated_at`

type participationRepository struct {
	pool *pgxpool.Pool
}

// NewParticipationRepository returns a Postgres-backed implementation of
// ParticipationRepository.
func NewParticipationRepository(pool *pgxpool.Pool) repository.ParticipationRepository {
	return &participationRepository{pool: pool}
}

func (r *participationRepository) GetByID(ctx context.Context, id string) (*domain.Participation, error) {
	const query = `
	SELECT ` + participationColumns + `
	FROM challenge_participations
	WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)
	return scanParticipation(row)
}

func (r *participationRepository) Create(ctx context.Context, p *domain.Participation) (*domain.Participation, error) {
	if p == nil {
		return nil, domain.ErrInvalidPayload
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO challenge_participations (
		id, challenge_id, user_id, status, progress_days, consecutive_days,
		completion_rate, last_completed_date, started_at, ended_at,
		duration_days, log_name, destinations, timezone
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	RETURNING version, created_at, updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		p.ID,
		p.ChallengeID,
		p.UserID,
		p.Status,
		p.ProgressDays,
		p.ConsecutiveDays,
		p.CompletionRate,
		p.LastCompleted,
		p.StartedAt,
		nullTime(p.EndedAt),
		p.DurationDays,
		nullString(p.LogName),
		nullString(p.Destinations),
		nullString(p.Timezone),
	).Scan(&p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	return p, nil
}

// CompareAndSave persists the row only when it is still ACTIVE at the stored
// version. Status transitions ride on the same statement, so finalizing and
// progress updates are a single atomic write.
func (r *participationRepository) CompareAndSave(ctx context.Context, p *domain.Participation) error {
	if p == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE challenge_participations
	SET status = $3,
		progress_days = $4,
		consecutive_days = $5,
		completion_rate = $6,
		last_completed_date = $7,
		completed_at = $8,
		failure_reason = $9,
		failed_at = $10,
		failed_date = $11,
		version = version + 1,
		updated_at = NOW()
	WHERE id = $1
	  AND version = $2
	  AND status = 'ACTIVE'
	RETURNING version, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		p.ID,
		p.Version,
		p.Status,
		p.ProgressDays,
		p.ConsecutiveDays,
		p.CompletionRate,
		p.LastCompleted,
		p.CompletedAt,
		nullString(string(p.FailureReason)),
		p.FailedAt,
		p.FailedDate,
	).Scan(&p.Version, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrVersionConflict
		}
		return err
	}
	return nil
}

func (r *participationRepository) ListActive(ctx context.Context) ([]domain.Participation, error) {
	const query = `
	SELECT ` + participationColumns + `
	FROM challenge_participations
	WHERE status = 'ACTIVE'
	ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectParticipations(rows)
}

func (r *participationRepository) List(ctx context.Context, filter repository.ParticipationFilter) ([]domain.Participation, error) {
	const query = `
	SELECT ` + participationColumns + `
	FROM challenge_participations
	WHERE ($1 = '' OR user_id = $1)
	  AND (cardinality($2::text[]) = 0 OR status = ANY($2))
	ORDER BY created_at DESC
	LIMIT $3 OFFSET $4
	`
	statuses := make([]string, 0, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses = append(statuses, string(s))
	}
	rows, err := r.pool.Query(ctx, query, filter.UserID, statuses, clampLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectParticipations(rows)
}

func (r *participationRepository) FindActiveByUserAndChallenge(ctx context.Context, userID, challengeID string) (*domain.Participation, error) {
	const query = `
	SELECT ` + participationColumns + `
	FROM challenge_participations
	WHERE user_id = $1 AND challenge_id = $2 AND status = 'ACTIVE'
	LIMIT 1
	`
	row := r.pool.QueryRow(ctx, query, userID, challengeID)
	return scanParticipation(row)
}

func collectParticipations(rows pgx.Rows) ([]domain.Participation, error) {
	var participations []domain.Participation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		participations = append(participations, *p)
	}
	return participations, rows.Err()
}

func scanParticipation(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Participation, error) {
	var p domain.Participation
	var (
		endedAt       *time.Time
		failureReason *string
		logName       *string
		destinations  *string
		timezone      *string
	)

	if err := row.Scan(
		&p.ID,
		&p.ChallengeID,
		&p.UserID,
		&p.Status,
		&p.ProgressDays,
		&p.ConsecutiveDays,
		&p.CompletionRate,
		&p.LastCompleted,
		&p.StartedAt,
		&endedAt,
		&p.CompletedAt,
		&failureReason,
		&p.FailedAt,
		&p.FailedDate,
		&p.DurationDays,
		&logName,
		&destinations,
		&timezone,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrParticipationNotFound
		}
		return nil, err
	}

	if endedAt != nil {
		p.EndedAt = *endedAt
	}
	if failureReason != nil {
		p.FailureReason = domain.FailureReason(*failureReason)
	}
	p.LogName = deref(logName)
	p.Destinations = deref(destinations)
	p.Timezone = deref(timezone)

	return &p, nil
}
