package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moodlog/backend/domain"
	"github.com/moodlog/backend/repository"
)

type templateCatalog struct {
	pool *pgxpool.Pool
}

// NewTemplateCatalog returns a Postgres-backed implementation of TemplateCatalog.
func NewTemplateCatalog(pool *pgxpool.Pool) repository.TemplateCatalog {
	return &templateCatalog{pool: pool}
}

func (r *templateCatalog) GetByID(ctx context.Context, id string) (*domain.ChallengeTemplate, error) {
	const query = `
	SELECT id, title, description, type, duration_days, daily, active, created_at, updated_at
	FROM challenge_templates
	WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)
	return scanTemplate(row)
}

func (r *templateCatalog) FindActiveByType(ctx context.Context, typ domain.ChallengeType) (*domain.ChallengeTemplate, error) {
	const query = `
	SELECT id, title, description, type, duration_days, daily, active, created_at, updated_at
	FROM challenge_templates
	WHERE type = $1 AND active
	LIMIT 1
	`
	row := r.pool.QueryRow(ctx, query, typ)
	return scanTemplate(row)
}

func scanTemplate(row interface {
	Scan(dest ...interface{}) error
}) (*domain.ChallengeTemplate, error) {
	var tpl domain.ChallengeTemplate
	var description *string

	if err := row.Scan(
		&tpl.ID,
		&tpl.Title,
		&description,
		&tpl.Type,
		&tpl.DurationDays,
		&tpl.Daily,
		&tpl.Active,
		&tpl.CreatedAt,
		&tpl.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, err
	}

	tpl.Description = deref(description)
	return &tpl, nil
}
