package generation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, g *Generation) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO generations (id, identity_key, kind, prompt, free, cost, status, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, g.ID, g.IdentityKey, g.Kind, g.Prompt, g.Free, g.Cost, string(g.Status), g.CorrelationID)
	if err != nil {
		return fmt.Errorf("%w: insert generation", ErrInternal)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Generation, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var g Generation
	err := r.db.GetContext(ctx2, &g, `
		SELECT id, identity_key, kind, prompt, free, cost, status, correlation_id,
		       job_id, artifact_url, thumbnail_url, created_at, finished_at
		FROM generations
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get generation", ErrInternal)
	}
	return &g, nil
}

func (r *Repository) SetJob(ctx context.Context, id, jobID string) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		UPDATE generations SET job_id = $2 WHERE id = $1
	`, id, jobID)
	if err != nil {
		return fmt.Errorf("%w: set job", ErrInternal)
	}
	return nil
}

// Finish records the terminal outcome and artifact locations.
func (r *Repository) Finish(ctx context.Context, id string, status Status, artifactURL, thumbnailURL *string) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		UPDATE generations
		SET status = $2, artifact_url = $3, thumbnail_url = $4, finished_at = now()
		WHERE id = $1
	`, id, string(status), artifactURL, thumbnailURL)
	if err != nil {
		return fmt.Errorf("%w: finish generation", ErrInternal)
	}
	return nil
}

// ListByIdentity returns the identity's recent generations, newest first.
func (r *Repository) ListByIdentity(ctx context.Context, identityKey string, limit int) ([]Generation, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	out := make([]Generation, 0)
	err := r.db.SelectContext(ctx2, &out, `
		SELECT id, identity_key, kind, prompt, free, cost, status, correlation_id,
		       job_id, artifact_url, thumbnail_url, created_at, finished_at
		FROM generations
		WHERE identity_key = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, identityKey, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list generations", ErrInternal)
	}
	return out, nil
}
