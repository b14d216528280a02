package idempotency

import (
	"context"
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

// TryClaim atomically claims ref. The conditional insert under the primary
// key is the whole mechanism: there is no read-then-write window.
func (r *Repository) TryClaim(ctx context.Context, ref string, kind RefKind) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		INSERT INTO idempotency_keys (ref, kind)
		VALUES ($1, $2)
		ON CONFLICT (ref) DO NOTHING
	`, ref, string(kind))
	if err != nil {
		return false, fmt.Errorf("%w: claim ref", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	return rows == 1, nil
}

// TryClaimTx claims ref inside the caller's transaction so the claim commits
// or rolls back together with the balance mutation it guards.
func (r *Repository) TryClaimTx(ctx context.Context, tx *sqlx.Tx, ref string, kind RefKind) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO idempotency_keys (ref, kind)
		VALUES ($1, $2)
		ON CONFLICT (ref) DO NOTHING
	`, ref, string(kind))
	if err != nil {
		return false, fmt.Errorf("%w: claim ref", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	return rows == 1, nil
}

// TryClaimExpiring claims ref with a TTL. An existing expired claim is taken
// over in the same statement, still without a read-then-write pair.
func (r *Repository) TryClaimExpiring(ctx context.Context, ref string, kind RefKind, ttl time.Duration) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		INSERT INTO idempotency_keys (ref, kind, expires_at)
		VALUES ($1, $2, now() + $3::interval)
		ON CONFLICT (ref) DO UPDATE
		SET claimed_at = now(), expires_at = excluded.expires_at
		WHERE idempotency_keys.expires_at IS NOT NULL
		  AND idempotency_keys.expires_at < now()
	`, ref, string(kind), fmt.Sprintf("%d milliseconds", ttl.Milliseconds()))
	if err != nil {
		return false, fmt.Errorf("%w: claim expiring ref", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	return rows == 1, nil
}

// Exists reports whether ref is already claimed. Read-only, used by the
// cache-warming path; correctness never depends on it.
func (r *Repository) Exists(ctx context.Context, ref string) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var exists bool
	err := r.db.GetContext(ctx2, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM idempotency_keys
			WHERE ref = $1 AND (expires_at IS NULL OR expires_at >= now())
		)
	`, ref)
	if err != nil {
		return false, fmt.Errorf("%w: check ref", ErrInternal)
	}
	return exists, nil
}

// PurgeExpired removes stale request-dedup claims. Payment claims have no
// expiry and are never purged.
func (r *Repository) PurgeExpired(ctx context.Context) (int64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		DELETE FROM idempotency_keys
		WHERE expires_at IS NOT NULL AND expires_at < now()
	`)
	if err != nil {
		return 0, fmt.Errorf("%w: purge expired refs", ErrInternal)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
