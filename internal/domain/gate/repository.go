package gate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pixelforge/pixelforge-api/internal/domain/balance"
)

const queryTimeout = 3 * time.Second

type Repository struct {
	db       *sqlx.DB
	balances *balance.Repository
}

func NewRepository(db *sqlx.DB, balances *balance.Repository) *Repository {
	return &Repository{db: db, balances: balances}
}

// Reserve holds cost credits. The conditional decrement inside the
// transaction is the concurrency control: two racing reserves against an
// insufficient shared balance cannot both pass.
func (r *Repository) Reserve(ctx context.Context, identityKey string, cost int64, correlationID string, ttl time.Duration) error {
	if cost <= 0 {
		return ErrInvalidCost
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	if _, err := r.balances.LockTx(ctx2, tx, identityKey); err != nil {
		return err
	}

	if err := r.balances.ReserveTx(ctx2, tx, identityKey, cost); err != nil {
		if errors.Is(err, balance.ErrInsufficientCredits) {
			return ErrInsufficientBalance
		}
		return err
	}

	if _, err := tx.ExecContext(ctx2, `
		INSERT INTO reservations (correlation_id, identity_key, amount, status, expires_at)
		VALUES ($1, $2, $3, $4, now() + $5::interval)
	`, correlationID, identityKey, cost, string(StatusHeld), fmt.Sprintf("%d milliseconds", ttl.Milliseconds())); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateReservation
		}
		return fmt.Errorf("%w: insert reservation", ErrInternal)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit reservation", ErrInternal)
	}
	return nil
}

// Commit finalizes a held reservation. No balance change: the decrement
// already happened at Reserve. Idempotent per correlation id.
func (r *Repository) Commit(ctx context.Context, correlationID string) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE reservations
		SET status = $2, finalized_at = now()
		WHERE correlation_id = $1 AND status = $3
	`, correlationID, string(StatusCommitted), string(StatusHeld))
	if err != nil {
		return fmt.Errorf("%w: commit reservation", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 1 {
		return nil
	}

	// Nothing flipped: either already final or unknown.
	res, err := r.Get(ctx2, correlationID)
	if err != nil {
		return err
	}
	switch res.Status {
	case StatusCommitted:
		return nil
	case StatusReleased:
		return ErrAlreadyReleased
	}
	return fmt.Errorf("%w: reservation in state %s", ErrInternal, res.Status)
}

// Release refunds a held reservation and flips it to released. Only a held
// row refunds, so a retried release cannot double-refund.
func (r *Repository) Release(ctx context.Context, correlationID string) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	var res Reservation
	err = tx.GetContext(ctx2, &res, `
		SELECT correlation_id, identity_key, amount, job_id, status, created_at, expires_at, finalized_at
		FROM reservations
		WHERE correlation_id = $1
		FOR UPDATE
	`, correlationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: lock reservation", ErrInternal)
	}

	if res.Status != StatusHeld {
		// Already finalized; releasing again is a no-op.
		return nil
	}

	if err := r.balances.RefundTx(ctx2, tx, res.IdentityKey, res.Amount); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx2, `
		UPDATE reservations
		SET status = $2, finalized_at = now()
		WHERE correlation_id = $1
	`, correlationID, string(StatusReleased)); err != nil {
		return fmt.Errorf("%w: release reservation", ErrInternal)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit release", ErrInternal)
	}
	return nil
}

// AttachJob records the downstream job id so the sweep can reconcile an
// ambiguous outcome against the provider.
func (r *Repository) AttachJob(ctx context.Context, correlationID, jobID string) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		UPDATE reservations SET job_id = $2 WHERE correlation_id = $1
	`, correlationID, jobID)
	if err != nil {
		return fmt.Errorf("%w: attach job", ErrInternal)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, correlationID string) (*Reservation, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var res Reservation
	err := r.db.GetContext(ctx2, &res, `
		SELECT correlation_id, identity_key, amount, job_id, status, created_at, expires_at, finalized_at
		FROM reservations
		WHERE correlation_id = $1
	`, correlationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get reservation", ErrInternal)
	}
	return &res, nil
}

// ListExpired returns held reservations past their TTL, oldest first.
func (r *Repository) ListExpired(ctx context.Context, limit int) ([]Reservation, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	out := make([]Reservation, 0)
	err := r.db.SelectContext(ctx2, &out, `
		SELECT correlation_id, identity_key, amount, job_id, status, created_at, expires_at, finalized_at
		FROM reservations
		WHERE status = $1 AND expires_at < now()
		ORDER BY expires_at
		LIMIT $2
	`, string(StatusHeld), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list expired reservations", ErrInternal)
	}
	return out, nil
}
