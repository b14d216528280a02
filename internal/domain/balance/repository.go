package balance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Ensure lazily creates the balance row with zero credits.
func (r *Repository) Ensure(ctx context.Context, identityKey string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO balances (identity_key, credits, total_earned, total_spent)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (identity_key) DO NOTHING
	`, identityKey)
	if err != nil {
		return fmt.Errorf("%w: ensure balance", ErrInternal)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, identityKey string) (*Balance, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := r.Ensure(ctx2, identityKey); err != nil {
		return nil, err
	}

	var b Balance
	err := r.db.GetContext(ctx2, &b, `
		SELECT identity_key, credits, total_earned, total_spent, last_active, created_at
		FROM balances
		WHERE identity_key = $1
	`, identityKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get balance", ErrInternal)
	}
	return &b, nil
}

// BeginTx starts a transaction for callers that need to combine a balance
// mutation with another atomic step (idempotency claim, event append).
func (r *Repository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// LockTx takes the row lock on an identity's balance, creating it first if
// needed. All balance mutations go through this lock, which is what
// linearizes concurrent mutations on one identity.
func (r *Repository) LockTx(ctx context.Context, tx *sqlx.Tx, identityKey string) (*Balance, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO balances (identity_key, credits, total_earned, total_spent)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (identity_key) DO NOTHING
	`, identityKey); err != nil {
		return nil, fmt.Errorf("%w: ensure balance", ErrInternal)
	}

	var b Balance
	err := tx.GetContext(ctx, &b, `
		SELECT identity_key, credits, total_earned, total_spent, last_active, created_at
		FROM balances
		WHERE identity_key = $1
		FOR UPDATE
	`, identityKey)
	if err != nil {
		return nil, fmt.Errorf("%w: lock balance", ErrInternal)
	}
	return &b, nil
}

// CreditTx grants credits and appends the payment event inside the caller's
// transaction. The event insert carries the UNIQUE external_ref constraint,
// so even if an upstream dedup check was skipped the grant cannot apply twice.
func (r *Repository) CreditTx(ctx context.Context, tx *sqlx.Tx, identityKey string, credits int64, ev PaymentEvent) error {
	if credits <= 0 {
		return ErrInvalidAmount
	}

	if _, err := r.LockTx(ctx, tx, identityKey); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE balances
		SET credits = credits + $2,
		    total_earned = total_earned + $2,
		    last_active = now()
		WHERE identity_key = $1
	`, identityKey, credits); err != nil {
		return fmt.Errorf("%w: update balance", ErrInternal)
	}

	if err := r.insertEventTx(ctx, tx, identityKey, credits, ev); err != nil {
		return err
	}

	return nil
}

func (r *Repository) insertEventTx(ctx context.Context, tx *sqlx.Tx, identityKey string, credits int64, ev PaymentEvent) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payment_events (
			id, identity_key, external_ref, kind, amount, credits_granted, metadata
		)
		VALUES (
			gen_random_uuid(), $1, $2, $3, $4, $5, $6
		)
	`, identityKey, ev.ExternalRef, string(ev.Kind), ev.Amount, credits, ev.Metadata)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateReference
		}
		return fmt.Errorf("%w: insert payment event", ErrInternal)
	}
	return nil
}

// ReserveTx conditionally holds cost credits inside the caller's transaction.
// The decrement is conditioned on credits >= cost, which is the concurrency
// control: racing reservations against a shared balance cannot all pass.
func (r *Repository) ReserveTx(ctx context.Context, tx *sqlx.Tx, identityKey string, cost int64) error {
	if cost <= 0 {
		return ErrInvalidAmount
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE balances
		SET credits = credits - $2,
		    total_spent = total_spent + $2,
		    last_active = now()
		WHERE identity_key = $1 AND credits >= $2
	`, identityKey, cost)
	if err != nil {
		return fmt.Errorf("%w: reserve credits", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrInsufficientCredits
	}
	return nil
}

// RefundTx reverses a reservation's decrement inside the caller's transaction.
func (r *Repository) RefundTx(ctx context.Context, tx *sqlx.Tx, identityKey string, cost int64) error {
	if cost <= 0 {
		return ErrInvalidAmount
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE balances
		SET credits = credits + $2,
		    total_spent = total_spent - $2
		WHERE identity_key = $1
	`, identityKey, cost)
	if err != nil {
		return fmt.Errorf("%w: refund credits", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// History returns the identity's payment events, newest first.
func (r *Repository) History(ctx context.Context, identityKey string, p Pagination) ([]PaymentEvent, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	events := make([]PaymentEvent, 0)
	err := r.db.SelectContext(ctx2, &events, `
		SELECT id, identity_key, external_ref, kind, amount, credits_granted, metadata, applied_at
		FROM payment_events
		WHERE identity_key = $1
		ORDER BY applied_at DESC
		LIMIT $2 OFFSET $3
	`, identityKey, limit, p.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list payment events", ErrInternal)
	}
	return events, nil
}
