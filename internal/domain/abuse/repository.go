package abuse

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
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

// Grant consumes one free use for the (origin, device signature) pair. The
// cap and cooldown checks and the counter increment run in one transaction
// serialized per origin and per signature, so concurrent grants cannot
// observe the sums below a cap and all pass: admission and recording are a
// single atomic step, never a check-then-write pair.
func (r *Repository) Grant(ctx context.Context, origin, deviceSig string, originCap, deviceCap int, cooldown time.Duration) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	// Advisory locks cover the whole origin and the whole signature, not
	// just the pair row: a same-device burst across rotated origins still
	// serializes. Acquired in key order so two grants sharing only one of
	// the two signals cannot deadlock.
	if err := lockSignals(ctx2, tx, origin, deviceSig); err != nil {
		return err
	}

	var pair Signal
	found := true
	err = tx.GetContext(ctx2, &pair, `
		SELECT origin, device_sig, free_uses, last_used_at, cooldown_until, created_at
		FROM abuse_signals
		WHERE origin = $1 AND device_sig = $2
	`, origin, deviceSig)
	if err != nil {
		if err != sql.ErrNoRows {
			return fmt.Errorf("%w: get abuse signal", ErrInternal)
		}
		found = false
	}
	if found && pair.CooldownUntil != nil && pair.CooldownUntil.After(time.Now()) {
		return ErrCooldownActive
	}

	deviceUses, err := sumTx(ctx2, tx, "device_sig", deviceSig)
	if err != nil {
		return err
	}
	if deviceUses >= deviceCap {
		return ErrDeviceCapExceeded
	}

	originUses, err := sumTx(ctx2, tx, "origin", origin)
	if err != nil {
		return err
	}
	if originUses >= originCap {
		return ErrOriginCapExceeded
	}

	if _, err := tx.ExecContext(ctx2, `
		INSERT INTO abuse_signals (origin, device_sig, free_uses, last_used_at, cooldown_until)
		VALUES ($1, $2, 1, now(), now() + $3::interval)
		ON CONFLICT (origin, device_sig) DO UPDATE
		SET free_uses = abuse_signals.free_uses + 1,
		    last_used_at = now(),
		    cooldown_until = now() + $3::interval
	`, origin, deviceSig, fmt.Sprintf("%d milliseconds", cooldown.Milliseconds())); err != nil {
		return fmt.Errorf("%w: record grant", ErrInternal)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit grant", ErrInternal)
	}
	return nil
}

func lockSignals(ctx context.Context, tx *sqlx.Tx, origin, deviceSig string) error {
	keys := []int64{signalLockKey("origin:" + origin), signalLockKey("device:" + deviceSig)}
	if keys[0] > keys[1] {
		keys[0], keys[1] = keys[1], keys[0]
	}
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, k); err != nil {
			return fmt.Errorf("%w: lock abuse signal", ErrInternal)
		}
	}
	return nil
}

func signalLockKey(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}

func sumTx(ctx context.Context, tx *sqlx.Tx, column, value string) (int, error) {
	var total int
	err := tx.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(free_uses), 0) FROM abuse_signals WHERE `+column+` = $1
	`, value)
	if err != nil {
		return 0, fmt.Errorf("%w: sum free uses", ErrInternal)
	}
	return total, nil
}
