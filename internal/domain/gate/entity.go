package gate

import "time"

// Status is a reservation's lifecycle state.
type Status string

const (
	StatusHeld      Status = "held"
	StatusCommitted Status = "committed"
	StatusReleased  Status = "released"
)

// Reservation is a provisional hold on credits pending the outcome of a paid
// action. Held reservations past their TTL are resolved by the sweep.
type Reservation struct {
	CorrelationID string     `db:"correlation_id"`
	IdentityKey   string     `db:"identity_key"`
	Amount        int64      `db:"amount"`
	JobID         *string    `db:"job_id"`
	Status        Status     `db:"status"`
	CreatedAt     time.Time  `db:"created_at"`
	ExpiresAt     time.Time  `db:"expires_at"`
	FinalizedAt   *time.Time `db:"finalized_at"`
}
