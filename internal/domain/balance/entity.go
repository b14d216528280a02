package balance

import "time"

// EventKind defines supported payment event kinds.
type EventKind string

const (
	KindChain    EventKind = "chain"
	KindCard     EventKind = "card"
	KindAdmin    EventKind = "admin"
	KindReferral EventKind = "referral"
)

// Balance is one identity's credit position. The invariant
// credits = total_earned - total_spent holds at all times.
type Balance struct {
	IdentityKey string    `db:"identity_key"`
	Credits     int64     `db:"credits"`
	TotalEarned int64     `db:"total_earned"`
	TotalSpent  int64     `db:"total_spent"`
	LastActive  time.Time `db:"last_active"`
	CreatedAt   time.Time `db:"created_at"`
}

// PaymentEvent is an immutable ledger row recording one external monetary
// event. ExternalRef is globally unique.
type PaymentEvent struct {
	ID             string    `db:"id"`
	IdentityKey    string    `db:"identity_key"`
	ExternalRef    string    `db:"external_ref"`
	Kind           EventKind `db:"kind"`
	Amount         float64   `db:"amount"`
	CreditsGranted int64     `db:"credits_granted"`
	Metadata       *string   `db:"metadata"`
	AppliedAt      time.Time `db:"applied_at"`
}

// Pagination controls simple list pagination.
type Pagination struct {
	Limit  int
	Offset int
}
