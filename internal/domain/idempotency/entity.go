package idempotency

import "time"

// RefKind labels what sort of external reference a claim protects.
type RefKind string

const (
	RefChain    RefKind = "chain"
	RefCard     RefKind = "card"
	RefAdmin    RefKind = "admin"
	RefReferral RefKind = "referral"
	RefRequest  RefKind = "request"
)

// Claim is a durable at-most-once record. Payment claims never expire;
// request-dedup claims carry a short ExpiresAt and may be re-claimed after it.
type Claim struct {
	Ref       string     `db:"ref"`
	Kind      RefKind    `db:"kind"`
	ClaimedAt time.Time  `db:"claimed_at"`
	ExpiresAt *time.Time `db:"expires_at"`
}
