package abuse

import "time"

// Signal tracks free-tier usage for one (origin, device signature) pair.
// Signals live outside the paid ledger and never become payment events.
type Signal struct {
	Origin        string     `db:"origin"`
	DeviceSig     string     `db:"device_sig"`
	FreeUses      int        `db:"free_uses"`
	LastUsedAt    *time.Time `db:"last_used_at"`
	CooldownUntil *time.Time `db:"cooldown_until"`
	CreatedAt     time.Time  `db:"created_at"`
}
