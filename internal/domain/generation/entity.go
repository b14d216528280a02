package generation

import "time"

// Status of a generation as seen by clients.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Generation is one media generation request and its outcome. Paid runs
// carry the reservation that funded them; free runs carry neither a
// correlation id nor a charge.
type Generation struct {
	ID            string     `db:"id" json:"id"`
	IdentityKey   string     `db:"identity_key" json:"-"`
	Kind          string     `db:"kind" json:"kind"`
	Prompt        string     `db:"prompt" json:"prompt"`
	Free          bool       `db:"free" json:"free"`
	Cost          int64      `db:"cost" json:"cost"`
	Status        Status     `db:"status" json:"status"`
	CorrelationID *string    `db:"correlation_id" json:"-"`
	JobID         *string    `db:"job_id" json:"-"`
	ArtifactURL   *string    `db:"artifact_url" json:"artifact_url,omitempty"`
	ThumbnailURL  *string    `db:"thumbnail_url" json:"thumbnail_url,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	FinishedAt    *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}
