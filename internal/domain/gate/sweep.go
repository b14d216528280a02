package gate

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pixelforge/pixelforge-api/internal/pkg/genprovider"
)

// StatusChecker answers what actually happened to a downstream job.
// Implemented by genprovider.Client.
type StatusChecker interface {
	GetJob(ctx context.Context, jobID string) (*genprovider.Job, error)
}

// Sweeper resolves expired held reservations, bounding the worst-case
// missing-credits window after a crashed client. Expiry normally refunds,
// but when the downstream provider reports the job actually completed the
// hold commits instead. A timeout is not a failure; the provider's own
// status decides.
type Sweeper struct {
	repo     *Repository
	checker  StatusChecker
	interval time.Duration
}

func NewSweeper(repo *Repository, checker StatusChecker, interval time.Duration) *Sweeper {
	return &Sweeper{repo: repo, checker: checker, interval: interval}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce resolves one batch of expired reservations.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	expired, err := s.repo.ListExpired(ctx, 100)
	if err != nil {
		log.Error().Err(err).Msg("sweep: failed to list expired reservations")
		return
	}

	for _, res := range expired {
		s.resolve(ctx, res)
	}
}

func (s *Sweeper) resolve(ctx context.Context, res Reservation) {
	if res.JobID != nil && s.checker != nil {
		job, err := s.checker.GetJob(ctx, *res.JobID)
		if err == nil && job.Status == genprovider.StatusSucceeded {
			if err := s.repo.Commit(ctx, res.CorrelationID); err != nil {
				log.Error().Err(err).Str("correlation_id", res.CorrelationID).Msg("sweep: commit failed")
			} else {
				log.Info().
					Str("correlation_id", res.CorrelationID).
					Str("job_id", *res.JobID).
					Msg("sweep: job completed downstream, reservation committed")
			}
			return
		}
		if err == nil && job.Status == genprovider.StatusRunning {
			// Still in flight; leave the hold for the next pass.
			return
		}
		if err != nil {
			// Outcome still unknown; retried on the next pass rather than
			// guessed at.
			log.Warn().Err(err).Str("correlation_id", res.CorrelationID).Msg("sweep: provider status check failed, keeping hold")
			return
		}
	}

	if err := s.repo.Release(ctx, res.CorrelationID); err != nil {
		log.Error().Err(err).Str("correlation_id", res.CorrelationID).Msg("sweep: release failed")
		return
	}
	log.Info().
		Str("correlation_id", res.CorrelationID).
		Str("identity", res.IdentityKey).
		Int64("amount", res.Amount).
		Msg("sweep: expired reservation refunded")
}
