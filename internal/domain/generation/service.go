package generation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pixelforge/pixelforge-api/internal/domain/abuse"
	"github.com/pixelforge/pixelforge-api/internal/domain/balance"
	"github.com/pixelforge/pixelforge-api/internal/domain/gate"
	"github.com/pixelforge/pixelforge-api/internal/domain/idempotency"
	"github.com/pixelforge/pixelforge-api/internal/pkg/genprovider"
)

// Provider is the downstream media generation API.
type Provider interface {
	Invoke(ctx context.Context, spec genprovider.JobSpec) (*genprovider.Job, error)
	GetJob(ctx context.Context, jobID string) (*genprovider.Job, error)
}

// Service orchestrates the paid-action flow: reserve credits, call the
// provider, then commit or compensate based on the real outcome.
type Service struct {
	repo     *Repository
	balances *balance.Repository
	guard    *idempotency.Guard
	abuse    *abuse.Service
	gate     *gate.Service
	provider Provider
	archiver *Archiver
	costs    map[string]int64
	dedupTTL time.Duration
}

func NewService(
	repo *Repository,
	balances *balance.Repository,
	guard *idempotency.Guard,
	abuseSvc *abuse.Service,
	gateSvc *gate.Service,
	provider Provider,
	archiver *Archiver,
	costs map[string]int64,
	dedupTTL time.Duration,
) *Service {
	return &Service{
		repo:     repo,
		balances: balances,
		guard:    guard,
		abuse:    abuseSvc,
		gate:     gateSvc,
		provider: provider,
		archiver: archiver,
		costs:    costs,
		dedupTTL: dedupTTL,
	}
}

// Generate runs one generation end to end. Free requests pass the abuse
// guard and charge nothing; paid requests hold credits for the duration of
// the provider call.
func (s *Service) Generate(ctx context.Context, identityKey, origin, deviceSig string, req GenerateRequest) (*Generation, error) {
	cost, ok := s.costs[req.Kind]
	if !ok {
		return nil, ErrInvalidRequest
	}

	claimed, err := s.guard.ClaimRequest(ctx, identityKey+":"+req.RequestID, s.dedupTTL)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrDuplicateRequest
	}

	if err := s.balances.Ensure(ctx, identityKey); err != nil {
		return nil, err
	}
	bal, err := s.balances.Get(ctx, identityKey)
	if err != nil {
		return nil, err
	}

	var correlationID string
	if req.Free {
		// Admit consumes the grant atomically; no separate record step.
		if err := s.abuse.Admit(ctx, identityKey, bal.CreatedAt, origin, deviceSig); err != nil {
			return nil, err
		}
		cost = 0
	} else {
		correlationID, err = s.gate.Reserve(ctx, identityKey, cost)
		if err != nil {
			return nil, err
		}
	}

	g := &Generation{
		ID:          uuid.New().String(),
		IdentityKey: identityKey,
		Kind:        req.Kind,
		Prompt:      req.Prompt,
		Free:        req.Free,
		Cost:        cost,
		Status:      StatusRunning,
	}
	if correlationID != "" {
		g.CorrelationID = &correlationID
	}
	if err := s.repo.Create(ctx, g); err != nil {
		if correlationID != "" {
			s.release(ctx, correlationID)
		}
		return nil, err
	}

	job, invokeErr := s.provider.Invoke(ctx, genprovider.JobSpec{
		Kind:           req.Kind,
		Prompt:         req.Prompt,
		Params:         req.Params,
		IdempotencyKey: g.ID,
	})

	if job != nil && job.ID != "" {
		g.JobID = &job.ID
		if err := s.repo.SetJob(ctx, g.ID, job.ID); err != nil {
			log.Error().Err(err).Str("generation_id", g.ID).Msg("failed to record job id")
		}
		if correlationID != "" {
			if err := s.gate.AttachJob(ctx, correlationID, job.ID); err != nil {
				log.Error().Err(err).Str("correlation_id", correlationID).Msg("failed to attach job to reservation")
			}
		}
	}

	switch {
	case invokeErr == nil:
		s.finalizeSuccess(ctx, g, job.ResultURL)
		return g, nil

	case errors.Is(invokeErr, genprovider.ErrJobFailed):
		// Definitive failure: the hold refunds.
		if correlationID != "" {
			s.release(ctx, correlationID)
		}
		s.finish(ctx, g, StatusFailed, nil, nil)
		return g, nil

	case errors.Is(invokeErr, genprovider.ErrAmbiguous):
		// Outcome unknown: the hold stays and the sweep reconciles it against
		// the provider after the TTL. The client polls for resolution.
		log.Warn().
			Str("generation_id", g.ID).
			Str("correlation_id", correlationID).
			Msg("generation outcome ambiguous, leaving reservation held")
		return g, nil

	default:
		// Submission failed. The idempotency key on submit means a lost
		// response cannot have created a second chargeable job, so the
		// refund is safe even when the request did reach the provider.
		if correlationID != "" {
			s.release(ctx, correlationID)
		}
		s.finish(ctx, g, StatusFailed, nil, nil)
		return nil, invokeErr
	}
}

// GetGeneration looks up a generation for polling. A still-running paid run
// with a known job id is refreshed against the provider on read.
func (s *Service) GetGeneration(ctx context.Context, identityKey, id string) (*Generation, error) {
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.IdentityKey != identityKey {
		return nil, ErrNotFound
	}

	if g.Status == StatusRunning && g.JobID != nil {
		s.refresh(ctx, g)
	}
	return g, nil
}

func (s *Service) ListGenerations(ctx context.Context, identityKey string, limit int) ([]Generation, error) {
	return s.repo.ListByIdentity(ctx, identityKey, limit)
}

// refresh resolves a running generation against the provider's status.
func (s *Service) refresh(ctx context.Context, g *Generation) {
	job, err := s.provider.GetJob(ctx, *g.JobID)
	if err != nil {
		log.Warn().Err(err).Str("generation_id", g.ID).Msg("status refresh failed")
		return
	}

	switch job.Status {
	case genprovider.StatusSucceeded:
		s.finalizeSuccess(ctx, g, job.ResultURL)
	case genprovider.StatusFailed:
		if g.CorrelationID != nil {
			s.release(ctx, *g.CorrelationID)
		}
		s.finish(ctx, g, StatusFailed, nil, nil)
	}
}

// finalizeSuccess archives the artifact and settles the charge. Archiving
// failure does not fail the generation; the provider URL stands in until a
// re-fetch.
func (s *Service) finalizeSuccess(ctx context.Context, g *Generation, resultURL string) {
	var artifactURL, thumbURL *string

	if s.archiver != nil && resultURL != "" {
		jobID := g.ID
		if g.JobID != nil {
			jobID = *g.JobID
		}
		orig, thumb, err := s.archiver.Save(ctx, g.IdentityKey, jobID, g.Kind, resultURL)
		if err != nil {
			log.Warn().Err(err).Str("generation_id", g.ID).Msg("artifact archive failed, keeping provider url")
			artifactURL = &resultURL
		} else {
			artifactURL = &orig
			if thumb != "" {
				thumbURL = &thumb
			}
		}
	} else if resultURL != "" {
		artifactURL = &resultURL
	}

	if g.CorrelationID != nil {
		switch err := s.gate.Commit(ctx, *g.CorrelationID); {
		case err == nil:
		case errors.Is(err, gate.ErrAlreadyReleased):
			// The sweep refunded this hold before the success landed. The
			// credits are back with the user; the artifact still ships.
			log.Warn().Str("correlation_id", *g.CorrelationID).Msg("reservation released before commit, success not charged")
		default:
			log.Error().Err(err).Str("correlation_id", *g.CorrelationID).Msg("failed to commit reservation")
		}
	}

	s.finish(ctx, g, StatusSucceeded, artifactURL, thumbURL)
}

func (s *Service) finish(ctx context.Context, g *Generation, status Status, artifactURL, thumbURL *string) {
	g.Status = status
	g.ArtifactURL = artifactURL
	g.ThumbnailURL = thumbURL
	now := time.Now()
	g.FinishedAt = &now

	if err := s.repo.Finish(ctx, g.ID, status, artifactURL, thumbURL); err != nil {
		log.Error().Err(err).Str("generation_id", g.ID).Msg("failed to persist generation outcome")
	}
}

func (s *Service) release(ctx context.Context, correlationID string) {
	if err := s.gate.Release(ctx, correlationID); err != nil {
		log.Error().Err(err).Str("correlation_id", correlationID).Msg("failed to release reservation")
	}
}
