package gate

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pixelforge/pixelforge-api/internal/domain/identity"
)

// Service is the credit gate: Requested → Reserved → {Committed | Released}.
type Service struct {
	repo *Repository
	ttl  time.Duration
}

func NewService(repo *Repository, ttl time.Duration) *Service {
	return &Service{repo: repo, ttl: ttl}
}

// Reserve holds cost credits and returns the correlation id that finalizes
// the hold. InsufficientBalance leaves no side effects.
func (s *Service) Reserve(ctx context.Context, identityKey string, cost int64) (string, error) {
	if !identity.Valid(identityKey) {
		return "", ErrInvalidCost
	}

	correlationID := uuid.New().String()
	if err := s.repo.Reserve(ctx, identityKey, cost, correlationID, s.ttl); err != nil {
		return "", err
	}

	log.Info().
		Str("identity", identityKey).
		Str("correlation_id", correlationID).
		Int64("cost", cost).
		Msg("credits reserved")
	return correlationID, nil
}

// Commit finalizes the hold after the paid action succeeded.
func (s *Service) Commit(ctx context.Context, correlationID string) error {
	if err := s.repo.Commit(ctx, correlationID); err != nil {
		return err
	}
	log.Info().Str("correlation_id", correlationID).Msg("reservation committed")
	return nil
}

// Release refunds the hold after the paid action definitively failed.
func (s *Service) Release(ctx context.Context, correlationID string) error {
	if err := s.repo.Release(ctx, correlationID); err != nil {
		return err
	}
	log.Info().Str("correlation_id", correlationID).Msg("reservation released")
	return nil
}

// AttachJob links the downstream job so an ambiguous outcome can be
// reconciled later.
func (s *Service) AttachJob(ctx context.Context, correlationID, jobID string) error {
	return s.repo.AttachJob(ctx, correlationID, jobID)
}

func (s *Service) Get(ctx context.Context, correlationID string) (*Reservation, error) {
	return s.repo.Get(ctx, correlationID)
}
