package balance

import (
	"context"

	"github.com/pixelforge/pixelforge-api/internal/domain/identity"
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetBalance(ctx context.Context, identityKey string) (*Balance, error) {
	if !identity.Valid(identityKey) {
		return nil, ErrInvalidKey
	}
	return s.repo.Get(ctx, identityKey)
}

func (s *Service) History(ctx context.Context, identityKey string, limit, offset int) ([]PaymentEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.History(ctx, identityKey, Pagination{Limit: limit, Offset: offset})
}
