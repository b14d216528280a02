package abuse

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/pixelforge/pixelforge-api/internal/domain/identity"
)

const cooldownPrefix = "abuse:cd:"

// Config carries the admission thresholds.
type Config struct {
	PerOriginCap   int
	PerDeviceCap   int
	Cooldown       time.Duration
	MinAccountAge  time.Duration
	BlockedDomains []string
}

// Service is the multi-signal free-tier limiter. Every check must pass for
// admission; denial reasons surface as sentinel errors.
type Service struct {
	repo    *Repository
	rdb     *redis.Client
	cfg     Config
	blocked map[string]struct{}
}

func NewService(repo *Repository, rdb *redis.Client, cfg Config) *Service {
	blocked := make(map[string]struct{}, len(cfg.BlockedDomains))
	for _, d := range cfg.BlockedDomains {
		blocked[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	return &Service{repo: repo, rdb: rdb, cfg: cfg, blocked: blocked}
}

// Admit decides whether a free grant is allowed for this identity and
// signal pair, and on success consumes the grant. Admission and recording
// are one atomic store operation; a parallel burst from one device cannot
// slip past a cap between a check and a write, because there is no gap.
// accountCreatedAt comes from the caller's balance row.
func (s *Service) Admit(ctx context.Context, identityKey string, accountCreatedAt time.Time, origin, deviceSig string) error {
	if domain := identity.EmailDomain(identityKey); domain != "" {
		if _, ok := s.blocked[domain]; ok {
			return ErrBlockedEmailDomain
		}
	}

	if time.Since(accountCreatedAt) < s.cfg.MinAccountAge {
		return ErrAccountTooNew
	}

	// Redis cooldown fast path; the store's own cooldown check below stays
	// authoritative.
	if s.rdb != nil {
		exists, err := s.rdb.Exists(ctx, cooldownKey(origin, deviceSig)).Result()
		if err == nil && exists > 0 {
			return ErrCooldownActive
		}
	}

	if err := s.repo.Grant(ctx, origin, deviceSig, s.cfg.PerOriginCap, s.cfg.PerDeviceCap, s.cfg.Cooldown); err != nil {
		return err
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, cooldownKey(origin, deviceSig), 1, s.cfg.Cooldown).Err(); err != nil {
			log.Warn().Err(err).Msg("abuse cooldown cache write failed")
		}
	}

	log.Info().
		Str("origin", origin).
		Str("device_sig", deviceSig[:min(12, len(deviceSig))]).
		Msg("free grant recorded")
	return nil
}

func cooldownKey(origin, deviceSig string) string {
	return cooldownPrefix + origin + ":" + deviceSig
}
