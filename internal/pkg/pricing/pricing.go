package pricing

import (
	"context"
	"errors"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/pixelforge/pixelforge-api/internal/domain/identity"
	"github.com/pixelforge/pixelforge-api/internal/pkg/nftpass"
)

// Tier selects which credit rate an identity gets.
type Tier string

const (
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

var (
	// ErrInvalidAmount is returned for non-positive payment amounts
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrImplausibleAmount is returned for amounts above the configured ceiling
	ErrImplausibleAmount = errors.New("amount exceeds plausible maximum")
)

// Policy converts payment amounts into credits. Rates are injected
// configuration; no pricing business rules live here.
type Policy struct {
	rates     map[Tier]float64
	maxAmount float64
	oracle    nftpass.Oracle
}

// NewPolicy builds a policy from configured per-tier rates. oracle may be
// nil, in which case every identity prices at standard tier.
func NewPolicy(standardRate, premiumRate, maxAmount float64, oracle nftpass.Oracle) *Policy {
	return &Policy{
		rates: map[Tier]float64{
			TierStandard: standardRate,
			TierPremium:  premiumRate,
		},
		maxAmount: maxAmount,
		oracle:    oracle,
	}
}

// Quote returns floor(amount × rate) credits for the tier.
func (p *Policy) Quote(amount float64, tier Tier) (int64, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, ErrInvalidAmount
	}
	if amount > p.maxAmount {
		return 0, ErrImplausibleAmount
	}

	rate, ok := p.rates[tier]
	if !ok {
		rate = p.rates[TierStandard]
	}
	return int64(math.Floor(amount * rate)), nil
}

// ResolveTier picks the identity's tier. Wallet identities holding the pass
// NFT price at premium; an oracle failure degrades to standard, it never
// blocks a payment.
func (p *Policy) ResolveTier(ctx context.Context, identityKey string) Tier {
	if p.oracle == nil || identity.KindOf(identityKey) != identity.KindWallet {
		return TierStandard
	}

	has, err := p.oracle.HasPass(ctx, identityKey)
	if err != nil {
		log.Warn().Err(err).Str("identity", identityKey).Msg("pass oracle lookup failed, using standard tier")
		return TierStandard
	}
	if has {
		return TierPremium
	}
	return TierStandard
}
