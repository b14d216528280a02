package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/pixelforge/pixelforge-api/internal/domain/balance"
	"github.com/pixelforge/pixelforge-api/internal/domain/idempotency"
	"github.com/pixelforge/pixelforge-api/internal/domain/identity"
	"github.com/pixelforge/pixelforge-api/internal/pkg/cardproc"
	"github.com/pixelforge/pixelforge-api/internal/pkg/pricing"
)

// CardVerifier is the server-side charge lookup. Implemented by
// cardproc.Client and by fakes in tests.
type CardVerifier interface {
	VerifyCharge(ctx context.Context, chargeID string) (*cardproc.Charge, error)
}

// Service reconciles external payment events into balance mutations. Every
// path converges on the same pattern: claim the external reference and apply
// the credit in one transaction.
type Service struct {
	db       *sqlx.DB
	balances *balance.Repository
	guard    *idempotency.Guard
	policy   *pricing.Policy
	scanner  *Scanner
	cards    CardVerifier
}

func NewService(db *sqlx.DB, balances *balance.Repository, guard *idempotency.Guard, policy *pricing.Policy, scanner *Scanner, cards CardVerifier) *Service {
	return &Service{
		db:       db,
		balances: balances,
		guard:    guard,
		policy:   policy,
		scanner:  scanner,
		cards:    cards,
	}
}

// ConfirmChainPayment scans the configured chains for the expected transfer
// and applies the first match. ErrNoMatch tells the client to keep polling.
func (s *Service) ConfirmChainPayment(ctx context.Context, identityKey string, expectedAmount float64) (*ApplyResult, error) {
	if !identity.Valid(identityKey) {
		return nil, ErrInvalidInput
	}

	match, err := s.scanner.Scan(ctx, expectedAmount)
	if err != nil {
		return nil, err
	}

	return s.ApplyChainPayment(ctx, match, identityKey)
}

// ApplyChainPayment credits a matched on-chain transfer exactly once.
// Tx hashes are chain+hash unique, so the reference is qualified by chain.
func (s *Service) ApplyChainPayment(ctx context.Context, match *Match, identityKey string) (*ApplyResult, error) {
	if match == nil || !identity.Valid(identityKey) {
		return nil, ErrInvalidInput
	}

	ref := "chain:" + match.Chain + ":" + strings.ToLower(match.TxHash)
	tier := s.policy.ResolveTier(ctx, identityKey)
	credits, err := s.policy.Quote(match.Amount, tier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	meta := fmt.Sprintf(`{"chain":%q,"from":%q,"block":%d}`, match.Chain, match.From, match.BlockNumber)
	return s.apply(ctx, identityKey, ref, idempotency.RefChain, balance.KindChain, match.Amount, credits, &meta)
}

// ConfirmCardPayment is the client-initiated path: the client supplies only
// the charge id and the amount is re-verified against the processor.
func (s *Service) ConfirmCardPayment(ctx context.Context, identityKey, chargeID string) (*ApplyResult, error) {
	if !identity.Valid(identityKey) || strings.TrimSpace(chargeID) == "" {
		return nil, ErrInvalidInput
	}

	charge, err := s.cards.VerifyCharge(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	if charge.Status != cardproc.StatusSucceeded {
		return nil, ErrChargeNotConfirmed
	}

	return s.applyCard(ctx, identityKey, charge.ID, charge.Amount)
}

// ApplyCardWebhook is the asynchronous path. The payload's signature was
// already verified by the handler; whichever path arrives first wins and the
// other becomes a no-op on the shared reference.
func (s *Service) ApplyCardWebhook(ctx context.Context, ev *cardproc.WebhookEvent) (*ApplyResult, error) {
	key := identity.Normalize(ev.IdentityKey)
	if !identity.Valid(key) {
		return nil, ErrInvalidInput
	}
	if ev.Status != cardproc.StatusSucceeded {
		return nil, ErrChargeNotConfirmed
	}

	return s.applyCard(ctx, key, ev.ChargeID, float64(ev.Amount)/100)
}

func (s *Service) applyCard(ctx context.Context, identityKey, chargeID string, amount float64) (*ApplyResult, error) {
	ref := "card:" + chargeID
	tier := s.policy.ResolveTier(ctx, identityKey)
	credits, err := s.policy.Quote(amount, tier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return s.apply(ctx, identityKey, ref, idempotency.RefCard, balance.KindCard, amount, credits, nil)
}

// ApplyAdminGrant credits an operator-issued grant. The grant id is the
// idempotency reference so a retried admin request cannot double-credit.
func (s *Service) ApplyAdminGrant(ctx context.Context, identityKey, grantID string, credits int64, note string) (*ApplyResult, error) {
	if !identity.Valid(identityKey) || strings.TrimSpace(grantID) == "" {
		return nil, ErrInvalidInput
	}
	if credits <= 0 || credits > 10_000_000 {
		return nil, ErrInvalidInput
	}

	var meta *string
	if note != "" {
		m := fmt.Sprintf(`{"note":%q}`, note)
		meta = &m
	}
	return s.apply(ctx, identityKey, "admin:"+grantID, idempotency.RefAdmin, balance.KindAdmin, 0, credits, meta)
}

// ApplyReferralBonus credits the referrer once per referee, ever.
func (s *Service) ApplyReferralBonus(ctx context.Context, referrerKey, refereeKey string, credits int64) (*ApplyResult, error) {
	referrer := identity.Normalize(referrerKey)
	referee := identity.Normalize(refereeKey)
	if !identity.Valid(referrer) || !identity.Valid(referee) || referrer == referee {
		return nil, ErrInvalidInput
	}
	if credits <= 0 {
		return nil, ErrInvalidInput
	}

	m := fmt.Sprintf(`{"referee":%q}`, referee)
	return s.apply(ctx, referrer, "referral:"+referee, idempotency.RefReferral, balance.KindReferral, 0, credits, &m)
}

// apply is the single write path: guard claim and balance credit commit or
// roll back together, so a claimed-but-uncredited payment cannot exist.
func (s *Service) apply(ctx context.Context, identityKey, ref string, refKind idempotency.RefKind, evKind balance.EventKind, amount float64, credits int64, metadata *string) (*ApplyResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	claimed, err := s.guard.TryClaimTx(ctx, tx, ref, refKind)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return s.duplicateResult(ctx, identityKey, ref)
	}

	err = s.balances.CreditTx(ctx, tx, identityKey, credits, balance.PaymentEvent{
		ExternalRef: ref,
		Kind:        evKind,
		Amount:      amount,
		Metadata:    metadata,
	})
	if err != nil {
		if errors.Is(err, balance.ErrDuplicateReference) {
			// Event row exists from an earlier run; surface as a no-op.
			return s.duplicateResult(ctx, identityKey, ref)
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit payment", ErrInternal)
	}
	s.guard.CacheApplied(ctx, ref)

	b, err := s.balances.Get(ctx, identityKey)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("identity", identityKey).
		Str("ref", ref).
		Int64("credits", credits).
		Msg("payment applied")

	return &ApplyResult{Credited: credits, NewBalance: b.Credits}, nil
}

func (s *Service) duplicateResult(ctx context.Context, identityKey, ref string) (*ApplyResult, error) {
	b, err := s.balances.Get(ctx, identityKey)
	if err != nil {
		return nil, err
	}

	// Logged distinctly from a fresh grant.
	log.Info().
		Str("identity", identityKey).
		Str("ref", ref).
		Msg("duplicate payment reference ignored")

	return &ApplyResult{Duplicate: true, NewBalance: b.Credits}, nil
}
