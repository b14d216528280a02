package pricing

import (
	"context"
	"errors"
	"testing"
)

func TestQuoteFloors(t *testing.T) {
	p := NewPolicy(6.67, 8.0, 10000, nil)

	credits, err := p.Quote(10, TierStandard)
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if credits != 66 {
		t.Fatalf("expected 66 credits for 10 at 6.67, got %d", credits)
	}

	credits, err = p.Quote(10, TierPremium)
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if credits != 80 {
		t.Fatalf("expected 80 credits for 10 at 8.0, got %d", credits)
	}
}

func TestQuoteRejectsInvalidAmounts(t *testing.T) {
	p := NewPolicy(6.67, 8.0, 10000, nil)

	if _, err := p.Quote(0, TierStandard); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := p.Quote(-5, TierStandard); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := p.Quote(10001, TierStandard); !errors.Is(err, ErrImplausibleAmount) {
		t.Fatalf("expected ErrImplausibleAmount, got %v", err)
	}
}

type fakeOracle struct {
	has bool
	err error
}

func (f fakeOracle) HasPass(ctx context.Context, wallet string) (bool, error) {
	return f.has, f.err
}

func TestResolveTier(t *testing.T) {
	wallet := "0xabcdef0123456789abcdef0123456789abcdef01"

	p := NewPolicy(6.67, 8.0, 10000, fakeOracle{has: true})
	if tier := p.ResolveTier(context.Background(), wallet); tier != TierPremium {
		t.Fatalf("expected premium for pass holder, got %s", tier)
	}

	p = NewPolicy(6.67, 8.0, 10000, fakeOracle{has: false})
	if tier := p.ResolveTier(context.Background(), wallet); tier != TierStandard {
		t.Fatalf("expected standard without pass, got %s", tier)
	}

	// Oracle failure degrades to standard rather than blocking the payment.
	p = NewPolicy(6.67, 8.0, 10000, fakeOracle{err: errors.New("rpc down")})
	if tier := p.ResolveTier(context.Background(), wallet); tier != TierStandard {
		t.Fatalf("expected standard on oracle failure, got %s", tier)
	}

	// Email identities never consult the oracle.
	p = NewPolicy(6.67, 8.0, 10000, fakeOracle{has: true})
	if tier := p.ResolveTier(context.Background(), "user@example.com"); tier != TierStandard {
		t.Fatalf("expected standard for email identity, got %s", tier)
	}
}
