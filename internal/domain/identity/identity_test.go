package identity_test

import (
	"testing"

	"github.com/pixelforge/pixelforge-api/internal/domain/identity"
)

func TestNormalizeWalletLowercases(t *testing.T) {
	key := identity.Normalize("0xAbCdEF0123456789abcdef0123456789ABCDEF01")
	if key != "0xabcdef0123456789abcdef0123456789abcdef01" {
		t.Fatalf("unexpected key: %s", key)
	}
	if identity.KindOf(key) != identity.KindWallet {
		t.Fatalf("expected wallet kind, got %s", identity.KindOf(key))
	}
}

func TestNormalizeEmail(t *testing.T) {
	key := identity.Normalize("  User@Example.COM ")
	if key != "user@example.com" {
		t.Fatalf("unexpected key: %s", key)
	}
	if identity.KindOf(key) != identity.KindEmail {
		t.Fatalf("expected email kind")
	}
	if identity.EmailDomain(key) != "example.com" {
		t.Fatalf("unexpected domain: %s", identity.EmailDomain(key))
	}
}

func TestGuestKeyPassesThrough(t *testing.T) {
	key := identity.Normalize("guest:3f8a")
	if key != "guest:3f8a" {
		t.Fatalf("unexpected key: %s", key)
	}
	if identity.KindOf(key) != identity.KindGuest {
		t.Fatalf("expected guest kind")
	}
}

func TestValid(t *testing.T) {
	if identity.Valid("") {
		t.Fatal("empty key should be invalid")
	}
	if !identity.Valid("user@example.com") {
		t.Fatal("email key should be valid")
	}
}
