package abuse_test

import (
	"net/http/httptest"
	"testing"

	"github.com/pixelforge/pixelforge-api/internal/domain/abuse"
)

func TestDeviceSignatureStableAcrossOrigins(t *testing.T) {
	r1 := httptest.NewRequest("POST", "/generate", nil)
	r1.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")
	r1.Header.Set("Accept-Language", "en-US,en;q=0.9")
	r1.RemoteAddr = "203.0.113.5:51234"

	r2 := httptest.NewRequest("POST", "/generate", nil)
	r2.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")
	r2.Header.Set("Accept-Language", "en-US,en;q=0.9")
	r2.RemoteAddr = "198.51.100.77:40000"

	if abuse.DeviceSignature(r1) != abuse.DeviceSignature(r2) {
		t.Fatal("signature should not depend on remote address")
	}
	if abuse.Origin(r1) == abuse.Origin(r2) {
		t.Fatal("origins should differ")
	}
}

func TestDeviceSignatureDistinguishesClients(t *testing.T) {
	r1 := httptest.NewRequest("POST", "/generate", nil)
	r1.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")

	r2 := httptest.NewRequest("POST", "/generate", nil)
	r2.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X)")

	if abuse.DeviceSignature(r1) == abuse.DeviceSignature(r2) {
		t.Fatal("different user agents should yield different signatures")
	}
}

func TestOriginPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest("POST", "/generate", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	r.RemoteAddr = "10.0.0.1:9999"

	if got := abuse.Origin(r); got != "203.0.113.5" {
		t.Fatalf("expected first forwarded hop, got %q", got)
	}
}
