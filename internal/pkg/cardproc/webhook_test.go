package cardproc

import "testing"

func TestVerifySignatureRoundTrip(t *testing.T) {
	body := []byte(`{"charge_id":"ch_123","status":"succeeded","amount":1000,"currency":"usd"}`)
	secret := "whsec_test"

	sig := Sign(body, secret)
	if !VerifySignature(body, sig, secret) {
		t.Fatal("valid signature rejected")
	}
	if VerifySignature(body, sig, "wrong-secret") {
		t.Fatal("signature accepted with wrong secret")
	}
	if VerifySignature([]byte(`{"charge_id":"ch_456"}`), sig, secret) {
		t.Fatal("signature accepted for tampered body")
	}
	if VerifySignature(body, "", secret) {
		t.Fatal("empty signature accepted")
	}
}

func TestParseWebhookNormalizes(t *testing.T) {
	body := []byte(`{"charge_id":"ch_123","status":"PAID","amount":1000,"currency":"usd"}`)

	ev, err := ParseWebhook(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if ev.Status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", ev.Status)
	}
	if ev.Currency != "USD" {
		t.Fatalf("expected USD, got %s", ev.Currency)
	}
}

func TestParseWebhookRequiresChargeID(t *testing.T) {
	if _, err := ParseWebhook([]byte(`{"status":"succeeded"}`)); err == nil {
		t.Fatal("expected error for missing charge_id")
	}
}
