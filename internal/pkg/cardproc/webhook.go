package cardproc

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// WebhookEvent is the processor's asynchronous confirmation payload.
// IdentityKey round-trips from the metadata set at charge creation.
type WebhookEvent struct {
	ChargeID    string `json:"charge_id"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"` // smallest currency unit
	Currency    string `json:"currency"`
	IdentityKey string `json:"identity_key"`
}

// VerifySignature checks the webhook HMAC. Signature header format:
// hex(HMAC-SHA256(secret, raw body)). Comparison is constant time.
func VerifySignature(rawBody []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// Sign computes the signature for a payload. Used by tests and tooling.
func Sign(rawBody []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseWebhook decodes a verified webhook body.
func ParseWebhook(rawBody []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if strings.TrimSpace(ev.ChargeID) == "" {
		return nil, fmt.Errorf("charge_id is required")
	}
	ev.Status = normalizeStatus(ev.Status)
	ev.Currency = strings.ToUpper(ev.Currency)
	return &ev, nil
}
