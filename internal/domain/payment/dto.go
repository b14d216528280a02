package payment

// ConfirmChainRequest asks the scanner to find a transfer the caller says
// they just sent.
type ConfirmChainRequest struct {
	ExpectedAmount float64 `json:"expected_amount" validate:"required,gt=0"`
}

// ConfirmCardRequest carries only the charge id. The amount is never taken
// from the client; the server re-verifies it with the processor.
type ConfirmCardRequest struct {
	ChargeID string `json:"charge_id" validate:"required,max=255"`
}

// AdminGrantRequest is an operator credit grant.
type AdminGrantRequest struct {
	IdentityKey string `json:"identity_key" validate:"required,identity_key"`
	GrantID     string `json:"grant_id" validate:"required,max=255"`
	Credits     int64  `json:"credits" validate:"required,gt=0"`
	Note        string `json:"note" validate:"max=500"`
}

// ReferralRequest credits the referrer for bringing the referee.
type ReferralRequest struct {
	ReferrerKey string `json:"referrer_key" validate:"required,identity_key"`
	RefereeKey  string `json:"referee_key" validate:"required,identity_key"`
	Credits     int64  `json:"credits" validate:"required,gt=0"`
}
