package cardproc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Charge statuses as standardized from the processor.
const (
	StatusSucceeded = "succeeded"
	StatusPending   = "pending"
	StatusFailed    = "failed"
)

var (
	// ErrChargeNotFound is returned when the processor has no such charge
	ErrChargeNotFound = errors.New("charge not found")

	// ErrUnavailable is returned for transport failures and 5xx responses
	ErrUnavailable = errors.New("card processor unavailable")
)

// Config holds card processor API configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the card processor's server-side API. Amounts always come
// from here, never from a client-declared value.
type Client struct {
	httpClient *http.Client
	config     Config
}

// Charge is the processor's view of one charge.
type Charge struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// NewClient creates a card processor API client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

// VerifyCharge fetches the charge's server-verified status and amount.
func (c *Client) VerifyCharge(ctx context.Context, chargeID string) (*Charge, error) {
	if strings.TrimSpace(chargeID) == "" {
		return nil, fmt.Errorf("validation error: charge id must be non-empty")
	}
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("card processor client is not initialized")
	}
	if strings.TrimSpace(c.config.BaseURL) == "" {
		return nil, fmt.Errorf("card processor config error: base_url is empty")
	}

	base := strings.TrimRight(c.config.BaseURL, "/")
	url := base + "/v1/charges/" + chargeID

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrChargeNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("card processor returned non-2xx status: %d, body: %s", resp.StatusCode, string(body))
	}

	var out struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Amount   int64  `json:"amount"` // smallest currency unit
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse charge response: %w", err)
	}

	return &Charge{
		ID:       out.ID,
		Status:   normalizeStatus(out.Status),
		Amount:   float64(out.Amount) / 100,
		Currency: strings.ToUpper(out.Currency),
	}, nil
}

// normalizeStatus maps processor-specific statuses to the internal set.
func normalizeStatus(s string) string {
	switch strings.ToLower(s) {
	case "succeeded", "success", "completed", "paid", "captured":
		return StatusSucceeded
	case "failed", "canceled", "cancelled", "declined":
		return StatusFailed
	default:
		return StatusPending
	}
}
