package genprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Job statuses reported by the provider.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusRunning   = "running"
)

var (
	// ErrJobFailed is a definitive provider-side failure
	ErrJobFailed = errors.New("generation job failed")

	// ErrAmbiguous means the outcome is unknown (timeout, connection reset
	// after submit). The job may still have completed downstream.
	ErrAmbiguous = errors.New("generation outcome unknown")

	// ErrUnavailable is returned when the provider cannot be reached at all
	ErrUnavailable = errors.New("generation provider unavailable")
)

// JobSpec describes the requested generation. Treated as opaque beyond the
// fields needed for submission. IdempotencyKey rides the Idempotency-Key
// header so a retried or half-delivered submit cannot create a second job.
type JobSpec struct {
	Kind           string            `json:"kind"` // image, video
	Prompt         string            `json:"prompt"`
	Params         map[string]string `json:"params,omitempty"`
	IdempotencyKey string            `json:"-"`
}

// Job is the provider's view of one generation job.
type Job struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	ResultURL string `json:"result_url,omitempty"`
}

// Config holds generation provider configuration
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client submits jobs to the generation provider and polls their status.
type Client struct {
	httpClient *http.Client
	config     Config
}

// NewClient creates a generation provider client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

// Invoke submits the job and waits for its terminal status. A transport
// error after submission returns ErrAmbiguous with the job id when known:
// timeout does not mean failure.
func (c *Client) Invoke(ctx context.Context, spec JobSpec) (*Job, error) {
	job, err := c.submit(ctx, spec)
	if err != nil {
		return nil, err
	}

	final, err := c.poll(ctx, job.ID)
	if err != nil {
		// The job exists downstream; its outcome must be reconciled, not
		// assumed failed.
		return job, fmt.Errorf("%w: job %s: %v", ErrAmbiguous, job.ID, err)
	}

	switch final.Status {
	case StatusSucceeded:
		return final, nil
	case StatusFailed:
		return final, ErrJobFailed
	default:
		return final, fmt.Errorf("%w: job %s still %s", ErrAmbiguous, final.ID, final.Status)
	}
}

// GetJob fetches the provider's authoritative status for a job.
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, fmt.Errorf("validation error: job id must be non-empty")
	}

	body, status, err := c.do(ctx, http.MethodGet, "/v1/jobs/"+jobID, nil, "")
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("provider returned non-2xx status: %d, body: %s", status, string(body))
	}

	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job response: %w", err)
	}
	job.Status = normalizeStatus(job.Status)
	return &job, nil
}

func (c *Client) submit(ctx context.Context, spec JobSpec) (*Job, error) {
	payload, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job spec: %w", err)
	}

	body, status, err := c.do(ctx, http.MethodPost, "/v1/jobs", payload, spec.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("provider returned non-2xx status: %d, body: %s", status, string(body))
	}

	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("failed to parse submit response: %w", err)
	}
	job.Status = normalizeStatus(job.Status)
	return &job, nil
}

func (c *Client) poll(ctx context.Context, jobID string) (*Job, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		job, err := c.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status == StatusSucceeded || job.Status == StatusFailed {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, idempotencyKey string) ([]byte, int, error) {
	if c == nil || c.httpClient == nil {
		return nil, 0, fmt.Errorf("generation provider client is not initialized")
	}
	if strings.TrimSpace(c.config.BaseURL) == "" {
		return nil, 0, fmt.Errorf("generation provider config error: base_url is empty")
	}

	base := strings.TrimRight(c.config.BaseURL, "/")

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewBuffer(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.Token)
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return body, resp.StatusCode, nil
}

func normalizeStatus(s string) string {
	switch strings.ToLower(s) {
	case "succeeded", "success", "completed", "done":
		return StatusSucceeded
	case "failed", "error", "canceled", "cancelled":
		return StatusFailed
	default:
		return StatusRunning
	}
}
