package generation

// GenerateRequest asks for one media generation. RequestID is the client's
// dedup token; retries with the same id are rejected within the window.
type GenerateRequest struct {
	RequestID string            `json:"request_id" validate:"required,max=128"`
	Kind      string            `json:"kind" validate:"required,job_kind"`
	Prompt    string            `json:"prompt" validate:"required,max=2000"`
	Params    map[string]string `json:"params" validate:"omitempty,max=32"`
	Free      bool              `json:"free"`
}
