package genprovider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInvokeSendsIdempotencyKey(t *testing.T) {
	var submitKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/jobs":
			submitKey = r.Header.Get("Idempotency-Key")
			json.NewEncoder(w).Encode(Job{ID: "job-1", Status: "queued"})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/jobs/job-1":
			json.NewEncoder(w).Encode(Job{ID: "job-1", Status: "succeeded", ResultURL: "https://cdn.example.com/out.png"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Token: "tok"})

	job, err := client.Invoke(context.Background(), JobSpec{
		Kind:           "image",
		Prompt:         "a lighthouse at dusk",
		IdempotencyKey: "gen-abc",
	})
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if job.Status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", job.Status)
	}

	// The key rides the submit, so a retried or half-delivered POST cannot
	// create a second job downstream.
	if submitKey != "gen-abc" {
		t.Fatalf("expected idempotency key on submit, got %q", submitKey)
	}
}

func TestInvokeReportsJobFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/jobs":
			json.NewEncoder(w).Encode(Job{ID: "job-2", Status: "queued"})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/jobs/job-2":
			json.NewEncoder(w).Encode(Job{ID: "job-2", Status: "failed"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Token: "tok"})

	job, err := client.Invoke(context.Background(), JobSpec{Kind: "image", Prompt: "x"})
	if err != ErrJobFailed {
		t.Fatalf("expected ErrJobFailed, got %v", err)
	}
	if job == nil || job.Status != StatusFailed {
		t.Fatalf("expected failed job alongside the sentinel, got %+v", job)
	}
}
