// Package v1alpha1 holds the wire types of the public API.
package v1alpha1

import (
	"net/http"
	"time"
)

// JobReply acknowledges an enqueued job.
type JobReply struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobStatusReply reports the state of one job. PerformedAt is set once
// the job reached a terminal state.
type JobStatusReply struct {
	JobID       string     `json:"job_id"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
	PerformedAt *time.Time `json:"performed_at,omitempty"`
}

// Error is the error payload of every non-2xx response. Type and Trace
// are filled only when the service runs in debug mode.
type Error struct {
	Message   string `json:"message"`
	JobID     string `json:"job_id,omitempty"`
	Type      string `json:"type,omitempty"`
	Trace     string `json:"trace,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Health is the liveness payload.
type Health struct {
	Status string `json:"status"`
}

func (JobReply) Render(w http.ResponseWriter, r *http.Request) error { return nil }

func (JobStatusReply) Render(w http.ResponseWriter, r *http.Request) error { return nil }

func (Error) Render(w http.ResponseWriter, r *http.Request) error { return nil }

func (Health) Render(w http.ResponseWriter, r *http.Request) error { return nil }
