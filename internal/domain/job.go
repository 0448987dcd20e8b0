package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a subtitle transcription job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// IsTerminal returns true if the status represents a final state.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to "to" is a legal edge of
// the job state machine. Terminal states have no outgoing edges.
func (s JobStatus) CanTransitionTo(to JobStatus) bool {
	switch s {
	case StatusQueued:
		return to == StatusRunning || to == StatusCancelled
	case StatusRunning:
		return to == StatusSucceeded || to == StatusFailed || to == StatusCancelled
	}
	return false
}

// ErrorKind classifies why a job failed.
type ErrorKind string

const (
	ErrorKindTool     ErrorKind = "tool_failure"
	ErrorKindTimeout  ErrorKind = "timeout"
	ErrorKindInternal ErrorKind = "internal"
)

// JobError is the structured failure detail stored on a failed job.
type JobError struct {
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail"`
}

// Job represents one subtitle transcription request throughout its lifecycle.
// The job store is the sole owner of records; everyone else works on snapshots.
type Job struct {
	ID     uuid.UUID `json:"job_id"`
	Status JobStatus `json:"status"`

	InputRef    string `json:"input_ref"`
	InputDigest string `json:"-"`
	OutputRef   string `json:"output_ref,omitempty"`

	Options     Options  `json:"options"`
	CommandSpec []string `json:"command_spec,omitempty"`

	Error *JobError `json:"error,omitempty"`

	MediaSeconds float64 `json:"media_seconds,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Clone returns a deep copy safe to hand out across goroutines.
func (j *Job) Clone() *Job {
	c := *j
	if j.CommandSpec != nil {
		c.CommandSpec = append([]string(nil), j.CommandSpec...)
	}
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// SubmitRequest is an incoming transcription submission. InputRef points at
// media already reachable through the configured blob store; handlers that
// accept uploads spool the file first and fill these fields themselves.
type SubmitRequest struct {
	InputRef    string `json:"input_ref" binding:"required"`
	InputDigest string `json:"-"`
	Options     []byte `json:"-"`
}

// SubmitResponse is returned after a successful submission.
type SubmitResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status JobStatus `json:"status"`
}

// RunRequest is the read-only snapshot handed to the process runner at
// admission time. The runner never touches the stored job directly.
type RunRequest struct {
	JobID       uuid.UUID
	InputRef    string
	InputDigest string
	Options     Options
	CommandSpec []string
	WorkDir     string
	InputPath   string
	Timeout     time.Duration
}

// RunResult reports the outcome of one external tool invocation.
type RunResult struct {
	Status       JobStatus
	OutputRef    string
	Error        *JobError
	ExitCode     int
	Stdout       string
	Stderr       string
	Duration     time.Duration
	MediaSeconds float64
	CacheHit     bool
}

// ModelInfo describes one available Whisper model.
type ModelInfo struct {
	Name      string `json:"name"`
	Params    string `json:"params"`
	Multilang bool   `json:"multilingual"`
}
