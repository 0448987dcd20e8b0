package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestStatusIsTerminal(t *testing.T) {
	terminal := []JobStatus{StatusSucceeded, StatusFailed, StatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []JobStatus{StatusQueued, StatusRunning} {
		if s.IsTerminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestCanTransitionTo(t *testing.T) {
	all := []JobStatus{StatusQueued, StatusRunning, StatusSucceeded, StatusFailed, StatusCancelled}
	legal := map[JobStatus]map[JobStatus]bool{
		StatusQueued:  {StatusRunning: true, StatusCancelled: true},
		StatusRunning: {StatusSucceeded: true, StatusFailed: true, StatusCancelled: true},
	}

	// Exhaustive over every (from, to) pair: only the edges of the state
	// machine are legal, and terminal states have no outgoing edges.
	for _, from := range all {
		for _, to := range all {
			want := legal[from][to]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestJobClone(t *testing.T) {
	started := time.Now().UTC()
	job := &Job{
		ID:          uuid.New(),
		Status:      StatusRunning,
		InputRef:    "media/in.mp4",
		CommandSpec: []string{"whisper", "in.mp4"},
		Error:       &JobError{Kind: ErrorKindTool, Detail: "boom"},
		StartedAt:   &started,
	}

	c := job.Clone()
	c.CommandSpec[0] = "changed"
	c.Error.Detail = "changed"
	*c.StartedAt = started.Add(time.Hour)

	if job.CommandSpec[0] != "whisper" {
		t.Error("clone shares command spec backing array")
	}
	if job.Error.Detail != "boom" {
		t.Error("clone shares error pointer")
	}
	if !job.StartedAt.Equal(started) {
		t.Error("clone shares started_at pointer")
	}
}

func TestParseOptions_Defaults(t *testing.T) {
	opts, err := ParseOptions(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Model != DefaultModel || opts.Task != DefaultTask ||
		opts.Format != DefaultFormat || opts.MaxChars != DefaultMaxChars {
		t.Errorf("unexpected defaults: %+v", opts)
	}
}

func TestParseOptions_Valid(t *testing.T) {
	raw := []byte(`{"model":"medium","language":"cs","task":"translate","max_chars":60,"format":"vtt"}`)
	opts, err := ParseOptions(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Model != "medium" || opts.Language != "cs" || opts.Task != "translate" ||
		opts.MaxChars != 60 || opts.Format != "vtt" {
		t.Errorf("unexpected options: %+v", opts)
	}
}

func TestParseOptions_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad model":       `{"model":"huge"}`,
		"bad task":        `{"task":"summarize"}`,
		"max_chars low":   `{"max_chars":5}`,
		"max_chars high":  `{"max_chars":200}`,
		"bad format":      `{"format":"ass"}`,
		"unknown key":     `{"bitrate":"128k"}`,
		"malformed json":  `{`,
		"bad language":    `{"language":"english"}`,
	}
	for name, raw := range cases {
		if _, err := ParseOptions([]byte(raw)); !errors.Is(err, ErrInvalidOptions) {
			t.Errorf("%s: expected ErrInvalidOptions, got %v", name, err)
		}
	}
}

func TestOptionsFingerprint(t *testing.T) {
	a := Options{Model: "small", Task: "transcribe", MaxChars: 42, Format: "srt"}
	b := a
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical options must share a fingerprint")
	}
	b.Format = "vtt"
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("differing options must not share a fingerprint")
	}
}
