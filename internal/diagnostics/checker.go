// Package diagnostics validates external tools and filesystem paths at
// startup, so a broken deployment fails loudly instead of failing every job.
package diagnostics

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Status is the outcome of one check.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

// Item is one check result.
type Item struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// Report combines all startup checks.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	HasFailures bool      `json:"has_failures"`
	Items       []Item    `json:"items"`
}

// Checker validates the whisper toolchain and storage paths.
type Checker struct {
	lookPath   func(string) (string, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// NewCheckerForTests builds a checker with injected OS dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}

// Run executes all startup checks and returns a combined report.
// ffprobe is advisory: without it jobs still run, just without media duration.
func (c *Checker) Run(whisperPath, ffprobePath, storageRoot string) Report {
	items := []Item{
		c.checkTool("whisper", whisperPath, "Install openai-whisper and ensure the binary is on PATH."),
		c.checkTool("ffprobe", ffprobePath, "Install ffmpeg; media duration probing is skipped without it."),
		c.checkWritableDir(storageRoot),
	}

	hasFailures := false
	for _, item := range items {
		// ffprobe absence degrades, it does not block startup.
		if item.Status == StatusFail && item.ID != "tool_ffprobe" {
			hasFailures = true
			break
		}
	}

	return Report{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkTool verifies a required CLI executable resolves.
func (c *Checker) checkTool(name, path, hint string) Item {
	resolved, err := c.lookPath(path)
	if err != nil {
		return Item{
			ID:      "tool_" + name,
			Name:    name,
			Status:  StatusFail,
			Message: fmt.Sprintf("Tool not found: %s", path),
			Hint:    hint,
		}
	}

	return Item{
		ID:      "tool_" + name,
		Name:    name,
		Status:  StatusPass,
		Message: fmt.Sprintf("Found at %s", resolved),
	}
}

// checkWritableDir verifies the storage root exists and accepts writes.
func (c *Checker) checkWritableDir(root string) Item {
	item := Item{
		ID:   "storage_root",
		Name: "Storage root",
	}

	if err := c.mkdirAll(root, 0o755); err != nil {
		item.Status = StatusFail
		item.Message = fmt.Sprintf("Cannot create storage root: %s", root)
		item.Hint = "Check permissions for the storage directory."
		return item
	}

	f, err := c.createTemp(root, ".diag-*")
	if err != nil {
		item.Status = StatusFail
		item.Message = fmt.Sprintf("Storage root is not writable: %s", root)
		item.Hint = "Check permissions for the storage directory."
		return item
	}
	name := f.Name()
	f.Close()
	_ = c.remove(name)

	item.Status = StatusPass
	item.Message = fmt.Sprintf("Writable at %s", filepath.Clean(root))
	return item
}
