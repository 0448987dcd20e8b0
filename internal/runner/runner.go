// Package runner executes the external transcription tool as an isolated
// subprocess and turns its output into a stored subtitle artifact.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/1llyaa/subtitles-api/internal/cache"
	"github.com/1llyaa/subtitles-api/internal/domain"
	"github.com/1llyaa/subtitles-api/internal/metrics"
	"github.com/1llyaa/subtitles-api/internal/storage"
	"github.com/1llyaa/subtitles-api/internal/subtitle"
)

const (
	// maxOutputBytes caps captured stdout/stderr to prevent memory
	// exhaustion from a chatty tool.
	maxOutputBytes = 64 * 1024

	outputTruncatedMsg = "\n... output truncated (64 KB limit) ..."

	// inputBaseName is the fixed basename for the fetched input inside the
	// work dir; whisper derives its JSON output name from it.
	inputBaseName = "source"
)

// WhisperRunner invokes the whisper CLI on fetched media and renders the
// resulting segments into subtitle artifacts.
type WhisperRunner struct {
	whisperPath string
	ffprobePath string
	blobs       storage.BlobStore
	results     cache.ResultCache
	logger      *zap.Logger
}

// New creates a runner for the given tool paths and blob storage backend.
func New(whisperPath, ffprobePath string, blobs storage.BlobStore, results cache.ResultCache, logger *zap.Logger) *WhisperRunner {
	return &WhisperRunner{
		whisperPath: whisperPath,
		ffprobePath: ffprobePath,
		blobs:       blobs,
		results:     results,
		logger:      logger,
	}
}

// Prepare creates the job's work dir and resolves the full argument list.
// After this point the command spec is fixed; nothing about the invocation
// depends on the job record anymore.
func (r *WhisperRunner) Prepare(job *domain.Job, timeout time.Duration) (*domain.RunRequest, error) {
	workDir, err := os.MkdirTemp("", fmt.Sprintf("subtitles-%s-*", job.ID))
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	inputPath := filepath.Join(workDir, inputBaseName+filepath.Ext(job.InputRef))

	return &domain.RunRequest{
		JobID:       job.ID,
		InputRef:    job.InputRef,
		InputDigest: job.InputDigest,
		Options:     job.Options,
		CommandSpec: r.plan(job.Options, workDir, inputPath),
		WorkDir:     workDir,
		InputPath:   inputPath,
		Timeout:     timeout,
	}, nil
}

// plan builds the whisper argv from validated options only; user input never
// reaches the argument list unescaped.
func (r *WhisperRunner) plan(opts domain.Options, workDir, inputPath string) []string {
	argv := []string{
		r.whisperPath,
		inputPath,
		"--model", opts.Model,
		"--task", opts.Task,
		"--output_format", "json",
		"--output_dir", workDir,
		"--verbose", "False",
	}
	if opts.Language != "" {
		argv = append(argv, "--language", opts.Language)
	}
	return argv
}

// Run executes the prepared invocation. It always returns a result for the
// scheduler to record; the error return is reserved for conditions where no
// meaningful result could be produced.
func (r *WhisperRunner) Run(ctx context.Context, req *domain.RunRequest) (*domain.RunResult, error) {
	defer os.RemoveAll(req.WorkDir)

	// Identical media with identical options is deterministic; reuse the
	// previous artifact when we have one.
	cacheKey := cache.Key(req.InputDigest, req.Options)
	if ref, ok, err := r.results.Lookup(ctx, cacheKey); err != nil {
		r.logger.Warn("Result cache lookup failed", zap.Error(err), zap.String("job_id", req.JobID.String()))
	} else if ok {
		if _, err := r.blobs.Stat(ctx, ref); err == nil {
			metrics.CacheHits.Inc()
			r.logger.Info("Job served from result cache",
				zap.String("job_id", req.JobID.String()),
				zap.String("output_ref", ref),
			)
			return &domain.RunResult{Status: domain.StatusSucceeded, OutputRef: ref, CacheHit: true}, nil
		}
	}

	if err := r.blobs.Fetch(ctx, req.InputRef, req.InputPath); err != nil {
		return internalFailure(fmt.Sprintf("fetch input media: %v", err)), nil
	}

	mediaSeconds := r.probeDuration(ctx, req.InputPath)

	result := r.invoke(ctx, req)
	result.MediaSeconds = mediaSeconds
	if result.Status != domain.StatusSucceeded {
		return result, nil
	}

	outputJSON := filepath.Join(req.WorkDir, inputBaseName+".json")
	data, err := os.ReadFile(outputJSON)
	if err != nil {
		return internalFailure(fmt.Sprintf("read transcription output: %v", err)), nil
	}

	segments, language, err := subtitle.ParseWhisperOutput(data)
	if err != nil {
		return internalFailure(err.Error()), nil
	}

	doc, err := subtitle.Render(req.Options.Format, segments, req.Options.MaxChars)
	if err != nil {
		return internalFailure(err.Error()), nil
	}

	artifactKey := "artifacts/" + req.JobID.String() + subtitle.FileExt(req.Options.Format)
	ref, err := r.blobs.Save(ctx, artifactKey, strings.NewReader(doc), int64(len(doc)))
	if err != nil {
		return internalFailure(fmt.Sprintf("store artifact: %v", err)), nil
	}
	result.OutputRef = ref

	if err := r.results.Store(ctx, cacheKey, ref); err != nil {
		r.logger.Warn("Result cache store failed", zap.Error(err), zap.String("job_id", req.JobID.String()))
	}

	r.logger.Info("Transcription completed",
		zap.String("job_id", req.JobID.String()),
		zap.String("language", language),
		zap.Int("segments", len(segments)),
		zap.Duration("elapsed", result.Duration),
	)
	return result, nil
}

// invoke runs the whisper subprocess with the per-job timeout and reports
// its raw outcome. It never parses output.
func (r *WhisperRunner) invoke(ctx context.Context, req *domain.RunRequest) *domain.RunResult {
	runCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, req.CommandSpec[0], req.CommandSpec[1:]...)

	// Own process group so a forced kill sweeps any children the tool forks.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr limitedBuffer
	stdout.limit = maxOutputBytes
	stderr.limit = maxOutputBytes
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	result := &domain.RunResult{
		Stdout:   truncateOutput(stdout.String(), stdout.truncated),
		Stderr:   truncateOutput(stderr.String(), stderr.truncated),
		Duration: elapsed,
	}

	killGroup := func() {
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		killGroup()
		result.Status = domain.StatusFailed
		result.ExitCode = -1
		result.Error = &domain.JobError{
			Kind:   domain.ErrorKindTimeout,
			Detail: fmt.Sprintf("transcription exceeded %s", req.Timeout),
		}
	case errors.Is(ctx.Err(), context.Canceled):
		killGroup()
		result.Status = domain.StatusCancelled
		result.ExitCode = -1
	case err != nil:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.Status = domain.StatusFailed
			result.ExitCode = exitErr.ExitCode()
			result.Error = &domain.JobError{
				Kind:   domain.ErrorKindTool,
				Detail: toolErrorDetail(exitErr.ExitCode(), result.Stderr),
			}
		} else {
			result.Status = domain.StatusFailed
			result.ExitCode = -1
			result.Error = &domain.JobError{Kind: domain.ErrorKindInternal, Detail: err.Error()}
		}
	default:
		result.Status = domain.StatusSucceeded
	}

	return result
}

// probeDuration asks ffprobe for the media duration in seconds. Failures are
// non-fatal; the duration only feeds status reporting.
func (r *WhisperRunner) probeDuration(ctx context.Context, inputPath string) float64 {
	cmd := exec.CommandContext(ctx, r.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	)
	out, err := cmd.Output()
	if err != nil {
		r.logger.Debug("Duration probe failed", zap.Error(err))
		return 0
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}

func internalFailure(detail string) *domain.RunResult {
	return &domain.RunResult{
		Status:   domain.StatusFailed,
		ExitCode: -1,
		Error:    &domain.JobError{Kind: domain.ErrorKindInternal, Detail: detail},
	}
}

func toolErrorDetail(exitCode int, stderr string) string {
	detail := strings.TrimSpace(stderr)
	if detail == "" {
		return fmt.Sprintf("tool exited with code %d", exitCode)
	}
	return fmt.Sprintf("tool exited with code %d: %s", exitCode, detail)
}

// limitedBuffer is a bytes.Buffer that silently discards writes past a limit.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (lb *limitedBuffer) Write(p []byte) (n int, err error) {
	if lb.truncated {
		return len(p), nil
	}

	remaining := lb.limit - lb.buf.Len()
	if remaining <= 0 {
		lb.truncated = true
		return len(p), nil
	}

	orig := len(p)
	if len(p) > remaining {
		lb.truncated = true
		p = p[:remaining]
	}

	if _, err := lb.buf.Write(p); err != nil {
		return 0, err
	}
	return orig, nil
}

func (lb *limitedBuffer) String() string {
	return lb.buf.String()
}

func truncateOutput(s string, wasTruncated bool) string {
	if wasTruncated {
		return s + outputTruncatedMsg
	}
	return s
}
