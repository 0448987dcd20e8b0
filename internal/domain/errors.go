package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found by ID (unknown
	// or already purged by the retention janitor).
	ErrJobNotFound = errors.New("job not found")

	// ErrJobTerminal is returned when an operation is requested on a job
	// that already reached a terminal state.
	ErrJobTerminal = errors.New("job already in a terminal state")

	// ErrInvalidTransition is the store's state machine guard. Seeing it
	// outside the cancel path indicates a scheduler bug.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrInvalidOptions is returned when the submitted options do not
	// conform to the accepted schema.
	ErrInvalidOptions = errors.New("invalid transcription options")

	// ErrUnresolvableInput is returned when the submitted input_ref does
	// not point at readable media.
	ErrUnresolvableInput = errors.New("input media cannot be resolved")

	// ErrEmptyUpload is returned when a multipart submission carries no file.
	ErrEmptyUpload = errors.New("uploaded file is empty or missing")

	// ErrPayloadTooLarge is returned when the uploaded media exceeds the
	// configured size limit.
	ErrPayloadTooLarge = errors.New("uploaded media exceeds maximum size")

	// ErrQueueFull is returned when the admission queue is at capacity.
	ErrQueueFull = errors.New("job queue is full, try again later")

	// ErrResultNotReady is returned when a subtitle artifact is requested
	// for a job that has not succeeded.
	ErrResultNotReady = errors.New("job result is not available")
)
