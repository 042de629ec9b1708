package ocr

import "errors"

var (
	// ErrInvalidImage is returned when the uploaded buffer cannot be decoded
	// as a supported image format. Non-retryable without a new upload.
	ErrInvalidImage = errors.New("invalid or unsupported image")

	// ErrRecognition is returned when the engine fails outright (crash,
	// corrupt buffer). Wrapped with the underlying cause.
	ErrRecognition = errors.New("recognition failed")

	// ErrNoText is returned when recognition succeeds but produces no usable
	// text at all. Surfaced explicitly so callers never mistake an engine
	// problem for a genuinely blank result.
	ErrNoText = errors.New("no text recognized")

	// ErrTimeout is returned when recognition exceeds the configured bound.
	ErrTimeout = errors.New("recognition timed out")

	// ErrPoolClosed is returned by Acquire after the pool has been shut down.
	ErrPoolClosed = errors.New("engine pool closed")
)
