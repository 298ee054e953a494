package types

import "errors"

// Domain errors shared by the engine and its transports
var (
	// ErrEmptySeparator is returned when an engine is configured with a zero-length separator
	ErrEmptySeparator = errors.New("separator cannot be empty")
	// ErrClosed is returned when data is written after end-of-stream
	ErrClosed = errors.New("stream already ended")
	// ErrInvalidLine is returned by Line.Validate
	ErrInvalidLine = errors.New("invalid line")
)
