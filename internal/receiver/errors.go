package receiver

import "errors"

// Sentinel errors for receiver operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidCommand is returned for unknown command names and malformed
	// or out-of-range arguments. Clients see "ERROR:Invalid Command".
	ErrInvalidCommand = errors.New("receiver: invalid command")

	// ErrQueueFull is returned when a receiver's command queue is at its limit.
	ErrQueueFull = errors.New("receiver: command queue full")

	// ErrNoEnvelope is returned when a frame has no "!1" start marker.
	ErrNoEnvelope = errors.New("receiver: frame envelope not found")

	// ErrUnknownZone is returned when a zone name cannot be parsed.
	ErrUnknownZone = errors.New("receiver: unknown zone")

	// ErrDeviceClosed is returned when writing to a session that has been closed.
	ErrDeviceClosed = errors.New("receiver: device closed")
)
