package gateway

import "errors"

// Sentinel errors for gateway operations.
var (
	// ErrClosed is returned when the gateway is not running or has shut down.
	ErrClosed = errors.New("gateway: closed")

	// ErrUnknownReceiver is returned when a command names a receiver that
	// is not attached.
	ErrUnknownReceiver = errors.New("gateway: unknown receiver")

	// ErrNoReceivers is returned when a line is dispatched with no
	// receiver attached. Clients see "ERROR:Receiver Error".
	ErrNoReceivers = errors.New("gateway: no receivers attached")

	// ErrTooManyConnections is returned when the connection limit is reached.
	ErrTooManyConnections = errors.New("gateway: too many connections")

	// ErrDuplicateReceiver is returned by AddReceiver for a name in use.
	ErrDuplicateReceiver = errors.New("gateway: duplicate receiver name")

	// ErrRunning is returned when configuring or starting a gateway that
	// is already running.
	ErrRunning = errors.New("gateway: already running")
)
