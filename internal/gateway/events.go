package gateway

import (
	"time"

	"github.com/nerrad567/onkyod/internal/receiver"
)

// event is anything forwarded to the loop goroutine.
type event interface{}

type deviceData struct {
	rs   *receiverState
	data []byte
}

type deviceFailed struct {
	rs  *receiverState
	err error
}

type accepted struct {
	client Client
}

type clientData struct {
	client Client
	data   []byte
}

type clientClosed struct {
	client Client
	err    error
}

// submitRequest carries a command from a non-connection source (MQTT,
// HTTP). An empty receiver name targets every receiver.
type submitRequest struct {
	receiver string
	line     string
	source   string
	reply    chan error
}

type snapshotRequest struct {
	reply chan Snapshot
}

// Snapshot is a point-in-time view of the gateway.
type Snapshot struct {
	Started     time.Time                  `json:"started"`
	Receivers   []receiver.SessionSnapshot `json:"receivers"`
	Listeners   []string                   `json:"listeners"`
	Connections []ConnectionInfo           `json:"connections"`
}
