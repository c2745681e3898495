package gateway

import (
	"time"

	"github.com/nerrad567/onkyod/internal/receiver"
)

// Notifier receives every notification the gateway broadcasts, tagged with
// the receiver it came from. Notify is called from the event loop and must
// not block.
type Notifier interface {
	Notify(receiverName string, n receiver.Notification)
}

// StatsSink is implemented by notifiers that also want per-receiver
// counters when a status dump is requested.
type StatsSink interface {
	ReceiverStats(receiverName string, stats receiver.Stats)
}

// CommandRecord describes one command line dispatched to one receiver.
type CommandRecord struct {
	// Source is the ingress: "tcp", "unix", "ws", "mqtt", "http" or "signal".
	Source string

	// ClientID identifies the connection, empty for non-connection sources.
	ClientID string

	Receiver string
	Line     string

	// Result is "ok" or the error text.
	Result string

	At time.Time
}

// CommandRecorder receives a record for every dispatched command. Record is
// called from the event loop and must not block.
type CommandRecorder interface {
	Record(rec CommandRecord)
}
