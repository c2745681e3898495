package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by onkyod.
const (
	measurementStatus   = "receiver_status"
	measurementCounters = "receiver_counters"
)

// Counters is a snapshot of a receiver session's traffic counters.
type Counters struct {
	Sent        uint64
	Received    uint64
	Discarded   uint64
	WriteErrors uint64
}

// WriteReceiverStatus records one decoded receiver notification.
//
// The raw value is always kept; values that parse as numbers ("40",
// "-3.5", "87.5") also get a numeric field so they can be graphed.
// The write is non-blocking and batched.
//
// Example:
//
//	client.WriteReceiverStatus("living", "volume", "40", true)
func (c *Client) WriteReceiverStatus(receiver, key, value string, ok bool) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(statusPoint(receiver, key, value, ok, time.Now()))
}

// WriteReceiverCounters records a receiver's traffic counters.
func (c *Client) WriteReceiverCounters(receiver string, counters Counters) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(countersPoint(receiver, counters, time.Now()))
}

func statusPoint(receiver, key, value string, ok bool, at time.Time) *write.Point {
	fields := map[string]interface{}{
		"raw": value,
		"ok":  ok,
	}
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		fields["value"] = n
	}

	return write.NewPoint(
		measurementStatus,
		map[string]string{
			"receiver": receiver,
			"key":      key,
		},
		fields,
		at,
	)
}

func countersPoint(receiver string, counters Counters, at time.Time) *write.Point {
	return write.NewPoint(
		measurementCounters,
		map[string]string{
			"receiver": receiver,
		},
		map[string]interface{}{
			"sent":         counters.Sent,
			"received":     counters.Received,
			"discarded":    counters.Discarded,
			"write_errors": counters.WriteErrors,
		},
		at,
	)
}
