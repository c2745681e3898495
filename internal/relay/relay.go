package relay

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/nerrad567/onkyod/internal/gateway"
	"github.com/nerrad567/onkyod/internal/infrastructure/influxdb"
	"github.com/nerrad567/onkyod/internal/infrastructure/mqtt"
	"github.com/nerrad567/onkyod/internal/receiver"
)

// DefaultQueueSize is the relay buffer when none is configured.
const DefaultQueueSize = 512

// errorKey names the state topic used for keyless error notifications.
const errorKey = "error"

// MQTTClient is the subset of *mqtt.Client the relay uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// MetricsWriter is the subset of *influxdb.Client the relay uses.
type MetricsWriter interface {
	WriteReceiverStatus(receiver, key, value string, ok bool)
	WriteReceiverCounters(receiver string, counters influxdb.Counters)
}

// Logger is the logging surface the relay needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Relay. MQTT and Metrics may each be nil.
type Options struct {
	MQTT    MQTTClient
	Topics  mqtt.Topics
	QoS     byte
	Metrics MetricsWriter

	QueueSize int
	Logger    Logger
	Now       func() time.Time
}

// StateMessage is the JSON payload published on state topics.
type StateMessage struct {
	Receiver  string    `json:"receiver"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	OK        bool      `json:"ok"`
	Timestamp time.Time `json:"timestamp"`
}

// StatsMessage is the JSON payload published on stats topics.
type StatsMessage struct {
	Receiver  string         `json:"receiver"`
	Stats     receiver.Stats `json:"stats"`
	Timestamp time.Time      `json:"timestamp"`
}

type job struct {
	receiver string
	note     receiver.Notification
	stats    *receiver.Stats
	at       time.Time
}

// Relay implements gateway.Notifier and gateway.StatsSink.
type Relay struct {
	opts    Options
	logger  Logger
	queue   chan job
	dropped atomic.Uint64
}

var (
	_ gateway.Notifier  = (*Relay)(nil)
	_ gateway.StatsSink = (*Relay)(nil)
)

// New creates a relay. Call Run to start delivering.
func New(opts Options) *Relay {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := &Relay{
		opts:   opts,
		logger: opts.Logger,
		queue:  make(chan job, opts.QueueSize),
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	return r
}

// Notify queues a notification from receiverName.
func (r *Relay) Notify(receiverName string, n receiver.Notification) {
	r.enqueue(job{receiver: receiverName, note: n, at: r.opts.Now()})
}

// ReceiverStats queues a counters update for receiverName.
func (r *Relay) ReceiverStats(receiverName string, stats receiver.Stats) {
	r.enqueue(job{receiver: receiverName, stats: &stats, at: r.opts.Now()})
}

func (r *Relay) enqueue(j job) {
	select {
	case r.queue <- j:
	default:
		if n := r.dropped.Add(1); n == 1 || n%100 == 0 {
			r.logger.Warn("relay queue full, dropping notifications",
				"receiver", j.receiver,
				"dropped", n,
			)
		}
	}
}

// Dropped returns how many jobs were discarded on a full queue.
func (r *Relay) Dropped() uint64 {
	return r.dropped.Load()
}

// Run delivers queued jobs until ctx is cancelled, then flushes what is
// already queued.
func (r *Relay) Run(ctx context.Context) {
	for {
		select {
		case j := <-r.queue:
			r.deliver(j)
		case <-ctx.Done():
			for {
				select {
				case j := <-r.queue:
					r.deliver(j)
				default:
					return
				}
			}
		}
	}
}

func (r *Relay) deliver(j job) {
	if j.stats != nil {
		r.deliverStats(j)
		return
	}

	ok, key, value := j.note.Fields()
	if key == "" {
		key = errorKey
	}

	if r.opts.Metrics != nil {
		r.opts.Metrics.WriteReceiverStatus(j.receiver, key, value, ok)
	}

	if r.opts.MQTT == nil {
		return
	}
	payload, err := json.Marshal(StateMessage{
		Receiver:  j.receiver,
		Key:       key,
		Value:     value,
		OK:        ok,
		Timestamp: j.at.UTC(),
	})
	if err != nil {
		r.logger.Error("encoding state message", "error", err)
		return
	}
	// Errors are events, not state, so only successes are retained.
	topic := r.opts.Topics.ReceiverState(j.receiver, key)
	if err := r.opts.MQTT.Publish(topic, payload, r.opts.QoS, ok); err != nil {
		r.logger.Warn("publishing receiver state failed",
			"topic", topic,
			"error", err,
		)
	}
}

func (r *Relay) deliverStats(j job) {
	s := *j.stats
	if r.opts.Metrics != nil {
		r.opts.Metrics.WriteReceiverCounters(j.receiver, influxdb.Counters{
			Sent:        s.Sent,
			Received:    s.Received,
			Discarded:   s.Discarded,
			WriteErrors: s.WriteErrors,
		})
	}

	if r.opts.MQTT == nil {
		return
	}
	payload, err := json.Marshal(StatsMessage{Receiver: j.receiver, Stats: s, Timestamp: j.at.UTC()})
	if err != nil {
		r.logger.Error("encoding stats message", "error", err)
		return
	}
	topic := r.opts.Topics.ReceiverStats(j.receiver)
	if err := r.opts.MQTT.Publish(topic, payload, r.opts.QoS, true); err != nil {
		r.logger.Warn("publishing receiver stats failed", "topic", topic, "error", err)
	}
}
