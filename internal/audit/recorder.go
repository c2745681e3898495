package audit

import (
	"context"
	"sync/atomic"

	"github.com/nerrad567/onkyod/internal/gateway"
)

// DefaultQueueSize is the recorder buffer when none is configured.
const DefaultQueueSize = 256

// Logger is the logging surface the recorder needs.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Recorder implements gateway.CommandRecorder. Records are buffered and
// written serially by Run; when the buffer is full they are dropped so the
// gateway loop never waits on SQLite.
type Recorder struct {
	repo    Repository
	ch      chan *Entry
	logger  Logger
	dropped atomic.Uint64
}

// NewRecorder creates a recorder writing to repo.
func NewRecorder(repo Repository, size int, logger Logger) *Recorder {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Recorder{
		repo:   repo,
		ch:     make(chan *Entry, size),
		logger: logger,
	}
}

// Record enqueues rec without blocking.
func (r *Recorder) Record(rec gateway.CommandRecord) {
	entry := &Entry{
		Source:    rec.Source,
		ClientID:  rec.ClientID,
		Receiver:  rec.Receiver,
		Command:   rec.Line,
		Result:    rec.Result,
		CreatedAt: rec.At,
	}

	select {
	case r.ch <- entry:
	default:
		if r.dropped.Add(1) == 1 && r.logger != nil {
			r.logger.Warn("audit queue full, dropping entries", "receiver", rec.Receiver)
		}
	}
}

// Dropped returns how many records were discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Run writes queued entries until ctx is cancelled, then drains what is
// left and returns.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case entry := <-r.ch:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.ch:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry *Entry) {
	// The caller's context may already be cancelled during the final drain.
	if err := r.repo.Create(context.Background(), entry); err != nil && r.logger != nil {
		r.logger.Error("audit write failed",
			"receiver", entry.Receiver,
			"command", entry.Command,
			"error", err,
		)
	}
}
