package receiver

import (
	"fmt"
	"io"
	"time"
)

// DefaultQueueLimit bounds the number of pending commands per receiver.
const DefaultQueueLimit = 64

// Options configures a Session.
type Options struct {
	// CommandInterval is the minimum gap between device writes.
	CommandInterval time.Duration

	// QueueLimit bounds pending commands. Zero uses DefaultQueueLimit.
	QueueLimit int

	// FrameLimit bounds an unterminated incoming frame. Zero uses
	// DefaultFrameLimit.
	FrameLimit int
}

// Stats are the per-receiver traffic counters.
type Stats struct {
	Sent        uint64 `json:"sent"`
	Received    uint64 `json:"received"`
	Discarded   uint64 `json:"discarded"`
	WriteErrors uint64 `json:"write_errors"`
}

// SessionSnapshot is a point-in-time view of a session for status output.
type SessionSnapshot struct {
	Name     string         `json:"name"`
	Power    []string       `json:"power"`
	Queue    []string       `json:"queue"`
	Sleep    map[string]int `json:"sleep,omitempty"`
	NextSend time.Time      `json:"next_send,omitempty"`
	Stats    Stats          `json:"stats"`
}

// Session is the state kept for one attached receiver: its device, power
// state, outgoing queue, pacing and virtual sleep timers.
//
// A Session is owned by a single goroutine and is not safe for concurrent
// use. The device may be read from another goroutine; those bytes are
// handed back through Receive.
type Session struct {
	name     string
	dev      io.ReadWriteCloser
	commands *CommandTable
	status   *StatusTable

	queue  *Queue
	pacer  *Pacer
	frames *FrameReader
	power  PowerSet
	sleep  [zoneCount]sleepTimer
	stats  Stats
	closed bool
}

// NewSession creates a session for dev. All zones start out powered so no
// command is discarded before the receiver has reported its state.
func NewSession(name string, dev io.ReadWriteCloser, commands *CommandTable, status *StatusTable, opts Options) *Session {
	limit := opts.QueueLimit
	if limit == 0 {
		limit = DefaultQueueLimit
	}
	return &Session{
		name:     name,
		dev:      dev,
		commands: commands,
		status:   status,
		queue:    NewQueue(limit),
		pacer:    NewPacer(opts.CommandInterval),
		frames:   NewFrameReader(opts.FrameLimit),
		power:    AllPowered,
	}
}

// Name returns the configured receiver name.
func (s *Session) Name() string { return s.name }

// Device returns the underlying device handle.
func (s *Session) Device() io.ReadWriteCloser { return s.dev }

// Power returns the last reported power state.
func (s *Session) Power() PowerSet { return s.power }

// Stats returns a copy of the traffic counters.
func (s *Session) Stats() Stats { return s.stats }

// QueueLen returns the number of pending commands.
func (s *Session) QueueLen() int { return s.queue.Len() }

// Dispatch parses and encodes one client line. Returned notifications are
// generated locally and should be broadcast.
func (s *Session) Dispatch(line string, now time.Time) ([]Notification, error) {
	return s.commands.Dispatch(s, line, now)
}

// Enqueue adds a command to the outgoing queue. Duplicates of a pending
// body are ignored.
func (s *Session) Enqueue(cmd QueuedCommand) error {
	_, err := s.queue.Push(cmd)
	return err
}

// QueryPower queues a power query for every zone.
func (s *Session) QueryPower() error {
	for _, z := range Zones {
		c, ok := s.commands.PowerCommand(z)
		if !ok {
			continue
		}
		if err := s.Enqueue(QueuedCommand{Body: c.Prefix + codeQuery, Zone: z, Power: true}); err != nil {
			return err
		}
	}
	return nil
}

// Receive consumes bytes read from the device and returns the decoded
// notifications in order.
func (s *Session) Receive(chunk []byte) []Notification {
	frames := s.frames.Feed(chunk)
	if len(frames) == 0 {
		return nil
	}
	out := make([]Notification, 0, len(frames))
	for _, f := range frames {
		st := s.status.Decode(f)
		s.stats.Received++
		if st.Power != nil {
			s.observePower(*st.Power)
		}
		out = append(out, st.Notification)
	}
	return out
}

func (s *Session) observePower(p PowerChange) {
	if p.On {
		s.power = s.power.With(p.Zone)
		return
	}
	s.power = s.power.Without(p.Zone)
	s.sleep[p.Zone].clear()
}

// Flush writes at most one queued command if pacing allows. It reports
// whether a command was written. A failed write still counts against
// pacing and the command is not retried.
func (s *Session) Flush(now time.Time) (bool, error) {
	if s.queue.Len() == 0 {
		return false, nil
	}
	if s.closed {
		return false, ErrDeviceClosed
	}
	if ready, _ := s.pacer.Ready(now); !ready {
		return false, nil
	}

	cmd, ok, discarded := s.queue.PopSendable(s.power)
	s.stats.Discarded += uint64(discarded)
	if !ok {
		return false, nil
	}

	s.pacer.MarkSent(now)
	if _, err := s.dev.Write(Frame(cmd.Body)); err != nil {
		s.stats.WriteErrors++
		return false, fmt.Errorf("writing %s to %s: %w", cmd.Body, s.name, err)
	}
	s.stats.Sent++
	return true, nil
}

// SetSleep starts a virtual sleep timer for z and returns the minutes
// remaining. A zone that is off gets no timer.
func (s *Session) SetSleep(z Zone, minutes int, now time.Time) int {
	t := &s.sleep[z]
	if !s.power.Has(z) {
		t.clear()
		return 0
	}
	t.deadline = now.Add(time.Duration(minutes) * time.Minute)
	t.notify = nextNotify(t.deadline, now)
	return minutes
}

// ClearSleep cancels the virtual sleep timer for z.
func (s *Session) ClearSleep(z Zone) {
	s.sleep[z].clear()
}

// SleepRemaining returns the whole minutes left on z's virtual timer.
func (s *Session) SleepRemaining(z Zone, now time.Time) int {
	return remainingMinutes(s.sleep[z].deadline, now)
}

// FireTimers handles virtual sleep deadlines and per-minute countdown
// notifications that are due at now.
func (s *Session) FireTimers(now time.Time) []Notification {
	var out []Notification
	for _, z := range Zones {
		t := &s.sleep[z]
		if !t.active() {
			continue
		}

		if !now.Before(t.deadline) {
			t.clear()
			if c, ok := s.commands.PowerCommand(z); ok {
				err := s.Enqueue(QueuedCommand{Body: c.Prefix + codeOff, Zone: z, Power: true})
				if err != nil {
					out = append(out, ReceiverError)
				}
			}
			out = append(out, sleepNotification(z, 0))
			continue
		}

		if !t.notify.IsZero() && !now.Before(t.notify) {
			out = append(out, sleepNotification(z, remainingMinutes(t.deadline, now)))
			t.notify = nextNotify(t.deadline, now)
		}
	}
	return out
}

// NextDeadline returns the earliest time the session needs attention:
// the next allowed write when commands are pending, or a sleep timer
// event. ok is false when nothing is scheduled.
func (s *Session) NextDeadline(now time.Time) (time.Time, bool) {
	var next time.Time
	consider := func(t time.Time) {
		if !t.IsZero() && (next.IsZero() || t.Before(next)) {
			next = t
		}
	}

	if s.queue.Len() > 0 {
		_, at := s.pacer.Ready(now)
		consider(at)
	}
	for _, z := range Zones {
		consider(s.sleep[z].deadline)
		consider(s.sleep[z].notify)
	}
	return next, !next.IsZero()
}

// Snapshot returns the session state for reporting.
func (s *Session) Snapshot(now time.Time) SessionSnapshot {
	snap := SessionSnapshot{
		Name:     s.name,
		Power:    s.power.On(),
		Queue:    s.queue.Bodies(),
		NextSend: s.pacer.Next(),
		Stats:    s.stats,
	}
	for _, z := range Zones {
		if s.sleep[z].active() {
			if snap.Sleep == nil {
				snap.Sleep = make(map[string]int)
			}
			snap.Sleep[z.String()] = remainingMinutes(s.sleep[z].deadline, now)
		}
	}
	return snap
}

// Close closes the device. Further flushes fail with ErrDeviceClosed.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.dev.Close()
}
