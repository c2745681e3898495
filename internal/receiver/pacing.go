package receiver

import "time"

// DefaultCommandInterval is the minimum gap between two writes to a device.
const DefaultCommandInterval = 80 * time.Millisecond

// Pacer enforces a minimum interval between device writes.
type Pacer struct {
	interval time.Duration
	last     time.Time
}

// NewPacer creates a pacer. A non-positive interval uses DefaultCommandInterval.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		interval = DefaultCommandInterval
	}
	return &Pacer{interval: interval}
}

// Ready reports whether a command may be written at now. When it may not,
// the earliest time it may is returned. A clock that has moved backwards
// restarts the interval from now.
func (p *Pacer) Ready(now time.Time) (bool, time.Time) {
	if p.last.IsZero() {
		return true, now
	}
	if now.Before(p.last) {
		p.last = now
		return false, now.Add(p.interval)
	}
	next := p.last.Add(p.interval)
	if now.Before(next) {
		return false, next
	}
	return true, now
}

// MarkSent records a write attempt at now.
func (p *Pacer) MarkSent(now time.Time) {
	p.last = now
}

// Next returns the earliest time the next write is allowed. The zero time
// means immediately.
func (p *Pacer) Next() time.Time {
	if p.last.IsZero() {
		return time.Time{}
	}
	return p.last.Add(p.interval)
}

// Interval returns the configured gap.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}
