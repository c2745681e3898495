package receiver

import (
	"strconv"
	"time"
)

// sleepTimer is a locally kept sleep deadline for a zone with no native
// sleep command. Zero times mean unset.
type sleepTimer struct {
	deadline time.Time
	notify   time.Time
}

func (t *sleepTimer) active() bool {
	return !t.deadline.IsZero()
}

func (t *sleepTimer) clear() {
	*t = sleepTimer{}
}

// remainingMinutes rounds the time left up to whole minutes.
func remainingMinutes(deadline, now time.Time) int {
	if deadline.IsZero() {
		return 0
	}
	left := deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	return int((left + time.Minute - 1) / time.Minute)
}

// nextNotify returns the next whole-minute boundary before deadline that
// is after now, counted back from the deadline so notifications do not
// drift. It returns the zero time when less than a minute remains.
func nextNotify(deadline, now time.Time) time.Time {
	left := deadline.Sub(now)
	if left <= 0 {
		return time.Time{}
	}
	k := (left - 1) / time.Minute
	if k == 0 {
		return time.Time{}
	}
	return deadline.Add(-k * time.Minute)
}

func sleepNotification(z Zone, minutes int) Notification {
	return OK(z.String()+"sleep", strconv.Itoa(minutes))
}
