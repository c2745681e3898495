package receiver

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestPacer(t *testing.T) {
	p := NewPacer(80 * time.Millisecond)

	if ok, _ := p.Ready(testEpoch); !ok {
		t.Fatal("fresh pacer not ready")
	}
	p.MarkSent(testEpoch)

	ok, next := p.Ready(testEpoch.Add(10 * time.Millisecond))
	if ok {
		t.Fatal("ready before interval elapsed")
	}
	if want := testEpoch.Add(80 * time.Millisecond); !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
	if ok, _ := p.Ready(testEpoch.Add(80 * time.Millisecond)); !ok {
		t.Error("not ready once interval elapsed")
	}
}

func TestPacerClockJumpBackwards(t *testing.T) {
	p := NewPacer(80 * time.Millisecond)
	p.MarkSent(testEpoch)

	back := testEpoch.Add(-time.Hour)
	ok, next := p.Ready(back)
	if ok {
		t.Fatal("ready after clock moved backwards")
	}
	if want := back.Add(80 * time.Millisecond); !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
	if ok, _ := p.Ready(back.Add(80 * time.Millisecond)); !ok {
		t.Error("pacer stalled after clock jump")
	}
}

func TestSessionFlushPaces(t *testing.T) {
	s, dev := newTestSession(t, Options{CommandInterval: 100 * time.Millisecond})
	mustDispatch(t, s, "power on", testEpoch)
	mustDispatch(t, s, "volume 40", testEpoch)

	sent, err := s.Flush(testEpoch)
	if err != nil || !sent {
		t.Fatalf("Flush() = %v, %v", sent, err)
	}
	if sent, _ := s.Flush(testEpoch.Add(50 * time.Millisecond)); sent {
		t.Fatal("second write inside pacing interval")
	}

	next, ok := s.NextDeadline(testEpoch.Add(50 * time.Millisecond))
	if !ok || !next.Equal(testEpoch.Add(100*time.Millisecond)) {
		t.Errorf("NextDeadline() = %v, %v", next, ok)
	}

	if sent, _ := s.Flush(testEpoch.Add(100 * time.Millisecond)); !sent {
		t.Fatal("Flush() after interval sent nothing")
	}
	if got := dev.written.String(); got != "!1PWR01\r!1MVL28\r" {
		t.Errorf("device got %q", got)
	}
	if st := s.Stats(); st.Sent != 2 {
		t.Errorf("Sent = %d, want 2", st.Sent)
	}
	if _, ok := s.NextDeadline(testEpoch.Add(time.Second)); ok {
		t.Error("NextDeadline() set with empty queue and no timers")
	}
}

func TestSessionWriteFailure(t *testing.T) {
	s, dev := newTestSession(t, Options{})
	dev.writeErr = errors.New("port gone")
	mustDispatch(t, s, "power on", testEpoch)

	sent, err := s.Flush(testEpoch)
	if err == nil || sent {
		t.Fatalf("Flush() = %v, %v; want write error", sent, err)
	}
	if ForError(err) != ReceiverError {
		t.Errorf("ForError() = %q", ForError(err))
	}
	if s.QueueLen() != 0 {
		t.Error("failed command should not be retried")
	}
	if st := s.Stats(); st.WriteErrors != 1 || st.Sent != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestSessionReceiveUpdatesPower(t *testing.T) {
	s, dev := newTestSession(t, Options{})

	got := s.Receive([]byte("!1ZPW00\x1a!1MVL"))
	if !reflect.DeepEqual(got, []Notification{"OK:zone2power:off\n"}) {
		t.Fatalf("Receive() = %q", got)
	}
	if s.Power().Has(Zone2) {
		t.Fatal("zone2 still on after ZPW00")
	}

	got = s.Receive([]byte("32\x1a"))
	if !reflect.DeepEqual(got, []Notification{"OK:volume:50\n"}) {
		t.Fatalf("Receive() = %q", got)
	}

	mustDispatch(t, s, "zone2volume 30", testEpoch)
	mustDispatch(t, s, "zone2power on", testEpoch)
	for i := 0; i < 3; i++ {
		s.Flush(testEpoch.Add(time.Duration(i) * time.Second))
	}
	if got := dev.written.String(); got != "!1ZPW01\r" {
		t.Errorf("device got %q, want only the power command", got)
	}
	if st := s.Stats(); st.Discarded != 1 || st.Received != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestSessionQueryPower(t *testing.T) {
	s, _ := newTestSession(t, Options{})
	if err := s.QueryPower(); err != nil {
		t.Fatalf("QueryPower() error = %v", err)
	}
	want := []string{"PWRQSTN", "ZPWQSTN", "PW3QSTN"}
	if got := s.queue.Bodies(); !reflect.DeepEqual(got, want) {
		t.Errorf("queued %q, want %q", got, want)
	}
}

func TestVirtualSleepCountdown(t *testing.T) {
	s, dev := newTestSession(t, Options{})

	got := mustDispatch(t, s, "zone2sleep 3", testEpoch)
	if !reflect.DeepEqual(got, []Notification{"OK:zone2sleep:3\n"}) {
		t.Fatalf("zone2sleep 3 = %q", got)
	}
	if s.QueueLen() != 0 {
		t.Fatal("virtual sleep queued a command")
	}

	next, ok := s.NextDeadline(testEpoch)
	if !ok || !next.Equal(testEpoch.Add(time.Minute)) {
		t.Fatalf("NextDeadline() = %v, %v; want +1m", next, ok)
	}

	if got := s.FireTimers(testEpoch.Add(30 * time.Second)); len(got) != 0 {
		t.Fatalf("FireTimers() early = %q", got)
	}

	got = s.FireTimers(testEpoch.Add(time.Minute))
	if !reflect.DeepEqual(got, []Notification{"OK:zone2sleep:2\n"}) {
		t.Fatalf("FireTimers(+1m) = %q", got)
	}

	// A late wake-up still lands on the deadline-anchored schedule.
	got = s.FireTimers(testEpoch.Add(2*time.Minute + 10*time.Second))
	if !reflect.DeepEqual(got, []Notification{"OK:zone2sleep:1\n"}) {
		t.Fatalf("FireTimers(+2m10s) = %q", got)
	}
	next, _ = s.NextDeadline(testEpoch.Add(2*time.Minute + 10*time.Second))
	if !next.Equal(testEpoch.Add(3 * time.Minute)) {
		t.Errorf("NextDeadline() = %v, want deadline", next)
	}

	if got := mustDispatch(t, s, "zone2sleep", testEpoch.Add(2*time.Minute+30*time.Second)); got[0] != "OK:zone2sleep:1\n" {
		t.Errorf("zone2sleep status = %q", got)
	}

	got = s.FireTimers(testEpoch.Add(3 * time.Minute))
	if !reflect.DeepEqual(got, []Notification{"OK:zone2sleep:0\n"}) {
		t.Fatalf("FireTimers(deadline) = %q", got)
	}
	if !reflect.DeepEqual(s.queue.Bodies(), []string{"ZPW00"}) {
		t.Fatalf("queued %q, want ZPW00", s.queue.Bodies())
	}
	s.Flush(testEpoch.Add(3 * time.Minute))
	if dev.written.String() != "!1ZPW00\r" {
		t.Errorf("device got %q", dev.written.String())
	}
	if _, ok := s.NextDeadline(testEpoch.Add(4 * time.Minute)); ok {
		t.Error("timer still scheduled after expiry")
	}
}

func TestVirtualSleepOffAndPowerOff(t *testing.T) {
	s, _ := newTestSession(t, Options{})

	mustDispatch(t, s, "zone3sleep 30", testEpoch)
	got := mustDispatch(t, s, "zone3sleep off", testEpoch)
	if !reflect.DeepEqual(got, []Notification{"OK:zone3sleep:0\n"}) {
		t.Fatalf("zone3sleep off = %q", got)
	}
	if s.SleepRemaining(Zone3, testEpoch) != 0 {
		t.Error("timer survived off")
	}

	mustDispatch(t, s, "zone3sleep 30", testEpoch)
	s.Receive([]byte("!1PW300\x1a"))
	if s.SleepRemaining(Zone3, testEpoch) != 0 {
		t.Error("timer survived zone power off")
	}

	got = mustDispatch(t, s, "zone3sleep 10", testEpoch)
	if !reflect.DeepEqual(got, []Notification{"OK:zone3sleep:0\n"}) {
		t.Errorf("sleep on an off zone = %q, want 0", got)
	}
	if _, ok := s.NextDeadline(testEpoch); ok {
		t.Error("timer armed for an off zone")
	}
}

func TestSessionSnapshot(t *testing.T) {
	s, _ := newTestSession(t, Options{})
	mustDispatch(t, s, "volume up", testEpoch)
	mustDispatch(t, s, "zone2sleep 5", testEpoch)
	s.Receive([]byte("!1PW300\x1a"))

	snap := s.Snapshot(testEpoch.Add(90 * time.Second))
	if snap.Name != "living" {
		t.Errorf("Name = %q", snap.Name)
	}
	if !reflect.DeepEqual(snap.Power, []string{"main", "zone2"}) {
		t.Errorf("Power = %q", snap.Power)
	}
	if !reflect.DeepEqual(snap.Queue, []string{"MVLUP"}) {
		t.Errorf("Queue = %q", snap.Queue)
	}
	if snap.Sleep["zone2"] != 4 {
		t.Errorf("Sleep = %v", snap.Sleep)
	}
}

func TestSessionClose(t *testing.T) {
	s, dev := newTestSession(t, Options{})
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !dev.closed {
		t.Error("device not closed")
	}
	mustDispatch(t, s, "power on", testEpoch)
	if _, err := s.Flush(testEpoch); !errors.Is(err, ErrDeviceClosed) {
		t.Errorf("Flush() after Close error = %v", err)
	}
}
