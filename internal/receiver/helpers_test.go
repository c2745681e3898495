package receiver

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

// fakeDevice records writes and can be told to fail them.
type fakeDevice struct {
	written  bytes.Buffer
	writeErr error
	closed   bool
}

func (d *fakeDevice) Read(_ []byte) (int, error) {
	return 0, errors.New("fakeDevice: read not supported")
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	if d.writeErr != nil {
		return 0, d.writeErr
	}
	return d.written.Write(p)
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

var (
	testCommands = NewCommandTable()
	testStatus   = NewStatusTable()
	testEpoch    = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func newTestSession(t *testing.T, opts Options) (*Session, *fakeDevice) {
	t.Helper()
	dev := &fakeDevice{}
	return NewSession("living", dev, testCommands, testStatus, opts), dev
}

func mustDispatch(t *testing.T, s *Session, line string, now time.Time) []Notification {
	t.Helper()
	n, err := s.Dispatch(line, now)
	if err != nil {
		t.Fatalf("Dispatch(%q) error = %v", line, err)
	}
	return n
}
