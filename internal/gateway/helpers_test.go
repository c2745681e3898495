package gateway

import (
	"bufio"
	"context"
	"io"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/onkyod/internal/receiver"
)

const testTimeout = 2 * time.Second

// fakeDevice is a receiver whose output the test feeds and whose input the
// test reads back.
type fakeDevice struct {
	r      *io.PipeReader
	w      *io.PipeWriter
	writes chan string
}

func newFakeDevice() *fakeDevice {
	r, w := io.Pipe()
	return &fakeDevice{r: r, w: w, writes: make(chan string, 64)}
}

func (d *fakeDevice) Read(p []byte) (int, error) { return d.r.Read(p) }

func (d *fakeDevice) Write(p []byte) (int, error) {
	select {
	case d.writes <- string(p):
	default:
	}
	return len(p), nil
}

func (d *fakeDevice) Close() error {
	return d.w.CloseWithError(os.ErrClosed)
}

// reply makes the device emit raw bytes towards the gateway.
func (d *fakeDevice) reply(t *testing.T, raw string) {
	t.Helper()
	if _, err := d.w.Write([]byte(raw)); err != nil {
		t.Fatalf("device reply: %v", err)
	}
}

func (d *fakeDevice) expectWrite(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-d.writes:
		if got != want {
			t.Fatalf("device write = %q, want %q", got, want)
		}
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for device write %q", want)
	}
}

func (d *fakeDevice) expectNoWrite(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case got := <-d.writes:
		t.Fatalf("unexpected device write %q", got)
	case <-time.After(wait):
	}
}

// testClient is the far end of a net.Pipe attached to the gateway. Lines
// are read continuously so gateway writes never stall.
type testClient struct {
	conn  net.Conn
	lines chan string
}

func attachClient(t *testing.T, gw *Gateway) *testClient {
	t.Helper()
	server, client := net.Pipe()
	tc := &testClient{conn: client, lines: make(chan string, 64)}
	go readLines(client, tc.lines)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := gw.Attach(ctx, NewStreamClient(server, time.Second)); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	return tc
}

func readLines(r io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

func (c *testClient) send(t *testing.T, s string) {
	t.Helper()
	c.conn.SetWriteDeadline(time.Now().Add(testTimeout))
	if _, err := io.WriteString(c.conn, s); err != nil {
		t.Fatalf("client write: %v", err)
	}
}

func (c *testClient) expectLine(t *testing.T, want string) {
	t.Helper()
	select {
	case got, ok := <-c.lines:
		if !ok {
			t.Fatalf("connection closed, want %q", want)
		}
		if got != want {
			t.Fatalf("client got %q, want %q", got, want)
		}
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func (c *testClient) expectClosed(t *testing.T) {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case line, ok := <-c.lines:
			if !ok {
				return
			}
			t.Logf("draining %q", line)
		case <-deadline:
			t.Fatal("connection still open")
		}
	}
}

func runGateway(t *testing.T, gw *Gateway) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Error("gateway did not stop")
		}
	})
}

func snapshot(t *testing.T, gw *Gateway) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	snap, err := gw.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	return snap
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// recordingNotifier collects notifications and stats.
type recordingNotifier struct {
	mu    sync.Mutex
	notes []string
	stats map[string]receiver.Stats
}

func (r *recordingNotifier) Notify(name string, n receiver.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, name+" "+n.Line())
}

func (r *recordingNotifier) ReceiverStats(name string, stats receiver.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stats == nil {
		r.stats = make(map[string]receiver.Stats)
	}
	r.stats[name] = stats
}

func (r *recordingNotifier) has(note string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notes {
		if n == note {
			return true
		}
	}
	return false
}

type recordingRecorder struct {
	mu      sync.Mutex
	records []CommandRecord
}

func (r *recordingRecorder) Record(rec CommandRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *recordingRecorder) all() []CommandRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CommandRecord(nil), r.records...)
}
