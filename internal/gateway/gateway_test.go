package gateway

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/nerrad567/onkyod/internal/receiver"
)

func newTestGateway(t *testing.T, opts Options) (*Gateway, *fakeDevice) {
	t.Helper()
	gw := New(opts)
	dev := newFakeDevice()
	if err := gw.AddReceiver("main", dev, false); err != nil {
		t.Fatalf("AddReceiver() error = %v", err)
	}
	return gw, dev
}

func TestGatewayCommandRoundTrip(t *testing.T) {
	gw, dev := newTestGateway(t, Options{})
	runGateway(t, gw)

	c := attachClient(t, gw)
	c.expectLine(t, DefaultBanner)

	c.send(t, "power on\n")
	dev.expectWrite(t, "!1PWR01\r")

	dev.reply(t, "!1PWR01\x1a")
	c.expectLine(t, "OK:power:on")

	dev.reply(t, "!1MVL")
	dev.reply(t, "32\x1a!1SLI10\x1a")
	c.expectLine(t, "OK:volume:50")
	c.expectLine(t, "OK:input:DVD")
}

func TestGatewayBroadcastsToAllClients(t *testing.T) {
	gw, dev := newTestGateway(t, Options{Banner: "OK:test"})
	runGateway(t, gw)

	a := attachClient(t, gw)
	a.expectLine(t, "OK:test")
	b := attachClient(t, gw)
	b.expectLine(t, "OK:test")

	dev.reply(t, "!1AMT01\x1a")
	a.expectLine(t, "OK:mute:on")
	b.expectLine(t, "OK:mute:on")
}

func TestGatewayClientErrors(t *testing.T) {
	gw, dev := newTestGateway(t, Options{})
	runGateway(t, gw)

	c := attachClient(t, gw)
	c.expectLine(t, DefaultBanner)

	c.send(t, "bogus\n")
	c.expectLine(t, "ERROR:Invalid Command")

	c.send(t, "volume 500\r\n")
	c.expectLine(t, "ERROR:Invalid Command")

	// Blank lines are ignored.
	c.send(t, "\n  \r\n")
	c.send(t, "mute\n")
	dev.expectWrite(t, "!1AMTQSTN\r")

	c.send(t, "quit\n")
	c.expectClosed(t)
}

func TestGatewayOversizedLine(t *testing.T) {
	gw, _ := newTestGateway(t, Options{LineBufferSize: 16})
	runGateway(t, gw)

	c := attachClient(t, gw)
	c.expectLine(t, DefaultBanner)

	c.send(t, "volume 4000000000000000000000000000")
	c.send(t, "\nbogus\n")
	c.expectLine(t, "ERROR:Invalid Command")
}

func TestGatewayNoReceivers(t *testing.T) {
	gw := New(Options{})
	runGateway(t, gw)

	c := attachClient(t, gw)
	c.expectLine(t, DefaultBanner)
	c.send(t, "power on\n")
	c.expectLine(t, "ERROR:Receiver Error")
}

func TestGatewayConnectionLimit(t *testing.T) {
	gw, _ := newTestGateway(t, Options{MaxConnections: 1})
	runGateway(t, gw)

	first := attachClient(t, gw)
	first.expectLine(t, DefaultBanner)

	second := attachClient(t, gw)
	second.expectLine(t, "ERROR:Too many connections")
	second.expectClosed(t)

	// The first client is unaffected.
	first.send(t, "bogus\n")
	first.expectLine(t, "ERROR:Invalid Command")
}

func TestGatewayDeduplicatesQueuedCommands(t *testing.T) {
	gw, dev := newTestGateway(t, Options{
		Receiver: receiver.Options{CommandInterval: time.Hour},
	})
	runGateway(t, gw)

	c := attachClient(t, gw)
	c.expectLine(t, DefaultBanner)

	// The first command goes straight out; the rest wait for pacing.
	c.send(t, "power on\n")
	dev.expectWrite(t, "!1PWR01\r")

	c.send(t, "mute toggle\nmute toggle\nvolume 40\nmute toggle\ndimmer dim\n")
	var queue []string
	waitFor(t, "queued dimmer command", func() bool {
		queue = snapshot(t, gw).Receivers[0].Queue
		return len(queue) > 0 && queue[len(queue)-1] == "DIM01"
	})

	want := []string{"AMTTG", "MVL28", "DIM01"}
	if len(queue) != len(want) {
		t.Fatalf("queue = %q, want %q", queue, want)
	}
	for i := range want {
		if queue[i] != want[i] {
			t.Fatalf("queue = %q, want %q", queue, want)
		}
	}
	dev.expectNoWrite(t, 50*time.Millisecond)
}

func TestGatewayQueryOnStartAndPacing(t *testing.T) {
	gw := New(Options{Receiver: receiver.Options{CommandInterval: 20 * time.Millisecond}})
	dev := newFakeDevice()
	if err := gw.AddReceiver("main", dev, true); err != nil {
		t.Fatal(err)
	}
	runGateway(t, gw)

	dev.expectWrite(t, "!1PWRQSTN\r")
	dev.expectWrite(t, "!1ZPWQSTN\r")
	dev.expectWrite(t, "!1PW3QSTN\r")

	waitFor(t, "sent counter", func() bool {
		return snapshot(t, gw).Receivers[0].Stats.Sent == 3
	})
}

func TestGatewayPowerGating(t *testing.T) {
	gw, dev := newTestGateway(t, Options{})
	runGateway(t, gw)

	c := attachClient(t, gw)
	c.expectLine(t, DefaultBanner)

	dev.reply(t, "!1ZPW00\x1a")
	c.expectLine(t, "OK:zone2power:off")

	c.send(t, "zone2volume 20\n")
	c.send(t, "volume 20\n")
	dev.expectWrite(t, "!1MVL14\r")

	waitFor(t, "discard counter", func() bool {
		return snapshot(t, gw).Receivers[0].Stats.Discarded == 1
	})
}

func TestGatewayVirtualSleep(t *testing.T) {
	gw, dev := newTestGateway(t, Options{})
	runGateway(t, gw)

	c := attachClient(t, gw)
	c.expectLine(t, DefaultBanner)

	c.send(t, "zone2sleep 5\n")
	c.expectLine(t, "OK:zone2sleep:5")

	c.send(t, "zone2sleep 0\n")
	c.expectLine(t, "OK:zone2sleep:0")
	// Expiry turns the zone off.
	c.expectLine(t, "OK:zone2sleep:0")
	dev.expectWrite(t, "!1ZPW00\r")
}

func TestGatewaySubmit(t *testing.T) {
	rec := &recordingRecorder{}
	notes := &recordingNotifier{}
	gw, dev := newTestGateway(t, Options{Recorder: rec, Notifiers: []Notifier{notes}})
	runGateway(t, gw)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if err := gw.Submit(ctx, "main", "volume 40", "http"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	dev.expectWrite(t, "!1MVL28\r")

	if err := gw.Submit(ctx, "", "volume loud", "mqtt"); !errors.Is(err, receiver.ErrInvalidCommand) {
		t.Errorf("Submit(invalid) error = %v", err)
	}
	if err := gw.Submit(ctx, "attic", "power on", "mqtt"); !errors.Is(err, ErrUnknownReceiver) {
		t.Errorf("Submit(unknown) error = %v", err)
	}

	records := rec.all()
	if len(records) != 2 {
		t.Fatalf("recorded %d commands, want 2: %+v", len(records), records)
	}
	if records[0].Source != "http" || records[0].Receiver != "main" || records[0].Result != "ok" {
		t.Errorf("record[0] = %+v", records[0])
	}
	if records[1].Result == "ok" {
		t.Errorf("record[1] = %+v, want failure", records[1])
	}

	dev.reply(t, "!1MVL28\x1a")
	waitFor(t, "notifier", func() bool { return notes.has("main OK:volume:40\n") })
}

func TestGatewayStatusDump(t *testing.T) {
	notes := &recordingNotifier{}
	gw, dev := newTestGateway(t, Options{Notifiers: []Notifier{notes}})
	runGateway(t, gw)

	gw.RequestStatusDump()
	dev.expectWrite(t, "!1PWRQSTN\r")

	waitFor(t, "stats sink", func() bool {
		notes.mu.Lock()
		defer notes.mu.Unlock()
		_, ok := notes.stats["main"]
		return ok
	})
}

func TestGatewayDeviceLost(t *testing.T) {
	gw, dev := newTestGateway(t, Options{})
	runGateway(t, gw)

	c := attachClient(t, gw)
	c.expectLine(t, DefaultBanner)

	dev.w.Close()
	c.expectLine(t, "ERROR:Receiver Error")

	waitFor(t, "receiver removal", func() bool {
		return len(snapshot(t, gw).Receivers) == 0
	})
	c.send(t, "power on\n")
	c.expectLine(t, "ERROR:Receiver Error")
}

func TestGatewayIdleTimeout(t *testing.T) {
	gw, _ := newTestGateway(t, Options{IdleTimeout: 100 * time.Millisecond})
	runGateway(t, gw)

	c := attachClient(t, gw)
	c.expectLine(t, DefaultBanner)
	c.expectClosed(t)
}

func TestGatewayTCPListener(t *testing.T) {
	gw, dev := newTestGateway(t, Options{})
	ln, err := Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if err := gw.AddListener(ln); err != nil {
		t.Fatal(err)
	}
	runGateway(t, gw)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	c := &testClient{conn: conn, lines: make(chan string, 16)}
	go readLines(conn, c.lines)

	c.expectLine(t, DefaultBanner)
	c.send(t, "input cd\n")
	dev.expectWrite(t, "!1SLI23\r")

	waitFor(t, "tcp connection in snapshot", func() bool {
		conns := snapshot(t, gw).Connections
		return len(conns) == 1 && conns[0].Transport == "tcp"
	})
}

func TestGatewayConfigurationAfterRun(t *testing.T) {
	gw, _ := newTestGateway(t, Options{})
	if err := gw.AddReceiver("main", newFakeDevice(), false); !errors.Is(err, ErrDuplicateReceiver) {
		t.Errorf("duplicate AddReceiver() error = %v", err)
	}
	runGateway(t, gw)
	snapshot(t, gw)

	if err := gw.AddReceiver("other", newFakeDevice(), false); !errors.Is(err, ErrRunning) {
		t.Errorf("AddReceiver() while running error = %v", err)
	}
	if err := gw.Run(context.Background()); !errors.Is(err, ErrRunning) {
		t.Errorf("second Run() error = %v", err)
	}
}
