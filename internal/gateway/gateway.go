package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/onkyod/internal/receiver"
)

// Defaults applied by New for zero Options fields.
const (
	DefaultBanner         = "OK:onkyocontrol v0.1"
	DefaultMaxConnections = 20
	DefaultLineBufferSize = 256
	DefaultWriteTimeout   = 2 * time.Second
)

// TooManyConnections is written to a client rejected at the connection limit.
const TooManyConnections = "ERROR:Too many connections\n"

const (
	readBufferSize   = 512
	readRetryDelay   = time.Second
	acceptRetryDelay = 100 * time.Millisecond
	shutdownTimeout  = 5 * time.Second
)

// Logger defines the logging interface for the gateway.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Gateway.
type Options struct {
	Logger Logger

	// Banner is sent to every client on connect, without the newline.
	Banner string

	// MaxConnections bounds concurrent clients.
	MaxConnections int

	// LineBufferSize bounds a client input line.
	LineBufferSize int

	// IdleTimeout closes clients with no input for this long. Zero disables it.
	IdleTimeout time.Duration

	// WriteTimeout bounds each line written to a stream client.
	WriteTimeout time.Duration

	// Receiver holds per-session pacing and queue settings.
	Receiver receiver.Options

	// Notifiers receive every broadcast notification.
	Notifiers []Notifier

	// Recorder receives a record of every dispatched command. May be nil.
	Recorder CommandRecorder

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

type receiverState struct {
	name         string
	session      *receiver.Session
	queryOnStart bool
	closed       bool
}

// Gateway is the onkyod event loop. Configure it with AddReceiver and
// AddListener, then call Run. Attach, Submit, Snapshot and
// RequestStatusDump are safe to call from any goroutine while Run is
// active.
type Gateway struct {
	opts     Options
	logger   Logger
	commands *receiver.CommandTable
	status   *receiver.StatusTable

	receivers []*receiverState
	byName    map[string]*receiverState
	listeners []net.Listener
	conns     *ConnectionManager

	events chan event
	dump   chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	started time.Time
}

// New creates a Gateway.
func New(opts Options) *Gateway {
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Banner == "" {
		opts.Banner = DefaultBanner
	}
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = DefaultMaxConnections
	}
	if opts.LineBufferSize <= 0 {
		opts.LineBufferSize = DefaultLineBufferSize
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Gateway{
		opts:     opts,
		logger:   opts.Logger,
		commands: receiver.NewCommandTable(),
		status:   receiver.NewStatusTable(),
		byName:   make(map[string]*receiverState),
		conns:    NewConnectionManager(opts.MaxConnections, opts.LineBufferSize),
		events:   make(chan event),
		dump:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// AddReceiver attaches a receiver device under name. Receivers are
// dispatched to in the order they are added. It must be called before Run.
func (g *Gateway) AddReceiver(name string, dev io.ReadWriteCloser, queryOnStart bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return ErrRunning
	}
	if _, dup := g.byName[name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateReceiver, name)
	}

	rs := &receiverState{
		name:         name,
		session:      receiver.NewSession(name, dev, g.commands, g.status, g.opts.Receiver),
		queryOnStart: queryOnStart,
	}
	g.receivers = append(g.receivers, rs)
	g.byName[name] = rs
	return nil
}

// AddListener accepts clients from ln once Run starts. It must be called
// before Run.
func (g *Gateway) AddListener(ln net.Listener) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return ErrRunning
	}
	g.listeners = append(g.listeners, ln)
	return nil
}

// Run executes the event loop until ctx is cancelled, then closes every
// receiver, listener and connection in that order.
func (g *Gateway) Run(ctx context.Context) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return ErrRunning
	}
	g.running = true
	g.started = g.opts.Now()
	g.mu.Unlock()

	g.logger.Info("gateway started",
		"receivers", len(g.receivers),
		"listeners", len(g.listeners),
	)

	for _, rs := range g.receivers {
		if rs.queryOnStart {
			if err := rs.session.QueryPower(); err != nil {
				g.logger.Warn("queueing power query failed", "receiver", rs.name, "error", err)
			}
		}
		g.wg.Add(1)
		go g.readDevice(rs)
	}
	for _, ln := range g.listeners {
		g.logger.Info("listening", "network", ln.Addr().Network(), "address", ln.Addr().String())
		g.wg.Add(1)
		go g.acceptLoop(ln)
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		now := g.opts.Now()
		g.fireTimers(now)
		g.flush(now)
		g.expireIdle(now)

		var wake <-chan time.Time
		if d, ok := g.nextWake(now); ok {
			timer.Reset(d)
			wake = timer.C
		}

		select {
		case <-ctx.Done():
			g.shutdown()
			return nil
		case ev := <-g.events:
			g.handle(ev, g.opts.Now())
		case <-g.dump:
			g.statusDump(g.opts.Now())
		case <-wake:
		}
		timer.Stop()
	}
}

// Attach hands a client connection to the running loop, which sends the
// banner and starts reading from it. Listener connections are attached
// automatically.
func (g *Gateway) Attach(ctx context.Context, c Client) error {
	if err := g.send(ctx, accepted{client: c}); err != nil {
		c.Close() //nolint:errcheck // the client never reached the loop
		return err
	}
	return nil
}

// Submit dispatches one command line to the named receiver, or to every
// receiver when name is empty, and waits for the result. Notifications are
// broadcast as usual; the returned error is what a line client would have
// been told.
func (g *Gateway) Submit(ctx context.Context, name, line, source string) error {
	req := submitRequest{receiver: name, line: line, source: source, reply: make(chan error, 1)}
	if err := g.send(ctx, req); err != nil {
		return err
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-g.done:
		return ErrClosed
	}
}

// Snapshot returns the current state of every receiver and connection.
func (g *Gateway) Snapshot(ctx context.Context) (Snapshot, error) {
	req := snapshotRequest{reply: make(chan Snapshot, 1)}
	if err := g.send(ctx, req); err != nil {
		return Snapshot{}, err
	}
	select {
	case snap := <-req.reply:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-g.done:
		return Snapshot{}, ErrClosed
	}
}

// RequestStatusDump asks the loop to log its state, publish counters and
// refresh every receiver's status. It never blocks; requests made while one
// is pending are merged.
func (g *Gateway) RequestStatusDump() {
	select {
	case g.dump <- struct{}{}:
	default:
	}
}

// send delivers ev to the loop on behalf of an external caller.
func (g *Gateway) send(ctx context.Context, ev event) error {
	select {
	case g.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-g.done:
		return ErrClosed
	}
}

// post delivers ev from a reader goroutine. It reports false once the loop
// has shut down.
func (g *Gateway) post(ev event) bool {
	select {
	case g.events <- ev:
		return true
	case <-g.done:
		return false
	}
}

func (g *Gateway) handle(ev event, now time.Time) {
	switch e := ev.(type) {
	case deviceData:
		if e.rs.closed {
			return
		}
		for _, n := range e.rs.session.Receive(e.data) {
			g.broadcast(e.rs.name, n)
		}
	case deviceFailed:
		g.receiverFailed(e.rs, e.err)
	case accepted:
		g.accept(e.client, now)
	case clientData:
		g.clientInput(e.client, e.data, now)
	case clientClosed:
		g.drop(e.client, e.err)
	case submitRequest:
		e.reply <- g.dispatch(e.receiver, e.line, e.source, "", now)
	case snapshotRequest:
		e.reply <- g.snapshot(now)
	default:
		g.logger.Error("unknown gateway event", "type", fmt.Sprintf("%T", ev))
	}
}

func (g *Gateway) fireTimers(now time.Time) {
	for _, rs := range g.receivers {
		for _, n := range rs.session.FireTimers(now) {
			g.broadcast(rs.name, n)
		}
	}
}

func (g *Gateway) flush(now time.Time) {
	for _, rs := range g.receivers {
		if _, err := rs.session.Flush(now); err != nil {
			g.logger.Warn("receiver write failed", "receiver", rs.name, "error", err)
			g.broadcast(rs.name, receiver.ReceiverError)
		}
	}
}

func (g *Gateway) expireIdle(now time.Time) {
	if g.opts.IdleTimeout <= 0 {
		return
	}
	for _, c := range g.conns.IdleSince(now.Add(-g.opts.IdleTimeout)) {
		g.drop(c, errIdle)
	}
}

var errIdle = errors.New("idle timeout")

// nextWake returns how long the loop may block before some deadline is due.
func (g *Gateway) nextWake(now time.Time) (time.Duration, bool) {
	var next time.Time
	consider := func(t time.Time) {
		if !t.IsZero() && (next.IsZero() || t.Before(next)) {
			next = t
		}
	}

	for _, rs := range g.receivers {
		if t, ok := rs.session.NextDeadline(now); ok {
			consider(t)
		}
	}
	if g.opts.IdleTimeout > 0 {
		if oldest, ok := g.conns.OldestActivity(); ok {
			consider(oldest.Add(g.opts.IdleTimeout))
		}
	}

	if next.IsZero() {
		return 0, false
	}
	return max(next.Sub(now), 0), true
}

// dispatch runs line against one receiver, or all of them when target is
// empty, and returns the first error.
func (g *Gateway) dispatch(target, line, source, clientID string, now time.Time) error {
	targets := g.receivers
	if target != "" {
		rs, ok := g.byName[target]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownReceiver, target)
		}
		targets = []*receiverState{rs}
	}
	if len(targets) == 0 {
		return ErrNoReceivers
	}

	var first error
	for _, rs := range targets {
		notes, err := rs.session.Dispatch(line, now)
		for _, n := range notes {
			g.broadcast(rs.name, n)
		}
		g.record(source, clientID, rs.name, line, err, now)
		if err != nil && first == nil {
			first = fmt.Errorf("%s: %w", rs.name, err)
		}
	}
	return first
}

func (g *Gateway) record(source, clientID, name, line string, err error, now time.Time) {
	if g.opts.Recorder == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = err.Error()
	}
	g.opts.Recorder.Record(CommandRecord{
		Source:   source,
		ClientID: clientID,
		Receiver: name,
		Line:     line,
		Result:   result,
		At:       now,
	})
}

func (g *Gateway) broadcast(name string, n receiver.Notification) {
	g.logger.Debug("notification", "receiver", name, "line", strings.TrimRight(n.Line(), "\n"))
	for _, c := range g.conns.Broadcast(n.Line()) {
		g.drop(c, errors.New("broadcast write failed"))
	}
	for _, nt := range g.opts.Notifiers {
		nt.Notify(name, n)
	}
}

func (g *Gateway) accept(c Client, now time.Time) {
	if err := g.conns.Add(c, now); err != nil {
		g.logger.Warn("rejecting client", "remote", c.RemoteAddr(), "transport", c.Transport(), "error", err)
		if errors.Is(err, ErrTooManyConnections) {
			c.WriteLine(TooManyConnections) //nolint:errcheck // closing anyway
		}
		c.Close() //nolint:errcheck // rejected
		return
	}

	g.logger.Info("client connected",
		"id", c.ID(),
		"remote", c.RemoteAddr(),
		"transport", c.Transport(),
		"connections", g.conns.Len(),
	)
	if err := c.WriteLine(g.opts.Banner + "\n"); err != nil {
		g.drop(c, err)
		return
	}

	g.wg.Add(1)
	go g.readClient(c)
}

func (g *Gateway) clientInput(c Client, data []byte, now time.Time) {
	if !g.conns.Has(c.ID()) {
		return
	}
	lines, overflowed := g.conns.Feed(c.ID(), data, now)
	if overflowed {
		g.logger.Debug("discarded oversized client line", "id", c.ID())
	}
	for _, line := range lines {
		if !g.handleLine(c, line, now) {
			return
		}
	}
}

// handleLine processes one client line. It reports false once the client
// is gone.
func (g *Gateway) handleLine(c Client, line string, now time.Time) bool {
	if strings.TrimSpace(line) == "" {
		return true
	}
	if name, _ := receiver.SplitLine(line); name == "quit" {
		g.drop(c, nil)
		return false
	}

	err := g.dispatch("", line, c.Transport(), c.ID(), now)
	if !g.conns.Has(c.ID()) {
		return false
	}
	if err == nil {
		return true
	}
	if werr := c.WriteLine(receiver.ForError(err).Line()); werr != nil {
		g.drop(c, werr)
		return false
	}
	return true
}

// drop removes and closes a client. A nil reason means the client asked
// to leave.
func (g *Gateway) drop(c Client, reason error) {
	if _, ok := g.conns.Remove(c.ID()); !ok {
		return
	}
	c.Close() //nolint:errcheck // already leaving

	args := []any{"id", c.ID(), "remote", c.RemoteAddr(), "connections", g.conns.Len()}
	if reason != nil && !errors.Is(reason, io.EOF) {
		args = append(args, "reason", reason.Error())
	}
	g.logger.Info("client disconnected", args...)
}

func (g *Gateway) receiverFailed(rs *receiverState, err error) {
	if rs.closed {
		return
	}
	g.logger.Error("receiver device lost", "receiver", rs.name, "error", err)
	g.broadcast(rs.name, receiver.ReceiverError)

	rs.closed = true
	rs.session.Close() //nolint:errcheck // device already failed
	delete(g.byName, rs.name)
	for i, r := range g.receivers {
		if r == rs {
			g.receivers = append(g.receivers[:i], g.receivers[i+1:]...)
			break
		}
	}
}

func (g *Gateway) snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		Started:     g.started,
		Receivers:   make([]receiver.SessionSnapshot, 0, len(g.receivers)),
		Listeners:   make([]string, 0, len(g.listeners)),
		Connections: g.conns.Info(),
	}
	for _, rs := range g.receivers {
		snap.Receivers = append(snap.Receivers, rs.session.Snapshot(now))
	}
	for _, ln := range g.listeners {
		snap.Listeners = append(snap.Listeners, ln.Addr().Network()+":"+ln.Addr().String())
	}
	return snap
}

func (g *Gateway) statusDump(now time.Time) {
	snap := g.snapshot(now)
	g.logger.Info("status dump",
		"uptime", now.Sub(g.started).Round(time.Second).String(),
		"receivers", len(snap.Receivers),
		"listeners", len(snap.Listeners),
		"connections", len(snap.Connections),
	)
	for _, r := range snap.Receivers {
		g.logger.Info("receiver",
			"name", r.Name,
			"power", strings.Join(r.Power, ","),
			"queued", len(r.Queue),
			"sent", r.Stats.Sent,
			"received", r.Stats.Received,
			"discarded", r.Stats.Discarded,
			"write_errors", r.Stats.WriteErrors,
		)
		for _, nt := range g.opts.Notifiers {
			if sink, ok := nt.(StatsSink); ok {
				sink.ReceiverStats(r.Name, r.Stats)
			}
		}
	}
	for _, l := range snap.Listeners {
		g.logger.Info("listener", "address", l)
	}
	for _, c := range snap.Connections {
		g.logger.Info("connection",
			"id", c.ID,
			"remote", c.RemoteAddr,
			"transport", c.Transport,
			"idle", now.Sub(c.LastActive).Round(time.Second).String(),
		)
	}

	if err := g.dispatch("", "status", "signal", "", now); err != nil {
		g.logger.Warn("status refresh failed", "error", err)
	}
}

func (g *Gateway) readDevice(rs *receiverState) {
	defer g.wg.Done()

	buf := make([]byte, readBufferSize)
	dev := rs.session.Device()
	for {
		n, err := dev.Read(buf)
		if n > 0 && !g.post(deviceData{rs: rs, data: bytes.Clone(buf[:n])}) {
			return
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, net.ErrClosed) {
			g.post(deviceFailed{rs: rs, err: err})
			return
		}

		g.logger.Warn("device read failed", "receiver", rs.name, "error", err)
		select {
		case <-g.done:
			return
		case <-time.After(readRetryDelay):
		}
	}
}

func (g *Gateway) readClient(c Client) {
	defer g.wg.Done()

	buf := make([]byte, readBufferSize)
	for {
		n, err := c.Read(buf)
		if n > 0 && !g.post(clientData{client: c, data: bytes.Clone(buf[:n])}) {
			return
		}
		if err != nil {
			g.post(clientClosed{client: c, err: err})
			return
		}
	}
}

func (g *Gateway) acceptLoop(ln net.Listener) {
	defer g.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			g.logger.Warn("accept failed", "address", ln.Addr().String(), "error", err)
			select {
			case <-g.done:
				return
			case <-time.After(acceptRetryDelay):
			}
			continue
		}

		c := NewStreamClient(conn, g.opts.WriteTimeout)
		if !g.post(accepted{client: c}) {
			conn.Close() //nolint:errcheck // shutting down
			return
		}
	}
}

func (g *Gateway) shutdown() {
	g.logger.Info("gateway stopping")

	for _, rs := range g.receivers {
		rs.closed = true
		if err := rs.session.Close(); err != nil {
			g.logger.Warn("closing receiver failed", "receiver", rs.name, "error", err)
		}
	}
	for _, ln := range g.listeners {
		if err := ln.Close(); err != nil {
			g.logger.Warn("closing listener failed", "address", ln.Addr().String(), "error", err)
		}
	}
	g.conns.CloseAll()
	close(g.done)

	finished := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(shutdownTimeout):
		g.logger.Warn("timed out waiting for readers to stop")
	}
	g.logger.Info("gateway stopped")
}
