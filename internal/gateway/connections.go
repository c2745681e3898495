package gateway

import (
	"bytes"
	"fmt"
	"time"
)

// ConnectionInfo describes one client connection for snapshots and logs.
type ConnectionInfo struct {
	ID          string    `json:"id"`
	Transport   string    `json:"transport"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
	LastActive  time.Time `json:"last_active"`
}

type connection struct {
	client      Client
	buf         []byte
	connectedAt time.Time
	lastActive  time.Time
}

// ConnectionManager tracks client connections and their partial input
// lines. It is owned by the event loop and not safe for concurrent use.
type ConnectionManager struct {
	conns     []*connection
	byID      map[string]*connection
	max       int
	lineLimit int
}

// NewConnectionManager creates a manager accepting at most max clients
// (zero means unlimited) with lines shorter than lineLimit bytes.
func NewConnectionManager(max, lineLimit int) *ConnectionManager {
	if lineLimit <= 0 {
		lineLimit = DefaultLineBufferSize
	}
	return &ConnectionManager{
		byID:      make(map[string]*connection),
		max:       max,
		lineLimit: lineLimit,
	}
}

// Add registers c. It fails with ErrTooManyConnections at the limit.
func (m *ConnectionManager) Add(c Client, now time.Time) error {
	if m.max > 0 && len(m.conns) >= m.max {
		return ErrTooManyConnections
	}
	if _, dup := m.byID[c.ID()]; dup {
		return fmt.Errorf("gateway: duplicate connection id %s", c.ID())
	}
	conn := &connection{client: c, connectedAt: now, lastActive: now}
	m.conns = append(m.conns, conn)
	m.byID[c.ID()] = conn
	return nil
}

// Remove forgets the connection with id. It does not close it.
func (m *ConnectionManager) Remove(id string) (Client, bool) {
	conn, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	delete(m.byID, id)
	for i, c := range m.conns {
		if c == conn {
			m.conns = append(m.conns[:i], m.conns[i+1:]...)
			break
		}
	}
	return conn.client, true
}

// Has reports whether id is registered.
func (m *ConnectionManager) Has(id string) bool {
	_, ok := m.byID[id]
	return ok
}

// Len returns the number of connections.
func (m *ConnectionManager) Len() int {
	return len(m.conns)
}

// Feed appends data to the connection's buffer and returns the complete
// lines, without terminators. A line that reaches the limit before its
// newline is discarded and overflowed is set.
func (m *ConnectionManager) Feed(id string, data []byte, now time.Time) (lines []string, overflowed bool) {
	conn, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	conn.lastActive = now
	conn.buf = append(conn.buf, data...)

	start := 0
	for {
		i := bytes.IndexByte(conn.buf[start:], '\n')
		if i < 0 {
			break
		}
		line := conn.buf[start : start+i]
		start += i + 1
		if len(line) >= m.lineLimit {
			overflowed = true
			continue
		}
		lines = append(lines, string(bytes.TrimRight(line, "\r")))
	}

	rest := conn.buf[start:]
	if len(rest) >= m.lineLimit {
		overflowed = true
		rest = nil
	}
	conn.buf = append(conn.buf[:0], rest...)
	return lines, overflowed
}

// Broadcast writes line to every connection in connection order and
// returns the clients whose write failed. Those are not removed.
func (m *ConnectionManager) Broadcast(line string) []Client {
	var failed []Client
	for _, conn := range m.conns {
		if err := conn.client.WriteLine(line); err != nil {
			failed = append(failed, conn.client)
		}
	}
	return failed
}

// IdleSince returns the clients with no input after cutoff.
func (m *ConnectionManager) IdleSince(cutoff time.Time) []Client {
	var idle []Client
	for _, conn := range m.conns {
		if !conn.lastActive.After(cutoff) {
			idle = append(idle, conn.client)
		}
	}
	return idle
}

// OldestActivity returns the earliest last-input time of any connection.
func (m *ConnectionManager) OldestActivity() (time.Time, bool) {
	var oldest time.Time
	for _, conn := range m.conns {
		if oldest.IsZero() || conn.lastActive.Before(oldest) {
			oldest = conn.lastActive
		}
	}
	return oldest, !oldest.IsZero()
}

// Info lists the connections in connection order.
func (m *ConnectionManager) Info() []ConnectionInfo {
	out := make([]ConnectionInfo, 0, len(m.conns))
	for _, conn := range m.conns {
		out = append(out, ConnectionInfo{
			ID:          conn.client.ID(),
			Transport:   conn.client.Transport(),
			RemoteAddr:  conn.client.RemoteAddr(),
			ConnectedAt: conn.connectedAt,
			LastActive:  conn.lastActive,
		})
	}
	return out
}

// CloseAll closes and forgets every connection.
func (m *ConnectionManager) CloseAll() {
	for _, conn := range m.conns {
		conn.client.Close() //nolint:errcheck // best-effort on shutdown
	}
	m.conns = nil
	m.byID = make(map[string]*connection)
}
