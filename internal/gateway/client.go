package gateway

import (
	"io"
	"net"
	"time"

	"github.com/google/uuid"
)

// Client is one line-protocol connection. Reads are done by a goroutine
// owned by the gateway; writes happen only from the event loop.
type Client interface {
	io.Reader

	// ID uniquely identifies the connection for logs and audit records.
	ID() string

	// Transport names the ingress, e.g. "tcp", "unix" or "ws".
	Transport() string

	// RemoteAddr describes the peer.
	RemoteAddr() string

	// WriteLine writes one newline-terminated line.
	WriteLine(line string) error

	// Close closes the connection. It must unblock a pending Read.
	Close() error
}

// StreamClient adapts a stream net.Conn (TCP or Unix socket) to Client.
type StreamClient struct {
	conn         net.Conn
	id           string
	transport    string
	writeTimeout time.Duration
}

// NewStreamClient wraps conn. A positive writeTimeout bounds every line
// write so a stalled peer cannot hold up the event loop.
func NewStreamClient(conn net.Conn, writeTimeout time.Duration) *StreamClient {
	transport := "tcp"
	if addr := conn.LocalAddr(); addr != nil {
		transport = addr.Network()
	}
	return &StreamClient{
		conn:         conn,
		id:           uuid.NewString(),
		transport:    transport,
		writeTimeout: writeTimeout,
	}
}

func (c *StreamClient) Read(p []byte) (int, error) { return c.conn.Read(p) }

// ID implements Client.
func (c *StreamClient) ID() string { return c.id }

// Transport implements Client.
func (c *StreamClient) Transport() string { return c.transport }

// RemoteAddr implements Client.
func (c *StreamClient) RemoteAddr() string {
	addr := c.conn.RemoteAddr()
	if addr == nil || addr.String() == "" {
		return c.transport
	}
	return addr.String()
}

// WriteLine implements Client.
func (c *StreamClient) WriteLine(line string) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(c.conn, line)
	return err
}

// Close implements Client.
func (c *StreamClient) Close() error { return c.conn.Close() }
