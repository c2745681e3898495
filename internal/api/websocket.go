package api

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/onkyod/internal/gateway"
	"github.com/nerrad567/onkyod/internal/infrastructure/config"
)

const (
	// TransportWebSocket names WebSocket clients in snapshots and audit.
	TransportWebSocket = "ws"

	// wsSendBufferSize is the per-client outbound line buffer.
	wsSendBufferSize = 256
)

// errSlowClient is returned by WriteLine when the send buffer is full.
var errSlowClient = errors.New("api: websocket client send buffer full")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// handleWebSocket upgrades the request and attaches the connection to the
// gateway as a line-protocol client. The banner and every notification
// arrive as text messages; each text message sent is one command line.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(conn, s.wsCfg)
	go client.writePump()

	if err := s.gateway.Attach(s.baseContext(), client); err != nil {
		s.logger.Warn("websocket attach failed", "error", err)
	}
}

// wsClient adapts a WebSocket connection to gateway.Client. The gateway's
// reader goroutine calls Read; WriteLine hands lines to writePump so the
// event loop never blocks on the network.
type wsClient struct {
	conn *websocket.Conn
	id   string
	cfg  config.WebSocketConfig

	pending []byte
	send    chan string
	done    chan struct{}
	flushed chan struct{}
	once    sync.Once
}

var _ gateway.Client = (*wsClient)(nil)

func newWSClient(conn *websocket.Conn, cfg config.WebSocketConfig) *wsClient {
	c := &wsClient{
		conn:    conn,
		id:      uuid.NewString(),
		cfg:     cfg,
		send:    make(chan string, wsSendBufferSize),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
	}

	if cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}
	if wait := c.readWait(); wait > 0 {
		//nolint:errcheck // Best-effort deadline on connection setup
		c.conn.SetReadDeadline(time.Now().Add(wait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(wait))
		})
	}
	return c
}

func (c *wsClient) readWait() time.Duration {
	if c.cfg.PingInterval <= 0 {
		return 0
	}
	return time.Duration(c.cfg.PingInterval+c.cfg.PongTimeout) * time.Second
}

// Read returns the next command bytes. Each text message is terminated
// with a newline if it lacks one, so one message is one line.
func (c *wsClient) Read(p []byte) (int, error) {
	for len(c.pending) == 0 {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		if wait := c.readWait(); wait > 0 {
			//nolint:errcheck // Best-effort deadline reset
			c.conn.SetReadDeadline(time.Now().Add(wait))
		}
		if len(msg) > 0 && msg[len(msg)-1] != '\n' {
			msg = append(msg, '\n')
		}
		c.pending = msg
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *wsClient) ID() string { return c.id }

func (c *wsClient) Transport() string { return TransportWebSocket }

func (c *wsClient) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// WriteLine queues line without blocking.
func (c *wsClient) WriteLine(line string) error {
	select {
	case <-c.done:
		return net.ErrClosed
	default:
	}
	select {
	case c.send <- strings.TrimSuffix(line, "\n"):
		return nil
	default:
		return errSlowClient
	}
}

// closeFlushWait bounds how long Close waits for queued lines to go out.
const closeFlushWait = time.Second

// Close lets the write pump flush queued lines, then closes the
// connection, which unblocks Read.
func (c *wsClient) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		select {
		case <-c.flushed:
		case <-time.After(closeFlushWait):
		}
		//nolint:errcheck // Best-effort close frame
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

// writePump is the only writer of data and ping frames.
func (c *wsClient) writePump() {
	defer close(c.flushed)

	writeWait := time.Duration(c.cfg.PongTimeout) * time.Second
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}

	var ping <-chan time.Time
	if c.cfg.PingInterval > 0 {
		ticker := time.NewTicker(time.Duration(c.cfg.PingInterval) * time.Second)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-c.done:
			c.flush(writeWait)
			return
		case line := <-c.send:
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				c.conn.Close() //nolint:errcheck // unblocks Read so the gateway drops us
				return
			}
		case <-ping:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close() //nolint:errcheck // as above
				return
			}
		}
	}
}

func (c *wsClient) flush(writeWait time.Duration) {
	for {
		select {
		case line := <-c.send:
			//nolint:errcheck // Best-effort deadline
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		default:
			return
		}
	}
}
