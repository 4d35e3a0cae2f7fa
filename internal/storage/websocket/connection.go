package websocket

import (
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"github.com/livepid/tracker/pkg/streaming"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	outboxSize   = 4096
	ackQueueSize = 16
	maxRedials   = 10
	maxRetry     = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

// connection is the journal stream to the collector. Each socket gets one
// writer and one reader goroutine, both tied to that socket's stop channel.
// Records queue in the outbox while no socket is attached.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	stop   chan struct{}
	closed bool

	outbox chan []byte
	acks   chan streaming.AckMessage
	done   chan struct{}

	wsURL      string
	secret     string
	retryDelay time.Duration

	// start_session frame of the open session, resent first on a new socket
	// so the collector keeps filing records under it.
	header []byte

	dropped atomic.Uint64
	logger  *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		outbox:     make(chan []byte, outboxSize),
		acks:       make(chan streaming.AckMessage, ackQueueSize),
		done:       make(chan struct{}),
		retryDelay: time.Second,
		logger:     logger,
	}
}

func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.open()
	if err != nil {
		return err
	}
	c.attach(conn)
	return nil
}

func (c *connection) open() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", c.secret)
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (c *connection) attach(conn *ws.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.stop = make(chan struct{})
	stop := c.stop
	c.mu.Unlock()

	go c.writeLoop(conn, stop)
	go c.readLoop(conn, stop)
}

// detach abandons conn if it is still the current socket. Only the first
// caller for a socket gets true and owns the redial.
func (c *connection) detach(conn *ws.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.conn != conn {
		return false
	}
	close(c.stop)
	c.conn = nil
	_ = conn.Close()
	return true
}

func (c *connection) setHeader(data []byte) {
	c.mu.Lock()
	c.header = data
	c.mu.Unlock()
}

func (c *connection) writeLoop(conn *ws.Conn, stop <-chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-stop:
			return
		case data := <-c.outbox:
			if err := writeFrame(conn, data); err != nil {
				c.dropped.Add(1)
				c.logger.Warn("Journal stream write failed, record lost", "error", err)
				if c.detach(conn) {
					go c.redial()
				}
				return
			}
		}
	}
}

// readLoop routes acks to the waiting sender. Anything else is logged and skipped.
func (c *connection) readLoop(conn *ws.Conn, stop <-chan struct{}) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			case <-stop:
				return
			default:
			}
			c.logger.Warn("Journal stream read failed", "error", err)
			if c.detach(conn) {
				go c.redial()
			}
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			c.logger.Debug("Unexpected collector message", "raw", string(message))
			continue
		}
		select {
		case c.acks <- ack:
		default:
			c.logger.Debug("Ack queue full, dropping", "for", ack.For)
		}
	}
}

// redial opens a new socket with doubling delays. The open session header
// goes out before any queued record.
func (c *connection) redial() {
	delay := c.retryDelay
	for attempt := 1; attempt <= maxRedials; attempt++ {
		c.logger.Info("Reconnecting journal stream", "attempt", attempt, "delay", delay)
		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}

		conn, err := c.open()
		if err != nil {
			c.logger.Warn("Journal stream redial failed", "attempt", attempt, "error", err)
			delay = min(delay*2, maxRetry)
			continue
		}

		c.mu.Lock()
		header, closed := c.header, c.closed
		c.mu.Unlock()
		if closed {
			_ = conn.Close()
			return
		}

		if header != nil {
			if err := writeFrame(conn, header); err != nil {
				c.logger.Warn("Failed to resend session header", "attempt", attempt, "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.attach(conn)
		c.logger.Info("Journal stream reconnected", "attempt", attempt, "resumedSession", header != nil)
		return
	}

	c.logger.Error("Journal stream gave up reconnecting", "attempts", maxRedials)
}

func writeFrame(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// send queues a frame without blocking. A full outbox drops the frame.
func (c *connection) send(data []byte) bool {
	select {
	case c.outbox <- data:
		return true
	default:
		c.dropped.Add(1)
		c.logger.Warn("Journal outbox full, dropping record")
		return false
	}
}

// sendAndWait queues a frame and blocks until the collector acks ackFor.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	if !c.send(data) {
		return fmt.Errorf("send queue full, %q not sent", ackFor)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.acks:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close stops every loop and redial, then closes the socket with a normal
// closure frame.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	return conn.Close()
}
