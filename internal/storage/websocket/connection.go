package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/demoview/tickpack/pkg/streaming"
	ws "github.com/gorilla/websocket"
)

const (
	sendChSize   = 256
	ackChSize    = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
)

// ErrClosed is returned when the connection shuts down while a message is
// pending.
var ErrClosed = errors.New("websocket connection closed")

// connection owns one WebSocket to the viewer server. A single goroutine
// writes; a single goroutine reads acks. Either one failing triggers one
// redial at a time.
type connection struct {
	mu           sync.Mutex
	conn         *ws.Conn
	closed       bool
	reconnecting bool
	// lost is closed when the current socket fails
	lost chan struct{}

	sendCh chan []byte
	ackCh  chan streaming.AckMessage
	done   chan struct{}

	wsURL  string
	secret string

	// start_demo of the demo in flight, sent first on every new socket
	pendingStart []byte

	backoff time.Duration
	logger  *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		sendCh:  make(chan []byte, sendChSize),
		ackCh:   make(chan streaming.AckMessage, ackChSize),
		done:    make(chan struct{}),
		lost:    make(chan struct{}),
		backoff: time.Second,
		logger:  logger,
	}
}

func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}
	c.attach(conn)
	return nil
}

// dialOnce opens a socket, passing the secret as a query parameter.
func (c *connection) dialOnce() (*ws.Conn, error) {
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
	c.reconnecting = false
	c.lost = make(chan struct{})
	c.mu.Unlock()

	go c.writeLoop(conn)
	go c.readLoop(conn)
}

func writeFrame(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// writeLoop drains sendCh onto conn until conn fails or the connection
// shuts down.
func (c *connection) writeLoop(conn *ws.Conn) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			if err := writeFrame(conn, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				c.reconnect(conn)
				return
			}
		}
	}
}

// readLoop routes acks from conn to ackCh. Anything else is logged and
// skipped.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			c.reconnect(conn)
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != streaming.TypeAck {
			c.logger.Debug("Non-ack message received", "raw", string(message))
			continue
		}

		select {
		case c.ackCh <- ack:
		default:
			c.logger.Debug("Ack channel full, dropping", "for", ack.For)
		}
	}
}

// reconnect replaces the failed socket. Calls for a socket that was already
// replaced, or while a redial is running, return immediately.
func (c *connection) reconnect(failed *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.reconnecting || c.conn != failed {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.conn = nil
	close(c.lost)
	c.mu.Unlock()
	_ = failed.Close()

	go c.redial()
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// redial retries with exponential backoff and sends the pending start_demo
// before handing the socket to new read and write loops.
func (c *connection) redial() {
	backoff := c.backoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = nextBackoff(backoff)
			continue
		}

		c.mu.Lock()
		start := c.pendingStart
		c.mu.Unlock()
		if start != nil {
			if err := writeFrame(conn, start); err != nil {
				c.logger.Warn("Failed to resend start_demo after reconnect", "error", err)
				_ = conn.Close()
				backoff = nextBackoff(backoff)
				continue
			}
		}

		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		c.attach(conn)
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
	c.mu.Lock()
	c.reconnecting = false
	c.mu.Unlock()
}

// send queues data for the write loop, blocking until there is room. It
// fails with ErrInterrupted once lost is closed; a nil lost never fires.
func (c *connection) send(ctx context.Context, data []byte, lost <-chan struct{}) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.sendCh <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	case <-lost:
		return ErrInterrupted
	}
}

// sendAndWait sends data and blocks until the server acknowledges it for
// stream. Acks for other messages or streams are discarded. An ack carrying
// an error fails the call, as does lost closing.
func (c *connection) sendAndWait(ctx context.Context, data []byte, ackFor string, stream uint64, lost <-chan struct{}, timeout time.Duration) error {
	if err := c.send(ctx, data, lost); err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For != ackFor || ack.Stream != stream {
				c.logger.Debug("Discarding stale ack", "for", ack.For, "stream", ack.Stream, "want", stream)
				continue
			}
			if ack.Error != "" {
				return fmt.Errorf("server rejected %s: %s", ackFor, ack.Error)
			}
			return nil
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return fmt.Errorf("%w while waiting for ack of %q", ErrClosed, ackFor)
		case <-lost:
			return fmt.Errorf("%w while waiting for ack of %q", ErrInterrupted, ackFor)
		}
	}
}

// drainAcks discards acks that arrived after their wait ended.
func (c *connection) drainAcks() {
	for {
		select {
		case <-c.ackCh:
		default:
			return
		}
	}
}

// lostSignal returns a channel closed when the current socket fails.
func (c *connection) lostSignal() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lost
}

func (c *connection) setStart(data []byte) {
	c.mu.Lock()
	c.pendingStart = data
	c.mu.Unlock()
}

// close sends a close frame and stops both loops.
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

	if conn != nil {
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
