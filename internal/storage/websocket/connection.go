package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/OCAP2/animscope/pkg/streaming"
	ws "github.com/gorilla/websocket"
)

const (
	sendQueueSize = 10_000
	ackQueueSize  = 16
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = pongWait * 9 / 10
	ackTimeout    = 10 * time.Second
)

type retryPolicy struct {
	attempts int
	initial  time.Duration
	max      time.Duration
}

var defaultRetry = retryPolicy{attempts: 10, initial: time.Second, max: 30 * time.Second}

// link owns one logical connection to the streaming server. Each physical
// connection gets its own read and write goroutine pair, stopped through
// its stop channel when the connection is torn down.
type link struct {
	mu     sync.Mutex
	conn   *ws.Conn
	stop   chan struct{}
	closed bool
	// replay is resent first on every reconnect.
	replay []byte

	out  chan []byte
	acks chan streaming.AckMessage
	done chan struct{}

	url    string
	header http.Header
	dialer *ws.Dialer
	retry  retryPolicy
	logger *slog.Logger
}

func newLink(rawURL, apiKey string, logger *slog.Logger) *link {
	header := http.Header{}
	if apiKey != "" {
		header.Set("X-Api-Key", apiKey)
	}
	return &link{
		out:    make(chan []byte, sendQueueSize),
		acks:   make(chan streaming.AckMessage, ackQueueSize),
		done:   make(chan struct{}),
		url:    rawURL,
		header: header,
		dialer: &ws.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: writeWait,
		},
		retry:  defaultRetry,
		logger: logger,
	}
}

func (l *link) dial() (*ws.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	conn, resp, err := l.dialer.DialContext(ctx, l.url, l.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// open performs the first dial. Failures here are returned, not retried.
func (l *link) open() error {
	conn, err := l.dial()
	if err != nil {
		return err
	}
	l.attach(conn)
	return nil
}

func (l *link) attach(conn *ws.Conn) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		_ = conn.Close()
		return
	}
	stop := make(chan struct{})
	l.conn = conn
	l.stop = stop
	l.mu.Unlock()

	go l.writeLoop(conn, stop)
	go l.readLoop(conn, stop)
}

// detach tears conn down if it is still the current connection. Only the
// first caller per connection gets true.
func (l *link) detach(conn *ws.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.conn != conn {
		return false
	}
	close(l.stop)
	l.conn = nil
	l.stop = nil
	_ = conn.Close()
	return true
}

func (l *link) fail(conn *ws.Conn, err error) {
	if !l.detach(conn) {
		return
	}
	l.logger.Warn("WebSocket connection lost", "error", err)
	go l.reconnect()
}

func (l *link) writeLoop(conn *ws.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-l.done:
			return
		case data := <-l.out:
			select {
			case <-stop:
				// lost the race with a teardown; leave it for the next connection
				l.send(data)
				return
			default:
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				l.fail(conn, err)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				l.fail(conn, err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				l.fail(conn, err)
				return
			}
		}
	}
}

// readLoop routes server acks to the ack channel. Anything else is logged.
func (l *link) readLoop(conn *ws.Conn, stop <-chan struct{}) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-l.done:
			case <-stop:
			default:
				l.fail(conn, err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			l.logger.Debug("Non-ack message received", "raw", string(message))
			continue
		}

		select {
		case l.acks <- ack:
		default:
			l.logger.Debug("Ack channel full, dropping", "for", ack.For)
		}
	}
}

// reconnect redials with exponential backoff and replays the cached
// start_session message before resuming the queue.
func (l *link) reconnect() {
	backoff := l.retry.initial
	for attempt := 1; attempt <= l.retry.attempts; attempt++ {
		l.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		select {
		case <-l.done:
			return
		case <-time.After(backoff):
		}

		conn, err := l.dial()
		if err != nil {
			l.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, l.retry.max)
			continue
		}

		l.mu.Lock()
		replay := l.replay
		l.mu.Unlock()

		if replay != nil {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(ws.TextMessage, replay); err != nil {
				l.logger.Warn("Failed to replay start_session after reconnect", "error", err)
				_ = conn.Close()
				continue
			}
		}

		l.attach(conn)
		l.logger.Info("WebSocket reconnected", "attempt", attempt)
		return
	}

	l.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", l.retry.attempts)
}

func (l *link) setReplay(data []byte) {
	l.mu.Lock()
	l.replay = data
	l.mu.Unlock()
}

// send queues data for the write loop. Non-blocking; drops if the queue is full.
func (l *link) send(data []byte) {
	select {
	case l.out <- data:
	default:
		l.logger.Warn("WebSocket send queue full, dropping message")
	}
}

// sendAndWait sends data and blocks until the server acknowledges ackFor or
// the timeout expires. Acks left over from earlier exchanges are discarded
// first.
func (l *link) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	for drained := false; !drained; {
		select {
		case <-l.acks:
		default:
			drained = true
		}
	}

	l.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-l.acks:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-l.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close sends a close frame and shuts down all goroutines.
func (l *link) close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.done)
	conn, stop := l.conn, l.stop
	l.conn, l.stop = nil, nil
	l.mu.Unlock()

	if conn == nil {
		return nil
	}
	close(stop)
	_ = conn.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	return conn.Close()
}
