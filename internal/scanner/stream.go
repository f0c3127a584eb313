package scanner

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// StreamSource subscribes to a live agent log feed over WebSocket. Each
// text frame may carry one or more newline-separated lines. The source
// reconnects with backoff on disconnection and stops when ctx is
// cancelled.
type StreamSource struct {
	// URL is the WebSocket endpoint (e.g., "ws://host:9800/logs/nux").
	URL string

	// ReconnectDelay is the initial delay between reconnect attempts
	// (default 2s, doubling up to 30s).
	ReconnectDelay time.Duration

	// Logger receives connection lifecycle events.
	Logger *slog.Logger
}

// Lines starts the subscription. The channel closes when ctx is done.
func (s *StreamSource) Lines(ctx context.Context) <-chan string {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	delay := s.ReconnectDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	out := make(chan string, 64)
	go func() {
		defer close(out)
		backoff := delay
		for {
			start := time.Now()
			err := s.readConn(ctx, out)
			if ctx.Err() != nil {
				return
			}
			backoff = nextBackoff(backoff, delay, time.Since(start))
			logger.Warn("log stream disconnected, reconnecting",
				"url", s.URL, "backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}
	}()
	return out
}

const (
	// maxReconnectDelay caps the backoff schedule.
	maxReconnectDelay = 30 * time.Second
	// stableConnTime is how long a connection must stay up for the next
	// drop to restart the schedule from the initial delay.
	stableConnTime = time.Minute
)

// nextBackoff advances the reconnect schedule after a drop. A connection
// that held for stableConnTime restarts at the initial delay; otherwise
// the previous delay doubles, capped at maxReconnectDelay.
func nextBackoff(previous, initial, connectedFor time.Duration) time.Duration {
	if connectedFor >= stableConnTime {
		return initial
	}
	next := previous * 2
	if next > maxReconnectDelay {
		next = maxReconnectDelay
	}
	return next
}

// readConn dials the endpoint and forwards frames until the connection
// drops or ctx is cancelled.
func (s *StreamSource) readConn(ctx context.Context, out chan<- string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblock ReadMessage when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- line:
			}
		}
	}
}
