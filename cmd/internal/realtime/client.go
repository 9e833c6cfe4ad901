package realtime

import (
	"log/slog"
	"net/http"
	"time"

	v1 "mezon/shared/contracts/realtime/v1"
)

// Option configures a Socket.
type Option func(*Socket)

// WithLogger sets the socket logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Socket) {
		if log != nil {
			s.log = log
		}
	}
}

// WithHTTPClient sets the client used for the websocket upgrade request.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Socket) { s.httpClient = c }
}

// WithHeader adds a header to the upgrade request.
func WithHeader(key, value string) Option {
	return func(s *Socket) {
		if s.header == nil {
			s.header = make(http.Header)
		}
		s.header.Add(key, value)
	}
}

// WithHeartbeat overrides the ping interval and per-ping timeout.
func WithHeartbeat(every, timeout time.Duration) Option {
	return func(s *Socket) {
		if every > 0 {
			s.heartbeatEvery = every
		}
		if timeout > 0 {
			s.heartbeatTimeout = timeout
		}
	}
}

// WithHandshakeTimeout bounds the wait for hello_ack.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Socket) {
		if d > 0 {
			s.handshakeTimeout = d
		}
	}
}

// WithEventHandler receives every server push that is not a reply to a request.
// The handler runs on the reader goroutine and must not block.
func WithEventHandler(fn func(v1.Envelope)) Option {
	return func(s *Socket) { s.onEvent = fn }
}
