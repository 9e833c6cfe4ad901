package client

import (
	"log/slog"
	"net/http"
	"time"

	"mezon/cmd/internal/realtime"
)

const defaultAPITimeout = 20 * time.Second

type options struct {
	log        *slog.Logger
	httpClient *http.Client
	apiTimeout time.Duration
	socketOpts []realtime.Option
}

// Option configures the clients built by this package.
type Option func(*options)

// WithLogger sets the logger for clients and the sockets they build.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithHTTPClient replaces the HTTP client used by the HTTP-based clients.
// Per-call deadlines still come from each client's timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		if hc != nil {
			o.httpClient = hc
		}
	}
}

// WithAPITimeout bounds each primary API call.
func WithAPITimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.apiTimeout = d
		}
	}
}

// WithSocketOptions appends options applied to every socket built by the primary client.
func WithSocketOptions(opts ...realtime.Option) Option {
	return func(o *options) {
		o.socketOpts = append(o.socketOpts, opts...)
	}
}

func buildOptions(opts []Option) options {
	o := options{
		log:        slog.Default(),
		httpClient: &http.Client{},
		apiTimeout: defaultAPITimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
