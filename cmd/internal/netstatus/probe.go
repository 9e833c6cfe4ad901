package netstatus

import (
	"context"
	"log/slog"
	"net"
	"time"
)

const (
	defaultProbeInterval = 5 * time.Second
	defaultProbeTimeout  = 3 * time.Second
)

// Dialer is the subset of net.Dialer used by Probe.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Probe periodically dials a TCP address and mirrors the result into a Manual monitor.
type Probe struct {
	*Manual

	addr     string
	interval time.Duration
	timeout  time.Duration
	dialer   Dialer
	log      *slog.Logger
}

// ProbeOption configures Probe.
type ProbeOption func(*Probe)

// WithInterval sets how often the probe dials.
func WithInterval(d time.Duration) ProbeOption {
	return func(p *Probe) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithTimeout bounds each dial.
func WithTimeout(d time.Duration) ProbeOption {
	return func(p *Probe) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithDialer replaces the network dialer.
func WithDialer(d Dialer) ProbeOption {
	return func(p *Probe) {
		if d != nil {
			p.dialer = d
		}
	}
}

// WithLogger sets the logger used for state transitions.
func WithLogger(log *slog.Logger) ProbeOption {
	return func(p *Probe) {
		if log != nil {
			p.log = log
		}
	}
}

// NewProbe returns a Probe targeting addr ("host:port"). It starts online.
func NewProbe(addr string, opts ...ProbeOption) *Probe {
	p := &Probe{
		Manual:   NewManual(true),
		addr:     addr,
		interval: defaultProbeInterval,
		timeout:  defaultProbeTimeout,
		dialer:   &net.Dialer{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Addr returns the dialed address.
func (p *Probe) Addr() string { return p.addr }

// Check dials once and updates the state.
func (p *Probe) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dialer.DialContext(ctx, "tcp", p.addr)
	online := err == nil
	if conn != nil {
		_ = conn.Close()
	}

	if was := p.Online(); was != online {
		if online {
			p.log.Info("netstatus.online", "addr", p.addr)
		} else {
			p.log.Warn("netstatus.offline", "addr", p.addr, "err", err)
		}
	}
	p.SetOnline(online)
	return online
}

// Run checks until ctx is done.
func (p *Probe) Run(ctx context.Context) {
	t := time.NewTicker(p.interval)
	defer t.Stop()

	p.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.Check(ctx)
		}
	}
}
