package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"mezon/cmd/internal/endpoint"
	"mezon/cmd/internal/netstatus"
	"mezon/cmd/internal/session"
)

// Transport is the transport context: the single owner of the client, socket
// and session slots.
type Transport struct {
	log      *slog.Logger
	platform session.Platform
	builders Builders
	metrics  *Metrics
	tracer   trace.Tracer
	monitor  netstatus.Monitor

	resolver *Resolver
	creds    *CredentialStore

	autoReconnect bool
	maxAttempts   int
	sleep         func(context.Context, time.Duration) error
	jitter        func() time.Duration
	now           func() time.Time
	baseCtx       context.Context
	onState       func(ReconnectState)

	// socketMu serializes socket replacement so two handles are never open at once.
	socketMu sync.Mutex

	mu      sync.RWMutex
	primary API
	zk      ZKClient
	ledger  LedgerClient
	indexer IndexerClient
	socket  Socket
	clanID  string

	engine engine
}

// Option configures a Transport.
type Option func(*options)

type options struct {
	log           *slog.Logger
	platform      session.Platform
	builders      Builders
	store         endpoint.Store
	vault         session.Vault
	metrics       *Metrics
	tracer        trace.Tracer
	monitor       netstatus.Monitor
	autoReconnect bool
	maxAttempts   int
	sleep         func(context.Context, time.Duration) error
	jitter        func() time.Duration
	now           func() time.Time
	baseCtx       context.Context
	onState       func(ReconnectState)
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithPlatform sets the platform discriminator (default web).
func WithPlatform(p session.Platform) Option {
	return func(o *options) { o.platform = p }
}

// WithBuilders sets the client constructors used by the factory.
func WithBuilders(b Builders) Option {
	return func(o *options) { o.builders = b }
}

// WithEndpointStore sets where the endpoint record is persisted (default in-memory).
func WithEndpointStore(s endpoint.Store) Option {
	return func(o *options) { o.store = s }
}

// WithVault enables durable storage of remembered sessions.
func WithVault(v session.Vault) Option {
	return func(o *options) { o.vault = v }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer replaces the OpenTelemetry tracer.
func WithTracer(tr trace.Tracer) Option {
	return func(o *options) {
		if tr != nil {
			o.tracer = tr
		}
	}
}

// WithMonitor sets the connectivity monitor consulted before backoff sleeps.
func WithMonitor(m netstatus.Monitor) Option {
	return func(o *options) {
		if m != nil {
			o.monitor = m
		}
	}
}

// WithAutoReconnect starts a reconnection episode whenever the current socket is lost.
func WithAutoReconnect(on bool) Option {
	return func(o *options) { o.autoReconnect = on }
}

// WithMaxAttempts overrides the attempt ceiling.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithSleeper replaces the backoff sleep.
func WithSleeper(fn func(context.Context, time.Duration) error) Option {
	return func(o *options) {
		if fn != nil {
			o.sleep = fn
		}
	}
}

// WithJitter replaces the backoff jitter source.
func WithJitter(fn func() time.Duration) Option {
	return func(o *options) {
		if fn != nil {
			o.jitter = fn
		}
	}
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(o *options) {
		if fn != nil {
			o.now = fn
		}
	}
}

// WithContext sets the context used by automatically started reconnection
// episodes. Cancelling it (process teardown) ends them.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.baseCtx = ctx
		}
	}
}

// WithStateHook is called on every reconnection state transition.
func WithStateHook(fn func(ReconnectState)) Option {
	return func(o *options) { o.onState = fn }
}

// New builds a Transport. defaults is the environment-derived gateway address
// used when no endpoint record has been persisted.
func New(defaults Config, opts ...Option) *Transport {
	o := options{
		log:         slog.Default(),
		platform:    session.PlatformWeb,
		tracer:      defaultTracer(),
		monitor:     netstatus.NewManual(true),
		maxAttempts: DefaultMaxAttempts,
		sleep:       sleepContext,
		jitter:      randomJitter,
		now:         time.Now,
		baseCtx:     context.Background(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.store == nil {
		o.store = endpoint.NewMemoryStore()
	}

	resolver := NewResolver(o.store, defaults, o.log)
	return &Transport{
		log:           o.log,
		platform:      o.platform,
		builders:      o.builders,
		metrics:       o.metrics,
		tracer:        o.tracer,
		monitor:       o.monitor,
		resolver:      resolver,
		creds:         NewCredentialStore(resolver, o.vault, o.platform.IsMobile(), o.log),
		autoReconnect: o.autoReconnect,
		maxAttempts:   o.maxAttempts,
		sleep:         o.sleep,
		jitter:        o.jitter,
		now:           o.now,
		baseCtx:       o.baseCtx,
		onState:       o.onState,
	}
}

// Platform returns the platform discriminator.
func (t *Transport) Platform() session.Platform { return t.platform }

// Resolver returns the config resolver.
func (t *Transport) Resolver() *Resolver { return t.resolver }

// Credentials returns the credential store.
func (t *Transport) Credentials() *CredentialStore { return t.creds }

// Session returns the current session, or nil.
func (t *Transport) Session() *session.Session { return t.creds.Session() }

// Close releases the socket and auxiliary clients.
func (t *Transport) Close() error {
	t.socketMu.Lock()
	t.mu.Lock()
	s := t.socket
	t.socket = nil
	zk, ledger, indexer := t.zk, t.ledger, t.indexer
	t.zk, t.ledger, t.indexer = nil, nil, nil
	t.mu.Unlock()
	t.socketMu.Unlock()

	if s != nil {
		s.DisconnectIntentionally()
	}
	return closeAux(zk, ledger, indexer)
}
