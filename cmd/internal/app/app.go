// Package app wires the mezonctl runtime: config, logging, storage backends,
// the transport context and the ops HTTP server.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	"mezon/cmd/internal/client"
	"mezon/cmd/internal/endpoint"
	"mezon/cmd/internal/netstatus"
	"mezon/cmd/internal/realtime"
	"mezon/cmd/internal/session"
	"mezon/cmd/internal/transport"
)

// App owns the transport context and every resource it was built from.
type App struct {
	cfg Config
	log Logger

	tr       *transport.Transport
	registry *prometheus.Registry
	store    endpoint.Store
	dbPool   *pgxpool.Pool
	probe    *netstatus.Probe

	shutdownTracing func(context.Context) error
}

// New constructs a fully wired App. ctx bounds background reconnection and
// network probing; cancel it to tear the process down.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	sealer, err := ValidateSecurityConfig(cfg)
	if err != nil {
		return nil, err
	}

	shutdownTracing, err := SetupTracing(ctx, cfg.OTelEndpoint)
	if err != nil {
		return nil, err
	}

	store, pool, err := openEndpointStore(ctx, cfg, log)
	if err != nil {
		_ = shutdownTracing(context.Background())
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	platform := session.ParsePlatform(cfg.Platform)
	opts := []transport.Option{
		transport.WithLogger(log),
		transport.WithPlatform(platform),
		transport.WithBuilders(client.Builders(
			client.WithLogger(log),
			client.WithAPITimeout(cfg.APITimeout),
			client.WithSocketOptions(
				realtime.WithHeartbeat(cfg.HeartbeatInterval, cfg.HeartbeatTimeout),
				realtime.WithHandshakeTimeout(cfg.HandshakeTimeout),
				realtime.WithHeader("User-Agent", serviceName),
			),
		)),
		transport.WithEndpointStore(store),
		transport.WithVault(session.NewFileVault(cfg.SessionFile, sealer)),
		transport.WithMetrics(transport.NewMetrics(registry)),
		transport.WithTracer(otel.Tracer(serviceName)),
		transport.WithAutoReconnect(cfg.AutoReconnect),
		transport.WithMaxAttempts(cfg.MaxAttempts),
		transport.WithContext(ctx),
	}

	var probe *netstatus.Probe
	if cfg.ProbeAddr != "" && cfg.ProbeInterval > 0 {
		probe = netstatus.NewProbe(cfg.ProbeAddr,
			netstatus.WithInterval(cfg.ProbeInterval),
			netstatus.WithLogger(log),
		)
		opts = append(opts, transport.WithMonitor(probe))
	}

	tr := transport.New(transport.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		Key:    cfg.Key,
		UseTLS: cfg.UseSSL,
	}, opts...)

	log.Info("app.init",
		"platform", string(platform),
		"endpoint_store", cfg.EndpointStore,
		"sealed_vault", sealer != nil,
		"auto_reconnect", cfg.AutoReconnect,
	)

	return &App{
		cfg:             cfg,
		log:             log,
		tr:              tr,
		registry:        registry,
		store:           store,
		dbPool:          pool,
		probe:           probe,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Transport returns the transport context.
func (a *App) Transport() *transport.Transport { return a.tr }

// Start builds the protocol clients. With every auxiliary endpoint configured
// they are created together via Bootstrap; otherwise only the configured ones
// are built next to the primary client.
func (a *App) Start(ctx context.Context) error {
	aux := transport.BootstrapOptions{
		ZK:      transport.AuxOptions{Endpoint: a.cfg.ZKEndpoint, Timeout: a.cfg.ZKTimeout},
		Ledger:  transport.AuxOptions{Endpoint: a.cfg.LedgerEndpoint, Timeout: a.cfg.LedgerTimeout},
		Indexer: transport.AuxOptions{Endpoint: a.cfg.IndexerEndpoint, Timeout: a.cfg.IndexerTimeout},
	}
	if aux.ZK.Endpoint != "" && aux.Ledger.Endpoint != "" && aux.Indexer.Endpoint != "" {
		return a.tr.Bootstrap(ctx, aux)
	}

	if _, err := a.tr.CreatePrimaryClient(a.tr.Resolver().ResolveConfig(ctx)); err != nil {
		return err
	}
	if aux.ZK.Endpoint != "" {
		if _, err := a.tr.CreateZKClient(aux.ZK); err != nil {
			return err
		}
	}
	if aux.Ledger.Endpoint != "" {
		if _, err := a.tr.CreateLedgerClient(aux.Ledger); err != nil {
			return err
		}
	}
	if aux.Indexer.Endpoint != "" {
		if _, err := a.tr.CreateIndexerClient(aux.Indexer); err != nil {
			return err
		}
	}
	return nil
}

// Run restores the remembered session, then keeps the connection alive and
// serves the ops endpoints until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	if _, err := a.tr.Restore(ctx); err != nil {
		if errors.Is(err, session.ErrNoStoredSession) {
			return errors.New("no remembered session: log in first")
		}
		return err
	}

	if a.probe != nil {
		go a.probe.Run(ctx)
	}

	if a.cfg.OpsAddr == "" {
		<-ctx.Done()
		a.log.Info("app.stop", "reason", "context_done")
		return nil
	}
	return a.serveOps(ctx)
}

func (a *App) serveOps(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.tr, a.registry, a.dbPool)

	srv := &http.Server{
		Addr:              a.cfg.OpsAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.log.Info("ops.start", "addr", a.cfg.OpsAddr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("ops.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("ops.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("ops.shutdown.fail", "err", err)
		return err
	}
	return nil
}

// Close releases the transport, the storage backend and the tracer provider.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.tr.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.dbPool != nil {
		a.dbPool.Close()
	}
	if err := a.shutdownTracing(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Error("app.close.fail", "err", err)
		return err
	}
	a.log.Info("app.stopped")
	return nil
}
