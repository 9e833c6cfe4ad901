package transport

import (
	"context"
	"log/slog"
	"strings"

	"mezon/cmd/internal/endpoint"
)

// Resolver resolves the gateway address. Storage failures degrade to the
// environment defaults and are only logged.
type Resolver struct {
	store    endpoint.Store
	defaults Config
	log      *slog.Logger
}

// NewResolver builds a Resolver over store.
func NewResolver(store endpoint.Store, defaults Config, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{store: store, defaults: defaults, log: log}
}

// Defaults returns the environment-derived address.
func (r *Resolver) Defaults() Config { return r.defaults }

// ResolveConfig returns the persisted endpoint merged with defaults, or the
// defaults when nothing usable is persisted. The key always comes from defaults.
func (r *Resolver) ResolveConfig(ctx context.Context) Config {
	if r.store == nil {
		return r.defaults
	}
	rec, ok, err := r.store.Load(ctx)
	if err != nil {
		r.log.Warn("endpoint.load.fail", "err", err)
		return r.defaults
	}
	if !ok || strings.TrimSpace(rec.Host) == "" {
		return r.defaults
	}

	cfg := Config{
		Host:   strings.TrimSpace(rec.Host),
		Port:   strings.TrimSpace(rec.Port),
		Key:    r.defaults.Key,
		UseTLS: rec.SSL,
	}
	if cfg.Port == "" {
		cfg.Port = r.defaults.Port
	}
	return cfg
}

// PersistConfig overwrites the endpoint record. Failures are logged.
func (r *Resolver) PersistConfig(ctx context.Context, host, port string, useTLS bool) {
	if r.store == nil {
		return
	}
	rec := endpoint.Record{Host: host, Port: port, SSL: useTLS}
	if err := r.store.Save(ctx, rec); err != nil {
		r.log.Warn("endpoint.save.fail", "host", host, "port", port, "err", err)
		return
	}
	r.log.Debug("endpoint.save.ok", "host", host, "port", port, "ssl", useTLS)
}

func (r *Resolver) forget(ctx context.Context) {
	if r.store == nil {
		return
	}
	if err := r.store.Delete(ctx); err != nil {
		r.log.Warn("endpoint.delete.fail", "err", err)
	}
}
