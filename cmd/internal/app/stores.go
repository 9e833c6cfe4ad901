package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"mezon/cmd/internal/endpoint"
)

// openEndpointStore opens the configured endpoint record backend. The pool is
// non-nil only for the postgres backend; the app owns its lifecycle.
func openEndpointStore(ctx context.Context, cfg Config, log Logger) (endpoint.Store, *pgxpool.Pool, error) {
	switch cfg.EndpointStore {
	case StoreMemory:
		log.Info("endpoint.store", "backend", StoreMemory)
		return endpoint.NewMemoryStore(), nil, nil

	case StoreFile:
		st, err := endpoint.NewFileStore(cfg.EndpointFile)
		if err != nil {
			return nil, nil, err
		}
		log.Info("endpoint.store", "backend", StoreFile, "path", cfg.EndpointFile)
		return st, nil, nil

	case StoreSQLite:
		st, err := endpoint.OpenSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info("endpoint.store", "backend", StoreSQLite, "path", cfg.SQLitePath)
		return st, nil, nil

	case StoreRedis:
		st, err := endpoint.OpenRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("endpoint.store", "backend", StoreRedis)
		return st, nil, nil

	case StorePostgres:
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		st, err := endpoint.NewPostgresStore(pool, endpoint.WithSchema(cfg.DBSchema))
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info("endpoint.store", "backend", StorePostgres, "schema", cfg.DBSchema)
		return st, pool, nil

	default:
		return nil, nil, fmt.Errorf("unknown endpoint store %q", cfg.EndpointStore)
	}
}
