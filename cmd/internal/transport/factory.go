package transport

import (
	"context"
	"errors"
	"fmt"
)

// BootstrapOptions configures the auxiliary clients built by Bootstrap.
type BootstrapOptions struct {
	ZK      AuxOptions
	Ledger  AuxOptions
	Indexer AuxOptions
}

// CreatePrimaryClient builds the primary client for cfg and installs it.
func (t *Transport) CreatePrimaryClient(cfg Config) (API, error) {
	if t.builders.Primary == nil {
		return nil, &UninitializedError{Dependency: "primary client builder"}
	}
	api, err := t.builders.Primary(cfg)
	if err != nil {
		return nil, fmt.Errorf("create primary client: %w", err)
	}
	t.mu.Lock()
	t.primary = api
	t.mu.Unlock()
	t.log.Info("transport.client.primary", "base_url", cfg.Endpoint().BaseURL())
	return api, nil
}

// CreateZKClient builds the prover client (default timeout 30s) and replaces the previous one.
func (t *Transport) CreateZKClient(o AuxOptions) (ZKClient, error) {
	c, err := t.buildZK(o)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	prev := t.zk
	t.zk = c
	t.mu.Unlock()
	t.releaseAux(prev, nil, nil)
	return c, nil
}

// CreateLedgerClient builds the ledger client (default timeout 30s) and replaces the previous one.
func (t *Transport) CreateLedgerClient(o AuxOptions) (LedgerClient, error) {
	c, err := t.buildLedger(o)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	prev := t.ledger
	t.ledger = c
	t.mu.Unlock()
	t.releaseAux(nil, prev, nil)
	return c, nil
}

// CreateIndexerClient builds the indexer client (default timeout 10s) and replaces the previous one.
func (t *Transport) CreateIndexerClient(o AuxOptions) (IndexerClient, error) {
	c, err := t.buildIndexer(o)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	prev := t.indexer
	t.indexer = c
	t.mu.Unlock()
	t.releaseAux(nil, nil, prev)
	return c, nil
}

// Bootstrap resolves the gateway address and builds the primary and all
// auxiliary clients as a unit: if any constructor fails, no slot changes.
func (t *Transport) Bootstrap(ctx context.Context, o BootstrapOptions) error {
	if t.builders.Primary == nil {
		return &UninitializedError{Dependency: "primary client builder"}
	}
	cfg := t.resolver.ResolveConfig(ctx)

	api, err := t.builders.Primary(cfg)
	if err != nil {
		return fmt.Errorf("bootstrap primary: %w", err)
	}
	zk, err := t.buildZK(o.ZK)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	ledger, err := t.buildLedger(o.Ledger)
	if err != nil {
		t.releaseAux(zk, nil, nil)
		return fmt.Errorf("bootstrap: %w", err)
	}
	indexer, err := t.buildIndexer(o.Indexer)
	if err != nil {
		t.releaseAux(zk, ledger, nil)
		return fmt.Errorf("bootstrap: %w", err)
	}

	t.mu.Lock()
	prevZK, prevLedger, prevIndexer := t.zk, t.ledger, t.indexer
	t.primary, t.zk, t.ledger, t.indexer = api, zk, ledger, indexer
	t.mu.Unlock()
	t.releaseAux(prevZK, prevLedger, prevIndexer)

	t.log.Info("transport.bootstrap.ok", "base_url", cfg.Endpoint().BaseURL())
	return nil
}

// Primary returns the primary client, or nil.
func (t *Transport) Primary() API {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.primary
}

// ZK returns the prover client, or nil.
func (t *Transport) ZK() ZKClient {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.zk
}

// Ledger returns the ledger client, or nil.
func (t *Transport) Ledger() LedgerClient {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ledger
}

// Indexer returns the indexer client, or nil.
func (t *Transport) Indexer() IndexerClient {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.indexer
}

func (t *Transport) requirePrimary() (API, error) {
	if api := t.Primary(); api != nil {
		return api, nil
	}
	return nil, &UninitializedError{Dependency: "primary client"}
}

func (t *Transport) buildZK(o AuxOptions) (ZKClient, error) {
	if t.builders.ZK == nil {
		return nil, &UninitializedError{Dependency: "zk client builder"}
	}
	c, err := t.builders.ZK(o.withDefaultTimeout(DefaultZKTimeout))
	if err != nil {
		return nil, fmt.Errorf("create zk client: %w", err)
	}
	return c, nil
}

func (t *Transport) buildLedger(o AuxOptions) (LedgerClient, error) {
	if t.builders.Ledger == nil {
		return nil, &UninitializedError{Dependency: "ledger client builder"}
	}
	c, err := t.builders.Ledger(o.withDefaultTimeout(DefaultLedgerTimeout))
	if err != nil {
		return nil, fmt.Errorf("create ledger client: %w", err)
	}
	return c, nil
}

func (t *Transport) buildIndexer(o AuxOptions) (IndexerClient, error) {
	if t.builders.Indexer == nil {
		return nil, &UninitializedError{Dependency: "indexer client builder"}
	}
	c, err := t.builders.Indexer(o.withDefaultTimeout(DefaultIndexerTimeout))
	if err != nil {
		return nil, fmt.Errorf("create indexer client: %w", err)
	}
	return c, nil
}

func closeAux(zk ZKClient, ledger LedgerClient, indexer IndexerClient) error {
	var errs []error
	if zk != nil {
		errs = append(errs, zk.Close())
	}
	if ledger != nil {
		errs = append(errs, ledger.Close())
	}
	if indexer != nil {
		errs = append(errs, indexer.Close())
	}
	return errors.Join(errs...)
}

// releaseAux closes replaced auxiliary clients; failures are only logged.
func (t *Transport) releaseAux(zk ZKClient, ledger LedgerClient, indexer IndexerClient) {
	if err := closeAux(zk, ledger, indexer); err != nil {
		t.log.Warn("transport.client.close.fail", "err", err)
	}
}
