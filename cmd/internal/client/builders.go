package client

import "mezon/cmd/internal/transport"

// Builders returns transport constructors backed by the clients in this package.
func Builders(opts ...Option) transport.Builders {
	return transport.Builders{
		Primary: func(cfg transport.Config) (transport.API, error) {
			c, err := NewAPIClient(cfg, opts...)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		ZK: func(o transport.AuxOptions) (transport.ZKClient, error) {
			c, err := NewZKClient(o, opts...)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		Ledger: func(o transport.AuxOptions) (transport.LedgerClient, error) {
			c, err := NewLedgerClient(o, opts...)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		Indexer: func(o transport.AuxOptions) (transport.IndexerClient, error) {
			c, err := NewIndexerClient(o, opts...)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}
