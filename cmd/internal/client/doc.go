// Package client contains the concrete protocol clients used by the transport
// context: the gateway API client (HTTP/JSON plus realtime sockets), the
// zero-knowledge prover client, the ledger JSON-RPC client and the indexer
// gRPC client.
//
// Every outbound request carries an X-Request-Id ULID so client and server
// logs can be correlated.
package client
