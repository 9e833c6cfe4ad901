package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"mezon/cmd/internal/ids"
	"mezon/cmd/internal/transport"
)

// IndexerQueryMethod is the full gRPC method name of the indexer query RPC.
const IndexerQueryMethod = "/mezon.indexer.v1.Indexer/Query"

// IndexerClient queries the transaction indexer over gRPC. Requests and
// responses are google.protobuf.Struct messages.
type IndexerClient struct {
	conn    *grpc.ClientConn
	timeout time.Duration
	md      metadata.MD
}

var _ transport.IndexerClient = (*IndexerClient)(nil)

// NewIndexerClient builds an indexer client. The endpoint may be a bare
// host:port (plaintext) or an http(s):// URL; https selects TLS.
// The connection is established lazily on first use.
func NewIndexerClient(o transport.AuxOptions, opts ...Option) (*IndexerClient, error) {
	target, useTLS, err := grpcTarget(o.Endpoint)
	if err != nil {
		return nil, err
	}

	creds := insecure.NewCredentials()
	if useTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("client: indexer dial: %w", err)
	}

	md := metadata.MD{}
	for k, v := range o.Headers {
		md.Set(strings.ToLower(k), v)
	}
	return &IndexerClient{conn: conn, timeout: o.Timeout, md: md}, nil
}

// Query invokes method on the indexer with params.
func (c *IndexerClient) Query(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	args, err := structpb.NewStruct(params)
	if err != nil {
		return nil, fmt.Errorf("client: indexer params: %w", err)
	}
	req, err := structpb.NewStruct(map[string]any{"method": method})
	if err != nil {
		return nil, err
	}
	req.Fields["params"] = structpb.NewStructValue(args)

	md := c.md.Copy()
	md.Set("x-request-id", ids.New())
	ctx = metadata.NewOutgoingContext(ctx, md)

	var resp structpb.Struct
	if err := c.conn.Invoke(ctx, IndexerQueryMethod, req, &resp); err != nil {
		return nil, fmt.Errorf("client: indexer %s: %w", method, err)
	}
	return resp.AsMap(), nil
}

// Close releases the gRPC connection.
func (c *IndexerClient) Close() error {
	return c.conn.Close()
}

func grpcTarget(raw string) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, ErrEmptyEndpoint
	}
	if !strings.Contains(raw, "://") {
		return raw, false, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("client: indexer endpoint: %w", err)
	}
	if u.Host == "" {
		return "", false, ErrEmptyEndpoint
	}
	useTLS := u.Scheme == "https"
	host := u.Host
	if u.Port() == "" {
		if useTLS {
			host += ":443"
		} else {
			host += ":80"
		}
	}
	return host, useTLS, nil
}
