package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"mezon/cmd/internal/transport"
)

// ZKClient calls the zero-knowledge prover over HTTP/JSON.
type ZKClient struct {
	base    string
	timeout time.Duration
	headers map[string]string
	hc      *http.Client
}

var _ transport.ZKClient = (*ZKClient)(nil)

// NewZKClient builds a prover client.
func NewZKClient(o transport.AuxOptions, opts ...Option) (*ZKClient, error) {
	base := strings.TrimRight(strings.TrimSpace(o.Endpoint), "/")
	if base == "" {
		return nil, ErrEmptyEndpoint
	}
	bo := buildOptions(opts)
	return &ZKClient{base: base, timeout: o.Timeout, headers: cloneHeaders(o.Headers), hc: bo.httpClient}, nil
}

// Prove requests a proof for in.
func (c *ZKClient) Prove(ctx context.Context, in transport.ProofInput) (transport.Proof, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	var out transport.Proof
	if _, err := doJSON(ctx, c.hc, c.base+"/prove", c.headers, nil, in, &out); err != nil {
		return transport.Proof{}, err
	}
	if out.Proof == "" {
		return transport.Proof{}, errors.New("client: empty proof")
	}
	return out, nil
}

// Close is a no-op; the HTTP transport is shared.
func (c *ZKClient) Close() error { return nil }

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func cloneHeaders(h map[string]string) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
