package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"mezon/cmd/internal/transport"
)

// LedgerClient speaks JSON-RPC 2.0 to a ledger node.
type LedgerClient struct {
	url     string
	timeout time.Duration
	headers map[string]string
	hc      *http.Client
	seq     atomic.Uint64
}

var _ transport.LedgerClient = (*LedgerClient)(nil)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

type addressParams struct {
	Address string `json:"address"`
}

type nonceResult struct {
	Nonce uint64 `json:"nonce"`
}

// NewLedgerClient builds a ledger client.
func NewLedgerClient(o transport.AuxOptions, opts ...Option) (*LedgerClient, error) {
	url := strings.TrimSpace(o.Endpoint)
	if url == "" {
		return nil, ErrEmptyEndpoint
	}
	bo := buildOptions(opts)
	return &LedgerClient{url: url, timeout: o.Timeout, headers: cloneHeaders(o.Headers), hc: bo.httpClient}, nil
}

// Account returns the account snapshot for address.
func (c *LedgerClient) Account(ctx context.Context, address string) (transport.Account, error) {
	var out transport.Account
	if err := c.call(ctx, "account_getAccount", addressParams{Address: address}, &out); err != nil {
		return transport.Account{}, err
	}
	return out, nil
}

// CurrentNonce returns the next usable nonce for address.
func (c *LedgerClient) CurrentNonce(ctx context.Context, address string) (uint64, error) {
	var out nonceResult
	if err := c.call(ctx, "account_getCurrentNonce", addressParams{Address: address}, &out); err != nil {
		return 0, err
	}
	return out.Nonce, nil
}

func (c *LedgerClient) call(ctx context.Context, method string, params, out any) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	id := c.seq.Add(1)
	var resp rpcResponse
	if _, err := doJSON(ctx, c.hc, c.url, c.headers, nil, rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}, &resp); err != nil {
		return fmt.Errorf("ledger %s: %w", method, err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if resp.ID != id {
		return fmt.Errorf("ledger %s: response id %d, want %d", method, resp.ID, id)
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("ledger %s: decode result: %w", method, err)
	}
	return nil
}

// Close is a no-op; the HTTP transport is shared.
func (c *LedgerClient) Close() error { return nil }
