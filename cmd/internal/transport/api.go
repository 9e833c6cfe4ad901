package transport

import (
	"context"
	"time"

	"mezon/cmd/internal/endpoint"
	"mezon/cmd/internal/session"
)

// Config addresses the primary gateway.
type Config struct {
	Host   string
	Port   string
	Key    string
	UseTLS bool
}

// Endpoint returns the address part of c.
func (c Config) Endpoint() endpoint.Endpoint {
	return endpoint.Endpoint{Host: c.Host, Port: c.Port, UseTLS: c.UseTLS}
}

// API is the primary protocol client.
type API interface {
	AuthenticateToken(ctx context.Context, token string) (*session.Session, error)
	AuthenticateEmail(ctx context.Context, email, password string) (*session.Session, error)
	// RequestEmailOTP sends a one-time code to email and returns the request id
	// that ConfirmEmailOTP needs.
	RequestEmailOTP(ctx context.Context, email string) (string, error)
	ConfirmEmailOTP(ctx context.Context, reqID, code string) (*session.Session, error)
	CreateQRLogin(ctx context.Context) (loginID string, createdAt time.Time, err error)
	// CheckQRLogin returns (nil, nil) while the challenge is still pending.
	CheckQRLogin(ctx context.Context, loginID string, remember bool) (*session.Session, error)
	RefreshSession(ctx context.Context, sess *session.Session) (*session.Session, error)
	LogoutSession(ctx context.Context, sess *session.Session) error

	// SetBasePath repoints subsequent calls and sockets at ep.
	SetBasePath(ep endpoint.Endpoint)
	BasePath() endpoint.Endpoint

	// NewSocket builds an unconnected socket for the current base path.
	NewSocket() Socket
}

// Socket is one realtime connection handle.
type Socket interface {
	ID() string
	IsOpen() bool
	Connect(ctx context.Context, sess *session.Session, shouldListen bool, platform session.Platform) error
	// DisconnectIntentionally closes the handle without firing OnDisconnect.
	DisconnectIntentionally()
	JoinClan(ctx context.Context, clanID string) error
	// OnDisconnect registers the callback for unexpected loss.
	OnDisconnect(fn func(error))
}

// AuxOptions configures an auxiliary client.
type AuxOptions struct {
	Endpoint string
	Timeout  time.Duration
	Headers  map[string]string
}

const (
	DefaultZKTimeout      = 30 * time.Second
	DefaultLedgerTimeout  = 30 * time.Second
	DefaultIndexerTimeout = 10 * time.Second
)

func (o AuxOptions) withDefaultTimeout(d time.Duration) AuxOptions {
	if o.Timeout <= 0 {
		o.Timeout = d
	}
	return o
}

// ProofInput is the zero-knowledge prover request.
type ProofInput struct {
	UserID      string `json:"user_id"`
	JWT         string `json:"jwt"`
	Address     string `json:"address"`
	EphemeralPK string `json:"ephemeral_pk"`
}

// Proof is the prover output.
type Proof struct {
	Proof       string `json:"proof"`
	PublicInput string `json:"public_input"`
}

// ZKClient talks to the zero-knowledge proof service.
type ZKClient interface {
	Prove(ctx context.Context, in ProofInput) (Proof, error)
	Close() error
}

// Account is a ledger account snapshot.
type Account struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// LedgerClient talks to the ledger (blockchain) node.
type LedgerClient interface {
	Account(ctx context.Context, address string) (Account, error)
	CurrentNonce(ctx context.Context, address string) (uint64, error)
	Close() error
}

// IndexerClient queries the transaction indexer.
type IndexerClient interface {
	Query(ctx context.Context, method string, params map[string]any) (map[string]any, error)
	Close() error
}

// Builders constructs concrete clients. Any nil builder makes the
// corresponding Create call fail with an UninitializedError.
type Builders struct {
	Primary func(Config) (API, error)
	ZK      func(AuxOptions) (ZKClient, error)
	Ledger  func(AuxOptions) (LedgerClient, error)
	Indexer func(AuxOptions) (IndexerClient, error)
}
