package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"mezon/cmd/internal/endpoint"
	"mezon/cmd/internal/realtime"
	"mezon/cmd/internal/session"
	"mezon/cmd/internal/transport"
)

const (
	routeAuthToken      = "/v2/account/authenticate/token"
	routeAuthEmail      = "/v2/account/authenticate/email"
	routeEmailOTP       = "/v2/account/authenticate/email/otp"
	routeEmailOTPVerify = "/v2/account/authenticate/email/otp/confirm"
	routeQRCreate       = "/v2/account/authenticate/qr"
	routeQRCheck        = "/v2/account/authenticate/qr/check"
	routeRefresh        = "/v2/account/session/refresh"
	routeLogout         = "/v2/session/logout"

	socketPath = "/ws"
)

// APIClient is the primary gateway client.
type APIClient struct {
	key  string
	hc   *http.Client
	log  *slog.Logger
	opts options

	mu   sync.RWMutex
	base endpoint.Endpoint
}

var _ transport.API = (*APIClient)(nil)

// NewAPIClient builds a client for cfg.
func NewAPIClient(cfg transport.Config, opts ...Option) (*APIClient, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, ErrEmptyEndpoint
	}
	if strings.TrimSpace(cfg.Key) == "" {
		return nil, ErrEmptyServerKey
	}
	o := buildOptions(opts)
	return &APIClient{
		key:  cfg.Key,
		hc:   o.httpClient,
		log:  o.log,
		opts: o,
		base: cfg.Endpoint(),
	}, nil
}

// SetBasePath implements transport.API.
func (c *APIClient) SetBasePath(ep endpoint.Endpoint) {
	c.mu.Lock()
	c.base = ep
	c.mu.Unlock()
	c.log.Debug("client.base_path.set", "base_url", ep.BaseURL())
}

// BasePath implements transport.API.
func (c *APIClient) BasePath() endpoint.Endpoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.base
}

// NewSocket implements transport.API.
func (c *APIClient) NewSocket() transport.Socket {
	opts := append([]realtime.Option{realtime.WithLogger(c.log)}, c.opts.socketOpts...)
	return realtime.New(c.BasePath().WebsocketURL(socketPath), opts...)
}

func (c *APIClient) AuthenticateToken(ctx context.Context, token string) (*session.Session, error) {
	return c.authenticate(ctx, routeAuthToken, tokenAuthRequest{Token: token})
}

func (c *APIClient) AuthenticateEmail(ctx context.Context, email, password string) (*session.Session, error) {
	return c.authenticate(ctx, routeAuthEmail, emailAuthRequest{Email: email, Password: password})
}

func (c *APIClient) RequestEmailOTP(ctx context.Context, email string) (string, error) {
	var out emailOTPResponse
	if _, err := c.post(ctx, routeEmailOTP, c.basicAuth, emailOTPRequest{Email: email}, &out); err != nil {
		return "", err
	}
	if out.ReqID == "" {
		return "", errors.New("client: otp response without req_id")
	}
	return out.ReqID, nil
}

func (c *APIClient) ConfirmEmailOTP(ctx context.Context, reqID, code string) (*session.Session, error) {
	return c.authenticate(ctx, routeEmailOTPVerify, emailOTPConfirmRequest{ReqID: reqID, Code: code})
}

func (c *APIClient) CreateQRLogin(ctx context.Context) (string, time.Time, error) {
	var out qrCreateResponse
	if _, err := c.post(ctx, routeQRCreate, c.basicAuth, struct{}{}, &out); err != nil {
		return "", time.Time{}, err
	}
	if out.LoginID == "" {
		return "", time.Time{}, errors.New("client: qr response without login_id")
	}
	return out.LoginID, out.CreatedAt, nil
}

func (c *APIClient) CheckQRLogin(ctx context.Context, loginID string, remember bool) (*session.Session, error) {
	var out sessionResponse
	status, err := c.post(ctx, routeQRCheck, c.basicAuth, qrCheckRequest{LoginID: loginID, Remember: remember}, &out)
	if err != nil {
		return nil, err
	}
	if status == http.StatusAccepted {
		return nil, nil
	}
	sess, err := c.toSession(out)
	if err != nil {
		return nil, err
	}
	sess.Remember = remember
	return sess, nil
}

func (c *APIClient) RefreshSession(ctx context.Context, sess *session.Session) (*session.Session, error) {
	if sess == nil || sess.RefreshToken == "" {
		return nil, errors.New("client: session has no refresh token")
	}
	var out sessionResponse
	if _, err := c.post(ctx, routeRefresh, c.basicAuth, refreshRequest{RefreshToken: sess.RefreshToken}, &out); err != nil {
		return nil, err
	}
	if out.APIURL == "" {
		out.APIURL = sess.APIURL
	}
	fresh, err := c.toSession(out)
	if err != nil {
		return nil, err
	}
	fresh.Remember = sess.Remember
	return fresh, nil
}

func (c *APIClient) LogoutSession(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.Token == "" {
		return nil
	}
	bearer := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+sess.Token) }
	_, err := c.post(ctx, routeLogout, bearer, logoutRequest{Token: sess.Token, RefreshToken: sess.RefreshToken}, nil)
	return err
}

func (c *APIClient) authenticate(ctx context.Context, route string, in any) (*session.Session, error) {
	var out sessionResponse
	if _, err := c.post(ctx, route, c.basicAuth, in, &out); err != nil {
		return nil, err
	}
	return c.toSession(out)
}

func (c *APIClient) toSession(out sessionResponse) (*session.Session, error) {
	if out.Token == "" {
		return nil, errors.New("client: session response without token")
	}
	apiURL := out.APIURL
	if apiURL == "" {
		apiURL = c.BasePath().BaseURL()
	}
	return session.New(out.Token, out.RefreshToken, out.Created, apiURL), nil
}

func (c *APIClient) basicAuth(r *http.Request) {
	r.SetBasicAuth(c.key, "")
}

func (c *APIClient) post(ctx context.Context, route string, auth func(*http.Request), in, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.apiTimeout)
	defer cancel()

	start := time.Now()
	status, err := doJSON(ctx, c.hc, c.BasePath().BaseURL()+route, nil, auth, in, out)
	if err != nil {
		c.log.Info("client.api.fail", "route", route, "status", status, "took_ms", time.Since(start).Milliseconds(), "err", err)
		return status, err
	}
	c.log.Debug("client.api.ok", "route", route, "status", status, "took_ms", time.Since(start).Milliseconds())
	return status, nil
}
