package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mezon/cmd/internal/endpoint"
	"mezon/cmd/internal/session"
)

var (
	errBoom         = errors.New("boom")
	errClosedHandle = errors.New("handle closed")
)

type fakeAPI struct {
	mu sync.Mutex

	base endpoint.Endpoint

	authSess *session.Session
	authErr  error
	authCall int

	otpReqID string

	qrPending int
	qrChecks  int
	qrSess    *session.Session

	refreshCalls int
	refreshErr   error

	logoutCalls int
	logoutErr   error

	sockets []*fakeSocket
	// prepare configures every new socket before it is returned.
	prepare func(n int, s *fakeSocket)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{otpReqID: "req-1", qrSess: liveSession()}
}

func (a *fakeAPI) AuthenticateToken(_ context.Context, _ string) (*session.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.authCall++
	if a.authErr != nil {
		return nil, a.authErr
	}
	return a.authSess.Clone(), nil
}

func (a *fakeAPI) AuthenticateEmail(ctx context.Context, _, _ string) (*session.Session, error) {
	return a.AuthenticateToken(ctx, "")
}

func (a *fakeAPI) RequestEmailOTP(_ context.Context, _ string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.otpReqID, nil
}

func (a *fakeAPI) ConfirmEmailOTP(ctx context.Context, reqID, _ string) (*session.Session, error) {
	if reqID != a.otpReqID {
		return nil, fmt.Errorf("unknown request %q", reqID)
	}
	return a.AuthenticateToken(ctx, "")
}

func (a *fakeAPI) CreateQRLogin(_ context.Context) (string, time.Time, error) {
	return "login-1", time.Unix(1700000000, 0), nil
}

func (a *fakeAPI) CheckQRLogin(_ context.Context, _ string, remember bool) (*session.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.qrChecks++
	if a.qrChecks <= a.qrPending {
		return nil, nil
	}
	s := a.qrSess.Clone()
	s.Remember = remember
	return s, nil
}

func (a *fakeAPI) RefreshSession(_ context.Context, sess *session.Session) (*session.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshCalls++
	if a.refreshErr != nil {
		return nil, a.refreshErr
	}
	return &session.Session{
		Token:        fmt.Sprintf("token-%d", a.refreshCalls),
		RefreshToken: sess.RefreshToken,
		APIURL:       sess.APIURL,
	}, nil
}

func (a *fakeAPI) LogoutSession(_ context.Context, _ *session.Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logoutCalls++
	return a.logoutErr
}

func (a *fakeAPI) SetBasePath(ep endpoint.Endpoint) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.base = ep
}

func (a *fakeAPI) BasePath() endpoint.Endpoint {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.base
}

func (a *fakeAPI) NewSocket() Socket {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := &fakeSocket{id: fmt.Sprintf("sock-%d", len(a.sockets)+1)}
	if a.prepare != nil {
		a.prepare(len(a.sockets)+1, s)
	}
	a.sockets = append(a.sockets, s)
	return s
}

func (a *fakeAPI) socketCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sockets)
}

func (a *fakeAPI) socket(i int) *fakeSocket {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sockets[i]
}

func (a *fakeAPI) openSockets() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, s := range a.sockets {
		if s.IsOpen() {
			n++
		}
	}
	return n
}

func (a *fakeAPI) refreshes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshCalls
}

type fakeSocket struct {
	id string

	mu           sync.Mutex
	open         bool
	closed       bool
	connects     int
	sess         *session.Session
	shouldListen bool
	platform     session.Platform
	joined       []string
	intentional  int
	onDisconnect func(error)

	connectErr error
	joinErr    error
	// block, when set, holds Connect until it is closed.
	block chan struct{}
	// beforeConnect runs at the start of Connect.
	beforeConnect func()
}

func (s *fakeSocket) ID() string { return s.id }

func (s *fakeSocket) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *fakeSocket) Connect(ctx context.Context, sess *session.Session, shouldListen bool, p session.Platform) error {
	s.mu.Lock()
	s.connects++
	block, before := s.block, s.beforeConnect
	s.mu.Unlock()

	if before != nil {
		before()
	}

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectErr != nil {
		return s.connectErr
	}
	if s.closed {
		return errClosedHandle
	}
	s.open = true
	s.sess = sess.Clone()
	s.shouldListen = shouldListen
	s.platform = p
	return nil
}

func (s *fakeSocket) DisconnectIntentionally() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intentional++
	s.closed = true
	s.open = false
}

func (s *fakeSocket) JoinClan(_ context.Context, clanID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joinErr != nil {
		return s.joinErr
	}
	s.joined = append(s.joined, clanID)
	return nil
}

func (s *fakeSocket) OnDisconnect(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconnect = fn
}

// lose simulates an unexpected drop.
func (s *fakeSocket) lose(err error) {
	s.mu.Lock()
	s.open = false
	fn := s.onDisconnect
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (s *fakeSocket) connectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

func (s *fakeSocket) intentionalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intentional
}

func (s *fakeSocket) session() *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess.Clone()
}

func (s *fakeSocket) joinedClans() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.joined...)
}

// sleepRecorder replaces the backoff sleep and records requested delays.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func liveSession() *session.Session {
	return &session.Session{
		Token:        "access",
		RefreshToken: "refresh",
		APIURL:       "https://gw.mezon.ai:7305",
		ExpiresAt:    testNow.Add(time.Hour),
		UserID:       "u1",
	}
}

func expiredSession() *session.Session {
	s := liveSession()
	s.ExpiresAt = testNow.Add(-time.Minute)
	s.RefreshExpiresAt = testNow.Add(24 * time.Hour)
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testDefaults = Config{Host: "gw.example.com", Port: "7350", Key: "defaultkey", UseTLS: true}

// newTestTransport builds a Transport over api with a fixed clock, zero jitter
// and a recording sleeper, and installs api as the primary client.
func newTestTransport(t *testing.T, api *fakeAPI, opts ...Option) (*Transport, *sleepRecorder) {
	t.Helper()

	rec := &sleepRecorder{}
	base := []Option{
		WithLogger(discardLogger()),
		WithBuilders(Builders{Primary: func(Config) (API, error) { return api, nil }}),
		WithSleeper(rec.sleep),
		WithJitter(func() time.Duration { return 0 }),
		WithClock(func() time.Time { return testNow }),
	}
	tr := New(testDefaults, append(base, opts...)...)
	_, err := tr.CreatePrimaryClient(testDefaults)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr, rec
}

// installSession places sess in the credential store with an open socket, as
// if a login had completed.
func installSession(t *testing.T, tr *Transport, sess *session.Session) *fakeSocket {
	t.Helper()
	tr.creds.Set(context.Background(), sess)
	s, err := tr.CreateSocket()
	require.NoError(t, err)
	require.NoError(t, s.Connect(context.Background(), sess, true, tr.platform))
	return s.(*fakeSocket)
}
