package transport

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mezon/cmd/internal/endpoint"
	"mezon/cmd/internal/session"
)

func TestAuthenticateTokenScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := endpoint.NewMemoryStore()
	vault := session.NewMemoryVault()
	api := newFakeAPI()
	api.authSess = liveSession()
	tr, _ := newTestTransport(t, api, WithEndpointStore(store), WithVault(vault))

	assert.Equal(t, testDefaults, tr.Resolver().ResolveConfig(ctx))

	sess, err := tr.AuthenticateToken(ctx, "abc", false)
	require.NoError(t, err)
	assert.False(t, sess.Remember)

	rec, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, endpoint.Record{Host: "gw.mezon.ai", Port: "7305", SSL: true}, rec)
	assert.Equal(t, endpoint.Endpoint{Host: "gw.mezon.ai", Port: "7305", UseTLS: true}, api.BasePath())

	require.Equal(t, 1, api.socketCount())
	assert.Equal(t, 1, api.openSockets())
	s := api.socket(0)
	assert.Equal(t, 1, s.connectCount())
	assert.True(t, s.shouldListen)
	assert.Equal(t, session.PlatformWeb, s.platform)
	assert.False(t, s.session().Remember)

	assert.Equal(t, "access", tr.Session().Token)
	_, err = vault.Load(ctx)
	require.ErrorIs(t, err, session.ErrNoStoredSession, "sessions that are not remembered stay out of the vault")
}

func TestAuthenticateTokenMobileRemembers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := endpoint.NewMemoryStore()
	vault := session.NewMemoryVault()
	api := newFakeAPI()
	api.authSess = liveSession()
	tr, _ := newTestTransport(t, api, WithPlatform(session.PlatformIOS), WithEndpointStore(store), WithVault(vault))

	sess, err := tr.AuthenticateToken(ctx, "abc", false)
	require.NoError(t, err)
	assert.True(t, sess.Remember)
	assert.Equal(t, session.PlatformIOS, api.socket(0).platform)

	_, found, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found, "mobile leaves endpoint persistence to the app")

	stored, err := vault.Load(ctx)
	require.NoError(t, err)
	assert.True(t, stored.Remember)
}

func TestAuthenticateErrorPropagates(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.authErr = errBoom
	tr, _ := newTestTransport(t, api)

	_, err := tr.AuthenticateEmail(context.Background(), "a@b.c", "pw")
	require.ErrorIs(t, err, errBoom)
	assert.Nil(t, tr.Session())
	assert.Equal(t, 0, api.socketCount())
	assert.Equal(t, 1, api.authCall, "flows never retry")
}

func TestEmailOTPFlow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	api := newFakeAPI()
	api.authSess = liveSession()
	tr, _ := newTestTransport(t, api)

	req, err := tr.RequestEmailOTP(ctx, " user@mezon.ai ")
	require.NoError(t, err)
	assert.Equal(t, OTPRequested{Email: "user@mezon.ai", ReqID: "req-1"}, req)
	assert.Equal(t, 0, api.socketCount())
	assert.Nil(t, tr.Session())

	_, err = tr.ConfirmEmailOTP(ctx, OTPRequested{}, "123456")
	require.ErrorIs(t, err, ErrLoginPhase)

	sess, err := tr.ConfirmEmailOTP(ctx, req, "123456")
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, 1, api.openSockets())
}

func TestQRPollingScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := endpoint.NewMemoryStore()
	api := newFakeAPI()
	api.qrPending = 3
	tr, rec := newTestTransport(t, api, WithEndpointStore(store))

	q, err := tr.CreateQRChallenge(ctx)
	require.NoError(t, err)
	assert.Equal(t, "login-1", q.LoginID)
	assert.EqualValues(t, 1700000000, q.CreatedAtSeconds())

	for range 3 {
		sess, err := tr.CheckLoginStatus(ctx, q, false)
		require.NoError(t, err)
		assert.Nil(t, sess)
		assert.Equal(t, 0, api.socketCount())
		assert.Nil(t, tr.Session())
		_, found, _ := store.Load(ctx)
		assert.False(t, found)
	}

	sess, err := tr.CheckLoginStatus(ctx, q, false)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, 1, api.socketCount())
	assert.Equal(t, 1, api.openSockets())
	assert.Empty(t, rec.recorded())
}

func TestAwaitQRLoginStopsOnFirstSession(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.qrPending = 3
	tr, rec := newTestTransport(t, api)

	q, err := tr.CreateQRChallenge(context.Background())
	require.NoError(t, err)

	sess, err := tr.AwaitQRLogin(context.Background(), q, true, PollOptions{})
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.True(t, sess.Remember)
	assert.Equal(t, 4, api.qrChecks)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second}, rec.recorded())
	assert.Equal(t, 1, api.socketCount())
}

func TestAwaitQRLoginTimeout(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.qrPending = 1000

	now := testNow
	clock := func() time.Time { return now }
	tr, _ := newTestTransport(t, api, WithClock(clock), WithSleeper(func(_ context.Context, d time.Duration) error {
		now = now.Add(d)
		return nil
	}))

	q, err := tr.CreateQRChallenge(context.Background())
	require.NoError(t, err)

	_, err = tr.AwaitQRLogin(context.Background(), q, false, PollOptions{Interval: 2 * time.Second, Timeout: 10 * time.Second})
	require.ErrorIs(t, err, ErrQRTimeout)
	assert.Equal(t, 5, api.qrChecks)
	assert.Equal(t, 0, api.socketCount())
}

func TestQRPNG(t *testing.T) {
	t.Parallel()

	png, err := QRPolling{LoginID: "login-1"}.PNG(128)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestLoginPhases(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	api := newFakeAPI()
	api.authSess = liveSession()
	tr, _ := newTestTransport(t, api)

	l := tr.NewLogin()
	assert.Equal(t, PhaseNotStarted, l.Phase())

	_, err := l.ConfirmOTP(ctx, "1")
	require.ErrorIs(t, err, ErrLoginPhase)
	_, err = l.Poll(ctx, false)
	require.ErrorIs(t, err, ErrLoginPhase)

	require.NoError(t, l.RequestOTP(ctx, "user@mezon.ai"))
	assert.Equal(t, PhaseOTPRequested, l.Phase())

	_, err = l.StartQR(ctx)
	require.ErrorIs(t, err, ErrLoginPhase)

	sess, err := l.ConfirmOTP(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, PhaseResolved, l.Phase())
	assert.Equal(t, sess.Token, l.Session().Token)

	err = l.RequestOTP(ctx, "user@mezon.ai")
	require.ErrorIs(t, err, ErrLoginPhase)
	assert.Contains(t, err.Error(), "resolved")
}

func TestLoginQRPhase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	api := newFakeAPI()
	api.qrPending = 1
	tr, _ := newTestTransport(t, api)

	l := tr.NewLogin()
	_, err := l.StartQR(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseQRPolling, l.Phase())

	sess, err := l.Poll(ctx, false)
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Equal(t, PhaseQRPolling, l.Phase())

	sess, err = l.Poll(ctx, false)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, PhaseResolved, l.Phase())
}

func TestLogout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := endpoint.NewMemoryStore()
	vault := session.NewMemoryVault()
	api := newFakeAPI()
	api.logoutErr = errBoom
	tr, _ := newTestTransport(t, api, WithEndpointStore(store), WithVault(vault), WithAutoReconnect(true))

	sess := liveSession()
	sess.Remember = true
	s := installSession(t, tr, sess)
	tr.creds.ExtractAndSaveEndpoint(ctx, sess)

	tr.Logout(ctx, true)

	assert.Equal(t, 1, api.logoutCalls)
	assert.Nil(t, tr.Socket())
	assert.Nil(t, tr.Session())
	assert.False(t, s.IsOpen())
	assert.Equal(t, 1, s.intentionalCount())
	_, err := vault.Load(ctx)
	require.ErrorIs(t, err, session.ErrNoStoredSession)
	_, found, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, StateIdle, tr.State())
}

func TestRestore(t *testing.T) {
	t.Parallel()

	t.Run("live session reconnects", func(t *testing.T) {
		ctx := context.Background()
		vault := session.NewMemoryVault()
		stored := liveSession()
		stored.Remember = true
		require.NoError(t, vault.Save(ctx, stored))

		api := newFakeAPI()
		tr, _ := newTestTransport(t, api, WithVault(vault))

		sess, err := tr.Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, "access", sess.Token)
		assert.Equal(t, 0, api.refreshes())
		assert.Equal(t, 1, api.openSockets())
	})

	t.Run("expired session refreshes", func(t *testing.T) {
		ctx := context.Background()
		vault := session.NewMemoryVault()
		stored := expiredSession()
		stored.Remember = true
		require.NoError(t, vault.Save(ctx, stored))

		api := newFakeAPI()
		tr, _ := newTestTransport(t, api, WithVault(vault))

		sess, err := tr.Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, "token-1", sess.Token)
		assert.True(t, sess.Remember)
		assert.Equal(t, "u1", sess.UserID)
		assert.Equal(t, 1, api.refreshes())

		again, err := vault.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "token-1", again.Token)
	})

	t.Run("dead session is discarded", func(t *testing.T) {
		ctx := context.Background()
		vault := session.NewMemoryVault()
		stored := expiredSession()
		stored.RefreshExpiresAt = testNow.Add(-time.Hour)
		require.NoError(t, vault.Save(ctx, stored))

		api := newFakeAPI()
		tr, _ := newTestTransport(t, api, WithVault(vault))

		_, err := tr.Restore(ctx)
		require.ErrorIs(t, err, ErrSessionExpired)
		_, err = vault.Load(ctx)
		require.ErrorIs(t, err, session.ErrNoStoredSession)
		assert.Equal(t, 0, api.socketCount())
	})

	t.Run("nothing stored", func(t *testing.T) {
		tr, _ := newTestTransport(t, newFakeAPI())
		_, err := tr.Restore(context.Background())
		require.ErrorIs(t, err, session.ErrNoStoredSession)
	})
}
