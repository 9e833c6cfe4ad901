package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mezon/cmd/internal/session"
	v1 "mezon/shared/contracts/realtime/v1"
)

// fakeGateway is a minimal server side of the realtime contract.
type fakeGateway struct {
	srv *httptest.Server

	hellos chan v1.HelloPayload
	conns  atomic.Int32

	noSubprotocol bool
	// silent reads hello but never answers it.
	silent    bool
	userAgent atomic.Value
	// afterAck runs once the handshake is acknowledged; returning true ends the handler.
	afterAck func(ctx context.Context, conn *websocket.Conn) bool
}

func newFakeGateway(t *testing.T, configure func(*fakeGateway)) *fakeGateway {
	t.Helper()

	g := &fakeGateway{hellos: make(chan v1.HelloPayload, 8)}
	if configure != nil {
		configure(g)
	}
	g.srv = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGateway) wsURL() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http") + "/ws"
}

func (g *fakeGateway) serve(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{Subprotocols: []string{v1.Subprotocol}}
	if g.noSubprotocol {
		opts.Subprotocols = nil
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return
	}
	defer conn.CloseNow()
	g.conns.Add(1)
	g.userAgent.Store(r.UserAgent())

	ctx := r.Context()
	hello, err := readEnvelope(ctx, conn)
	if err != nil || hello.Type != v1.TypeHello {
		return
	}
	var hp v1.HelloPayload
	_ = json.Unmarshal(hello.Payload, &hp)
	g.hellos <- hp

	if g.silent {
		<-ctx.Done()
		return
	}
	if hp.Token == "rejected" {
		g.reply(ctx, conn, hello.ID, v1.TypeError, v1.ErrorPayload{Code: "unauthorized", Message: "bad token"})
		return
	}
	g.reply(ctx, conn, hello.ID, v1.TypeHelloAck, v1.HelloAckPayload{SessionID: "srv-session"})

	if g.afterAck != nil && g.afterAck(ctx, conn) {
		return
	}

	for {
		env, err := readEnvelope(ctx, conn)
		if err != nil {
			return
		}
		if env.Type != v1.TypeClanJoin {
			continue
		}
		var p v1.ClanJoinPayload
		_ = json.Unmarshal(env.Payload, &p)
		if p.ClanID == "forbidden" {
			g.reply(ctx, conn, env.ID, v1.TypeError, v1.ErrorPayload{Code: "forbidden", Message: "not a member"})
			continue
		}
		g.reply(ctx, conn, env.ID, v1.TypeClanJoin, p)
	}
}

func (g *fakeGateway) reply(ctx context.Context, conn *websocket.Conn, cid, typ string, payload any) {
	env, _ := newEnvelope(typ, payload)
	env.CID = cid
	_ = writeEnvelope(ctx, conn, env, time.Second)
}

func testSession() *session.Session {
	return session.New("access-token", "refresh-token", false, "http://127.0.0.1")
}

func TestSocket_ConnectAndJoinClan(t *testing.T) {
	t.Parallel()

	g := newFakeGateway(t, nil)
	s := New(g.wsURL())
	t.Cleanup(s.DisconnectIntentionally)

	assert.False(t, s.IsOpen())
	require.NoError(t, s.Connect(context.Background(), testSession(), true, session.PlatformAndroid))
	assert.True(t, s.IsOpen())
	assert.Equal(t, "srv-session", s.SessionID())
	assert.Len(t, s.ID(), 26)

	hello := <-g.hellos
	assert.Equal(t, v1.HelloPayload{Token: "access-token", ShouldListen: true, Platform: "android", IsMobile: true}, hello)

	require.NoError(t, s.JoinClan(context.Background(), "clan-1"))

	var se *ServerError
	err := s.JoinClan(context.Background(), "forbidden")
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "forbidden", se.Code)

	assert.ErrorIs(t, s.Connect(context.Background(), testSession(), true, session.PlatformWeb), ErrAlreadyConnected)
}

func TestSocket_HelloRejected(t *testing.T) {
	t.Parallel()

	g := newFakeGateway(t, nil)
	s := New(g.wsURL())

	sess := testSession()
	sess.Token = "rejected"

	err := s.Connect(context.Background(), sess, true, session.PlatformWeb)
	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "unauthorized", se.Code)
	assert.False(t, s.IsOpen())
}

func TestSocket_UpgradeUsesHTTPClientAndHeaders(t *testing.T) {
	t.Parallel()

	g := newFakeGateway(t, nil)
	s := New(g.wsURL(),
		WithHTTPClient(g.srv.Client()),
		WithHeader("User-Agent", "mezonctl-test"),
	)
	t.Cleanup(s.DisconnectIntentionally)

	require.NoError(t, s.Connect(context.Background(), testSession(), false, session.PlatformDesktop))
	assert.Equal(t, "mezonctl-test", g.userAgent.Load())
}

func TestSocket_HandshakeTimeout(t *testing.T) {
	t.Parallel()

	g := newFakeGateway(t, func(g *fakeGateway) { g.silent = true })
	s := New(g.wsURL(), WithHandshakeTimeout(100*time.Millisecond))

	start := time.Now()
	err := s.Connect(context.Background(), testSession(), true, session.PlatformWeb)
	require.ErrorIs(t, err, ErrHandshake)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, s.IsOpen())
}

func TestSocket_RequiresSubprotocol(t *testing.T) {
	t.Parallel()

	g := newFakeGateway(t, func(g *fakeGateway) { g.noSubprotocol = true })
	s := New(g.wsURL())

	err := s.Connect(context.Background(), testSession(), true, session.PlatformWeb)
	require.ErrorIs(t, err, ErrSubprotocol)
	assert.False(t, s.IsOpen())
}

func TestSocket_MissingToken(t *testing.T) {
	t.Parallel()

	s := New("ws://127.0.0.1:1/ws")
	err := s.Connect(context.Background(), &session.Session{APIURL: "http://x"}, true, session.PlatformWeb)
	require.ErrorIs(t, err, ErrHandshake)
}

func TestSocket_UnexpectedLossFiresCallbackOnce(t *testing.T) {
	t.Parallel()

	g := newFakeGateway(t, func(g *fakeGateway) {
		g.afterAck = func(_ context.Context, conn *websocket.Conn) bool {
			_ = conn.Close(websocket.StatusGoingAway, "server restart")
			return true
		}
	})

	s := New(g.wsURL())
	var calls atomic.Int32
	lost := make(chan error, 4)
	s.OnDisconnect(func(err error) {
		calls.Add(1)
		lost <- err
	})

	require.NoError(t, s.Connect(context.Background(), testSession(), true, session.PlatformWeb))

	select {
	case err := <-lost:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("disconnect callback not fired")
	}

	<-s.Done()
	assert.False(t, s.IsOpen())
	s.DisconnectIntentionally()
	assert.Equal(t, int32(1), calls.Load())

	assert.ErrorIs(t, s.Connect(context.Background(), testSession(), true, session.PlatformWeb), ErrClosed)
}

func TestSocket_HeartbeatFailureReportsLoss(t *testing.T) {
	t.Parallel()

	// Not reading on the server side means pings are never answered.
	g := newFakeGateway(t, func(g *fakeGateway) {
		g.afterAck = func(ctx context.Context, _ *websocket.Conn) bool {
			<-ctx.Done()
			return true
		}
	})

	s := New(g.wsURL(), WithHeartbeat(20*time.Millisecond, 20*time.Millisecond))
	lost := make(chan error, 1)
	s.OnDisconnect(func(err error) { lost <- err })
	t.Cleanup(s.DisconnectIntentionally)

	require.NoError(t, s.Connect(context.Background(), testSession(), true, session.PlatformWeb))

	select {
	case err := <-lost:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("heartbeat failure not reported")
	}
	assert.False(t, s.IsOpen())
}

func TestSocket_IntentionalDisconnectIsSilent(t *testing.T) {
	t.Parallel()

	g := newFakeGateway(t, nil)
	s := New(g.wsURL())

	var calls atomic.Int32
	s.OnDisconnect(func(error) { calls.Add(1) })

	require.NoError(t, s.Connect(context.Background(), testSession(), true, session.PlatformWeb))
	s.DisconnectIntentionally()
	s.DisconnectIntentionally()

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("socket not torn down")
	}
	assert.False(t, s.IsOpen())
	assert.Equal(t, int32(0), calls.Load())
	assert.ErrorIs(t, s.JoinClan(context.Background(), "clan-1"), ErrNotConnected)
}

func TestSocket_DisconnectAbortsHandshake(t *testing.T) {
	t.Parallel()

	g := newFakeGateway(t, func(g *fakeGateway) { g.silent = true })
	s := New(g.wsURL(), WithHandshakeTimeout(time.Minute))
	var calls atomic.Int32
	s.OnDisconnect(func(error) { calls.Add(1) })

	result := make(chan error, 1)
	go func() { result <- s.Connect(context.Background(), testSession(), true, session.PlatformWeb) }()

	select {
	case <-g.hellos:
	case <-time.After(5 * time.Second):
		t.Fatal("hello not received")
	}
	s.DisconnectIntentionally()

	select {
	case err := <-result:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Connect kept waiting for hello_ack after DisconnectIntentionally")
	}
	assert.False(t, s.IsOpen())
	assert.Equal(t, int32(0), calls.Load())
}

func TestSocket_DisconnectBeforeConnect(t *testing.T) {
	t.Parallel()

	s := New("ws://127.0.0.1:1/ws")
	s.DisconnectIntentionally()

	assert.False(t, s.IsOpen())
	assert.ErrorIs(t, s.Connect(context.Background(), testSession(), true, session.PlatformWeb), ErrClosed)
}

func TestSocket_EventHandlerReceivesPushes(t *testing.T) {
	t.Parallel()

	g := newFakeGateway(t, func(g *fakeGateway) {
		g.afterAck = func(ctx context.Context, conn *websocket.Conn) bool {
			g.reply(ctx, conn, "", v1.TypeEvent, map[string]string{"kind": "presence"})
			return false
		}
	})

	events := make(chan v1.Envelope, 1)
	s := New(g.wsURL(), WithEventHandler(func(env v1.Envelope) { events <- env }))
	t.Cleanup(s.DisconnectIntentionally)

	require.NoError(t, s.Connect(context.Background(), testSession(), false, session.PlatformWeb))

	select {
	case env := <-events:
		assert.Equal(t, v1.TypeEvent, env.Type)
		assert.JSONEq(t, `{"kind":"presence"}`, string(env.Payload))
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestClassifyReadErr(t *testing.T) {
	t.Parallel()

	var syntaxErr error = &json.SyntaxError{}
	assert.Equal(t, readErrBadJSON, classifyReadErr(syntaxErr))
	assert.Equal(t, readErrCtxDone, classifyReadErr(context.Canceled))
	assert.Equal(t, readErrUnknown, classifyReadErr(errors.New("boom")))
}
