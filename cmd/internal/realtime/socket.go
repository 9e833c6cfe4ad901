// Package realtime is the client side of the Mezon realtime gateway: one
// websocket handle per Socket, authenticated with a hello exchange.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"mezon/cmd/internal/ids"
	"mezon/cmd/internal/session"
	v1 "mezon/shared/contracts/realtime/v1"
)

type connState uint8

const (
	stateIdle connState = iota
	stateDialing
	stateOpen
	stateClosed
)

// Socket is a single-use realtime connection handle.
//
// Lifecycle: New -> Connect -> (JoinClan)* -> closed. Once closed, for any
// reason, the handle cannot be reconnected; callers build a fresh one.
// The disconnect callback fires at most once, and never for a close requested
// through DisconnectIntentionally.
type Socket struct {
	id  string
	url string
	log *slog.Logger

	httpClient *http.Client
	header     http.Header

	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration
	handshakeTimeout time.Duration

	onEvent func(v1.Envelope)

	mu              sync.Mutex
	state           connState
	conn            *websocket.Conn
	cancel          context.CancelFunc
	intentional     bool
	serverSessionID string
	pending         map[string]chan v1.Envelope
	onDisconnect    func(error)

	closeOnce sync.Once
	done      chan struct{}
}

// New builds an unconnected Socket for the websocket URL wsURL.
func New(wsURL string, opts ...Option) *Socket {
	s := &Socket{
		id:               ids.New(),
		url:              wsURL,
		log:              slog.Default(),
		heartbeatEvery:   heartbeatInterval,
		heartbeatTimeout: heartbeatTimeout,
		handshakeTimeout: handshakeTimeout,
		pending:          make(map[string]chan v1.Envelope),
		done:             make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.log = s.log.With("socket_id", s.id)
	return s
}

// ID returns the client-side handle id.
func (s *Socket) ID() string { return s.id }

// URL returns the websocket URL this handle dials.
func (s *Socket) URL() string { return s.url }

// SessionID returns the gateway-assigned socket session id (empty before hello_ack).
func (s *Socket) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverSessionID
}

// IsOpen reports whether the handshake completed and the connection is live.
func (s *Socket) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateOpen
}

// Done is closed once the handle is torn down.
func (s *Socket) Done() <-chan struct{} { return s.done }

// OnDisconnect registers fn for unexpected connection loss. A later call replaces fn.
func (s *Socket) OnDisconnect(fn func(error)) {
	s.mu.Lock()
	s.onDisconnect = fn
	s.mu.Unlock()
}

// Connect dials the gateway and authenticates with the session's access token.
func (s *Socket) Connect(ctx context.Context, sess *session.Session, shouldListen bool, platform session.Platform) error {
	if sess == nil || strings.TrimSpace(sess.Token) == "" {
		return fmt.Errorf("%w: missing session token", ErrHandshake)
	}

	s.mu.Lock()
	switch s.state {
	case stateDialing, stateOpen:
		s.mu.Unlock()
		return ErrAlreadyConnected
	case stateClosed:
		s.mu.Unlock()
		return ErrClosed
	}
	// teardown cancels the dial through s.cancel until the handle is open.
	dialCtx, dialCancel := context.WithCancel(ctx)
	defer dialCancel()
	s.state = stateDialing
	s.cancel = dialCancel
	s.mu.Unlock()

	start := time.Now()
	conn, sessionID, err := s.dial(dialCtx, sess.Token, shouldListen, platform)
	if err != nil {
		s.mu.Lock()
		closed := s.state == stateClosed
		if s.state == stateDialing {
			s.state = stateIdle
			s.cancel = nil
		}
		s.mu.Unlock()
		s.log.Info("socket.connect.fail", "url", s.url, "closed", closed, "err", err)
		if closed {
			return ErrClosed
		}
		return err
	}

	s.mu.Lock()
	if s.state == stateClosed {
		// DisconnectIntentionally raced the handshake.
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		return ErrClosed
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s.conn = conn
	s.cancel = cancel
	s.serverSessionID = sessionID
	s.state = stateOpen
	s.mu.Unlock()

	go s.readLoop(runCtx, conn)
	go s.heartbeat(runCtx, conn)

	s.log.Info("socket.connect.ok",
		"url", s.url,
		"session_id", sessionID,
		"platform", string(platform),
		"should_listen", shouldListen,
		"took_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (s *Socket) dial(ctx context.Context, token string, shouldListen bool, platform session.Platform) (*websocket.Conn, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.handshakeTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, s.url, &websocket.DialOptions{
		HTTPClient:   s.httpClient,
		HTTPHeader:   s.header,
		Subprotocols: []string{v1.Subprotocol},
	})
	if err != nil {
		return nil, "", fmt.Errorf("realtime: dial: %w", err)
	}
	if sp := conn.Subprotocol(); sp != v1.Subprotocol {
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return nil, "", fmt.Errorf("%w: got %q", ErrSubprotocol, sp)
	}
	conn.SetReadLimit(maxFrameBytes)

	hello, err := newEnvelope(v1.TypeHello, v1.HelloPayload{
		Token:        token,
		ShouldListen: shouldListen,
		Platform:     string(platform),
		IsMobile:     platform.IsMobile(),
	})
	if err != nil {
		conn.CloseNow()
		return nil, "", err
	}
	if err := writeEnvelope(ctx, conn, hello, writeTimeout); err != nil {
		conn.CloseNow()
		return nil, "", fmt.Errorf("%w: write hello: %v", ErrHandshake, err)
	}

	for {
		env, err := readEnvelope(ctx, conn)
		if err != nil {
			conn.CloseNow()
			return nil, "", fmt.Errorf("%w: %v", ErrHandshake, err)
		}
		switch env.Type {
		case v1.TypeHelloAck:
			var ack v1.HelloAckPayload
			if err := json.Unmarshal(env.Payload, &ack); err != nil {
				conn.CloseNow()
				return nil, "", fmt.Errorf("%w: bad hello_ack: %v", ErrHandshake, err)
			}
			return conn, ack.SessionID, nil
		case v1.TypeError:
			_ = conn.Close(websocket.StatusNormalClosure, "hello rejected")
			return nil, "", decodeServerError(env)
		default:
			// Pushes ahead of the ack carry nothing the handshake needs.
			continue
		}
	}
}

// DisconnectIntentionally closes the handle without reporting it as a loss.
// Safe to call on a handle in any state, any number of times.
func (s *Socket) DisconnectIntentionally() {
	s.mu.Lock()
	s.intentional = true
	s.mu.Unlock()
	s.teardown(nil, websocket.StatusNormalClosure, "bye")
}

// JoinClan scopes the socket to clanID and waits for the gateway echo.
func (s *Socket) JoinClan(ctx context.Context, clanID string) error {
	clanID = strings.TrimSpace(clanID)
	if clanID == "" {
		return errors.New("realtime: empty clan id")
	}
	if _, err := s.request(ctx, v1.TypeClanJoin, v1.ClanJoinPayload{ClanID: clanID}); err != nil {
		return fmt.Errorf("realtime: join clan %s: %w", clanID, err)
	}
	s.log.Info("socket.clan.join.ok", "clan_id", clanID)
	return nil
}

func (s *Socket) request(ctx context.Context, typ string, payload any) (v1.Envelope, error) {
	env, err := newEnvelope(typ, payload)
	if err != nil {
		return v1.Envelope{}, err
	}
	reply := make(chan v1.Envelope, 1)

	s.mu.Lock()
	if s.state != stateOpen {
		s.mu.Unlock()
		return v1.Envelope{}, ErrNotConnected
	}
	conn := s.conn
	s.pending[env.ID] = reply
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, env.ID)
		s.mu.Unlock()
	}()

	if err := writeEnvelope(ctx, conn, env, writeTimeout); err != nil {
		return v1.Envelope{}, fmt.Errorf("write %s: %w", typ, err)
	}

	select {
	case <-ctx.Done():
		return v1.Envelope{}, ctx.Err()
	case r, ok := <-reply:
		if !ok {
			return v1.Envelope{}, ErrNotConnected
		}
		if r.Type == v1.TypeError {
			return v1.Envelope{}, decodeServerError(r)
		}
		return r, nil
	}
}

func (s *Socket) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		env, err := readEnvelope(ctx, conn)
		if err != nil {
			switch classifyReadErr(err) {
			case readErrBadJSON:
				s.log.Info("socket.read.bad_json", "err", err)
				continue
			case readErrCtxDone:
				return
			case readErrClose:
				s.teardown(fmt.Errorf("realtime: closed by peer: %w", err), websocket.StatusNormalClosure, "peer closed")
			case readErrConnClosed:
				s.teardown(fmt.Errorf("realtime: connection lost: %w", err), websocket.StatusAbnormalClosure, "conn closed")
			default:
				s.teardown(fmt.Errorf("realtime: read: %w", err), websocket.StatusAbnormalClosure, "read failed")
			}
			return
		}

		if err := env.Validate(); err != nil {
			s.log.Info("socket.read.invalid", "err", err)
			continue
		}
		s.dispatch(env)
	}
}

func (s *Socket) dispatch(env v1.Envelope) {
	if env.CID != "" {
		s.mu.Lock()
		ch, ok := s.pending[env.CID]
		if ok {
			delete(s.pending, env.CID)
		}
		s.mu.Unlock()

		if ok {
			ch <- env
			return
		}
	}
	if s.onEvent != nil {
		s.onEvent(env)
	}
}

func (s *Socket) heartbeat(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(s.heartbeatEvery)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			hbCtx, hbCancel := context.WithTimeout(ctx, s.heartbeatTimeout)
			err := conn.Ping(hbCtx)
			hbCancel()

			if err == nil {
				failures = 0
				continue
			}
			if ctx.Err() != nil {
				return
			}
			failures++
			s.log.Info("socket.ping.fail", "failures", failures, "err", err)
			if failures >= maxPingFailures {
				s.teardown(fmt.Errorf("realtime: heartbeat failed: %w", err), websocket.StatusGoingAway, "heartbeat failed")
				return
			}
		}
	}
}

// teardown is idempotent. Only the first caller decides whether the loss is reported.
func (s *Socket) teardown(cause error, code websocket.StatusCode, reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		intentional := s.intentional
		conn, cancel := s.conn, s.cancel
		wasOpen := s.state == stateOpen
		s.state = stateClosed
		pending := s.pending
		s.pending = make(map[string]chan v1.Envelope)
		cb := s.onDisconnect
		s.mu.Unlock()

		if conn != nil {
			_ = conn.Close(code, reason)
		}
		if cancel != nil {
			cancel()
		}
		for _, ch := range pending {
			close(ch)
		}
		close(s.done)

		if intentional {
			s.log.Info("socket.closed", "was_open", wasOpen)
			return
		}
		s.log.Warn("socket.lost", "err", cause)
		if cb != nil {
			cb(cause)
		}
	})
}

// ---- envelope IO ----

func newEnvelope(typ string, payload any) (v1.Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return v1.Envelope{}, fmt.Errorf("realtime: encode %s: %w", typ, err)
	}
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      ids.New(),
		TS:      time.Now().UTC(),
		Payload: b,
	}, nil
}

func readEnvelope(ctx context.Context, conn *websocket.Conn) (v1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, err
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env v1.Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

func decodeServerError(env v1.Envelope) error {
	var p v1.ErrorPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.Code == "" {
		return &ServerError{Code: "unknown", Message: string(env.Payload)}
	}
	return &ServerError{Code: p.Code, Message: p.Message}
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return readErrBadJSON
	}
	return readErrUnknown
}
