package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"mezon/cmd/internal/endpoint"
)

// ReconnectState is the reconnection engine's state.
type ReconnectState int

const (
	StateIdle ReconnectState = iota
	StateReconnecting
	StateRecovered
	StateExhausted
)

func (s ReconnectState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReconnecting:
		return "reconnecting"
	case StateRecovered:
		return "recovered"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome says how a Reconnect call ended.
type Outcome int

const (
	// OutcomeRecovered: a new socket was connected.
	OutcomeRecovered Outcome = iota
	// OutcomeAlreadyOpen: the current socket was open; no episode ran.
	OutcomeAlreadyOpen
	// OutcomeAlreadyReconnecting: another episode is in flight.
	OutcomeAlreadyReconnecting
	// OutcomeNothingToReconnect: no primary client or no session.
	OutcomeNothingToReconnect
	// OutcomeExhausted: the attempt ceiling was reached.
	OutcomeExhausted
	// OutcomeCanceled: ctx ended the episode.
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRecovered:
		return "recovered"
	case OutcomeAlreadyOpen:
		return "already_open"
	case OutcomeAlreadyReconnecting:
		return "already_reconnecting"
	case OutcomeNothingToReconnect:
		return "nothing_to_reconnect"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ReconnectResult is returned by Reconnect. Socket is set for OutcomeRecovered
// and OutcomeAlreadyOpen.
type ReconnectResult struct {
	Outcome  Outcome
	Socket   Socket
	Attempts int
}

type engine struct {
	mu       sync.Mutex
	inFlight bool
	state    ReconnectState
	pending  []ReconnectState
}

// State returns the reconnection engine's current state.
func (t *Transport) State() ReconnectState {
	t.engine.mu.Lock()
	defer t.engine.mu.Unlock()
	return t.engine.state
}

// Reconnecting reports whether an episode is in flight.
func (t *Transport) Reconnecting() bool {
	t.engine.mu.Lock()
	defer t.engine.mu.Unlock()
	return t.engine.inFlight
}

// Reconnect repairs the socket and session pair, rejoining clanID when it is
// not empty. Only one episode runs at a time; concurrent callers get
// OutcomeAlreadyReconnecting. An error is returned only for exhaustion
// (ExhaustedError) or when ctx ends the episode.
func (t *Transport) Reconnect(ctx context.Context, clanID string) (ReconnectResult, error) {
	clanID = strings.TrimSpace(clanID)

	res, started := t.enter()
	if !started {
		t.metrics.episode(res.Outcome)
		t.log.Debug("transport.reconnect.skip", "outcome", res.Outcome.String())
		return res, nil
	}

	ctx, span := t.startSpan(ctx, "transport.reconnect", attribute.String("clan_id", clanID))
	t.log.Info("transport.reconnect.start", "clan_id", clanID, "max_attempts", t.maxAttempts)

	var err error
	defer func() {
		t.finish(res.Outcome)
		endSpan(span, err)
	}()

	res, err = t.runEpisode(ctx, clanID)
	return res, err
}

// enter applies the entry guards and, when an episode may start, marks it in flight.
func (t *Transport) enter() (ReconnectResult, bool) {
	defer t.notify()
	t.engine.mu.Lock()
	defer t.engine.mu.Unlock()

	if t.engine.inFlight {
		return ReconnectResult{Outcome: OutcomeAlreadyReconnecting}, false
	}
	if s := t.Socket(); s != nil && s.IsOpen() {
		return ReconnectResult{Outcome: OutcomeAlreadyOpen, Socket: s}, false
	}
	if t.Primary() == nil || t.creds.Session() == nil {
		return ReconnectResult{Outcome: OutcomeNothingToReconnect}, false
	}

	t.engine.inFlight = true
	t.setState(StateReconnecting)
	return ReconnectResult{}, true
}

func (t *Transport) finish(o Outcome) {
	defer t.notify()
	t.engine.mu.Lock()
	defer t.engine.mu.Unlock()

	switch o {
	case OutcomeRecovered, OutcomeAlreadyOpen:
		t.setState(StateRecovered)
	case OutcomeExhausted:
		t.setState(StateExhausted)
	}
	t.engine.inFlight = false
	t.setState(StateIdle)
	t.metrics.episode(o)
}

// setState must be called with engine.mu held. The hook runs after the lock
// is released, in transition order.
func (t *Transport) setState(s ReconnectState) {
	t.engine.state = s
	t.metrics.setState(s)
	if t.onState != nil {
		t.engine.pending = append(t.engine.pending, s)
	}
}

// notify is deferred ahead of the engine lock so it runs after the unlock.
func (t *Transport) notify() {
	if t.onState == nil {
		return
	}
	t.engine.mu.Lock()
	pending := t.engine.pending
	t.engine.pending = nil
	t.engine.mu.Unlock()

	for _, s := range pending {
		t.onState(s)
	}
}

func (t *Transport) runEpisode(ctx context.Context, clanID string) (ReconnectResult, error) {
	mobile := t.platform.IsMobile()

	var last error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return ReconnectResult{Outcome: OutcomeCanceled, Attempts: attempt - 1}, err
		}
		if s := t.Socket(); s != nil && s.IsOpen() {
			return ReconnectResult{Outcome: OutcomeAlreadyOpen, Socket: s, Attempts: attempt - 1}, nil
		}

		s, err := t.attempt(ctx, attempt, clanID)
		t.metrics.attempt(err == nil)
		if err == nil {
			t.log.Info("transport.reconnect.ok", "attempt", attempt, "socket_id", s.ID())
			return ReconnectResult{Outcome: OutcomeRecovered, Socket: s, Attempts: attempt}, nil
		}
		if errors.Is(err, ErrUninitialized) {
			t.log.Warn("transport.reconnect.abort", "attempt", attempt, "err", err)
			return ReconnectResult{Outcome: OutcomeNothingToReconnect, Attempts: attempt}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ReconnectResult{Outcome: OutcomeCanceled, Attempts: attempt}, ctxErr
		}

		last = err
		t.log.Warn("transport.reconnect.attempt.fail", "attempt", attempt, "err", err)
		if errors.Is(err, ErrRefreshFailed) && t.sessionOnDefaultGateway() {
			t.dropSession(ctx, attempt, err)
			return ReconnectResult{Outcome: OutcomeExhausted, Attempts: attempt},
				&ExhaustedError{Attempts: attempt, Last: err}
		}
		if attempt == t.maxAttempts {
			break
		}

		if !t.monitor.Online() {
			t.log.Info("transport.reconnect.wait_online", "attempt", attempt)
		}
		if err := t.monitor.WaitOnline(ctx); err != nil {
			return ReconnectResult{Outcome: OutcomeCanceled, Attempts: attempt}, err
		}
		delay := Backoff(attempt, mobile, t.jitter())
		t.log.Debug("transport.reconnect.backoff", "attempt", attempt, "delay", delay)
		if err := t.sleep(ctx, delay); err != nil {
			return ReconnectResult{Outcome: OutcomeCanceled, Attempts: attempt}, err
		}
	}

	t.log.Error("transport.reconnect.exhausted", "attempts", t.maxAttempts, "err", last)
	if errors.Is(last, ErrRefreshFailed) {
		t.dropSession(ctx, t.maxAttempts, last)
	}
	return ReconnectResult{Outcome: OutcomeExhausted, Attempts: t.maxAttempts},
		&ExhaustedError{Attempts: t.maxAttempts, Last: last}
}

// attempt runs one reconnection attempt: fresh handle, optional refresh,
// connect, clan rejoin, endpoint persistence.
func (t *Transport) attempt(ctx context.Context, n int, clanID string) (_ Socket, err error) {
	ctx, span := t.startSpan(ctx, "transport.reconnect.attempt", attribute.Int("attempt", n))
	defer func() { endSpan(span, err) }()

	api, err := t.requirePrimary()
	if err != nil {
		return nil, err
	}
	s, err := t.CreateSocket()
	if err != nil {
		return nil, err
	}

	sess := t.creds.Session()
	if sess == nil {
		return nil, &UninitializedError{Dependency: "session"}
	}
	if sess.Refreshable(t.now()) {
		sess, err = t.refresh(ctx, api, sess)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
		}
		t.creds.Set(ctx, sess)
		t.log.Info("transport.reconnect.refreshed", "attempt", n)
	}

	if err := s.Connect(ctx, sess, true, t.platform); err != nil {
		return nil, fmt.Errorf("connect socket: %w", err)
	}
	if clanID != "" {
		if err := s.JoinClan(ctx, clanID); err != nil {
			s.DisconnectIntentionally()
			return nil, fmt.Errorf("join clan: %w", err)
		}
	}

	if ep, ok := t.creds.ExtractAndSaveEndpoint(ctx, sess); ok {
		api.SetBasePath(ep)
	}
	t.mu.Lock()
	t.clanID = clanID
	t.mu.Unlock()
	return s, nil
}

// sessionOnDefaultGateway reports whether the current session is bound to the
// environment default endpoint. A session whose API URL cannot be parsed can
// only be served by the defaults.
func (t *Transport) sessionOnDefaultGateway() bool {
	sess := t.creds.Session()
	if sess == nil {
		return false
	}
	ep, err := endpoint.FromURL(sess.APIURL)
	if err != nil {
		return true
	}
	return ep == t.resolver.Defaults().Endpoint()
}

// dropSession forgets a session that can no longer be renewed, vault copy included.
func (t *Transport) dropSession(ctx context.Context, attempt int, cause error) {
	t.log.Warn("transport.reconnect.session.drop", "attempt", attempt, "err", cause)
	t.creds.Forget(ctx)
}
