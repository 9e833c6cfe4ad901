package transport

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"mezon/cmd/internal/session"
)

// Flow names used in logs, spans and metrics.
const (
	flowToken    = "token"
	flowEmail    = "email"
	flowEmailOTP = "email_otp"
	flowQR       = "qr"
	flowRestore  = "restore"
)

// OTPRequested is the first phase of the email OTP flow.
type OTPRequested struct {
	Email string
	ReqID string
}

// AuthenticateToken exchanges an opaque bearer token for a session and connects.
// On mobile the session is always remembered.
func (t *Transport) AuthenticateToken(ctx context.Context, token string, remember bool) (*session.Session, error) {
	if t.platform.IsMobile() {
		remember = true
	}
	return t.authenticate(ctx, flowToken, func(ctx context.Context, api API) (*session.Session, error) {
		sess, err := api.AuthenticateToken(ctx, token)
		if err != nil {
			return nil, err
		}
		sess.Remember = remember
		return sess, nil
	})
}

// AuthenticateEmail signs in with email and password and connects.
func (t *Transport) AuthenticateEmail(ctx context.Context, email, password string) (*session.Session, error) {
	return t.authenticate(ctx, flowEmail, func(ctx context.Context, api API) (*session.Session, error) {
		return api.AuthenticateEmail(ctx, strings.TrimSpace(email), password)
	})
}

// RequestEmailOTP sends a one-time code. It touches neither the socket nor the session.
func (t *Transport) RequestEmailOTP(ctx context.Context, email string) (OTPRequested, error) {
	api, err := t.requirePrimary()
	if err != nil {
		return OTPRequested{}, err
	}
	email = strings.TrimSpace(email)

	ctx, span := t.startSpan(ctx, "transport.otp.request")
	reqID, err := api.RequestEmailOTP(ctx, email)
	endSpan(span, err)
	if err != nil {
		return OTPRequested{}, err
	}
	t.log.Info("transport.otp.requested", "req_id", reqID)
	return OTPRequested{Email: email, ReqID: reqID}, nil
}

// ConfirmEmailOTP completes the OTP flow with the code the user received.
func (t *Transport) ConfirmEmailOTP(ctx context.Context, req OTPRequested, code string) (*session.Session, error) {
	if req.ReqID == "" {
		return nil, phaseError("confirm otp", PhaseNotStarted)
	}
	return t.authenticate(ctx, flowEmailOTP, func(ctx context.Context, api API) (*session.Session, error) {
		return api.ConfirmEmailOTP(ctx, req.ReqID, strings.TrimSpace(code))
	})
}

// Logout ends the session. The server-side logout is best-effort; the socket is
// closed intentionally and the session is dropped. wipe also erases the
// persisted endpoint record. An in-flight reconnection episode is not cancelled.
func (t *Transport) Logout(ctx context.Context, wipe bool) {
	ctx, span := t.startSpan(ctx, "transport.logout", attribute.Bool("wipe", wipe))
	defer endSpan(span, nil)

	sess := t.creds.Session()
	if api := t.Primary(); api != nil && sess != nil {
		if err := api.LogoutSession(ctx, sess); err != nil {
			t.log.Warn("transport.logout.remote.fail", "err", err)
		}
	}

	t.socketMu.Lock()
	t.mu.Lock()
	s := t.socket
	t.socket = nil
	t.clanID = ""
	t.mu.Unlock()
	t.socketMu.Unlock()

	if s != nil {
		s.DisconnectIntentionally()
	}

	t.creds.Forget(ctx)
	if wipe {
		t.creds.Clear(ctx)
	}
	t.log.Info("transport.logout.ok", "wipe", wipe)
}

// Restore reinstalls the remembered session from the vault, refreshing it when
// the access token has expired, and connects.
func (t *Transport) Restore(ctx context.Context) (*session.Session, error) {
	return t.authenticate(ctx, flowRestore, func(ctx context.Context, api API) (*session.Session, error) {
		sess, err := t.creds.Restore(ctx)
		if err != nil {
			return nil, err
		}
		now := t.now()
		if sess.Dead(now) {
			t.creds.Forget(ctx)
			return nil, ErrSessionExpired
		}
		if sess.Refreshable(now) {
			return t.refresh(ctx, api, sess)
		}
		return sess, nil
	})
}

// authenticate runs one exchange followed by the shared completion sequence.
func (t *Transport) authenticate(ctx context.Context, flow string, exchange func(context.Context, API) (*session.Session, error)) (sess *session.Session, err error) {
	api, err := t.requirePrimary()
	if err != nil {
		return nil, err
	}

	ctx, span := t.startSpan(ctx, "transport.authenticate", attribute.String("flow", flow))
	defer func() {
		t.metrics.authResult(flow, err)
		endSpan(span, err)
	}()

	sess, err = exchange(ctx, api)
	if err != nil {
		t.log.Info("transport.auth.fail", "flow", flow, "err", err)
		return nil, err
	}
	if err := t.complete(ctx, api, sess); err != nil {
		t.log.Info("transport.auth.connect.fail", "flow", flow, "err", err)
		return nil, err
	}
	t.log.Info("transport.auth.ok", "flow", flow, "user_id", sess.UserID, "remember", sess.Remember)
	return sess, nil
}

// complete stores the session, persists its endpoint, repoints the primary
// client and connects a fresh socket, in that order.
func (t *Transport) complete(ctx context.Context, api API, sess *session.Session) error {
	t.creds.Set(ctx, sess)

	if ep, ok := t.creds.ExtractAndSaveEndpoint(ctx, sess); ok {
		api.SetBasePath(ep)
	}

	s, err := t.CreateSocket()
	if err != nil {
		return err
	}
	return s.Connect(ctx, sess, true, t.platform)
}

// refresh renews sess, keeping its identity and remember flag.
func (t *Transport) refresh(ctx context.Context, api API, sess *session.Session) (*session.Session, error) {
	fresh, err := api.RefreshSession(ctx, sess)
	if err != nil {
		return nil, err
	}
	updated := sess.Clone()
	updated.Update(fresh.Token, fresh.RefreshToken)
	if fresh.APIURL != "" {
		updated.APIURL = fresh.APIURL
	}
	return updated, nil
}
