package transport

import (
	"context"
	"fmt"
	"sync"

	"mezon/cmd/internal/session"
)

// Phase is the state of a multi-step login.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseOTPRequested
	PhaseQRPolling
	PhaseResolved
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseOTPRequested:
		return "otp_requested"
	case PhaseQRPolling:
		return "qr_polling"
	case PhaseResolved:
		return "resolved"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func phaseError(op string, p Phase) error {
	return fmt.Errorf("%w: %s in phase %s", ErrLoginPhase, op, p)
}

// Login tracks one multi-step login so steps cannot be taken out of order.
// A Login is resolved at most once.
type Login struct {
	t *Transport

	mu    sync.Mutex
	phase Phase
	otp   OTPRequested
	qr    QRPolling
	sess  *session.Session
}

// NewLogin starts a login in PhaseNotStarted.
func (t *Transport) NewLogin() *Login {
	return &Login{t: t}
}

// Phase returns the current phase.
func (l *Login) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

// Session returns the resolved session, or nil before PhaseResolved.
func (l *Login) Session() *session.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sess.Clone()
}

// RequestOTP sends a code to email. It may be repeated until the login resolves.
func (l *Login) RequestOTP(ctx context.Context, email string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phase != PhaseNotStarted && l.phase != PhaseOTPRequested {
		return phaseError("request otp", l.phase)
	}
	req, err := l.t.RequestEmailOTP(ctx, email)
	if err != nil {
		return err
	}
	l.otp = req
	l.phase = PhaseOTPRequested
	return nil
}

// ConfirmOTP resolves the login with the received code.
func (l *Login) ConfirmOTP(ctx context.Context, code string) (*session.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phase != PhaseOTPRequested {
		return nil, phaseError("confirm otp", l.phase)
	}
	sess, err := l.t.ConfirmEmailOTP(ctx, l.otp, code)
	if err != nil {
		return nil, err
	}
	l.resolve(sess)
	return sess, nil
}

// StartQR issues a QR challenge.
func (l *Login) StartQR(ctx context.Context) (QRPolling, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phase != PhaseNotStarted && l.phase != PhaseQRPolling {
		return QRPolling{}, phaseError("start qr", l.phase)
	}
	q, err := l.t.CreateQRChallenge(ctx)
	if err != nil {
		return QRPolling{}, err
	}
	l.qr = q
	l.phase = PhaseQRPolling
	return q, nil
}

// Poll checks the QR challenge once. A nil session means still pending.
func (l *Login) Poll(ctx context.Context, remember bool) (*session.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phase != PhaseQRPolling {
		return nil, phaseError("poll qr", l.phase)
	}
	sess, err := l.t.CheckLoginStatus(ctx, l.qr, remember)
	if err != nil || sess == nil {
		return nil, err
	}
	l.resolve(sess)
	return sess, nil
}

func (l *Login) resolve(sess *session.Session) {
	l.sess = sess.Clone()
	l.phase = PhaseResolved
}
