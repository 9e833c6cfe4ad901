package transport

import (
	"context"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"mezon/cmd/internal/session"
)

// QRPolling is an issued QR login challenge awaiting approval on another device.
type QRPolling struct {
	LoginID   string
	CreatedAt time.Time
}

// CreatedAtSeconds is the challenge creation time as the server reports it.
func (q QRPolling) CreatedAtSeconds() int64 { return q.CreatedAt.Unix() }

// PNG renders the login id as a QR code image of size x size pixels.
func (q QRPolling) PNG(size int) ([]byte, error) {
	return qrcode.Encode(q.LoginID, qrcode.Medium, size)
}

// PollOptions controls AwaitQRLogin.
type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration
}

const (
	defaultPollInterval = 2 * time.Second
	defaultPollTimeout  = time.Minute
)

// CreateQRChallenge asks the gateway for a new QR login challenge.
func (t *Transport) CreateQRChallenge(ctx context.Context) (QRPolling, error) {
	api, err := t.requirePrimary()
	if err != nil {
		return QRPolling{}, err
	}
	ctx, span := t.startSpan(ctx, "transport.qr.create")
	id, createdAt, err := api.CreateQRLogin(ctx)
	endSpan(span, err)
	if err != nil {
		return QRPolling{}, err
	}
	t.log.Info("transport.qr.created", "login_id", id)
	return QRPolling{LoginID: id, CreatedAt: createdAt}, nil
}

// CheckLoginStatus polls the challenge once. A nil session with a nil error
// means the challenge is still pending; nothing is changed in that case.
func (t *Transport) CheckLoginStatus(ctx context.Context, q QRPolling, remember bool) (*session.Session, error) {
	if q.LoginID == "" {
		return nil, phaseError("check qr login", PhaseNotStarted)
	}
	api, err := t.requirePrimary()
	if err != nil {
		return nil, err
	}
	remember = remember || t.platform.IsMobile()
	sess, err := api.CheckQRLogin(ctx, q.LoginID, remember)
	if err != nil || sess == nil {
		return nil, err
	}
	return t.authenticate(ctx, flowQR, func(context.Context, API) (*session.Session, error) {
		sess.Remember = remember
		return sess, nil
	})
}

// AwaitQRLogin polls the challenge until it is approved, ctx ends or the
// timeout elapses. The first poll is immediate.
func (t *Transport) AwaitQRLogin(ctx context.Context, q QRPolling, remember bool, o PollOptions) (*session.Session, error) {
	if o.Interval <= 0 {
		o.Interval = defaultPollInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultPollTimeout
	}
	deadline := t.now().Add(o.Timeout)

	for polls := 1; ; polls++ {
		sess, err := t.CheckLoginStatus(ctx, q, remember)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			t.log.Debug("transport.qr.approved", "login_id", q.LoginID, "polls", polls)
			return sess, nil
		}
		if !t.now().Add(o.Interval).Before(deadline) {
			return nil, ErrQRTimeout
		}
		if err := t.sleep(ctx, o.Interval); err != nil {
			return nil, err
		}
	}
}
