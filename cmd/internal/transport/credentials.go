package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"mezon/cmd/internal/endpoint"
	"mezon/cmd/internal/session"
)

// CredentialStore holds the current session and is the only writer of the
// persisted endpoint record.
type CredentialStore struct {
	resolver *Resolver
	vault    session.Vault
	mobile   bool
	log      *slog.Logger

	mu   sync.RWMutex
	sess *session.Session
}

// NewCredentialStore builds a CredentialStore. vault may be nil.
func NewCredentialStore(resolver *Resolver, vault session.Vault, mobile bool, log *slog.Logger) *CredentialStore {
	if log == nil {
		log = slog.Default()
	}
	return &CredentialStore{resolver: resolver, vault: vault, mobile: mobile, log: log}
}

// Session returns a copy of the current session, or nil.
func (c *CredentialStore) Session() *session.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sess.Clone()
}

// Set replaces the current session. Remembered sessions are mirrored into the
// vault; a session that is not remembered removes any stored copy.
func (c *CredentialStore) Set(ctx context.Context, sess *session.Session) {
	c.mu.Lock()
	c.sess = sess.Clone()
	c.mu.Unlock()

	if c.vault == nil || sess == nil {
		return
	}
	if sess.Remember {
		if err := c.vault.Save(ctx, sess); err != nil {
			c.log.Warn("session.vault.save.fail", "err", err)
		}
		return
	}
	if err := c.vault.Delete(ctx); err != nil {
		c.log.Warn("session.vault.delete.fail", "err", err)
	}
}

// ExtractAndSaveEndpoint parses the session's API URL and persists it.
// Persistence is skipped on mobile, where the embedding app owns it.
func (c *CredentialStore) ExtractAndSaveEndpoint(ctx context.Context, sess *session.Session) (endpoint.Endpoint, bool) {
	if sess == nil {
		return endpoint.Endpoint{}, false
	}
	ep, err := endpoint.FromURL(sess.APIURL)
	if err != nil {
		c.log.Warn("endpoint.parse.fail", "api_url", sess.APIURL, "err", err)
		return endpoint.Endpoint{}, false
	}
	if !c.mobile {
		c.resolver.PersistConfig(ctx, ep.Host, ep.Port, ep.UseTLS)
	}
	return ep, true
}

// Clear erases the persisted endpoint record.
func (c *CredentialStore) Clear(ctx context.Context) {
	c.resolver.forget(ctx)
}

// Forget drops the current session and its vault copy.
func (c *CredentialStore) Forget(ctx context.Context) {
	c.mu.Lock()
	c.sess = nil
	c.mu.Unlock()

	if c.vault == nil {
		return
	}
	if err := c.vault.Delete(ctx); err != nil {
		c.log.Warn("session.vault.delete.fail", "err", err)
	}
}

// Restore loads the remembered session from the vault without installing it.
func (c *CredentialStore) Restore(ctx context.Context) (*session.Session, error) {
	if c.vault == nil {
		return nil, session.ErrNoStoredSession
	}
	sess, err := c.vault.Load(ctx)
	if err != nil {
		if !errors.Is(err, session.ErrNoStoredSession) {
			c.log.Warn("session.vault.load.fail", "err", err)
		}
		return nil, err
	}
	return sess, nil
}
