package session

import (
	"strings"
	"time"
)

// Session is one authenticated identity bound to a specific backend deployment.
type Session struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`

	// Created is true when the server issued a brand-new account for this login.
	Created bool `json:"created"`

	Remember bool   `json:"remember"`
	APIURL   string `json:"api_url"`

	ExpiresAt        time.Time `json:"expires_at,omitzero"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitzero"`
	CreatedAt        time.Time `json:"created_at,omitzero"`

	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// New builds a Session from server-issued tokens, reading expiry and identity claims.
func New(token, refreshToken string, created bool, apiURL string) *Session {
	s := &Session{
		Created: created,
		APIURL:  strings.TrimSpace(apiURL),
	}
	s.Update(token, refreshToken)
	if c, ok := parseClaims(token); ok {
		s.CreatedAt = numericTime(c.IssuedAt)
	}
	return s
}

// Update rotates tokens in place after a refresh. Identity fields are kept
// unless the new access token carries them.
func (s *Session) Update(token, refreshToken string) {
	s.Token = token
	s.RefreshToken = refreshToken
	s.ExpiresAt = time.Time{}
	s.RefreshExpiresAt = time.Time{}

	if c, ok := parseClaims(token); ok {
		s.ExpiresAt = numericTime(c.ExpiresAt)
		if c.UserID != "" {
			s.UserID = c.UserID
		}
		if c.Username != "" {
			s.Username = c.Username
		}
	}
	if c, ok := parseClaims(refreshToken); ok {
		s.RefreshExpiresAt = numericTime(c.ExpiresAt)
	}
}

// Clone returns a copy safe to mutate.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

// Valid reports whether the session carries an access token and an API base URL.
func (s *Session) Valid() bool {
	return s != nil && s.Token != "" && strings.TrimSpace(s.APIURL) != ""
}

// IsExpired reports whether the access token is expired at now.
// Tokens without an expiry never expire.
func (s *Session) IsExpired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// IsRefreshExpired reports whether the refresh token is expired at now.
func (s *Session) IsRefreshExpired(now time.Time) bool {
	if s == nil || s.RefreshToken == "" {
		return true
	}
	return !s.RefreshExpiresAt.IsZero() && !now.Before(s.RefreshExpiresAt)
}

// Refreshable reports whether a refresh should run before the next connect:
// a refresh token is present and the access token is expired.
func (s *Session) Refreshable(now time.Time) bool {
	return s != nil && s.RefreshToken != "" && s.IsExpired(now)
}

// Renewable reports whether an expired access token can still be renewed.
func (s *Session) Renewable(now time.Time) bool {
	return s.Valid() && s.IsExpired(now) && !s.IsRefreshExpired(now)
}

// Dead reports whether the session must be discarded.
func (s *Session) Dead(now time.Time) bool {
	if !s.Valid() {
		return true
	}
	return s.IsExpired(now) && !s.Renewable(now)
}
