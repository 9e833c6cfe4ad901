package session

import "errors"

var (
	// ErrInvalidSession is returned when a session lacks an access token or API URL.
	ErrInvalidSession = errors.New("invalid session")

	// ErrNoStoredSession is returned by a Vault that holds nothing.
	ErrNoStoredSession = errors.New("no stored session")
)
