package realtime

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned for operations on a socket that is not open.
	ErrNotConnected = errors.New("realtime: socket not connected")

	// ErrAlreadyConnected is returned when Connect is called on an open socket.
	ErrAlreadyConnected = errors.New("realtime: socket already connected")

	// ErrClosed is returned when Connect is called on a socket that was already torn down.
	// Handles are single-use; build a new one to reconnect.
	ErrClosed = errors.New("realtime: socket closed")

	// ErrSubprotocol is returned when the server does not negotiate the realtime subprotocol.
	ErrSubprotocol = errors.New("realtime: subprotocol not negotiated")

	// ErrHandshake is returned when the hello exchange does not complete.
	ErrHandshake = errors.New("realtime: handshake failed")
)

// ServerError is an error envelope returned by the gateway.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("realtime: server error %s: %s", e.Code, e.Message)
}
