package client

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyEndpoint is returned when a client is constructed without an address.
	ErrEmptyEndpoint = errors.New("client: empty endpoint")

	// ErrEmptyServerKey is returned when the primary client has no server key.
	ErrEmptyServerKey = errors.New("client: empty server key")
)

// StatusError is a non-2xx response from an HTTP service.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("client: http %d", e.Status)
	}
	return fmt.Sprintf("client: http %d %s: %s", e.Status, e.Code, e.Message)
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("client: rpc error %d: %s", e.Code, e.Message)
}
