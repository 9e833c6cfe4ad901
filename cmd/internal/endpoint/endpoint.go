// Package endpoint describes where the Mezon gateway lives and persists the
// last endpoint a session was issued for.
package endpoint

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// StorageKey is the fixed key the endpoint record is stored under.
const StorageKey = "mezon.endpoint"

// ErrInvalidURL is returned by FromURL for URLs without a usable host.
var ErrInvalidURL = errors.New("endpoint: invalid url")

// Endpoint is a resolved gateway address.
type Endpoint struct {
	Host   string
	Port   string
	UseTLS bool
}

// FromURL parses a session API URL such as "https://gw.mezon.ai:7305".
// When the URL has no explicit port the scheme default is used (443 / 80).
func FromURL(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Endpoint{}, ErrInvalidURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	var useTLS bool
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		useTLS = true
	case "http", "ws":
	default:
		return Endpoint{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return Endpoint{}, ErrInvalidURL
	}
	port := u.Port()
	if port == "" {
		port = defaultPort(useTLS)
	}
	if _, err := strconv.Atoi(port); err != nil {
		return Endpoint{}, fmt.Errorf("%w: port %q", ErrInvalidURL, port)
	}
	return Endpoint{Host: host, Port: port, UseTLS: useTLS}, nil
}

func defaultPort(useTLS bool) string {
	if useTLS {
		return "443"
	}
	return "80"
}

func (e Endpoint) hostPort() string {
	port := e.Port
	if port == "" {
		port = defaultPort(e.UseTLS)
	}
	return net.JoinHostPort(e.Host, port)
}

// BaseURL returns the HTTP base URL without a trailing slash.
func (e Endpoint) BaseURL() string {
	scheme := "http"
	if e.UseTLS {
		scheme = "https"
	}
	return scheme + "://" + e.hostPort()
}

// WebsocketURL returns the websocket URL for path.
func (e Endpoint) WebsocketURL(path string) string {
	scheme := "ws"
	if e.UseTLS {
		scheme = "wss"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return scheme + "://" + e.hostPort() + path
}

// Record returns the persisted form of e.
func (e Endpoint) Record() Record {
	return Record{Host: e.Host, Port: e.Port, SSL: e.UseTLS}
}

// Record is the persisted endpoint shape.
type Record struct {
	Host string `json:"host"`
	Port string `json:"port"`
	SSL  bool   `json:"ssl"`
}

// Endpoint converts r back into an Endpoint.
func (r Record) Endpoint() Endpoint {
	return Endpoint{Host: r.Host, Port: r.Port, UseTLS: r.SSL}
}
