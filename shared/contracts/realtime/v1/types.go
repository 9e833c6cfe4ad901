package v1

// HelloPayload authenticates a freshly dialed socket.
type HelloPayload struct {
	Token string `json:"token"`

	// ShouldListen asks the server to push presence/status events to this socket.
	ShouldListen bool `json:"should_listen"`

	// Platform lets the server pick delivery semantics (e.g. push vs socket for mobile).
	Platform string `json:"platform"`
	IsMobile bool   `json:"is_mobile"`
}

// HelloAckPayload carries the server-side socket session id.
type HelloAckPayload struct {
	SessionID string `json:"session_id"`
}

// ClanJoinPayload scopes the socket to a clan.
type ClanJoinPayload struct {
	ClanID string `json:"clan_id"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
