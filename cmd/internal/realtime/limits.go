package realtime

import "time"

const (
	// Max bytes per websocket frame read (hard limit).
	maxFrameBytes = 1 << 20 // 1 MiB

	// Heartbeat defaults (can be overridden with WithHeartbeat).
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second
	maxPingFailures   = 3

	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
	closeGrace       = time.Second
)
