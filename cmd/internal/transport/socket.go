package transport

import (
	"context"
	"strings"
)

// CreateSocket replaces the socket slot with a fresh, unconnected handle.
//
// The previous handle is closed with DisconnectIntentionally first, so its loss
// is never reported and at most one handle is ever open. Disconnect events from
// handles that are no longer in the slot are ignored.
func (t *Transport) CreateSocket() (Socket, error) {
	t.socketMu.Lock()
	defer t.socketMu.Unlock()

	api, err := t.requirePrimary()
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	prev := t.socket
	t.mu.RUnlock()

	// A handle still mid-handshake is closed too; it could otherwise open later.
	if prev != nil {
		wasOpen := prev.IsOpen()
		prev.DisconnectIntentionally()
		if wasOpen {
			t.log.Info("transport.socket.replaced", "old_socket_id", prev.ID())
		}
	}

	s := api.NewSocket()
	s.OnDisconnect(func(err error) { t.onSocketLost(s, err) })

	t.mu.Lock()
	t.socket = s
	t.mu.Unlock()

	t.metrics.socketReplaced()
	t.log.Debug("transport.socket.created", "socket_id", s.ID())
	return s, nil
}

// Socket returns the current handle, or nil.
func (t *Transport) Socket() Socket {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.socket
}

// ClanID returns the clan the socket was last scoped to.
func (t *Transport) ClanID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.clanID
}

// JoinClan scopes the current socket to clanID and records it as the target
// for future reconnection episodes.
func (t *Transport) JoinClan(ctx context.Context, clanID string) error {
	s := t.Socket()
	if s == nil || !s.IsOpen() {
		return &UninitializedError{Dependency: "socket"}
	}
	if err := s.JoinClan(ctx, clanID); err != nil {
		return err
	}
	t.mu.Lock()
	t.clanID = strings.TrimSpace(clanID)
	t.mu.Unlock()
	return nil
}

func (t *Transport) onSocketLost(s Socket, cause error) {
	t.mu.RLock()
	current := t.socket == s
	clanID := t.clanID
	t.mu.RUnlock()

	if !current {
		t.log.Debug("transport.socket.lost.stale", "socket_id", s.ID())
		return
	}
	t.log.Warn("transport.socket.lost", "socket_id", s.ID(), "err", cause)
	if !t.autoReconnect {
		return
	}

	go func() {
		res, err := t.Reconnect(t.baseCtx, clanID)
		if err != nil {
			t.log.Error("transport.reconnect.auto.fail", "err", err)
			return
		}
		t.log.Info("transport.reconnect.auto.done", "outcome", res.Outcome.String())
	}()
}
