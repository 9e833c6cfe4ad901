// Package netstatus reports host network connectivity to the reconnection engine.
package netstatus

import (
	"context"
	"sync"
)

// Monitor reports whether the host currently has network connectivity.
type Monitor interface {
	Online() bool
	// WaitOnline blocks until the host is online or ctx is done.
	WaitOnline(ctx context.Context) error
}

// Manual is a Monitor driven by the embedding application.
type Manual struct {
	mu     sync.Mutex
	online bool
	// wake is closed and replaced on every offline->online transition.
	wake chan struct{}
}

// NewManual returns a Manual monitor with the given initial state.
func NewManual(online bool) *Manual {
	return &Manual{online: online, wake: make(chan struct{})}
}

// Online implements Monitor.
func (m *Manual) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records the connectivity state and releases waiters when it turns online.
func (m *Manual) SetOnline(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if online == m.online {
		return
	}
	m.online = online
	if online {
		close(m.wake)
		m.wake = make(chan struct{})
	}
}

// WaitOnline implements Monitor.
func (m *Manual) WaitOnline(ctx context.Context) error {
	for {
		m.mu.Lock()
		online, wake := m.online, m.wake
		m.mu.Unlock()

		if online {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		}
	}
}
