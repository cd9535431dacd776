package discovery

import (
	"context"
	"errors"
	"sync"

	ma "github.com/multiformats/go-multiaddr"
)

// Manual is a NodeFinder that allows you to manually add peers to the
// discovery pool.
type Manual struct {
	mu      sync.RWMutex
	handler func(ctx context.Context, addr ma.Multiaddr) error
}

func (m *Manual) Start(ctx context.Context) error {
	return nil
}

func (m *Manual) Stop(ctx context.Context) error {
	return nil
}

func (m *Manual) OnPeer(ctx context.Context, handler func(ctx context.Context, addr ma.Multiaddr) error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handler = handler
}

func (m *Manual) AddPeer(ctx context.Context, addr ma.Multiaddr) error {
	m.mu.RLock()
	handler := m.handler
	m.mu.RUnlock()

	if handler == nil {
		return errors.New("no handler set")
	}

	return handler(ctx, addr)
}
