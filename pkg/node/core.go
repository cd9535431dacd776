package node

import (
	"context"
	"sync"

	"github.com/ethpandaops/levin/pkg/protocol"
)

// CoreSyncProvider supplies the local chain state sent in handshakes and
// timed syncs.
type CoreSyncProvider interface {
	CoreSyncData(ctx context.Context) (protocol.CoreSyncData, error)
}

// StaticCoreSync is a CoreSyncProvider returning whatever was last set.
type StaticCoreSync struct {
	mu   sync.RWMutex
	data protocol.CoreSyncData
}

// NewStaticCoreSync creates a StaticCoreSync starting at data.
func NewStaticCoreSync(data protocol.CoreSyncData) *StaticCoreSync {
	return &StaticCoreSync{data: data}
}

// CoreSyncData implements CoreSyncProvider.
func (s *StaticCoreSync) CoreSyncData(_ context.Context) (protocol.CoreSyncData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.data, nil
}

// Set replaces the advertised chain state.
func (s *StaticCoreSync) Set(data protocol.CoreSyncData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = data
}
