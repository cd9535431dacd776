package node

import (
	"net/netip"
	"slices"
	"sync"

	"github.com/ethpandaops/levin/pkg/protocol"
)

// AddressBook holds peer addresses learned from handshakes and timed syncs.
// When full, the entry seen longest ago makes room for a new one.
type AddressBook struct {
	mu       sync.RWMutex
	capacity int
	entries  map[netip.AddrPort]protocol.PeerListEntry
}

// NewAddressBook creates an AddressBook holding at most capacity entries.
func NewAddressBook(capacity int) *AddressBook {
	return &AddressBook{
		capacity: capacity,
		entries:  make(map[netip.AddrPort]protocol.PeerListEntry),
	}
}

// Add merges entries into the book and returns how many were new. Entries
// without a usable address are ignored. A known address keeps the most
// recent last_seen.
func (b *AddressBook) Add(entries ...protocol.PeerListEntry) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	added := 0

	for _, e := range entries {
		key := e.Address.AddrPort
		if !key.IsValid() || key.Port() == 0 {
			continue
		}

		if existing, ok := b.entries[key]; ok {
			if e.LastSeen < existing.LastSeen {
				e.LastSeen = existing.LastSeen
			}

			b.entries[key] = e

			continue
		}

		if len(b.entries) >= b.capacity {
			b.evictOldest()
		}

		b.entries[key] = e
		added++
	}

	return added
}

func (b *AddressBook) evictOldest() {
	var (
		oldest netip.AddrPort
		seen   int64
		found  bool
	)

	for key, e := range b.entries {
		if !found || e.LastSeen < seen {
			oldest, seen, found = key, e.LastSeen, true
		}
	}

	if found {
		delete(b.entries, oldest)
	}
}

// Get returns the entry for addr.
func (b *AddressBook) Get(addr netip.AddrPort) (protocol.PeerListEntry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.entries[addr]

	return e, ok
}

// Remove forgets addr.
func (b *AddressBook) Remove(addr netip.AddrPort) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.entries, addr)
}

// Len returns the number of entries.
func (b *AddressBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.entries)
}

// Sample returns up to n entries, most recently seen first.
func (b *AddressBook) Sample(n int) []protocol.PeerListEntry {
	out := b.Entries()

	slices.SortFunc(out, func(a, c protocol.PeerListEntry) int {
		switch {
		case a.LastSeen > c.LastSeen:
			return -1
		case a.LastSeen < c.LastSeen:
			return 1
		default:
			return a.Address.AddrPort.Compare(c.Address.AddrPort)
		}
	})

	if len(out) > n {
		out = out[:n]
	}

	return out
}

// Entries returns every entry in no particular order.
func (b *AddressBook) Entries() []protocol.PeerListEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]protocol.PeerListEntry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e)
	}

	return out
}
