package rendezvous

import (
	"net/netip"
	"time"

	"github.com/anacrolix/sync"
)

// staleThreshold is the nominal age after which a registry entry is no
// longer considered reachable and is reaped by the sweep.
const staleThreshold = 120 * time.Second

// sweepInterval is how often the background reaper walks the registry.
const sweepInterval = 30 * time.Second

// entry is a rendezvous registry entry, keyed by the source IP of the
// last registration seen from that address.
type entry struct {
	observed netip.AddrPort
	lastSeen time.Time
}

// registry tracks one entry per source IP. A re-register from a new port
// replaces the prior entry outright; there is never more than one entry
// per IP.
type registry struct {
	mu      sync.Mutex
	entries map[netip.Addr]entry
}

func newRegistry() *registry {
	return &registry{entries: make(map[netip.Addr]entry)}
}

// touch records addr as the latest observed address for its IP and
// returns the updated entry.
func (r *registry) touch(addr netip.AddrPort) entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := entry{observed: addr, lastSeen: time.Now()}
	r.entries[addr.Addr()] = e
	return e
}

// lookup returns the current entry for ip, if any.
func (r *registry) lookup(ip netip.Addr) (entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[ip]
	return e, ok
}

// reapStale removes entries whose lastSeen is older than staleThreshold
// and returns how many were removed.
func (r *registry) reapStale() int {
	cutoff := time.Now().Add(-staleThreshold)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for ip, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			delete(r.entries, ip)
			removed++
		}
	}
	return removed
}

// size reports the number of live entries. Used by tests and status logging.
func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
