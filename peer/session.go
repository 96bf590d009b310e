package peer

import (
	"net"

	"github.com/anacrolix/sync"
)

// connDirection records which side initiated the peer session, mostly
// useful for logging/status.
type connDirection string

const (
	directionOutgoing connDirection = "outgoing"
	directionIncoming connDirection = "incoming"
)

// peerSession is the per-peer state at an endpoint described in
// SPEC_FULL.md §3: at most one active session at a time, by design. A
// new assignment (a fresh "peer" message from rendezvous) replaces
// whatever was there.
type peerSession struct {
	mu           sync.Mutex
	remoteAddr   *net.UDPAddr
	punchEnabled bool
	direction    connDirection
}

// set installs addr as the current peer, enabling punch and returning
// the previous session, if any, for logging.
func (s *peerSession) set(addr *net.UDPAddr, dir connDirection) (prev *net.UDPAddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.remoteAddr
	s.remoteAddr = addr
	s.punchEnabled = true
	s.direction = dir
	return
}

// clear removes the current peer (on disconnect) and disables punch.
func (s *peerSession) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remoteAddr = nil
	s.punchEnabled = false
}

// current copies out the active remote address and whether punch is
// currently enabled. Callers must release the lock (this returns a
// copy) before doing any network I/O, per the concurrency model.
func (s *peerSession) current() (addr *net.UDPAddr, punching bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteAddr, s.punchEnabled
}

// isCurrentPeer reports whether addr matches the active session's
// remote address, used by the receive task to route inbound datagrams.
func (s *peerSession) isCurrentPeer(addr *net.UDPAddr) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteAddr != nil && udpAddrEqual(s.remoteAddr, addr)
}

func udpAddrEqual(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.IP.Equal(b.IP) && a.Port == b.Port
}
