package peer

import "time"

// keepaliveLoop sends a punch datagram and a one-byte NAT-pinhole
// maintenance packet every keepaliveInterval while a peer session is
// active, per §4.3.2. Ticks that find no peer set send nothing (the loop
// does not spin), so punching resumes at the first tick after a peer is
// assigned.
func (e *Endpoint) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.closed.Done():
			return
		case <-ticker.C:
			e.punchOnce()
		}
	}
}

func (e *Endpoint) punchOnce() {
	addr, punching := e.session.current()
	if !punching || addr == nil {
		return
	}
	e.send(addr, punchMessage().encode())
	e.send(addr, []byte{0})
}
