package peer

import (
	"net"
	"time"

	"github.com/anacrolix/log"
)

// receiveLoop is the only reader of the socket, per §5. It blocks with a
// short timeout so it can observe the stop flag without relying on a
// socket-close race, and routes each datagram by source address.
func (e *Endpoint) receiveLoop() {
	buf := make([]byte, 2048)
	for {
		if e.closed.IsSet() {
			return
		}
		e.conn.SetReadDeadline(time.Now().Add(receiveTimeout))
		n, addr, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if e.closed.IsSet() {
				return
			}
			e.logger.Levelf(log.Debug, "reading datagram: %v", err)
			continue
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		e.dispatch(pkt, addr)
	}
}

func (e *Endpoint) dispatch(pkt []byte, addr *net.UDPAddr) {
	switch {
	case udpAddrEqual(addr, e.rendezvousAddr):
		e.handleRendezvousDatagram(pkt)
	case e.session.isCurrentPeer(addr):
		if len(pkt) == 1 {
			// The bare zero byte used for NAT-pinhole maintenance; ignored
			// on receipt, per §4.3.2.
			return
		}
		msg, ok := decodeMessage(pkt)
		if !ok {
			return
		}
		e.handlePeerMessage(addr, msg)
	default:
		// Other sources are dropped, per §4.3.3.
	}
}
