package peer

import (
	"context"
	"net"
	"time"

	"github.com/anacrolix/log"
	"github.com/pkg/errors"
)

// Register sends a register message to rendezvous and blocks until
// your_addr comes back or registrationTimeout elapses, per §4.3.1/§5.
func (e *Endpoint) Register() error {
	ch := make(chan *net.UDPAddr, 1)
	e.yourAddrMu.Lock()
	e.yourAddrCh = ch
	e.yourAddrMu.Unlock()

	e.send(e.rendezvousAddr, encodeRendezvousMessage(rendezvousOutbound{Type: rendezvousTypeRegister}))

	select {
	case addr := <-ch:
		e.logger.Levelf(log.Info, "registered with rendezvous; observed address %v", addr)
		return nil
	case <-time.After(registrationTimeout):
		return errors.New("rendezvous registration timed out")
	}
}

// Connect asks rendezvous to introduce this endpoint to targetIP. The
// resulting peer session assignment, if any, arrives asynchronously as a
// "peer" message and is applied by handleRendezvousDatagram.
func (e *Endpoint) Connect(targetIP string) {
	e.send(e.rendezvousAddr, encodeRendezvousMessage(rendezvousOutbound{
		Type:     rendezvousTypeConnect,
		TargetIP: targetIP,
	}))
}

// handleRendezvousDatagram processes a datagram received from the
// rendezvous address, per §4.3.1 and §4.3.3.
func (e *Endpoint) handleRendezvousDatagram(b []byte) {
	msg, ok := decodeRendezvousMessage(b)
	if !ok {
		return
	}
	switch msg.Type {
	case "your_addr":
		addr, err := parseAddrPair(msg.YourAddr)
		if err != nil {
			return
		}
		e.yourAddrMu.Lock()
		ch := e.yourAddrCh
		e.yourAddrCh = nil
		e.yourAddrMu.Unlock()
		if ch != nil {
			select {
			case ch <- addr:
			default:
			}
		}
	case "peer":
		addr, err := parseAddrPair(msg.Peer)
		if err != nil {
			return
		}
		prev := e.session.set(addr, directionOutgoing)
		if prev == nil || !udpAddrEqual(prev, addr) {
			e.logger.Levelf(log.Info, "peer session assigned: %v", addr)
		}
	case "error":
		e.logger.Levelf(log.Debug, "rendezvous error: %s", msg.Error)
	}
}

// connectPollInterval is how often awaitPeer checks whether rendezvous
// has assigned the requested peer session yet.
const connectPollInterval = 20 * time.Millisecond

// awaitPeer blocks until the current peer session's address has ip, or
// registrationTimeout/ctx elapses. Used by Driver to turn Connect's
// asynchronous "peer" assignment into a synchronous wait.
func (e *Endpoint) awaitPeer(ctx context.Context, ip string) error {
	deadline := time.Now().Add(registrationTimeout)
	for time.Now().Before(deadline) {
		if addr, punching := e.session.current(); punching && addr != nil && addr.IP.String() == ip {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(connectPollInterval):
		}
	}
	return errors.Errorf("rendezvous introduction to %s timed out", ip)
}
