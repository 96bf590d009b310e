// Package rendezvous implements the UDP matchmaking service: peers
// register their observed address and ask to be introduced to another
// registered peer so both sides can begin hole punching.
package rendezvous

import (
	"encoding/json"
	"net"
	"net/netip"
	"time"

	"github.com/anacrolix/chansync"
	"github.com/anacrolix/log"
)

// Server is a single UDP listener plus the registry it mediates. The
// zero value is not usable; construct with NewServer.
type Server struct {
	conn     *net.UDPConn
	registry *registry
	logger   log.Logger
	closed   chansync.SetOnce
}

// NewServer binds a UDP socket at addr (e.g. "0.0.0.0:3478") and returns
// a Server ready for Serve.
func NewServer(addr string, logger log.Logger) (*Server, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return nil, err
	}
	return &Server{
		conn:     conn,
		registry: newRegistry(),
		logger:   logger,
	}, nil
}

// Addr returns the bound local address.
func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Close stops Serve and releases the socket.
func (s *Server) Close() error {
	s.closed.Set()
	return s.conn.Close()
}

// Serve reads datagrams until Close is called, dispatching each to a
// worker goroutine for decode-and-handle. Registry mutations inside the
// handler are serialized by the registry's own lock, so dispatching
// decode work in parallel is safe.
func (s *Server) Serve() error {
	go s.sweepLoop()
	buf := make([]byte, 2048)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if s.closed.IsSet() {
				return nil
			}
			s.logger.Levelf(log.Warning, "reading datagram: %v", err)
			continue
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		go s.handleDatagram(pkt, addr)
	}
}

func (s *Server) handleDatagram(pkt []byte, addr *net.UDPAddr) {
	var msg inbound
	if err := json.Unmarshal(pkt, &msg); err != nil {
		// Malformed datagrams are silently dropped, per protocol.
		return
	}
	observed, ok := netip.AddrFromSlice(addr.IP.To4())
	if !ok {
		return
	}
	observedPort := netip.AddrPortFrom(observed, uint16(addr.Port))

	switch msg.Type {
	case TypeRegister:
		s.handleRegister(observedPort, addr)
	case TypeConnect:
		s.handleConnect(msg, observedPort, addr)
	default:
		s.reply(addr, errorMessage{Type: TypeError, Error: "unknown message type"})
	}
}

func (s *Server) handleRegister(observed netip.AddrPort, addr *net.UDPAddr) {
	s.registry.touch(observed)
	s.reply(addr, yourAddrMessage{
		Type:     TypeYourAddr,
		YourAddr: newAddrPair(observed.Addr().String(), int(observed.Port())),
	})
}

func (s *Server) handleConnect(msg inbound, requester netip.AddrPort, addr *net.UDPAddr) {
	// A connect also refreshes the requester's own entry: it necessarily
	// has an established mapping if it can send us a datagram.
	s.registry.touch(requester)

	targetIP, err := netip.ParseAddr(msg.TargetIP)
	if err != nil {
		s.reply(addr, errorMessage{Type: TypeError, Error: "invalid target_ip"})
		return
	}
	target, ok := s.registry.lookup(targetIP)
	if !ok {
		s.reply(addr, errorMessage{Type: TypeError, Error: "target not found"})
		return
	}

	s.reply(addr, peerMessage{
		Type: TypePeer,
		Peer: newAddrPair(target.observed.Addr().String(), int(target.observed.Port())),
	})
	targetUDPAddr := net.UDPAddrFromAddrPort(target.observed)
	s.reply(targetUDPAddr, peerMessage{
		Type: TypePeer,
		Peer: newAddrPair(requester.Addr().String(), int(requester.Port())),
	})
}

func (s *Server) reply(addr *net.UDPAddr, msg any) {
	if _, err := s.conn.WriteToUDP(encode(msg), addr); err != nil {
		s.logger.Levelf(log.Debug, "sendto %v: %v", addr, err)
	}
}

func (s *Server) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.closed.Done():
			return
		case <-ticker.C:
			n := s.registry.reapStale()
			if n > 0 {
				s.logger.Levelf(log.Debug, "reaped %d stale registrations", n)
			}
		}
	}
}
