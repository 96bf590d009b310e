package peer

import (
	"net"
	"time"

	"github.com/anacrolix/chansync"
	"github.com/anacrolix/log"
	"github.com/anacrolix/sync"

	"github.com/EDiasAlberto/peerbrowser/internal/storage"
)

// registrationTimeout bounds how long Register waits for your_addr
// before giving up, per §5.
const registrationTimeout = 10 * time.Second

// keepaliveInterval is how often the punch task sends a keepalive while
// a peer session is active, per §4.3.2.
const keepaliveInterval = 10 * time.Second

// receiveTimeout is the short socket read timeout the receive task uses
// to observe the stop signal without relying on socket-close races.
const receiveTimeout = time.Second

// Config configures an Endpoint.
type Config struct {
	RendezvousAddr string
	ChunkSize      int
	Logger         log.Logger
	Storage        storage.Source // serves files this endpoint holds
	Sink           storage.Sink   // writes files this endpoint fetches
}

// Endpoint is the per-peer state machine described in SPEC_FULL.md §4.3:
// it owns one UDP socket, registers with rendezvous, punches through
// NATs, and drives reliable chunked transfer. Construct with NewEndpoint,
// then Start.
type Endpoint struct {
	conn           *net.UDPConn
	rendezvousAddr *net.UDPAddr
	logger         log.Logger
	chunkSize      int
	storageSrc     storage.Source
	sink           storage.Sink

	session   *peerSession
	transfers *transferTables

	closed chansync.SetOnce

	yourAddrMu sync.Mutex
	yourAddrCh chan *net.UDPAddr // set by Register, consumed once

	fetchMu sync.Mutex
	fetches map[string]chan fetchOutcome // nonce -> waiter, requester side
}

// fetchOutcome is delivered to a Fetch caller when its inbound transfer
// reaches a terminal state.
type fetchOutcome struct {
	data []byte
	err  error
}

// NewEndpoint resolves cfg.RendezvousAddr, binds an ephemeral local UDP
// socket, and returns an Endpoint ready for Start.
func NewEndpoint(cfg Config) (*Endpoint, error) {
	rAddr, err := net.ResolveUDPAddr("udp4", cfg.RendezvousAddr)
	if err != nil {
		return nil, err
	}
	conn, err := listenUDP()
	if err != nil {
		return nil, err
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Endpoint{
		conn:           conn,
		rendezvousAddr: rAddr,
		logger:         cfg.Logger,
		chunkSize:      chunkSize,
		storageSrc:     cfg.Storage,
		sink:           cfg.Sink,
		session:        &peerSession{},
		transfers:      newTransferTables(),
		fetches:        make(map[string]chan fetchOutcome),
	}, nil
}

// LocalAddr returns the bound local address.
func (e *Endpoint) LocalAddr() net.Addr {
	return e.conn.LocalAddr()
}

// Storage returns the storage.Source this endpoint serves file_requests
// from. A Driver publishing on this endpoint's behalf must register
// assets read through this same source, so what it advertises to the
// tracker is exactly what handleFileRequest can later serve.
func (e *Endpoint) Storage() storage.Source {
	return e.storageSrc
}

// Start launches the receive, keepalive, retransmit and transfer-GC
// tasks. The caller remains the
// "supervisor/initiator context" that drives fetches/publishes, per §5.
func (e *Endpoint) Start() {
	go e.receiveLoop()
	go e.keepaliveLoop()
	go e.retransmitLoop()
	go e.gcLoop()
}

// Stop signals the tasks started by Start to exit (the receive task at
// its next read timeout) and releases the socket.
func (e *Endpoint) Stop() error {
	e.closed.Set()
	return e.conn.Close()
}

func (e *Endpoint) send(addr *net.UDPAddr, b []byte) {
	if _, err := e.conn.WriteToUDP(b, addr); err != nil {
		e.logger.Levelf(log.Debug, "sendto %v: %v", addr, err)
	}
}

func (e *Endpoint) gcLoop() {
	ticker := time.NewTicker(transferStaleThreshold / 2)
	defer ticker.Stop()
	for {
		select {
		case <-e.closed.Done():
			return
		case <-ticker.C:
			e.transfers.gcStale()
		}
	}
}
