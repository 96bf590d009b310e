package peer

import (
	"net"
	"time"

	"github.com/anacrolix/log"

	"github.com/EDiasAlberto/peerbrowser/internal/storage"
)

// handlePeerMessage dispatches a decoded datagram from the current peer
// session by its type, per the transfer table in SPEC_FULL.md §4.3.4.
func (e *Endpoint) handlePeerMessage(addr *net.UDPAddr, msg wireMessage) {
	switch msg.Type {
	case TypeFileRequest:
		e.handleFileRequest(addr, msg)
	case TypeFileResponse:
		e.handleFileResponse(addr, msg)
	case TypeFileAck:
		e.handleFileAck(addr, msg)
	case TypeFileChunk:
		e.handleFileChunk(addr, msg, false)
	case TypeFileDone:
		e.handleFileChunk(addr, msg, true)
	case TypeFileComplete:
		e.handleFileComplete(msg)
	case TypeDisconnect:
		e.handleDisconnectMsg()
	case TypePunch:
		// Keepalive only; nothing to do beyond having refreshed the NAT
		// pinhole by virtue of receiving it.
	}
}

// handleFileRequest is the holder side of file_request: open an
// outbound transfer and reply with chunk 0.
func (e *Endpoint) handleFileRequest(addr *net.UDPAddr, msg wireMessage) {
	if e.storageSrc == nil {
		return
	}
	data, err := storage.ReadAll(e.storageSrc, msg.FilePath)
	if err != nil {
		e.logger.Levelf(log.Debug, "file_request for %q: %v", msg.FilePath, err)
		return
	}
	tr := newOutboundTransfer(msg.Nonce, msg.FilePath, data, e.chunkSize)
	e.transfers.putOutbound(tr)
	chunk0, single := tr.firstChunk()
	e.send(addr, fileResponseMessage(msg.Nonce, msg.FilePath, tr.expectedDigest, toHex(chunk0), single).encode())
}

// handleFileResponse is the requester side: open an inbound transfer,
// store chunk 0, and ack it.
func (e *Endpoint) handleFileResponse(addr *net.UDPAddr, msg wireMessage) {
	chunkBytes, err := fromHex(msg.Chunk)
	if err != nil {
		return
	}
	tr := newInboundTransfer(msg.Nonce, msg.Filename, msg.Hash)
	e.transfers.putInbound(tr)
	if !tr.storeChunk(0, chunkBytes, msg.SingleChunk) {
		return
	}
	e.send(addr, fileAckMessage(msg.Nonce, 0).encode())
	if msg.SingleChunk {
		e.finishInboundIfComplete(addr, tr)
	}
}

// handleFileAck is the holder side: advance base, send the next chunk
// (or nothing further if nothing remains unacked until file_complete).
func (e *Endpoint) handleFileAck(addr *net.UDPAddr, msg wireMessage) {
	tr, ok := e.transfers.getOutbound(msg.Nonce)
	if !ok {
		return
	}
	tr.ack(msg.Seq)
	if tr.snapshot() != outboundSending {
		return
	}
	seq, data, isLast, ok := tr.nextChunk()
	if !ok {
		return
	}
	e.send(addr, fileChunkMessage(msg.Nonce, seq, toHex(data), isLast).encode())
}

// handleFileChunk is the requester side of file_chunk/file_done: store
// the chunk and ack it. The terminal chunk, or a retransmitted chunk that
// fills the last gap after the terminal chunk, then triggers assembly.
func (e *Endpoint) handleFileChunk(addr *net.UDPAddr, msg wireMessage, isLast bool) {
	tr, ok := e.transfers.getInbound(msg.Nonce)
	if !ok {
		return
	}
	dataBytes, err := fromHex(msg.Data)
	if err != nil {
		return
	}
	if !tr.storeChunk(msg.Seq, dataBytes, isLast) {
		return
	}
	e.send(addr, fileAckMessage(msg.Nonce, msg.Seq).encode())
	if isLast || tr.isComplete() {
		e.finishInboundIfComplete(addr, tr)
	}
}

// handleFileComplete is the holder side: the requester is done with us,
// drop our bookkeeping for the transfer.
func (e *Endpoint) handleFileComplete(msg wireMessage) {
	e.transfers.removeOutbound(msg.Nonce)
}

func (e *Endpoint) handleDisconnectMsg() {
	e.session.clear()
	e.transfers.cancelAll()
}

// finishInboundIfComplete runs the assembly-and-verification step from
// §4.3.4 once the terminal chunk has arrived. If chunks are missing it
// sends selective acks for what was received and gives the holder one
// retransmit window to fill the gap before failing the transfer — this
// resolves Open Question 2.
func (e *Endpoint) finishInboundIfComplete(addr *net.UDPAddr, tr *inboundTransfer) {
	if !tr.isComplete() {
		for _, seq := range tr.receivedSeqList() {
			e.send(addr, fileAckMessage(tr.nonce, seq).encode())
		}
		time.AfterFunc(retransmitTimeout, func() {
			if tr.isComplete() {
				return
			}
			if _, ok := e.transfers.getInbound(tr.nonce); !ok {
				return
			}
			tr.fail(errMissingChunks)
			e.transfers.removeInbound(tr.nonce)
			e.failFetch(tr.nonce, errMissingChunks)
		})
		return
	}

	data, err := tr.assemble()
	if err != nil {
		e.transfers.removeInbound(tr.nonce)
		e.failFetch(tr.nonce, err)
		return
	}
	if e.sink != nil {
		if err := e.sink.Write(tr.logicalFilename, data); err != nil {
			tr.fail(err)
			e.transfers.removeInbound(tr.nonce)
			e.failFetch(tr.nonce, err)
			return
		}
	}
	// write-then-ack: file_complete only after the durable write, per
	// Open Question 3.
	e.send(addr, fileCompleteMessage(tr.nonce).encode())
	e.transfers.removeInbound(tr.nonce)
	e.completeFetch(tr.nonce, data)
}
