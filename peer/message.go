// Package peer implements the per-peer endpoint: the UDP socket owner
// that registers with rendezvous, punches through NATs, and drives
// reliable chunked file transfer atop unreliable datagrams.
package peer

import "encoding/json"

// Message kinds exchanged between the local endpoint and its rendezvous
// peer. Every message carries a Type; transfer messages also carry the
// Nonce that demultiplexes concurrent transfers over the one active
// peer session.
const (
	TypePunch        = "punch"
	TypeDisconnect   = "disconnect"
	TypeFileRequest  = "file_request"
	TypeFileResponse = "file_response"
	TypeFileAck      = "file_ack"
	TypeFileChunk    = "file_chunk"
	TypeFileDone     = "file_done"
	TypeFileComplete = "file_complete"
)

// wireMessage is the superset of fields used across all message kinds.
// Decoding into this struct first and branching on Type mirrors the
// "JSON-tagged message union" pattern: unrecognized or malformed
// datagrams are dropped rather than causing a panic.
type wireMessage struct {
	Type  string `json:"type"`
	Nonce string `json:"nonce,omitempty"`

	FilePath    string `json:"filepath,omitempty"`
	Hash        string `json:"hash,omitempty"`
	Chunk       string `json:"chunk,omitempty"`
	Filename    string `json:"filename,omitempty"`
	SingleChunk bool   `json:"single_chunk,omitempty"`
	Seq         int    `json:"seq,omitempty"`
	Data        string `json:"data,omitempty"`
	IsLast      bool   `json:"is_last,omitempty"`
}

func decodeMessage(b []byte) (wireMessage, bool) {
	var m wireMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return wireMessage{}, false
	}
	if m.Type == "" {
		return wireMessage{}, false
	}
	return m, true
}

func (m wireMessage) encode() []byte {
	b, err := json.Marshal(m)
	if err != nil {
		// Every field above is a plain string/int/bool; marshaling cannot
		// fail short of a programming error.
		panic(err)
	}
	return b
}

func fileRequestMessage(nonce, filepath string) wireMessage {
	return wireMessage{Type: TypeFileRequest, Nonce: nonce, FilePath: filepath}
}

func fileResponseMessage(nonce, filename, hash, chunkHex string, singleChunk bool) wireMessage {
	return wireMessage{
		Type:        TypeFileResponse,
		Nonce:       nonce,
		Filename:    filename,
		Hash:        hash,
		Chunk:       chunkHex,
		SingleChunk: singleChunk,
	}
}

func fileAckMessage(nonce string, seq int) wireMessage {
	return wireMessage{Type: TypeFileAck, Nonce: nonce, Seq: seq}
}

func fileChunkMessage(nonce string, seq int, dataHex string, isLast bool) wireMessage {
	typ := TypeFileChunk
	if isLast {
		typ = TypeFileDone
	}
	return wireMessage{Type: typ, Nonce: nonce, Seq: seq, Data: dataHex, IsLast: isLast}
}

func fileCompleteMessage(nonce string) wireMessage {
	return wireMessage{Type: TypeFileComplete, Nonce: nonce}
}

func punchMessage() wireMessage {
	return wireMessage{Type: TypePunch}
}

func disconnectMessage() wireMessage {
	return wireMessage{Type: TypeDisconnect}
}
