package peer

import (
	"time"

	"github.com/anacrolix/sync"
)

// outboundState is the lifecycle of a file we are sending.
type outboundState string

const (
	outboundSending   outboundState = "sending"
	outboundFinished  outboundState = "finished"
	outboundCancelled outboundState = "cancelled"
	outboundError     outboundState = "error"
)

// retransmitTimeout and maxRetries bound per-chunk retransmission, per
// SPEC_FULL.md §4.3.4.
const (
	retransmitTimeout = time.Second
	maxRetries        = 6
)

// outboundTransfer tracks a file we are sending. The protocol is strict
// stop-and-wait: base is the lowest unacked seq, and only the chunk at
// base is ever outstanding.
type outboundTransfer struct {
	mu sync.Mutex

	nonce           string
	logicalFilepath string
	expectedDigest  string
	chunks          [][]byte
	totalChunks     int

	ackedSeqs map[int]struct{}
	base      int
	lastSent  map[int]time.Time
	retries   map[int]int

	state outboundState
}

func newOutboundTransfer(nonce, logicalFilepath string, data []byte, chunkSize int) *outboundTransfer {
	chunks := splitChunks(data, chunkSize)
	return &outboundTransfer{
		nonce:           nonce,
		logicalFilepath: logicalFilepath,
		expectedDigest:  DigestHex(data),
		chunks:          chunks,
		totalChunks:     len(chunks),
		ackedSeqs:       make(map[int]struct{}),
		base:            0,
		lastSent:        make(map[int]time.Time),
		retries:         make(map[int]int),
		state:           outboundSending,
	}
}

// firstChunk returns chunk 0 and whether it is the only chunk, for the
// initial file_response.
func (t *outboundTransfer) firstChunk() (data []byte, singleChunk bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSent[0] = time.Now()
	return t.chunks[0], t.totalChunks == 1
}

// ack marks seq acknowledged and advances base to the lowest unacked
// seq, per the invariant base = min{s ∉ acked_seqs}.
func (t *outboundTransfer) ack(seq int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if seq < 0 || seq >= t.totalChunks {
		return
	}
	t.ackedSeqs[seq] = struct{}{}
	for t.base < t.totalChunks {
		if _, ok := t.ackedSeqs[t.base]; !ok {
			break
		}
		t.base++
	}
	if t.base >= t.totalChunks {
		t.state = outboundFinished
	}
}

// nextChunk returns the chunk at base to send next (the only chunk that
// may legally be outstanding), along with whether it is the last chunk
// and whether there is anything left to send at all.
func (t *outboundTransfer) nextChunk() (seq int, data []byte, isLast bool, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.base >= t.totalChunks {
		return 0, nil, false, false
	}
	seq = t.base
	data = t.chunks[seq]
	isLast = seq == t.totalChunks-1
	t.lastSent[seq] = time.Now()
	return seq, data, isLast, true
}

// dueForRetransmit reports whether the current base chunk is eligible
// for retransmission: it is the unacked chunk, its last send is older
// than retransmitTimeout, and its retry count is under maxRetries.
// Exceeding maxRetries transitions the transfer to error.
func (t *outboundTransfer) dueForRetransmit(now time.Time) (seq int, data []byte, isLast bool, due bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.base >= t.totalChunks || t.state != outboundSending {
		return 0, nil, false, false
	}
	seq = t.base
	sent, ok := t.lastSent[seq]
	if !ok || now.Sub(sent) < retransmitTimeout {
		return 0, nil, false, false
	}
	if t.retries[seq] >= maxRetries {
		t.state = outboundError
		return 0, nil, false, false
	}
	t.retries[seq]++
	t.lastSent[seq] = now
	return seq, t.chunks[seq], seq == t.totalChunks-1, true
}

func (t *outboundTransfer) cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == outboundSending {
		t.state = outboundCancelled
	}
}

func (t *outboundTransfer) snapshot() outboundState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
