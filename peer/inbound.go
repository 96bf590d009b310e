package peer

import (
	"sort"
	"time"

	g "github.com/anacrolix/generics"
	"github.com/anacrolix/sync"
	"github.com/pkg/errors"
)

// inboundState is the lifecycle of a file we are receiving.
type inboundState string

const (
	inboundReceiving inboundState = "receiving"
	inboundDone      inboundState = "done"
	inboundCancelled inboundState = "cancelled"
	inboundError     inboundState = "error"
)

// inboundTransfer tracks a file we are receiving, per SPEC_FULL.md §3.
// expectedTotal is unknown (Ok == false) until the terminal chunk
// (file_done) arrives.
type inboundTransfer struct {
	mu sync.Mutex

	nonce           string
	logicalFilename string
	expectedDigest  string
	expectedTotal   g.Option[int]

	chunks       map[int][]byte
	receivedSeqs map[int]struct{}

	state        inboundState
	lastActivity time.Time
	lastErr      error
}

func newInboundTransfer(nonce, filename, digest string) *inboundTransfer {
	return &inboundTransfer{
		nonce:           nonce,
		logicalFilename: filename,
		expectedDigest:  digest,
		chunks:          make(map[int][]byte),
		receivedSeqs:    make(map[int]struct{}),
		state:           inboundReceiving,
		lastActivity:    time.Now(),
	}
}

// storeChunk records seq's bytes. If isLast, expectedTotal becomes known.
// Returns false if the transfer is no longer receiving (e.g. already
// cancelled), in which case the caller should not reply.
func (t *inboundTransfer) storeChunk(seq int, data []byte, isLast bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != inboundReceiving {
		return false
	}
	t.chunks[seq] = data
	t.receivedSeqs[seq] = struct{}{}
	t.lastActivity = time.Now()
	if isLast {
		t.expectedTotal = g.Some(seq + 1)
	}
	return true
}

// isComplete reports |received_seqs| = expected_total, per the spec's
// completion invariant.
func (t *inboundTransfer) isComplete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isCompleteLocked()
}

func (t *inboundTransfer) isCompleteLocked() bool {
	return t.expectedTotal.Ok && len(t.receivedSeqs) == t.expectedTotal.Value
}

// missingSeqs returns the sorted seqs in [0, expectedTotal) not yet
// received. Only meaningful once expectedTotal is known.
func (t *inboundTransfer) missingSeqs() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.expectedTotal.Ok {
		return nil
	}
	var missing []int
	for s := 0; s < t.expectedTotal.Value; s++ {
		if _, ok := t.receivedSeqs[s]; !ok {
			missing = append(missing, s)
		}
	}
	return missing
}

// receivedSeqList returns the sorted seqs received so far, used to send
// selective file_ack on a terminal chunk with gaps.
func (t *inboundTransfer) receivedSeqList() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]int, 0, len(t.receivedSeqs))
	for s := range t.receivedSeqs {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

// assemble concatenates chunks in seq order and verifies the digest. On
// mismatch it transitions to error and returns an error; it never
// returns bytes for a transfer whose digest doesn't match.
func (t *inboundTransfer) assemble() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.isCompleteLocked() {
		return nil, errors.New("transfer incomplete")
	}
	buf := make([]byte, 0)
	for s := 0; s < t.expectedTotal.Value; s++ {
		buf = append(buf, t.chunks[s]...)
	}
	if DigestHex(buf) != t.expectedDigest {
		t.state = inboundError
		t.lastErr = errors.New("digest mismatch")
		return nil, t.lastErr
	}
	t.state = inboundDone
	return buf, nil
}

func (t *inboundTransfer) cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == inboundReceiving {
		t.state = inboundCancelled
	}
}

func (t *inboundTransfer) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = inboundError
	t.lastErr = err
}

func (t *inboundTransfer) snapshot() (inboundState, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state, t.lastActivity
}
