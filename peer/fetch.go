package peer

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// errMissingChunks is the terminal error for an inbound transfer whose
// terminal chunk arrived with gaps that the holder never filled, per
// Open Question 2.
var errMissingChunks = errors.New("missing chunks after terminal chunk")

// fetchTimeout bounds how long Fetch waits for a transfer to reach a
// terminal state: long enough for the holder side to exhaust its own
// retransmit budget on one chunk, plus registrationTimeout of slack for
// the request and final ack to land. The budget restarts for each chunk,
// so a transfer that needs retransmits on many chunks can outlast it.
const fetchTimeout = retransmitTimeout*time.Duration(maxRetries+2) + registrationTimeout

// Fetch issues a file_request for logicalPath against the currently
// assigned peer session and blocks until the resulting inbound transfer
// reaches a terminal state or ctx/fetchTimeout expires.
func (e *Endpoint) Fetch(ctx context.Context, logicalPath string) ([]byte, error) {
	addr, punching := e.session.current()
	if addr == nil || !punching {
		return nil, errors.New("no peer session assigned")
	}

	nonce := newNonce()
	ch := make(chan fetchOutcome, 1)
	e.fetchMu.Lock()
	e.fetches[nonce] = ch
	e.fetchMu.Unlock()
	defer func() {
		e.fetchMu.Lock()
		delete(e.fetches, nonce)
		e.fetchMu.Unlock()
	}()

	e.send(addr, fileRequestMessage(nonce, logicalPath).encode())

	timer := time.NewTimer(fetchTimeout)
	defer timer.Stop()
	select {
	case out := <-ch:
		return out.data, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, errors.Errorf("fetch of %q timed out", logicalPath)
	}
}

// completeFetch delivers a successful assembly to the Fetch caller
// waiting on nonce, if any.
func (e *Endpoint) completeFetch(nonce string, data []byte) {
	e.deliverFetch(nonce, fetchOutcome{data: data})
}

// failFetch delivers a terminal error to the Fetch caller waiting on
// nonce, if any.
func (e *Endpoint) failFetch(nonce string, err error) {
	e.deliverFetch(nonce, fetchOutcome{err: err})
}

func (e *Endpoint) deliverFetch(nonce string, out fetchOutcome) {
	e.fetchMu.Lock()
	ch, ok := e.fetches[nonce]
	e.fetchMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- out:
	default:
	}
}

// Disconnect ends the current peer session: the remote side is told via
// a disconnect datagram, punch is suspended, and any transfers still
// open against this session are marked cancelled, per §4.3.4.
func (e *Endpoint) Disconnect() {
	addr, _ := e.session.current()
	if addr != nil {
		e.send(addr, disconnectMessage().encode())
	}
	e.session.clear()
	e.transfers.cancelAll()
}
