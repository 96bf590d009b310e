package peer

import (
	"time"

	"github.com/anacrolix/sync"
)

// transferStaleThreshold is the nominal 300s garbage-collection window
// for transfer records with no activity, per SPEC_FULL.md §5.
const transferStaleThreshold = 300 * time.Second

// transferTables owns the inbound and outbound transfer maps for an
// endpoint. One lock per table, as specified in §5; transfer-internal
// state has its own per-transfer lock (inboundTransfer.mu /
// outboundTransfer.mu).
type transferTables struct {
	inboundMu  sync.Mutex
	inbound    map[string]*inboundTransfer
	outboundMu sync.Mutex
	outbound   map[string]*outboundTransfer
}

func newTransferTables() *transferTables {
	return &transferTables{
		inbound:  make(map[string]*inboundTransfer),
		outbound: make(map[string]*outboundTransfer),
	}
}

func (t *transferTables) putInbound(tr *inboundTransfer) {
	t.inboundMu.Lock()
	defer t.inboundMu.Unlock()
	t.inbound[tr.nonce] = tr
}

func (t *transferTables) getInbound(nonce string) (*inboundTransfer, bool) {
	t.inboundMu.Lock()
	defer t.inboundMu.Unlock()
	tr, ok := t.inbound[nonce]
	return tr, ok
}

func (t *transferTables) removeInbound(nonce string) {
	t.inboundMu.Lock()
	defer t.inboundMu.Unlock()
	delete(t.inbound, nonce)
}

func (t *transferTables) putOutbound(tr *outboundTransfer) {
	t.outboundMu.Lock()
	defer t.outboundMu.Unlock()
	t.outbound[tr.nonce] = tr
}

func (t *transferTables) getOutbound(nonce string) (*outboundTransfer, bool) {
	t.outboundMu.Lock()
	defer t.outboundMu.Unlock()
	tr, ok := t.outbound[nonce]
	return tr, ok
}

func (t *transferTables) removeOutbound(nonce string) {
	t.outboundMu.Lock()
	defer t.outboundMu.Unlock()
	delete(t.outbound, nonce)
}

func (t *transferTables) allOutbound() []*outboundTransfer {
	t.outboundMu.Lock()
	defer t.outboundMu.Unlock()
	out := make([]*outboundTransfer, 0, len(t.outbound))
	for _, tr := range t.outbound {
		out = append(out, tr)
	}
	return out
}

// gcStale evicts inbound transfers idle longer than transferStaleThreshold,
// and outbound transfers that have already reached a terminal state
// (finished/cancelled/error) — those are bounded by retry exhaustion per
// §5, but still need eventual removal from the table.
func (t *transferTables) gcStale() {
	cutoff := time.Now().Add(-transferStaleThreshold)
	t.inboundMu.Lock()
	for nonce, tr := range t.inbound {
		_, lastActivity := tr.snapshot()
		if lastActivity.Before(cutoff) {
			delete(t.inbound, nonce)
		}
	}
	t.inboundMu.Unlock()

	t.outboundMu.Lock()
	for nonce, tr := range t.outbound {
		if tr.snapshot() != outboundSending {
			delete(t.outbound, nonce)
		}
	}
	t.outboundMu.Unlock()
}

func (t *transferTables) cancelAll() {
	t.inboundMu.Lock()
	for _, tr := range t.inbound {
		tr.cancel()
	}
	t.inboundMu.Unlock()

	t.outboundMu.Lock()
	for _, tr := range t.outbound {
		tr.cancel()
	}
	t.outboundMu.Unlock()
}
