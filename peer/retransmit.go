package peer

import "time"

// retransmitCheckInterval is how often the retransmit task scans
// outbound transfers for a chunk due for resend. It runs well inside
// retransmitTimeout so a due chunk is never held much past its deadline.
const retransmitCheckInterval = 200 * time.Millisecond

// retransmitLoop is the holder-side half of §4.3.4's ordering and
// retransmission rule: the chunk currently at base is resent if it has
// gone unacked past retransmitTimeout, up to maxRetries times.
func (e *Endpoint) retransmitLoop() {
	ticker := time.NewTicker(retransmitCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.closed.Done():
			return
		case <-ticker.C:
			e.retransmitDue()
		}
	}
}

func (e *Endpoint) retransmitDue() {
	addr, punching := e.session.current()
	if addr == nil || !punching {
		return
	}
	now := time.Now()
	for _, tr := range e.transfers.allOutbound() {
		seq, data, isLast, due := tr.dueForRetransmit(now)
		if !due {
			continue
		}
		e.send(addr, fileChunkMessage(tr.nonce, seq, toHex(data), isLast).encode())
	}
}
