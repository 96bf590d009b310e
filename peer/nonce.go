package peer

import (
	"crypto/rand"
	"math/big"
)

// nonceLength is the nominal 8 decimal digits used to demultiplex
// concurrent transfers over one peer session.
const nonceLength = 8

// newNonce draws a random 8-digit decimal nonce. The requester of a
// file_request allocates it; every subsequent message in the transfer
// echoes it back.
func newNonce() string {
	digits := make([]byte, nonceLength)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			// crypto/rand failing indicates a broken environment; a
			// transfer's demux key matters for correctness, not just
			// obscurity, so we don't silently fall back to a weaker source.
			panic(err)
		}
		digits[i] = byte('0') + byte(n.Int64())
	}
	return string(digits)
}
