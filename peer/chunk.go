package peer

import (
	"crypto/md5"
	"encoding/hex"
)

// DefaultChunkSize is the nominal 1200 bytes of source file per chunk,
// budgeted so the hex-encoded datagram (plus JSON framing) stays under
// the ~1400 B UDP budget.
const DefaultChunkSize = 1200

// splitChunks divides data into chunkSize-byte pieces, the last possibly
// shorter. An empty file yields a single empty chunk so every transfer
// has at least one chunk to send.
func splitChunks(data []byte, chunkSize int) [][]byte {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if len(data) == 0 {
		return [][]byte{{}}
	}
	var chunks [][]byte
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[off:end])
	}
	return chunks
}

// DigestHex returns the hex-encoded MD5 digest of data. The digest is
// used only for end-to-end integrity, never security.
func DigestHex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func toHex(b []byte) string {
	return hex.EncodeToString(b)
}

func fromHex(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
