package peer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInboundTransferSingleChunkCompletesAndAssembles(t *testing.T) {
	data := []byte("<html>ok</html>")
	tr := newInboundTransfer("n1", "site/index.html", DigestHex(data))
	require.True(t, tr.storeChunk(0, data, true))
	require.True(t, tr.isComplete())

	got, err := tr.assemble()
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestInboundTransferMultiChunkOrdering(t *testing.T) {
	full := []byte("ABCDEFGHIJ")
	tr := newInboundTransfer("n1", "site/a", DigestHex(full))
	require.True(t, tr.storeChunk(0, []byte("ABCD"), false))
	require.False(t, tr.isComplete())
	require.True(t, tr.storeChunk(1, []byte("EFGH"), false))
	require.False(t, tr.isComplete())
	require.True(t, tr.storeChunk(2, []byte("IJ"), true))
	require.True(t, tr.isComplete())

	got, err := tr.assemble()
	require.NoError(t, err)
	require.Equal(t, full, got)
}

// S4: an altered announced digest must be detected, leaving the
// transfer in error and producing no assembled bytes.
func TestInboundTransferDigestMismatchRejected(t *testing.T) {
	data := []byte("<html>ok</html>")
	tr := newInboundTransfer("n1", "site/index.html", "0000000000000000000000000000000000")
	require.True(t, tr.storeChunk(0, data, true))
	require.True(t, tr.isComplete())

	_, err := tr.assemble()
	require.Error(t, err)
	state, _ := tr.snapshot()
	require.Equal(t, inboundError, state)
}

func TestInboundTransferMissingSeqsAfterTerminalChunk(t *testing.T) {
	full := []byte("ABCDEFGHIJ")
	tr := newInboundTransfer("n1", "site/a", DigestHex(full))
	require.True(t, tr.storeChunk(0, []byte("ABCD"), false))
	// seq 1 lost in transit; seq 2 arrives as the terminal chunk.
	require.True(t, tr.storeChunk(2, []byte("IJ"), true))

	require.False(t, tr.isComplete())
	require.Equal(t, []int{1}, tr.missingSeqs())
	require.Equal(t, []int{0, 2}, tr.receivedSeqList())
}

func TestInboundTransferCancelIsIdempotentOnceTerminal(t *testing.T) {
	tr := newInboundTransfer("n1", "site/a", DigestHex([]byte("x")))
	tr.storeChunk(0, []byte("x"), true)
	tr.fail(errMissingChunks)
	tr.cancel() // must not override a terminal error state
	state, _ := tr.snapshot()
	require.Equal(t, inboundError, state)
}
