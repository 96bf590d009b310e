package peer

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anacrolix/log"
	"github.com/stretchr/testify/require"

	"github.com/EDiasAlberto/peerbrowser/internal/storage"
)

// newWiredPair returns two started endpoints whose peer sessions point
// at each other, bypassing rendezvous entirely — equivalent to the
// state both endpoints would reach after a successful introduction.
// Both sockets are bound to 0.0.0.0, but loopback datagrams arrive from
// 127.0.0.1, so the sessions use that observed address.
func newWiredPair(t *testing.T, holderSrc storage.Source, requesterSink storage.Sink, chunkSize int) (holder, requester *Endpoint) {
	t.Helper()
	holder, err := NewEndpoint(Config{RendezvousAddr: "127.0.0.1:1", ChunkSize: chunkSize, Logger: log.Default, Storage: holderSrc})
	require.NoError(t, err)
	requester, err = NewEndpoint(Config{RendezvousAddr: "127.0.0.1:1", ChunkSize: chunkSize, Logger: log.Default, Sink: requesterSink})
	require.NoError(t, err)

	holder.Start()
	requester.Start()
	t.Cleanup(func() { holder.Stop(); requester.Stop() })

	holder.session.set(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: requester.LocalAddr().(*net.UDPAddr).Port}, directionIncoming)
	requester.session.set(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: holder.LocalAddr().(*net.UDPAddr).Port}, directionOutgoing)
	return holder, requester
}

// S1. Two-peer single-chunk fetch.
func TestFetchSingleChunk(t *testing.T) {
	holderDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(holderDir, "site"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(holderDir, "site", "index.html"), []byte("<html>ok</html>"), 0o644))
	holderSrc, err := storage.NewDir(holderDir)
	require.NoError(t, err)

	reqDir := t.TempDir()
	reqSink, err := storage.NewDir(reqDir)
	require.NoError(t, err)

	_, requester := newWiredPair(t, holderSrc, reqSink, DefaultChunkSize)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := requester.Fetch(ctx, "site/index.html")
	require.NoError(t, err)
	require.Equal(t, "<html>ok</html>", string(data))

	got, err := os.ReadFile(filepath.Join(reqDir, "site", "index.html"))
	require.NoError(t, err)
	require.Equal(t, "<html>ok</html>", string(got))
}

// S2. Multi-chunk fetch with chunk_size=4, file = "ABCDEFGHIJ" (10 B).
func TestFetchMultiChunk(t *testing.T) {
	holderDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(holderDir, "a"), []byte("ABCDEFGHIJ"), 0o644))
	holderSrc, err := storage.NewDir(holderDir)
	require.NoError(t, err)

	reqDir := t.TempDir()
	reqSink, err := storage.NewDir(reqDir)
	require.NoError(t, err)

	_, requester := newWiredPair(t, holderSrc, reqSink, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := requester.Fetch(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "ABCDEFGHIJ", string(data))
}

func TestFetchWithNoPeerSessionErrors(t *testing.T) {
	reqDir := t.TempDir()
	reqSink, err := storage.NewDir(reqDir)
	require.NoError(t, err)
	requester, err := NewEndpoint(Config{RendezvousAddr: "127.0.0.1:1", Logger: log.Default, Sink: reqSink})
	require.NoError(t, err)
	requester.Start()
	defer requester.Stop()

	_, err = requester.Fetch(context.Background(), "site/a")
	require.Error(t, err)
}

func TestDisconnectClearsSessionAndCancelsTransfers(t *testing.T) {
	holderDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(holderDir, "a"), []byte("hello"), 0o644))
	holderSrc, err := storage.NewDir(holderDir)
	require.NoError(t, err)
	reqDir := t.TempDir()
	reqSink, err := storage.NewDir(reqDir)
	require.NoError(t, err)

	holder, requester := newWiredPair(t, holderSrc, reqSink, DefaultChunkSize)

	in := newInboundTransfer("n1", "a", DigestHex([]byte("hello")))
	requester.transfers.putInbound(in)

	requester.Disconnect()
	addr, punching := requester.session.current()
	require.Nil(t, addr)
	require.False(t, punching)
	state, _ := in.snapshot()
	require.Equal(t, inboundCancelled, state)

	_ = holder // keep referenced for symmetry with other tests in this file
}
