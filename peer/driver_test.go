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

// fakeTracker is an in-memory TrackerClient used to drive Driver without
// a real tracker HTTP service.
type fakeTracker struct {
	peers   map[string][]string
	added   []string
	removed []string
}

func (f *fakeTracker) GetPeers(filename string) ([]string, error) {
	return f.peers[filename], nil
}

func (f *fakeTracker) Add(filename, hash string) error {
	f.added = append(f.added, filename)
	return nil
}

func (f *fakeTracker) Remove(ip, filename string) error {
	f.removed = append(f.removed, ip+"/"+filename)
	return nil
}

func TestDriverFetchSucceedsAndRegistersSelf(t *testing.T) {
	holderDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(holderDir, "a"), []byte("hello world"), 0o644))
	holderSrc, err := storage.NewDir(holderDir)
	require.NoError(t, err)
	reqDir := t.TempDir()
	reqSink, err := storage.NewDir(reqDir)
	require.NoError(t, err)

	holder, err := NewEndpoint(Config{RendezvousAddr: "127.0.0.1:1", Logger: log.Default, Storage: holderSrc})
	require.NoError(t, err)
	requester, err := NewEndpoint(Config{RendezvousAddr: "127.0.0.1:1", Logger: log.Default, Sink: reqSink})
	require.NoError(t, err)
	holder.Start()
	requester.Start()
	defer holder.Stop()
	defer requester.Stop()

	// Pre-assign the session rendezvous would have produced, so awaitPeer
	// inside Driver.Fetch observes the introduction immediately instead of
	// waiting on an unreachable rendezvous address. The sockets are bound
	// to 0.0.0.0; loopback datagrams arrive from 127.0.0.1, so that is the
	// address each side observes for the other.
	holderIP := "127.0.0.1"
	requester.session.set(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: holder.LocalAddr().(*net.UDPAddr).Port}, directionOutgoing)
	holder.session.set(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: requester.LocalAddr().(*net.UDPAddr).Port}, directionIncoming)

	tr := &fakeTracker{peers: map[string][]string{"a": {holderIP}}}
	d := &Driver{Endpoint: requester, Tracker: tr, Logger: log.Default}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := d.Fetch(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
	require.Contains(t, tr.added, "a")
	require.Empty(t, tr.removed)
}

func TestDriverFetchNoHoldersErrors(t *testing.T) {
	reqDir := t.TempDir()
	reqSink, err := storage.NewDir(reqDir)
	require.NoError(t, err)
	requester, err := NewEndpoint(Config{RendezvousAddr: "127.0.0.1:1", Logger: log.Default, Sink: reqSink})
	require.NoError(t, err)
	requester.Start()
	defer requester.Stop()

	d := &Driver{Endpoint: requester, Tracker: &fakeTracker{peers: map[string][]string{}}, Logger: log.Default}
	_, err = d.Fetch(context.Background(), "missing")
	require.Error(t, err)
}

// S5. Holder unreachable: the candidate never assigns a session, so
// Driver.Fetch's rendezvous wait times out; the candidate must still be
// reported to the tracker for removal before Fetch gives up.
func TestDriverFetchReportsDeadHolder(t *testing.T) {
	reqDir := t.TempDir()
	reqSink, err := storage.NewDir(reqDir)
	require.NoError(t, err)
	requester, err := NewEndpoint(Config{RendezvousAddr: "127.0.0.1:1", Logger: log.Default, Sink: reqSink})
	require.NoError(t, err)
	requester.Start()
	defer requester.Stop()

	tr := &fakeTracker{peers: map[string][]string{"a": {"203.0.113.9"}}}
	d := &Driver{Endpoint: requester, Tracker: tr, Logger: log.Default}

	ctx, cancel := context.WithTimeout(context.Background(), registrationTimeout+2*time.Second)
	defer cancel()
	_, err = d.Fetch(ctx, "a")
	require.Error(t, err)
	require.Equal(t, []string{"203.0.113.9/a"}, tr.removed)
}
