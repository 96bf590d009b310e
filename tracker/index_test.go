package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddRemoveConsistency(t *testing.T) {
	idx := NewIndex()
	idx.Add("1.2.3.4", "site/index.html")
	require.ElementsMatch(t, []string{"1.2.3.4"}, idx.GetPeers("site/index.html"))

	idx.Remove("1.2.3.4", "site/index.html")
	require.Empty(t, idx.GetPeers("site/index.html"))
	_, seen := idx.LastSeen("1.2.3.4")
	require.True(t, seen, "remove must not clear lastSeen")
}

func TestIdempotentAdd(t *testing.T) {
	idx := NewIndex()
	for i := 0; i < 5; i++ {
		idx.Add("1.2.3.4", "site/a")
	}
	require.Equal(t, []string{"1.2.3.4"}, idx.GetPeers("site/a"))
	require.Equal(t, 1, len(idx.ipFiles["1.2.3.4"]))
}

func TestPeerOfflineClearsAllFiles(t *testing.T) {
	idx := NewIndex()
	idx.Add("1.2.3.4", "site/a")
	idx.Add("1.2.3.4", "site/b")
	idx.Add("5.6.7.8", "site/a")

	idx.PeerOffline("1.2.3.4")

	require.ElementsMatch(t, []string{"5.6.7.8"}, idx.GetPeers("site/a"))
	require.Empty(t, idx.GetPeers("site/b"))
	_, seen := idx.LastSeen("1.2.3.4")
	require.False(t, seen)
}

func TestForwardReverseConsistencyUnderRandomOps(t *testing.T) {
	idx := NewIndex()
	ips := []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"}
	files := []string{"a", "b", "c"}

	for _, ip := range ips {
		for _, f := range files {
			idx.Add(ip, f)
		}
	}
	idx.Remove("2.2.2.2", "b")
	idx.PeerOffline("3.3.3.3")

	idx.mu.Lock()
	for f, ipset := range idx.fileIPs {
		for ip := range ipset {
			_, ok := idx.ipFiles[ip][f]
			require.True(t, ok, "forward entry (%s,%s) missing reverse", f, ip)
		}
	}
	for ip, fset := range idx.ipFiles {
		for f := range fset {
			_, ok := idx.fileIPs[f][ip]
			require.True(t, ok, "reverse entry (%s,%s) missing forward", ip, f)
		}
	}
	idx.mu.Unlock()
}

func TestStaleIPs(t *testing.T) {
	idx := NewIndex()
	idx.Add("1.2.3.4", "site/a")
	idx.lastSeen["1.2.3.4"] = time.Now().Add(-time.Hour)
	stale := idx.StaleIPs(time.Minute)
	require.Equal(t, []string{"1.2.3.4"}, stale)
}
