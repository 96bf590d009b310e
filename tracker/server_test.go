package tracker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServerRoot(t *testing.T) {
	srv := httptest.NewServer(NewServer(NewIndex()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
}

func TestServerAddThenPeers(t *testing.T) {
	idx := NewIndex()
	srv := httptest.NewServer(NewServer(idx))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/add?filename=site%2Findex.html&hash=deadbeef", "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/peers?filename=site%2Findex.html")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body peersResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Peers, 1)
}

func TestServerPeerOffline(t *testing.T) {
	idx := NewIndex()
	idx.Add("9.9.9.9", "site/a")
	srv := httptest.NewServer(NewServer(idx))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/peer_offline?ip=9.9.9.9", "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "removed", body["status"])
	require.Empty(t, idx.GetPeers("site/a"))
}

func TestClientAgainstServer(t *testing.T) {
	idx := NewIndex()
	srv := httptest.NewServer(NewServer(idx))
	defer srv.Close()

	c := NewClient(srv.URL)
	require.NoError(t, c.Add("site/page", "abc123"))
	peers, err := c.GetPeers("site/page")
	require.NoError(t, err)
	require.Len(t, peers, 1)

	require.NoError(t, c.Remove(peers[0], "site/page"))
	peers, err = c.GetPeers("site/page")
	require.NoError(t, err)
	require.Empty(t, peers)
}
