package tracker

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// Client is the HTTP client side of the tracker surface, used by a peer
// endpoint to discover holders, publish itself, and report dead
// candidates.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a Client pointed at baseURL (e.g. from
// TRACKER_SERVER_URL) with a sane request timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type peersResponse struct {
	Filename string   `json:"filename"`
	Peers    []string `json:"peers"`
}

// GetPeers asks the tracker for the current holder set of filename.
func (c *Client) GetPeers(filename string) ([]string, error) {
	u, err := c.url("/peers", url.Values{"filename": {filename}})
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Get(u)
	if err != nil {
		return nil, errors.Wrap(err, "requesting peers")
	}
	defer resp.Body.Close()
	var out peersResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decoding peers response")
	}
	return out.Peers, nil
}

// Add registers the caller as a holder of filename. hash is passed
// through for the tracker's diagnostics; it is not verified.
func (c *Client) Add(filename, hash string) error {
	u, err := c.url("/add", url.Values{"filename": {filename}, "hash": {hash}})
	if err != nil {
		return err
	}
	return c.post(u)
}

// Remove reports that ip no longer holds filename, typically after a
// failed fetch attempt against it.
func (c *Client) Remove(ip, filename string) error {
	u, err := c.url("/remove", url.Values{"ip": {ip}, "filename": {filename}})
	if err != nil {
		return err
	}
	return c.post(u)
}

// PeerOffline reports that ip is entirely unreachable.
func (c *Client) PeerOffline(ip string) error {
	u, err := c.url("/peer_offline", url.Values{"ip": {ip}})
	if err != nil {
		return err
	}
	return c.post(u)
}

func (c *Client) url(path string, q url.Values) (string, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return "", errors.Wrapf(err, "parsing tracker URL for %s", path)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) post(u string) error {
	resp, err := c.HTTPClient.Post(u, "application/x-www-form-urlencoded", nil)
	if err != nil {
		return errors.Wrap(err, "posting to tracker")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return errors.Errorf("tracker returned %s", resp.Status)
	}
	return nil
}
