package peer

import (
	"context"

	"github.com/anacrolix/log"
	"github.com/pkg/errors"

	"github.com/EDiasAlberto/peerbrowser/internal/publish"
	"github.com/EDiasAlberto/peerbrowser/tracker"
)

// TrackerClient is the subset of tracker.Client a Driver needs, kept
// narrow so tests can supply a fake.
type TrackerClient interface {
	GetPeers(filename string) ([]string, error)
	Add(filename, hash string) error
	Remove(ip, filename string) error
}

var _ TrackerClient = (*tracker.Client)(nil)

// Driver is the supervisor/initiator context named in SPEC_FULL.md §5:
// the process driving fetches and publishes on top of an Endpoint's
// socket. It implements the control flow of §2 — tracker lookup,
// rendezvous introduction, file-request, and self-registration on
// success. Grounded on DannyZB-torrent's Torrent/Client split (a Torrent
// drives piece-level policy while a Client owns sockets) and
// examples/example_tracker_errors.go's small status/monitor loop
// wrapped around the transport.
type Driver struct {
	Endpoint *Endpoint
	Tracker  TrackerClient
	Logger   log.Logger
}

// Publish walks siteDir and registers every asset beneath it with the
// tracker under siteName, per §3.1. Assets are read back through the
// Endpoint's own storage source rather than straight off disk, so siteDir
// must be laid out such that d.Endpoint.Storage() resolves siteName's
// logical paths to the same bytes siteDir holds on disk (in practice,
// siteDir is the siteName subdirectory of the endpoint's storage root) —
// otherwise this peer would advertise holding files it can't later serve.
func (d *Driver) Publish(siteDir, siteName string) ([]publish.Asset, error) {
	w := &publish.Walker{Tracker: d.Tracker, Logger: d.Logger}
	return w.Publish(siteDir, siteName, d.Endpoint.Storage())
}

// Fetch drives §2's control flow for logicalPath: ask the tracker for
// holders, then try each in turn — rendezvous introduction, a
// file-request, and the chunked assembly loop — until one succeeds. A
// candidate that fails is reported to the tracker via Remove before the
// next is tried. On success the caller's endpoint registers itself as a
// new holder.
func (d *Driver) Fetch(ctx context.Context, logicalPath string) ([]byte, error) {
	candidates, err := d.Tracker.GetPeers(logicalPath)
	if err != nil {
		return nil, errors.Wrap(err, "looking up holders")
	}
	if len(candidates) == 0 {
		return nil, errors.Errorf("no holders for %q", logicalPath)
	}

	var lastErr error
	for _, ip := range candidates {
		data, err := d.fetchFrom(ctx, ip, logicalPath)
		if err == nil {
			if addErr := d.Tracker.Add(logicalPath, DigestHex(data)); addErr != nil {
				d.Logger.Levelf(log.Warning, "registering self as holder of %q: %v", logicalPath, addErr)
			}
			return data, nil
		}
		lastErr = err
		d.Logger.Levelf(log.Debug, "fetch of %q from %s failed: %v", logicalPath, ip, err)
		if remErr := d.Tracker.Remove(ip, logicalPath); remErr != nil {
			d.Logger.Levelf(log.Warning, "reporting dead holder %s: %v", ip, remErr)
		}
	}
	return nil, errors.Wrapf(lastErr, "fetching %q: all %d candidates failed", logicalPath, len(candidates))
}

// fetchFrom asks rendezvous to introduce the endpoint to ip, waits for
// the introduction to land, and issues the file-request once it has.
func (d *Driver) fetchFrom(ctx context.Context, ip, logicalPath string) ([]byte, error) {
	d.Endpoint.Connect(ip)
	if err := d.Endpoint.awaitPeer(ctx, ip); err != nil {
		return nil, errors.Wrapf(err, "introducing to %s", ip)
	}
	return d.Endpoint.Fetch(ctx, logicalPath)
}
