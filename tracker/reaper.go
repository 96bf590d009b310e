package tracker

import (
	"time"

	"github.com/anacrolix/log"
)

// Reaper periodically evicts holders whose last Add is older than
// Threshold by calling PeerOffline on them. The core tracker algorithm
// (§4.2) leaves automatic eviction unspecified; this is the deployment
// choice resolving that open question. The zero value is not started
// automatically — callers opt in with Run.
type Reaper struct {
	Index     *Index
	Threshold time.Duration
	Interval  time.Duration
	Logger    log.Logger
}

// Run sweeps the index every r.Interval until stop is closed.
func (r *Reaper) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Reaper) sweep() {
	for _, ip := range r.Index.StaleIPs(r.Threshold) {
		r.Index.PeerOffline(ip)
		r.Logger.Levelf(log.Debug, "reaped stale holder %s", ip)
	}
}
