// Package tracker implements the content→holders index: an HTTP service
// peers consult to discover who currently holds a given file, and that
// they update as they publish, fail against, or go offline.
package tracker

import (
	"time"

	"github.com/anacrolix/sync"
)

// Index is the algorithmic core of the tracker: a set-valued map from
// file path to holder IPs, its reverse map, and a last-seen timestamp
// per IP. All operations are point-in-time; the only isolation promised
// is linearizable single-key updates.
type Index struct {
	mu       sync.Mutex
	fileIPs  map[string]map[string]struct{}
	ipFiles  map[string]map[string]struct{}
	lastSeen map[string]time.Time
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{
		fileIPs:  make(map[string]map[string]struct{}),
		ipFiles:  make(map[string]map[string]struct{}),
		lastSeen: make(map[string]time.Time),
	}
}

// GetPeers returns the current holder IP set for filename. The returned
// slice is a snapshot; mutating the index afterwards does not affect it.
func (idx *Index) GetPeers(filename string) []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	ips := idx.fileIPs[filename]
	out := make([]string, 0, len(ips))
	for ip := range ips {
		out = append(out, ip)
	}
	return out
}

// Add records ip as a holder of filename and refreshes its last-seen
// timestamp. Calling Add repeatedly with the same (ip, filename) is
// idempotent: the index after N calls is identical to the index after 1.
func (idx *Index) Add(ip, filename string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.addLocked(ip, filename)
	idx.lastSeen[ip] = time.Now()
}

func (idx *Index) addLocked(ip, filename string) {
	if idx.fileIPs[filename] == nil {
		idx.fileIPs[filename] = make(map[string]struct{})
	}
	idx.fileIPs[filename][ip] = struct{}{}
	if idx.ipFiles[ip] == nil {
		idx.ipFiles[ip] = make(map[string]struct{})
	}
	idx.ipFiles[ip][filename] = struct{}{}
}

// Remove deletes ip as a holder of filename from both maps. lastSeen is
// untouched: the peer may still be serving other files.
func (idx *Index) Remove(ip, filename string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(ip, filename)
}

func (idx *Index) removeLocked(ip, filename string) {
	if ips, ok := idx.fileIPs[filename]; ok {
		delete(ips, ip)
		if len(ips) == 0 {
			delete(idx.fileIPs, filename)
		}
	}
	if files, ok := idx.ipFiles[ip]; ok {
		delete(files, filename)
		if len(files) == 0 {
			delete(idx.ipFiles, ip)
		}
	}
}

// PeerOffline removes ip as a holder of every file it was registered
// for, then clears its file set and last-seen record entirely.
func (idx *Index) PeerOffline(ip string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for filename := range idx.ipFiles[ip] {
		if ips, ok := idx.fileIPs[filename]; ok {
			delete(ips, ip)
			if len(ips) == 0 {
				delete(idx.fileIPs, filename)
			}
		}
	}
	delete(idx.ipFiles, ip)
	delete(idx.lastSeen, ip)
}

// AllFiles returns a sampled list of known file paths, capped at limit
// entries. Used by the /all_trackers endpoint.
func (idx *Index) AllFiles(limit int) []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	cap := limit
	if len(idx.fileIPs) < cap {
		cap = len(idx.fileIPs)
	}
	out := make([]string, 0, cap)
	for filename := range idx.fileIPs {
		if len(out) >= limit {
			break
		}
		out = append(out, filename)
	}
	return out
}

// FileCount returns the number of distinct file paths currently indexed.
// Used for status logging where the caller wants a count, not a sampled
// list (AllFiles with a very large limit would over-allocate).
func (idx *Index) FileCount() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.fileIPs)
}

// LastSeen returns when ip was last seen by Add, and whether it has ever
// been seen at all.
func (idx *Index) LastSeen(ip string) (time.Time, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	t, ok := idx.lastSeen[ip]
	return t, ok
}

// StaleIPs returns every IP whose last Add is older than olderThan. Used
// by the optional reaper; the tracker itself does not call this.
func (idx *Index) StaleIPs(olderThan time.Duration) []string {
	cutoff := time.Now().Add(-olderThan)
	idx.mu.Lock()
	defer idx.mu.Unlock()
	var stale []string
	for ip, seen := range idx.lastSeen {
		if seen.Before(cutoff) {
			stale = append(stale, ip)
		}
	}
	return stale
}
