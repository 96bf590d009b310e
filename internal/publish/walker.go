// Package publish implements the site-publish walk: given a local
// directory and a site name, register every regular file beneath it
// with the tracker under its logical path, content-digested once at
// publish time. Grounded on original_source/browser-client's
// post_site_pages walk and generate_hash helper.
package publish

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/anacrolix/log"
	"github.com/pkg/errors"

	"github.com/EDiasAlberto/peerbrowser/internal/storage"
)

// digestHex returns the hex-encoded MD5 digest of data, matching
// peer.DigestHex. Duplicated here rather than imported: internal/publish
// is a dependency of package peer's Driver, so importing peer back would
// cycle.
func digestHex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Tracker is the subset of tracker.Client a Walker needs, kept narrow so
// tests can supply a fake.
type Tracker interface {
	Add(filename, hash string) error
}

// Walker walks a local site directory and registers every asset with a
// Tracker, using siteDir as the filesystem root and siteName as the
// logical path prefix (so siteDir/index.html becomes
// "siteName/index.html").
type Walker struct {
	Tracker Tracker
	Logger  log.Logger
}

// Asset is one file discovered during a publish walk.
type Asset struct {
	LogicalPath string
	Digest      string
	Size        int64
}

// Publish walks siteDir on disk to discover every regular file beneath
// it, then registers each one with w.Tracker by reading it back through
// src rather than straight off disk. src must be the same storage.Source
// the owning peer endpoint later serves file_requests from, and siteDir
// must be laid out so that src.Open(siteName/rel) returns the same bytes
// this walk just found at siteDir/rel (typically siteDir is the
// siteName subdirectory of the endpoint's storage root) — otherwise a
// peer would advertise files it can't actually serve. See
// PublishFromStorage, which does the actual reading and registering.
func (w *Walker) Publish(siteDir, siteName string, src storage.Source) ([]Asset, error) {
	var logicalPaths []string
	err := filepath.WalkDir(siteDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(siteDir, path)
		if err != nil {
			return errors.Wrapf(err, "computing relative path for %q", path)
		}
		logicalPaths = append(logicalPaths, filepath.ToSlash(filepath.Join(siteName, rel)))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "discovering assets under %q", siteDir)
	}
	return PublishFromStorage(src, w.Tracker, logicalPaths, w.Logger)
}

// PublishFromStorage registers each of logicalPaths with tr, reading its
// bytes through src and content-digesting it once at publish time — the
// same digest later checked at fetch-assembly time. Used directly by
// callers that already have a fixed asset list (tests, non-filesystem
// deployments), and by Walker.Publish once it has discovered siteDir's
// files on disk.
func PublishFromStorage(src storage.Source, tr Tracker, logicalPaths []string, logger log.Logger) ([]Asset, error) {
	var assets []Asset
	for _, lp := range logicalPaths {
		data, err := storage.ReadAll(src, lp)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %q", lp)
		}
		hash := digestHex(data)
		if err := tr.Add(lp, hash); err != nil {
			return nil, errors.Wrapf(err, "registering %q", lp)
		}
		logger.Levelf(log.Debug, "published %s (%d bytes, %s)", lp, len(data), hash)
		assets = append(assets, Asset{LogicalPath: lp, Digest: hash, Size: int64(len(data))})
	}
	return assets, nil
}
