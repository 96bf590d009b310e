// Package storage defines the narrow interfaces the transport needs for
// published site files: read a file by logical path, write assembled
// bytes to a logical path. Everything beyond that (on-disk layout,
// quotas, concurrent access policy) is the collaborator's concern, not
// the transport's — see SPEC_FULL.md §1's scope note.
package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Source reads a published asset by its logical path (e.g.
// "site/index.html").
type Source interface {
	Open(logicalPath string) (io.ReadCloser, error)
}

// Sink durably writes assembled bytes to a logical path. Callers must
// only invoke Write once assembly is verified — see package peer's
// finishInboundIfComplete.
type Sink interface {
	Write(logicalPath string, data []byte) error
}

// Dir is a Source and Sink rooted at a directory on the local
// filesystem, mirroring the teacher's storagePieceReader in spirit: a
// thin io adapter with no policy of its own.
type Dir struct {
	Root string
}

// NewDir returns a Dir rooted at root. root is created if it does not
// already exist.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating storage root %q", root)
	}
	return &Dir{Root: root}, nil
}

func (d *Dir) resolve(logicalPath string) (string, error) {
	full := filepath.Join(d.Root, logicalPath)
	if full != d.Root && !isWithin(d.Root, full) {
		return "", errors.Errorf("logical path %q escapes storage root", logicalPath)
	}
	return full, nil
}

func isWithin(root, full string) bool {
	rel, err := filepath.Rel(root, full)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Open implements Source.
func (d *Dir) Open(logicalPath string) (io.ReadCloser, error) {
	full, err := d.resolve(logicalPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %q", logicalPath)
	}
	return f, nil
}

// Write implements Sink. The file is written to a temporary name in the
// same directory and renamed into place, so a crash mid-write never
// leaves a partial file at logicalPath.
func (d *Dir) Write(logicalPath string, data []byte) error {
	full, err := d.resolve(logicalPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return errors.Wrapf(err, "creating parent dirs for %q", logicalPath)
	}
	tmp := full + ".partial"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing %q", logicalPath)
	}
	if err := os.Rename(tmp, full); err != nil {
		return errors.Wrapf(err, "finalizing %q", logicalPath)
	}
	return nil
}

// ReadAll is a convenience used by the publish walker and the holder's
// file_request handler to read a whole asset into memory for
// chunking/digesting.
func ReadAll(src Source, logicalPath string) ([]byte, error) {
	f, err := src.Open(logicalPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
