package publish

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/anacrolix/log"
	"github.com/stretchr/testify/require"

	"github.com/EDiasAlberto/peerbrowser/internal/storage"
)

// fakeTracker is an in-memory Tracker used to drive Walker without a real
// tracker HTTP service.
type fakeTracker struct {
	added map[string]string
}

func (f *fakeTracker) Add(filename, hash string) error {
	if f.added == nil {
		f.added = make(map[string]string)
	}
	f.added[filename] = hash
	return nil
}

func TestWalkerPublishReadsThroughStorageNotDisk(t *testing.T) {
	root := t.TempDir()
	siteDir := filepath.Join(root, "site")
	require.NoError(t, os.MkdirAll(filepath.Join(siteDir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(siteDir, "index.html"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(siteDir, "sub", "page.html"), []byte("world"), 0o644))

	src, err := storage.NewDir(root)
	require.NoError(t, err)

	tr := &fakeTracker{}
	w := &Walker{Tracker: tr, Logger: log.Default}
	assets, err := w.Publish(siteDir, "site", src)
	require.NoError(t, err)
	require.Len(t, assets, 2)

	byPath := make(map[string]Asset)
	for _, a := range assets {
		byPath[a.LogicalPath] = a
	}
	index, ok := byPath["site/index.html"]
	require.True(t, ok)
	require.Equal(t, int64(len("hello")), index.Size)
	require.Equal(t, digestHex([]byte("hello")), index.Digest)

	page, ok := byPath["site/sub/page.html"]
	require.True(t, ok)
	require.Equal(t, int64(len("world")), page.Size)

	require.Equal(t, index.Digest, tr.added["site/index.html"])
	require.Equal(t, page.Digest, tr.added["site/sub/page.html"])
}

func TestWalkerPublishFailsWhenSiteDirOutsideStorageRoot(t *testing.T) {
	storageRoot := t.TempDir()
	elsewhere := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(elsewhere, "a"), []byte("x"), 0o644))

	src, err := storage.NewDir(storageRoot)
	require.NoError(t, err)

	w := &Walker{Tracker: &fakeTracker{}, Logger: log.Default}
	_, err = w.Publish(elsewhere, "site", src)
	require.Error(t, err)
}

func TestPublishFromStorageRegistersGivenPaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("abc"), 0o644))
	src, err := storage.NewDir(root)
	require.NoError(t, err)

	tr := &fakeTracker{}
	assets, err := PublishFromStorage(src, tr, []string{"a.txt"}, log.Default)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	require.Equal(t, "a.txt", assets[0].LogicalPath)
	require.Equal(t, digestHex([]byte("abc")), assets[0].Digest)
	require.Equal(t, assets[0].Digest, tr.added["a.txt"])
}
