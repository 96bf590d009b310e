package storage

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteThenOpenRoundTrip(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, d.Write("site/index.html", []byte("<html>ok</html>")))

	f, err := d.Open("site/index.html")
	require.NoError(t, err)
	defer f.Close()
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "<html>ok</html>", string(got))
}

func TestWriteRejectsEscapingPath(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)
	err = d.Write("../../etc/passwd", []byte("x"))
	require.Error(t, err)
}

func TestReadAllHelper(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, d.Write("a/b", []byte("hello")))
	got, err := ReadAll(d, "a/b")
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}
