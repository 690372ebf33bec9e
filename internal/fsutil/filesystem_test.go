package fsutil

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFileSystem_WriteRead(t *testing.T) {
	m := NewMemoryFileSystem()

	require.NoError(t, m.WriteFile("out/spectrum.csv", []byte("a,b\n"), 0644))
	data, err := m.ReadFile("out/spectrum.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))

	_, err = m.ReadFile("missing.csv")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMemoryFileSystem_CreateVisibleOnClose(t *testing.T) {
	m := NewMemoryFileSystem()

	w, err := m.Create("plot.png")
	require.NoError(t, err)
	_, err = io.WriteString(w, "png-bytes")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := m.ReadFile("plot.png")
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestMemoryFileSystem_MkdirAllAndFiles(t *testing.T) {
	m := NewMemoryFileSystem()
	require.NoError(t, m.MkdirAll("runs/abc/plots", 0755))

	assert.True(t, m.Exists("runs"))
	assert.True(t, m.Exists("runs/abc"))
	assert.True(t, m.Exists("runs/abc/plots"))
	assert.False(t, m.Exists("runs/other"))

	require.NoError(t, m.WriteFile("runs/abc/b.csv", nil, 0644))
	require.NoError(t, m.WriteFile("runs/abc/a.csv", nil, 0644))
	require.NoError(t, m.WriteFile("elsewhere.csv", nil, 0644))

	assert.Equal(t, []string{"runs/abc/a.csv", "runs/abc/b.csv"}, m.Files("runs/abc"))
	assert.Len(t, m.Files(""), 3)
}

func TestOSFileSystem(t *testing.T) {
	dir := t.TempDir()
	fsys := OSFileSystem{}

	sub := filepath.Join(dir, "nested", "out")
	require.NoError(t, fsys.MkdirAll(sub, 0755))
	assert.True(t, fsys.Exists(sub))

	path := filepath.Join(sub, "x.txt")
	require.NoError(t, fsys.WriteFile(path, []byte("hello"), 0644))
	data, err := fsys.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	w, err := fsys.Create(filepath.Join(sub, "y.txt"))
	require.NoError(t, err)
	_, _ = w.Write([]byte("y"))
	require.NoError(t, w.Close())
	assert.True(t, fsys.Exists(filepath.Join(sub, "y.txt")))
}
