package posix

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0770))
	require.NoError(t, os.WriteFile(path, []byte(filepath.Base(path)), 0600))
}

func TestMoveIntoDirectory(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.o"))
	touch(t, filepath.Join(dir, "b.o"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "out"), 0770))

	require.NoError(t, Move([]string{filepath.Join(dir, "a.o"), filepath.Join(dir, "b.o"), filepath.Join(dir, "out")}))

	assert.FileExists(t, filepath.Join(dir, "out", "a.o"))
	assert.FileExists(t, filepath.Join(dir, "out", "b.o"))
	assert.NoFileExists(t, filepath.Join(dir, "a.o"))
}

func TestMoveRenames(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.o"))

	require.NoError(t, Move([]string{filepath.Join(dir, "a.o"), filepath.Join(dir, "renamed.o")}))
	assert.FileExists(t, filepath.Join(dir, "renamed.o"))
}

func TestMoveErrors(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.o"))
	touch(t, filepath.Join(dir, "b.o"))

	assert.Error(t, Move([]string{"single"}))
	assert.ErrorContains(t, Move([]string{filepath.Join(dir, "a.o"), filepath.Join(dir, "b.o"), filepath.Join(dir, "missing")}), "not a directory")
	assert.ErrorContains(t, Move([]string{filepath.Join(dir, "a.o"), filepath.Join(dir, "nope", "x.o")}), "destination directory")
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "tree", "deep", "x.o"))
	touch(t, filepath.Join(dir, "file.o"))

	assert.ErrorContains(t, Remove([]string{filepath.Join(dir, "tree")}, false, false), "-r")
	assert.DirExists(t, filepath.Join(dir, "tree"))

	require.NoError(t, Remove([]string{filepath.Join(dir, "tree"), filepath.Join(dir, "file.o")}, true, false))
	assert.NoDirExists(t, filepath.Join(dir, "tree"))
	assert.NoFileExists(t, filepath.Join(dir, "file.o"))

	assert.Error(t, Remove([]string{filepath.Join(dir, "missing")}, false, false))
	assert.NoError(t, Remove([]string{filepath.Join(dir, "missing")}, false, true))
}

func TestMkdir(t *testing.T) {
	dir := t.TempDir()

	assert.Error(t, Mkdir([]string{filepath.Join(dir, "a", "b")}, false))
	require.NoError(t, Mkdir([]string{filepath.Join(dir, "a", "b")}, true))
	assert.DirExists(t, filepath.Join(dir, "a", "b"))

	require.NoError(t, Mkdir([]string{filepath.Join(dir, "c")}, false))
	assert.DirExists(t, filepath.Join(dir, "c"))
}
