package formfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSimple(t *testing.T) {
	f := NewFile("foo.txt", Config{})
	n, err := f.Write([]byte("foobar"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.True(t, f.InMemory())
	assert.Equal(t, "foobar", string(f.Bytes()))
	assert.Equal(t, int64(6), f.Size())
}

func TestFileFallback(t *testing.T) {
	dir := t.TempDir()
	f := NewFile("foo.txt", Config{MaxMemoryFileSize: 1, UploadDir: dir})

	_, err := f.Write([]byte("1"))
	require.NoError(t, err)
	assert.True(t, f.InMemory())

	_, err = f.Write([]byte("123"))
	require.NoError(t, err)
	assert.False(t, f.InMemory())

	require.NoError(t, f.FlushToDisk())
	assert.False(t, f.InMemory())
}

func TestFileFallbackWithData(t *testing.T) {
	dir := t.TempDir()
	f := NewFile("foo.txt", Config{MaxMemoryFileSize: 10, UploadDir: dir})

	_, err := f.Write([]byte("1111111111"))
	require.NoError(t, err)
	assert.True(t, f.InMemory())

	_, err = f.Write([]byte("2222222222"))
	require.NoError(t, err)
	assert.False(t, f.InMemory())

	full := filepath.Join(dir, f.ActualFileName())
	data, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, "11111111112222222222", string(data))
}

func TestFileNameRandomWhenNotKept(t *testing.T) {
	dir := t.TempDir()
	f := NewFile("foo.txt", Config{MaxMemoryFileSize: 10, UploadDir: dir})

	_, err := f.Write([]byte("12345678901"))
	require.NoError(t, err)
	assert.False(t, f.InMemory())

	require.NotEmpty(t, f.ActualFileName())
	_, err = os.Stat(filepath.Join(dir, f.ActualFileName()))
	require.NoError(t, err)
}

func TestFileKeepsRequestedStem(t *testing.T) {
	dir := t.TempDir()
	f := NewFile("foo.txt", Config{UploadDir: dir, UploadKeepFilename: true, MaxMemoryFileSize: 10})

	_, err := f.Write([]byte("12345678901"))
	require.NoError(t, err)
	assert.False(t, f.InMemory())
	assert.Equal(t, "foo", f.ActualFileName())
}

func TestFileKeepsRequestedStemAndExtension(t *testing.T) {
	dir := t.TempDir()
	f := NewFile("foo.txt", Config{
		UploadDir:            dir,
		UploadKeepFilename:   true,
		UploadKeepExtensions: true,
		MaxMemoryFileSize:    10,
	})

	_, err := f.Write([]byte("12345678901"))
	require.NoError(t, err)
	assert.False(t, f.InMemory())
	assert.Equal(t, "foo.txt", f.ActualFileName())
}

func TestFileRandomNameKeepsExtension(t *testing.T) {
	dir := t.TempDir()
	f := NewFile("foo.txt", Config{UploadDir: dir, UploadKeepExtensions: true, MaxMemoryFileSize: 10})

	_, err := f.Write([]byte("12345678901"))
	require.NoError(t, err)
	assert.Equal(t, ".txt", filepath.Ext(f.ActualFileName()))
}

func TestFileInvalidUploadDirIsFileError(t *testing.T) {
	f := NewFile("foo.txt", Config{
		UploadDir:          filepath.Join(os.TempDir(), "formfile-does-not-exist"),
		UploadKeepFilename: true,
		MaxMemoryFileSize:  5,
	})

	_, err := f.Write([]byte("1234567890"))
	require.Error(t, err)

	var fileErr *FileError
	require.ErrorAs(t, err, &fileErr)
}

func TestFileCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	f := NewFile("foo.txt", Config{UploadDir: dir, MaxMemoryFileSize: 1})

	_, err := f.Write([]byte("12345"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
}
