// Package formfile implements the backing store for an uploaded file:
// an in-memory buffer that spills to disk once it grows past a
// configured size. It implements the same Write/Finalize/Close sink
// contract used throughout this module, so a multipart driver can
// write to a File exactly as it would to any other sink, transfer
// encoding decoders included.
package formfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// defaultMaxMemoryFileSize is used when Config.MaxMemoryFileSize is 0.
const defaultMaxMemoryFileSize = 1 << 20 // 1 MiB

// Config controls a File's spill threshold and on-disk naming policy.
// The zero value is a usable default: spill at 1 MiB, use the
// platform temp directory, generate a random name, drop the
// extension.
type Config struct {
	MaxMemoryFileSize    int64
	UploadDir            string
	UploadKeepFilename   bool
	UploadKeepExtensions bool
}

func (c Config) maxMemoryFileSize() int64 {
	if c.MaxMemoryFileSize > 0 {
		return c.MaxMemoryFileSize
	}
	return defaultMaxMemoryFileSize
}

// FileError reports a backing-store I/O failure: an UPLOAD_DIR that
// cannot be opened, or a write the filesystem refused.
type FileError struct {
	Op    string
	Path  string
	Cause error
}

func (e *FileError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("formfile: %s %s: %v", e.Op, e.Path, e.Cause)
	}
	return fmt.Sprintf("formfile: %s: %v", e.Op, e.Cause)
}

func (e *FileError) Unwrap() error { return e.Cause }

// File is a single uploaded file's backing store. It starts as an
// in-memory buffer and spills to disk, permanently, once Write would
// push it past Config.MaxMemoryFileSize. A File is not safe for
// concurrent use.
type File struct {
	requestedName string
	config        Config

	size int64

	inMemory bool
	mem      bytes.Buffer

	fileObject     *os.File
	actualFileName string

	finalized bool
	closed    bool
}

// NewFile constructs a File for the given client-supplied filename
// (used only for naming, never trusted as a path). requestedName may
// be empty.
func NewFile(requestedName string, config Config) *File {
	return &File{requestedName: requestedName, config: config, inMemory: true}
}

// Size returns the number of bytes accepted so far.
func (f *File) Size() int64 { return f.size }

// InMemory reports whether the File is still backed by memory. Once
// false, it stays false: the memory-to-disk transition is monotonic.
func (f *File) InMemory() bool { return f.inMemory }

// ActualFileName returns the on-disk filename chosen for this File,
// or "" if it never spilled to disk.
func (f *File) ActualFileName() string { return f.actualFileName }

// Write appends p to the backing store, spilling to disk first if p
// would push the in-memory buffer past MaxMemoryFileSize. It returns
// the byte count the backing store accepted; a short disk write is
// propagated rather than papered over.
func (f *File) Write(p []byte) (int, error) {
	if f.inMemory && int64(f.mem.Len()+len(p)) > f.config.maxMemoryFileSize() {
		if err := f.spill(); err != nil {
			return 0, err
		}
	}

	var n int
	var err error
	if f.inMemory {
		n, err = f.mem.Write(p)
	} else {
		n, err = f.fileObject.Write(p)
		if err != nil {
			return n, &FileError{Op: "write", Path: f.actualFileName, Cause: err}
		}
	}
	f.size += int64(n)
	return n, err
}

// FlushToDisk forces the spill-to-disk transition even if the
// in-memory buffer is still under the cap. It is a no-op if the File
// has already spilled.
func (f *File) FlushToDisk() error {
	if !f.inMemory {
		return nil
	}
	return f.spill()
}

// spill opens the backing file, copies the in-memory buffer into it,
// and switches InMemory to false. Once called, it is never undone.
func (f *File) spill() error {
	file, name, err := f.open()
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, &f.mem); err != nil {
		file.Close()
		os.Remove(name)
		return &FileError{Op: "spill", Path: name, Cause: err}
	}
	f.fileObject = file
	f.actualFileName = filepath.Base(name)
	f.inMemory = false
	f.mem.Reset()
	return nil
}

// open picks a destination directory and filename per the naming
// policy and creates the file there.
func (f *File) open() (*os.File, string, error) {
	dir := f.config.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}

	name := f.chooseName()
	path := filepath.Join(dir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, "", &FileError{Op: "create", Path: dir, Cause: errors.WithStack(err)}
	}
	return file, path, nil
}

func (f *File) chooseName() string {
	ext := ""
	if f.config.UploadKeepExtensions {
		ext = filepath.Ext(f.requestedName)
	}

	if f.config.UploadKeepFilename && f.requestedName != "" {
		base := filepath.Base(f.requestedName)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		return stem + ext
	}

	return uuid.New().String() + ext
}

// Finalize is idempotent; the backing store needs no end-of-stream
// action beyond what Write already did.
func (f *File) Finalize() error {
	f.finalized = true
	return nil
}

// Close releases the backing store. Closing an in-memory File is a
// no-op; closing a spilled File closes (but does not remove) the
// underlying file.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if f.fileObject != nil {
		if err := f.fileObject.Close(); err != nil {
			return &FileError{Op: "close", Path: f.actualFileName, Cause: err}
		}
	}
	return nil
}

// Bytes returns the File's content while it is still in memory. It is
// meant for tests and small-file fast paths; callers must not use it
// once InMemory() is false.
func (f *File) Bytes() []byte {
	return f.mem.Bytes()
}
