package pagestore

import "io"

// ReadHandle is a seekable, positional-read stream over a page file. The
// store serializes concurrent retrieves through a per-file lock built
// around this handle (see Store.Retrieve); an implementation backed by a
// true pread syscall could relax that, but the interface itself stays
// minimal.
type ReadHandle interface {
	io.ReaderAt
	io.Closer
}

// WriteHandle is a seekable, positional-write stream over a page file,
// used by both the synchronous commit path and BackgroundPageWriter.
type WriteHandle interface {
	io.WriterAt
	Sync() error
	io.Closer
}

// PersistenceBackend is the platform-agnostic file I/O capability the
// store needs: existence checks, creation, and separate read/write
// handles. Abstracting the filesystem behind this interface lets the
// core be tested against an in-memory backend and ported to non-POSIX
// hosts without touching pagestore.Store itself.
type PersistenceBackend interface {
	// FileExists reports whether a file exists at path.
	FileExists(path string) (bool, error)

	// CreateFile creates an empty file at path if one does not already
	// exist. It is a no-op if the file exists.
	CreateFile(path string) error

	// Size returns the current length of the file at path, in bytes.
	Size(path string) (int64, error)

	// OpenForRead opens path for positional reads.
	OpenForRead(path string) (ReadHandle, error)

	// OpenForAppendOrOpen opens path for positional writes, creating it
	// if it does not exist.
	OpenForAppendOrOpen(path string) (WriteHandle, error)
}
