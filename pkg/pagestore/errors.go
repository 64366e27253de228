package pagestore

import "errors"

// Sentinel errors returned by the page store and its collaborators.
//
// ConfigurationError and InvalidOperation conditions are reported by
// wrapping one of these with fmt.Errorf("...: %w", ...) at the call site
// that detected them, so callers can still errors.Is against the sentinel.
var (
	// ErrInvalidPageSize is a ConfigurationError: page_size must be a
	// positive multiple of 4096.
	ErrInvalidPageSize = errors.New("pagestore: page size must be a positive multiple of 4096")

	// ErrMissingFile is a ConfigurationError: the store is readonly and
	// the underlying file does not exist.
	ErrMissingFile = errors.New("pagestore: file does not exist and store is readonly")

	// ErrReadonly is an InvalidOperation: create/write/commit attempted
	// on a readonly store.
	ErrReadonly = errors.New("pagestore: store is readonly")

	// ErrFixedPage is an InvalidOperation: write attempted against a
	// page id below new_page_offset (already committed).
	ErrFixedPage = errors.New("pagestore: write to fixed page")

	// ErrUnreservedPage is an InvalidOperation: write or retrieve
	// attempted against a page id that has not been created yet.
	ErrUnreservedPage = errors.New("pagestore: write to unreserved page")

	// ErrDisposed is returned by any operation attempted after Dispose.
	ErrDisposed = errors.New("pagestore: store is disposed")

	// ErrWriterClosed is returned by BackgroundPageWriter operations
	// after Shutdown/Dispose.
	ErrWriterClosed = errors.New("pagestore: background writer is closed")

	// ErrInvalidPageID is returned when a page is constructed with id 0;
	// ids are 1-based.
	ErrInvalidPageID = errors.New("pagestore: invalid page id")

	// ErrInvalidOffset is returned for negative offsets against a backend.
	ErrInvalidOffset = errors.New("pagestore: invalid offset")
)
