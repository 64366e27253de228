package pagestore

import (
	"fmt"
	"io"
	"sync"
)

// ToEnd tells SetData to copy from srcOffset through the end of src,
// rather than a fixed length.
const ToEnd = -1

// Page is a fixed-size, identified byte buffer. A page is either loaded
// (read from a file, immutable) or new (allocated by Store.Create,
// mutable until commit). Content is opaque to this layer: no header, no
// footer, no checksum.
type Page struct {
	mu                   sync.RWMutex
	id                   uint64
	data                 []byte
	dirty                bool
	committedTransaction uint64
}

// NewLoadedPage reads exactly len(buf) == pageSize bytes from src at the
// offset implied by id (1-based: offset = (id-1) * pageSize) and returns
// an immutable loaded page.
func NewLoadedPage(src io.ReaderAt, id uint64, pageSize uint32) (*Page, error) {
	if id == 0 {
		return nil, fmt.Errorf("pagestore: %w: page id must be >= 1", ErrInvalidPageID)
	}
	data := make([]byte, pageSize)
	offset := int64(id-1) * int64(pageSize)
	if _, err := src.ReadAt(data, offset); err != nil {
		return nil, fmt.Errorf("pagestore: read page %d: %w", id, err)
	}
	return &Page{id: id, data: data}, nil
}

// NewEmptyPage allocates a zero-filled page of the given id and size. It
// is used by Store.Create to reserve a new, mutable page.
func NewEmptyPage(id uint64, pageSize uint32) *Page {
	return &Page{id: id, data: make([]byte, pageSize)}
}

// ID returns the page's 1-based identifier.
func (p *Page) ID() uint64 {
	return p.id
}

// Size returns the length of the page's buffer.
func (p *Page) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.data)
}

// Data returns the page's current bytes. Callers must not mutate the
// returned slice; use SetData to mutate through the dirty-tracking path.
func (p *Page) Data() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.data
}

// SetData copies length bytes from src[srcOffset:] into the page buffer
// starting at pageOffset, and marks the page dirty. length == ToEnd means
// "copy from srcOffset through the end of src".
func (p *Page) SetData(src []byte, srcOffset, pageOffset, length int) error {
	if srcOffset < 0 || srcOffset > len(src) {
		return fmt.Errorf("pagestore: src offset %d out of range", srcOffset)
	}
	if length == ToEnd {
		length = len(src) - srcOffset
	}
	if length < 0 {
		return fmt.Errorf("pagestore: negative copy length %d", length)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if pageOffset < 0 || pageOffset+length > len(p.data) {
		return fmt.Errorf("pagestore: page offset/length %d/%d out of range for page size %d", pageOffset, length, len(p.data))
	}
	copy(p.data[pageOffset:pageOffset+length], src[srcOffset:srcOffset+length])
	p.dirty = true
	return nil
}

// WriteTo writes the page's current bytes to sink at its positional
// offset and records txnID as the committed transaction. Writing is
// always positional (seek-then-write via WriteAt); pages are not
// necessarily written in id order.
func (p *Page) WriteTo(sink io.WriterAt, txnID uint64) error {
	p.mu.Lock()
	data := make([]byte, len(p.data))
	copy(data, p.data)
	id := p.id
	p.mu.Unlock()

	offset := int64(id-1) * int64(len(data))
	if _, err := sink.WriteAt(data, offset); err != nil {
		return fmt.Errorf("pagestore: write page %d: %w", id, err)
	}

	p.mu.Lock()
	p.dirty = false
	p.committedTransaction = txnID
	p.mu.Unlock()
	return nil
}

// IsDirty reports whether the page has been mutated since it was loaded
// or since its last successful WriteTo.
func (p *Page) IsDirty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dirty
}

// CommittedTransaction returns the id of the transaction that last wrote
// this page to disk, or 0 if it has never been written.
func (p *Page) CommittedTransaction() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.committedTransaction
}

// clone returns a new page with id newID and a copy of this page's
// bytes. Used by Store.GetWritablePage's copy-on-write path.
func (p *Page) clone(newID uint64) *Page {
	p.mu.RLock()
	defer p.mu.RUnlock()
	data := make([]byte, len(p.data))
	copy(data, p.data)
	return &Page{id: newID, data: data}
}
