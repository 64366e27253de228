package pagestore

import (
	"fmt"
	"sync"
)

// Store is an AppendOnlyPageStore: once a page at a given id is
// committed, its bytes are immutable; mutations allocate a new id.
// Concurrent Retrieve calls are safe; Create/Write/Commit assume a
// single writer, enforced by the caller.
type Store struct {
	backend   PersistenceBackend
	path      string
	partition Partition

	pageSize uint32

	readonly bool
	config   *Config

	cache *PageCache

	readMu     sync.Mutex
	readHandle ReadHandle

	// writeMu guards the new-page buffer and next/new-page-offset
	// bookkeeping. It does not serialize Retrieve.
	writeMu        sync.Mutex
	nextPageID     uint64
	newPageOffset  uint64
	newPages       []*Page
	writeHandle    WriteHandle
	writer         *BackgroundPageWriter
	disposed       bool
}

// Open opens or creates the page file at path under backend, per Config.
// If the file is absent and the store is writable, it is created empty.
func Open(backend PersistenceBackend, path string, cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = Default()
	}
	if cfg.PageSize == 0 || cfg.PageSize%MinPageSize != 0 {
		return nil, fmt.Errorf("pagestore: %w (got %d)", ErrInvalidPageSize, cfg.PageSize)
	}

	exists, err := backend.FileExists(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		if cfg.Readonly {
			return nil, fmt.Errorf("pagestore: %s: %w", path, ErrMissingFile)
		}
		if err := backend.CreateFile(path); err != nil {
			return nil, err
		}
	}

	readHandle, err := backend.OpenForRead(path)
	if err != nil {
		return nil, err
	}

	size, err := backend.Size(path)
	if err != nil {
		readHandle.Close()
		return nil, err
	}

	// A crashed mid-commit writer can leave a trailing tail shorter than
	// page_size. Per the file-integrity policy, that tail is not an
	// error: it is implicitly abandoned by rounding the usable length
	// down to a whole number of pages.
	pageCount := size / int64(cfg.PageSize)
	nextPageID := uint64(pageCount) + 1

	cache := cfg.Cache
	if cache == nil {
		cache = DefaultPageCache
	}

	s := &Store{
		backend:    backend,
		path:       path,
		partition:  Partition(path),
		pageSize:   cfg.PageSize,
		readonly:   cfg.Readonly,
		config:     cfg,
		cache:      cache,
		readHandle: readHandle,
		nextPageID: nextPageID,
	}

	if !cfg.Readonly {
		s.newPageOffset = nextPageID
		s.newPages = make([]*Page, 0)

		writeHandle, err := backend.OpenForAppendOrOpen(path)
		if err != nil {
			readHandle.Close()
			return nil, err
		}
		s.writeHandle = writeHandle

		if !cfg.DisableBackgroundWrites {
			depth := cfg.QueueDepth
			if depth < 1 {
				depth = DefaultQueueDepth
			}
			s.writer = NewBackgroundPageWriter(writeHandle, depth)
		}
	}

	cache.Subscribe(s.partition, s)

	return s, nil
}

// PageSize returns the store's fixed page size.
func (s *Store) PageSize() uint32 { return s.pageSize }

// CanRead reports whether the store accepts Retrieve calls (always true
// until Dispose).
func (s *Store) CanRead() bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return !s.disposed
}

// CanWrite reports whether the store accepts Create/Write/Commit.
func (s *Store) CanWrite() bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return !s.disposed && !s.readonly
}

// Retrieve returns the page identified by id. If the store is writable
// and id falls in the uncommitted range, the in-memory new page is
// returned directly (same object until the next Commit). Otherwise the
// shared cache is consulted, and failing that the page is loaded from
// disk and cached.
func (s *Store) Retrieve(id uint64) (*Page, error) {
	s.writeMu.Lock()
	if s.disposed {
		s.writeMu.Unlock()
		return nil, ErrDisposed
	}
	if !s.readonly && id >= s.newPageOffset {
		if id >= s.nextPageID {
			s.writeMu.Unlock()
			return nil, fmt.Errorf("pagestore: retrieve %d: %w", id, ErrUnreservedPage)
		}
		page := s.newPages[id-s.newPageOffset]
		s.writeMu.Unlock()
		return page, nil
	}
	s.writeMu.Unlock()

	if page, ok := s.cache.Lookup(s.partition, id); ok {
		return page, nil
	}

	s.readMu.Lock()
	defer s.readMu.Unlock()

	// Another goroutine may have loaded it while we waited on the lock.
	if page, ok := s.cache.Lookup(s.partition, id); ok {
		return page, nil
	}

	page, err := NewLoadedPage(s.readHandle, id, s.pageSize)
	if err != nil {
		return nil, err
	}
	s.cache.InsertOrUpdate(s.partition, page)
	return page, nil
}

// Create allocates a new empty page at the next id and appends it to the
// in-memory new-page buffer. txnID is accepted for interface symmetry
// with non-append-only stores and is not needed for append-only
// creation.
func (s *Store) Create(txnID uint64) (*Page, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.disposed {
		return nil, ErrDisposed
	}
	if s.readonly {
		return nil, fmt.Errorf("pagestore: create: %w", ErrReadonly)
	}

	page := NewEmptyPage(s.nextPageID, s.pageSize)
	s.newPages = append(s.newPages, page)
	s.nextPageID++
	return page, nil
}

// Write mutates the bytes of the uncommitted page at id and, if
// background writing is enabled, queues it to the writer under txnID. A
// page may be written multiple times before commit; only the bytes
// present at commit time are made durable.
func (s *Store) Write(txnID, id uint64, data []byte, srcOffset, pageOffset, length int) error {
	s.writeMu.Lock()
	if s.disposed {
		s.writeMu.Unlock()
		return ErrDisposed
	}
	if s.readonly {
		s.writeMu.Unlock()
		return fmt.Errorf("pagestore: write: %w", ErrReadonly)
	}
	if id < s.newPageOffset {
		s.writeMu.Unlock()
		return fmt.Errorf("pagestore: write %d: %w", id, ErrFixedPage)
	}
	if id >= s.nextPageID {
		s.writeMu.Unlock()
		return fmt.Errorf("pagestore: write %d: %w", id, ErrUnreservedPage)
	}
	page := s.newPages[id-s.newPageOffset]
	writer := s.writer
	s.writeMu.Unlock()

	if err := page.SetData(data, srcOffset, pageOffset, length); err != nil {
		return err
	}
	if writer != nil {
		return writer.QueueWrite(page, txnID)
	}
	return nil
}

// Commit makes every page in the new-page buffer durable and visible to
// subsequent Retrieve calls as a committed page. If a failure occurs,
// new_page_offset is not advanced and new_pages is left in place so the
// caller may retry.
func (s *Store) Commit(txnID uint64) error {
	s.writeMu.Lock()
	if s.disposed {
		s.writeMu.Unlock()
		return ErrDisposed
	}
	if s.readonly {
		s.writeMu.Unlock()
		return fmt.Errorf("pagestore: commit: %w", ErrReadonly)
	}
	pages := s.newPages
	s.writeMu.Unlock()

	if len(pages) == 0 {
		return nil
	}

	if s.writer != nil {
		for _, p := range pages {
			if err := s.writer.QueueWrite(p, txnID); err != nil {
				return err
			}
		}
		if err := s.writer.Flush(); err != nil {
			return err
		}
		if err := s.writer.Shutdown(); err != nil {
			return err
		}
		if err := s.writer.Dispose(); err != nil {
			return err
		}

		// Dispose closed the old sink; reopen it before handing a fresh
		// writer a handle to write through.
		writeHandle, err := s.backend.OpenForAppendOrOpen(s.path)
		if err != nil {
			return fmt.Errorf("pagestore: reopen after commit: %w", err)
		}

		s.writeMu.Lock()
		depth := s.config.QueueDepth
		if depth < 1 {
			depth = DefaultQueueDepth
		}
		s.writeHandle = writeHandle
		s.writer = NewBackgroundPageWriter(writeHandle, depth)
		s.writeMu.Unlock()
	} else {
		for _, p := range pages {
			if err := p.WriteTo(s.writeHandle, txnID); err != nil {
				return err
			}
		}
		if err := s.writeHandle.Sync(); err != nil {
			return fmt.Errorf("pagestore: commit sync: %w", err)
		}
	}

	for _, p := range pages {
		s.cache.InsertOrUpdate(s.partition, p)
	}

	s.writeMu.Lock()
	s.newPages = make([]*Page, 0)
	s.newPageOffset = s.nextPageID
	s.writeMu.Unlock()

	return nil
}

// IsWritable reports whether page is in the store's uncommitted range.
// A readonly store has no uncommitted range, so it reports false.
func (s *Store) IsWritable(page *Page) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return !s.readonly && page.ID() >= s.newPageOffset
}

// GetWritablePage returns page unchanged if it is already writable, or
// otherwise creates a new page, copies page's bytes into it, and returns
// the copy. This is the copy-on-write entry point higher layers use to
// mutate a committed page.
func (s *Store) GetWritablePage(txnID uint64, page *Page) (*Page, error) {
	if s.IsWritable(page) {
		return page, nil
	}

	s.writeMu.Lock()
	if s.disposed {
		s.writeMu.Unlock()
		return nil, ErrDisposed
	}
	if s.readonly {
		s.writeMu.Unlock()
		return nil, fmt.Errorf("pagestore: get writable page: %w", ErrReadonly)
	}
	newID := s.nextPageID
	copied := page.clone(newID)
	s.newPages = append(s.newPages, copied)
	s.nextPageID++
	s.writeMu.Unlock()

	return copied, nil
}

// BeforeEvict implements EvictionHandler. Committed pages (id below
// new_page_offset) may always be evicted, since they can be reloaded
// from disk. An uncommitted writable page (id >= new_page_offset)
// cannot be safely dropped unless a background writer can assume
// durability responsibility for it; with no writer, the eviction is
// cancelled outright.
func (s *Store) BeforeEvict(partition Partition, pageID uint64) bool {
	if partition != s.partition {
		return false
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.disposed || pageID < s.newPageOffset {
		return false
	}

	if s.writer == nil {
		return true // cancel: nowhere safe to put this page but memory
	}

	idx := pageID - s.newPageOffset
	if idx >= uint64(len(s.newPages)) {
		// Not actually one of ours anymore (already committed and
		// re-offset); nothing to protect.
		return false
	}
	page := s.newPages[idx]
	// Sentinel transaction id 0: append-only writes never consult it.
	_ = s.writer.QueueWrite(page, 0)
	return false
}

// Close releases the read stream and, if writable, shuts down and
// disposes the background writer and write handle. After Close, further
// operations fail as if Dispose had been called.
func (s *Store) Close() error {
	s.cache.Unsubscribe(s.partition)

	s.writeMu.Lock()
	if s.disposed {
		s.writeMu.Unlock()
		return nil
	}
	s.disposed = true
	writer := s.writer
	writeHandle := s.writeHandle
	s.writeMu.Unlock()

	var firstErr error
	if err := s.readHandle.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if writer != nil {
		if err := writer.Shutdown(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := writer.Dispose(); err != nil && firstErr == nil {
			firstErr = err
		}
	} else if writeHandle != nil {
		if err := writeHandle.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Dispose is an alias for Close; the two names cover both conventions
// callers reach for when tearing down a store.
func (s *Store) Dispose() error {
	return s.Close()
}

// Stats is a point-in-time diagnostic snapshot of a store and the
// collaborators it owns, msgpack-encodable via Encode.
type Stats struct {
	Path          string       `msgpack:"path"`
	PageSize      uint32       `msgpack:"page_size"`
	NextPageID    uint64       `msgpack:"next_page_id"`
	NewPageOffset uint64       `msgpack:"new_page_offset"`
	Readonly      bool         `msgpack:"readonly"`
	Cache         CacheStats   `msgpack:"cache"`
	Writer        *WriterStats `msgpack:"writer,omitempty"`
}

// SnapshotStats collects the current counters for s and its cache and
// (if present) background writer.
func (s *Store) SnapshotStats() Stats {
	s.writeMu.Lock()
	stats := Stats{
		Path:          s.path,
		PageSize:      s.pageSize,
		NextPageID:    s.nextPageID,
		NewPageOffset: s.newPageOffset,
		Readonly:      s.readonly,
	}
	writer := s.writer
	s.writeMu.Unlock()

	stats.Cache = s.cache.Stats()
	if writer != nil {
		ws := writer.Stats()
		stats.Writer = &ws
	}
	return stats
}
