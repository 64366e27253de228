// Package graphstore is a minimal sample consumer of pagestore.Store: a
// fact log that appends fixed-size encoded triples to pages. It stands
// in for a higher-level graph/triple database built on top of the page
// store, cut down to the one thing needed to prove the PageStore
// contract is usable end to end — not a query engine. There is no
// schema, no index, and no query language here.
package graphstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/brightpage/pagestore/pkg/pagestore"
)

// factSize is the fixed on-disk width of one encoded fact: three
// uint64 ids (subject, predicate, object).
const factSize = 24

// cursorSize is the width of the free-space cursor kept at the start of
// every page this store writes: how many bytes after the cursor are
// already occupied by facts.
const cursorSize = 8

var (
	// ErrClosed is returned by any Store operation after Close.
	ErrClosed = errors.New("graphstore: store is closed")

	// ErrFactTooLarge would be returned if a page could never hold a
	// single fact; unreachable with pagestore's minimum page size but
	// checked explicitly rather than assumed.
	ErrFactTooLarge = errors.New("graphstore: page too small for one fact")
)

// Fact is a subject-predicate-object triple, the unit this store
// appends and iterates.
type Fact struct {
	Subject   uint64
	Predicate uint64
	Object    uint64
}

// Options configures a Store, following pagestore.Config's plain-struct
// shape.
type Options struct {
	PageSize uint32
	Cache    *pagestore.PageCache
}

// DefaultOptions returns the baseline Options.
func DefaultOptions() *Options {
	return &Options{PageSize: pagestore.DefaultPageSize}
}

// Store is an append-only fact log built directly on a pagestore.Store.
// Facts are packed into the active (last-created) page until it is full,
// at which point a new page is created and becomes active. Updating the
// active page's cursor goes through GetWritablePage; since every PutFact
// commits, the active page is always committed by the next PutFact, so
// each append copies it to a new page id.
//
// Each page in a segment is a copy-on-write snapshot of the one before
// it, so only the newest page of a segment holds the segment's complete
// fact set; earlier copies are append-only history an observer never
// needs to read directly. segments records the final (full) page id of
// every segment that has already rolled over; activeID is the current,
// still-growing segment. This index is kept in memory only — it does
// not survive a process restart, unlike the underlying pagestore.Store,
// which is why graphstore is documented as a sample consumer and not
// part of the durable core: indexing over the page store is a
// higher-level transactional concern this package deliberately leaves
// out.
type Store struct {
	pages      *pagestore.Store
	pageSize   uint32
	txnCounter uint64
	activeID   uint64
	segments   []uint64
	closed     bool
}

// Open opens or creates a fact log at path on backend.
func Open(backend pagestore.PersistenceBackend, path string, opts *Options) (*Store, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.PageSize < cursorSize+factSize {
		return nil, ErrFactTooLarge
	}

	pageOpts := []pagestore.Option{pagestore.WithPageSize(opts.PageSize)}
	if opts.Cache != nil {
		pageOpts = append(pageOpts, pagestore.WithCache(opts.Cache))
	}

	ps, err := pagestore.Open(backend, path, pagestore.NewConfig(pageOpts...))
	if err != nil {
		return nil, fmt.Errorf("graphstore: open %s: %w", path, err)
	}

	s := &Store{
		pages:    ps,
		pageSize: opts.PageSize,
	}

	if err := s.ensureActivePage(); err != nil {
		ps.Close()
		return nil, err
	}

	return s, nil
}

// nextTxnID allocates a monotonically increasing commit id using an
// atomic counter.
func (s *Store) nextTxnID() uint64 {
	return atomic.AddUint64(&s.txnCounter, 1)
}

func (s *Store) ensureActivePage() error {
	if s.activeID != 0 {
		return nil
	}
	txnID := s.nextTxnID()
	page, err := s.pages.Create(txnID)
	if err != nil {
		return fmt.Errorf("graphstore: allocate page: %w", err)
	}
	if err := page.SetData(make([]byte, cursorSize), 0, 0, cursorSize); err != nil {
		return fmt.Errorf("graphstore: initialize cursor: %w", err)
	}
	s.activeID = page.ID()
	return s.pages.Commit(txnID)
}

func cursorOf(page *pagestore.Page) int {
	return int(binary.LittleEndian.Uint64(page.Data()[:cursorSize]))
}

// PutFact appends f to the fact log. It copy-on-writes the active
// segment's page (so the previous page id, now immutable, becomes part
// of that segment's append-only history), rolling over to a fresh empty
// segment when the current one has no room left, and commits the write.
func (s *Store) PutFact(f Fact) error {
	if s.closed {
		return ErrClosed
	}

	page, err := s.pages.Retrieve(s.activeID)
	if err != nil {
		return fmt.Errorf("graphstore: retrieve active page: %w", err)
	}

	writable, err := s.pages.GetWritablePage(s.nextTxnID(), page)
	if err != nil {
		return fmt.Errorf("graphstore: get writable page: %w", err)
	}

	cursor := cursorOf(writable)
	if cursorSize+cursor+factSize > int(s.pageSize) {
		s.segments = append(s.segments, s.activeID)

		txnID := s.nextTxnID()
		fresh, err := s.pages.Create(txnID)
		if err != nil {
			return fmt.Errorf("graphstore: allocate page: %w", err)
		}
		if err := fresh.SetData(make([]byte, cursorSize), 0, 0, cursorSize); err != nil {
			return err
		}
		if err := s.pages.Commit(txnID); err != nil {
			return fmt.Errorf("graphstore: commit page rollover: %w", err)
		}
		s.activeID = fresh.ID()
		return s.PutFact(f)
	}

	buf := make([]byte, factSize)
	binary.LittleEndian.PutUint64(buf[0:8], f.Subject)
	binary.LittleEndian.PutUint64(buf[8:16], f.Predicate)
	binary.LittleEndian.PutUint64(buf[16:24], f.Object)

	if err := writable.SetData(buf, 0, cursorSize+cursor, factSize); err != nil {
		return fmt.Errorf("graphstore: write fact: %w", err)
	}

	newCursor := make([]byte, cursorSize)
	binary.LittleEndian.PutUint64(newCursor, uint64(cursor+factSize))
	if err := writable.SetData(newCursor, 0, 0, cursorSize); err != nil {
		return fmt.Errorf("graphstore: update cursor: %w", err)
	}

	txnID := s.nextTxnID()
	s.activeID = writable.ID()
	return s.pages.Commit(txnID)
}

// Facts returns every fact stored in the log, in append order: the
// retired segments in order, followed by the still-open active segment.
// It is a full scan; there is no index, by design.
func (s *Store) Facts() ([]Fact, error) {
	if s.closed {
		return nil, ErrClosed
	}

	var facts []Fact
	ids := make([]uint64, 0, len(s.segments)+1)
	ids = append(ids, s.segments...)
	ids = append(ids, s.activeID)

	for _, id := range ids {
		page, err := s.pages.Retrieve(id)
		if err != nil {
			return nil, fmt.Errorf("graphstore: retrieve page %d: %w", id, err)
		}
		data := page.Data()
		cursor := cursorOf(page)
		for off := cursorSize; off+factSize <= cursorSize+cursor; off += factSize {
			facts = append(facts, Fact{
				Subject:   binary.LittleEndian.Uint64(data[off : off+8]),
				Predicate: binary.LittleEndian.Uint64(data[off+8 : off+16]),
				Object:    binary.LittleEndian.Uint64(data[off+16 : off+24]),
			})
		}
	}
	return facts, nil
}

// PageStats exposes the underlying pagestore.Store's diagnostic snapshot,
// so a graphstore consumer can report storage-tier health without
// importing pagestore directly.
func (s *Store) PageStats() pagestore.Stats {
	return s.pages.SnapshotStats()
}

// Close closes the underlying page store.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.pages.Close()
}
