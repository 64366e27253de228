package pagestore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, backend PersistenceBackend, path string, opts ...Option) *Store {
	t.Helper()
	cfg := NewConfig(append([]Option{WithCache(NewPageCache(64))}, opts...)...)
	s, err := Open(backend, path, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_CreateCommitReopen(t *testing.T) {
	backend := NewMemoryBackend()

	s := openTestStore(t, backend, "db")
	page, err := s.Create(1)
	require.NoError(t, err)
	require.NoError(t, page.SetData([]byte("hello"), 0, 0, 5))
	require.NoError(t, s.Commit(1))
	require.NoError(t, s.Close())

	reopened, err := Open(backend, "db", NewConfig(WithCache(NewPageCache(64))))
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Retrieve(1)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), loaded.Data()[:5])
}

func TestStore_TwoPagesOneCommit(t *testing.T) {
	backend := NewMemoryBackend()
	s := openTestStore(t, backend, "db")

	p1, err := s.Create(1)
	require.NoError(t, err)
	p2, err := s.Create(1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), p1.ID())
	require.Equal(t, uint64(2), p2.ID())

	require.NoError(t, p1.SetData([]byte{1}, 0, 0, 1))
	require.NoError(t, p2.SetData([]byte{2}, 0, 0, 1))
	require.NoError(t, s.Commit(1))

	got1, err := s.Retrieve(1)
	require.NoError(t, err)
	got2, err := s.Retrieve(2)
	require.NoError(t, err)
	require.Equal(t, byte(1), got1.Data()[0])
	require.Equal(t, byte(2), got2.Data()[0])
}

func TestStore_RewriteBeforeCommitKeepsLastWrite(t *testing.T) {
	backend := NewMemoryBackend()
	s := openTestStore(t, backend, "db")

	page, err := s.Create(1)
	require.NoError(t, err)
	require.NoError(t, page.SetData([]byte{1}, 0, 0, 1))
	require.NoError(t, s.Write(1, page.ID(), []byte{2}, 0, 0, 1))
	require.NoError(t, s.Commit(1))

	got, err := s.Retrieve(page.ID())
	require.NoError(t, err)
	require.Equal(t, byte(2), got.Data()[0])
}

func TestStore_WriteToFixedPageRejected(t *testing.T) {
	backend := NewMemoryBackend()
	s := openTestStore(t, backend, "db")

	page, err := s.Create(1)
	require.NoError(t, err)
	require.NoError(t, page.SetData([]byte{9}, 0, 0, 1))
	require.NoError(t, s.Commit(1))

	err = s.Write(2, page.ID(), []byte{1}, 0, 0, 1)
	require.ErrorIs(t, err, ErrFixedPage)
}

func TestStore_WriteToUnreservedPageRejected(t *testing.T) {
	backend := NewMemoryBackend()
	s := openTestStore(t, backend, "db")

	err := s.Write(1, 999, []byte{1}, 0, 0, 1)
	require.ErrorIs(t, err, ErrUnreservedPage)

	_, err = s.Retrieve(999)
	require.ErrorIs(t, err, ErrUnreservedPage)
}

func TestStore_GetWritablePageCopiesOnWrite(t *testing.T) {
	backend := NewMemoryBackend()
	s := openTestStore(t, backend, "db")

	page, err := s.Create(1)
	require.NoError(t, err)
	require.NoError(t, page.SetData([]byte{1}, 0, 0, 1))
	require.NoError(t, s.Commit(1))

	committed, err := s.Retrieve(page.ID())
	require.NoError(t, err)
	require.False(t, s.IsWritable(committed))

	writable, err := s.GetWritablePage(2, committed)
	require.NoError(t, err)
	require.NotEqual(t, committed.ID(), writable.ID())
	require.True(t, s.IsWritable(writable))

	// Getting a writable page for an already-writable page is a no-op.
	again, err := s.GetWritablePage(2, writable)
	require.NoError(t, err)
	require.Same(t, writable, again)
}

func TestStore_EvictionCooperationWithNoBackgroundWriter(t *testing.T) {
	backend := NewMemoryBackend()
	cache := NewPageCache(64)
	s := openTestStore(t, backend, "db", WithCache(cache), WithoutBackgroundWrites())

	page, err := s.Create(1)
	require.NoError(t, err)
	require.NoError(t, page.SetData([]byte{1}, 0, 0, 1))

	// Uncommitted and no background writer: eviction must be cancelled.
	cancel := s.BeforeEvict(s.partition, page.ID())
	require.True(t, cancel)
}

func TestStore_BeforeEvict_FirstWritablePage(t *testing.T) {
	// Regression test for an off-by-one: the very first writable page id
	// (== new_page_offset) must be treated as uncommitted by BeforeEvict,
	// not as already-committed.
	backend := NewMemoryBackend()
	s := openTestStore(t, backend, "db", WithoutBackgroundWrites())

	page, err := s.Create(1)
	require.NoError(t, err)
	require.Equal(t, s.newPageOffset, page.ID())

	cancel := s.BeforeEvict(s.partition, page.ID())
	require.True(t, cancel, "the first writable page id must not be mistaken for committed")
}

func TestStore_BeforeEvict_QueuesToWriterWhenAvailable(t *testing.T) {
	backend := NewMemoryBackend()
	s := openTestStore(t, backend, "db")

	page, err := s.Create(1)
	require.NoError(t, err)
	require.NoError(t, page.SetData([]byte{1}, 0, 0, 1))

	cancel := s.BeforeEvict(s.partition, page.ID())
	require.False(t, cancel, "with a background writer present, eviction should proceed")
}

func TestStore_CommitWithNoPendingPagesIsNoop(t *testing.T) {
	backend := NewMemoryBackend()
	s := openTestStore(t, backend, "db")
	require.NoError(t, s.Commit(1))
}

func TestStore_ReadonlyRejectsMutation(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.CreateFile("db"))

	s := openTestStore(t, backend, "db", WithReadonly())
	_, err := s.Create(1)
	require.ErrorIs(t, err, ErrReadonly)
}

func TestStore_OpenMissingReadonlyFails(t *testing.T) {
	backend := NewMemoryBackend()
	_, err := Open(backend, "missing", NewConfig(WithReadonly(), WithCache(NewPageCache(8))))
	require.ErrorIs(t, err, ErrMissingFile)
}

func TestStore_OpenRejectsInvalidPageSize(t *testing.T) {
	backend := NewMemoryBackend()
	_, err := Open(backend, "db", NewConfig(WithPageSize(100), WithCache(NewPageCache(8))))
	require.ErrorIs(t, err, ErrInvalidPageSize)
}

func TestStore_OpenRoundsDownPartialTailPage(t *testing.T) {
	// A crashed writer can leave a trailing tail shorter than page_size;
	// Open must round the usable length down rather than reject the file.
	backend := NewMemoryBackend()
	require.NoError(t, backend.CreateFile("db"))
	w, err := backend.OpenForAppendOrOpen("db")
	require.NoError(t, err)

	full := make([]byte, DefaultPageSize)
	full[0] = 0x42
	_, err = w.WriteAt(full, 0)
	require.NoError(t, err)
	// Partial trailing bytes: less than one whole page.
	_, err = w.WriteAt([]byte{1, 2, 3}, int64(DefaultPageSize))
	require.NoError(t, err)
	require.NoError(t, w.Sync())

	s, err := Open(backend, "db", NewConfig(WithCache(NewPageCache(8))))
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, uint64(2), s.nextPageID)
	page, err := s.Retrieve(1)
	require.NoError(t, err)
	require.Equal(t, byte(0x42), page.Data()[0])
}

func TestStore_DiskBackendSurvivesWriterRestartAcrossCommits(t *testing.T) {
	// The background writer's sink is disposed and recreated after every
	// commit; on a real file handle (unlike MemoryBackend's no-op Close)
	// a bug here leaves the next commit writing through a closed fd.
	backend := NewDiskBackend()
	path := filepath.Join(t.TempDir(), "db")

	s := openTestStore(t, backend, path)

	first, err := s.Create(1)
	require.NoError(t, err)
	require.NoError(t, first.SetData([]byte{1}, 0, 0, 1))
	require.NoError(t, s.Commit(1))

	second, err := s.Create(2)
	require.NoError(t, err)
	require.NoError(t, second.SetData([]byte{2}, 0, 0, 1))
	require.NoError(t, s.Commit(2))

	got1, err := s.Retrieve(first.ID())
	require.NoError(t, err)
	got2, err := s.Retrieve(second.ID())
	require.NoError(t, err)
	require.Equal(t, byte(1), got1.Data()[0])
	require.Equal(t, byte(2), got2.Data()[0])

	require.NoError(t, s.Close())
}

func TestStore_RetrieveAfterDisposeFails(t *testing.T) {
	backend := NewMemoryBackend()
	cfg := NewConfig(WithCache(NewPageCache(8)))
	s, err := Open(backend, "db", cfg)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Retrieve(1)
	require.ErrorIs(t, err, ErrDisposed)

	_, err = s.Create(1)
	require.ErrorIs(t, err, ErrDisposed)
}

func TestStore_SnapshotStatsRoundTripsThroughMsgpack(t *testing.T) {
	backend := NewMemoryBackend()
	s := openTestStore(t, backend, "db")

	page, err := s.Create(1)
	require.NoError(t, err)
	require.NoError(t, page.SetData([]byte{1}, 0, 0, 1))
	require.NoError(t, s.Commit(1))

	stats := s.SnapshotStats()
	require.Equal(t, "db", stats.Path)
	require.NotNil(t, stats.Writer)

	encoded, err := stats.Encode()
	require.NoError(t, err)
	decoded, err := DecodeStats(encoded)
	require.NoError(t, err)
	require.Equal(t, stats.Path, decoded.Path)
	require.Equal(t, stats.NextPageID, decoded.NextPageID)
}
