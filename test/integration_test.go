package test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/brightpage/pagestore/pkg/graphstore"
	"github.com/brightpage/pagestore/pkg/pagestore"
)

func TestConcurrentRetrieves(t *testing.T) {
	backend := pagestore.NewMemoryBackend()
	store, err := pagestore.Open(backend, "concurrent", pagestore.NewConfig(pagestore.WithCache(pagestore.NewPageCache(256))))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	numPages := 100
	ids := make([]uint64, numPages)
	for i := 0; i < numPages; i++ {
		page, err := store.Create(1)
		if err != nil {
			t.Fatalf("Failed to create page: %v", err)
		}
		if err := page.SetData([]byte(fmt.Sprintf("page-%d", i)), 0, 0, len(fmt.Sprintf("page-%d", i))); err != nil {
			t.Fatalf("Failed to set data: %v", err)
		}
		ids[i] = page.ID()
	}
	if err := store.Commit(1); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}

	numGoroutines := 10
	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines*numPages)

	for g := 0; g < numGoroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, id := range ids {
				if _, err := store.Retrieve(id); err != nil {
					errs <- err
				}
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Retrieve error: %v", err)
	}
}

func TestReopenAfterCrashAbandonsPartialTailPage(t *testing.T) {
	backend := pagestore.NewMemoryBackend()
	if err := backend.CreateFile("crashy"); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	// Simulate a process that died mid-write: a whole page plus a partial
	// trailing page that never finished.
	w, err := backend.OpenForAppendOrOpen("crashy")
	if err != nil {
		t.Fatalf("Failed to open for append: %v", err)
	}
	full := make([]byte, pagestore.DefaultPageSize)
	full[0] = 0x9
	if _, err := w.WriteAt(full, 0); err != nil {
		t.Fatalf("Failed to write full page: %v", err)
	}
	partial := make([]byte, 10)
	if _, err := w.WriteAt(partial, int64(pagestore.DefaultPageSize)); err != nil {
		t.Fatalf("Failed to write partial tail: %v", err)
	}
	if err := w.Sync(); err != nil {
		t.Fatalf("Failed to sync: %v", err)
	}
	w.Close()

	store, err := pagestore.Open(backend, "crashy", pagestore.NewConfig(pagestore.WithCache(pagestore.NewPageCache(8))))
	if err != nil {
		t.Fatalf("expected Open to abandon the partial tail rather than fail: %v", err)
	}
	defer store.Close()

	page, err := store.Retrieve(1)
	if err != nil {
		t.Fatalf("Failed to retrieve the one whole page that survived the crash: %v", err)
	}
	if page.Data()[0] != 0x9 {
		t.Fatalf("expected surviving page's byte 0 to be 0x9, got %#x", page.Data()[0])
	}
}

func TestGraphstoreFactsThroughCommitCycle(t *testing.T) {
	backend := pagestore.NewMemoryBackend()
	gs, err := graphstore.Open(backend, "facts", &graphstore.Options{
		PageSize: pagestore.MinPageSize,
		Cache:    pagestore.NewPageCache(128),
	})
	if err != nil {
		t.Fatalf("Failed to open graphstore: %v", err)
	}
	defer gs.Close()

	numFacts := 500
	var want []graphstore.Fact
	for i := 0; i < numFacts; i++ {
		f := graphstore.Fact{Subject: uint64(i), Predicate: uint64(i % 7), Object: uint64(i * 2)}
		want = append(want, f)
		if err := gs.PutFact(f); err != nil {
			t.Fatalf("Failed to put fact %d: %v", i, err)
		}
	}

	got, err := gs.Facts()
	if err != nil {
		t.Fatalf("Failed to read facts: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d facts, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("fact %d mismatch: want %+v got %+v", i, want[i], got[i])
		}
	}

	stats := gs.PageStats()
	t.Logf("graphstore wrote %d pages across the run", stats.NextPageID-1)
}

func TestEvictionCooperationUnderMemoryPressure(t *testing.T) {
	backend := pagestore.NewMemoryBackend()
	cache := pagestore.NewPageCache(4)
	store, err := pagestore.Open(backend, "pressure", pagestore.NewConfig(pagestore.WithCache(cache)))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	// Commit far more pages than the cache can hold; cached committed
	// pages must always remain retrievable even after eviction.
	numPages := 50
	ids := make([]uint64, numPages)
	for i := 0; i < numPages; i++ {
		page, err := store.Create(1)
		if err != nil {
			t.Fatalf("Failed to create page: %v", err)
		}
		ids[i] = page.ID()
	}
	if err := store.Commit(1); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}

	for _, id := range ids {
		if _, err := store.Retrieve(id); err != nil {
			t.Fatalf("Retrieve %d failed after eviction pressure: %v", id, err)
		}
	}

	stats := store.SnapshotStats()
	if stats.Cache.Evicted == 0 {
		t.Fatal("expected at least one eviction under this much memory pressure")
	}
}

func TestBackgroundWriterDrainsBeforeShutdownCompletes(t *testing.T) {
	backend := pagestore.NewMemoryBackend()
	store, err := pagestore.Open(backend, "drain", pagestore.NewConfig(
		pagestore.WithCache(pagestore.NewPageCache(64)),
		pagestore.WithQueueDepth(2),
	))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	for i := 0; i < 20; i++ {
		page, err := store.Create(1)
		if err != nil {
			t.Fatalf("Failed to create page: %v", err)
		}
		if err := store.Write(1, page.ID(), []byte{byte(i)}, 0, 0, 1); err != nil {
			t.Fatalf("Failed to write page: %v", err)
		}
	}
	if err := store.Commit(1); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	reopened, err := pagestore.Open(backend, "drain", pagestore.NewConfig(pagestore.WithCache(pagestore.NewPageCache(64))))
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	for i := 0; i < 20; i++ {
		page, err := reopened.Retrieve(uint64(i + 1))
		if err != nil {
			t.Fatalf("Failed to retrieve page %d after reopen: %v", i+1, err)
		}
		if page.Data()[0] != byte(i) {
			t.Fatalf("page %d: expected byte %d, got %d", i+1, i, page.Data()[0])
		}
	}
}

func TestLargeCommitBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping large commit batch test in short mode")
	}

	backend := pagestore.NewMemoryBackend()
	store, err := pagestore.Open(backend, "large", pagestore.NewConfig(pagestore.WithCache(pagestore.NewPageCache(20000))))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	numPages := 10000
	start := time.Now()
	for i := 0; i < numPages; i++ {
		if _, err := store.Create(1); err != nil {
			t.Fatalf("Failed to create page %d: %v", i, err)
		}
	}
	if err := store.Commit(1); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
	t.Logf("Committed %d pages in %v (%.0f pages/sec)", numPages, time.Since(start), float64(numPages)/time.Since(start).Seconds())

	stats := store.SnapshotStats()
	if stats.NextPageID != uint64(numPages+1) {
		t.Errorf("Expected next page id %d, got %d", numPages+1, stats.NextPageID)
	}
}
