package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brightpage/pagestore/pkg/pagestore"
)

var (
	flagHelp     bool
	flagInMemory bool
	flagPath     string
	flagPages    int
	flagBench    string
	flagQueue    int
)

func init() {
	flag.BoolVar(&flagHelp, "help", false, "Show help")
	flag.BoolVar(&flagHelp, "h", false, "Show help (short)")
	flag.BoolVar(&flagInMemory, "memory", true, "Use an in-memory backend")
	flag.StringVar(&flagPath, "path", "bench.pages", "Page file path (disk mode only)")
	flag.IntVar(&flagPages, "pages", 10000, "Number of pages for benchmarks")
	flag.StringVar(&flagBench, "bench", "all", "Benchmark to run: all, create, write, retrieve, commit")
	flag.IntVar(&flagQueue, "queue-depth", pagestore.DefaultQueueDepth, "Background writer queue depth")
}

func main() {
	flag.Parse()

	if flagHelp {
		printHelp()
		os.Exit(0)
	}
	runBenchmarks()
}

func printHelp() {
	fmt.Print(`
pagestore Benchmark Tool

Usage:
  pagestore-bench [options]

Options:
  -h, -help           Show this help message
  -memory             Use an in-memory backend (default: true)
  -path <path>        Page file path (disk mode only)
  -pages <n>          Number of pages (default: 10000)
  -bench <name>       Benchmark to run: all, create, write, retrieve, commit
  -queue-depth <n>    Background writer queue depth

Examples:
  pagestore-bench
  pagestore-bench -pages 50000
  pagestore-bench -bench write -memory=false -path ./bench.pages
`)
}

func openStore() *pagestore.Store {
	var backend pagestore.PersistenceBackend
	path := flagPath
	if flagInMemory {
		backend = pagestore.NewMemoryBackend()
		path = "bench"
	} else {
		backend = pagestore.NewDiskBackend()
	}

	store, err := pagestore.Open(backend, path, pagestore.NewConfig(
		pagestore.WithQueueDepth(flagQueue),
		pagestore.WithCache(pagestore.NewPageCache(flagPages+1)),
	))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	return store
}

func runBenchmarks() {
	fmt.Printf("pagestore Benchmark Tool\n")
	fmt.Printf("========================\n")
	fmt.Printf("Pages: %d\n", flagPages)
	fmt.Printf("Mode: %s\n", func() string {
		if flagInMemory {
			return "in-memory"
		}
		return "disk"
	}())
	fmt.Println()

	switch flagBench {
	case "all":
		runCreateBenchmark()
		runWriteBenchmark()
		runRetrieveBenchmark()
		runCommitBenchmark()
	case "create":
		runCreateBenchmark()
	case "write":
		runWriteBenchmark()
	case "retrieve":
		runRetrieveBenchmark()
	case "commit":
		runCommitBenchmark()
	default:
		fmt.Printf("Unknown benchmark: %s\n", flagBench)
	}
}

func reportRate(label string, n int, elapsed time.Duration) {
	ops := float64(n) / elapsed.Seconds()
	fmt.Printf("%s - Time: %v\n", label, elapsed)
	fmt.Printf("Ops/sec: %.2f\n", ops)
	fmt.Printf("Avg time/op: %.2f ns\n", float64(elapsed.Nanoseconds())/float64(n))
	fmt.Println()
}

func runCreateBenchmark() {
	fmt.Println("=== Create Benchmark ===")
	store := openStore()
	defer store.Close()

	start := time.Now()
	for i := 0; i < flagPages; i++ {
		if _, err := store.Create(1); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
	}
	reportRate("Create", flagPages, time.Since(start))
}

func runWriteBenchmark() {
	fmt.Println("=== Write Benchmark ===")
	store := openStore()
	defer store.Close()

	ids := make([]uint64, flagPages)
	for i := range ids {
		page, err := store.Create(1)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		ids[i] = page.ID()
	}

	payload := []byte("benchmark-payload")
	start := time.Now()
	for _, id := range ids {
		if err := store.Write(1, id, payload, 0, 0, len(payload)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
	}
	reportRate("Write", flagPages, time.Since(start))
}

func runCommitBenchmark() {
	fmt.Println("=== Commit Benchmark ===")
	store := openStore()
	defer store.Close()

	for i := 0; i < flagPages; i++ {
		if _, err := store.Create(1); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
	}

	start := time.Now()
	if err := store.Commit(1); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	elapsed := time.Since(start)
	fmt.Printf("Commit (%d pages) - Time: %v\n", flagPages, elapsed)
	fmt.Println()
}

func runRetrieveBenchmark() {
	fmt.Println("=== Retrieve Benchmark ===")
	store := openStore()
	defer store.Close()

	ids := make([]uint64, flagPages)
	for i := range ids {
		page, err := store.Create(1)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		ids[i] = page.ID()
	}
	if err := store.Commit(1); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}

	start := time.Now()
	for _, id := range ids {
		if _, err := store.Retrieve(id); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
	}
	reportRate("Retrieve", flagPages, time.Since(start))

	stats := store.SnapshotStats()
	fmt.Printf("cache hits/misses: %d/%d\n", stats.Cache.Hits, stats.Cache.Misses)
	fmt.Println()
}
