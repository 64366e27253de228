package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/brightpage/pagestore/pkg/pagestore"
)

var (
	flagHelp     bool
	flagPath     string
	flagPageSize uint
	flagReadonly bool
)

func init() {
	flag.BoolVar(&flagHelp, "help", false, "Show help")
	flag.BoolVar(&flagHelp, "h", false, "Show help (short)")
	flag.StringVar(&flagPath, "path", "", "Page file path (required)")
	flag.UintVar(&flagPageSize, "page-size", pagestore.DefaultPageSize, "Page size in bytes")
	flag.BoolVar(&flagReadonly, "readonly", false, "Open the store readonly")
}

func main() {
	flag.Parse()

	if flagHelp || flagPath == "" {
		printHelp()
		if flagPath == "" && !flagHelp {
			os.Exit(1)
		}
		os.Exit(0)
	}

	backend := pagestore.NewDiskBackend()
	opts := []pagestore.Option{pagestore.WithPageSize(uint32(flagPageSize))}
	if flagReadonly {
		opts = append(opts, pagestore.WithReadonly())
	}

	store, err := pagestore.Open(backend, flagPath, pagestore.NewConfig(opts...))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	runInteractive(store)
}

func printHelp() {
	fmt.Print(`
pagestore CLI

Usage:
  pagestore-cli -path <file> [options]

Options:
  -h, -help           Show this help message
  -path <path>        Page file path (required)
  -page-size <n>      Page size in bytes (default: 4096)
  -readonly           Open the store readonly

Interactive Commands:
  create                        Allocate a new page, print its id
  write <id> <offset> <text>    Write text into page id at offset
  get <id>                      Print the first 64 bytes of page id as hex
  commit                        Commit all pending pages
  stats                         Print a stats snapshot
  .quit, .exit                  Exit the CLI
  .help                         Show this help
`)
}

func runInteractive(store *pagestore.Store) {
	reader := bufio.NewReader(os.Stdin)
	var pendingTxn uint64 = 1

	fmt.Println("pagestore interactive CLI")
	fmt.Println("Type '.help' for commands, '.quit' to exit")
	fmt.Println()

	for {
		fmt.Print("pagestore> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case line == ".quit" || line == ".exit":
			fmt.Println("Goodbye!")
			return
		case line == ".help":
			printHelp()
		case line == "create":
			page, err := store.Create(pendingTxn)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			fmt.Printf("created page %d\n", page.ID())
		case line == "commit":
			if err := store.Commit(pendingTxn); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			pendingTxn++
			fmt.Println("OK")
		case line == "stats":
			printStats(store)
		case strings.HasPrefix(line, "write "):
			runWrite(store, pendingTxn, line)
		case strings.HasPrefix(line, "get "):
			runGet(store, line)
		default:
			fmt.Printf("Unknown command: %s\n", line)
		}
	}
}

func runWrite(store *pagestore.Store, txnID uint64, line string) {
	parts := strings.SplitN(line, " ", 4)
	if len(parts) != 4 {
		fmt.Fprintln(os.Stderr, "usage: write <id> <offset> <text>")
		return
	}
	id, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad page id: %v\n", err)
		return
	}
	offset, err := strconv.Atoi(parts[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad offset: %v\n", err)
		return
	}
	data := []byte(parts[3])
	if err := store.Write(txnID, id, data, 0, offset, len(data)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Println("OK")
}

func runGet(store *pagestore.Store, line string) {
	parts := strings.Fields(line)
	if len(parts) != 2 {
		fmt.Fprintln(os.Stderr, "usage: get <id>")
		return
	}
	id, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad page id: %v\n", err)
		return
	}
	page, err := store.Retrieve(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	data := page.Data()
	n := len(data)
	if n > 64 {
		n = 64
	}
	fmt.Printf("% x\n", data[:n])
}

func printStats(store *pagestore.Store) {
	stats := store.SnapshotStats()
	fmt.Printf("path:            %s\n", stats.Path)
	fmt.Printf("page size:       %d\n", stats.PageSize)
	fmt.Printf("next page id:    %d\n", stats.NextPageID)
	fmt.Printf("new page offset: %d\n", stats.NewPageOffset)
	fmt.Printf("readonly:        %v\n", stats.Readonly)
	fmt.Printf("cache hits/miss: %d/%d\n", stats.Cache.Hits, stats.Cache.Misses)
	fmt.Printf("cache evicted:   %d (cancelled %d)\n", stats.Cache.Evicted, stats.Cache.Cancelled)
	if stats.Writer != nil {
		fmt.Printf("pages written:   %d\n", stats.Writer.PagesWritten)
		fmt.Printf("bytes flushed:   %d\n", stats.Writer.BytesFlushed)
	}
}
