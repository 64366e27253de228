package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/brightpage/pagestore/pkg/pagestore"
)

var (
	flagHelp bool
	flagFile string
)

func init() {
	flag.BoolVar(&flagHelp, "help", false, "Show help")
	flag.BoolVar(&flagHelp, "h", false, "Show help (short)")
	flag.StringVar(&flagFile, "file", "", "Path to a MessagePack-encoded stats snapshot (required)")
}

func main() {
	flag.Parse()

	if flagHelp || flagFile == "" {
		printHelp()
		if flagFile == "" && !flagHelp {
			os.Exit(1)
		}
		os.Exit(0)
	}

	data, err := os.ReadFile(flagFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", flagFile, err)
		os.Exit(1)
	}

	stats, err := pagestore.DecodeStats(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding stats: %v\n", err)
		os.Exit(1)
	}

	printStats(stats)
}

func printHelp() {
	fmt.Print(`
pagestore-inspect

Reads a MessagePack-encoded pagestore.Stats snapshot (as produced by
Stats.Encode, e.g. written to disk by an operator for offline triage)
and prints it in a human-readable form.

Usage:
  pagestore-inspect -file <path>

Options:
  -h, -help     Show this help message
  -file <path>  Path to the encoded snapshot (required)
`)
}

func printStats(stats pagestore.Stats) {
	fmt.Printf("path:            %s\n", stats.Path)
	fmt.Printf("page size:       %d\n", stats.PageSize)
	fmt.Printf("next page id:    %d\n", stats.NextPageID)
	fmt.Printf("new page offset: %d\n", stats.NewPageOffset)
	fmt.Printf("uncommitted:     %d\n", stats.NextPageID-stats.NewPageOffset)
	fmt.Printf("readonly:        %v\n", stats.Readonly)
	fmt.Println()
	fmt.Println("cache:")
	fmt.Printf("  capacity:  %d\n", stats.Cache.Capacity)
	fmt.Printf("  resident:  %d\n", stats.Cache.Resident)
	fmt.Printf("  hits:      %d\n", stats.Cache.Hits)
	fmt.Printf("  misses:    %d\n", stats.Cache.Misses)
	fmt.Printf("  evicted:   %d\n", stats.Cache.Evicted)
	fmt.Printf("  cancelled: %d\n", stats.Cache.Cancelled)

	if stats.Writer != nil {
		fmt.Println()
		fmt.Println("background writer:")
		fmt.Printf("  queue depth:   %d\n", stats.Writer.QueueDepth)
		fmt.Printf("  pages written: %d\n", stats.Writer.PagesWritten)
		fmt.Printf("  bytes flushed: %d\n", stats.Writer.BytesFlushed)
	}
}
