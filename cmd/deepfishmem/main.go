// deepfishmem - Memory investigation tool for the deepfish engine
//
// Commands:
//   deepfishmem list [--persona=X] [--limit=N] <storage-path>
//   deepfishmem search <query> [--persona=X] [--limit=N] <storage-path>
//   deepfishmem stats <storage-path>
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/deepfish/engine/internal/memory"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "list":
		cmdList(args)
	case "search":
		cmdSearch(args)
	case "stats":
		cmdStats(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`deepfishmem - Memory investigation tool for the deepfish engine

Usage:
  deepfishmem <command> [options] <storage-path>

Commands:
  list    List stored memories
  search  Search one persona's memories by query
  stats   Show per-persona memory statistics

Examples:
  deepfishmem list ~/.local/deepfish
  deepfishmem list --persona=mei --limit=10 ~/.local/deepfish
  deepfishmem search "server budget" --persona=it ~/.local/deepfish
  deepfishmem stats ~/.local/deepfish`)
}

// parseArgs splits flags from the trailing storage path.
func parseArgs(args []string) (persona string, limit int, positional []string) {
	limit = 100
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "--persona="):
			persona = strings.TrimPrefix(arg, "--persona=")
		case strings.HasPrefix(arg, "--limit="):
			fmt.Sscanf(strings.TrimPrefix(arg, "--limit="), "%d", &limit)
		case !strings.HasPrefix(arg, "-"):
			positional = append(positional, arg)
		}
	}
	return persona, limit, positional
}

func openStore(storagePath string) *memory.BleveStore {
	store, err := memory.NewBleveStore(filepath.Join(storagePath, "memories.bleve"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	return store
}

// cmdList lists memories, optionally filtered to one persona.
func cmdList(args []string) {
	persona, limit, positional := parseArgs(args)
	if len(positional) == 0 {
		fmt.Fprintln(os.Stderr, "Error: storage path required")
		os.Exit(1)
	}

	store := openStore(positional[0])
	defer store.Close()

	var entries []memory.Entry
	var err error
	if persona != "" {
		entries, err = store.List(context.Background(), persona)
	} else {
		entries, err = store.All(limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing memories: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("No memories found.")
		return
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	for _, e := range entries {
		fmt.Printf("%s  %-10s [%s] %s\n",
			e.CreatedAt.Format("2006-01-02 15:04"), e.PersonaID, e.Category, e.Content)
	}
}

// cmdSearch ranks one persona's memories against a query.
func cmdSearch(args []string) {
	persona, limit, positional := parseArgs(args)
	if len(positional) < 2 {
		fmt.Fprintln(os.Stderr, "Error: query and storage path required")
		os.Exit(1)
	}
	if persona == "" {
		fmt.Fprintln(os.Stderr, "Error: --persona required for search")
		os.Exit(1)
	}
	query, storagePath := positional[0], positional[1]

	store := openStore(storagePath)
	defer store.Close()

	results, err := store.Search(context.Background(), persona, query, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error searching memories: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Println("No matches.")
		return
	}

	for _, r := range results {
		fmt.Printf("%.2f  [%s] %s\n", r.Score, r.Category, r.Content)
	}
}

// cmdStats shows per-persona and per-category counts.
func cmdStats(args []string) {
	_, _, positional := parseArgs(args)
	if len(positional) == 0 {
		fmt.Fprintln(os.Stderr, "Error: storage path required")
		os.Exit(1)
	}

	store := openStore(positional[0])
	defer store.Close()

	entries, err := store.All(0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading memories: %v\n", err)
		os.Exit(1)
	}

	byPersona := make(map[string]int)
	byCategory := make(map[string]int)
	for _, e := range entries {
		byPersona[e.PersonaID]++
		byCategory[e.Category]++
	}

	fmt.Printf("Total memories: %d\n\n", len(entries))
	fmt.Println("By persona:")
	printCounts(byPersona)
	fmt.Println("\nBy category:")
	printCounts(byCategory)
}

func printCounts(counts map[string]int) {
	var keys []string
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-12s %d\n", k, counts[k])
	}
}
