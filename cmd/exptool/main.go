// Command exptool maintains experience files: defragment, merge, inspect,
// archive and extract.
package main

import (
	"fmt"
	"os"

	"github.com/freeeve/chessexp/internal/exp"
	"github.com/freeeve/chessexp/internal/logx"
)

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: exptool <command> [args]

Commands:
  defrag  <file>                  rewrite a file compacted and deduplicated
  merge   <target> <file> [...]   consolidate files into target
  stats   <file>                  print summary counts for a file
  archive <file>                  compress a file to <file>.zst
  extract <file.zst>              decompress an archive

Filenames with spaces may be quoted.`)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	logger := logx.NewLogger()
	cmd := os.Args[1]
	args := os.Args[2:]
	for i := range args {
		args[i] = exp.Unquote(args[i])
	}

	ok := true
	switch cmd {
	case "defrag":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "Usage: exptool defrag <file>")
			os.Exit(1)
		}
		ok = exp.Defrag(args[0], logger)

	case "merge":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: exptool merge <target> <file> [...]")
			os.Exit(1)
		}
		// The target's current content joins the merge when it exists.
		target := args[0]
		sources := args[1:]
		if exp.FileExists(target) {
			sources = append([]string{target}, sources...)
		}
		ok = exp.Merge(target, sources, logger)

	case "stats":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "Usage: exptool stats <file>")
			os.Exit(1)
		}
		ok = printStats(args[0])

	case "archive":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "Usage: exptool archive <file>")
			os.Exit(1)
		}
		out, err := exp.ArchiveFile(args[0])
		if err != nil {
			logger.Error().Err(err).Str("file", args[0]).Msg("archive failed")
			ok = false
		} else {
			fmt.Printf("archived to %s\n", out)
		}

	case "extract":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "Usage: exptool extract <file.zst>")
			os.Exit(1)
		}
		out, err := exp.ExtractFile(args[0])
		if err != nil {
			logger.Error().Err(err).Str("file", args[0]).Msg("extract failed")
			ok = false
		} else {
			fmt.Printf("extracted to %s\n", out)
		}

	default:
		usage()
	}

	if !ok {
		os.Exit(1)
	}
}

func printStats(filename string) bool {
	s := exp.NewStore(logx.NewLogger())
	defer s.Close()
	if !s.Load(filename, true) {
		return false
	}

	st := s.Index().Stats()
	fmt.Printf("file:          %s\n", filename)
	fmt.Printf("positions:     %d\n", st.Positions)
	fmt.Printf("moves:         %d\n", st.Moves)
	fmt.Printf("longest chain: %d\n", st.LongestChain)
	fmt.Printf("below depth %d: %d (removed by defrag)\n", exp.MinDepth, st.BelowMin)
	if st.Positions > 0 {
		fmt.Printf("moves/pos:     %.2f\n", float64(st.Moves)/float64(st.Positions))
	}
	return true
}
