package exp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// LoadStats summarizes one load pass.
type LoadStats struct {
	Moves         int64   // entries read from the file
	Positions     int64   // distinct positions in the index after the load
	NewPositions  int64   // positions this load added
	Duplicates    int64   // (key, move) pairs merged into existing entries
	Fragmentation float64 // Duplicates / Moves
}

// loadFile streams one experience file into ix. Entries are decoded into a
// single arena allocated up front, so chain pointers remain stable for the
// lifetime of the index. The abort flag is checked between entries; a set
// flag stops the scan and returns ErrAborted, leaving already-linked
// entries in place. Any other mid-stream failure likewise fails the load
// without unlinking what was already added.
func loadFile(filename string, ix *Index, abort *atomic.Bool) (LoadStats, error) {
	var stats LoadStats

	f, err := os.Open(filename)
	if err != nil {
		return stats, fmt.Errorf("open experience file: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return stats, fmt.Errorf("stat experience file: %w", err)
	}
	count, err := entryCount(fi.Size())
	if err != nil {
		return stats, err
	}

	r := bufio.NewReaderSize(f, 64*1024)
	if err := ReadSignature(r); err != nil {
		return stats, err
	}

	arena := make([]Entry, count)
	prevPositions := int64(ix.Len())

	var buf [EntrySize]byte
	for i := int64(0); i < count; i++ {
		if abort != nil && abort.Load() {
			return stats, ErrAborted
		}
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return stats, fmt.Errorf("read entry %d of %d: %w", i+1, count, err)
		}
		e := &arena[i]
		DecodeEntry(buf[:], e)
		e.Next = nil
		if !ix.Link(e) {
			stats.Duplicates++
		}
		stats.Moves++
	}

	stats.Positions = int64(ix.Len())
	stats.NewPositions = stats.Positions - prevPositions
	if stats.Moves > 0 {
		stats.Fragmentation = float64(stats.Duplicates) / float64(stats.Moves)
	}
	return stats, nil
}
