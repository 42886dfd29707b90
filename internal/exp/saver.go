package exp

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
)

type saveCounts struct {
	positions int // chains visited (full save)
	moves     int // entries written (full save)
	pv        int // pending PV entries written (incremental save)
	multiPV   int // pending MultiPV entries written (incremental save)
}

// Save persists the store to filename and returns whether it succeeded.
// By default only the pending new entries are appended; with saveAll the
// entire index is rewritten, which doubles as compaction since entries
// below MinDepth are filtered out everywhere.
//
// A full save first moves any existing file aside to a .bak sibling.
// Failure to create the backup is logged but does not block the save; it
// only means a failed write cannot be rolled back. On a write failure the
// backup, when one was made, is renamed back into place so the previous
// file survives bit-for-bit.
func (s *Store) Save(filename string, saveAll bool) bool {
	// Save and load on one store never run concurrently.
	s.ctrl.wait()

	if !s.HasNewEntries() && (!saveAll || s.index.Len() == 0) {
		return true
	}

	backup := ""
	if saveAll && FileExists(filename) {
		backup = filename + ".bak"
		if FileExists(backup) {
			if err := os.Remove(backup); err != nil {
				s.log.Warn().Err(err).Str("file", backup).Msg("could not delete stale backup")
				backup = ""
			}
		}
		if backup != "" {
			if err := os.Rename(filename, backup); err != nil {
				s.log.Warn().Err(err).Str("file", filename).Msg("could not back up experience file")
				backup = ""
			}
		}
	}

	write := s.writeFn
	if write == nil {
		write = s.writeFile
	}
	counts, err := write(filename, saveAll)
	if err != nil {
		s.log.Error().Err(err).Str("file", filename).Msg("experience save failed")
		if backup != "" {
			if rerr := os.Rename(backup, filename); rerr != nil {
				s.log.Error().Err(rerr).Str("file", backup).Msg("could not restore experience backup")
			} else {
				s.log.Info().Str("file", filename).Msg("restored experience file from backup")
			}
		}
		return false
	}

	s.newPV = s.newPV[:0]
	s.newMultiPV = s.newMultiPV[:0]

	if saveAll {
		s.log.Info().
			Str("file", filename).
			Int("positions", counts.positions).
			Int("moves", counts.moves).
			Msg("experience file saved")
	} else {
		s.log.Info().
			Str("file", filename).
			Int("pv", counts.pv).
			Int("multipv", counts.multiPV).
			Msg("experience entries appended")
	}
	return true
}

// writeFile appends to filename, creating it (with signature) when absent
// or empty. saveAll additionally writes every chain of the index, keys in
// sorted order so repeated compactions produce identical bytes. Already
// written bytes are not rolled back here; Save handles recovery.
func (s *Store) writeFile(filename string, saveAll bool) (saveCounts, error) {
	var counts saveCounts

	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return counts, fmt.Errorf("open experience file for append: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return counts, fmt.Errorf("stat experience file: %w", err)
	}

	w := bufio.NewWriter(f)
	if fi.Size() == 0 {
		if err := WriteSignature(w); err != nil {
			return counts, err
		}
	}

	var buf [EntrySize]byte
	if saveAll {
		for _, k := range s.index.Keys() {
			counts.positions++
			for e := s.index.Probe(k); e != nil; e = e.Next {
				if e.Depth < MinDepth {
					continue
				}
				EncodeEntry(buf[:], e)
				if _, err := w.Write(buf[:]); err != nil {
					return counts, fmt.Errorf("write entry: %w", err)
				}
				counts.moves++
			}
		}
	}

	for i := range s.newPV {
		e := &s.newPV[i]
		if e.Depth < MinDepth {
			continue
		}
		EncodeEntry(buf[:], e)
		if _, err := w.Write(buf[:]); err != nil {
			return counts, fmt.Errorf("write pv entry: %w", err)
		}
		counts.pv++
	}
	for i := range s.newMultiPV {
		e := &s.newMultiPV[i]
		if e.Depth < MinDepth {
			continue
		}
		EncodeEntry(buf[:], e)
		if _, err := w.Write(buf[:]); err != nil {
			return counts, fmt.Errorf("write multipv entry: %w", err)
		}
		counts.multiPV++
	}

	if err := w.Flush(); err != nil {
		return counts, fmt.Errorf("flush experience file: %w", err)
	}
	return counts, nil
}

func percent(f float64) string {
	return strconv.FormatFloat(f*100, 'f', 2, 64) + "%"
}
