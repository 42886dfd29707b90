package exp

import (
	"errors"

	"github.com/rs/zerolog"
)

// Store is one open experience store: an index populated by background
// loads, plus the entries newly recorded this session. Probe, record and
// save calls belong to the controlling thread; the only concurrency the
// store is designed for is that thread against its own loader goroutine.
type Store struct {
	filename string
	index    *Index
	ctrl     *loadController
	log      zerolog.Logger

	// Newly recorded entries, never linked into the index. They exist
	// only to be appended on the next save, then cleared.
	newPV      []Entry
	newMultiPV []Entry

	// test seam for fault injection in Save
	writeFn func(filename string, saveAll bool) (saveCounts, error)
}

// NewStore creates an empty store. Call Load to populate it.
func NewStore(log zerolog.Logger) *Store {
	return &Store{
		index: NewIndex(),
		ctrl:  newLoadController(),
		log:   log,
	}
}

// Filename returns the file most recently passed to Load.
func (s *Store) Filename() string {
	return s.filename
}

// Load reads an experience file into the index on a background goroutine.
// Any prior load on this store is waited out first, so loads are strictly
// serialized. With synchronous set it blocks and returns the load result;
// otherwise it returns true meaning "started", not "succeeded".
func (s *Store) Load(filename string, synchronous bool) bool {
	s.ctrl.begin()
	s.filename = filename

	go func() {
		stats, err := loadFile(filename, s.index, &s.ctrl.abort)
		switch {
		case errors.Is(err, ErrAborted):
			s.log.Debug().Str("file", filename).Msg("experience load aborted")
		case err != nil:
			s.log.Warn().Err(err).Str("file", filename).Msg("experience load failed")
		case stats.Positions > stats.NewPositions:
			s.log.Info().
				Str("file", filename).
				Int64("new_moves", stats.Moves).
				Int64("new_positions", stats.NewPositions).
				Int64("duplicate_moves", stats.Duplicates).
				Msg("experience file merged")
		default:
			s.log.Info().
				Str("file", filename).
				Int64("moves", stats.Moves).
				Int64("positions", stats.Positions).
				Int64("duplicate_moves", stats.Duplicates).
				Str("fragmentation", percent(stats.Fragmentation)).
				Msg("experience file loaded")
		}
		s.ctrl.finish(err == nil)
	}()

	if synchronous {
		return s.ctrl.wait()
	}
	return true
}

// WaitForLoadFinished blocks until the in-flight load (if any) completes
// and returns the result of the most recently completed load.
func (s *Store) WaitForLoadFinished() bool {
	return s.ctrl.wait()
}

// LoadResult returns the result of the most recently completed load
// without blocking.
func (s *Store) LoadResult() bool {
	return s.ctrl.result.Load()
}

// Probe returns the best-first experience chain for a key, or nil.
func (s *Store) Probe(k Key) *Entry {
	return s.index.Probe(k)
}

// Index exposes the loaded index for stats reporting.
func (s *Store) Index() *Index {
	return s.index
}

// AddPVEntry records a principal-variation observation. It is kept in the
// pending list until the next save and has no effect on Probe.
func (s *Store) AddPVEntry(k Key, m Move, value, depth int32) {
	s.newPV = append(s.newPV, Entry{Key: k, Move: m, Value: value, Depth: depth})
}

// AddMultiPVEntry records a secondary (multi-line) observation.
func (s *Store) AddMultiPVEntry(k Key, m Move, value, depth int32) {
	s.newMultiPV = append(s.newMultiPV, Entry{Key: k, Move: m, Value: value, Depth: depth})
}

// HasNewEntries reports whether any observation recorded this session is
// still waiting to be saved.
func (s *Store) HasNewEntries() bool {
	return len(s.newPV) > 0 || len(s.newMultiPV) > 0
}

// Close aborts and waits out any in-flight load, then drops the index and
// any pending entries without saving them.
func (s *Store) Close() {
	s.ctrl.abort.Store(true)
	s.ctrl.wait()
	s.ctrl.abort.Store(false)

	s.index.Clear()
	s.newPV = nil
	s.newMultiPV = nil
}

// Defrag loads one file synchronously and rewrites it compacted: duplicate
// moves merged, entries below MinDepth dropped. Running it twice in a row
// leaves the file unchanged.
func Defrag(filename string, log zerolog.Logger) bool {
	st := NewStore(log)
	defer st.Close()

	log.Info().Str("file", filename).Msg("defragmenting experience file")
	if !st.Load(filename, true) {
		return false
	}
	return st.Save(filename, true)
}

// Merge loads every source file synchronously into one store, letting the
// link rules dedupe (key, move) pairs across files, then rewrites the
// consolidated index into target. The target's previous content takes part
// in the merge when the caller lists it among the sources. Unloadable
// sources are skipped.
func Merge(target string, sources []string, log zerolog.Logger) bool {
	st := NewStore(log)
	defer st.Close()

	log.Info().Str("target", target).Strs("sources", sources).Msg("merging experience files")
	for _, fn := range sources {
		st.Load(fn, true)
	}
	return st.Save(target, true)
}
