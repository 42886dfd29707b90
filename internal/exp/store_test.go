package exp

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(zerolog.Nop())
}

// writeExpFile creates a well-formed experience file from raw entries.
func writeExpFile(t *testing.T, path string, entries []Entry) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := WriteSignature(f); err != nil {
		t.Fatal(err)
	}
	var buf [EntrySize]byte
	for i := range entries {
		EncodeEntry(buf[:], &entries[i])
		if _, err := f.Write(buf[:]); err != nil {
			t.Fatal(err)
		}
	}
}

func readFileBytes(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestSaveLoadRoundTrip(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "test.exp")

	s := newTestStore(t)
	s.AddPVEntry(100, EncodeMove(12, 28, PromoNone), 35, 18)
	s.AddPVEntry(100, EncodeMove(11, 27, PromoNone), 20, 16)
	s.AddMultiPVEntry(200, EncodeMove(52, 36, PromoNone), -10, 14)
	if !s.Save(fn, false) {
		t.Fatal("save failed")
	}
	if s.HasNewEntries() {
		t.Error("pending entries not cleared after successful save")
	}
	s.Close()

	s2 := newTestStore(t)
	if !s2.Load(fn, true) {
		t.Fatal("load failed")
	}
	defer s2.Close()

	head := s2.Probe(100)
	if head == nil {
		t.Fatal("Probe(100) = nil after load")
	}
	if head.Move != EncodeMove(12, 28, PromoNone) || head.Depth != 18 {
		t.Errorf("head = %+v, want the deeper e2-e4 line first", head)
	}
	if head.Next == nil || head.Next.Depth != 16 {
		t.Errorf("second entry = %+v, want depth 16", head.Next)
	}
	if e := s2.Probe(200); e == nil || e.Value != -10 {
		t.Errorf("Probe(200) = %+v", e)
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	if s.Load(filepath.Join(t.TempDir(), "absent.exp"), true) {
		t.Error("load of a missing file should fail")
	}
	if s.Index().Len() != 0 {
		t.Error("failed load left entries in the index")
	}
}

func TestLoadEmptyFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "empty.exp")
	if err := os.WriteFile(fn, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	s := newTestStore(t)
	defer s.Close()
	if s.Load(fn, true) {
		t.Error("load of an empty file should fail")
	}
}

func TestLoadWrongSignature(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "bad.exp")
	data := make([]byte, SignatureSize+EntrySize)
	copy(data, "XXXXX")
	if err := os.WriteFile(fn, data, 0o644); err != nil {
		t.Fatal(err)
	}
	s := newTestStore(t)
	defer s.Close()
	if s.Load(fn, true) {
		t.Error("load with a bad signature should fail")
	}
}

func TestLoadCorruptSize(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "torn.exp")
	data := make([]byte, SignatureSize+EntrySize+7) // torn trailing entry
	copy(data, Signature)
	if err := os.WriteFile(fn, data, 0o644); err != nil {
		t.Fatal(err)
	}
	s := newTestStore(t)
	defer s.Close()
	if s.Load(fn, true) {
		t.Error("load of a torn file should fail")
	}
	if s.Index().Len() != 0 {
		t.Error("torn file load touched the index")
	}
}

func TestSaveFiltersShallowEntries(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "shallow.exp")

	s := newTestStore(t)
	s.AddPVEntry(1, 10, 5, MinDepth)   // kept
	s.AddPVEntry(2, 11, 5, MinDepth-1) // dropped
	if !s.Save(fn, false) {
		t.Fatal("save failed")
	}
	s.Close()

	want := int64(SignatureSize + EntrySize)
	fi, err := os.Stat(fn)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() != want {
		t.Errorf("file size %d, want %d (shallow entry filtered)", fi.Size(), want)
	}
}

func TestSaveNothingPending(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	if !s.Save(filepath.Join(t.TempDir(), "none.exp"), false) {
		t.Error("save with nothing pending should succeed as a no-op")
	}
}

func TestDoubleLoadCountsDuplicates(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "dup.exp")
	writeExpFile(t, fn, []Entry{
		{Key: 1, Move: 10, Value: 5, Depth: 10},
		{Key: 1, Move: 11, Value: 3, Depth: 9},
		{Key: 2, Move: 10, Value: 1, Depth: 8},
	})

	s := newTestStore(t)
	defer s.Close()
	if !s.Load(fn, true) {
		t.Fatal("first load failed")
	}
	if !s.Load(fn, true) {
		t.Fatal("second load failed")
	}

	st := s.Index().Stats()
	if st.Positions != 2 || st.Moves != 3 {
		t.Errorf("after double load stats = %+v, want 2 positions / 3 moves", st)
	}
}

func TestSaveBackupRestoredOnFailure(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "precious.exp")
	writeExpFile(t, fn, []Entry{{Key: 1, Move: 10, Value: 5, Depth: 10}})
	before := readFileBytes(t, fn)

	s := newTestStore(t)
	defer s.Close()
	if !s.Load(fn, true) {
		t.Fatal("load failed")
	}
	s.AddPVEntry(2, 20, 1, 12)

	injected := errors.New("disk full")
	s.writeFn = func(filename string, saveAll bool) (saveCounts, error) {
		// simulate a partial write before the failure
		os.WriteFile(filename, []byte("garbage"), 0o644)
		return saveCounts{}, injected
	}

	if s.Save(fn, true) {
		t.Fatal("save should report failure")
	}
	if !s.HasNewEntries() {
		t.Error("pending entries cleared despite failed save")
	}
	after := readFileBytes(t, fn)
	if string(after) != string(before) {
		t.Error("original file not restored from backup after failed save")
	}
	if FileExists(fn + ".bak") {
		t.Error("backup left behind after restore")
	}
}

func TestDefragIdempotent(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "frag.exp")
	writeExpFile(t, fn, []Entry{
		{Key: 5, Move: 10, Value: 5, Depth: 10},
		{Key: 5, Move: 10, Value: 9, Depth: 14}, // dup, deeper wins
		{Key: 5, Move: 11, Value: 2, Depth: 2},  // below MinDepth, dropped
		{Key: 3, Move: 10, Value: 1, Depth: 8},
		{Key: 9, Move: 12, Value: 0, Depth: 6},
	})

	if !Defrag(fn, zerolog.Nop()) {
		t.Fatal("defrag failed")
	}
	first := readFileBytes(t, fn)

	wantSize := SignatureSize + 3*EntrySize
	if len(first) != wantSize {
		t.Fatalf("defragged size %d, want %d", len(first), wantSize)
	}

	if !Defrag(fn, zerolog.Nop()) {
		t.Fatal("second defrag failed")
	}
	second := readFileBytes(t, fn)
	if string(first) != string(second) {
		t.Error("defrag is not idempotent: second pass changed the file")
	}

	// deeper duplicate survived
	s := newTestStore(t)
	defer s.Close()
	if !s.Load(fn, true) {
		t.Fatal("load of defragged file failed")
	}
	if e := s.Probe(5); e == nil || e.Depth != 14 || e.Value != 9 {
		t.Errorf("Probe(5) = %+v, want merged depth-14 entry", e)
	}
}

func TestMergeConsolidates(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.exp")
	b := filepath.Join(dir, "b.exp")
	target := filepath.Join(dir, "merged.exp")

	writeExpFile(t, a, []Entry{
		{Key: 1, Move: 10, Value: 5, Depth: 10},
		{Key: 2, Move: 20, Value: 1, Depth: 8},
	})
	writeExpFile(t, b, []Entry{
		{Key: 1, Move: 10, Value: 8, Depth: 16}, // deeper duplicate of a's entry
		{Key: 3, Move: 30, Value: 2, Depth: 6},
	})

	if !Merge(target, []string{a, b}, zerolog.Nop()) {
		t.Fatal("merge failed")
	}

	s := newTestStore(t)
	defer s.Close()
	if !s.Load(target, true) {
		t.Fatal("load of merged file failed")
	}
	st := s.Index().Stats()
	if st.Positions != 3 || st.Moves != 3 {
		t.Errorf("merged stats = %+v, want 3 positions / 3 moves", st)
	}
	if e := s.Probe(1); e == nil || e.Depth != 16 {
		t.Errorf("Probe(1) = %+v, want the deeper observation", e)
	}
}

func TestMergeAssociative(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.exp")
	b := filepath.Join(dir, "b.exp")
	c := filepath.Join(dir, "c.exp")

	writeExpFile(t, a, []Entry{
		{Key: 1, Move: 10, Value: 5, Depth: 10},
		{Key: 2, Move: 20, Value: 1, Depth: 8},
	})
	writeExpFile(t, b, []Entry{
		{Key: 1, Move: 10, Value: 5, Depth: 10}, // tied-quality duplicate of a's entry
		{Key: 3, Move: 30, Value: 2, Depth: 6},
	})
	writeExpFile(t, c, []Entry{
		{Key: 2, Move: 20, Value: 9, Depth: 16}, // deeper duplicate of a's entry
		{Key: 1, Move: 11, Value: 5, Depth: 10}, // new move tying key 1's incumbent
	})

	// staged: {a, b} -> ab, then {ab, c}
	staged := filepath.Join(dir, "staged.exp")
	if !Merge(staged, []string{a, b}, zerolog.Nop()) {
		t.Fatal("first-stage merge failed")
	}
	if !Merge(staged, []string{staged, c}, zerolog.Nop()) {
		t.Fatal("second-stage merge failed")
	}

	// direct: {a, b, c}
	direct := filepath.Join(dir, "direct.exp")
	if !Merge(direct, []string{a, b, c}, zerolog.Nop()) {
		t.Fatal("direct merge failed")
	}

	if string(readFileBytes(t, staged)) != string(readFileBytes(t, direct)) {
		t.Error("staged and direct merges produced different files")
	}

	s := newTestStore(t)
	defer s.Close()
	if !s.Load(direct, true) {
		t.Fatal("load of merged file failed")
	}
	st := s.Index().Stats()
	if st.Positions != 3 || st.Moves != 4 {
		t.Errorf("merged stats = %+v, want 3 positions / 4 moves", st)
	}
	if e := s.Probe(2); e == nil || e.Depth != 16 {
		t.Errorf("Probe(2) = %+v, want the deeper observation", e)
	}
	// tied quality: earlier-loaded move 10 stays ahead of move 11
	if got := chainMoves(t, s.Probe(1)); len(got) != 2 || got[0] != 10 || got[1] != 11 {
		t.Errorf("key 1 chain = %v, want [10 11]", got)
	}
}

func TestMergeSkipsUnloadableSource(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.exp")
	writeExpFile(t, good, []Entry{{Key: 1, Move: 10, Value: 5, Depth: 10}})
	target := filepath.Join(dir, "out.exp")

	sources := []string{filepath.Join(dir, "missing.exp"), good}
	if !Merge(target, sources, zerolog.Nop()) {
		t.Fatal("merge should survive an unloadable source")
	}

	s := newTestStore(t)
	defer s.Close()
	if !s.Load(target, true) {
		t.Fatal("load of merged file failed")
	}
	if s.Index().Len() != 1 {
		t.Errorf("merged positions = %d, want 1", s.Index().Len())
	}
}

func TestAsyncLoadThenWait(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "async.exp")
	writeExpFile(t, fn, []Entry{{Key: 1, Move: 10, Value: 5, Depth: 10}})

	s := newTestStore(t)
	defer s.Close()
	if !s.Load(fn, false) {
		t.Fatal("async load did not start")
	}
	if !s.WaitForLoadFinished() {
		t.Fatal("async load failed")
	}
	if s.Probe(1) == nil {
		t.Error("entry missing after async load")
	}
	if !s.LoadResult() {
		t.Error("LoadResult should reflect the finished load")
	}
}

func TestLoadsSerialized(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.exp")
	b := filepath.Join(dir, "b.exp")
	writeExpFile(t, a, []Entry{{Key: 1, Move: 10, Value: 5, Depth: 10}})
	writeExpFile(t, b, []Entry{{Key: 2, Move: 20, Value: 1, Depth: 8}})

	s := newTestStore(t)
	defer s.Close()
	s.Load(a, false)
	// second load must wait out the first, then merge on top
	if !s.Load(b, true) {
		t.Fatal("second load failed")
	}
	if s.Probe(1) == nil || s.Probe(2) == nil {
		t.Error("both files should be linked after serialized loads")
	}
	if s.Filename() != b {
		t.Errorf("Filename() = %q, want %q", s.Filename(), b)
	}
}

func TestCloseDiscardsEverything(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "gone.exp")
	writeExpFile(t, fn, []Entry{{Key: 1, Move: 10, Value: 5, Depth: 10}})

	s := newTestStore(t)
	if !s.Load(fn, true) {
		t.Fatal("load failed")
	}
	s.AddPVEntry(2, 20, 1, 12)
	s.Close()

	if s.Probe(1) != nil || s.HasNewEntries() {
		t.Error("Close should drop the index and pending entries")
	}
}
