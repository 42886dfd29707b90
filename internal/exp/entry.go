package exp

// Key is an opaque 64-bit position fingerprint (a zobrist hash in engines,
// a packed-position hash in the importer). Equality comparison only.
type Key uint64

// Entry is one experience observation plus its chain link. Entries for the
// same key are linked through Next in descending quality order; chains are
// singly linked, never cyclic, never shared across keys.
type Entry struct {
	Key   Key
	Move  Move
	Value int32
	Depth int32

	Next *Entry
}

// Compare ranks e against o: positive when e is the higher-quality
// observation. Depth is primary (deeper searches are more trustworthy),
// value breaks ties, higher first. Explicit branches rather than
// subtraction: both fields span the full int32 range on disk.
func (e *Entry) Compare(o *Entry) int {
	if e.Depth != o.Depth {
		if e.Depth > o.Depth {
			return 1
		}
		return -1
	}
	if e.Value == o.Value {
		return 0
	}
	if e.Value > o.Value {
		return 1
	}
	return -1
}

// Find scans the chain starting at e for an entry with the given move.
func (e *Entry) Find(m Move) *Entry {
	for p := e; p != nil; p = p.Next {
		if p.Move == m {
			return p
		}
	}
	return nil
}

// merge folds a duplicate observation of the same (key, move) into e,
// keeping whichever of the two is higher quality. Stale shallow data must
// not overwrite a deeper search result. Reports whether e changed.
func (e *Entry) merge(o *Entry) bool {
	if o.Compare(e) > 0 {
		e.Value = o.Value
		e.Depth = o.Depth
		return true
	}
	return false
}
