package exp

import "sort"

// Index maps position keys to the head of their experience chain. It owns
// every loaded entry: entries live in per-load arenas so chain links stay
// valid for the lifetime of the index, and are released all at once by
// Clear. The index is not safe for concurrent use; the store serializes
// loads against reads.
type Index struct {
	chains map[Key]*Entry
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{chains: make(map[Key]*Entry)}
}

// Link inserts e into the index. It returns true when e started a new
// chain or added a new move to an existing chain, and false when e
// duplicated a (key, move) pair already present, in which case the two
// observations are merged. The false return feeds load statistics.
func (ix *Index) Link(e *Entry) bool {
	head, ok := ix.chains[e.Key]
	if !ok {
		ix.chains[e.Key] = e
		return true
	}

	if existing := head.Find(e.Move); existing != nil {
		// A merge that raised the node's quality can leave it below a
		// now-worse neighbor, so re-splice it to restore the order.
		if existing.merge(e) {
			ix.unlink(e.Key, existing)
			ix.splice(e.Key, existing)
		}
		return false
	}

	ix.splice(e.Key, e)
	return true
}

// splice inserts e at its sorted position in k's chain, keeping the chain
// strictly descending by quality. Equal quality goes after the incumbent,
// so insertion order is deterministic for a given file order.
func (ix *Index) splice(k Key, e *Entry) {
	head := ix.chains[k]
	if head == nil || e.Compare(head) > 0 {
		e.Next = head
		ix.chains[k] = e
		return
	}
	prev := head
	for prev.Next != nil && e.Compare(prev.Next) <= 0 {
		prev = prev.Next
	}
	e.Next = prev.Next
	prev.Next = e
}

// unlink removes target from k's chain. Target must be in the chain.
func (ix *Index) unlink(k Key, target *Entry) {
	head := ix.chains[k]
	if head == target {
		ix.chains[k] = target.Next
		target.Next = nil
		return
	}
	for p := head; p.Next != nil; p = p.Next {
		if p.Next == target {
			p.Next = target.Next
			target.Next = nil
			return
		}
	}
}

// Probe returns the chain head for a key, or nil. The returned chain is
// read-only to the caller and of unspecified length.
func (ix *Index) Probe(k Key) *Entry {
	return ix.chains[k]
}

// Len returns the number of distinct positions in the index.
func (ix *Index) Len() int {
	return len(ix.chains)
}

// Keys returns every position key in ascending order. Save paths iterate
// keys sorted so a compaction pass produces deterministic output.
func (ix *Index) Keys() []Key {
	keys := make([]Key, 0, len(ix.chains))
	for k := range ix.chains {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Clear resets the index to empty, releasing every chain. Callers must
// ensure no load is in flight.
func (ix *Index) Clear() {
	ix.chains = make(map[Key]*Entry)
}

// Stats summarizes the loaded index.
type Stats struct {
	Positions    int // distinct keys
	Moves        int // entries across all chains
	LongestChain int // most moves recorded for one key
	BelowMin     int // entries a compaction pass would drop
}

// Stats walks every chain and returns summary counts.
func (ix *Index) Stats() Stats {
	var st Stats
	st.Positions = len(ix.chains)
	for _, head := range ix.chains {
		n := 0
		for e := head; e != nil; e = e.Next {
			n++
			if e.Depth < MinDepth {
				st.BelowMin++
			}
		}
		st.Moves += n
		if n > st.LongestChain {
			st.LongestChain = n
		}
	}
	return st
}
