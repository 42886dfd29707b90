// Package exp implements a persistent store for chess search experience:
// (position key, move, value, depth) observations recorded during search
// and recalled later to seed move ordering.
//
// On-disk format (SugaR/BrainLearn .exp compatible):
//   - 5-byte ASCII signature "SugaR"
//   - zero or more fixed 24-byte entries, no padding between entries
//
// In memory, entries for the same position key are linked into a chain
// sorted best-first by (depth, value). Duplicate (key, move) pairs are
// merged keeping the higher-quality observation, so repeatedly appended
// files converge back to one entry per move after a defrag pass.
//
// A Store loads its file on a single background goroutine; loads on one
// Store are strictly serialized and cooperatively abortable on Close.
// Saves append newly recorded entries, or rewrite the whole index
// (compaction) behind a backup-and-restore of the previous file.
package exp
