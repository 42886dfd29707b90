package exp

import "github.com/rs/zerolog"

// Options is the configuration slice the session consumes from the host's
// option system.
type Options struct {
	Enabled  bool   // experience on/off
	File     string // experience file path, already mapped by the host
	ReadOnly bool   // probe only, never persist new entries
}

// Session owns the process's active experience store and tracks whether
// learning is paused. The host constructs one session and passes it down
// to the search; there is no package-level singleton. Session methods are
// meant for the thread that owns search/session control.
type Session struct {
	opts   Options
	store  *Store
	paused bool
	log    zerolog.Logger
}

// NewSession creates a session with no store; call Init with the current
// options to activate it.
func NewSession(log zerolog.Logger) *Session {
	return &Session{log: log}
}

// Init applies the current options, (re)creating the store and starting an
// asynchronous load when the target file or enabled flag changed. Calling
// it again with unchanged options is cheap: a store whose file already
// loaded successfully is kept as is.
func (ss *Session) Init(opts Options) {
	ss.opts = opts
	if !opts.Enabled {
		ss.Unload()
		return
	}

	if ss.store != nil {
		if ss.store.Filename() == opts.File && ss.store.WaitForLoadFinished() {
			return
		}
		ss.Unload()
	}

	ss.store = NewStore(ss.log)
	ss.store.Load(opts.File, false)
}

// Enabled reports whether experience is active for this session.
func (ss *Session) Enabled() bool {
	return ss.opts.Enabled
}

// Unload saves pending entries (unless read-only) and discards the store.
func (ss *Session) Unload() {
	if ss.store == nil {
		return
	}
	ss.Save()
	ss.store.Close()
	ss.store = nil
}

// Save appends pending entries to the session's file. No-op when there is
// nothing new or the session is read-only.
func (ss *Session) Save() {
	if ss.store == nil || !ss.store.HasNewEntries() || ss.opts.ReadOnly {
		return
	}
	ss.store.Save(ss.store.Filename(), false)
}

// Reload saves pending entries and loads the file back in, but only when
// there is something pending; otherwise the loaded store is current already.
func (ss *Session) Reload() {
	if ss.store == nil || !ss.store.HasNewEntries() {
		return
	}
	ss.Unload()
	ss.Init(ss.opts)
}

// WaitForLoadingFinished blocks until the store's background load is done.
func (ss *Session) WaitForLoadingFinished() {
	if ss.store == nil {
		return
	}
	ss.store.WaitForLoadFinished()
}

// Probe returns the best-first experience chain for a key. It returns nil
// when the session is disabled or has no store; a misbehaving caller gets
// an empty answer, never a corrupted store.
func (ss *Session) Probe(k Key) *Entry {
	if !ss.opts.Enabled || ss.store == nil {
		return nil
	}
	return ss.store.Probe(k)
}

// AddPVExperience records a principal-variation observation from search.
// Ignored when the session has no store or is read-only.
func (ss *Session) AddPVExperience(k Key, m Move, value, depth int32) {
	if ss.store == nil || ss.opts.ReadOnly {
		return
	}
	ss.store.AddPVEntry(k, m, value, depth)
}

// AddMultiPVExperience records a secondary (MultiPV) observation.
func (ss *Session) AddMultiPVExperience(k Key, m Move, value, depth int32) {
	if ss.store == nil || ss.opts.ReadOnly {
		return
	}
	ss.store.AddMultiPVEntry(k, m, value, depth)
}

// PauseLearning stops the search from recording until resumed. The flag is
// advisory: the search consults IsLearningPaused before recording.
func (ss *Session) PauseLearning() { ss.paused = true }

// ResumeLearning re-enables recording.
func (ss *Session) ResumeLearning() { ss.paused = false }

// IsLearningPaused reports whether recording is paused.
func (ss *Session) IsLearningPaused() bool { return ss.paused }
