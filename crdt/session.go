package crdt

import "sync"

// Session is the single mutation path to one site's document. The UI
// goroutine generating local edits and the network goroutine applying
// remote operations both go through the session mutex, so identifier
// comparison and entry insertion are never observed half-updated.
//
// Local edits return the operation to broadcast; the session has no
// network knowledge of its own.
type Session struct {
	mu      sync.Mutex
	site    SiteID
	clock   uint64
	doc     *Document
	alloc   *Allocator
	version VClock
	log     []Operation
}

// NewSession returns an empty editing session for the given site.
func NewSession(site SiteID) *Session {
	return &Session{
		site:    site,
		doc:     NewDocument(),
		alloc:   NewAllocator(site),
		version: VClock{},
	}
}

// Replay rebuilds a session from a saved operation log. Operation
// application is order-independent, so any log ordering reconstructs the
// same document. The session's own clock and allocator counter resume
// above anything the site already stamped in the log; restarting them
// would mint (site, clock) pairs and identifiers the log has already
// spent.
func Replay(site SiteID, ops []Operation) *Session {
	s := NewSession(site)

	var clock uint64
	var counter uint32
	for _, op := range ops {
		s.Apply(op)
		if op.Site != site {
			continue
		}
		if op.Clock > clock {
			clock = op.Clock
		}
		if op.Kind == OpInsert && op.ID.Counter > counter {
			counter = op.ID.Counter
		}
	}

	s.mu.Lock()
	s.clock = clock
	s.alloc.seed(counter)
	s.mu.Unlock()
	return s
}

// SetSite rebinds the session to a server-assigned site ID. Meant for the
// join handshake, before any local edits are generated.
func (s *Session) SetSite(site SiteID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.site = site
	s.alloc.setSite(site)
}

// Site returns the session's site ID.
func (s *Session) Site() SiteID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.site
}

// InsertAt inserts value at the visible cursor offset and returns the
// operation to broadcast. The offset is clamped to the document; the
// neighbors it resolves to and the allocation between them happen under
// the same lock as the integration.
func (s *Session) InsertAt(offset int, value string) Operation {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.doc.VisibleLength()
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}

	lower := Begin
	if e, ok := s.doc.IthVisible(offset - 1); ok {
		lower = e.ID
	}
	upper := End
	if e, ok := s.doc.IthVisible(offset); ok {
		upper = e.ID
	}

	s.clock++
	op := Operation{
		Kind:  OpInsert,
		ID:    s.alloc.Between(lower, upper),
		Value: value,
		Site:  s.site,
		Clock: s.clock,
	}
	s.integrate(op)
	return op
}

// DeleteAt tombstones the visible character at offset and returns the
// operation to broadcast. The second result is false when no visible
// character exists at that offset.
func (s *Session) DeleteAt(offset int) (Operation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.doc.IthVisible(offset)
	if !ok {
		return Operation{}, false
	}

	s.clock++
	op := Operation{
		Kind:  OpDelete,
		ID:    e.ID,
		Site:  s.site,
		Clock: s.clock,
	}
	s.integrate(op)
	return op, true
}

// Apply integrates a remote operation and reports whether it changed the
// document. Duplicates and arbitrary reorderings are safe.
func (s *Session) Apply(op Operation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.integrate(op)
}

// integrate is the common apply path; callers hold the mutex. The log only
// records operations that changed state, so duplicate deliveries do not
// bloat it.
func (s *Session) integrate(op Operation) bool {
	changed := s.doc.Integrate(op)
	s.version.Observe(op.Site, op.Clock)
	if changed {
		s.log = append(s.log, op)
	}
	return changed
}

// Text returns the visible document text.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Content()
}

// VisibleLength returns the number of visible characters.
func (s *Session) VisibleLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.VisibleLength()
}

// Version returns a copy of the session's vector clock: the highest
// operation clock observed from each site.
func (s *Session) Version() VClock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version.Clone()
}

// Collect reclaims causally stable tombstones against the given watermark
// and returns how many entries were removed.
func (s *Session) Collect(watermark VClock) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Collect(watermark)
}

// Log returns a copy of the effective operation log. Replaying it into an
// empty session reconstructs the same document.
func (s *Session) Log() []Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Operation, len(s.log))
	copy(out, s.log)
	return out
}

// Entries returns a copy of the underlying entries for debug logging.
func (s *Session) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Entries()
}

// DepthStats reports the identifier depth distribution of the document.
func (s *Session) DepthStats() (max int, mean float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.DepthStats()
}
