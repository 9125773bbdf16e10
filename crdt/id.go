package crdt

import (
	"fmt"
	"math"
	"strings"
)

// SiteID identifies a single collaborating peer. Site IDs are assigned by
// the relay server when a client joins and stay fixed for the session.
type SiteID uint16

// Level is one step of an identifier's path: an integer position plus the
// site that chose it. Embedding the site makes concurrent allocations at
// the same position diverge instead of colliding.
type Level struct {
	Pos  uint64 `json:"pos"`
	Site SiteID `json:"site"`
}

// Identifier is an immutable, totally-ordered position marker for a single
// character. The level sequence places it between its neighbors; the
// trailing counter breaks ties between identifiers the same site allocated
// with identical level sequences.
type Identifier struct {
	Levels  []Level `json:"levels"`
	Counter uint32  `json:"counter"`
}

// Sentinel positions bounding the identifier space at depth zero. Real
// allocations always land strictly between them.
const (
	posBegin uint64 = 0
	posEnd   uint64 = math.MaxUint64
)

// Begin sorts below every real identifier. It never carries a character.
var Begin = Identifier{Levels: []Level{{Pos: posBegin}}}

// End sorts above every real identifier. It never carries a character.
var End = Identifier{Levels: []Level{{Pos: posEnd}}}

// Compare returns -1, 0 or 1 as a sorts before, equal to or after b.
// Levels are compared lexicographically by (Pos, Site); a strict prefix
// sorts lower; identical level sequences fall back to the counter. The
// result is 0 only when a and b are byte-identical.
func (a Identifier) Compare(b Identifier) int {
	n := len(a.Levels)
	if len(b.Levels) < n {
		n = len(b.Levels)
	}

	for i := 0; i < n; i++ {
		la, lb := a.Levels[i], b.Levels[i]
		if la.Pos != lb.Pos {
			if la.Pos < lb.Pos {
				return -1
			}
			return 1
		}
		if la.Site != lb.Site {
			if la.Site < lb.Site {
				return -1
			}
			return 1
		}
	}

	if len(a.Levels) != len(b.Levels) {
		if len(a.Levels) < len(b.Levels) {
			return -1
		}
		return 1
	}

	if a.Counter != b.Counter {
		if a.Counter < b.Counter {
			return -1
		}
		return 1
	}
	return 0
}

// Less reports whether a sorts strictly before b.
func (a Identifier) Less(b Identifier) bool {
	return a.Compare(b) < 0
}

// Equal reports whether a and b are the same identifier.
func (a Identifier) Equal(b Identifier) bool {
	return a.Compare(b) == 0
}

// Depth returns the number of levels in the identifier.
func (a Identifier) Depth() int {
	return len(a.Levels)
}

// Key returns a canonical string form of the identifier, usable as a map
// key. Two identifiers have equal keys iff they are Equal.
func (a Identifier) Key() string {
	var sb strings.Builder
	for _, l := range a.Levels {
		fmt.Fprintf(&sb, "%d.%d:", l.Pos, l.Site)
	}
	fmt.Fprintf(&sb, "#%d", a.Counter)
	return sb.String()
}

// String renders the identifier for logs.
func (a Identifier) String() string {
	return a.Key()
}

// clone returns a deep copy so stored identifiers never alias caller slices.
func (a Identifier) clone() Identifier {
	levels := make([]Level, len(a.Levels))
	copy(levels, a.Levels)
	return Identifier{Levels: levels, Counter: a.Counter}
}

// sameLevels reports whether a and b carry an identical level sequence,
// whatever their counters.
func (a Identifier) sameLevels(b Identifier) bool {
	if len(a.Levels) != len(b.Levels) {
		return false
	}
	for i := range a.Levels {
		if a.Levels[i] != b.Levels[i] {
			return false
		}
	}
	return true
}

// level returns the level at depth i, substituting the given sentinel
// position when the identifier is shallower than i.
func (a Identifier) level(i int, sentinel uint64) Level {
	if i < len(a.Levels) {
		return a.Levels[i]
	}
	return Level{Pos: sentinel}
}
