package crdt

import (
	"math/rand"
	"time"
)

// Base interval width for depth 0; doubles at each deeper level. Keeping
// early digits small leaves room above for sequential typing, which keeps
// identifier depth near O(log n) for the common append workload.
const (
	baseWidth uint64 = 1 << 4
	maxWidth  uint64 = 1 << 32
)

// Allocator mints identifiers for one site. Every call advances the
// per-site counter, so repeated allocations between the same neighbors are
// distinct even when the random digit choice repeats.
//
// Allocator is not safe for concurrent use; the owning session serializes
// calls under its mutation lock.
type Allocator struct {
	site    SiteID
	counter uint32
	rng     *rand.Rand
}

// NewAllocator returns an allocator for the given site.
func NewAllocator(site SiteID) *Allocator {
	return &Allocator{
		site: site,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// setSite rebinds the allocator to a server-assigned site ID.
func (a *Allocator) setSite(site SiteID) {
	a.site = site
}

// seed raises the counter past identifiers this site already minted, so a
// rebuilt allocator can never re-issue one of them.
func (a *Allocator) seed(counter uint32) {
	if counter > a.counter {
		a.counter = counter
	}
}

// Between returns a fresh identifier strictly between lower and upper.
// It walks the two bounds level by level, treating a missing level as the
// boundary sentinel at that depth. At the first depth with room between
// the two positions it picks a digit in the open interval and stops;
// adjacent digits force a descent to the next level. Depth extension is
// unbounded, so allocation never fails.
//
// The upper bound stops constraining the walk once the copied prefix
// diverges from it: from that point anything above the prefix is already
// below upper, so the remaining digits only need to clear lower.
//
// The bounds must differ somewhere in their level sequences. Two
// identifiers sharing a full level sequence are ordered by counter alone,
// and level comparison decides before the counter does, so no identifier
// can sort strictly between them; Between panics rather than hand back
// one that breaks the ordering. Document neighbors always satisfy this:
// the lower of two counter twins is a tombstone by construction (a site
// only re-mints a level sequence whose first bearer it has deleted), so
// visible neighbors never present as twins.
func (a *Allocator) Between(lower, upper Identifier) Identifier {
	if lower.sameLevels(upper) {
		panic("crdt: allocation bounds share a level sequence")
	}

	a.counter++

	levels := make([]Level, 0, len(lower.Levels)+1)
	bounded := true

	for depth := 0; ; depth++ {
		lo := lower.level(depth, posBegin)
		hi := Level{Pos: posEnd}
		if bounded {
			hi = upper.level(depth, posEnd)
		}

		if hi.Pos-lo.Pos > 1 {
			pos := a.pick(lo.Pos, hi.Pos, depth)
			levels = append(levels, Level{Pos: pos, Site: a.site})
			return Identifier{Levels: levels, Counter: a.counter}
		}

		levels = append(levels, lo)
		bounded = bounded && lo == hi
	}
}

// pick chooses a digit in the open interval (lo, hi) with bounded jitter:
// the candidate range is clipped to an exponentially growing per-depth
// width, then a uniform offset is drawn from it. The jitter keeps
// concurrent runs of insertions at the same spot from stacking adjacent
// digits, which would force depth growth.
func (a *Allocator) pick(lo, hi uint64, depth int) uint64 {
	width := maxWidth
	if depth < 28 {
		width = baseWidth << depth
	}

	span := hi - lo - 1
	if span > width {
		span = width
	}

	return lo + 1 + uint64(a.rng.Int63n(int64(span)))
}
