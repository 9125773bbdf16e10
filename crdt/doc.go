package crdt

import (
	"sort"
	"strings"
)

// Entry is one character slot in the document: an identifier, its payload,
// and the tombstone state. The payload and identifier never change after
// creation; deletion only raises the tombstone flag, and the entry is
// physically removed only by Collect once the delete is causally stable.
type Entry struct {
	ID        Identifier `json:"id"`
	Value     string     `json:"value"`
	Tombstone bool       `json:"tombstone"`

	// Stamp of the delete operation, used for stability tracking.
	// Meaningful only while Tombstone is set.
	DeletedBy SiteID `json:"deletedBy,omitempty"`
	DeletedAt uint64 `json:"deletedAt,omitempty"`
}

// pendingDelete records a delete that arrived before its insert. The
// matching insert, whenever it lands, is integrated already tombstoned.
type pendingDelete struct {
	site  SiteID
	clock uint64
}

// Document is the replicated sequence: entries sorted by identifier, with
// the visible text being the projection of non-tombstoned entries. All
// mutation goes through Integrate, which is idempotent, commutative and
// order-independent, so any permutation of a delivered operation set
// converges to the same state.
//
// Document does no locking of its own; the owning session provides the
// single mutation path.
type Document struct {
	entries []Entry
	pending map[string]pendingDelete
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{pending: make(map[string]pendingDelete)}
}

// search locates the slot for id in the entry slice, reporting whether an
// entry with that exact identifier is already present.
func (d *Document) search(id Identifier) (int, bool) {
	i := sort.Search(len(d.entries), func(i int) bool {
		return d.entries[i].ID.Compare(id) >= 0
	})
	if i < len(d.entries) && d.entries[i].ID.Equal(id) {
		return i, true
	}
	return i, false
}

// Integrate applies an operation to the document and reports whether it
// changed state. Duplicate deliveries and reordered insert/delete pairs
// are absorbed here:
//
//   - an insert for a known identifier is a no-op, tombstoned or not;
//   - an insert matching a pending delete lands already tombstoned;
//   - a delete for an unknown identifier is parked as a pending tombstone;
//   - a repeated delete is a no-op.
//
// Operations are never rejected.
func (d *Document) Integrate(op Operation) bool {
	switch op.Kind {
	case OpInsert:
		return d.integrateInsert(op)
	case OpDelete:
		return d.integrateDelete(op)
	}
	return false
}

func (d *Document) integrateInsert(op Operation) bool {
	i, found := d.search(op.ID)
	if found {
		return false
	}

	e := Entry{ID: op.ID.clone(), Value: op.Value}

	key := op.ID.Key()
	if pd, ok := d.pending[key]; ok {
		e.Tombstone = true
		e.DeletedBy = pd.site
		e.DeletedAt = pd.clock
		delete(d.pending, key)
	}

	d.entries = append(d.entries, Entry{})
	copy(d.entries[i+1:], d.entries[i:])
	d.entries[i] = e
	return true
}

func (d *Document) integrateDelete(op Operation) bool {
	i, found := d.search(op.ID)
	if !found {
		key := op.ID.Key()
		if pd, ok := d.pending[key]; ok {
			if !stampLess(op.Site, op.Clock, pd.site, pd.clock) {
				return false
			}
			d.pending[key] = pendingDelete{site: op.Site, clock: op.Clock}
			return true
		}
		d.pending[key] = pendingDelete{site: op.Site, clock: op.Clock}
		return true
	}

	e := &d.entries[i]
	if e.Tombstone {
		// Concurrent deletes of the same entry race their stamps here.
		// Keep the smallest (site, clock) so every replica settles on the
		// same stamp, and with it the same collectability decision.
		if !stampLess(op.Site, op.Clock, e.DeletedBy, e.DeletedAt) {
			return false
		}
		e.DeletedBy = op.Site
		e.DeletedAt = op.Clock
		return true
	}
	e.Tombstone = true
	e.DeletedBy = op.Site
	e.DeletedAt = op.Clock
	return true
}

// stampLess orders delete stamps by (site, clock).
func stampLess(site SiteID, clock uint64, thanSite SiteID, thanClock uint64) bool {
	if site != thanSite {
		return site < thanSite
	}
	return clock < thanClock
}

// Content returns the visible text: non-tombstoned entries in identifier
// order.
func (d *Document) Content() string {
	var sb strings.Builder
	for _, e := range d.entries {
		if !e.Tombstone {
			sb.WriteString(e.Value)
		}
	}
	return sb.String()
}

// VisibleLength returns the number of visible characters.
func (d *Document) VisibleLength() int {
	n := 0
	for _, e := range d.entries {
		if !e.Tombstone {
			n++
		}
	}
	return n
}

// Length returns the total number of entries, tombstones included.
func (d *Document) Length() int {
	return len(d.entries)
}

// IthVisible returns the i-th visible entry (0-based). It is the bridge
// from a cursor offset to an identifier: the allocator's neighbors for an
// insert at offset n are the (n-1)-th and n-th visible entries, with the
// sentinels standing in at the boundaries.
func (d *Document) IthVisible(i int) (Entry, bool) {
	if i < 0 {
		return Entry{}, false
	}
	n := 0
	for _, e := range d.entries {
		if e.Tombstone {
			continue
		}
		if n == i {
			return e, true
		}
		n++
	}
	return Entry{}, false
}

// Entries returns a copy of all entries, tombstones included.
func (d *Document) Entries() []Entry {
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Collect removes tombstoned entries whose delete is covered by the
// causal-stability watermark and returns how many were reclaimed. Entries
// above the watermark stay: a peer that has not seen the delete may still
// route an insert around them. Live entries are never touched. Pending
// deletes are kept until their insert arrives.
func (d *Document) Collect(watermark VClock) int {
	kept := d.entries[:0]
	removed := 0
	for _, e := range d.entries {
		if e.Tombstone && watermark.Dominates(e.DeletedBy, e.DeletedAt) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(d.entries); i++ {
		d.entries[i] = Entry{}
	}
	d.entries = kept
	return removed
}

// DepthStats reports the maximum and mean identifier depth across all
// entries, for depth-distribution logging. Depth growth is expected and
// never capped; the stats exist to observe it, not to bound it.
func (d *Document) DepthStats() (max int, mean float64) {
	if len(d.entries) == 0 {
		return 0, 0
	}
	total := 0
	for _, e := range d.entries {
		depth := e.ID.Depth()
		total += depth
		if depth > max {
			max = depth
		}
	}
	return max, float64(total) / float64(len(d.entries))
}
