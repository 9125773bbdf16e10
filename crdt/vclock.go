package crdt

// VClock maps each site to the highest operation clock observed from it.
// The relay server aggregates client VClocks into a causal-stability
// watermark: the element-wise minimum across all active clients, i.e. the
// frontier every peer is known to have seen.
type VClock map[SiteID]uint64

// Observe records that the given site's operations up to clock have been
// seen. Older observations never lower the recorded value.
func (v VClock) Observe(site SiteID, clock uint64) {
	if clock > v[site] {
		v[site] = clock
	}
}

// Merge folds other into v, keeping the per-site maximum.
func (v VClock) Merge(other VClock) {
	for site, clock := range other {
		v.Observe(site, clock)
	}
}

// Dominates reports whether the clock covers the given (site, clock) pair,
// meaning an operation with that stamp is at or below the frontier.
func (v VClock) Dominates(site SiteID, clock uint64) bool {
	return v[site] >= clock
}

// Clone returns an independent copy.
func (v VClock) Clone() VClock {
	c := make(VClock, len(v))
	for site, clock := range v {
		c[site] = clock
	}
	return c
}

// MinClock returns the element-wise minimum of the given clocks: a site is
// present in the result only if every input has observed it, at the lowest
// observed value. The result of folding all clients' versions is the
// stability watermark. MinClock of no clocks is an empty watermark, which
// dominates nothing.
func MinClock(clocks ...VClock) VClock {
	if len(clocks) == 0 {
		return VClock{}
	}

	floor := clocks[0].Clone()
	for _, other := range clocks[1:] {
		for site, clock := range floor {
			oc, ok := other[site]
			if !ok {
				delete(floor, site)
				continue
			}
			if oc < clock {
				floor[site] = oc
			}
		}
	}
	return floor
}
