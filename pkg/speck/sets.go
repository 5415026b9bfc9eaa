// Package speck implements the SPECK (Set-Partitioning Embedded bloCK)
// bit-plane coder: the LIS/LIP/LSP state-list skeleton,
// octree/quadtree/bisection set partitioning, and the significance/
// sign/refinement context contract shared with the tarp engine.
//
// Sets live in a flat arena (one []Set per Coder instance) addressed by
// index, replacing the source's linked lists of heap-allocated set
// nodes: LIS[ℓ]
// stores indices into the arena, CodeS pushes children and marks the
// parent Empty in place, and a sweep after each pass compacts out
// Empty/garbage entries. No pointer cycles are possible.
package speck

// Set is one node of the set-partitioning tree: an axis-aligned box
// within the coefficient grid plus its remaining split-count (the
// bucket it belongs to in LIS).
type Set struct {
	OX, OY, OZ int
	NX, NY, NZ int
	Level      int // remaining split-count; LIS bucket index
	Empty      bool
}

// IsPixel reports whether this set has degenerated to a single sample.
func (s Set) IsPixel() bool {
	return s.NX == 1 && s.NY == 1 && s.NZ == 1
}

// arena is the owning allocator for a Coder's sets. Indices are stable
// for the lifetime of a Coder; Empty sets are never physically removed
// from the arena, only filtered out of LIS buckets during the sweep.
type arena struct {
	sets []Set
}

func (a *arena) alloc(s Set) int {
	a.sets = append(a.sets, s)
	return len(a.sets) - 1
}

func (a *arena) get(i int) *Set {
	return &a.sets[i]
}

// axisHalf describes one half of an axis split: its origin offset and
// extent, relative to the parent's origin on that axis.
type axisHalf struct {
	offset, extent int
}

// axisHalvesSPECK splits length len into SPECK's own halves
// (split = len/2 for the first half), distinct from
// the DWT's ceil/floor convention. A degenerate (len==1) axis yields a
// single half so its cardinality never doubles the child count.
func axisHalvesSPECK(length int) []axisHalf {
	if length <= 1 {
		return []axisHalf{{0, length}}
	}
	split := length / 2
	return []axisHalf{
		{0, split},
		{split, length - split},
	}
}

// bisectHalves is the 1D bisection rule: first_len = len - len/2.
func bisectHalves(length int) (first, second axisHalf) {
	firstLen := length - length/2
	return axisHalf{0, firstLen}, axisHalf{firstLen, length - firstLen}
}
