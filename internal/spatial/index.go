package spatial

import (
	"math"
	"sort"

	"github.com/zfe-tiles/server/internal/viewport"
)

// Index buckets candidates on a uniform grid whose cell edge equals the hit
// radius, so a query only inspects the 3×3 block around the cursor. Results
// match HitTester.Find over the full slice.
type Index struct {
	tester  HitTester
	cands   []Candidate
	buckets map[[2]int][]int
}

// NewIndex builds a bucket index over cands for tester.
func NewIndex(tester HitTester, cands []Candidate) *Index {
	idx := &Index{
		tester:  tester,
		cands:   cands,
		buckets: make(map[[2]int][]int, len(cands)/4+1),
	}
	for i, c := range cands {
		k := idx.cell(c.Screen)
		idx.buckets[k] = append(idx.buckets[k], i)
	}
	return idx
}

func (idx *Index) cell(p viewport.Point) [2]int {
	r := idx.tester.radius()
	return [2]int{int(math.Floor(p.X / r)), int(math.Floor(p.Y / r))}
}

// Find returns the position in the indexed slice of the winning candidate.
func (idx *Index) Find(cursor viewport.Point) (int, bool) {
	c := idx.cell(cursor)
	var near []int
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			near = append(near, idx.buckets[[2]int{c[0] + dx, c[1] + dy}]...)
		}
	}
	if len(near) == 0 {
		return -1, false
	}
	// Restore iteration order so ties resolve as in a linear scan.
	sort.Ints(near)

	subset := make([]Candidate, len(near))
	for i, pos := range near {
		subset[i] = idx.cands[pos]
	}
	i, ok := idx.tester.Find(cursor, subset)
	if !ok {
		return -1, false
	}
	return near[i], true
}

// Key returns the caller key of the candidate at position i.
func (idx *Index) Key(i int) int { return idx.cands[i].Key }

// Len returns the number of indexed candidates.
func (idx *Index) Len() int { return len(idx.cands) }
