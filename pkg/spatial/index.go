// Package spatial wraps an R-tree so that arbitrary comparable handles can be
// indexed by their bounding box.
package spatial

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// minExtent is the smallest side length handed to the R-tree; rtreego refuses
// zero-length rectangles, which points and axis aligned segments would produce.
const minExtent = 1e-12

// entry wraps a handle for R-tree storage
type entry[K comparable] struct {
	key   K
	bound orb.Bound
	rect  rtreego.Rect
	seq   uint64
}

// Bounds implements rtreego.Spatial interface
func (e *entry[K]) Bounds() rtreego.Rect {
	return e.rect
}

// Index manages spatial queries over handles of type K. It is not safe for
// concurrent use; owners guard it with their own lock.
type Index[K comparable] struct {
	tree    *rtreego.Rtree
	entries map[K]*entry[K]
	seq     uint64
}

// New creates a new, empty spatial index
func New[K comparable]() *Index[K] {
	return &Index[K]{
		tree:    rtreego.NewTree(2, 25, 50), // 2D, min 25, max 50 entries per node
		entries: make(map[K]*entry[K]),
	}
}

// Len returns the number of indexed handles.
func (ix *Index[K]) Len() int {
	return len(ix.entries)
}

// Insert indexes k under bound b. Inserting a handle that is already present
// replaces its bound.
func (ix *Index[K]) Insert(k K, b orb.Bound) {
	if _, ok := ix.entries[k]; ok {
		ix.Delete(k)
	}
	ix.seq++
	e := &entry[K]{key: k, bound: b, rect: toRect(b), seq: ix.seq}
	ix.entries[k] = e
	ix.tree.Insert(e)
}

// Delete removes k from the index and reports whether it was present.
func (ix *Index[K]) Delete(k K) bool {
	e, ok := ix.entries[k]
	if !ok {
		return false
	}
	delete(ix.entries, k)
	return ix.tree.Delete(e)
}

// Bound returns the bound k was indexed with.
func (ix *Index[K]) Bound(k K) (orb.Bound, bool) {
	e, ok := ix.entries[k]
	if !ok {
		return orb.Bound{}, false
	}
	return e.bound, true
}

// Search returns the handles whose bound intersects b, in insertion order.
func (ix *Index[K]) Search(b orb.Bound) []K {
	results := ix.tree.SearchIntersect(toRect(b))
	found := make([]*entry[K], 0, len(results))
	for _, item := range results {
		e := item.(*entry[K])
		// the R-tree works on padded rectangles, confirm against the real bound
		if e.bound.Intersects(b) {
			found = append(found, e)
		}
	}
	return sortedKeys(found)
}

// Nearest returns up to n handles ordered by the distance from p to their
// bounding rectangle.
func (ix *Index[K]) Nearest(p orb.Point, n int) []K {
	if n <= 0 || len(ix.entries) == 0 {
		return nil
	}
	results := ix.tree.NearestNeighbors(n, rtreego.Point{p[0], p[1]})
	keys := make([]K, 0, len(results))
	for _, item := range results {
		if item == nil {
			continue
		}
		keys = append(keys, item.(*entry[K]).key)
	}
	return keys
}

// All returns every handle in insertion order.
func (ix *Index[K]) All() []K {
	found := make([]*entry[K], 0, len(ix.entries))
	for _, e := range ix.entries {
		found = append(found, e)
	}
	return sortedKeys(found)
}

func sortedKeys[K comparable](found []*entry[K]) []K {
	sort.Slice(found, func(i, j int) bool { return found[i].seq < found[j].seq })
	keys := make([]K, len(found))
	for i, e := range found {
		keys[i] = e.key
	}
	return keys
}

// toRect converts a bound into an R-tree rectangle, widening degenerate sides.
func toRect(b orb.Bound) rtreego.Rect {
	origin := rtreego.Point{b.Min[0], b.Min[1]}
	lengths := []float64{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1]}
	for i := range lengths {
		pad := math.Max(minExtent, math.Abs(origin[i])*1e-15)
		if lengths[i] < pad {
			origin[i] -= pad / 2
			lengths[i] = pad
		}
	}

	rect, err := rtreego.NewRect(origin, lengths)
	if err != nil {
		// only reachable with NaN coordinates
		return rtreego.Point{0, 0}.ToRect(minExtent)
	}
	return rect
}
