package pathfind

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// node is a graph vertex reached during one search.
type node struct {
	coord  orb.Point
	dist   float64 // unweighted distance from the start
	wdist  float64 // weighted distance from the start
	dtotal float64 // wdist plus the lower bound to the goal
	from   *geojson.Feature
	prev   *node
	index  int    // position in the frontier, -1 when not queued
	seq    uint64 // insertion order, breaks dtotal ties
}

// frontier implements heap.Interface ordered by dtotal then seq.
type frontier []*node

func (pq frontier) Len() int { return len(pq) }

func (pq frontier) Less(i, j int) bool {
	if pq[i].dtotal != pq[j].dtotal {
		return pq[i].dtotal < pq[j].dtotal
	}
	return pq[i].seq < pq[j].seq
}

func (pq frontier) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *frontier) Push(x interface{}) {
	n := len(*pq)
	nd := x.(*node)
	nd.index = n
	*pq = append(*pq, nd)
}

func (pq *frontier) Pop() interface{} {
	old := *pq
	n := len(old)
	nd := old[n-1]
	old[n-1] = nil
	nd.index = -1
	*pq = old[0 : n-1]
	return nd
}

// route walks the prev links back to the start and returns the edges in
// travel order.
func (n *node) route() []*geojson.Feature {
	var out []*geojson.Feature
	for cur := n; cur != nil && cur.from != nil; cur = cur.prev {
		out = append(out, cur.from)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
