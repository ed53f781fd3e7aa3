package delaunay

import (
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"mesh-planner/pkg/geometry"
)

// removePoint drops p, a live point, and repairs the mesh around it.
func (d *Triangulation) removePoint(p orb.Point) {
	d.points.Delete(p)
	delete(d.owners, p)

	if d.triangles.Len() == 0 {
		d.updateHull()
		return
	}
	if d.points.Len() < 3 {
		d.rebuild()
		return
	}

	if err := d.retriangulate(p); err != nil {
		d.log.Error("removal failed, rebuilding",
			zap.Float64("x", p[0]), zap.Float64("y", p[1]), zap.Error(err))
		d.rebuild()
		return
	}

	d.flipPass()
	if err := d.takeErr(); err != nil {
		d.log.Error("removal left an invalid mesh, rebuilding",
			zap.Float64("x", p[0]), zap.Float64("y", p[1]), zap.Error(err))
		d.rebuild()
		return
	}
	if d.triangles.Len() == 0 {
		d.rebuild()
		return
	}
	d.updateHull()
}

// retriangulate removes the triangles around p and fills the hole.
func (d *Triangulation) retriangulate(p orb.Point) error {
	inc := d.incident(p)
	if len(inc) == 0 {
		return invariantf("point %v has no triangles", p)
	}

	// link: for each triangle (p, x, y) the link edge x -> y
	next := make(map[orb.Point]orb.Point, len(inc))
	for _, t := range inc {
		i := t.index(p)
		next[t.v[(i+1)%3]] = t.v[(i+2)%3]
	}

	bi := -1
	for i, b := range d.boundary {
		if b == p {
			bi = i
			break
		}
	}

	if bi < 0 {
		ring := walkLink(next, inc[0].v[(inc[0].index(p)+1)%3], len(inc))
		if len(ring) != len(inc) || next[ring[len(ring)-1]] != ring[0] {
			return invariantf("open link around interior point %v", p)
		}
		for _, t := range inc {
			d.deleteTriangle(t)
		}
		return d.fillPolygon(ring)
	}

	n := len(d.boundary)
	prev, nxt := d.boundary[(bi+n-1)%n], d.boundary[(bi+1)%n]
	chain := walkLink(next, nxt, len(inc)+1)
	if len(chain) != len(inc)+1 || chain[len(chain)-1] != prev {
		return invariantf("broken link around boundary point %v", p)
	}
	for _, t := range inc {
		d.deleteTriangle(t)
	}

	chain = d.fillPocket(chain)

	// p leaves the boundary; what is left of the chain takes its place
	boundary := make([]orb.Point, 0, n+len(chain))
	boundary = append(boundary, d.boundary[:bi]...)
	for i := len(chain) - 2; i >= 1; i-- {
		boundary = append(boundary, chain[i])
	}
	boundary = append(boundary, d.boundary[bi+1:]...)
	d.boundary = boundary
	return nil
}

// walkLink follows next from start for at most limit vertices.
func walkLink(next map[orb.Point]orb.Point, start orb.Point, limit int) []orb.Point {
	out := []orb.Point{start}
	for cur := start; len(out) < limit; {
		n, ok := next[cur]
		if !ok {
			break
		}
		if n == start {
			break
		}
		out = append(out, n)
		cur = n
	}
	return out
}

// fillPolygon triangulates the counter-clockwise ring by ear clipping,
// preferring ears whose circumcircle holds no other ring vertex.
func (d *Triangulation) fillPolygon(ring []orb.Point) error {
	ring = append([]orb.Point(nil), ring...)
	for guard := len(ring) * len(ring); len(ring) > 3; guard-- {
		if guard == 0 {
			return invariantf("no ear in ring of %d vertices", len(ring))
		}
		i := d.pickEar(ring, true)
		if i < 0 {
			return invariantf("no ear in ring of %d vertices", len(ring))
		}
		n := len(ring)
		d.addTriangle(ring[(i+n-1)%n], ring[i], ring[(i+1)%n])
		ring = append(ring[:i], ring[i+1:]...)
	}
	if geometry.Side(ring[0], ring[1], ring[2]) <= d.eps {
		return invariantf("degenerate last ear %v", ring)
	}
	d.addTriangle(ring[0], ring[1], ring[2])
	return nil
}

// fillPocket clips the pockets of the open chain left by a boundary point.
// The chain that remains bulges outwards and becomes part of the boundary.
func (d *Triangulation) fillPocket(chain []orb.Point) []orb.Point {
	chain = append([]orb.Point(nil), chain...)
	for len(chain) > 2 {
		i := d.pickEar(chain, false)
		if i < 0 {
			break
		}
		d.addTriangle(chain[i-1], chain[i], chain[i+1])
		chain = append(chain[:i], chain[i+1:]...)
	}
	return chain
}

// pickEar returns the index of an ear of poly, or -1. Both the closed ring
// and the open chain run counter-clockwise around the removed point, so ears
// turn left.
func (d *Triangulation) pickEar(poly []orb.Point, closed bool) int {
	n := len(poly)
	lo, hi := 1, n-1
	if closed {
		lo, hi = 0, n
	}

	fallback := -1
	for i := lo; i < hi; i++ {
		a, b, c := poly[(i+n-1)%n], poly[i], poly[(i+1)%n]
		if geometry.Side(a, b, c) <= d.eps {
			continue
		}
		if d.earBlocked(poly, a, b, c) {
			continue
		}
		if fallback < 0 {
			fallback = i
		}
		if d.earEmpty(poly, a, b, c) {
			return i
		}
	}
	return fallback
}

// earBlocked reports whether another vertex of poly lies in the ear.
func (d *Triangulation) earBlocked(poly []orb.Point, a, b, c orb.Point) bool {
	for _, q := range poly {
		if q == a || q == b || q == c {
			continue
		}
		if geometry.PointInTriangle(q, a, b, c, d.eps) != geometry.Outside {
			return true
		}
	}
	return false
}

// earEmpty reports whether the circumcircle of the ear holds no other vertex.
func (d *Triangulation) earEmpty(poly []orb.Point, a, b, c orb.Point) bool {
	circle, ok := geometry.Circumcircle(a, b, c, 0)
	if !ok {
		return false
	}
	for _, q := range poly {
		if q == a || q == b || q == c {
			continue
		}
		if circle.Contains(q, d.eps) {
			return false
		}
	}
	return true
}
