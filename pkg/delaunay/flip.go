package delaunay

import (
	"go.uber.org/zap"

	"mesh-planner/pkg/geometry"
)

// flipPass legalizes the triangles queued since the last pass. An edge is
// flipped when the vertex across it lies inside the circumcircle and the
// quadrilateral around it is convex.
func (d *Triangulation) flipPass() {
	iterations := 0
	for len(d.flip) > 0 {
		t := d.flip[len(d.flip)-1]
		d.flip = d.flip[:len(d.flip)-1]
		if !t.alive {
			continue
		}

		if iterations >= d.maxFlips {
			d.stats.FlipLimitHits++
			d.log.Error("flip limit reached, mesh may not be delaunay",
				zap.Int("maxFlips", d.maxFlips),
				zap.Int("pending", len(d.flip)+1))
			d.flip = d.flip[:0]
			return
		}
		iterations++

		d.legalize(t)
	}
}

// legalize flips the first illegal edge of t, if any. The two replacement
// triangles are queued again by addTriangle.
func (d *Triangulation) legalize(t *triangle) {
	for i := 0; i < 3; i++ {
		u, v, a := t.v[i], t.v[(i+1)%3], t.v[(i+2)%3]
		nb := d.halfEdges[edgeKey{v, u}]
		if nb == nil {
			continue
		}
		b := nb.opposite(v, u)

		if t.hasCircle && !t.circle.Contains(b, d.eps) {
			continue
		}
		if !geometry.SegmentsCross(geometry.Segment{P1: a, P2: b}, geometry.Segment{P1: u, P2: v}, 0) {
			continue
		}

		d.deleteTriangle(t)
		d.deleteTriangle(nb)
		d.addTriangle(u, b, a)
		d.addTriangle(b, v, a)
		d.stats.Flips++
		return
	}
}
