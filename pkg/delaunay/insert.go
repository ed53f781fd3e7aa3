package delaunay

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"

	"mesh-planner/pkg/geometry"
)

// insertPoint adds p to the live set and the mesh. It returns false for
// duplicates.
func (d *Triangulation) insertPoint(p orb.Point, owner *geojson.Feature) bool {
	if _, dup := d.findPoint(p); dup {
		return false
	}
	d.points.Insert(p, p.Bound())
	d.owners[p] = owner

	if d.triangles.Len() == 0 {
		d.rebuild()
		return true
	}

	d.insertIntoMesh(p)
	d.flipPass()
	if err := d.takeErr(); err != nil {
		d.log.Error("insertion failed, rebuilding",
			zap.Float64("x", p[0]), zap.Float64("y", p[1]), zap.Error(err))
		d.rebuild()
	}
	d.updateHull()
	return true
}

// rebuild triangulates every live point from scratch. Without three
// non-collinear points there is no mesh at all.
func (d *Triangulation) rebuild() {
	if d.rebuilding {
		d.log.Error("nested rebuild", zap.Error(invariantf("rebuild while rebuilding")))
		return
	}
	d.rebuilding = true
	defer func() { d.rebuilding = false }()
	d.err = nil

	if d.triangles.Len() > 0 {
		d.stats.Rebuilds++
	}
	for _, t := range d.triangles.All() {
		d.deleteTriangle(t)
	}
	d.flip = d.flip[:0]
	d.boundary = nil

	pts := d.points.All()
	seed := -1
	if len(pts) >= 3 {
		for i := 2; i < len(pts); i++ {
			if math.Abs(geometry.Side(pts[0], pts[1], pts[i])) > d.eps {
				seed = i
				break
			}
		}
	}
	if seed < 0 {
		d.updateHull()
		return
	}

	a, b, c := pts[0], pts[1], pts[seed]
	if geometry.Orient(a, b, c) < 0 {
		b, c = c, b
	}
	d.addTriangle(a, b, c)
	d.boundary = []orb.Point{a, b, c}
	for i, p := range pts {
		if i == 0 || i == 1 || i == seed {
			continue
		}
		d.insertIntoMesh(p)
		d.flipPass()
	}
	if err := d.takeErr(); err != nil {
		d.log.Error("rebuild left an invalid mesh", zap.Error(err))
	}
	d.updateHull()
}

// insertIntoMesh links p, already a live point, into the existing mesh.
func (d *Triangulation) insertIntoMesh(p orb.Point) {
	t, loc := d.locate(p)
	switch loc {
	case geometry.Inside:
		d.deleteTriangle(t)
		d.addTriangle(t.v[0], t.v[1], p)
		d.addTriangle(t.v[1], t.v[2], p)
		d.addTriangle(t.v[2], t.v[0], p)
	case geometry.OnEdge0, geometry.OnEdge1, geometry.OnEdge2:
		d.splitEdge(t, int(loc-geometry.OnEdge0), p)
	default:
		d.insertOutside(p)
	}
}

// locate finds the triangle containing p: the candidate whose edges p clears
// by the widest margin. Within eps of that triangle's nearest edge, p is
// reported on the edge.
func (d *Triangulation) locate(p orb.Point) (*triangle, geometry.Location) {
	var (
		best   *triangle
		margin = math.Inf(-1)
		edge   int
	)
	for _, t := range d.triangles.Search(p.Bound().Pad(d.eps)) {
		if m, i := geometry.EdgeMargin(p, t.v[0], t.v[1], t.v[2]); m > margin {
			best, margin, edge = t, m, i
		}
	}
	switch {
	case best == nil || margin < -d.eps:
		return nil, geometry.Outside
	case margin <= d.eps:
		return best, geometry.OnEdge0 + geometry.Location(edge)
	}
	return best, geometry.Inside
}

// splitEdge inserts p on edge i of t, splitting the neighbour across that
// edge too when there is one.
func (d *Triangulation) splitEdge(t *triangle, i int, p orb.Point) {
	u, v, w := t.v[i], t.v[(i+1)%3], t.v[(i+2)%3]
	nb := d.halfEdges[edgeKey{v, u}]

	d.deleteTriangle(t)
	d.addTriangle(u, p, w)
	d.addTriangle(p, v, w)

	if nb != nil {
		x := nb.opposite(v, u)
		d.deleteTriangle(nb)
		d.addTriangle(v, p, x)
		d.addTriangle(p, u, x)
		return
	}

	// boundary edge: p joins the boundary between u and v
	for k, b := range d.boundary {
		if b == u && d.boundary[(k+1)%len(d.boundary)] == v {
			d.boundary = insertAt(d.boundary, k+1, p)
			return
		}
	}
	d.log.Error("boundary edge not found", zap.Error(invariantf("edge (%v, %v)", u, v)))
	d.rebuild()
}

// insertOutside fans p onto every boundary edge it sees.
func (d *Triangulation) insertOutside(p orb.Point) {
	n := len(d.boundary)
	visible := make([]bool, n)
	seen := false
	for i := 0; i < n; i++ {
		visible[i] = geometry.Side(d.boundary[i], d.boundary[(i+1)%n], p) < -d.eps
		seen = seen || visible[i]
	}
	if !seen {
		// numerically on the boundary but missed by every triangle: split the
		// closest boundary edge
		d.log.Warn("point sees no boundary edge",
			zap.Float64("x", p[0]), zap.Float64("y", p[1]))
		d.splitBoundary(p)
		return
	}

	// first visible edge whose predecessor is hidden
	start := 0
	for i := 0; i < n; i++ {
		if visible[i] && !visible[(i+n-1)%n] {
			start = i
			break
		}
	}
	end := start
	for visible[(end+1)%n] && (end+1)%n != start {
		end = (end + 1) % n
	}

	for i := start; ; i = (i + 1) % n {
		d.addTriangle(d.boundary[i], p, d.boundary[(i+1)%n])
		if i == end {
			break
		}
	}

	// the vertices strictly inside the visible chain leave the boundary
	boundary := make([]orb.Point, 0, n+1)
	for i := (end + 1) % n; ; i = (i + 1) % n {
		boundary = append(boundary, d.boundary[i])
		if i == start {
			break
		}
	}
	d.boundary = append(boundary, p)
}

// splitBoundary splits the boundary edge closest to p.
func (d *Triangulation) splitBoundary(p orb.Point) {
	n := len(d.boundary)
	best, bestDist := 0, math.Inf(1)
	for i := 0; i < n; i++ {
		if dist := planar.DistanceFromSegment(d.boundary[i], d.boundary[(i+1)%n], p); dist < bestDist {
			best, bestDist = i, dist
		}
	}
	u, v := d.boundary[best], d.boundary[(best+1)%n]
	t := d.halfEdges[edgeKey{u, v}]
	if t == nil {
		d.log.Error("boundary edge has no triangle", zap.Error(invariantf("edge (%v, %v)", u, v)))
		d.rebuild()
		return
	}
	d.splitEdge(t, t.index(u), p)
}

func insertAt(points []orb.Point, i int, p orb.Point) []orb.Point {
	points = append(points, orb.Point{})
	copy(points[i+1:], points[i:])
	points[i] = p
	return points
}
