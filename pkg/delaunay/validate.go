package delaunay

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"mesh-planner/pkg/geometry"
)

// Validate checks the structural invariants of the mesh: every circumcircle
// is empty, the hull is the convex hull of the live points, the triangles
// tile the hull and every live point is a vertex. It is meant for tests and
// diagnostics; the cost is quadratic in the number of points.
func (d *Triangulation) Validate() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	points := d.points.All()
	triangles := d.triangles.All()

	if len(triangles) == 0 {
		if len(points) >= 3 && !collinear(points, d.eps) {
			return errors.Errorf("%d non-collinear points but no triangles", len(points))
		}
		return nil
	}

	used := make(map[orb.Point]bool, len(points))
	var area float64
	for _, t := range triangles {
		for _, v := range t.v {
			used[v] = true
		}
		a := t.area()
		if a <= 0 {
			return errors.Errorf("triangle %v is not counter-clockwise", t.v)
		}
		area += a

		if !t.hasCircle {
			continue
		}
		tol := d.eps * math.Max(1, t.circle.Radius)
		for _, p := range d.points.Search(t.circle.Bound()) {
			if t.index(p) >= 0 {
				continue
			}
			if t.circle.Contains(p, tol) {
				return errors.Errorf("point %v inside circumcircle of %v", p, t.v)
			}
		}
	}

	for _, p := range points {
		if !used[p] {
			return errors.Errorf("point %v is not a vertex", p)
		}
	}

	want := geometry.ConvexHull(points)
	if !sameRing(want, d.hull) {
		return errors.Errorf("hull %v, want %v", d.hull, want)
	}

	hullArea := geometry.PolygonArea(d.hull)
	if math.Abs(area-hullArea) > 1e-9*math.Max(1, hullArea) {
		return errors.Errorf("triangle area %g, hull area %g", area, hullArea)
	}

	if bArea := geometry.PolygonArea(d.boundary); math.Abs(bArea-hullArea) > 1e-9*math.Max(1, hullArea) {
		return errors.Errorf("boundary area %g, hull area %g", bArea, hullArea)
	}
	return nil
}

func collinear(points []orb.Point, eps float64) bool {
	for i := 2; i < len(points); i++ {
		if math.Abs(geometry.Side(points[0], points[1], points[i])) > eps {
			return false
		}
	}
	return true
}

// sameRing compares two rings up to rotation.
func sameRing(a, b []orb.Point) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	for shift := range b {
		if b[shift] != a[0] {
			continue
		}
		for i := range a {
			if a[i] != b[(i+shift)%len(b)] {
				return false
			}
		}
		return true
	}
	return false
}
