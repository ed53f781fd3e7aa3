// Package geometry holds the planar primitives shared by the triangulation and
// path search engines. All functions are pure and operate on orb.Point values.
package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

// DefaultTolerance is used by callers that have no tolerance of their own.
const DefaultTolerance = 1e-9

// Segment is a line segment between two points
type Segment struct {
	P1, P2 orb.Point
}

// Location classifies a point against a triangle.
type Location int

const (
	Outside Location = iota
	Inside
	// OnEdge0..OnEdge2 name the edge (a,b), (b,c) or (c,a) the point lies on.
	OnEdge0
	OnEdge1
	OnEdge2
)

// Dist2D calculates Euclidean distance between two points
func Dist2D(p1, p2 orb.Point) float64 {
	dx := p1[0] - p2[0]
	dy := p1[1] - p2[1]
	return math.Sqrt(dx*dx + dy*dy)
}

// PointsEqual reports exact equality on both axes.
func PointsEqual(p1, p2 orb.Point) bool {
	return p1[0] == p2[0] && p1[1] == p2[1]
}

// Equal checks if two points are equal within tolerance
func Equal(p1, p2 orb.Point, tol float64) bool {
	return math.Abs(p1[0]-p2[0]) <= tol && math.Abs(p1[1]-p2[1]) <= tol
}

// Orient returns twice the signed area of the triangle (a, b, c).
// It is positive when the points turn counter-clockwise.
func Orient(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// Midpoint returns the midpoint of a segment.
func (s Segment) Midpoint() orb.Point {
	return orb.Point{(s.P1[0] + s.P2[0]) / 2, (s.P1[1] + s.P2[1]) / 2}
}

// Length of the segment.
func (s Segment) Length() float64 {
	return Dist2D(s.P1, s.P2)
}

// SegmentIntersect solves the 2x2 system for two segments. It returns false
// when the segments are parallel (|det| < tol) or when the intersection falls
// outside either segment. Parameters within tol of 0 or 1 snap the result to
// the matching endpoint of s1.
func SegmentIntersect(s1, s2 Segment, tol float64) (orb.Point, bool) {
	d1x := s1.P2[0] - s1.P1[0]
	d1y := s1.P2[1] - s1.P1[1]
	d2x := s2.P2[0] - s2.P1[0]
	d2y := s2.P2[1] - s2.P1[1]

	det := d1x*d2y - d1y*d2x
	if math.Abs(det) < tol {
		return orb.Point{}, false
	}

	ox := s2.P1[0] - s1.P1[0]
	oy := s2.P1[1] - s1.P1[1]
	t := (ox*d2y - oy*d2x) / det
	u := (ox*d1y - oy*d1x) / det

	if t < -tol || t > 1+tol || u < -tol || u > 1+tol {
		return orb.Point{}, false
	}

	switch {
	case math.Abs(t) <= tol:
		return s1.P1, true
	case math.Abs(t-1) <= tol:
		return s1.P2, true
	case math.Abs(u) <= tol:
		return s2.P1, true
	case math.Abs(u-1) <= tol:
		return s2.P2, true
	}
	return orb.Point{s1.P1[0] + t*d1x, s1.P1[1] + t*d1y}, true
}

// SegmentsCross checks if two segments cross at a single point interior to
// both. Touching at an endpoint or overlapping collinearly does not count.
func SegmentsCross(s1, s2 Segment, tol float64) bool {
	d1 := Orient(s2.P1, s2.P2, s1.P1)
	d2 := Orient(s2.P1, s2.P2, s1.P2)
	d3 := Orient(s1.P1, s1.P2, s2.P1)
	d4 := Orient(s1.P1, s1.P2, s2.P2)

	return ((d1 > tol && d2 < -tol) || (d1 < -tol && d2 > tol)) &&
		((d3 > tol && d4 < -tol) || (d3 < -tol && d4 > tol))
}

// Side returns the signed distance of p from the line through a and b,
// positive on the left. It is 0 when a and b coincide.
func Side(a, b, p orb.Point) float64 {
	l := Dist2D(a, b)
	if l == 0 {
		return 0
	}
	return Orient(a, b, p) / l
}

// EdgeMargin returns the smallest signed distance from p to the edge lines of
// the counter-clockwise triangle (a, b, c), together with the index of that
// edge. The margin is positive inside the triangle and negative outside.
func EdgeMargin(p, a, b, c orb.Point) (float64, int) {
	margin, edge := Side(a, b, p), 0
	if m := Side(b, c, p); m < margin {
		margin, edge = m, 1
	}
	if m := Side(c, a, p); m < margin {
		margin, edge = m, 2
	}
	return margin, edge
}

// PointInTriangle locates p against the triangle (a, b, c), which may be given
// in either winding. Points within distance tol of an edge line and inside
// the other two half planes are reported on that edge.
func PointInTriangle(p, a, b, c orb.Point, tol float64) Location {
	if Orient(a, b, c) < 0 {
		b, c = c, b
		loc := PointInTriangle(p, a, b, c, tol)
		// edges were renamed by the swap: (a,c)->2, (c,b)->1, (b,a)->0
		switch loc {
		case OnEdge0:
			return OnEdge2
		case OnEdge2:
			return OnEdge0
		}
		return loc
	}

	margin, edge := EdgeMargin(p, a, b, c)
	switch {
	case margin < -tol:
		return Outside
	case margin <= tol:
		return OnEdge0 + Location(edge)
	}
	return Inside
}

// PointInPolygon checks if a point is inside a ring using ray casting.
// A closing point repeated at the end is accepted.
func PointInPolygon(point orb.Point, ring orb.Ring) bool {
	n := len(ring)
	if n > 1 && ring[0] == ring[n-1] {
		n--
	}
	if n < 3 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := ring[i], ring[j]
		if (vi[1] > point[1]) != (vj[1] > point[1]) {
			x := (vj[0]-vi[0])*(point[1]-vi[1])/(vj[1]-vi[1]) + vi[0]
			if point[0] < x {
				inside = !inside
			}
		}
	}
	return inside
}

// PolygonArea returns the signed area of a ring, positive for counter-clockwise.
// The ring is fanned from its first vertex, so the result does not depend on
// how far the ring lies from the origin.
func PolygonArea(ring []orb.Point) float64 {
	n := len(ring)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 1; i < n-1; i++ {
		sum += Orient(ring[0], ring[i], ring[i+1])
	}
	return sum / 2
}

// HaversineDistance calculates the distance in meters between two lon/lat points.
func HaversineDistance(p1, p2 orb.Point) float64 {
	const earthRadiusMeters = 6371000.0

	lat1 := p1[1] * math.Pi / 180.0
	lat2 := p2[1] * math.Pi / 180.0
	deltaLat := (p2[1] - p1[1]) * math.Pi / 180.0
	deltaLon := (p2[0] - p1[0]) * math.Pi / 180.0

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
