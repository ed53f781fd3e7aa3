package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

// Circle is a circle given by its center and radius.
type Circle struct {
	Center orb.Point
	Radius float64
}

// Circumcircle computes the circle through a, b and c with the determinant
// form of the circumcenter, so axis aligned edges need no special casing.
// It returns false when the triangle is degenerate (|d| < tol).
func Circumcircle(a, b, c orb.Point, tol float64) (Circle, bool) {
	ax, ay := b[0]-a[0], b[1]-a[1]
	bx, by := c[0]-a[0], c[1]-a[1]

	d := 2 * (ax*by - ay*bx)
	if math.Abs(d) < tol || math.IsNaN(d) {
		return Circle{}, false
	}

	la := ax*ax + ay*ay
	lb := bx*bx + by*by
	ux := (by*la - ay*lb) / d
	uy := (ax*lb - bx*la) / d

	return Circle{
		Center: orb.Point{a[0] + ux, a[1] + uy},
		Radius: math.Hypot(ux, uy),
	}, true
}

// Contains reports whether p lies strictly inside the circle, by a margin of tol.
func (c Circle) Contains(p orb.Point, tol float64) bool {
	return Dist2D(p, c.Center) < c.Radius-tol
}

// Bound returns the bounding box of the circle.
func (c Circle) Bound() orb.Bound {
	return c.Center.Bound().Pad(c.Radius)
}

// InCircle reports whether p lies strictly inside the circumcircle of the
// triangle (a, b, c). Degenerate triangles have no circumcircle and always
// report false.
func InCircle(p, a, b, c orb.Point, tol float64) bool {
	circle, ok := Circumcircle(a, b, c, tol)
	if !ok {
		return false
	}
	return circle.Contains(p, tol)
}
