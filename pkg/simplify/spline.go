package simplify

import "github.com/paulmach/orb"

// Options configure CSpline.
type Options struct {
	// Tension scales the tangents. Default 0.5.
	Tension float64
	// PointsPerSegment is the number of points emitted per input segment,
	// the segment start included. Default 10.
	PointsPerSegment int
}

func (o Options) withDefaults() Options {
	if o.Tension == 0 {
		o.Tension = 0.5
	}
	if o.PointsPerSegment <= 0 {
		o.PointsPerSegment = 10
	}
	return o
}

// CSpline smooths a line with a cardinal spline through its vertices. The
// curve passes through every input vertex. A closed line, first point equal
// to the last, stays closed and smooth across the seam.
func CSpline(ls orb.LineString, opts Options) orb.LineString {
	if len(ls) < 3 {
		return ls.Clone()
	}
	opts = opts.withDefaults()

	closed := ls[0] == ls[len(ls)-1]
	n := len(ls)
	at := func(i int) orb.Point {
		if closed {
			// skip the repeated closing point when wrapping
			m := n - 1
			return ls[((i%m)+m)%m]
		}
		if i < 0 {
			return ls[0]
		}
		if i >= n {
			return ls[n-1]
		}
		return ls[i]
	}

	out := make(orb.LineString, 0, (n-1)*opts.PointsPerSegment+1)
	for i := 0; i < n-1; i++ {
		p0, p1, p2, p3 := at(i-1), at(i), at(i+1), at(i+2)
		t1 := orb.Point{(p2[0] - p0[0]) * opts.Tension, (p2[1] - p0[1]) * opts.Tension}
		t2 := orb.Point{(p3[0] - p1[0]) * opts.Tension, (p3[1] - p1[1]) * opts.Tension}

		out = append(out, p1)
		for k := 1; k < opts.PointsPerSegment; k++ {
			s := float64(k) / float64(opts.PointsPerSegment)
			s2, s3 := s*s, s*s*s

			// Hermite basis
			h1 := 2*s3 - 3*s2 + 1
			h2 := -2*s3 + 3*s2
			h3 := s3 - 2*s2 + s
			h4 := s3 - s2

			out = append(out, orb.Point{
				h1*p1[0] + h2*p2[0] + h3*t1[0] + h4*t2[0],
				h1*p1[1] + h2*p2[1] + h3*t1[1] + h4*t2[1],
			})
		}
	}
	return append(out, ls[n-1])
}
