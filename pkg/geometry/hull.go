package geometry

import (
	"sort"

	"github.com/paulmach/orb"
)

// ConvexHull computes the convex hull using Andrew's monotone chain. The hull
// is returned counter-clockwise, without a repeated closing point and without
// collinear vertices.
//
// Degenerate input does not fail: duplicates are folded, a single distinct
// point is returned alone and collinear input yields its two extremes.
func ConvexHull(points []orb.Point) []orb.Point {
	sorted := make([]orb.Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}
		return sorted[i][1] < sorted[j][1]
	})

	// fold exact duplicates
	unique := sorted[:0]
	for i, p := range sorted {
		if i > 0 && p == unique[len(unique)-1] {
			continue
		}
		unique = append(unique, p)
	}
	if len(unique) < 3 {
		return unique
	}

	hull := make([]orb.Point, 0, 2*len(unique))

	// lower hull
	for _, p := range unique {
		for len(hull) >= 2 && Orient(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// upper hull
	lower := len(hull) + 1
	for i := len(unique) - 2; i >= 0; i-- {
		p := unique[i]
		for len(hull) >= lower && Orient(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// the last point repeats the first one
	hull = hull[:len(hull)-1]
	if len(hull) < 3 {
		// all collinear: the sweep leaves the two extremes
		return []orb.Point{unique[0], unique[len(unique)-1]}
	}
	return hull
}
