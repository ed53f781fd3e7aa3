package pathfind

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"mesh-planner/pkg/geometry"
	"mesh-planner/pkg/spatial"
)

// Zones is a set of no-go polygons. Edges that touch a zone are blocked.
type Zones struct {
	polygons []orb.Polygon
	index    *spatial.Index[int]
}

// NewZones indexes the polygons. Zones that lie inside another zone add
// nothing and are dropped.
func NewZones(polygons []orb.Polygon) *Zones {
	z := &Zones{index: spatial.New[int]()}
	for i, p := range polygons {
		if len(p) == 0 || len(p[0]) < 3 || containedInOther(polygons, i) {
			continue
		}
		z.index.Insert(len(z.polygons), p.Bound())
		z.polygons = append(z.polygons, p)
	}
	return z
}

// ZonesFromFeatures collects the polygons of features.
func ZonesFromFeatures(features []*geojson.Feature) *Zones {
	var polygons []orb.Polygon
	for _, f := range features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			polygons = append(polygons, g)
		case orb.MultiPolygon:
			polygons = append(polygons, g...)
		}
	}
	return NewZones(polygons)
}

// Len returns the number of zones kept.
func (z *Zones) Len() int {
	return len(z.polygons)
}

// Clear reports whether the segment from p1 to p2 stays out of every zone:
// it does not cross a zone ring and neither its endpoints nor its midpoint
// lie inside one.
func (z *Zones) Clear(p1, p2 orb.Point) bool {
	seg := geometry.Segment{P1: p1, P2: p2}
	b := orb.Bound{Min: p1, Max: p1}.Extend(p2)
	for _, i := range z.index.Search(b) {
		poly := z.polygons[i]
		for _, ring := range poly {
			for k := 0; k+1 < len(ring); k++ {
				if _, ok := geometry.SegmentIntersect(seg, geometry.Segment{P1: ring[k], P2: ring[k+1]}, geometry.DefaultTolerance); ok {
					return false
				}
			}
		}
		if planar.PolygonContains(poly, p1) || planar.PolygonContains(poly, p2) ||
			planar.PolygonContains(poly, seg.Midpoint()) {
			return false
		}
	}
	return true
}

// Blocks reports whether any segment of ls touches a zone.
func (z *Zones) Blocks(ls orb.LineString) bool {
	for i := 0; i+1 < len(ls); i++ {
		if !z.Clear(ls[i], ls[i+1]) {
			return true
		}
	}
	return false
}

// Direction wraps a direction policy so that edges touching a zone are
// Blocked. Other edges keep the direction next gives them.
func (z *Zones) Direction(next func(*geojson.Feature) Direction) func(*geojson.Feature) Direction {
	return func(f *geojson.Feature) Direction {
		if ls, ok := f.Geometry.(orb.LineString); ok && z.Blocks(ls) {
			return Blocked
		}
		return next(f)
	}
}

func containedInOther(polygons []orb.Polygon, i int) bool {
	outer := polygons[i][0]
	b := outer.Bound()
	for j, other := range polygons {
		if i == j || len(other) == 0 {
			continue
		}
		ob := other.Bound()
		if !ob.Contains(b.Min) || !ob.Contains(b.Max) {
			continue
		}
		// identical zones: keep the first
		if j > i && b == ob {
			continue
		}
		inside := true
		for _, p := range outer {
			if !planar.PolygonContains(other, p) {
				inside = false
				break
			}
		}
		if inside {
			return true
		}
	}
	return false
}
