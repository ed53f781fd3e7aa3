// Package simplify reduces and smooths line geometry. Reduction is done by
// the orb simplifiers, wrapped so that polygon rings stay closed; smoothing is
// a cardinal spline.
package simplify

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	orbsimplify "github.com/paulmach/orb/simplify"
)

// Reducer drops vertices from a line. The endpoints are kept.
type Reducer func(orb.LineString) orb.LineString

// Visvalingam removes the vertices that span the smallest triangle area
// until every remaining one spans at least threshold, keeping at least keep
// points.
func Visvalingam(ls orb.LineString, threshold float64, keep int) orb.LineString {
	if len(ls) <= 2 {
		return ls.Clone()
	}
	return orbsimplify.Visvalingam(threshold, keep).LineString(ls.Clone())
}

// DouglasPeucker keeps the vertices farther than threshold from the chord of
// the part of the line they belong to.
func DouglasPeucker(ls orb.LineString, threshold float64) orb.LineString {
	if len(ls) <= 2 {
		return ls.Clone()
	}
	return orbsimplify.DouglasPeucker(threshold).LineString(ls.Clone())
}

// ByVisvalingam binds Visvalingam to its parameters.
func ByVisvalingam(threshold float64, keep int) Reducer {
	return func(ls orb.LineString) orb.LineString { return Visvalingam(ls, threshold, keep) }
}

// ByDouglasPeucker binds DouglasPeucker to threshold.
func ByDouglasPeucker(threshold float64) Reducer {
	return func(ls orb.LineString) orb.LineString { return DouglasPeucker(ls, threshold) }
}

// Ring reduces a closed ring. The result stays closed; when fewer than four
// points would remain the ring is returned unchanged.
func Ring(r orb.Ring, reduce Reducer) orb.Ring {
	if len(r) <= 4 {
		return r.Clone()
	}
	open := r
	if r.Closed() {
		open = r[:len(r)-1]
	}

	// reduce as a line through the start point twice so the seam is kept
	line := append(orb.LineString(nil), open...)
	line = append(line, open[0])
	out := reduce(line)
	if len(out) < 4 {
		return r.Clone()
	}
	return orb.Ring(out)
}

// Geometry reduces the lines and polygon rings of g. Points and unknown
// types are returned as they are.
func Geometry(g orb.Geometry, reduce Reducer) orb.Geometry {
	switch g := g.(type) {
	case orb.LineString:
		return reduce(g)
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(g))
		for i, ls := range g {
			out[i] = reduce(ls)
		}
		return out
	case orb.Ring:
		return Ring(g, reduce)
	case orb.Polygon:
		return polygon(g, reduce)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(g))
		for i, p := range g {
			out[i] = polygon(p, reduce)
		}
		return out
	case orb.Collection:
		out := make(orb.Collection, len(g))
		for i, c := range g {
			out[i] = Geometry(c, reduce)
		}
		return out
	}
	return g
}

func polygon(p orb.Polygon, reduce Reducer) orb.Polygon {
	out := make(orb.Polygon, len(p))
	for i, r := range p {
		out[i] = Ring(r, reduce)
	}
	return out
}

// Features runs every feature geometry through Geometry. Features without a
// geometry are dropped; the others are modified in place.
func Features(features []*geojson.Feature, reduce Reducer) []*geojson.Feature {
	count := 0
	for _, f := range features {
		if f.Geometry == nil {
			continue
		}
		f.Geometry = Geometry(f.Geometry, reduce)
		features[count] = f
		count++
	}
	return features[:count]
}

// RemoveEmpty drops lines shorter than lineLimit and areas smaller than
// areaLimit. Points are always kept.
func RemoveEmpty(features []*geojson.Feature, lineLimit, areaLimit float64) []*geojson.Feature {
	count := 0
	for _, f := range features {
		if f.Geometry == nil {
			continue
		}

		switch f.Geometry.Dimensions() {
		case 0:
			features[count] = f
			count++
		case 1:
			if planar.Length(f.Geometry) >= lineLimit {
				features[count] = f
				count++
			}
		case 2:
			if planar.Area(f.Geometry) >= areaLimit {
				features[count] = f
				count++
			}
		}
	}
	return features[:count]
}
