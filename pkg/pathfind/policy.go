package pathfind

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"mesh-planner/pkg/geometry"
)

// Direction says which way an edge may be travelled. Forward runs from the
// first coordinate of the line to the last.
type Direction int

const (
	Both Direction = iota
	Forward
	Reverse
	Blocked
)

func (d Direction) String() string {
	switch d {
	case Both:
		return "both"
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	case Blocked:
		return "blocked"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Policy holds the callbacks that turn line features into graph edges.
//
// The cost of an edge is Length(f) * Weight(f), with Weight in (0,1]. The
// search stays optimal only while MinWeight is no larger than any weight
// returned, because the goal estimate is Distance(p, goal) * MinWeight.
type Policy struct {
	Weight    func(*geojson.Feature) float64
	MinWeight float64
	Direction func(*geojson.Feature) Direction
	Length    func(*geojson.Feature) float64
	Distance  func(a, b orb.Point) float64
}

// DefaultPolicy treats every edge as a two way planar segment of weight 1.
func DefaultPolicy() Policy {
	return Policy{
		Weight:    func(*geojson.Feature) float64 { return 1 },
		MinWeight: 1,
		Direction: func(*geojson.Feature) Direction { return Both },
		Length:    func(f *geojson.Feature) float64 { return planar.Length(f.Geometry) },
		Distance:  geometry.Dist2D,
	}
}

// GeodesicPolicy measures lon/lat edges and the goal estimate in meters.
func GeodesicPolicy() Policy {
	p := DefaultPolicy()
	p.Length = func(f *geojson.Feature) float64 { return geo.Length(f.Geometry) }
	p.Distance = geometry.HaversineDistance
	return p
}

// withDefaults fills the callbacks left nil.
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.Weight == nil {
		p.Weight = def.Weight
	}
	if p.MinWeight <= 0 {
		p.MinWeight = def.MinWeight
	}
	if p.Direction == nil {
		p.Direction = def.Direction
	}
	if p.Length == nil {
		p.Length = def.Length
	}
	if p.Distance == nil {
		p.Distance = def.Distance
	}
	return p
}

// PropertyDirection reads the direction from a feature property. Strings
// follow the usual oneway tagging: "yes", "true", "1" and "forward" are
// Forward, "-1" and "reverse" are Reverse, "blocked" and "closed" are
// Blocked; anything else, a missing key included, is Both. A boolean true
// means Forward.
func PropertyDirection(key string) func(*geojson.Feature) Direction {
	return func(f *geojson.Feature) Direction {
		switch v := f.Properties[key].(type) {
		case bool:
			if v {
				return Forward
			}
		case float64:
			switch v {
			case 1:
				return Forward
			case -1:
				return Reverse
			}
		case int:
			switch v {
			case 1:
				return Forward
			case -1:
				return Reverse
			}
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "yes", "true", "1", "forward":
				return Forward
			case "-1", "reverse":
				return Reverse
			case "blocked", "closed":
				return Blocked
			}
		}
		return Both
	}
}

// PropertyWeight reads the weight from a numeric feature property. Missing
// or out of range values fall back to def.
func PropertyWeight(key string, def float64) func(*geojson.Feature) float64 {
	return func(f *geojson.Feature) float64 {
		var w float64
		switch v := f.Properties[key].(type) {
		case float64:
			w = v
		case int:
			w = float64(v)
		default:
			return def
		}
		if w <= 0 || w > 1 {
			return def
		}
		return w
	}
}
