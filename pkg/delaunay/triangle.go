package delaunay

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"mesh-planner/pkg/geometry"
)

// triangle is a live or dead face of the mesh. Vertices are stored
// counter-clockwise.
type triangle struct {
	v         [3]orb.Point
	circle    geometry.Circle
	hasCircle bool
	alive     bool
	published bool
	feature   *geojson.Feature
}

// edgeKey is a directed edge. Each live triangle owns the three keys of its
// counter-clockwise edges; the neighbour across (u,v) owns (v,u).
type edgeKey [2]orb.Point

// newTriangle builds the face (a, b, c). The vertices must already turn
// counter-clockwise; addTriangle enforces it.
func newTriangle(a, b, c orb.Point) *triangle {
	t := &triangle{v: [3]orb.Point{a, b, c}, alive: true}
	t.circle, t.hasCircle = geometry.Circumcircle(a, b, c, 0)
	t.feature = geojson.NewFeature(orb.Polygon{t.ring()})
	return t
}

// ring returns the triangle as a closed ring.
func (t *triangle) ring() orb.Ring {
	return orb.Ring{t.v[0], t.v[1], t.v[2], t.v[0]}
}

func (t *triangle) bound() orb.Bound {
	return orb.MultiPoint{t.v[0], t.v[1], t.v[2]}.Bound()
}

func (t *triangle) edges() [3]edgeKey {
	return [3]edgeKey{{t.v[0], t.v[1]}, {t.v[1], t.v[2]}, {t.v[2], t.v[0]}}
}

// index returns the position of p among the vertices, or -1.
func (t *triangle) index(p orb.Point) int {
	for i, v := range t.v {
		if v == p {
			return i
		}
	}
	return -1
}

// opposite returns the vertex that is neither u nor v.
func (t *triangle) opposite(u, v orb.Point) orb.Point {
	for _, w := range t.v {
		if w != u && w != v {
			return w
		}
	}
	return t.v[0]
}

func (t *triangle) area() float64 {
	return geometry.Orient(t.v[0], t.v[1], t.v[2]) / 2
}
