// Package delaunay maintains a Delaunay triangulation over a dynamic point
// set and derives its dual Voronoi diagram.
//
// Points are added and removed one at a time. Insertion splits the triangle
// (or edge) hit by the new point, or fans the point onto the visible part of
// the boundary when it falls outside. Removal ear-clips the hole left behind.
// Both finish with an edge-flip pass restoring the empty circumcircle
// property.
package delaunay

import (
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"mesh-planner/pkg/geometry"
	"mesh-planner/pkg/source"
	"mesh-planner/pkg/spatial"
)

// DefaultMaxFlips bounds a single flip pass.
const DefaultMaxFlips = 1000

// Stats counts what the engine did since it was created.
type Stats struct {
	Points        int
	Triangles     int
	Flips         int
	FlipLimitHits int
	Rebuilds      int
}

// Option configures a Triangulation.
type Option func(*Triangulation)

// WithEpsilon sets the coincidence tolerance used for duplicate detection,
// point location and circumcircle tests.
func WithEpsilon(eps float64) Option {
	return func(d *Triangulation) { d.eps = eps }
}

// WithMaxFlips bounds the number of worklist iterations of one flip pass.
func WithMaxFlips(n int) Option {
	return func(d *Triangulation) { d.maxFlips = n }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(d *Triangulation) { d.log = l }
}

// Triangulation is an incremental Delaunay triangulation.
//
// It is safe for concurrent use. Listeners of the Triangles collection are
// notified after each operation completes and must not insert or remove
// points synchronously.
type Triangulation struct {
	// opMu serialises mutations including the publication of their results;
	// mu guards the mesh itself.
	opMu sync.Mutex
	mu   sync.Mutex

	source *source.Collection
	output *source.Collection

	eps      float64
	maxFlips int
	log      *zap.Logger

	points    *spatial.Index[orb.Point]
	owners    map[orb.Point]*geojson.Feature
	triangles *spatial.Index[*triangle]
	halfEdges map[edgeKey]*triangle

	// boundary is the counter-clockwise outer ring of the mesh, collinear
	// vertices included. hull is its strictly convex subset.
	boundary []orb.Point
	hull     []orb.Point

	flip       []*triangle
	created    []*triangle
	deleted    []*triangle
	rebuilding bool
	// err holds the first invariant broken by the running operation.
	err error

	stats Stats
}

// New creates a triangulation fed by points. The features already in the
// collection are inserted, later additions and removals are followed. A nil
// collection gives a standalone engine driven by InsertPoint and RemovePoint.
func New(points *source.Collection, opts ...Option) *Triangulation {
	d := &Triangulation{
		source:    points,
		output:    source.New(),
		eps:       geometry.DefaultTolerance,
		maxFlips:  DefaultMaxFlips,
		log:       zap.NewNop(),
		points:    spatial.New[orb.Point](),
		owners:    make(map[orb.Point]*geojson.Feature),
		triangles: spatial.New[*triangle](),
		halfEdges: make(map[edgeKey]*triangle),
	}
	for _, opt := range opts {
		opt(d)
	}

	if points != nil {
		points.OnAdd(func(f *geojson.Feature) { d.Insert(f) })
		points.OnRemove(func(f *geojson.Feature) { d.Remove(f) })
		for _, f := range points.Features() {
			d.Insert(f)
		}
	}
	return d
}

// Insert adds the point of a feature. Features that are not points are
// removed from the source; duplicates of a live point are removed from the
// source as well. It reports whether the point joined the triangulation.
func (d *Triangulation) Insert(f *geojson.Feature) bool {
	p, ok := f.Geometry.(orb.Point)
	if !ok {
		d.log.Debug("rejecting non-point feature", zap.String("type", geometryType(f)))
		d.drop(f)
		return false
	}
	if !d.insert(p, f) {
		d.log.Debug("dropping duplicate point", zap.Float64("x", p[0]), zap.Float64("y", p[1]))
		d.drop(f)
		return false
	}
	return true
}

// InsertPoint adds a point that has no backing feature.
func (d *Triangulation) InsertPoint(p orb.Point) bool {
	return d.insert(p, nil)
}

// Remove removes the point owned by f. Features that do not own a live
// point, such as rejected duplicates, are ignored.
func (d *Triangulation) Remove(f *geojson.Feature) bool {
	p, ok := f.Geometry.(orb.Point)
	if !ok {
		return false
	}
	return d.remove(p, f, true)
}

// RemovePoint removes the live point within epsilon of p, whoever owns it.
func (d *Triangulation) RemovePoint(p orb.Point) bool {
	return d.remove(p, nil, false)
}

func (d *Triangulation) insert(p orb.Point, owner *geojson.Feature) bool {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	d.mu.Lock()
	ok := d.insertPoint(p, owner)
	add, remove := d.commit()
	d.mu.Unlock()

	d.publish(add, remove)
	return ok
}

func (d *Triangulation) remove(p orb.Point, owner *geojson.Feature, checkOwner bool) bool {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	d.mu.Lock()
	ok := false
	if q, found := d.findPoint(p); found && (!checkOwner || d.owners[q] == owner) {
		d.removePoint(q)
		ok = true
	}
	add, remove := d.commit()
	d.mu.Unlock()

	d.publish(add, remove)
	return ok
}

// drop removes a rejected feature from the source. It runs outside opMu
// because the source notifies Remove synchronously.
func (d *Triangulation) drop(f *geojson.Feature) {
	if d.source != nil {
		d.source.Remove(f)
	}
}

// commit collects the output changes of the operation that just ran.
func (d *Triangulation) commit() (add, remove []*geojson.Feature) {
	for _, t := range d.deleted {
		if t.published {
			t.published = false
			remove = append(remove, t.feature)
		}
	}
	for _, t := range d.created {
		if t.alive && !t.published {
			t.published = true
			add = append(add, t.feature)
		}
	}
	d.created = d.created[:0]
	d.deleted = d.deleted[:0]
	return add, remove
}

func (d *Triangulation) publish(add, remove []*geojson.Feature) {
	for _, f := range remove {
		d.output.Remove(f)
	}
	for _, f := range add {
		d.output.Add(f)
	}
}

// Triangles returns the observable collection of live triangle features.
// Each feature holds a polygon with a single closed ring.
func (d *Triangulation) Triangles() *source.Collection {
	return d.output
}

// TriangleRings returns the live triangles as closed rings, sorted.
func (d *Triangulation) TriangleRings() []orb.Ring {
	d.mu.Lock()
	defer d.mu.Unlock()

	all := d.triangles.All()
	rings := make([]orb.Ring, 0, len(all))
	for _, t := range all {
		rings = append(rings, canonicalRing(t))
	}
	sort.Slice(rings, func(i, j int) bool { return ringLess(rings[i], rings[j]) })
	return rings
}

// Points returns the live points sorted by x then y.
func (d *Triangulation) Points() []orb.Point {
	d.mu.Lock()
	defer d.mu.Unlock()
	return sortPoints(d.points.All())
}

// Len returns the number of live points.
func (d *Triangulation) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.points.Len()
}

// Hull returns the convex hull of the live points, counter-clockwise.
func (d *Triangulation) Hull() []orb.Point {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]orb.Point(nil), d.hull...)
}

// Edges returns every mesh edge once, sorted.
func (d *Triangulation) Edges() []geometry.Segment {
	d.mu.Lock()
	defer d.mu.Unlock()

	edges := make([]geometry.Segment, 0, len(d.halfEdges))
	for k := range d.halfEdges {
		a, b := k[0], k[1]
		if pointLess(b, a) {
			if _, twin := d.halfEdges[edgeKey{b, a}]; twin {
				continue
			}
			a, b = b, a
		}
		edges = append(edges, geometry.Segment{P1: a, P2: b})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].P1 != edges[j].P1 {
			return pointLess(edges[i].P1, edges[j].P1)
		}
		return pointLess(edges[i].P2, edges[j].P2)
	})
	return edges
}

// Stats returns counters describing the engine.
func (d *Triangulation) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.Points = d.points.Len()
	s.Triangles = d.triangles.Len()
	return s
}

// findPoint returns the live point within epsilon of p.
func (d *Triangulation) findPoint(p orb.Point) (orb.Point, bool) {
	for _, q := range d.points.Search(p.Bound().Pad(d.eps)) {
		if geometry.Equal(p, q, d.eps) {
			return q, true
		}
	}
	return orb.Point{}, false
}

// incident returns the live triangles having p as a vertex.
func (d *Triangulation) incident(p orb.Point) []*triangle {
	var found []*triangle
	for _, t := range d.triangles.Search(p.Bound()) {
		if t.index(p) >= 0 {
			found = append(found, t)
		}
	}
	return found
}

// addTriangle links the counter-clockwise face (a, b, c) into the mesh. A
// clockwise or zero-area face is refused and recorded as a broken invariant;
// the operation then ends with a rebuild.
func (d *Triangulation) addTriangle(a, b, c orb.Point) *triangle {
	if geometry.Orient(a, b, c) <= 0 {
		d.fail(invariantf("triangle (%v, %v, %v) is not counter-clockwise", a, b, c))
		return nil
	}
	t := newTriangle(a, b, c)
	d.triangles.Insert(t, t.bound())
	for _, e := range t.edges() {
		d.halfEdges[e] = t
	}
	d.created = append(d.created, t)
	d.flip = append(d.flip, t)
	return t
}

func (d *Triangulation) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

// takeErr returns and clears the invariant recorded by fail.
func (d *Triangulation) takeErr() error {
	err := d.err
	d.err = nil
	return err
}

func (d *Triangulation) deleteTriangle(t *triangle) {
	if !t.alive {
		return
	}
	t.alive = false
	d.triangles.Delete(t)
	for _, e := range t.edges() {
		if d.halfEdges[e] == t {
			delete(d.halfEdges, e)
		}
	}
	d.deleted = append(d.deleted, t)
}

func (d *Triangulation) updateHull() {
	if d.triangles.Len() == 0 {
		d.hull = geometry.ConvexHull(d.points.All())
		return
	}
	d.hull = geometry.ConvexHull(d.boundary)
}

func geometryType(f *geojson.Feature) string {
	if f.Geometry == nil {
		return "none"
	}
	return f.Geometry.GeoJSONType()
}

func pointLess(a, b orb.Point) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	return a[1] < b[1]
}

func sortPoints(points []orb.Point) []orb.Point {
	sort.Slice(points, func(i, j int) bool { return pointLess(points[i], points[j]) })
	return points
}

// canonicalRing starts the closed ring at the smallest vertex so equal
// triangles compare equal.
func canonicalRing(t *triangle) orb.Ring {
	k := 0
	for i := 1; i < 3; i++ {
		if pointLess(t.v[i], t.v[k]) {
			k = i
		}
	}
	return orb.Ring{t.v[k], t.v[(k+1)%3], t.v[(k+2)%3], t.v[k]}
}

func ringLess(a, b orb.Ring) bool {
	for i := range a {
		if a[i] != b[i] {
			return pointLess(a[i], b[i])
		}
	}
	return false
}
