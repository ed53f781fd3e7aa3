// Package source provides an observable feature collection with spatial
// queries. It is the contract both engines consume: the triangulation
// subscribes to add/remove notifications, the path search only queries.
package source

import (
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"mesh-planner/pkg/spatial"
)

// nearestCandidates is how many bounding-box neighbours Nearest measures
// before widening its search to the best distance found.
const nearestCandidates = 16

// Listener is notified after a feature was added to or removed from a Collection.
type Listener func(f *geojson.Feature)

// Collection is a set of features indexed by their bound. Listeners are
// called synchronously, after the collection lock has been released, so they
// may call back into the collection.
type Collection struct {
	mu       sync.RWMutex
	index    *spatial.Index[*geojson.Feature]
	onAdd    []Listener
	onRemove []Listener
}

// New creates a collection holding the given features.
func New(features ...*geojson.Feature) *Collection {
	c := &Collection{index: spatial.New[*geojson.Feature]()}
	for _, f := range features {
		if f == nil || f.Geometry == nil {
			continue
		}
		c.index.Insert(f, f.Geometry.Bound())
	}
	return c
}

// FromFeatureCollection creates a collection from a decoded GeoJSON document.
func FromFeatureCollection(fc *geojson.FeatureCollection) *Collection {
	if fc == nil {
		return New()
	}
	return New(fc.Features...)
}

// OnAdd registers a listener for added features.
func (c *Collection) OnAdd(fn Listener) {
	c.mu.Lock()
	c.onAdd = append(c.onAdd, fn)
	c.mu.Unlock()
}

// OnRemove registers a listener for removed features.
func (c *Collection) OnRemove(fn Listener) {
	c.mu.Lock()
	c.onRemove = append(c.onRemove, fn)
	c.mu.Unlock()
}

// Add inserts f and notifies the add listeners. Features without geometry
// and features already present are ignored.
func (c *Collection) Add(f *geojson.Feature) bool {
	if f == nil || f.Geometry == nil {
		return false
	}
	c.mu.Lock()
	if _, ok := c.index.Bound(f); ok {
		c.mu.Unlock()
		return false
	}
	c.index.Insert(f, f.Geometry.Bound())
	listeners := c.onAdd
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(f)
	}
	return true
}

// Remove deletes f and notifies the remove listeners.
func (c *Collection) Remove(f *geojson.Feature) bool {
	c.mu.Lock()
	if !c.index.Delete(f) {
		c.mu.Unlock()
		return false
	}
	listeners := c.onRemove
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(f)
	}
	return true
}

// Clear removes every feature, notifying for each.
func (c *Collection) Clear() {
	for _, f := range c.Features() {
		c.Remove(f)
	}
}

// Len returns the number of features.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Len()
}

// Features returns every feature in insertion order.
func (c *Collection) Features() []*geojson.Feature {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.All()
}

// FeatureCollection snapshots the collection as a GeoJSON document.
func (c *Collection) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = append(fc.Features, c.Features()...)
	return fc
}

// InBound returns the features whose bound intersects b, in insertion order.
func (c *Collection) InBound(b orb.Bound) []*geojson.Feature {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Search(b)
}

// Near returns the features whose bound lies within buffer of p.
func (c *Collection) Near(p orb.Point, buffer float64) []*geojson.Feature {
	return c.InBound(p.Bound().Pad(buffer))
}

// Nearest returns the feature closest to p, measured to its geometry rather
// than its bound, or nil when the collection is empty. Ties go to the feature
// added first.
func (c *Collection) Nearest(p orb.Point) *geojson.Feature {
	c.mu.RLock()
	defer c.mu.RUnlock()

	best, bestDist := closest(c.index.Nearest(p, nearestCandidates), p)
	if best == nil {
		return nil
	}
	// the bound nearest to p need not hold the nearest geometry, but every
	// geometry closer than bestDist has its bound within bestDist of p
	best, _ = closest(c.index.Search(p.Bound().Pad(bestDist)), p)
	return best
}

func closest(features []*geojson.Feature, p orb.Point) (*geojson.Feature, float64) {
	var (
		best     *geojson.Feature
		bestDist float64
	)
	for _, f := range features {
		d := planar.DistanceFrom(f.Geometry, p)
		if best == nil || d < bestDist {
			best, bestDist = f, d
		}
	}
	return best, bestDist
}
