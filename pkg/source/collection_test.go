package source

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionNotifications(t *testing.T) {
	c := New()
	var added, removed []*geojson.Feature
	c.OnAdd(func(f *geojson.Feature) { added = append(added, f) })
	c.OnRemove(func(f *geojson.Feature) { removed = append(removed, f) })

	f := geojson.NewFeature(orb.Point{1, 2})
	require.True(t, c.Add(f))
	assert.False(t, c.Add(f), "adding twice is a no-op")
	assert.False(t, c.Add(geojson.NewFeature(nil)))
	assert.Equal(t, []*geojson.Feature{f}, added)
	assert.Equal(t, 1, c.Len())

	require.True(t, c.Remove(f))
	assert.False(t, c.Remove(f))
	assert.Equal(t, []*geojson.Feature{f}, removed)
	assert.Zero(t, c.Len())
}

func TestCollectionListenerMayMutate(t *testing.T) {
	c := New()
	// reject everything that is not a point, the way the triangulation does
	c.OnAdd(func(f *geojson.Feature) {
		if _, ok := f.Geometry.(orb.Point); !ok {
			c.Remove(f)
		}
	})
	c.Add(geojson.NewFeature(orb.LineString{{0, 0}, {1, 1}}))
	c.Add(geojson.NewFeature(orb.Point{0, 0}))
	assert.Equal(t, 1, c.Len())
}

func TestCollectionQueries(t *testing.T) {
	a := geojson.NewFeature(orb.LineString{{0, 0}, {1, 0}})
	b := geojson.NewFeature(orb.LineString{{1, 0}, {1, 1}})
	far := geojson.NewFeature(orb.LineString{{10, 10}, {11, 10}})
	c := New(a, b, far)

	assert.Equal(t, []*geojson.Feature{a, b}, c.Near(orb.Point{1, 0}, 1e-9))
	assert.Equal(t, []*geojson.Feature{far}, c.InBound(orb.Bound{Min: orb.Point{9, 9}, Max: orb.Point{12, 12}}))
	assert.Same(t, b, c.Nearest(orb.Point{1.2, 0.6}))
	assert.Same(t, far, c.Nearest(orb.Point{20, 10}))
	assert.Nil(t, New().Nearest(orb.Point{0, 0}))

	fc := c.FeatureCollection()
	assert.Len(t, fc.Features, 3)

	c.Clear()
	assert.Zero(t, c.Len())
}

func TestNearestLooksPastCoveringBounds(t *testing.T) {
	c := New()
	// long diagonals whose bounds all cover the query point while the lines
	// themselves stay at least 7 away from it
	for k := 90.0; k >= 71; k-- {
		c.Add(geojson.NewFeature(orb.LineString{{0, k}, {k, 0}}))
	}
	short := geojson.NewFeature(orb.LineString{{50.5, 49}, {50.5, 51}})
	c.Add(short)

	assert.Same(t, short, c.Nearest(orb.Point{50, 50}))
}
