package pathfind

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesh-planner/pkg/source"
)

func box(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY}}}
}

func TestZonesDropContained(t *testing.T) {
	z := NewZones([]orb.Polygon{
		box(2, 2, 3, 3),
		box(0, 0, 10, 10),
		box(0, 0, 10, 10),
		box(20, 20, 21, 21),
		{},
	})
	assert.Equal(t, 2, z.Len())

	fromFeatures := ZonesFromFeatures([]*geojson.Feature{
		geojson.NewFeature(orb.MultiPolygon{box(0, 0, 1, 1), box(5, 5, 6, 6)}),
		geojson.NewFeature(orb.LineString{{0, 0}, {1, 1}}),
	})
	assert.Equal(t, 2, fromFeatures.Len())
}

func TestZonesClear(t *testing.T) {
	z := NewZones([]orb.Polygon{box(0, 0, 10, 10)})

	tests := []struct {
		name   string
		p1, p2 orb.Point
		clear  bool
	}{
		{"crossing", orb.Point{-1, 5}, orb.Point{11, 5}, false},
		{"inside", orb.Point{4, 4}, orb.Point{5, 5}, false},
		{"one end inside", orb.Point{5, 5}, orb.Point{15, 15}, false},
		{"outside", orb.Point{20, 0}, orb.Point{21, 0}, true},
		{"bound overlaps, segment misses", orb.Point{9.5, 20}, orb.Point{12, 5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.clear, z.Clear(tt.p1, tt.p2))
		})
	}

	assert.True(t, z.Blocks(orb.LineString{{20, 0}, {20, 5}, {5, 5}}))
	assert.False(t, z.Blocks(orb.LineString{{20, 0}, {20, 5}}))
}

func TestZonesBlockRoute(t *testing.T) {
	edges := source.New(
		geojson.NewFeature(orb.LineString{{0, 0}, {1, 0}}),
		geojson.NewFeature(orb.LineString{{1, 0}, {2, 0}}),
		geojson.NewFeature(orb.LineString{{0, 0}, {0, 1}}),
		geojson.NewFeature(orb.LineString{{0, 1}, {1, 1}}),
		geojson.NewFeature(orb.LineString{{1, 1}, {2, 1}}),
		geojson.NewFeature(orb.LineString{{2, 1}, {2, 0}}),
	)

	open, err := New(edges).Run(context.Background(), orb.Point{0, 0}, orb.Point{2, 0})
	require.NoError(t, err)
	assert.InDelta(t, 2, open.WDistance, 1e-9)

	zones := NewZones([]orb.Polygon{box(0.8, -0.2, 1.2, 0.2)})
	policy := DefaultPolicy()
	policy.Direction = zones.Direction(policy.Direction)

	detour, err := New(edges, WithPolicy(policy)).Run(context.Background(), orb.Point{0, 0}, orb.Point{2, 0})
	require.NoError(t, err)
	assert.InDelta(t, 4, detour.WDistance, 1e-9)
	assert.Len(t, detour.Route, 4)
}
