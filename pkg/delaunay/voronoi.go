package delaunay

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// VoronoiCells returns one closed polygon per live point, built from the
// circumcentres of the triangles around it. Boundary points have unbounded
// cells and are skipped unless includeHull is set, in which case their cell
// is clipped to the circumcentres that exist. Each cell carries a copy of the
// properties of the point feature it belongs to.
func (d *Triangulation) VoronoiCells(includeHull bool) []*geojson.Feature {
	d.mu.Lock()
	defer d.mu.Unlock()

	onBoundary := make(map[orb.Point]bool, len(d.boundary))
	for _, p := range d.boundary {
		onBoundary[p] = true
	}

	var cells []*geojson.Feature
	for _, p := range sortPoints(d.points.All()) {
		if onBoundary[p] && !includeHull {
			continue
		}

		inc := d.incident(p)
		centers := make([]orb.Point, 0, len(inc))
		for _, t := range inc {
			if t.hasCircle {
				centers = append(centers, t.circle.Center)
			}
		}
		if len(centers) < 3 {
			continue
		}
		sort.Slice(centers, func(i, j int) bool {
			return angle(p, centers[i]) < angle(p, centers[j])
		})

		ring := make(orb.Ring, 0, len(centers)+1)
		ring = append(ring, centers...)
		ring = append(ring, centers[0])

		cell := geojson.NewFeature(orb.Polygon{ring})
		if owner := d.owners[p]; owner != nil {
			cell.Properties = owner.Properties.Clone()
		}
		cells = append(cells, cell)
	}
	return cells
}

func angle(center, p orb.Point) float64 {
	return math.Atan2(p[1]-center[1], p[0]-center[0])
}
