package delaunay

import (
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesh-planner/pkg/geometry"
)

// checkHalfEdges verifies that every directed edge has exactly one owner and
// that the edges without a twin are exactly the boundary ring.
func checkHalfEdges(t *testing.T, d *Triangulation, step int) {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()

	require.Equal(t, 3*d.triangles.Len(), len(d.halfEdges), "half-edges at step %d", step)
	open := 0
	for k, owner := range d.halfEdges {
		require.True(t, owner.alive, "dead owner of %v at step %d", k, step)
		require.Contains(t, owner.edges(), k, "owner does not hold %v at step %d", k, step)
		if _, twin := d.halfEdges[edgeKey{k[1], k[0]}]; !twin {
			open++
		}
	}
	require.Equal(t, len(d.boundary), open, "open edges at step %d", step)
}

func TestInterleavedInsertRemove(t *testing.T) {
	generators := []struct {
		name  string
		point func(*rand.Rand) orb.Point
	}{
		{"uniform", func(r *rand.Rand) orb.Point {
			return orb.Point{r.Float64() * 100, r.Float64() * 100}
		}},
		{"lonlat", func(r *rand.Rand) orb.Point {
			return orb.Point{5.6 + r.Float64()*0.01, 50.8 + r.Float64()*0.01}
		}},
		{"projected", func(r *rand.Rand) orb.Point {
			return orb.Point{620000 + r.Float64()*1000, 6580000 + r.Float64()*1000}
		}},
	}

	ops := 1000
	if testing.Short() {
		ops = 200
	}

	for i, g := range generators {
		t.Run(g.name, func(t *testing.T) {
			rnd := rand.New(rand.NewSource(int64(100 + i)))
			d := New(nil)
			for d.Len() < 200 {
				d.InsertPoint(g.point(rnd))
			}
			require.NoError(t, d.Validate())
			checkHalfEdges(t, d, 0)

			for step := 1; step <= ops; step++ {
				if d.Len() < 50 || rnd.Intn(2) == 0 {
					d.InsertPoint(g.point(rnd))
				} else {
					live := d.Points()
					require.True(t, d.RemovePoint(live[rnd.Intn(len(live))]))
				}
				require.NoError(t, d.Validate(), "step %d", step)
				checkHalfEdges(t, d, step)
			}
			assert.Zero(t, d.Stats().FlipLimitHits)
		})
	}
}

func TestLocatePrefersContainingTriangle(t *testing.T) {
	// unit frame shrunk to lon/lat scale: sides of about 1e-3 degrees
	origin, s := orb.Point{5.604, 50.802}, 1e-3
	at := func(x, y float64) orb.Point { return orb.Point{origin[0] + x*s, origin[1] + y*s} }

	// two triangles sharing the diagonal (a,b), so both bounds hold p
	a, b, c, e := at(0, 0), at(1, 1), at(0, 1), at(1, 0)
	// about 5.7e-7 degrees above (a,b): an Orient of 8e-10 on either side
	p := at(0.5, 0.5008)

	d := New(nil)
	above := d.addTriangle(a, b, c)
	below := d.addTriangle(b, a, e)
	require.NotNil(t, above)
	require.NotNil(t, below)

	got, loc := d.locate(p)
	assert.Same(t, above, got)
	assert.Equal(t, geometry.Inside, loc)

	// on the shared edge, within eps
	got, loc = d.locate(at(0.5, 0.5))
	require.NotNil(t, got)
	assert.Equal(t, geometry.OnEdge0, loc)

	got, loc = d.locate(at(3, 3))
	assert.Nil(t, got)
	assert.Equal(t, geometry.Outside, loc)
}

func TestClockwiseTriangleRefused(t *testing.T) {
	d := New(nil)
	a, b, c := orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{0, 1}

	assert.Nil(t, d.addTriangle(a, c, b))
	assert.ErrorIs(t, d.takeErr(), ErrInvariant)

	assert.Nil(t, d.addTriangle(a, b, orb.Point{2, 0}), "zero area")
	assert.ErrorIs(t, d.takeErr(), ErrInvariant)

	assert.Zero(t, d.triangles.Len())
	assert.Empty(t, d.halfEdges)
	assert.NoError(t, d.takeErr())
}
