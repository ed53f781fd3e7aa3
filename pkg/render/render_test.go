package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPNG(t *testing.T) {
	layers := Layers{
		Triangles: []orb.Ring{{{0, 0}, {10, 0}, {10, 10}, {0, 0}}},
		Hull:      []orb.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}},
		Route:     []orb.LineString{{{0, 5}, {10, 5}}},
		Points:    []orb.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}},
	}

	var buf bytes.Buffer
	require.NoError(t, PNG(&buf, layers, Options{Width: 100, Height: 100, Padding: 10}))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())

	// the route runs through the middle of the canvas
	r, g, b, _ := img.At(50, 50).RGBA()
	assert.Greater(t, r, g)
	assert.Greater(t, r, b)

	// corners stay background
	r, g, b, _ = img.At(1, 1).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b})
}

func TestDrawFlipsY(t *testing.T) {
	// a single route along the bottom edge must land near the bottom row
	layers := Layers{Route: []orb.LineString{{{0, 0}, {10, 0}}, {{0, 0}, {0, 10}}}}
	img := Draw(layers, Options{Width: 100, Height: 100, Padding: 10}).Image()

	r, g, _, _ := img.At(50, 90).RGBA()
	assert.Greater(t, r, g, "bottom of the picture")
	r, g, _, _ = img.At(50, 10).RGBA()
	assert.Equal(t, r, g, "top of the picture")
}

func TestEmptyLayers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PNG(&buf, Layers{}, Options{}))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
}

func TestDegenerateBound(t *testing.T) {
	// a single point has an empty bound and must not divide by zero
	img := Draw(Layers{Points: []orb.Point{{3, 3}}}, Options{Width: 50, Height: 50}).Image()
	r, _, _, _ := img.At(25, 25).RGBA()
	assert.Less(t, r, uint32(0x8000))
}
