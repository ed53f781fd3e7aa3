// Package render draws triangulations, Voronoi cells and routes to PNG.
package render

import (
	"io"
	"math"

	"github.com/fogleman/gg"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// Layers is the content of one picture. Layers are drawn in field order.
type Layers struct {
	Cells     []orb.Ring
	Triangles []orb.Ring
	Edges     []orb.LineString
	Hull      []orb.Point
	Route     []orb.LineString
	Points    []orb.Point
}

func (l Layers) bound() (orb.Bound, bool) {
	var (
		b     orb.Bound
		found bool
	)
	extend := func(p orb.Point) {
		if !found {
			b, found = p.Bound(), true
			return
		}
		b = b.Extend(p)
	}
	for _, r := range l.Cells {
		for _, p := range r {
			extend(p)
		}
	}
	for _, r := range l.Triangles {
		for _, p := range r {
			extend(p)
		}
	}
	for _, ls := range l.Edges {
		for _, p := range ls {
			extend(p)
		}
	}
	for _, p := range l.Hull {
		extend(p)
	}
	for _, ls := range l.Route {
		for _, p := range ls {
			extend(p)
		}
	}
	for _, p := range l.Points {
		extend(p)
	}
	return b, found
}

// Options configure the canvas.
type Options struct {
	Width   int
	Height  int
	Padding float64
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 800
	}
	if o.Height <= 0 {
		o.Height = 800
	}
	if o.Padding <= 0 {
		o.Padding = 20
	}
	return o
}

// Draw paints the layers on a new context, scaled uniformly to fit the
// canvas with y pointing up.
func Draw(layers Layers, opts Options) *gg.Context {
	opts = opts.withDefaults()
	w, h := float64(opts.Width), float64(opts.Height)

	c := gg.NewContext(opts.Width, opts.Height)
	c.SetRGB(1, 1, 1)
	c.Clear()

	b, ok := layers.bound()
	if !ok {
		return c
	}

	dx, dy := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	scale := math.Inf(1)
	if dx > 0 {
		scale = (w - 2*opts.Padding) / dx
	}
	if dy > 0 {
		scale = math.Min(scale, (h-2*opts.Padding)/dy)
	}
	if math.IsInf(scale, 1) || scale <= 0 {
		scale = 1
	}

	// origin at the bottom left, content centred
	c.Translate(0, h)
	c.Scale(1, -1)
	c.Translate((w-dx*scale)/2, (h-dy*scale)/2)
	c.Scale(scale, scale)
	c.Translate(-b.Min[0], -b.Min[1])

	for _, r := range layers.Cells {
		ring(c, r)
		c.SetRGBA(0.2, 0.5, 0.9, 0.15)
		c.FillPreserve()
		c.SetRGB(0.2, 0.5, 0.9)
		c.SetLineWidth(1)
		c.Stroke()
	}

	c.SetRGB(0.55, 0.55, 0.55)
	c.SetLineWidth(1)
	for _, r := range layers.Triangles {
		ring(c, r)
		c.Stroke()
	}

	c.SetRGB(0.3, 0.3, 0.3)
	for _, ls := range layers.Edges {
		line(c, ls)
		c.Stroke()
	}

	if len(layers.Hull) > 1 {
		ring(c, layers.Hull)
		c.SetRGB(0, 0.6, 0)
		c.SetLineWidth(2)
		c.Stroke()
	}

	c.SetRGB(0.85, 0.1, 0.1)
	c.SetLineWidth(3)
	for _, ls := range layers.Route {
		line(c, ls)
		c.Stroke()
	}

	c.SetRGB(0, 0, 0)
	for _, p := range layers.Points {
		c.DrawPoint(p[0], p[1], 3)
		c.Fill()
	}
	return c
}

// PNG draws the layers and encodes them to w.
func PNG(w io.Writer, layers Layers, opts Options) error {
	return errors.Wrap(Draw(layers, opts).EncodePNG(w), "encode png")
}

func ring(c *gg.Context, points []orb.Point) {
	if len(points) == 0 {
		return
	}
	c.NewSubPath()
	c.MoveTo(points[0][0], points[0][1])
	for _, p := range points[1:] {
		c.LineTo(p[0], p[1])
	}
	c.ClosePath()
}

func line(c *gg.Context, ls orb.LineString) {
	if len(ls) == 0 {
		return
	}
	c.NewSubPath()
	c.MoveTo(ls[0][0], ls[0][1])
	for _, p := range ls[1:] {
		c.LineTo(p[0], p[1])
	}
}
