package main

import (
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

func prepareScatter(scatter *charts.Scatter) {
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "mesh planner",
			Height:    "720px",
			Width:     "1020px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: "Delaunay triangulation",
			Left:  "10%",
		}),
		charts.WithLegendOpts(opts.Legend{Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "value",
			Name:      "x",
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type:      "value",
			Name:      "y",
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:       "inside",
			Start:      0,
			End:        100,
			FilterMode: "none",
			Orient:     "horizontal",
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:       "inside",
			Start:      0,
			End:        100,
			FilterMode: "none",
			Orient:     "vertical",
		}),
	)
}

func lineOf(name string, points []orb.Point, style opts.LineStyle) *charts.Line {
	data := make([]opts.LineData, 0, len(points))
	for _, p := range points {
		data = append(data, opts.LineData{Value: []float64{p[0], p[1]}})
	}

	line := charts.NewLine()
	line.AddSeries(name, data).SetSeriesOptions(
		charts.WithLineStyleOpts(style),
	)
	return line
}

// meshChart draws the live points, the triangle edges, the hull and the
// best route known to the path engine.
func (s *server) meshChart() *charts.Scatter {
	scatter := charts.NewScatter()
	prepareScatter(scatter)

	points := make([]opts.ScatterData, 0, s.mesh.Len())
	for _, p := range s.mesh.Points() {
		points = append(points, opts.ScatterData{Value: []float64{p[0], p[1]}})
	}
	scatter.AddSeries("Points", points).SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "black"}),
	)

	for _, e := range s.mesh.Edges() {
		scatter.Overlap(lineOf("Triangles", []orb.Point{e.P1, e.P2},
			opts.LineStyle{Color: "gray", Width: 1}))
	}

	if hull := s.mesh.Hull(); len(hull) > 2 {
		ring := append(append([]orb.Point(nil), hull...), hull[0])
		scatter.Overlap(lineOf("Hull", ring, opts.LineStyle{Color: "green", Width: 2}))
	}

	for _, f := range s.engine.BestWay() {
		if ls, ok := f.Geometry.(orb.LineString); ok {
			scatter.Overlap(lineOf("Route", ls, opts.LineStyle{Color: "red", Width: 3}))
		}
	}
	return scatter
}

// GET /chart
func (s *server) chart(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.meshChart().Render(w); err != nil {
		s.log.Warn("render chart", zap.Error(err))
	}
}
