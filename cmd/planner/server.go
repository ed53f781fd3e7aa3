package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"mesh-planner/pkg/config"
	"mesh-planner/pkg/delaunay"
	"mesh-planner/pkg/featureio"
	"mesh-planner/pkg/geometry"
	"mesh-planner/pkg/pathfind"
	"mesh-planner/pkg/render"
	"mesh-planner/pkg/simplify"
	"mesh-planner/pkg/source"
)

type server struct {
	log          *zap.Logger
	cfg          config.Config
	routeTimeout time.Duration

	points *source.Collection
	mesh   *delaunay.Triangulation
	edges  *source.Collection
	engine *pathfind.Engine
}

func newServer(cfg config.Config, log *zap.Logger, points, edges *source.Collection, zones *pathfind.Zones, opts ...pathfind.Option) (*server, error) {
	timeout, err := time.ParseDuration(cfg.Server.RouteTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "parse server.routeTimeout %q", cfg.Server.RouteTimeout)
	}

	s := &server{
		log:          log,
		cfg:          cfg,
		routeTimeout: timeout,
		points:       points,
		edges:        edges,
	}

	s.mesh = delaunay.New(points,
		delaunay.WithEpsilon(cfg.Delaunay.Epsilon),
		delaunay.WithMaxFlips(cfg.Delaunay.MaxFlips),
		delaunay.WithLogger(log.Named("delaunay")),
	)

	engineOpts := []pathfind.Option{
		pathfind.WithEpsilon(cfg.Path.Epsilon),
		pathfind.WithStepIteration(cfg.Path.StepIteration),
		pathfind.WithMaxIteration(cfg.Path.MaxIteration),
		pathfind.WithPolicy(policyOf(cfg.Path, zones)),
		pathfind.WithLogger(log.Named("pathfind")),
	}
	s.engine = pathfind.New(edges, append(engineOpts, opts...)...)
	s.engine.On(pathfind.EventFinish, func(ev pathfind.Event) {
		log.Info("route finished",
			zap.Int("edges", len(ev.Route)),
			zap.Float64("wdistance", ev.WDistance),
			zap.Float64("distance", ev.Distance))
	})
	s.engine.On(pathfind.EventPause, func(ev pathfind.Event) {
		if ev.Overflow {
			log.Warn("route search hit the iteration cap", zap.Int("iteration", ev.Iteration))
		}
	})
	return s, nil
}

func policyOf(cfg config.Path, zones *pathfind.Zones) pathfind.Policy {
	p := pathfind.DefaultPolicy()
	if cfg.Geodesic {
		p = pathfind.GeodesicPolicy()
	}
	if cfg.WeightProperty != "" {
		p.Weight = pathfind.PropertyWeight(cfg.WeightProperty, 1)
		p.MinWeight = cfg.MinWeight
	}
	if cfg.DirectionProperty != "" {
		p.Direction = pathfind.PropertyDirection(cfg.DirectionProperty)
	}
	if zones != nil && zones.Len() > 0 {
		p.Direction = zones.Direction(p.Direction)
	}
	return p
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("POST /points", s.addPoints)
	mux.HandleFunc("DELETE /points", s.removePoints)
	mux.HandleFunc("GET /triangles", s.triangles)
	mux.HandleFunc("GET /voronoi", s.voronoi)
	mux.HandleFunc("GET /hull", s.hull)
	mux.HandleFunc("POST /route", s.route)
	mux.HandleFunc("POST /route/pause", s.pauseRoute)
	mux.HandleFunc("POST /route/resume", s.resumeRoute)
	mux.HandleFunc("GET /route/best", s.bestRoute)
	mux.HandleFunc("POST /simplify", s.simplify)
	mux.HandleFunc("GET /render.png", s.renderPNG)
	mux.HandleFunc("GET /chart", s.chart)
	return corsMiddleware(s.logRequests(mux))
}

// corsMiddleware adds CORS headers to allow frontend requests
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("took", time.Since(start)))
	})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response", zap.Error(err))
	}
}

func (s *server) writeFeatures(w http.ResponseWriter, features []*geojson.Feature) {
	fc := geojson.NewFeatureCollection()
	fc.Features = append(fc.Features, features...)
	w.Header().Set("Content-Type", "application/geo+json")
	if err := featureio.Encode(w, fc); err != nil {
		s.log.Warn("write features", zap.Error(err))
	}
}

func (s *server) fail(w http.ResponseWriter, status int, err error) {
	s.log.Debug("request failed", zap.Int("status", status), zap.Error(err))
	s.writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
}

// GET /health
func (s *server) health(w http.ResponseWriter, r *http.Request) {
	stats := s.mesh.Stats()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"points":    stats.Points,
		"triangles": stats.Triangles,
		"flips":     stats.Flips,
		"rebuilds":  stats.Rebuilds,
		"edges":     s.edges.Len(),
		"search":    s.engine.State().String(),
	})
}

// POST /points takes a GeoJSON feature or collection of points.
func (s *server) addPoints(w http.ResponseWriter, r *http.Request) {
	fc, err := featureio.Decode(r.Body)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}

	// the triangulation follows the collection and drops what it rejects
	features := featureio.Explode(fc).Features
	before := s.mesh.Len()
	for _, f := range features {
		s.points.Add(f)
	}
	added := s.mesh.Len() - before
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"added":    added,
		"rejected": len(features) - added,
		"points":   s.mesh.Len(),
	})
}

type pointsRequest struct {
	Points [][2]float64 `json:"points"`
}

// DELETE /points takes {"points": [[x, y], ...]}.
func (s *server) removePoints(w http.ResponseWriter, r *http.Request) {
	var req pointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}

	removed := 0
	for _, xy := range req.Points {
		p := orb.Point(xy)
		owned := false
		for _, f := range s.points.Near(p, s.cfg.Delaunay.Epsilon) {
			if q, ok := f.Geometry.(orb.Point); ok && geometry.Equal(p, q, s.cfg.Delaunay.Epsilon) {
				s.points.Remove(f)
				owned = true
				removed++
				break
			}
		}
		if !owned && s.mesh.RemovePoint(p) {
			removed++
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"removed": removed,
		"points":  s.mesh.Len(),
	})
}

// GET /triangles
func (s *server) triangles(w http.ResponseWriter, r *http.Request) {
	s.writeFeatures(w, s.mesh.Triangles().Features())
}

// GET /voronoi?hull=true
func (s *server) voronoi(w http.ResponseWriter, r *http.Request) {
	includeHull, _ := strconv.ParseBool(r.URL.Query().Get("hull"))
	s.writeFeatures(w, s.mesh.VoronoiCells(includeHull))
}

// GET /hull
func (s *server) hull(w http.ResponseWriter, r *http.Request) {
	hull := s.mesh.Hull()
	if len(hull) < 3 {
		s.writeFeatures(w, nil)
		return
	}
	ring := append(orb.Ring(nil), hull...)
	ring = append(ring, hull[0])
	s.writeFeatures(w, []*geojson.Feature{geojson.NewFeature(orb.Polygon{ring})})
}

type routeRequest struct {
	Start orb.Point `json:"start"`
	End   orb.Point `json:"end"`
	// Async schedules the search and returns at once; poll /route/best.
	Async bool `json:"async,omitempty"`
}

type routeResponse struct {
	Success   bool                       `json:"success"`
	Status    string                     `json:"status"`
	Message   string                     `json:"message,omitempty"`
	Start     orb.Point                  `json:"start"`
	End       orb.Point                  `json:"end"`
	WDistance float64                    `json:"wdistance"`
	Distance  float64                    `json:"distance"`
	Route     *geojson.FeatureCollection `json:"route"`
}

func collection(features []*geojson.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = append(fc.Features, features...)
	return fc
}

// POST /route
func (s *server) route(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}
	s.log.Debug("route request",
		zap.Float64s("start", req.Start[:]), zap.Float64s("end", req.End[:]))

	if s.edges.Len() == 0 {
		s.fail(w, http.StatusBadRequest, pathfind.ErrNoEdges)
		return
	}

	if req.Async {
		snapped, ok := s.engine.Path(req.Start, req.End)
		switch {
		case ok:
			s.writeJSON(w, http.StatusAccepted, routeResponse{
				Success: true, Status: pathfind.Running.String(),
				Start: snapped[0], End: snapped[1], WDistance: -1, Distance: -1,
				Route: collection(nil),
			})
		case s.engine.State() == pathfind.Running:
			s.fail(w, http.StatusConflict, pathfind.ErrBusy)
		default:
			s.writeJSON(w, http.StatusOK, routeResponse{
				Success: true, Status: pathfind.Finished.String(),
				Start: snapped[0], End: snapped[1], WDistance: -1, Distance: -1,
				Route: collection(nil),
			})
		}
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.routeTimeout)
	defer cancel()

	res, err := s.engine.Run(ctx, req.Start, req.End)
	resp := routeResponse{
		Start:     res.Start,
		End:       res.End,
		WDistance: res.WDistance,
		Distance:  res.Distance,
		Route:     collection(res.Route),
	}
	switch cause := errors.Cause(err); {
	case err == nil:
		resp.Success = res.Found() || res.Start == res.End
		resp.Status = pathfind.Finished.String()
		if !resp.Success {
			resp.Message = "no route between the endpoints"
		}
		s.writeJSON(w, http.StatusOK, resp)
	case cause == pathfind.ErrBusy:
		s.fail(w, http.StatusConflict, err)
	case cause == pathfind.ErrNoEdges:
		s.fail(w, http.StatusBadRequest, err)
	default:
		// overflow, pause request or timeout: the search stays resumable
		resp.Status = pathfind.Paused.String()
		resp.Message = err.Error()
		resp.Route = collection(s.engine.BestWay())
		s.writeJSON(w, http.StatusAccepted, resp)
	}
}

// POST /route/pause
func (s *server) pauseRoute(w http.ResponseWriter, r *http.Request) {
	s.engine.Pause()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"state":   s.engine.State().String(),
	})
}

// POST /route/resume
func (s *server) resumeRoute(w http.ResponseWriter, r *http.Request) {
	if !s.engine.Resume() {
		s.fail(w, http.StatusConflict, errors.New("no paused search"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"state":   s.engine.State().String(),
	})
}

// GET /route/best
func (s *server) bestRoute(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"state": s.engine.State().String(),
		"route": collection(s.engine.BestWay()),
	})
}

// POST /simplify?method=dp|visvalingam|spline&threshold=..&keep=..
func (s *server) simplify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	threshold, err := floatParam(q.Get("threshold"), 0)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	fc, err := featureio.Decode(r.Body)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}

	switch method := q.Get("method"); method {
	case "", "dp":
		fc.Features = simplify.Features(fc.Features, simplify.ByDouglasPeucker(threshold))
	case "visvalingam":
		keep, err := strconv.Atoi(q.Get("keep"))
		if err != nil {
			keep = 2
		}
		fc.Features = simplify.Features(fc.Features, simplify.ByVisvalingam(threshold, keep))
	case "spline":
		tension, err := floatParam(q.Get("tension"), 0)
		if err != nil {
			s.fail(w, http.StatusBadRequest, err)
			return
		}
		perSegment, _ := strconv.Atoi(q.Get("pointsPerSegment"))
		opts := simplify.Options{Tension: tension, PointsPerSegment: perSegment}
		for _, f := range fc.Features {
			if ls, ok := f.Geometry.(orb.LineString); ok {
				f.Geometry = simplify.CSpline(ls, opts)
			}
		}
	default:
		s.fail(w, http.StatusBadRequest, errors.Errorf("unknown method %q", method))
		return
	}

	fc.Features = simplify.RemoveEmpty(fc.Features, 0, 0)
	w.Header().Set("Content-Type", "application/geo+json")
	if err := featureio.Encode(w, fc); err != nil {
		s.log.Warn("write features", zap.Error(err))
	}
}

func floatParam(v string, def float64) (float64, error) {
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	return f, errors.Wrapf(err, "invalid number %q", v)
}

func (s *server) layers(r *http.Request) render.Layers {
	q := r.URL.Query()
	layers := render.Layers{
		Triangles: s.mesh.TriangleRings(),
		Hull:      s.mesh.Hull(),
		Points:    s.mesh.Points(),
	}
	if on, _ := strconv.ParseBool(q.Get("voronoi")); on {
		for _, f := range s.mesh.VoronoiCells(false) {
			if poly, ok := f.Geometry.(orb.Polygon); ok && len(poly) > 0 {
				layers.Cells = append(layers.Cells, poly[0])
			}
		}
	}
	if on, _ := strconv.ParseBool(q.Get("edges")); on {
		for _, f := range s.edges.Features() {
			if ls, ok := f.Geometry.(orb.LineString); ok {
				layers.Edges = append(layers.Edges, ls)
			}
		}
	}
	for _, f := range s.engine.BestWay() {
		if ls, ok := f.Geometry.(orb.LineString); ok {
			layers.Route = append(layers.Route, ls)
		}
	}
	return layers
}

// GET /render.png?voronoi=true&edges=true
func (s *server) renderPNG(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	err := render.PNG(w, s.layers(r), render.Options{
		Width:  s.cfg.Render.Width,
		Height: s.cfg.Render.Height,
	})
	if err != nil {
		s.log.Warn("render png", zap.Error(err))
	}
}
