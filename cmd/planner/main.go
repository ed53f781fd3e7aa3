// Command planner serves an incrementally maintained Delaunay triangulation
// and a resumable route search over HTTP.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/alecthomas/kingpin.v2"

	"mesh-planner/pkg/config"
	"mesh-planner/pkg/featureio"
	"mesh-planner/pkg/logger"
	"mesh-planner/pkg/pathfind"
	"mesh-planner/pkg/source"
)

var (
	app        = kingpin.New("planner", "Delaunay triangulation and route search service.")
	configPath = app.Flag("config", "YAML configuration file.").Short('c').String()
	addr       = app.Flag("addr", "Listen address, overrides server.addr.").String()
	edgesPath  = app.Flag("edges", "GeoJSON file or directory of line features to route on.").String()
	pointsPath = app.Flag("points", "GeoJSON file or directory of points to triangulate.").String()
	zonesPath  = app.Flag("zones", "GeoJSON file or directory of polygons that block routing.").String()
	logLevel   = app.Flag("log-level", "debug, info, warn or error.").String()
)

func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return cfg, err
		}
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *edgesPath != "" {
		cfg.EdgesPath = *edgesPath
	}
	if *pointsPath != "" {
		cfg.PointsPath = *pointsPath
	}
	if *zonesPath != "" {
		cfg.ZonesPath = *zonesPath
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	return cfg, cfg.Validate()
}

// loadFeatures reads path into a collection. Files that fail to parse are
// logged and skipped; an empty path gives an empty collection.
func loadFeatures(path string, log *zap.Logger) *source.Collection {
	if path == "" {
		return source.New()
	}
	fc, err := featureio.LoadPath(path, log)
	if err != nil {
		log.Warn("loading features", zap.String("path", path), zap.Error(err))
	}
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}
	return featureio.ToCollection(fc)
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	points := loadFeatures(cfg.PointsPath, log)
	edges := loadFeatures(cfg.EdgesPath, log)

	zones := pathfind.ZonesFromFeatures(loadFeatures(cfg.ZonesPath, log).Features())
	if zones.Len() > 0 {
		log.Info("no-go zones loaded", zap.Int("zones", zones.Len()))
	}

	s, err := newServer(cfg, log, points, edges, zones)
	if err != nil {
		return err
	}
	stats := s.mesh.Stats()
	log.Info("state loaded",
		zap.Int("points", stats.Points),
		zap.Int("triangles", stats.Triangles),
		zap.Int("edges", edges.Len()))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", cfg.Server.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Wrap(srv.Shutdown(shutdown), "shutdown")
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := loadConfig()
	if err != nil {
		app.Fatalf("%v", err)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Development)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("planner stopped", zap.Error(err))
	}
}
