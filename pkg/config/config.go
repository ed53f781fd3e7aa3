// Package config loads the service configuration from YAML.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server     Server   `yaml:"server"`
	Log        Log      `yaml:"log"`
	Delaunay   Delaunay `yaml:"delaunay"`
	Path       Path     `yaml:"path"`
	Render     Render   `yaml:"render"`
	EdgesPath  string   `yaml:"edges"`  // GeoJSON file or directory of line features
	PointsPath string   `yaml:"points"` // GeoJSON file or directory of point features
	ZonesPath  string   `yaml:"zones"`  // GeoJSON polygons that block the edges they touch
}

type Server struct {
	Addr         string `yaml:"addr"`
	RouteTimeout string `yaml:"routeTimeout"` // time.ParseDuration syntax
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Delaunay struct {
	Epsilon  float64 `yaml:"epsilon"`
	MaxFlips int     `yaml:"maxFlips"`
}

type Path struct {
	Epsilon       float64 `yaml:"epsilon"`
	StepIteration int     `yaml:"stepIteration"`
	MaxIteration  int     `yaml:"maxIteration"`

	// Geodesic switches lengths and the heuristic to meters on lon/lat data.
	Geodesic bool `yaml:"geodesic"`

	// WeightProperty and DirectionProperty name feature properties read by
	// the weight and direction policies; empty means the defaults.
	// MinWeight must be given with WeightProperty and be no larger than any
	// weight the property takes, or the search may miss the best route.
	WeightProperty    string  `yaml:"weightProperty"`
	MinWeight         float64 `yaml:"minWeight"`
	DirectionProperty string  `yaml:"directionProperty"`
}

type Render struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080", RouteTimeout: "30s"},
		Log:    Log{Level: "info"},
		Delaunay: Delaunay{
			Epsilon:  1e-9,
			MaxFlips: 1000,
		},
		Path: Path{
			Epsilon:       1e-9,
			StepIteration: 2000,
			MaxIteration:  20000,
		},
		Render: Render{Width: 800, Height: 800},
	}
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch {
	case c.Server.Addr == "":
		return errors.New("server.addr must not be empty")
	case c.Delaunay.Epsilon < 0 || c.Path.Epsilon < 0:
		return errors.New("epsilon must not be negative")
	case c.Delaunay.MaxFlips <= 0:
		return errors.Errorf("delaunay.maxFlips must be positive, got %d", c.Delaunay.MaxFlips)
	case c.Path.StepIteration <= 0:
		return errors.Errorf("path.stepIteration must be positive, got %d", c.Path.StepIteration)
	case c.Path.MaxIteration <= 0:
		return errors.Errorf("path.maxIteration must be positive, got %d", c.Path.MaxIteration)
	case c.Path.MinWeight < 0 || c.Path.MinWeight > 1:
		return errors.Errorf("path.minWeight must be in (0,1], got %g", c.Path.MinWeight)
	case c.Path.WeightProperty != "" && c.Path.MinWeight == 0:
		return errors.New("path.minWeight is required with path.weightProperty")
	case c.Render.Width <= 0 || c.Render.Height <= 0:
		return errors.New("render size must be positive")
	}
	return nil
}
