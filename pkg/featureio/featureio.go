// Package featureio reads and writes GeoJSON feature collections.
package featureio

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"mesh-planner/pkg/source"
)

// Decode parses a GeoJSON document. A bare Feature is accepted and wrapped
// in a collection.
func Decode(r io.Reader) (*geojson.FeatureCollection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read geojson")
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, errors.Wrap(err, "parse geojson")
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, errors.Wrap(err, "parse feature collection")
		}
		return fc, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, errors.Wrap(err, "parse feature")
		}
		fc := geojson.NewFeatureCollection()
		return fc.Append(f), nil
	}
	return nil, errors.Errorf("unsupported geojson type %q", head.Type)
}

// Load reads one GeoJSON file.
func Load(path string) (*geojson.FeatureCollection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	fc, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return fc, nil
}

// LoadDir merges every *.geojson file of dir. Files that fail to load are
// skipped; their errors are combined in the returned error, next to the
// features of the files that did load.
func LoadDir(dir string, log *zap.Logger) (*geojson.FeatureCollection, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.geojson"))
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	log.Info("loading geojson directory", zap.String("dir", dir), zap.Int("files", len(files)))

	all := geojson.NewFeatureCollection()
	var errs error
	for _, file := range files {
		fc, err := Load(file)
		if err != nil {
			log.Warn("skipping file", zap.String("file", file), zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		all.Features = append(all.Features, fc.Features...)
		log.Debug("loaded file", zap.String("file", filepath.Base(file)), zap.Int("features", len(fc.Features)))
	}

	log.Info("geojson loaded", zap.Int("features", len(all.Features)), zap.Int("failed", len(multierr.Errors(errs))))
	return all, errs
}

// LoadPath loads a single file or, for a directory, every file in it.
func LoadPath(path string, log *zap.Logger) (*geojson.FeatureCollection, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if info.IsDir() {
		return LoadDir(path, log)
	}
	return Load(path)
}

// Encode writes fc as indented GeoJSON.
func Encode(w io.Writer, fc *geojson.FeatureCollection) error {
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal feature collection")
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return errors.Wrap(err, "write feature collection")
	}
	return nil
}

// Save writes fc to path.
func Save(path string, fc *geojson.FeatureCollection) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := Encode(f, fc); err != nil {
		f.Close()
		return errors.Wrapf(err, "save %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

// Explode splits multi geometries into one feature per part. Each part gets
// a copy of the properties of the feature it came from.
func Explode(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.MultiPoint:
			for _, p := range g {
				out.Append(part(f, p))
			}
		case orb.MultiLineString:
			for _, ls := range g {
				out.Append(part(f, ls))
			}
		case orb.MultiPolygon:
			for _, p := range g {
				out.Append(part(f, p))
			}
		default:
			out.Append(f)
		}
	}
	return out
}

func part(f *geojson.Feature, g orb.Geometry) *geojson.Feature {
	p := geojson.NewFeature(g)
	p.Properties = f.Properties.Clone()
	return p
}

// ToCollection exposes the features of fc as an observable collection.
func ToCollection(fc *geojson.FeatureCollection) *source.Collection {
	return source.FromFeatureCollection(Explode(fc))
}
