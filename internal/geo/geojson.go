package geo

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// LoadGeoJSON reads Polygon and MultiPolygon features from a GeoJSON
// FeatureCollection. Property lookups are case-insensitive.
func LoadGeoJSON(r io.Reader, fields Fields) ([]*Locality, error) {
	var fc geojson.FeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "geo: decode geojson")
	}

	var (
		locs    []*Locality
		skipped int
	)
	for _, f := range fc.Features {
		name := property(f.Properties, fields.Name)
		mp := toMultiPolygon(f.Geometry)
		if name == "" || mp == nil {
			skipped++
			continue
		}
		locs = append(locs, NewLocality(name,
			property(f.Properties, fields.Department),
			property(f.Properties, fields.Region),
			mp,
		))
	}

	if skipped > 0 {
		zap.L().Debug("geo: skipped geojson features", zap.Int("skipped", skipped))
	}
	return locs, nil
}

// Load reads boundaries from a .shp or .geojson/.json file.
func Load(path string, fields Fields) ([]*Locality, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return LoadShapefile(path, fields)
	case ".geojson", ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "geo: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return LoadGeoJSON(f, fields)
	default:
		return nil, eris.Errorf("geo: unsupported boundary format %q", filepath.Ext(path))
	}
}

func toMultiPolygon(g geom.T) *geom.MultiPolygon {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		if t.NumPolygons() == 0 {
			return nil
		}
		return t.SetSRID(4326)
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return nil
		}
		mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
		if err := mp.Push(t); err != nil {
			zap.L().Debug("geo: skipping malformed polygon", zap.Error(err))
			return nil
		}
		return mp
	default:
		return nil
	}
}

func property(props map[string]interface{}, key string) string {
	if key == "" {
		return ""
	}
	for k, v := range props {
		if !strings.EqualFold(k, key) || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
		return fmt.Sprint(v)
	}
	return ""
}
