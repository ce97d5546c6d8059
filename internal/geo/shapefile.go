package geo

import (
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

// Fields names the attribute columns that carry the administrative hierarchy.
type Fields struct {
	Name       string
	Department string
	Region     string
}

// LoadShapefile reads polygon records from a shapefile. Records without a name or
// without a usable polygon are skipped.
func LoadShapefile(path string, fields Fields) ([]*Locality, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	nameIdx := fieldIndex(reader, fields.Name)
	if nameIdx < 0 {
		return nil, eris.Errorf("geo: shapefile %s has no %s field", path, fields.Name)
	}
	deptIdx := fieldIndex(reader, fields.Department)
	regionIdx := fieldIndex(reader, fields.Region)

	var (
		locs    []*Locality
		skipped int
	)
	for reader.Next() {
		_, shape := reader.Shape()

		name := attribute(reader, nameIdx)
		poly, ok := shape.(*shp.Polygon)
		if name == "" || !ok {
			skipped++
			continue
		}
		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}
		locs = append(locs, NewLocality(name, attribute(reader, deptIdx), attribute(reader, regionIdx), mp))
	}

	if skipped > 0 {
		zap.L().Debug("geo: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return locs, nil
}

// fieldIndex returns the index of a named field in the shapefile, or -1 if not found.
func fieldIndex(reader *shp.Reader, name string) int {
	if name == "" {
		return -1
	}
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

func attribute(reader *shp.Reader, idx int) string {
	if idx < 0 {
		return ""
	}
	return decodeText(strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00")))
}

// decodeText returns s unchanged when it is valid UTF-8 and otherwise decodes it as
// Latin-1, the usual DBF code page for GADM extracts.
func decodeText(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	out, err := charmap.ISO8859_1.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon, one
// polygon per part.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}
		if end-start < 4 {
			zap.L().Debug("geo: skipping degenerate polygon ring", zap.Int32("part", i))
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("geo: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("geo: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
