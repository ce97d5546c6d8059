// Package geo loads administrative boundaries and samples home and destination
// coordinates from them.
package geo

import (
	"strings"
	"unicode"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Locality is one administrative unit with its boundary polygon. Coordinates are
// stored as X=longitude, Y=latitude.
type Locality struct {
	Name       string
	Department string
	Region     string
	Polygon    *geom.MultiPolygon
	Centroid   geom.Coord
	Bounds     *geom.Bounds
	Weight     float64
}

// NewLocality computes the centroid and bounds of the polygon.
func NewLocality(name, department, region string, mp *geom.MultiPolygon) *Locality {
	return &Locality{
		Name:       name,
		Department: department,
		Region:     region,
		Polygon:    mp,
		Centroid:   xy.MultiPolygonCentroid(mp),
		Bounds:     mp.Bounds(),
	}
}

// CentroidLatLon returns the centroid as latitude, longitude.
func (l *Locality) CentroidLatLon() (float64, float64) {
	return l.Centroid.Y(), l.Centroid.X()
}

// Contains reports whether the coordinate lies inside the locality. A point inside an
// outer ring but also inside one of its holes is outside.
func (l *Locality) Contains(lat, lon float64) bool {
	if l.Polygon == nil {
		return false
	}
	pt := geom.Coord{lon, lat}
	if !l.Bounds.OverlapsPoint(geom.XY, pt) {
		return false
	}
	for i := 0; i < l.Polygon.NumPolygons(); i++ {
		poly := l.Polygon.Polygon(i)
		if poly.NumLinearRings() == 0 {
			continue
		}
		if !xy.IsPointInRing(geom.XY, pt, poly.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for r := 1; r < poly.NumLinearRings(); r++ {
			if xy.IsPointInRing(geom.XY, pt, poly.LinearRing(r).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// NormalizeName folds case, diacritics and surrounding whitespace so that
// "Bouaké" and "bouake " match.
func NormalizeName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}
