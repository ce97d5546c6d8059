// Package spatial provides great-circle distance and hierarchical cell indexing.
package spatial

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean Earth radius used for all distances.
const EarthRadiusKm = 6371.0

// KmPerDegree is the length of one degree of latitude at EarthRadiusKm, rounded the way
// offsets are applied when displacing a coordinate by a distance.
const KmPerDegree = 111.0

// Haversine returns the great-circle distance in kilometres between two coordinates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}

// Offset moves a coordinate by distKm along angle (radians, counter-clockwise from east)
// using the flat degree approximation.
func Offset(lat, lon, distKm, angle float64) (float64, float64) {
	return lat + distKm/KmPerDegree*math.Cos(angle), lon + distKm/KmPerDegree*math.Sin(angle)
}
