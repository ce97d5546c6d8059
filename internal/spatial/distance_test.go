package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name  string
		lat1  float64
		lon1  float64
		lat2  float64
		lon2  float64
		want  float64
		delta float64
	}{
		{name: "same point", lat1: 5.36, lon1: -4.01, lat2: 5.36, lon2: -4.01, want: 0, delta: 1e-9},
		{name: "one degree on equator", lat1: 0, lon1: 0, lat2: 0, lon2: 1, want: 2 * math.Pi * EarthRadiusKm / 360, delta: 1e-6},
		{name: "one degree of latitude", lat1: 5, lon1: -4, lat2: 6, lon2: -4, want: 111.19, delta: 0.01},
		{name: "abidjan to bouake", lat1: 5.36, lon1: -4.01, lat2: 7.69, lon2: -5.03, want: 282, delta: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2), tt.delta)
		})
	}
}

func TestHaversine_Symmetric(t *testing.T) {
	assert.InDelta(t,
		Haversine(9.46, -5.63, 4.75, -6.64),
		Haversine(4.75, -6.64, 9.46, -5.63),
		1e-9,
	)
}

func TestHaversine_TriangleInequality(t *testing.T) {
	points := [][2]float64{
		{5.36, -4.01}, {7.69, -5.03}, {6.82, -5.28}, {4.75, -6.64},
		{9.46, -5.63}, {6.88, -6.45}, {10.5, -2.8}, {4.2, -8.9},
	}
	for _, a := range points {
		for _, b := range points {
			for _, c := range points {
				ac := Haversine(a[0], a[1], c[0], c[1])
				ab := Haversine(a[0], a[1], b[0], b[1])
				bc := Haversine(b[0], b[1], c[0], c[1])
				assert.LessOrEqual(t, ac, ab+bc+1e-9)
			}
		}
	}
}

func TestOffset(t *testing.T) {
	lat, lon := Offset(5, -4, 111, 0)
	assert.InDelta(t, 6.0, lat, 1e-9)
	assert.InDelta(t, -4.0, lon, 1e-9)

	lat, lon = Offset(5, -4, 55.5, math.Pi/2)
	assert.InDelta(t, 5.0, lat, 1e-9)
	assert.InDelta(t, -3.5, lon, 1e-9)
}
