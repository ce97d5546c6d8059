package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuantile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		q      float64
		want   float64
	}{
		{name: "empty", values: nil, q: 0.5, want: 0},
		{name: "single", values: []float64{3}, q: 0.9, want: 3},
		{name: "median odd", values: []float64{3, 1, 2}, q: 0.5, want: 2},
		{name: "median even", values: []float64{4, 1, 3, 2}, q: 0.5, want: 2.5},
		{name: "p90", values: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, q: 0.9, want: 9.1},
		{name: "p20", values: []float64{10, 20, 30, 40, 50}, q: 0.2, want: 18},
		{name: "min", values: []float64{5, 2, 8}, q: 0, want: 2},
		{name: "max", values: []float64{5, 2, 8}, q: 1, want: 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Quantile(tt.values, tt.q), 1e-9)
		})
	}
}

func TestQuantile_DoesNotMutate(t *testing.T) {
	values := []float64{3, 1, 2}
	_ = Median(values)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestMeanStdDev(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-12)
	assert.Equal(t, 0.0, StdDev([]float64{4}))
	assert.InDelta(t, 1.0, StdDev([]float64{1, 2, 3}), 1e-12)
	assert.InDelta(t, 6.0, Sum([]float64{1, 2, 3}), 1e-12)
}

func TestRoundClamp(t *testing.T) {
	assert.Equal(t, 1.23, Round(1.234, 2))
	assert.Equal(t, 1.24, Round(1.235001, 2))
	assert.Equal(t, 1.0, Clamp(1.7, 0, 1))
	assert.Equal(t, 0.0, Clamp(-0.2, 0, 1))
	assert.Equal(t, 0.5, Clamp(0.5, 0, 1))
}
