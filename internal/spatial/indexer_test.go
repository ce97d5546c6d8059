package spatial

import (
	"strings"
	"testing"

	"github.com/golang/geo/s2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS2Indexer(t *testing.T) {
	idx := S2Indexer{}
	a := idx.CellID(5.3600, -4.0100, DefaultResolution)
	b := idx.CellID(5.3600, -4.0100, DefaultResolution)
	assert.Equal(t, a, b)

	cell := s2.CellIDFromToken(a)
	require.True(t, cell.IsValid())
	assert.Equal(t, DefaultResolution, cell.Level())

	// Points ~5 km apart land in different level-13 cells.
	far := idx.CellID(5.4050, -4.0100, DefaultResolution)
	assert.NotEqual(t, a, far)
	assert.Equal(t, "s2", idx.Name())
}

func TestCoordIndexer(t *testing.T) {
	idx := CoordIndexer{}
	assert.Equal(t, "h3_5500_4250_9", idx.CellID(5.5, -4.25, 9))
	assert.Equal(t, idx.CellID(7.6912, -5.0301, 9), idx.CellID(7.6912, -5.0301, 9))
	assert.NotEqual(t, idx.CellID(7.69, -5.03, 9), idx.CellID(7.70, -5.03, 9))
	assert.True(t, strings.HasPrefix(idx.CellID(1, 1, 7), "h3_"))
	assert.Equal(t, "coord", idx.Name())
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name       string
		strategy   string
		resolution int
		want       string
		wantErr    bool
	}{
		{name: "auto default", strategy: "auto", resolution: 13, want: "s2"},
		{name: "empty is auto", strategy: "", resolution: 9, want: "s2"},
		{name: "auto falls back on unsupported level", strategy: "auto", resolution: 31, want: "coord"},
		{name: "forced s2", strategy: "s2", resolution: 13, want: "s2"},
		{name: "forced s2 unsupported", strategy: "s2", resolution: -1, wantErr: true},
		{name: "forced coord", strategy: "coord", resolution: 13, want: "coord"},
		{name: "unknown", strategy: "h3", resolution: 9, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := Select(tt.strategy, tt.resolution)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, idx.Name())
		})
	}
}
