package spatial

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Strategy names accepted by Select.
const (
	StrategyAuto  = "auto"
	StrategyS2    = "s2"
	StrategyCoord = "coord"
)

// DefaultResolution is the S2 level used when none is configured (~1.2 km cells).
const DefaultResolution = 13

// Indexer maps a coordinate to a cell identifier. Implementations are deterministic.
type Indexer interface {
	CellID(lat, lon float64, resolution int) string
	Name() string
}

// S2Indexer buckets coordinates into S2 cells and returns the cell token.
type S2Indexer struct{}

// CellID returns the token of the S2 cell at the given level containing the coordinate.
func (S2Indexer) CellID(lat, lon float64, resolution int) string {
	leaf := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon))
	return leaf.Parent(resolution).ToToken()
}

// Name implements Indexer.
func (S2Indexer) Name() string { return StrategyS2 }

// CoordIndexer derives a cell id from coordinates scaled to thousandths of a degree.
type CoordIndexer struct{}

// CellID implements Indexer.
func (CoordIndexer) CellID(lat, lon float64, resolution int) string {
	return fmt.Sprintf("h3_%d_%d_%d", int(lat*1000), int(math.Abs(lon)*1000), resolution)
}

// Name implements Indexer.
func (CoordIndexer) Name() string { return StrategyCoord }

// probe point: Abidjan Plateau.
const (
	probeLat = 5.3236
	probeLon = -4.0208
)

// Select picks the indexer for a run. "auto" checks once that S2 produces a valid,
// round-tripping cell at the requested resolution and falls back to CoordIndexer otherwise.
func Select(strategy string, resolution int) (Indexer, error) {
	switch strategy {
	case StrategyS2:
		if !s2Supports(resolution) {
			return nil, eris.Errorf("spatial: s2 does not support resolution %d", resolution)
		}
		return S2Indexer{}, nil
	case StrategyCoord:
		return CoordIndexer{}, nil
	case StrategyAuto, "":
		if s2Supports(resolution) {
			return S2Indexer{}, nil
		}
		zap.L().Warn("spatial: s2 probe failed, using coordinate indexer",
			zap.Int("resolution", resolution),
		)
		return CoordIndexer{}, nil
	default:
		return nil, eris.Errorf("spatial: unknown indexer strategy %q", strategy)
	}
}

func s2Supports(resolution int) bool {
	if resolution < 0 || resolution > s2.MaxLevel {
		return false
	}
	token := S2Indexer{}.CellID(probeLat, probeLon, resolution)
	id := s2.CellIDFromToken(token)
	if !id.IsValid() || id.Level() != resolution {
		return false
	}
	return id.Contains(s2.CellIDFromLatLng(s2.LatLngFromDegrees(probeLat, probeLon)))
}
