package generate

import (
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/mobility-cli/internal/config"
	"github.com/sells-group/mobility-cli/internal/geo"
	"github.com/sells-group/mobility-cli/internal/model"
	"github.com/sells-group/mobility-cli/internal/rng"
	"github.com/sells-group/mobility-cli/internal/spatial"
	"github.com/sells-group/mobility-cli/internal/stats"
)

// PreviousLocationsSep joins entries of MigrationEvent.PreviousLocations.
const PreviousLocationsSep = "|"

var (
	movementTypes = []string{
		model.MovePermanent,
		model.MoveWork,
		model.MoveEducation,
		model.MoveSeasonal,
		model.MoveTemporary,
		model.MoveCircular,
	}
	movementProbs = []float64{0.15, 0.30, 0.10, 0.20, 0.15, 0.10}

	// residence duration range in days per movement type; others use 7-60.
	residenceDays = map[string][2]float64{
		model.MovePermanent: {90, 365},
		model.MoveWork:      {90, 365},
		model.MoveEducation: {120, 300},
		model.MoveSeasonal:  {30, 120},
	}
)

// MigrationGenerator selects a fraction of users as migrants and draws one
// residence change for each.
type MigrationGenerator struct {
	src        *rng.Source
	sampler    geo.Sampler
	indexer    spatial.Indexer
	resolution int
	cfg        config.MigrationConfig
	start      time.Time
	days       int
}

// Generate returns migration events. int(n*p) migrants are chosen without
// replacement from stream migration/select; migrant i then draws from migration/i.
func (g *MigrationGenerator) Generate(profiles []model.UserProfile) ([]model.MigrationEvent, error) {
	log := zap.L().With(zap.String("component", "generate.migration"))

	n := int(float64(len(profiles)) * g.cfg.Probability)
	if n <= 0 {
		return nil, nil
	}
	selected := g.src.Stream("migration", "select").Perm(len(profiles))[:n]
	slices.Sort(selected)

	names := g.sampler.Names()
	events := make([]model.MigrationEvent, 0, n)
	for _, idx := range selected {
		u := profiles[idx]
		s := g.src.Stream("migration", strconv.Itoa(idx))

		dest, err := g.sampler.SampleDestination(s, u.Locality)
		if errors.Is(err, geo.ErrNoDestination) {
			log.Warn("no destination distinct from origin, skipping migrant",
				zap.String("user_id", u.UserID),
				zap.String("locality", u.Locality),
			)
			continue
		}
		if err != nil {
			return nil, err
		}

		moveType := movementTypes[s.Choice(movementProbs)]
		bounds, ok := residenceDays[moveType]
		if !ok {
			bounds = [2]float64{7, 60}
		}
		days := int(s.Uniform(bounds[0], bounds[1]))
		isReturn := s.Bernoulli(g.cfg.ReturnProbability)
		detected := g.start.AddDate(0, 0, s.IntN(max(1, g.days)))

		previous := []string{u.Locality}
		if isReturn && len(names) > 2 {
			if mid, ok := intermediate(s, names, u.Locality, dest.Locality); ok {
				previous = append(previous, mid)
			}
		}

		events = append(events, model.MigrationEvent{
			UserID:                u.UserID,
			Timestamp:             detected,
			OriginLocality:        u.Locality,
			OriginDepartment:      u.Department,
			OriginRegion:          u.Region,
			DestinationLocality:   dest.Locality,
			DestinationDepartment: dest.Department,
			DestinationRegion:     dest.Region,
			OriginLat:             u.HomeLat,
			OriginLon:             u.HomeLon,
			DestinationLat:        stats.Round(dest.Lat, 6),
			DestinationLon:        stats.Round(dest.Lon, 6),
			OriginCell:            u.HomeCell,
			DestinationCell:       g.indexer.CellID(dest.Lat, dest.Lon, g.resolution),
			ResidenceDurationDays: days,
			MovementType:          moveType,
			IsReturnMigration:     isReturn,
			PreviousLocations:     strings.Join(previous, PreviousLocationsSep),
			DistanceKm:            stats.Round(spatial.Haversine(u.HomeLat, u.HomeLon, dest.Lat, dest.Lon), 1),
		})
	}

	log.Info("generated", zap.Int("records", len(events)), zap.Int("migrants", n))
	return events, nil
}

// intermediate picks a locality visited between origin and destination.
func intermediate(s *rng.Stream, names []string, origin, dest string) (string, bool) {
	o, d := geo.NormalizeName(origin), geo.NormalizeName(dest)
	candidates := make([]string, 0, len(names))
	for _, name := range names {
		if key := geo.NormalizeName(name); key != o && key != d {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[s.IntN(len(candidates))], true
}
