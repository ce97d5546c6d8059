package generate

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/sells-group/mobility-cli/internal/config"
	"github.com/sells-group/mobility-cli/internal/model"
	"github.com/sells-group/mobility-cli/internal/rng"
	"github.com/sells-group/mobility-cli/internal/spatial"
	"github.com/sells-group/mobility-cli/internal/stats"
)

var (
	tripsPerDay = map[string]float64{
		"employee": 4,
		"student":  3,
	}
	shortRichModes  = []string{model.ModeTaxi, model.ModeMotorbike, model.ModePersonalCar}
	shortModes      = []string{model.ModeWalking, model.ModeBus, model.ModeMotorbike}
	longRichModes   = []string{model.ModeTaxi, model.ModePersonalCar}
	longModes       = []string{model.ModeBus, model.ModeTaxi, model.ModeMotorbike}
	midDayPurposes  = []string{model.PurposeWorkInternal, model.PurposeShopping, model.PurposeLeisure, model.PurposeHealth, model.PurposeOther}
	defaultTripRate = 2.0
)

const originJitter = 0.02

// MobilityGenerator draws daily trips for a bounded sample of users over a bounded
// number of days.
type MobilityGenerator struct {
	src        *rng.Source
	indexer    spatial.Indexer
	resolution int
	cfg        config.MobilityConfig
	start      time.Time
	days       int
	progress   int
}

// Generate returns trips. The sample of min(SampleCap, n) users comes from stream
// mobility/select; sampled user i then draws from mobility/i.
func (g *MobilityGenerator) Generate(profiles []model.UserProfile) []model.MobilityTrip {
	size := len(profiles)
	if g.cfg.SampleCap > 0 {
		size = min(size, g.cfg.SampleCap)
	}
	days := g.days
	if g.cfg.MaxDays > 0 {
		days = min(days, g.cfg.MaxDays)
	}

	sample := g.src.Stream("mobility", "select").Perm(len(profiles))[:size]
	slices.Sort(sample)

	p := newProgress("generate.mobility", size, g.progress)
	var trips []model.MobilityTrip
	for n, idx := range sample {
		u := profiles[idx]
		s := g.src.Stream("mobility", strconv.Itoa(idx))
		for day := 0; day < days; day++ {
			trips = g.day(s, u, day, trips)
		}
		p.tick(n + 1)
	}
	p.done(len(trips))
	return trips
}

func (g *MobilityGenerator) day(s *rng.Stream, u model.UserProfile, day int, trips []model.MobilityTrip) []model.MobilityTrip {
	date := g.start.AddDate(0, 0, day)
	if date.Weekday() == time.Sunday && s.Bernoulli(g.cfg.SundaySkip) {
		return trips
	}

	rate, ok := tripsPerDay[u.Occupation]
	if !ok {
		rate = defaultTripRate
	}
	n := s.Poisson(rate)
	w := u.InitialWealthScore

	for t := 0; t < max(1, n); t++ {
		var hour int
		switch {
		case t == 0:
			hour = int(stats.Clamp(s.Normal(7, 1), 5, 10))
		case t == n-1:
			hour = int(stats.Clamp(s.Normal(18, 2), 16, 22))
		default:
			hour = int(s.Uniform(9, 17))
		}
		minute := s.IntN(60)

		originLat := u.HomeLat + s.Normal(0, originJitter)
		originLon := u.HomeLon + s.Normal(0, originJitter)

		radius := g.cfg.RadiusMeanKm
		if w > 0.5 {
			radius *= 1.5
		}
		angle := s.Uniform(0, 2*math.Pi)
		dist := math.Abs(s.Exponential(radius / 3))
		destLat, destLon := spatial.Offset(originLat, originLon, dist, angle)

		mode, speed := chooseMode(s, dist, w)

		var purpose string
		switch {
		case t == 0:
			purpose = model.PurposeHomeToWork
		case t == n-1:
			purpose = model.PurposeWorkToHome
		default:
			purpose = midDayPurposes[s.IntN(len(midDayPurposes))]
		}

		trips = append(trips, model.MobilityTrip{
			UserID:        u.UserID,
			Timestamp:     date.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute),
			TripID:        fmt.Sprintf("TRIP_%s_%d_%d", u.UserID[:min(6, len(u.UserID))], day, t),
			OriginLat:     stats.Round(originLat, 6),
			OriginLon:     stats.Round(originLon, 6),
			DestLat:       stats.Round(destLat, 6),
			DestLon:       stats.Round(destLon, 6),
			OriginAntenna: antenna(s),
			DestAntenna:   antenna(s),
			OriginCell:    g.indexer.CellID(originLat, originLon, g.resolution),
			DestCell:      g.indexer.CellID(destLat, destLon, g.resolution),
			DurationMin:   int(max(1, dist/speed*60)),
			DistanceKm:    stats.Round(dist, 2),
			SpeedKmh:      stats.Round(speed, 1),
			TransportMode: mode,
			TripPurpose:   purpose,
			HourOfDay:     hour,
			DayOfWeek:     (int(date.Weekday()) + 6) % 7,
			Locality:      u.Locality,
			Department:    u.Department,
			Region:        u.Region,
		})
	}
	return trips
}

// chooseMode picks a transport mode and speed (km/h) from trip distance and wealth.
func chooseMode(s *rng.Stream, dist, w float64) (string, float64) {
	switch {
	case dist < 1:
		return model.ModeWalking, s.Uniform(4, 6)
	case dist < 3:
		modes := shortModes
		if w > 0.6 {
			modes = shortRichModes
		}
		return modes[s.IntN(len(modes))], s.Uniform(8, 20)
	case w > 0.7:
		return longRichModes[s.IntN(len(longRichModes))], s.Uniform(25, 50)
	default:
		return longModes[s.IntN(len(longModes))], s.Uniform(15, 35)
	}
}
