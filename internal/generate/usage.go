package generate

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sells-group/mobility-cli/internal/config"
	"github.com/sells-group/mobility-cli/internal/model"
	"github.com/sells-group/mobility-cli/internal/rng"
	"github.com/sells-group/mobility-cli/internal/stats"
)

const weekDays = 7

// UsageGenerator draws one usage observation per user per week of the horizon.
type UsageGenerator struct {
	src      *rng.Source
	econ     config.EconomicConfig
	start    time.Time
	days     int
	progress int
}

// Generate returns observations for every profile. User i draws only from usage/i.
func (g *UsageGenerator) Generate(profiles []model.UserProfile) []model.UsageObservation {
	p := newProgress("generate.usage", len(profiles), g.progress)
	weeks := (g.days + weekDays - 1) / weekDays
	out := make([]model.UsageObservation, 0, len(profiles)*weeks)

	for i, u := range profiles {
		s := g.src.Stream("usage", strconv.Itoa(i))
		w := u.InitialWealthScore

		probs := g.econ.RechargeProbsRich
		if w < g.econ.PoorThreshold {
			probs = g.econ.RechargeProbsPoor
		}

		for offset := 0; offset < g.days; offset += weekDays {
			date := g.start.AddDate(0, 0, offset)

			n := s.Poisson(max(1, w*5+2))
			var total float64
			for r := 0; r < n; r++ {
				if idx := s.Choice(probs); idx >= 0 {
					total += g.econ.RechargeAmounts[idx]
				}
			}

			out = append(out, model.UsageObservation{
				UserID:                  u.UserID,
				Timestamp:               date,
				WeekStart:               date.Format("2006-01-02"),
				Latitude:                u.HomeLat,
				Longitude:               u.HomeLon,
				Locality:                u.Locality,
				Department:              u.Department,
				Region:                  u.Region,
				UrbanRural:              u.UrbanRural,
				CallDurationSec:         int(s.Gamma(2+w*3, 60)),
				DataMB:                  stats.Round(dataVolume(s, u.PhoneType, w), 1),
				RechargeAmountFCFA:      float64(int64(total)),
				RechargeFrequencyWeekly: n,
				ContactDiversityScore:   stats.Round(stats.Clamp(0.3+w*0.4+s.Normal(0, 0.15), 0, 1), 2),
				MobilityRadiusKm:        stats.Round(max(0.1, s.Gamma(1+w*5, 2)), 1),
				AntennaID:               antenna(s),
				PhoneType:               u.PhoneType,
				SubscriptionType:        u.SubscriptionType,
			})
		}
		p.tick(i + 1)
	}
	p.done(len(out))
	return out
}

// dataVolume draws weekly data in MB; smartphones have the highest mean and variance.
func dataVolume(s *rng.Stream, phone string, w float64) float64 {
	switch phone {
	case model.PhoneSmartphone:
		return s.Gamma(20+w*50, 10)
	case model.PhoneFeature:
		return s.Gamma(5+w*20, 5)
	default:
		return s.Exponential(2)
	}
}

func antenna(s *rng.Stream) string {
	return fmt.Sprintf("ANT_%d", s.IntBetween(100, 999))
}
