package generate

import (
	"strconv"
	"time"

	"github.com/sells-group/mobility-cli/internal/config"
	"github.com/sells-group/mobility-cli/internal/geo"
	"github.com/sells-group/mobility-cli/internal/model"
	"github.com/sells-group/mobility-cli/internal/rng"
	"github.com/sells-group/mobility-cli/internal/spatial"
	"github.com/sells-group/mobility-cli/internal/stats"
)

// Initial wealth offsets.
var (
	phoneWealth = map[string]float64{
		model.PhoneBasic:      -0.2,
		model.PhoneFeature:    0.0,
		model.PhoneSmartphone: 0.2,
	}
	occupationWealth = map[string]float64{
		"employee":        0.15,
		"trader":          0.1,
		"student":         0.0,
		"informal_sector": -0.1,
		"farmer":          -0.1,
		"unemployed":      -0.2,
		"other":           0.0,
	}
)

const (
	wealthBase     = 0.5
	postpaidWealth = 0.15
	areaWealth     = 0.05
	wealthNoise    = 0.1
)

// ProfileGenerator draws synthetic subscriber profiles anchored to sampled homes.
type ProfileGenerator struct {
	src        *rng.Source
	sampler    geo.Sampler
	indexer    spatial.Indexer
	resolution int
	demo       config.DemographicsConfig
	areas      *geo.AreaClassifier
	ids        *IDHasher
	createdAt  time.Time
	progress   int
}

// Generate returns n profiles. Profile i draws only from stream profile/i.
func (g *ProfileGenerator) Generate(n int) []model.UserProfile {
	p := newProgress("generate.profile", n, g.progress)
	users := make([]model.UserProfile, 0, n)

	for i := 0; i < n; i++ {
		s := g.src.Stream("profile", strconv.Itoa(i))

		home := g.sampler.SampleHome(s)
		u := model.UserProfile{
			UserID:           g.ids.ID(i),
			AgeGroup:         pick(s, g.demo.AgeGroups),
			Gender:           pick(s, g.demo.Gender),
			Occupation:       pick(s, g.demo.Occupation),
			PhoneType:        pick(s, g.demo.PhoneType),
			SubscriptionType: pick(s, g.demo.Subscription),
			HomeLat:          stats.Round(home.Lat, 6),
			HomeLon:          stats.Round(home.Lon, 6),
			HomeCell:         g.indexer.CellID(home.Lat, home.Lon, g.resolution),
			Locality:         home.Locality,
			Department:       home.Department,
			Region:           home.Region,
			CreatedAt:        g.createdAt,
		}
		u.UrbanRural = g.areas.Classify(s, home.Locality)
		u.HouseholdSize = s.Choice(g.demo.HouseholdSizeProbs) + 1
		u.InitialWealthScore = initialWealth(s, u)

		users = append(users, u)
		p.tick(i + 1)
	}
	p.done(len(users))
	return users
}

// initialWealth is a 0.5 baseline adjusted by phone, subscription, occupation and
// area offsets plus N(0, 0.1) noise, clamped to [0, 1].
func initialWealth(s *rng.Stream, u model.UserProfile) float64 {
	score := wealthBase + phoneWealth[u.PhoneType] + occupationWealth[u.Occupation]
	if u.SubscriptionType == model.Postpaid {
		score += postpaidWealth
	}
	if u.UrbanRural == model.Urban {
		score += areaWealth
	} else {
		score -= areaWealth
	}
	return stats.Round(stats.Clamp(score+s.Normal(0, wealthNoise), 0, 1), 3)
}

func pick(s *rng.Stream, d config.Distribution) string {
	idx := s.Choice(d.Probabilities)
	if idx < 0 || idx >= len(d.Values) {
		return ""
	}
	return d.Values[idx]
}
