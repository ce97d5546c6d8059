package mobility

import (
	"sort"

	"github.com/sells-group/mobility-cli/internal/model"
	"github.com/sells-group/mobility-cli/internal/stats"
)

// Accessibility tiers.
const (
	AccessGood     = "Good"
	AccessModerate = "Moderate"
	AccessPoor     = "Poor"
)

// Access describes public transport accessibility.
type Access struct {
	SDG1121                   float64            `yaml:"sdg_11_2_1" cbor:"sdg_11_2_1"`
	PublicTransportUsageRate  float64            `yaml:"public_transport_usage_rate" cbor:"public_transport_usage_rate"`
	Distribution              map[string]float64 `yaml:"accessibility_distribution" cbor:"accessibility_distribution"`
	AvgPublicTransportTimeMin float64            `yaml:"avg_public_transport_time_min" cbor:"avg_public_transport_time_min"`
}

// Accessibility classifies each user: Good when they used public transport and their
// shortest trip takes at most goodMin minutes, Moderate when their shortest trip takes at
// most moderateMin, Poor otherwise. SDG1121 is the share of users who used public
// transport at all.
func Accessibility(trips []model.MobilityTrip, goodMin, moderateMin float64) Access {
	a := Access{Distribution: map[string]float64{AccessGood: 0, AccessModerate: 0, AccessPoor: 0}}
	if len(trips) == 0 {
		return a
	}

	type user struct {
		public  bool
		minTime float64
	}
	users := make(map[string]*user)
	var publicTrips []float64
	for _, t := range trips {
		d := float64(t.DurationMin)
		u, ok := users[t.UserID]
		if !ok {
			u = &user{minTime: d}
			users[t.UserID] = u
		}
		if d < u.minTime {
			u.minTime = d
		}
		if IsPublic(t.TransportMode) {
			u.public = true
			publicTrips = append(publicTrips, d)
		}
	}

	var publicUsers int
	counts := make(map[string]int, 3)
	for _, u := range users {
		if u.public {
			publicUsers++
		}
		switch {
		case u.public && u.minTime <= goodMin:
			counts[AccessGood]++
		case u.minTime <= moderateMin:
			counts[AccessModerate]++
		default:
			counts[AccessPoor]++
		}
	}

	n := float64(len(users))
	for tier, c := range counts {
		a.Distribution[tier] = stats.Round(float64(c)/n, 3)
	}
	a.SDG1121 = stats.Round(float64(publicUsers)/n, 3)
	a.PublicTransportUsageRate = stats.Round(float64(len(publicTrips))/float64(len(trips)), 3)
	a.AvgPublicTransportTimeMin = stats.Round(stats.Mean(publicTrips), 1)
	return a
}

// Emission factors in grams of CO2 per kilometre.
var emissionFactors = map[string]float64{
	model.ModeWalking:     0,
	model.ModeBicycle:     0,
	model.ModeBus:         89,
	model.ModeTaxi:        171,
	model.ModeMotorbike:   103,
	model.ModePersonalCar: 171,
}

const defaultEmissionFactor = 100

// EmissionFactor returns the grams of CO2 per kilometre of a mode.
func EmissionFactor(mode string) float64 {
	if f, ok := emissionFactors[mode]; ok {
		return f
	}
	return defaultEmissionFactor
}

// ModeCarbon is the footprint of one mode.
type ModeCarbon struct {
	Mode           string  `csv:"mode" yaml:"mode" cbor:"mode"`
	TotalCO2Kg     float64 `csv:"total_co2_kg" yaml:"total_co2_kg" cbor:"total_co2_kg"`
	AvgCO2PerTripG float64 `csv:"avg_co2_per_trip_g" yaml:"avg_co2_per_trip_g" cbor:"avg_co2_per_trip_g"`
	Trips          int     `csv:"trips_count" yaml:"trips_count" cbor:"trips_count"`
}

// Carbon is the estimated footprint of all trips.
type Carbon struct {
	TotalCO2Kg     float64      `yaml:"total_co2_kg" cbor:"total_co2_kg"`
	AvgCO2PerTripG float64      `yaml:"avg_co2_per_trip_g" cbor:"avg_co2_per_trip_g"`
	ByMode         []ModeCarbon `yaml:"by_mode" cbor:"by_mode"`
}

// CarbonFootprint estimates emissions as distance times the mode's emission factor.
func CarbonFootprint(trips []model.MobilityTrip) Carbon {
	var c Carbon
	if len(trips) == 0 {
		return c
	}

	byMode := make(map[string][]float64)
	all := make([]float64, len(trips))
	for i, t := range trips {
		g := t.DistanceKm * EmissionFactor(t.TransportMode)
		all[i] = g
		byMode[t.TransportMode] = append(byMode[t.TransportMode], g)
	}

	c.TotalCO2Kg = stats.Round(stats.Sum(all)/1000, 2)
	c.AvgCO2PerTripG = stats.Round(stats.Mean(all), 1)
	for mode, grams := range byMode {
		c.ByMode = append(c.ByMode, ModeCarbon{
			Mode:           mode,
			TotalCO2Kg:     stats.Round(stats.Sum(grams)/1000, 2),
			AvgCO2PerTripG: stats.Round(stats.Mean(grams), 1),
			Trips:          len(grams),
		})
	}
	sort.Slice(c.ByMode, func(i, j int) bool { return c.ByMode[i].Mode < c.ByMode[j].Mode })
	return c
}
