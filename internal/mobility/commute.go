package mobility

import (
	"github.com/sells-group/mobility-cli/internal/model"
	"github.com/sells-group/mobility-cli/internal/stats"
)

// Peak windows used when trips carry no purpose, inclusive hours.
const (
	morningStart = 6
	morningEnd   = 9
	eveningStart = 17
	eveningEnd   = 20
)

// Commute selection methods.
const (
	CommuteByPurpose = "purpose"
	CommuteByHours   = "peak_hours"
)

// Peak summarizes commute trips in one peak window.
type Peak struct {
	Trips          int     `yaml:"trips_count" cbor:"trips_count"`
	AvgDurationMin float64 `yaml:"avg_duration_min" cbor:"avg_duration_min"`
}

// CommuteStats describes home-work travel.
type CommuteStats struct {
	Method           string  `yaml:"method" cbor:"method"`
	TotalTrips       int     `yaml:"total_commute_trips" cbor:"total_commute_trips"`
	AvgTimeMin       float64 `yaml:"avg_commute_time_min" cbor:"avg_commute_time_min"`
	MedianTimeMin    float64 `yaml:"median_commute_time_min" cbor:"median_commute_time_min"`
	P90TimeMin       float64 `yaml:"p90_commute_time_min" cbor:"p90_commute_time_min"`
	AvgDistanceKm    float64 `yaml:"avg_commute_distance_km" cbor:"avg_commute_distance_km"`
	MedianDistanceKm float64 `yaml:"median_commute_distance_km" cbor:"median_commute_distance_km"`
	P90DistanceKm    float64 `yaml:"p90_commute_distance_km" cbor:"p90_commute_distance_km"`
	MorningPeak      Peak    `yaml:"morning_peak" cbor:"morning_peak"`
	EveningPeak      Peak    `yaml:"evening_peak" cbor:"evening_peak"`
}

func inMorning(h int) bool { return h >= morningStart && h <= morningEnd }
func inEvening(h int) bool { return h >= eveningStart && h <= eveningEnd }

// Commute selects home-work trips by purpose, or by peak-hour windows when no trip
// carries a purpose, and summarizes their durations and distances.
func Commute(trips []model.MobilityTrip) CommuteStats {
	labelled := false
	for _, t := range trips {
		if t.TripPurpose != "" {
			labelled = true
			break
		}
	}

	cs := CommuteStats{Method: CommuteByHours}
	if labelled {
		cs.Method = CommuteByPurpose
	}

	var durations, distances, morning, evening []float64
	for _, t := range trips {
		var keep bool
		if labelled {
			keep = t.TripPurpose == model.PurposeHomeToWork || t.TripPurpose == model.PurposeWorkToHome
		} else {
			keep = inMorning(t.HourOfDay) || inEvening(t.HourOfDay)
		}
		if !keep {
			continue
		}
		d := float64(t.DurationMin)
		durations = append(durations, d)
		distances = append(distances, t.DistanceKm)
		switch {
		case inMorning(t.HourOfDay):
			morning = append(morning, d)
		case inEvening(t.HourOfDay):
			evening = append(evening, d)
		}
	}

	cs.TotalTrips = len(durations)
	if cs.TotalTrips == 0 {
		return cs
	}
	cs.AvgTimeMin = stats.Round(stats.Mean(durations), 1)
	cs.MedianTimeMin = stats.Round(stats.Median(durations), 1)
	cs.P90TimeMin = stats.Round(stats.Quantile(durations, 0.9), 1)
	cs.AvgDistanceKm = stats.Round(stats.Mean(distances), 2)
	cs.MedianDistanceKm = stats.Round(stats.Median(distances), 2)
	cs.P90DistanceKm = stats.Round(stats.Quantile(distances, 0.9), 2)
	cs.MorningPeak = Peak{Trips: len(morning), AvgDurationMin: stats.Round(stats.Mean(morning), 1)}
	cs.EveningPeak = Peak{Trips: len(evening), AvgDurationMin: stats.Round(stats.Mean(evening), 1)}
	return cs
}
