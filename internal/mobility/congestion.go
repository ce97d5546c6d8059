package mobility

import (
	"math"
	"sort"

	"github.com/sells-group/mobility-cli/internal/model"
	"github.com/sells-group/mobility-cli/internal/stats"
)

// minFreeFlowMin floors the free-flow time so very short trips do not explode the index.
const minFreeFlowMin = 1.0

// CongestionIndex is the observed duration over the free-flow duration at
// freeFlowKmh, capped at limit. 1 means free flow.
func CongestionIndex(durationMin, distanceKm, freeFlowKmh, limit float64) float64 {
	freeFlow := minFreeFlowMin
	if freeFlowKmh > 0 {
		freeFlow = math.Max(minFreeFlowMin, distanceKm/freeFlowKmh*60)
	}
	idx := durationMin / freeFlow
	if limit > 0 && idx > limit {
		return limit
	}
	return idx
}

// HourCongestion aggregates the index for one hour of the day.
type HourCongestion struct {
	Hour          int     `csv:"hour_of_day" yaml:"hour_of_day" cbor:"hour_of_day"`
	AvgCongestion float64 `csv:"avg_congestion" yaml:"avg_congestion" cbor:"avg_congestion"`
	StdCongestion float64 `csv:"std_congestion" yaml:"std_congestion" cbor:"std_congestion"`
	AvgSpeedKmh   float64 `csv:"avg_speed_kmh" yaml:"avg_speed_kmh" cbor:"avg_speed_kmh"`
	TripCount     int     `csv:"trip_count" yaml:"trip_count" cbor:"trip_count"`
}

// ZoneCongestion aggregates the index for one zone.
type ZoneCongestion struct {
	Zone          string  `csv:"zone" yaml:"zone" cbor:"zone"`
	AvgCongestion float64 `csv:"avg_congestion" yaml:"avg_congestion" cbor:"avg_congestion"`
	StdCongestion float64 `csv:"std_congestion" yaml:"std_congestion" cbor:"std_congestion"`
	AvgSpeedKmh   float64 `csv:"avg_speed_kmh" yaml:"avg_speed_kmh" cbor:"avg_speed_kmh"`
	TripCount     int     `csv:"trip_count" yaml:"trip_count" cbor:"trip_count"`
}

type congestionAcc struct {
	index, speed []float64
}

// Congestion computes the index per trip and aggregates it by hour and by zone. The
// zone is the trip's locality.
func Congestion(trips []model.MobilityTrip, freeFlowKmh, limit float64) ([]HourCongestion, []ZoneCongestion) {
	byHour := make(map[int]*congestionAcc)
	byZone := make(map[string]*congestionAcc)
	add := func(a *congestionAcc, idx, speed float64) {
		a.index = append(a.index, idx)
		a.speed = append(a.speed, speed)
	}

	for _, t := range trips {
		idx := CongestionIndex(float64(t.DurationMin), t.DistanceKm, freeFlowKmh, limit)
		h, ok := byHour[t.HourOfDay]
		if !ok {
			h = &congestionAcc{}
			byHour[t.HourOfDay] = h
		}
		add(h, idx, t.SpeedKmh)

		zone := t.Locality
		if zone == "" {
			zone = "Unknown"
		}
		z, ok := byZone[zone]
		if !ok {
			z = &congestionAcc{}
			byZone[zone] = z
		}
		add(z, idx, t.SpeedKmh)
	}

	hours := make([]HourCongestion, 0, len(byHour))
	for hour, a := range byHour {
		hours = append(hours, HourCongestion{
			Hour:          hour,
			AvgCongestion: stats.Round(stats.Mean(a.index), 3),
			StdCongestion: stats.Round(stats.StdDev(a.index), 3),
			AvgSpeedKmh:   stats.Round(stats.Mean(a.speed), 1),
			TripCount:     len(a.index),
		})
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Hour < hours[j].Hour })

	zones := make([]ZoneCongestion, 0, len(byZone))
	for zone, a := range byZone {
		zones = append(zones, ZoneCongestion{
			Zone:          zone,
			AvgCongestion: stats.Round(stats.Mean(a.index), 3),
			StdCongestion: stats.Round(stats.StdDev(a.index), 3),
			AvgSpeedKmh:   stats.Round(stats.Mean(a.speed), 1),
			TripCount:     len(a.index),
		})
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].Zone < zones[j].Zone })
	return hours, zones
}

// HourPattern summarizes trips started in one hour of the day.
type HourPattern struct {
	Hour            int     `csv:"hour" yaml:"hour" cbor:"hour"`
	TripCount       int     `csv:"trip_count" yaml:"trip_count" cbor:"trip_count"`
	AvgDistanceKm   float64 `csv:"avg_distance_km" yaml:"avg_distance_km" cbor:"avg_distance_km"`
	TotalDistanceKm float64 `csv:"total_distance_km" yaml:"total_distance_km" cbor:"total_distance_km"`
	AvgDurationMin  float64 `csv:"avg_duration_min" yaml:"avg_duration_min" cbor:"avg_duration_min"`
	AvgSpeedKmh     float64 `csv:"avg_speed_kmh" yaml:"avg_speed_kmh" cbor:"avg_speed_kmh"`
	IsPeakHour      bool    `csv:"is_peak_hour" yaml:"is_peak_hour" cbor:"is_peak_hour"`
}

// DailyPatterns aggregates trips by hour. An hour is a peak when its trip count exceeds
// peakShare of the busiest hour.
func DailyPatterns(trips []model.MobilityTrip, peakShare float64) []HourPattern {
	type acc struct{ distances, durations, speeds []float64 }
	byHour := make(map[int]*acc)
	for _, t := range trips {
		a, ok := byHour[t.HourOfDay]
		if !ok {
			a = &acc{}
			byHour[t.HourOfDay] = a
		}
		a.distances = append(a.distances, t.DistanceKm)
		a.durations = append(a.durations, float64(t.DurationMin))
		a.speeds = append(a.speeds, t.SpeedKmh)
	}

	var maxTrips int
	out := make([]HourPattern, 0, len(byHour))
	for hour, a := range byHour {
		n := len(a.distances)
		if n > maxTrips {
			maxTrips = n
		}
		out = append(out, HourPattern{
			Hour:            hour,
			TripCount:       n,
			AvgDistanceKm:   stats.Round(stats.Mean(a.distances), 2),
			TotalDistanceKm: stats.Round(stats.Sum(a.distances), 2),
			AvgDurationMin:  stats.Round(stats.Mean(a.durations), 1),
			AvgSpeedKmh:     stats.Round(stats.Mean(a.speeds), 1),
		})
	}
	for i := range out {
		out[i].IsPeakHour = float64(out[i].TripCount) > float64(maxTrips)*peakShare
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out
}
