package mobility

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mobility-cli/internal/model"
	"github.com/sells-group/mobility-cli/internal/stats"
)

// OD aggregation levels.
const (
	LevelAntenna = "antenna"
	LevelCell    = "cell"
)

// HourFilter keeps trips whose hour lies in [Start, End], inclusive.
type HourFilter struct {
	Start int
	End   int
}

// Match reports whether hour is inside the window. A nil filter matches every hour.
func (f *HourFilter) Match(hour int) bool {
	return f == nil || (hour >= f.Start && hour <= f.End)
}

// ParseHours parses "start-end" into a filter. An empty string yields nil.
func ParseHours(s string) (*HourFilter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return nil, eris.Errorf("mobility: hour window %q must look like 7-9", s)
	}
	start, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return nil, eris.Wrapf(err, "mobility: parse hour window %q", s)
	}
	end, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return nil, eris.Wrapf(err, "mobility: parse hour window %q", s)
	}
	if start < 0 || end > 23 || start > end {
		return nil, eris.Errorf("mobility: hour window %q out of range", s)
	}
	return &HourFilter{Start: start, End: end}, nil
}

// ODPair aggregates the trips between one origin and destination.
type ODPair struct {
	Origin          string  `csv:"origin" yaml:"origin" cbor:"origin"`
	Destination     string  `csv:"destination" yaml:"destination" cbor:"destination"`
	Trips           int     `csv:"trips" yaml:"trips" cbor:"trips"`
	AvgDurationMin  float64 `csv:"avg_duration_min" yaml:"avg_duration_min" cbor:"avg_duration_min"`
	StdDurationMin  float64 `csv:"std_duration_min" yaml:"std_duration_min" cbor:"std_duration_min"`
	AvgDistanceKm   float64 `csv:"avg_distance_km" yaml:"avg_distance_km" cbor:"avg_distance_km"`
	TotalDistanceKm float64 `csv:"total_distance_km" yaml:"total_distance_km" cbor:"total_distance_km"`
	AvgSpeedKmh     float64 `csv:"avg_speed_kmh" yaml:"avg_speed_kmh" cbor:"avg_speed_kmh"`
}

func endpoints(t model.MobilityTrip, level string) (string, string) {
	if level == LevelCell {
		return t.OriginCell, t.DestCell
	}
	return t.OriginAntenna, t.DestAntenna
}

// ODMatrix aggregates trips per origin and destination at the given level, busiest
// pairs first.
func ODMatrix(trips []model.MobilityTrip, filter *HourFilter, level string) []ODPair {
	type pair struct{ o, d string }
	type acc struct {
		durations, distances, speeds []float64
	}

	groups := make(map[pair]*acc)
	for _, t := range trips {
		if !filter.Match(t.HourOfDay) {
			continue
		}
		o, d := endpoints(t, level)
		p := pair{o, d}
		a, ok := groups[p]
		if !ok {
			a = &acc{}
			groups[p] = a
		}
		a.durations = append(a.durations, float64(t.DurationMin))
		a.distances = append(a.distances, t.DistanceKm)
		a.speeds = append(a.speeds, t.SpeedKmh)
	}

	out := make([]ODPair, 0, len(groups))
	for p, a := range groups {
		out = append(out, ODPair{
			Origin:          p.o,
			Destination:     p.d,
			Trips:           len(a.durations),
			AvgDurationMin:  stats.Round(stats.Mean(a.durations), 1),
			StdDurationMin:  stats.Round(stats.StdDev(a.durations), 1),
			AvgDistanceKm:   stats.Round(stats.Mean(a.distances), 2),
			TotalDistanceKm: stats.Round(stats.Sum(a.distances), 2),
			AvgSpeedKmh:     stats.Round(stats.Mean(a.speeds), 1),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Trips != out[j].Trips {
			return out[i].Trips > out[j].Trips
		}
		if out[i].Origin != out[j].Origin {
			return out[i].Origin < out[j].Origin
		}
		return out[i].Destination < out[j].Destination
	})
	return out
}
