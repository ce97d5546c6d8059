package mobility

import (
	"sort"

	"github.com/sells-group/mobility-cli/internal/model"
	"github.com/sells-group/mobility-cli/internal/stats"
)

// Mode groups.
var (
	activeModes  = map[string]bool{model.ModeWalking: true, model.ModeBicycle: true}
	publicModes  = map[string]bool{model.ModeBus: true}
	privateModes = map[string]bool{model.ModeTaxi: true, model.ModeMotorbike: true, model.ModePersonalCar: true}
)

// IsPublic reports whether mode is public transport.
func IsPublic(mode string) bool { return publicModes[mode] }

// ModeShare is the share and averages of one transport mode.
type ModeShare struct {
	Mode           string  `csv:"mode" yaml:"mode" cbor:"mode"`
	Count          int     `csv:"count" yaml:"count" cbor:"count"`
	Percentage     float64 `csv:"percentage" yaml:"percentage" cbor:"percentage"`
	AvgDistanceKm  float64 `csv:"avg_distance_km" yaml:"avg_distance_km" cbor:"avg_distance_km"`
	AvgDurationMin float64 `csv:"avg_duration_min" yaml:"avg_duration_min" cbor:"avg_duration_min"`
}

// Split is the modal split with its active/public/private summary, in percent.
type Split struct {
	Modes   []ModeShare `yaml:"modes" cbor:"modes"`
	Active  float64     `yaml:"active_transport" cbor:"active_transport"`
	Public  float64     `yaml:"public_transport" cbor:"public_transport"`
	Private float64     `yaml:"private_transport" cbor:"private_transport"`
}

// ModalSplit computes the share of each observed mode, most used first.
func ModalSplit(trips []model.MobilityTrip) Split {
	var s Split
	if len(trips) == 0 {
		return s
	}

	type acc struct{ distances, durations []float64 }
	byMode := make(map[string]*acc)
	var active, public, private int
	for _, t := range trips {
		a, ok := byMode[t.TransportMode]
		if !ok {
			a = &acc{}
			byMode[t.TransportMode] = a
		}
		a.distances = append(a.distances, t.DistanceKm)
		a.durations = append(a.durations, float64(t.DurationMin))

		switch {
		case activeModes[t.TransportMode]:
			active++
		case publicModes[t.TransportMode]:
			public++
		case privateModes[t.TransportMode]:
			private++
		}
	}

	total := float64(len(trips))
	for mode, a := range byMode {
		s.Modes = append(s.Modes, ModeShare{
			Mode:           mode,
			Count:          len(a.distances),
			Percentage:     stats.Round(float64(len(a.distances))/total*100, 1),
			AvgDistanceKm:  stats.Round(stats.Mean(a.distances), 2),
			AvgDurationMin: stats.Round(stats.Mean(a.durations), 1),
		})
	}
	sort.Slice(s.Modes, func(i, j int) bool {
		if s.Modes[i].Count != s.Modes[j].Count {
			return s.Modes[i].Count > s.Modes[j].Count
		}
		return s.Modes[i].Mode < s.Modes[j].Mode
	})

	s.Active = stats.Round(float64(active)/total*100, 1)
	s.Public = stats.Round(float64(public)/total*100, 1)
	s.Private = stats.Round(float64(private)/total*100, 1)
	return s
}
