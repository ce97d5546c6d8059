package migration

import (
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mobility-cli/internal/dataset"
	"github.com/sells-group/mobility-cli/internal/model"
	"github.com/sells-group/mobility-cli/internal/spatial"
	"github.com/sells-group/mobility-cli/internal/stats"
)

// Night window used for home detection: 20:00 through 08:59.
const (
	nightStartHour = 20
	nightEndHour   = 8
	homeDecimals   = 3
)

// Trace is one timestamped position of a user.
type Trace struct {
	UserID string
	Time   time.Time
	Lat    float64
	Lon    float64
}

// Home is the inferred residence of a user.
type Home struct {
	UserID       string  `csv:"user_id" yaml:"user_id"`
	Lat          float64 `csv:"home_lat" yaml:"home_lat"`
	Lon          float64 `csv:"home_lon" yaml:"home_lon"`
	Confidence   float64 `csv:"home_confidence" yaml:"home_confidence"`
	Observations int     `csv:"n_observations" yaml:"n_observations"`
}

// Label names the home as its rounded coordinate pair.
func (h Home) Label() string {
	return fmt.Sprintf("%.3f,%.3f", h.Lat, h.Lon)
}

// isNight reads the wall-clock hour in the location the time carries. Untimed traces
// are never night traces.
func isNight(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	h := t.Hour()
	return h >= nightStartHour || h <= nightEndHour
}

type point struct{ lat, lon float64 }

// DetectHomes infers one home per user as the most frequent rounded position among
// night-time traces. Users with no night trace fall back to all of their traces.
// Confidence is the share of the considered traces at the home position. Users are
// returned sorted by id.
func DetectHomes(traces []Trace) []Home {
	byUser := make(map[string][]Trace)
	for _, tr := range traces {
		byUser[tr.UserID] = append(byUser[tr.UserID], tr)
	}

	ids := make([]string, 0, len(byUser))
	for id := range byUser {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	homes := make([]Home, 0, len(ids))
	for _, id := range ids {
		if h, ok := detectHome(id, byUser[id]); ok {
			homes = append(homes, h)
		}
	}
	return homes
}

func detectHome(id string, traces []Trace) (Home, bool) {
	var night []Trace
	for _, tr := range traces {
		if isNight(tr.Time) {
			night = append(night, tr)
		}
	}
	if len(night) == 0 {
		night = traces
	}
	if len(night) == 0 {
		return Home{}, false
	}

	counts := make(map[point]int)
	for _, tr := range night {
		counts[point{stats.Round(tr.Lat, homeDecimals), stats.Round(tr.Lon, homeDecimals)}]++
	}

	var (
		best  point
		count = -1
	)
	for p, c := range counts {
		// Ties go to the southernmost, then westernmost, position.
		if c > count || (c == count && (p.lat < best.lat || (p.lat == best.lat && p.lon < best.lon))) {
			best, count = p, c
		}
	}

	return Home{
		UserID:       id,
		Lat:          best.lat,
		Lon:          best.lon,
		Confidence:   stats.Round(float64(count)/float64(len(night)), 4),
		Observations: len(night),
	}, true
}

// TracesFromTable reads user positions from a producer-defined table.
func TracesFromTable(t *dataset.Table, m Mapping) ([]Trace, error) {
	if !m.Has(FieldUser) || !m.Has(FieldLat) || !m.Has(FieldLon) {
		return nil, eris.New("migration: trace table needs user, latitude and longitude columns")
	}

	traces := make([]Trace, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		lat, okLat := t.Float(i, m.Column(FieldLat))
		lon, okLon := t.Float(i, m.Column(FieldLon))
		id := t.Value(i, m.Column(FieldUser))
		if !okLat || !okLon || id == "" {
			continue
		}
		ts, _ := parseTime(t.Value(i, m.Column(FieldDate)))
		traces = append(traces, Trace{UserID: id, Time: ts, Lat: lat, Lon: lon})
	}
	return traces, nil
}

// TracesFromUsage turns weekly usage observations into positions.
func TracesFromUsage(obs []model.UsageObservation) []Trace {
	out := make([]Trace, len(obs))
	for i, o := range obs {
		out[i] = Trace{UserID: o.UserID, Time: o.Timestamp, Lat: o.Latitude, Lon: o.Longitude}
	}
	return out
}

// DetectFromTraces splits traces into consecutive windows of windowDays, infers a home
// per user and window, and reports a detected_relocation whenever the home moves at
// least minKm between consecutive observed windows. The residence duration is the span
// of windows the user keeps the new home. Traces without a timestamp are ignored.
func DetectFromTraces(traces []Trace, windowDays int, minKm float64) []Event {
	if windowDays <= 0 {
		windowDays = 30
	}

	// Untimed traces cannot be placed in a window.
	timed := make([]Trace, 0, len(traces))
	for _, tr := range traces {
		if !tr.Time.IsZero() {
			timed = append(timed, tr)
		}
	}
	if len(timed) == 0 {
		return nil
	}
	traces = timed

	start := traces[0].Time
	for _, tr := range traces[1:] {
		if tr.Time.Before(start) {
			start = tr.Time
		}
	}
	window := time.Duration(windowDays) * 24 * time.Hour

	type key struct {
		user   string
		window int
	}
	grouped := make(map[key][]Trace)
	windowsByUser := make(map[string][]int)
	for _, tr := range traces {
		w := int(tr.Time.Sub(start) / window)
		k := key{tr.UserID, w}
		if _, seen := grouped[k]; !seen {
			windowsByUser[tr.UserID] = append(windowsByUser[tr.UserID], w)
		}
		grouped[k] = append(grouped[k], tr)
	}

	users := make([]string, 0, len(windowsByUser))
	for id := range windowsByUser {
		users = append(users, id)
	}
	sort.Strings(users)

	var events []Event
	for _, id := range users {
		windows := windowsByUser[id]
		sort.Ints(windows)

		homes := make([]Home, len(windows))
		for i, w := range windows {
			homes[i], _ = detectHome(id, grouped[key{id, w}])
		}

		for i := 1; i < len(homes); i++ {
			prev, cur := homes[i-1], homes[i]
			d := spatial.Haversine(prev.Lat, prev.Lon, cur.Lat, cur.Lon)
			if d < minKm {
				continue
			}

			stay := 1
			for j := i + 1; j < len(homes); j++ {
				if spatial.Haversine(cur.Lat, cur.Lon, homes[j].Lat, homes[j].Lon) >= minKm {
					break
				}
				stay = windows[j] - windows[i] + 1
			}

			events = append(events, Event{
				UserID:       id,
				Date:         start.Add(time.Duration(windows[i]) * window),
				Origin:       prev.Label(),
				Destination:  cur.Label(),
				MovementType: model.MoveRelocation,
				DistanceKm:   stats.Round(d, 2),
				DurationDays: float64(stay * windowDays),
				hasDuration:  true,
				hasDate:      true,
			})
		}
	}
	return events
}
