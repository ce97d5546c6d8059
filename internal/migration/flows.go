package migration

import (
	"math"
	"sort"
	"strconv"

	"github.com/sells-group/mobility-cli/internal/stats"
)

// Flow aggregates the migrations between one origin and destination.
type Flow struct {
	Origin          string  `csv:"origin" yaml:"origin" cbor:"origin"`
	Destination     string  `csv:"destination" yaml:"destination" cbor:"destination"`
	Count           int     `csv:"migration_count" yaml:"migration_count" cbor:"migration_count"`
	AvgDistanceKm   float64 `csv:"avg_distance_km" yaml:"avg_distance_km" cbor:"avg_distance_km"`
	AvgDurationDays float64 `csv:"avg_duration_days" yaml:"avg_duration_days" cbor:"avg_duration_days"`
}

// Flows groups events by origin and destination, largest flows first.
func Flows(events []Event) []Flow {
	type acc struct {
		n                  int
		distance, duration float64
	}
	type pair struct{ o, d string }

	groups := make(map[pair]*acc)
	for _, e := range events {
		p := pair{e.Origin, e.Destination}
		a, ok := groups[p]
		if !ok {
			a = &acc{}
			groups[p] = a
		}
		a.n++
		a.distance += e.DistanceKm
		a.duration += e.DurationDays
	}

	flows := make([]Flow, 0, len(groups))
	for p, a := range groups {
		flows = append(flows, Flow{
			Origin:          p.o,
			Destination:     p.d,
			Count:           a.n,
			AvgDistanceKm:   stats.Round(a.distance/float64(a.n), 2),
			AvgDurationDays: stats.Round(a.duration/float64(a.n), 1),
		})
	}
	sort.Slice(flows, func(i, j int) bool {
		if flows[i].Count != flows[j].Count {
			return flows[i].Count > flows[j].Count
		}
		if flows[i].Origin != flows[j].Origin {
			return flows[i].Origin < flows[j].Origin
		}
		return flows[i].Destination < flows[j].Destination
	})
	return flows
}

// ZoneBalance is the inflow, outflow and net migration of one zone.
type ZoneBalance struct {
	Zone string `csv:"zone" yaml:"zone" cbor:"zone"`
	In   int    `csv:"in_migration" yaml:"in_migration" cbor:"in_migration"`
	Out  int    `csv:"out_migration" yaml:"out_migration" cbor:"out_migration"`
	Net  int    `csv:"net_migration" yaml:"net_migration" cbor:"net_migration"`
}

// Zones computes the balance of every zone that appears as an origin or destination,
// sorted by zone name.
func Zones(events []Event) []ZoneBalance {
	in := make(map[string]int)
	out := make(map[string]int)
	for _, e := range events {
		in[e.Destination]++
		out[e.Origin]++
	}

	names := make(map[string]struct{}, len(in)+len(out))
	for z := range in {
		names[z] = struct{}{}
	}
	for z := range out {
		names[z] = struct{}{}
	}

	zones := make([]ZoneBalance, 0, len(names))
	for z := range names {
		zones = append(zones, ZoneBalance{Zone: z, In: in[z], Out: out[z], Net: in[z] - out[z]})
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].Zone < zones[j].Zone })
	return zones
}

// Effectiveness is |total inflow - total outflow| / (total inflow + total outflow), or 0
// when nothing moved.
func Effectiveness(zones []ZoneBalance) float64 {
	var in, out int
	for _, z := range zones {
		in += z.In
		out += z.Out
	}
	if in+out == 0 {
		return 0
	}
	return math.Abs(float64(in-out)) / float64(in+out)
}

// TotalLabel names the margin row and column of an OD matrix.
const TotalLabel = "Total"

// ODMatrix is an origin by destination crosstab with margins.
type ODMatrix struct {
	Origins      []string
	Destinations []string
	Counts       [][]int
	RowTotals    []int
	ColTotals    []int
	Total        int
}

// NewODMatrix crosstabs events by origin and destination. Zones are sorted.
func NewODMatrix(events []Event) *ODMatrix {
	oIdx := make(map[string]int)
	dIdx := make(map[string]int)
	for _, e := range events {
		oIdx[e.Origin] = 0
		dIdx[e.Destination] = 0
	}

	m := &ODMatrix{Origins: sortedKeys(oIdx), Destinations: sortedKeys(dIdx)}
	for i, o := range m.Origins {
		oIdx[o] = i
	}
	for j, d := range m.Destinations {
		dIdx[d] = j
	}

	m.Counts = make([][]int, len(m.Origins))
	for i := range m.Counts {
		m.Counts[i] = make([]int, len(m.Destinations))
	}
	m.RowTotals = make([]int, len(m.Origins))
	m.ColTotals = make([]int, len(m.Destinations))

	for _, e := range events {
		i, j := oIdx[e.Origin], dIdx[e.Destination]
		m.Counts[i][j]++
		m.RowTotals[i]++
		m.ColTotals[j]++
		m.Total++
	}
	return m
}

// Count returns the number of migrations from origin to destination.
func (m *ODMatrix) Count(origin, destination string) int {
	for i, o := range m.Origins {
		if o != origin {
			continue
		}
		for j, d := range m.Destinations {
			if d == destination {
				return m.Counts[i][j]
			}
		}
	}
	return 0
}

// Records renders the matrix with a header row and Total margins, for CSV or sheets.
func (m *ODMatrix) Records() [][]string {
	header := append([]string{"origin"}, m.Destinations...)
	header = append(header, TotalLabel)

	records := [][]string{header}
	for i, o := range m.Origins {
		row := []string{o}
		for _, c := range m.Counts[i] {
			row = append(row, strconv.Itoa(c))
		}
		row = append(row, strconv.Itoa(m.RowTotals[i]))
		records = append(records, row)
	}

	total := []string{TotalLabel}
	for _, c := range m.ColTotals {
		total = append(total, strconv.Itoa(c))
	}
	total = append(total, strconv.Itoa(m.Total))
	return append(records, total)
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
