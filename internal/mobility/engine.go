// Package mobility derives daily-mobility indicators from trips: origin-destination
// flows, modal split, commuting, congestion, accessibility and carbon footprint.
package mobility

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mobility-cli/internal/config"
	"github.com/sells-group/mobility-cli/internal/model"
	"github.com/sells-group/mobility-cli/internal/stats"
)

// Detail holds the row-oriented mobility tables.
type Detail struct {
	OD               []ODPair
	CongestionByHour []HourCongestion
	CongestionByZone []ZoneCongestion
	DailyPatterns    []HourPattern
}

// Report is the flat mobility indicator report.
type Report struct {
	TotalTrips         int          `yaml:"total_trips" cbor:"total_trips"`
	UniqueUsers        int          `yaml:"unique_users" cbor:"unique_users"`
	TotalDistanceKm    float64      `yaml:"total_distance_km" cbor:"total_distance_km"`
	AvgTripDistanceKm  float64      `yaml:"avg_trip_distance_km" cbor:"avg_trip_distance_km"`
	AvgTripDurationMin float64      `yaml:"avg_trip_duration_min" cbor:"avg_trip_duration_min"`
	AvgCongestion      float64      `yaml:"avg_congestion_index" cbor:"avg_congestion_index"`
	PeakHours          []int        `yaml:"peak_hours" cbor:"peak_hours"`
	ModalSplit         Split        `yaml:"modal_split" cbor:"modal_split"`
	Commute            CommuteStats `yaml:"commute_statistics" cbor:"commute_statistics"`
	Accessibility      Access       `yaml:"accessibility" cbor:"accessibility"`
	Carbon             Carbon       `yaml:"carbon_footprint" cbor:"carbon_footprint"`
}

// Engine computes mobility indicators with a fixed configuration.
type Engine struct {
	cfg config.MobilityConfig
}

// NewEngine creates an engine.
func NewEngine(cfg config.MobilityConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Process computes every table and indicator. The OD matrix honours filter; the other
// indicators use every trip. trips is not modified.
func (e *Engine) Process(ctx context.Context, trips []model.MobilityTrip, filter *HourFilter) (*Detail, *Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "mobility: cancelled")
	}

	hours, zones := Congestion(trips, e.cfg.FreeFlowSpeedKmh, e.cfg.CongestionCap)
	detail := &Detail{
		OD:               ODMatrix(trips, filter, e.cfg.ODLevel),
		CongestionByHour: hours,
		CongestionByZone: zones,
		DailyPatterns:    DailyPatterns(trips, e.cfg.PeakShare),
	}

	users := make(map[string]struct{})
	distances := make([]float64, len(trips))
	durations := make([]float64, len(trips))
	indexes := make([]float64, len(trips))
	for i, t := range trips {
		users[t.UserID] = struct{}{}
		distances[i] = t.DistanceKm
		durations[i] = float64(t.DurationMin)
		indexes[i] = CongestionIndex(durations[i], t.DistanceKm, e.cfg.FreeFlowSpeedKmh, e.cfg.CongestionCap)
	}

	report := &Report{
		TotalTrips:         len(trips),
		UniqueUsers:        len(users),
		TotalDistanceKm:    stats.Round(stats.Sum(distances), 2),
		AvgTripDistanceKm:  stats.Round(stats.Mean(distances), 2),
		AvgTripDurationMin: stats.Round(stats.Mean(durations), 1),
		AvgCongestion:      stats.Round(stats.Mean(indexes), 3),
		ModalSplit:         ModalSplit(trips),
		Commute:            Commute(trips),
		Accessibility:      Accessibility(trips, e.cfg.AccessThresholdMin, e.cfg.ModerateAccessMin),
		Carbon:             CarbonFootprint(trips),
	}
	for _, p := range detail.DailyPatterns {
		if p.IsPeakHour {
			report.PeakHours = append(report.PeakHours, p.Hour)
		}
	}

	zap.L().Info("mobility indicators computed",
		zap.String("component", "mobility.engine"),
		zap.Int("trips", report.TotalTrips),
		zap.Int("users", report.UniqueUsers),
		zap.Int("od_pairs", len(detail.OD)),
	)
	return detail, report, nil
}
