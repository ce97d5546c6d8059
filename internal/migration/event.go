package migration

import (
	"math"
	"strings"
	"time"

	"github.com/sells-group/mobility-cli/internal/dataset"
	"github.com/sells-group/mobility-cli/internal/model"
	"github.com/sells-group/mobility-cli/internal/spatial"
	"github.com/sells-group/mobility-cli/internal/stats"
)

// Distance bands.
const (
	ClassLocal        = "local"
	ClassRegional     = "regional"
	ClassLongDistance = "long_distance"

	localMaxKm    = 50
	regionalMaxKm = 200
)

// Classes lists the distance bands, shortest first.
var Classes = []string{ClassLocal, ClassRegional, ClassLongDistance}

// unknownZone labels events whose origin or destination cell is empty.
const unknownZone = "Unknown"

// defaultConfidence is assigned when no residence duration is available.
const defaultConfidence = 0.8

// Event is a normalized and classified migration.
type Event struct {
	UserID            string    `csv:"user_id" yaml:"user_id"`
	Date              time.Time `csv:"date" yaml:"date"`
	Origin            string    `csv:"origin" yaml:"origin"`
	Destination       string    `csv:"destination" yaml:"destination"`
	OriginRegion      string    `csv:"origin_region" yaml:"origin_region"`
	DestinationRegion string    `csv:"destination_region" yaml:"destination_region"`
	MovementType      string    `csv:"movement_type" yaml:"movement_type"`
	DistanceKm        float64   `csv:"distance_km" yaml:"distance_km"`
	DurationDays      float64   `csv:"residence_duration_days" yaml:"residence_duration_days"`
	IsReturn          bool      `csv:"is_return_migration" yaml:"is_return_migration"`
	MigrationClass    string    `csv:"migration_class" yaml:"migration_class"`
	Confidence        float64   `csv:"confidence_score" yaml:"confidence_score"`
	IsSignificant     bool      `csv:"is_significant" yaml:"is_significant"`

	hasDuration bool
	hasDate     bool
}

// Classify returns the distance band: local below 50 km, regional from 50 to 200 km,
// long_distance above 200 km.
func Classify(distanceKm float64) string {
	switch {
	case distanceKm < localMaxKm:
		return ClassLocal
	case distanceKm <= regionalMaxKm:
		return ClassRegional
	default:
		return ClassLongDistance
	}
}

// Confidence scores a residence duration against the full-confidence horizon, capped
// at 1 and rounded to two decimals.
func Confidence(durationDays, fullDays float64) float64 {
	if fullDays <= 0 {
		return 1
	}
	return stats.Round(math.Min(1, math.Max(0, durationDays/fullDays)), 2)
}

// IsSignificant reports whether a migration meets both thresholds.
func IsSignificant(distanceKm, durationDays, minKm, minDays float64) bool {
	return distanceKm >= minKm && durationDays >= minDays
}

func fromModel(e model.MigrationEvent) Event {
	return Event{
		UserID:            e.UserID,
		Date:              e.Timestamp,
		Origin:            e.OriginLocality,
		Destination:       e.DestinationLocality,
		OriginRegion:      e.OriginRegion,
		DestinationRegion: e.DestinationRegion,
		MovementType:      e.MovementType,
		DistanceKm:        e.DistanceKm,
		DurationDays:      float64(e.ResidenceDurationDays),
		IsReturn:          e.IsReturnMigration,
		hasDuration:       true,
		hasDate:           !e.Timestamp.IsZero(),
	}
}

// eventsFromTable normalizes a producer-defined event table through m. The distance
// falls back to the haversine of the endpoints when only coordinates are present.
func eventsFromTable(t *dataset.Table, m Mapping) []Event {
	col := m.Column
	coords := m.hasEndpointCoords()

	events := make([]Event, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		e := Event{
			UserID:            t.Value(i, col(FieldUser)),
			Origin:            orUnknown(t.Value(i, col(FieldOrigin))),
			Destination:       orUnknown(t.Value(i, col(FieldDestination))),
			OriginRegion:      t.Value(i, col(FieldOriginRegion)),
			DestinationRegion: t.Value(i, col(FieldDestinationRegion)),
			MovementType:      t.Value(i, col(FieldType)),
		}

		if d, ok := t.Float(i, col(FieldDistance)); ok {
			e.DistanceKm = d
		} else if coords {
			olat, ok1 := t.Float(i, col(FieldOriginLat))
			olon, ok2 := t.Float(i, col(FieldOriginLon))
			dlat, ok3 := t.Float(i, col(FieldDestinationLat))
			dlon, ok4 := t.Float(i, col(FieldDestinationLon))
			if ok1 && ok2 && ok3 && ok4 {
				e.DistanceKm = stats.Round(spatial.Haversine(olat, olon, dlat, dlon), 2)
			}
		}
		if d, ok := t.Float(i, col(FieldDuration)); ok {
			e.DurationDays = d
			e.hasDuration = true
		}
		if b, ok := t.Bool(i, col(FieldReturn)); ok {
			e.IsReturn = b
		}
		if ts, ok := parseTime(t.Value(i, col(FieldDate))); ok {
			e.Date = ts
			e.hasDate = true
		}
		events = append(events, e)
	}
	return events
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTime keeps the offset of the value so local wall-clock hours survive.
func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func orUnknown(s string) string {
	if s == "" {
		return unknownZone
	}
	return s
}
