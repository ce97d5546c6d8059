// Package migration classifies residence changes, either from discrete migration
// events or from raw location traces, and aggregates them into flows and statistics.
package migration

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ErrSchema is returned when a table has neither an origin nor a destination column.
var ErrSchema = eris.New("migration: no origin or destination column")

// Canonical fields resolved by the schema adapter.
const (
	FieldUser              = "user_id"
	FieldOrigin            = "origin"
	FieldDestination       = "destination"
	FieldOriginRegion      = "origin_region"
	FieldDestinationRegion = "destination_region"
	FieldType              = "movement_type"
	FieldDistance          = "distance_km"
	FieldDuration          = "residence_duration_days"
	FieldDate              = "date"
	FieldReturn            = "is_return_migration"
	FieldOriginLat         = "origin_lat"
	FieldOriginLon         = "origin_lon"
	FieldDestinationLat    = "destination_lat"
	FieldDestinationLon    = "destination_lon"
	FieldLat               = "latitude"
	FieldLon               = "longitude"
)

// Schema maps each canonical field to the column names producers use for it, most
// preferred first.
type Schema struct {
	Synonyms map[string][]string
}

// DefaultSchema returns the accepted synonyms for migration and trace tables.
func DefaultSchema() *Schema {
	return &Schema{Synonyms: map[string][]string{
		FieldUser:              {"user_id", "msisdn_hash", "subscriber_id"},
		FieldOrigin:            {"origin_locality", "origin_district", "origin_region", "origin_h3", "origin_cell"},
		FieldDestination:       {"destination_locality", "current_locality", "destination_district", "current_district", "destination_region", "current_region", "destination_h3", "destination_cell"},
		FieldOriginRegion:      {"origin_region", "origin_district"},
		FieldDestinationRegion: {"destination_region", "current_region", "destination_district", "current_district"},
		FieldType:              {"migration_type", "movement_type"},
		FieldDistance:          {"distance_km"},
		FieldDuration:          {"residence_duration_days", "duration_days"},
		FieldDate:              {"detection_date", "timestamp", "migration_date"},
		FieldReturn:            {"is_return_migration"},
		FieldOriginLat:         {"origin_lat"},
		FieldOriginLon:         {"origin_lon"},
		FieldDestinationLat:    {"destination_lat", "current_lat"},
		FieldDestinationLon:    {"destination_lon", "current_lon"},
		FieldLat:               {"latitude", "lat"},
		FieldLon:               {"longitude", "lon", "lng"},
	}}
}

// Mapping binds canonical fields to the columns present in one table.
type Mapping map[string]string

// Has reports whether the canonical field resolved.
func (m Mapping) Has(field string) bool {
	_, ok := m[field]
	return ok
}

// Column returns the source column of a field, or "".
func (m Mapping) Column(field string) string {
	return m[field]
}

// Map resolves every canonical field it can against columns, without judging whether
// the result is usable.
func (s *Schema) Map(columns []string) Mapping {
	present := make(map[string]string, len(columns))
	for _, c := range columns {
		key := strings.ToLower(strings.TrimSpace(c))
		if _, dup := present[key]; !dup {
			present[key] = c
		}
	}

	m := make(Mapping)
	for field, synonyms := range s.Synonyms {
		for _, syn := range synonyms {
			if col, ok := present[syn]; ok {
				m[field] = col
				break
			}
		}
	}
	return m
}

// Resolve maps columns onto the canonical fields. It fails with ErrSchema only when
// neither an origin nor a destination can be found.
func (s *Schema) Resolve(columns []string) (Mapping, error) {
	m := s.Map(columns)
	if !m.Has(FieldOrigin) && !m.Has(FieldDestination) {
		return nil, eris.Wrapf(ErrSchema, "columns %v", columns)
	}
	return m, nil
}

// IsEventTable reports whether the columns already describe discrete migration events:
// an origin and a destination, plus a movement type, a distance, a residence duration
// or coordinates for both endpoints.
func (s *Schema) IsEventTable(columns []string) bool {
	m := s.Map(columns)
	if !m.Has(FieldOrigin) || !m.Has(FieldDestination) {
		return false
	}
	return m.Has(FieldType) || m.Has(FieldDistance) || m.Has(FieldDuration) || m.hasEndpointCoords()
}

func (m Mapping) hasEndpointCoords() bool {
	return m.Has(FieldOriginLat) && m.Has(FieldOriginLon) && m.Has(FieldDestinationLat) && m.Has(FieldDestinationLon)
}
