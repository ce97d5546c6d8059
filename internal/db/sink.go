package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mobility-cli/internal/model"
)

// DefaultSchema is used when no schema is configured.
const DefaultSchema = "mobility"

const versionColumn = "dataset_version"

// tableDDL holds the column definitions of each table, after the version column.
var tableDDL = map[string]string{
	"users": `
	user_id TEXT NOT NULL,
	age_group TEXT,
	gender TEXT,
	occupation TEXT,
	phone_type TEXT,
	subscription_type TEXT,
	home_lat DOUBLE PRECISION,
	home_lon DOUBLE PRECISION,
	home_cell TEXT,
	locality TEXT,
	department TEXT,
	region TEXT,
	urban_rural TEXT,
	household_size INTEGER,
	initial_wealth_score DOUBLE PRECISION,
	creation_timestamp TIMESTAMPTZ,
	PRIMARY KEY (dataset_version, user_id)`,
	"usage": `
	user_id TEXT NOT NULL,
	timestamp TIMESTAMPTZ,
	week_start TEXT,
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	locality TEXT,
	department TEXT,
	region TEXT,
	urban_rural TEXT,
	antenna_id TEXT,
	call_duration_sec INTEGER,
	data_mb DOUBLE PRECISION,
	recharge_amount_fcfa DOUBLE PRECISION,
	recharge_frequency_weekly INTEGER,
	contact_diversity_score DOUBLE PRECISION,
	mobility_radius_km DOUBLE PRECISION,
	phone_type TEXT,
	subscription_type TEXT`,
	"migration": `
	user_id TEXT NOT NULL,
	timestamp TIMESTAMPTZ,
	origin_locality TEXT,
	origin_department TEXT,
	origin_region TEXT,
	destination_locality TEXT,
	destination_department TEXT,
	destination_region TEXT,
	origin_lat DOUBLE PRECISION,
	origin_lon DOUBLE PRECISION,
	destination_lat DOUBLE PRECISION,
	destination_lon DOUBLE PRECISION,
	origin_cell TEXT,
	destination_cell TEXT,
	residence_duration_days INTEGER,
	movement_type TEXT,
	is_return_migration BOOLEAN,
	previous_locations TEXT,
	distance_km DOUBLE PRECISION`,
	"mobility": `
	user_id TEXT NOT NULL,
	timestamp TIMESTAMPTZ,
	trip_id TEXT,
	origin_lat DOUBLE PRECISION,
	origin_lon DOUBLE PRECISION,
	dest_lat DOUBLE PRECISION,
	dest_lon DOUBLE PRECISION,
	origin_antenna TEXT,
	dest_antenna TEXT,
	origin_cell TEXT,
	dest_cell TEXT,
	duration_min INTEGER,
	distance_km DOUBLE PRECISION,
	speed_kmh DOUBLE PRECISION,
	transport_mode TEXT,
	trip_purpose TEXT,
	hour_of_day INTEGER,
	day_of_week INTEGER,
	locality TEXT,
	department TEXT,
	region TEXT`,
}

// sinkTables lists the tables in load order.
var sinkTables = []string{"users", "usage", "migration", "mobility"}

// EnsureSchema creates the schema and the dataset tables when missing.
func EnsureSchema(ctx context.Context, pool Pool, schema string) error {
	if schema == "" {
		schema = DefaultSchema
	}
	if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
		return eris.Wrapf(err, "db: create schema %s", schema)
	}
	for _, table := range sinkTables {
		sql := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s TEXT NOT NULL,%s\n)",
			pgx.Identifier{schema, table}.Sanitize(), versionColumn, tableDDL[table])
		if _, err := pool.Exec(ctx, sql); err != nil {
			return eris.Wrapf(err, "db: create table %s.%s", schema, table)
		}
	}
	return nil
}

// CopyDataset loads ds into schema under version. Users are upserted on
// (dataset_version, user_id); the event tables are replaced for the version. It returns
// the rows written per table.
func CopyDataset(ctx context.Context, pool Pool, schema, version string, ds *model.Dataset) (map[string]int64, error) {
	if ds == nil {
		return nil, eris.New("db: nil dataset")
	}
	if schema == "" {
		schema = DefaultSchema
	}
	counts := make(map[string]int64, len(sinkTables))

	n, err := BulkUpsert(ctx, pool, UpsertConfig{
		Target:  Target{Schema: schema, Table: "users"},
		Columns: userColumns,
		Keys:    []string{versionColumn, "user_id"},
	}, userRows(version, ds.Users))
	if err != nil {
		return nil, err
	}
	counts["users"] = n

	events := []struct {
		table   string
		columns []string
		rows    [][]any
	}{
		{"usage", usageColumns, usageRows(version, ds.Usage)},
		{"migration", migrationColumns, migrationRows(version, ds.Migration)},
		{"mobility", mobilityColumns, mobilityRows(version, ds.Mobility)},
	}
	for _, ev := range events {
		target := Target{Schema: schema, Table: ev.table}
		del := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", target.Sanitize(), versionColumn)
		if _, err := pool.Exec(ctx, del, version); err != nil {
			return nil, eris.Wrapf(err, "db: clear %s", target)
		}
		n, err := Copy(ctx, pool, target, ev.columns, ev.rows)
		if err != nil {
			return nil, err
		}
		counts[ev.table] = n
	}

	zap.L().Info("dataset copied to postgres",
		zap.String("component", "db.sink"),
		zap.String("schema", schema),
		zap.String("version", version),
		zap.Int64("users", counts["users"]),
		zap.Int64("usage", counts["usage"]),
		zap.Int64("migration", counts["migration"]),
		zap.Int64("mobility", counts["mobility"]),
	)
	return counts, nil
}

var userColumns = []string{
	versionColumn, "user_id", "age_group", "gender", "occupation", "phone_type",
	"subscription_type", "home_lat", "home_lon", "home_cell", "locality", "department",
	"region", "urban_rural", "household_size", "initial_wealth_score", "creation_timestamp",
}

func userRows(version string, users []model.UserProfile) [][]any {
	rows := make([][]any, len(users))
	for i, u := range users {
		rows[i] = []any{
			version, u.UserID, u.AgeGroup, u.Gender, u.Occupation, u.PhoneType,
			u.SubscriptionType, u.HomeLat, u.HomeLon, u.HomeCell, u.Locality, u.Department,
			u.Region, u.UrbanRural, u.HouseholdSize, u.InitialWealthScore, u.CreatedAt,
		}
	}
	return rows
}

var usageColumns = []string{
	versionColumn, "user_id", "timestamp", "week_start", "latitude", "longitude",
	"locality", "department", "region", "urban_rural", "antenna_id", "call_duration_sec",
	"data_mb", "recharge_amount_fcfa", "recharge_frequency_weekly",
	"contact_diversity_score", "mobility_radius_km", "phone_type", "subscription_type",
}

func usageRows(version string, obs []model.UsageObservation) [][]any {
	rows := make([][]any, len(obs))
	for i, o := range obs {
		rows[i] = []any{
			version, o.UserID, o.Timestamp, o.WeekStart, o.Latitude, o.Longitude,
			o.Locality, o.Department, o.Region, o.UrbanRural, o.AntennaID, o.CallDurationSec,
			o.DataMB, o.RechargeAmountFCFA, o.RechargeFrequencyWeekly,
			o.ContactDiversityScore, o.MobilityRadiusKm, o.PhoneType, o.SubscriptionType,
		}
	}
	return rows
}

var migrationColumns = []string{
	versionColumn, "user_id", "timestamp", "origin_locality", "origin_department",
	"origin_region", "destination_locality", "destination_department", "destination_region",
	"origin_lat", "origin_lon", "destination_lat", "destination_lon", "origin_cell",
	"destination_cell", "residence_duration_days", "movement_type", "is_return_migration",
	"previous_locations", "distance_km",
}

func migrationRows(version string, events []model.MigrationEvent) [][]any {
	rows := make([][]any, len(events))
	for i, e := range events {
		rows[i] = []any{
			version, e.UserID, e.Timestamp, e.OriginLocality, e.OriginDepartment,
			e.OriginRegion, e.DestinationLocality, e.DestinationDepartment, e.DestinationRegion,
			e.OriginLat, e.OriginLon, e.DestinationLat, e.DestinationLon, e.OriginCell,
			e.DestinationCell, e.ResidenceDurationDays, e.MovementType, e.IsReturnMigration,
			e.PreviousLocations, e.DistanceKm,
		}
	}
	return rows
}

var mobilityColumns = []string{
	versionColumn, "user_id", "timestamp", "trip_id", "origin_lat", "origin_lon",
	"dest_lat", "dest_lon", "origin_antenna", "dest_antenna", "origin_cell", "dest_cell",
	"duration_min", "distance_km", "speed_kmh", "transport_mode", "trip_purpose",
	"hour_of_day", "day_of_week", "locality", "department", "region",
}

func mobilityRows(version string, trips []model.MobilityTrip) [][]any {
	rows := make([][]any, len(trips))
	for i, t := range trips {
		rows[i] = []any{
			version, t.UserID, t.Timestamp, t.TripID, t.OriginLat, t.OriginLon,
			t.DestLat, t.DestLon, t.OriginAntenna, t.DestAntenna, t.OriginCell, t.DestCell,
			t.DurationMin, t.DistanceKm, t.SpeedKmh, t.TransportMode, t.TripPurpose,
			t.HourOfDay, t.DayOfWeek, t.Locality, t.Department, t.Region,
		}
	}
	return rows
}
