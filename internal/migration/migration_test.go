package migration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mobility-cli/internal/config"
	"github.com/sells-group/mobility-cli/internal/dataset"
	"github.com/sells-group/mobility-cli/internal/model"
)

func testConfig() config.MigrationConfig {
	return config.MigrationConfig{
		DistanceThresholdKm:   50,
		DurationThresholdDays: 30,
		ConfidenceDays:        90,
		TraceWindowDays:       30,
	}
}

func readTable(t *testing.T, csv string) *dataset.Table {
	t.Helper()
	tbl, err := dataset.ReadTable(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	return tbl
}

func TestClassify(t *testing.T) {
	tests := []struct {
		distance float64
		want     string
	}{
		{0, ClassLocal},
		{49.9, ClassLocal},
		{50.0, ClassRegional},
		{120, ClassRegional},
		{200, ClassRegional},
		{200.1, ClassLongDistance},
		{650, ClassLongDistance},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.distance), "distance %v", tt.distance)
	}
}

func TestConfidenceAndSignificance(t *testing.T) {
	assert.Equal(t, 0.5, Confidence(45, 90))
	assert.Equal(t, 1.0, Confidence(365, 90))
	assert.Equal(t, 0.0, Confidence(-3, 90))
	assert.Equal(t, 0.33, Confidence(30, 90))

	assert.True(t, IsSignificant(50, 30, 50, 30))
	assert.False(t, IsSignificant(49.9, 300, 50, 30))
	assert.False(t, IsSignificant(300, 29, 50, 30))
}

func TestSchema_Resolve(t *testing.T) {
	s := DefaultSchema()

	m, err := s.Resolve([]string{"User_ID", "origin_district", "current_district", "migration_type", "duration_days"})
	require.NoError(t, err)
	assert.Equal(t, "origin_district", m.Column(FieldOrigin))
	assert.Equal(t, "current_district", m.Column(FieldDestination))
	assert.Equal(t, "current_district", m.Column(FieldDestinationRegion))
	assert.Equal(t, "migration_type", m.Column(FieldType))
	assert.Equal(t, "duration_days", m.Column(FieldDuration))
	assert.Equal(t, "User_ID", m.Column(FieldUser))
	assert.False(t, m.Has(FieldDistance))

	m, err = s.Resolve([]string{"origin_locality", "origin_region", "destination_locality"})
	require.NoError(t, err)
	assert.Equal(t, "origin_locality", m.Column(FieldOrigin))
	assert.Equal(t, "origin_region", m.Column(FieldOriginRegion))

	_, err = s.Resolve([]string{"user_id", "distance_km"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))
}

func TestSchema_IsEventTable(t *testing.T) {
	s := DefaultSchema()
	tests := []struct {
		name    string
		columns []string
		want    bool
	}{
		{"type", []string{"origin_region", "current_region", "movement_type"}, true},
		{"distance", []string{"origin_h3", "destination_h3", "distance_km"}, true},
		{"duration", []string{"origin_locality", "current_locality", "residence_duration_days"}, true},
		{"endpoint coordinates", []string{"origin_locality", "current_locality", "origin_lat", "origin_lon", "current_lat", "current_lon"}, true},
		{"origin coordinates only", []string{"origin_locality", "current_locality", "origin_lat", "origin_lon"}, false},
		{"no type or distance", []string{"origin_region", "destination_region"}, false},
		{"no destination", []string{"origin_region", "distance_km"}, false},
		{"traces", []string{"user_id", "timestamp", "latitude", "longitude"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.IsEventTable(tt.columns))
		})
	}
}

func TestFlowsZonesEffectiveness(t *testing.T) {
	events := []Event{
		{Origin: "Bouake", Destination: "Abidjan", DistanceKm: 300, DurationDays: 100},
		{Origin: "Bouake", Destination: "Abidjan", DistanceKm: 310, DurationDays: 200},
		{Origin: "Man", Destination: "Abidjan", DistanceKm: 450, DurationDays: 60},
		{Origin: "Abidjan", Destination: "Man", DistanceKm: 450, DurationDays: 30},
	}

	flows := Flows(events)
	require.Len(t, flows, 3)
	assert.Equal(t, Flow{Origin: "Bouake", Destination: "Abidjan", Count: 2, AvgDistanceKm: 305, AvgDurationDays: 150}, flows[0])
	assert.Equal(t, "Abidjan", flows[1].Origin)

	zones := Zones(events)
	assert.Equal(t, []ZoneBalance{
		{Zone: "Abidjan", In: 3, Out: 1, Net: 2},
		{Zone: "Bouake", In: 0, Out: 2, Net: -2},
		{Zone: "Man", In: 1, Out: 1, Net: 0},
	}, zones)

	assert.Equal(t, 0.0, Effectiveness(zones))
	assert.InDelta(t, 0.5, Effectiveness([]ZoneBalance{{In: 3, Out: 1}}), 1e-9)
	assert.Equal(t, 0.0, Effectiveness(nil))
}

func TestODMatrix(t *testing.T) {
	events := []Event{
		{Origin: "B", Destination: "A"},
		{Origin: "B", Destination: "A"},
		{Origin: "A", Destination: "C"},
	}
	od := NewODMatrix(events)

	assert.Equal(t, []string{"A", "B"}, od.Origins)
	assert.Equal(t, []string{"A", "C"}, od.Destinations)
	assert.Equal(t, 2, od.Count("B", "A"))
	assert.Equal(t, 0, od.Count("A", "A"))
	assert.Equal(t, 3, od.Total)
	assert.Equal(t, [][]string{
		{"origin", "A", "C", "Total"},
		{"A", "0", "1", "1"},
		{"B", "2", "0", "2"},
		{"Total", "2", "1", "3"},
	}, od.Records())
}

func TestDetectHomes(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	traces := []Trace{
		{UserID: "u1", Time: day.Add(22 * time.Hour), Lat: 5.3601, Lon: -4.0082},
		{UserID: "u1", Time: day.Add(23 * time.Hour), Lat: 5.3598, Lon: -4.0079},
		{UserID: "u1", Time: day.Add(26 * time.Hour), Lat: 5.3604, Lon: -4.0081},
		{UserID: "u1", Time: day.Add(30 * time.Hour), Lat: 5.4, Lon: -4.1},
		{UserID: "u1", Time: day.Add(12 * time.Hour), Lat: 6.0, Lon: -5.0},
		{UserID: "u2", Time: day.Add(12 * time.Hour), Lat: 7.69, Lon: -5.03},
		{UserID: "u2", Time: day.Add(14 * time.Hour), Lat: 7.69, Lon: -5.03},
	}

	homes := DetectHomes(traces)
	require.Len(t, homes, 2)

	assert.Equal(t, "u1", homes[0].UserID)
	assert.InDelta(t, 5.36, homes[0].Lat, 1e-9)
	assert.InDelta(t, -4.008, homes[0].Lon, 1e-9)
	assert.Equal(t, 4, homes[0].Observations)
	assert.InDelta(t, 0.75, homes[0].Confidence, 1e-9)

	// No night trace: every trace counts.
	assert.Equal(t, "u2", homes[1].UserID)
	assert.Equal(t, 1.0, homes[1].Confidence)
	assert.Equal(t, 2, homes[1].Observations)
	assert.Equal(t, "7.690,-5.030", homes[1].Label())
}

func TestDetectFromTraces(t *testing.T) {
	start := time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)
	var traces []Trace
	for d := 0; d < 90; d++ {
		lat, lon := 7.69, -5.03
		if d >= 30 {
			lat, lon = 5.36, -4.01
		}
		traces = append(traces, Trace{UserID: "mover", Time: start.AddDate(0, 0, d), Lat: lat, Lon: lon})
		traces = append(traces, Trace{UserID: "stayer", Time: start.AddDate(0, 0, d), Lat: 6.82, Lon: -5.28})
	}

	events := DetectFromTraces(traces, 30, 50)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, "mover", e.UserID)
	assert.Equal(t, model.MoveRelocation, e.MovementType)
	assert.Equal(t, "7.690,-5.030", e.Origin)
	assert.Equal(t, "5.360,-4.010", e.Destination)
	assert.Greater(t, e.DistanceKm, 200.0)
	assert.Equal(t, 60.0, e.DurationDays)
	assert.Equal(t, start.AddDate(0, 0, 30), e.Date)

	assert.Nil(t, DetectFromTraces(nil, 30, 50))
}

func TestClassifier_ProcessEvents(t *testing.T) {
	ts := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	events := []model.MigrationEvent{
		{UserID: "a", Timestamp: ts, OriginLocality: "Bouake", OriginRegion: "Gbeke", DestinationLocality: "Abidjan", DestinationRegion: "Abidjan", DistanceKm: 49.9, ResidenceDurationDays: 200, MovementType: model.MoveWork},
		{UserID: "b", Timestamp: ts, OriginLocality: "Man", OriginRegion: "Tonkpi", DestinationLocality: "Abidjan", DestinationRegion: "Abidjan", DistanceKm: 50.0, ResidenceDurationDays: 45, MovementType: model.MoveSeasonal, IsReturnMigration: true},
		{UserID: "c", Timestamp: ts.AddDate(0, 1, 0), OriginLocality: "Abidjan", OriginRegion: "Abidjan", DestinationLocality: "Korhogo", DestinationRegion: "Poro", DistanceKm: 560, ResidenceDurationDays: 10, MovementType: model.MoveTemporary},
	}

	res, err := NewClassifier(testConfig()).ProcessEvents(context.Background(), events)
	require.NoError(t, err)

	require.Len(t, res.Events, 3)
	assert.Equal(t, ClassLocal, res.Events[0].MigrationClass)
	assert.Equal(t, ClassRegional, res.Events[1].MigrationClass)
	assert.Equal(t, ClassLongDistance, res.Events[2].MigrationClass)
	assert.False(t, res.Events[0].IsSignificant)
	assert.True(t, res.Events[1].IsSignificant)
	assert.False(t, res.Events[2].IsSignificant)
	assert.Equal(t, 1.0, res.Events[0].Confidence)
	assert.Equal(t, 0.5, res.Events[1].Confidence)

	r := res.Report
	assert.Equal(t, SourceEvents, r.Source)
	assert.Equal(t, 3, r.TotalMigrations)
	assert.Equal(t, 1, r.SignificantMigrations)
	assert.Equal(t, map[string]int{ClassLocal: 1, ClassRegional: 1, ClassLongDistance: 1}, r.ByClass)
	assert.Equal(t, 1, r.ByType[model.MoveSeasonal])
	assert.InDelta(t, 0.3333, r.ReturnMigrationRate, 1e-9)
	assert.Equal(t, map[string]int{"2024-02": 2, "2024-03": 1}, r.ByMonth)
	assert.Equal(t, 2, r.ByDestinationRegion["Abidjan"])
	assert.InDelta(t, 85.0, r.MeanDurationDays, 1e-9)
	assert.InDelta(t, 50.0, r.MedianDistanceKm, 1e-9)
	assert.Equal(t, 2, res.OD.Count("Bouake", "Abidjan")+res.OD.Count("Man", "Abidjan"))
	assert.Len(t, res.Zones, 4)
}

func TestClassifier_ProcessTable(t *testing.T) {
	csv := "user_id,origin_district,current_district,migration_type,origin_lat,origin_lon,current_lat,current_lon,migration_date\n" +
		"a,Bouake,Abidjan,work,7.69,-5.03,5.36,-4.01,2024-03-01\n" +
		"b,,Abidjan,work,6.82,-5.28,5.36,-4.01,\n"

	res, err := NewClassifier(testConfig()).Process(context.Background(), readTable(t, csv))
	require.NoError(t, err)

	require.Len(t, res.Events, 2)
	assert.Greater(t, res.Events[0].DistanceKm, 200.0)
	assert.Equal(t, ClassLongDistance, res.Events[0].MigrationClass)
	assert.Equal(t, unknownZone, res.Events[1].Origin)
	// No duration column: default confidence, never significant.
	assert.Equal(t, defaultConfidence, res.Events[0].Confidence)
	assert.False(t, res.Events[0].IsSignificant)
	assert.Contains(t, res.Report.Omitted, FieldDuration)
	assert.NotContains(t, res.Report.Omitted, FieldType)
	assert.Equal(t, map[string]int{"2024-03": 1}, res.Report.ByMonth)
	assert.Equal(t, 2, res.Report.ByDestinationRegion["Abidjan"])
}

func TestClassifier_ProcessCoordinateTable(t *testing.T) {
	csv := "user_id,origin_locality,current_locality,origin_lat,origin_lon,current_lat,current_lon,residence_duration_days\n" +
		"a,Bouake,Abidjan,7.69,-5.03,5.36,-4.01,120\n" +
		"b,Abidjan,Abidjan,5.36,-4.01,5.37,-4.02,10\n"

	res, err := NewClassifier(testConfig()).Process(context.Background(), readTable(t, csv))
	require.NoError(t, err)

	assert.Equal(t, SourceEvents, res.Report.Source)
	require.Len(t, res.Events, 2)
	assert.Greater(t, res.Events[0].DistanceKm, 200.0)
	assert.Equal(t, ClassLongDistance, res.Events[0].MigrationClass)
	assert.True(t, res.Events[0].IsSignificant)
	assert.Equal(t, ClassLocal, res.Events[1].MigrationClass)
	assert.Contains(t, res.Report.Omitted, FieldType)
	assert.Contains(t, res.Report.Omitted, FieldDistance)
	assert.NotContains(t, res.Report.Omitted, FieldDuration)
}

func TestDetectHomes_LocalWallClock(t *testing.T) {
	csv := "user_id,timestamp,latitude,longitude\n" +
		"u1,2024-01-01T21:00:00+02:00,5,-4\n" +
		"u1,2024-01-02T14:00:00+02:00,6,-5\n" +
		"u1,2024-01-03T14:00:00+02:00,6,-5\n"

	tbl := readTable(t, csv)
	traces, err := TracesFromTable(tbl, DefaultSchema().Map(tbl.Columns))
	require.NoError(t, err)
	require.Len(t, traces, 3)
	assert.Equal(t, 21, traces[0].Time.Hour())

	homes := DetectHomes(traces)
	require.Len(t, homes, 1)
	assert.Equal(t, 5.0, homes[0].Lat)
	assert.Equal(t, -4.0, homes[0].Lon)
	assert.Equal(t, 1, homes[0].Observations)
}

func TestDetectFromTraces_IgnoresUntimed(t *testing.T) {
	start := time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)
	traces := []Trace{
		{UserID: "u1", Lat: 9.5, Lon: -6.5},
		{UserID: "u1", Time: start, Lat: 7.69, Lon: -5.03},
		{UserID: "u1", Time: start.AddDate(0, 0, 35), Lat: 5.36, Lon: -4.01},
	}

	events := DetectFromTraces(traces, 30, 50)
	require.Len(t, events, 1)
	assert.Equal(t, "7.690,-5.030", events[0].Origin)
	assert.Equal(t, start.AddDate(0, 0, 30), events[0].Date)
	assert.False(t, isNight(time.Time{}))

	assert.Nil(t, DetectFromTraces([]Trace{{UserID: "u1", Lat: 1, Lon: 1}}, 30, 50))
}

func TestClassifier_ProcessTraces(t *testing.T) {
	csv := "user_id,timestamp,latitude,longitude\n" +
		"u1,2024-01-01T22:00:00Z,7.69,-5.03\n" +
		"u1,2024-02-15T22:00:00Z,5.36,-4.01\n" +
		"u2,2024-01-01 23:00:00,6.82,-5.28\n"

	res, err := NewClassifier(testConfig()).Process(context.Background(), readTable(t, csv))
	require.NoError(t, err)

	assert.Equal(t, SourceTraces, res.Report.Source)
	assert.Equal(t, 2, res.Report.HomesDetected)
	require.Len(t, res.Events, 1)
	assert.Equal(t, model.MoveRelocation, res.Events[0].MovementType)
	assert.Equal(t, 1, res.Report.ByType[model.MoveRelocation])
}

func TestClassifier_ProcessSchemaErrors(t *testing.T) {
	c := NewClassifier(testConfig())

	_, err := c.Process(context.Background(), readTable(t, "user_id,amount\na,1\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))

	_, err = c.Process(context.Background(), readTable(t, "origin_region,destination_region\nA,B\n"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSchema))
}

func TestClassifier_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClassifier(testConfig()).ProcessEvents(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatistics_Empty(t *testing.T) {
	r := Statistics(nil, testConfig())
	assert.Equal(t, 0, r.TotalMigrations)
	assert.Len(t, r.ByClass, 3)
}
