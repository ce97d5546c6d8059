package migration

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mobility-cli/internal/config"
	"github.com/sells-group/mobility-cli/internal/dataset"
	"github.com/sells-group/mobility-cli/internal/model"
	"github.com/sells-group/mobility-cli/internal/stats"
)

// Input kinds recognized by Process.
const (
	SourceEvents = "events"
	SourceTraces = "traces"
)

// Report is the flat migration indicator report.
type Report struct {
	Source                string         `yaml:"source" cbor:"source"`
	TotalMigrations       int            `yaml:"total_migrations" cbor:"total_migrations"`
	SignificantMigrations int            `yaml:"significant_migrations" cbor:"significant_migrations"`
	MeanDistanceKm        float64        `yaml:"mean_distance_km" cbor:"mean_distance_km"`
	MedianDistanceKm      float64        `yaml:"median_distance_km" cbor:"median_distance_km"`
	MeanDurationDays      float64        `yaml:"mean_duration_days" cbor:"mean_duration_days"`
	ByType                map[string]int `yaml:"by_type" cbor:"by_type"`
	ByClass               map[string]int `yaml:"by_class" cbor:"by_class"`
	ReturnMigrationRate   float64        `yaml:"return_migration_rate" cbor:"return_migration_rate"`
	ByOriginRegion        map[string]int `yaml:"by_origin_region,omitempty" cbor:"by_origin_region,omitempty"`
	ByDestinationRegion   map[string]int `yaml:"by_destination_region,omitempty" cbor:"by_destination_region,omitempty"`
	ByMonth               map[string]int `yaml:"by_month,omitempty" cbor:"by_month,omitempty"`
	Effectiveness         float64        `yaml:"migration_effectiveness" cbor:"migration_effectiveness"`
	HomesDetected         int            `yaml:"homes_detected,omitempty" cbor:"homes_detected,omitempty"`
	Omitted               []string       `yaml:"omitted,omitempty" cbor:"omitted,omitempty"`
}

// Result holds the detailed tables and the report.
type Result struct {
	Events []Event
	Flows  []Flow
	Zones  []ZoneBalance
	OD     *ODMatrix
	Homes  []Home
	Report Report
}

// Classifier normalizes, classifies and aggregates migrations.
type Classifier struct {
	cfg    config.MigrationConfig
	schema *Schema
}

// NewClassifier creates a classifier using the default schema.
func NewClassifier(cfg config.MigrationConfig) *Classifier {
	return &Classifier{cfg: cfg, schema: DefaultSchema()}
}

// WithSchema replaces the synonym schema.
func (c *Classifier) WithSchema(s *Schema) *Classifier {
	c.schema = s
	return c
}

// ProcessEvents classifies generated migration events.
func (c *Classifier) ProcessEvents(ctx context.Context, events []model.MigrationEvent) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "migration: cancelled")
	}
	normalized := make([]Event, len(events))
	for i, e := range events {
		normalized[i] = fromModel(e)
	}
	return c.finish(SourceEvents, normalized, nil, nil), nil
}

// ProcessTraces detects relocations from positions.
func (c *Classifier) ProcessTraces(ctx context.Context, traces []Trace) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "migration: cancelled")
	}
	homes := DetectHomes(traces)
	events := DetectFromTraces(traces, c.cfg.TraceWindowDays, c.cfg.DistanceThresholdKm)
	return c.finish(SourceTraces, events, homes, nil), nil
}

// Process inspects the columns of t and either classifies it as discrete events, after
// mapping producer column names onto the canonical schema, or treats it as raw traces.
func (c *Classifier) Process(ctx context.Context, t *dataset.Table) (*Result, error) {
	log := zap.L().With(zap.String("component", "migration.classifier"))

	if c.schema.IsEventTable(t.Columns) {
		m, err := c.schema.Resolve(t.Columns)
		if err != nil {
			return nil, err
		}
		log.Info("classifying migration events", zap.Int("rows", t.Len()), zap.Any("mapping", m))
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "migration: cancelled")
		}

		var omitted []string
		for _, f := range []string{FieldType, FieldDistance, FieldDuration, FieldDate, FieldReturn, FieldOriginRegion, FieldDestinationRegion} {
			if !m.Has(f) {
				omitted = append(omitted, f)
			}
		}
		return c.finish(SourceEvents, eventsFromTable(t, m), nil, omitted), nil
	}

	m := c.schema.Map(t.Columns)
	if !m.Has(FieldLat) || !m.Has(FieldLon) {
		if _, err := c.schema.Resolve(t.Columns); err != nil {
			return nil, err
		}
		return nil, eris.New("migration: table has an origin or destination but no movement attributes or trace coordinates")
	}

	log.Info("detecting migrations from traces", zap.Int("rows", t.Len()))
	traces, err := TracesFromTable(t, m)
	if err != nil {
		return nil, err
	}
	return c.ProcessTraces(ctx, traces)
}

func (c *Classifier) finish(source string, events []Event, homes []Home, omitted []string) *Result {
	for i := range events {
		e := &events[i]
		e.MigrationClass = Classify(e.DistanceKm)
		if e.hasDuration {
			e.Confidence = Confidence(e.DurationDays, c.cfg.ConfidenceDays)
			e.IsSignificant = IsSignificant(e.DistanceKm, e.DurationDays, c.cfg.DistanceThresholdKm, c.cfg.DurationThresholdDays)
		} else {
			e.Confidence = defaultConfidence
		}
	}

	zones := Zones(events)
	report := Statistics(events, c.cfg)
	report.Source = source
	report.Effectiveness = stats.Round(Effectiveness(zones), 4)
	report.HomesDetected = len(homes)
	report.Omitted = omitted

	zap.L().Info("migrations classified",
		zap.String("component", "migration.classifier"),
		zap.String("source", source),
		zap.Int("total", report.TotalMigrations),
		zap.Int("significant", report.SignificantMigrations),
	)

	return &Result{
		Events: events,
		Flows:  Flows(events),
		Zones:  zones,
		OD:     NewODMatrix(events),
		Homes:  homes,
		Report: report,
	}
}

// Statistics aggregates classified events. Events without a duration count as not
// significant.
func Statistics(events []Event, cfg config.MigrationConfig) Report {
	r := Report{
		TotalMigrations: len(events),
		ByType:          make(map[string]int),
		ByClass:         make(map[string]int, len(Classes)),
	}
	for _, class := range Classes {
		r.ByClass[class] = 0
	}
	if len(events) == 0 {
		return r
	}

	distances := make([]float64, 0, len(events))
	var (
		durations []float64
		returns   int
	)
	for _, e := range events {
		distances = append(distances, e.DistanceKm)
		if e.hasDuration {
			durations = append(durations, e.DurationDays)
		}
		if e.IsSignificant {
			r.SignificantMigrations++
		}
		if e.MovementType != "" {
			r.ByType[e.MovementType]++
		}
		r.ByClass[Classify(e.DistanceKm)]++
		if e.IsReturn {
			returns++
		}
		if e.OriginRegion != "" {
			inc(&r.ByOriginRegion, e.OriginRegion)
		}
		if e.DestinationRegion != "" {
			inc(&r.ByDestinationRegion, e.DestinationRegion)
		}
		if e.hasDate {
			inc(&r.ByMonth, e.Date.Format("2006-01"))
		}
	}

	r.MeanDistanceKm = stats.Round(stats.Mean(distances), 2)
	r.MedianDistanceKm = stats.Round(stats.Median(distances), 2)
	r.MeanDurationDays = stats.Round(stats.Mean(durations), 1)
	r.ReturnMigrationRate = stats.Round(float64(returns)/float64(len(events)), 4)
	return r
}

func inc(m *map[string]int, key string) {
	if *m == nil {
		*m = make(map[string]int)
	}
	(*m)[key]++
}
