package export

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/mobility-cli/internal/dataset"
	"github.com/sells-group/mobility-cli/internal/migration"
	"github.com/sells-group/mobility-cli/internal/mobility"
	"github.com/sells-group/mobility-cli/internal/wealth"
)

// Indicators bundles the engine outputs of one run. Any part may be nil.
type Indicators struct {
	Wealth         *wealth.Result
	Migration      *migration.Result
	Mobility       *mobility.Report
	MobilityDetail *mobility.Detail
}

// DataSummary counts the input records.
type DataSummary struct {
	Users           int `yaml:"n_users" cbor:"n_users"`
	UsageRecords    int `yaml:"n_usage_records" cbor:"n_usage_records"`
	MigrationEvents int `yaml:"n_migration_events" cbor:"n_migration_events"`
	MobilityTrips   int `yaml:"n_mobility_trips" cbor:"n_mobility_trips"`
}

// PovertyKeys are the headline wealth indicators.
type PovertyKeys struct {
	PovertyRate     float64 `yaml:"poverty_rate" cbor:"poverty_rate"`
	GiniCoefficient float64 `yaml:"gini_coefficient" cbor:"gini_coefficient"`
	MeanWealthIndex float64 `yaml:"mean_wealth_index" cbor:"mean_wealth_index"`
	MPIRate         float64 `yaml:"mpi_rate" cbor:"mpi_rate"`
}

// MigrationKeys are the headline migration indicators.
type MigrationKeys struct {
	TotalMigrations       int     `yaml:"total_migrations" cbor:"total_migrations"`
	SignificantMigrations int     `yaml:"significant_migrations" cbor:"significant_migrations"`
	MeanDistanceKm        float64 `yaml:"mean_distance_km" cbor:"mean_distance_km"`
}

// MobilityKeys are the headline mobility indicators.
type MobilityKeys struct {
	TotalTrips         int     `yaml:"total_trips" cbor:"total_trips"`
	AvgTripDistanceKm  float64 `yaml:"avg_trip_distance_km" cbor:"avg_trip_distance_km"`
	AvgTripDurationMin float64 `yaml:"avg_trip_duration_min" cbor:"avg_trip_duration_min"`
	SDG1121            float64 `yaml:"sdg_11_2_1" cbor:"sdg_11_2_1"`
	TotalCO2Kg         float64 `yaml:"total_co2_kg" cbor:"total_co2_kg"`
}

// KeyIndicators groups the headline indicators per domain.
type KeyIndicators struct {
	Poverty   *PovertyKeys   `yaml:"poverty,omitempty" cbor:"poverty,omitempty"`
	Migration *MigrationKeys `yaml:"migration,omitempty" cbor:"migration,omitempty"`
	Mobility  *MobilityKeys  `yaml:"mobility,omitempty" cbor:"mobility,omitempty"`
}

// ReportMetadata identifies the run a report belongs to.
type ReportMetadata struct {
	Version     string    `yaml:"version" cbor:"version"`
	GeneratedAt time.Time `yaml:"generated_at" cbor:"generated_at"`
	Seed        int64     `yaml:"seed" cbor:"seed"`
	Fingerprint string    `yaml:"fingerprint,omitempty" cbor:"fingerprint,omitempty"`
}

// Report is the summary written alongside the indicator tables.
type Report struct {
	Metadata      ReportMetadata    `yaml:"metadata" cbor:"metadata"`
	DataSummary   DataSummary       `yaml:"data_summary" cbor:"data_summary"`
	KeyIndicators KeyIndicators     `yaml:"key_indicators" cbor:"key_indicators"`
	Wealth        *wealth.Report    `yaml:"poverty,omitempty" cbor:"poverty,omitempty"`
	Migration     *migration.Report `yaml:"migration,omitempty" cbor:"migration,omitempty"`
	Mobility      *mobility.Report  `yaml:"mobility,omitempty" cbor:"mobility,omitempty"`
}

// BuildReport assembles the summary report. meta may be nil when the indicators were
// computed from files without dataset metadata.
func BuildReport(version string, meta *dataset.Metadata, summary DataSummary, ind *Indicators, now time.Time) *Report {
	r := &Report{
		Metadata:    ReportMetadata{Version: version, GeneratedAt: now.UTC()},
		DataSummary: summary,
	}
	if meta != nil {
		r.Metadata.Seed = meta.Seed
		r.Metadata.Fingerprint = meta.Fingerprint
	}
	if ind == nil {
		return r
	}

	if ind.Wealth != nil {
		w := ind.Wealth.Report
		r.Wealth = &w
		r.KeyIndicators.Poverty = &PovertyKeys{
			PovertyRate:     w.PovertyRate,
			GiniCoefficient: w.GiniCoefficient,
			MeanWealthIndex: w.MeanWealthIndex,
			MPIRate:         w.MPIRate,
		}
	}
	if ind.Migration != nil {
		m := ind.Migration.Report
		r.Migration = &m
		r.KeyIndicators.Migration = &MigrationKeys{
			TotalMigrations:       m.TotalMigrations,
			SignificantMigrations: m.SignificantMigrations,
			MeanDistanceKm:        m.MeanDistanceKm,
		}
	}
	if ind.Mobility != nil {
		r.Mobility = ind.Mobility
		r.KeyIndicators.Mobility = &MobilityKeys{
			TotalTrips:         ind.Mobility.TotalTrips,
			AvgTripDistanceKm:  ind.Mobility.AvgTripDistanceKm,
			AvgTripDurationMin: ind.Mobility.AvgTripDurationMin,
			SDG1121:            ind.Mobility.Accessibility.SDG1121,
			TotalCO2Kg:         ind.Mobility.Carbon.TotalCO2Kg,
		}
	}
	return r
}

// IndicatorOptions controls which indicator artifacts are written.
type IndicatorOptions struct {
	Workbook bool
}

// tableFile is an indicator table scheduled for writing.
type tableFile struct {
	name  string
	sheet Sheet
}

func addTable[T any](tables []tableFile, name string, rows []T) ([]tableFile, error) {
	s, err := NewSheet(name, rows)
	if err != nil {
		return nil, err
	}
	return append(tables, tableFile{name: name, sheet: s}), nil
}

// WriteIndicators writes the indicator tables as CSV, optionally the workbook, and the
// report as YAML and CBOR. It returns the written file names.
func WriteIndicators(dir, version string, report *Report, ind *Indicators, opts IndicatorOptions) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: create %s", dir)
	}

	tables, err := indicatorTables(ind)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, t := range tables {
		name := t.name + "_" + version + ".csv"
		if err := writeRecords(filepath.Join(dir, name), t.sheet.Records); err != nil {
			return nil, err
		}
		files = append(files, name)
	}

	if opts.Workbook && len(tables) > 0 {
		sheets := make([]Sheet, len(tables))
		for i, t := range tables {
			sheets[i] = t.sheet
		}
		name := "indicators_" + version + ".xlsx"
		if err := WriteWorkbook(filepath.Join(dir, name), sheets); err != nil {
			return nil, err
		}
		files = append(files, name)
	}

	if report != nil {
		names, err := writeReport(dir, version, report)
		if err != nil {
			return nil, err
		}
		files = append(files, names...)
	}

	zap.L().Info("indicators written",
		zap.String("component", "export.indicators"),
		zap.String("dir", dir),
		zap.String("version", version),
		zap.Int("files", len(files)),
	)
	return files, nil
}

func indicatorTables(ind *Indicators) ([]tableFile, error) {
	if ind == nil {
		return nil, nil
	}
	var (
		tables []tableFile
		err    error
	)
	if ind.Wealth != nil {
		if tables, err = addTable(tables, "wealth_index", ind.Wealth.Users); err != nil {
			return nil, err
		}
		if tables, err = addTable(tables, "wealth_by_region", ind.Wealth.Report.ByRegion); err != nil {
			return nil, err
		}
	}
	if m := ind.Migration; m != nil {
		if tables, err = addTable(tables, "migration_classified", m.Events); err != nil {
			return nil, err
		}
		if tables, err = addTable(tables, "migration_flows", m.Flows); err != nil {
			return nil, err
		}
		if tables, err = addTable(tables, "migration_zones", m.Zones); err != nil {
			return nil, err
		}
		if len(m.Homes) > 0 {
			if tables, err = addTable(tables, "migration_homes", m.Homes); err != nil {
				return nil, err
			}
		}
		if m.OD != nil {
			tables = append(tables, tableFile{
				name:  "migration_od",
				sheet: Sheet{Name: "migration_od", Records: m.OD.Records()},
			})
		}
	}
	if d := ind.MobilityDetail; d != nil {
		if tables, err = addTable(tables, "mobility_od", d.OD); err != nil {
			return nil, err
		}
		if tables, err = addTable(tables, "congestion_by_hour", d.CongestionByHour); err != nil {
			return nil, err
		}
		if tables, err = addTable(tables, "congestion_by_zone", d.CongestionByZone); err != nil {
			return nil, err
		}
		if tables, err = addTable(tables, "daily_patterns", d.DailyPatterns); err != nil {
			return nil, err
		}
	}
	if r := ind.Mobility; r != nil {
		if tables, err = addTable(tables, "modal_split", r.ModalSplit.Modes); err != nil {
			return nil, err
		}
		if tables, err = addTable(tables, "carbon_by_mode", r.Carbon.ByMode); err != nil {
			return nil, err
		}
	}
	return tables, nil
}

func writeRecords(path string, records [][]string) error {
	w, err := dataset.Create(path)
	if err != nil {
		return err
	}
	if err := dataset.WriteRecords(w, records); err != nil {
		_ = w.Close()
		return eris.Wrapf(err, "export: write %s", path)
	}
	if err := w.Close(); err != nil {
		return eris.Wrapf(err, "export: close %s", path)
	}
	return nil
}

func writeReport(dir, version string, r *Report) ([]string, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, eris.Wrap(err, "export: marshal report")
	}
	yml := "report_" + version + ".yml"
	if err := os.WriteFile(filepath.Join(dir, yml), data, 0o644); err != nil {
		return nil, eris.Wrap(err, "export: write report")
	}

	bin, err := MarshalCBOR(r)
	if err != nil {
		return nil, err
	}
	cb := "report_" + version + ".cbor"
	if err := os.WriteFile(filepath.Join(dir, cb), bin, 0o644); err != nil {
		return nil, eris.Wrap(err, "export: write report cbor")
	}
	return []string{yml, cb}, nil
}

// ReadReport decodes a CBOR report.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: read %s", path)
	}
	var r Report
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrapf(err, "export: decode %s", path)
	}
	return &r, nil
}
