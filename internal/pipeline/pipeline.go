// Package pipeline orchestrates generation, indicator computation and export of one run.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/mobility-cli/internal/config"
	"github.com/sells-group/mobility-cli/internal/dataset"
	"github.com/sells-group/mobility-cli/internal/db"
	"github.com/sells-group/mobility-cli/internal/export"
	"github.com/sells-group/mobility-cli/internal/generate"
	"github.com/sells-group/mobility-cli/internal/geo"
	"github.com/sells-group/mobility-cli/internal/migration"
	"github.com/sells-group/mobility-cli/internal/mobility"
	"github.com/sells-group/mobility-cli/internal/model"
	"github.com/sells-group/mobility-cli/internal/spatial"
	"github.com/sells-group/mobility-cli/internal/store"
	"github.com/sells-group/mobility-cli/internal/wealth"
)

// Phase names recorded in the run registry.
const (
	PhaseGenerate   = "1_generate"
	PhaseIndicators = "2_indicators"
	PhaseExport     = "3_export"
	PhaseSink       = "4_sink"
)

// Pipeline runs the stages of one configuration.
type Pipeline struct {
	cfg     *config.Config
	store   store.Store
	sampler geo.Sampler
	indexer spatial.Indexer
	sink    db.Pool
	now     func() time.Time
}

// New creates a Pipeline. st may be nil, in which case runs are not recorded.
func New(cfg *config.Config, st store.Store, sampler geo.Sampler, indexer spatial.Indexer) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		store:   st,
		sampler: sampler,
		indexer: indexer,
		now:     time.Now,
	}
}

// WithSink copies every generated dataset to PostgreSQL through pool.
func (p *Pipeline) WithSink(pool db.Pool) *Pipeline {
	p.sink = pool
	return p
}

// Generate synthesizes the four datasets.
func (p *Pipeline) Generate(ctx context.Context) (*model.Dataset, error) {
	g, err := generate.New(p.cfg, p.sampler, p.indexer)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: build generator")
	}
	return g.Run(ctx)
}

// Input is what the indicator engines read. A table, when set, replaces the matching
// records of Dataset.
type Input struct {
	Dataset        *model.Dataset
	UsageTable     *dataset.Table
	MigrationTable *dataset.Table
	Hours          *mobility.HourFilter
}

// Indicators runs the wealth, migration and mobility engines concurrently. An engine
// with no input is skipped.
func (p *Pipeline) Indicators(ctx context.Context, in Input) (*export.Indicators, error) {
	ds := in.Dataset
	if ds == nil {
		ds = &model.Dataset{}
	}
	out := &export.Indicators{}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		engine := wealth.NewEngine(p.cfg.Wealth)
		var (
			res *wealth.Result
			err error
		)
		switch {
		case in.UsageTable != nil:
			res, err = engine.ComputeTable(gCtx, in.UsageTable)
		case len(ds.Usage) > 0:
			res, err = engine.Compute(gCtx, ds.Usage)
		default:
			zap.L().Warn("pipeline: no usage records, wealth skipped")
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "pipeline: wealth")
		}
		out.Wealth = res
		return nil
	})

	g.Go(func() error {
		c := migration.NewClassifier(p.cfg.Migration)
		var (
			res *migration.Result
			err error
		)
		if in.MigrationTable != nil {
			res, err = c.Process(gCtx, in.MigrationTable)
		} else {
			res, err = c.ProcessEvents(gCtx, ds.Migration)
		}
		if err != nil {
			return eris.Wrap(err, "pipeline: migration")
		}
		out.Migration = res
		return nil
	})

	g.Go(func() error {
		detail, report, err := mobility.NewEngine(p.cfg.Mobility).Process(gCtx, ds.Mobility, in.Hours)
		if err != nil {
			return eris.Wrap(err, "pipeline: mobility")
		}
		out.Mobility = report
		out.MobilityDetail = detail
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// RunOutput is everything a full run produced.
type RunOutput struct {
	RunID      string
	Version    string
	Dataset    *model.Dataset
	Metadata   *dataset.Metadata
	Indicators *export.Indicators
	Report     *export.Report
	Files      []string
	Phases     []model.PhaseResult
}

// Run generates a dataset, computes the indicators and writes everything under the
// configured output directory, recording each phase in the store.
func (p *Pipeline) Run(ctx context.Context, hours *mobility.HourFilter) (*RunOutput, error) {
	out := &RunOutput{Version: p.NewVersion()}
	log := zap.L().With(zap.String("version", out.Version))
	log.Info("pipeline: starting run", zap.Int("users", p.cfg.Generation.NUsers), zap.Int64("seed", p.cfg.Generation.RandomSeed))

	if p.store != nil {
		run, err := p.store.CreateRun(ctx, p.params())
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		out.RunID = run.ID
		log = log.With(zap.String("run_id", run.ID))
	}

	setStatus := func(status model.RunStatus) {
		if p.store == nil {
			return
		}
		if err := p.store.UpdateRunStatus(ctx, out.RunID, status); err != nil {
			log.Warn("pipeline: failed to update status", zap.Error(err))
		}
	}

	var phasesMu sync.Mutex
	trackPhase := func(name string, fn func() (*model.PhaseResult, error)) error {
		var phase *model.RunPhase
		if p.store != nil {
			var err error
			if phase, err = p.store.CreatePhase(ctx, out.RunID, name); err != nil {
				log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(err))
			}
		}

		start := time.Now()
		pr, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if pr == nil {
			pr = &model.PhaseResult{}
		}
		pr.Name = name
		pr.Duration = duration
		switch {
		case fnErr != nil:
			pr.Status = model.PhaseStatusFailed
			pr.Error = fnErr.Error()
			log.Error("pipeline: phase failed", zap.String("phase", name), zap.Int64("duration_ms", duration), zap.Error(fnErr))
		case pr.Status == "":
			pr.Status = model.PhaseStatusComplete
			log.Info("pipeline: phase complete", zap.String("phase", name), zap.Int64("duration_ms", duration))
		}

		if phase != nil {
			if err := p.store.CompletePhase(ctx, phase.ID, pr); err != nil {
				log.Warn("pipeline: failed to complete phase", zap.String("phase", name), zap.Error(err))
			}
		}
		phasesMu.Lock()
		out.Phases = append(out.Phases, *pr)
		phasesMu.Unlock()
		return fnErr
	}

	fail := func(err error) (*RunOutput, error) {
		if p.store != nil {
			res := &model.RunResult{Version: out.Version, Phases: out.Phases, Error: err.Error()}
			if saveErr := p.store.FailRun(context.WithoutCancel(ctx), out.RunID, res); saveErr != nil {
				log.Warn("pipeline: failed to save run failure", zap.Error(saveErr))
			}
		}
		return out, err
	}

	setStatus(model.RunStatusGenerating)
	if err := trackPhase(PhaseGenerate, func() (*model.PhaseResult, error) {
		ds, err := p.Generate(ctx)
		if err != nil {
			return nil, err
		}
		out.Dataset = ds
		return &model.PhaseResult{Metadata: countsMetadata(ds.Counts())}, nil
	}); err != nil {
		return fail(err)
	}

	setStatus(model.RunStatusComputing)
	if err := trackPhase(PhaseIndicators, func() (*model.PhaseResult, error) {
		ind, err := p.Indicators(ctx, Input{Dataset: out.Dataset, Hours: hours})
		if err != nil {
			return nil, err
		}
		out.Indicators = ind
		return &model.PhaseResult{}, nil
	}); err != nil {
		return fail(err)
	}

	setStatus(model.RunStatusExporting)
	if err := trackPhase(PhaseExport, func() (*model.PhaseResult, error) {
		return p.export(out)
	}); err != nil {
		return fail(err)
	}

	if err := trackPhase(PhaseSink, func() (*model.PhaseResult, error) {
		if p.sink == nil {
			return &model.PhaseResult{Status: model.PhaseStatusSkipped}, nil
		}
		if err := db.EnsureSchema(ctx, p.sink, p.cfg.Output.Schema); err != nil {
			return nil, err
		}
		retry := db.DefaultRetryConfig()
		retry.OnRetry = db.RetryLogger("copy dataset")
		var counts map[string]int64
		if err := db.Retry(ctx, retry, func(ctx context.Context) error {
			var err error
			counts, err = db.CopyDataset(ctx, p.sink, p.cfg.Output.Schema, out.Version, out.Dataset)
			return err
		}); err != nil {
			return nil, err
		}
		md := make(map[string]any, len(counts))
		for k, v := range counts {
			md[k] = v
		}
		return &model.PhaseResult{Metadata: md}, nil
	}); err != nil {
		return fail(err)
	}

	setStatus(model.RunStatusComplete)
	if p.store != nil {
		res := &model.RunResult{
			Version:       out.Version,
			Fingerprint:   out.Metadata.Fingerprint,
			Rows:          out.Dataset.Counts(),
			KeyIndicators: KeyIndicators(out.Report),
			Files:         out.Files,
			Phases:        out.Phases,
		}
		if err := p.store.CompleteRun(ctx, out.RunID, res); err != nil {
			log.Warn("pipeline: failed to save run result", zap.Error(err))
		}
	}

	log.Info("pipeline: run complete", zap.Int("files", len(out.Files)))
	return out, nil
}

// WriteDataset writes ds under the configured output directory as version.
func (p *Pipeline) WriteDataset(version string, ds *model.Dataset) (*dataset.Metadata, error) {
	return export.WriteDataset(p.cfg.Output.Dir, version, ds, export.Options{
		Compression: p.cfg.Output.Compression,
		Seed:        p.cfg.Generation.RandomSeed,
		StartDate:   p.cfg.Generation.StartDate,
		Days:        p.cfg.Generation.Days,
		Sampler:     p.sampler.Source(),
		Indexer:     p.indexer.Name(),
		Now:         p.now,
	})
}

// NewVersion stamps a new dataset version from the pipeline clock.
func (p *Pipeline) NewVersion() string {
	return export.NewVersion(p.now())
}

func (p *Pipeline) export(out *RunOutput) (*model.PhaseResult, error) {
	dir := p.cfg.Output.Dir
	meta, err := p.WriteDataset(out.Version, out.Dataset)
	if err != nil {
		return nil, err
	}
	out.Metadata = meta
	for _, table := range dataset.Tables {
		out.Files = append(out.Files, meta.Datasets[table].File)
	}

	out.Report = export.BuildReport(out.Version, meta, Summary(out.Dataset), out.Indicators, p.now())
	files, err := export.WriteIndicators(dir, out.Version, out.Report, out.Indicators, export.IndicatorOptions{Workbook: p.cfg.Output.Workbook})
	if err != nil {
		return nil, err
	}
	out.Files = append(out.Files, files...)
	return &model.PhaseResult{Metadata: map[string]any{"files": len(out.Files), "fingerprint": meta.Fingerprint}}, nil
}

func (p *Pipeline) params() model.RunParams {
	return model.RunParams{
		Seed:      p.cfg.Generation.RandomSeed,
		NUsers:    p.cfg.Generation.NUsers,
		Days:      p.cfg.Generation.Days,
		StartDate: p.cfg.Generation.StartDate,
		Method:    p.cfg.Wealth.Method,
		OutputDir: p.cfg.Output.Dir,
	}
}

// Summary counts the records of ds.
func Summary(ds *model.Dataset) export.DataSummary {
	if ds == nil {
		return export.DataSummary{}
	}
	return export.DataSummary{
		Users:           len(ds.Users),
		UsageRecords:    len(ds.Usage),
		MigrationEvents: len(ds.Migration),
		MobilityTrips:   len(ds.Mobility),
	}
}

// KeyIndicators flattens the headline indicators of a report.
func KeyIndicators(r *export.Report) map[string]float64 {
	if r == nil {
		return nil
	}
	out := make(map[string]float64)
	if k := r.KeyIndicators.Poverty; k != nil {
		out["poverty_rate"] = k.PovertyRate
		out["gini_coefficient"] = k.GiniCoefficient
		out["mean_wealth_index"] = k.MeanWealthIndex
		out["mpi_rate"] = k.MPIRate
	}
	if k := r.KeyIndicators.Migration; k != nil {
		out["total_migrations"] = float64(k.TotalMigrations)
		out["significant_migrations"] = float64(k.SignificantMigrations)
		out["mean_distance_km"] = k.MeanDistanceKm
	}
	if k := r.KeyIndicators.Mobility; k != nil {
		out["total_trips"] = float64(k.TotalTrips)
		out["avg_trip_distance_km"] = k.AvgTripDistanceKm
		out["avg_trip_duration_min"] = k.AvgTripDurationMin
		out["sdg_11_2_1"] = k.SDG1121
		out["total_co2_kg"] = k.TotalCO2Kg
	}
	return out
}

func countsMetadata(counts map[string]int) map[string]any {
	md := make(map[string]any, len(counts))
	for k, v := range counts {
		md[k] = v
	}
	return md
}
