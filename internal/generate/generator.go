// Package generate synthesizes subscriber profiles and the usage, migration and
// mobility records derived from them.
//
// Every entity draws from its own named substream of a single seeded source, so a run
// is reproducible bit-for-bit and the three event generators can run concurrently.
package generate

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/mobility-cli/internal/config"
	"github.com/sells-group/mobility-cli/internal/geo"
	"github.com/sells-group/mobility-cli/internal/model"
	"github.com/sells-group/mobility-cli/internal/rng"
	"github.com/sells-group/mobility-cli/internal/spatial"
)

// Generator wires the profile and event generators for one configuration.
type Generator struct {
	cfg      *config.Config
	sampler  geo.Sampler
	indexer  spatial.Indexer
	src      *rng.Source
	start    time.Time
	Profiles *ProfileGenerator
	Usage    *UsageGenerator
	Migrate  *MigrationGenerator
	Mobility *MobilityGenerator
}

// New builds a Generator. The sampler and indexer are chosen by the caller once at
// startup.
func New(cfg *config.Config, sampler geo.Sampler, indexer spatial.Indexer) (*Generator, error) {
	start, err := cfg.Generation.Start()
	if err != nil {
		return nil, err
	}
	if sampler == nil || indexer == nil {
		return nil, eris.New("generate: sampler and indexer are required")
	}

	salt := cfg.Privacy.Salt
	if salt == "" {
		if salt, err = RunSalt(); err != nil {
			return nil, err
		}
		zap.L().With(zap.String("component", "generate")).Warn(
			"privacy.salt is not set; subscriber ids use a one-off salt and will differ between runs")
	}
	ids, err := NewIDHasher(salt, start, cfg.Privacy.SaltRotationDays)
	if err != nil {
		return nil, err
	}

	src := rng.New(cfg.Generation.RandomSeed)
	res := cfg.Indexer.Resolution
	every := cfg.Generation.ProgressEvery
	days := cfg.Generation.Days

	return &Generator{
		cfg:     cfg,
		sampler: sampler,
		indexer: indexer,
		src:     src,
		start:   start,
		Profiles: &ProfileGenerator{
			src:        src,
			sampler:    sampler,
			indexer:    indexer,
			resolution: res,
			demo:       cfg.Demographics,
			areas:      geo.NewAreaClassifier(cfg.Demographics.UrbanLocalities, cfg.Demographics.UrbanProbability),
			ids:        ids,
			createdAt:  start,
			progress:   every,
		},
		Usage: &UsageGenerator{
			src:      src,
			econ:     cfg.Economic,
			start:    start,
			days:     days,
			progress: every,
		},
		Migrate: &MigrationGenerator{
			src:        src,
			sampler:    sampler,
			indexer:    indexer,
			resolution: res,
			cfg:        cfg.Migration,
			start:      start,
			days:       days,
		},
		Mobility: &MobilityGenerator{
			src:        src,
			indexer:    indexer,
			resolution: res,
			cfg:        cfg.Mobility,
			start:      start,
			days:       days,
			progress:   every,
		},
	}, nil
}

// Source returns the sampling tier in use.
func (g *Generator) Source() string {
	return g.sampler.Source()
}

// Indexer returns the name of the cell indexer in use.
func (g *Generator) Indexer() string {
	return g.indexer.Name()
}

// Run generates profiles, then the three event datasets concurrently.
func (g *Generator) Run(ctx context.Context) (*model.Dataset, error) {
	log := zap.L().With(zap.String("component", "generate"))
	log.Info("generating dataset",
		zap.Int("n_users", g.cfg.Generation.NUsers),
		zap.Int("days", g.cfg.Generation.Days),
		zap.Int64("seed", g.src.Seed()),
		zap.String("sampler", g.sampler.Source()),
		zap.String("indexer", g.indexer.Name()),
	)

	ds := &model.Dataset{Users: g.Profiles.Generate(g.cfg.Generation.NUsers)}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "generate: profiles")
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		ds.Usage = g.Usage.Generate(ds.Users)
		return gctx.Err()
	})
	eg.Go(func() error {
		events, err := g.Migrate.Generate(ds.Users)
		if err != nil {
			return eris.Wrap(err, "generate: migration")
		}
		ds.Migration = events
		return gctx.Err()
	})
	eg.Go(func() error {
		ds.Mobility = g.Mobility.Generate(ds.Users)
		return gctx.Err()
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	log.Info("dataset generated",
		zap.Int("users", len(ds.Users)),
		zap.Int("usage", len(ds.Usage)),
		zap.Int("migration", len(ds.Migration)),
		zap.Int("mobility", len(ds.Mobility)),
	)
	return ds, nil
}
