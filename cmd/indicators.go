package main

import (
	"context"
	"errors"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mobility-cli/internal/dataset"
	"github.com/sells-group/mobility-cli/internal/export"
	"github.com/sells-group/mobility-cli/internal/mobility"
	"github.com/sells-group/mobility-cli/internal/model"
	"github.com/sells-group/mobility-cli/internal/pipeline"
)

var (
	indicatorsOut     string
	indicatorsInput   string
	indicatorsUsage   string
	indicatorsHours   string
	indicatorsMethod  string
	indicatorsVersion string
)

var indicatorsCmd = &cobra.Command{
	Use:   "indicators",
	Short: "Compute wealth, migration and mobility indicators",
	Long: "Loads the latest dataset version from the output directory and computes the indicator tables and report. " +
		"--input and --usage read producer tables (CSV or xlsx) with their own column names instead of the generated migration and usage tables.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		if cmd.Flags().Changed("out") {
			cfg.Output.Dir = indicatorsOut
		}
		if cmd.Flags().Changed("method") {
			cfg.Wealth.Method = indicatorsMethod
		}
		hours, err := mobility.ParseHours(indicatorsHours)
		if err != nil {
			return err
		}

		p, err := newPipeline(nil)
		if err != nil {
			return err
		}

		in := pipeline.Input{Hours: hours}
		repo := dataset.NewRepository(cfg.Output.Dir)
		switch err := loadRepository(ctx, repo, indicatorsVersion); {
		case err == nil:
			if in.Dataset, err = repo.Snapshot(); err != nil {
				return err
			}
		case errors.Is(err, dataset.ErrNoDataset) && (indicatorsInput != "" || indicatorsUsage != ""):
			zap.L().Warn("no generated dataset, computing from input tables only", zap.String("dir", cfg.Output.Dir))
			in.Dataset = &model.Dataset{}
		default:
			return eris.Wrap(err, "load dataset")
		}

		if indicatorsInput != "" {
			if in.MigrationTable, err = dataset.ReadTableFile(ctx, indicatorsInput); err != nil {
				return err
			}
		}
		if indicatorsUsage != "" {
			if in.UsageTable, err = dataset.ReadTableFile(ctx, indicatorsUsage); err != nil {
				return err
			}
		}

		ind, err := p.Indicators(ctx, in)
		if err != nil {
			return eris.Wrap(err, "indicators")
		}

		version := repo.Version()
		meta, err := loadedMetadata(repo)
		if err != nil {
			return err
		}
		if version == "" {
			version = p.NewVersion()
		}
		report := export.BuildReport(version, meta, pipeline.Summary(in.Dataset), ind, nowUTC())
		files, err := export.WriteIndicators(cfg.Output.Dir, version, report, ind, export.IndicatorOptions{Workbook: cfg.Output.Workbook})
		if err != nil {
			return eris.Wrap(err, "write indicators")
		}

		formatRunOutput(os.Stdout, &pipeline.RunOutput{Version: version, Metadata: meta, Report: report, Files: files})
		return nil
	},
}

func init() {
	indicatorsCmd.Flags().StringVar(&indicatorsOut, "out", "", "dataset and output directory (default from config)")
	indicatorsCmd.Flags().StringVar(&indicatorsInput, "input", "", "migration table to classify instead of the generated events")
	indicatorsCmd.Flags().StringVar(&indicatorsUsage, "usage", "", "usage table to score instead of the generated observations")
	indicatorsCmd.Flags().StringVar(&indicatorsHours, "hours", "", "restrict the mobility OD matrix to an hour window, e.g. 7-9")
	indicatorsCmd.Flags().StringVar(&indicatorsMethod, "method", "", "wealth index method: pca or simple")
	indicatorsCmd.Flags().StringVar(&indicatorsVersion, "version", "", "dataset version to load (default latest)")
	rootCmd.AddCommand(indicatorsCmd)
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

func loadRepository(ctx context.Context, repo *dataset.Repository, version string) error {
	if version != "" {
		return repo.Load(ctx, version)
	}
	return repo.Reload(ctx)
}

func nowUTC() time.Time { return time.Now().UTC() }

type metadataSource interface {
	Metadata() (*dataset.Metadata, error)
}

// loadedMetadata returns the metadata of the loaded version, or nil when the
// indicators come from input tables only.
func loadedMetadata(src metadataSource) (*dataset.Metadata, error) {
	meta, err := src.Metadata()
	if errors.Is(err, dataset.ErrNoDataset) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "dataset metadata")
	}
	return meta, nil
}
