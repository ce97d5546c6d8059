package wealth

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mobility-cli/internal/config"
	"github.com/sells-group/mobility-cli/internal/dataset"
	"github.com/sells-group/mobility-cli/internal/model"
	"github.com/sells-group/mobility-cli/internal/stats"
)

// UserResult is the wealth index of one user.
type UserResult struct {
	UserID           string  `csv:"user_id" json:"user_id" yaml:"user_id" cbor:"user_id"`
	Region           string  `csv:"region" json:"region" yaml:"region" cbor:"region"`
	WealthIndex      float64 `csv:"wealth_index" json:"wealth_index" yaml:"wealth_index" cbor:"wealth_index"`
	Quintile         string  `csv:"wealth_quintile" json:"wealth_quintile" yaml:"wealth_quintile" cbor:"wealth_quintile"`
	IsPoor           bool    `csv:"is_poor" json:"is_poor" yaml:"is_poor" cbor:"is_poor"`
	DeprivationScore float64 `csv:"deprivation_score" json:"deprivation_score" yaml:"deprivation_score" cbor:"deprivation_score"`
	IsMPIPoor        bool    `csv:"is_mpi_poor" json:"is_mpi_poor" yaml:"is_mpi_poor" cbor:"is_mpi_poor"`
}

// RegionStats summarizes the index within one region.
type RegionStats struct {
	Region      string  `csv:"region" yaml:"region" cbor:"region"`
	Users       int     `csv:"users" yaml:"users" cbor:"users"`
	Mean        float64 `csv:"mean_wealth_index" yaml:"mean_wealth_index" cbor:"mean_wealth_index"`
	Median      float64 `csv:"median_wealth_index" yaml:"median_wealth_index" cbor:"median_wealth_index"`
	Std         float64 `csv:"std_wealth_index" yaml:"std_wealth_index" cbor:"std_wealth_index"`
	PovertyRate float64 `csv:"poverty_rate" yaml:"poverty_rate" cbor:"poverty_rate"`
}

// Report is the flat wealth indicator report.
type Report struct {
	Method               string             `yaml:"method" cbor:"method"`
	TotalUsers           int                `yaml:"total_users" cbor:"total_users"`
	PovertyRate          float64            `yaml:"poverty_rate" cbor:"poverty_rate"`
	MeanWealthIndex      float64            `yaml:"mean_wealth_index" cbor:"mean_wealth_index"`
	MedianWealthIndex    float64            `yaml:"median_wealth_index" cbor:"median_wealth_index"`
	StdWealthIndex       float64            `yaml:"std_wealth_index" cbor:"std_wealth_index"`
	QuintileDistribution map[string]int     `yaml:"quintile_distribution" cbor:"quintile_distribution"`
	GiniCoefficient      float64            `yaml:"gini_coefficient" cbor:"gini_coefficient"`
	MPIRate              float64            `yaml:"mpi_rate" cbor:"mpi_rate"`
	MPIIntensity         float64            `yaml:"mpi_intensity" cbor:"mpi_intensity"`
	MPIThresholds        map[string]float64 `yaml:"mpi_thresholds,omitempty" cbor:"mpi_thresholds,omitempty"`
	ExplainedVariance    float64            `yaml:"explained_variance,omitempty" cbor:"explained_variance,omitempty"`
	ByRegion             []RegionStats      `yaml:"by_region,omitempty" cbor:"by_region,omitempty"`
	Omitted              []string           `yaml:"omitted,omitempty" cbor:"omitted,omitempty"`
}

// Result bundles the detailed per-user table, the report and the fitted model.
type Result struct {
	Users  []UserResult
	Report Report
	Model  *Model
}

// Engine computes wealth indicators with a fixed configuration.
type Engine struct {
	cfg config.WealthConfig
}

// NewEngine creates an engine.
func NewEngine(cfg config.WealthConfig) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) options() Options {
	return Options{LogFeatures: e.cfg.LogFeatures, EncodeProfile: e.cfg.EncodeProfile}
}

// Compute scores generated usage observations.
func (e *Engine) Compute(ctx context.Context, obs []model.UsageObservation) (*Result, error) {
	return e.compute(ctx, Aggregate(obs, e.options()))
}

// ComputeTable scores a producer-defined usage table.
func (e *Engine) ComputeTable(ctx context.Context, t *dataset.Table) (*Result, error) {
	m, err := AggregateTable(t, e.options())
	if err != nil {
		return nil, err
	}
	return e.compute(ctx, m)
}

func (e *Engine) compute(ctx context.Context, m *Matrix) (*Result, error) {
	log := zap.L().With(zap.String("component", "wealth.engine"))

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "wealth: cancelled")
	}

	fitted, err := Fit(m, e.cfg.Method)
	if err != nil {
		return nil, err
	}
	scores := fitted.Score(m)
	quintiles := AssignQuintiles(m.UserIDs, scores)
	dep := Multidimensional(m, e.cfg.Dimensions, e.cfg.MPICutoff)

	users := make([]UserResult, m.Len())
	for i, id := range m.UserIDs {
		users[i] = UserResult{
			UserID:           id,
			Region:           m.Regions[i],
			WealthIndex:      stats.Round(scores[i], 4),
			Quintile:         quintiles[i],
			IsPoor:           IsPoor(quintiles[i]),
			DeprivationScore: stats.Round(dep.Scores[i], 4),
			IsMPIPoor:        dep.Poor[i],
		}
	}

	report := Statistics(users)
	report.Method = fitted.Method
	report.GiniCoefficient = stats.Round(Gini(scores), 3)
	report.MPIRate = stats.Round(dep.Rate, 4)
	report.MPIIntensity = stats.Round(dep.Intensity, 4)
	report.MPIThresholds = dep.Thresholds
	report.ExplainedVariance = stats.Round(fitted.ExplainedVariance, 4)
	report.Omitted = append(append([]string(nil), m.Omitted...), dep.Omitted...)
	for _, o := range report.Omitted {
		log.Warn("wealth feature omitted", zap.String("feature", o))
	}

	log.Info("wealth index computed",
		zap.String("method", fitted.Method),
		zap.Int("users", report.TotalUsers),
		zap.Float64("poverty_rate", report.PovertyRate),
		zap.Float64("gini", report.GiniCoefficient),
	)

	return &Result{Users: users, Report: report, Model: fitted}, nil
}

// Statistics summarizes per-user results: poverty rate, moments of the index, quintile
// counts and a by-region breakdown. Gini and MPI fields are left for the caller.
func Statistics(users []UserResult) Report {
	r := Report{
		TotalUsers:           len(users),
		QuintileDistribution: make(map[string]int, len(Quintiles)),
	}
	for _, q := range Quintiles {
		r.QuintileDistribution[q] = 0
	}
	if len(users) == 0 {
		return r
	}

	scores := make([]float64, len(users))
	var poor int
	byRegion := make(map[string][]UserResult)
	for i, u := range users {
		scores[i] = u.WealthIndex
		if u.IsPoor {
			poor++
		}
		r.QuintileDistribution[u.Quintile]++
		if u.Region != "" {
			byRegion[u.Region] = append(byRegion[u.Region], u)
		}
	}

	r.PovertyRate = stats.Round(float64(poor)/float64(len(users)), 4)
	r.MeanWealthIndex = stats.Round(stats.Mean(scores), 4)
	r.MedianWealthIndex = stats.Round(stats.Median(scores), 4)
	r.StdWealthIndex = stats.Round(stats.StdDev(scores), 4)

	regions := make([]string, 0, len(byRegion))
	for region := range byRegion {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	for _, region := range regions {
		group := byRegion[region]
		vals := make([]float64, len(group))
		var groupPoor int
		for i, u := range group {
			vals[i] = u.WealthIndex
			if u.IsPoor {
				groupPoor++
			}
		}
		r.ByRegion = append(r.ByRegion, RegionStats{
			Region:      region,
			Users:       len(group),
			Mean:        stats.Round(stats.Mean(vals), 3),
			Median:      stats.Round(stats.Median(vals), 3),
			Std:         stats.Round(stats.StdDev(vals), 3),
			PovertyRate: stats.Round(float64(groupPoor)/float64(len(group)), 3),
		})
	}
	return r
}
