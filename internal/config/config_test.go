package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Generation.NUsers)
	assert.Equal(t, "2024-01-01", cfg.Generation.StartDate)
	assert.Equal(t, 30, cfg.Generation.Days)
	assert.Equal(t, int64(42), cfg.Generation.RandomSeed)
	assert.InDelta(t, 4.0, cfg.SpatialBounds.MinLat, 0.001)
	assert.InDelta(t, -2.0, cfg.SpatialBounds.MaxLon, 0.001)
	assert.InDelta(t, 4.5, cfg.Elsewhere.MinLat, 0.001)
	assert.Equal(t, "NAME_4", cfg.Boundaries.NameField)
	assert.Equal(t, 100, cfg.Boundaries.MaxAttempts)
	assert.InDelta(t, 0.02, cfg.Boundaries.CentroidSigma, 0.0001)
	require.Len(t, cfg.Boundaries.Weights, 10)
	assert.Equal(t, "Abidjan-Ville", cfg.Boundaries.Weights[0].Name)
	assert.InDelta(t, 0.35, cfg.Boundaries.Weights[0].Weight, 0.0001)
	require.NotEmpty(t, cfg.UrbanCenters)
	assert.Equal(t, "Others", cfg.UrbanCenters[len(cfg.UrbanCenters)-1].Name)
	assert.Len(t, cfg.Demographics.UrbanLocalities, 14)
	assert.Equal(t, []float64{0.05, 0.15, 0.20, 0.25, 0.15, 0.10, 0.07, 0.03}, cfg.Demographics.HouseholdSizeProbs)
	assert.Equal(t, []string{"basic", "feature", "smartphone"}, cfg.Demographics.PhoneType.Values)
	assert.InDelta(t, 0.3, cfg.Demographics.UrbanProbability, 0.0001)
	assert.InDelta(t, 0.4, cfg.Economic.PoorThreshold, 0.0001)
	assert.InDelta(t, 50.0, cfg.Migration.DistanceThresholdKm, 0.0001)
	assert.InDelta(t, 30.0, cfg.Migration.DurationThresholdDays, 0.0001)
	assert.Equal(t, 1000, cfg.Mobility.SampleCap)
	assert.InDelta(t, 40.0, cfg.Mobility.FreeFlowSpeedKmh, 0.0001)
	assert.InDelta(t, 5.0, cfg.Mobility.CongestionCap, 0.0001)
	assert.Equal(t, "antenna", cfg.Mobility.ODLevel)
	assert.Equal(t, "pca", cfg.Wealth.Method)
	assert.InDelta(t, 1.0/3.0, cfg.Wealth.MPICutoff, 1e-9)
	require.Len(t, cfg.Wealth.Dimensions, 3)
	assert.InDelta(t, 20.0, cfg.Wealth.Dimensions[0].Percentile, 0.0001)
	assert.Equal(t, "auto", cfg.Indexer.Strategy)
	assert.Equal(t, 13, cfg.Indexer.Resolution)
	assert.Equal(t, 15, cfg.Privacy.SaltRotationDays)
	assert.Equal(t, "output", cfg.Output.Dir)
	assert.Equal(t, "none", cfg.Output.Compression)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
generation:
  n_users: 100
  days_to_generate: 7
  random_seed: 7
urban_centers:
  - name: Abidjan
    lat: 5.36
    lon: -4.0
    weight: 0.5
  - name: Bouake
    lat: 7.68
    lon: -5.03
    weight: 0.3
  - name: Others
    weight: 0.2
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Generation.NUsers)
	assert.Equal(t, 7, cfg.Generation.Days)
	assert.Equal(t, int64(7), cfg.Generation.RandomSeed)
	require.Len(t, cfg.UrbanCenters, 3)
	assert.Equal(t, "Bouake", cfg.UrbanCenters[1].Name)
	assert.InDelta(t, 0.3, cfg.UrbanCenters[1].Weight, 0.0001)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, "2024-01-01", cfg.Generation.StartDate)
	assert.Equal(t, 1000, cfg.Mobility.SampleCap)
}

func TestLoadFile_Explicit(t *testing.T) {
	chdirTemp(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generation:\n  n_users: 12\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Generation.NUsers)
}

func TestLoadFile_Missing(t *testing.T) {
	chdirTemp(t)

	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("generation:\n  n_users: 50\n"), 0o644))

	t.Setenv("MOBILITY_GENERATION_N_USERS", "75")
	t.Setenv("MOBILITY_WEALTH_METHOD", "simple")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 75, cfg.Generation.NUsers)
	assert.Equal(t, "simple", cfg.Wealth.Method)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("generation: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestGenerationStart(t *testing.T) {
	start, err := GenerationConfig{StartDate: "2024-03-04"}.Start()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), start)

	_, err = GenerationConfig{StartDate: "04/03/2024"}.Start()
	assert.Error(t, err)
}

func TestBoundsContains(t *testing.T) {
	b := BoundsConfig{MinLat: 4, MaxLat: 11, MinLon: -9, MaxLon: -2}
	assert.True(t, b.Contains(5.3, -4.0))
	assert.False(t, b.Contains(12, -4.0))
	assert.False(t, b.Contains(5.3, -1.0))
}

func TestValidate(t *testing.T) {
	chdirTemp(t)

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "non-positive users",
			mutate:  func(c *Config) { c.Generation.NUsers = 0 },
			wantErr: "n_users",
		},
		{
			name:    "probabilities do not sum to one",
			mutate:  func(c *Config) { c.Demographics.Gender.Probabilities = []float64{0.5, 0.4} },
			wantErr: "demographics.gender",
		},
		{
			name:    "length mismatch",
			mutate:  func(c *Config) { c.Demographics.PhoneType.Probabilities = []float64{1} },
			wantErr: "demographics.phone_type",
		},
		{
			name:    "household sizes",
			mutate:  func(c *Config) { c.Demographics.HouseholdSizeProbs = []float64{1} },
			wantErr: "household_size",
		},
		{
			name:    "recharge tables",
			mutate:  func(c *Config) { c.Economic.RechargeProbsRich = []float64{1} },
			wantErr: "economic",
		},
		{
			name:    "empty urban centers",
			mutate:  func(c *Config) { c.UrbanCenters = nil },
			wantErr: "urban_centers",
		},
		{
			name:    "unknown method",
			mutate:  func(c *Config) { c.Wealth.Method = "kmeans" },
			wantErr: "wealth.method",
		},
		{
			name:    "unknown indexer",
			mutate:  func(c *Config) { c.Indexer.Strategy = "h3" },
			wantErr: "indexer.strategy",
		},
		{
			name:    "bad migration probability",
			mutate:  func(c *Config) { c.Migration.Probability = 1.5 },
			wantErr: "migration_probability",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LogConfig
		wantErr bool
	}{
		{name: "json info", cfg: LogConfig{Level: "info", Format: "json"}},
		{name: "console debug", cfg: LogConfig{Level: "debug", Format: "console"}},
		{name: "bad level", cfg: LogConfig{Level: "loud", Format: "json"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := InitLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, zap.L())
		})
	}
}
