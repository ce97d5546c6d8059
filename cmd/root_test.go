package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/mobility-cli/internal/config"
	"github.com/sells-group/mobility-cli/internal/dataset"
	"github.com/sells-group/mobility-cli/internal/export"
	"github.com/sells-group/mobility-cli/internal/geo"
	"github.com/sells-group/mobility-cli/internal/model"
	"github.com/sells-group/mobility-cli/internal/pipeline"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"generate", "indicators", "run", "runs", "boundaries"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "mobility-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		flags []string
	}{
		{generateCmd, []string{"users", "days", "seed", "out", "boundaries", "method"}},
		{runCmd, []string{"users", "days", "seed", "out", "boundaries", "method", "hours"}},
		{indicatorsCmd, []string{"out", "input", "usage", "hours", "method", "version"}},
		{runsListCmd, []string{"status", "limit"}},
		{boundariesCmd, []string{"boundaries", "limit"}},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.Name(), func(t *testing.T) {
			for _, name := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(name), "%s should have --%s", tt.cmd.Name(), name)
			}
		})
	}

	assert.Equal(t, "50", runsListCmd.Flags().Lookup("limit").DefValue)
}

func TestGenerationFlags_Apply(t *testing.T) {
	var f generationFlags
	cmd := &cobra.Command{Use: "test"}
	f.register(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--users", "25", "--seed", "9", "--out", "/tmp/data"}))

	c := &config.Config{}
	c.Generation.NUsers = 1000
	c.Generation.Days = 30
	c.Generation.RandomSeed = 42
	c.Wealth.Method = "pca"

	f.apply(cmd, c)

	assert.Equal(t, 25, c.Generation.NUsers)
	assert.Equal(t, int64(9), c.Generation.RandomSeed)
	assert.Equal(t, "/tmp/data", c.Output.Dir)
	// Unset flags leave config values alone.
	assert.Equal(t, 30, c.Generation.Days)
	assert.Equal(t, "pca", c.Wealth.Method)
}

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2024, 2, 1, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Params:    model.RunParams{Seed: 42, NUsers: 1000, Days: 30},
			Status:    model.RunStatusComplete,
			Result:    &model.RunResult{Version: "20240201_103000"},
			CreatedAt: now,
			UpdatedAt: now.Add(2 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Params:    model.RunParams{Seed: 7, NUsers: 50, Days: 7},
			Status:    model.RunStatusFailed,
			CreatedAt: now.Add(-time.Hour),
			UpdatedAt: now.Add(-time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "20240201_103000")
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "2m0s")
	assert.Contains(t, output, "2024-02-01 10:30")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestFormatMetadata(t *testing.T) {
	meta := &dataset.Metadata{
		Version:     "20240201_103000",
		Fingerprint: "deadbeef",
		Sampler:     geo.SourceUrbanCenters,
		Datasets: map[string]dataset.FileInfo{
			dataset.TableUsers:    {File: "users_20240201_103000.csv", Rows: 10},
			dataset.TableMobility: {File: "mobility_20240201_103000.csv", Rows: 120},
		},
	}

	var buf bytes.Buffer
	formatMetadata(&buf, meta)

	output := buf.String()
	assert.Contains(t, output, "deadbeef")
	assert.Contains(t, output, "urban_centers")
	assert.Contains(t, output, "users_20240201_103000.csv")
	assert.Contains(t, output, "120 rows")
	assert.NotContains(t, output, "usage:")
}

func TestFormatRunOutput(t *testing.T) {
	out := &pipeline.RunOutput{
		RunID:   "run-1",
		Version: "20240201_103000",
		Phases: []model.PhaseResult{
			{Name: pipeline.PhaseGenerate, Status: model.PhaseStatusComplete, Duration: 120},
			{Name: pipeline.PhaseSink, Status: model.PhaseStatusSkipped},
		},
		Report: &export.Report{
			KeyIndicators: export.KeyIndicators{
				Mobility: &export.MobilityKeys{TotalTrips: 12, SDG1121: 0.25},
			},
		},
		Files: []string{"users_20240201_103000.csv"},
	}

	var buf bytes.Buffer
	formatRunOutput(&buf, out)

	output := buf.String()
	assert.Contains(t, output, "run-1")
	assert.Contains(t, output, "1_generate")
	assert.Contains(t, output, "skipped")
	assert.Contains(t, output, "sdg_11_2_1")
	assert.Contains(t, output, "users_20240201_103000.csv")
	assert.Less(t, strings.Index(output, "sdg_11_2_1"), strings.Index(output, "total_trips"))
}

func square(lon, lat float64) *geom.MultiPolygon {
	return geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{{{
		{lon, lat}, {lon + 0.1, lat}, {lon + 0.1, lat + 0.1}, {lon, lat + 0.1}, {lon, lat},
	}}})
}

func TestFormatBoundaries(t *testing.T) {
	locs := []*geo.Locality{
		geo.NewLocality("Daloa", "Daloa", "Haut-Sassandra", square(-6.5, 6.8)),
		geo.NewLocality("Abidjan-Ville", "Abidjan", "Lagunes", square(-4.1, 5.3)),
		geo.NewLocality("Man", "Man", "Tonkpi", square(-7.6, 7.4)),
	}
	b, err := geo.NewBoundaries(locs, []config.NamedWeight{{Name: "Abidjan-Ville", Weight: 0.6}})
	require.NoError(t, err)

	var buf bytes.Buffer
	formatBoundaries(&buf, b, 2)

	output := buf.String()
	assert.Contains(t, output, "Localities:")
	assert.Contains(t, output, "Abidjan-Ville")
	assert.Contains(t, output, "0.6000")
	assert.Contains(t, output, "Daloa")
	assert.NotContains(t, output, "Tonkpi")
}

func TestFormatUrbanCenters(t *testing.T) {
	var buf bytes.Buffer
	formatUrbanCenters(&buf, config.DefaultUrbanCenters())
	assert.Contains(t, buf.String(), "Abidjan")
	assert.Contains(t, buf.String(), geo.ElsewhereName)
}

type stubMetadata struct {
	meta *dataset.Metadata
	err  error
}

func (s stubMetadata) Metadata() (*dataset.Metadata, error) { return s.meta, s.err }

func TestLoadedMetadata(t *testing.T) {
	meta := &dataset.Metadata{Version: "20240201_120000"}
	tests := []struct {
		name    string
		src     metadataSource
		want    *dataset.Metadata
		wantErr bool
	}{
		{"loaded", stubMetadata{meta: meta}, meta, false},
		{"nothing loaded", dataset.NewRepository(t.TempDir()), nil, false},
		{"read failure", stubMetadata{err: errors.New("corrupt metadata")}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadedMetadata(tt.src)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "corrupt metadata")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
