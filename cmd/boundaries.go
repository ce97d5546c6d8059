package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/mobility-cli/internal/config"
	"github.com/sells-group/mobility-cli/internal/geo"
)

var (
	boundariesPath  string
	boundariesLimit int
)

var boundariesCmd = &cobra.Command{
	Use:   "boundaries",
	Short: "Show the localities homes are sampled from",
	Long:  "Loads the configured boundary file and lists localities by population weight. Without a usable file the urban centers are listed instead.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Flags().Changed("boundaries") {
			cfg.Boundaries.Path = boundariesPath
		}

		sampler, err := geo.NewSampler(cfg)
		if err != nil {
			return err
		}

		if bs, ok := sampler.(*geo.BoundarySampler); ok {
			formatBoundaries(os.Stdout, bs.Boundaries(), boundariesLimit)
			return nil
		}
		formatUrbanCenters(os.Stdout, cfg.UrbanCenters)
		return nil
	},
}

func init() {
	boundariesCmd.Flags().StringVar(&boundariesPath, "boundaries", "", "boundary shapefile or GeoJSON (default from config)")
	boundariesCmd.Flags().IntVar(&boundariesLimit, "limit", 25, "max number of localities to display, 0 for all")
	rootCmd.AddCommand(boundariesCmd)
}

// formatBoundaries writes the heaviest localities first.
func formatBoundaries(out io.Writer, b *geo.Boundaries, limit int) {
	locs := b.Localities()
	weights := b.Weights()
	order := make([]int, len(locs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return weights[order[i]] > weights[order[j]]
	})
	if limit > 0 && limit < len(order) {
		order = order[:limit]
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Localities:\t%d\n\n", b.Len())
	_, _ = fmt.Fprintln(w, "LOCALITY\tDEPARTMENT\tREGION\tWEIGHT\tCENTROID")
	for _, i := range order {
		l := locs[i]
		lat, lon := l.CentroidLatLon()
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%.4f,%.4f\n", l.Name, l.Department, l.Region, weights[i], lat, lon)
	}
	_ = w.Flush()
}

func formatUrbanCenters(out io.Writer, centers []config.UrbanCenter) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CENTER\tWEIGHT\tLAT\tLON")
	for _, c := range centers {
		_, _ = fmt.Fprintf(w, "%s\t%.2f\t%.4f\t%.4f\n", c.Name, c.Weight, c.Lat, c.Lon)
	}
	_ = w.Flush()
}
