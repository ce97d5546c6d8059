package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mobility-cli/internal/dataset"
)

var generateFlags generationFlags

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the synthetic datasets",
	Long:  "Synthesizes user profiles, weekly usage, migration events and daily trips and writes them as one dataset version.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		generateFlags.apply(cmd, cfg)
		p, err := newPipeline(nil)
		if err != nil {
			return err
		}

		ds, err := p.Generate(ctx)
		if err != nil {
			return eris.Wrap(err, "generate")
		}
		meta, err := p.WriteDataset(p.NewVersion(), ds)
		if err != nil {
			return eris.Wrap(err, "write dataset")
		}

		zap.L().Info("dataset written",
			zap.String("dir", cfg.Output.Dir),
			zap.String("version", meta.Version),
			zap.String("fingerprint", meta.Fingerprint),
		)
		formatMetadata(os.Stdout, meta)
		return nil
	},
}

func init() {
	generateFlags.register(generateCmd)
	rootCmd.AddCommand(generateCmd)
}

// formatMetadata writes the version and per-table row counts of meta to w.
func formatMetadata(out io.Writer, meta *dataset.Metadata) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Version:\t%s\n", meta.Version)
	_, _ = fmt.Fprintf(w, "Fingerprint:\t%s\n", meta.Fingerprint)
	_, _ = fmt.Fprintf(w, "Sampler:\t%s\n", meta.Sampler)
	for _, table := range dataset.Tables {
		info, ok := meta.Datasets[table]
		if !ok {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s:\t%d rows\t%s\n", table, info.Rows, info.File)
	}
	_ = w.Flush()
}
