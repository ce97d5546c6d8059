package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/mobility-cli/internal/mobility"
	"github.com/sells-group/mobility-cli/internal/pipeline"
)

var (
	runFlags generationFlags
	runHours string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate, compute indicators and export in one pass",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		runFlags.apply(cmd, cfg)
		hours, err := mobility.ParseHours(runHours)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := newPipeline(st)
		if err != nil {
			return err
		}
		closeSink, err := connectSink(ctx, p)
		if err != nil {
			return err
		}
		defer closeSink()

		out, err := p.Run(ctx, hours)
		if err != nil {
			return eris.Wrap(err, "run")
		}

		formatRunOutput(os.Stdout, out)
		return nil
	},
}

func init() {
	runFlags.register(runCmd)
	runCmd.Flags().StringVar(&runHours, "hours", "", "restrict the mobility OD matrix to an hour window, e.g. 7-9")
	rootCmd.AddCommand(runCmd)
}

// formatRunOutput writes the phases, headline indicators and files of a run to w.
func formatRunOutput(out io.Writer, r *pipeline.RunOutput) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if r.RunID != "" {
		_, _ = fmt.Fprintf(w, "Run:\t%s\n", r.RunID)
	}
	_, _ = fmt.Fprintf(w, "Version:\t%s\n", r.Version)
	if r.Metadata != nil {
		_, _ = fmt.Fprintf(w, "Fingerprint:\t%s\n", r.Metadata.Fingerprint)
	}
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "PHASE\tSTATUS\tDURATION")
	for _, ph := range r.Phases {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%dms\n", ph.Name, ph.Status, ph.Duration)
	}

	if keys := pipeline.KeyIndicators(r.Report); len(keys) > 0 {
		_, _ = fmt.Fprintln(w, "")
		_, _ = fmt.Fprintln(w, "INDICATOR\tVALUE")
		for _, k := range sortedKeys(keys) {
			_, _ = fmt.Fprintf(w, "%s\t%g\n", k, keys[k])
		}
	}

	_, _ = fmt.Fprintln(w, "")
	for _, f := range r.Files {
		_, _ = fmt.Fprintf(w, "wrote\t%s\n", f)
	}
	_ = w.Flush()
}
