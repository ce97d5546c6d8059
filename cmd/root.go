package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mobility-cli/internal/config"
	"github.com/sells-group/mobility-cli/internal/db"
	"github.com/sells-group/mobility-cli/internal/geo"
	"github.com/sells-group/mobility-cli/internal/pipeline"
	"github.com/sells-group/mobility-cli/internal/spatial"
	"github.com/sells-group/mobility-cli/internal/store"
)

var (
	cfg     *config.Config
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "mobility-cli",
	Short: "Synthetic telecom datasets and development indicators",
	Long:  "Generates reproducible synthetic subscriber, usage, migration and mobility datasets and derives wealth, migration and mobility indicators from them.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var (
			c   *config.Config
			err error
		)
		if cfgFile != "" {
			c, err = config.LoadFile(cfgFile)
		} else {
			c, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// initStore opens the run registry.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newPipeline validates the configuration and builds the sampler and indexer it names.
func newPipeline(st store.Store) (*pipeline.Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sampler, err := geo.NewSampler(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "build sampler")
	}
	indexer, err := spatial.Select(cfg.Indexer.Strategy, cfg.Indexer.Resolution)
	if err != nil {
		return nil, eris.Wrap(err, "select indexer")
	}
	return pipeline.New(cfg, st, sampler, indexer), nil
}

// connectSink opens the PostgreSQL sink when a database URL is configured.
func connectSink(ctx context.Context, p *pipeline.Pipeline) (func(), error) {
	if cfg.Output.DatabaseURL == "" {
		return func() {}, nil
	}
	pool, err := db.Connect(ctx, cfg.Output.DatabaseURL)
	if err != nil {
		return nil, err
	}
	p.WithSink(pool)
	return pool.Close, nil
}

// generationFlags are the overrides shared by generate and run.
type generationFlags struct {
	users      int
	days       int
	seed       int64
	out        string
	boundaries string
	method     string
}

func (f *generationFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.users, "users", 0, "number of synthetic users (default from config)")
	cmd.Flags().IntVar(&f.days, "days", 0, "number of days to generate (default from config)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "random seed (default from config)")
	cmd.Flags().StringVar(&f.out, "out", "", "output directory (default from config)")
	cmd.Flags().StringVar(&f.boundaries, "boundaries", "", "boundary shapefile or GeoJSON")
	cmd.Flags().StringVar(&f.method, "method", "", "wealth index method: pca or simple")
}

// apply copies the flags that were set onto c.
func (f *generationFlags) apply(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("users") {
		c.Generation.NUsers = f.users
	}
	if flags.Changed("days") {
		c.Generation.Days = f.days
	}
	if flags.Changed("seed") {
		c.Generation.RandomSeed = f.seed
	}
	if flags.Changed("out") {
		c.Output.Dir = f.out
	}
	if flags.Changed("boundaries") {
		c.Boundaries.Path = f.boundaries
	}
	if flags.Changed("method") {
		c.Wealth.Method = f.method
	}
}
