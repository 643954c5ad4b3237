// Command psosearch tunes particle swarm hyperparameters with a parallel grid
// or random search and reports how the search scales with worker count.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	_ "github.com/mattn/go-sqlite3"
	"github.com/samtorrez84/psosearch"
	"github.com/samtorrez84/psosearch/balance"
	"github.com/samtorrez84/psosearch/bench"
	"github.com/samtorrez84/psosearch/config"
	"github.com/samtorrez84/psosearch/record"
	"github.com/samtorrez84/psosearch/report"
	"github.com/samtorrez84/psosearch/search"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	tol        float64
	v          = config.New()
)

var rootCmd = &cobra.Command{
	Use:   "psosearch",
	Short: "Parallel hyperparameter search for particle swarm optimization",
	Long: `psosearch tunes the particle count, inertia and learning factors of a
particle swarm optimizer by grid or random search, spreading the combinations
across workers balanced by their estimated cost.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one search and append the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		res, err := runSearch(cmd.Context(), cfg, cfg.Search.Workers, log)
		if err != nil {
			return err
		}
		printResult(res)
		return save(cfg, res)
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Repeat the search for 1..sweep.max_workers workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		for w := 1; w <= cfg.Sweep.MaxWorkers; w++ {
			for rep := 0; rep < cfg.Sweep.Repeats; rep++ {
				res, err := runSearch(cmd.Context(), cfg, w, log)
				if err != nil {
					return fmt.Errorf("%v workers, repeat %v: %w", w, rep, err)
				}
				log.WithFields(logrus.Fields{
					"workers": w,
					"repeat":  rep,
					"elapsed": res.Elapsed,
					"score":   res.Best.Val,
				}).Info("sweep step finished")
				if err := save(cfg, res); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report [results.csv]",
	Short: "Summarize recorded runs and draw the scaling charts",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		path := cfg.CSVPath()
		if len(args) > 0 {
			path = args[0]
		}
		rows, err := record.ReadCSV(path)
		if err != nil {
			return err
		}
		fn, err := bench.ByName(cfg.Problem)
		if err != nil {
			return err
		}
		return writeReport(rows, fn.Optima()[0].Val, tol, cfg.Output.Plots, log)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}
		return cfg.Write(os.Stdout)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "configuration file (YAML)")
	pf.String("problem", "", "objective function, one of "+fmt.Sprint(bench.Names()))
	pf.String("mode", "", "search mode: grid or random")
	pf.Int("workers", 0, "number of parallel workers")
	pf.Int64("seed", 0, "random seed, 0 for a time based seed")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("csv", "", "results CSV file (default results_<problem>_<mode>.csv)")

	v.BindPFlag("problem", pf.Lookup("problem"))
	v.BindPFlag("search.mode", pf.Lookup("mode"))
	v.BindPFlag("search.workers", pf.Lookup("workers"))
	v.BindPFlag("search.seed", pf.Lookup("seed"))
	v.BindPFlag("log.level", pf.Lookup("log-level"))
	v.BindPFlag("output.csv", pf.Lookup("csv"))

	reportCmd.Flags().Float64Var(&tol, "tol", 1e-6, "score tolerance for counting a run among the best")

	rootCmd.AddCommand(runCmd, sweepCmd, reportCmd, configCmd)
}

func setup() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cfg.Logger(), nil
}

func runSearch(ctx context.Context, cfg *config.Config, workers int, log *logrus.Logger) (search.Result, error) {
	fn, err := bench.ByName(cfg.Problem)
	if err != nil {
		return search.Result{}, err
	}
	cost, err := balance.CostByName(cfg.Search.Cost)
	if err != nil {
		return search.Result{}, err
	}
	newEv, err := cfg.NewEvaler()
	if err != nil {
		return search.Result{}, err
	}

	obj := bench.Objective(fn)
	if log.IsLevelEnabled(logrus.TraceLevel) {
		obj = psosearch.NewObjectiveLogger(obj, log)
	}

	low, up := fn.Bounds()
	s := &search.Search{
		Obj:       obj,
		Lower:     low,
		Upper:     up,
		MaxIter:   cfg.Search.MaxIter,
		Workers:   workers,
		Cost:      cost,
		Seed:      cfg.Search.Seed,
		NewEvaler: newEv,
		Log:       log.WithField("problem", fn.Name()),
	}

	log.WithFields(logrus.Fields{
		"problem": fn.Name(),
		"mode":    cfg.Search.Mode,
		"workers": workers,
	}).Info("starting search")

	if cfg.Search.Mode == config.ModeRandom {
		return s.Random(ctx, cfg.Space, cfg.Search.Samples)
	}
	return s.Grid(ctx, cfg.Space)
}

func printResult(res search.Result) {
	fmt.Printf("Best score:      %v\n", res.Best.Val)
	fmt.Printf("Best parameters: %v\n", res.Best.Combo)
	fmt.Printf("Best solution:   %v\n", res.Best.Pos)
	fmt.Printf("Workers:         %v (%v completed, %v failed combinations)\n", res.Workers, res.Completed, res.Failed)
	fmt.Printf("Elapsed:         %v\n", res.Elapsed)
}

func save(cfg *config.Config, res search.Result) error {
	row := record.FromResult(res)
	if err := record.AppendCSV(cfg.CSVPath(), row); err != nil {
		return err
	}
	if cfg.Output.DB == "" {
		return nil
	}

	db, err := sql.Open("sqlite3", cfg.Output.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := record.NewStore(db, len(row.Pos))
	if err != nil {
		return err
	}
	return store.Insert(cfg.Problem, cfg.Search.Mode, row)
}

func writeReport(rows []record.Row, optimum, tol float64, dir string, log *logrus.Logger) error {
	summary, err := report.Summarize(rows)
	if err != nil && !errors.Is(err, report.ErrNoBaseline) {
		return err
	} else if err != nil {
		log.Warn("no single worker runs recorded, speed-up and efficiency are undefined")
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "workers\truns\tmean (s)\tspeed-up\tefficiency")
	for _, s := range summary {
		fmt.Fprintf(tw, "%v\t%v\t%.3f\t%.3f\t%.3f\n", s.Workers, s.Runs, s.Mean, s.SpeedUp, s.Efficiency)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	params, err := report.BestParams(rows, tol)
	if err != nil {
		return err
	}
	fmt.Printf("\nModal parameters among %v runs scoring within %g of %v:\n", params.N, tol, params.Best)
	for _, t := range params.Tallies() {
		fmt.Printf("  %-10v %v\n", t.Name, t.Mode())
	}

	if dir == "" {
		return nil
	}
	for _, draw := range []func() (string, error){
		func() (string, error) { return report.Plot(summary, dir) },
		func() (string, error) { return report.PlotParams(params, dir) },
		func() (string, error) { return report.PlotScores(rows, optimum, dir) },
	} {
		path, err := draw()
		if err != nil {
			return err
		}
		log.WithField("path", path).Info("chart written")
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
