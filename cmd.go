package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/devskill-org/lec-planner/calendar"
	"github.com/devskill-org/lec-planner/lp"
	"github.com/devskill-org/lec-planner/params"
	"github.com/devskill-org/lec-planner/planner"
	"github.com/devskill-org/lec-planner/profiles"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/cheggaaa/pb.v1"
)

// app carries the state shared by every subcommand.
type app struct {
	configFile string
	config     *planner.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "lec-planner",
		Short: "Size and dispatch a local energy community over one year",
		Long: "lec-planner samples a community of electrically heated households, builds an hourly\n" +
			"capacity and dispatch LP with rooftop PV, heat pumps, a shared seasonal thermal storage\n" +
			"and a local electricity market, and solves it for the minimum annual cost.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "config.json", "Configuration file path (.json, .yaml or .yml)")

	rootCmd.AddCommand(a.solveCmd())
	rootCmd.AddCommand(a.exportLPCmd())
	rootCmd.AddCommand(a.tariffsCmd())
	rootCmd.AddCommand(a.futurePricesCmd())
	rootCmd.AddCommand(a.fetchPricesCmd())
	rootCmd.AddCommand(a.stesCostCmd())
	rootCmd.AddCommand(a.serveCmd())
	rootCmd.AddCommand(a.initConfigCmd())
	return rootCmd
}

// load reads the configuration and builds the logger. A missing file falls
// back to the defaults so the data-free commands work without one.
func (a *app) load() error {
	config := planner.DefaultConfig()
	if _, err := os.Stat(a.configFile); err == nil {
		if config, err = planner.LoadConfig(a.configFile); err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
	}
	logger, err := planner.NewLogger(config.LogLevel, config.LogFormat)
	if err != nil {
		return err
	}
	a.config = config
	a.logger = logger
	return nil
}

func (a *app) newPlanner(ctx context.Context, opts ...planner.Option) (*planner.Planner, error) {
	if err := a.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	inputs, err := planner.LoadInputs(ctx, a.config, a.logger)
	if err != nil {
		return nil, err
	}
	return planner.New(a.config, inputs, a.logger, opts...)
}

func (a *app) openStore(ctx context.Context) (*planner.Store, error) {
	if a.config.PostgresConnString == "" {
		return nil, nil
	}
	return planner.OpenStore(ctx, a.config.PostgresConnString, a.logger)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func (a *app) solveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "solve [scenario...]",
		Short: "Run the named scenarios, or all of them, and write their results",
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			var opts []planner.Option
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
				opts = append(opts, planner.WithStore(store))
			}
			p, err := a.newPlanner(ctx, opts...)
			if err != nil {
				return err
			}

			total := len(args)
			if total == 0 {
				total = len(a.config.Scenarios)
			}
			bar := pb.StartNew(total)
			bar.ShowTimeLeft = false
			runs, err := p.RunAll(ctx, args, func(*planner.RunSummary) { bar.Increment() })
			bar.FinishPrint("Scenarios finished")

			printRuns(runs)
			return err
		},
	}
}

func printRuns(runs []*planner.RunSummary) {
	if len(runs) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("┌──────────────────────┬───────────┬────────┬───────┬──────────────┬──────────┬──────────┬──────────┐")
	fmt.Println("│ Scenario             │  Status   │ Houses │ Hours │  Cost (EUR)  │ PV (kWp) │ STES(m3) │ Time (s) │")
	fmt.Println("├──────────────────────┼───────────┼────────┼───────┼──────────────┼──────────┼──────────┼──────────┤")
	for _, r := range runs {
		fmt.Printf("│ %-20s │ %-9s │ %6d │ %5d │ %12.2f │ %8.2f │ %8.1f │ %8.1f │\n",
			r.Scenario,
			r.Status,
			r.Households,
			r.Hours,
			r.Objective,
			r.PVCapacity,
			r.StorageVolume,
			r.FinishedAt.Sub(r.StartedAt).Seconds(),
		)
	}
	fmt.Println("└──────────────────────┴───────────┴────────┴───────┴──────────────┴──────────┴──────────┴──────────┘")
	for _, r := range runs {
		if r.Error != "" {
			fmt.Printf("%s: %s\n", r.Scenario, r.Error)
		}
	}
}

func (a *app) exportLPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-lp <scenario> <file>",
		Short: "Build a scenario's model and write it in CPLEX LP format",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			sc, err := a.config.Scenario(args[0])
			if err != nil {
				return err
			}
			p, err := a.newPlanner(ctx)
			if err != nil {
				return err
			}
			model, _, err := p.BuildModel(sc)
			if err != nil {
				return err
			}
			if err := lp.WriteLPFile(args[1], model.LP); err != nil {
				return err
			}
			st := model.Stats()
			a.logger.Info("wrote model",
				zap.String("file", args[1]),
				zap.Int("variables", st.Variables),
				zap.Int("constraints", st.Constraints),
				zap.Int("non_zeros", st.NonZeros),
			)
			return nil
		},
	}
}

func (a *app) tariffsCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "tariffs",
		Short: "Write the hourly network tariff and tax schedule",
		RunE: func(_ *cobra.Command, _ []string) error {
			tariff, err := a.config.Model.Tariffs.Derive()
			if err != nil {
				return err
			}
			return writeCSV(output, func(f *os.File) error {
				if _, err := fmt.Fprintln(f, "hour,month,volumetric,tax,network"); err != nil {
					return err
				}
				months := calendar.MonthIndex()
				for t := range tariff.Volumetric {
					if _, err := fmt.Fprintf(f, "%d,%d,%s,%s,%s\n", t, months[t]+1,
						ftoa(tariff.Volumetric[t]), ftoa(tariff.Tax[t]), ftoa(tariff.Network[t])); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output file, - for stdout")
	return cmd
}

func (a *app) futurePricesCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "future-prices",
		Short: "Rescale the historic spot prices to the weekly targets",
		RunE: func(_ *cobra.Command, _ []string) error {
			if a.config.Data.SpotPrice == "" {
				return fmt.Errorf("data.spot_price is required")
			}
			if a.config.Data.FutureWeekStats == "" {
				return fmt.Errorf("data.future_week_stats is required")
			}
			history, err := profiles.ReadSeriesFile(a.config.Data.SpotPrice, a.config.Data.SpotFormat)
			if err != nil {
				return err
			}
			f, err := os.Open(a.config.Data.FutureWeekStats)
			if err != nil {
				return fmt.Errorf("failed to open weekly targets: %w", err)
			}
			weeks, err := planner.ReadWeekStats(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", a.config.Data.FutureWeekStats, err)
			}
			future, err := params.FutureProfile(history, weeks)
			if err != nil {
				return err
			}
			return writeCSV(output, func(f *os.File) error {
				return profiles.WriteSeries(f, "price", future)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output file, - for stdout")
	return cmd
}

func (a *app) fetchPricesCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "fetch-prices <year>",
		Short: "Download a year of ENTSO-E day-ahead prices",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid year %q: %w", args[0], err)
			}
			if err := a.config.ENTSOE.Validate(); err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			bar := pb.StartNew(calendar.MonthsPerYear)
			bar.ShowTimeLeft = false
			prices, err := planner.FetchSpotPrices(ctx, a.config.ENTSOE, year, func(int) { bar.Increment() })
			bar.Finish()
			if err != nil {
				return err
			}
			return writeCSV(output, func(f *os.File) error {
				return profiles.WriteSeries(f, "price", prices)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output file, - for stdout")
	return cmd
}

func (a *app) stesCostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stes-cost",
		Short: "Fit storage investment cost against volume over the reference installations",
		RunE: func(_ *cobra.Command, _ []string) error {
			sites := params.ReferenceSTESSites()
			fit := params.FitSTESCost(sites)
			fmt.Printf("%-14s %12s %14s %14s\n", "Site", "Volume (m3)", "Cost (EUR)", "Fitted (EUR)")
			for _, s := range sites {
				fmt.Printf("%-14s %12.0f %14.2f %14.2f\n", s.Name, s.Volume, s.Cost, fit.Cost(s.Volume))
			}
			fmt.Println()
			fmt.Printf("Fixed cost:   %.2f EUR\n", fit.Intercept)
			fmt.Printf("Volume cost:  %.4f EUR/m3\n", fit.Slope)
			fmt.Printf("R squared:    %.4f\n", fit.RSquared)
			return nil
		},
	}
}

func (a *app) serveCmd() *cobra.Command {
	var runAll bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the status server; runs are triggered over HTTP",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			metrics := planner.NewMetrics()
			server := planner.NewWebServer(a.config.HTTPPort, metrics, a.logger)
			opts := []planner.Option{planner.WithMetrics(metrics), planner.WithEvents(server)}
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
				opts = append(opts, planner.WithStore(store))
			}
			p, err := a.newPlanner(ctx, opts...)
			if err != nil {
				return err
			}
			server.Attach(ctx, p)
			if err := server.Start(); err != nil {
				return err
			}
			a.logger.Info("planner started, press Ctrl+C to stop", zap.Int("port", a.config.HTTPPort))

			if runAll {
				go func() {
					if _, err := p.RunAll(ctx, nil, nil); err != nil && ctx.Err() == nil {
						a.logger.Warn("scenario batch failed", zap.Error(err))
					}
				}()
			}

			<-ctx.Done()
			a.logger.Info("shutdown signal received, stopping server")
			shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			if err := server.Stop(shutdownCtx); err != nil {
				a.logger.Warn("failed to stop server cleanly", zap.Error(err))
			}
			a.logger.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&runAll, "run", false, "Run every scenario once at startup")
	return cmd
}

func (a *app) initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config <file>",
		Short: "Write the default configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return planner.DefaultConfig().SaveConfig(args[0])
		},
	}
}

// writeCSV runs fill against the output file, or stdout for "-".
func writeCSV(output string, fill func(*os.File) error) error {
	if output == "" || output == "-" {
		return fill(os.Stdout)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}
	if err := fill(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	return f.Close()
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
