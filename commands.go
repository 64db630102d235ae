package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"monitor-pricewatch/config"
	"monitor-pricewatch/db"
	"monitor-pricewatch/pipeline"
	"monitor-pricewatch/scheduler"
	"monitor-pricewatch/snapshot"
)

// app holds the state shared by every command
type app struct {
	configPath string
	dateFlag   string

	cfg  *config.Config
	log  *logrus.Logger
	date string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "pricewatch",
		Short:         "Scrape monitor prices from Dell and its resellers and report price compliance",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "config.yaml", "Path to configuration file")
	root.PersistentFlags().StringVar(&a.dateFlag, "date", "", "Snapshot date as YYYYMMDD (default: today)")

	root.AddCommand(
		a.scrapeCmd(),
		a.reconcileCmd(),
		a.combineCmd(),
		a.suggestCmd(),
		a.runCmd(),
		a.scheduleCmd(),
		a.historyCmd(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = config.NewLogger(cfg.Log)

	a.date, err = resolveDate(a.dateFlag, time.Now())
	return err
}

// loadConfig loads configuration from file or falls back to defaults when the file does not exist
func loadConfig(configPath string) (*config.Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		return config.LoadConfig(configPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Config file %s not found. Using default configuration.\n", configPath)
	cfg := config.GetDefaultConfig()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// resolveDate validates the --date flag, defaulting to today's date
func resolveDate(flag string, now time.Time) (string, error) {
	if flag == "" {
		return snapshot.FormatDate(now), nil
	}
	return snapshot.ParseDate(flag)
}

func (a *app) scrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape [retailer...]",
		Short: "Scrape retailers and save dated catalog snapshots (all retailers by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := pipeline.NewRunner(a.cfg, nil, a.log)
			paths, err := runner.Scrape(cmd.Context(), a.date, args...)
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return err
		},
	}
}

func (a *app) reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Compare reseller prices against the manufacturer snapshot and write the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sinks := pipeline.OpenSinks(cmd.Context(), a.cfg, a.log)
			defer sinks.Close()

			_, err := pipeline.NewRunner(a.cfg, sinks, a.log).Reconcile(cmd.Context(), a.date)
			return err
		},
	}
}

func (a *app) combineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "combine",
		Short: "Write the cross-retailer price table for the snapshot date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := pipeline.NewRunner(a.cfg, nil, a.log).Combine(cmd.Context(), a.date)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func (a *app) suggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest",
		Short: "Propose index entries for reseller products the index does not reference yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			suggestions, err := pipeline.NewRunner(a.cfg, nil, a.log).Suggest(cmd.Context(), a.date)
			if err != nil {
				return err
			}
			if len(suggestions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No suggestions.")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Retailer", "Retailer SKU", "Retailer name", "Suggested product", "Score"})
			for _, s := range suggestions {
				t.AppendRow(table.Row{s.Retailer, s.RetailerSKU, s.RetailerName, s.Product, fmt.Sprintf("%.3f", s.Score)})
			}
			t.Render()
			return nil
		},
	}
}

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Scrape every retailer, then reconcile, combine and publish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sinks := pipeline.OpenSinks(cmd.Context(), a.cfg, a.log)
			defer sinks.Close()

			return pipeline.NewRunner(a.cfg, sinks, a.log).Run(cmd.Context(), a.date)
		},
	}
}

func (a *app) scheduleCmd() *cobra.Command {
	var spec string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the full pipeline on a cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if spec == "" {
				spec = a.cfg.Schedule
			}

			sinks := pipeline.OpenSinks(cmd.Context(), a.cfg, a.log)
			defer sinks.Close()

			sched := scheduler.NewScheduler(pipeline.NewRunner(a.cfg, sinks, a.log), a.log)
			if err := sched.Schedule(spec); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			a.log.Infof("Next run at %s", sched.Next().Format(time.RFC3339))
			<-cmd.Context().Done()
			a.log.Info("Shutting down")
			return nil
		},
	}
	cmd.Flags().StringVar(&spec, "cron", "", "Cron expression (default: schedule from config)")
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs, or the comparisons of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Database.URL == "" {
				return errors.New("run history is disabled: set database.url or DATABASE_URL")
			}

			database, err := db.NewDB(cmd.Context(), a.cfg.Database.Driver, a.cfg.Database.URL)
			if err != nil {
				return err
			}
			defer database.Close()

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)

			if runID != "" {
				rows, err := database.GetComparisons(cmd.Context(), runID)
				if err != nil {
					return err
				}
				t.AppendHeader(table.Row{"Product", "Retailer", "Manufacturer price", "Retailer price", "Deviation %", "Status"})
				for _, r := range rows {
					t.AppendRow(table.Row{r.Product, r.Retailer, r.ManufacturerPrice.StringFixed(2),
						snapshot.FormatPrice(r.RetailerPrice), snapshot.FormatPrice(r.Deviation), string(r.Status)})
				}
				t.Render()
				return nil
			}

			runs, err := database.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			t.AppendHeader(table.Row{"Run", "Date", "Status", "Products", "Offending", "Compliance %", "Started", "Error"})
			for _, r := range runs {
				compliance := ""
				if r.ComplianceRate.Valid {
					compliance = r.ComplianceRate.Decimal.StringFixed(2)
				}
				t.AppendRow(table.Row{r.ID, r.SnapshotDate, r.Status, r.TotalProducts, r.OffendingProducts,
					compliance, r.StartedAt.Format(time.RFC3339), r.LastError.String})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "Show the comparisons stored for this run ID")
	return cmd
}
