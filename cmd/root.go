package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trilemmafoundation/canada-tech/internal/config"
	"github.com/trilemmafoundation/canada-tech/internal/normalize"
	"github.com/trilemmafoundation/canada-tech/internal/pipeline"
)

var cfg *config.Config

var (
	checkOnly    bool
	inputPath    string
	stagingSheet string
	datasetPath  string
	mergeMode    string
	reportFormat string
)

// errRejected makes the process exit non-zero after the report is printed.
var errRejected = eris.New("one or more staged entries were rejected")

var rootCmd = &cobra.Command{
	Use:   "canada-tech",
	Short: "Validate and merge staged Canadian tech employers",
	Long: `Reads proposed entries from the staging source, validates every field,
derives ids, normalizes URLs, geocodes locations, rejects duplicates and
appends the accepted entries to the canonical companies dataset.

With --check nothing is geocoded or written; the command only reports
problems and exits non-zero if any entry would be rejected.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		applyFlagOverrides(cmd)

		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	RunE: runPipeline,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&datasetPath, "dataset", "", "canonical dataset CSV (overrides data.companies_path)")
	rootCmd.PersistentFlags().StringVar(&reportFormat, "format", "", "report format: text, json or yaml (overrides report.format)")

	rootCmd.Flags().BoolVar(&checkOnly, "check", false, "validate and duplicate-check only; never geocode or write")
	rootCmd.Flags().StringVar(&inputPath, "input", "", "staging source, CSV or XLSX (overrides data.staging_path)")
	rootCmd.Flags().StringVar(&stagingSheet, "sheet", "", "worksheet of an XLSX staging source (overrides data.staging_sheet)")
	rootCmd.Flags().StringVar(&mergeMode, "mode", "", "merge mode: partial or abort (overrides merge.mode)")
}

// applyFlagOverrides copies explicitly set flags over the loaded config.
func applyFlagOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("dataset") {
		cfg.Data.CompaniesPath = datasetPath
	}
	if flags.Changed("format") {
		cfg.Report.Format = reportFormat
	}
	if flags.Changed("input") {
		cfg.Data.StagingPath = inputPath
	}
	if flags.Changed("sheet") {
		cfg.Data.StagingSheet = stagingSheet
	}
	if flags.Changed("mode") {
		cfg.Merge.Mode = mergeMode
	}
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var locator pipeline.Locator
	if !checkOnly {
		client, closeCache := initGeocoder(ctx)
		defer closeCache()
		defer logCacheStats(client)
		locator = normalize.NewLocator(client, normalize.LocatorOptions{
			FallbackToCity: cfg.Geocode.FallbackToCity,
		})
	}

	p := pipeline.New(cfg, locator)
	var (
		report *pipeline.Report
		err    error
	)
	if checkOnly {
		report, err = p.Check(ctx)
	} else {
		report, err = p.Run(ctx)
	}
	if err != nil {
		return eris.Wrapf(err, "run %s", p.RunID())
	}

	if err := report.Render(cmd.OutOrStdout(), cfg.Report.Format); err != nil {
		return err
	}
	if report.Failed() {
		return errRejected
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
