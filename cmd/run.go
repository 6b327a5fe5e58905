package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/incomegap/internal/logging"
	"github.com/KaramelBytes/incomegap/internal/pipeline"
	"github.com/KaramelBytes/incomegap/internal/report"
	"github.com/KaramelBytes/incomegap/internal/source"
)

var (
	runYear           int
	runLimit          int
	runBillingProject string
	runLocalCSV       string
	runSheet          string
	runOutDir         string

	// runQuerier replaces the BigQuery client in tests.
	runQuerier source.Querier
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full analysis and write figures, tables and the report",
	Long: `Loads microdata (BigQuery when a billing project is set, otherwise the local
file), cleans it, computes descriptive statistics, the Welch t-test and
Mann-Whitney U test, fits the log-income OLS model and writes every output
under --out-dir.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithContext(cmd.Context(), newLogger())
		res, err := pipeline.Run(ctx, runOptions(cmd))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, color.GreenString("✓ Analysis completed successfully."))
		fmt.Fprintf(out, "  Source:  %s (%d rows loaded, %d after cleaning)\n", res.Provenance, res.RowsLoaded, res.Cleaning.RowsOut)
		fmt.Fprintf(out, "  Figures: %s\n", filepath.Join(res.OutDir, report.DirFigures))
		fmt.Fprintf(out, "  Report:  %s\n", filepath.Join(res.OutDir, report.FileSummary))
		fmt.Fprintf(out, "  Run ID:  %s\n", res.RunID)
		return nil
	},
}

// runOptions merges flags over config: a flag only wins when it was set.
func runOptions(cmd *cobra.Command) pipeline.Options {
	f := cmd.Flags()
	opts := pipeline.Options{
		Year:           runYear,
		Limit:          runLimit,
		BillingProject: runBillingProject,
		LocalPath:      runLocalCSV,
		Sheet:          runSheet,
		OutDir:         runOutDir,
		Querier:        runQuerier,
	}
	style := report.DefaultStyle()
	if cfg != nil {
		if !f.Changed("year") && cfg.Year > 0 {
			opts.Year = cfg.Year
		}
		if !f.Changed("limit") && cfg.Limit > 0 {
			opts.Limit = cfg.Limit
		}
		if !f.Changed("billing-project") && cfg.BillingProject != "" {
			opts.BillingProject = cfg.BillingProject
		}
		if !f.Changed("local-csv") && cfg.LocalCSV != "" {
			opts.LocalPath = cfg.LocalCSV
		}
		if !f.Changed("sheet") && cfg.Sheet != "" {
			opts.Sheet = cfg.Sheet
		}
		if !f.Changed("out-dir") && cfg.OutDir != "" {
			opts.OutDir = cfg.OutDir
		}
		opts.BigQuery = source.BigQueryConfig{
			CredentialsFile: cfg.CredentialsFile,
			Timeout:         cfg.QueryTimeout(),
			RetryMax:        cfg.RetryMaxAttempts,
			BaseDelay:       cfg.RetryBaseDelay(),
			MaxDelay:        cfg.RetryMaxDelay(),
		}
		if cfg.FigureDPI > 0 {
			style.DPI = cfg.FigureDPI
		}
	}
	opts.Style = style
	return opts
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().IntVar(&runYear, "year", pipeline.DefaultYear, "survey year to query")
	runCmd.Flags().IntVar(&runLimit, "limit", pipeline.DefaultLimit, "maximum number of rows to load")
	runCmd.Flags().StringVar(&runBillingProject, "billing-project", "", "Google Cloud project billed for the BigQuery query")
	runCmd.Flags().StringVar(&runLocalCSV, "local-csv", pipeline.DefaultLocalPath, "local CSV/TSV/XLSX fallback file")
	runCmd.Flags().StringVar(&runSheet, "sheet", "", "sheet name when the local file is XLSX (default: first sheet)")
	runCmd.Flags().StringVar(&runOutDir, "out-dir", ".", "root directory for data/, figures/ and report/")
}
