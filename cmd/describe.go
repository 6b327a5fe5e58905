package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/incomegap/internal/analysis"
	"github.com/KaramelBytes/incomegap/internal/pipeline"
	"github.com/KaramelBytes/incomegap/internal/report"
)

var describeSheet string

var describeCmd = &cobra.Command{
	Use:   "describe [file]",
	Short: "Print cleaning stats and descriptive tables for a local file",
	Long:  `Loads and cleans a local CSV/TSV/XLSX file and prints the descriptive tables to stdout. Nothing is written to disk.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := pipeline.Options{Sheet: describeSheet, Logger: newLogger()}
		if cfg != nil {
			opts.LocalPath = cfg.LocalCSV
			if opts.Sheet == "" {
				opts.Sheet = cfg.Sheet
			}
		}
		if len(args) == 1 {
			opts.LocalPath = args[0]
		}
		cleaned, err := pipeline.Prepare(cmd.Context(), opts)
		if err != nil {
			return err
		}
		d, err := analysis.Describe(cleaned)
		if err != nil {
			return err
		}
		st := cleaned.Stats()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Source: %s\n", cleaned.Provenance())
		fmt.Fprintf(out, "Rows: %d loaded, %d dropped (missing), %d dropped (non-positive income), %d kept\n",
			st.RowsIn, st.DroppedMissing, st.DroppedNonPositive, st.RowsOut)
		fmt.Fprintf(out, "Winsorization bounds: [%.2f, %.2f]\n\n", st.Bounds.Low, st.Bounds.High)
		report.DescriptiveMarkdown(out, d)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().StringVar(&describeSheet, "sheet", "", "sheet name when the file is XLSX (default: first sheet)")
}
