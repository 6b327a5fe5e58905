package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/incomegap/internal/config"
	"github.com/KaramelBytes/incomegap/internal/logging"
)

var (
	cfgFile string
	debug   bool
	// Remote query flags (override config if set)
	flagQueryTimeoutSec  int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg *cfgpkg.Global
	// logOutput receives structured logs; tests swap it out.
	logOutput io.Writer = os.Stderr
)

var rootCmd = &cobra.Command{
	Use:   "incomegap",
	Short: "Gender and race income gap analysis over PNAD Contínua microdata",
	Long: `incomegap loads Brazilian household survey microdata from BigQuery (or a local
CSV/XLSX file), cleans it, runs descriptive statistics, hypothesis tests and a
log-income regression, and writes figures, tables and a markdown report.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("✗ Error:"), err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.incomegap/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&flagQueryTimeoutSec, "query-timeout", 0, "remote query timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: flags and built-in defaults still work
		fmt.Fprintln(os.Stderr, color.YellowString("⚠ Warning:"), "failed to load config:", err)
		return
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("query-timeout") && flagQueryTimeoutSec > 0 {
		cfg.QueryTimeoutSec = flagQueryTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
}

// newLogger builds the run logger from config; --debug forces debug level.
func newLogger() *slog.Logger {
	level, format := "info", "text"
	if cfg != nil {
		if cfg.LogLevel != "" {
			level = cfg.LogLevel
		}
		if cfg.LogFormat != "" {
			format = cfg.LogFormat
		}
	}
	if debug {
		level = "debug"
	}
	return logging.New(level, format, logOutput)
}
