// Package pipeline runs the study end to end: load, clean, describe, test,
// fit and report.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/incomegap/internal/analysis"
	"github.com/KaramelBytes/incomegap/internal/cleaning"
	"github.com/KaramelBytes/incomegap/internal/hypothesis"
	"github.com/KaramelBytes/incomegap/internal/logging"
	"github.com/KaramelBytes/incomegap/internal/regression"
	"github.com/KaramelBytes/incomegap/internal/report"
	"github.com/KaramelBytes/incomegap/internal/source"
	"github.com/KaramelBytes/incomegap/internal/utils"
)

// Defaults for Options.
const (
	DefaultYear      = 2022
	DefaultLimit     = 10000
	DefaultLocalPath = "data/raw/data.csv"
)

// Options configures one run.
type Options struct {
	Year           int
	Limit          int
	BillingProject string
	LocalPath      string
	Sheet          string
	// OutDir is the root for data/, figures/ and report/.
	OutDir string

	// Querier overrides the BigQuery client built from BigQuery.
	Querier  source.Querier
	BigQuery source.BigQueryConfig

	Style report.Style
	// Logger defaults to the logger carried by ctx.
	Logger *slog.Logger
	// Now is used for manifest timestamps; nil means time.Now.
	Now func() time.Time
}

func (o *Options) defaults(ctx context.Context) {
	if o.Logger == nil {
		o.Logger = logging.FromContext(ctx)
	}
	if o.Year == 0 {
		o.Year = DefaultYear
	}
	if o.Limit == 0 {
		o.Limit = DefaultLimit
	}
	if o.LocalPath == "" {
		o.LocalPath = DefaultLocalPath
	}
	if o.OutDir == "" {
		o.OutDir = "."
	}
	if o.Style.DPI == 0 {
		o.Style = report.DefaultStyle()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Result summarizes a completed run.
type Result struct {
	RunID        string
	Provenance   string
	RowsLoaded   int
	Cleaning     cleaning.Stats
	Descriptive  *analysis.Descriptive
	Correlations *analysis.CorrMatrix
	Tests        *hypothesis.Results
	Model        *regression.Result
	OutDir       string
	Outputs      []string
}

// Request translates the options into a source request.
func (o Options) Request() source.Request {
	req := source.Request{
		Year:  o.Year,
		Limit: o.Limit,
		Local: source.LocalSource{Path: o.LocalPath, Sheet: o.Sheet},
	}
	if o.BillingProject != "" {
		q := o.Querier
		if q == nil {
			q = source.NewBigQuery(o.BigQuery)
		}
		req.Remote = &source.RemoteSource{BillingProject: o.BillingProject, Querier: q}
	}
	return req
}

// Prepare loads and cleans the dataset without writing anything.
func Prepare(ctx context.Context, opts Options) (*cleaning.CleanedDataset, error) {
	opts.defaults(ctx)
	return prepare(ctx, opts)
}

func prepare(ctx context.Context, opts Options) (*cleaning.CleanedDataset, error) {
	log := opts.Logger
	ds, err := source.Load(ctx, opts.Request(), log)
	if err != nil {
		return nil, err
	}
	cleaned, err := cleaning.Clean(ds)
	if err != nil {
		return nil, fmt.Errorf("clean %s data: %w", ds.Provenance, err)
	}
	st := cleaned.Stats()
	log.Info("data cleaned",
		slog.Int("rows_in", st.RowsIn),
		slog.Int("dropped_missing", st.DroppedMissing),
		slog.Int("dropped_non_positive", st.DroppedNonPositive),
		slog.Int("rows_out", st.RowsOut),
		slog.Float64("winsor_low", st.Bounds.Low),
		slog.Float64("winsor_high", st.Bounds.High))
	return cleaned, nil
}

// Run executes every stage in order. Output directories are created before
// loading; report files are only written after all statistics succeed.
func Run(ctx context.Context, opts Options) (*Result, error) {
	opts.defaults(ctx)
	runID := uuid.NewString()
	started := opts.Now()
	log := opts.Logger.With(slog.String("run_id", runID))
	opts.Logger = log

	if err := utils.EnsureDirs(opts.OutDir, report.Dirs...); err != nil {
		return nil, fmt.Errorf("prepare output directories: %w", err)
	}

	cleaned, err := prepare(ctx, opts)
	if err != nil {
		return nil, err
	}
	res := &Result{
		RunID:      runID,
		Provenance: cleaned.Provenance(),
		RowsLoaded: cleaned.Stats().RowsIn,
		Cleaning:   cleaned.Stats(),
		OutDir:     opts.OutDir,
	}

	if res.Descriptive, err = analysis.Describe(cleaned); err != nil {
		return nil, fmt.Errorf("descriptive statistics: %w", err)
	}
	if res.Correlations, err = analysis.Correlations(cleaned, analysis.HeatmapColumns); err != nil {
		return nil, fmt.Errorf("correlations: %w", err)
	}
	log.Info("descriptive statistics computed", slog.Int("genders", len(res.Descriptive.ByGender)), slog.Int("races", len(res.Descriptive.ByRace)))

	if res.Tests, err = hypothesis.Run(cleaned); err != nil {
		return nil, fmt.Errorf("hypothesis tests: %w", err)
	}
	log.Info("hypothesis tests done",
		slog.Float64("t", res.Tests.TTest.Statistic), slog.Float64("t_p", res.Tests.TTest.PValue),
		slog.Float64("u", res.Tests.MannWhitney.Statistic), slog.Float64("u_p", res.Tests.MannWhitney.PValue))

	if res.Model, err = regression.Fit(cleaned); err != nil {
		return nil, fmt.Errorf("regression: %w", err)
	}
	log.Info("regression fitted", slog.Int("n_obs", res.Model.NObs), slog.Float64("r_squared", res.Model.RSquared))

	manifest := &report.Manifest{
		RunID:      runID,
		StartedAt:  started.UTC(),
		FinishedAt: opts.Now().UTC(),
		Source:     res.Provenance,
		Year:       opts.Year,
		Limit:      opts.Limit,
		Cleaning:   res.Cleaning,
	}
	rep := report.New(opts.OutDir, opts.Style)
	res.Outputs, err = rep.Write(report.Input{
		Data:         cleaned,
		Descriptive:  res.Descriptive,
		Correlations: res.Correlations,
		Tests:        res.Tests,
		Model:        res.Model,
		Manifest:     manifest,
	})
	if err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	log.Info("report written", slog.String("out_dir", opts.OutDir), slog.Int("files", len(res.Outputs)))
	return res, nil
}
