// Package report renders the descriptive tables, test results, figures,
// markdown summary and run manifest, and writes them under an output root.
package report

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/KaramelBytes/incomegap/internal/analysis"
	"github.com/KaramelBytes/incomegap/internal/cleaning"
	"github.com/KaramelBytes/incomegap/internal/hypothesis"
	"github.com/KaramelBytes/incomegap/internal/regression"
	"github.com/KaramelBytes/incomegap/internal/utils"
)

// Output directories relative to the run root.
const (
	DirRaw       = "data/raw"
	DirProcessed = "data/processed"
	DirFigures   = "figures"
	DirReport    = "report"
)

// Dirs lists the directories a run creates.
var Dirs = []string{DirRaw, DirProcessed, DirFigures, DirReport}

// Output files relative to the run root.
var (
	FileOverall  = filepath.Join(DirReport, "descriptive_overall.csv")
	FileByGender = filepath.Join(DirReport, "descriptive_by_gender.csv")
	FileByRace   = filepath.Join(DirReport, "descriptive_by_race.csv")
	FileTests    = filepath.Join(DirReport, "test_results.json")
	FileSummary  = filepath.Join(DirReport, "summary.md")
	FileBoxPlot  = filepath.Join(DirFigures, "income_by_gender.png")
	FileScatter  = filepath.Join(DirFigures, "education_vs_income.png")
	FileHeatmap  = filepath.Join(DirFigures, "correlation_matrix.png")
	FileCleaned  = filepath.Join(DirProcessed, "cleaned.csv")
	FileManifest = filepath.Join(DirProcessed, "run.yaml")
)

// Input is everything a report is built from.
type Input struct {
	Data         *cleaning.CleanedDataset
	Descriptive  *analysis.Descriptive
	Correlations *analysis.CorrMatrix
	Tests        *hypothesis.Results
	Model        *regression.Result
	// Manifest is completed with the output list and written last.
	Manifest *Manifest
}

func (in Input) validate() error {
	switch {
	case in.Data == nil:
		return errors.New("report: missing dataset")
	case in.Descriptive == nil:
		return errors.New("report: missing descriptive statistics")
	case in.Correlations == nil:
		return errors.New("report: missing correlation matrix")
	case in.Tests == nil:
		return errors.New("report: missing test results")
	case in.Model == nil:
		return errors.New("report: missing regression result")
	}
	return nil
}

// Reporter writes report files under Root using Style for figures.
type Reporter struct {
	Root  string
	Style Style
}

// New returns a Reporter rooted at root.
func New(root string, style Style) *Reporter {
	return &Reporter{Root: root, Style: style}
}

type artifact struct {
	path string
	data []byte
}

// renderAll builds every artifact in memory, in write order. Nothing touches
// the filesystem.
func (r *Reporter) renderAll(in Input) ([]artifact, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var out []artifact
	add := func(path string, data []byte) { out = append(out, artifact{path: path, data: data}) }

	overall, byGender, byRace, err := DescriptiveCSVs(in.Descriptive)
	if err != nil {
		return nil, fmt.Errorf("descriptive tables: %w", err)
	}
	add(FileOverall, overall)
	add(FileByGender, byGender)
	add(FileByRace, byRace)

	tests, err := utils.PrettyJSON(in.Tests)
	if err != nil {
		return nil, fmt.Errorf("test results: %w", err)
	}
	add(FileTests, tests)

	box, err := r.Style.IncomeBoxPlot(in.Data)
	if err != nil {
		return nil, err
	}
	add(FileBoxPlot, box)
	scatter, err := r.Style.EducationScatter(in.Data)
	if err != nil {
		return nil, err
	}
	add(FileScatter, scatter)
	heat, err := r.Style.CorrelationHeatmap(in.Correlations)
	if err != nil {
		return nil, err
	}
	add(FileHeatmap, heat)

	add(FileSummary, Summary(in.Data.Len(), in.Descriptive, in.Tests, in.Model))

	cleaned, err := CSV(cleaning.Header(), in.Data.Records())
	if err != nil {
		return nil, fmt.Errorf("cleaned data: %w", err)
	}
	add(FileCleaned, cleaned)

	if in.Manifest != nil {
		m := *in.Manifest
		m.Outputs = nil
		for _, a := range out {
			m.Outputs = append(m.Outputs, filepath.ToSlash(a.path))
		}
		m.Outputs = append(m.Outputs, filepath.ToSlash(FileManifest))
		m.Regression.NObs = in.Model.NObs
		m.Regression.RSquared = in.Model.RSquared
		m.Regression.Dropped = in.Model.Dropped
		m.Regression.CovType = regression.CovType
		if c, ok := in.Model.Coef(cleaning.ColIsFemale); ok {
			m.Regression.IsFemale = c.Estimate
		}
		data, err := m.Marshal()
		if err != nil {
			return nil, err
		}
		add(FileManifest, data)
	}
	return out, nil
}

// Write renders everything first and then writes each file atomically, so
// a rendering failure leaves previous outputs untouched. It returns the
// written paths relative to Root.
func (r *Reporter) Write(in Input) ([]string, error) {
	arts, err := r.renderAll(in)
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureDirs(r.Root, Dirs...); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(arts))
	for _, a := range arts {
		if err := utils.SafeWriteFile(filepath.Join(r.Root, a.path), a.data); err != nil {
			return paths, fmt.Errorf("write %s: %w", a.path, err)
		}
		paths = append(paths, a.path)
	}
	return paths, nil
}
