// Package analysis computes descriptive statistics of winsorized income
// and the Pearson correlation matrix of the model columns.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/incomegap/internal/cleaning"
)

// Summary is the overall distribution of a column.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q25    float64 `json:"25%"`
	Median float64 `json:"50%"`
	Q75    float64 `json:"75%"`
	Max    float64 `json:"max"`
}

// GroupSummary aggregates a column within one category.
type GroupSummary struct {
	Label  string  `json:"label"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
}

// Descriptive holds the three income tables.
type Descriptive struct {
	Overall  Summary
	ByGender []GroupSummary
	ByRace   []GroupSummary
}

// Describe summarizes income_winsorized overall, by gender and by race.
// Groups are ordered lexically by label.
func Describe(ds *cleaning.CleanedDataset) (*Descriptive, error) {
	if ds.Len() == 0 {
		return nil, cleaning.ErrEmptyDataset
	}
	income := ds.Column(cleaning.ColIncomeWinsorized)
	byGender, err := GroupBy(income, ds.Labels(cleaning.ColGender))
	if err != nil {
		return nil, fmt.Errorf("by gender: %w", err)
	}
	byRace, err := GroupBy(income, ds.Labels(cleaning.ColRace))
	if err != nil {
		return nil, fmt.Errorf("by race: %w", err)
	}
	return &Descriptive{Overall: Summarize(income), ByGender: byGender, ByRace: byRace}, nil
}

// Summarize ignores NaN values. Std uses the N-1 denominator and is NaN for
// fewer than two values.
func Summarize(vals []float64) Summary {
	v := dropNaN(vals)
	s := Summary{Count: len(v)}
	if len(v) == 0 {
		nan := math.NaN()
		s.Mean, s.Std, s.Min, s.Q25, s.Median, s.Q75, s.Max = nan, nan, nan, nan, nan, nan, nan
		return s
	}
	sorted := cleaning.SortedCopy(v)
	s.Mean = stat.Mean(v, nil)
	s.Std = sampleStd(v)
	s.Min = floats.Min(v)
	s.Max = floats.Max(v)
	s.Q25 = cleaning.Quantile(sorted, 0.25)
	s.Median = cleaning.Quantile(sorted, 0.5)
	s.Q75 = cleaning.Quantile(sorted, 0.75)
	return s
}

// GroupBy splits vals by the parallel labels slice and summarizes each
// group. NaN values are not counted.
func GroupBy(vals []float64, labels []string) ([]GroupSummary, error) {
	if len(vals) != len(labels) {
		return nil, errors.New("values and labels differ in length")
	}
	groups := map[string][]float64{}
	for i, l := range labels {
		if _, ok := groups[l]; !ok {
			groups[l] = nil
		}
		if !math.IsNaN(vals[i]) {
			groups[l] = append(groups[l], vals[i])
		}
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]GroupSummary, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		gs := GroupSummary{Label: k, Count: len(g), Mean: math.NaN(), Median: math.NaN(), Std: math.NaN()}
		if len(g) > 0 {
			gs.Mean = stat.Mean(g, nil)
			gs.Median = cleaning.Quantile(cleaning.SortedCopy(g), 0.5)
			gs.Std = sampleStd(g)
		}
		out = append(out, gs)
	}
	return out, nil
}

func sampleStd(v []float64) float64 {
	if len(v) < 2 {
		return math.NaN()
	}
	return stat.StdDev(v, nil)
}

func dropNaN(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, x := range vals {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
type CorrMatrix struct {
	Columns []string
	Values  [][]float64 // row-major, Values[i][j]
}

// At returns the correlation between columns i and j.
func (m *CorrMatrix) At(i, j int) float64 { return m.Values[i][j] }

// HeatmapColumns are the columns shown in the correlation heatmap.
var HeatmapColumns = []string{
	cleaning.ColIncomeWinsorized, cleaning.ColLogIncome, cleaning.ColIsFemale,
	cleaning.ColRaceBlack, cleaning.ColRaceBrown, cleaning.ColRaceYellow, cleaning.ColRaceIndigenous,
	cleaning.ColSchoolYears, cleaning.ColAge, cleaning.ColAge2,
}

// Correlations computes pairwise Pearson correlations over rows where both
// values are present. A pair involving a constant column is NaN; the
// diagonal is 1 for columns with variance.
func Correlations(ds *cleaning.CleanedDataset, columns []string) (*CorrMatrix, error) {
	data := make([][]float64, len(columns))
	for i, c := range columns {
		data[i] = ds.Column(c)
		if data[i] == nil {
			return nil, fmt.Errorf("unknown numeric column %q", c)
		}
	}
	n := len(columns)
	mat := make([][]float64, n)
	for i := range mat {
		mat[i] = make([]float64, n)
	}
	for a := 0; a < n; a++ {
		for b := 0; b <= a; b++ {
			r := pearson(data[a], data[b])
			if a == b && !math.IsNaN(r) {
				r = 1
			}
			mat[a][b], mat[b][a] = r, r
		}
	}
	return &CorrMatrix{Columns: append([]string(nil), columns...), Values: mat}, nil
}

// pairAcc accumulates the sums needed for a Pearson coefficient.
type pairAcc struct {
	n     float64
	sumX  float64
	sumY  float64
	sumXX float64
	sumYY float64
	sumXY float64
}

func pearson(xs, ys []float64) float64 {
	var pa pairAcc
	// Center on the first complete pair to keep the sums well conditioned.
	var cx, cy float64
	centered := false
	for i := range xs {
		x, y := xs[i], ys[i]
		if math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		if !centered {
			cx, cy, centered = x, y, true
		}
		x -= cx
		y -= cy
		pa.n++
		pa.sumX += x
		pa.sumY += y
		pa.sumXX += x * x
		pa.sumYY += y * y
		pa.sumXY += x * y
	}
	if pa.n < 2 {
		return math.NaN()
	}
	vx := pa.n*pa.sumXX - pa.sumX*pa.sumX
	vy := pa.n*pa.sumYY - pa.sumY*pa.sumY
	if vx <= 0 || vy <= 0 {
		return math.NaN()
	}
	r := (pa.n*pa.sumXY - pa.sumX*pa.sumY) / math.Sqrt(vx*vy)
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r
}
