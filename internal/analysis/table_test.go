package analysis

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/incomegap/internal/cleaning"
	"github.com/KaramelBytes/incomegap/internal/source"
)

func cleaned(t *testing.T, recs ...source.Record) *cleaning.CleanedDataset {
	t.Helper()
	ds, err := cleaning.Clean(&source.Dataset{Records: recs, Provenance: source.ProvenanceLocalCSV})
	require.NoError(t, err)
	return ds
}

func rec(sex, race, age, school, income float64) source.Record {
	return source.Record{Year: 2022, Region: "SP", Sex: sex, Race: race, Age: age, Schooling: school, Income: income}
}

// incomes between the percentile bounds so winsorization is a no-op on
// the middle rows.
func fixture(t *testing.T) *cleaning.CleanedDataset {
	return cleaned(t,
		rec(1, 1, 30, 10, 100),
		rec(1, 4, 40, 12, 200),
		rec(1, 2, 35, 8, 300),
		rec(2, 1, 28, 11, 150),
		rec(2, 4, 45, 9, 250),
		rec(3, 5, 50, 4, 400),
	)
}

func TestDescribeGroups(t *testing.T) {
	ds := fixture(t)
	d, err := Describe(ds)
	require.NoError(t, err)

	b := ds.Bounds()
	assert.InDelta(t, 102.5, b.Low, 1e-9)
	assert.InDelta(t, 395, b.High, 1e-9)

	opts := cmpopts.EquateApprox(0, 1e-9)
	wantGender := []GroupSummary{
		{Label: "Female", Count: 2, Mean: 200, Median: 200, Std: math.Sqrt(5000)},
		{Label: "Male", Count: 3, Mean: (102.5 + 200 + 300) / 3, Median: 200, Std: stat3(102.5, 200, 300)},
		{Label: "Other", Count: 1, Mean: 395, Median: 395, Std: math.NaN()},
	}
	if diff := cmp.Diff(wantGender, d.ByGender, opts, cmpopts.EquateNaNs()); diff != "" {
		t.Fatalf("by gender (-want +got):\n%s", diff)
	}

	labels := make([]string, len(d.ByRace))
	total := 0
	for i, g := range d.ByRace {
		labels[i] = g.Label
		total += g.Count
	}
	assert.Equal(t, []string{"Black", "Brown", "Indigenous", "White"}, labels)
	assert.Equal(t, ds.Len(), total)

	total = 0
	for _, g := range d.ByGender {
		total += g.Count
	}
	assert.Equal(t, ds.Len(), total)
	assert.Equal(t, ds.Len(), d.Overall.Count)
}

func stat3(a, b, c float64) float64 {
	m := (a + b + c) / 3
	return math.Sqrt(((a-m)*(a-m) + (b-m)*(b-m) + (c-m)*(c-m)) / 2)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{4, 1, 3, 2, math.NaN()})
	want := Summary{Count: 4, Mean: 2.5, Std: math.Sqrt(5.0 / 3), Min: 1, Q25: 1.75, Median: 2.5, Q75: 3.25, Max: 4}
	if diff := cmp.Diff(want, s, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Fatalf("summary (-want +got):\n%s", diff)
	}

	one := Summarize([]float64{7})
	assert.Equal(t, 7.0, one.Mean)
	assert.True(t, math.IsNaN(one.Std))

	empty := Summarize(nil)
	assert.Zero(t, empty.Count)
	assert.True(t, math.IsNaN(empty.Mean))
}

func TestGroupByLengthMismatch(t *testing.T) {
	_, err := GroupBy([]float64{1, 2}, []string{"a"})
	assert.Error(t, err)
}

func TestDescribeEmpty(t *testing.T) {
	_, err := Describe(nil)
	assert.ErrorIs(t, err, cleaning.ErrEmptyDataset)
}

func TestCorrelations(t *testing.T) {
	ds := cleaned(t,
		rec(1, 1, 20, 5, 100),
		rec(2, 1, 30, 10, 200),
		rec(1, 1, 40, 15, 300),
		rec(2, 1, 50, 20, 400),
		rec(1, 1, 60, 25, 500),
	)
	m, err := Correlations(ds, []string{cleaning.ColSchoolYears, cleaning.ColAge, cleaning.ColIsFemale, cleaning.ColRaceBlack})
	require.NoError(t, err)
	require.Len(t, m.Values, 4)

	assert.InDelta(t, 1.0, m.At(0, 1), 1e-12)
	assert.Equal(t, m.At(0, 2), m.At(2, 0))
	assert.Equal(t, 1.0, m.At(2, 2))
	// race_black is constant.
	assert.True(t, math.IsNaN(m.At(3, 0)))
	assert.True(t, math.IsNaN(m.At(3, 3)))
	for i := range m.Values {
		for j := range m.Values {
			if v := m.At(i, j); !math.IsNaN(v) {
				assert.LessOrEqual(t, math.Abs(v), 1.0)
			}
		}
	}

	_, err = Correlations(ds, []string{"bogus"})
	assert.Error(t, err)
}

func TestHeatmapColumnsResolve(t *testing.T) {
	m, err := Correlations(fixture(t), HeatmapColumns)
	require.NoError(t, err)
	assert.Equal(t, HeatmapColumns, m.Columns)
}
