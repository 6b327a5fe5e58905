package cleaning

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/incomegap/internal/source"
)

var nan = math.NaN()

func rec(sex, race, age, school, income float64) source.Record {
	return source.Record{Year: 2022, Region: "SP", Sex: sex, Race: race, Age: age, Schooling: school, Income: income}
}

func randomDataset(n int, seed int64) *source.Dataset {
	rng := rand.New(rand.NewSource(seed))
	ds := &source.Dataset{Provenance: source.ProvenanceLocalCSV}
	for i := 0; i < n; i++ {
		r := rec(float64(1+rng.Intn(3)), float64(1+rng.Intn(7)), float64(18+rng.Intn(50)), float64(rng.Intn(17)), math.Exp(rng.NormFloat64()+7))
		switch rng.Intn(12) {
		case 0:
			r.Income = nan
		case 1:
			r.Income = -r.Income
		case 2:
			r.Income = 0
		case 3:
			r.Age = nan
		}
		ds.Records = append(ds.Records, r)
	}
	return ds
}

func TestCleanFilters(t *testing.T) {
	ds := &source.Dataset{Records: []source.Record{
		rec(1, 1, 30, 10, 1000),
		rec(nan, 1, 30, 10, 1000),
		rec(1, nan, 30, 10, 1000),
		rec(1, 1, nan, 10, 1000),
		rec(1, 1, 30, nan, 1000),
		rec(1, 1, 30, 10, nan),
		rec(2, 4, 40, 12, 0),
		rec(2, 4, 40, 12, -5),
		rec(2, 4, 40, 12, 2000),
	}, Provenance: source.ProvenanceLocalCSV}
	// Missing year and region are not required.
	ds.Records[0].Year = nan
	ds.Records[0].Region = ""

	c, err := Clean(ds)
	require.NoError(t, err)
	assert.Equal(t, Stats{
		RowsIn: 9, DroppedMissing: 5, DroppedNonPositive: 2, RowsOut: 2,
		Bounds: Bounds{Low: 1010, High: 1990},
	}, c.Stats())
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, source.ProvenanceLocalCSV, c.Provenance())
}

func TestCleanBoundsAfterFilters(t *testing.T) {
	// A huge negative value must not pull the lower bound down.
	var recs []source.Record
	for i := 1; i <= 101; i++ {
		recs = append(recs, rec(1, 1, 30, 10, float64(i)))
	}
	recs = append(recs, rec(1, 1, 30, 10, -1e9), rec(1, 1, 30, 10, nan))
	c, err := Clean(&source.Dataset{Records: recs})
	require.NoError(t, err)
	assert.Equal(t, Bounds{Low: 2, High: 100}, c.Bounds())
	assert.Equal(t, 2.0, c.Row(0).IncomeWinsorized)
	assert.Equal(t, 100.0, c.Row(100).IncomeWinsorized)
	assert.Equal(t, 50.0, c.Row(49).IncomeWinsorized)
}

func TestCleanLabelsAndFeatures(t *testing.T) {
	ds := &source.Dataset{Records: []source.Record{
		rec(1, 1, 30, 10, 100),
		rec(2, 2, 31, 11, 100),
		rec(9, 3, 32, 12, 100),
		rec(2, 4, 33, 13, 100),
		rec(1, 5, 34, 14, 100),
		rec(2, 9, 35, 15, 100),
		rec(1.5, 2.5, 36, 16, 100),
	}}
	c, err := Clean(ds)
	require.NoError(t, err)

	type row struct {
		Gender, Race                                  string
		Female, Black, Brown, Yellow, Indigenous, Age2 float64
	}
	var got []row
	for i := 0; i < c.Len(); i++ {
		o := c.Row(i)
		got = append(got, row{o.Gender, o.Race, o.IsFemale, o.RaceBlack, o.RaceBrown, o.RaceYellow, o.RaceIndigenous, o.Age2})
	}
	want := []row{
		{Male, White, 0, 0, 0, 0, 0, 900},
		{Female, Black, 1, 1, 0, 0, 0, 961},
		{Other, Yellow, 0, 0, 0, 1, 0, 1024},
		{Female, Brown, 1, 0, 1, 0, 0, 1089},
		{Male, Indigenous, 0, 0, 0, 0, 1, 1156},
		{Female, Other, 1, 0, 0, 0, 0, 1225},
		{Other, Other, 0, 0, 0, 0, 0, 1296},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("features mismatch (-want +got):\n%s", diff)
	}
}

func TestCleanInvariants(t *testing.T) {
	ds := randomDataset(2000, 42)
	c, err := Clean(ds)
	require.NoError(t, err)
	b := c.Bounds()
	require.LessOrEqual(t, b.Low, b.High)

	sorted := SortedCopy(c.Column(source.ColIncome))
	assert.Equal(t, Quantile(sorted, LowerPercentile), b.Low)
	assert.Equal(t, Quantile(sorted, UpperPercentile), b.High)

	for i := 0; i < c.Len(); i++ {
		o := c.Row(i)
		assert.GreaterOrEqual(t, o.IncomeWinsorized, b.Low)
		assert.LessOrEqual(t, o.IncomeWinsorized, b.High)
		assert.Greater(t, o.IncomeWinsorized, 0.0)
		assert.Equal(t, math.Log(o.IncomeWinsorized), o.LogIncome)
	}
	st := c.Stats()
	assert.Equal(t, st.RowsIn, st.RowsOut+st.DroppedMissing+st.DroppedNonPositive)
}

func TestCleanIdempotent(t *testing.T) {
	first, err := Clean(randomDataset(500, 7))
	require.NoError(t, err)
	second, err := Clean(first.Raw())
	require.NoError(t, err)

	assert.Equal(t, first.Len(), second.Len())
	assert.Zero(t, second.Stats().DroppedMissing)
	assert.Zero(t, second.Stats().DroppedNonPositive)
	assert.Equal(t, first.Column(source.ColIncome), second.Column(source.ColIncome))
	assert.Equal(t, first.Labels(ColGender), second.Labels(ColGender))
}

func TestCleanDeterministic(t *testing.T) {
	a, err := Clean(randomDataset(300, 3))
	require.NoError(t, err)
	b, err := Clean(randomDataset(300, 3))
	require.NoError(t, err)
	for _, col := range Header() {
		if v := a.Column(col); v != nil {
			assert.Equal(t, v, b.Column(col), col)
		}
	}
	assert.Equal(t, a.Records(), b.Records())
}

func TestCleanEmpty(t *testing.T) {
	_, err := Clean(&source.Dataset{})
	assert.ErrorIs(t, err, ErrEmptyDataset)

	_, err = Clean(&source.Dataset{Records: []source.Record{rec(1, 1, 30, 10, 0), rec(nan, 1, 30, 10, 10)}})
	assert.ErrorIs(t, err, ErrEmptyDataset)

	_, err = Clean(nil)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestColumnsAndRecords(t *testing.T) {
	c, err := Clean(&source.Dataset{Records: []source.Record{rec(2, 4, 30, 10, 100)}})
	require.NoError(t, err)

	assert.Equal(t, []float64{10}, c.Column(ColSchoolYears))
	assert.Equal(t, []float64{1}, c.Column(ColRaceBrown))
	assert.Equal(t, []string{Brown}, c.Labels(ColRace))
	assert.Nil(t, c.Column("nope"))
	assert.Nil(t, c.Labels(ColAge))

	recs := c.Records()
	require.Len(t, recs, 1)
	assert.Len(t, recs[0], len(Header()))
	assert.Equal(t, "Female", recs[0][8])
	assert.Equal(t, "100", recs[0][7])
}

func TestQuantile(t *testing.T) {
	s := []float64{1, 2, 3, 4}
	assert.Equal(t, 1.0, Quantile(s, 0))
	assert.Equal(t, 4.0, Quantile(s, 1))
	assert.Equal(t, 2.5, Quantile(s, 0.5))
	assert.InDelta(t, 1.03, Quantile(s, 0.01), 1e-12)
	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
}
