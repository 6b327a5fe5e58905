// Package cleaning turns a raw Dataset into an immutable CleanedDataset:
// rows missing a required field or with non-positive income are dropped,
// income is winsorized at the 1st/99th percentiles and the model features
// are derived.
package cleaning

import (
	"errors"
	"math"
	"sort"

	"github.com/KaramelBytes/incomegap/internal/source"
)

// ErrEmptyDataset is returned when no row survives filtering.
var ErrEmptyDataset = errors.New("no rows left after cleaning")

// Winsorization percentiles.
const (
	LowerPercentile = 0.01
	UpperPercentile = 0.99
)

// Gender labels.
const (
	Male   = "Male"
	Female = "Female"
	Other  = "Other"
)

// Race labels. White and Other are the regression reference level.
const (
	White      = "White"
	Black      = "Black"
	Yellow     = "Yellow"
	Brown      = "Brown"
	Indigenous = "Indigenous"
)

var genderCodes = map[float64]string{1: Male, 2: Female}

var raceCodes = map[float64]string{1: White, 2: Black, 3: Yellow, 4: Brown, 5: Indigenous}

// Bounds is the closed winsorization interval.
type Bounds struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// Clip returns x limited to [Low, High].
func (b Bounds) Clip(x float64) float64 {
	return math.Min(math.Max(x, b.Low), b.High)
}

// Stats records what each cleaning step did.
type Stats struct {
	RowsIn             int    `json:"rows_in" yaml:"rows_in"`
	DroppedMissing     int    `json:"dropped_missing" yaml:"dropped_missing"`
	DroppedNonPositive int    `json:"dropped_non_positive" yaml:"dropped_non_positive"`
	RowsOut            int    `json:"rows_out" yaml:"rows_out"`
	Bounds             Bounds `json:"bounds" yaml:"bounds"`
}

// Observation is one cleaned row: the raw record plus derived fields.
type Observation struct {
	source.Record

	IncomeWinsorized float64
	LogIncome        float64
	Gender           string
	Race             string
	IsFemale         float64
	RaceBlack        float64
	RaceBrown        float64
	RaceYellow       float64
	RaceIndigenous   float64
	Age2             float64
}

// SchoolYears is the years of schooling.
func (o Observation) SchoolYears() float64 { return o.Schooling }

// CleanedDataset is the output of Clean. It is never mutated after
// construction; accessors return copies.
type CleanedDataset struct {
	rows       []Observation
	stats      Stats
	provenance string
}

// Clean filters ds and derives the model features. Bounds are computed once
// on the rows that survive both filters.
func Clean(ds *source.Dataset) (*CleanedDataset, error) {
	if ds == nil {
		return nil, ErrEmptyDataset
	}
	st := Stats{RowsIn: ds.Len()}

	complete := make([]source.Record, 0, ds.Len())
	for _, r := range ds.Records {
		if hasMissing(r) {
			st.DroppedMissing++
			continue
		}
		complete = append(complete, r)
	}
	kept := complete[:0:0]
	for _, r := range complete {
		if !(r.Income > 0) {
			st.DroppedNonPositive++
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) == 0 {
		return nil, ErrEmptyDataset
	}

	incomes := make([]float64, len(kept))
	for i, r := range kept {
		incomes[i] = r.Income
	}
	sort.Float64s(incomes)
	st.Bounds = Bounds{Low: Quantile(incomes, LowerPercentile), High: Quantile(incomes, UpperPercentile)}

	rows := make([]Observation, len(kept))
	for i, r := range kept {
		rows[i] = derive(r, st.Bounds)
	}
	st.RowsOut = len(rows)
	return &CleanedDataset{rows: rows, stats: st, provenance: ds.Provenance}, nil
}

func hasMissing(r source.Record) bool {
	for _, v := range []float64{r.Sex, r.Race, r.Age, r.Schooling, r.Income} {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func derive(r source.Record, b Bounds) Observation {
	o := Observation{Record: r}
	o.IncomeWinsorized = b.Clip(r.Income)
	o.LogIncome = math.Log(o.IncomeWinsorized)
	o.Gender = label(genderCodes, r.Sex)
	o.Race = label(raceCodes, r.Race)
	o.IsFemale = indicator(o.Gender == Female)
	o.RaceBlack = indicator(o.Race == Black)
	o.RaceBrown = indicator(o.Race == Brown)
	o.RaceYellow = indicator(o.Race == Yellow)
	o.RaceIndigenous = indicator(o.Race == Indigenous)
	o.Age2 = r.Age * r.Age
	return o
}

func label(m map[float64]string, code float64) string {
	if s, ok := m[code]; ok {
		return s
	}
	return Other
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Len returns the number of rows.
func (c *CleanedDataset) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rows)
}

// Row returns the i-th observation.
func (c *CleanedDataset) Row(i int) Observation { return c.rows[i] }

// Stats returns the cleaning counters and bounds.
func (c *CleanedDataset) Stats() Stats { return c.stats }

// Bounds returns the winsorization interval.
func (c *CleanedDataset) Bounds() Bounds { return c.stats.Bounds }

// Provenance returns the tag of the source the rows came from.
func (c *CleanedDataset) Provenance() string { return c.provenance }

// Raw returns the surviving rows as an uncleaned Dataset.
func (c *CleanedDataset) Raw() *source.Dataset {
	out := &source.Dataset{Records: make([]source.Record, len(c.rows)), Provenance: c.provenance}
	for i, o := range c.rows {
		out.Records[i] = o.Record
	}
	return out
}
