package cleaning

import (
	"strconv"

	"github.com/KaramelBytes/incomegap/internal/source"
)

// Derived column names.
const (
	ColIncomeWinsorized = "income_winsorized"
	ColLogIncome        = "log_income"
	ColGender           = "gender"
	ColRace             = "race"
	ColIsFemale         = "is_female"
	ColRaceBlack        = "race_black"
	ColRaceBrown        = "race_brown"
	ColRaceYellow       = "race_yellow"
	ColRaceIndigenous   = "race_indigenous"
	ColSchoolYears      = "school_years"
	ColAge              = "age"
	ColAge2             = "age2"
)

var numeric = map[string]func(Observation) float64{
	source.ColYear:      func(o Observation) float64 { return o.Year },
	source.ColSex:       func(o Observation) float64 { return o.Sex },
	source.ColRace:      func(o Observation) float64 { return o.Record.Race },
	source.ColAge:       func(o Observation) float64 { return o.Age },
	source.ColSchooling: func(o Observation) float64 { return o.Schooling },
	source.ColIncome:    func(o Observation) float64 { return o.Income },
	ColIncomeWinsorized: func(o Observation) float64 { return o.IncomeWinsorized },
	ColLogIncome:        func(o Observation) float64 { return o.LogIncome },
	ColIsFemale:         func(o Observation) float64 { return o.IsFemale },
	ColRaceBlack:        func(o Observation) float64 { return o.RaceBlack },
	ColRaceBrown:        func(o Observation) float64 { return o.RaceBrown },
	ColRaceYellow:       func(o Observation) float64 { return o.RaceYellow },
	ColRaceIndigenous:   func(o Observation) float64 { return o.RaceIndigenous },
	ColSchoolYears:      func(o Observation) float64 { return o.Schooling },
	ColAge:              func(o Observation) float64 { return o.Age },
	ColAge2:             func(o Observation) float64 { return o.Age2 },
}

var categorical = map[string]func(Observation) string{
	ColGender:        func(o Observation) string { return o.Gender },
	ColRace:          func(o Observation) string { return o.Race },
	source.ColRegion: func(o Observation) string { return o.Region },
}

// Column returns a copy of a numeric column, or nil when name is not a
// numeric column.
func (c *CleanedDataset) Column(name string) []float64 {
	get, ok := numeric[name]
	if !ok {
		return nil
	}
	out := make([]float64, len(c.rows))
	for i, o := range c.rows {
		out[i] = get(o)
	}
	return out
}

// Labels returns a copy of a categorical column, or nil when name is not
// categorical.
func (c *CleanedDataset) Labels(name string) []string {
	get, ok := categorical[name]
	if !ok {
		return nil
	}
	out := make([]string, len(c.rows))
	for i, o := range c.rows {
		out[i] = get(o)
	}
	return out
}

// Header lists the columns written by Records, raw columns first.
func Header() []string {
	h := append([]string(nil), source.Columns...)
	return append(h,
		ColIncomeWinsorized, ColGender, ColRace, ColAge, ColSchoolYears, ColLogIncome,
		ColIsFemale, ColRaceBlack, ColRaceBrown, ColRaceYellow, ColRaceIndigenous, ColAge2)
}

// Records renders every row as strings in Header order. Missing values are
// empty strings.
func (c *CleanedDataset) Records() [][]string {
	out := make([][]string, 0, len(c.rows))
	for _, o := range c.rows {
		out = append(out, []string{
			num(o.Year), o.Region, num(o.Sex), num(o.Record.Race), num(o.Age), num(o.Schooling), num(o.Income),
			num(o.IncomeWinsorized), o.Gender, o.Race, num(o.Age), num(o.Schooling), num(o.LogIncome),
			num(o.IsFemale), num(o.RaceBlack), num(o.RaceBrown), num(o.RaceYellow), num(o.RaceIndigenous), num(o.Age2),
		})
	}
	return out
}

func num(f float64) string {
	if f != f {
		return ""
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
