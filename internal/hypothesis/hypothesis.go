// Package hypothesis compares winsorized income between men and women with
// a Welch t-test and a two-sided Mann-Whitney U test.
package hypothesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/KaramelBytes/incomegap/internal/cleaning"
)

// ErrInsufficientGroupSize is returned when the male or female sample is empty.
var ErrInsufficientGroupSize = errors.New("insufficient group size")

// Null hypotheses as written to test_results.json.
const (
	H0TTest       = "mean_male == mean_female"
	H0MannWhitney = "distributions_equal"
)

// TestResult is the outcome of one two-sample test. Values are stored
// unrounded.
type TestResult struct {
	Name       string
	Statistic  float64
	PValue     float64
	H0         string
	Method     string
	NMale      int
	NFemale    int
	MeanMale   float64
	MeanFemale float64
	// DF is the Welch-Satterthwaite degrees of freedom; zero for rank tests.
	DF float64
}

// MarshalJSON writes non-finite numbers as null.
func (r TestResult) MarshalJSON() ([]byte, error) {
	type wire struct {
		Stat       *float64 `json:"stat"`
		PValue     *float64 `json:"p_value"`
		H0         string   `json:"H0"`
		Test       string   `json:"test"`
		Method     string   `json:"method,omitempty"`
		NMale      int      `json:"n_male"`
		NFemale    int      `json:"n_female"`
		MeanMale   *float64 `json:"mean_male"`
		MeanFemale *float64 `json:"mean_female"`
		DF         *float64 `json:"df,omitempty"`
	}
	w := wire{
		Stat: finite(r.Statistic), PValue: finite(r.PValue), H0: r.H0, Test: r.Name, Method: r.Method,
		NMale: r.NMale, NFemale: r.NFemale, MeanMale: finite(r.MeanMale), MeanFemale: finite(r.MeanFemale),
	}
	if r.DF != 0 {
		w.DF = finite(r.DF)
	}
	return json.Marshal(w)
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Results holds both tests in the order they are reported.
type Results struct {
	TTest       TestResult `json:"t_test"`
	MannWhitney TestResult `json:"mann_whitney"`
}

// Run extracts the Male and Female income samples and runs both tests.
// Rows of any other gender take no part.
func Run(ds *cleaning.CleanedDataset) (*Results, error) {
	males, females := Samples(ds)
	t, err := WelchTTest(males, females)
	if err != nil {
		return nil, err
	}
	u, err := MannWhitneyU(males, females)
	if err != nil {
		return nil, err
	}
	return &Results{TTest: t, MannWhitney: u}, nil
}

// Samples splits income_winsorized into the male and female samples,
// skipping NaN values.
func Samples(ds *cleaning.CleanedDataset) (males, females []float64) {
	if ds.Len() == 0 {
		return nil, nil
	}
	income := ds.Column(cleaning.ColIncomeWinsorized)
	for i, g := range ds.Labels(cleaning.ColGender) {
		v := income[i]
		if math.IsNaN(v) {
			continue
		}
		switch g {
		case cleaning.Male:
			males = append(males, v)
		case cleaning.Female:
			females = append(females, v)
		}
	}
	return males, females
}

func checkSizes(males, females []float64) error {
	if len(males) == 0 || len(females) == 0 {
		return fmt.Errorf("%w: %d male and %d female observations", ErrInsufficientGroupSize, len(males), len(females))
	}
	return nil
}

func dropNaN(v []float64) []float64 {
	out := make([]float64, 0, len(v))
	for _, x := range v {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}
