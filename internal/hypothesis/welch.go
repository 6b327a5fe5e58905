package hypothesis

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// WelchTTest runs the unequal-variance two-sample t-test. NaN values are
// dropped from each sample independently.
//
// When both samples have zero variance the standard error is zero: equal
// means give a NaN statistic, different means give an infinite statistic
// with p = 0.
func WelchTTest(males, females []float64) (TestResult, error) {
	x, y := dropNaN(males), dropNaN(females)
	if err := checkSizes(x, y); err != nil {
		return TestResult{}, err
	}
	res := TestResult{Name: "welch_t_test", H0: H0TTest, Method: "welch", NMale: len(x), NFemale: len(y)}

	mx, vx := meanVar(x)
	my, vy := meanVar(y)
	res.MeanMale, res.MeanFemale = mx, my

	nx, ny := float64(len(x)), float64(len(y))
	ax, ay := vx/nx, vy/ny
	se2 := ax + ay
	res.DF = se2 * se2 / (ax*ax/(nx-1) + ay*ay/(ny-1))

	switch {
	case math.IsNaN(se2):
		res.Statistic, res.PValue = math.NaN(), math.NaN()
	case se2 == 0:
		res.DF = math.NaN()
		if mx == my {
			res.Statistic, res.PValue = math.NaN(), math.NaN()
		} else {
			res.Statistic, res.PValue = math.Copysign(math.Inf(1), mx-my), 0
		}
	default:
		res.Statistic = (mx - my) / math.Sqrt(se2)
		dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: res.DF}
		res.PValue = math.Min(1, 2*dist.Survival(math.Abs(res.Statistic)))
	}
	return res, nil
}

// meanVar returns the mean and the N-1 variance; the variance is NaN for a
// single value.
func meanVar(v []float64) (mean, variance float64) {
	if len(v) < 2 {
		return stat.Mean(v, nil), math.NaN()
	}
	return stat.MeanVariance(v, nil)
}
