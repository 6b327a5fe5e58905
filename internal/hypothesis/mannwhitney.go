package hypothesis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// exactLimit is the group size at or below which the exact null
// distribution is used when the data has no ties.
const exactLimit = 8

// MannWhitneyU runs the two-sided Mann-Whitney U test. The reported
// statistic is U for the male sample.
//
// The exact distribution is used when the data has no ties and at least one
// sample has at most eight values; otherwise the normal approximation with
// tie and continuity correction.
func MannWhitneyU(males, females []float64) (TestResult, error) {
	x, y := dropNaN(males), dropNaN(females)
	if err := checkSizes(x, y); err != nil {
		return TestResult{}, err
	}
	n1, n2 := len(x), len(y)
	res := TestResult{
		Name: "mann_whitney_u", H0: H0MannWhitney, NMale: n1, NFemale: n2,
		MeanMale: stat.Mean(x, nil), MeanFemale: stat.Mean(y, nil),
	}

	combined := append(append(make([]float64, 0, n1+n2), x...), y...)
	ranks, tieSum := rankData(combined)
	var r1 float64
	for _, r := range ranks[:n1] {
		r1 += r
	}
	u1 := r1 - float64(n1*(n1+1))/2
	u2 := float64(n1*n2) - u1
	u := math.Max(u1, u2)
	res.Statistic = u1

	if tieSum == 0 && (n1 <= exactLimit || n2 <= exactLimit) {
		res.Method = "exact"
		res.PValue = math.Min(1, 2*exactSurvival(int(math.Round(u)), n1, n2))
		return res, nil
	}

	res.Method = "asymptotic"
	n := float64(n1 + n2)
	mu := float64(n1*n2) / 2
	sigma := math.Sqrt(float64(n1*n2) / 12 * ((n + 1) - tieSum/(n*(n-1))))
	if sigma == 0 {
		res.PValue = math.NaN()
		return res, nil
	}
	z := (u - mu - 0.5) / sigma
	res.PValue = math.Min(1, 2*distuv.UnitNormal.Survival(z))
	return res, nil
}

// rankData assigns 1-based ranks, averaging ties, and returns the tie
// correction term sum(t^3 - t) over groups of tied values.
func rankData(v []float64) (ranks []float64, tieSum float64) {
	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return v[idx[a]] < v[idx[b]] })
	ranks = make([]float64, len(v))
	for i := 0; i < len(idx); {
		j := i + 1
		for j < len(idx) && v[idx[j]] == v[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		if t := float64(j - i); t > 1 {
			tieSum += t*t*t - t
		}
		i = j
	}
	return ranks, tieSum
}

// exactSurvival returns P(U >= k) under the null for samples of size m and
// n, using the generating function prod (1-q^(n+i))/(1-q^i), i = 1..m.
func exactSurvival(k, m, n int) float64 {
	if m > n {
		m, n = n, m
	}
	deg := m * n
	if k <= 0 {
		return 1
	}
	if k > deg {
		return 0
	}
	c := make([]float64, deg+1)
	c[0] = 1
	for i := 1; i <= m; i++ {
		for j := deg; j >= n+i; j-- {
			c[j] -= c[j-n-i]
		}
		for j := i; j <= deg; j++ {
			c[j] += c[j-i]
		}
	}
	var total, tail float64
	for u, cnt := range c {
		total += cnt
		if u >= k {
			tail += cnt
		}
	}
	return tail / total
}
