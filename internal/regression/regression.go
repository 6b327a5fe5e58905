// Package regression fits the log-income model by ordinary least squares
// with HC1 heteroscedasticity-robust standard errors.
package regression

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/KaramelBytes/incomegap/internal/cleaning"
)

// ErrSingularDesignMatrix is returned when the design matrix does not have
// full column rank or there are not more rows than columns.
var ErrSingularDesignMatrix = errors.New("singular design matrix")

// Const names the intercept column.
const Const = "const"

// Response is the dependent variable.
const Response = cleaning.ColLogIncome

// Columns is the design matrix layout.
var Columns = []string{
	Const,
	cleaning.ColIsFemale,
	cleaning.ColRaceBlack,
	cleaning.ColRaceBrown,
	cleaning.ColRaceYellow,
	cleaning.ColRaceIndigenous,
	cleaning.ColSchoolYears,
	cleaning.ColAge,
	cleaning.ColAge2,
}

// CovType is the only covariance estimator produced.
const CovType = "HC1"

// confidence level of the reported intervals.
const confidence = 0.95

// Coefficient is one fitted parameter with its robust inference.
type Coefficient struct {
	Name     string  `json:"name"`
	Estimate float64 `json:"coef"`
	StdErr   float64 `json:"std_err"`
	Z        float64 `json:"z"`
	PValue   float64 `json:"p_value"`
	CILow    float64 `json:"ci_low"`
	CIHigh   float64 `json:"ci_high"`
}

// Result is a fitted model.
type Result struct {
	Coefficients []Coefficient
	Cov          *mat.SymDense
	Residuals    []float64

	NObs    int
	Dropped int
	DFModel int
	DFResid int

	RSquared      float64
	AdjRSquared   float64
	FStatistic    float64
	FPValue       float64
	LogLikelihood float64
	AIC           float64
	BIC           float64

	DurbinWatson float64
	JarqueBera   float64
	JBPValue     float64
	Skew         float64
	Kurtosis     float64
	CondNo       float64
}

// Params returns the estimates in column order.
func (r *Result) Params() []float64 {
	out := make([]float64, len(r.Coefficients))
	for i, c := range r.Coefficients {
		out[i] = c.Estimate
	}
	return out
}

// Coef looks a coefficient up by column name.
func (r *Result) Coef(name string) (Coefficient, bool) {
	for _, c := range r.Coefficients {
		if c.Name == name {
			return c, true
		}
	}
	return Coefficient{}, false
}

// Design builds the design matrix and response from ds in Columns order.
// Rows with a NaN anywhere are dropped; the count is returned.
func Design(ds *cleaning.CleanedDataset) (x *mat.Dense, y []float64, dropped int) {
	cols := make([][]float64, len(Columns))
	for j, name := range Columns[1:] {
		cols[j+1] = ds.Column(name)
	}
	resp := ds.Column(Response)

	var data []float64
	for i := range resp {
		row := make([]float64, len(Columns))
		row[0] = 1
		ok := !math.IsNaN(resp[i])
		for j := 1; j < len(Columns) && ok; j++ {
			row[j] = cols[j][i]
			ok = !math.IsNaN(row[j])
		}
		if !ok {
			dropped++
			continue
		}
		data = append(data, row...)
		y = append(y, resp[i])
	}
	if len(y) == 0 {
		return nil, nil, dropped
	}
	return mat.NewDense(len(y), len(Columns), data), y, dropped
}

// Fit estimates the model on ds.
func Fit(ds *cleaning.CleanedDataset) (*Result, error) {
	if ds.Len() == 0 {
		return nil, cleaning.ErrEmptyDataset
	}
	x, y, dropped := Design(ds)
	if x == nil {
		return nil, fmt.Errorf("%w: no complete rows", ErrSingularDesignMatrix)
	}
	res, err := FitOLS(x, y, Columns)
	if err != nil {
		return nil, err
	}
	res.Dropped = dropped
	return res, nil
}

// FitOLS fits y on x, whose first column must be the intercept.
func FitOLS(x *mat.Dense, y []float64, names []string) (*Result, error) {
	n, k := x.Dims()
	if len(names) != k {
		return nil, fmt.Errorf("got %d column names for %d columns", len(names), k)
	}
	if n != len(y) {
		return nil, fmt.Errorf("design has %d rows, response %d", n, len(y))
	}
	if n <= k {
		return nil, fmt.Errorf("%w: %d observations for %d parameters", ErrSingularDesignMatrix, n, k)
	}

	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDNone) {
		return nil, fmt.Errorf("%w: SVD did not converge", ErrSingularDesignMatrix)
	}
	sv := svd.Values(nil)
	tol := sv[0] * float64(max(n, k)) * eps
	rank := 0
	for _, s := range sv {
		if s > tol {
			rank++
		}
	}
	if rank < k {
		return nil, fmt.Errorf("%w: rank %d < %d columns", ErrSingularDesignMatrix, rank, k)
	}

	var qr mat.QR
	qr.Factorize(x)
	yv := mat.NewVecDense(n, append([]float64(nil), y...))
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, yv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularDesignMatrix, err)
	}

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	resid := make([]float64, n)
	for i := range resid {
		resid[i] = y[i] - fitted.AtVec(i)
	}

	cov, err := hc1(x, resid)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Cov:       cov,
		Residuals: resid,
		NObs:      n,
		DFModel:   k - 1,
		DFResid:   n - k,
		CondNo:    sv[0] / sv[len(sv)-1],
	}
	z := distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
	for j := 0; j < k; j++ {
		b := beta.AtVec(j)
		se := math.Sqrt(cov.At(j, j))
		zs := b / se
		res.Coefficients = append(res.Coefficients, Coefficient{
			Name:     names[j],
			Estimate: b,
			StdErr:   se,
			Z:        zs,
			PValue:   2 * distuv.UnitNormal.Survival(math.Abs(zs)),
			CILow:    b - z*se,
			CIHigh:   b + z*se,
		})
	}

	res.goodnessOfFit(y)
	res.waldF(&beta)
	res.residualDiagnostics()
	return res, nil
}

var eps = math.Nextafter(1, 2) - 1

// hc1 returns (X'X)^-1 X' diag(e^2) X (X'X)^-1 scaled by n/(n-k).
func hc1(x *mat.Dense, resid []float64) (*mat.SymDense, error) {
	n, k := x.Dims()
	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	var bread mat.Dense
	if err := bread.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularDesignMatrix, err)
	}

	meat := mat.NewSymDense(k, nil)
	for i := 0; i < n; i++ {
		meat.SymRankOne(meat, resid[i]*resid[i], x.RowView(i))
	}

	var tmp, sandwich mat.Dense
	tmp.Mul(&bread, meat)
	sandwich.Mul(&tmp, &bread)
	scale := float64(n) / float64(n-k)

	cov := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			cov.SetSym(i, j, scale*(sandwich.At(i, j)+sandwich.At(j, i))/2)
		}
	}
	return cov, nil
}

func (r *Result) goodnessOfFit(y []float64) {
	n := float64(r.NObs)
	k := float64(r.DFModel + 1)
	var ssr float64
	for _, e := range r.Residuals {
		ssr += e * e
	}
	mean := stat.Mean(y, nil)
	var tss float64
	for _, v := range y {
		tss += (v - mean) * (v - mean)
	}
	r.RSquared = 1 - ssr/tss
	r.AdjRSquared = 1 - (n-1)/float64(r.DFResid)*(1-r.RSquared)
	r.LogLikelihood = -n / 2 * (math.Log(2*math.Pi) + math.Log(ssr/n) + 1)
	r.AIC = -2*r.LogLikelihood + 2*k
	r.BIC = -2*r.LogLikelihood + k*math.Log(n)
}

// waldF tests that every non-intercept coefficient is zero using the
// robust covariance.
func (r *Result) waldF(beta *mat.VecDense) {
	q := r.DFModel
	b := mat.NewVecDense(q, nil)
	v := mat.NewSymDense(q, nil)
	for i := 0; i < q; i++ {
		b.SetVec(i, beta.AtVec(i+1))
		for j := i; j < q; j++ {
			v.SetSym(i, j, r.Cov.At(i+1, j+1))
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(v) {
		r.FStatistic, r.FPValue = math.NaN(), math.NaN()
		return
	}
	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, b); err != nil {
		r.FStatistic, r.FPValue = math.NaN(), math.NaN()
		return
	}
	r.FStatistic = mat.Dot(b, &sol) / float64(q)
	f := distuv.F{D1: float64(q), D2: float64(r.DFResid)}
	r.FPValue = f.Survival(r.FStatistic)
}

func (r *Result) residualDiagnostics() {
	e := r.Residuals
	var num, den float64
	for i, v := range e {
		den += v * v
		if i > 0 {
			d := v - e[i-1]
			num += d * d
		}
	}
	r.DurbinWatson = num / den

	m2 := stat.Moment(2, e, nil)
	m3 := stat.Moment(3, e, nil)
	m4 := stat.Moment(4, e, nil)
	r.Skew = m3 / math.Pow(m2, 1.5)
	r.Kurtosis = m4 / (m2 * m2)
	n := float64(len(e))
	r.JarqueBera = n / 6 * (r.Skew*r.Skew + (r.Kurtosis-3)*(r.Kurtosis-3)/4)
	r.JBPValue = math.Exp(-r.JarqueBera / 2)
}
